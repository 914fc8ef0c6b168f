// Package sinkmock is a hand-authored gomock.Controller-based mock for
// clientcallback.Sink, in the shape mockgen would generate, for tests that
// need to assert exact call sequences rather than just recording them.
package sinkmock

import (
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"

	"github.com/uber/dbg-bridge/src/bridge/gateway/clientcallback"
)

// MockSink is a mock of the clientcallback.Sink interface.
type MockSink struct {
	ctrl     *gomock.Controller
	recorder *MockSinkMockRecorder
}

// MockSinkMockRecorder is the mock recorder for MockSink.
type MockSinkMockRecorder struct {
	mock *MockSink
}

// NewMockSink returns a new mock bound to ctrl.
func NewMockSink(ctrl *gomock.Controller) *MockSink {
	mock := &MockSink{ctrl: ctrl}
	mock.recorder = &MockSinkMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockSink) EXPECT() *MockSinkMockRecorder {
	return m.recorder
}

// SendMessage mocks base method.
func (m *MockSink) SendMessage(msg clientcallback.WireMessage) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SendMessage", msg)
	ret0, _ := ret[0].(error)
	return ret0
}

// SendMessage indicates an expected call of SendMessage.
func (mr *MockSinkMockRecorder) SendMessage(msg interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SendMessage", reflect.TypeOf((*MockSink)(nil).SendMessage), msg)
}

// Notify mocks base method.
func (m *MockSink) Notify(n clientcallback.Notification) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Notify", n)
}

// Notify indicates an expected call of Notify.
func (mr *MockSinkMockRecorder) Notify(n interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Notify", reflect.TypeOf((*MockSink)(nil).Notify), n)
}

// Output mocks base method.
func (m *MockSink) Output(line clientcallback.OutputLine) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Output", line)
}

// Output indicates an expected call of Output.
func (mr *MockSinkMockRecorder) Output(line interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Output", reflect.TypeOf((*MockSink)(nil).Output), line)
}

// Close mocks base method.
func (m *MockSink) Close() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Close")
	ret0, _ := ret[0].(error)
	return ret0
}

// Close indicates an expected call of Close.
func (mr *MockSinkMockRecorder) Close() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close", reflect.TypeOf((*MockSink)(nil).Close))
}
