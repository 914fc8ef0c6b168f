package errors

import (
	stderr "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransportClosed(t *testing.T) {
	assert.True(t, IsTransportClosed(ErrTransportClosed))
	assert.True(t, IsTransportClosed(stderr.New("wrap: "+ErrTransportClosed.Error())) == false)
	assert.False(t, IsTransportClosed(New("some other error")))
}

func TestAsAdapterError(t *testing.T) {
	err := &AdapterError{Command: "next", Message: "thread not found"}
	got, ok := AsAdapterError(err)
	assert.True(t, ok)
	assert.Equal(t, "next", got.Command)
	assert.Equal(t, `adapter request "next" failed: thread not found`, err.Error())

	_, ok = AsAdapterError(New("plain"))
	assert.False(t, ok)
}

func TestAsBreakpointMismatch(t *testing.T) {
	err := &BreakpointMismatchError{SourcePath: "a.go", Sent: 2, Got: 1}
	got, ok := AsBreakpointMismatch(err)
	assert.True(t, ok)
	assert.Equal(t, 2, got.Sent)
	assert.Contains(t, err.Error(), "a.go")
}

func TestStartupError_Unwrap(t *testing.T) {
	inner := New("exec failed")
	err := &StartupError{Mode: "launch", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "launch")
}

func TestHandlerError(t *testing.T) {
	err := &HandlerError{Method: "Debugger.pause", Message: "no paused thread"}
	assert.Equal(t, "no paused thread", err.Error())
}

func TestProtocolFramingError(t *testing.T) {
	err := &ProtocolFramingError{Reason: "missing Content-Length"}
	assert.Contains(t, err.Error(), "missing Content-Length")
}
