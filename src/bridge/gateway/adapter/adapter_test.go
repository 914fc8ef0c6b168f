package adapter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/dbg-bridge/src/bridge/entity"
	"github.com/uber/dbg-bridge/src/bridge/internal/transport"
	"go.uber.org/zap"
)

// fakeTransport is a hand-rolled transport.Transport for exercising Session
// without a real byte-level pipe.
type fakeTransport struct {
	sent       []sentRequest
	events     chan *entity.AdapterMessage
	exitC      chan struct{}
	nextResult func(command string) transport.Result
}

type sentRequest struct {
	command string
	args    interface{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events: make(chan *entity.AdapterMessage, 16),
		exitC:  make(chan struct{}),
	}
}

func (f *fakeTransport) Send(ctx context.Context, command string, args interface{}) (<-chan transport.Result, error) {
	f.sent = append(f.sent, sentRequest{command: command, args: args})
	c := make(chan transport.Result, 1)
	if f.nextResult != nil {
		c <- f.nextResult(command)
	} else {
		c <- transport.Result{Command: command}
	}
	return c, nil
}

func (f *fakeTransport) SendResponse(ctx context.Context, requestSeq int, success bool, body interface{}) error {
	return nil
}
func (f *fakeTransport) Events() <-chan *entity.AdapterMessage { return f.events }
func (f *fakeTransport) ServerErrors() <-chan error            { return nil }
func (f *fakeTransport) Exit() <-chan struct{}                 { return f.exitC }
func (f *fakeTransport) Close() error                          { return nil }

func rawJSON(t *testing.T, v interface{}) entity.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestSession_Initialize(t *testing.T) {
	ft := newFakeTransport()
	ft.nextResult = func(command string) transport.Result {
		return transport.Result{
			Command: command,
			Body:    rawJSON(t, map[string]bool{"supportsConfigurationDoneRequest": true}),
		}
	}
	s := New(KindPython, ft, zap.NewNop().Sugar())

	caps, err := s.Initialize(context.Background(), "Nuclide")
	require.NoError(t, err)
	assert.True(t, caps.SupportsConfigurationDoneRequest)
	assert.Equal(t, caps, s.Capabilities())

	require.Len(t, ft.sent, 1)
	assert.Equal(t, "initialize", ft.sent[0].command)
}

func TestSession_CapabilitiesBeforeInitialize(t *testing.T) {
	ft := newFakeTransport()
	s := New(KindPython, ft, zap.NewNop().Sugar())
	assert.False(t, s.Capabilities().SupportsConfigurationDoneRequest)
}

func TestSession_InitializedEventSetsReady(t *testing.T) {
	ft := newFakeTransport()
	s := New(KindPython, ft, zap.NewNop().Sugar())

	assert.False(t, s.IsReadyForBreakpoints())

	ft.events <- &entity.AdapterMessage{Type: entity.MessageTypeEvent, Event: "initialized"}

	select {
	case <-s.Initialized():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initialized")
	}
	assert.True(t, s.IsReadyForBreakpoints())
}

func TestSession_SetBreakpointsMapsPositionally(t *testing.T) {
	ft := newFakeTransport()
	ft.nextResult = func(command string) transport.Result {
		return transport.Result{
			Command: command,
			Body: rawJSON(t, map[string]interface{}{
				"breakpoints": []map[string]interface{}{
					{"id": 100, "verified": true, "line": 11},
					{"id": 101, "verified": true, "line": 21},
				},
			}),
		}
	}
	s := New(KindPython, ft, zap.NewNop().Sugar())

	results, err := s.SetBreakpoints(context.Background(), "a", []BreakpointRequest{{Line: 10}, {Line: 20}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 100, results[0].ID)
	assert.Equal(t, 11, results[0].Line)
	assert.True(t, results[0].Verified)
}

func TestSession_StoppedEvent(t *testing.T) {
	ft := newFakeTransport()
	s := New(KindPython, ft, zap.NewNop().Sugar())

	threadID := 3
	body, err := json.Marshal(map[string]interface{}{"reason": "breakpoint", "threadId": threadID, "allThreadsStopped": false})
	require.NoError(t, err)
	ft.events <- &entity.AdapterMessage{Type: entity.MessageTypeEvent, Event: "stopped", Body: body}

	select {
	case evt := <-s.Stopped():
		assert.Equal(t, "breakpoint", evt.Reason)
		assert.Equal(t, 3, evt.ThreadID)
		assert.True(t, evt.HasThreadID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stopped event")
	}
}

func TestSession_AdapterExitClosesChannel(t *testing.T) {
	ft := newFakeTransport()
	s := New(KindPython, ft, zap.NewNop().Sugar())
	close(ft.exitC)

	select {
	case <-s.AdapterExited():
	case <-time.After(time.Second):
		t.Fatal("adapter exited channel never closed")
	}
}
