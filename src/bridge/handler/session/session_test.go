package session

import (
	"context"
	"testing"
	"time"

	tally "github.com/uber-go/tally/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uber/dbg-bridge/src/bridge/controller/translator"
	"github.com/uber/dbg-bridge/src/bridge/entity"
	"github.com/uber/dbg-bridge/src/bridge/gateway/adapter"
	"github.com/uber/dbg-bridge/src/bridge/gateway/clientcallback"
	"github.com/uber/dbg-bridge/src/bridge/internal/fs"
	reposession "github.com/uber/dbg-bridge/src/bridge/repository/session"
	"go.uber.org/zap"
)

// fakeAdapterSession is a minimal no-op adapter.Session for exercising the
// session manager's wiring without a real child process.
type fakeAdapterSession struct {
	caps adapter.Capabilities
}

func newFakeAdapterSession() *fakeAdapterSession {
	return &fakeAdapterSession{caps: adapter.Capabilities{SupportsConfigurationDoneRequest: true}}
}

func (f *fakeAdapterSession) Kind() adapter.Kind { return adapter.KindNode }
func (f *fakeAdapterSession) Initialize(ctx context.Context, clientID string) (adapter.Capabilities, error) {
	return f.caps, nil
}
func (f *fakeAdapterSession) Launch(ctx context.Context, args interface{}) error { return nil }
func (f *fakeAdapterSession) Attach(ctx context.Context, args interface{}) error { return nil }
func (f *fakeAdapterSession) SetBreakpoints(ctx context.Context, path string, lines []adapter.BreakpointRequest) ([]adapter.BreakpointResult, error) {
	return make([]adapter.BreakpointResult, len(lines)), nil
}
func (f *fakeAdapterSession) SetExceptionBreakpoints(ctx context.Context, filters []string) error {
	return nil
}
func (f *fakeAdapterSession) ConfigurationDone(ctx context.Context) error { return nil }
func (f *fakeAdapterSession) Continue(ctx context.Context, threadID int) error { return nil }
func (f *fakeAdapterSession) Pause(ctx context.Context, threadID int) error    { return nil }
func (f *fakeAdapterSession) Next(ctx context.Context, threadID int) error    { return nil }
func (f *fakeAdapterSession) StepIn(ctx context.Context, threadID int) error  { return nil }
func (f *fakeAdapterSession) StepOut(ctx context.Context, threadID int) error { return nil }
func (f *fakeAdapterSession) StackTrace(ctx context.Context, threadID int, levels int) ([]entity.StackFrame, error) {
	return nil, nil
}
func (f *fakeAdapterSession) Scopes(ctx context.Context, frameID int) ([]adapter.ScopeInfo, error) {
	return nil, nil
}
func (f *fakeAdapterSession) Variables(ctx context.Context, variablesRef int) ([]adapter.VariableInfo, error) {
	return nil, nil
}
func (f *fakeAdapterSession) SetVariable(ctx context.Context, variablesRef int, name, value string) (adapter.VariableInfo, error) {
	return adapter.VariableInfo{}, nil
}
func (f *fakeAdapterSession) Evaluate(ctx context.Context, expression string, frameID *int) (adapter.EvaluateResult, error) {
	return adapter.EvaluateResult{}, nil
}
func (f *fakeAdapterSession) Completions(ctx context.Context, frameID int, text string, column int) ([]string, error) {
	return nil, nil
}
func (f *fakeAdapterSession) ContinueToLocation(ctx context.Context, path string, line, column int) error {
	return nil
}
func (f *fakeAdapterSession) Capabilities() adapter.Capabilities { return f.caps }
func (f *fakeAdapterSession) IsReadyForBreakpoints() bool        { return true }
func (f *fakeAdapterSession) Initialized() <-chan struct{}       { return make(chan struct{}) }
func (f *fakeAdapterSession) Stopped() <-chan adapter.StoppedEvent {
	return make(chan adapter.StoppedEvent)
}
func (f *fakeAdapterSession) Continued() <-chan adapter.ContinuedEvent {
	return make(chan adapter.ContinuedEvent)
}
func (f *fakeAdapterSession) Thread() <-chan adapter.ThreadEvent { return make(chan adapter.ThreadEvent) }
func (f *fakeAdapterSession) Breakpoint() <-chan adapter.BreakpointEvent {
	return make(chan adapter.BreakpointEvent)
}
func (f *fakeAdapterSession) Output() <-chan adapter.OutputEvent { return make(chan adapter.OutputEvent) }
func (f *fakeAdapterSession) Terminated() <-chan struct{}        { return make(chan struct{}) }
func (f *fakeAdapterSession) Exited() <-chan struct{}            { return make(chan struct{}) }
func (f *fakeAdapterSession) AdapterExited() <-chan struct{}     { return make(chan struct{}) }
func (f *fakeAdapterSession) CatchAll() <-chan *entity.AdapterMessage {
	return make(chan *entity.AdapterMessage)
}
func (f *fakeAdapterSession) Close() error { return nil }

func newManager(t *testing.T) *Manager {
	t.Helper()
	repo := reposession.New(reposession.Params{Stats: tally.NewTestScope("testing", map[string]string{})})
	return New(Params{
		Repo:   repo,
		FS:     fs.New(),
		Logger: zap.NewNop().Sugar(),
		Stats:  tally.NewTestScope("testing", map[string]string{}),
	})
}

func TestManager_NewSessionRegistersAndDispatches(t *testing.T) {
	m := newManager(t)
	fakeSession := newFakeAdapterSession()
	sink := clientcallback.NewFake()

	id, err := m.NewSession(context.Background(), Config{Kind: adapter.KindNode, Mode: translator.ModeLaunch}, fakeSession, sink)
	require.NoError(t, err)

	err = m.HandleCommand(context.Background(), id, entity.ClientCommand{ID: 1, Method: "Debugger.resume"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(sink.Responses()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestManager_HandleCommandUnknownSessionErrors(t *testing.T) {
	m := newManager(t)
	err := m.HandleCommand(context.Background(), entity.SessionID{}, entity.ClientCommand{ID: 1, Method: "Debugger.pause"})
	require.Error(t, err)
}

func TestManager_EndSessionRemovesIt(t *testing.T) {
	m := newManager(t)
	fakeSession := newFakeAdapterSession()
	sink := clientcallback.NewFake()
	id, err := m.NewSession(context.Background(), Config{Kind: adapter.KindNode, Mode: translator.ModeLaunch}, fakeSession, sink)
	require.NoError(t, err)

	require.NoError(t, m.EndSession(context.Background(), id))
	err = m.HandleCommand(context.Background(), id, entity.ClientCommand{ID: 1, Method: "Debugger.pause"})
	assert.Error(t, err)
}
