// Package adapter wraps a framed transport in typed request methods, a
// cached capability set, and filtered event streams so callers never touch
// raw AdapterMessage frames. Each stream is one buffered channel, so each
// event reaches a single receiver (streams are not multicast), and an event
// that arrives while its channel is full is dropped.
package adapter

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/uber/dbg-bridge/src/bridge/entity"
	"github.com/uber/dbg-bridge/src/bridge/internal/transport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Kind enumerates the debug adapter dialects this bridge can drive.
type Kind string

const (
	KindPython Kind = "python"
	KindNode   Kind = "node"
	KindGo     Kind = "go"
)

// Capabilities mirrors the subset of the adapter's initialize response body
// the router and event translator consult.
type Capabilities struct {
	SupportsConfigurationDoneRequest bool `json:"supportsConfigurationDoneRequest"`
	SupportsCompletionsRequest       bool `json:"supportsCompletionsRequest"`
	SupportsDelayedStackTraceLoading bool `json:"supportsDelayedStackTraceLoading"`
	SupportsSetVariable              bool `json:"supportsSetVariable"`
	SupportsRestartRequest           bool `json:"supportsRestartRequest"`
}

// Session is the typed façade over one adapter child's transport.
type Session interface {
	Kind() Kind

	Initialize(ctx context.Context, clientID string) (Capabilities, error)
	Launch(ctx context.Context, args interface{}) error
	Attach(ctx context.Context, args interface{}) error
	SetBreakpoints(ctx context.Context, path string, lines []BreakpointRequest) ([]BreakpointResult, error)
	SetExceptionBreakpoints(ctx context.Context, filters []string) error
	ConfigurationDone(ctx context.Context) error
	Continue(ctx context.Context, threadID int) error
	Pause(ctx context.Context, threadID int) error
	Next(ctx context.Context, threadID int) error
	StepIn(ctx context.Context, threadID int) error
	StepOut(ctx context.Context, threadID int) error
	StackTrace(ctx context.Context, threadID int, levels int) ([]entity.StackFrame, error)
	Scopes(ctx context.Context, frameID int) ([]ScopeInfo, error)
	Variables(ctx context.Context, variablesRef int) ([]VariableInfo, error)
	SetVariable(ctx context.Context, variablesRef int, name, value string) (VariableInfo, error)
	Evaluate(ctx context.Context, expression string, frameID *int) (EvaluateResult, error)
	Completions(ctx context.Context, frameID int, text string, column int) ([]string, error)
	ContinueToLocation(ctx context.Context, path string, line, column int) error

	// Capabilities returns the cached capability set. Every field is false
	// until Initialize resolves.
	Capabilities() Capabilities
	// IsReadyForBreakpoints is true once the first initialized event has
	// been observed.
	IsReadyForBreakpoints() bool

	Initialized() <-chan struct{}
	Stopped() <-chan StoppedEvent
	Continued() <-chan ContinuedEvent
	Thread() <-chan ThreadEvent
	Breakpoint() <-chan BreakpointEvent
	Output() <-chan OutputEvent
	Terminated() <-chan struct{}
	Exited() <-chan struct{}
	AdapterExited() <-chan struct{}
	// CatchAll streams every adapter event frame, translated or not.
	CatchAll() <-chan *entity.AdapterMessage

	Close() error
}

// BreakpointRequest is one line entry sent in a setBreakpoints bulk call.
type BreakpointRequest struct {
	Line      int
	Condition string
}

// BreakpointResult is one entry of a setBreakpoints response, positionally
// aligned with the request.
type BreakpointResult struct {
	ID       int
	Verified bool
	Line     int
}

// ScopeInfo is one entry of a scopes response.
type ScopeInfo struct {
	Name               string
	VariablesReference int
}

// VariableInfo is one entry of a variables response, or the result of
// setVariable.
type VariableInfo struct {
	Name               string
	Value              string
	Type               string
	VariablesReference int
}

// EvaluateResult is the response body of an evaluate request.
type EvaluateResult struct {
	Result             string
	Type               string
	VariablesReference int
}

// StoppedEvent is the body of an adapter `stopped` event.
type StoppedEvent struct {
	Reason             string
	ThreadID           int
	AllThreadsStopped  bool
	HasThreadID        bool
}

// ContinuedEvent is the body of an adapter `continued` event.
type ContinuedEvent struct {
	ThreadID            int
	HasThreadID         bool
	AllThreadsContinued bool
}

// ThreadEvent is the body of an adapter `thread` event.
type ThreadEvent struct {
	Reason   string
	ThreadID int
}

// BreakpointEvent is the body of an adapter `breakpoint` event.
type BreakpointEvent struct {
	Reason       string
	ID           *int
	Verified     bool
	Line         int
	OriginalLine int
	HitCount     *int
	SourcePath   string
}

// OutputEvent is the body of an adapter `output` event.
type OutputEvent struct {
	Category string
	Output   string
	Data     json.RawMessage
}

type session struct {
	kind      Kind
	transport transport.Transport
	logger    *zap.SugaredLogger

	capMu        sync.RWMutex
	capabilities Capabilities
	capabilitySet bool

	readyMu sync.Mutex
	ready   bool

	initialized chan struct{}
	stopped     chan StoppedEvent
	continued   chan ContinuedEvent
	thread      chan ThreadEvent
	breakpoint  chan BreakpointEvent
	output      chan OutputEvent
	terminated  chan struct{}
	exited      chan struct{}
	adapterExit chan struct{}
	catchAll    chan *entity.AdapterMessage

	closeOnce sync.Once
	doneC     chan struct{}
}

// New builds a Session around an already-connected transport and starts
// translating raw adapter events into the typed streams above.
func New(kind Kind, t transport.Transport, logger *zap.SugaredLogger) Session {
	s := &session{
		kind:        kind,
		transport:   t,
		logger:      logger,
		initialized: make(chan struct{}, 4),
		stopped:     make(chan StoppedEvent, 16),
		continued:   make(chan ContinuedEvent, 16),
		thread:      make(chan ThreadEvent, 16),
		breakpoint:  make(chan BreakpointEvent, 16),
		output:      make(chan OutputEvent, 64),
		terminated:  make(chan struct{}, 1),
		exited:      make(chan struct{}, 1),
		adapterExit: make(chan struct{}, 1),
		catchAll:    make(chan *entity.AdapterMessage, 64),
		doneC:       make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *session) Kind() Kind { return s.kind }

func (s *session) pump() {
	for {
		select {
		case msg, ok := <-s.transport.Events():
			if !ok {
				return
			}
			s.dispatchEvent(msg)
		case <-s.transport.Exit():
			close(s.adapterExit)
			return
		}
	}
}

func (s *session) dispatchEvent(msg *entity.AdapterMessage) {
	nonBlockingSend(s.catchAll, msg)
	switch msg.Event {
	case "initialized":
		s.readyMu.Lock()
		s.ready = true
		s.readyMu.Unlock()
		nonBlockingSend(s.initialized, struct{}{})

	case "stopped":
		var body struct {
			Reason            string `json:"reason"`
			ThreadID          *int   `json:"threadId"`
			AllThreadsStopped bool   `json:"allThreadsStopped"`
		}
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			s.logger.Warnw("decoding stopped event", "error", err)
			return
		}
		evt := StoppedEvent{Reason: body.Reason, AllThreadsStopped: body.AllThreadsStopped}
		if body.ThreadID != nil {
			evt.ThreadID = *body.ThreadID
			evt.HasThreadID = true
		}
		nonBlockingSend(s.stopped, evt)

	case "continued":
		var body struct {
			ThreadID            *int `json:"threadId"`
			AllThreadsContinued bool `json:"allThreadsContinued"`
		}
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			s.logger.Warnw("decoding continued event", "error", err)
			return
		}
		evt := ContinuedEvent{AllThreadsContinued: body.AllThreadsContinued}
		if body.ThreadID != nil {
			evt.ThreadID = *body.ThreadID
			evt.HasThreadID = true
		}
		nonBlockingSend(s.continued, evt)

	case "thread":
		var body struct {
			Reason   string `json:"reason"`
			ThreadID int    `json:"threadId"`
		}
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			s.logger.Warnw("decoding thread event", "error", err)
			return
		}
		nonBlockingSend(s.thread, ThreadEvent{Reason: body.Reason, ThreadID: body.ThreadID})

	case "breakpoint":
		var body struct {
			Reason     string `json:"reason"`
			Breakpoint struct {
				ID           *int   `json:"id"`
				Verified     bool   `json:"verified"`
				Line         int    `json:"line"`
				OriginalLine int    `json:"nuclide_originalLine"`
				HitCount     *int   `json:"nuclide_hitCount"`
				Source       *struct {
					Path string `json:"path"`
				} `json:"source"`
			} `json:"breakpoint"`
		}
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			s.logger.Warnw("decoding breakpoint event", "error", err)
			return
		}
		evt := BreakpointEvent{
			Reason:       body.Reason,
			ID:           body.Breakpoint.ID,
			Verified:     body.Breakpoint.Verified,
			Line:         body.Breakpoint.Line,
			OriginalLine: body.Breakpoint.OriginalLine,
			HitCount:     body.Breakpoint.HitCount,
		}
		if body.Breakpoint.Source != nil {
			evt.SourcePath = body.Breakpoint.Source.Path
		}
		nonBlockingSend(s.breakpoint, evt)

	case "output":
		var body struct {
			Category string          `json:"category"`
			Output   string          `json:"output"`
			Data     json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			s.logger.Warnw("decoding output event", "error", err)
			return
		}
		nonBlockingSend(s.output, OutputEvent{Category: body.Category, Output: body.Output, Data: body.Data})

	case "terminated":
		nonBlockingSend(s.terminated, struct{}{})

	case "exited":
		nonBlockingSend(s.exited, struct{}{})
	}
}

func nonBlockingSend[T any](c chan T, v T) {
	select {
	case c <- v:
	default:
	}
}

func (s *session) Initialize(ctx context.Context, clientID string) (Capabilities, error) {
	args := map[string]interface{}{
		"clientID":                 clientID,
		"adapterID":                string(s.kind),
		"linesStartAt1":            true,
		"columnsStartAt1":          true,
		"supportsVariableType":     true,
		"supportsVariablePaging":   false,
		"supportsRunInTerminalRequest": false,
		"pathFormat":               "path",
	}
	resultC, err := s.transport.Send(ctx, "initialize", args)
	if err != nil {
		return Capabilities{}, err
	}
	res, err := awaitResult(ctx, resultC)
	if err != nil {
		return Capabilities{}, err
	}
	if res.Err != nil {
		return Capabilities{}, res.Err
	}
	var caps Capabilities
	if len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, &caps); err != nil {
			return Capabilities{}, err
		}
	}
	s.capMu.Lock()
	s.capabilities = caps
	s.capabilitySet = true
	s.capMu.Unlock()
	return caps, nil
}

func (s *session) Capabilities() Capabilities {
	s.capMu.RLock()
	defer s.capMu.RUnlock()
	if !s.capabilitySet {
		return Capabilities{}
	}
	return s.capabilities
}

func (s *session) IsReadyForBreakpoints() bool {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	return s.ready
}

// awaitResult waits for a request's reply, unblocking on ctx cancellation
// instead of leaving the caller stuck on a response that may never arrive
// (adapter died, request superseded).
func awaitResult(ctx context.Context, resultC <-chan transport.Result) (transport.Result, error) {
	select {
	case res := <-resultC:
		return res, nil
	case <-ctx.Done():
		return transport.Result{}, ctx.Err()
	}
}

func (s *session) simpleRequest(ctx context.Context, command string, args interface{}) error {
	resultC, err := s.transport.Send(ctx, command, args)
	if err != nil {
		return err
	}
	res, err := awaitResult(ctx, resultC)
	if err != nil {
		return err
	}
	return res.Err
}

func (s *session) Launch(ctx context.Context, args interface{}) error {
	return s.simpleRequest(ctx, "launch", args)
}

func (s *session) Attach(ctx context.Context, args interface{}) error {
	return s.simpleRequest(ctx, "attach", args)
}

func (s *session) SetBreakpoints(ctx context.Context, path string, entries []BreakpointRequest) ([]BreakpointResult, error) {
	type bpArg struct {
		Line      int    `json:"line"`
		Condition string `json:"condition,omitempty"`
	}
	lines := make([]int, len(entries))
	bps := make([]bpArg, len(entries))
	for i, e := range entries {
		lines[i] = e.Line
		bps[i] = bpArg{Line: e.Line, Condition: e.Condition}
	}
	args := map[string]interface{}{
		"source":      map[string]string{"path": path},
		"lines":       lines,
		"breakpoints": bps,
	}
	resultC, err := s.transport.Send(ctx, "setBreakpoints", args)
	if err != nil {
		return nil, err
	}
	res, err := awaitResult(ctx, resultC)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err
	}
	var body struct {
		Breakpoints []struct {
			ID       *int `json:"id"`
			Verified bool `json:"verified"`
			Line     int  `json:"line"`
		} `json:"breakpoints"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, err
	}
	out := make([]BreakpointResult, len(body.Breakpoints))
	for i, b := range body.Breakpoints {
		r := BreakpointResult{Verified: b.Verified, Line: b.Line}
		if b.ID != nil {
			r.ID = *b.ID
		}
		out[i] = r
	}
	return out, nil
}

func (s *session) SetExceptionBreakpoints(ctx context.Context, filters []string) error {
	if filters == nil {
		filters = []string{}
	}
	return s.simpleRequest(ctx, "setExceptionBreakpoints", map[string]interface{}{"filters": filters})
}

func (s *session) ConfigurationDone(ctx context.Context) error {
	return s.simpleRequest(ctx, "configurationDone", struct{}{})
}

func (s *session) Continue(ctx context.Context, threadID int) error {
	return s.simpleRequest(ctx, "continue", map[string]int{"threadId": threadID})
}

func (s *session) Pause(ctx context.Context, threadID int) error {
	return s.simpleRequest(ctx, "pause", map[string]int{"threadId": threadID})
}

func (s *session) Next(ctx context.Context, threadID int) error {
	return s.simpleRequest(ctx, "next", map[string]int{"threadId": threadID})
}

func (s *session) StepIn(ctx context.Context, threadID int) error {
	return s.simpleRequest(ctx, "stepIn", map[string]int{"threadId": threadID})
}

func (s *session) StepOut(ctx context.Context, threadID int) error {
	return s.simpleRequest(ctx, "stepOut", map[string]int{"threadId": threadID})
}

func (s *session) StackTrace(ctx context.Context, threadID int, levels int) ([]entity.StackFrame, error) {
	args := map[string]interface{}{"threadId": threadID}
	if levels > 0 {
		args["levels"] = levels
	}
	resultC, err := s.transport.Send(ctx, "stackTrace", args)
	if err != nil {
		return nil, err
	}
	res, err := awaitResult(ctx, resultC)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err
	}
	var body struct {
		StackFrames []struct {
			ID     int    `json:"id"`
			Name   string `json:"name"`
			Line   int    `json:"line"`
			Column int    `json:"column"`
			Source *struct {
				Path string `json:"path"`
			} `json:"source"`
		} `json:"stackFrames"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, err
	}
	frames := make([]entity.StackFrame, len(body.StackFrames))
	for i, f := range body.StackFrames {
		frame := entity.StackFrame{ID: f.ID, Name: f.Name, Line: f.Line, Column: f.Column}
		if f.Source != nil {
			frame.SourcePath = f.Source.Path
			frame.HasSource = true
		}
		frames[i] = frame
	}
	return frames, nil
}

func (s *session) Scopes(ctx context.Context, frameID int) ([]ScopeInfo, error) {
	resultC, err := s.transport.Send(ctx, "scopes", map[string]int{"frameId": frameID})
	if err != nil {
		return nil, err
	}
	res, err := awaitResult(ctx, resultC)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err
	}
	var body struct {
		Scopes []struct {
			Name               string `json:"name"`
			VariablesReference int    `json:"variablesReference"`
		} `json:"scopes"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, err
	}
	out := make([]ScopeInfo, len(body.Scopes))
	for i, sc := range body.Scopes {
		out[i] = ScopeInfo{Name: sc.Name, VariablesReference: sc.VariablesReference}
	}
	return out, nil
}

func (s *session) Variables(ctx context.Context, variablesRef int) ([]VariableInfo, error) {
	resultC, err := s.transport.Send(ctx, "variables", map[string]int{"variablesReference": variablesRef})
	if err != nil {
		return nil, err
	}
	res, err := awaitResult(ctx, resultC)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err
	}
	var body struct {
		Variables []struct {
			Name               string `json:"name"`
			Value              string `json:"value"`
			Type               string `json:"type"`
			VariablesReference int    `json:"variablesReference"`
		} `json:"variables"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, err
	}
	out := make([]VariableInfo, len(body.Variables))
	for i, v := range body.Variables {
		out[i] = VariableInfo{Name: v.Name, Value: v.Value, Type: v.Type, VariablesReference: v.VariablesReference}
	}
	return out, nil
}

func (s *session) SetVariable(ctx context.Context, variablesRef int, name, value string) (VariableInfo, error) {
	args := map[string]interface{}{"variablesReference": variablesRef, "name": name, "value": value}
	resultC, err := s.transport.Send(ctx, "setVariable", args)
	if err != nil {
		return VariableInfo{}, err
	}
	res, err := awaitResult(ctx, resultC)
	if err != nil {
		return VariableInfo{}, err
	}
	if res.Err != nil {
		return VariableInfo{}, res.Err
	}
	var body struct {
		Value              string `json:"value"`
		Type               string `json:"type"`
		VariablesReference int    `json:"variablesReference"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return VariableInfo{}, err
	}
	return VariableInfo{Name: name, Value: body.Value, Type: body.Type, VariablesReference: body.VariablesReference}, nil
}

func (s *session) Evaluate(ctx context.Context, expression string, frameID *int) (EvaluateResult, error) {
	args := map[string]interface{}{"expression": expression, "context": "watch"}
	if frameID != nil {
		args["frameId"] = *frameID
	}
	resultC, err := s.transport.Send(ctx, "evaluate", args)
	if err != nil {
		return EvaluateResult{}, err
	}
	res, err := awaitResult(ctx, resultC)
	if err != nil {
		return EvaluateResult{}, err
	}
	if res.Err != nil {
		return EvaluateResult{}, res.Err
	}
	var body struct {
		Result             string `json:"result"`
		Type               string `json:"type"`
		VariablesReference int    `json:"variablesReference"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return EvaluateResult{}, err
	}
	return EvaluateResult{Result: body.Result, Type: body.Type, VariablesReference: body.VariablesReference}, nil
}

func (s *session) Completions(ctx context.Context, frameID int, text string, column int) ([]string, error) {
	args := map[string]interface{}{"frameId": frameID, "text": text, "column": column}
	resultC, err := s.transport.Send(ctx, "completions", args)
	if err != nil {
		return nil, err
	}
	res, err := awaitResult(ctx, resultC)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err
	}
	var body struct {
		Targets []struct {
			Label string `json:"label"`
		} `json:"targets"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, err
	}
	out := make([]string, len(body.Targets))
	for i, t := range body.Targets {
		out[i] = t.Label
	}
	return out, nil
}

func (s *session) ContinueToLocation(ctx context.Context, path string, line, column int) error {
	args := map[string]interface{}{
		"source": map[string]string{"path": path},
		"line":   line,
		"column": column,
	}
	return s.simpleRequest(ctx, "continueToLocation", args)
}

func (s *session) Initialized() <-chan struct{}          { return s.initialized }
func (s *session) Stopped() <-chan StoppedEvent          { return s.stopped }
func (s *session) Continued() <-chan ContinuedEvent      { return s.continued }
func (s *session) Thread() <-chan ThreadEvent            { return s.thread }
func (s *session) Breakpoint() <-chan BreakpointEvent    { return s.breakpoint }
func (s *session) Output() <-chan OutputEvent            { return s.output }
func (s *session) Terminated() <-chan struct{}           { return s.terminated }
func (s *session) Exited() <-chan struct{}               { return s.exited }
func (s *session) AdapterExited() <-chan struct{}        { return s.adapterExit }
func (s *session) CatchAll() <-chan *entity.AdapterMessage { return s.catchAll }

// Close tears the session down, aggregating every failure it hits along the
// way rather than stopping at the first: a failed disconnect request should
// never prevent the transport from being closed underneath it.
func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = multierr.Append(err, s.simpleRequest(ctx, "disconnect", nil))
		err = multierr.Append(err, s.transport.Close())
		close(s.doneC)
	})
	return err
}
