// Package translator implements the command router: the business logic
// that accepts client-protocol commands, sequences adapter startup, and
// dispatches steady-state commands to their adapter-side counterparts.
package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/uber/dbg-bridge/src/bridge/controller/breakpoint"
	"github.com/uber/dbg-bridge/src/bridge/controller/thread"
	"github.com/uber/dbg-bridge/src/bridge/entity"
	"github.com/uber/dbg-bridge/src/bridge/gateway/adapter"
	"github.com/uber/dbg-bridge/src/bridge/gateway/clientcallback"
	"github.com/uber/dbg-bridge/src/bridge/gateway/filecache"
	"github.com/uber/dbg-bridge/src/bridge/mapper"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
)

// Mode is how the adapter child is started.
type Mode string

const (
	ModeLaunch Mode = "launch"
	ModeAttach Mode = "attach"
)

// Config is supplied at session construction: which adapter to drive and
// the arguments to hand it verbatim on launch/attach.
type Config struct {
	Kind adapter.Kind
	Mode Mode
	Args interface{}
}

type bufferedBreakpoint struct {
	clientID    int
	path        string
	adapterLine int
	condition   string
	record      *entity.BreakpointRecord
}

// queuedCommand is one command sitting in the router's dispatch mailbox.
type queuedCommand struct {
	ctx context.Context
	cmd entity.ClientCommand
}

// mailboxCapacity bounds how many commands can be queued ahead of the
// router's single consumer before Dispatch blocks its caller.
const mailboxCapacity = 128

// Router is the per-session command dispatcher.
type Router struct {
	cfg     Config
	session adapter.Session
	ledger  *breakpoint.Ledger
	threads *thread.Registry
	files   filecache.FileCache
	sink    clientcallback.Sink
	logger  *zap.SugaredLogger

	mu              sync.Mutex
	flags           entity.SessionFlags
	started         bool
	bufferedBPs     []*bufferedBreakpoint
	exceptionCancel context.CancelFunc
	onStarted       func()

	cmdC     chan queuedCommand
	stopC    chan struct{}
	stopOnce sync.Once
}

// Option customizes a Router at construction.
type Option func(*Router)

// WithOnStarted registers a callback fired once the startup sequence (the
// first Debugger.resume) has finished. The caller uses this to start the
// event translator's Run loop only after the router has consumed the
// adapter's first Initialized event itself, avoiding a race between the two
// for that one event.
func WithOnStarted(fn func()) Option {
	return func(r *Router) { r.onStarted = fn }
}

// New builds a Router bound to one adapter session and its collaborators.
// It starts the router's single dispatch-mailbox consumer immediately, so
// commands can be queued as soon as New returns.
func New(cfg Config, session adapter.Session, ledger *breakpoint.Ledger, threads *thread.Registry, files filecache.FileCache, sink clientcallback.Sink, logger *zap.SugaredLogger, opts ...Option) *Router {
	r := &Router{
		cfg:     cfg,
		session: session,
		ledger:  ledger,
		threads: threads,
		files:   files,
		sink:    sink,
		logger:  logger,
		cmdC:    make(chan queuedCommand, mailboxCapacity),
		stopC:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.consumeLoop()
	return r
}

// Dispatch enqueues cmd onto the router's mailbox. Concurrent callers'
// commands are admitted for processing in the order they're enqueued here,
// regardless of how their own goroutines are scheduled — the ordering
// guarantee this makes possible depends on callers invoking Dispatch
// sequentially themselves (e.g. from a single per-connection reader).
// Dispatch never returns an error to the caller: every failure becomes a
// client-visible error response.
func (r *Router) Dispatch(ctx context.Context, cmd entity.ClientCommand) {
	select {
	case <-r.stopC:
		r.respondError(cmd.ID, "session has ended")
		return
	default:
	}
	select {
	case r.cmdC <- queuedCommand{ctx: ctx, cmd: cmd}:
	case <-r.stopC:
		r.respondError(cmd.ID, "session has ended")
	}
}

// Stop terminates the dispatch mailbox's consumer. Idempotent.
func (r *Router) Stop() {
	r.stopOnce.Do(func() { close(r.stopC) })
}

// consumeLoop is the router's single dispatch-mailbox consumer: it admits
// commands strictly in arrival order, which is what lets startup-phase
// state transitions (buffering a breakpoint, claiming the buffered set on
// resume) stay correctly ordered relative to each other without their own
// locking discipline needing to enforce it.
func (r *Router) consumeLoop() {
	for {
		select {
		case qc, ok := <-r.cmdC:
			if !ok {
				return
			}
			r.admit(qc.ctx, qc.cmd)
		case <-r.stopC:
			return
		}
	}
}

// admit runs the ordering-sensitive part of one command's dispatch
// synchronously, on the mailbox consumer goroutine, then — for anything
// that isn't fully handled here — hands the rest off to its own goroutine
// so a slow adapter round trip never delays the next queued command's turn.
func (r *Router) admit(ctx context.Context, cmd entity.ClientCommand) {
	defer r.recoverInto(cmd)

	r.mu.Lock()
	started := r.started
	r.mu.Unlock()

	if !started && r.dispatchStartup(ctx, cmd) {
		return
	}

	go func() {
		defer r.recoverInto(cmd)
		r.dispatchSteadyState(ctx, cmd)
	}()
}

func (r *Router) recoverInto(cmd entity.ClientCommand) {
	if rec := recover(); rec != nil {
		r.respondError(cmd.ID, fmt.Sprintf("panic in handler for %s: %v", cmd.Method, rec))
	}
}

// dispatchStartup handles the pre-resume buffering phase. Returns true if
// the command was fully handled here.
func (r *Router) dispatchStartup(ctx context.Context, cmd entity.ClientCommand) bool {
	switch cmd.Method {
	case "Debugger.setBreakpointByUrl":
		r.bufferBreakpoint(cmd)
		return true

	case "Debugger.setPauseOnExceptions":
		r.updateExceptionFiltersLocally(cmd)
		r.respondEmpty(cmd.ID)
		return true

	case "Debugger.setDebuggerSettings", "Runtime.enable":
		r.respondEmpty(cmd.ID)
		return true

	case "Debugger.enable":
		r.respondEmpty(cmd.ID)
		r.sink.SendMessage(clientcallback.WireMessage{Event: &entity.ClientEvent{
			Method: "Debugger.paused",
			Params: map[string]interface{}{"callFrames": []interface{}{}, "reason": "initial break", "data": map[string]interface{}{}},
		}})
		return true

	case "Debugger.resume":
		r.beginStartupSequence(ctx, cmd)
		return true
	}
	return false
}

// beginStartupSequence claims the buffered breakpoint set and flips started
// synchronously, on the mailbox consumer goroutine: this must happen before
// the next queued command is admitted, or a setBreakpointByUrl command
// dispatched earlier than this resume could still be sitting unclaimed in
// bufferedBPs when a later command reads it. The rest of the sequence
// blocks on adapter round trips, so it continues off the mailbox.
func (r *Router) beginStartupSequence(ctx context.Context, cmd entity.ClientCommand) {
	r.mu.Lock()
	r.started = true
	mode := r.cfg.Mode
	buffered := r.bufferedBPs
	r.bufferedBPs = nil
	r.mu.Unlock()

	go func() {
		defer r.recoverInto(cmd)
		r.runStartupSequence(ctx, cmd, mode, buffered)
	}()
}

func (r *Router) bufferBreakpoint(cmd entity.ClientCommand) {
	var params struct {
		URL        string `json:"url"`
		LineNumber int    `json:"lineNumber"`
		Condition  string `json:"condition"`
	}
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	r.mu.Lock()
	r.bufferedBPs = append(r.bufferedBPs, &bufferedBreakpoint{
		clientID:    cmd.ID,
		path:        params.URL,
		adapterLine: mapper.ClientToAdapterLine(params.LineNumber),
		condition:   params.Condition,
	})
	r.mu.Unlock()
}

func (r *Router) updateExceptionFiltersLocally(cmd entity.ClientCommand) {
	var params struct {
		State string `json:"state"`
	}
	_ = json.Unmarshal(cmd.Params, &params)
	r.mu.Lock()
	r.flags.ExceptionFilters = stateToFilters(params.State)
	r.mu.Unlock()
}

// ExceptionFilters returns the client's current pause-on-exception
// selection. The event translator consults this after an adapter restart to
// re-send setExceptionBreakpoints without the router exposing its flags
// directly.
func (r *Router) ExceptionFilters() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.flags.ExceptionFilters))
	copy(out, r.flags.ExceptionFilters)
	return out
}

func stateToFilters(state string) []string {
	switch state {
	case "uncaught":
		return []string{"uncaught"}
	case "all":
		return []string{"all"}
	default:
		return []string{}
	}
}

// runStartupSequence implements the launch/attach → initialized → bulk
// breakpoint sync → exception filters → configurationDone chain. started
// and buffered are already claimed by beginStartupSequence before this runs.
func (r *Router) runStartupSequence(ctx context.Context, cmd entity.ClientCommand, mode Mode, buffered []*bufferedBreakpoint) {
	var startErr error
	if mode == ModeAttach {
		startErr = r.session.Attach(ctx, r.cfg.Args)
	} else {
		startErr = r.session.Launch(ctx, r.cfg.Args)
	}
	if startErr != nil {
		r.sink.Notify(clientcallback.Notification{
			Level:   clientcallback.NotificationError,
			Message: fmt.Sprintf("Failed to %s the debugger!", mode),
		})
		r.respondError(cmd.ID, startErr.Error())
		return
	}

	if !r.session.IsReadyForBreakpoints() {
		select {
		case <-r.session.Initialized():
		case <-ctx.Done():
			r.respondError(cmd.ID, ctx.Err().Error())
			return
		}
	}

	r.syncBufferedBreakpoints(ctx, buffered)

	r.mu.Lock()
	filters := r.flags.ExceptionFilters
	r.mu.Unlock()
	if err := r.session.SetExceptionBreakpoints(ctx, filters); err != nil {
		r.logger.Warnw("initial exception breakpoint sync failed", "error", err)
	}

	if r.session.Capabilities().SupportsConfigurationDoneRequest {
		if err := r.session.ConfigurationDone(ctx); err != nil {
			r.logger.Warnw("configurationDone failed", "error", err)
		}
	}

	r.mu.Lock()
	r.flags.ConfigDoneSent = true
	onStarted := r.onStarted
	r.mu.Unlock()

	r.respondEmpty(cmd.ID)

	if onStarted != nil {
		onStarted()
	}
}

func (r *Router) syncBufferedBreakpoints(ctx context.Context, buffered []*bufferedBreakpoint) {
	byPath := make(map[string][]*bufferedBreakpoint)
	var order []string
	for _, bp := range buffered {
		if _, ok := byPath[bp.path]; !ok {
			order = append(order, bp.path)
		}
		bp.record = r.ledger.Stage(bp.path, bp.adapterLine, bp.condition)
		byPath[bp.path] = append(byPath[bp.path], bp)
	}

	for _, path := range order {
		group := byPath[path]
		if err := r.ledger.SyncFile(ctx, path); err != nil {
			for _, bp := range group {
				r.respondError(bp.clientID, err.Error())
			}
			continue
		}
		for _, bp := range group {
			r.respondBreakpointStaged(bp.clientID, bp.record)
		}
	}
}

func (r *Router) respondBreakpointStaged(clientCmdID int, rec *entity.BreakpointRecord) {
	r.sink.SendMessage(clientcallback.WireMessage{Response: &entity.ClientResponse{
		ID: clientCmdID,
		Result: map[string]interface{}{
			"breakpointId": rec.ID,
			"locations": []map[string]interface{}{{
				"scriptId":     rec.SourcePath,
				"lineNumber":   mapper.AdapterToClientLine(rec.Line),
				"columnNumber": 0,
			}},
			"resolved": rec.Resolved,
		},
	}})
}

// dispatchSteadyState is the post-resume dispatch table.
func (r *Router) dispatchSteadyState(ctx context.Context, cmd entity.ClientCommand) {
	switch cmd.Method {
	case "Debugger.pause":
		r.handlePause(ctx, cmd)
	case "Debugger.resume":
		r.handleResume(ctx, cmd)
	case "Debugger.selectThread":
		r.handleSelectThread(cmd)
	case "Debugger.stepOver":
		r.handleStep(ctx, cmd, r.session.Next, "step over")
	case "Debugger.stepInto":
		r.handleStep(ctx, cmd, r.session.StepIn, "step into")
	case "Debugger.stepOut":
		r.handleStep(ctx, cmd, r.session.StepOut, "step out")
	case "Debugger.continueToLocation":
		r.handleContinueToLocation(ctx, cmd)
	case "Debugger.setBreakpointByUrl":
		r.handleSetBreakpointByURLSteady(ctx, cmd)
	case "Debugger.removeBreakpoint":
		r.handleRemoveBreakpoint(ctx, cmd)
	case "Debugger.setPauseOnExceptions":
		r.handleSetPauseOnExceptionsSteady(ctx, cmd)
	case "Debugger.getScriptSource":
		r.handleGetScriptSource(ctx, cmd)
	case "Debugger.getThreadStack":
		r.handleGetThreadStack(ctx, cmd)
	case "Debugger.evaluateOnCallFrame":
		r.handleEvaluateOnCallFrame(ctx, cmd)
	case "Runtime.evaluate":
		r.handleRuntimeEvaluate(ctx, cmd)
	case "Debugger.setVariableValue":
		r.handleSetVariableValue(ctx, cmd)
	case "Runtime.getProperties":
		r.handleGetProperties(ctx, cmd)
	case "Debugger.completions":
		r.handleCompletions(ctx, cmd)
	default:
		r.respondError(cmd.ID, fmt.Sprintf("Unknown command: %s", cmd.Method))
	}
}

func (r *Router) activeOrAnyKnown() int {
	if id, ok := r.threads.Active(); ok {
		return id
	}
	if ids := r.threads.KnownIDs(); len(ids) > 0 {
		return ids[0]
	}
	return -1
}

func (r *Router) handlePause(ctx context.Context, cmd entity.ClientCommand) {
	id := r.activeOrAnyKnown()
	if err := r.session.Pause(ctx, id); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	r.threads.ClearActive()
	r.respondEmpty(cmd.ID)
}

func (r *Router) handleResume(ctx context.Context, cmd entity.ClientCommand) {
	id := -1
	if active, ok := r.threads.Active(); ok {
		id = active
	}
	if err := r.session.Continue(ctx, id); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	r.respondEmpty(cmd.ID)
}

func (r *Router) handleSelectThread(cmd entity.ClientCommand) {
	var params struct {
		ThreadID int `json:"threadId"`
	}
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	r.threads.SetActive(params.ThreadID)
	r.respondEmpty(cmd.ID)
}

func (r *Router) handleStep(ctx context.Context, cmd entity.ClientCommand, step func(context.Context, int) error, label string) {
	id, ok := r.threads.Active()
	if !ok {
		r.respondError(cmd.ID, fmt.Sprintf("No paused thread to %s", label))
		return
	}
	if err := step(ctx, id); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	r.respondEmpty(cmd.ID)
}

func (r *Router) handleContinueToLocation(ctx context.Context, cmd entity.ClientCommand) {
	var params struct {
		Location struct {
			ScriptID     string `json:"scriptId"`
			LineNumber   int    `json:"lineNumber"`
			ColumnNumber int    `json:"columnNumber"`
		} `json:"location"`
	}
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	r.files.Register(params.Location.ScriptID, uri.File(params.Location.ScriptID))

	column := params.Location.ColumnNumber
	if column <= 0 {
		column = 1
	} else {
		column = mapper.ClientToAdapterColumn(column)
	}
	line := mapper.ClientToAdapterLine(params.Location.LineNumber)
	if err := r.session.ContinueToLocation(ctx, params.Location.ScriptID, line, column); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	r.respondEmpty(cmd.ID)
}

func (r *Router) handleSetBreakpointByURLSteady(ctx context.Context, cmd entity.ClientCommand) {
	var params struct {
		URL        string `json:"url"`
		LineNumber int    `json:"lineNumber"`
		Condition  string `json:"condition"`
	}
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	rec := r.ledger.Stage(params.URL, mapper.ClientToAdapterLine(params.LineNumber), params.Condition)
	if err := r.ledger.SyncFile(ctx, params.URL); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	r.respondBreakpointStaged(cmd.ID, rec)
}

func (r *Router) handleRemoveBreakpoint(ctx context.Context, cmd entity.ClientCommand) {
	var params struct {
		BreakpointID string `json:"breakpointId"`
	}
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	if err := r.ledger.Remove(ctx, params.BreakpointID); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	r.respondEmpty(cmd.ID)
}

func (r *Router) handleSetPauseOnExceptionsSteady(ctx context.Context, cmd entity.ClientCommand) {
	var params struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	filters := stateToFilters(params.State)

	r.mu.Lock()
	r.flags.ExceptionFilters = filters
	if r.exceptionCancel != nil {
		r.exceptionCancel()
	}
	syncCtx, cancel := context.WithCancel(ctx)
	r.exceptionCancel = cancel
	configDoneSent := r.flags.ConfigDoneSent
	r.mu.Unlock()

	r.respondEmpty(cmd.ID)

	if !configDoneSent {
		return
	}
	go func() {
		if err := r.session.SetExceptionBreakpoints(syncCtx, filters); err != nil && syncCtx.Err() == nil {
			r.logger.Warnw("setExceptionBreakpoints failed", "error", err)
		}
	}()
}

func (r *Router) handleGetScriptSource(ctx context.Context, cmd entity.ClientCommand) {
	var params struct {
		ScriptID string `json:"scriptId"`
	}
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	source, err := r.files.Source(ctx, params.ScriptID)
	if err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	r.sink.SendMessage(clientcallback.WireMessage{Response: &entity.ClientResponse{
		ID:     cmd.ID,
		Result: map[string]interface{}{"scriptSource": source},
	}})
}

func (r *Router) handleGetThreadStack(ctx context.Context, cmd entity.ClientCommand) {
	var params struct {
		ThreadID int `json:"threadId"`
	}
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	info, ok := r.threads.Get(params.ThreadID)
	if !ok || info.State != entity.ThreadStatePaused {
		r.respondError(cmd.ID, "No paused thread to fetch a stack for")
		return
	}
	if !info.CallStackLoaded {
		frames, err := r.session.StackTrace(ctx, params.ThreadID, 0)
		if err != nil {
			r.logger.Warnw("stack fetch failed, returning empty", "error", err)
			frames = nil
		}
		r.threads.MarkPaused(params.ThreadID, info.StopReason, frames, true)
		info, _ = r.threads.Get(params.ThreadID)
	}
	r.sink.SendMessage(clientcallback.WireMessage{Response: &entity.ClientResponse{
		ID:     cmd.ID,
		Result: map[string]interface{}{"callFrames": translateFramesForResponse(info.CallFrames)},
	}})
}

func translateFramesForResponse(frames []entity.StackFrame) []map[string]interface{} {
	out := make([]map[string]interface{}, len(frames))
	for i, f := range frames {
		path := f.SourcePath
		if !f.HasSource {
			path = "N/A"
		}
		out[i] = map[string]interface{}{
			"callFrameId":  strconv.Itoa(f.ID),
			"functionName": f.Name,
			"location": map[string]interface{}{
				"scriptId":     path,
				"lineNumber":   mapper.AdapterToClientLine(f.Line),
				"columnNumber": mapper.AdapterToClientColumn(f.Column),
			},
			"hasSource": f.HasSource,
		}
	}
	return out
}

func (r *Router) handleEvaluateOnCallFrame(ctx context.Context, cmd entity.ClientCommand) {
	var params struct {
		CallFrameID string `json:"callFrameId"`
		Expression  string `json:"expression"`
	}
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	frameID, err := strconv.Atoi(params.CallFrameID)
	if err != nil {
		r.respondError(cmd.ID, "invalid callFrameId")
		return
	}
	res, err := r.session.Evaluate(ctx, params.Expression, &frameID)
	if err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	r.respondEvaluate(cmd.ID, res)
}

func (r *Router) handleRuntimeEvaluate(ctx context.Context, cmd entity.ClientCommand) {
	var params struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	res, err := r.session.Evaluate(ctx, params.Expression, nil)
	if err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	r.respondEvaluate(cmd.ID, res)
}

func (r *Router) respondEvaluate(cmdID int, res adapter.EvaluateResult) {
	r.sink.SendMessage(clientcallback.WireMessage{Response: &entity.ClientResponse{
		ID: cmdID,
		Result: map[string]interface{}{
			"result": map[string]interface{}{
				"type":        res.Type,
				"value":       res.Result,
				"description": res.Result,
				"objectId":    strconv.Itoa(res.VariablesReference),
			},
		},
	}})
}

func (r *Router) handleSetVariableValue(ctx context.Context, cmd entity.ClientCommand) {
	var params struct {
		CallFrameID          string `json:"callFrameId"`
		VariableName         string `json:"variableName"`
		NewValue             string `json:"newValue"`
	}
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	ref, err := strconv.Atoi(params.CallFrameID)
	if err != nil {
		r.respondError(cmd.ID, "invalid callFrameId")
		return
	}
	if _, err := r.session.SetVariable(ctx, ref, params.VariableName, params.NewValue); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	r.respondEmpty(cmd.ID)
}

func (r *Router) handleGetProperties(ctx context.Context, cmd entity.ClientCommand) {
	var params struct {
		ObjectID string `json:"objectId"`
	}
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	ref, err := strconv.Atoi(params.ObjectID)
	if err != nil {
		r.respondError(cmd.ID, "invalid objectId")
		return
	}
	vars, err := r.session.Variables(ctx, ref)
	if err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	descriptors := make([]map[string]interface{}, len(vars))
	for i, v := range vars {
		descriptors[i] = map[string]interface{}{
			"name": v.Name,
			"value": map[string]interface{}{
				"type":        v.Type,
				"value":       v.Value,
				"description": v.Value,
				"objectId":    strconv.Itoa(v.VariablesReference),
			},
		}
	}
	r.sink.SendMessage(clientcallback.WireMessage{Response: &entity.ClientResponse{
		ID:     cmd.ID,
		Result: map[string]interface{}{"result": descriptors},
	}})
}

func (r *Router) handleCompletions(ctx context.Context, cmd entity.ClientCommand) {
	if !r.session.Capabilities().SupportsCompletionsRequest {
		r.sink.SendMessage(clientcallback.WireMessage{Response: &entity.ClientResponse{
			ID:     cmd.ID,
			Result: map[string]interface{}{"targets": []interface{}{}},
		}})
		return
	}
	var params struct {
		CallFrameID string `json:"callFrameId"`
		Text        string `json:"text"`
		Column      int    `json:"column"`
	}
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	frameID, _ := strconv.Atoi(params.CallFrameID)
	labels, err := r.session.Completions(ctx, frameID, params.Text, params.Column)
	if err != nil {
		r.respondError(cmd.ID, err.Error())
		return
	}
	targets := make([]map[string]interface{}, len(labels))
	for i, l := range labels {
		targets[i] = map[string]interface{}{"label": l}
	}
	r.sink.SendMessage(clientcallback.WireMessage{Response: &entity.ClientResponse{
		ID:     cmd.ID,
		Result: map[string]interface{}{"targets": targets},
	}})
}

func (r *Router) respondEmpty(cmdID int) {
	r.sink.SendMessage(clientcallback.WireMessage{Response: &entity.ClientResponse{ID: cmdID, Result: map[string]interface{}{}}})
}

func (r *Router) respondError(cmdID int, message string) {
	r.sink.SendMessage(clientcallback.WireMessage{Response: &entity.ClientResponse{
		ID:    cmdID,
		Error: &entity.ClientResponseError{Message: message},
	}})
}
