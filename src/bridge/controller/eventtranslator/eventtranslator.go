// Package eventtranslator turns adapter-side events (stopped, continued,
// output, thread, breakpoint, initialized) into client-protocol events,
// fanning out per-thread stack fetches and cancelling them when a race with
// a `continued` event makes the fetch moot.
package eventtranslator

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/uber/dbg-bridge/src/bridge/controller/breakpoint"
	"github.com/uber/dbg-bridge/src/bridge/controller/outputlog"
	"github.com/uber/dbg-bridge/src/bridge/controller/thread"
	"github.com/uber/dbg-bridge/src/bridge/entity"
	"github.com/uber/dbg-bridge/src/bridge/gateway/adapter"
	"github.com/uber/dbg-bridge/src/bridge/gateway/clientcallback"
	"github.com/uber/dbg-bridge/src/bridge/internal/clock"
	"github.com/uber/dbg-bridge/src/bridge/mapper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var outputCategoryMap = map[string]string{
	"console":  "debug",
	"info":     "info",
	"log":      "log",
	"warning":  "warning",
	"error":    "error",
	"debug":    "debug",
	"stderr":   "error",
	"stdout":   "log",
	"success":  "success",
}

const categoryNotification = "nuclide_notification"

// terminateFlushDelay is how long observeSessionEnd waits after a
// `terminated` event before treating the session as over, so trailing
// output already in flight has a chance to arrive and be forwarded.
const terminateFlushDelay = time.Second

// outputBacklogHotLines is how many recent output lines the backlog keeps
// uncompressed for a late subscriber's replay.
const outputBacklogHotLines = 200

// Translator subscribes to one adapter.Session's event streams and emits
// client-protocol events/notifications/output through a Sink. Run drives it
// until ctx is cancelled or the adapter exits.
type Translator struct {
	adapterSession adapter.Session
	ledger         *breakpoint.Ledger
	threads        *thread.Registry
	sink           clientcallback.Sink
	logger         *zap.SugaredLogger
	isPython       bool

	mu             sync.Mutex
	inFlightCancel map[int]context.CancelFunc

	wg sync.WaitGroup

	exceptionFilters func() []string
	onSessionEnd     func()
	clk              clock.Clock
	backlog          *outputlog.Backlog
}

// Option customizes a Translator at construction.
type Option func(*Translator)

// WithExceptionFilters wires in the router's current exception filter
// selection, consulted on a restart (a second Initialized event) so it can
// be re-sent to the fresh adapter process alongside the breakpoint resync.
func WithExceptionFilters(fn func() []string) Option {
	return func(t *Translator) { t.exceptionFilters = fn }
}

// WithOnSessionEnd registers a callback fired once, the first time any of
// the adapter's three exit-signaling streams (Exited, Terminated,
// AdapterExited) fires. The caller uses this to trigger session disposal.
func WithOnSessionEnd(fn func()) Option {
	return func(t *Translator) { t.onSessionEnd = fn }
}

// WithClock overrides the wall clock used for the terminate-flush delay.
// Tests inject a fake clock; production leaves this at its default.
func WithClock(c clock.Clock) Option {
	return func(t *Translator) { t.clk = c }
}

// New builds a Translator. When session.Kind() is KindPython it enables the
// Python adapter's allThreadsStopped underreporting workaround.
func New(session adapter.Session, ledger *breakpoint.Ledger, threads *thread.Registry, sink clientcallback.Sink, logger *zap.SugaredLogger, opts ...Option) *Translator {
	backlog, err := outputlog.New(outputBacklogHotLines)
	if err != nil {
		logger.Warnw("output backlog disabled", "error", err)
	}
	t := &Translator{
		adapterSession: session,
		ledger:         ledger,
		threads:        threads,
		sink:           sink,
		logger:         logger,
		isPython:       session.Kind() == adapter.KindPython,
		inFlightCancel: make(map[int]context.CancelFunc),
		clk:            clock.New(),
		backlog:        backlog,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run drains adapter events until ctx is done or the adapter's own streams
// close. Intended to run in its own goroutine for the life of the session.
func (t *Translator) Run(ctx context.Context) {
	defer t.wg.Wait()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.observeSessionEnd(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-t.adapterSession.Thread():
			if !ok {
				return
			}
			t.onThread(ctx, evt)
		case evt, ok := <-t.adapterSession.Stopped():
			if !ok {
				return
			}
			t.onStopped(ctx, evt)
		case evt, ok := <-t.adapterSession.Continued():
			if !ok {
				return
			}
			t.onContinued(evt)
		case evt, ok := <-t.adapterSession.Output():
			if !ok {
				return
			}
			t.onOutput(evt)
		case evt, ok := <-t.adapterSession.Breakpoint():
			if !ok {
				return
			}
			t.onBreakpoint(evt)
		case _, ok := <-t.adapterSession.Initialized():
			if !ok {
				return
			}
			t.onReinitialized(ctx)
		}
	}
}

// observeSessionEnd multiplexes the adapter's three exit-signaling streams
// into one disposal trigger. Exited and AdapterExited end the session
// immediately; Terminated waits terminateFlushDelay first, since a
// well-behaved adapter can still emit a few more output events after it.
func (t *Translator) observeSessionEnd(ctx context.Context) {
	var flush <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return

		case _, ok := <-t.adapterSession.Exited():
			if !ok {
				return
			}
			t.signalSessionEnd()
			return

		case _, ok := <-t.adapterSession.AdapterExited():
			if !ok {
				return
			}
			t.signalSessionEnd()
			return

		case _, ok := <-t.adapterSession.Terminated():
			if !ok {
				return
			}
			flush = t.clk.After(terminateFlushDelay)

		case <-flush:
			t.signalSessionEnd()
			return
		}
	}
}

func (t *Translator) signalSessionEnd() {
	if t.onSessionEnd != nil {
		t.onSessionEnd()
	}
}

func (t *Translator) onThread(ctx context.Context, evt adapter.ThreadEvent) {
	switch evt.Reason {
	case "started":
		t.threads.Upsert([]int{evt.ThreadID}, entity.ThreadStateRunning)
	case "exited":
		t.threads.Remove(evt.ThreadID)
	}
	t.emitThreadsUpdated()
}

// pendingStackFetch is a stack-trace fetch whose cancellation is already
// registered in inFlightCancel by the time onStopped returns control to
// Run's select loop, so a Continued() event racing the fetch is guaranteed
// to see it and can cancel it before the paused emission goes out.
type pendingStackFetch struct {
	id     int
	ctx    context.Context
	levels int
	full   bool
}

func (t *Translator) onStopped(ctx context.Context, evt adapter.StoppedEvent) {
	allThreadsStopped := evt.AllThreadsStopped
	if t.isPython && evt.Reason == "user request" {
		allThreadsStopped = true
	}

	stoppedIDs := t.computeStoppedIDs(evt, allThreadsStopped)
	if len(stoppedIDs) == 0 {
		if _, hasActive := t.threads.Active(); !hasActive {
			t.emitAsyncBreak()
		}
		return
	}

	if _, ok := t.threads.Active(); !ok {
		t.threads.SetActive(stoppedIDs[0])
	}
	activeID, _ := t.threads.Active()

	caps := t.adapterSession.Capabilities()

	// Registering every cancel func happens synchronously, here, before Run
	// goes back to select: a Continued() for one of these ids can never
	// arrive before its cancel func exists to be found.
	pending := make([]pendingStackFetch, len(stoppedIDs))
	for i, id := range stoppedIDs {
		stopCtx, cancel := context.WithCancel(ctx)
		t.registerCancel(id, cancel)

		levels := 0
		full := true
		if id != activeID && caps.SupportsDelayedStackTraceLoading {
			levels = 1
			full = false
		}
		pending[i] = pendingStackFetch{id: id, ctx: stopCtx, levels: levels, full: full}
	}

	prevActive, hadPrevious := t.threads.ActivePrevious()

	// The actual fetching blocks on adapter round trips, so it runs off of
	// Run's goroutine: Run must stay free to receive a Continued() for one
	// of these threads and cancel its fetch before this reaches the point
	// of marking it paused or emitting Debugger.paused for it.
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.resolveStop(pending, evt.Reason, activeID, prevActive, hadPrevious)
	}()
}

func (t *Translator) resolveStop(pending []pendingStackFetch, reason string, activeID int, prevActive int, hadPrevious bool) {
	type fetched struct {
		id        int
		frames    []entity.StackFrame
		full      bool
		cancelled bool
	}
	results := make([]fetched, len(pending))

	group := new(errgroup.Group)
	for i, p := range pending {
		i, p := i, p
		group.Go(func() error {
			defer t.clearCancel(p.id)

			frames, err := t.adapterSession.StackTrace(p.ctx, p.id, p.levels)
			if err != nil {
				if p.ctx.Err() != nil {
					results[i] = fetched{id: p.id, cancelled: true}
					return nil // cancelled by a matching continued event
				}
				t.logger.Warnw("stack fetch failed, treating as empty", "thread", p.id, "error", err)
				frames = nil
			}
			results[i] = fetched{id: p.id, frames: frames, full: p.full}
			return nil
		})
	}
	_ = group.Wait()

	activeCancelled := false
	for _, r := range results {
		if r.cancelled {
			if r.id == activeID {
				activeCancelled = true
			}
			continue
		}
		t.threads.MarkPaused(r.id, reason, r.frames, r.full && r.id == activeID)
	}

	if !activeCancelled {
		t.emitPausedForActive(activeID, reason, prevActive, hadPrevious)
		t.emitThreadsUpdatedWithStop(activeID)
	}
}

func (t *Translator) computeStoppedIDs(evt adapter.StoppedEvent, allThreadsStopped bool) []int {
	seen := make(map[int]bool)
	var ids []int
	if evt.HasThreadID {
		ids = append(ids, evt.ThreadID)
		seen[evt.ThreadID] = true
	}
	if allThreadsStopped {
		for _, id := range t.threads.KnownIDs() {
			if seen[id] {
				continue
			}
			info, ok := t.threads.Get(id)
			if ok && info.State == entity.ThreadStatePaused {
				continue
			}
			ids = append(ids, id)
			seen[id] = true
		}
	}
	return ids
}

func (t *Translator) emitAsyncBreak() {
	t.sink.SendMessage(clientcallback.WireMessage{Event: &entity.ClientEvent{
		Method: "Debugger.paused",
		Params: map[string]interface{}{"callFrames": []interface{}{}, "reason": "Async-Break", "stopThreadId": -1},
	}})
	t.emitThreadsUpdatedWithStop(-1)
}

func (t *Translator) emitPausedForActive(activeID int, reason string, prevActive int, hadPrevious bool) {
	info, _ := t.threads.Get(activeID)

	var switchMsg *string
	if hadPrevious && prevActive != activeID {
		msg := "Active thread switched from thread #" + strconv.Itoa(prevActive) + " to thread #" + strconv.Itoa(activeID)
		switchMsg = &msg
	}

	callFrames := translateFrames(info.CallFrames)
	params := map[string]interface{}{
		"callFrames":   callFrames,
		"reason":       reason,
		"stopThreadId": activeID,
	}
	if switchMsg != nil {
		params["threadSwitchMessage"] = *switchMsg
	}
	t.sink.SendMessage(clientcallback.WireMessage{Event: &entity.ClientEvent{Method: "Debugger.paused", Params: params}})
}

func translateFrames(frames []entity.StackFrame) []map[string]interface{} {
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

func (t *Translator) emitThreadsUpdated() {
	t.emitThreadsUpdatedWithStop(-1)
}

func (t *Translator) emitThreadsUpdatedWithStop(stopThreadID int) {
	if stopThreadID < 0 {
		if id, ok := t.threads.Active(); ok {
			stopThreadID = id
		} else {
			stopThreadID = -1
		}
	}
	summaries := t.threads.Describe()
	threads := make([]map[string]interface{}, len(summaries))
	for i, s := range summaries {
		threads[i] = map[string]interface{}{
			"id":              s.ID,
			"name":            s.Name,
			"address":         s.Address,
			"sourcePath":      s.SourcePath,
			"line":            s.Line,
			"column":          s.Column,
			"stopReason":      s.StopReason,
			"hasSource":       s.HasSource,
			"owningProcessId": s.OwningProcessID,
		}
	}
	t.sink.SendMessage(clientcallback.WireMessage{Event: &entity.ClientEvent{
		Method: "Debugger.threadsUpdated",
		Params: map[string]interface{}{"threads": threads, "stopThreadId": stopThreadID},
	}})
}

func (t *Translator) onContinued(evt adapter.ContinuedEvent) {
	allContinued := evt.AllThreadsContinued || !evt.HasThreadID || evt.ThreadID < 0

	if allContinued {
		for _, id := range t.threads.KnownIDs() {
			t.cancelIfInFlight(id)
		}
		t.threads.Upsert(t.threads.KnownIDs(), entity.ThreadStateRunning)
		t.threads.ClearActive()
	} else {
		t.cancelIfInFlight(evt.ThreadID)
		if active, ok := t.threads.Active(); ok && active == evt.ThreadID {
			t.threads.ClearActive()
		}
		t.threads.Upsert([]int{evt.ThreadID}, entity.ThreadStateRunning)
	}

	t.sink.SendMessage(clientcallback.WireMessage{Event: &entity.ClientEvent{Method: "Debugger.resumed", Params: map[string]interface{}{}}})
}

func (t *Translator) onOutput(evt adapter.OutputEvent) {
	if evt.Category == categoryNotification {
		var data struct {
			Type string `json:"type"`
		}
		if len(evt.Data) > 0 {
			_ = json.Unmarshal(evt.Data, &data)
		}
		t.sink.Notify(clientcallback.Notification{Level: clientcallback.NotificationLevel(data.Type), Message: evt.Output})
		return
	}

	category, ok := outputCategoryMap[evt.Category]
	if !ok {
		category = evt.Category
	}
	text := trimTrailingNewline(evt.Output)
	if t.backlog != nil {
		t.backlog.Append(category, text)
	}
	t.sink.Output(clientcallback.OutputLine{Category: category, Text: text})
}

// ReplayBacklog resends every buffered output line to the sink, in original
// append order, for a client that attaches after output has already been
// produced. A no-op if the backlog failed to construct.
func (t *Translator) ReplayBacklog() error {
	if t.backlog == nil {
		return nil
	}
	lines, err := t.backlog.Lines()
	if err != nil {
		return err
	}
	for _, line := range lines {
		category, text := splitBacklogLine(line)
		t.sink.Output(clientcallback.OutputLine{Category: category, Text: text})
	}
	return nil
}

func splitBacklogLine(line string) (category, text string) {
	if i := strings.IndexByte(line, '\t'); i >= 0 {
		return line[:i], line[i+1:]
	}
	return "", line
}

// Close releases the output backlog's background goroutines. Safe to call
// even if the backlog failed to construct.
func (t *Translator) Close() {
	if t.backlog != nil {
		t.backlog.Close()
	}
}

func trimTrailingNewline(s string) string {
	if len(s) >= 2 && s[len(s)-2:] == "\r\n" {
		return s[:len(s)-2]
	}
	if len(s) >= 1 && s[len(s)-1] == '\n' {
		return s[:len(s)-1]
	}
	return s
}

func (t *Translator) onBreakpoint(evt adapter.BreakpointEvent) {
	notice := t.ledger.OnAdapterBreakpointEvent(breakpoint.AdapterEvent{
		ID:           evt.ID,
		Verified:     evt.Verified,
		Line:         evt.Line,
		OriginalLine: evt.OriginalLine,
		HitCount:     evt.HitCount,
		SourcePath:   evt.SourcePath,
	})
	if notice == nil {
		return
	}
	t.sink.SendMessage(clientcallback.WireMessage{Event: &entity.ClientEvent{
		Method: notice.Method,
		Params: map[string]interface{}{
			"breakpointId": notice.Record.ID,
			"location": map[string]interface{}{
				"scriptId":     notice.Record.SourcePath,
				"lineNumber":   mapper.AdapterToClientLine(notice.Record.Line),
				"columnNumber": 0,
			},
			"hitCount": notice.Record.HitCount,
		},
	}})
}

// onReinitialized handles a second (or later) `initialized` event, which
// signals the adapter restarted: re-sync every breakpoint and re-run
// configuration. The first initialized event is consumed by startup
// orchestration before Run's loop begins observing this stream.
func (t *Translator) onReinitialized(ctx context.Context) {
	if err := t.ledger.SyncAll(ctx); err != nil {
		t.logger.Warnw("re-syncing breakpoints after adapter restart", "error", err)
	}

	var filters []string
	if t.exceptionFilters != nil {
		filters = t.exceptionFilters()
	}
	if err := t.adapterSession.SetExceptionBreakpoints(ctx, filters); err != nil {
		t.logger.Warnw("re-sending exception filters after adapter restart", "error", err)
	}

	if t.adapterSession.Capabilities().SupportsConfigurationDoneRequest {
		if err := t.adapterSession.ConfigurationDone(ctx); err != nil {
			t.logger.Warnw("re-sending configurationDone after adapter restart", "error", err)
		}
	}
}

func (t *Translator) registerCancel(id int, cancel context.CancelFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlightCancel[id] = cancel
}

func (t *Translator) clearCancel(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlightCancel, id)
}

func (t *Translator) cancelIfInFlight(id int) {
	t.mu.Lock()
	cancel, ok := t.inFlightCancel[id]
	delete(t.inFlightCancel, id)
	t.mu.Unlock()
	if ok {
		cancel()
	}
}

