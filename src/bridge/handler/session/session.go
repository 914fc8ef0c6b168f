// Package session is the front door of one bridge session: it wires a
// freshly spawned adapter transport and a client sink into a full
// controller/translator Router plus controller/eventtranslator Translator
// pair, registers the pair in the session repository, and forwards inbound
// client commands to the router.
package session

import (
	"context"

	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally/v4"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/uber/dbg-bridge/src/bridge/controller/breakpoint"
	"github.com/uber/dbg-bridge/src/bridge/controller/eventtranslator"
	"github.com/uber/dbg-bridge/src/bridge/controller/thread"
	"github.com/uber/dbg-bridge/src/bridge/controller/translator"
	"github.com/uber/dbg-bridge/src/bridge/entity"
	"github.com/uber/dbg-bridge/src/bridge/gateway/adapter"
	"github.com/uber/dbg-bridge/src/bridge/gateway/clientcallback"
	"github.com/uber/dbg-bridge/src/bridge/gateway/filecache"
	"github.com/uber/dbg-bridge/src/bridge/internal/fs"
	reposession "github.com/uber/dbg-bridge/src/bridge/repository/session"
)

// ClientID is sent as the adapter `initialize` request's clientID argument.
const ClientID = "Nuclide"

// Config describes how to bring up one session's adapter child.
type Config struct {
	Kind adapter.Kind
	Mode translator.Mode
	Args interface{}
}

// Manager is the Fx-provided entry point new client connections start
// sessions through.
type Manager struct {
	repo   reposession.Repository
	fs     fs.BridgeFS
	logger *zap.SugaredLogger
	stats  tally.Scope
}

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// Params carries this handler's dependencies through Fx.
type Params struct {
	fx.In

	Repo   reposession.Repository
	FS     fs.BridgeFS
	Logger *zap.SugaredLogger
	Stats  tally.Scope
}

// New builds a session Manager.
func New(p Params) *Manager {
	return &Manager{repo: p.Repo, fs: p.FS, logger: p.Logger, stats: p.Stats}
}

// NewSession brings up one adapter session end to end: it performs the
// adapter `initialize` handshake, wires the breakpoint ledger, thread
// registry, and router, and registers the session so HandleCommand can find
// it. The event translator does not start consuming adapter events until
// the router's own startup sequence has drained the adapter's first
// Initialized event, avoiding a race for that event between the two.
func (m *Manager) NewSession(ctx context.Context, cfg Config, session adapter.Session, sink clientcallback.Sink) (entity.SessionID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return id, err
	}

	if _, err := session.Initialize(ctx, ClientID); err != nil {
		return id, err
	}

	threads := thread.New()
	files := filecache.New(filecache.Params{FS: m.fs, Logger: m.logger})
	ledger := breakpoint.New(breakpointAdapter{session: session}, m.logger)

	etCtx, cancel := context.WithCancel(context.Background())

	// router and handle are assigned below; the closures here only run once
	// Run starts / the adapter signals session end, by which point both are
	// set, so capturing them by reference here is safe despite the
	// construction order.
	var router *translator.Router
	var handle *reposession.Handle
	et := eventtranslator.New(session, ledger, threads, sink, m.logger,
		eventtranslator.WithExceptionFilters(func() []string { return router.ExceptionFilters() }),
		eventtranslator.WithOnSessionEnd(func() {
			if handle != nil {
				_ = handle.Dispose()
			}
			_ = m.repo.Delete(context.Background(), id)
		}),
	)

	router = translator.New(
		translator.Config{Kind: cfg.Kind, Mode: cfg.Mode, Args: cfg.Args},
		session, ledger, threads, files, sink, m.logger,
		translator.WithOnStarted(func() { go et.Run(etCtx) }),
	)

	s := entity.Session{ID: id, AdapterKind: string(cfg.Kind)}
	handle = &reposession.Handle{
		Session:        s,
		Router:         router,
		Translator:     et,
		AdapterSession: session,
		Sink:           sink,
		Cancel:         cancel,
	}
	if err := m.repo.Create(ctx, handle); err != nil {
		cancel()
		return id, err
	}
	m.stats.Counter("sessions_started").Inc(1)
	return id, nil
}

// HandleCommand routes one client command onto its session's dispatch
// mailbox, which preserves arrival order across concurrent callers; the
// router itself decides which commands it can answer synchronously versus
// hand off to their own goroutine.
func (m *Manager) HandleCommand(ctx context.Context, id entity.SessionID, cmd entity.ClientCommand) error {
	h, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	ctx = context.WithValue(ctx, entity.SessionContextKey, id)
	m.stats.Counter("commands_received").Inc(1)
	h.Router.Dispatch(ctx, cmd)
	return nil
}

// EndSession disposes a session: releases the adapter child, cancels the
// event translator, stops the router's dispatch mailbox, and idempotently
// closes the client sink, before dropping the session from the registry. A
// session that an adapter-driven session end (see
// eventtranslator.WithOnSessionEnd) has already disposed and dropped from
// the registry is no longer found, and EndSession returns the lookup error.
func (m *Manager) EndSession(ctx context.Context, id entity.SessionID) error {
	h, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	disposeErr := h.Dispose()
	if err := m.repo.Delete(ctx, id); err != nil {
		return multierr.Append(disposeErr, err)
	}
	return disposeErr
}

// ReplayOutput resends a session's buffered output backlog to its client
// sink, for a client that attaches after some output has already been
// produced.
func (m *Manager) ReplayOutput(ctx context.Context, id entity.SessionID) error {
	h, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if h.Translator == nil {
		return nil
	}
	return h.Translator.ReplayBacklog()
}

// breakpointAdapter narrows an adapter.Session down to the
// breakpoint.AdapterBreakpoints contract, translating between the two
// packages' structurally-identical-but-distinct request/result types.
type breakpointAdapter struct {
	session adapter.Session
}

func (a breakpointAdapter) SetBreakpoints(ctx context.Context, path string, reqs []breakpoint.BreakpointRequest) ([]breakpoint.BreakpointResult, error) {
	adapterReqs := make([]adapter.BreakpointRequest, len(reqs))
	for i, r := range reqs {
		adapterReqs[i] = adapter.BreakpointRequest{Line: r.Line, Condition: r.Condition}
	}
	results, err := a.session.SetBreakpoints(ctx, path, adapterReqs)
	if err != nil {
		return nil, err
	}
	out := make([]breakpoint.BreakpointResult, len(results))
	for i, r := range results {
		out[i] = breakpoint.BreakpointResult{ID: r.ID, Verified: r.Verified, Line: r.Line}
	}
	return out, nil
}
