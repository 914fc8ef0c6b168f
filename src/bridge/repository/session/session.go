// Package session is the in-memory registry of live bridge sessions,
// mirroring the teacher's session repository but keyed to a translator
// Router rather than an LSP connection.
package session

import (
	"context"
	"sync"

	tally "github.com/uber-go/tally/v4"
	"go.uber.org/multierr"

	"github.com/uber/dbg-bridge/src/bridge/controller/eventtranslator"
	"github.com/uber/dbg-bridge/src/bridge/controller/translator"
	"github.com/uber/dbg-bridge/src/bridge/entity"
	"github.com/uber/dbg-bridge/src/bridge/gateway/adapter"
	"github.com/uber/dbg-bridge/src/bridge/gateway/clientcallback"
	bridgeerrors "github.com/uber/dbg-bridge/src/bridge/internal/errors"
	"github.com/uber/dbg-bridge/src/bridge/mapper"
	"go.uber.org/fx"
)

// Handle bundles a tracked session with everything needed to drive it and,
// eventually, dispose it.
type Handle struct {
	Session        entity.Session
	Router         *translator.Router
	Translator     *eventtranslator.Translator
	AdapterSession adapter.Session
	Sink           clientcallback.Sink
	Cancel         context.CancelFunc

	disposeOnce sync.Once
}

// Dispose releases the adapter child, stops the router's dispatch mailbox,
// closes the output backlog, and idempotently closes the client sink. A
// second Dispose is a no-op.
func (h *Handle) Dispose() error {
	var err error
	h.disposeOnce.Do(func() {
		if h.Cancel != nil {
			h.Cancel()
		}
		if h.Router != nil {
			h.Router.Stop()
		}
		if h.Translator != nil {
			h.Translator.Close()
		}
		if h.AdapterSession != nil {
			err = multierr.Append(err, h.AdapterSession.Close())
		}
		if h.Sink != nil {
			err = multierr.Append(err, h.Sink.Close())
		}
	})
	return err
}

// Repository is the session-scoped store, keyed by session id.
type Repository interface {
	Create(ctx context.Context, h *Handle) error
	Get(ctx context.Context, id entity.SessionID) (*Handle, error)
	GetFromContext(ctx context.Context) (*Handle, error)
	Delete(ctx context.Context, id entity.SessionID) error
	SessionCount(ctx context.Context) (int, error)
}

type repository struct {
	mu       sync.Mutex
	memstore map[entity.SessionID]*Handle
	stats    tally.Scope
}

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// Params carries this repository's dependencies through Fx.
type Params struct {
	fx.In

	Stats tally.Scope
}

// New returns an empty session repository.
func New(p Params) Repository {
	return &repository{
		memstore: make(map[entity.SessionID]*Handle),
		stats:    p.Stats,
	}
}

func (r *repository) Create(ctx context.Context, h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.memstore[h.Session.ID] = h
	r.stats.Gauge("active_sessions").Update(float64(len(r.memstore)))
	return nil
}

func (r *repository) Get(ctx context.Context, id entity.SessionID) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.memstore[id]
	if !ok {
		return nil, bridgeerrors.ErrNoActiveSession
	}
	return h, nil
}

func (r *repository) GetFromContext(ctx context.Context) (*Handle, error) {
	id, err := mapper.ContextToSessionID(ctx)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *repository) Delete(ctx context.Context, id entity.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.memstore, id)
	r.stats.Gauge("active_sessions").Update(float64(len(r.memstore)))
	return nil
}

func (r *repository) SessionCount(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.memstore), nil
}
