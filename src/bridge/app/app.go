// Package app is the composition root: it wires the ambient stack (config,
// logging, metrics) and the session-handling modules into one Fx
// application.
package app

import (
	"context"
	"time"

	tally "github.com/uber-go/tally/v4"
	"go.uber.org/fx"

	"github.com/uber/dbg-bridge/src/bridge/gateway/filecache"
	"github.com/uber/dbg-bridge/src/bridge/handler/session"
	"github.com/uber/dbg-bridge/src/bridge/internal/core"
	"github.com/uber/dbg-bridge/src/bridge/internal/fs"
	reposession "github.com/uber/dbg-bridge/src/bridge/repository/session"
)

// Module defines the debugger bridge application.
var Module = fx.Options(
	fs.Module,
	filecache.Module,
	reposession.Module,
	session.Module,
	core.ConfigModule,
	core.LoggerModule,
	fx.Provide(func(lc fx.Lifecycle) tally.Scope {
		rs, closer := tally.NewRootScope(tally.ScopeOptions{
			Tags: map[string]string{
				"service": "dbg-bridge",
			},
		}, 1*time.Second)

		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return closer.Close()
			},
		})

		return rs
	}),
)
