package mapper

import (
	"context"

	bridgeerrors "github.com/uber/dbg-bridge/src/bridge/internal/errors"

	"github.com/uber/dbg-bridge/src/bridge/entity"
)

// ContextToSessionID extracts the session id a handler stashed on the
// context when it started routing a client command.
func ContextToSessionID(ctx context.Context) (entity.SessionID, error) {
	id, ok := ctx.Value(entity.SessionContextKey).(entity.SessionID)
	if !ok {
		return entity.SessionID{}, bridgeerrors.ErrNoActiveSession
	}
	return id, nil
}
