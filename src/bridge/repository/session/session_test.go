package session

import (
	"context"
	"testing"

	tally "github.com/uber-go/tally/v4"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uber/dbg-bridge/src/bridge/entity"
)

func TestRepository_CreateAndGet(t *testing.T) {
	repo := New(Params{Stats: tally.NewTestScope("testing", map[string]string{})})
	id := uuid.Must(uuid.NewV4())
	s := entity.Session{ID: id, AdapterKind: "node"}

	require.NoError(t, repo.Create(context.Background(), &Handle{Session: s}))

	h, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "node", h.Session.AdapterKind)

	count, err := repo.SessionCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRepository_GetMissingErrors(t *testing.T) {
	repo := New(Params{Stats: tally.NewTestScope("testing", map[string]string{})})
	_, err := repo.Get(context.Background(), uuid.Must(uuid.NewV4()))
	require.Error(t, err)
}

func TestRepository_GetFromContext(t *testing.T) {
	repo := New(Params{Stats: tally.NewTestScope("testing", map[string]string{})})
	id := uuid.Must(uuid.NewV4())
	require.NoError(t, repo.Create(context.Background(), &Handle{Session: entity.Session{ID: id}}))

	ctx := context.WithValue(context.Background(), entity.SessionContextKey, id)
	h, err := repo.GetFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, h.Session.ID)

	_, err = repo.GetFromContext(context.Background())
	require.Error(t, err)
}

func TestRepository_Delete(t *testing.T) {
	repo := New(Params{Stats: tally.NewTestScope("testing", map[string]string{})})
	id := uuid.Must(uuid.NewV4())
	require.NoError(t, repo.Create(context.Background(), &Handle{Session: entity.Session{ID: id}}))
	require.NoError(t, repo.Delete(context.Background(), id))

	count, err := repo.SessionCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
