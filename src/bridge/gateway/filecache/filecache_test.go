package filecache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/dbg-bridge/src/bridge/internal/fs"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
)

func TestFileCache_SourceReadsAndCaches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	c := New(Params{FS: fs.New(), Logger: zap.NewNop().Sugar()})

	contents, err := c.Source(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", contents)

	require.NoError(t, os.WriteFile(path, []byte("changed\n"), 0o644))
	contents, err = c.Source(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", contents, "second read should hit the cache, not disk")
}

func TestFileCache_SourceMissing(t *testing.T) {
	c := New(Params{FS: fs.New(), Logger: zap.NewNop().Sugar()})
	_, err := c.Source(context.Background(), "/nonexistent/path.go")
	assert.Error(t, err)
}

func TestFileCache_RegisterAndURI(t *testing.T) {
	c := New(Params{FS: fs.New(), Logger: zap.NewNop().Sugar()})
	_, ok := c.URI("a.go")
	assert.False(t, ok)

	u := uri.File("/tmp/a.go")
	c.Register("a.go", u)

	got, ok := c.URI("a.go")
	require.True(t, ok)
	assert.Equal(t, u, got)
}
