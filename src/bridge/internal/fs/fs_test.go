package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFsImpl(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0o644))

	f := New()

	exists, err := f.FileExists(file)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = f.FileExists(filepath.Join(dir, "missing.go"))
	require.NoError(t, err)
	assert.False(t, exists)

	contents, err := f.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(contents))

	handle, err := f.Open(file)
	require.NoError(t, err)
	defer handle.Close()
}
