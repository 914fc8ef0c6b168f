package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigDir(t *testing.T, files map[string]string, metaFiles []string) string {
	t.Helper()
	dir := t.TempDir()
	for name, contents := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
	}

	meta := "files:\n"
	for _, f := range metaFiles {
		meta += "  - " + f + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meta.yaml"), []byte(meta), 0o644))
	return dir
}

func TestNewConfig(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"base.yaml": "adapter:\n  kind: mock\n  mode: launch\n",
	}, []string{"base.yaml"})
	t.Setenv("DBGBRIDGE_CONFIG_DIR", dir)

	provider, err := NewConfig()
	require.NoError(t, err)
	require.NotNil(t, provider)

	config := provider.(Config)
	assert.Equal(t, "config", config.Name())

	kind := config.Get("adapter.kind")
	assert.True(t, kind.HasValue())
	assert.Equal(t, "mock", kind.String())
}

func TestNewConfig_NoFilesFound(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{}, []string{"missing.yaml"})
	t.Setenv("DBGBRIDGE_CONFIG_DIR", dir)

	_, err := NewConfig()
	assert.Error(t, err)
}

func TestNewConfig_MissingMeta(t *testing.T) {
	t.Setenv("DBGBRIDGE_CONFIG_DIR", t.TempDir())
	_, err := NewConfig()
	assert.Error(t, err)
}

func TestConfigFilePriority(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"base.yaml":  "adapter:\n  kind: base\n",
		"local.yaml": "adapter:\n  kind: local\n",
	}, []string{"base.yaml", "local.yaml"})
	t.Setenv("DBGBRIDGE_CONFIG_DIR", dir)

	provider, err := NewConfig()
	require.NoError(t, err)

	config := provider.(Config)
	assert.Equal(t, "local", config.Get("adapter.kind").String())
}

func TestGetConfigDir(t *testing.T) {
	tests := []struct {
		name           string
		setupEnv       func()
		expectedResult string
	}{
		{
			name: "returns environment variable when set",
			setupEnv: func() {
				os.Setenv("DBGBRIDGE_CONFIG_DIR", "/custom/config/path")
			},
			expectedResult: "/custom/config/path",
		},
		{
			name: "returns default path when environment variable not set",
			setupEnv: func() {
				os.Unsetenv("DBGBRIDGE_CONFIG_DIR")
			},
			expectedResult: "src/bridge/config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupEnv()
			t.Cleanup(func() {
				os.Unsetenv("DBGBRIDGE_CONFIG_DIR")
			})

			assert.Equal(t, tt.expectedResult, getConfigDir())
		})
	}
}
