package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	uberconfig "go.uber.org/config"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name           string
		loggingConfig  string
		expectedLevel  zapcore.Level
		expectedFormat string
		expectError    bool
	}{
		{
			name: "info level json encoding",
			loggingConfig: `
logging:
  level: info
  development: false
  encoding: json
  outputPaths:
    - stdout
`,
			expectedLevel:  zapcore.InfoLevel,
			expectedFormat: "json",
		},
		{
			name: "debug level console encoding",
			loggingConfig: `
logging:
  level: debug
  development: true
  encoding: console
  outputPaths:
    - stdout
`,
			expectedLevel:  zapcore.DebugLevel,
			expectedFormat: "console",
		},
		{
			name: "error level default encoding",
			loggingConfig: `
logging:
  level: error
  development: false
  outputPaths:
    - stdout
`,
			expectedLevel:  zapcore.ErrorLevel,
			expectedFormat: "json",
		},
		{
			name: "invalid level",
			loggingConfig: `
logging:
  level: invalid
  development: false
  encoding: json
  outputPaths:
    - stdout
`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := uberconfig.NewYAML(
				uberconfig.Source(strings.NewReader(tt.loggingConfig)),
			)
			require.NoError(t, err)

			sugared, err := NewSugaredLogger(provider)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			logger := NewLogger(sugared)
			require.NotNil(t, logger)
			assert.True(t, logger.Core().Enabled(tt.expectedLevel))
			assert.False(t, logger.Core().Enabled(tt.expectedLevel-1))
			logger.Info("test message")
		})
	}
}

func TestNewSugaredLogger_NilProvider(t *testing.T) {
	logger, err := NewSugaredLogger(nil)
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestLoggingConfig_Populate(t *testing.T) {
	configYAML := strings.NewReader(`
logging:
  level: warn
  development: true
  encoding: console
  outputPaths:
    - stdout
    - stderr
`)

	provider, err := uberconfig.NewYAML(uberconfig.Source(configYAML))
	require.NoError(t, err)

	var loggingConfig LoggingConfig
	err = provider.Get("logging").Populate(&loggingConfig)
	require.NoError(t, err)

	assert.Equal(t, "warn", loggingConfig.Level)
	assert.True(t, loggingConfig.Development)
	assert.Equal(t, "console", loggingConfig.Encoding)
	assert.Equal(t, []string{"stdout", "stderr"}, loggingConfig.OutputPaths)
}
