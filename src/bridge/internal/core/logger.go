package core

import (
	"os"

	uberconfig "go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig is the "logging" section of the YAML configuration tree.
type LoggingConfig struct {
	Level       string   `yaml:"level"`
	Development bool     `yaml:"development"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"outputPaths"`
}

// LoggerModule provides the logging dependencies into an Fx application.
var LoggerModule = fx.Options(
	fx.Provide(NewSugaredLogger),
	fx.Provide(NewLogger),
)

// NewLogger unwraps the sugared logger for callers that want the typed API.
func NewLogger(sugar *zap.SugaredLogger) *zap.Logger {
	return sugar.Desugar()
}

// NewSugaredLogger builds a zap.SugaredLogger from the "logging" config
// section, defaulting to JSON encoding at info level when the section is
// absent so a translator run outside of the daemon (e.g. from a test
// harness or a CLI) still gets structured logs.
func NewSugaredLogger(provider uberconfig.Provider) (*zap.SugaredLogger, error) {
	var loggingConfig LoggingConfig
	if provider != nil {
		if err := provider.Get("logging").Populate(&loggingConfig); err != nil {
			return nil, err
		}
	}
	if loggingConfig.Level == "" {
		loggingConfig.Level = "info"
	}

	level, err := zapcore.ParseLevel(loggingConfig.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if loggingConfig.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	var encoder zapcore.Encoder
	switch loggingConfig.Encoding {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(
		encoder,
		zapcore.AddSync(os.Stdout),
		level,
	)

	var logger *zap.Logger
	if loggingConfig.Development {
		logger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		logger = zap.New(core)
	}

	return logger.Sugar(), nil
}
