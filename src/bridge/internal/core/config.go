package core

import (
	"fmt"
	"os"
	"path/filepath"

	uberconfig "go.uber.org/config"
	"go.uber.org/fx"
)

// ConfigModule provides the configuration Provider into an Fx application.
var ConfigModule = fx.Options(
	fx.Provide(NewConfig),
)

// Config is a thin wrapper matching uber_config.Provider's Get/Name shape,
// letting call sites depend on a small interface instead of the full
// go.uber.org/config API surface.
type Config struct {
	provider uberconfig.Provider
}

// Get resolves a dotted configuration path.
func (c Config) Get(path string) uberconfig.Value {
	return c.provider.Get(path)
}

// Name implements uber_config.Provider's Name.
func (c Config) Name() string {
	return "config"
}

// NewConfig loads every YAML file listed in meta.yaml under the
// configuration directory (DBGBRIDGE_CONFIG_DIR, or a repo-relative
// default), expanding ${VAR} references against the process environment.
func NewConfig() (uberconfig.Provider, error) {
	configDir := getConfigDir()

	metaPath := filepath.Join(configDir, "meta.yaml")
	metaProvider, err := uberconfig.NewYAML(
		uberconfig.File(metaPath),
		uberconfig.Expand(os.LookupEnv),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load meta configuration: %w", err)
	}

	var configFiles []string
	if err := metaProvider.Get("files").Populate(&configFiles); err != nil {
		return nil, fmt.Errorf("failed to read files list from meta.yaml: %w", err)
	}

	var validFiles []string
	for _, file := range configFiles {
		fullPath := filepath.Join(configDir, file)
		if _, err := os.Stat(fullPath); err == nil {
			validFiles = append(validFiles, fullPath)
		}
	}

	if len(validFiles) == 0 {
		return nil, fmt.Errorf("no configuration files found in %s", configDir)
	}

	var options []uberconfig.YAMLOption
	for _, file := range validFiles {
		options = append(options, uberconfig.File(file))
	}
	options = append(options, uberconfig.Expand(os.LookupEnv))

	provider, err := uberconfig.NewYAML(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return Config{provider: provider}, nil
}

func getConfigDir() string {
	if configDir := os.Getenv("DBGBRIDGE_CONFIG_DIR"); configDir != "" {
		return configDir
	}
	return "src/bridge/config"
}
