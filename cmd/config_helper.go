package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bascanada/forklift-ops/pkg/config"
	"github.com/bascanada/forklift-ops/pkg/factory"
)

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		errorMsg := "failed to load config"
		switch {
		case errors.Is(err, config.ErrConfigParse):
			errorMsg = "invalid configuration file format"
		case errors.Is(err, config.ErrInvalidConfig):
			errorMsg = "configuration rejected"
		}
		if path != "" {
			return nil, fmt.Errorf("%s %s: %w", errorMsg, path, err)
		}
		return nil, fmt.Errorf("%s: %w", errorMsg, err)
	}
	return cfg, nil
}

func loadBackends() (*factory.Backends, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return factory.New(cfg, currentLogger()), nil
}

// defaultWatchPath mirrors the lookup order of config.Load.
func defaultWatchPath() string {
	if p := strings.TrimSpace(os.Getenv(config.EnvConfigPath)); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return config.DefaultConfigFile
	}
	return filepath.Join(home, config.DefaultConfigDir, config.DefaultConfigFile)
}
