package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/DomWilliams0/spotify-auth/pkg/logging"
)

const (
	userConfigDir  = ".config/spotify-auth"
	configFileName = "config.yaml"
)

// osUserHomeDir is replaced in tests.
var osUserHomeDir = os.UserHomeDir

// DefaultConfigPath returns ~/.config/spotify-auth.
func DefaultConfigPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads configuration from config.yaml in configPath, then
// applies SPOTIFY_AUTH_* environment variables on top. A missing
// config.yaml is not an error. The result is not validated.
func LoadConfig(configPath string) (Config, error) {
	config := GetDefaultConfig()

	if configPath != "" {
		if err := loadFile(filepath.Join(configPath, configFileName), &config); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&config); err != nil {
		return Config{}, NewConfigurationError("", SourceEnvironment, ErrorTypeParse,
			"invalid SPOTIFY_AUTH_* environment variable", err)
	}
	return config, nil
}

func loadFile(configFilePath string, config *Config) error {
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("Config", "No config.yaml found at %s, using defaults", configFilePath)
			return nil
		}
		return NewConfigurationError(configFilePath, SourceFile, ErrorTypeIO, "could not read config file", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		configErr := NewConfigurationError(configFilePath, SourceFile, ErrorTypeParse, "config file is not valid YAML", err)
		configErr.Details = err.Error()
		configErr.Suggestions = []string{"keys are camelCase, for example clientId and callbackPort"}
		return configErr
	}

	logging.Debug("Config", "Loaded configuration from %s", configFilePath)
	return nil
}
