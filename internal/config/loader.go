package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".bankrotscan"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads a YAML configuration file. If the file does not
// exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
//  1. configPath, when given
//  2. .bankrotscan in the current directory
//  3. .bankrotscan in the user's home directory
//
// It returns an empty string when nothing is found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}
	return ""
}

// Load builds the configuration from defaults, the config file and the
// environment. An explicitly given config or env file that does not
// exist is an error; implicit ones are optional. Flags are applied by the
// caller afterwards.
func Load(configPath, envFile string) (*Config, error) {
	cfg := NewConfig()
	cfg.ConfigFilePath = configPath
	cfg.EnvFile = envFile

	if path := FindConfigFile(configPath); path != "" {
		file, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := file.Apply(cfg); err != nil {
			return nil, fmt.Errorf("apply %s: %w", path, err)
		}
		cfg.ConfigFilePath = path
	} else if configPath != "" {
		return nil, fmt.Errorf("%s: %w", configPath, ErrConfigNotFound)
	}

	env, err := LoadEnv(envFile)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, env); err != nil {
		return nil, err
	}
	return cfg, nil
}
