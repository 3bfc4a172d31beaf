// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// DefaultPath returns the standard config location under the user's home.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".talentflow", "talentflow.yaml"), nil
}

// Load reads and validates the config at path, creating a default file on
// first run. Environment overrides are applied before validation.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("First run detected, creating the config at %s\n", path)
		if err := writeDefault(path); err != nil {
			return Config{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse the config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies the operational environment knobs that
// deployments set without editing the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SAFETY_MODE"); v != "" {
		cfg.Safety.Mode = v
	}
	if v := os.Getenv("BATCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Safety.BatchLimit = n
		}
	}
	if v := os.Getenv("SLACK_ALERT_CHANNEL"); v != "" {
		cfg.Slack.AlertChannel = v
	}
}

// Save writes the config to path, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeDefault(path string) error {
	return Save(path, DefaultConfig())
}
