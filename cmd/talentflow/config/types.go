// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import "time"

// Config is the full bot configuration, persisted as YAML at
// ~/.talentflow/talentflow.yaml. Secrets never live here; they come from
// the environment (see secrets.go).
type Config struct {
	Safety SafetyConfig `yaml:"safety" validate:"required"`
	Slack  SlackConfig  `yaml:"slack"`
	LLM    LLMConfig    `yaml:"llm" validate:"required"`
	Notify NotifyConfig `yaml:"notify"`
	Server ServerConfig `yaml:"server"`
}

// SafetyConfig mirrors the policy guard and ledger knobs. It is the part
// of the file the watcher hot-reloads.
type SafetyConfig struct {
	// Mode is CONFIRM_ALL or BATCH_LIMIT.
	Mode string `yaml:"mode" validate:"oneof=CONFIRM_ALL BATCH_LIMIT"`

	// BatchLimit caps how many records one write may touch.
	BatchLimit int `yaml:"batch_limit" validate:"min=1,max=10"`

	// ConfirmTimeout is how long an approval card stays actionable.
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`

	// SweepInterval is how often expired confirmations are dropped.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type SlackConfig struct {
	// BotUserID is the bot's own user id, used to strip mentions.
	BotUserID string `yaml:"bot_user_id"`

	// AlertChannel receives scheduled pipeline digests.
	AlertChannel string `yaml:"alert_channel"`
}

type LLMConfig struct {
	Model string `yaml:"model" validate:"required"`

	// BaseURL overrides the OpenAI-compatible endpoint, e.g. for a local
	// or proxy backend. Empty means the public API.
	BaseURL string `yaml:"base_url,omitempty"`
}

type NotifyConfig struct {
	Enabled bool `yaml:"enabled"`

	// Interval between scheduled pipeline checks.
	Interval time.Duration `yaml:"interval"`

	// StaleDays is the days-in-stage threshold for stale alerts.
	StaleDays int `yaml:"stale_days" validate:"min=1"`

	// MinSeverity filters the digest: info, warning, or critical.
	MinSeverity string `yaml:"min_severity" validate:"oneof=info warning critical"`

	// Cooldown suppresses repeat alerts for the same finding.
	Cooldown time.Duration `yaml:"cooldown"`
}

type ServerConfig struct {
	// Addr is the ops HTTP listen address.
	Addr string `yaml:"addr"`

	// OTLPEndpoint is the gRPC trace collector; empty disables tracing.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
}

// DefaultConfig returns the config written on first run.
func DefaultConfig() Config {
	return Config{
		Safety: SafetyConfig{
			Mode:           "CONFIRM_ALL",
			BatchLimit:     5,
			ConfirmTimeout: 5 * time.Minute,
			SweepInterval:  time.Minute,
		},
		LLM: LLMConfig{
			Model: "gpt-4o",
		},
		Notify: NotifyConfig{
			Enabled:     false,
			Interval:    time.Hour,
			StaleDays:   14,
			MinSeverity: "warning",
			Cooldown:    8 * time.Hour,
		},
		Server: ServerConfig{
			Addr: ":12310",
		},
	}
}
