// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging configures structured logging for TalentFlow.
//
// Output goes to stderr so command output stays pipeable. Interactive
// terminals get the human-readable text handler; anything else (systemd,
// container runtimes, CI) gets JSON for log collectors. An optional log
// directory adds a JSON file alongside, named {service}_{date}.log.
//
// The package does not redact anything. Callers must keep tokens and
// candidate PII out of log attributes.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// Config controls logger construction.
type Config struct {
	// Level is the minimum level to emit: debug, info, warn, or error.
	// Unknown values fall back to info.
	Level string

	// Service names the emitting process in file names and attributes.
	Service string

	// LogDir, when set, enables an additional JSON log file. Supports a
	// leading ~ for the user's home directory.
	LogDir string

	// ForceJSON emits JSON to stderr even on a terminal.
	ForceJSON bool
}

// Setup builds a logger from cfg, installs it as the slog default, and
// returns it with a close func for the optional log file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	level := parseLevel(cfg.Level)
	closer := func() {}

	var stderrHandler slog.Handler
	if !cfg.ForceJSON && isatty.IsTerminal(os.Stderr.Fd()) {
		stderrHandler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		stderrHandler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	handler := stderrHandler
	if cfg.LogDir != "" {
		file, err := openLogFile(cfg.LogDir, cfg.Service)
		if err != nil {
			return nil, nil, err
		}
		closer = func() { file.Close() }
		handler = fanoutHandler{
			stderrHandler,
			slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}),
		}
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openLogFile(dir, service string) (io.WriteCloser, error) {
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("expanding log dir: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	if service == "" {
		service = "talentflow"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return file, nil
}
