// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFanoutHandlerWritesAllChildren(t *testing.T) {
	var a, b bytes.Buffer
	h := fanoutHandler{
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}

	logger := slog.New(h)
	logger.Info("hello", "k", "v")
	logger.Error("boom")

	if got := strings.Count(a.String(), "\n"); got != 2 {
		t.Errorf("first child got %d records, want 2", got)
	}
	// The second child filters below error.
	if got := strings.Count(b.String(), "\n"); got != 1 {
		t.Errorf("second child got %d records, want 1", got)
	}
	if !strings.Contains(b.String(), "boom") {
		t.Error("second child missing the error record")
	}
}

func TestFanoutEnabled(t *testing.T) {
	h := fanoutHandler{
		slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}),
	}
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled when all children filter it")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled")
	}
}

func TestSetupWithLogFile(t *testing.T) {
	dir := t.TempDir()

	logger, closer, err := Setup(Config{Level: "info", Service: "testsvc", LogDir: dir, ForceJSON: true})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	logger.Info("file test", "marker", "xyzzy")
	closer()

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one log file, got %v (err %v)", entries, err)
	}
	if !strings.HasPrefix(entries[0].Name(), "testsvc_") {
		t.Errorf("unexpected log file name %q", entries[0].Name())
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("log file is not JSON: %v", err)
	}
	if rec["marker"] != "xyzzy" || rec["service"] != "testsvc" {
		t.Errorf("unexpected record %v", rec)
	}
}
