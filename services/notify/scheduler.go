// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/talentflowhq/talentflow/services/safety"
)

// Poster delivers a rendered digest to the chat channel. Implemented by
// the slack service.
type Poster interface {
	PostMessage(ctx context.Context, channelID, text string) (messageTS string, err error)
}

// Checker produces candidate alerts. Implemented by PipelineChecker.
type Checker interface {
	Check(ctx context.Context) ([]Alert, error)
}

// SchedulerConfig holds configuration for the alert scheduler.
type SchedulerConfig struct {
	// Interval is how often the pipeline check runs. Default: 1 hour.
	Interval time.Duration

	// ChannelID is where digests are posted.
	ChannelID string

	// MinSeverity drops candidates below this level before the cooldown
	// check.
	MinSeverity Severity
}

// Scheduler periodically checks the pipeline and posts a digest of alerts
// that survive severity and cooldown filtering.
//
// Uses the same ticker + done channel lifecycle as the ledger sweep. An
// iteration error is logged and retried next tick; it never stops the
// schedule.
type Scheduler struct {
	cfg       SchedulerConfig
	checker   Checker
	poster    Poster
	cooldowns *safety.CooldownTracker

	mu      sync.Mutex
	done    chan struct{}
	running bool
}

// NewScheduler creates a scheduler. A non-positive interval defaults to
// 1 hour.
func NewScheduler(cfg SchedulerConfig, checker Checker, poster Poster, cooldowns *safety.CooldownTracker) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Scheduler{
		cfg:       cfg,
		checker:   checker,
		poster:    poster,
		cooldowns: cooldowns,
		done:      make(chan struct{}),
	}
}

// Start begins the background check loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("alert scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	slog.Info("Alert scheduler starting",
		"interval", s.cfg.Interval.String(),
		"channel", s.cfg.ChannelID,
		"min_severity", s.cfg.MinSeverity.String())

	go s.runLoop(ctx)
	return nil
}

// Stop halts the loop. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.done)
	s.running = false
	slog.Info("Alert scheduler stopped")
}

func (s *Scheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				slog.Error("Alert check failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single check-select-post cycle.
//
// Every alert that survives filtering is recorded in the cooldown tracker,
// whether or not it fit the display truncation.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	candidates, err := s.checker.Check(ctx)
	if err != nil {
		return fmt.Errorf("pipeline check: %w", err)
	}

	sel := Select(candidates, s.cfg.MinSeverity, s.cooldowns)
	if len(sel.Send) == 0 {
		slog.Debug("Alert check completed, nothing to send",
			"candidates", len(candidates))
		return nil
	}

	digest := renderDigest(sel.Send)
	if _, err := s.poster.PostMessage(ctx, s.cfg.ChannelID, digest); err != nil {
		return fmt.Errorf("posting digest: %w", err)
	}

	s.cooldowns.RecordAlerted(sel.Recorded)
	slog.Info("Alert digest posted",
		"sent", len(sel.Send),
		"recorded", len(sel.Recorded),
		"channel", s.cfg.ChannelID)
	return nil
}

// renderDigest formats alerts into one chat message, grouped by severity.
func renderDigest(alerts []Alert) string {
	var b strings.Builder
	b.WriteString(":mag: *Pipeline check*\n")
	var last Severity = -1
	for _, a := range alerts {
		if a.Severity != last {
			fmt.Fprintf(&b, "\n*%s*\n", strings.ToUpper(a.Severity.String()))
			last = a.Severity
		}
		b.WriteString("• " + a.Message + "\n")
	}
	return b.String()
}
