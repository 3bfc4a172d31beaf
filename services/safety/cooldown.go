// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

import (
	"sync"
	"time"
)

// cooldownRetention bounds memory growth of the cooldown map. Entries whose
// last alert is older than this horizon are pruned on every RecordAlerted,
// regardless of the configured cooldown duration.
//
// Retention is a constant, not derived from the configured cooldown: if an
// operator configures a cooldown longer than this horizon, entries may be
// pruned before their window elapses and alerts re-enable early. Cooldowns
// are a best-effort anti-spam measure, not a durability guarantee, so that
// trade is accepted.
const cooldownRetention = 7 * 24 * time.Hour

// CooldownKey identifies one suppression window: a subject (e.g. a
// candidate id) and the condition being alerted about (e.g. "stale").
type CooldownKey struct {
	SubjectID string
	Condition string
}

// CooldownTracker suppresses repeated notifications about the same
// (subject, condition) pair within a configured window.
//
// # Thread Safety
//
// Safe for concurrent use from request handlers and the alert scheduler;
// all map access is serialized by one mutex.
type CooldownTracker struct {
	mu       sync.Mutex
	lastSent map[CooldownKey]time.Time
	cooldown time.Duration
	clock    Clock
}

// CooldownOption customizes tracker construction.
type CooldownOption func(*CooldownTracker)

// WithCooldownClock injects a Clock, used by tests to control time.
func WithCooldownClock(c Clock) CooldownOption {
	return func(t *CooldownTracker) { t.clock = c }
}

// NewCooldownTracker creates a tracker with the given suppression window.
// A non-positive cooldown defaults to 8 hours.
func NewCooldownTracker(cooldown time.Duration, opts ...CooldownOption) *CooldownTracker {
	if cooldown <= 0 {
		cooldown = 8 * time.Hour
	}
	t := &CooldownTracker{
		lastSent: make(map[CooldownKey]time.Time),
		cooldown: cooldown,
		clock:    SystemClock{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsOnCooldown reports whether an alert for the pair was sent within the
// configured window.
func (t *CooldownTracker) IsOnCooldown(subjectID, condition string) bool {
	key := CooldownKey{SubjectID: subjectID, Condition: condition}
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.lastSent[key]
	if !ok {
		return false
	}
	return now.Sub(last) < t.cooldown
}

// RecordAlerted marks every pair in the batch as just notified, then prunes
// entries older than the retention horizon.
//
// Callers must record every alerted pair, not just the subset that fit the
// display truncation, so suppression matches what was actually evaluated.
func (t *CooldownTracker) RecordAlerted(pairs []CooldownKey) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, key := range pairs {
		t.lastSent[key] = now
	}
	for key, last := range t.lastSent {
		if now.Sub(last) > cooldownRetention {
			delete(t.lastSent, key)
		}
	}
}

// Len returns the number of tracked pairs. Used by tests and diagnostics.
func (t *CooldownTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lastSent)
}
