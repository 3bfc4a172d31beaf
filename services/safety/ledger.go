// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Ledger configuration
// =============================================================================

// LedgerConfig holds configuration for the confirmation ledger.
type LedgerConfig struct {
	// Timeout is how long a confirmation stays approvable after creation.
	// Default: 5 minutes.
	Timeout time.Duration

	// SweepInterval is how often the background sweep removes expired
	// entries. Independent of any individual confirmation's timeout.
	// Default: 1 minute.
	SweepInterval time.Duration
}

// DefaultLedgerConfig returns production defaults: 5 minute confirmation
// timeout, 1 minute sweep interval.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		Timeout:       5 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// =============================================================================
// Confirmation Ledger
// =============================================================================

// ConfirmationLedger owns the set of pending confirmations, their expiry,
// and a background sweep.
//
// # Description
//
// The ledger is the single shared safety boundary between the request path
// (agent tool handlers, reaction handlers) and the sweep timer. Entries are
// keyed by confirmation id; lookup by (channel, message) is a linear scan,
// which is fine at the expected cardinality of single-digit to low-tens
// pending confirmations.
//
// State is process-lifetime only. Confirmations are short-lived, so losing
// them on restart is acceptable; a human simply re-requests the write.
//
// # Thread Safety
//
// Create, Get, FindByMessage, Complete, Cancel, ListForChannel, and the
// sweep may all run concurrently; every access to the underlying map is
// serialized by one mutex. Complete racing the sweep resolves
// deterministically: whichever takes the lock first wins and the later
// operation observes "not found".
type ConfirmationLedger struct {
	cfg   LedgerConfig
	clock Clock

	mu      sync.Mutex
	entries map[string]*PendingConfirmation

	done    chan struct{}
	runMu   sync.Mutex
	running bool
}

// LedgerOption customizes ledger construction.
type LedgerOption func(*ConfirmationLedger)

// WithClock injects a Clock, used by tests to control time.
func WithClock(c Clock) LedgerOption {
	return func(l *ConfirmationLedger) { l.clock = c }
}

// NewConfirmationLedger creates a ledger. Zero config fields fall back to
// DefaultLedgerConfig values. The background sweep is not started until
// Start is called.
func NewConfirmationLedger(cfg LedgerConfig, opts ...LedgerOption) *ConfirmationLedger {
	def := DefaultLedgerConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	l := &ConfirmationLedger{
		cfg:     cfg,
		clock:   SystemClock{},
		entries: make(map[string]*PendingConfirmation),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Timeout returns the configured confirmation timeout.
func (l *ConfirmationLedger) Timeout() time.Duration {
	return l.cfg.Timeout
}

// Now returns the current time on the ledger's clock. Callers rendering
// expiry previews use this so test clocks stay consistent.
func (l *ConfirmationLedger) Now() time.Time {
	return l.clock.Now()
}

// CreateRequest carries the fields of a new pending confirmation.
type CreateRequest struct {
	Kind        WriteKind
	Description string
	EntityIDs   []string
	Payload     any
	ChannelID   string
	MessageTS   string
	RequestedBy string
}

// Create registers a new pending confirmation and returns a copy of it.
//
// # Description
//
// The id is a UUIDv7: a monotonically distinguishing timestamp prefix plus
// randomness, so collisions are negligible even under rapid concurrent
// calls in the same instant. ExpiresAt is now + the configured timeout.
func (l *ConfirmationLedger) Create(req CreateRequest) PendingConfirmation {
	now := l.clock.Now()
	entry := &PendingConfirmation{
		ID:          newConfirmationID(),
		Kind:        req.Kind,
		Description: req.Description,
		EntityIDs:   append([]string(nil), req.EntityIDs...),
		Payload:     req.Payload,
		ChannelID:   req.ChannelID,
		MessageTS:   req.MessageTS,
		RequestedBy: req.RequestedBy,
		CreatedAt:   now,
		ExpiresAt:   now.Add(l.cfg.Timeout),
	}

	l.mu.Lock()
	l.entries[entry.ID] = entry
	pending := len(l.entries)
	l.mu.Unlock()

	confirmationsCreated.Inc()
	confirmationsPending.Set(float64(pending))

	slog.Info("Pending confirmation created",
		"confirmation_id", entry.ID,
		"kind", entry.Kind,
		"entities", len(entry.EntityIDs),
		"requested_by", entry.RequestedBy,
		"expires_at", entry.ExpiresAt.Format(time.RFC3339))

	return *entry
}

// Get returns the confirmation with the given id, if it is still held.
func (l *ConfirmationLedger) Get(id string) (PendingConfirmation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[id]
	if !ok {
		return PendingConfirmation{}, false
	}
	return *entry, true
}

// FindByMessage returns the live confirmation originating from the given
// (channel, message) pair, if any.
//
// Expired entries are excluded even before the sweep has physically removed
// them. If more than one live entry matches (which the ledger assumes does
// not happen but does not enforce), an unspecified one is returned.
func (l *ConfirmationLedger) FindByMessage(channelID, messageTS string) (PendingConfirmation, bool) {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.entries {
		if entry.ChannelID == channelID && entry.MessageTS == messageTS && now.Before(entry.ExpiresAt) {
			return *entry, true
		}
	}
	return PendingConfirmation{}, false
}

// Complete atomically removes and returns the confirmation if present.
//
// Returns false if the id is unknown or was already completed, cancelled,
// or swept; a second Complete on the same id never re-returns the entry.
// The caller is responsible for executing the payload after a successful
// Complete; the ledger itself never does.
func (l *ConfirmationLedger) Complete(id string) (PendingConfirmation, bool) {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if ok {
		delete(l.entries, id)
	}
	pending := len(l.entries)
	l.mu.Unlock()

	if !ok {
		return PendingConfirmation{}, false
	}
	confirmationsCompleted.Inc()
	confirmationsPending.Set(float64(pending))
	slog.Info("Confirmation completed", "confirmation_id", id, "kind", entry.Kind)
	return *entry, true
}

// Cancel removes the confirmation if present and reports whether it existed.
func (l *ConfirmationLedger) Cancel(id string) bool {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if ok {
		delete(l.entries, id)
	}
	pending := len(l.entries)
	l.mu.Unlock()

	if !ok {
		return false
	}
	confirmationsCancelled.Inc()
	confirmationsPending.Set(float64(pending))
	slog.Info("Confirmation cancelled", "confirmation_id", id, "kind", entry.Kind)
	return true
}

// IsValid reports whether the confirmation has not yet expired.
func (l *ConfirmationLedger) IsValid(entry PendingConfirmation) bool {
	return l.clock.Now().Before(entry.ExpiresAt)
}

// ListForChannel returns all currently valid confirmations for a channel.
// Expired-but-not-yet-swept entries are excluded from this view.
func (l *ConfirmationLedger) ListForChannel(channelID string) []PendingConfirmation {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []PendingConfirmation
	for _, entry := range l.entries {
		if entry.ChannelID == channelID && now.Before(entry.ExpiresAt) {
			out = append(out, *entry)
		}
	}
	return out
}

// =============================================================================
// Background sweep
// =============================================================================

// Start begins the background expiry sweep.
//
// The sweep runs at the configured interval until Stop is called or the
// context is cancelled. A failed iteration is logged and retried on the
// next tick; it never terminates the schedule.
func (l *ConfirmationLedger) Start(ctx context.Context) error {
	l.runMu.Lock()
	if l.running {
		l.runMu.Unlock()
		return fmt.Errorf("ledger sweep is already running")
	}
	l.running = true
	l.done = make(chan struct{})
	l.runMu.Unlock()

	slog.Info("Confirmation sweep starting",
		"interval", l.cfg.SweepInterval.String(),
		"timeout", l.cfg.Timeout.String())

	go l.sweepLoop(ctx)
	return nil
}

// Stop halts the background sweep. Safe to call multiple times.
func (l *ConfirmationLedger) Stop() {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if !l.running {
		return
	}
	close(l.done)
	l.running = false
	slog.Info("Confirmation sweep stopped")
}

// sweepLoop runs SweepNow at the configured interval.
func (l *ConfirmationLedger) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case <-ticker.C:
			l.SweepNow()
		}
	}
}

// SweepNow removes every entry whose expiry has passed and returns how many
// were dropped.
//
// Removal is silent: an expired confirmation is never executed, only
// Complete hands an entry back for execution.
func (l *ConfirmationLedger) SweepNow() int {
	now := l.clock.Now()

	l.mu.Lock()
	var removed int
	for id, entry := range l.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(l.entries, id)
			removed++
		}
	}
	pending := len(l.entries)
	l.mu.Unlock()

	if removed > 0 {
		confirmationsExpired.Add(float64(removed))
		confirmationsPending.Set(float64(pending))
		slog.Info("Expired confirmations swept", "removed", removed, "pending", pending)
	}
	return removed
}

// newConfirmationID generates a process-unique confirmation id.
// UUIDv7 embeds a millisecond timestamp plus 74 random bits, so ids sort
// roughly by creation time and cannot collide in practice. NewV7 only
// errors if the system randomness source is broken; fall back to v4 then.
func newConfirmationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "cfm_" + uuid.NewString()
	}
	return "cfm_" + id.String()
}
