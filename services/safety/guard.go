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
	"strings"
	"sync"
)

// hiredToken is the stage-label vocabulary token used to detect terminal
// hired stages. Matching is case-insensitive substring over human-entered
// free-text labels, not a typed state machine: it cannot detect skipped
// stages or enforce an ordering, and a renamed or localized stage label
// will not be caught.
const hiredToken = "hired"

// ProtectedLookup answers whether an entity is off-limits, e.g. because it
// represents a hired or closed record that must be privacy-shielded from
// further mutation or reads.
//
// Implementations may perform network I/O. A lookup failure propagates as
// an error from the guard; it is never treated as "protected" or as a
// denial.
type ProtectedLookup interface {
	IsProtected(ctx context.Context, entityID string) (bool, error)
}

// ProtectedLookupFunc adapts a function to the ProtectedLookup interface.
type ProtectedLookupFunc func(ctx context.Context, entityID string) (bool, error)

// IsProtected calls f.
func (f ProtectedLookupFunc) IsProtected(ctx context.Context, entityID string) (bool, error) {
	return f(ctx, entityID)
}

// GuardConfig parameterizes PolicyGuard decisions.
type GuardConfig struct {
	// Mode selects the confirmation policy.
	Mode Mode

	// BatchLimit is the maximum number of entities a single write may
	// touch. Valid range is 1-10.
	BatchLimit int
}

// PolicyGuard makes stateless-per-call policy decisions over write and read
// requests against the hiring system.
//
// # Description
//
// The guard applies three independent gating rules: a batch size cap, a
// protected-entity check via the injected ProtectedLookup, and a
// mode-dependent confirmation requirement. It holds no state beyond
// configuration; configuration may be swapped at runtime (config hot
// reload) via UpdateConfig.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Configuration reads and updates
// are serialized with an RWMutex.
type PolicyGuard struct {
	mu     sync.RWMutex
	cfg    GuardConfig
	lookup ProtectedLookup
}

// NewPolicyGuard creates a guard with the given configuration and lookup.
//
// # Inputs
//
//   - cfg: Guard configuration. Mode must be valid; BatchLimit must be 1-10.
//   - lookup: Protected-entity capability. Must be non-nil.
//
// # Outputs
//
//   - *PolicyGuard: Ready-to-use guard.
//   - error: Non-nil if the configuration is invalid.
func NewPolicyGuard(cfg GuardConfig, lookup ProtectedLookup) (*PolicyGuard, error) {
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("invalid safety mode %q", cfg.Mode)
	}
	if cfg.BatchLimit < 1 || cfg.BatchLimit > 10 {
		return nil, fmt.Errorf("batch limit %d out of range [1,10]", cfg.BatchLimit)
	}
	if lookup == nil {
		return nil, fmt.Errorf("protected lookup is required")
	}
	return &PolicyGuard{cfg: cfg, lookup: lookup}, nil
}

// UpdateConfig swaps the guard configuration at runtime.
//
// Invalid configurations are rejected and the previous configuration stays
// in effect. Used by the config watcher on hot reload.
func (g *PolicyGuard) UpdateConfig(cfg GuardConfig) error {
	if !cfg.Mode.Valid() {
		return fmt.Errorf("invalid safety mode %q", cfg.Mode)
	}
	if cfg.BatchLimit < 1 || cfg.BatchLimit > 10 {
		return fmt.Errorf("batch limit %d out of range [1,10]", cfg.BatchLimit)
	}
	g.mu.Lock()
	g.cfg = cfg
	g.mu.Unlock()
	return nil
}

// Config returns the currently effective configuration.
func (g *PolicyGuard) Config() GuardConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// EvaluateWrite decides whether a write operation is allowed and whether it
// must first be confirmed by a human.
//
// # Description
//
// Checks run cheapest first:
//
//  1. If len(entityIDs) exceeds the batch limit, deny, naming the observed
//     size and the configured limit. No protected lookups are performed.
//  2. Each entity is checked in list order via the ProtectedLookup. The
//     first protected entity denies immediately and entities after it are
//     never queried. Empty entity lists always pass this step.
//  3. Otherwise the write is allowed. Under ModeConfirmAll every allowed
//     write requires confirmation; under ModeBatchLimit only destructive
//     kinds do (see WriteKind.Destructive).
//
// The sequential lookup loop bounds in-flight lookups to one per request by
// design, trading latency for determinism of which entity is reported first.
//
// # Inputs
//
//   - ctx: Context passed through to protected lookups.
//   - kind: The write operation kind.
//   - entityIDs: Affected entity identifiers, unique within the request.
//
// # Outputs
//
//   - Decision: Allowed/denied plus the confirmation requirement.
//   - error: Non-nil only when a protected lookup fails. A lookup failure
//     is an operational fault, not a denial.
func (g *PolicyGuard) EvaluateWrite(ctx context.Context, kind WriteKind, entityIDs []string) (Decision, error) {
	cfg := g.Config()

	if len(entityIDs) > cfg.BatchLimit {
		denialsTotal.WithLabelValues(denialCauseBatchLimit).Inc()
		return Deny("operation touches %d entities, above the configured batch limit of %d",
			len(entityIDs), cfg.BatchLimit), nil
	}

	for _, id := range entityIDs {
		protected, err := g.lookup.IsProtected(ctx, id)
		if err != nil {
			return Decision{}, fmt.Errorf("protected lookup for %s: %w", id, err)
		}
		if protected {
			denialsTotal.WithLabelValues(denialCauseProtected).Inc()
			return Deny("entity %s is protected and cannot be modified for privacy reasons", id), nil
		}
	}

	switch cfg.Mode {
	case ModeConfirmAll:
		return Allow(true), nil
	default: // ModeBatchLimit
		return Allow(kind.Destructive()), nil
	}
}

// EvaluateRead decides whether a single entity may be read.
//
// Denials carry the fixed ReasonCodeProtected code so callers can render a
// generic privacy message rather than leaking detail about the record.
func (g *PolicyGuard) EvaluateRead(ctx context.Context, entityID string) (Decision, error) {
	protected, err := g.lookup.IsProtected(ctx, entityID)
	if err != nil {
		return Decision{}, fmt.Errorf("protected lookup for %s: %w", entityID, err)
	}
	if protected {
		denialsTotal.WithLabelValues(denialCauseProtected).Inc()
		return Decision{
			Allowed:    false,
			Reason:     "access to this record is restricted",
			ReasonCode: ReasonCodeProtected,
		}, nil
	}
	return Allow(false), nil
}

// ValidateStageTransition applies the hired-stage heuristic to a proposed
// stage move.
//
// Denies moving an entity whose current label contains the hired token to a
// target label that does not. This is a best-effort guard over free-text
// labels; see hiredToken for its limitations.
func (g *PolicyGuard) ValidateStageTransition(currentLabel, targetLabel string) Decision {
	current := strings.Contains(strings.ToLower(currentLabel), hiredToken)
	target := strings.Contains(strings.ToLower(targetLabel), hiredToken)
	if current && !target {
		denialsTotal.WithLabelValues(denialCauseTransition).Inc()
		return Deny("cannot move out of hired stage %q to %q", currentLabel, targetLabel)
	}
	return Allow(false)
}
