// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// recordingLookup remembers which entities were queried and answers from a
// fixed set of protected ids.
type recordingLookup struct {
	mu        sync.Mutex
	protected map[string]bool
	queried   []string
	err       error
}

func (r *recordingLookup) IsProtected(_ context.Context, entityID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queried = append(r.queried, entityID)
	if r.err != nil {
		return false, r.err
	}
	return r.protected[entityID], nil
}

func newGuard(t *testing.T, mode Mode, batchLimit int, lookup ProtectedLookup) *PolicyGuard {
	t.Helper()
	g, err := NewPolicyGuard(GuardConfig{Mode: mode, BatchLimit: batchLimit}, lookup)
	if err != nil {
		t.Fatalf("NewPolicyGuard failed: %v", err)
	}
	return g
}

func TestNewPolicyGuardValidation(t *testing.T) {
	lookup := &recordingLookup{}
	tests := []struct {
		name    string
		cfg     GuardConfig
		lookup  ProtectedLookup
		wantErr bool
	}{
		{"valid confirm all", GuardConfig{Mode: ModeConfirmAll, BatchLimit: 2}, lookup, false},
		{"valid batch limit", GuardConfig{Mode: ModeBatchLimit, BatchLimit: 10}, lookup, false},
		{"unknown mode", GuardConfig{Mode: "YOLO", BatchLimit: 2}, lookup, true},
		{"batch limit zero", GuardConfig{Mode: ModeConfirmAll, BatchLimit: 0}, lookup, true},
		{"batch limit too high", GuardConfig{Mode: ModeConfirmAll, BatchLimit: 11}, lookup, true},
		{"nil lookup", GuardConfig{Mode: ModeConfirmAll, BatchLimit: 2}, nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPolicyGuard(tc.cfg, tc.lookup)
			if (err != nil) != tc.wantErr {
				t.Errorf("NewPolicyGuard(%+v) error = %v, wantErr %v", tc.cfg, err, tc.wantErr)
			}
		})
	}
}

func TestEvaluateWriteBatchLimit(t *testing.T) {
	// Protected status must not matter when the batch limit trips.
	lookup := &recordingLookup{protected: map[string]bool{"a": true}}
	g := newGuard(t, ModeConfirmAll, 2, lookup)

	dec, err := g.EvaluateWrite(context.Background(), WriteBatchMove, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EvaluateWrite returned error: %v", err)
	}
	if dec.Allowed {
		t.Fatal("expected denial for oversized batch")
	}
	if !strings.Contains(dec.Reason, "3") || !strings.Contains(dec.Reason, "2") {
		t.Errorf("reason should name observed size and limit, got %q", dec.Reason)
	}
	if len(lookup.queried) != 0 {
		t.Errorf("batch limit check must run before protected lookups, queried %v", lookup.queried)
	}
}

func TestEvaluateWriteProtectedShortCircuit(t *testing.T) {
	lookup := &recordingLookup{protected: map[string]bool{"c2": true}}
	g := newGuard(t, ModeConfirmAll, 10, lookup)

	dec, err := g.EvaluateWrite(context.Background(), WriteStageMove, []string{"c1", "c2", "c3", "c4"})
	if err != nil {
		t.Fatalf("EvaluateWrite returned error: %v", err)
	}
	if dec.Allowed {
		t.Fatal("expected denial for protected entity")
	}
	if !strings.Contains(dec.Reason, "c2") {
		t.Errorf("reason should name the first protected entity, got %q", dec.Reason)
	}
	want := []string{"c1", "c2"}
	if len(lookup.queried) != len(want) {
		t.Fatalf("lookup must short-circuit after first protected entity, queried %v", lookup.queried)
	}
	for i, id := range want {
		if lookup.queried[i] != id {
			t.Errorf("query order mismatch at %d: got %s, want %s", i, lookup.queried[i], id)
		}
	}
}

func TestEvaluateWriteEmptyEntityList(t *testing.T) {
	lookup := &recordingLookup{}
	g := newGuard(t, ModeConfirmAll, 1, lookup)

	dec, err := g.EvaluateWrite(context.Background(), WriteNote, nil)
	if err != nil {
		t.Fatalf("EvaluateWrite returned error: %v", err)
	}
	if !dec.Allowed {
		t.Errorf("empty entity lists are never protected, got denial %q", dec.Reason)
	}
	if len(lookup.queried) != 0 {
		t.Errorf("no lookups expected for empty list, queried %v", lookup.queried)
	}
}

func TestEvaluateWriteConfirmationModes(t *testing.T) {
	tests := []struct {
		name        string
		mode        Mode
		kind        WriteKind
		wantConfirm bool
	}{
		{"confirm all note", ModeConfirmAll, WriteNote, true},
		{"confirm all stage move", ModeConfirmAll, WriteStageMove, true},
		{"batch limit note", ModeBatchLimit, WriteNote, false},
		{"batch limit stage move", ModeBatchLimit, WriteStageMove, true},
		{"batch limit batch move", ModeBatchLimit, WriteBatchMove, true},
		{"batch limit archive", ModeBatchLimit, WriteArchive, true},
		{"batch limit send offer", ModeBatchLimit, WriteSendOffer, true},
		{"batch limit unknown kind", ModeBatchLimit, WriteKind("mystery"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := newGuard(t, tc.mode, 5, &recordingLookup{})
			dec, err := g.EvaluateWrite(context.Background(), tc.kind, []string{"c1"})
			if err != nil {
				t.Fatalf("EvaluateWrite returned error: %v", err)
			}
			if !dec.Allowed {
				t.Fatalf("expected allow, got denial %q", dec.Reason)
			}
			if dec.RequiresConfirmation != tc.wantConfirm {
				t.Errorf("RequiresConfirmation = %v, want %v", dec.RequiresConfirmation, tc.wantConfirm)
			}
		})
	}
}

func TestEvaluateWriteLookupFailurePropagates(t *testing.T) {
	lookupErr := errors.New("ats unreachable")
	g := newGuard(t, ModeConfirmAll, 5, &recordingLookup{err: lookupErr})

	_, err := g.EvaluateWrite(context.Background(), WriteStageMove, []string{"c1"})
	if !errors.Is(err, lookupErr) {
		t.Fatalf("lookup failure must propagate as an error, got %v", err)
	}
}

func TestEvaluateRead(t *testing.T) {
	lookup := &recordingLookup{protected: map[string]bool{"hired-1": true}}
	g := newGuard(t, ModeBatchLimit, 5, lookup)

	dec, err := g.EvaluateRead(context.Background(), "hired-1")
	if err != nil {
		t.Fatalf("EvaluateRead returned error: %v", err)
	}
	if dec.Allowed {
		t.Fatal("expected read denial for protected entity")
	}
	if dec.ReasonCode != ReasonCodeProtected {
		t.Errorf("ReasonCode = %q, want %q", dec.ReasonCode, ReasonCodeProtected)
	}

	dec, err = g.EvaluateRead(context.Background(), "open-1")
	if err != nil {
		t.Fatalf("EvaluateRead returned error: %v", err)
	}
	if !dec.Allowed || dec.ReasonCode != "" {
		t.Errorf("expected plain allow for unprotected read, got %+v", dec)
	}

	lookupErr := errors.New("timeout")
	g = newGuard(t, ModeBatchLimit, 5, &recordingLookup{err: lookupErr})
	if _, err := g.EvaluateRead(context.Background(), "c1"); !errors.Is(err, lookupErr) {
		t.Errorf("read lookup failure must propagate, got %v", err)
	}
}

func TestValidateStageTransition(t *testing.T) {
	g := newGuard(t, ModeConfirmAll, 5, &recordingLookup{})

	tests := []struct {
		name    string
		current string
		target  string
		allowed bool
	}{
		{"forward move", "Phone Screen", "Onsite", true},
		{"into hired", "Offer", "Hired", true},
		{"out of hired", "Hired", "Offer", false},
		{"out of hired mixed case", "HIRED - Pending Start", "Phone Screen", false},
		{"hired to hired", "Hired", "Hired (Contractor)", true},
		{"unrelated labels", "Application Review", "Rejected", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dec := g.ValidateStageTransition(tc.current, tc.target)
			if dec.Allowed != tc.allowed {
				t.Errorf("ValidateStageTransition(%q, %q).Allowed = %v, want %v",
					tc.current, tc.target, dec.Allowed, tc.allowed)
			}
		})
	}
}

func TestUpdateConfig(t *testing.T) {
	g := newGuard(t, ModeConfirmAll, 2, &recordingLookup{})

	if err := g.UpdateConfig(GuardConfig{Mode: ModeBatchLimit, BatchLimit: 5}); err != nil {
		t.Fatalf("valid update rejected: %v", err)
	}
	if got := g.Config(); got.Mode != ModeBatchLimit || got.BatchLimit != 5 {
		t.Errorf("config not applied, got %+v", got)
	}

	if err := g.UpdateConfig(GuardConfig{Mode: "bogus", BatchLimit: 5}); err == nil {
		t.Fatal("invalid update accepted")
	}
	if got := g.Config(); got.Mode != ModeBatchLimit {
		t.Errorf("failed update must leave previous config in effect, got %+v", got)
	}
}
