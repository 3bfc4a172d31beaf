// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

import (
	"fmt"
	"time"
)

// Mode controls how aggressively write operations require human confirmation.
type Mode string

const (
	// ModeConfirmAll requires confirmation for every allowed write.
	ModeConfirmAll Mode = "CONFIRM_ALL"

	// ModeBatchLimit requires confirmation only for destructive write kinds.
	// Batch size limits still apply in both modes.
	ModeBatchLimit Mode = "BATCH_LIMIT"
)

// Valid reports whether the mode is one of the known safety modes.
func (m Mode) Valid() bool {
	return m == ModeConfirmAll || m == ModeBatchLimit
}

// WriteKind enumerates the write operations the agent can request against
// the hiring system.
type WriteKind string

const (
	WriteStageMove WriteKind = "stage_move"
	WriteNote      WriteKind = "note"
	WriteBatchMove WriteKind = "batch_move"
	WriteArchive   WriteKind = "archive"
	WriteSendOffer WriteKind = "send_offer"
)

// destructiveKinds is the explicit classification of which write kinds
// warrant mandatory confirmation even under ModeBatchLimit. Adding a note
// is reversible and cheap; everything that moves, archives, or offers is not.
var destructiveKinds = map[WriteKind]bool{
	WriteStageMove: true,
	WriteNote:      false,
	WriteBatchMove: true,
	WriteArchive:   true,
	WriteSendOffer: true,
}

// Destructive reports whether the kind is classified as destructive.
// Unknown kinds are treated as destructive.
func (k WriteKind) Destructive() bool {
	d, ok := destructiveKinds[k]
	if !ok {
		return true
	}
	return d
}

// ReasonCodeProtected is the machine-checkable code carried by read denials
// for protected entities. Callers branch on this code to render a generic
// privacy message instead of leaking detail about the record.
const ReasonCodeProtected = "protected_entity"

// Decision is the outcome of a policy evaluation.
//
// RequiresConfirmation is meaningful only when Allowed is true. Reason is a
// human-readable explanation present when denied; ReasonCode is set only for
// denials callers need to branch on programmatically.
type Decision struct {
	Allowed              bool   `json:"allowed"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	Reason               string `json:"reason,omitempty"`
	ReasonCode           string `json:"reason_code,omitempty"`
}

// Allow returns an allowing decision with the given confirmation requirement.
func Allow(requiresConfirmation bool) Decision {
	return Decision{Allowed: true, RequiresConfirmation: requiresConfirmation}
}

// Deny returns a denying decision with a human-readable reason.
func Deny(format string, args ...any) Decision {
	return Decision{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// PendingConfirmation is a short-lived record standing in for a write that
// has been approved by policy but not yet by a human.
//
// Lifecycle: created by the confirmation-requiring write path, read any
// number of times, and terminated exactly once by Complete (the caller then
// executes Payload), Cancel, or the expiry sweep (silently dropped, never
// executed). Once terminated the ID is no longer resolvable.
type PendingConfirmation struct {
	// ID is an opaque identifier unique across the process lifetime.
	ID string `json:"id"`

	// Kind is the write operation awaiting approval.
	Kind WriteKind `json:"kind"`

	// Description is the human-readable summary rendered to the approver.
	Description string `json:"description"`

	// EntityIDs are the hiring-system records the write touches.
	EntityIDs []string `json:"entity_ids"`

	// Payload carries whatever the caller needs to execute the write later.
	// The ledger never inspects or executes it.
	Payload any `json:"-"`

	// ChannelID and MessageTS identify the chat message the approver reacts
	// to. The ledger assumes, but does not enforce, that at most one live
	// confirmation exists per (channel, message) pair; if that is violated,
	// FindByMessage returns an unspecified one of the matches.
	ChannelID string `json:"channel_id"`
	MessageTS string `json:"message_ts"`

	// RequestedBy is the chat user who asked for the write. Identity is
	// trusted as given by the chat platform.
	RequestedBy string `json:"requested_by"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
