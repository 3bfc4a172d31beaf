// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agent runs the LLM tool-calling loop that turns operator chat
// into hiring-system operations, gated by the safety core.
//
// The agent never executes a confirmation-requiring write itself: it
// evaluates the request through the policy guard and, when confirmation is
// needed, hands a Proposal back to the chat layer, which registers it in
// the confirmation ledger and renders an approval card.
package agent

import (
	"github.com/talentflowhq/talentflow/services/safety"
)

// Request is one operator message for the agent to act on.
type Request struct {
	// Text is the message with the bot mention already stripped.
	Text string

	// UserID is the requesting chat user, trusted as given by the platform.
	UserID string

	// ChannelID is where the conversation happens.
	ChannelID string
}

// Response is the agent's answer plus any writes awaiting confirmation.
type Response struct {
	// Text is the reply to render in the channel.
	Text string

	// Proposals are policy-allowed writes that still need a human
	// approval before execution.
	Proposals []Proposal
}

// Proposal is a write the policy guard allowed but flagged for
// confirmation. The chat layer registers it in the ledger; on approval the
// Payload is handed to the Executor.
type Proposal struct {
	Kind        safety.WriteKind
	Description string
	EntityIDs   []string
	Payload     WritePayload
}

// WritePayload carries everything needed to execute a write later. It is
// stored opaquely in the ledger entry.
type WritePayload struct {
	Kind safety.WriteKind `json:"kind"`

	CandidateID   string `json:"candidate_id,omitempty"`
	ApplicationID string `json:"application_id,omitempty"`
	StageID       string `json:"stage_id,omitempty"`
	StageTitle    string `json:"stage_title,omitempty"`
	Note          string `json:"note,omitempty"`

	// Batch moves carry one application per candidate.
	ApplicationIDs []string `json:"application_ids,omitempty"`

	RequestedBy string `json:"requested_by,omitempty"`
}
