// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talentflowhq/talentflow/services/ashby"
	"github.com/talentflowhq/talentflow/services/safety"
)

// Executor carries out approved write payloads against the ATS.
//
// Callers invoke Execute only after the ledger's Complete returned the
// entry. This is the single place writes actually happen.
type Executor struct {
	client *ashby.Client
}

// NewExecutor creates an executor over the given client.
func NewExecutor(client *ashby.Client) *Executor {
	return &Executor{client: client}
}

// Execute runs the payload and returns a human-readable result line.
func (e *Executor) Execute(ctx context.Context, p WritePayload) (string, error) {
	slog.Info("Executing approved write",
		"kind", p.Kind,
		"requested_by", p.RequestedBy)

	switch p.Kind {
	case safety.WriteNote:
		if err := e.client.AddCandidateNote(ctx, p.CandidateID, p.Note, p.RequestedBy); err != nil {
			return "", fmt.Errorf("adding note: %w", err)
		}
		return fmt.Sprintf("Note added to candidate `%s`.", p.CandidateID), nil

	case safety.WriteStageMove:
		if err := e.client.MoveApplicationStage(ctx, p.ApplicationID, p.StageID); err != nil {
			return "", fmt.Errorf("moving stage: %w", err)
		}
		return fmt.Sprintf("Application `%s` moved to *%s*.", p.ApplicationID, p.StageTitle), nil

	case safety.WriteBatchMove:
		var moved int
		for _, appID := range p.ApplicationIDs {
			if err := e.client.MoveApplicationStage(ctx, appID, p.StageID); err != nil {
				return "", fmt.Errorf("batch move failed after %d of %d: %w",
					moved, len(p.ApplicationIDs), err)
			}
			moved++
		}
		return fmt.Sprintf("%d applications moved to *%s*.", moved, p.StageTitle), nil

	case safety.WriteArchive:
		if err := e.client.ArchiveApplication(ctx, p.ApplicationID, p.StageID); err != nil {
			return "", fmt.Errorf("archiving application: %w", err)
		}
		return fmt.Sprintf("Application `%s` archived.", p.ApplicationID), nil

	default:
		return "", fmt.Errorf("unknown write kind %q", p.Kind)
	}
}
