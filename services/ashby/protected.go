// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ashby

import (
	"context"
	"fmt"
	"strings"
)

// HiredLookup answers the safety core's protected-entity question: a
// candidate is off-limits once any of their applications has been hired.
//
// Implements safety.ProtectedLookup. Lookups hit the ATS, so a failure is
// returned as an error and the guard decides nothing from it; unreachable
// never means protected.
type HiredLookup struct {
	client *Client
}

// NewHiredLookup wraps a client as a protected-entity lookup.
func NewHiredLookup(client *Client) *HiredLookup {
	return &HiredLookup{client: client}
}

// IsProtected reports whether the candidate has a hired application.
//
// Hired means an application status of Hired, or a current stage title
// containing "hired". This is the same free-text heuristic the policy
// guard applies to stage transitions.
func (h *HiredLookup) IsProtected(ctx context.Context, candidateID string) (bool, error) {
	apps, err := h.client.CandidateApplications(ctx, candidateID)
	if err != nil {
		return false, fmt.Errorf("listing applications for %s: %w", candidateID, err)
	}
	for _, app := range apps {
		if applicationHired(app) {
			return true, nil
		}
	}
	return false, nil
}

// applicationHired applies the hired heuristic to one application.
func applicationHired(app Application) bool {
	if strings.EqualFold(app.Status, "Hired") {
		return true
	}
	return strings.Contains(strings.ToLower(app.CurrentInterviewStage.Title), "hired")
}
