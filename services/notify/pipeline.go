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
	"time"

	"github.com/talentflowhq/talentflow/services/ashby"
)

// staleCriticalDays is the age at which a stuck candidate escalates from
// warning to critical.
const staleCriticalDays = 30

// offerStaleDays is the age at which a pending offer becomes alert-worthy.
const offerStaleDays = 3

// PipelineChecker builds candidate alerts from the ATS.
type PipelineChecker struct {
	client         *ashby.Client
	staleThreshold int
}

// NewPipelineChecker creates a checker. staleThreshold is the minimum
// days-in-stage before a candidate counts as stale.
func NewPipelineChecker(client *ashby.Client, staleThreshold int) *PipelineChecker {
	if staleThreshold <= 0 {
		staleThreshold = 14
	}
	return &PipelineChecker{client: client, staleThreshold: staleThreshold}
}

// Check queries the ATS and returns every alert candidate, unfiltered.
// Severity and cooldown filtering happen in Select so display truncation
// can never hide what gets recorded.
func (p *PipelineChecker) Check(ctx context.Context) ([]Alert, error) {
	var alerts []Alert

	stale, err := p.client.StaleCandidates(ctx, p.staleThreshold, true)
	if err != nil {
		return nil, fmt.Errorf("checking stale candidates: %w", err)
	}
	for _, s := range stale {
		severity := SeverityWarning
		if s.DaysInStage >= staleCriticalDays {
			severity = SeverityCritical
		}
		alerts = append(alerts, Alert{
			SubjectID: s.CandidateID,
			Condition: ConditionStale,
			Severity:  severity,
			AgeDays:   s.DaysInStage,
			Message: fmt.Sprintf("*%s* (%s) stuck in _%s_ for %d days",
				s.CandidateName, s.Job, s.Stage, s.DaysInStage),
		})
	}

	offers, err := p.client.PendingOffers(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking pending offers: %w", err)
	}
	for _, o := range offers {
		age := offerAgeDays(o)
		if age < offerStaleDays {
			continue
		}
		alerts = append(alerts, Alert{
			SubjectID: o.ID,
			Condition: ConditionPendingOffer,
			Severity:  SeverityInfo,
			AgeDays:   age,
			Message:   fmt.Sprintf("Offer `%s` has been %s for %d days", o.ID, o.Status, age),
		})
	}

	return alerts, nil
}

// offerAgeDays returns how many days ago the offer was created.
func offerAgeDays(o ashby.Offer) int {
	if o.CreatedAt.IsZero() {
		return 0
	}
	return int(time.Since(o.CreatedAt).Hours() / 24)
}
