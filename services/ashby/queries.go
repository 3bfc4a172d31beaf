// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ashby

import (
	"context"
	"sort"
	"strings"
	"time"
)

// PipelineSummary aggregates the active pipeline by stage and job.
func (c *Client) PipelineSummary(ctx context.Context) (PipelineSummary, error) {
	apps, err := c.ActiveApplications(ctx)
	if err != nil {
		return PipelineSummary{}, err
	}
	openJobs, err := c.OpenJobs(ctx)
	if err != nil {
		return PipelineSummary{}, err
	}

	summary := PipelineSummary{
		TotalActive: len(apps),
		OpenJobs:    len(openJobs),
		ByStage:     make(map[string]int),
		ByJob:       make(map[string]int),
	}
	for _, app := range apps {
		stage := app.CurrentInterviewStage.Title
		if stage == "" {
			stage = "Unknown"
		}
		summary.ByStage[stage]++

		job := app.Job.Title
		if job == "" {
			job = "Unknown"
		}
		summary.ByJob[job]++
	}
	for _, j := range openJobs {
		summary.OpenJobTitles = append(summary.OpenJobTitles, j.Title)
	}
	return summary, nil
}

// StaleCandidates returns applications stuck in a stage at least
// daysThreshold days, sorted by days-in-stage descending.
//
// Application Review is excluded when excludeAppReview is set; that stage
// is expected to carry a backlog and would drown out the real signal.
func (c *Client) StaleCandidates(ctx context.Context, daysThreshold int, excludeAppReview bool) ([]StaleCandidate, error) {
	apps, err := c.ActiveApplications(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var stale []StaleCandidate
	for _, app := range apps {
		stage := app.CurrentInterviewStage.Title
		if excludeAppReview && strings.Contains(strings.ToLower(stage), "application review") {
			continue
		}
		if app.UpdatedAt.IsZero() {
			continue
		}

		days := int(now.Sub(app.UpdatedAt).Hours() / 24)
		if days < daysThreshold {
			continue
		}

		name := app.Candidate.Name
		if name == "" {
			name = "Unknown"
		}
		email := app.Candidate.PrimaryEmailAddress.Value
		if email == "" {
			email = "N/A"
		}
		stale = append(stale, StaleCandidate{
			CandidateName: name,
			CandidateID:   app.Candidate.ID,
			ApplicationID: app.ID,
			Stage:         stage,
			DaysInStage:   days,
			Job:           app.Job.Title,
			Email:         email,
		})
	}

	sort.Slice(stale, func(i, j int) bool {
		return stale[i].DaysInStage > stale[j].DaysInStage
	})
	return stale, nil
}
