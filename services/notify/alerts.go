// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package notify builds proactive pipeline alerts and decides which of
// them are worth sending, using the safety core's cooldown tracker to
// avoid re-alerting about the same issue within the configured window.
package notify

import (
	"fmt"
	"sort"

	"github.com/talentflowhq/talentflow/services/safety"
)

// Severity orders alerts from informational to critical.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// String returns "info", "warning", or "critical".
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a config string to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "info":
		return SeverityInfo, nil
	case "warning":
		return SeverityWarning, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown severity %q", s)
	}
}

// Alert conditions. Each (subject, condition) pair gets its own cooldown
// window.
const (
	ConditionStale         = "stale"
	ConditionPendingOffer  = "pending_offer"
	ConditionNeedsDecision = "needs_decision"
)

// Alert is one candidate issue worth surfacing to the channel.
type Alert struct {
	// SubjectID identifies the record the alert is about (candidate or
	// offer id). Combined with Condition it keys the cooldown window.
	SubjectID string

	// Condition is one of the Condition* constants.
	Condition string

	Severity Severity

	// AgeDays is how long the subject has been in its current state.
	// Used as the secondary sort key so the longest-stuck items surface
	// first within a severity.
	AgeDays int

	// Message is the rendered line for the digest.
	Message string
}

// displayLimit caps how many alerts of one severity appear in a digest.
// Truncation is display-only: every selected alert is still recorded in
// the cooldown tracker.
const displayLimit = 10

// Selection is the outcome of filtering a candidate alert set.
type Selection struct {
	// Send is the ordered, truncated set to render in the digest.
	Send []Alert

	// Recorded is every alert that passed the severity and cooldown
	// filters, including ones truncated from display. All of these must
	// be marked in the cooldown tracker.
	Recorded []safety.CooldownKey
}

// Select filters candidates down to what should be sent now.
//
// # Description
//
// Candidates below minSeverity are dropped first, then anything already on
// cooldown. Survivors sort by severity descending, then age-in-state
// descending, so the most urgent and longest-stuck items lead the digest.
// The per-severity display cap is applied last and does not affect which
// pairs are recorded as alerted.
func Select(candidates []Alert, minSeverity Severity, cooldowns *safety.CooldownTracker) Selection {
	var survivors []Alert
	for _, a := range candidates {
		if a.Severity < minSeverity {
			continue
		}
		if cooldowns.IsOnCooldown(a.SubjectID, a.Condition) {
			continue
		}
		survivors = append(survivors, a)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		if survivors[i].Severity != survivors[j].Severity {
			return survivors[i].Severity > survivors[j].Severity
		}
		return survivors[i].AgeDays > survivors[j].AgeDays
	})

	sel := Selection{}
	perSeverity := make(map[Severity]int)
	for _, a := range survivors {
		sel.Recorded = append(sel.Recorded, safety.CooldownKey{
			SubjectID: a.SubjectID,
			Condition: a.Condition,
		})
		if perSeverity[a.Severity] < displayLimit {
			sel.Send = append(sel.Send, a)
			perSeverity[a.Severity]++
		}
	}
	return sel
}
