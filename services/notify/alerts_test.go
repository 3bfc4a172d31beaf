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
	"strings"
	"testing"
	"time"

	"github.com/talentflowhq/talentflow/services/safety"
)

func newTracker() (*safety.CooldownTracker, *safety.FakeClock) {
	clock := safety.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	return safety.NewCooldownTracker(8*time.Hour, safety.WithCooldownClock(clock)), clock
}

func TestSelectSeverityFloor(t *testing.T) {
	tracker, _ := newTracker()
	candidates := []Alert{
		{SubjectID: "a", Condition: ConditionStale, Severity: SeverityInfo},
		{SubjectID: "b", Condition: ConditionStale, Severity: SeverityWarning},
		{SubjectID: "c", Condition: ConditionStale, Severity: SeverityCritical},
	}

	sel := Select(candidates, SeverityWarning, tracker)
	if len(sel.Send) != 2 {
		t.Fatalf("expected 2 alerts above the floor, got %d", len(sel.Send))
	}
	for _, a := range sel.Send {
		if a.Severity < SeverityWarning {
			t.Errorf("alert below min severity leaked through: %+v", a)
		}
	}
}

func TestSelectOrdering(t *testing.T) {
	tracker, _ := newTracker()
	candidates := []Alert{
		{SubjectID: "w-old", Condition: ConditionStale, Severity: SeverityWarning, AgeDays: 20},
		{SubjectID: "c-young", Condition: ConditionStale, Severity: SeverityCritical, AgeDays: 31},
		{SubjectID: "w-young", Condition: ConditionStale, Severity: SeverityWarning, AgeDays: 15},
		{SubjectID: "c-old", Condition: ConditionStale, Severity: SeverityCritical, AgeDays: 45},
	}

	sel := Select(candidates, SeverityInfo, tracker)
	want := []string{"c-old", "c-young", "w-old", "w-young"}
	if len(sel.Send) != len(want) {
		t.Fatalf("got %d alerts, want %d", len(sel.Send), len(want))
	}
	for i, id := range want {
		if sel.Send[i].SubjectID != id {
			t.Errorf("position %d: got %s, want %s (severity desc, then age desc)",
				i, sel.Send[i].SubjectID, id)
		}
	}
}

func TestSelectCooldownSuppression(t *testing.T) {
	tracker, clock := newTracker()
	candidates := []Alert{
		{SubjectID: "cand-1", Condition: ConditionStale, Severity: SeverityWarning, AgeDays: 20},
	}

	sel := Select(candidates, SeverityInfo, tracker)
	if len(sel.Send) != 1 {
		t.Fatal("first selection should pass")
	}
	tracker.RecordAlerted(sel.Recorded)

	sel = Select(candidates, SeverityInfo, tracker)
	if len(sel.Send) != 0 {
		t.Error("alert on cooldown must be suppressed")
	}

	clock.Advance(8*time.Hour + time.Minute)
	sel = Select(candidates, SeverityInfo, tracker)
	if len(sel.Send) != 1 {
		t.Error("alert must pass again after the cooldown elapses")
	}
}

func TestSelectTruncationStillRecordsAll(t *testing.T) {
	tracker, _ := newTracker()
	var candidates []Alert
	for i := 0; i < displayLimit+5; i++ {
		candidates = append(candidates, Alert{
			SubjectID: fmt.Sprintf("cand-%d", i),
			Condition: ConditionStale,
			Severity:  SeverityWarning,
			AgeDays:   i,
		})
	}

	sel := Select(candidates, SeverityInfo, tracker)
	if len(sel.Send) != displayLimit {
		t.Errorf("display should truncate to %d, got %d", displayLimit, len(sel.Send))
	}
	if len(sel.Recorded) != displayLimit+5 {
		t.Errorf("all filtered-in alerts must be recorded, got %d of %d",
			len(sel.Recorded), displayLimit+5)
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"info", SeverityInfo, false},
		{"warning", SeverityWarning, false},
		{"critical", SeverityCritical, false},
		{"urgent", SeverityInfo, true},
	}
	for _, tc := range tests {
		got, err := ParseSeverity(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseSeverity(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if err == nil && got != tc.want {
			t.Errorf("ParseSeverity(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

// stubChecker returns a fixed alert set.
type stubChecker struct {
	alerts []Alert
	err    error
}

func (s *stubChecker) Check(context.Context) ([]Alert, error) { return s.alerts, s.err }

// stubPoster records posted digests.
type stubPoster struct {
	posted []string
	err    error
}

func (s *stubPoster) PostMessage(_ context.Context, _ string, text string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.posted = append(s.posted, text)
	return "1.0", nil
}

func TestSchedulerRunOnce(t *testing.T) {
	tracker, _ := newTracker()
	checker := &stubChecker{alerts: []Alert{
		{SubjectID: "cand-1", Condition: ConditionStale, Severity: SeverityCritical, AgeDays: 40, Message: "cand-1 stuck"},
		{SubjectID: "cand-2", Condition: ConditionStale, Severity: SeverityWarning, AgeDays: 15, Message: "cand-2 stuck"},
	}}
	poster := &stubPoster{}
	sched := NewScheduler(SchedulerConfig{ChannelID: "C1", MinSeverity: SeverityInfo}, checker, poster, tracker)

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if len(poster.posted) != 1 {
		t.Fatalf("expected one digest, got %d", len(poster.posted))
	}
	digest := poster.posted[0]
	if !strings.Contains(digest, "cand-1 stuck") || !strings.Contains(digest, "cand-2 stuck") {
		t.Errorf("digest missing alerts: %q", digest)
	}
	if strings.Index(digest, "cand-1 stuck") > strings.Index(digest, "cand-2 stuck") {
		t.Error("critical alert should precede warning in the digest")
	}

	// Second run: everything on cooldown, nothing posted.
	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("second RunOnce failed: %v", err)
	}
	if len(poster.posted) != 1 {
		t.Error("suppressed run must not post")
	}
}

func TestSchedulerPostFailureDoesNotRecordCooldown(t *testing.T) {
	tracker, _ := newTracker()
	checker := &stubChecker{alerts: []Alert{
		{SubjectID: "cand-1", Condition: ConditionStale, Severity: SeverityWarning, AgeDays: 15, Message: "m"},
	}}
	poster := &stubPoster{err: fmt.Errorf("slack down")}
	sched := NewScheduler(SchedulerConfig{ChannelID: "C1"}, checker, poster, tracker)

	if err := sched.RunOnce(context.Background()); err == nil {
		t.Fatal("expected post failure to surface")
	}
	if tracker.IsOnCooldown("cand-1", ConditionStale) {
		t.Error("a failed post must not start the cooldown window")
	}
}
