// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ashby

import "time"

// Job is an open or closed role in the ATS.
type Job struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"` // Open, Closed, Draft, Archived
}

// InterviewStage is one step of an interview plan. Titles are free text
// entered by recruiters ("Phone Screen", "Hired - Pending Start", ...).
type InterviewStage struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type,omitempty"`
	Order int    `json:"orderInInterviewPlan,omitempty"`
}

// EmailAddress is a candidate contact record.
type EmailAddress struct {
	Value string `json:"value"`
}

// Candidate is a person in the pipeline.
type Candidate struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	PrimaryEmailAddress EmailAddress `json:"primaryEmailAddress"`
}

// Application ties a candidate to a job at a stage.
type Application struct {
	ID                    string         `json:"id"`
	Status                string         `json:"status"` // Active, Hired, Archived
	Candidate             Candidate      `json:"candidate"`
	Job                   Job            `json:"job"`
	CurrentInterviewStage InterviewStage `json:"currentInterviewStage"`
	CreatedAt             time.Time      `json:"createdAt"`
	UpdatedAt             time.Time      `json:"updatedAt"`
}

// Offer is an offer extended (or being drafted) for an application.
type Offer struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	Status        string    `json:"status"` // Pending, Draft, WaitingOnApproval, Accepted, Declined
	CreatedAt     time.Time `json:"createdAt"`
}

// StaleCandidate is an application stuck in a stage past the threshold.
type StaleCandidate struct {
	CandidateName string `json:"candidate_name"`
	CandidateID   string `json:"candidate_id"`
	ApplicationID string `json:"application_id"`
	Stage         string `json:"stage"`
	DaysInStage   int    `json:"days_in_stage"`
	Job           string `json:"job"`
	Email         string `json:"email"`
}

// PipelineSummary is an aggregate view of the active pipeline.
type PipelineSummary struct {
	TotalActive   int            `json:"total_active"`
	OpenJobs      int            `json:"open_jobs"`
	ByStage       map[string]int `json:"by_stage"`
	ByJob         map[string]int `json:"by_job"`
	OpenJobTitles []string       `json:"open_job_titles"`
}

// apiResponse is the common envelope every Ashby endpoint returns.
type apiResponse struct {
	Success           bool     `json:"success"`
	Errors            []string `json:"errors,omitempty"`
	MoreDataAvailable bool     `json:"moreDataAvailable,omitempty"`
	NextCursor        string   `json:"nextCursor,omitempty"`
}
