// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ashby is a thin client for the Ashby ATS API.
//
// Every Ashby endpoint is an HTTP POST with a JSON body and basic auth
// (the API key as username, empty password). Responses share a common
// envelope with success/errors/cursor fields. List endpoints paginate
// with an opaque cursor.
package ashby

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.ashbyhq.com"

// maxPages bounds pagination so a bad cursor can't loop forever.
const maxPages = 50

// pageSize is the per-request limit Ashby accepts on list endpoints.
const pageSize = 100

// Client talks to the Ashby API.
//
// # Thread Safety
//
// Safe for concurrent use. The rate limiter serializes request pacing;
// everything else is immutable after construction.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// ClientOption customizes client construction.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL. Used by tests to point the
// client at an httptest server.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithRateLimit overrides the request rate limit.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewClient creates an Ashby client.
//
// The default rate limit is 8 requests/second with a burst of 4, below
// Ashby's published ceiling so pagination bursts don't trip 429s.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ashby api key is required")
	}
	c := &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(8), 4),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// post sends one POST request to an endpoint and decodes the response into
// out, which must embed the apiResponse envelope fields.
func (c *Client) post(ctx context.Context, endpoint string, body map[string]any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	if body == nil {
		body = map[string]any{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request for %s: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request for %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.apiKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return nil
}

// listPage is the envelope for paginated list endpoints.
type listPage[T any] struct {
	apiResponse
	Results []T `json:"results"`
}

// postPaginated fetches all pages from a list endpoint.
func postPaginated[T any](ctx context.Context, c *Client, endpoint string, body map[string]any) ([]T, error) {
	reqBody := map[string]any{"limit": pageSize}
	for k, v := range body {
		reqBody[k] = v
	}

	var all []T
	for page := 0; page < maxPages; page++ {
		var resp listPage[T]
		if err := c.post(ctx, endpoint, reqBody, &resp); err != nil {
			return nil, err
		}
		if !resp.Success {
			return nil, fmt.Errorf("%s reported failure: %v", endpoint, resp.Errors)
		}
		all = append(all, resp.Results...)
		if !resp.MoreDataAvailable {
			return all, nil
		}
		reqBody["cursor"] = resp.NextCursor
	}
	slog.Warn("Pagination stopped at page cap", "endpoint", endpoint, "pages", maxPages)
	return all, nil
}

// =============================================================================
// Read operations
// =============================================================================

// Jobs lists all jobs.
func (c *Client) Jobs(ctx context.Context) ([]Job, error) {
	return postPaginated[Job](ctx, c, "job.list", nil)
}

// OpenJobs lists jobs with status Open.
func (c *Client) OpenJobs(ctx context.Context) ([]Job, error) {
	jobs, err := c.Jobs(ctx)
	if err != nil {
		return nil, err
	}
	var open []Job
	for _, j := range jobs {
		if j.Status == "Open" {
			open = append(open, j)
		}
	}
	return open, nil
}

// ActiveApplications lists all applications with status Active.
func (c *Client) ActiveApplications(ctx context.Context) ([]Application, error) {
	return postPaginated[Application](ctx, c, "application.list", map[string]any{"status": "Active"})
}

// ApplicationsByStage lists active applications whose current stage title
// matches stageName exactly.
func (c *Client) ApplicationsByStage(ctx context.Context, stageName string) ([]Application, error) {
	apps, err := c.ActiveApplications(ctx)
	if err != nil {
		return nil, err
	}
	var matched []Application
	for _, app := range apps {
		if app.CurrentInterviewStage.Title == stageName {
			matched = append(matched, app)
		}
	}
	return matched, nil
}

// singleResult is the envelope for endpoints returning one record.
type singleResult[T any] struct {
	apiResponse
	Results T `json:"results"`
}

// Candidate fetches one candidate by id.
func (c *Client) Candidate(ctx context.Context, candidateID string) (Candidate, error) {
	var resp singleResult[Candidate]
	if err := c.post(ctx, "candidate.info", map[string]any{"id": candidateID}, &resp); err != nil {
		return Candidate{}, err
	}
	if !resp.Success {
		return Candidate{}, fmt.Errorf("candidate.info reported failure: %v", resp.Errors)
	}
	return resp.Results, nil
}

// CandidateApplications lists all applications for one candidate,
// regardless of status.
func (c *Client) CandidateApplications(ctx context.Context, candidateID string) ([]Application, error) {
	return postPaginated[Application](ctx, c, "application.list", map[string]any{"candidateId": candidateID})
}

// InterviewStages lists the stages of the default interview plan.
func (c *Client) InterviewStages(ctx context.Context) ([]InterviewStage, error) {
	return postPaginated[InterviewStage](ctx, c, "interviewStage.list", nil)
}

// StageByName finds a stage whose title matches name exactly.
func (c *Client) StageByName(ctx context.Context, name string) (InterviewStage, error) {
	stages, err := c.InterviewStages(ctx)
	if err != nil {
		return InterviewStage{}, err
	}
	for _, s := range stages {
		if s.Title == name {
			return s, nil
		}
	}
	return InterviewStage{}, fmt.Errorf("no interview stage named %q", name)
}

// Offers lists offers, optionally filtered by status.
func (c *Client) Offers(ctx context.Context, status string) ([]Offer, error) {
	offers, err := postPaginated[Offer](ctx, c, "offer.list", nil)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return offers, nil
	}
	var matched []Offer
	for _, o := range offers {
		if o.Status == status {
			matched = append(matched, o)
		}
	}
	return matched, nil
}

// PendingOffers lists offers still awaiting a response or approval.
func (c *Client) PendingOffers(ctx context.Context) ([]Offer, error) {
	offers, err := c.Offers(ctx, "")
	if err != nil {
		return nil, err
	}
	var pending []Offer
	for _, o := range offers {
		switch o.Status {
		case "Pending", "Draft", "WaitingOnApproval":
			pending = append(pending, o)
		}
	}
	return pending, nil
}

// =============================================================================
// Write operations
// =============================================================================

// AddCandidateNote attaches a note to a candidate, tagged with a
// traceability prefix naming the bot and the requesting user.
func (c *Client) AddCandidateNote(ctx context.Context, candidateID, note, requestedBy string) error {
	tag := fmt.Sprintf("[via TalentFlow - %s", time.Now().Format("2006-01-02 15:04"))
	if requestedBy != "" {
		tag += " - Req: " + requestedBy
	}
	tag += "]"

	var resp apiResponse
	err := c.post(ctx, "candidate.createNote", map[string]any{
		"candidateId": candidateID,
		"note":        tag + "\n" + note,
		"type":        "text",
	}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("candidate.createNote reported failure: %v", resp.Errors)
	}
	return nil
}

// MoveApplicationStage moves an application to a different interview stage.
func (c *Client) MoveApplicationStage(ctx context.Context, applicationID, stageID string) error {
	var resp apiResponse
	err := c.post(ctx, "application.changeStage", map[string]any{
		"applicationId":    applicationID,
		"interviewStageId": stageID,
	}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("application.changeStage reported failure: %v", resp.Errors)
	}
	return nil
}

// ArchiveApplication archives an application with an archive reason.
func (c *Client) ArchiveApplication(ctx context.Context, applicationID, archiveReasonID string) error {
	var resp apiResponse
	err := c.post(ctx, "application.changeStage", map[string]any{
		"applicationId":   applicationID,
		"archiveReasonId": archiveReasonID,
		"archive":         true,
	}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("application archive reported failure: %v", resp.Errors)
	}
	return nil
}
