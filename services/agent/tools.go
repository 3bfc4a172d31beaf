// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/talentflowhq/talentflow/pkg/validation"
	"github.com/talentflowhq/talentflow/services/ashby"
	"github.com/talentflowhq/talentflow/services/safety"
)

// toolDefinitions is the tool surface exposed to the model. Write tools
// say in their description that confirmation happens before execution so
// the model sets user expectations correctly.
func toolDefinitions() []openai.Tool {
	fn := func(name, description string, params map[string]any) openai.Tool {
		return openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        name,
				Description: description,
				Parameters:  params,
			},
		}
	}
	obj := func(required []string, props map[string]any) map[string]any {
		schema := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			schema["required"] = required
		}
		return schema
	}
	str := func(description string) map[string]any {
		return map[string]any{"type": "string", "description": description}
	}

	return []openai.Tool{
		fn("pipeline_overview",
			"Summarize the active hiring pipeline: totals, counts by stage and by job.",
			obj(nil, map[string]any{})),
		fn("stale_candidates",
			"List candidates stuck in a stage for too long, longest stuck first.",
			obj(nil, map[string]any{
				"days": map[string]any{"type": "integer", "description": "Days in stage to consider stale (default 14)"},
			})),
		fn("applications_by_stage",
			"List active applications currently in a named interview stage.",
			obj([]string{"stage"}, map[string]any{
				"stage": str("Exact interview stage title, e.g. \"Phone Screen\""),
			})),
		fn("search_candidates",
			"Find active candidates whose name contains the query, case-insensitive.",
			obj([]string{"query"}, map[string]any{
				"query": str("Part of the candidate's name"),
			})),
		fn("candidate_details",
			"Fetch a candidate's name, email, and applications by candidate id.",
			obj([]string{"candidate_id"}, map[string]any{
				"candidate_id": str("The candidate id"),
			})),
		fn("add_note",
			"Add a note to a candidate profile. May require human confirmation before executing.",
			obj([]string{"candidate_id", "note"}, map[string]any{
				"candidate_id": str("The candidate id"),
				"note":         str("The note text"),
			})),
		fn("move_stage",
			"Move a candidate's active application to a different interview stage. Requires human confirmation before executing.",
			obj([]string{"candidate_id", "target_stage"}, map[string]any{
				"candidate_id": str("The candidate id"),
				"target_stage": str("Exact title of the target interview stage"),
			})),
		fn("batch_move_stage",
			"Move several candidates' active applications to one target stage. Subject to the batch size limit and human confirmation.",
			obj([]string{"candidate_ids", "target_stage"}, map[string]any{
				"candidate_ids": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Candidate ids to move",
				},
				"target_stage": str("Exact title of the target interview stage"),
			})),
	}
}

// toolContext accumulates side effects of one loop run.
type toolContext struct {
	req       Request
	proposals []Proposal
}

// dispatchTool routes one tool call. Tool errors that represent policy
// denials come back as normal result strings for the model to relay;
// operational faults come back as errors.
func (a *Agent) dispatchTool(ctx context.Context, tc *toolContext, name string, args json.RawMessage) (string, error) {
	switch name {
	case "pipeline_overview":
		return a.toolPipelineOverview(ctx)
	case "stale_candidates":
		return a.toolStaleCandidates(ctx, args)
	case "applications_by_stage":
		return a.toolApplicationsByStage(ctx, args)
	case "search_candidates":
		return a.toolSearchCandidates(ctx, args)
	case "candidate_details":
		return a.toolCandidateDetails(ctx, args)
	case "add_note":
		return a.toolAddNote(ctx, tc, args)
	case "move_stage":
		return a.toolMoveStage(ctx, tc, args)
	case "batch_move_stage":
		return a.toolBatchMove(ctx, tc, args)
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

func (a *Agent) toolPipelineOverview(ctx context.Context) (string, error) {
	summary, err := a.client.PipelineSummary(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Active applications: %d across %d open jobs\n", summary.TotalActive, summary.OpenJobs)
	b.WriteString("By stage:\n")
	for stage, n := range summary.ByStage {
		fmt.Fprintf(&b, "- %s: %d\n", stage, n)
	}
	b.WriteString("By job:\n")
	for job, n := range summary.ByJob {
		fmt.Fprintf(&b, "- %s: %d\n", job, n)
	}
	return b.String(), nil
}

func (a *Agent) toolStaleCandidates(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Days int `json:"days"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", fmt.Errorf("parsing stale_candidates arguments: %w", err)
		}
	}
	if params.Days <= 0 {
		params.Days = 14
	}

	stale, err := a.client.StaleCandidates(ctx, params.Days, true)
	if err != nil {
		return "", err
	}
	if len(stale) == 0 {
		return fmt.Sprintf("No candidates stuck more than %d days. Pipeline is moving well.", params.Days), nil
	}

	const maxListed = 15
	var b strings.Builder
	fmt.Fprintf(&b, "Candidates stuck >%d days (longest first):\n", params.Days)
	for i, s := range stale {
		if i == maxListed {
			fmt.Fprintf(&b, "...and %d more\n", len(stale)-maxListed)
			break
		}
		fmt.Fprintf(&b, "- %s (%s): %d days in %s [candidate_id=%s]\n",
			s.CandidateName, s.Job, s.DaysInStage, s.Stage, s.CandidateID)
	}
	return b.String(), nil
}

func (a *Agent) toolApplicationsByStage(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Stage string `json:"stage"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parsing applications_by_stage arguments: %w", err)
	}

	apps, err := a.client.ApplicationsByStage(ctx, params.Stage)
	if err != nil {
		return "", err
	}
	if len(apps) == 0 {
		return fmt.Sprintf("No active applications in stage %q.", params.Stage), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d applications in %s:\n", len(apps), params.Stage)
	for _, app := range apps {
		fmt.Fprintf(&b, "- %s for %s [candidate_id=%s, application_id=%s]\n",
			app.Candidate.Name, app.Job.Title, app.Candidate.ID, app.ID)
	}
	return b.String(), nil
}

func (a *Agent) toolSearchCandidates(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parsing search_candidates arguments: %w", err)
	}
	query := strings.ToLower(strings.TrimSpace(params.Query))
	if query == "" {
		return "Search query is empty.", nil
	}

	apps, err := a.client.ActiveApplications(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	var hits int
	for _, app := range apps {
		if !strings.Contains(strings.ToLower(app.Candidate.Name), query) {
			continue
		}
		hits++
		fmt.Fprintf(&b, "- %s, %s at %s [candidate_id=%s]\n",
			app.Candidate.Name, app.CurrentInterviewStage.Title, app.Job.Title, app.Candidate.ID)
	}
	if hits == 0 {
		return fmt.Sprintf("No active candidates matching %q.", params.Query), nil
	}
	return fmt.Sprintf("%d matches:\n%s", hits, b.String()), nil
}

func (a *Agent) toolCandidateDetails(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		CandidateID string `json:"candidate_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parsing candidate_details arguments: %w", err)
	}
	if err := validation.ValidateEntityID(params.CandidateID); err != nil {
		return "Invalid input: " + err.Error() + ". Use an id returned by another tool.", nil
	}

	dec, err := a.guard.EvaluateRead(ctx, params.CandidateID)
	if err != nil {
		return "", err
	}
	if !dec.Allowed {
		// Fixed generic message for the protected code; no detail leaks.
		if dec.ReasonCode == safety.ReasonCodeProtected {
			return "This record is restricted and cannot be shown.", nil
		}
		return dec.Reason, nil
	}

	cand, err := a.client.Candidate(ctx, params.CandidateID)
	if err != nil {
		return "", err
	}
	apps, err := a.client.CandidateApplications(ctx, params.CandidateID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s <%s>\n", cand.Name, cand.PrimaryEmailAddress.Value)
	for _, app := range apps {
		fmt.Fprintf(&b, "- %s: %s (%s) [application_id=%s]\n",
			app.Job.Title, app.CurrentInterviewStage.Title, app.Status, app.ID)
	}
	return b.String(), nil
}

func (a *Agent) toolAddNote(ctx context.Context, tc *toolContext, args json.RawMessage) (string, error) {
	var params struct {
		CandidateID string `json:"candidate_id"`
		Note        string `json:"note"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parsing add_note arguments: %w", err)
	}
	if err := validation.ValidateEntityID(params.CandidateID); err != nil {
		return "Invalid input: " + err.Error() + ". Use an id returned by another tool.", nil
	}

	dec, err := a.guard.EvaluateWrite(ctx, safety.WriteNote, []string{params.CandidateID})
	if err != nil {
		return "", err
	}
	if !dec.Allowed {
		return "Denied: " + dec.Reason, nil
	}

	payload := WritePayload{
		Kind:        safety.WriteNote,
		CandidateID: params.CandidateID,
		Note:        params.Note,
		RequestedBy: tc.req.UserID,
	}
	if !dec.RequiresConfirmation {
		return a.executor.Execute(ctx, payload)
	}

	tc.proposals = append(tc.proposals, Proposal{
		Kind:        safety.WriteNote,
		Description: fmt.Sprintf("Add a note to candidate `%s`:\n> %s", params.CandidateID, params.Note),
		EntityIDs:   []string{params.CandidateID},
		Payload:     payload,
	})
	return "Queued for human confirmation. Tell the user to approve or reject the confirmation card.", nil
}

func (a *Agent) toolMoveStage(ctx context.Context, tc *toolContext, args json.RawMessage) (string, error) {
	var params struct {
		CandidateID string `json:"candidate_id"`
		TargetStage string `json:"target_stage"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parsing move_stage arguments: %w", err)
	}
	if err := validation.ValidateEntityID(params.CandidateID); err != nil {
		return "Invalid input: " + err.Error() + ". Use an id returned by another tool.", nil
	}
	if err := validation.ValidateStageName(params.TargetStage); err != nil {
		return "Invalid input: " + err.Error(), nil
	}

	dec, err := a.guard.EvaluateWrite(ctx, safety.WriteStageMove, []string{params.CandidateID})
	if err != nil {
		return "", err
	}
	if !dec.Allowed {
		return "Denied: " + dec.Reason, nil
	}

	app, err := a.activeApplication(ctx, params.CandidateID)
	if err != nil {
		return "", err
	}
	if tdec := a.guard.ValidateStageTransition(app.CurrentInterviewStage.Title, params.TargetStage); !tdec.Allowed {
		return "Denied: " + tdec.Reason, nil
	}
	stage, err := a.client.StageByName(ctx, params.TargetStage)
	if err != nil {
		return "", err
	}

	payload := WritePayload{
		Kind:          safety.WriteStageMove,
		CandidateID:   params.CandidateID,
		ApplicationID: app.ID,
		StageID:       stage.ID,
		StageTitle:    stage.Title,
		RequestedBy:   tc.req.UserID,
	}
	if !dec.RequiresConfirmation {
		return a.executor.Execute(ctx, payload)
	}

	tc.proposals = append(tc.proposals, Proposal{
		Kind: safety.WriteStageMove,
		Description: fmt.Sprintf("Move *%s* from _%s_ to _%s_ (%s)",
			app.Candidate.Name, app.CurrentInterviewStage.Title, stage.Title, app.Job.Title),
		EntityIDs: []string{params.CandidateID},
		Payload:   payload,
	})
	return "Queued for human confirmation. Tell the user to approve or reject the confirmation card.", nil
}

func (a *Agent) toolBatchMove(ctx context.Context, tc *toolContext, args json.RawMessage) (string, error) {
	var params struct {
		CandidateIDs []string `json:"candidate_ids"`
		TargetStage  string   `json:"target_stage"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parsing batch_move_stage arguments: %w", err)
	}
	if err := validation.ValidateEntityIDs(params.CandidateIDs); err != nil {
		return "Invalid input: " + err.Error() + ". Use ids returned by another tool.", nil
	}
	if err := validation.ValidateStageName(params.TargetStage); err != nil {
		return "Invalid input: " + err.Error(), nil
	}

	dec, err := a.guard.EvaluateWrite(ctx, safety.WriteBatchMove, params.CandidateIDs)
	if err != nil {
		return "", err
	}
	if !dec.Allowed {
		return "Denied: " + dec.Reason, nil
	}

	stage, err := a.client.StageByName(ctx, params.TargetStage)
	if err != nil {
		return "", err
	}

	appIDs := make([]string, 0, len(params.CandidateIDs))
	for _, id := range params.CandidateIDs {
		app, err := a.activeApplication(ctx, id)
		if err != nil {
			return "", err
		}
		if tdec := a.guard.ValidateStageTransition(app.CurrentInterviewStage.Title, stage.Title); !tdec.Allowed {
			return "Denied: " + tdec.Reason, nil
		}
		appIDs = append(appIDs, app.ID)
	}

	payload := WritePayload{
		Kind:           safety.WriteBatchMove,
		StageID:        stage.ID,
		StageTitle:     stage.Title,
		ApplicationIDs: appIDs,
		RequestedBy:    tc.req.UserID,
	}
	if !dec.RequiresConfirmation {
		return a.executor.Execute(ctx, payload)
	}

	tc.proposals = append(tc.proposals, Proposal{
		Kind: safety.WriteBatchMove,
		Description: fmt.Sprintf("Move %d candidates to _%s_: `%s`",
			len(params.CandidateIDs), stage.Title, strings.Join(params.CandidateIDs, "`, `")),
		EntityIDs: params.CandidateIDs,
		Payload:   payload,
	})
	return "Queued for human confirmation. Tell the user to approve or reject the confirmation card.", nil
}

// activeApplication returns the candidate's single active application.
func (a *Agent) activeApplication(ctx context.Context, candidateID string) (ashby.Application, error) {
	apps, err := a.client.CandidateApplications(ctx, candidateID)
	if err != nil {
		return ashby.Application{}, err
	}
	for _, app := range apps {
		if app.Status == "Active" {
			return app, nil
		}
	}
	return ashby.Application{}, fmt.Errorf("candidate %s has no active application", candidateID)
}
