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
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentflowhq/talentflow/services/ashby"
	"github.com/talentflowhq/talentflow/services/safety"
)

// Record ids are UUID-shaped because tool handlers validate their format
// before touching the ATS.
const (
	candAlex  = "7a9f1c2e-4b3d-4e5f-8a9b-0c1d2e3f4a5b"
	candSam   = "8b0f2d3e-5c4e-4f60-9bac-1d2e3f4a5b6c"
	candHired = "9c1a3e4f-6d5f-4a71-abbd-2e3f4a5b6c7d"
	candThird = "ac2b4f50-7e60-4b82-bcce-3f4a5b6c7d8e"
)

// scriptedLLM replays a fixed sequence of completions.
type scriptedLLM struct {
	mu      sync.Mutex
	queue   []openai.ChatCompletionResponse
	repeat  bool
	history [][]openai.ChatCompletionMessage
}

func (s *scriptedLLM) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, req.Messages)
	if len(s.queue) == 0 {
		return openai.ChatCompletionResponse{}, context.Canceled
	}
	resp := s.queue[0]
	if !s.repeat || len(s.queue) > 1 {
		s.queue = s.queue[1:]
	}
	return resp, nil
}

func textTurn(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: text,
			},
		}},
	}
}

func toolTurn(t *testing.T, name string, args any) openai.ChatCompletionResponse {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   "call_1",
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      name,
						Arguments: string(raw),
					},
				}},
			},
		}},
	}
}

// atsFixture is a scripted Ashby backend that records which write
// endpoints were hit.
type atsFixture struct {
	t *testing.T

	mu     sync.Mutex
	writes []string
}

func (f *atsFixture) writeEndpoints() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *atsFixture) handler() http.Handler {
	page := func(w http.ResponseWriter, results any) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"results": results,
		})
	}
	application := func(id, candID, candName, stageTitle string) map[string]any {
		return map[string]any{
			"id":     id,
			"status": "Active",
			"candidate": map[string]any{
				"id":   candID,
				"name": candName,
			},
			"job": map[string]any{"id": "job-1", "title": "Platform Engineer"},
			"currentInterviewStage": map[string]any{
				"id":    "stg-current",
				"title": stageTitle,
			},
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))

		switch r.URL.Path {
		case "/job.list":
			page(w, []any{})
		case "/application.list":
			switch body["candidateId"] {
			case nil:
				page(w, []any{
					application("app-1", candAlex, "Alex Reyes", "Phone Screen"),
					application("app-2", candSam, "Sam Okafor", "Phone Screen"),
				})
			case candHired:
				page(w, []any{application("app-hired", candHired, "Dana Hill", "Hired - Pending Start")})
			case candAlex:
				page(w, []any{application("app-1", candAlex, "Alex Reyes", "Phone Screen")})
			case candSam:
				page(w, []any{application("app-2", candSam, "Sam Okafor", "Phone Screen")})
			default:
				page(w, []any{})
			}
		case "/interviewStage.list":
			page(w, []any{
				map[string]any{"id": "stg-onsite", "title": "Onsite"},
				map[string]any{"id": "stg-offer", "title": "Offer"},
			})
		case "/candidate.info":
			page(w, map[string]any{
				"id":                  candAlex,
				"name":                "Alex Reyes",
				"primaryEmailAddress": map[string]any{"value": "alex@example.com"},
			})
		case "/candidate.createNote", "/application.changeStage":
			f.mu.Lock()
			f.writes = append(f.writes, r.URL.Path)
			f.mu.Unlock()
			page(w, map[string]any{})
		default:
			f.t.Errorf("unexpected endpoint %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})
}

type agentFixture struct {
	agent *Agent
	llm   *scriptedLLM
	ats   *atsFixture
}

func newAgentFixture(t *testing.T, mode safety.Mode, protected map[string]bool) *agentFixture {
	t.Helper()

	ats := &atsFixture{t: t}
	srv := httptest.NewServer(ats.handler())
	t.Cleanup(srv.Close)

	client, err := ashby.NewClient("test-key",
		ashby.WithBaseURL(srv.URL),
		ashby.WithRateLimit(1000, 1000))
	require.NoError(t, err)

	guard, err := safety.NewPolicyGuard(safety.GuardConfig{Mode: mode, BatchLimit: 2},
		safety.ProtectedLookupFunc(func(_ context.Context, id string) (bool, error) {
			return protected[id], nil
		}))
	require.NoError(t, err)

	llm := &scriptedLLM{}
	a, err := New(Config{LLM: llm, Model: "gpt-4o", Ashby: client, Guard: guard})
	require.NoError(t, err)

	return &agentFixture{agent: a, llm: llm, ats: ats}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestRespondPlainAnswer(t *testing.T) {
	fx := newAgentFixture(t, safety.ModeConfirmAll, nil)
	fx.llm.queue = []openai.ChatCompletionResponse{textTurn("Nothing to do.")}

	resp, err := fx.agent.Respond(context.Background(), Request{Text: "hi", UserID: "U1"})
	require.NoError(t, err)
	assert.Equal(t, "Nothing to do.", resp.Text)
	assert.Empty(t, resp.Proposals)
}

func TestRespondMoveStageNeedsConfirmation(t *testing.T) {
	fx := newAgentFixture(t, safety.ModeConfirmAll, nil)
	fx.llm.queue = []openai.ChatCompletionResponse{
		toolTurn(t, "move_stage", map[string]any{
			"candidate_id": candAlex,
			"target_stage": "Onsite",
		}),
		textTurn("Queued a move for approval."),
	}

	resp, err := fx.agent.Respond(context.Background(), Request{Text: "move Alex to onsite", UserID: "U1"})
	require.NoError(t, err)

	require.Len(t, resp.Proposals, 1)
	p := resp.Proposals[0]
	assert.Equal(t, safety.WriteStageMove, p.Kind)
	assert.Equal(t, []string{candAlex}, p.EntityIDs)
	assert.Equal(t, "app-1", p.Payload.ApplicationID)
	assert.Equal(t, "stg-onsite", p.Payload.StageID)
	assert.Equal(t, "U1", p.Payload.RequestedBy)

	// Nothing was written while the confirmation is pending.
	assert.Empty(t, fx.ats.writeEndpoints())
}

func TestRespondNoteExecutesDirectly(t *testing.T) {
	// Notes are not destructive, so batch-limit mode executes them inline.
	fx := newAgentFixture(t, safety.ModeBatchLimit, nil)
	fx.llm.queue = []openai.ChatCompletionResponse{
		toolTurn(t, "add_note", map[string]any{
			"candidate_id": candAlex,
			"note":         "Great phone screen.",
		}),
		textTurn("Done, note added."),
	}

	resp, err := fx.agent.Respond(context.Background(), Request{Text: "note", UserID: "U1"})
	require.NoError(t, err)
	assert.Empty(t, resp.Proposals)
	assert.Equal(t, []string{"/candidate.createNote"}, fx.ats.writeEndpoints())
}

func TestRespondProtectedCandidateDenied(t *testing.T) {
	fx := newAgentFixture(t, safety.ModeConfirmAll, map[string]bool{candAlex: true})
	fx.llm.queue = []openai.ChatCompletionResponse{
		toolTurn(t, "add_note", map[string]any{
			"candidate_id": candAlex,
			"note":         "x",
		}),
		textTurn("That record cannot be changed."),
	}

	resp, err := fx.agent.Respond(context.Background(), Request{Text: "note", UserID: "U1"})
	require.NoError(t, err)
	assert.Empty(t, resp.Proposals)
	assert.Empty(t, fx.ats.writeEndpoints())

	// The model saw the denial as a tool result.
	last := fx.llm.history[len(fx.llm.history)-1]
	assert.Contains(t, last[len(last)-1].Content, "Denied")
}

func TestRespondBatchOverLimitDenied(t *testing.T) {
	fx := newAgentFixture(t, safety.ModeBatchLimit, nil)
	fx.llm.queue = []openai.ChatCompletionResponse{
		toolTurn(t, "batch_move_stage", map[string]any{
			"candidate_ids": []string{candAlex, candSam, candThird},
			"target_stage":  "Onsite",
		}),
		textTurn("Too many at once."),
	}

	resp, err := fx.agent.Respond(context.Background(), Request{Text: "move all", UserID: "U1"})
	require.NoError(t, err)
	assert.Empty(t, resp.Proposals)
	assert.Empty(t, fx.ats.writeEndpoints())
}

func TestRespondHiredStageMoveBlocked(t *testing.T) {
	fx := newAgentFixture(t, safety.ModeConfirmAll, nil)
	fx.llm.queue = []openai.ChatCompletionResponse{
		toolTurn(t, "move_stage", map[string]any{
			"candidate_id": candHired,
			"target_stage": "Onsite",
		}),
		textTurn("Cannot move a hired candidate back."),
	}

	resp, err := fx.agent.Respond(context.Background(), Request{Text: "move", UserID: "U1"})
	require.NoError(t, err)
	assert.Empty(t, resp.Proposals)
	assert.Empty(t, fx.ats.writeEndpoints())

	last := fx.llm.history[len(fx.llm.history)-1]
	assert.Contains(t, last[len(last)-1].Content, "hired")
}

func TestRespondProtectedReadShieldsDetail(t *testing.T) {
	fx := newAgentFixture(t, safety.ModeConfirmAll, map[string]bool{candAlex: true})
	fx.llm.queue = []openai.ChatCompletionResponse{
		toolTurn(t, "candidate_details", map[string]any{"candidate_id": candAlex}),
		textTurn("Restricted."),
	}

	_, err := fx.agent.Respond(context.Background(), Request{Text: "who is that candidate", UserID: "U1"})
	require.NoError(t, err)

	last := fx.llm.history[len(fx.llm.history)-1]
	content := last[len(last)-1].Content
	assert.Contains(t, content, "restricted")
	assert.NotContains(t, content, "Alex")
}

func TestRespondSearchFindsCandidate(t *testing.T) {
	fx := newAgentFixture(t, safety.ModeConfirmAll, nil)
	fx.llm.queue = []openai.ChatCompletionResponse{
		toolTurn(t, "search_candidates", map[string]any{"query": "okafor"}),
		textTurn("Found Sam."),
	}

	_, err := fx.agent.Respond(context.Background(), Request{Text: "find sam", UserID: "U1"})
	require.NoError(t, err)

	last := fx.llm.history[len(fx.llm.history)-1]
	content := last[len(last)-1].Content
	assert.Contains(t, content, "Sam Okafor")
	assert.Contains(t, content, candSam)
	assert.NotContains(t, content, "Alex Reyes")
}

func TestRespondInventedIDRejected(t *testing.T) {
	fx := newAgentFixture(t, safety.ModeBatchLimit, nil)
	fx.llm.queue = []openai.ChatCompletionResponse{
		toolTurn(t, "add_note", map[string]any{
			"candidate_id": "made-up-id",
			"note":         "x",
		}),
		textTurn("That id does not exist."),
	}

	resp, err := fx.agent.Respond(context.Background(), Request{Text: "note", UserID: "U1"})
	require.NoError(t, err)
	assert.Empty(t, resp.Proposals)
	assert.Empty(t, fx.ats.writeEndpoints())

	last := fx.llm.history[len(fx.llm.history)-1]
	assert.Contains(t, last[len(last)-1].Content, "Invalid input")
}

func TestRespondToolLoopBounded(t *testing.T) {
	fx := newAgentFixture(t, safety.ModeConfirmAll, nil)
	fx.llm.queue = []openai.ChatCompletionResponse{
		toolTurn(t, "pipeline_overview", map[string]any{}),
	}
	fx.llm.repeat = true

	_, err := fx.agent.Respond(context.Background(), Request{Text: "loop", UserID: "U1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rounds")
}
