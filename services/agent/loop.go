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
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/talentflowhq/talentflow/services/ashby"
	"github.com/talentflowhq/talentflow/services/safety"
)

// maxToolRounds bounds the tool-calling loop so a confused model cannot
// spin forever against the ATS.
const maxToolRounds = 8

const systemPrompt = `You are TalentFlow, a recruiting assistant operating inside Slack for a team using the Ashby applicant tracking system.

You can read the pipeline and, with care, change it. Rules you must follow:
- Writes that change candidate state go through a human confirmation step. When a tool reports a write was queued for confirmation, tell the user to approve or reject the card; never claim the change already happened.
- When a tool reports a denial, relay the denial plainly and do not retry the same operation.
- Never invent candidate ids. Only use ids returned by tools in this conversation.
- Keep replies short and formatted for Slack (use *bold* and bullet lists, no markdown headers).`

// Completer is the chat-completion surface the loop needs. *openai.Client
// satisfies it; tests substitute a scripted fake.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Agent owns one conversation turn: it runs the model against the tool
// table until the model answers in prose, executing safe writes inline and
// collecting confirmation-requiring ones as Proposals.
//
// # Thread Safety
//
// Safe for concurrent use; all per-turn state lives in Respond's frame.
type Agent struct {
	llm      Completer
	model    string
	client   *ashby.Client
	guard    *safety.PolicyGuard
	executor *Executor
}

// Config holds the agent's dependencies.
type Config struct {
	// LLM is the chat-completion backend.
	LLM Completer

	// Model is the model identifier to request, e.g. "gpt-4o".
	Model string

	// Ashby is the ATS client shared with the executor.
	Ashby *ashby.Client

	// Guard gates every read of a protected record and every write.
	Guard *safety.PolicyGuard
}

// New creates an agent. All config fields are required.
func New(cfg Config) (*Agent, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("agent: LLM backend is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("agent: model is required")
	}
	if cfg.Ashby == nil {
		return nil, fmt.Errorf("agent: ashby client is required")
	}
	if cfg.Guard == nil {
		return nil, fmt.Errorf("agent: policy guard is required")
	}
	return &Agent{
		llm:      cfg.LLM,
		model:    cfg.Model,
		client:   cfg.Ashby,
		guard:    cfg.Guard,
		executor: NewExecutor(cfg.Ashby),
	}, nil
}

// Executor exposes the write executor for the approval path.
func (a *Agent) Executor() *Executor {
	return a.executor
}

// Respond runs one operator request through the tool-calling loop.
func (a *Agent) Respond(ctx context.Context, req Request) (Response, error) {
	tc := &toolContext{req: req}
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: req.Text},
	}
	tools := toolDefinitions()

	for round := 0; round < maxToolRounds; round++ {
		resp, err := a.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    a.model,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return Response{}, fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return Response{}, fmt.Errorf("chat completion returned no choices")
		}
		msg := resp.Choices[0].Message

		if len(msg.ToolCalls) == 0 {
			return Response{Text: msg.Content, Proposals: tc.proposals}, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			result, err := a.dispatchTool(ctx, tc, call.Function.Name, json.RawMessage(call.Function.Arguments))
			if err != nil {
				slog.Error("Tool call failed",
					"tool", call.Function.Name,
					"user", req.UserID,
					"error", err)
				result = "Tool error: " + err.Error()
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}

	return Response{}, fmt.Errorf("tool loop exceeded %d rounds without an answer", maxToolRounds)
}
