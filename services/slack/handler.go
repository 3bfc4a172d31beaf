// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/talentflowhq/talentflow/services/agent"
	"github.com/talentflowhq/talentflow/services/safety"
)

// Responder turns an operator message into a reply plus pending writes.
// *agent.Agent satisfies it.
type Responder interface {
	Respond(ctx context.Context, req agent.Request) (agent.Response, error)
}

// WriteExecutor carries out an approved write payload. *agent.Executor
// satisfies it.
type WriteExecutor interface {
	Execute(ctx context.Context, p agent.WritePayload) (string, error)
}

// Handler routes Slack events: mentions go through the agent, approval
// reactions resolve pending confirmations.
//
// # Thread Safety
//
// Safe for concurrent use. Per-event state is local; shared state lives in
// the ledger, which serializes access itself.
type Handler struct {
	client    *Client
	agent     Responder
	executor  WriteExecutor
	ledger    *safety.ConfirmationLedger
	botUserID string
}

// NewHandler creates an event handler.
//
// botUserID is the bot's own Slack user id; its mention tag is stripped
// from incoming text and its own messages are ignored.
func NewHandler(client *Client, responder Responder, executor WriteExecutor, ledger *safety.ConfirmationLedger, botUserID string) *Handler {
	return &Handler{
		client:    client,
		agent:     responder,
		executor:  executor,
		ledger:    ledger,
		botUserID: botUserID,
	}
}

// HandleEvent dispatches one event. Errors are posted back to the channel
// or logged; the listener never sees them.
func (h *Handler) HandleEvent(ctx context.Context, ev Event) {
	switch ev.Type {
	case "app_mention":
		h.handleMention(ctx, ev)
	case "reaction_added":
		h.handleReaction(ctx, ev)
	}
}

// handleMention runs one agent turn and posts the reply. Each proposal the
// agent returns becomes a confirmation card, registered in the ledger
// under the card's message timestamp so reactions can find it.
func (h *Handler) handleMention(ctx context.Context, ev Event) {
	if ev.User == "" || ev.User == h.botUserID {
		return
	}
	text := stripMention(ev.Text, h.botUserID)
	if text == "" {
		return
	}

	slog.Info("Handling mention", "user", ev.User, "channel", ev.Channel)

	resp, err := h.agent.Respond(ctx, agent.Request{
		Text:      text,
		UserID:    ev.User,
		ChannelID: ev.Channel,
	})
	if err != nil {
		slog.Error("Agent turn failed", "user", ev.User, "error", err)
		h.post(ctx, ev.Channel, "Sorry, something went wrong handling that. Please try again.")
		return
	}

	if resp.Text != "" {
		h.post(ctx, ev.Channel, resp.Text)
	}

	for _, p := range resp.Proposals {
		h.postConfirmation(ctx, ev.Channel, ev.User, p)
	}
}

// postConfirmation renders the approval card and registers the pending
// entry keyed by the card's own (channel, ts). The card is posted before
// the ledger entry exists; a reaction cannot arrive before the post
// returns, so the window is harmless.
func (h *Handler) postConfirmation(ctx context.Context, channelID, userID string, p agent.Proposal) {
	preview := safety.PendingConfirmation{
		Kind:        p.Kind,
		Description: p.Description,
		EntityIDs:   p.EntityIDs,
		RequestedBy: userID,
		ExpiresAt:   h.ledger.Now().Add(h.ledger.Timeout()),
	}

	ts, err := h.client.PostBlocks(ctx, channelID, "Confirmation required: "+p.Description, ConfirmationCard(preview))
	if err != nil {
		slog.Error("Posting confirmation card failed", "kind", p.Kind, "error", err)
		h.post(ctx, channelID, "Could not post the confirmation card; the action was not queued.")
		return
	}

	h.ledger.Create(safety.CreateRequest{
		Kind:        p.Kind,
		Description: p.Description,
		EntityIDs:   p.EntityIDs,
		Payload:     p.Payload,
		ChannelID:   channelID,
		MessageTS:   ts,
		RequestedBy: userID,
	})
}

// handleReaction resolves an approval or rejection on a confirmation card.
func (h *Handler) handleReaction(ctx context.Context, ev Event) {
	if ev.User == h.botUserID {
		return
	}
	if ev.Reaction != EmojiApprove && ev.Reaction != EmojiReject {
		return
	}

	entry, ok := h.ledger.FindByMessage(ev.Item.Channel, ev.Item.TS)
	if !ok {
		// Reaction on an ordinary message, or the confirmation expired.
		return
	}

	if ev.Reaction == EmojiReject {
		if h.ledger.Cancel(entry.ID) {
			slog.Info("Confirmation rejected", "confirmation_id", entry.ID, "by", ev.User)
			h.post(ctx, ev.Item.Channel, fmt.Sprintf("Rejected by <@%s>. Nothing was changed.", ev.User))
		}
		return
	}

	// Complete removes the entry atomically; a second approval or a
	// concurrent sweep loses the race and lands here with ok=false.
	entry, ok = h.ledger.Complete(entry.ID)
	if !ok {
		return
	}

	payload, ok := entry.Payload.(agent.WritePayload)
	if !ok {
		slog.Error("Confirmation payload has unexpected type", "confirmation_id", entry.ID)
		h.post(ctx, ev.Item.Channel, "This confirmation could not be executed.")
		return
	}

	result, err := h.executor.Execute(ctx, payload)
	if err != nil {
		slog.Error("Approved write failed", "confirmation_id", entry.ID, "error", err)
		h.post(ctx, ev.Item.Channel, "Approved, but the change failed: "+err.Error())
		return
	}

	if err := h.client.AddReaction(ctx, ev.Item.Channel, ev.Item.TS, "rocket"); err != nil {
		slog.Warn("Adding done reaction failed", "error", err)
	}
	h.post(ctx, ev.Item.Channel, fmt.Sprintf("%s (approved by <@%s>)", result, ev.User))
}

// post is a best-effort message post; failures are logged only.
func (h *Handler) post(ctx context.Context, channelID, text string) {
	if _, err := h.client.PostMessage(ctx, channelID, text); err != nil {
		slog.Error("Posting message failed", "channel", channelID, "error", err)
	}
}

// stripMention removes the bot's mention tag and trims the remainder.
func stripMention(text, botUserID string) string {
	if botUserID != "" {
		text = strings.ReplaceAll(text, "<@"+botUserID+">", "")
	}
	return strings.TrimSpace(text)
}
