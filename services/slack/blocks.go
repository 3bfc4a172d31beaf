// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package slack

import (
	"fmt"
	"strings"

	"github.com/talentflowhq/talentflow/services/safety"
)

// Block is one Block Kit element. Serialized as-is into chat.postMessage.
type Block map[string]any

// maxBlocks is Slack's per-message block cap.
const maxBlocks = 50

// Approval emojis the reaction handler recognizes.
const (
	EmojiApprove = "white_check_mark"
	EmojiReject  = "x"
)

// SectionBlock renders markdown text.
func SectionBlock(text string) Block {
	return Block{
		"type": "section",
		"text": map[string]any{"type": "mrkdwn", "text": text},
	}
}

// HeaderBlock renders a plain-text header.
func HeaderBlock(text string) Block {
	return Block{
		"type": "header",
		"text": map[string]any{"type": "plain_text", "text": text},
	}
}

// DividerBlock renders a horizontal rule.
func DividerBlock() Block {
	return Block{"type": "divider"}
}

// ContextBlock renders small muted text.
func ContextBlock(text string) Block {
	return Block{
		"type": "context",
		"elements": []map[string]any{
			{"type": "mrkdwn", "text": text},
		},
	}
}

// TruncateBlocks caps a block list at Slack's limit, replacing the tail
// with a context note when anything was cut.
func TruncateBlocks(blocks []Block) []Block {
	if len(blocks) <= maxBlocks {
		return blocks
	}
	out := append([]Block(nil), blocks[:maxBlocks-1]...)
	return append(out, ContextBlock("_…truncated_"))
}

// ConfirmationCard renders the approval request for a pending write.
//
// The card tells the approver exactly what will happen, to which records,
// and how long they have; the reaction handler resolves the decision by
// the (channel, message) of this card.
func ConfirmationCard(entry safety.PendingConfirmation) []Block {
	blocks := []Block{
		HeaderBlock("Confirmation required"),
		SectionBlock(entry.Description),
	}
	if len(entry.EntityIDs) > 0 {
		blocks = append(blocks, SectionBlock(
			fmt.Sprintf("*Records:* `%s`", strings.Join(entry.EntityIDs, "`, `"))))
	}
	blocks = append(blocks,
		DividerBlock(),
		SectionBlock(fmt.Sprintf("React :%s: to approve or :%s: to reject.", EmojiApprove, EmojiReject)),
		ContextBlock(fmt.Sprintf("Requested by <@%s> • expires <!date^%d^{time}|%s>",
			entry.RequestedBy, entry.ExpiresAt.Unix(), entry.ExpiresAt.UTC().Format("15:04 MST"))),
	)
	return blocks
}
