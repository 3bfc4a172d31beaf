// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package slack integrates the agent with Slack: a minimal Web API client,
// a Socket Mode listener, and the event handling that ties reactions back
// to pending confirmations.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const apiBaseURL = "https://slack.com/api"

// Client is a minimal Slack Web API client covering what the bot needs:
// posting messages, adding reactions, and opening a Socket Mode
// connection.
//
// # Thread Safety
//
// Safe for concurrent use; the client is immutable after construction.
type Client struct {
	botToken string
	appToken string
	baseURL  string
	http     *http.Client
}

// ClientOption customizes client construction.
type ClientOption func(*Client)

// WithBaseURL overrides the Web API base URL. Used by tests.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient creates a Slack client. botToken (xoxb-) authorizes Web API
// calls; appToken (xapp-) authorizes Socket Mode connections and may be
// empty if the listener is not used.
func NewClient(botToken, appToken string, opts ...ClientOption) (*Client, error) {
	if botToken == "" {
		return nil, fmt.Errorf("slack bot token is required")
	}
	c := &Client{
		botToken: botToken,
		appToken: appToken,
		baseURL:  apiBaseURL,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// apiCall posts a JSON body to a Web API method and decodes the response.
func (c *Client) apiCall(ctx context.Context, token, method string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", method, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	return nil
}

// slackResponse is the common ok/error envelope.
type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// PostMessage posts plain text to a channel and returns the message
// timestamp, which doubles as the message's identity for reactions.
func (c *Client) PostMessage(ctx context.Context, channelID, text string) (string, error) {
	var resp struct {
		slackResponse
		TS string `json:"ts"`
	}
	err := c.apiCall(ctx, c.botToken, "chat.postMessage", map[string]any{
		"channel": channelID,
		"text":    text,
	}, &resp)
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("chat.postMessage failed: %s", resp.Error)
	}
	return resp.TS, nil
}

// PostBlocks posts a Block Kit message and returns the message timestamp.
// text is the notification fallback.
func (c *Client) PostBlocks(ctx context.Context, channelID, text string, blocks []Block) (string, error) {
	var resp struct {
		slackResponse
		TS string `json:"ts"`
	}
	err := c.apiCall(ctx, c.botToken, "chat.postMessage", map[string]any{
		"channel": channelID,
		"text":    text,
		"blocks":  blocks,
	}, &resp)
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("chat.postMessage failed: %s", resp.Error)
	}
	return resp.TS, nil
}

// AddReaction adds an emoji reaction to a message.
func (c *Client) AddReaction(ctx context.Context, channelID, messageTS, emoji string) error {
	var resp slackResponse
	err := c.apiCall(ctx, c.botToken, "reactions.add", map[string]any{
		"channel":   channelID,
		"timestamp": messageTS,
		"name":      emoji,
	}, &resp)
	if err != nil {
		return err
	}
	// already_reacted is harmless; double reactions happen.
	if !resp.OK && resp.Error != "already_reacted" {
		return fmt.Errorf("reactions.add failed: %s", resp.Error)
	}
	return nil
}

// openConnection requests a Socket Mode WebSocket URL.
func (c *Client) openConnection(ctx context.Context) (string, error) {
	if c.appToken == "" {
		return "", fmt.Errorf("slack app token is required for socket mode")
	}
	var resp struct {
		slackResponse
		URL string `json:"url"`
	}
	if err := c.apiCall(ctx, c.appToken, "apps.connections.open", map[string]any{}, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("apps.connections.open failed: %s", resp.Error)
	}
	return resp.URL, nil
}
