// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// reconnectBackoff is the pause between Socket Mode reconnect attempts.
const reconnectBackoff = 3 * time.Second

// envelope is the Socket Mode frame wrapper. Slack sends hello,
// events_api, and disconnect frames; events_api frames must be acked by
// envelope id or Slack redelivers them.
type envelope struct {
	Type       string          `json:"type"`
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// eventsPayload is the payload of an events_api envelope.
type eventsPayload struct {
	Event Event `json:"event"`
}

// Event is the subset of Slack event fields the bot consumes.
type Event struct {
	Type     string `json:"type"` // app_mention, reaction_added
	User     string `json:"user"`
	Text     string `json:"text"`
	Channel  string `json:"channel"`
	TS       string `json:"ts"`
	Reaction string `json:"reaction"`
	Item     struct {
		Channel string `json:"channel"`
		TS      string `json:"ts"`
	} `json:"item"`
}

// EventHandler consumes one decoded event. Handlers run on their own
// goroutine so a slow LLM turn never stalls the read loop or acks.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev Event)
}

// Listener maintains a Socket Mode connection and feeds decoded events to
// the handler.
//
// # Description
//
// Each connection is opened via apps.connections.open and dialed with a
// WebSocket. Slack rotates connections regularly by sending a disconnect
// frame; the listener treats that, and any read error, as a cue to
// reconnect after a short backoff. It only stops when the context is
// cancelled.
type Listener struct {
	client  *Client
	handler EventHandler
	dialer  *websocket.Dialer
}

// NewListener creates a Socket Mode listener.
func NewListener(client *Client, handler EventHandler) *Listener {
	return &Listener{
		client:  client,
		handler: handler,
		dialer:  websocket.DefaultDialer,
	}
}

// Run connects and processes events until the context is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := l.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("Socket mode connection ended, reconnecting",
				"error", err,
				"backoff", reconnectBackoff.String())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectBackoff):
		}
	}
}

// runOnce serves a single WebSocket connection until it closes.
func (l *Listener) runOnce(ctx context.Context) error {
	url, err := l.client.openConnection(ctx)
	if err != nil {
		return fmt.Errorf("opening socket mode connection: %w", err)
	}

	conn, _, err := l.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dialing socket mode url: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the context is cancelled.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
		conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading socket mode frame: %w", err)
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("Undecodable socket mode frame", "error", err)
			continue
		}

		switch env.Type {
		case "hello":
			slog.Info("Socket mode connected")
		case "disconnect":
			slog.Info("Socket mode disconnect requested", "reason", env.Reason)
			return errors.New("server requested disconnect: " + env.Reason)
		case "events_api":
			// Ack first so Slack does not redeliver while we work.
			if err := conn.WriteJSON(map[string]string{"envelope_id": env.EnvelopeID}); err != nil {
				return fmt.Errorf("acking envelope: %w", err)
			}
			var payload eventsPayload
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				slog.Warn("Undecodable events_api payload", "error", err)
				continue
			}
			go l.handler.HandleEvent(ctx, payload.Event)
		default:
			// slash_commands, interactive frames and so on are not used.
		}
	}
}
