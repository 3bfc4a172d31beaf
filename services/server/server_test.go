// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentflowhq/talentflow/services/safety"
)

func newTestServer(t *testing.T) (*Server, *safety.ConfirmationLedger) {
	t.Helper()
	guard, err := safety.NewPolicyGuard(safety.GuardConfig{Mode: safety.ModeConfirmAll, BatchLimit: 5},
		safety.ProtectedLookupFunc(func(context.Context, string) (bool, error) { return false, nil }))
	require.NoError(t, err)
	ledger := safety.NewConfirmationLedger(safety.LedgerConfig{})
	return New("127.0.0.1:0", Deps{Guard: guard, Ledger: ledger}), ledger
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPolicyView(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/policy", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Mode       string `json:"mode"`
		BatchLimit int    `json:"batch_limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "CONFIRM_ALL", body.Mode)
	assert.Equal(t, 5, body.BatchLimit)
}

func TestConfirmationsView(t *testing.T) {
	srv, ledger := newTestServer(t)
	ledger.Create(safety.CreateRequest{
		Kind:        safety.WriteStageMove,
		Description: "Move Alex to Onsite",
		EntityIDs:   []string{"cand-1"},
		ChannelID:   "C1",
		RequestedBy: "U1",
	})

	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/confirmations?channel=C1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Move Alex to Onsite")

	rec = httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/confirmations?channel=C2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"confirmations":[]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/confirmations", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsExposed(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
