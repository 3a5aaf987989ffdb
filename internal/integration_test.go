// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package internal provides integration tests for the complete transfer
// flow: sign in, load reference data, resolve parties, and submit a draft
// against a fake collaborator backend.
package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/birrwire-tui/internal/api"
	"github.com/jeranaias/birrwire-tui/internal/credstore"
	"github.com/jeranaias/birrwire-tui/internal/directory"
	"github.com/jeranaias/birrwire-tui/internal/transfer"
)

// fakeBackend is an httptest handler covering the routes the console uses.
type fakeBackend struct {
	t *testing.T

	lastAuth    string
	lastCreate  api.TransferRequest
	createCalls int
	rejectNext  bool
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.lastAuth = r.Header.Get("Authorization")

	switch r.Method + " " + r.URL.Path {
	case "POST /login":
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "correct-horse" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message": "Invalid credentials"}`))
			return
		}
		w.Write([]byte(`{"token": "tok_e2e", "role": "agent"}`))

	case "GET /users":
		w.Write([]byte(`{"users": [
			{"id": 7, "first_name": "John", "last_name": "Doe"},
			{"id": 12, "first_name": "Abebe", "last_name": "Bekele"}
		]}`))

	case "GET /transfers/create":
		w.Write([]byte(`{"banks": [{"id": 3, "name": "Awash Bank"}]}`))

	case "POST /transfers":
		b.createCalls++
		// Decode errors surface through the field assertions afterwards;
		// FailNow must not be called from the server goroutine.
		if err := json.NewDecoder(r.Body).Decode(&b.lastCreate); err != nil {
			b.t.Errorf("decode transfer request: %v", err)
		}
		if b.rejectNext {
			b.rejectNext = false
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"message": "Account number invalid"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))

	default:
		http.NotFound(w, r)
	}
}

// TestIntegration_FullTransferFlow walks the whole path an operator takes:
// authenticate, persist the token, build the directory, fill a draft, get
// rejected once, correct it, and land the transfer.
func TestIntegration_FullTransferFlow(t *testing.T) {
	backend := &fakeBackend{t: t, rejectNext: true}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	store, err := credstore.Open(filepath.Join(t.TempDir(), "credentials.db"))
	require.NoError(t, err)
	defer store.Close()

	client := api.NewClient(srv.URL, store).WithHTTPClient(srv.Client())
	ctx := context.Background()

	// Sign in and persist the session the way the app does.
	result, err := client.Login(ctx, "agent@example.com", "correct-horse")
	require.NoError(t, err)
	require.NoError(t, store.SaveToken(result.Token))
	require.NoError(t, store.SaveRole(result.Role))

	// Reference data. Both calls must carry the stored bearer token.
	cache, err := directory.Load(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok_e2e", backend.lastAuth)

	banks, err := client.FetchBanks(ctx)
	require.NoError(t, err)
	require.Len(t, banks, 1)

	// Fill the draft from resolved directory entries.
	draft := transfer.NewDraft(127.65)
	draft.SetAmountInput("100")
	require.NoError(t, draft.BeginPartyAndBank())

	sender, ok := cache.Resolve("John Doe")
	require.True(t, ok)
	receiver, ok := cache.Resolve("abebe bekele")
	require.True(t, ok)
	draft.SetSender(sender)
	draft.SetReceiver(receiver)
	draft.SetBank(banks[0])
	draft.SetAccountNumber("0000000000")

	// First attempt is rejected; the draft survives with the message.
	err = draft.Submit(ctx, client)
	require.Error(t, err)
	assert.Equal(t, transfer.StepFailed, draft.Step())
	assert.Equal(t, "Account number invalid", draft.FailureMessage())

	// Correct and resubmit.
	draft.SetAccountNumber("0012345678")
	require.NoError(t, draft.Submit(ctx, client))
	assert.Equal(t, transfer.StepSucceeded, draft.Step())

	assert.Equal(t, 2, backend.createCalls)
	assert.Equal(t, int64(7), backend.lastCreate.SenderID)
	assert.Equal(t, int64(12), backend.lastCreate.ReceiverID)
	assert.Equal(t, 100.0, backend.lastCreate.AmountUSD)
	assert.Equal(t, 12765.0, backend.lastCreate.AmountETB)
	assert.Equal(t, "ETB", backend.lastCreate.Currency)
	assert.Equal(t, "0012345678", backend.lastCreate.AccountNumber)
	assert.Equal(t, draft.ID(), backend.lastCreate.ReferenceID)
}

// TestIntegration_RequestsBlockedAfterSignOut verifies that clearing the
// store cuts network access immediately.
func TestIntegration_RequestsBlockedAfterSignOut(t *testing.T) {
	backend := &fakeBackend{t: t}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	store, err := credstore.Open(filepath.Join(t.TempDir(), "credentials.db"))
	require.NoError(t, err)
	defer store.Close()

	client := api.NewClient(srv.URL, store).WithHTTPClient(srv.Client())
	ctx := context.Background()

	result, err := client.Login(ctx, "agent@example.com", "correct-horse")
	require.NoError(t, err)
	require.NoError(t, store.SaveToken(result.Token))

	_, err = client.FetchParties(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Clear())

	// No token, no network: the backend sees nothing further.
	lastAuth := backend.lastAuth
	_, err = client.FetchParties(ctx)
	assert.ErrorIs(t, err, api.ErrNoToken)
	assert.Equal(t, lastAuth, backend.lastAuth)
}
