// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "credentials.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_TokenRoundTrip(t *testing.T) {
	s := openTestStore(t)

	_, err := s.ReadToken()
	assert.ErrorIs(t, err, ErrNotPresent)

	require.NoError(t, s.SaveToken("tok_12345"))

	got, err := s.ReadToken()
	require.NoError(t, err)
	assert.Equal(t, "tok_12345", got)

	// Overwrite wins, no merge.
	require.NoError(t, s.SaveToken("tok_67890"))
	got, err = s.ReadToken()
	require.NoError(t, err)
	assert.Equal(t, "tok_67890", got)
}

func TestStore_TokenSealedAtRest(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveToken("secret-token"))

	// The raw row must not contain the plaintext token.
	var raw string
	err := s.db.QueryRow(`SELECT value FROM credentials WHERE key = 'token'`).Scan(&raw)
	require.NoError(t, err)
	assert.NotContains(t, raw, "secret-token")
	assert.Contains(t, raw, "sealed:")
}

func TestStore_Clear(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveToken("tok"))
	require.NoError(t, s.SaveRole("agent"))
	require.NoError(t, s.TouchActivity())

	require.NoError(t, s.Clear())

	_, err := s.ReadToken()
	assert.ErrorIs(t, err, ErrNotPresent)
	_, err = s.ReadRole()
	assert.ErrorIs(t, err, ErrNotPresent)
	_, err = s.ReadActivity()
	assert.ErrorIs(t, err, ErrNotPresent)

	// Idempotent.
	require.NoError(t, s.Clear())
}

func TestStore_Activity(t *testing.T) {
	s := openTestStore(t)

	before := time.Now().Add(-time.Second)
	require.NoError(t, s.TouchActivity())
	after := time.Now().Add(time.Second)

	ts, err := s.ReadActivity()
	require.NoError(t, err)
	assert.True(t, ts.After(before) && ts.Before(after), "activity timestamp out of range: %v", ts)
}

func TestStore_LastWriteWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.db")

	s1, err := Open(path)
	require.NoError(t, err)
	defer s1.Close()

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	require.NoError(t, s1.SaveRole("agent"))
	require.NoError(t, s2.SaveRole("admin"))

	got, err := s1.ReadRole()
	require.NoError(t, err)
	assert.Equal(t, "admin", got)
}

func TestSealer_RejectsTampering(t *testing.T) {
	s := openTestStore(t)

	sealed, err := s.sealer.seal("value")
	require.NoError(t, err)

	// Flip a character inside the base64 payload.
	b := []byte(sealed)
	last := len(b) - 2
	if b[last] == 'A' {
		b[last] = 'B'
	} else {
		b[last] = 'A'
	}

	_, err = s.sealer.unseal(string(b))
	assert.Error(t, err)
}
