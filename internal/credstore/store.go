// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package credstore holds the agent's session credentials on disk.
//
// The store is the console's stand-in for a browser profile: a small
// SQLite key/value table at ~/.birrwire/credentials.db holding the session
// token, the agent's role marker, and the last-activity timestamp. It
// survives process restarts but is scoped to one OS user. Concurrent
// consoles sharing the profile are last-write-wins; there is no
// cross-process coordination beyond what SQLite itself provides.
//
// The token is sealed with AES-256-GCM before it touches the database; the
// sealing key lives in a separate 0600 master key file.
package credstore

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Well-known keys in the credentials table.
const (
	keyToken        = "token"
	keyRole         = "role"
	keyLastActivity = "last_activity"
	keyTOTPSecret   = "totp_secret"
)

// ErrNotPresent indicates the requested value has never been stored or was
// cleared.
var ErrNotPresent = errors.New("credential not present")

// Store is the durable credential store.
type Store struct {
	db     *sql.DB
	sealer *sealer
}

// DefaultPath returns the default credentials database path.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".birrwire", "credentials.db")
	}
	return filepath.Join(home, ".birrwire", "credentials.db")
}

// Open opens (creating if needed) the credential store at path. The parent
// directory is created 0700.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize credential schema: %w", err)
	}

	sealer, err := newSealer(filepath.Join(filepath.Dir(path), "master.key"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token sealing: %w", err)
	}

	return &Store{db: db, sealer: sealer}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// TOKEN
// =============================================================================

// SaveToken overwrites any existing session token. The token shape is not
// validated; the collaborator API owns the format.
func (s *Store) SaveToken(token string) error {
	sealed, err := s.sealer.seal(token)
	if err != nil {
		return fmt.Errorf("failed to seal token: %w", err)
	}
	return s.put(keyToken, sealed)
}

// ReadToken returns the stored token, or ErrNotPresent if no session is
// established. It never panics; any storage or unsealing failure reads as
// not-present so callers fall through to the login screen.
func (s *Store) ReadToken() (string, error) {
	sealed, err := s.get(keyToken)
	if err != nil {
		return "", err
	}
	token, err := s.sealer.unseal(sealed)
	if err != nil {
		// A token we cannot unseal is as good as no token. Log the event
		// (never the value) and force re-login.
		log.Printf("CREDSTORE: stored token unreadable, treating as absent: %v", err)
		return "", ErrNotPresent
	}
	return token, nil
}

// =============================================================================
// ROLE
// =============================================================================

// SaveRole stores the agent's role marker ("admin" or "agent").
func (s *Store) SaveRole(role string) error {
	return s.put(keyRole, role)
}

// ReadRole returns the stored role marker.
func (s *Store) ReadRole() (string, error) {
	return s.get(keyRole)
}

// =============================================================================
// ACTIVITY
// =============================================================================

// TouchActivity records now as the last user activity.
func (s *Store) TouchActivity() error {
	return s.put(keyLastActivity, time.Now().UTC().Format(time.RFC3339Nano))
}

// ReadActivity returns the last recorded activity time.
func (s *Store) ReadActivity() (time.Time, error) {
	v, err := s.get(keyLastActivity)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt activity timestamp: %w", err)
	}
	return ts, nil
}

// =============================================================================
// MFA
// =============================================================================

// SaveTOTPSecret stores the enrolled TOTP secret, sealed like the token.
func (s *Store) SaveTOTPSecret(secret string) error {
	sealed, err := s.sealer.seal(secret)
	if err != nil {
		return fmt.Errorf("failed to seal TOTP secret: %w", err)
	}
	return s.put(keyTOTPSecret, sealed)
}

// ReadTOTPSecret returns the enrolled TOTP secret, or ErrNotPresent.
func (s *Store) ReadTOTPSecret() (string, error) {
	sealed, err := s.get(keyTOTPSecret)
	if err != nil {
		return "", err
	}
	secret, err := s.sealer.unseal(sealed)
	if err != nil {
		return "", ErrNotPresent
	}
	return secret, nil
}

// =============================================================================
// CLEAR
// =============================================================================

// Clear removes the token and role markers. Idempotent: clearing an empty
// store succeeds. The activity timestamp goes too; a fresh login starts a
// fresh clock. The TOTP enrollment survives; it belongs to the device,
// not the session.
func (s *Store) Clear() error {
	_, err := s.db.Exec(
		`DELETE FROM credentials WHERE key IN (?, ?, ?)`,
		keyToken, keyRole, keyLastActivity,
	)
	if err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// =============================================================================
// KV PRIMITIVES
// =============================================================================

func (s *Store) put(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO credentials (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM credentials WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotPresent
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}
