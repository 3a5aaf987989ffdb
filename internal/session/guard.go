// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session enforces the idle-timeout policy for an agent session.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// STATES
// =============================================================================

// State represents the guard's view of the session.
type State int

const (
	// StateActive indicates recent user activity.
	StateActive State = iota
	// StateWarning indicates the session is inside the warning window
	// before expiry.
	StateWarning
	// StateExpired indicates the idle threshold was crossed; the session
	// must be terminated.
	StateExpired
	// StateLoggedOut is terminal for a guard instance. A fresh login gets a
	// fresh guard.
	StateLoggedOut
)

// String returns a readable state name.
func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateWarning:
		return "WARNING"
	case StateExpired:
		return "EXPIRED"
	case StateLoggedOut:
		return "LOGGED_OUT"
	default:
		return "UNKNOWN"
	}
}

// =============================================================================
// ACTIVITY SINK
// =============================================================================

// ActivityStore is the durable side of the activity clock. Implemented by
// the credential store; the guard is its only writer.
type ActivityStore interface {
	TouchActivity() error
	Clear() error
}

// =============================================================================
// GUARD
// =============================================================================

// Guard watches for user inactivity and expires the session when the idle
// threshold is crossed. Input events call Touch; a recurring check compares
// wall-clock idle time against the threshold, so the check cadence itself
// is not load-bearing.
type Guard struct {
	mu sync.Mutex

	sessionID    string
	startedAt    time.Time
	lastActivity time.Time
	state        State

	timeout       time.Duration
	warningBefore time.Duration
	warningShown  bool

	store ActivityStore
	// storeDegraded is set after the first storage failure. Activity
	// tracking continues in memory; it is an accepted degradation, not an
	// error to propagate.
	storeDegraded bool

	onExpired func()
}

// NewGuard creates a guard for one authenticated session. store may be nil,
// in which case activity is tracked in memory only.
func NewGuard(timeout, warningBefore time.Duration, store ActivityStore) *Guard {
	now := time.Now()
	return &Guard{
		sessionID:     newSessionID(),
		startedAt:     now,
		lastActivity:  now,
		state:         StateActive,
		timeout:       timeout,
		warningBefore: warningBefore,
		store:         store,
	}
}

// newSessionID creates a random session identifier for log correlation.
func newSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// The ID is for log lines only; a clock-based fallback is fine.
		return fmt.Sprintf("sess_t%d", time.Now().UnixNano())
	}
	return "sess_" + hex.EncodeToString(b)
}

// SessionID returns the guard's session identifier.
func (g *Guard) SessionID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessionID
}

// State returns the current session state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SetExpiredCallback registers the logout side effect invoked exactly once
// on expiry.
func (g *Guard) SetExpiredCallback(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onExpired = fn
}

// IdleTime returns the time since the last qualifying activity.
func (g *Guard) IdleTime() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Since(g.lastActivity)
}

// Remaining returns the time until expiry, or 0 when already expired.
func (g *Guard) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	remaining := g.timeout - time.Since(g.lastActivity)
	if remaining < 0 || g.state == StateExpired || g.state == StateLoggedOut {
		return 0
	}
	return remaining
}

// Touch records user activity, resetting the idle clock and leaving the
// warning window if inside it. Expired and logged-out sessions cannot be
// revived by activity.
func (g *Guard) Touch() {
	g.mu.Lock()
	if g.state == StateExpired || g.state == StateLoggedOut {
		g.mu.Unlock()
		return
	}
	g.lastActivity = time.Now()
	g.state = StateActive
	g.warningShown = false
	store := g.store
	degraded := g.storeDegraded
	g.mu.Unlock()

	if store == nil || degraded {
		return
	}
	if err := store.TouchActivity(); err != nil {
		g.mu.Lock()
		g.storeDegraded = true
		g.mu.Unlock()
		log.Printf("SESSION_STORE_DEGRADED | session=%s error=%v", g.sessionID, err)
	}
}

// Check evaluates idle time and advances the state machine. It returns the
// new state; the expiry side effect (clearing the credential store and the
// registered callback) fires exactly once.
func (g *Guard) Check() State {
	g.mu.Lock()

	if g.state == StateExpired || g.state == StateLoggedOut {
		state := g.state
		g.mu.Unlock()
		return state
	}

	idle := time.Since(g.lastActivity)

	if idle >= g.timeout {
		g.state = StateExpired
		store := g.store
		callback := g.onExpired
		g.mu.Unlock()

		logEvent("SESSION_EXPIRED", g.sessionID, fmt.Sprintf("idle=%v threshold=%v", idle.Truncate(time.Second), g.timeout))

		if store != nil {
			if err := store.Clear(); err != nil {
				log.Printf("SESSION_CLEAR_FAILED | session=%s error=%v", g.sessionID, err)
			}
		}
		if callback != nil {
			callback()
		}
		return StateExpired
	}

	if idle >= g.timeout-g.warningBefore && !g.warningShown {
		g.state = StateWarning
		g.warningShown = true
		g.mu.Unlock()
		logEvent("SESSION_WARNING", g.sessionID, fmt.Sprintf("expires_in=%v", (g.timeout-idle).Truncate(time.Second)))
		return StateWarning
	}

	state := g.state
	g.mu.Unlock()
	return state
}

// Stop ends the guard on explicit logout or teardown, releasing it on every
// exit path. After Stop, Touch and Check are no-ops.
func (g *Guard) Stop() {
	g.mu.Lock()
	if g.state == StateLoggedOut {
		g.mu.Unlock()
		return
	}
	g.state = StateLoggedOut
	g.mu.Unlock()

	logEvent("SESSION_TERMINATED", g.sessionID, fmt.Sprintf("duration=%v", time.Since(g.startedAt).Truncate(time.Second)))
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// TickMsg drives the recurring idle check.
type TickMsg struct {
	Time time.Time
}

// WarningMsg signals the session is inside the warning window.
type WarningMsg struct {
	Remaining time.Duration
}

// ExpiredMsg signals the session expired; the UI must drop to the login
// screen and show the one-time notice.
type ExpiredMsg struct{}

// TickCmd schedules the next idle check.
func TickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// HandleTick runs one check and translates the result into messages for
// the UI, plus the next tick. After expiry no further tick is scheduled;
// the guard instance is done.
func (g *Guard) HandleTick() tea.Cmd {
	switch g.Check() {
	case StateWarning:
		remaining := g.Remaining()
		return tea.Batch(
			func() tea.Msg { return WarningMsg{Remaining: remaining} },
			TickCmd(),
		)
	case StateExpired:
		return func() tea.Msg { return ExpiredMsg{} }
	case StateLoggedOut:
		return nil
	default:
		return TickCmd()
	}
}

// logEvent writes a session lifecycle line in the audit-style format.
func logEvent(eventType, sessionID, details string) {
	timestamp := time.Now().UTC().Format("2006-01-02 15:04:05 UTC")
	log.Printf("%s | %s | session=%s %s", timestamp, eventType, sessionID, details)
}
