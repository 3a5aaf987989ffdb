// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeStore records guard writes.
type fakeStore struct {
	mu       sync.Mutex
	touches  int
	cleared  int
	touchErr error
}

func (f *fakeStore) TouchActivity() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touches++
	return nil
}

func (f *fakeStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return nil
}

func (f *fakeStore) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touches, f.cleared
}

func TestNewGuard(t *testing.T) {
	g := NewGuard(15*time.Minute, 2*time.Minute, nil)

	if !strings.HasPrefix(g.SessionID(), "sess_") {
		t.Errorf("SessionID should start with 'sess_', got %q", g.SessionID())
	}
	if g.State() != StateActive {
		t.Errorf("new guard state = %v, want ACTIVE", g.State())
	}
}

func TestGuard_ExpiresAfterIdle(t *testing.T) {
	store := &fakeStore{}
	g := NewGuard(30*time.Millisecond, 10*time.Millisecond, store)

	expired := false
	g.SetExpiredCallback(func() { expired = true })

	time.Sleep(50 * time.Millisecond)

	if got := g.Check(); got != StateExpired {
		t.Fatalf("Check() = %v, want EXPIRED", got)
	}
	if !expired {
		t.Error("expired callback not invoked")
	}
	if _, cleared := store.counts(); cleared != 1 {
		t.Errorf("credential store cleared %d times, want 1", cleared)
	}

	// The side effect fires exactly once.
	if got := g.Check(); got != StateExpired {
		t.Errorf("second Check() = %v, want EXPIRED", got)
	}
	if _, cleared := store.counts(); cleared != 1 {
		t.Errorf("credential store cleared %d times after recheck, want 1", cleared)
	}
}

func TestGuard_TouchResetsIdleClock(t *testing.T) {
	g := NewGuard(40*time.Millisecond, 10*time.Millisecond, &fakeStore{})

	for i := 0; i < 3; i++ {
		time.Sleep(20 * time.Millisecond)
		g.Touch()
		if got := g.Check(); got != StateActive {
			t.Fatalf("after touch %d, Check() = %v, want ACTIVE", i, got)
		}
	}
}

func TestGuard_TouchPersistsActivity(t *testing.T) {
	store := &fakeStore{}
	g := NewGuard(time.Minute, time.Second, store)

	g.Touch()
	g.Touch()

	if touches, _ := store.counts(); touches != 2 {
		t.Errorf("store touches = %d, want 2", touches)
	}
}

func TestGuard_StorageFailureDegrades(t *testing.T) {
	store := &fakeStore{touchErr: errors.New("disk gone")}
	g := NewGuard(time.Minute, time.Second, store)

	// Must not panic or surface an error; tracking degrades to in-memory.
	g.Touch()
	g.Touch()

	if g.State() != StateActive {
		t.Errorf("state after degraded touches = %v, want ACTIVE", g.State())
	}
}

func TestGuard_WarningWindow(t *testing.T) {
	g := NewGuard(60*time.Millisecond, 40*time.Millisecond, nil)

	time.Sleep(30 * time.Millisecond)
	if got := g.Check(); got != StateWarning {
		t.Fatalf("Check() inside warning window = %v, want WARNING", got)
	}

	// Warning surfaces once per idle stretch.
	if got := g.Check(); got == StateWarning && g.Remaining() == 0 {
		t.Error("warning should not report zero remaining while not expired")
	}

	// Activity leaves the warning window.
	g.Touch()
	if got := g.Check(); got != StateActive {
		t.Errorf("Check() after touch = %v, want ACTIVE", got)
	}
}

func TestGuard_ExpiredCannotBeRevived(t *testing.T) {
	g := NewGuard(10*time.Millisecond, 5*time.Millisecond, nil)
	time.Sleep(20 * time.Millisecond)
	g.Check()

	g.Touch()
	if got := g.State(); got != StateExpired {
		t.Errorf("state after touch on expired = %v, want EXPIRED", got)
	}
}

func TestGuard_Stop(t *testing.T) {
	store := &fakeStore{}
	g := NewGuard(time.Minute, time.Second, store)

	g.Stop()
	if got := g.State(); got != StateLoggedOut {
		t.Fatalf("state after Stop = %v, want LOGGED_OUT", got)
	}

	// Stopped guards are inert: no clear, no revival, idempotent Stop.
	g.Touch()
	g.Stop()
	if got := g.Check(); got != StateLoggedOut {
		t.Errorf("Check() after Stop = %v, want LOGGED_OUT", got)
	}
	if _, cleared := store.counts(); cleared != 0 {
		t.Errorf("Stop should not clear the credential store, cleared %d times", cleared)
	}
}

func TestGuard_HandleTickSchedulesNext(t *testing.T) {
	g := NewGuard(time.Minute, time.Second, nil)
	if cmd := g.HandleTick(); cmd == nil {
		t.Error("active guard should schedule the next tick")
	}

	g.Stop()
	if cmd := g.HandleTick(); cmd != nil {
		t.Error("logged-out guard should not schedule ticks")
	}
}
