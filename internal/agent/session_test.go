package agent

import (
	"testing"
	"time"
)

func TestSessionManager_GetOrCreateReuses(t *testing.T) {
	sm := NewSessionManager(SessionConfig{Logger: testLogger()})

	a := sm.GetOrCreate("k")
	b := sm.GetOrCreate("k")
	if a != b {
		t.Fatal("expected same session for same key")
	}
	if sm.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", sm.Count())
	}
	if _, ok := sm.Get("other"); ok {
		t.Fatal("expected unknown key to be absent")
	}
}

func TestSession_BeginEnd(t *testing.T) {
	s := newSession("k")
	if !s.begin() {
		t.Fatal("first begin should succeed")
	}
	if !s.Awaiting() {
		t.Fatal("expected awaiting after begin")
	}
	if s.begin() {
		t.Fatal("second begin should fail while awaiting")
	}
	s.end()
	if s.Awaiting() {
		t.Fatal("expected not awaiting after end")
	}
	if !s.begin() {
		t.Fatal("begin should succeed again after end")
	}
}

func TestSessionManager_EvictIdle(t *testing.T) {
	sm := NewSessionManager(SessionConfig{IdleTimeout: time.Minute, Logger: testLogger()})
	sm.GetOrCreate("idle")
	busy := sm.GetOrCreate("busy")
	busy.begin()

	n := sm.EvictIdle(time.Now().Add(2 * time.Minute))
	if n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, ok := sm.Get("idle"); ok {
		t.Fatal("idle session should be gone")
	}
	if _, ok := sm.Get("busy"); !ok {
		t.Fatal("awaiting session should be kept")
	}
}

func TestSessionManager_EvictIdleDisabled(t *testing.T) {
	sm := NewSessionManager(SessionConfig{Logger: testLogger()})
	sm.GetOrCreate("k")
	if n := sm.EvictIdle(time.Now().Add(24 * time.Hour)); n != 0 {
		t.Fatalf("expected no eviction without timeout, got %d", n)
	}
}

func TestSessionManager_MaxSessionsEvictsOldest(t *testing.T) {
	sm := NewSessionManager(SessionConfig{MaxSessions: 2, Logger: testLogger()})
	first := sm.GetOrCreate("a")
	first.lastActive = time.Now().Add(-time.Hour)
	sm.GetOrCreate("b")
	sm.GetOrCreate("c")

	if sm.Count() != 2 {
		t.Fatalf("expected 2 sessions, got %d", sm.Count())
	}
	if _, ok := sm.Get("a"); ok {
		t.Fatal("oldest session should have been evicted")
	}
}

func TestSessionManager_Clear(t *testing.T) {
	sm := NewSessionManager(SessionConfig{Logger: testLogger()})
	sm.GetOrCreate("k")
	sm.Clear("k")
	sm.Clear("missing")
	if sm.Count() != 0 {
		t.Fatalf("expected 0 sessions, got %d", sm.Count())
	}
}
