package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"babas/internal/conversation"
	"babas/internal/domain"
	"babas/internal/metrics"
)

// Session is one chat widget instance: its conversation plus the
// "awaiting response" flag. Conversations are never persisted.
type Session struct {
	Key string

	store *conversation.Store

	mu         sync.Mutex
	awaiting   bool
	lastActive time.Time
}

func newSession(key string) *Session {
	return &Session{
		Key:        key,
		store:      conversation.NewStore(),
		lastActive: time.Now(),
	}
}

// Messages returns the conversation in insertion order.
func (s *Session) Messages() []domain.Message {
	return s.store.All()
}

func (s *Session) Awaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting
}

// begin claims the session for one exchange. It fails while another
// exchange is in flight.
func (s *Session) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.awaiting {
		return false
	}
	s.awaiting = true
	s.lastActive = time.Now()
	return true
}

func (s *Session) end() {
	s.mu.Lock()
	s.awaiting = false
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, s.awaiting
}

// SessionManager keeps sessions in memory, keyed by cookie, chat ID or
// "direct" for the CLI.
type SessionManager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	idleTimeout time.Duration
	maxSessions int
	logger      *slog.Logger
}

type SessionConfig struct {
	IdleTimeout time.Duration // 0 = never evict
	MaxSessions int           // 0 = unlimited
	Logger      *slog.Logger
}

func NewSessionManager(cfg SessionConfig) *SessionManager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SessionManager{
		sessions:    make(map[string]*Session),
		idleTimeout: cfg.IdleTimeout,
		maxSessions: cfg.MaxSessions,
		logger:      cfg.Logger,
	}
}

func (sm *SessionManager) Get(key string) (*Session, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s, ok := sm.sessions[key]
	return s, ok
}

func (sm *SessionManager) GetOrCreate(key string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if s, ok := sm.sessions[key]; ok {
		return s
	}
	if sm.maxSessions > 0 && len(sm.sessions) >= sm.maxSessions {
		sm.evictOldestLocked()
	}
	s := newSession(key)
	sm.sessions[key] = s
	metrics.ActiveSessions.Set(int64(len(sm.sessions)))
	sm.logger.Debug("session created", "session", key)
	return s
}

// Clear forgets a session. A reply still in flight lands in the detached
// session and is discarded with it.
func (sm *SessionManager) Clear(key string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if _, ok := sm.sessions[key]; !ok {
		return
	}
	delete(sm.sessions, key)
	metrics.ActiveSessions.Set(int64(len(sm.sessions)))
	sm.logger.Info("session cleared", "session", key)
}

func (sm *SessionManager) Count() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// EvictIdle drops sessions idle since before now-idleTimeout and returns how
// many were dropped. Sessions awaiting a reply are kept.
func (sm *SessionManager) EvictIdle(now time.Time) int {
	if sm.idleTimeout <= 0 {
		return 0
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()

	evicted := 0
	for key, s := range sm.sessions {
		last, awaiting := s.idleSince()
		if !awaiting && now.Sub(last) > sm.idleTimeout {
			delete(sm.sessions, key)
			evicted++
		}
	}
	if evicted > 0 {
		metrics.ActiveSessions.Set(int64(len(sm.sessions)))
		sm.logger.Info("idle sessions evicted", "count", evicted, "remaining", len(sm.sessions))
	}
	return evicted
}

func (sm *SessionManager) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, s := range sm.sessions {
		last, awaiting := s.idleSince()
		if awaiting {
			continue
		}
		if oldestKey == "" || last.Before(oldest) {
			oldestKey, oldest = key, last
		}
	}
	if oldestKey != "" {
		delete(sm.sessions, oldestKey)
		sm.logger.Warn("session limit reached, evicted oldest", "session", oldestKey)
	}
}

// Run evicts idle sessions periodically until ctx is cancelled.
func (sm *SessionManager) Run(ctx context.Context) {
	if sm.idleTimeout <= 0 {
		return
	}
	interval := sm.idleTimeout / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sm.EvictIdle(now)
		}
	}
}
