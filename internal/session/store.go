// Package session keeps per-session chat history in memory.
//
// The store is deliberately bounded in every direction: turns per session
// are capped, idle sessions expire after a TTL, and the total session
// count has a ceiling with oldest-idle eviction. History here is a
// conversation convenience, not durable state.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single utterance in a session.
type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Config bounds the store.
type Config struct {
	// MaxTurns caps the history kept per session; older turns are
	// dropped first. Default 50.
	MaxTurns int

	// TTL expires a session after this much idle time. Default 30m.
	TTL time.Duration

	// MaxSessions caps the total session count; the longest-idle session
	// is evicted to make room. Default 1000.
	MaxSessions int

	// SweepInterval is how often the janitor removes expired sessions.
	// Default 1m.
	SweepInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxTurns <= 0 {
		c.MaxTurns = 50
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Minute
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = 1000
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
}

type entry struct {
	turns    []Turn
	lastSeen time.Time
}

// Store holds session histories. Safe for concurrent use.
type Store struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*entry
}

// New creates a Store. Call Run to start TTL sweeping; without it,
// expired sessions are still dropped lazily on access.
func New(cfg Config, logger *slog.Logger) *Store {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*entry),
	}
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// Append records a turn, creating the session if needed.
// History beyond MaxTurns is dropped oldest-first.
func (s *Store) Append(sessionID string, role Role, content string) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if ok && now.Sub(e.lastSeen) > s.cfg.TTL {
		// Expired but not yet swept: start over.
		ok = false
	}
	if !ok {
		if len(s.sessions) >= s.cfg.MaxSessions {
			s.evictOldestLocked()
		}
		e = &entry{}
		s.sessions[sessionID] = e
	}

	e.turns = append(e.turns, Turn{Role: role, Content: content, At: now})
	if len(e.turns) > s.cfg.MaxTurns {
		e.turns = e.turns[len(e.turns)-s.cfg.MaxTurns:]
	}
	e.lastSeen = now
}

// History returns a copy of the session's turns, oldest first.
// Unknown or expired sessions return nil.
func (s *Store) History(sessionID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	if time.Since(e.lastSeen) > s.cfg.TTL {
		delete(s.sessions, sessionID)
		return nil
	}

	out := make([]Turn, len(e.turns))
	copy(out, e.turns)
	return out
}

// Clear removes a session. Reports whether it existed.
func (s *Store) Clear(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return ok
}

// Len returns the current session count, including not-yet-swept expired
// sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run sweeps expired sessions until ctx is cancelled. Intended to run in
// its own goroutine for the life of the process.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sweep(); n > 0 {
				s.logger.Debug("swept expired sessions", "count", n)
			}
		}
	}
}

// sweep removes expired sessions and returns how many were dropped.
func (s *Store) sweep() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped int
	for id, e := range s.sessions {
		if now.Sub(e.lastSeen) > s.cfg.TTL {
			delete(s.sessions, id)
			dropped++
		}
	}
	return dropped
}

// evictOldestLocked removes the longest-idle session. Caller holds mu.
func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range s.sessions {
		if oldestID == "" || e.lastSeen.Before(oldest) {
			oldestID = id
			oldest = e.lastSeen
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
		s.logger.Debug("evicted session at capacity", "session_id", oldestID)
	}
}
