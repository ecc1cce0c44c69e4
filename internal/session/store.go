// Package session holds per-player game state for the lifetime of the process.
//
// Nothing here is persisted. A session is created on a player's first
// request (or an explicit re-initialization) and lives until the process
// exits or the idle sweeper evicts it.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Conversation roles stored in session history.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one entry of a session's conversation history.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// WorldContext is the long-term memory of one game session. The wire
// field names are part of the front-end contract.
//
// Health and Money are the authoritative stat values; PlayerBio carries
// the same numbers rendered as labeled tokens inside the prose (see the
// bio package). The two are kept in sync by the reconciler every turn.
type WorldContext struct {
	PlayerBio        string `json:"player_bio"`
	CurrentGoal      string `json:"current_goal"`
	WorldEvents      string `json:"world_events"`
	TimeRemainingSec int    `json:"time_remaining_sec"`
	Health           int    `json:"health"`
	Money            int    `json:"money"`
}

// Session is one player's game state. The embedded mutex serializes
// whole turns per player: the controller locks the session before
// compiling a turn and releases it after the reconciled reply is built,
// so two concurrent requests for the same userId cannot race on
// history, world context, or the biography text.
type Session struct {
	UserID     string
	World      WorldContext
	History    []Message
	StartTime  time.Time
	Duration   time.Duration
	LastActive time.Time

	mu sync.Mutex
}

// Lock acquires the session's turn lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session's turn lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Touch records activity for the idle sweeper. Call with the lock held.
func (s *Session) Touch(now time.Time) { s.LastActive = now }

// Remaining returns the unexpired portion of the session's time budget,
// floored at zero.
func (s *Session) Remaining(now time.Time) time.Duration {
	left := s.Duration - now.Sub(s.StartTime)
	if left < 0 {
		return 0
	}
	return left
}

// Store is the in-memory map from userId to session.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	// now is injectable for tests.
	now func() time.Time
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns the session for userID, if one exists.
func (st *Store) Get(userID string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[userID]
	return s, ok
}

// Create makes a fresh session for userID with empty history and the
// timer started now. An existing session for the same userID is replaced.
func (st *Store) Create(userID string, world WorldContext, duration time.Duration) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	s := &Session{
		UserID:     userID,
		World:      world,
		StartTime:  now,
		Duration:   duration,
		LastActive: now,
	}
	st.sessions[userID] = s
	return s
}

// GetOrCreate returns the existing session for userID, or atomically
// creates one. Unlike a Get-then-Create pair, two concurrent first
// turns for the same userID land on the same record.
func (st *Store) GetOrCreate(userID string, world WorldContext, duration time.Duration) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[userID]; ok {
		return s
	}

	now := st.now()
	s := &Session{
		UserID:     userID,
		World:      world,
		StartTime:  now,
		Duration:   duration,
		LastActive: now,
	}
	st.sessions[userID] = s
	return s
}

// Reset clears the session's history and restarts its timer while
// preserving the identity of the record. If no session exists for
// userID, Reset behaves like Create.
func (st *Store) Reset(userID string, world WorldContext, duration time.Duration) *Session {
	st.mu.Lock()
	s, ok := st.sessions[userID]
	st.mu.Unlock()

	if !ok {
		return st.Create(userID, world, duration)
	}

	s.Lock()
	defer s.Unlock()

	now := st.now()
	s.World = world
	s.History = nil
	s.StartTime = now
	s.Duration = duration
	s.LastActive = now
	return s
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep evicts sessions idle for longer than ttl and returns how many
// were removed. Sessions with a turn in flight are skipped and picked
// up on a later sweep. A ttl of zero disables eviction entirely.
func (st *Store) Sweep(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := st.now().Add(-ttl)
	evicted := 0
	for id, s := range st.sessions {
		if !s.mu.TryLock() {
			continue
		}
		idle := s.LastActive.Before(cutoff)
		s.mu.Unlock()

		if idle {
			delete(st.sessions, id)
			evicted++
		}
	}
	return evicted
}

// RunSweeper periodically evicts idle sessions until ctx is done.
// It returns immediately when ttl is zero.
func (st *Store) RunSweeper(ctx context.Context, ttl, interval time.Duration, logger *slog.Logger) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(ttl); n > 0 {
				logger.Info("evicted idle sessions", "count", n, "remaining", st.Len())
			}
		}
	}
}
