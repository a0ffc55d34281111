// Package session records per-task routing outcomes in bounded rolling
// sessions and derives tier recommendations from the active session's
// history.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modelmux/modelmux/internal/tier"
)

// Entry is a single task outcome inside a session.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Pattern   string    `json:"pattern"`
	Tier      tier.Tier `json:"tier"`
	Success   bool      `json:"success"`
	Context   string    `json:"context,omitempty"`
}

// Session is a bounded, time-ordered run of task outcomes. Once superseded
// by a newer session it is never mutated except for pruning.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	entries   []Entry
}

// Entries returns a copy of the session's entries, oldest first.
func (s *Session) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Config configures session memory bounds and persistence.
type Config struct {
	// MaxEntries is the per-session entry capacity (default 100).
	MaxEntries int

	// MaxSessions is the number of retained sessions (default 10).
	MaxSessions int

	// Store optionally persists outcomes. Persist failures surface as
	// errors without corrupting the in-memory state.
	Store *Store

	// Logger for outcome events.
	Logger *slog.Logger
}

// DefaultConfig returns the default memory bounds.
func DefaultConfig() Config {
	return Config{
		MaxEntries:  100,
		MaxSessions: 10,
	}
}

// Memory holds the rolling sessions. Only the active session feeds
// recommendations; older sessions are kept for summaries until evicted.
type Memory struct {
	mu sync.RWMutex

	config   Config
	sessions []*Session
	active   *Session
	logger   *slog.Logger
}

// NewMemory creates session memory and starts its first session.
func NewMemory(cfg Config) *Memory {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultConfig().MaxSessions
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	m := &Memory{
		config: cfg,
		logger: cfg.Logger,
	}
	m.startSessionLocked()
	return m
}

// StartSession begins a fresh session with zero entries. Recommendation
// data never carries over from earlier sessions.
func (m *Memory) StartSession() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startSessionLocked()
}

func (m *Memory) startSessionLocked() string {
	s := &Session{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}
	m.sessions = append(m.sessions, s)
	m.active = s

	// Oldest sessions beyond capacity are dropped.
	if len(m.sessions) > m.config.MaxSessions {
		m.sessions = m.sessions[len(m.sessions)-m.config.MaxSessions:]
	}

	m.logger.Debug("session started", "session_id", s.ID)
	return s.ID
}

// SessionID returns the active session's ID.
func (m *Memory) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active.ID
}

// RecordOutcome appends a task outcome to the active session, evicting the
// oldest entry when the session is at capacity. When a store is configured
// the outcome is also persisted; a persist failure is returned to the
// caller as a storage error.
func (m *Memory) RecordOutcome(ctx context.Context, task string, used tier.Tier, success bool, contextNote string) error {
	entry := Entry{
		Timestamp: time.Now(),
		Pattern:   ClassifyPattern(task),
		Tier:      used,
		Success:   success,
		Context:   contextNote,
	}

	m.mu.Lock()
	m.active.entries = append(m.active.entries, entry)
	if len(m.active.entries) > m.config.MaxEntries {
		m.active.entries = m.active.entries[len(m.active.entries)-m.config.MaxEntries:]
	}
	sessionID := m.active.ID
	store := m.config.Store
	m.mu.Unlock()

	m.logger.Debug("outcome recorded",
		"pattern", entry.Pattern,
		"tier", entry.Tier,
		"success", entry.Success)

	if store != nil {
		if err := store.AppendOutcome(ctx, sessionID, entry); err != nil {
			return err
		}
	}
	return nil
}

// Recommend returns the tier with the most successful outcomes for the
// task's pattern in the current session. Ties are broken by which tier was
// encountered first. Only the active session is consulted, so the
// recommendation reflects the current working context.
func (m *Memory) Recommend(task string) (tier.Tier, bool) {
	pattern := ClassifyPattern(task)

	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[tier.Tier]int)
	var order []tier.Tier

	for _, e := range m.active.entries {
		if e.Pattern != pattern || !e.Success {
			continue
		}
		if counts[e.Tier] == 0 {
			order = append(order, e.Tier)
		}
		counts[e.Tier]++
	}

	if len(order) == 0 {
		return "", false
	}

	best := order[0]
	for _, t := range order[1:] {
		if counts[t] > counts[best] {
			best = t
		}
	}
	return best, true
}

// Summary describes the active session's recorded outcomes.
type Summary struct {
	SessionID     string            `json:"session_id"`
	EntryCount    int               `json:"entry_count"`
	SuccessRate   float64           `json:"success_rate"`
	PatternCounts map[string]int    `json:"pattern_counts"`
	TierCounts    map[tier.Tier]int `json:"tier_counts"`
}

// Summarize reports aggregate stats for the active session.
func (m *Memory) Summarize() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := Summary{
		SessionID:     m.active.ID,
		EntryCount:    len(m.active.entries),
		PatternCounts: make(map[string]int),
		TierCounts:    make(map[tier.Tier]int),
	}

	successes := 0
	for _, e := range m.active.entries {
		summary.PatternCounts[e.Pattern]++
		summary.TierCounts[e.Tier]++
		if e.Success {
			successes++
		}
	}
	if summary.EntryCount > 0 {
		summary.SuccessRate = float64(successes) / float64(summary.EntryCount)
	}
	return summary
}

// History returns the active session's journaled outcomes from the store,
// oldest first. Without a store it returns nothing.
func (m *Memory) History(ctx context.Context) ([]Entry, error) {
	if m.config.Store == nil {
		return nil, nil
	}
	return m.config.Store.History(ctx, m.SessionID())
}

// Lifetime summarizes the persisted journal across all sessions, including
// ones recorded by earlier runs. Without a store it returns nil.
func (m *Memory) Lifetime(ctx context.Context) (*LifetimeStats, error) {
	if m.config.Store == nil {
		return nil, nil
	}
	stats, err := m.config.Store.Lifetime(ctx)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Sessions returns the retained sessions, oldest first.
func (m *Memory) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, len(m.sessions))
	copy(out, m.sessions)
	return out
}
