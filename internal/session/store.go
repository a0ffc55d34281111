package session

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	"github.com/modelmux/modelmux/internal/storage"
	"github.com/modelmux/modelmux/internal/tier"
)

//go:embed schema.sql
var schema string

// Store persists session outcomes to SQLite so history survives restarts.
// The in-memory Memory remains authoritative for recommendations; the
// store is an append-only journal.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the outcome store at the given path. An
// empty path opens a shared in-memory database.
func OpenStore(path string) (*Store, error) {
	db, err := storage.Open(storage.Options{Path: path, CreateIfNotExists: true}, schema)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendOutcome journals a single outcome for a session.
func (s *Store) AppendOutcome(ctx context.Context, sessionID string, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (session_id, recorded_at, pattern, tier, success, context)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Pattern,
		string(e.Tier),
		boolToInt(e.Success),
		e.Context,
	)
	if err != nil {
		return &storage.PersistenceError{Op: "append outcome", Err: err}
	}
	return nil
}

// History returns the journaled outcomes for a session, oldest first.
func (s *Store) History(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT recorded_at, pattern, tier, success, context
		 FROM outcomes WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, &storage.PersistenceError{Op: "query history", Err: err}
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			recordedAt string
			e          Entry
			tierName   string
			success    int
		)
		if err := rows.Scan(&recordedAt, &e.Pattern, &tierName, &success, &e.Context); err != nil {
			return nil, &storage.PersistenceError{Op: "scan history", Err: err}
		}
		ts, err := time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, &storage.PersistenceError{Op: "parse history timestamp", Err: err}
		}
		e.Timestamp = ts
		e.Tier = tier.Tier(tierName)
		e.Success = success != 0
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &storage.PersistenceError{Op: "iterate history", Err: err}
	}
	return entries, nil
}

// LifetimeStats aggregates the journal across every recorded session,
// including sessions written by earlier runs.
type LifetimeStats struct {
	Sessions  int `json:"sessions"`
	Outcomes  int `json:"outcomes"`
	Successes int `json:"successes"`
}

// Lifetime summarizes the whole journal.
func (s *Store) Lifetime(ctx context.Context) (LifetimeStats, error) {
	var stats LifetimeStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT session_id), COUNT(*), COALESCE(SUM(success), 0) FROM outcomes`,
	).Scan(&stats.Sessions, &stats.Outcomes, &stats.Successes)
	if err != nil {
		return LifetimeStats{}, &storage.PersistenceError{Op: "lifetime stats", Err: err}
	}
	return stats, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
