package ledger

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

// Store is the append-only usage journal. Every Append writes the raw
// record and bumps the period rollup in one transaction, so the record and
// its totals can never disagree.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the usage store at the given path. An empty
// path opens a shared in-memory database.
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

// Append journals a usage record and updates its period rollup atomically.
func (s *Store) Append(ctx context.Context, r Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &storage.PersistenceError{Op: "begin append", Err: err}
	}
	defer tx.Rollback()

	period := PeriodOf(r.Timestamp)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO usage_records (id, recorded_at, period, tier, model, task, input_tokens, output_tokens, cost)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		period,
		string(r.Tier),
		r.Model,
		r.Task,
		r.InputTokens,
		r.OutputTokens,
		r.Cost,
	); err != nil {
		return &storage.PersistenceError{Op: "insert record", Err: err}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO period_totals (period, tier, model, calls, input_tokens, output_tokens, cost)
		 VALUES (?, ?, ?, 1, ?, ?, ?)
		 ON CONFLICT (period, tier, model) DO UPDATE SET
		   calls = calls + 1,
		   input_tokens = input_tokens + excluded.input_tokens,
		   output_tokens = output_tokens + excluded.output_tokens,
		   cost = cost + excluded.cost`,
		period,
		string(r.Tier),
		r.Model,
		r.InputTokens,
		r.OutputTokens,
		r.Cost,
	); err != nil {
		return &storage.PersistenceError{Op: "update totals", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &storage.PersistenceError{Op: "commit append", Err: err}
	}
	return nil
}

// TierTotal is one (tier, model) rollup row within a period.
type TierTotal struct {
	Tier         tier.Tier `json:"tier"`
	Model        string    `json:"model"`
	Calls        int64     `json:"calls"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	Cost         float64   `json:"cost"`
}

// Totals returns the rollup rows for a period, highest cost first.
func (s *Store) Totals(ctx context.Context, period string) ([]TierTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tier, model, calls, input_tokens, output_tokens, cost
		 FROM period_totals WHERE period = ? ORDER BY cost DESC`,
		period,
	)
	if err != nil {
		return nil, &storage.PersistenceError{Op: "query totals", Err: err}
	}
	defer rows.Close()

	var totals []TierTotal
	for rows.Next() {
		var (
			tt       TierTotal
			tierName string
		)
		if err := rows.Scan(&tierName, &tt.Model, &tt.Calls, &tt.InputTokens, &tt.OutputTokens, &tt.Cost); err != nil {
			return nil, &storage.PersistenceError{Op: "scan totals", Err: err}
		}
		tt.Tier = tier.Tier(tierName)
		totals = append(totals, tt)
	}
	if err := rows.Err(); err != nil {
		return nil, &storage.PersistenceError{Op: "iterate totals", Err: err}
	}
	return totals, nil
}

// Records returns the raw usage records for a period, oldest first.
func (s *Store) Records(ctx context.Context, period string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recorded_at, tier, model, task, input_tokens, output_tokens, cost
		 FROM usage_records WHERE period = ? ORDER BY recorded_at`,
		period,
	)
	if err != nil {
		return nil, &storage.PersistenceError{Op: "query records", Err: err}
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r          Record
			recordedAt string
			tierName   string
		)
		if err := rows.Scan(&r.ID, &recordedAt, &tierName, &r.Model, &r.Task, &r.InputTokens, &r.OutputTokens, &r.Cost); err != nil {
			return nil, &storage.PersistenceError{Op: "scan records", Err: err}
		}
		ts, err := time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, &storage.PersistenceError{Op: "parse record timestamp", Err: err}
		}
		r.Timestamp = ts
		r.Tier = tier.Tier(tierName)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &storage.PersistenceError{Op: "iterate records", Err: err}
	}
	return records, nil
}
