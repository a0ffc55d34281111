// Package ledger tracks per-call usage cost against a monthly budget. The
// journal is append-only; whether spending is blocked is always derived
// from the current period's totals, never persisted.
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/modelmux/modelmux/internal/tier"
)

// PeriodOf formats a timestamp as its monthly accounting period.
func PeriodOf(ts time.Time) string {
	return ts.UTC().Format("2006-01")
}

// CurrentPeriod is the accounting period containing now.
func CurrentPeriod() string {
	return PeriodOf(time.Now())
}

// Record is one backing-service call's usage.
type Record struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Tier         tier.Tier `json:"tier"`
	Model        string    `json:"model"`
	Task         string    `json:"task,omitempty"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	Cost         float64   `json:"cost"`
}

// Alert is a budget threshold the period's spend has reached.
type Alert struct {
	Threshold Threshold `json:"threshold"`
	Percent   float64   `json:"percent"`
	Spent     float64   `json:"spent"`
	Limit     float64   `json:"limit"`
}

// Status is the budget picture for one period, computed fresh on each call.
type Status struct {
	Period string  `json:"period"`
	Spent  float64 `json:"spent"`
	Limit  float64 `json:"limit"`

	// Remaining is the unspent part of the limit, floored at zero.
	Remaining float64 `json:"remaining"`
	Percent   float64 `json:"percent"`

	// Alerts holds every threshold at or below the current percent,
	// highest first.
	Alerts []Alert `json:"alerts,omitempty"`

	// Blocked is true when a crossed threshold carries the block action.
	Blocked bool `json:"blocked"`

	ByTier  map[tier.Tier]float64 `json:"by_tier,omitempty"`
	ByModel map[string]float64    `json:"by_model,omitempty"`
}

// Ledger records usage and reports budget status.
type Ledger struct {
	mu     sync.Mutex
	store  *Store
	logger *slog.Logger
}

// New creates a ledger over the given store.
func New(store *Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, logger: logger}
}

// Record journals a usage record. A missing ID or timestamp is filled in.
func (l *Ledger) Record(ctx context.Context, r Record) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Append(ctx, r); err != nil {
		return err
	}

	l.logger.Debug("usage recorded",
		"tier", r.Tier,
		"model", r.Model,
		"cost", r.Cost,
		"period", PeriodOf(r.Timestamp))
	return nil
}

// Status computes the period's spend against the budget. With no limit set
// the percent stays zero and nothing ever blocks.
func (l *Ledger) Status(ctx context.Context, period string, budget Budget) (*Status, error) {
	totals, err := l.store.Totals(ctx, period)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Period:  period,
		Limit:   budget.MonthlyLimit,
		ByTier:  make(map[tier.Tier]float64),
		ByModel: make(map[string]float64),
	}

	for _, tt := range totals {
		status.Spent += tt.Cost
		status.ByTier[tt.Tier] += tt.Cost
		status.ByModel[tt.Model] += tt.Cost
	}

	if !budget.Enabled() {
		return status, nil
	}

	status.Percent = status.Spent / budget.MonthlyLimit * 100
	status.Remaining = budget.MonthlyLimit - status.Spent
	if status.Remaining < 0 {
		status.Remaining = 0
	}

	for _, th := range budget.Thresholds {
		if status.Percent < th.Percent {
			continue
		}
		status.Alerts = append(status.Alerts, Alert{
			Threshold: th,
			Percent:   status.Percent,
			Spent:     status.Spent,
			Limit:     budget.MonthlyLimit,
		})
		if th.Action == ActionBlock {
			status.Blocked = true
		}
	}
	sort.Slice(status.Alerts, func(i, j int) bool {
		return status.Alerts[i].Threshold.Percent > status.Alerts[j].Threshold.Percent
	})

	return status, nil
}

// CurrentStatus is Status for the period containing now.
func (l *Ledger) CurrentStatus(ctx context.Context, budget Budget) (*Status, error) {
	return l.Status(ctx, CurrentPeriod(), budget)
}

// Records returns the raw journal for a period, oldest first.
func (l *Ledger) Records(ctx context.Context, period string) ([]Record, error) {
	return l.store.Records(ctx, period)
}
