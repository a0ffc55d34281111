package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/modelmux/modelmux/internal/tier"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	store, err := OpenStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, nil)
}

func TestPeriodOf(t *testing.T) {
	ts := time.Date(2026, time.March, 31, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "2026-03", PeriodOf(ts))
}

func TestRecord_FillsDefaults(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, Record{
		Tier:  tier.TierPrimary,
		Model: "haiku",
		Cost:  0.01,
	}))

	records, err := l.Records(ctx, CurrentPeriod())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].ID)
	assert.False(t, records[0].Timestamp.IsZero())
}

func TestStatus_NoBudget(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, Record{Tier: tier.TierCritical, Model: "opus", Cost: 42}))

	status, err := l.CurrentStatus(ctx, Budget{})
	require.NoError(t, err)
	assert.Equal(t, 42.0, status.Spent)
	assert.Zero(t, status.Percent)
	assert.False(t, status.Blocked)
	assert.Empty(t, status.Alerts)
}

func TestStatus_BlocksAtFullSpend(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, Record{Tier: tier.TierCritical, Model: "opus", Cost: 10.50}))

	status, err := l.CurrentStatus(ctx, DefaultBudget(10))
	require.NoError(t, err)

	assert.InDelta(t, 105, status.Percent, 1e-9)
	assert.Zero(t, status.Remaining)
	assert.True(t, status.Blocked)
	require.Len(t, status.Alerts, 3)
	// Highest threshold first.
	assert.Equal(t, ActionBlock, status.Alerts[0].Threshold.Action)
	assert.Equal(t, ActionWarn, status.Alerts[1].Threshold.Action)
	assert.Equal(t, ActionNotify, status.Alerts[2].Threshold.Action)
}

func TestStatus_WarnsBelowBlock(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, Record{Tier: tier.TierPrimary, Model: "haiku", Cost: 8.5}))

	status, err := l.CurrentStatus(ctx, DefaultBudget(10))
	require.NoError(t, err)

	assert.False(t, status.Blocked)
	assert.InDelta(t, 1.5, status.Remaining, 1e-9)
	require.Len(t, status.Alerts, 2)
	assert.Equal(t, ActionWarn, status.Alerts[0].Threshold.Action)
}

func TestStatus_IsReadOnly(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, Record{Tier: tier.TierPrimary, Model: "haiku", Cost: 3}))

	first, err := l.CurrentStatus(ctx, DefaultBudget(10))
	require.NoError(t, err)
	second, err := l.CurrentStatus(ctx, DefaultBudget(10))
	require.NoError(t, err)

	assert.Equal(t, first.Spent, second.Spent)
	assert.Equal(t, first.Alerts, second.Alerts)
}

func TestStatus_Breakdowns(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, Record{Tier: tier.TierPrimary, Model: "haiku", Cost: 1}))
	require.NoError(t, l.Record(ctx, Record{Tier: tier.TierPrimary, Model: "haiku", Cost: 2}))
	require.NoError(t, l.Record(ctx, Record{Tier: tier.TierCritical, Model: "opus", Cost: 5}))

	status, err := l.CurrentStatus(ctx, Budget{})
	require.NoError(t, err)

	assert.InDelta(t, 3, status.ByTier[tier.TierPrimary], 1e-9)
	assert.InDelta(t, 5, status.ByTier[tier.TierCritical], 1e-9)
	assert.InDelta(t, 3, status.ByModel["haiku"], 1e-9)
	assert.InDelta(t, 5, status.ByModel["opus"], 1e-9)
}

func TestBudget_Validate(t *testing.T) {
	assert.NoError(t, DefaultBudget(10).Validate())
	assert.Error(t, Budget{Thresholds: []Threshold{{Percent: -1, Action: ActionWarn}}}.Validate())
	assert.Error(t, Budget{Thresholds: []Threshold{{Percent: 50, Action: "panic"}}}.Validate())
}

func TestProperty_TierTotalsSumToSpent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store, err := OpenStore("")
		require.NoError(rt, err)
		defer store.Close()
		l := New(store, nil)
		ctx := context.Background()

		tiers := []tier.Tier{tier.TierPrimary, tier.TierCritical}
		n := rapid.IntRange(1, 20).Draw(rt, "n")
		want := 0.0
		for i := 0; i < n; i++ {
			cents := rapid.Int64Range(0, 10_000).Draw(rt, "cents")
			cost := float64(cents) / 100
			want += cost
			chosen := tiers[rapid.IntRange(0, 1).Draw(rt, "tier")]
			require.NoError(rt, l.Record(ctx, Record{Tier: chosen, Model: "m", Cost: cost}))
		}

		status, err := l.CurrentStatus(ctx, Budget{})
		require.NoError(rt, err)

		sum := 0.0
		for _, c := range status.ByTier {
			sum += c
		}
		assert.InDelta(rt, want, status.Spent, 1e-6)
		assert.InDelta(rt, status.Spent, sum, 1e-6)
	})
}
