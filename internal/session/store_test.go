package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmux/modelmux/internal/tier"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_AppendAndHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := Entry{
		Timestamp: time.Now().Add(-time.Minute),
		Pattern:   "bugfix",
		Tier:      tier.TierPrimary,
		Success:   true,
		Context:   "login",
	}
	second := Entry{
		Timestamp: time.Now(),
		Pattern:   "bugfix",
		Tier:      tier.TierCritical,
		Success:   false,
	}

	require.NoError(t, store.AppendOutcome(ctx, "sess-1", first))
	require.NoError(t, store.AppendOutcome(ctx, "sess-1", second))
	require.NoError(t, store.AppendOutcome(ctx, "sess-2", Entry{
		Timestamp: time.Now(),
		Pattern:   "documentation",
		Tier:      tier.Tier1,
		Success:   true,
	}))

	got, err := store.History(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "bugfix", got[0].Pattern)
	assert.Equal(t, tier.TierPrimary, got[0].Tier)
	assert.True(t, got[0].Success)
	assert.Equal(t, "login", got[0].Context)
	assert.WithinDuration(t, first.Timestamp, got[0].Timestamp, time.Millisecond)

	assert.Equal(t, tier.TierCritical, got[1].Tier)
	assert.False(t, got[1].Success)
}

func TestStore_HistoryEmpty(t *testing.T) {
	store := newTestStore(t)

	got, err := store.History(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemory_PersistsThroughStore(t *testing.T) {
	store := newTestStore(t)
	cfg := DefaultConfig()
	cfg.Store = store
	m := NewMemory(cfg)
	ctx := context.Background()

	require.NoError(t, m.RecordOutcome(ctx, "fix a bug", tier.TierCritical, true, "cache"))

	got, err := store.History(ctx, m.SessionID())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bugfix", got[0].Pattern)
	assert.Equal(t, tier.TierCritical, got[0].Tier)

	viaMemory, err := m.History(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, viaMemory)
}

func TestStore_Lifetime(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendOutcome(ctx, "sess-1", Entry{
		Timestamp: time.Now(), Pattern: "bugfix", Tier: tier.TierPrimary, Success: true,
	}))
	require.NoError(t, store.AppendOutcome(ctx, "sess-1", Entry{
		Timestamp: time.Now(), Pattern: "bugfix", Tier: tier.TierCritical, Success: false,
	}))
	require.NoError(t, store.AppendOutcome(ctx, "sess-2", Entry{
		Timestamp: time.Now(), Pattern: "testing", Tier: tier.TierPrimary, Success: true,
	}))

	stats, err := store.Lifetime(ctx)
	require.NoError(t, err)
	assert.Equal(t, LifetimeStats{Sessions: 2, Outcomes: 3, Successes: 2}, stats)
}

func TestMemory_LifetimeSurvivesNewSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := DefaultConfig()
	first.Store = store
	m1 := NewMemory(first)
	require.NoError(t, m1.RecordOutcome(ctx, "fix a bug", tier.TierPrimary, true, ""))
	require.NoError(t, m1.RecordOutcome(ctx, "fix another bug", tier.TierPrimary, false, ""))

	// A fresh Memory over the same store stands in for a restarted process.
	second := DefaultConfig()
	second.Store = store
	m2 := NewMemory(second)
	require.NoError(t, m2.RecordOutcome(ctx, "write tests", tier.TierCritical, true, ""))

	assert.Equal(t, 1, m2.Summarize().EntryCount)

	stats, err := m2.Lifetime(ctx)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, LifetimeStats{Sessions: 2, Outcomes: 3, Successes: 2}, *stats)
}

func TestMemory_LifetimeWithoutStore(t *testing.T) {
	m := NewMemory(DefaultConfig())

	stats, err := m.Lifetime(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stats)
}
