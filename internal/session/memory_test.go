package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmux/modelmux/internal/tier"
)

func TestClassifyPattern(t *testing.T) {
	cases := []struct {
		task string
		want string
	}{
		{"design the plugin architecture", "architecture"},
		{"review auth token handling", "security"},
		{"refactor the parser into smaller funcs", "refactor"},
		{"implement retry with backoff", "implementation"},
		{"fix the flaky login bug", "bugfix"},
		{"investigate slow startup", "exploration"},
		{"add test coverage for the cache", "testing"},
		{"update the readme", "documentation"},
		{"hello there", PatternGeneral},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyPattern(tc.task), "task %q", tc.task)
	}
}

func TestRecommend_MajorityWins(t *testing.T) {
	m := NewMemory(DefaultConfig())
	ctx := context.Background()

	require.NoError(t, m.RecordOutcome(ctx, "fix login bug", tier.TierPrimary, true, ""))
	require.NoError(t, m.RecordOutcome(ctx, "fix logout bug", tier.TierCritical, true, ""))
	require.NoError(t, m.RecordOutcome(ctx, "fix signup bug", tier.TierCritical, true, ""))

	got, ok := m.Recommend("fix the cache bug")
	require.True(t, ok)
	assert.Equal(t, tier.TierCritical, got)
}

func TestRecommend_TieBreaksOnFirstSeen(t *testing.T) {
	m := NewMemory(DefaultConfig())
	ctx := context.Background()

	require.NoError(t, m.RecordOutcome(ctx, "fix a bug", tier.TierPrimary, true, ""))
	require.NoError(t, m.RecordOutcome(ctx, "fix another bug", tier.TierCritical, true, ""))

	got, ok := m.Recommend("fix yet another bug")
	require.True(t, ok)
	assert.Equal(t, tier.TierPrimary, got)
}

func TestRecommend_IgnoresFailures(t *testing.T) {
	m := NewMemory(DefaultConfig())
	ctx := context.Background()

	require.NoError(t, m.RecordOutcome(ctx, "fix a bug", tier.TierCritical, false, ""))
	require.NoError(t, m.RecordOutcome(ctx, "fix a bug", tier.TierCritical, false, ""))
	require.NoError(t, m.RecordOutcome(ctx, "fix a bug", tier.TierPrimary, true, ""))

	got, ok := m.Recommend("fix the other bug")
	require.True(t, ok)
	assert.Equal(t, tier.TierPrimary, got)
}

func TestRecommend_NoMatchingPattern(t *testing.T) {
	m := NewMemory(DefaultConfig())
	ctx := context.Background()

	require.NoError(t, m.RecordOutcome(ctx, "fix a bug", tier.TierPrimary, true, ""))

	_, ok := m.Recommend("update the readme")
	assert.False(t, ok)
}

func TestRecommend_NoCarryoverAcrossSessions(t *testing.T) {
	m := NewMemory(DefaultConfig())
	ctx := context.Background()

	require.NoError(t, m.RecordOutcome(ctx, "fix a bug", tier.TierCritical, true, ""))

	m.StartSession()

	_, ok := m.Recommend("fix a bug")
	assert.False(t, ok, "a fresh session must not inherit outcomes")
}

func TestRecordOutcome_EvictsOldestEntry(t *testing.T) {
	m := NewMemory(Config{MaxEntries: 3})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		note := fmt.Sprintf("task %d", i)
		require.NoError(t, m.RecordOutcome(ctx, note, tier.TierPrimary, true, note))
	}

	sessions := m.Sessions()
	entries := sessions[len(sessions)-1].Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "task 2", entries[0].Context)
	assert.Equal(t, "task 4", entries[2].Context)
}

func TestStartSession_EvictsOldestSession(t *testing.T) {
	m := NewMemory(Config{MaxSessions: 2})

	first := m.SessionID()
	m.StartSession()
	m.StartSession()

	for _, s := range m.Sessions() {
		assert.NotEqual(t, first, s.ID)
	}
	assert.Len(t, m.Sessions(), 2)
}

func TestSummarize(t *testing.T) {
	m := NewMemory(DefaultConfig())
	ctx := context.Background()

	require.NoError(t, m.RecordOutcome(ctx, "fix a bug", tier.TierCritical, true, ""))
	require.NoError(t, m.RecordOutcome(ctx, "fix a typo", tier.TierPrimary, false, ""))
	require.NoError(t, m.RecordOutcome(ctx, "update docs", tier.TierPrimary, true, ""))

	sum := m.Summarize()
	assert.Equal(t, 3, sum.EntryCount)
	assert.InDelta(t, 2.0/3.0, sum.SuccessRate, 1e-9)
	assert.Equal(t, 2, sum.PatternCounts["bugfix"])
	assert.Equal(t, 1, sum.PatternCounts["documentation"])
	assert.Equal(t, 2, sum.TierCounts[tier.TierPrimary])
	assert.Equal(t, 1, sum.TierCounts[tier.TierCritical])
}

func TestSummarize_Empty(t *testing.T) {
	m := NewMemory(DefaultConfig())
	sum := m.Summarize()
	assert.Zero(t, sum.EntryCount)
	assert.Zero(t, sum.SuccessRate)
}
