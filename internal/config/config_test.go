package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmux/modelmux/internal/policy"
	"github.com/modelmux/modelmux/internal/tier"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, tier.StrategyTwoTier, cfg.Strategy)
	assert.True(t, cfg.AutoMode)
	assert.True(t, cfg.CostOptimization)
}

func TestDefault_StoresAreFileBacked(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join(DefaultDataDir(), "ledger.db"), cfg.Storage.LedgerPath)
	assert.Equal(t, filepath.Join(DefaultDataDir(), "session.db"), cfg.Storage.SessionPath)
	assert.NotEmpty(t, cfg.Storage.LedgerPath)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, tier.StrategyTwoTier, cfg.Strategy)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
strategy: 3-tier
auto_mode: false
escalation:
  enabled: true
  window: 5m
  threshold: 2
budget:
  monthly_limit: 25
  thresholds:
    - percent: 90
      action: block
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, tier.StrategyThreeTier, cfg.Strategy)
	assert.False(t, cfg.AutoMode)
	assert.Equal(t, 5*time.Minute, cfg.Escalation.Window.Std())
	assert.Equal(t, 2, cfg.Escalation.Threshold)
	assert.Equal(t, 25.0, cfg.Budget.MonthlyLimit)
	require.Len(t, cfg.Budget.Thresholds, 1)

	// Settings not in the file keep their defaults.
	assert.True(t, cfg.CostOptimization)
	_, err = cfg.ResolveModel(tier.StrategyThreeTier, tier.Tier2)
	require.NoError(t, err)
}

func TestLoad_RejectsBadStrategy(t *testing.T) {
	path := writeConfig(t, "strategy: 4-tier\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_RejectsForeignTierInModels(t *testing.T) {
	cfg := Default()
	cfg.Models[tier.StrategyTwoTier][tier.Tier3] = ModelRef{Provider: "anthropic", Model: "x"}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBadRule(t *testing.T) {
	cfg := Default()
	cfg.Rules = []RuleConfig{{Name: "broken", Patterns: []string{"x"}, Priority: 150,
		Tiers: map[tier.Strategy]tier.Tier{tier.StrategyTwoTier: tier.Tier1}}}
	assert.Error(t, cfg.Validate())

	cfg.Rules = []RuleConfig{{Name: "empty"}}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsRulePriorityAtEscalationLevel(t *testing.T) {
	rule := RuleConfig{
		Name:     "deploys",
		Patterns: []string{"deploy"},
		Tiers:    map[tier.Strategy]tier.Tier{tier.StrategyTwoTier: tier.TierCritical},
	}

	for _, priority := range []int{0, policy.PriorityEscalation, policy.PriorityEscalation + 50} {
		cfg := Default()
		rule.Priority = priority
		cfg.Rules = []RuleConfig{rule}
		assert.Error(t, cfg.Validate(), "priority %d", priority)
	}

	cfg := Default()
	rule.Priority = policy.PriorityEscalation - 1
	cfg.Rules = []RuleConfig{rule}
	assert.NoError(t, cfg.Validate())
}

func TestResolveModel(t *testing.T) {
	cfg := Default()

	ref, err := cfg.ResolveModel(tier.StrategyTwoTier, tier.TierCritical)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", ref.Provider)
	assert.NotEmpty(t, ref.Model)

	_, err = cfg.ResolveModel(tier.StrategyTwoTier, tier.Tier2)
	var unknown *UnknownModelError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, tier.Tier2, unknown.Tier)
}

func TestPolicyRules_EmptyMeansBuiltins(t *testing.T) {
	cfg := Default()
	assert.Nil(t, cfg.PolicyRules())

	cfg.Rules = []RuleConfig{{
		Name:     "custom",
		Patterns: []string{"deploy"},
		Priority: 200,
		Tiers:    map[tier.Strategy]tier.Tier{tier.StrategyTwoTier: tier.TierCritical},
	}}
	rules := cfg.PolicyRules()
	require.Len(t, rules, 1)
	assert.Equal(t, "custom", rules[0].Name)
	assert.Equal(t, 200, rules[0].Priority)
}

func TestLoad_CustomRules(t *testing.T) {
	path := writeConfig(t, `
rules:
  - name: deploys
    patterns: ["deploy", "rollout"]
    priority: 150
    tiers:
      2-tier: critical
      3-tier: tier3
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, tier.TierCritical, cfg.Rules[0].Tiers[tier.StrategyTwoTier])
	assert.Equal(t, tier.Tier3, cfg.Rules[0].Tiers[tier.StrategyThreeTier])
}
