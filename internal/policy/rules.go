package policy

import (
	"github.com/modelmux/modelmux/internal/tier"
)

// KeywordRule maps task-text patterns to a target tier per strategy.
// Rules are immutable after load. Patterns are tested in declaration order
// against the lower-cased task text; a rule contributes at most one match.
type KeywordRule struct {
	// Name identifies the rule in decisions and logs.
	Name string

	// Patterns are lower-case substrings tested in order.
	Patterns []string

	// Tiers maps each strategy to the rule's target tier. A rule with no
	// mapping for the active strategy contributes nothing.
	Tiers map[tier.Strategy]tier.Tier

	// Priority breaks ties between matching rules; higher wins.
	Priority int
}

// DefaultRules returns the built-in keyword rule table. Priorities are
// spaced out so configuration can slot custom rules between them.
func DefaultRules() []KeywordRule {
	return []KeywordRule{
		{
			Name:     "architecture",
			Patterns: []string{"architecture", "architectural", "system design"},
			Tiers: map[tier.Strategy]tier.Tier{
				tier.StrategyTwoTier:   tier.TierCritical,
				tier.StrategyThreeTier: tier.Tier3,
			},
			Priority: 130,
		},
		{
			Name:     "security",
			Patterns: []string{"security", "vulnerability", "exploit", "authentication", "threat model"},
			Tiers: map[tier.Strategy]tier.Tier{
				tier.StrategyTwoTier:   tier.TierCritical,
				tier.StrategyThreeTier: tier.Tier3,
			},
			Priority: 125,
		},
		{
			Name:     "design",
			Patterns: []string{"design", "propose improvements", "trade-off"},
			Tiers: map[tier.Strategy]tier.Tier{
				tier.StrategyTwoTier:   tier.TierCritical,
				tier.StrategyThreeTier: tier.Tier3,
			},
			Priority: 120,
		},
		{
			Name:     "incident",
			Patterns: []string{"production incident", "outage", "data loss", "critical bug"},
			Tiers: map[tier.Strategy]tier.Tier{
				tier.StrategyTwoTier:   tier.TierCritical,
				tier.StrategyThreeTier: tier.Tier3,
			},
			Priority: 115,
		},
		{
			Name:     "refactor",
			Patterns: []string{"refactor", "restructure", "migrate"},
			Tiers: map[tier.Strategy]tier.Tier{
				tier.StrategyTwoTier:   tier.TierCritical,
				tier.StrategyThreeTier: tier.Tier2,
			},
			Priority: 110,
		},
		{
			Name:     "implementation",
			Patterns: []string{"implement", "add support", "integrate"},
			Tiers: map[tier.Strategy]tier.Tier{
				tier.StrategyTwoTier:   tier.TierPrimary,
				tier.StrategyThreeTier: tier.Tier2,
			},
			Priority: 105,
		},
		{
			Name:     "documentation",
			Patterns: []string{"document", "write docs", "readme", "changelog"},
			Tiers: map[tier.Strategy]tier.Tier{
				tier.StrategyTwoTier:   tier.TierPrimary,
				tier.StrategyThreeTier: tier.Tier1,
			},
			Priority: 100,
		},
	}
}

// DefaultSimplePatterns returns the built-in "simple task" substrings used
// by the cost-optimization heuristic.
func DefaultSimplePatterns() []string {
	return []string{
		"typo",
		"rename",
		"formatting",
		"add a comment",
		"quick fix",
		"trivial",
		"simple",
	}
}
