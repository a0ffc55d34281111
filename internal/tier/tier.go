// Package tier defines the routing strategies and the cost/quality tiers
// that belong to them.
package tier

import "fmt"

// Strategy identifies the fixed set of tiers in use and their ordering.
type Strategy string

const (
	// StrategyTwoTier routes between a cheap primary tier and a critical tier.
	StrategyTwoTier Strategy = "2-tier"

	// StrategyThreeTier routes across three escalating tiers.
	StrategyThreeTier Strategy = "3-tier"
)

// Tier is a named cost/quality routing target. A tier is only meaningful
// relative to its strategy.
type Tier string

const (
	TierPrimary  Tier = "primary"
	TierCritical Tier = "critical"

	Tier1 Tier = "tier1"
	Tier2 Tier = "tier2"
	Tier3 Tier = "tier3"
)

// AllStrategies returns the known strategies.
func AllStrategies() []Strategy {
	return []Strategy{StrategyTwoTier, StrategyThreeTier}
}

// Valid returns true if the strategy is a known value.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyTwoTier, StrategyThreeTier:
		return true
	default:
		return false
	}
}

// Tiers returns the strategy's tiers ordered from lowest cost to highest.
func (s Strategy) Tiers() []Tier {
	switch s {
	case StrategyTwoTier:
		return []Tier{TierPrimary, TierCritical}
	case StrategyThreeTier:
		return []Tier{Tier1, Tier2, Tier3}
	default:
		return nil
	}
}

// Default returns the strategy's lowest-cost tier.
func (s Strategy) Default() Tier {
	tiers := s.Tiers()
	if len(tiers) == 0 {
		return ""
	}
	return tiers[0]
}

// Ceiling returns the strategy's highest-cost tier.
func (s Strategy) Ceiling() Tier {
	tiers := s.Tiers()
	if len(tiers) == 0 {
		return ""
	}
	return tiers[len(tiers)-1]
}

// Contains reports whether t is a legal tier for the strategy.
func (s Strategy) Contains(t Tier) bool {
	for _, candidate := range s.Tiers() {
		if candidate == t {
			return true
		}
	}
	return false
}

// Above returns the tier one step above t in the strategy's linear order.
// It returns false when t is the ceiling tier or not part of the strategy:
// escalation never proposes a tier beyond the ceiling.
func (s Strategy) Above(t Tier) (Tier, bool) {
	tiers := s.Tiers()
	for i, candidate := range tiers {
		if candidate == t {
			if i+1 < len(tiers) {
				return tiers[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// HighCost reports whether t is one of the strategy's high-cost tiers,
// i.e. any tier above the default. These are the tiers budget blocking
// applies to.
func (s Strategy) HighCost(t Tier) bool {
	return s.Contains(t) && t != s.Default()
}

// InvalidTierError reports a tier that is not legal for the active strategy.
type InvalidTierError struct {
	Tier     Tier
	Strategy Strategy
}

func (e *InvalidTierError) Error() string {
	return fmt.Sprintf("tier %q is not valid for strategy %q (valid: %v)",
		e.Tier, e.Strategy, e.Strategy.Tiers())
}
