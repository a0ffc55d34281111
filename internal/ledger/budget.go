package ledger

import "fmt"

// Action is what a crossed threshold asks the caller to do.
type Action string

const (
	// ActionNotify surfaces an informational alert.
	ActionNotify Action = "notify"

	// ActionWarn surfaces a warning-level alert.
	ActionWarn Action = "warn"

	// ActionBlock marks high-cost tiers as blocked for the rest of the
	// period. Blocking is derived at read time and never stored.
	ActionBlock Action = "block"
)

// Threshold pairs a spend percentage with the action taken once monthly
// spend reaches it.
type Threshold struct {
	Percent float64 `json:"percent" yaml:"percent"`
	Action  Action  `json:"action" yaml:"action"`
}

// Budget is the monthly spend limit and its alert thresholds.
type Budget struct {
	// MonthlyLimit is the spend ceiling in dollars. Zero or negative
	// disables budget tracking.
	MonthlyLimit float64 `json:"monthly_limit" yaml:"monthly_limit"`

	Thresholds []Threshold `json:"thresholds" yaml:"thresholds"`
}

// DefaultBudget notifies at 50%, warns at 80%, and blocks at 100%.
func DefaultBudget(limit float64) Budget {
	return Budget{
		MonthlyLimit: limit,
		Thresholds: []Threshold{
			{Percent: 50, Action: ActionNotify},
			{Percent: 80, Action: ActionWarn},
			{Percent: 100, Action: ActionBlock},
		},
	}
}

// Validate rejects malformed thresholds.
func (b Budget) Validate() error {
	for _, th := range b.Thresholds {
		if th.Percent <= 0 {
			return fmt.Errorf("threshold percent must be positive, got %v", th.Percent)
		}
		switch th.Action {
		case ActionNotify, ActionWarn, ActionBlock:
		default:
			return fmt.Errorf("unknown threshold action %q", th.Action)
		}
	}
	return nil
}

// Enabled reports whether the budget has a usable limit.
func (b Budget) Enabled() bool {
	return b.MonthlyLimit > 0
}
