// Package dispatch holds the routing state machine. It owns the active
// strategy, tier, and auto mode, runs each task through the classification
// engine, and applies the budget gate before any high-cost tier is used.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"log/slog"

	"github.com/modelmux/modelmux/internal/ledger"
	"github.com/modelmux/modelmux/internal/policy"
	"github.com/modelmux/modelmux/internal/session"
	"github.com/modelmux/modelmux/internal/tier"
)

// State is the dispatcher's sticky routing state.
type State struct {
	Strategy tier.Strategy `json:"strategy"`
	Tier     tier.Tier     `json:"tier"`
	AutoMode bool          `json:"auto_mode"`
}

// Config wires the dispatcher's collaborators.
type Config struct {
	// Strategy is the starting strategy. Defaults to the two-tier strategy.
	Strategy tier.Strategy

	// AutoMode starts automatic tier switching on.
	AutoMode bool

	// Engine classifies tasks. Required.
	Engine *policy.Engine

	// Memory records task outcomes. Optional.
	Memory *session.Memory

	// Ledger tracks spend for the budget gate. Optional; without it the
	// gate never fires.
	Ledger *ledger.Ledger

	// Budget is the monthly budget the gate enforces.
	Budget ledger.Budget

	Logger *slog.Logger
}

// Options adjusts a single Orchestrate call.
type Options struct {
	// Context is an optional free-form note stored with the outcome.
	Context string

	// ForceTier routes this one task to a specific tier, skipping
	// classification. The budget gate still applies. Sticky state is not
	// changed.
	ForceTier tier.Tier

	// NoSwitch suppresses the automatic tier switch for this call even in
	// auto mode; the decision is reported without mutating state.
	NoSwitch bool
}

// Result describes where one task was routed and why.
type Result struct {
	Task          string        `json:"task"`
	Strategy      tier.Strategy `json:"strategy"`
	Tier          tier.Tier     `json:"tier"`
	Previous      tier.Tier     `json:"previous"`
	Switched      bool          `json:"switched"`
	Source        policy.Source `json:"source,omitempty"`
	Reason        string        `json:"reason"`
	BudgetLimited bool          `json:"budget_limited"`
}

// Dispatcher routes tasks to tiers.
type Dispatcher struct {
	mu sync.Mutex

	state  State
	engine *policy.Engine
	memory *session.Memory
	ledger *ledger.Ledger
	budget ledger.Budget
	logger *slog.Logger
}

// New creates a dispatcher in the configured strategy's default tier.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("dispatch: engine is required")
	}
	if cfg.Strategy == "" {
		cfg.Strategy = tier.StrategyTwoTier
	}
	if !cfg.Strategy.Valid() {
		return nil, fmt.Errorf("dispatch: unknown strategy %q", cfg.Strategy)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if err := cfg.Engine.SetStrategy(cfg.Strategy); err != nil {
		return nil, err
	}

	return &Dispatcher{
		state: State{
			Strategy: cfg.Strategy,
			Tier:     cfg.Strategy.Default(),
			AutoMode: cfg.AutoMode,
		},
		engine: cfg.Engine,
		memory: cfg.Memory,
		ledger: cfg.Ledger,
		budget: cfg.Budget,
		logger: cfg.Logger,
	}, nil
}

// State returns a copy of the current routing state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SwitchTier pins routing to a tier of the active strategy. An invalid
// tier leaves the state untouched. A successful switch is recorded into
// session memory as a successful outcome.
func (d *Dispatcher) SwitchTier(ctx context.Context, t tier.Tier, reason string) error {
	d.mu.Lock()
	if !d.state.Strategy.Contains(t) {
		d.mu.Unlock()
		return &tier.InvalidTierError{Tier: t, Strategy: d.state.Strategy}
	}
	prev := d.state.Tier
	d.state.Tier = t
	d.mu.Unlock()

	d.logger.Info("tier switched", "from", prev, "to", t, "reason", reason)
	return d.recordSwitch(ctx, reason, t)
}

func (d *Dispatcher) recordSwitch(ctx context.Context, task string, t tier.Tier) error {
	if d.memory == nil {
		return nil
	}
	if task == "" {
		task = "manual tier switch"
	}
	return d.memory.RecordOutcome(ctx, task, t, true, "tier switch")
}

// SetStrategy switches strategies and resets the tier to the new
// strategy's default. Tiers never carry across strategies.
func (d *Dispatcher) SetStrategy(s tier.Strategy) error {
	if !s.Valid() {
		return fmt.Errorf("unknown strategy %q", s)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.engine.SetStrategy(s); err != nil {
		return err
	}
	d.state.Strategy = s
	d.state.Tier = s.Default()
	d.logger.Info("strategy switched", "strategy", s, "tier", d.state.Tier)
	return nil
}

// SetAutoMode toggles automatic tier switching.
func (d *Dispatcher) SetAutoMode(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.AutoMode = on
}

// SetBudget replaces the in-memory budget the gate enforces.
func (d *Dispatcher) SetBudget(b ledger.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.budget = b
	return nil
}

// Budget returns the budget currently enforced.
func (d *Dispatcher) Budget() ledger.Budget {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.budget
}

// RecordError feeds a backing-service failure into the escalation window.
func (d *Dispatcher) RecordError() {
	d.engine.RecordError()
}

// ErrorCount returns the errors currently inside the escalation window.
func (d *Dispatcher) ErrorCount() int {
	return d.engine.ErrorCount()
}

// RecordUsage journals a completed call's cost.
func (d *Dispatcher) RecordUsage(ctx context.Context, r ledger.Record) error {
	if d.ledger == nil {
		return nil
	}
	return d.ledger.Record(ctx, r)
}

// ReportOutcome stores how a routed task went so session memory can learn
// from it.
func (d *Dispatcher) ReportOutcome(ctx context.Context, task string, used tier.Tier, success bool, note string) error {
	if d.memory == nil {
		return nil
	}
	return d.memory.RecordOutcome(ctx, task, used, success, note)
}

// Orchestrate routes a task. Classification picks a candidate tier, the
// budget gate can force it back down, and in auto mode the winning tier
// becomes the new sticky tier.
func (d *Dispatcher) Orchestrate(ctx context.Context, task string, opts Options) (*Result, error) {
	d.mu.Lock()
	strategy := d.state.Strategy
	current := d.state.Tier
	autoMode := d.state.AutoMode
	budget := d.budget
	d.mu.Unlock()

	result := &Result{
		Task:     task,
		Strategy: strategy,
		Previous: current,
		Tier:     current,
		Reason:   "no routing signal, keeping current tier",
	}

	forced := opts.ForceTier != ""
	if forced {
		if !strategy.Contains(opts.ForceTier) {
			return nil, &tier.InvalidTierError{Tier: opts.ForceTier, Strategy: strategy}
		}
		result.Tier = opts.ForceTier
		result.Reason = fmt.Sprintf("tier %s forced by caller", opts.ForceTier)
	} else if decision := d.engine.Classify(task, current); decision != nil {
		result.Tier = decision.Tier
		result.Source = decision.Source
		result.Reason = decision.Reason
	}

	if err := d.applyBudgetGate(ctx, strategy, budget, result); err != nil {
		return nil, err
	}

	if !forced && result.Tier != current && autoMode && !opts.NoSwitch {
		d.mu.Lock()
		// Only commit if nothing raced us since the snapshot.
		if d.state.Strategy == strategy && d.state.Tier == current {
			d.state.Tier = result.Tier
			result.Switched = true
		}
		d.mu.Unlock()
	}

	if result.Switched {
		if err := d.recordSwitch(ctx, task, result.Tier); err != nil {
			return nil, err
		}
	}

	d.logger.Info("task routed",
		"tier", result.Tier,
		"previous", result.Previous,
		"switched", result.Switched,
		"source", result.Source,
		"budget_limited", result.BudgetLimited)

	return result, nil
}

// applyBudgetGate downgrades a high-cost pick to the strategy default when
// the period's spend has crossed a blocking threshold.
func (d *Dispatcher) applyBudgetGate(ctx context.Context, strategy tier.Strategy, budget ledger.Budget, result *Result) error {
	if d.ledger == nil || !budget.Enabled() || !strategy.HighCost(result.Tier) {
		return nil
	}

	status, err := d.ledger.CurrentStatus(ctx, budget)
	if err != nil {
		return err
	}
	if !status.Blocked {
		return nil
	}

	blocked := result.Tier
	result.Tier = strategy.Default()
	result.BudgetLimited = true
	result.Reason = fmt.Sprintf("budget exhausted ($%.2f of $%.2f), %s blocked, falling back to %s",
		status.Spent, status.Limit, blocked, result.Tier)

	d.logger.Warn("budget gate engaged",
		"spent", status.Spent,
		"limit", status.Limit,
		"blocked_tier", blocked,
		"fallback", result.Tier)
	return nil
}
