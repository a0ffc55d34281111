// Package ops is the in-process operation surface. Each exposed operation
// validates its input at the boundary, returning a structured result with
// OK=false for caller mistakes; Go errors are reserved for infrastructure
// failures such as storage.
package ops

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"github.com/modelmux/modelmux/internal/config"
	"github.com/modelmux/modelmux/internal/dispatch"
	"github.com/modelmux/modelmux/internal/ledger"
	"github.com/modelmux/modelmux/internal/provider"
	"github.com/modelmux/modelmux/internal/session"
	"github.com/modelmux/modelmux/internal/tier"
)

// Service exposes the routing operations.
type Service struct {
	dispatcher *dispatch.Dispatcher
	ledger     *ledger.Ledger
	memory     *session.Memory
	config     *config.Config
	providers  *provider.Registry
	logger     *slog.Logger
}

// Deps wires a service.
type Deps struct {
	Dispatcher *dispatch.Dispatcher
	Ledger     *ledger.Ledger
	Memory     *session.Memory
	Config     *config.Config
	Providers  *provider.Registry
	Logger     *slog.Logger
}

// NewService creates the operation surface.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		dispatcher: d.Dispatcher,
		ledger:     d.Ledger,
		memory:     d.Memory,
		config:     d.Config,
		providers:  d.Providers,
		logger:     d.Logger,
	}
}

// SwitchTierResult reports a manual tier switch.
type SwitchTierResult struct {
	OK       bool          `json:"ok"`
	Tier     tier.Tier     `json:"tier,omitempty"`
	Strategy tier.Strategy `json:"strategy"`
	Message  string        `json:"message"`
}

// SwitchTier pins routing to the named tier. An illegal tier is a
// structured failure; a failed outcome persist is a hard error.
func (s *Service) SwitchTier(ctx context.Context, name, reason string) (*SwitchTierResult, error) {
	state := s.dispatcher.State()
	t := tier.Tier(strings.TrimSpace(name))

	if err := s.dispatcher.SwitchTier(ctx, t, reason); err != nil {
		var invalid *tier.InvalidTierError
		if errors.As(err, &invalid) {
			return &SwitchTierResult{
				OK:       false,
				Strategy: state.Strategy,
				Message:  invalid.Error(),
			}, nil
		}
		return nil, err
	}
	return &SwitchTierResult{
		OK:       true,
		Tier:     t,
		Strategy: state.Strategy,
		Message:  fmt.Sprintf("routing pinned to %s", t),
	}, nil
}

// SetStrategyResult reports a strategy change.
type SetStrategyResult struct {
	OK       bool          `json:"ok"`
	Strategy tier.Strategy `json:"strategy,omitempty"`
	Tier     tier.Tier     `json:"tier,omitempty"`
	Message  string        `json:"message"`
}

// SetStrategy switches strategies and resets the tier to the new default.
func (s *Service) SetStrategy(name string) *SetStrategyResult {
	strategy := tier.Strategy(strings.TrimSpace(name))
	if err := s.dispatcher.SetStrategy(strategy); err != nil {
		return &SetStrategyResult{OK: false, Message: err.Error()}
	}
	state := s.dispatcher.State()
	return &SetStrategyResult{
		OK:       true,
		Strategy: state.Strategy,
		Tier:     state.Tier,
		Message:  fmt.Sprintf("strategy %s active, tier reset to %s", state.Strategy, state.Tier),
	}
}

// SetAutoModeResult reports an auto-mode toggle.
type SetAutoModeResult struct {
	OK       bool   `json:"ok"`
	AutoMode bool   `json:"auto_mode"`
	Message  string `json:"message"`
}

// SetAutoMode toggles automatic tier switching, optionally switching the
// strategy in the same call.
func (s *Service) SetAutoMode(on bool, strategy string) *SetAutoModeResult {
	if strategy = strings.TrimSpace(strategy); strategy != "" {
		if res := s.SetStrategy(strategy); !res.OK {
			return &SetAutoModeResult{OK: false, Message: res.Message}
		}
	}
	s.dispatcher.SetAutoMode(on)
	msg := "auto mode off, orchestrate recommends without switching"
	if on {
		msg = "auto mode on, tasks may switch the active tier"
	}
	return &SetAutoModeResult{OK: true, AutoMode: on, Message: msg}
}

// SetBudgetResult reports a budget change.
type SetBudgetResult struct {
	OK      bool          `json:"ok"`
	Budget  ledger.Budget `json:"budget,omitempty"`
	Message string        `json:"message"`
}

// SetBudget replaces the enforced monthly budget. The change is in-memory
// only; it applies immediately and lasts until the process exits. A
// non-zero alertPercent replaces the default warn threshold; blocking
// stays at 100%.
func (s *Service) SetBudget(limit, alertPercent float64) *SetBudgetResult {
	if limit < 0 {
		return &SetBudgetResult{OK: false, Message: "monthly limit must not be negative"}
	}
	if alertPercent < 0 || alertPercent > 100 {
		return &SetBudgetResult{OK: false, Message: "alert percent must be between 0 and 100"}
	}

	budget := ledger.DefaultBudget(limit)
	if alertPercent > 0 {
		budget.Thresholds = []ledger.Threshold{
			{Percent: alertPercent, Action: ledger.ActionWarn},
			{Percent: 100, Action: ledger.ActionBlock},
		}
	}
	if err := s.dispatcher.SetBudget(budget); err != nil {
		return &SetBudgetResult{OK: false, Message: err.Error()}
	}
	msg := fmt.Sprintf("monthly budget set to $%.2f", limit)
	if limit == 0 {
		msg = "budget tracking disabled"
	}
	return &SetBudgetResult{OK: true, Budget: budget, Message: msg}
}

// RecordUsageResult reports a journaled usage record.
type RecordUsageResult struct {
	OK      bool           `json:"ok"`
	Record  ledger.Record  `json:"record,omitempty"`
	Status  *ledger.Status `json:"status,omitempty"`
	Message string         `json:"message"`
}

// RecordUsage journals a completed call's cost against a tier and, when a
// task is named, feeds the outcome into session memory. The tier defaults
// to the active one and the model to the tier's configured backing model.
func (s *Service) RecordUsage(ctx context.Context, r ledger.Record, success bool) (*RecordUsageResult, error) {
	state := s.dispatcher.State()

	if r.Tier == "" {
		r.Tier = state.Tier
	}
	if !state.Strategy.Contains(r.Tier) {
		invalid := &tier.InvalidTierError{Tier: r.Tier, Strategy: state.Strategy}
		return &RecordUsageResult{OK: false, Message: invalid.Error()}, nil
	}
	if r.Cost < 0 {
		return &RecordUsageResult{OK: false, Message: "cost must not be negative"}, nil
	}
	if r.Model == "" && s.config != nil {
		if ref, err := s.config.ResolveModel(state.Strategy, r.Tier); err == nil {
			r.Model = ref.Model
		}
	}

	if err := s.dispatcher.RecordUsage(ctx, r); err != nil {
		return nil, err
	}
	if r.Task != "" {
		if err := s.dispatcher.ReportOutcome(ctx, r.Task, r.Tier, success, ""); err != nil {
			return nil, err
		}
	}

	res := &RecordUsageResult{
		OK:      true,
		Record:  r,
		Message: fmt.Sprintf("recorded $%.4f against %s", r.Cost, r.Tier),
	}
	if s.ledger != nil {
		status, err := s.ledger.CurrentStatus(ctx, s.dispatcher.Budget())
		if err != nil {
			return nil, err
		}
		res.Status = status
	}
	return res, nil
}

// RecordErrorResult reports a journaled backing-service failure.
type RecordErrorResult struct {
	OK      bool   `json:"ok"`
	Errors  int    `json:"errors"`
	Message string `json:"message"`
}

// RecordError feeds a backing-service failure into the escalation window.
// A named task is also journaled as a failed outcome.
func (s *Service) RecordError(ctx context.Context, task, note string) (*RecordErrorResult, error) {
	s.dispatcher.RecordError()

	if task = strings.TrimSpace(task); task != "" {
		state := s.dispatcher.State()
		if err := s.dispatcher.ReportOutcome(ctx, task, state.Tier, false, note); err != nil {
			return nil, err
		}
	}

	count := s.dispatcher.ErrorCount()
	return &RecordErrorResult{
		OK:      true,
		Errors:  count,
		Message: fmt.Sprintf("error recorded, %d in the current window", count),
	}, nil
}

// OrchestrateOptions adjusts one orchestrate call.
type OrchestrateOptions struct {
	Context   string
	ForceTier string

	// NoSwitch reports the decision without changing the sticky tier.
	NoSwitch bool
}

// OrchestrateResult reports where a task was routed.
type OrchestrateResult struct {
	OK            bool             `json:"ok"`
	Result        *dispatch.Result `json:"result,omitempty"`
	Model         config.ModelRef  `json:"model,omitempty"`
	Message       string           `json:"message"`
	BudgetLimited bool             `json:"budget_limited"`
}

// Orchestrate routes a task and resolves the backing model for the chosen
// tier.
func (s *Service) Orchestrate(ctx context.Context, task string, opts OrchestrateOptions) (*OrchestrateResult, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return &OrchestrateResult{OK: false, Message: "no task provided"}, nil
	}

	res, err := s.dispatcher.Orchestrate(ctx, task, dispatch.Options{
		Context:   opts.Context,
		ForceTier: tier.Tier(strings.TrimSpace(opts.ForceTier)),
		NoSwitch:  opts.NoSwitch,
	})
	if err != nil {
		var invalid *tier.InvalidTierError
		if errors.As(err, &invalid) {
			return &OrchestrateResult{OK: false, Message: invalid.Error()}, nil
		}
		return nil, err
	}

	model, err := s.config.ResolveModel(res.Strategy, res.Tier)
	if err != nil {
		return &OrchestrateResult{OK: false, Result: res, Message: err.Error()}, nil
	}

	msg := fmt.Sprintf("routed to %s (%s/%s): %s", res.Tier, model.Provider, model.Model, res.Reason)
	return &OrchestrateResult{
		OK:            true,
		Result:        res,
		Model:         model,
		Message:       msg,
		BudgetLimited: res.BudgetLimited,
	}, nil
}

// RunResult reports an end-to-end task execution.
type RunResult struct {
	OK       bool               `json:"ok"`
	Routing  *OrchestrateResult `json:"routing,omitempty"`
	Response *provider.Response `json:"response,omitempty"`
	Message  string             `json:"message"`
}

// Run routes a task, invokes the resolved backend, and feeds the outcome
// back into the ledger, session memory, and the escalation window.
func (s *Service) Run(ctx context.Context, task string, opts OrchestrateOptions) (*RunResult, error) {
	routing, err := s.Orchestrate(ctx, task, opts)
	if err != nil {
		return nil, err
	}
	if !routing.OK {
		return &RunResult{OK: false, Routing: routing, Message: routing.Message}, nil
	}

	backend, err := s.providers.Get(routing.Model.Provider)
	if err != nil {
		return &RunResult{OK: false, Routing: routing, Message: err.Error()}, nil
	}

	resp, callErr := backend.Complete(ctx, routing.Model.Model,
		[]provider.Message{{Role: provider.RoleUser, Content: task}}, provider.Params{})

	if callErr != nil {
		s.dispatcher.RecordError()
		if err := s.dispatcher.ReportOutcome(ctx, task, routing.Result.Tier, false, opts.Context); err != nil {
			s.logger.Warn("outcome not persisted", "error", err)
		}
		return &RunResult{
			OK:      false,
			Routing: routing,
			Message: fmt.Sprintf("backend call failed: %v", callErr),
		}, nil
	}

	if err := s.dispatcher.RecordUsage(ctx, ledger.Record{
		Tier:         routing.Result.Tier,
		Model:        resp.Model,
		Task:         task,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Cost:         resp.CostUSD,
	}); err != nil {
		return nil, err
	}
	if err := s.dispatcher.ReportOutcome(ctx, task, routing.Result.Tier, true, opts.Context); err != nil {
		return nil, err
	}

	return &RunResult{
		OK:       true,
		Routing:  routing,
		Response: resp,
		Message:  routing.Message,
	}, nil
}

// StatusReport aggregates routing state, budget status, and the session
// summary.
type StatusReport struct {
	State   dispatch.State  `json:"state"`
	Budget  ledger.Budget   `json:"budget"`
	Spend   *ledger.Status  `json:"spend,omitempty"`
	Session session.Summary `json:"session"`

	// History is the active session's journaled outcomes; Lifetime covers
	// the whole journal, surviving restarts. Both empty without a store.
	History  []session.Entry        `json:"history,omitempty"`
	Lifetime *session.LifetimeStats `json:"lifetime,omitempty"`
}

// GetStatus collects the current picture. Spend is omitted when no ledger
// is wired.
func (s *Service) GetStatus(ctx context.Context) (*StatusReport, error) {
	report := &StatusReport{
		State:  s.dispatcher.State(),
		Budget: s.dispatcher.Budget(),
	}
	if s.memory != nil {
		report.Session = s.memory.Summarize()
		history, err := s.memory.History(ctx)
		if err != nil {
			return nil, err
		}
		report.History = history
		lifetime, err := s.memory.Lifetime(ctx)
		if err != nil {
			return nil, err
		}
		report.Lifetime = lifetime
	}
	if s.ledger != nil {
		spend, err := s.ledger.CurrentStatus(ctx, report.Budget)
		if err != nil {
			return nil, err
		}
		report.Spend = spend
	}
	return report, nil
}

// Summary renders the report as one line.
func (r *StatusReport) Summary() string {
	line := fmt.Sprintf("strategy=%s tier=%s auto=%v", r.State.Strategy, r.State.Tier, r.State.AutoMode)
	if r.Spend != nil && r.Budget.Enabled() {
		line += fmt.Sprintf(" spend=$%.2f/$%.2f (%.0f%%)", r.Spend.Spent, r.Spend.Limit, r.Spend.Percent)
		if r.Spend.Blocked {
			line += " BLOCKED"
		}
	}
	return line
}

// Detailed renders the report as a multi-line block for the CLI.
func (r *StatusReport) Detailed() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Routing\n")
	fmt.Fprintf(&b, "  Strategy:  %s\n", r.State.Strategy)
	fmt.Fprintf(&b, "  Tier:      %s\n", r.State.Tier)
	fmt.Fprintf(&b, "  Auto Mode: %v\n", r.State.AutoMode)

	if r.Spend != nil {
		fmt.Fprintf(&b, "\nBudget\n")
		if r.Budget.Enabled() {
			fmt.Fprintf(&b, "  Spent:   $%.2f of $%.2f (%.1f%%)\n", r.Spend.Spent, r.Spend.Limit, r.Spend.Percent)
			fmt.Fprintf(&b, "  Blocked: %v\n", r.Spend.Blocked)
			for _, a := range r.Spend.Alerts {
				fmt.Fprintf(&b, "  Alert:   %.0f%% threshold crossed (%s)\n", a.Threshold.Percent, a.Threshold.Action)
			}
		} else {
			fmt.Fprintf(&b, "  Spent:   $%.2f (no limit set)\n", r.Spend.Spent)
		}
		if len(r.Spend.ByTier) > 0 {
			fmt.Fprintf(&b, "  By tier:\n")
			for t, cost := range r.Spend.ByTier {
				fmt.Fprintf(&b, "    %-10s $%.2f\n", t, cost)
			}
		}
	}

	fmt.Fprintf(&b, "\nSession %s\n", r.Session.SessionID)
	fmt.Fprintf(&b, "  Outcomes:     %d\n", r.Session.EntryCount)
	if r.Session.EntryCount > 0 {
		fmt.Fprintf(&b, "  Success rate: %.0f%%\n", r.Session.SuccessRate*100)
	}
	if r.Lifetime != nil {
		fmt.Fprintf(&b, "  Journal:      %d outcomes across %d sessions\n",
			r.Lifetime.Outcomes, r.Lifetime.Sessions)
	}
	if len(r.History) > 0 {
		fmt.Fprintf(&b, "  Recent:\n")
		start := len(r.History) - 5
		if start < 0 {
			start = 0
		}
		for _, e := range r.History[start:] {
			outcome := "ok"
			if !e.Success {
				outcome = "failed"
			}
			fmt.Fprintf(&b, "    %s  %-14s %-8s %s\n",
				e.Timestamp.Local().Format("15:04:05"), e.Pattern, e.Tier, outcome)
		}
	}

	return b.String()
}
