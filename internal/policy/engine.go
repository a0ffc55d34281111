// Package policy implements the rule-based tier classifier: keyword rules,
// error escalation, the cost-optimization heuristic, and the session-memory
// fallback, reduced to a single decision by priority.
package policy

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelmux/modelmux/internal/tier"
)

// Source identifies which evaluator produced a decision.
type Source string

const (
	SourceKeywordRule     Source = "keyword_rule"
	SourceErrorEscalation Source = "error_escalation"
	SourceCostHeuristic   Source = "cost_optimization"
	SourceSessionMemory   Source = "session_memory"
)

// Fixed priorities for the non-rule evaluators. Keyword rules use
// priorities of 100 and up, so the ordering is:
// cost heuristic < memory < keyword rules < error escalation.
const (
	PriorityCostHeuristic = 10
	PriorityMemory        = 20
	PriorityEscalation    = 1000
)

// Decision is a classified tier target with its provenance.
type Decision struct {
	Tier     tier.Tier `json:"tier"`
	Priority int       `json:"priority"`
	Source   Source    `json:"source"`
	Rule     string    `json:"rule,omitempty"`
	Reason   string    `json:"reason"`
}

// Recommender supplies a learned tier recommendation for a task. Satisfied
// by session.Memory.
type Recommender interface {
	Recommend(task string) (tier.Tier, bool)
}

// EscalationConfig configures the error-escalation evaluator.
type EscalationConfig struct {
	// Enabled turns escalation on.
	Enabled bool

	// Window is how long an error counts toward escalation.
	Window time.Duration

	// Threshold is the error count that triggers escalation.
	Threshold int
}

// DefaultEscalationConfig returns the default escalation parameters.
func DefaultEscalationConfig() EscalationConfig {
	return EscalationConfig{
		Enabled:   true,
		Window:    10 * time.Minute,
		Threshold: 3,
	}
}

// Config configures a classification engine.
type Config struct {
	// Strategy is the active routing strategy.
	Strategy tier.Strategy

	// Rules is the keyword rule table. Defaults to DefaultRules.
	Rules []KeywordRule

	// Escalation parameters. Nil means DefaultEscalationConfig; an explicit
	// Enabled=false stays disabled.
	Escalation *EscalationConfig

	// SimplePatterns are the cost-optimization substrings. Defaults to
	// DefaultSimplePatterns. Set CostOptimization to false to disable.
	SimplePatterns   []string
	CostOptimization bool

	// Memory is the optional session-memory fallback.
	Memory Recommender

	// Logger for decisions.
	Logger *slog.Logger
}

// Engine classifies tasks into tier decisions. Each evaluator contributes
// zero or one weighted candidate; the highest priority wins.
type Engine struct {
	mu sync.RWMutex

	strategy       tier.Strategy
	rules          []KeywordRule
	escalation     EscalationConfig
	errors         *ErrorWindow
	simplePatterns []string
	costEnabled    bool
	memory         Recommender
	logger         *slog.Logger
}

// NewEngine creates a classification engine.
func NewEngine(cfg Config) *Engine {
	if !cfg.Strategy.Valid() {
		cfg.Strategy = tier.StrategyTwoTier
	}
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules()
	}
	var escalation EscalationConfig
	if cfg.Escalation == nil {
		escalation = DefaultEscalationConfig()
	} else {
		escalation = *cfg.Escalation
		def := DefaultEscalationConfig()
		if escalation.Window <= 0 {
			escalation.Window = def.Window
		}
		if escalation.Threshold <= 0 {
			escalation.Threshold = def.Threshold
		}
	}
	if cfg.SimplePatterns == nil {
		cfg.SimplePatterns = DefaultSimplePatterns()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{
		strategy:       cfg.Strategy,
		rules:          cfg.Rules,
		escalation:     escalation,
		errors:         NewErrorWindow(escalation.Window),
		simplePatterns: cfg.SimplePatterns,
		costEnabled:    cfg.CostOptimization,
		memory:         cfg.Memory,
		logger:         cfg.Logger,
	}
}

// Strategy returns the active strategy.
func (e *Engine) Strategy() tier.Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.strategy
}

// SetStrategy switches the active strategy. Rules keep their per-strategy
// mappings; the error window is reset since the tier ladder changed.
func (e *Engine) SetStrategy(s tier.Strategy) error {
	if !s.Valid() {
		return fmt.Errorf("unknown strategy %q", s)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategy = s
	e.errors.Reset()
	return nil
}

// RecordError feeds a provider failure into the escalation window.
func (e *Engine) RecordError() {
	e.errors.Record()
	e.logger.Debug("provider error recorded", "window_count", e.errors.Count())
}

// ErrorCount returns the current in-window error count.
func (e *Engine) ErrorCount() int {
	return e.errors.Count()
}

// Classify evaluates a task against the rule chain and returns the winning
// decision, or nil when nothing matched (caller keeps the current tier).
func (e *Engine) Classify(task string, current tier.Tier) *Decision {
	e.mu.RLock()
	defer e.mu.RUnlock()

	taskLower := strings.ToLower(task)
	var matches []Decision

	// 1. Keyword rules: each rule contributes at most one match, from the
	// first pattern that hits.
	for _, rule := range e.rules {
		target, ok := rule.Tiers[e.strategy]
		if !ok || !e.strategy.Contains(target) {
			continue
		}
		for _, pattern := range rule.Patterns {
			if strings.Contains(taskLower, pattern) {
				matches = append(matches, Decision{
					Tier:     target,
					Priority: rule.Priority,
					Source:   SourceKeywordRule,
					Rule:     rule.Name,
					Reason:   fmt.Sprintf("keyword rule %q matched %q", rule.Name, pattern),
				})
				break
			}
		}
	}

	// 2. Error escalation: outranks every keyword rule, never goes past
	// the strategy's ceiling tier.
	if e.escalation.Enabled {
		if count := e.errors.Count(); count >= e.escalation.Threshold {
			if above, ok := e.strategy.Above(current); ok {
				matches = append(matches, Decision{
					Tier:     above,
					Priority: PriorityEscalation,
					Source:   SourceErrorEscalation,
					Reason:   fmt.Sprintf("error escalation: %d errors within %s", count, e.escalation.Window),
				})
			}
		}
	}

	explicit := len(matches)

	// 3. Cost-optimization heuristic: a fallback, only consulted when no
	// explicit signal matched.
	if explicit == 0 && e.costEnabled {
		for _, pattern := range e.simplePatterns {
			if strings.Contains(taskLower, pattern) {
				matches = append(matches, Decision{
					Tier:     e.strategy.Default(),
					Priority: PriorityCostHeuristic,
					Source:   SourceCostHeuristic,
					Reason:   fmt.Sprintf("simple task pattern %q, using lowest-cost tier", pattern),
				})
				break
			}
		}
	}

	// 4. Session-memory fallback: beats the cost heuristic, loses to any
	// explicit rule or escalation signal.
	if explicit == 0 && e.memory != nil {
		if recommended, ok := e.memory.Recommend(task); ok && e.strategy.Contains(recommended) {
			matches = append(matches, Decision{
				Tier:     recommended,
				Priority: PriorityMemory,
				Source:   SourceSessionMemory,
				Reason:   "session memory: tier succeeded on similar tasks this session",
			})
		}
	}

	if len(matches) == 0 {
		return nil
	}

	// Max-by-priority reduction; earlier contribution wins ties so the
	// outcome is deterministic regardless of rule table ordering tweaks.
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Priority > best.Priority {
			best = m
		}
	}

	e.logger.Debug("task classified",
		"tier", best.Tier,
		"source", best.Source,
		"rule", best.Rule,
		"priority", best.Priority)

	return &best
}
