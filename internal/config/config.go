// Package config loads and validates the routing configuration. Settings
// come from a YAML file with sensible defaults for everything, so an empty
// file (or none at all) yields a working setup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/modelmux/modelmux/internal/ledger"
	"github.com/modelmux/modelmux/internal/policy"
	"github.com/modelmux/modelmux/internal/tier"
)

// ModelRef names a concrete backing model for a tier.
type ModelRef struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
}

// RuleConfig is a keyword rule as written in the config file.
type RuleConfig struct {
	Name     string                      `json:"name" yaml:"name"`
	Patterns []string                    `json:"patterns" yaml:"patterns"`
	Priority int                         `json:"priority" yaml:"priority"`
	Tiers    map[tier.Strategy]tier.Tier `json:"tiers" yaml:"tiers"`
}

// EscalationConfig mirrors policy escalation settings in file form.
type EscalationConfig struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Window    Duration `json:"window" yaml:"window"`
	Threshold int      `json:"threshold" yaml:"threshold"`
}

// StorageConfig holds the SQLite paths. Empty paths mean in-memory.
type StorageConfig struct {
	LedgerPath  string `json:"ledger_path" yaml:"ledger_path"`
	SessionPath string `json:"session_path" yaml:"session_path"`
}

// Config is the full routing configuration.
type Config struct {
	// Strategy selects the tier ladder.
	Strategy tier.Strategy `json:"strategy" yaml:"strategy"`

	// AutoMode starts with automatic tier switching on.
	AutoMode bool `json:"auto_mode" yaml:"auto_mode"`

	// Models maps each strategy's tiers to backing models.
	Models map[tier.Strategy]map[tier.Tier]ModelRef `json:"models" yaml:"models"`

	// Rules override the built-in keyword rules when non-empty.
	Rules []RuleConfig `json:"rules,omitempty" yaml:"rules,omitempty"`

	Escalation EscalationConfig `json:"escalation" yaml:"escalation"`

	// CostOptimization enables the simple-task downgrade heuristic.
	CostOptimization bool     `json:"cost_optimization" yaml:"cost_optimization"`
	SimplePatterns   []string `json:"simple_patterns,omitempty" yaml:"simple_patterns,omitempty"`

	Budget ledger.Budget `json:"budget" yaml:"budget"`

	Storage StorageConfig `json:"storage" yaml:"storage"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// Default returns the stock configuration: two-tier strategy, auto mode,
// Anthropic models, default rules, a disabled budget, and file-backed
// stores under the user config directory.
func Default() *Config {
	return &Config{
		Strategy: tier.StrategyTwoTier,
		AutoMode: true,
		Models: map[tier.Strategy]map[tier.Tier]ModelRef{
			tier.StrategyTwoTier: {
				tier.TierPrimary:  {Provider: "anthropic", Model: "claude-3-5-haiku-latest"},
				tier.TierCritical: {Provider: "anthropic", Model: "claude-opus-4-1"},
			},
			tier.StrategyThreeTier: {
				tier.Tier1: {Provider: "anthropic", Model: "claude-3-5-haiku-latest"},
				tier.Tier2: {Provider: "anthropic", Model: "claude-sonnet-4-5"},
				tier.Tier3: {Provider: "anthropic", Model: "claude-opus-4-1"},
			},
		},
		Escalation: EscalationConfig{
			Enabled:   true,
			Window:    Duration(10 * time.Minute),
			Threshold: 3,
		},
		CostOptimization: true,
		Budget:           ledger.Budget{},
		Storage: StorageConfig{
			LedgerPath:  filepath.Join(DefaultDataDir(), "ledger.db"),
			SessionPath: filepath.Join(DefaultDataDir(), "session.db"),
		},
		LogLevel: "info",
	}
}

// DefaultDataDir is where the databases live when the config does not name
// explicit paths. It sits next to the default config file.
func DefaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "modelmux"
	}
	return filepath.Join(dir, "modelmux")
}

// Load reads the YAML config at path and merges it over the defaults. A
// missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultPath is the config location under the user's config directory.
func DefaultPath() string {
	if env := os.Getenv("MODELMUX_CONFIG"); env != "" {
		return env
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "modelmux.yaml"
	}
	return filepath.Join(dir, "modelmux", "config.yaml")
}

// Validate rejects configurations the dispatcher cannot run with.
func (c *Config) Validate() error {
	if !c.Strategy.Valid() {
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}

	for strategy, models := range c.Models {
		if !strategy.Valid() {
			return fmt.Errorf("models: unknown strategy %q", strategy)
		}
		for t := range models {
			if !strategy.Contains(t) {
				return fmt.Errorf("models: tier %q does not belong to strategy %q", t, strategy)
			}
		}
	}

	for _, r := range c.Rules {
		if r.Name == "" {
			return fmt.Errorf("rules: rule with empty name")
		}
		if len(r.Patterns) == 0 {
			return fmt.Errorf("rules: rule %q has no patterns", r.Name)
		}
		if r.Priority <= 0 || r.Priority >= policy.PriorityEscalation {
			return fmt.Errorf("rules: rule %q priority must be between 1 and %d, error escalation always outranks keyword rules",
				r.Name, policy.PriorityEscalation-1)
		}
		for strategy, t := range r.Tiers {
			if !strategy.Valid() {
				return fmt.Errorf("rules: rule %q maps unknown strategy %q", r.Name, strategy)
			}
			if !strategy.Contains(t) {
				return fmt.Errorf("rules: rule %q maps tier %q outside strategy %q", r.Name, t, strategy)
			}
		}
	}

	if c.Escalation.Enabled {
		if c.Escalation.Window <= 0 {
			return fmt.Errorf("escalation: window must be positive")
		}
		if c.Escalation.Threshold <= 0 {
			return fmt.Errorf("escalation: threshold must be positive")
		}
	}

	if err := c.Budget.Validate(); err != nil {
		return fmt.Errorf("budget: %w", err)
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	return nil
}

// UnknownModelError reports a (strategy, tier) pair with no configured model.
type UnknownModelError struct {
	Strategy tier.Strategy
	Tier     tier.Tier
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("no model configured for tier %q in strategy %q", e.Tier, e.Strategy)
}

// ResolveModel returns the backing model for a tier of a strategy.
func (c *Config) ResolveModel(s tier.Strategy, t tier.Tier) (ModelRef, error) {
	models, ok := c.Models[s]
	if !ok {
		return ModelRef{}, &UnknownModelError{Strategy: s, Tier: t}
	}
	ref, ok := models[t]
	if !ok {
		return ModelRef{}, &UnknownModelError{Strategy: s, Tier: t}
	}
	return ref, nil
}

// PolicyRules converts the file-form rules to engine rules. With no rules
// configured the engine's built-in table is used.
func (c *Config) PolicyRules() []policy.KeywordRule {
	if len(c.Rules) == 0 {
		return nil
	}
	rules := make([]policy.KeywordRule, 0, len(c.Rules))
	for _, r := range c.Rules {
		rules = append(rules, policy.KeywordRule{
			Name:     r.Name,
			Patterns: r.Patterns,
			Priority: r.Priority,
			Tiers:    r.Tiers,
		})
	}
	return rules
}

// PolicyEscalation converts the escalation settings to engine form.
func (c *Config) PolicyEscalation() *policy.EscalationConfig {
	return &policy.EscalationConfig{
		Enabled:   c.Escalation.Enabled,
		Window:    c.Escalation.Window.Std(),
		Threshold: c.Escalation.Threshold,
	}
}
