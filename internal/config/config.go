// Package config handles purchase-saga project configuration loading
// and validation.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lonestarx1/purchasesaga/pkg/budget"
)

// validProviders is the set of supported LLM provider names for the
// optional llmbacked capability variants.
var validProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"gemini":    true,
}

// ProjectConfig is the top-level saga.yaml structure.
type ProjectConfig struct {
	// Version is the config schema version. Must be "1".
	Version string `yaml:"version"`
	// Provider selects the LLM backend for every enabled LLM path
	// ("openai", "anthropic", or "gemini"). Ignored if no feature flag
	// enables an LLM path.
	Provider string `yaml:"provider"`
	// Model is the LLM model identifier used by every enabled LLM path.
	Model string `yaml:"model"`
	// Run holds the saga orchestrator's execution parameters.
	Run RunConfig `yaml:"run"`
}

// RunConfig holds the saga orchestrator's execution parameters — the
// external configuration table from the specification's interfaces
// section.
type RunConfig struct {
	// TokenBudgets maps stage name (S1..S5) to its estimated and capped
	// token allowance. Empty means budget.DefaultBudgets().
	TokenBudgets map[string]budget.Budget `yaml:"token_budgets"`
	// TokenPolicy controls how the Token Budgeter resolves an
	// over-budget call: warn, truncate, fallback, or block.
	TokenPolicy budget.Policy `yaml:"token_policy"`
	// StageTimeouts overrides the default per-stage wall-clock caps.
	// Keys are stage names (S1..S5).
	StageTimeouts map[string]Duration `yaml:"stage_timeouts"`
	// CompensationTopK bounds how many alternative offers S4's
	// Compensation Controller will try. 0 means the component default.
	CompensationTopK int `yaml:"compensation_top_k"`
	// CompensationPriceWindowPct bounds how much costlier a safer
	// alternative may be and still qualify for a switch. 0 means the
	// component default.
	CompensationPriceWindowPct float64 `yaml:"compensation_price_window_pct"`
	// CompensationExtraLatencyMs caps the wall-clock time the
	// compensation search may add. 0 means the component default.
	CompensationExtraLatencyMs int64 `yaml:"compensation_extra_latency_ms"`
	// CheckoutMaxAmount overrides the default 5000 USD admission
	// ceiling when positive.
	CheckoutMaxAmount float64 `yaml:"checkout_max_amount"`
	// VendorBlacklist names vendors S5 rejects outright.
	VendorBlacklist []string `yaml:"vendor_blacklist"`
	// MarketplaceDomainPrefix is the URL prefix every legitimate offer
	// is expected to carry, used by S4's domain cross-check. Empty
	// disables the check.
	MarketplaceDomainPrefix string `yaml:"marketplace_domain_prefix"`
	// Flags gates the optional LLM-backed capability paths.
	Flags FeatureFlags `yaml:"flags"`
}

// FeatureFlags mirrors saga.FeatureFlags in YAML-addressable form.
type FeatureFlags struct {
	LLMIntent   bool `yaml:"llm_intent"`
	LLMSourcing bool `yaml:"llm_sourcing"`
	LLMTrust    bool `yaml:"llm_trust"`
	LLMRefineS1 bool `yaml:"llm_refine_s1"`
}

// Duration wraps time.Duration with YAML string unmarshaling support.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "30s" or "5m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.Duration.String(), nil
}

// Load reads a saga.yaml file, performs environment variable
// substitution, parses the YAML, and validates the result.
func Load(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	substituted := Substitute(string(data))

	var cfg ProjectConfig
	if err := yaml.Unmarshal([]byte(substituted), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configuration is well-formed.
func (c *ProjectConfig) Validate() error {
	if c.Version != "1" {
		return fmt.Errorf("config: unsupported version %q (expected \"1\")", c.Version)
	}
	anyLLM := c.Run.Flags.LLMIntent || c.Run.Flags.LLMSourcing || c.Run.Flags.LLMTrust || c.Run.Flags.LLMRefineS1
	if anyLLM {
		if c.Model == "" {
			return fmt.Errorf("config: model is required when any llm_* flag is enabled")
		}
		if c.Provider == "" {
			return fmt.Errorf("config: provider is required when any llm_* flag is enabled")
		}
		if !validProviders[c.Provider] {
			return fmt.Errorf("config: unsupported provider %q (valid: openai, anthropic, gemini)", c.Provider)
		}
	}
	for stage, b := range c.Run.TokenBudgets {
		if b.Cap <= 0 {
			return fmt.Errorf("config: token_budgets[%s]: cap must be positive", stage)
		}
		if b.Est > b.Cap {
			return fmt.Errorf("config: token_budgets[%s]: est (%d) exceeds cap (%d)", stage, b.Est, b.Cap)
		}
	}
	switch c.Run.TokenPolicy {
	case "", budget.PolicyWarn, budget.PolicyTruncate, budget.PolicyFallback, budget.PolicyBlock:
	default:
		return fmt.Errorf("config: unsupported token_policy %q", c.Run.TokenPolicy)
	}
	return nil
}

// StageTimeoutsMap converts the YAML Duration map to the plain
// time.Duration map the saga orchestrator expects.
func (c *ProjectConfig) StageTimeoutsMap() map[string]time.Duration {
	if len(c.Run.StageTimeouts) == 0 {
		return nil
	}
	out := make(map[string]time.Duration, len(c.Run.StageTimeouts))
	for stage, d := range c.Run.StageTimeouts {
		out[stage] = d.Duration
	}
	return out
}
