package engineconf

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wingside/loyalty-engine/pkg/leadscore"
	"github.com/wingside/loyalty-engine/pkg/tier"
)

// Duration wraps time.Duration so YAML values can use the usual
// "24h" / "15m" notation.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration back in Go notation.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the engine tuning snapshot: scoring weights, tier
// thresholds, decay cadence and site-wide toggles. It is loaded once
// at startup and passed around as an immutable value; there is no
// ambient mutable settings state.
type Config struct {
	Scoring ScoringConfig `yaml:"scoring"`
	Tier    TierConfig    `yaml:"tier"`
	Decay   DecayConfig   `yaml:"decay"`
	Cache   CacheConfig   `yaml:"cache"`
	Toggles Toggles       `yaml:"toggles"`
}

// ScoringConfig overrides the lead scoring weights.
type ScoringConfig struct {
	Weights leadscore.Weights `yaml:"weights"`
}

// TierConfig overrides the tier boundaries and inactivity window.
type TierConfig struct {
	WingLeaderMin  int `yaml:"wing_leader_min"`
	WingzardMin    int `yaml:"wingzard_min"`
	InactivityDays int `yaml:"inactivity_days"`
}

// DecayConfig controls the decay batch.
type DecayConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Interval Duration `yaml:"interval"`
	DryRun   bool     `yaml:"dry_run"`
}

// CacheConfig controls the lead score cache.
type CacheConfig struct {
	ScoreTTL Duration `yaml:"score_ttl"`
}

// Toggles are site-wide switches mirrored from the storefront admin.
type Toggles struct {
	AcceptScoring bool `yaml:"accept_scoring"`
}

// Default returns the production configuration: spec weights and
// thresholds, daily live decay, 15 minute score cache.
func Default() *Config {
	return &Config{
		Scoring: ScoringConfig{Weights: leadscore.DefaultWeights()},
		Tier: TierConfig{
			WingLeaderMin:  5001,
			WingzardMin:    20001,
			InactivityDays: 180,
		},
		Decay: DecayConfig{
			Enabled:  true,
			Interval: Duration(24 * time.Hour),
			DryRun:   false,
		},
		Cache:   CacheConfig{ScoreTTL: Duration(15 * time.Minute)},
		Toggles: Toggles{AcceptScoring: true},
	}
}

// Thresholds converts the tier section into the engine's parameter
// form, using the fixed 30-day month approximation for the window.
func (t TierConfig) Thresholds() tier.Thresholds {
	return tier.Thresholds{
		WingLeaderMin:    t.WingLeaderMin,
		WingzardMin:      t.WingzardMin,
		InactivityWindow: time.Duration(t.InactivityDays) * 24 * time.Hour,
	}
}

// Load loads engine configuration from a YAML file, applied on top of
// the defaults. Supports environment variable expansion in the form
// ${VAR_NAME} or ${VAR_NAME:default}. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks the configuration for values the engines cannot
// work with.
func (c *Config) Validate() error {
	if c.Tier.WingLeaderMin <= 0 {
		return fmt.Errorf("tier.wing_leader_min must be positive, got %d", c.Tier.WingLeaderMin)
	}
	if c.Tier.WingzardMin <= c.Tier.WingLeaderMin {
		return fmt.Errorf("tier.wingzard_min (%d) must exceed tier.wing_leader_min (%d)",
			c.Tier.WingzardMin, c.Tier.WingLeaderMin)
	}
	if c.Tier.InactivityDays <= 0 {
		return fmt.Errorf("tier.inactivity_days must be positive, got %d", c.Tier.InactivityDays)
	}
	if c.Decay.Interval <= 0 {
		return fmt.Errorf("decay.interval must be positive, got %v", c.Decay.Interval)
	}

	w := c.Scoring.Weights
	if w.EngagementPerActivity < 0 || w.EngagementCap < 0 {
		return fmt.Errorf("engagement weights must be non-negative")
	}
	if w.QualityHotMin <= w.QualityWarmMin || w.QualityWarmMin <= w.QualityColdMin {
		return fmt.Errorf("quality cutoffs must be strictly decreasing: hot %d, warm %d, cold %d",
			w.QualityHotMin, w.QualityWarmMin, w.QualityColdMin)
	}
	for i := 1; i < len(w.ValueTiers); i++ {
		if w.ValueTiers[i].Min >= w.ValueTiers[i-1].Min {
			return fmt.Errorf("value_tiers must be ordered highest minimum first")
		}
	}

	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or
// ${VAR:default}.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		parts := strings.SplitN(key, ":", 2)
		varName := parts[0]
		defaultValue := ""
		if len(parts) == 2 {
			defaultValue = parts[1]
		}

		value := os.Getenv(varName)
		if value == "" {
			return defaultValue
		}
		return value
	})
}
