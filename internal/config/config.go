// Package config loads planmd settings from a TOML file.
//
// Every field is optional. Pointer fields distinguish "absent" from an explicit
// zero value; the GetX accessors return the default when a field is absent.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/steveyegge/planmd/internal/hooks"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "planmd.toml"

// EnvModel overrides the configured model when set.
const EnvModel = "PLANMD_MODEL"

const (
	defaultProvider    = "openai"
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.2
	defaultMaxTokens   = 4000
	defaultTimeout     = 2 * time.Minute
)

// Config configures plan generation.
type Config struct {
	// Provider selects the text-generation backend. Only "openai" (and
	// OpenAI-compatible endpoints via BaseURL) is supported.
	Provider string `toml:"provider"`

	// Model is the model identifier passed to the provider.
	Model string `toml:"model"`

	// BaseURL points at an OpenAI-compatible endpoint. Empty uses the provider default.
	BaseURL string `toml:"base_url"`

	// Temperature is the sampling temperature. Plans want near-deterministic
	// output, so the default is low (0.2).
	Temperature *float64 `toml:"temperature"`

	// MaxTokens caps the generated output. Default 4000. Explicit 0 is rejected.
	MaxTokens *int `toml:"max_tokens"`

	// PromptsFile is a YAML prompt set replacing the built-in prompts.
	PromptsFile string `toml:"prompts_file"`

	// Timeout bounds one generation call, as a Go duration. Default "2m".
	Timeout string `toml:"timeout"`

	// Hooks maps an event name ("pre-write", "post-write", "post-generate")
	// to the hooks run for it, in order:
	//
	//	[[hooks.pre-write]]
	//	type = "builtin"
	//	builtin = "validate"
	Hooks map[string][]hooks.HookConfig `toml:"hooks"`
}

// Default returns a Config with every field set to its default.
func Default() *Config {
	temperature := defaultTemperature
	maxTokens := defaultMaxTokens
	return &Config{
		Provider:    defaultProvider,
		Model:       defaultModel,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		Timeout:     defaultTimeout.String(),
	}
}

// Load reads the config at path. A missing file is an error; use
// LoadOrDefault for the implicit default file.
// Unknown keys are an error so that typos do not silently fall back.
func Load(path string) (*Config, error) {
	cfg := Default()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		cfg.applyEnv()
		return cfg, nil
	}
	return cfg, err
}

func (c *Config) applyEnv() {
	if model := os.Getenv(EnvModel); model != "" {
		c.Model = model
	}
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.Provider != "" && c.Provider != defaultProvider {
		return fmt.Errorf("unsupported provider %q (must be %q)", c.Provider, defaultProvider)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", *c.Temperature)
	}
	if c.MaxTokens != nil && *c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", *c.MaxTokens)
	}
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			return fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
		}
	}
	for event, hs := range c.Hooks {
		if !hooks.ValidEvent(event) {
			return fmt.Errorf("unknown hook event %q", event)
		}
		for i, h := range hs {
			if err := h.Validate(); err != nil {
				return fmt.Errorf("hooks.%s[%d]: %w", event, i, err)
			}
		}
	}
	return nil
}

// HookMap returns the configured hooks keyed by event.
func (c *Config) HookMap() map[hooks.EventType][]hooks.HookConfig {
	m := make(map[hooks.EventType][]hooks.HookConfig)
	if c == nil {
		return m
	}
	for event, hs := range c.Hooks {
		m[hooks.EventType(event)] = hs
	}
	return m
}

// GetModel returns Model or the default if unset.
func (c *Config) GetModel() string {
	if c == nil || c.Model == "" {
		return defaultModel
	}
	return c.Model
}

// GetTemperature returns Temperature or the default (0.2) if unset.
func (c *Config) GetTemperature() float64 {
	if c == nil || c.Temperature == nil {
		return defaultTemperature
	}
	return *c.Temperature
}

// GetMaxTokens returns MaxTokens or the default (4000) if unset.
func (c *Config) GetMaxTokens() int {
	if c == nil || c.MaxTokens == nil {
		return defaultMaxTokens
	}
	return *c.MaxTokens
}

// GetTimeout returns Timeout as a duration, defaulting to 2m.
func (c *Config) GetTimeout() time.Duration {
	if c == nil {
		return defaultTimeout
	}
	return ParseDurationOrDefault(c.Timeout, defaultTimeout)
}

// ParseDurationOrDefault parses a Go duration string, returning fallback on error or empty input.
func ParseDurationOrDefault(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
