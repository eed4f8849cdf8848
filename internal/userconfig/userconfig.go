// Package userconfig provides user configuration management for loom.
// Configuration is stored in $LOOM_HOME/config.toml and can be modified
// via the `loom config` command.
package userconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/autoloom/loom/internal/config"
	"github.com/autoloom/loom/internal/log"
)

// Config represents user-configurable settings.
type Config struct {
	// Telemetry enables or disables anonymous usage statistics.
	// Default is true (enabled).
	Telemetry bool `toml:"telemetry"`

	// LLM contains LLM provider and budget configuration, backing the
	// default TokenBudget a run starts with when the CLI invocation
	// doesn't override it.
	LLM LLMConfig `toml:"llm"`

	// Secrets stores API keys and tokens in the [secrets] section.
	// Values are resolved through the secrets package, which checks
	// environment variables first and falls through to this map.
	Secrets map[string]string `toml:"secrets,omitempty"`
}

// LLMConfig holds LLM provider selection and run-budget defaults.
type LLMConfig struct {
	// Enabled enables or disables LLM-backed recovery (observe_refresh,
	// the built-in PatchPlanner). Default is true (enabled).
	Enabled *bool `toml:"enabled,omitempty"`

	// Providers specifies the preferred provider order for the Factory.
	// The first provider in the list becomes primary.
	// Empty means auto-detect from environment variables.
	Providers []string `toml:"providers,omitempty"`

	// DailyBudget is the maximum daily LLM cost in USD across all runs
	// in this process's lifetime. Default is $5. Set to 0 to disable.
	DailyBudget *float64 `toml:"daily_budget,omitempty"`

	// MaxLlmCallsPerRun is the default TokenBudget.maxLlmCallsPerRun
	// applied to a run unless the CLI invocation overrides it.
	MaxLlmCallsPerRun *int `toml:"max_llm_calls_per_run,omitempty"`

	// MaxAuthoringCallsPerRun is the default
	// TokenBudget.maxAuthoringServiceCallsPerRun.
	MaxAuthoringCallsPerRun *int `toml:"max_authoring_calls_per_run,omitempty"`
}

const (
	// DefaultDailyBudget is the default daily LLM cost limit in USD.
	DefaultDailyBudget = 5.0

	// DefaultMaxLlmCallsPerRun is the default TokenBudget.maxLlmCallsPerRun.
	DefaultMaxLlmCallsPerRun = 10

	// DefaultMaxAuthoringCallsPerRun is the default
	// TokenBudget.maxAuthoringServiceCallsPerRun.
	DefaultMaxAuthoringCallsPerRun = 3
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Telemetry: true, // Enabled by default
	}
}

// Load reads the config file and returns the configuration.
// Returns default values if the file doesn't exist.
// Returns an error only for file parsing issues, not missing files.
func Load() (*Config, error) {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return DefaultConfig(), nil // Silently use defaults
	}

	return loadFromPath(cfg.ConfigFile)
}

// loadFromPath reads config from a specific file path (for testing).
func loadFromPath(path string) (*Config, error) {
	userCfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return userCfg, nil // File doesn't exist, use defaults
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Check permissions: warn if group/other have any access.
	if info, err := os.Stat(path); err == nil {
		mode := info.Mode().Perm()
		if mode&0077 != 0 {
			log.Default().Warn("config file has permissive permissions",
				"path", path,
				"mode", fmt.Sprintf("%04o", mode),
				"expected", "0600",
			)
		}
	}

	if _, err := toml.Decode(string(data), userCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return userCfg, nil
}

// Save writes the configuration to the config file.
func (c *Config) Save() error {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	return c.saveToPath(cfg.ConfigFile)
}

// saveToPath writes config to a specific file path using atomic writes with 0600 permissions.
// It writes to a temporary file first and renames it to the target path, preventing
// mid-write corruption and ensuring the file always has correct permissions from creation.
func (c *Config) saveToPath(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config.toml.tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath) // Cleanup on error; no-op after successful rename.

	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to set temp file permissions: %w", err)
	}

	encoder := toml.NewEncoder(tmpFile)
	if err := encoder.Encode(c); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// LLMEnabled returns whether LLM-backed recovery is enabled.
// Returns true if not explicitly set (default behavior).
func (c *Config) LLMEnabled() bool {
	if c.LLM.Enabled == nil {
		return true
	}
	return *c.LLM.Enabled
}

// LLMProviders returns the configured provider order.
// Returns nil if not set (use auto-detection).
func (c *Config) LLMProviders() []string {
	return c.LLM.Providers
}

// LLMDailyBudget returns the daily LLM cost limit in USD.
// Returns DefaultDailyBudget if not explicitly set.
func (c *Config) LLMDailyBudget() float64 {
	if c.LLM.DailyBudget == nil {
		return DefaultDailyBudget
	}
	return *c.LLM.DailyBudget
}

// MaxLlmCallsPerRun returns the default TokenBudget.maxLlmCallsPerRun.
func (c *Config) MaxLlmCallsPerRun() int {
	if c.LLM.MaxLlmCallsPerRun == nil {
		return DefaultMaxLlmCallsPerRun
	}
	return *c.LLM.MaxLlmCallsPerRun
}

// MaxAuthoringCallsPerRun returns the default
// TokenBudget.maxAuthoringServiceCallsPerRun.
func (c *Config) MaxAuthoringCallsPerRun() int {
	if c.LLM.MaxAuthoringCallsPerRun == nil {
		return DefaultMaxAuthoringCallsPerRun
	}
	return *c.LLM.MaxAuthoringCallsPerRun
}

// Get returns the value of a config key as a string.
// Returns empty string and false if the key doesn't exist.
// Keys with the "secrets." prefix are resolved from the Secrets map.
func (c *Config) Get(key string) (string, bool) {
	lowerKey := strings.ToLower(key)

	if secretName, ok := strings.CutPrefix(lowerKey, "secrets."); ok {
		if c.Secrets != nil {
			if val, found := c.Secrets[secretName]; found && val != "" {
				return val, true
			}
		}
		return "", false
	}

	switch lowerKey {
	case "telemetry":
		return strconv.FormatBool(c.Telemetry), true
	case "llm.enabled":
		return strconv.FormatBool(c.LLMEnabled()), true
	case "llm.providers":
		if len(c.LLM.Providers) == 0 {
			return "", true
		}
		return strings.Join(c.LLM.Providers, ","), true
	case "llm.daily_budget":
		return strconv.FormatFloat(c.LLMDailyBudget(), 'g', -1, 64), true
	case "llm.max_llm_calls_per_run":
		return strconv.Itoa(c.MaxLlmCallsPerRun()), true
	case "llm.max_authoring_calls_per_run":
		return strconv.Itoa(c.MaxAuthoringCallsPerRun()), true
	default:
		return "", false
	}
}

// Set updates a config value from a string.
// Returns an error if the key doesn't exist or the value is invalid.
// Keys with the "secrets." prefix are stored in the Secrets map.
func (c *Config) Set(key, value string) error {
	lowerKey := strings.ToLower(key)

	if secretName, ok := strings.CutPrefix(lowerKey, "secrets."); ok {
		if c.Secrets == nil {
			c.Secrets = make(map[string]string)
		}
		c.Secrets[secretName] = value
		return nil
	}

	switch lowerKey {
	case "telemetry":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for telemetry: must be true or false")
		}
		c.Telemetry = b
		return nil
	case "llm.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for llm.enabled: must be true or false")
		}
		c.LLM.Enabled = &b
		return nil
	case "llm.providers":
		if value == "" {
			c.LLM.Providers = nil
			return nil
		}
		providers := strings.Split(value, ",")
		for i, p := range providers {
			providers[i] = strings.TrimSpace(p)
		}
		c.LLM.Providers = providers
		return nil
	case "llm.daily_budget":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for llm.daily_budget: must be a number")
		}
		if f < 0 {
			return fmt.Errorf("invalid value for llm.daily_budget: must be non-negative")
		}
		c.LLM.DailyBudget = &f
		return nil
	case "llm.max_llm_calls_per_run":
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for llm.max_llm_calls_per_run: must be an integer")
		}
		if i < 0 {
			return fmt.Errorf("invalid value for llm.max_llm_calls_per_run: must be non-negative")
		}
		c.LLM.MaxLlmCallsPerRun = &i
		return nil
	case "llm.max_authoring_calls_per_run":
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for llm.max_authoring_calls_per_run: must be an integer")
		}
		if i < 0 {
			return fmt.Errorf("invalid value for llm.max_authoring_calls_per_run: must be non-negative")
		}
		c.LLM.MaxAuthoringCallsPerRun = &i
		return nil
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}

// AvailableKeys returns a list of all configurable keys with descriptions.
func AvailableKeys() map[string]string {
	return map[string]string{
		"telemetry":                      "Enable anonymous usage statistics (true/false)",
		"llm.enabled":                    "Enable LLM-backed recovery (observe_refresh, built-in PatchPlanner) (true/false)",
		"llm.providers":                  "Preferred LLM provider order (comma-separated, e.g., claude,gemini)",
		"llm.daily_budget":               "Daily LLM cost limit in USD (default: 5.0, 0 to disable)",
		"llm.max_llm_calls_per_run":      "Default TokenBudget.maxLlmCallsPerRun (default: 10)",
		"llm.max_authoring_calls_per_run": "Default TokenBudget.maxAuthoringServiceCallsPerRun (default: 3)",
	}
}
