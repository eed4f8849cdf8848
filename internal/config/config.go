// Package config resolves environment-variable overrides and directory
// layout for a loom installation, with validated ranges and sane defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// EnvLoomHome is the environment variable to override the default loom home directory.
	EnvLoomHome = "LOOM_HOME"

	// EnvAuthoringTimeout is the environment variable to configure the
	// PatchPlanner request timeout (backs TokenBudget.authoringServiceTimeoutMs
	// when the CLI invocation doesn't override it).
	EnvAuthoringTimeout = "LOOM_AUTHORING_TIMEOUT"

	// EnvHealingPruneMaxAge is the environment variable to configure the
	// default maxAgeDays passed to HealingMemory.Prune.
	EnvHealingPruneMaxAge = "LOOM_HEALING_PRUNE_MAX_AGE"

	// EnvRunTimeout is the environment variable read by GetRunTimeout for a
	// whole-run timeout. `loom run` does not read it; its timeout comes from
	// options.timeout.
	EnvRunTimeout = "LOOM_RUN_TIMEOUT"

	// DefaultAuthoringTimeout is the default PatchPlanner request timeout (30 seconds).
	DefaultAuthoringTimeout = 30 * time.Second

	// DefaultHealingPruneMaxAge is the default healing memory entry max age (90 days).
	DefaultHealingPruneMaxAge = 90 * 24 * time.Hour

	// DefaultRunTimeout is the default whole-run timeout (10 minutes).
	DefaultRunTimeout = 10 * time.Minute
)

// GetAuthoringTimeout returns the configured PatchPlanner timeout from
// LOOM_AUTHORING_TIMEOUT. If not set or invalid, returns
// DefaultAuthoringTimeout. Accepts duration strings like "30s", "1m".
func GetAuthoringTimeout() time.Duration {
	envValue := os.Getenv(EnvAuthoringTimeout)
	if envValue == "" {
		return DefaultAuthoringTimeout
	}

	duration, err := time.ParseDuration(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %v\n",
			EnvAuthoringTimeout, envValue, DefaultAuthoringTimeout)
		return DefaultAuthoringTimeout
	}

	if duration < 1*time.Second {
		fmt.Fprintf(os.Stderr, "Warning: %s too low (%v), using minimum 1s\n",
			EnvAuthoringTimeout, duration)
		return 1 * time.Second
	}
	if duration > 5*time.Minute {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%v), using maximum 5m\n",
			EnvAuthoringTimeout, duration)
		return 5 * time.Minute
	}

	return duration
}

// GetRunTimeout returns the configured whole-run timeout from
// LOOM_RUN_TIMEOUT. If not set or invalid, returns DefaultRunTimeout.
func GetRunTimeout() time.Duration {
	envValue := os.Getenv(EnvRunTimeout)
	if envValue == "" {
		return DefaultRunTimeout
	}

	duration, err := time.ParseDuration(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %v\n",
			EnvRunTimeout, envValue, DefaultRunTimeout)
		return DefaultRunTimeout
	}

	if duration < 10*time.Second {
		fmt.Fprintf(os.Stderr, "Warning: %s too low (%v), using minimum 10s\n",
			EnvRunTimeout, duration)
		return 10 * time.Second
	}
	if duration > 2*time.Hour {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%v), using maximum 2h\n",
			EnvRunTimeout, duration)
		return 2 * time.Hour
	}

	return duration
}

// GetHealingPruneMaxAge returns the configured default max age for healing
// memory pruning from LOOM_HEALING_PRUNE_MAX_AGE (accepts "Nd" for days, or
// any Go duration string). If not set or invalid, returns
// DefaultHealingPruneMaxAge.
func GetHealingPruneMaxAge() time.Duration {
	envValue := os.Getenv(EnvHealingPruneMaxAge)
	if envValue == "" {
		return DefaultHealingPruneMaxAge
	}

	if len(envValue) > 1 && (envValue[len(envValue)-1] == 'd' || envValue[len(envValue)-1] == 'D') {
		daysStr := envValue[:len(envValue)-1]
		if days, err := strconv.ParseFloat(daysStr, 64); err == nil {
			return time.Duration(days * 24 * float64(time.Hour))
		}
	}

	duration, err := time.ParseDuration(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %v\n",
			EnvHealingPruneMaxAge, envValue, DefaultHealingPruneMaxAge)
		return DefaultHealingPruneMaxAge
	}
	return duration
}

// DefaultHomeOverride can be set by the binary's main package to change the
// default home directory (e.g. dev builds defaulting to .loom-dev instead of
// ~/.loom). LOOM_HOME still takes precedence.
var DefaultHomeOverride string

// Config holds the on-disk layout for a loom installation.
type Config struct {
	HomeDir       string // $LOOM_HOME
	RecipesDir    string // $LOOM_HOME/recipes, holds <domain>/<flow>/<vNNN>/
	RunsDir       string // $LOOM_HOME/runs, one subdirectory per run
	HealingMemoryFile string // $LOOM_HOME/healing_memory.json
	KeyCacheDir   string // $LOOM_HOME/cache/keys (PGP public keys for patch verification)
	ConfigFile    string // $LOOM_HOME/config.toml
}

// DefaultConfig returns the default configuration, resolving LOOM_HOME (or
// DefaultHomeOverride, or ~/.loom) as the root.
func DefaultConfig() (*Config, error) {
	loomHome := os.Getenv(EnvLoomHome)
	if loomHome == "" {
		if DefaultHomeOverride != "" {
			loomHome = DefaultHomeOverride
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get user home directory: %w", err)
			}
			loomHome = filepath.Join(home, ".loom")
		}
	}

	return &Config{
		HomeDir:           loomHome,
		RecipesDir:        filepath.Join(loomHome, "recipes"),
		RunsDir:           filepath.Join(loomHome, "runs"),
		HealingMemoryFile: filepath.Join(loomHome, "healing_memory.json"),
		KeyCacheDir:       filepath.Join(loomHome, "cache", "keys"),
		ConfigFile:        filepath.Join(loomHome, "config.toml"),
	}, nil
}

// EnsureDirectories creates all necessary directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.HomeDir,
		c.RecipesDir,
		c.RunsDir,
		c.KeyCacheDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// RecipeDir returns the versioned directory for a recipe, e.g.
// $LOOM_HOME/recipes/<domain>/<flow>/<version>.
func (c *Config) RecipeDir(domain, flow, version string) string {
	return filepath.Join(c.RecipesDir, domain, flow, version)
}

// RunDir returns the directory a run's logs/screenshots/summary are
// written under, $LOOM_HOME/runs/<runId>.
func (c *Config) RunDir(runID string) string {
	return filepath.Join(c.RunsDir, runID)
}

// ParseByteSize parses a human-readable byte size string into bytes.
// Accepts formats: plain numbers (52428800), KB/K (50K, 50KB), MB/M
// (50M, 50MB), GB/G (1G, 1GB). Case-insensitive.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	s = strings.ToUpper(s)

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}

	var numStr string
	var suffix string
	for i, c := range s {
		if c >= '0' && c <= '9' || c == '.' {
			numStr += string(c)
		} else {
			suffix = s[i:]
			break
		}
	}

	if numStr == "" {
		return 0, fmt.Errorf("invalid size format: %q", s)
	}

	num, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size number: %q", numStr)
	}

	var multiplier float64
	switch suffix {
	case "", "B":
		multiplier = 1
	case "K", "KB":
		multiplier = 1024
	case "M", "MB":
		multiplier = 1024 * 1024
	case "G", "GB":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("invalid size suffix: %q", suffix)
	}

	return int64(num * multiplier), nil
}
