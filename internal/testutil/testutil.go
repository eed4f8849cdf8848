package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/autoloom/loom/internal/config"
	"github.com/autoloom/loom/internal/recipe"
)

// TempDir creates a temporary directory and returns a cleanup function
func TempDir(t *testing.T) (string, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "loom-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	return dir, func() { os.RemoveAll(dir) }
}

// NewTestConfig creates a config with temporary directories for testing.
func NewTestConfig(t *testing.T) (*config.Config, func()) {
	t.Helper()
	tmpDir, cleanup := TempDir(t)

	cfg := &config.Config{
		HomeDir:           tmpDir,
		RecipesDir:        filepath.Join(tmpDir, "recipes"),
		RunsDir:           filepath.Join(tmpDir, "runs"),
		HealingMemoryFile: filepath.Join(tmpDir, "healing_memory.json"),
		KeyCacheDir:       filepath.Join(tmpDir, "cache", "keys"),
		ConfigFile:        filepath.Join(tmpDir, "config.toml"),
	}

	if err := cfg.EnsureDirectories(); err != nil {
		cleanup()
		t.Fatalf("failed to create test directories: %v", err)
	}

	return cfg, cleanup
}

// NewTestRecipe creates a minimal single-step recipe with common defaults,
// suitable as a starting point for tests that exercise the runner or
// recipe loader.
func NewTestRecipe(domain, flow string) *recipe.Recipe {
	return &recipe.Recipe{
		Domain:  domain,
		Flow:    flow,
		Version: "v001",
		Workflow: recipe.Workflow{
			ID:      flow,
			Version: "v001",
			Steps: []recipe.Step{
				{
					ID:        "nav",
					Op:        recipe.OpGoto,
					TargetKey: "start_url",
					Expect: []recipe.Expectation{
						{Kind: recipe.ExpectURLContains, Value: "/"},
					},
					OnFail: recipe.OnFailRetry,
				},
			},
		},
		Actions: map[string]recipe.ActionEntry{
			"start_url": {
				Instruction: "open the starting page",
				Preferred: recipe.ActionRef{
					Method: recipe.MethodClick,
				},
			},
		},
		Selectors:    map[string]recipe.SelectorEntry{},
		Fingerprints: []recipe.Fingerprint{},
		Policies:     map[string]recipe.Policy{},
	}
}

// NewTestPatch builds a minimal single-op patch payload, classified as
// minor by construction (a single actions.replace op).
func NewTestPatch(key string, ref recipe.ActionRef, reason string) recipe.PatchPayload {
	return recipe.PatchPayload{
		Patch: []recipe.Op{
			{Kind: recipe.PatchActionsReplace, Key: key, Value: ref},
		},
		Reason: reason,
	}
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// AssertFileExists checks if a file exists at the given path
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if !FileExists(path) {
		t.Errorf("file does not exist: %s", path)
	}
}

// AssertFileNotExists checks if a file does NOT exist at the given path
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if FileExists(path) {
		t.Errorf("file should not exist: %s", path)
	}
}
