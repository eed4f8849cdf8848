package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/autoloom/loom/internal/recipe"
	"github.com/autoloom/loom/internal/testutil"
)

func TestPatchApplyCmdMinorPatch(t *testing.T) {
	cfg, cleanup := testutil.NewTestConfig(t)
	defer cleanup()
	t.Setenv("LOOM_HOME", cfg.HomeDir)

	r := *testutil.NewTestRecipe("example.com", "checkout")
	w := recipe.DirWriter{RecipesRoot: cfg.RecipesDir}
	if err := w.Save(r); err != nil {
		t.Fatalf("saving recipe: %v", err)
	}

	payload := testutil.NewTestPatch("start_url", recipe.ActionRef{
		Method:   recipe.MethodClick,
		Selector: "#start-v2",
	}, "selector drifted")
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	patchFile := filepath.Join(t.TempDir(), "patch.json")
	if err := os.WriteFile(patchFile, data, 0o644); err != nil {
		t.Fatalf("writing patch file: %v", err)
	}

	patchApplyCmd.SetArgs(nil)
	patchSignatureFile = ""
	patchKeyName = ""
	globalCtx = t.Context()

	if err := patchApplyCmd.RunE(patchApplyCmd, []string{r.Domain, r.Flow, r.Version, patchFile}); err != nil {
		t.Fatalf("patch apply: %v", err)
	}

	next, err := recipe.Load(cfg.RecipesDir, r.Domain, r.Flow, "v2")
	if err != nil {
		t.Fatalf("loading patched version: %v", err)
	}
	if next.Actions["start_url"].Preferred.Selector != "#start-v2" {
		t.Errorf("patched action selector = %q, want #start-v2", next.Actions["start_url"].Preferred.Selector)
	}

	if _, err := recipe.Load(cfg.RecipesDir, r.Domain, r.Flow, r.Version); err != nil {
		t.Errorf("original version should still load: %v", err)
	}
}
