package main

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/autoloom/loom/internal/recipe"
	"github.com/autoloom/loom/internal/testutil"
)

func TestRecipeExportImportRoundTrip(t *testing.T) {
	cfg, cleanup := testutil.NewTestConfig(t)
	defer cleanup()

	r := *testutil.NewTestRecipe("example.com", "checkout")
	w := recipe.DirWriter{RecipesRoot: cfg.RecipesDir}
	if err := w.Save(r); err != nil {
		t.Fatalf("saving recipe: %v", err)
	}

	var buf bytes.Buffer
	loaded, err := recipe.Load(cfg.RecipesDir, r.Domain, r.Flow, r.Version)
	if err != nil {
		t.Fatalf("loading recipe: %v", err)
	}
	if err := recipe.Export(&buf, loaded); err != nil {
		t.Fatalf("exporting recipe: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	imported, err := recipe.Import(zr, r.Domain, r.Flow, r.Version)
	if err != nil {
		t.Fatalf("importing recipe: %v", err)
	}
	if imported.Domain != r.Domain || imported.Flow != r.Flow || imported.Version != r.Version {
		t.Errorf("round-tripped recipe identity mismatch: got %s/%s/%s", imported.Domain, imported.Flow, imported.Version)
	}
	if len(imported.Workflow.Steps) != len(r.Workflow.Steps) {
		t.Errorf("round-tripped step count = %d, want %d", len(imported.Workflow.Steps), len(r.Workflow.Steps))
	}
}

func TestOpenHealingMemoryUsesConfigDir(t *testing.T) {
	cfg, cleanup := testutil.NewTestConfig(t)
	defer cleanup()
	t.Setenv("LOOM_HOME", cfg.HomeDir)

	mem, err := openHealingMemory()
	if err != nil {
		t.Fatalf("openHealingMemory: %v", err)
	}
	stats := mem.GetStats()
	if stats.TotalRecords != 0 {
		t.Errorf("fresh healing memory TotalRecords = %d, want 0", stats.TotalRecords)
	}
	if !testutil.FileExists(cfg.HomeDir) {
		t.Errorf("expected home dir %s to exist", cfg.HomeDir)
	}
}
