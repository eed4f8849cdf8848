package healing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/autoloom/loom/internal/recipe"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	dir := t.TempDir()
	m, err := New(filepath.Join(dir, "healing_memory.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestFindMatch_NoEntries(t *testing.T) {
	m := newTestMemory(t)
	if got := m.FindMatch("lnk", "https://example.com/a", 0); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestRecordThenFindMatch(t *testing.T) {
	m := newTestMemory(t)
	action := recipe.ActionRef{Selector: "a[href='x']", Method: recipe.MethodClick}
	if err := m.Record("lnk", action, "https://example.com/a", Evidence{Method: "selector_fallback"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got := m.FindMatch("lnk", "https://example.com/a", 0)
	if got == nil {
		t.Fatal("expected a match")
	}
	if got.Selector != action.Selector {
		t.Fatalf("expected selector %q, got %q", action.Selector, got.Selector)
	}
}

func TestRecord_DuplicateIncrementsSuccessCount(t *testing.T) {
	m := newTestMemory(t)
	action := recipe.ActionRef{Selector: "#x", Method: recipe.MethodClick}
	for i := 0; i < 3; i++ {
		if err := m.Record("k", action, "https://example.com", Evidence{}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	entries := allEntries(m.db)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].SuccessCount != 3 {
		t.Fatalf("expected successCount=3, got %d", entries[0].SuccessCount)
	}
	if entries[0].Confidence != 1.0 {
		t.Fatalf("expected confidence=1.0, got %v", entries[0].Confidence)
	}
}

func TestConfidenceDrift_ScenarioFour(t *testing.T) {
	m := newTestMemory(t)
	action := recipe.ActionRef{Selector: "#x", Method: recipe.MethodClick}
	url := "https://example.com"

	if err := m.Record("k", action, url, Evidence{}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := m.RecordFailure("k", url); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	entries := allEntries(m.db)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.SuccessCount != 1 || e.FailCount != 3 {
		t.Fatalf("expected successCount=1 failCount=3, got %d/%d", e.SuccessCount, e.FailCount)
	}
	wantConfidence := 1.0 / 4.0
	if e.Confidence != wantConfidence {
		t.Fatalf("expected confidence=%v, got %v", wantConfidence, e.Confidence)
	}

	if got := m.FindMatch("k", url, 0.6); got != nil {
		t.Fatalf("expected no match at minConfidence=0.6, got %+v", got)
	}
	got := m.FindMatch("k", url, 0.2)
	if got == nil {
		t.Fatal("expected a match at minConfidence=0.2")
	}
	if got.Selector != action.Selector {
		t.Fatalf("expected selector %q, got %q", action.Selector, got.Selector)
	}
}

func TestFindMatch_MinConfidenceOneOnlyZeroFailures(t *testing.T) {
	m := newTestMemory(t)
	url := "https://example.com"
	clean := recipe.ActionRef{Selector: "#clean", Method: recipe.MethodClick}
	flaky := recipe.ActionRef{Selector: "#flaky", Method: recipe.MethodClick}

	if err := m.Record("k", flaky, url, Evidence{}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := m.RecordFailure("k", url); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if err := m.Record("k", clean, url, Evidence{}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got := m.FindMatch("k", url, 1.0)
	if got == nil {
		t.Fatal("expected a match")
	}
	if got.Selector != clean.Selector {
		t.Fatalf("expected the zero-failure entry %q, got %q", clean.Selector, got.Selector)
	}
}

func TestFindMatch_FallsBackToAnyDomain(t *testing.T) {
	m := newTestMemory(t)
	action := recipe.ActionRef{Selector: "#x", Method: recipe.MethodClick}
	if err := m.Record("k", action, "https://other.com/page", Evidence{}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got := m.FindMatch("k", "https://example.com/page", 0)
	if got == nil {
		t.Fatal("expected fallback to any-domain match")
	}
}

func TestRecordFailure_NoMatchingEntriesIsNoop(t *testing.T) {
	m := newTestMemory(t)
	if err := m.RecordFailure("missing", "https://example.com"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestPrune_ByMinConfidence(t *testing.T) {
	m := newTestMemory(t)
	url := "https://example.com"
	good := recipe.ActionRef{Selector: "#good", Method: recipe.MethodClick}
	bad := recipe.ActionRef{Selector: "#bad", Method: recipe.MethodClick}

	if err := m.Record("k1", good, url, Evidence{}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := m.Record("k2", bad, url, Evidence{}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := m.RecordFailure("k2", url); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if err := m.RecordFailure("k2", url); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if err := m.RecordFailure("k2", url); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	removed, err := m.Prune(PruneOptions{MinConfidence: 0.5})
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if len(allEntries(m.db)) != 1 {
		t.Fatalf("expected 1 entry remaining")
	}
}

func TestGetStats(t *testing.T) {
	m := newTestMemory(t)
	action := recipe.ActionRef{Selector: "#x", Method: recipe.MethodClick}
	if err := m.Record("k", action, "https://example.com", Evidence{}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	m.FindMatch("k", "https://example.com", 0)
	m.FindMatch("missing", "https://example.com", 0)

	stats := m.GetStats()
	if stats.TotalRecords != 1 {
		t.Fatalf("expected 1 record, got %d", stats.TotalRecords)
	}
	if stats.HitRate != 0.5 {
		t.Fatalf("expected hitRate=0.5, got %v", stats.HitRate)
	}
	if stats.DomainDistribution["example.com"] != 1 {
		t.Fatalf("expected domain distribution to count example.com once, got %+v", stats.DomainDistribution)
	}
}

func TestPersistence_LoadsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "healing_memory.json")

	m1, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	action := recipe.ActionRef{Selector: "#x", Method: recipe.MethodClick}
	if err := m1.Record("k", action, "https://example.com", Evidence{Method: "selector_fallback"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	m2, err := New(path)
	if err != nil {
		t.Fatalf("New (reload): %v", err)
	}
	got := m2.FindMatch("k", "https://example.com", 0)
	if got == nil {
		t.Fatal("expected match to survive reload")
	}
	if got.Selector != action.Selector {
		t.Fatalf("expected selector %q, got %q", action.Selector, got.Selector)
	}
}

func TestLoad_MigratesLegacyShape(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "healing_memory.json")

	legacy := []map[string]any{
		{
			"targetKey":    "k",
			"domain":       "example.com",
			"url":          "https://example.com",
			"action":       map[string]any{"selector": "#x", "method": "click"},
			"successCount": 4,
			"healedAt":     "2026-01-01T00:00:00Z",
		},
	}
	data, err := json.Marshal(legacy)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}

	m, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	entries := allEntries(m.db)
	if len(entries) != 1 {
		t.Fatalf("expected 1 migrated entry, got %d", len(entries))
	}
	e := entries[0]
	if e.SuccessCount != 4 || e.FailCount != 0 || e.Confidence != 1.0 {
		t.Fatalf("expected migrated shape successCount=4 failCount=0 confidence=1.0, got %+v", e)
	}
	if e.Evidence.Method != "migration" {
		t.Fatalf("expected evidence.method=migration, got %q", e.Evidence.Method)
	}
}

func TestRecord_FailedPersistLeavesInMemoryStateUnchanged(t *testing.T) {
	m := newTestMemory(t)
	action := recipe.ActionRef{Selector: "#x", Method: recipe.MethodClick}
	if err := m.Record("k", action, "https://example.com", Evidence{}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// Point path at an existing directory so saveEntries' rename-over-target
	// fails: subsequent mutations must not reach the in-memory index.
	blockDir := filepath.Join(filepath.Dir(m.path), "blocked")
	if err := os.Mkdir(blockDir, 0755); err != nil {
		t.Fatalf("os.Mkdir: %v", err)
	}
	m.path = blockDir

	if err := m.Record("k", action, "https://example.com", Evidence{}); err == nil {
		t.Fatal("expected Record to fail once persistence is broken")
	}

	entries := allEntries(m.db)
	if len(entries) != 1 || entries[0].SuccessCount != 1 {
		t.Fatalf("in-memory state should still reflect only the first successful Record, got %+v", entries)
	}
}

func TestPrune_FailedPersistLeavesInMemoryStateUnchanged(t *testing.T) {
	m := newTestMemory(t)
	action := recipe.ActionRef{Selector: "#x", Method: recipe.MethodClick}
	if err := m.Record("k", action, "https://example.com", Evidence{}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	blockDir := filepath.Join(filepath.Dir(m.path), "blocked")
	if err := os.Mkdir(blockDir, 0755); err != nil {
		t.Fatalf("os.Mkdir: %v", err)
	}
	m.path = blockDir

	if _, err := m.Prune(PruneOptions{MinConfidence: 0.9}); err == nil {
		t.Fatal("expected Prune to fail once persistence is broken")
	}

	entries := allEntries(m.db)
	if len(entries) != 1 {
		t.Fatalf("entry should survive a Prune whose persist failed, got %d entries", len(entries))
	}
}
