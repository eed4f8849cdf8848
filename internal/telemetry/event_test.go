package telemetry

import (
	"runtime"
	"testing"

	"github.com/autoloom/loom/internal/buildinfo"
)

func TestNewRunCompleteEvent(t *testing.T) {
	e := NewRunCompleteEvent("checkout", "v3", 5, "selector_fallback", 2, 1, true, 4200)

	if e.Action != "run_complete" {
		t.Errorf("Action = %q, want %q", e.Action, "run_complete")
	}
	if e.Domain != "checkout" {
		t.Errorf("Domain = %q, want %q", e.Domain, "checkout")
	}
	if e.RecipeVersion != "v3" {
		t.Errorf("RecipeVersion = %q, want %q", e.RecipeVersion, "v3")
	}
	if e.StepCount != 5 {
		t.Errorf("StepCount = %d, want %d", e.StepCount, 5)
	}
	if e.FallbackLevel != "selector_fallback" {
		t.Errorf("FallbackLevel = %q, want %q", e.FallbackLevel, "selector_fallback")
	}
	if e.LlmCallCount != 2 {
		t.Errorf("LlmCallCount = %d, want %d", e.LlmCallCount, 2)
	}
	if e.AuthoringCalls != 1 {
		t.Errorf("AuthoringCalls = %d, want %d", e.AuthoringCalls, 1)
	}
	if !e.PatchApplied {
		t.Error("expected PatchApplied=true")
	}
	if e.DurationMs != 4200 {
		t.Errorf("DurationMs = %d, want %d", e.DurationMs, 4200)
	}
	if e.OS != runtime.GOOS {
		t.Errorf("OS = %q, want %q", e.OS, runtime.GOOS)
	}
	if e.Arch != runtime.GOARCH {
		t.Errorf("Arch = %q, want %q", e.Arch, runtime.GOARCH)
	}
	if e.LoomVersion != buildinfo.Version() {
		t.Errorf("LoomVersion = %q, want %q", e.LoomVersion, buildinfo.Version())
	}
	if e.SchemaVersion != "1" {
		t.Errorf("SchemaVersion = %q, want %q", e.SchemaVersion, "1")
	}
}

func TestNewRunErrorEvent(t *testing.T) {
	e := NewRunErrorEvent("checkout", "v3", 5, "healing_memory", 3, 2, 9100)

	if e.Action != "run_error" {
		t.Errorf("Action = %q, want %q", e.Action, "run_error")
	}
	if e.FallbackLevel != "healing_memory" {
		t.Errorf("FallbackLevel = %q, want %q", e.FallbackLevel, "healing_memory")
	}
	if e.LlmCallCount != 3 {
		t.Errorf("LlmCallCount = %d, want %d", e.LlmCallCount, 3)
	}
	if e.AuthoringCalls != 2 {
		t.Errorf("AuthoringCalls = %d, want %d", e.AuthoringCalls, 2)
	}
	if e.PatchApplied {
		t.Error("expected PatchApplied=false by default")
	}
	if e.DurationMs != 9100 {
		t.Errorf("DurationMs = %d, want %d", e.DurationMs, 9100)
	}
}
