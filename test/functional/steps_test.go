package functional

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

type stepSpec struct {
	id     string
	onFail string
}

func aRecipeWithSteps(ctx context.Context, domain, flow, version string, count int) (context.Context, error) {
	state := getState(ctx)
	if state == nil {
		return ctx, fmt.Errorf("no test state; is the Before hook running?")
	}

	steps := make([]map[string]any, 0, count)
	actions := map[string]any{}
	for i := 1; i <= count; i++ {
		id := fmt.Sprintf("step%d", i)
		key := fmt.Sprintf("target%d", i)
		steps = append(steps, map[string]any{
			"id":        id,
			"op":        "act_cached",
			"targetKey": key,
			"onFail":    "retry",
			"expect": []map[string]any{
				{"kind": "selector_visible", "value": "#done"},
			},
		})
		actions[key] = map[string]any{
			"instruction": "interact with " + key,
			"preferred": map[string]any{
				"selector": "#" + key,
				"method":   "click",
			},
			"observedAt": "2026-01-01T00:00:00Z",
		}
	}

	state.recipeInput = map[string]any{
		"domain":  domain,
		"flow":    flow,
		"version": version,
		"workflow": map[string]any{
			"id":      flow,
			"version": version,
			"steps":   steps,
		},
		"actions":      actions,
		"selectors":    map[string]any{},
		"fingerprints": []any{},
		"policies":     map[string]any{},
	}

	return ctx, nil
}

func theStepHasOnFail(ctx context.Context, stepID, onFail string) (context.Context, error) {
	state := getState(ctx)
	if state == nil || state.recipeInput == nil {
		return ctx, fmt.Errorf("no recipe built yet")
	}
	workflow := state.recipeInput["workflow"].(map[string]any)
	steps := workflow["steps"].([]map[string]any)
	for _, s := range steps {
		if s["id"] == stepID {
			s["onFail"] = onFail
		}
	}
	return ctx, nil
}

func theActionHasSelectorWithFallback(ctx context.Context, key, primary, fallback string) (context.Context, error) {
	state := getState(ctx)
	if state == nil || state.recipeInput == nil {
		return ctx, fmt.Errorf("no recipe built yet")
	}
	selectors := state.recipeInput["selectors"].(map[string]any)
	selectors[key] = map[string]any{
		"primary":   primary,
		"fallbacks": []string{fallback},
		"strategy":  "css",
	}
	actions := state.recipeInput["actions"].(map[string]any)
	if action, ok := actions[key].(map[string]any); ok {
		if preferred, ok := action["preferred"].(map[string]any); ok {
			preferred["selector"] = primary
		}
	}
	return ctx, nil
}

func theEngineWillFailThenSucceed(ctx context.Context, failSelector, succeedSelector string) (context.Context, error) {
	state := getState(ctx)
	if state == nil {
		return ctx, fmt.Errorf("no test state")
	}
	if state.recipeInput == nil {
		return ctx, fmt.Errorf("no recipe built yet")
	}
	state.recipeInput["_testEngine"] = map[string]any{
		"failSelector":    failSelector,
		"succeedSelector": succeedSelector,
	}
	return ctx, nil
}

func iRunTheRecipe(ctx context.Context) (context.Context, error) {
	state := getState(ctx)
	if state == nil {
		return ctx, fmt.Errorf("no test state; is the Before hook running?")
	}

	payload := map[string]any{
		"recipe": state.recipeInput,
		"options": map[string]any{
			"headless": true,
		},
	}
	if hint, ok := state.recipeInput["_testEngine"]; ok {
		payload["_testEngine"] = hint
	}
	stdin, err := json.Marshal(payload)
	if err != nil {
		return ctx, fmt.Errorf("marshaling recipe payload: %w", err)
	}

	cmd := exec.Command(state.binPath, "run")
	cmd.Env = append(os.Environ(),
		"LOOM_HOME="+state.homeDir,
		"LOOM_NO_TELEMETRY=1",
	)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	state.stdout = stdout.String()
	state.stderr = stderr.String()

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			state.exitCode = exitErr.ExitCode()
		} else {
			return ctx, fmt.Errorf("command execution failed: %w", runErr)
		}
	} else {
		state.exitCode = 0
	}

	state.events = nil
	scanner := bufio.NewScanner(strings.NewReader(state.stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event map[string]any
		if err := json.Unmarshal([]byte(line), &event); err == nil {
			state.events = append(state.events, event)
		}
	}

	return ctx, nil
}

func theRunCompletesWithOk(ctx context.Context, wantStr string) error {
	state := getState(ctx)
	want := wantStr == "true"

	for _, e := range state.events {
		if e["kind"] == "run_complete" {
			ok, _ := e["ok"].(bool)
			if ok != want {
				return fmt.Errorf("run_complete.ok = %v, want %v", ok, want)
			}
			return nil
		}
	}
	return fmt.Errorf("no run_complete event emitted\nstdout: %s\nstderr: %s", state.stdout, state.stderr)
}

func theExitCodeIs(ctx context.Context, expected int) error {
	state := getState(ctx)
	if state.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nstdout: %s\nstderr: %s",
			expected, state.exitCode, state.stdout, state.stderr)
	}
	return nil
}

func aRunEventOfTypeWasEmitted(ctx context.Context, eventKind string) error {
	state := getState(ctx)
	for _, e := range state.events {
		if e["kind"] == eventKind {
			return nil
		}
	}
	return fmt.Errorf("no event of kind %q emitted\nstdout: %s", eventKind, state.stdout)
}

func theFallbackLadderUsedLevel(ctx context.Context, level string) error {
	state := getState(ctx)
	for _, e := range state.events {
		if e["kind"] != "step_end" {
			continue
		}
		if msg, ok := e["message"].(string); ok && strings.Contains(msg, level) {
			return nil
		}
	}
	return fmt.Errorf("no step_end event recovered via %q\nstdout: %s", level, state.stdout)
}
