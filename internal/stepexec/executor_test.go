package stepexec

import (
	"context"
	"testing"

	"github.com/autoloom/loom/internal/browserengine"
	"github.com/autoloom/loom/internal/checkpoint"
	"github.com/autoloom/loom/internal/recipe"
	"github.com/autoloom/loom/internal/recovery"
	"github.com/autoloom/loom/internal/runctx"
	"github.com/autoloom/loom/internal/runerr"
)

func newExecutor(engine *browserengine.Fake) *Executor {
	pipeline := recovery.New(engine, nil, refusingCheckpoint{}, nil, nil)
	return New(engine, pipeline, checkpoint.AutoApprove{}, nil)
}

func TestExecute_WaitZeroMsReturnsImmediatelyOk(t *testing.T) {
	e := newExecutor(browserengine.NewFake())
	rc := runctx.New("r1", recipe.Recipe{}, nil)
	step := recipe.Step{ID: "s1", Op: recipe.OpWait, Args: map[string]any{"ms": float64(0)}}

	result := e.Execute(context.Background(), rc, step)
	if !result.OK {
		t.Fatalf("expected ok, got %+v", result)
	}
}

func TestExecute_GotoMissingURLFailsWithoutPanicking(t *testing.T) {
	e := newExecutor(browserengine.NewFake())
	rc := runctx.New("r1", recipe.Recipe{}, nil)
	step := recipe.Step{ID: "s1", Op: recipe.OpGoto, Args: map[string]any{}}

	result := e.Execute(context.Background(), rc, step)
	if result.OK {
		t.Fatal("expected not-ok for missing args.url")
	}
	if result.ErrorType != runerr.Navigation {
		t.Fatalf("expected Navigation, got %v", result.ErrorType)
	}
}

func TestExecute_GotoSucceeds(t *testing.T) {
	engine := browserengine.NewFake()
	e := newExecutor(engine)
	rc := runctx.New("r1", recipe.Recipe{}, nil)
	step := recipe.Step{ID: "s1", Op: recipe.OpGoto, Args: map[string]any{"url": "https://example.com"}}

	result := e.Execute(context.Background(), rc, step)
	if !result.OK {
		t.Fatalf("expected ok, got %+v", result)
	}
	if len(engine.GotoCalls) != 1 || engine.GotoCalls[0] != "https://example.com" {
		t.Fatalf("expected one Goto call, got %v", engine.GotoCalls)
	}
}

func TestExecute_ActCachedRecoversViaSelectorFallback(t *testing.T) {
	engine := browserengine.NewFake()
	engine.FailSelectors["#old"] = true

	r := recipe.Recipe{
		Actions: map[string]recipe.ActionEntry{
			"submit": {Preferred: recipe.ActionRef{Selector: "#old", Method: recipe.MethodClick}},
		},
		Selectors: map[string]recipe.SelectorEntry{
			"submit": {Primary: "#old", Fallbacks: []string{"#new"}, Strategy: recipe.StrategyCSS},
		},
	}
	e := newExecutor(engine)
	rc := runctx.New("r1", r, nil)
	step := recipe.Step{ID: "s1", Op: recipe.OpActCached, TargetKey: "submit"}

	result := e.Execute(context.Background(), rc, step)
	if !result.OK {
		t.Fatalf("expected recovery to succeed, got %+v", result)
	}
	if !result.Recovered || result.Method != "selector_fallback" {
		t.Fatalf("expected selector_fallback recovery, got %+v", result)
	}
}

func TestExecute_ChooseWritesWinnerIntoVars(t *testing.T) {
	engine := browserengine.NewFake()
	r := recipe.Recipe{
		Policies: map[string]recipe.Policy{
			"best": {Pick: recipe.PickArgmax, Score: []recipe.ScoreRule{
				{When: recipe.Condition{Field: "price", Op: recipe.OpGt, Value: float64(6)}, Add: 1},
			}},
		},
	}
	e := newExecutor(engine)
	rc := runctx.New("r1", r, nil)
	rc.Set("candidates", []any{
		map[string]any{"id": "a", "price": float64(5)},
		map[string]any{"id": "b", "price": float64(9)},
	})
	step := recipe.Step{
		ID: "s1",
		Op: recipe.OpChoose,
		Args: map[string]any{
			"from":   "candidates",
			"policy": "best",
			"into":   "winner",
		},
	}

	result := e.Execute(context.Background(), rc, step)
	if !result.OK {
		t.Fatalf("expected ok, got %+v", result)
	}
	winner, ok := rc.Get("winner")
	if !ok {
		t.Fatal("expected vars.winner to be set")
	}
	m := winner.(map[string]any)
	if m["id"] != "b" {
		t.Fatalf("expected candidate b to win, got %+v", m)
	}
}

func TestExecute_ChooseNoWinnerFailsWithoutErrorType(t *testing.T) {
	engine := browserengine.NewFake()
	r := recipe.Recipe{
		Policies: map[string]recipe.Policy{
			"best": {
				Hard: []recipe.Condition{{Field: "price", Op: recipe.OpGt, Value: float64(1000)}},
				Pick: recipe.PickFirst,
			},
		},
	}
	e := newExecutor(engine)
	rc := runctx.New("r1", r, nil)
	rc.Set("candidates", []any{map[string]any{"id": "a", "price": float64(5)}})
	step := recipe.Step{
		ID:   "s1",
		Op:   recipe.OpChoose,
		Args: map[string]any{"from": "candidates", "policy": "best", "into": "winner"},
	}

	result := e.Execute(context.Background(), rc, step)
	if result.OK {
		t.Fatal("expected no winner to fail the step")
	}
	if result.ErrorType != "" {
		t.Fatalf("expected no errorType per spec, got %q", result.ErrorType)
	}
}

func TestExecute_CheckpointNotGoFails(t *testing.T) {
	engine := browserengine.NewFake()
	pipeline := recovery.New(engine, nil, checkpoint.AutoApprove{}, nil, nil)
	e := New(engine, pipeline, refusingCheckpoint{}, nil)
	rc := runctx.New("r1", recipe.Recipe{}, nil)
	step := recipe.Step{ID: "s1", Op: recipe.OpCheckpoint, Args: map[string]any{"message": "continue?"}}

	result := e.Execute(context.Background(), rc, step)
	if result.OK {
		t.Fatal("expected NOT_GO to fail the step")
	}
}

func TestExecute_ExtractEmptyResultFails(t *testing.T) {
	engine := browserengine.NewFake()
	engine.ExtractResult = ""
	e := newExecutor(engine)
	rc := runctx.New("r1", recipe.Recipe{}, nil)
	step := recipe.Step{ID: "s1", Op: recipe.OpExtract, Args: map[string]any{"into": "out"}}

	result := e.Execute(context.Background(), rc, step)
	if result.OK {
		t.Fatal("expected empty extraction to fail")
	}
	if result.ErrorType != runerr.ExtractionEmpty {
		t.Fatalf("expected ExtractionEmpty, got %v", result.ErrorType)
	}
}

type refusingCheckpoint struct{}

func (refusingCheckpoint) RequestApproval(ctx context.Context, message string, screenshot []byte) (checkpoint.Decision, error) {
	return checkpoint.NotGo, nil
}
