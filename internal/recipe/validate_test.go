package recipe

import "testing"

func TestValidate_ActCachedRequiresTargetKeyBackedByActionOrSelector(t *testing.T) {
	r := Recipe{
		Workflow: Workflow{Steps: []Step{
			{ID: "s1", Op: OpActCached, TargetKey: "missing"},
		}},
		Actions:   map[string]ActionEntry{},
		Selectors: map[string]SelectorEntry{},
	}
	if err := Validate(r); err == nil {
		t.Fatal("expected validation error for an unbacked targetKey")
	}
}

func TestValidate_ActCachedBackedBySelectorOnlyIsValid(t *testing.T) {
	r := Recipe{
		Workflow: Workflow{Steps: []Step{
			{ID: "s1", Op: OpActCached, TargetKey: "submit_btn"},
		}},
		Actions:   map[string]ActionEntry{},
		Selectors: map[string]SelectorEntry{"submit_btn": {Primary: "#submit", Strategy: StrategyCSS}},
	}
	if err := Validate(r); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestValidate_ChooseRequiresFromPolicyInto(t *testing.T) {
	r := Recipe{
		Workflow: Workflow{Steps: []Step{
			{ID: "s1", Op: OpChoose, Args: map[string]any{"from": "candidates"}},
		}},
	}
	err := Validate(r)
	if err == nil {
		t.Fatal("expected validation error")
	}
	errs, ok := err.(ValidationErrors)
	if !ok || len(errs) != 2 {
		t.Fatalf("expected 2 errors (missing policy, into), got %v", err)
	}
}

func TestValidate_DuplicateStepIDsRejected(t *testing.T) {
	r := Recipe{
		Workflow: Workflow{Steps: []Step{
			{ID: "s1", Op: OpGoto, Args: map[string]any{"url": "https://example.com"}},
			{ID: "s1", Op: OpWait},
		}},
	}
	if err := Validate(r); err == nil {
		t.Fatal("expected validation error for duplicate step ids")
	}
}

func TestValidate_EmptyWorkflowRejected(t *testing.T) {
	if err := Validate(Recipe{}); err == nil {
		t.Fatal("expected validation error for an empty workflow")
	}
}
