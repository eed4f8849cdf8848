package recipe

import "testing"

func baseRecipe() Recipe {
	return Recipe{
		Domain:  "example.com",
		Flow:    "checkout",
		Version: "v1",
		Workflow: Workflow{
			ID: "checkout",
			Steps: []Step{
				{ID: "open", Op: OpGoto, Args: map[string]any{"url": "https://example.com"}},
				{ID: "submit", Op: OpActCached, TargetKey: "submit_btn"},
			},
		},
		Actions: map[string]ActionEntry{
			"submit_btn": {
				Instruction: "click submit",
				Preferred:   ActionRef{Selector: "#submit", Method: MethodClick},
			},
		},
		Selectors: map[string]SelectorEntry{
			"submit_btn": {Primary: "#submit", Strategy: StrategyCSS},
		},
		Policies: map[string]Policy{},
	}
}

func TestApplyPatch_ActionsReplace_DoesNotMutateOriginal(t *testing.T) {
	r := baseRecipe()
	p := PatchPayload{
		Patch: []Op{
			{Kind: PatchActionsReplace, Key: "submit_btn", Value: ActionRef{Selector: "#submit-v2", Method: MethodClick}},
		},
		Reason: "selector drifted",
	}

	patched, err := ApplyPatch(r, p)
	if err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}

	if r.Actions["submit_btn"].Preferred.Selector != "#submit" {
		t.Fatalf("expected original recipe untouched, got %q", r.Actions["submit_btn"].Preferred.Selector)
	}
	if patched.Actions["submit_btn"].Preferred.Selector != "#submit-v2" {
		t.Fatalf("expected patched selector #submit-v2, got %q", patched.Actions["submit_btn"].Preferred.Selector)
	}
}

func TestApplyPatch_BumpsVersion(t *testing.T) {
	r := baseRecipe()
	p := PatchPayload{Patch: []Op{
		{Kind: PatchActionsReplace, Key: "submit_btn", Value: ActionRef{Selector: "#s2", Method: MethodClick}},
	}}
	patched, err := ApplyPatch(r, p)
	if err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if patched.Version != "v2" {
		t.Fatalf("expected version v2, got %q", patched.Version)
	}
	if r.Version != "v1" {
		t.Fatalf("expected original version unchanged, got %q", r.Version)
	}
}

func TestApplyPatch_ActionsAdd_NewKey(t *testing.T) {
	r := baseRecipe()
	p := PatchPayload{Patch: []Op{
		{Kind: PatchActionsAdd, Key: "new_btn", Value: ActionEntry{Instruction: "click new", Preferred: ActionRef{Selector: "#new", Method: MethodClick}}},
	}}
	patched, err := ApplyPatch(r, p)
	if err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if _, ok := patched.Actions["submit_btn"]; !ok {
		t.Fatal("expected untouched key submit_btn to survive")
	}
	if _, ok := patched.Actions["new_btn"]; !ok {
		t.Fatal("expected new_btn to be added")
	}
}

func TestApplyPatch_ActionsAdd_ExistingKeyFails(t *testing.T) {
	r := baseRecipe()
	p := PatchPayload{Patch: []Op{
		{Kind: PatchActionsAdd, Key: "submit_btn", Value: ActionEntry{Instruction: "x"}},
	}}
	_, err := ApplyPatch(r, p)
	if err == nil {
		t.Fatal("expected error for add targeting an existing key")
	}
}

func TestApplyPatch_ActionsReplace_MissingKeyFails(t *testing.T) {
	r := baseRecipe()
	p := PatchPayload{Patch: []Op{
		{Kind: PatchActionsReplace, Key: "does_not_exist", Value: ActionRef{Selector: "#x", Method: MethodClick}},
	}}
	_, err := ApplyPatch(r, p)
	if err == nil {
		t.Fatal("expected error for replace targeting a missing key")
	}
}

func TestApplyPatch_WorkflowUpdateExpect(t *testing.T) {
	r := baseRecipe()
	p := PatchPayload{Patch: []Op{
		{Kind: PatchWorkflowUpdateExpect, Step: "submit", Value: []Expectation{
			{Kind: ExpectURLContains, Value: "/thank-you"},
		}},
	}}
	patched, err := ApplyPatch(r, p)
	if err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	var step Step
	for _, s := range patched.Workflow.Steps {
		if s.ID == "submit" {
			step = s
		}
	}
	if len(step.Expect) != 1 || step.Expect[0].Value != "/thank-you" {
		t.Fatalf("expected submit step expect updated, got %+v", step.Expect)
	}
	for _, s := range r.Workflow.Steps {
		if s.ID == "submit" && len(s.Expect) != 0 {
			t.Fatal("expected original workflow step untouched")
		}
	}
}

func TestApplyPatch_WorkflowUpdateExpect_MissingStepFails(t *testing.T) {
	r := baseRecipe()
	p := PatchPayload{Patch: []Op{
		{Kind: PatchWorkflowUpdateExpect, Step: "nope", Value: []Expectation{}},
	}}
	_, err := ApplyPatch(r, p)
	if err == nil {
		t.Fatal("expected error for update_expect targeting a missing step")
	}
}

func TestApplyPatch_PoliciesUpdate(t *testing.T) {
	r := baseRecipe()
	p := PatchPayload{Patch: []Op{
		{Kind: PatchPoliciesUpdate, Key: "choose_item", Value: Policy{Pick: PickFirst}},
	}}
	patched, err := ApplyPatch(r, p)
	if err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if patched.Policies["choose_item"].Pick != PickFirst {
		t.Fatalf("expected policy to be added, got %+v", patched.Policies["choose_item"])
	}
}

func TestApplyPatch_MultiOp_AllOrNothing(t *testing.T) {
	r := baseRecipe()
	p := PatchPayload{Patch: []Op{
		{Kind: PatchActionsReplace, Key: "submit_btn", Value: ActionRef{Selector: "#ok", Method: MethodClick}},
		{Kind: PatchActionsAdd, Key: "submit_btn", Value: ActionEntry{Instruction: "dup"}},
	}}
	_, err := ApplyPatch(r, p)
	if err == nil {
		t.Fatal("expected the second op's failure to surface as an error")
	}
}
