package recipe

import (
	"encoding/json"
	"fmt"

	"github.com/autoloom/loom/internal/runerr"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ApplyPatch applies p's ops to r and returns a new, version-bumped
// Recipe. r is never mutated: each section (actions, selectors, workflow,
// policies) is serialized once, then every op is applied to that section's
// JSON via sjson/gjson so fields the patch never touches survive
// unchanged, rather than round-tripping through a full Go struct merge.
//
// An add op targeting an existing key, or a replace op targeting a
// missing one, is an unclean apply: ApplyPatch returns a
// *runerr.PatchApplyError instead of applying partially.
func ApplyPatch(r Recipe, p PatchPayload) (Recipe, error) {
	actionsJSON, err := json.Marshal(r.Actions)
	if err != nil {
		return Recipe{}, fmt.Errorf("failed to marshal actions: %w", err)
	}
	selectorsJSON, err := json.Marshal(r.Selectors)
	if err != nil {
		return Recipe{}, fmt.Errorf("failed to marshal selectors: %w", err)
	}
	workflowJSON, err := json.Marshal(r.Workflow)
	if err != nil {
		return Recipe{}, fmt.Errorf("failed to marshal workflow: %w", err)
	}
	policiesJSON, err := json.Marshal(r.Policies)
	if err != nil {
		return Recipe{}, fmt.Errorf("failed to marshal policies: %w", err)
	}

	for _, op := range p.Patch {
		valueJSON, err := json.Marshal(op.Value)
		if err != nil {
			return Recipe{}, fmt.Errorf("failed to marshal patch op value: %w", err)
		}

		switch op.Kind {
		case PatchActionsAdd, PatchActionsReplace:
			actionsJSON, err = applyKeyedOp(actionsJSON, op, valueJSON)
		case PatchSelectorsAdd, PatchSelectorsReplace:
			selectorsJSON, err = applyKeyedOp(selectorsJSON, op, valueJSON)
		case PatchWorkflowUpdateExpect:
			workflowJSON, err = applyStepExpect(workflowJSON, op, valueJSON)
		case PatchPoliciesUpdate:
			policiesJSON, err = sjson.SetRawBytes(policiesJSON, op.Key, valueJSON)
		default:
			err = &runerr.PatchApplyError{Op: string(op.Kind), Key: op.Key, Reason: "unknown patch op kind"}
		}
		if err != nil {
			return Recipe{}, err
		}
	}

	next := r
	if err := json.Unmarshal(actionsJSON, &next.Actions); err != nil {
		return Recipe{}, fmt.Errorf("failed to unmarshal patched actions: %w", err)
	}
	if err := json.Unmarshal(selectorsJSON, &next.Selectors); err != nil {
		return Recipe{}, fmt.Errorf("failed to unmarshal patched selectors: %w", err)
	}
	if err := json.Unmarshal(workflowJSON, &next.Workflow); err != nil {
		return Recipe{}, fmt.Errorf("failed to unmarshal patched workflow: %w", err)
	}
	if err := json.Unmarshal(policiesJSON, &next.Policies); err != nil {
		return Recipe{}, fmt.Errorf("failed to unmarshal patched policies: %w", err)
	}

	nextVersion, err := NextVersion(r.Version)
	if err != nil {
		return Recipe{}, fmt.Errorf("failed to bump recipe version: %w", err)
	}
	next.Version = nextVersion

	return next, nil
}

// applyKeyedOp applies a single add|replace op addressing a top-level key
// in a JSON object (actions.json or selectors.json). actions.add takes a
// full ActionEntry for a new targetKey; actions.replace takes just the
// ActionRef that becomes the existing entry's preferred action, since a
// healed selector never changes the entry's instruction. selectors.add and
// selectors.replace both take a full SelectorEntry, since a SelectorEntry
// has no comparable sub-field to target narrowly.
func applyKeyedOp(doc []byte, op Op, valueJSON []byte) ([]byte, error) {
	path := gjsonKey(op.Key)
	exists := gjson.GetBytes(doc, path).Exists()
	isAdd := op.Kind == PatchActionsAdd || op.Kind == PatchSelectorsAdd
	if isAdd && exists {
		return nil, &runerr.PatchApplyError{Op: string(op.Kind), Key: op.Key, Reason: "key already exists"}
	}
	if !isAdd && !exists {
		return nil, &runerr.PatchApplyError{Op: string(op.Kind), Key: op.Key, Reason: "key does not exist"}
	}

	setPath := path
	if op.Kind == PatchActionsReplace {
		setPath = path + ".preferred"
	}
	return sjson.SetRawBytes(doc, setPath, valueJSON)
}

// applyStepExpect applies a workflow.update_expect op, which addresses a
// step by id rather than by a map key.
func applyStepExpect(doc []byte, op Op, valueJSON []byte) ([]byte, error) {
	path := fmt.Sprintf(`steps.#(id=="%s")`, op.Step)
	if !gjson.GetBytes(doc, path).Exists() {
		return nil, &runerr.PatchApplyError{Op: string(op.Kind), Key: op.Step, Reason: "step does not exist"}
	}
	return sjson.SetRawBytes(doc, path+".expect", valueJSON)
}

// gjsonKey escapes a map key for use as a gjson/sjson path segment. Target
// keys are plain identifiers in practice; this guards against the rare key
// containing a path metacharacter.
func gjsonKey(key string) string {
	return gjson.Escape(key)
}
