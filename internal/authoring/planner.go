// Package authoring implements an LLM-backed Patch Planner: the
// authoring_patch rung of the recovery ladder asks it to propose a
// recipe.PatchPayload for a step that has exhausted retry, selector
// fallback, observe_refresh, and Healing Memory.
package authoring

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/autoloom/loom/internal/llm"
	"github.com/autoloom/loom/internal/recipe"
	"github.com/autoloom/loom/internal/recovery"
)

// proposePatchTool is the single tool the planner offers the provider.
// Constraining the response to one tool call means the arguments parse
// directly into a recipe.PatchPayload, without a free-text response to
// coax JSON out of.
const proposePatchTool = "propose_patch"

var patchOpKinds = []string{
	string(recipe.PatchActionsAdd),
	string(recipe.PatchActionsReplace),
	string(recipe.PatchSelectorsAdd),
	string(recipe.PatchSelectorsReplace),
	string(recipe.PatchWorkflowUpdateExpect),
	string(recipe.PatchPoliciesUpdate),
}

var proposePatchSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"reason": map[string]any{
			"type":        "string",
			"description": "Why this patch should fix the failure.",
		},
		"patch": map[string]any{
			"type":        "array",
			"description": "One or more ordered patch operations.",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"kind": map[string]any{
						"type": "string",
						"enum": patchOpKinds,
					},
					"key":   map[string]any{"type": "string", "description": "actions/selectors/policies key this op addresses."},
					"step":  map[string]any{"type": "string", "description": "workflow step ID, for workflow.update_expect only."},
					"value": map[string]any{"type": "object", "description": "The new value for this op, shaped per kind."},
				},
				"required": []string{"kind", "value"},
			},
		},
	},
	"required": []string{"patch", "reason"},
}

// Planner is a recovery.PatchPlanner backed by an llm.Factory: it sends the
// failure context to the configured provider's Complete with a single
// propose_patch tool and parses the resulting tool call back into a
// recipe.PatchPayload.
type Planner struct {
	Factory *llm.Factory
}

// New builds a Planner around factory. factory must not be nil; callers
// that have no LLM provider configured should pass a nil PatchPlanner to
// recovery.New instead of constructing a Planner.
func New(factory *llm.Factory) *Planner {
	return &Planner{Factory: factory}
}

// PlanPatch asks the configured provider to propose a patch for req. It
// returns an error if no provider is available, the breaker is open, the
// call fails, or the provider never invokes propose_patch.
func (p *Planner) PlanPatch(ctx context.Context, req recovery.PatchRequest) (recipe.PatchPayload, error) {
	provider, err := p.Factory.GetProvider(ctx)
	if err != nil {
		return recipe.PatchPayload{}, fmt.Errorf("authoring planner: %w", err)
	}

	resp, err := provider.Complete(ctx, &llm.CompletionRequest{
		SystemPrompt: "You repair broken web-automation recipes. A step failed; propose the smallest patch that fixes it by calling propose_patch exactly once.",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: describeFailure(req)},
		},
		Tools: []llm.ToolDef{
			{
				Name:        proposePatchTool,
				Description: "Propose a patch to the recipe that fixes the failing step.",
				Parameters:  proposePatchSchema,
			},
		},
		MaxTokens: 1024,
	})
	if err != nil {
		p.Factory.ReportFailure(provider.Name())
		return recipe.PatchPayload{}, fmt.Errorf("authoring planner: %w", err)
	}
	p.Factory.ReportSuccess(provider.Name())

	for _, tc := range resp.ToolCalls {
		if tc.Name != proposePatchTool {
			continue
		}
		return decodePatchArgs(tc.Arguments)
	}
	return recipe.PatchPayload{}, fmt.Errorf("authoring planner: provider did not call %s", proposePatchTool)
}

func describeFailure(req recovery.PatchRequest) string {
	return fmt.Sprintf(
		"step %s failed with error type %q.\nurl: %s\ntitle: %s\nfailed selector: %s\nfailed action: %s %s\ndom snippet:\n%s",
		req.StepID, req.ErrorType, req.URL, req.Title, req.FailedSelector,
		req.FailedAction.Method, req.FailedAction.Selector, req.DomSnippet,
	)
}

type patchOpArgs struct {
	Kind  string `json:"kind"`
	Key   string `json:"key"`
	Step  string `json:"step"`
	Value any    `json:"value"`
}

type patchArgs struct {
	Patch  []patchOpArgs `json:"patch"`
	Reason string        `json:"reason"`
}

// decodePatchArgs round-trips the tool call's arguments map through JSON
// to populate a recipe.PatchPayload: ToolCall.Arguments is already decoded
// from the provider's JSON response, so this just re-applies the target
// struct tags rather than hand-walking the map.
func decodePatchArgs(raw map[string]any) (recipe.PatchPayload, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return recipe.PatchPayload{}, fmt.Errorf("authoring planner: marshaling tool arguments: %w", err)
	}
	var args patchArgs
	if err := json.Unmarshal(data, &args); err != nil {
		return recipe.PatchPayload{}, fmt.Errorf("authoring planner: decoding propose_patch arguments: %w", err)
	}
	if len(args.Patch) == 0 {
		return recipe.PatchPayload{}, fmt.Errorf("authoring planner: propose_patch called with no ops")
	}

	payload := recipe.PatchPayload{Reason: args.Reason}
	for _, op := range args.Patch {
		payload.Patch = append(payload.Patch, recipe.Op{
			Kind:  recipe.PatchOpKind(op.Kind),
			Key:   op.Key,
			Step:  op.Step,
			Value: op.Value,
		})
	}
	return payload, nil
}
