package recipe

// PatchOpKind enumerates the operations a PatchPayload can carry. Each
// targets one section of a Recipe: the cached actions, the selector
// fallback ladder, a step's expectations, or a named policy.
type PatchOpKind string

const (
	PatchActionsAdd          PatchOpKind = "actions.add"
	PatchActionsReplace      PatchOpKind = "actions.replace"
	PatchSelectorsAdd        PatchOpKind = "selectors.add"
	PatchSelectorsReplace    PatchOpKind = "selectors.replace"
	PatchWorkflowUpdateExpect PatchOpKind = "workflow.update_expect"
	PatchPoliciesUpdate      PatchOpKind = "policies.update"
)

// Op is a single patch operation. Key addresses an actions/selectors/policies
// entry; Step addresses a workflow step for workflow.update_expect. Exactly
// one of Key or Step is set, depending on Kind.
type Op struct {
	Kind  PatchOpKind `json:"kind"`
	Key   string      `json:"key,omitempty"`
	Step  string      `json:"step,omitempty"`
	Value any         `json:"value"`
}

// PatchPayload is the result of an authoring_patch recovery action or of a
// direct PatchPlanner.PlanPatch call: an ordered list of Ops plus the
// planner's stated reason for proposing them.
type PatchPayload struct {
	Patch  []Op   `json:"patch"`
	Reason string `json:"reason"`
}

// PatchClass distinguishes a single-op, low-risk patch from one that
// changes workflow expectations or policies and therefore needs a human GO.
type PatchClass string

const (
	PatchMinor PatchClass = "minor"
	PatchMajor PatchClass = "major"
)

// Classify implements the Patch Workflow's minor/major split: a payload
// with exactly one actions.replace|selectors.replace|actions.add|selectors.add
// op is minor; anything with multiple ops, a policies.update, or a
// workflow.update_expect is major.
func (p PatchPayload) Classify() PatchClass {
	if len(p.Patch) != 1 {
		return PatchMajor
	}
	switch p.Patch[0].Kind {
	case PatchActionsReplace, PatchSelectorsReplace, PatchActionsAdd, PatchSelectorsAdd:
		return PatchMinor
	default:
		return PatchMajor
	}
}
