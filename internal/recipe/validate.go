package recipe

import "fmt"

// ValidationError reports one structural problem found by Validate.
// Validate collects every problem it finds rather than stopping at the
// first, since a recipe author fixing one JSON file wants the full list.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// ValidationErrors is a non-empty list of ValidationError, returned by
// Validate when r fails any invariant.
type ValidationErrors []*ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	return fmt.Sprintf("%d validation errors, first: %s", len(errs), errs[0].Error())
}

// Validate checks r against the structural invariants a loaded Recipe
// must satisfy before a Workflow Runner can execute it: step ids are
// unique, op-specific required fields are present, and every act_cached /
// act_template targetKey resolves to a cached action or a selector entry.
func Validate(r Recipe) error {
	var errs ValidationErrors

	if len(r.Workflow.Steps) == 0 {
		errs = append(errs, &ValidationError{Path: "workflow.steps", Reason: "must be non-empty"})
	}

	seen := map[string]bool{}
	for i, step := range r.Workflow.Steps {
		path := fmt.Sprintf("workflow.steps[%d]", i)
		if step.ID == "" {
			errs = append(errs, &ValidationError{Path: path, Reason: "id is required"})
		} else if seen[step.ID] {
			errs = append(errs, &ValidationError{Path: path, Reason: fmt.Sprintf("duplicate step id %q", step.ID)})
		}
		seen[step.ID] = true

		errs = append(errs, validateStep(path, step, r)...)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateStep(path string, step Step, r Recipe) ValidationErrors {
	var errs ValidationErrors

	switch step.Op {
	case OpActCached, OpActTemplate:
		if step.TargetKey == "" {
			errs = append(errs, &ValidationError{Path: path, Reason: fmt.Sprintf("%s requires targetKey", step.Op)})
			break
		}
		if step.Op == OpActCached {
			_, hasAction := r.Actions[step.TargetKey]
			_, hasSelector := r.Selectors[step.TargetKey]
			if !hasAction && !hasSelector {
				errs = append(errs, &ValidationError{
					Path:   path,
					Reason: fmt.Sprintf("targetKey %q has neither an actions nor a selectors entry", step.TargetKey),
				})
			}
		}
	case OpChoose:
		for _, key := range []string{"from", "policy", "into"} {
			if _, ok := step.Args[key]; !ok {
				errs = append(errs, &ValidationError{Path: path, Reason: fmt.Sprintf("choose requires args.%s", key)})
			}
		}
	case OpGoto, OpExtract, OpCheckpoint, OpWait:
		// no step-level required fields beyond id/op.
	default:
		errs = append(errs, &ValidationError{Path: path, Reason: fmt.Sprintf("unknown op %q", step.Op)})
	}

	return errs
}
