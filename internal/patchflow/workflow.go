package patchflow

import (
	"context"
	"fmt"

	"github.com/autoloom/loom/internal/checkpoint"
	"github.com/autoloom/loom/internal/recipe"
)

// Store persists a patched Recipe alongside the version it was derived
// from. Both versions must remain on disk afterward; Store implementations
// (e.g. a recipe-directory writer) are responsible for that invariant.
type Store interface {
	Save(r recipe.Recipe) error
}

// Result reports what ApplyAndVersionUp decided and produced.
type Result struct {
	Class   recipe.PatchClass
	Applied bool
	Recipe  recipe.Recipe
}

// ApplyAndVersionUp classifies payload, gates major patches behind a
// Checkpoint Handler GO, and on acceptance applies the patch and persists
// the resulting version-bumped Recipe via store. A refused major patch, or
// an unclean apply, returns an error and never calls store.Save: the
// recipe files on disk are left exactly as they were.
func ApplyAndVersionUp(ctx context.Context, current recipe.Recipe, payload recipe.PatchPayload, handler checkpoint.Handler, store Store) (Result, error) {
	class := payload.Classify()

	if class == recipe.PatchMajor {
		message := fmt.Sprintf("major patch to %s/%s (%s): %s", current.Domain, current.Flow, current.Version, payload.Reason)
		decision, err := handler.RequestApproval(ctx, message, nil)
		if err != nil {
			return Result{Class: class}, fmt.Errorf("checkpoint approval for major patch failed: %w", err)
		}
		if decision != checkpoint.GO {
			return Result{Class: class}, fmt.Errorf("major patch to %s/%s rejected at checkpoint", current.Domain, current.Flow)
		}
	}

	next, err := recipe.ApplyPatch(current, payload)
	if err != nil {
		return Result{Class: class}, err
	}

	if err := store.Save(next); err != nil {
		return Result{Class: class}, fmt.Errorf("failed to persist patched recipe %s/%s: %w", next.Domain, next.Flow, err)
	}

	return Result{Class: class, Applied: true, Recipe: next}, nil
}
