// Package browserengine defines the capability interfaces the Step
// Executor and Recovery Pipeline consume to drive an actual browser, and a
// DOM-snippet trimmer used by the trim_dom downgrade action.
package browserengine

import (
	"context"

	"github.com/autoloom/loom/internal/recipe"
)

// BrowserEngine is the minimal capability a Step Executor requires.
type BrowserEngine interface {
	Goto(ctx context.Context, url string) error
	Act(ctx context.Context, ref recipe.ActionRef) (bool, error)
	Observe(ctx context.Context, instruction string, scope string) ([]recipe.ActionRef, error)
	Extract(ctx context.Context, schema map[string]any, scope string) (any, error)
	Screenshot(ctx context.Context, selector string) ([]byte, error)
	CurrentURL(ctx context.Context) (string, error)
	CurrentTitle(ctx context.Context) (string, error)
}

// FallbackCapableEngine is an optional extension a BrowserEngine may also
// implement. The Recovery Pipeline type-asserts for it before attempting
// the selector_fallback rung of the ladder.
type FallbackCapableEngine interface {
	BrowserEngine
	ActWithFallback(ctx context.Context, ref recipe.ActionRef, sel recipe.SelectorEntry) (bool, error)
}
