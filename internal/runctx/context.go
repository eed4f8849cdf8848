// Package runctx defines RunContext, the per-run mutable state threaded
// through the Step Executor, Recovery Pipeline, and Workflow Runner: the
// recipe being executed, its variable bindings, and the run's Budget
// Guard. A RunContext belongs to exactly one run and is never shared.
package runctx

import (
	"time"

	"github.com/autoloom/loom/internal/budget"
	"github.com/autoloom/loom/internal/recipe"
)

// Context is the mutable state carried across a run's step loop.
type Context struct {
	Recipe    recipe.Recipe
	Vars      map[string]any
	Guard     *budget.Guard
	RunID     string
	StartedAt time.Time
}

// New creates a Context for a fresh run. Vars starts as a copy of the
// workflow's own vars (empty if it has none).
func New(runID string, r recipe.Recipe, guard *budget.Guard) *Context {
	vars := map[string]any{}
	for k, v := range r.Workflow.Vars {
		vars[k] = v
	}
	return &Context{
		Recipe:    r,
		Vars:      vars,
		Guard:     guard,
		RunID:     runID,
		StartedAt: time.Now(),
	}
}

// Set assigns a variable binding, used by the choose op's args.into and by
// extract's args.into.
func (c *Context) Set(key string, value any) {
	if c.Vars == nil {
		c.Vars = map[string]any{}
	}
	c.Vars[key] = value
}

// Get reads a variable binding.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.Vars[key]
	return v, ok
}
