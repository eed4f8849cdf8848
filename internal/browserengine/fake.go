package browserengine

import (
	"context"
	"fmt"

	"github.com/autoloom/loom/internal/recipe"
)

// Fake is a scriptable BrowserEngine/FallbackCapableEngine double for
// testing the Step Executor and Recovery Pipeline without a real browser.
type Fake struct {
	URL   string
	Title string

	// FailSelectors marks selectors that Act/ActWithFallback reports not
	// found, regardless of the ActionRef passed.
	FailSelectors map[string]bool

	GotoCalls    []string
	ActCalls     []recipe.ActionRef
	ScreenshotBytes []byte

	ObserveResult []recipe.ActionRef
	ExtractResult any
}

var _ FallbackCapableEngine = (*Fake)(nil)

// NewFake returns a Fake with empty failure sets, ready to script.
func NewFake() *Fake {
	return &Fake{FailSelectors: map[string]bool{}}
}

func (f *Fake) Goto(ctx context.Context, url string) error {
	f.GotoCalls = append(f.GotoCalls, url)
	f.URL = url
	return nil
}

func (f *Fake) Act(ctx context.Context, ref recipe.ActionRef) (bool, error) {
	f.ActCalls = append(f.ActCalls, ref)
	if f.FailSelectors[ref.Selector] {
		return false, nil
	}
	return true, nil
}

func (f *Fake) Observe(ctx context.Context, instruction string, scope string) ([]recipe.ActionRef, error) {
	return f.ObserveResult, nil
}

func (f *Fake) Extract(ctx context.Context, schema map[string]any, scope string) (any, error) {
	return f.ExtractResult, nil
}

func (f *Fake) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	return f.ScreenshotBytes, nil
}

func (f *Fake) CurrentURL(ctx context.Context) (string, error) {
	return f.URL, nil
}

func (f *Fake) CurrentTitle(ctx context.Context) (string, error) {
	return f.Title, nil
}

// ActWithFallback tries ref.Selector first, then each of sel.Fallbacks in
// order; the first one not in FailSelectors succeeds.
func (f *Fake) ActWithFallback(ctx context.Context, ref recipe.ActionRef, sel recipe.SelectorEntry) (bool, error) {
	candidates := append([]string{ref.Selector}, sel.Fallbacks...)
	for _, candidate := range candidates {
		attempt := ref
		attempt.Selector = candidate
		f.ActCalls = append(f.ActCalls, attempt)
		if !f.FailSelectors[candidate] {
			return true, nil
		}
	}
	return false, fmt.Errorf("no selector candidate succeeded for %q", ref.Selector)
}
