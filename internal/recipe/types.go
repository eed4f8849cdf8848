// Package recipe defines the typed data model for a web-automation recipe:
// the workflow a run executes, the cached actions and selectors it prefers,
// the fingerprints used to preflight-check a page, and the policies used to
// rank candidate records.
package recipe

import "fmt"

// Op enumerates the step operations a Workflow can contain.
type Op string

const (
	OpGoto       Op = "goto"
	OpActCached  Op = "act_cached"
	OpActTemplate Op = "act_template"
	OpExtract    Op = "extract"
	OpChoose     Op = "choose"
	OpCheckpoint Op = "checkpoint"
	OpWait       Op = "wait"
)

// OnFail enumerates what a step does when its result comes back not-ok and
// recovery does not salvage it.
type OnFail string

const (
	OnFailRetry      OnFail = "retry"
	OnFailFallback   OnFail = "fallback"
	OnFailCheckpoint OnFail = "checkpoint"
	OnFailAbort      OnFail = "abort"
)

// ExpectKind enumerates the kinds of post-step assertions a Step can carry.
type ExpectKind string

const (
	ExpectURLContains      ExpectKind = "url_contains"
	ExpectTitleContains    ExpectKind = "title_contains"
	ExpectSelectorVisible  ExpectKind = "selector_visible"
	ExpectTextContains     ExpectKind = "text_contains"
)

// Method enumerates the ways an ActionRef can be carried out.
type Method string

const (
	MethodClick Method = "click"
	MethodFill  Method = "fill"
	MethodType  Method = "type"
	MethodPress Method = "press"
)

// SelectorStrategy enumerates how a SelectorEntry's primary/fallback
// selectors were derived.
type SelectorStrategy string

const (
	StrategyTestID SelectorStrategy = "testid"
	StrategyRole   SelectorStrategy = "role"
	StrategyCSS    SelectorStrategy = "css"
	StrategyXPath  SelectorStrategy = "xpath"
)

// Recipe is the immutable-during-a-run unit a Workflow Runner executes.
// A patch acceptance produces a new Recipe value with an incremented
// version; the one a run started with is never mutated in place.
type Recipe struct {
	Domain      string              `json:"domain"`
	Flow        string              `json:"flow"`
	Version     string              `json:"version"`
	Workflow    Workflow            `json:"workflow"`
	Actions     map[string]ActionEntry `json:"actions"`
	Selectors   map[string]SelectorEntry `json:"selectors"`
	Fingerprints []Fingerprint      `json:"fingerprints,omitempty"`
	Policies    map[string]Policy   `json:"policies"`
}

// Workflow is the ordered list of Steps a run executes in sequence.
type Workflow struct {
	ID      string            `json:"id"`
	Version string            `json:"version,omitempty"`
	Vars    map[string]any    `json:"vars,omitempty"`
	Steps   []Step            `json:"steps"`
}

// Step is a single unit of work in a Workflow.
type Step struct {
	ID        string         `json:"id"`
	Op        Op             `json:"op"`
	TargetKey string         `json:"targetKey,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Expect    []Expectation  `json:"expect,omitempty"`
	OnFail    OnFail         `json:"onFail,omitempty"`
}

// Expectation is a post-step assertion checked against the engine.
type Expectation struct {
	Kind  ExpectKind `json:"kind"`
	Value string     `json:"value"`
}

// ActionEntry is the cached action preferred for a given targetKey.
type ActionEntry struct {
	Instruction string    `json:"instruction"`
	Preferred   ActionRef `json:"preferred"`
	ObservedAt  string    `json:"observedAt"`
}

// ActionRef names a concrete interaction with the page: a selector, the
// method used to act on it, and any arguments the method needs (e.g. the
// text to fill).
type ActionRef struct {
	Selector    string   `json:"selector"`
	Description string   `json:"description"`
	Method      Method   `json:"method"`
	Arguments   []string `json:"arguments,omitempty"`
}

// SelectorEntry is the primary selector plus ordered fallbacks tried during
// selector_fallback recovery.
type SelectorEntry struct {
	Primary   string           `json:"primary"`
	Fallbacks []string         `json:"fallbacks,omitempty"`
	Strategy  SelectorStrategy `json:"strategy"`
}

// Fingerprint is a preflight guard: a Workflow Runner checks URLContains
// against the current page before requesting GO/NOT-GO. MustText and
// MustSelectors are carried with the recipe but are not checked.
type Fingerprint struct {
	MustText      []string `json:"mustText,omitempty"`
	MustSelectors []string `json:"mustSelectors,omitempty"`
	URLContains   string   `json:"urlContains,omitempty"`
}

// Policy ranks candidate records for a `choose` step: hard filters first,
// then additive scoring, then tie-breaking.
type Policy struct {
	Hard     []Condition   `json:"hard,omitempty"`
	Score    []ScoreRule   `json:"score,omitempty"`
	TieBreak []string      `json:"tie_break,omitempty"`
	Pick     PickStrategy  `json:"pick"`
}

// PickStrategy selects how a Policy's scored candidates are sorted.
type PickStrategy string

const (
	PickArgmax PickStrategy = "argmax"
	PickArgmin PickStrategy = "argmin"
	PickFirst  PickStrategy = "first"
)

// ScoreRule adds a fixed amount to a candidate's score when its condition
// evaluates true.
type ScoreRule struct {
	When Condition `json:"when"`
	Add  float64   `json:"add"`
}

// ConditionOp enumerates the comparison operators a Condition can use.
type ConditionOp string

const (
	OpEq       ConditionOp = "=="
	OpNeq      ConditionOp = "!="
	OpLt       ConditionOp = "<"
	OpLte      ConditionOp = "<="
	OpGt       ConditionOp = ">"
	OpGte      ConditionOp = ">="
	OpIn       ConditionOp = "in"
	OpNotIn    ConditionOp = "not_in"
	OpContains ConditionOp = "contains"
)

// Condition is a single predicate evaluated against a candidate record's
// field.
type Condition struct {
	Field string      `json:"field"`
	Op    ConditionOp `json:"op"`
	Value any         `json:"value"`
}

// ParseVersionSuffix returns the integer suffix of a `vNNN` version string, e.g. 3 for
// "v3". Returns an error if the string does not have that shape.
func ParseVersionSuffix(v string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(v, "v%d", &n); err != nil {
		return 0, fmt.Errorf("malformed recipe version %q: %w", v, err)
	}
	return n, nil
}

// NextVersion returns the next monotonic `vNNN` version string after v.
func NextVersion(v string) (string, error) {
	n, err := ParseVersionSuffix(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("v%d", n+1), nil
}
