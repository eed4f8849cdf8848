// Package policy evaluates a recipe.Policy over a list of candidate
// records: hard filters, additive scoring, then sort and tie-break.
package policy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/autoloom/loom/internal/recipe"
)

// Candidate is a single record a Policy ranks. Field values are compared
// by Condition using Go's native comparison and numeric coercion rules.
type Candidate map[string]any

// Evaluate applies a Policy's hard filters, scoring rules, sort, and
// tie-break to a list of candidates. Returns nil if no candidate survives
// the hard filters.
func Evaluate(candidates []Candidate, p recipe.Policy) Candidate {
	survivors := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if passesHard(c, p.Hard) {
			survivors = append(survivors, c)
		}
	}
	if len(survivors) == 0 {
		return nil
	}

	scores := make([]float64, len(survivors))
	for i, c := range survivors {
		scores[i] = score(c, p.Score)
	}

	order := make([]int, len(survivors))
	for i := range order {
		order[i] = i
	}

	switch p.Pick {
	case recipe.PickArgmax:
		sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	case recipe.PickArgmin:
		sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })
	case recipe.PickFirst:
		// Input order preserved.
	}

	if p.Pick == recipe.PickFirst {
		return survivors[order[0]]
	}

	topScore := scores[order[0]]
	tied := []int{order[0]}
	for _, idx := range order[1:] {
		if scores[idx] == topScore {
			tied = append(tied, idx)
		}
	}
	if len(tied) == 1 {
		return survivors[tied[0]]
	}

	winner := breakTies(survivors, tied, p.TieBreak)
	return survivors[winner]
}

func passesHard(c Candidate, hard []recipe.Condition) bool {
	for _, cond := range hard {
		if !evalCondition(c, cond) {
			return false
		}
	}
	return true
}

func score(c Candidate, rules []recipe.ScoreRule) float64 {
	var total float64
	for _, rule := range rules {
		if evalCondition(c, rule.When) {
			total += rule.Add
		}
	}
	return total
}

// breakTies applies tie_break fields left-to-right over the tied indices
// (positions into all, not candidates) until one remains or the fields are
// exhausted, in which case the first tied candidate wins.
func breakTies(all []Candidate, tied []int, tieBreak []string) int {
	remaining := tied
	for _, field := range tieBreak {
		if len(remaining) <= 1 {
			break
		}
		name, desc := parseTieBreakField(field)
		remaining = sortTiedByField(all, remaining, name, desc)
	}
	return remaining[0]
}

func parseTieBreakField(field string) (name string, desc bool) {
	if strings.HasSuffix(field, "_desc") {
		return strings.TrimSuffix(field, "_desc"), true
	}
	if strings.HasSuffix(field, "_asc") {
		return strings.TrimSuffix(field, "_asc"), false
	}
	return field, false
}

// sortTiedByField orders the tied indices by field value and returns the
// subset still tied at the best value.
func sortTiedByField(all []Candidate, tied []int, field string, desc bool) []int {
	type scored struct {
		idx  int
		num  float64
		str  string
		isNum bool
	}
	items := make([]scored, len(tied))
	for i, idx := range tied {
		v := all[idx][field]
		if n, ok := toNumber(v); ok {
			items[i] = scored{idx: idx, num: n, isNum: true}
		} else {
			items[i] = scored{idx: idx, str: fmt.Sprintf("%v", v)}
		}
	}

	less := func(a, b scored) bool {
		if a.isNum && b.isNum {
			if desc {
				return a.num > b.num
			}
			return a.num < b.num
		}
		if desc {
			return a.str > b.str
		}
		return a.str < b.str
	}

	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })

	best := items[0]
	out := []int{best.idx}
	for _, it := range items[1:] {
		if best.isNum && it.isNum && it.num == best.num {
			out = append(out, it.idx)
		} else if !best.isNum && !it.isNum && it.str == best.str {
			out = append(out, it.idx)
		}
	}
	return out
}

func evalCondition(c Candidate, cond recipe.Condition) bool {
	fieldVal := c[cond.Field]
	switch cond.Op {
	case recipe.OpEq:
		return deepEqual(fieldVal, cond.Value)
	case recipe.OpNeq:
		return !deepEqual(fieldVal, cond.Value)
	case recipe.OpLt, recipe.OpLte, recipe.OpGt, recipe.OpGte:
		a, aok := toNumber(fieldVal)
		b, bok := toNumber(cond.Value)
		if !aok || !bok {
			return false
		}
		switch cond.Op {
		case recipe.OpLt:
			return a < b
		case recipe.OpLte:
			return a <= b
		case recipe.OpGt:
			return a > b
		case recipe.OpGte:
			return a >= b
		}
	case recipe.OpIn:
		return memberOf(fieldVal, cond.Value)
	case recipe.OpNotIn:
		return !memberOf(fieldVal, cond.Value)
	case recipe.OpContains:
		fs, fok := fieldVal.(string)
		vs, vok := cond.Value.(string)
		return fok && vok && strings.Contains(fs, vs)
	}
	return false
}

func deepEqual(a, b any) bool {
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		return an == bn
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func memberOf(v any, list any) bool {
	items, ok := list.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if deepEqual(v, item) {
			return true
		}
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
