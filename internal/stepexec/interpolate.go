package stepexec

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*vars\.([a-zA-Z0-9_.]+)\s*\}\}`)

// Interpolate walks args recursively, replacing {{vars.X}} placeholders in
// every string it finds. A string that is entirely one placeholder is
// replaced with the referenced value's native type (so a {{vars.count}}
// arg stays a number); a placeholder embedded in a larger string is
// rendered with fmt.Sprint. Non-string leaves (numbers, bools, nil) pass
// through unchanged. An unresolved path is left as-is.
func Interpolate(v any, vars map[string]any) any {
	switch val := v.(type) {
	case string:
		return interpolateString(val, vars)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Interpolate(item, vars)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Interpolate(item, vars)
		}
		return out
	default:
		return v
	}
}

func interpolateString(s string, vars map[string]any) any {
	if m := placeholderPattern.FindStringSubmatch(s); m != nil && m[0] == s {
		resolved, ok := lookupPath(vars, m[1])
		if ok {
			return resolved
		}
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		path := placeholderPattern.FindStringSubmatch(match)[1]
		resolved, ok := lookupPath(vars, path)
		if !ok {
			return match
		}
		return fmt.Sprint(resolved)
	})
}

func lookupPath(vars map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = vars
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
