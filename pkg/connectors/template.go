package connectors

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_\.]+)\s*\}\}`)

// resolve replaces {{a.b.c}} placeholders in s from scope. Missing keys
// resolve to the empty string.
func resolve(s string, scope map[string]any) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		g := placeholderRe.FindStringSubmatch(m)
		if len(g) != 2 {
			return ""
		}
		v := lookup(scope, g[1])
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%v", v)
	})
}

// resolveValue walks maps and slices. A string that is exactly one
// placeholder keeps the referenced value's type.
func resolveValue(v any, scope map[string]any) any {
	switch t := v.(type) {
	case string:
		if g := placeholderRe.FindStringSubmatch(strings.TrimSpace(t)); g != nil && g[0] == strings.TrimSpace(t) {
			return lookup(scope, g[1])
		}
		return resolve(t, scope)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = resolveValue(vv, scope)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = resolveValue(vv, scope)
		}
		return out
	}
	return v
}

func lookup(scope map[string]any, path string) any {
	cur := any(scope)
	for _, seg := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case map[string]any:
			cur = m[seg]
		case map[string]string:
			cur = m[seg]
		default:
			return nil
		}
	}
	return cur
}
