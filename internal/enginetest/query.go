package enginetest

import (
	"fmt"
	"reflect"
	"strings"
)

type matcher func(src map[string]any) bool

// compileQuery supports match_all, match and term, which is what the
// client's query package produces.
func compileQuery(q map[string]any) (matcher, error) {
	if len(q) == 0 {
		return func(map[string]any) bool { return true }, nil
	}
	if len(q) != 1 {
		return nil, fmt.Errorf("[query] malformed query, expected a single query type but found %d", len(q))
	}
	for typ, raw := range q {
		body, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("[%s] query malformed, no start_object", typ)
		}
		switch typ {
		case "match_all":
			return func(map[string]any) bool { return true }, nil
		case "match":
			return fieldMatcher(body, matchValue)
		case "term":
			return fieldMatcher(body, termValue)
		default:
			return nil, fmt.Errorf("unknown query [%s]", typ)
		}
	}
	panic("unreachable")
}

// fieldMatcher requires every field in body to match. A field's value may
// be given directly or as {"query"|"value": v}.
func fieldMatcher(body map[string]any, test func(doc, want any) bool) (matcher, error) {
	wants := make(map[string]any, len(body))
	for field, v := range body {
		if obj, ok := v.(map[string]any); ok {
			if q, ok := obj["query"]; ok {
				v = q
			} else if q, ok := obj["value"]; ok {
				v = q
			}
		}
		wants[field] = v
	}
	return func(src map[string]any) bool {
		for field, want := range wants {
			got, ok := lookup(src, field)
			if !ok || !test(got, want) {
				return false
			}
		}
		return true
	}, nil
}

func lookup(src map[string]any, field string) (any, bool) {
	var cur any = src
	for _, p := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// matchValue is a crude full-text match: any query token appears among
// the document value's lowercased tokens.
func matchValue(doc, want any) bool {
	if list, ok := doc.([]any); ok {
		for _, e := range list {
			if matchValue(e, want) {
				return true
			}
		}
		return false
	}
	ds, dok := doc.(string)
	ws, wok := want.(string)
	if !dok || !wok {
		return reflect.DeepEqual(doc, want)
	}
	tokens := strings.Fields(strings.ToLower(ds))
	for _, w := range strings.Fields(strings.ToLower(ws)) {
		for _, t := range tokens {
			if t == w {
				return true
			}
		}
	}
	return false
}

func termValue(doc, want any) bool {
	if list, ok := doc.([]any); ok {
		for _, e := range list {
			if reflect.DeepEqual(e, want) {
				return true
			}
		}
		return false
	}
	return reflect.DeepEqual(doc, want)
}
