package enginetest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/serializer"
)

// statement matches the one script form the fake understands:
//
//	ctx._source.<field>[.<field>...] (=|+=) <value>
//
// where value is params.<name>, a bare parameter name or a JSON literal.
var statement = regexp.MustCompile(`^ctx\._source\.([A-Za-z_][\w.]*)\s*(\+=|=)\s*(.+)$`)

func runScript(script string, src map[string]any, params map[string]any) error {
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		m := statement.FindStringSubmatch(stmt)
		if m == nil {
			return fmt.Errorf("unsupported statement %q", stmt)
		}
		value, err := operand(m[3], params)
		if err != nil {
			return err
		}
		parent, field := walk(src, strings.Split(m[1], "."))
		if parent == nil {
			return fmt.Errorf("cannot resolve ctx._source.%s", m[1])
		}
		if m[2] == "=" {
			parent[field] = value
			continue
		}
		sum, err := add(parent[field], value)
		if err != nil {
			return fmt.Errorf("ctx._source.%s: %w", m[1], err)
		}
		parent[field] = sum
	}
	return nil
}

func operand(expr string, params map[string]any) (any, error) {
	expr = strings.TrimSpace(expr)
	name := strings.TrimPrefix(expr, "params.")
	if v, ok := params[name]; ok {
		return v, nil
	}
	if v, err := serializer.DecodeAny([]byte(expr)); err == nil {
		return v, nil
	}
	return nil, fmt.Errorf("variable [%s] is not defined", expr)
}

// walk returns the map holding the last path element, creating
// intermediate objects as needed.
func walk(src map[string]any, path []string) (map[string]any, string) {
	cur := src
	for _, p := range path[:len(path)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			if cur[p] != nil {
				return nil, ""
			}
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	return cur, path[len(path)-1]
}

// add implements += for lists (append), strings (concatenate) and numbers.
func add(current, value any) (any, error) {
	switch cur := current.(type) {
	case nil:
		return value, nil
	case []any:
		if more, ok := value.([]any); ok {
			return append(cur, more...), nil
		}
		return append(cur, value), nil
	case string:
		return cur + fmt.Sprint(value), nil
	case float64:
		if v, ok := value.(float64); ok {
			return cur + v, nil
		}
	}
	return nil, fmt.Errorf("cannot add %T to %T", value, current)
}

// merge applies a partial document recursively, the way the engine merges
// an update's "doc".
func merge(dst, patch map[string]any) {
	for k, v := range patch {
		if pm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				merge(dm, pm)
				continue
			}
		}
		dst[k] = deepCopyValue(v)
	}
}

func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
