package bulkable

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/goccy/go-json"

	clienterrors "github.com/Adithya-Monish-Kumar-K/searchclient/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/serializer"
)

// registry maps each discriminator to a constructor of an empty variant.
// It is written only here and read without locks.
var registry = map[Kind]func() Action{
	KindIndex:        func() Action { return &IndexDocument{} },
	KindUpdate:       func() Action { return &UpdateDocument{} },
	KindUpdateScript: func() Action { return &UpdateDocumentScript{} },
	KindDelete:       func() Action { return &DeleteDocument{} },
}

func init() {
	if err := verifyRegistry(); err != nil {
		panic(err)
	}
}

// verifyRegistry checks that the registry and Kinds describe the same set
// of variants and that every constructor reports its own key.
func verifyRegistry() error {
	kinds := Kinds()
	if len(kinds) != len(registry) {
		return fmt.Errorf("bulkable registry has %d variants, Kinds declares %d", len(registry), len(kinds))
	}
	for _, k := range kinds {
		newFn, ok := registry[k]
		if !ok {
			return fmt.Errorf("bulkable kind %q is not registered", k)
		}
		if got := newFn().Kind(); got != k {
			return fmt.Errorf("bulkable kind %q registered with a %q constructor", k, got)
		}
	}
	return nil
}

// Registered returns the registered discriminators in declaration order.
func Registered() []Kind {
	out := make([]Kind, 0, len(registry))
	for _, k := range Kinds() {
		if _, ok := registry[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// New returns an empty action for the discriminator.
func New(kind Kind) (Action, error) {
	newFn, ok := registry[kind]
	if !ok {
		return nil, &clienterrors.UnknownVariantError{Discriminator: string(kind)}
	}
	return newFn(), nil
}

// Marshal encodes a as {"<kind>": {<fields>}}.
func Marshal(a Action) ([]byte, error) {
	return serializer.Encode(wrapped{a})
}

// Unmarshal decodes the polymorphic form back into a concrete action.
// Numbers inside documents, params and upserts decode as json.Number so
// integers of any size come back unchanged.
func Unmarshal(data []byte) (Action, error) {
	var root map[string]json.RawMessage
	if err := serializer.Decode(data, &root); err != nil {
		return nil, err
	}
	if len(root) != 1 {
		keys := make([]string, 0, len(root))
		for k := range root {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		return nil, &clienterrors.SchemaMismatchError{
			Target: "bulkable.Action",
			Err:    fmt.Errorf("want exactly one discriminator key, got %v", keys),
		}
	}
	for key, inner := range root {
		a, err := New(Kind(key))
		if err != nil {
			return nil, err
		}
		if trimmed := bytes.TrimSpace(inner); len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, &clienterrors.SchemaMismatchError{
				Target: "bulkable.Action",
				Field:  key,
				Err:    fmt.Errorf("%s action must be an object, got %s", key, trimmed),
			}
		}
		if err := serializer.Exact.Decode(inner, a); err != nil {
			return nil, err
		}
		return a, nil
	}
	panic("unreachable")
}

// MarshalList encodes actions as a JSON array of polymorphic objects.
func MarshalList(actions []Action) ([]byte, error) {
	return serializer.Encode(List(actions))
}

// UnmarshalList decodes a JSON array of polymorphic objects, preserving
// order.
func UnmarshalList(data []byte) ([]Action, error) {
	var raw []json.RawMessage
	if err := serializer.Decode(data, &raw); err != nil {
		return nil, err
	}
	out := make([]Action, 0, len(raw))
	for i, item := range raw {
		a, err := Unmarshal(item)
		if err != nil {
			return nil, fmt.Errorf("decoding action %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// EqualLists compares two action sequences element-wise and in order.
func EqualLists(a, b []Action) bool {
	return slices.EqualFunc(a, b, func(x, y Action) bool { return x.Equal(y) })
}

// List is an ordered sequence of actions that encodes in the polymorphic
// form, so it can be embedded in larger messages.
type List []Action

func (l List) MarshalJSON() ([]byte, error) {
	items := make([]wrapped, len(l))
	for i, a := range l {
		items[i] = wrapped{a}
	}
	return json.Marshal(items)
}

func (l *List) UnmarshalJSON(data []byte) error {
	actions, err := UnmarshalList(data)
	if err != nil {
		return err
	}
	*l = actions
	return nil
}

type wrapped struct {
	Action
}

func (w wrapped) MarshalJSON() ([]byte, error) {
	if w.Action == nil {
		return nil, &clienterrors.SchemaMismatchError{Target: "bulkable.Action", Err: fmt.Errorf("nil action")}
	}
	return json.Marshal(map[Kind]any{w.Action.Kind(): w.Action})
}
