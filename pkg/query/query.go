// Package query holds the handful of query values the search and count
// requests need. Each query is a plain value that renders its own body and
// names its type; Wrap puts the two together as {"<type>": <body>}.
package query

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Query is a search query body tagged with its type name.
type Query interface {
	QueryType() string
	json.Marshaler
}

// Wrap renders q in the engine's {"<type>": <body>} form.
func Wrap(q Query) map[string]Query {
	return map[string]Query{q.QueryType(): q}
}

// Field is one entry of an ordered query object.
type Field struct {
	Name  string
	Value any
}

// Fields is an ordered key/value object. Order is preserved on encode so a
// query renders the way it was built.
type Fields []Field

// Set replaces the value for name or appends a new entry.
func (f Fields) Set(name string, value any) Fields {
	for i := range f {
		if f[i].Name == name {
			f[i].Value = value
			return f
		}
	}
	return append(f, Field{Name: name, Value: value})
}

// Get returns the value for name.
func (f Fields) Get(name string) (any, bool) {
	for _, fld := range f {
		if fld.Name == name {
			return fld.Value, true
		}
	}
	return nil, false
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fld := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(fld.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(fld.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding query field %q: %w", fld.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Match is a full-text match query over one or more fields.
type Match struct {
	Fields Fields
}

// NewMatch creates a match query on a single field.
func NewMatch(field string, subquery any) *Match {
	return &Match{Fields: Fields{{Name: field, Value: subquery}}}
}

// AddField adds or replaces a field and returns the query for chaining.
func (m *Match) AddField(field string, subquery any) *Match {
	m.Fields = m.Fields.Set(field, subquery)
	return m
}

func (m *Match) QueryType() string { return "match" }

func (m *Match) MarshalJSON() ([]byte, error) { return m.Fields.MarshalJSON() }

// Term is an exact-value query.
type Term struct {
	Field string
	Value any
}

func NewTerm(field string, value any) *Term {
	return &Term{Field: field, Value: value}
}

func (t *Term) QueryType() string { return "term" }

func (t *Term) MarshalJSON() ([]byte, error) {
	return Fields{{Name: t.Field, Value: t.Value}}.MarshalJSON()
}

// MatchAll matches every document.
type MatchAll struct{}

func (MatchAll) QueryType() string { return "match_all" }

func (MatchAll) MarshalJSON() ([]byte, error) { return []byte("{}"), nil }
