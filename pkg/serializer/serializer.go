// Package serializer is the JSON layer shared by requests, bulk actions and
// replies. It wraps goccy/go-json for encoding and decoding, tidwall/pretty
// for layout, and converts decoder failures into the client's typed errors.
package serializer

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"reflect"

	"github.com/goccy/go-json"
	"github.com/tidwall/pretty"

	clienterrors "github.com/Adithya-Monish-Kumar-K/searchclient/pkg/errors"
)

// Inclusion controls which object members survive encoding.
type Inclusion int

const (
	// IncludeAll emits every member the value's tags produce.
	IncludeAll Inclusion = iota
	// OmitNull strips null object members at every depth.
	OmitNull
)

var prettyOptions = &pretty.Options{Width: 80, Prefix: "", Indent: "  "}

// Serializer encodes and decodes JSON under a field-inclusion policy.
// The zero value is ready to use and includes all fields.
type Serializer struct {
	inclusion Inclusion
	useNumber bool
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithInclusion sets the field-inclusion policy.
func WithInclusion(inc Inclusion) Option {
	return func(s *Serializer) { s.inclusion = inc }
}

// WithUseNumber decodes numbers held in interface values as json.Number
// instead of float64, keeping large integers exact.
func WithUseNumber() Option {
	return func(s *Serializer) { s.useNumber = true }
}

// New creates a Serializer.
func New(opts ...Option) *Serializer {
	s := &Serializer{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Default is the serializer used by the package-level helpers. It keeps
// null members so documents reach the engine exactly as built.
var Default = New()

// Encode renders v as compact JSON.
func (s *Serializer) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &clienterrors.SchemaMismatchError{Target: typeName(v), Err: err}
	}
	if s.inclusion == OmitNull {
		return s.stripNulls(data)
	}
	return data, nil
}

// EncodePretty renders v as indented JSON for diagnostics.
func (s *Serializer) EncodePretty(v any) ([]byte, error) {
	data, err := s.Encode(v)
	if err != nil {
		return nil, err
	}
	return pretty.PrettyOptions(data, prettyOptions), nil
}

// Decode parses data into target, which must be a non-nil pointer.
func (s *Serializer) Decode(data []byte, target any) error {
	if s.useNumber {
		return s.decodeNumbers(data, target)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return classify(data, target, err)
	}
	return nil
}

func (s *Serializer) decodeNumbers(data []byte, target any) error {
	// The streaming decoder stops after the first value, so trailing
	// garbage has to be caught up front.
	if !json.Valid(data) {
		var probe any
		return classify(data, target, json.Unmarshal(data, &probe))
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		return classify(data, target, err)
	}
	return nil
}

// DecodeAny parses data without a schema into maps, slices and primitives.
func (s *Serializer) DecodeAny(data []byte) (any, error) {
	var v any
	if err := s.Decode(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Exact decodes payloads whose numbers must survive a round trip
// unchanged, such as documents carried inside bulk actions.
var Exact = New(WithUseNumber())

func (s *Serializer) stripNulls(data []byte) ([]byte, error) {
	var tree any
	if err := Exact.Decode(data, &tree); err != nil {
		return nil, err
	}
	pruned, changed := prune(tree)
	if !changed {
		return data, nil
	}
	out, err := json.Marshal(pruned)
	if err != nil {
		return nil, &clienterrors.SchemaMismatchError{Target: "any", Err: err}
	}
	return out, nil
}

// prune removes null members from objects. Nulls inside arrays are kept
// because they are positional.
func prune(v any) (any, bool) {
	switch t := v.(type) {
	case map[string]any:
		changed := false
		for k, child := range t {
			if child == nil {
				delete(t, k)
				changed = true
				continue
			}
			next, c := prune(child)
			if c {
				t[k] = next
				changed = true
			}
		}
		return t, changed
	case []any:
		changed := false
		for i, child := range t {
			next, c := prune(child)
			if c {
				t[i] = next
				changed = true
			}
		}
		return t, changed
	default:
		return v, false
	}
}

// classify converts a decoder failure into DecodeError or
// SchemaMismatchError. Typed errors raised by nested UnmarshalJSON
// implementations pass through untouched.
func classify(data []byte, target any, err error) error {
	var (
		decErr     *clienterrors.DecodeError
		schemaErr  *clienterrors.SchemaMismatchError
		variantErr *clienterrors.UnknownVariantError
	)
	if errors.As(err, &decErr) || errors.As(err, &schemaErr) || errors.As(err, &variantErr) {
		return err
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return clienterrors.NewDecodeError(data, syntaxErr.Offset, err)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &clienterrors.SchemaMismatchError{
			Target: typeName(target),
			Field:  typeErr.Field,
			Offset: typeErr.Offset,
			Err:    err,
		}
	}
	var invalidErr *json.InvalidUnmarshalError
	if errors.As(err, &invalidErr) {
		return &clienterrors.SchemaMismatchError{Target: typeName(target), Err: err}
	}
	if !json.Valid(data) {
		return clienterrors.NewDecodeError(data, 0, err)
	}
	return &clienterrors.SchemaMismatchError{Target: typeName(target), Err: err}
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}

// Encode renders v with the Default serializer.
func Encode(v any) ([]byte, error) { return Default.Encode(v) }

// EncodePretty renders v indented with the Default serializer.
func EncodePretty(v any) ([]byte, error) { return Default.EncodePretty(v) }

// Decode parses data into target with the Default serializer.
func Decode(data []byte, target any) error { return Default.Decode(data, target) }

// DecodeAny parses data schema-free with the Default serializer.
func DecodeAny(data []byte) (any, error) { return Default.DecodeAny(data) }

// MustEncode is Encode for values known to be serialisable, such as
// literals in tests and fixed request bodies.
func MustEncode(v any) []byte {
	data, err := Encode(v)
	if err != nil {
		panic(fmt.Sprintf("serializer: %v", err))
	}
	return data
}

// Compact strips insignificant whitespace so the document fits on one line.
func Compact(data []byte) []byte {
	return pretty.Ugly(data)
}

// Valid reports whether data is well-formed JSON.
func Valid(data []byte) bool {
	return json.Valid(data)
}

// Equal reports whether a and b have the same JSON representation,
// ignoring member order and numeric spelling. Numbers are compared by
// their exact decimal value, so 1 and 1.0 match but integers beyond
// float64 precision do not collapse. Values that fail to encode are never
// equal.
func Equal(a, b any) bool {
	ca, err := canonical(a)
	if err != nil {
		return false
	}
	cb, err := canonical(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(ca, cb)
}

func canonical(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := Exact.Decode(data, &out); err != nil {
		return nil, err
	}
	return normalizeNumbers(out), nil
}

// numberPrec is wide enough to hold any int64 and float64 literal exactly.
const numberPrec = 1024

// exactNumber is a number in canonical decimal form; it never compares
// equal to a string.
type exactNumber string

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = normalizeNumbers(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = normalizeNumbers(child)
		}
		return t
	case json.Number:
		f, _, err := big.ParseFloat(string(t), 10, numberPrec, big.ToNearestEven)
		if err != nil {
			return exactNumber(t)
		}
		return exactNumber(f.Text('g', -1))
	default:
		return v
	}
}
