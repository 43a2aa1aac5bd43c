package serializer

import (
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clienterrors "github.com/Adithya-Monish-Kumar-K/searchclient/pkg/errors"
)

type book struct {
	Title  string   `json:"title"`
	Year   int      `json:"year"`
	Tags   []string `json:"tags"`
	Rating *float64 `json:"rating"`
}

func TestRoundTripTyped(t *testing.T) {
	in := book{Title: "Dune", Year: 1965, Tags: []string{"sf", "classic"}}
	data, err := Encode(in)
	require.NoError(t, err)

	var out book
	require.NoError(t, Decode(data, &out))
	assert.Equal(t, in, out)
}

func TestDecodeAnyIsSchemaFree(t *testing.T) {
	v, err := DecodeAny([]byte(`{"a":[1,"two",{"three":null}],"b":true}`))
	require.NoError(t, err)

	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{float64(1), "two", map[string]any{"three": nil}}, m["a"])
	assert.Equal(t, true, m["b"])
}

func TestUseNumberKeepsLargeIntegers(t *testing.T) {
	s := New(WithUseNumber())
	v, err := s.DecodeAny([]byte(`{"id":9007199254740993}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), v.(map[string]any)["id"])

	_, err = s.DecodeAny([]byte(`{"id":1} trailing`))
	require.ErrorIs(t, err, clienterrors.ErrDecode)
}

func TestMalformedInputIsDecodeError(t *testing.T) {
	data := []byte(`{"title":"Dune","year":}`)
	var out book
	err := Decode(data, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, clienterrors.ErrDecode)

	var de *clienterrors.DecodeError
	require.True(t, errors.As(err, &de))
	assert.Positive(t, de.Offset)
	assert.NotEmpty(t, de.Snippet)
}

func TestShapeMismatchIsSchemaMismatch(t *testing.T) {
	var out book
	err := Decode([]byte(`{"title":"Dune","year":"nineteen"}`), &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, clienterrors.ErrSchemaMismatch)
	assert.NotErrorIs(t, err, clienterrors.ErrDecode)

	var se *clienterrors.SchemaMismatchError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Target, "book")
}

func TestNonPointerTargetIsSchemaMismatch(t *testing.T) {
	var out book
	err := Decode([]byte(`{}`), out)
	assert.ErrorIs(t, err, clienterrors.ErrSchemaMismatch)
}

func TestEncodeUnsupportedValue(t *testing.T) {
	_, err := Encode(map[string]any{"ch": make(chan int)})
	assert.ErrorIs(t, err, clienterrors.ErrSchemaMismatch)
}

func TestOmitNull(t *testing.T) {
	s := New(WithInclusion(OmitNull))
	data, err := s.Encode(map[string]any{
		"a": nil,
		"b": map[string]any{"c": nil, "d": 1},
		"e": []any{nil, 2},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":{"d":1},"e":[null,2]}`, string(data))

	data, err = Encode(book{Title: "x"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rating":null`)
}

func TestEncodePretty(t *testing.T) {
	data, err := EncodePretty(map[string]any{"a": []int{1, 2}})
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "\n  "), string(data))
	assert.Equal(t, `{"a":[1,2]}`, string(Compact(data)))
}

func TestEqual(t *testing.T) {
	assert.False(t, Equal(map[string]any{"a": 1, "b": "x"}, map[string]int{"a": 1}))
	assert.True(t, Equal(map[string]any{"a": 1, "b": []any{"x"}}, struct {
		B []string `json:"b"`
		A float64  `json:"a"`
	}{B: []string{"x"}, A: 1}))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(map[string]any{"a": nil}, map[string]any{}))
	assert.False(t, Equal(make(chan int), make(chan int)))
}

func TestEqualKeepsIntegerPrecision(t *testing.T) {
	assert.False(t, Equal(map[string]any{"n": int64(9007199254740993)}, map[string]any{"n": int64(9007199254740992)}))
	assert.True(t, Equal(map[string]any{"n": int64(9007199254740993)}, map[string]any{"n": json.Number("9007199254740993")}))
	assert.True(t, Equal(json.RawMessage(`{"n":1.0}`), map[string]any{"n": 1}))
	assert.True(t, Equal(json.RawMessage(`{"n":1e2}`), map[string]any{"n": 100}))
	assert.False(t, Equal(map[string]any{"n": "1"}, map[string]any{"n": 1}))
}

func TestOmitNullKeepsLargeIntegers(t *testing.T) {
	s := New(WithInclusion(OmitNull))
	data, err := s.Encode(map[string]any{"id": uint64(18446744073709551615), "gone": nil})
	require.NoError(t, err)
	assert.Equal(t, `{"id":18446744073709551615}`, string(data))
}

func TestMustEncodePanics(t *testing.T) {
	assert.Panics(t, func() { MustEncode(make(chan int)) })
	assert.Equal(t, `[1,2]`, string(MustEncode([]int{1, 2})))
}
