package bulk

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/bulkable"
	clienterrors "github.com/Adithya-Monish-Kumar-K/searchclient/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/request"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/serializer"
)

func TestEncodeLineOrder(t *testing.T) {
	actions := []bulkable.Action{
		bulkable.NewIndexDocument("books", "book", "1", map[string]any{"title": "Dune"}, false),
		bulkable.NewDeleteDocument("books", "book", "2"),
		bulkable.NewIndexDocument("books", "book", "3", map[string]any{"title": "Emma"}, true),
		bulkable.NewUpdateDocument("books", "book", "4", map[string]any{"year": 1815}, true, 0),
	}
	body, err := Encode(actions)
	require.NoError(t, err)
	require.True(t, bytes.HasSuffix(body, []byte("\n")))

	lines := Lines(body)
	require.Len(t, lines, 7)
	want := []string{
		`{"index":{"_index":"books","_type":"book","_id":"1"}}`,
		`{"title":"Dune"}`,
		`{"delete":{"_index":"books","_type":"book","_id":"2"}}`,
		`{"create":{"_index":"books","_type":"book","_id":"3"}}`,
		`{"title":"Emma"}`,
		`{"update":{"_index":"books","_type":"book","_id":"4"}}`,
		`{"doc":{"year":1815},"doc_as_upsert":true}`,
	}
	for i := range want {
		assert.JSONEq(t, want[i], lines[i], "line %d", i)
	}
}

func TestEncodeUpsertSlot(t *testing.T) {
	a := bulkable.NewUpsertDocumentScript("i", "t", "1", "", map[string]any{}, map[string]any{"description": []string{"Es horchata"}})
	body, err := Encode([]bulkable.Action{a})
	require.NoError(t, err)

	lines := Lines(body)
	require.Len(t, lines, 2)
	var src map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &src))
	assert.Equal(t, "", src["script"])
	assert.Equal(t, map[string]any{"description": []any{"Es horchata"}}, src["upsert"])
	assert.NotContains(t, src, "doc")
	assert.NotContains(t, src, "params")
}

func TestEncodeScriptWithParams(t *testing.T) {
	a := bulkable.NewUpdateDocumentScript("i", "t", "1", "ctx._source.n += n", map[string]any{"n": 2})
	a.RetryOnConflict = 3
	body, err := Encode([]bulkable.Action{a})
	require.NoError(t, err)
	lines := Lines(body)
	assert.JSONEq(t, `{"update":{"_index":"i","_type":"t","_id":"1","retry_on_conflict":3}}`, lines[0])
	assert.JSONEq(t, `{"script":"ctx._source.n += n","params":{"n":2}}`, lines[1])
}

func TestEncodeCompactsRawBodies(t *testing.T) {
	doc := json.RawMessage("{\n  \"title\": \"multi\\nline\"\n}")
	body, err := Encode([]bulkable.Action{bulkable.NewIndexDocument("i", "", "1", doc, false)})
	require.NoError(t, err)
	lines := Lines(body)
	require.Len(t, lines, 2)
	assert.Equal(t, `{"title":"multi\nline"}`, lines[1])
}

func TestEncodeRejectsInvalid(t *testing.T) {
	_, err := Encode([]bulkable.Action{
		bulkable.NewDeleteDocument("i", "", "1"),
		bulkable.NewIndexDocument("", "", "2", map[string]any{}, false),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, clienterrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "bulk action 1")

	_, err = Encode([]bulkable.Action{bulkable.NewIndexDocument("i", "", "1", json.RawMessage(`{"a":`), false)})
	assert.ErrorIs(t, err, clienterrors.ErrDecode)

	_, err = Encode([]bulkable.Action{nil})
	assert.ErrorIs(t, err, clienterrors.ErrInvalidInput)
}

func TestEncodeForDefaultIndex(t *testing.T) {
	actions := []bulkable.Action{
		&bulkable.IndexDocument{ID: "1", Document: map[string]any{"title": "Dune"}},
		bulkable.NewDeleteDocument("archive", "", "2"),
	}
	body, err := (*Encoder)(nil).EncodeFor("books", actions)
	require.NoError(t, err)
	lines := Lines(body)
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"index":{"_id":"1"}}`, lines[0])
	assert.JSONEq(t, `{"delete":{"_index":"archive","_id":"2"}}`, lines[2])

	_, err = Encode(actions)
	assert.ErrorIs(t, err, clienterrors.ErrInvalidInput)

	_, err = NewEncoder(nil).EncodeFor("books", []bulkable.Action{&bulkable.DeleteDocument{}})
	assert.ErrorIs(t, err, clienterrors.ErrInvalidInput)
}

func TestEncodeEmpty(t *testing.T) {
	body, err := Encode(nil)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestEncoderUsesSerializer(t *testing.T) {
	enc := NewEncoder(serializer.New(serializer.WithInclusion(serializer.OmitNull)))
	body, err := enc.Encode([]bulkable.Action{
		bulkable.NewIndexDocument("i", "", "1", map[string]any{"a": nil, "b": 1}, false),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":1}`, Lines(body)[1])
}

func TestRequest(t *testing.T) {
	r := NewRequest(bulkable.NewDeleteDocument("i", "", "1"))
	assert.Equal(t, "POST", r.Method())
	assert.Equal(t, "/_bulk", r.Path())

	r.Index, r.Type, r.Refresh = "books", "book", RefreshWaitFor
	assert.Equal(t, "/books/book/_bulk?refresh=wait_for", r.Path())

	_, ok := r.Payload()
	assert.False(t, ok)

	body, ct, err := r.RawBody()
	require.NoError(t, err)
	assert.Equal(t, request.ContentTypeNDJSON, ct)
	assert.True(t, strings.HasPrefix(string(body), `{"delete":`))

	_, _, err = NewRequest().RawBody()
	assert.ErrorIs(t, err, clienterrors.ErrInvalidInput)
}

func BenchmarkEncode(b *testing.B) {
	actions := make([]bulkable.Action, 0, 1000)
	for i := 0; i < 1000; i++ {
		actions = append(actions, bulkable.NewIndexDocument("bench", "", "", map[string]any{
			"title": "document", "n": i, "tags": []string{"a", "b"},
		}, false))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Encode(actions); err != nil {
			b.Fatal(err)
		}
	}
}
