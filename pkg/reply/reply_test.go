package reply

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalBothForms(t *testing.T) {
	tests := []struct {
		in   string
		want Total
	}{
		{`{"total":5}`, Total{Value: 5, Relation: "eq"}},
		{`{"total":{"value":7,"relation":"gte"}}`, Total{Value: 7, Relation: "gte"}},
		{`{"total":null}`, Total{}},
	}
	for _, tt := range tests {
		var h Hits
		require.NoError(t, json.Unmarshal([]byte(tt.in), &h), tt.in)
		assert.Equal(t, tt.want, h.Total, tt.in)
	}

	var h Hits
	assert.Error(t, json.Unmarshal([]byte(`{"total":"many"}`), &h))
}

func TestSearchHits(t *testing.T) {
	body := `{"took":3,"timed_out":false,"_shards":{"total":1,"successful":1,"failed":0},
		"hits":{"total":{"value":2,"relation":"eq"},"max_score":1.0,"hits":[
			{"_index":"books","_id":"1","_score":1.0,"_source":{"title":"Dune"}},
			{"_index":"books","_id":"2","_score":null,"_source":{"title":"Emma"}}]}}`
	var s Search
	require.NoError(t, json.Unmarshal([]byte(body), &s))
	assert.Equal(t, int64(2), s.Hits.Total.Value)
	require.Len(t, s.Hits.Hits, 2)
	assert.Nil(t, s.Hits.Hits[1].Score)

	var doc struct {
		Title string `json:"title"`
	}
	require.NoError(t, s.Hits.Hits[0].SourceAs(&doc))
	assert.Equal(t, "Dune", doc.Title)
}

func TestGetSourceAs(t *testing.T) {
	body := `{"_index":"i","_type":"t","_id":"1","_version":2,"found":true,
		"_source":{"description":["Es horchata","¡Sí, es final!"]}}`
	var g Get
	require.NoError(t, json.Unmarshal([]byte(body), &g))
	assert.True(t, g.Found)
	assert.Equal(t, int64(2), g.Version)

	var src struct {
		Description []string `json:"description"`
	}
	require.NoError(t, g.SourceAs(&src))
	assert.Equal(t, []string{"Es horchata", "¡Sí, es final!"}, src.Description)

	var missing Get
	require.NoError(t, json.Unmarshal([]byte(`{"_index":"i","_id":"9","found":false}`), &missing))
	assert.False(t, missing.Found)
	assert.Empty(t, missing.Source)
}

func TestBulkItemsAndFailures(t *testing.T) {
	body := `{"took":4,"errors":true,"items":[
		{"index":{"_index":"i","_id":"1","_version":1,"result":"created","status":201}},
		{"delete":{"_index":"i","_id":"2","result":"not_found","status":404}},
		{"update":{"_index":"i","_id":"3","status":404,
			"error":{"type":"document_missing_exception","reason":"[3]: document missing"}}},
		{"create":{"_index":"i","_id":"4","status":409,
			"error":{"type":"version_conflict_engine_exception","reason":"exists"}}}]}`
	var b Bulk
	require.NoError(t, json.Unmarshal([]byte(body), &b))
	require.Len(t, b.Items, 4)
	assert.Equal(t, "index", b.Items[0].Verb)
	assert.Equal(t, "created", b.Items[0].Result)
	assert.False(t, b.Items[1].Failed())

	failures := b.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, 2, failures[0].Position)
	assert.Equal(t, "document_missing_exception", failures[0].Item.Error.Type)
	assert.Equal(t, 3, failures[1].Position)
	assert.Equal(t, "create", failures[1].Item.Verb)
}

func TestBulkItemRejectsBadWrapper(t *testing.T) {
	var bi BulkItem
	assert.Error(t, json.Unmarshal([]byte(`{"index":{},"delete":{}}`), &bi))
	assert.Error(t, json.Unmarshal([]byte(`{"reindex":{}}`), &bi))
}

func TestBulkItemMarshal(t *testing.T) {
	bi := BulkItem{Verb: "update", Index: "i", ID: "1", Status: 200, Result: "updated"}
	data, err := json.Marshal(bi)
	require.NoError(t, err)
	assert.JSONEq(t, `{"update":{"_index":"i","_id":"1","result":"updated","status":200}}`, string(data))
}

func TestErrorBodyForms(t *testing.T) {
	var e Error
	require.NoError(t, json.Unmarshal([]byte(`{"error":"IndexMissingException[[x] missing]","status":404}`), &e))
	assert.Equal(t, "IndexMissingException[[x] missing]", e.Error.Reason)
	assert.Empty(t, e.Error.Type)

	e = Error{}
	require.NoError(t, json.Unmarshal([]byte(`{"error":{"type":"parsing_exception","reason":"bad",
		"root_cause":[{"type":"parsing_exception","reason":"bad"}],
		"caused_by":{"type":"x_content_parse_exception","reason":"line 1"}}}`), &e))
	assert.Equal(t, "parsing_exception", e.Error.Type)
	require.NotNil(t, e.Error.CausedBy)
	assert.Equal(t, "x_content_parse_exception", e.Error.CausedBy.Type)

	ee := e.EngineError(400, []byte("raw"))
	assert.Equal(t, 400, ee.Status)
	require.Len(t, ee.RootCause, 1)
	assert.Equal(t, "bad", ee.RootCause[0].Reason)
	assert.Equal(t, "raw", string(ee.Raw))
}

func TestExistsReceiveStatus(t *testing.T) {
	var e Exists
	e.ReceiveStatus(200)
	assert.True(t, e.Exists)
	e.ReceiveStatus(404)
	assert.False(t, e.Exists)
	assert.Equal(t, 404, e.Status)
}
