package client

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/searchclient/internal/enginetest"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/bulk"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/bulkable"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/cache"
	clienterrors "github.com/Adithya-Monish-Kumar-K/searchclient/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/query"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/reply"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/request"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/transport"
)

const (
	testIndex = "test_index"
	testType  = "test_type"
)

func newTestClient(t *testing.T, opts ...Option) (*Client, *enginetest.Server) {
	t.Helper()
	srv := enginetest.NewServer(t)
	tr, err := transport.NewHTTP(transport.HTTPConfig{
		URL:   srv.URL,
		Retry: resilience.Backoff{Attempts: 1},
	})
	require.NoError(t, err)
	return New(tr, opts...), srv
}

type descriptionDoc struct {
	Description []string `json:"description"`
}

func searchTotal(t *testing.T, c *Client) int64 {
	t.Helper()
	ctx := context.Background()
	_, err := c.Quest(ctx, request.NewRefresh(testIndex))
	require.NoError(t, err)
	res, err := Expect[reply.Search](ctx, c, request.NewSearch(testIndex, testType))
	require.NoError(t, err)
	return res.Hits.Total.Value
}

func TestScriptUpdateOfMissingDocumentFails(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	_, err := c.Quest(ctx, request.NewCreateIndex(testIndex))
	require.NoError(t, err)

	_, err = c.Quest(ctx, bulkable.NewUpdateDocumentScript(testIndex, testType, "1", "ctx._source.n = 1", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, clienterrors.ErrEngine)
	assert.ErrorIs(t, err, clienterrors.ErrNotFound)

	var ee *clienterrors.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "document_missing_exception", ee.Type)
}

func TestUpsertThenScriptAppend(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.Quest(ctx, bulkable.NewIndexDocument(testIndex, testType, "1", map[string]any{"description": []string{"first"}}, false))
	require.NoError(t, err)

	upsert := bulkable.NewUpsertDocumentScript(testIndex, testType, "2", "", map[string]any{},
		map[string]any{"description": []string{"Es horchata"}})
	up, err := Expect[reply.Update](ctx, c, upsert)
	require.NoError(t, err)
	assert.Equal(t, "2", up.ID)
	assert.Equal(t, int64(2), searchTotal(t, c))

	appendScript := bulkable.NewUpdateDocumentScript(testIndex, testType, "2",
		"ctx._source.description += new_desc", map[string]any{"new_desc": "¡Sí, es final!"})
	_, err = c.Quest(ctx, appendScript)
	require.NoError(t, err)

	got, err := Expect[reply.Get](ctx, c, request.NewGetDocument(testIndex, testType, "2"))
	require.NoError(t, err)
	require.True(t, got.Found)
	var doc descriptionDoc
	require.NoError(t, got.SourceAs(&doc))
	assert.Equal(t, descriptionDoc{Description: []string{"Es horchata", "¡Sí, es final!"}}, doc)
	assert.Equal(t, int64(2), searchTotal(t, c))
}

func TestBulkUpsertThenScriptAppend(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	res, err := c.Bulk(ctx,
		bulkable.NewIndexDocument(testIndex, testType, "1", map[string]any{"description": []string{"one"}}, false),
		bulkable.NewIndexDocument(testIndex, testType, "2", map[string]any{"description": []string{"two"}}, false),
		bulkable.NewUpsertDocumentScript(testIndex, testType, "3", "", map[string]any{},
			map[string]any{"description": []string{"Es horchata"}}),
	)
	require.NoError(t, err)
	assert.False(t, res.Errors)
	require.Len(t, res.Items, 3)
	assert.Equal(t, "update", res.Items[2].Verb)
	assert.Equal(t, "3", res.Items[2].ID)
	assert.Equal(t, int64(3), searchTotal(t, c))

	res, err = c.Bulk(ctx, bulkable.NewUpdateDocumentScript(testIndex, testType, "3",
		"ctx._source.description += new_desc", map[string]any{"new_desc": "¡Sí, es final!"}))
	require.NoError(t, err)
	assert.Empty(t, res.Failures())

	got, err := Expect[reply.Get](ctx, c, request.NewGetDocument(testIndex, testType, "3"))
	require.NoError(t, err)
	var doc descriptionDoc
	require.NoError(t, got.SourceAs(&doc))
	assert.Equal(t, []string{"Es horchata", "¡Sí, es final!"}, doc.Description)
	assert.Equal(t, int64(3), searchTotal(t, c))
}

func TestBulkReportsItemFailures(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	res, err := c.Bulk(ctx,
		bulkable.NewIndexDocument(testIndex, "", "1", map[string]any{"n": 1}, true),
		bulkable.NewIndexDocument(testIndex, "", "1", map[string]any{"n": 2}, true),
		bulkable.NewDeleteDocument(testIndex, "", "missing"),
		bulkable.NewUpdateDocument(testIndex, "", "nope", map[string]any{"n": 3}, false, 0),
	)
	require.NoError(t, err)
	assert.True(t, res.Errors)

	failures := res.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, 1, failures[0].Position)
	assert.Equal(t, 409, failures[0].Item.Status)
	assert.Equal(t, 3, failures[1].Position)
	assert.Equal(t, "document_missing_exception", failures[1].Item.Error.Type)
	assert.Equal(t, map[string]any{"n": float64(1)}, srv.Source(testIndex, "1"))
}

func TestBulkRequestWithDefaults(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	req := bulk.NewRequest(
		&bulkable.IndexDocument{ID: "a", Document: map[string]any{"x": 1}},
		&bulkable.UpdateDocument{ID: "a", Document: map[string]any{"y": 2}},
		bulkable.NewIndexDocument("elsewhere", "", "b", map[string]any{"x": 3}, false),
	)
	req.Index, req.Type = testIndex, testType
	req.Refresh = bulk.RefreshTrue
	res, err := Expect[reply.Bulk](ctx, c, req)
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	assert.False(t, res.Errors)
	assert.Equal(t, testIndex, res.Items[0].Index)
	assert.Equal(t, "elsewhere", res.Items[2].Index)

	assert.Equal(t, int64(1), searchTotal(t, c))
	assert.Equal(t, map[string]any{"x": float64(1), "y": float64(2)}, srv.Source(testIndex, "a"))

	reqs := srv.Requests()
	assert.Equal(t, "/test_index/test_type/_bulk", reqs[0].Path)
	assert.Equal(t, request.ContentTypeNDJSON, reqs[0].ContentType)
}

func TestGetAndDeleteMissingDocument(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	_, err := c.Quest(ctx, request.NewCreateIndex(testIndex))
	require.NoError(t, err)

	got, err := Expect[reply.Get](ctx, c, request.NewGetDocument(testIndex, testType, "404"))
	require.NoError(t, err)
	assert.False(t, got.Found)

	del, err := Expect[reply.Delete](ctx, c, bulkable.NewDeleteDocument(testIndex, testType, "404"))
	require.NoError(t, err)
	assert.False(t, del.Found)

	_, err = Expect[reply.Get](ctx, c, request.NewGetDocument("no_such_index", "", "1"))
	assert.ErrorIs(t, err, clienterrors.ErrNotFound)
}

func TestIndexAdministration(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	ex, err := Expect[reply.Exists](ctx, c, request.NewIndexExists("books-v1"))
	require.NoError(t, err)
	assert.False(t, ex.Exists)

	ack, err := Expect[reply.Acknowledged](ctx, c, &request.CreateIndex{
		Index:    "books-v1",
		Settings: map[string]any{"number_of_shards": 1},
	})
	require.NoError(t, err)
	assert.True(t, ack.Acknowledged)

	_, err = c.Quest(ctx, request.NewCreateIndex("books-v1"))
	var ee *clienterrors.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "resource_already_exists_exception", ee.Type)

	_, err = c.Quest(ctx, request.NewPutMapping("books-v1", "book",
		map[string]any{"properties": map[string]any{"title": map[string]any{"type": "text"}}}))
	require.NoError(t, err)

	_, err = c.Quest(ctx, request.NewAddAlias("books-v1", "books"))
	require.NoError(t, err)
	_, err = c.Quest(ctx, bulkable.NewIndexDocument("books", "book", "1", map[string]any{"title": "Dune"}, false))
	require.NoError(t, err)

	got, err := Expect[reply.Get](ctx, c, request.NewGetDocument("books", "book", "1"))
	require.NoError(t, err)
	assert.Equal(t, "books-v1", got.Index)

	_, err = c.Quest(ctx, request.NewDeleteAlias("books-v1", "books"))
	require.NoError(t, err)
	_, err = c.Quest(ctx, request.NewDeleteIndex("books-v1"))
	require.NoError(t, err)

	ex, err = Expect[reply.Exists](ctx, c, request.NewIndexExists("books-v1"))
	require.NoError(t, err)
	assert.False(t, ex.Exists)
}

func TestSearchWithQuery(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	_, err := c.Bulk(ctx,
		bulkable.NewIndexDocument(testIndex, testType, "1", map[string]any{"title": "Dune Messiah"}, false),
		bulkable.NewIndexDocument(testIndex, testType, "2", map[string]any{"title": "Emma"}, false),
	)
	require.NoError(t, err)
	_, err = c.Quest(ctx, request.NewRefresh(""))
	require.NoError(t, err)

	res, err := Expect[reply.Search](ctx, c, request.NewSearch(testIndex, "").WithQuery(query.NewMatch("title", "dune")))
	require.NoError(t, err)
	require.Len(t, res.Hits.Hits, 1)
	assert.Equal(t, "1", res.Hits.Hits[0].ID)
}

func TestExpectRejectsWrongReplyType(t *testing.T) {
	c, srv := newTestClient(t)
	_, err := Expect[reply.Search](context.Background(), c, request.NewGetDocument(testIndex, "", "1"))
	assert.ErrorIs(t, err, clienterrors.ErrSchemaMismatch)
	assert.Empty(t, srv.Requests())
}

func TestInvalidActionIsNotSent(t *testing.T) {
	c, srv := newTestClient(t)
	_, err := c.Bulk(context.Background(), bulkable.NewDeleteDocument("", "", "1"))
	assert.ErrorIs(t, err, clienterrors.ErrInvalidInput)

	_, err = c.Bulk(context.Background())
	assert.ErrorIs(t, err, clienterrors.ErrInvalidInput)
	assert.Empty(t, srv.Requests())
}

func TestNonJSONFailureIsTransportError(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Respond("GET", "/test_index/test_type/1", 500, "<html>oops</html>")

	_, err := c.Quest(context.Background(), request.NewGetDocument(testIndex, testType, "1"))
	var te *clienterrors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 500, te.Status)
	assert.Equal(t, "<html>oops</html>", string(te.Body))
	assert.NotErrorIs(t, err, clienterrors.ErrEngine)
}

func TestErrorBodyWithSuccessStatusIsEngineError(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Respond("POST", "/_refresh", 200, `{"error":"boom","status":500}`)

	_, err := c.Quest(context.Background(), request.NewRefresh(""))
	var ee *clienterrors.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "boom", ee.Reason)
	assert.Equal(t, 500, ee.Status)
}

func TestUndecodableSuccessIsTransportError(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Respond("PUT", "/books", 200, `{"acknowledged":"maybe"}`)

	_, err := c.Quest(context.Background(), request.NewCreateIndex("books"))
	assert.ErrorIs(t, err, clienterrors.ErrTransport)
	assert.ErrorIs(t, err, clienterrors.ErrSchemaMismatch)
}

func TestPing(t *testing.T) {
	c, srv := newTestClient(t)
	require.NoError(t, c.Ping(context.Background()))

	srv.Respond("HEAD", "/", 401, "")
	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, clienterrors.ErrTransport)
}

func TestCachedReads(t *testing.T) {
	store := enginetest.NewMemStore()
	rc := cache.New(store, time.Minute, nil)
	c, srv := newTestClient(t, WithCache(rc))
	ctx := context.Background()

	_, err := c.Bulk(ctx, bulkable.NewIndexDocument(testIndex, testType, "1", map[string]any{"n": 1}, false))
	require.NoError(t, err)
	_, err = c.Quest(ctx, request.NewRefresh(testIndex))
	require.NoError(t, err)

	searches := func() int {
		n := 0
		for _, r := range srv.Requests() {
			if r.Path == "/test_index/test_type/_search" {
				n++
			}
		}
		return n
	}

	for i := 0; i < 3; i++ {
		res, err := Expect[reply.Search](ctx, c, request.NewSearch(testIndex, testType))
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Hits.Total.Value)
	}
	assert.Equal(t, 1, searches())
	hits, _ := rc.Stats()
	assert.Positive(t, hits)

	_, err = c.Quest(ctx, bulkable.NewIndexDocument(testIndex, testType, "2", map[string]any{"n": 2}, false))
	require.NoError(t, err)
	assert.Equal(t, int64(2), searchTotal(t, c))
	assert.Equal(t, 2, searches())
}

func TestCacheSkipsFailures(t *testing.T) {
	store := enginetest.NewMemStore()
	c, srv := newTestClient(t, WithCache(cache.New(store, time.Minute, nil)))
	srv.Respond("GET", "/test_index/_doc/1", 503, "busy")

	_, err := c.Quest(context.Background(), request.NewGetDocument(testIndex, "", "1"))
	assert.ErrorIs(t, err, clienterrors.ErrTransport)
	assert.Zero(t, store.Len())
}

func TestCachedAliasReadSeesIndexWrite(t *testing.T) {
	c, _ := newTestClient(t, WithCache(cache.New(enginetest.NewMemStore(), time.Minute, nil)))
	ctx := context.Background()
	_, err := c.Quest(ctx, request.NewCreateIndex("books"))
	require.NoError(t, err)
	_, err = c.Quest(ctx, request.NewAddAlias("books", "library"))
	require.NoError(t, err)

	got, err := Expect[reply.Get](ctx, c, request.NewGetDocument("library", "", "1"))
	require.NoError(t, err)
	assert.False(t, got.Found)

	_, err = c.Quest(ctx, bulkable.NewIndexDocument("books", "", "1", map[string]any{"title": "Dune"}, false))
	require.NoError(t, err)

	got, err = Expect[reply.Get](ctx, c, request.NewGetDocument("library", "", "1"))
	require.NoError(t, err)
	assert.True(t, got.Found)
}

func TestMetricsRecorded(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c, _ := newTestClient(t, WithMetrics(m))
	ctx := context.Background()

	_, err := c.Bulk(ctx,
		bulkable.NewIndexDocument(testIndex, "", "1", map[string]any{}, true),
		bulkable.NewIndexDocument(testIndex, "", "1", map[string]any{}, true),
	)
	require.NoError(t, err)
	_, err = c.Quest(ctx, request.NewDeleteIndex("nope"))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("DELETE", "engine_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BulkActionsTotal.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BulkActionsTotal.WithLabelValues("create", "failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RequestsInFlight))
}

func TestDoDiscardsReplyWithNilTarget(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Do(context.Background(), request.NewCreateIndex(testIndex), nil))
}
