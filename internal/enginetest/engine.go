// Package enginetest is an in-memory stand-in for the search engine's HTTP
// API, served through httptest. It implements the subset of the API the
// client speaks: index administration, aliases, single-document writes and
// reads, scripted updates, search, count, refresh and bulk.
//
// Like the real engine, gets are realtime while search and count only see
// documents as of the last refresh of their index.
package enginetest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/serializer"
)

// Recorded is a request as the engine received it.
type Recorded struct {
	Method      string
	Path        string
	Query       url.Values
	ContentType string
	Body        []byte
}

type canned struct {
	method string
	path   string
	status int
	body   string
}

type document struct {
	Type    string
	Source  map[string]any
	Version int64
}

type index struct {
	docs     map[string]*document
	visible  map[string]*document
	mappings map[string]any
}

func newIndex() *index {
	return &index{docs: map[string]*document{}, visible: map[string]*document{}, mappings: map[string]any{}}
}

// Engine is the fake engine. The zero value is not usable; use New or
// NewServer.
type Engine struct {
	mu       sync.Mutex
	indices  map[string]*index
	aliases  map[string]string
	canned   []canned
	requests []Recorded
	seq      int
}

// New creates an empty engine that can be mounted as an http.Handler.
func New() *Engine {
	return &Engine{indices: map[string]*index{}, aliases: map[string]string{}}
}

// Server is an Engine listening on a local httptest server.
type Server struct {
	*Engine
	URL string
}

// NewServer starts an engine closed at the end of the test.
func NewServer(tb testing.TB) *Server {
	tb.Helper()
	e := New()
	srv := httptest.NewServer(e)
	tb.Cleanup(srv.Close)
	return &Server{Engine: e, URL: srv.URL}
}

// Respond queues a canned answer for the next request matching method and
// path (path without query string). Canned answers are used once, in the
// order they were queued.
func (e *Engine) Respond(method, path string, status int, body string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.canned = append(e.canned, canned{method: method, path: path, status: status, body: body})
}

// Requests returns the requests received so far.
func (e *Engine) Requests() []Recorded {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Recorded(nil), e.requests...)
}

// Source returns the live source of a document, or nil.
func (e *Engine) Source(indexName, id string) map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.indices[e.resolve(indexName)]
	if idx == nil || idx.docs[id] == nil {
		return nil
	}
	return idx.docs[id].Source
}

func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("X-Elastic-Product", "Elasticsearch")

	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, Recorded{
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.Query(),
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
	})
	for i, c := range e.canned {
		if c.method == r.Method && c.path == r.URL.Path {
			e.canned = append(e.canned[:i], e.canned[i+1:]...)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(c.status)
			io.WriteString(w, c.body)
			return
		}
	}

	status, resp := e.route(r.Method, segments(r.URL), r.URL.Query(), body)
	if r.Method == http.MethodHead || resp == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(serializer.MustEncode(resp))
}

func segments(u *url.URL) []string {
	var out []string
	for _, raw := range strings.Split(u.EscapedPath(), "/") {
		if raw == "" {
			continue
		}
		s, err := url.PathUnescape(raw)
		if err != nil {
			s = raw
		}
		out = append(out, s)
	}
	return out
}

func (e *Engine) route(method string, s []string, q url.Values, body []byte) (int, any) {
	n := len(s)
	last := ""
	if n > 0 {
		last = s[n-1]
	}
	switch {
	case n == 0:
		return http.StatusOK, map[string]any{"name": "enginetest", "tagline": "You Know, for Search"}
	case last == "_bulk":
		var idx, typ string
		if n >= 2 {
			idx = s[0]
		}
		if n == 3 {
			typ = s[1]
		}
		return e.bulk(idx, typ, q, body)
	case last == "_refresh":
		if n == 1 {
			return e.refresh(nil)
		}
		return e.refresh(strings.Split(s[0], ","))
	case last == "_search" || last == "_count":
		var names []string
		if n >= 2 {
			names = strings.Split(s[0], ",")
		}
		return e.search(names, last == "_count", body)
	case n == 3 && s[1] == "_alias":
		return e.alias(method, s[0], s[2])
	case last == "_mapping" || (n >= 2 && s[1] == "_mapping"):
		return e.putMapping(s[0], body)
	case n == 1:
		return e.indexAdmin(method, s[0], body)
	case n == 2 && method == http.MethodPost:
		e.seq++
		return e.write(s[0], s[1], fmt.Sprintf("auto-%d", e.seq), false, q, body)
	case n == 3 && s[1] == "_update":
		return e.update(s[0], "_doc", s[2], body)
	case n == 3:
		return e.document(method, s[0], s[1], s[2], q, body)
	case n == 4 && last == "_update":
		return e.update(s[0], s[1], s[2], body)
	case n == 4 && last == "_create":
		return e.write(s[0], s[1], s[2], true, q, body)
	}
	return errorReply(http.StatusBadRequest, "illegal_argument_exception",
		fmt.Sprintf("no handler found for uri [/%s] and method [%s]", strings.Join(s, "/"), method))
}

func (e *Engine) resolve(name string) string {
	if target, ok := e.aliases[name]; ok {
		return target
	}
	return name
}

func (e *Engine) indexAdmin(method, name string, body []byte) (int, any) {
	name = e.resolve(name)
	_, exists := e.indices[name]
	switch method {
	case http.MethodHead:
		if exists {
			return http.StatusOK, nil
		}
		return http.StatusNotFound, nil
	case http.MethodPut:
		if exists {
			return errorReply(http.StatusBadRequest, "resource_already_exists_exception",
				fmt.Sprintf("index [%s] already exists", name))
		}
		if len(body) > 0 && !serializer.Valid(body) {
			return parseError(body)
		}
		e.indices[name] = newIndex()
		return http.StatusOK, map[string]any{"acknowledged": true, "index": name}
	case http.MethodDelete:
		if !exists {
			return indexMissing(name)
		}
		delete(e.indices, name)
		for alias, target := range e.aliases {
			if target == name {
				delete(e.aliases, alias)
			}
		}
		return http.StatusOK, map[string]any{"acknowledged": true}
	case http.MethodGet:
		if !exists {
			return indexMissing(name)
		}
		return http.StatusOK, map[string]any{name: map[string]any{"mappings": e.indices[name].mappings}}
	}
	return errorReply(http.StatusMethodNotAllowed, "illegal_argument_exception", "unsupported method "+method)
}

func (e *Engine) alias(method, indexName, alias string) (int, any) {
	if _, ok := e.indices[indexName]; !ok {
		return indexMissing(indexName)
	}
	switch method {
	case http.MethodPut, http.MethodPost:
		e.aliases[alias] = indexName
		return http.StatusOK, map[string]any{"acknowledged": true}
	case http.MethodDelete:
		if e.aliases[alias] != indexName {
			return errorReply(http.StatusNotFound, "aliases_not_found_exception", fmt.Sprintf("aliases [%s] missing", alias))
		}
		delete(e.aliases, alias)
		return http.StatusOK, map[string]any{"acknowledged": true}
	}
	return errorReply(http.StatusMethodNotAllowed, "illegal_argument_exception", "unsupported method "+method)
}

func (e *Engine) putMapping(indexName string, body []byte) (int, any) {
	idx := e.indices[e.resolve(indexName)]
	if idx == nil {
		return indexMissing(indexName)
	}
	var m map[string]any
	if err := serializer.Decode(body, &m); err != nil {
		return parseError(body)
	}
	for k, v := range m {
		idx.mappings[k] = v
	}
	return http.StatusOK, map[string]any{"acknowledged": true}
}

func (e *Engine) refresh(names []string) (int, any) {
	if names == nil {
		for name := range e.indices {
			names = append(names, name)
		}
	}
	for _, name := range names {
		idx := e.indices[e.resolve(name)]
		if idx == nil {
			return indexMissing(name)
		}
		idx.refresh()
	}
	n := len(names)
	return http.StatusOK, map[string]any{"_shards": shards(n)}
}

func (idx *index) refresh() {
	idx.visible = make(map[string]*document, len(idx.docs))
	for id, d := range idx.docs {
		cp := *d
		idx.visible[id] = &cp
	}
}

func (e *Engine) document(method, indexName, typ, id string, q url.Values, body []byte) (int, any) {
	switch method {
	case http.MethodGet, http.MethodHead:
		return e.get(indexName, typ, id)
	case http.MethodPut, http.MethodPost:
		return e.write(indexName, typ, id, false, q, body)
	case http.MethodDelete:
		return e.delete(indexName, typ, id, q)
	}
	return errorReply(http.StatusMethodNotAllowed, "illegal_argument_exception", "unsupported method "+method)
}

func (e *Engine) get(indexName, typ, id string) (int, any) {
	name := e.resolve(indexName)
	idx := e.indices[name]
	if idx == nil {
		return indexMissing(indexName)
	}
	d := idx.docs[id]
	if d == nil || !sameType(d.Type, typ) {
		return http.StatusNotFound, map[string]any{"_index": name, "_type": typ, "_id": id, "found": false}
	}
	return http.StatusOK, map[string]any{
		"_index": name, "_type": d.Type, "_id": id, "_version": d.Version,
		"found": true, "_source": d.Source,
	}
}

// write indexes a whole document. createOnly fails when the id exists.
func (e *Engine) write(indexName, typ, id string, createOnly bool, q url.Values, body []byte) (int, any) {
	var src map[string]any
	if err := serializer.Decode(body, &src); err != nil || src == nil {
		return parseError(body)
	}
	status, resp, _ := e.put(indexName, typ, id, src, createOnly, q.Get("version"))
	return status, resp
}

func (e *Engine) put(indexName, typ, id string, src map[string]any, createOnly bool, version string) (int, any, map[string]any) {
	name := e.resolve(indexName)
	idx := e.indices[name]
	if idx == nil {
		idx = newIndex()
		e.indices[name] = idx
	}
	existing := idx.docs[id]
	if existing != nil && createOnly {
		status, resp := versionConflict(typ, id, "document already exists")
		return status, resp, nil
	}
	if version != "" {
		want, _ := strconv.ParseInt(version, 10, 64)
		if existing == nil || existing.Version != want {
			status, resp := versionConflict(typ, id, fmt.Sprintf("version conflict, current version is different from [%d]", want))
			return status, resp, nil
		}
	}
	d := &document{Type: orDoc(typ), Source: src, Version: 1}
	result, status := "created", http.StatusCreated
	if existing != nil {
		d.Version = existing.Version + 1
		result, status = "updated", http.StatusOK
	}
	idx.docs[id] = d
	item := map[string]any{
		"_index": name, "_type": d.Type, "_id": id, "_version": d.Version,
		"result": result, "created": existing == nil, "_shards": shards(1),
	}
	return status, item, item
}

func (e *Engine) delete(indexName, typ, id string, q url.Values) (int, any) {
	name := e.resolve(indexName)
	idx := e.indices[name]
	var d *document
	if idx != nil {
		d = idx.docs[id]
	}
	if d == nil || !sameType(d.Type, typ) {
		return http.StatusNotFound, map[string]any{
			"_index": name, "_type": typ, "_id": id, "found": false, "result": "not_found", "_shards": shards(1),
		}
	}
	if v := q.Get("version"); v != "" {
		want, _ := strconv.ParseInt(v, 10, 64)
		if d.Version != want {
			return versionConflict(typ, id, fmt.Sprintf("current version [%d] is different than the one provided [%d]", d.Version, want))
		}
	}
	delete(idx.docs, id)
	return http.StatusOK, map[string]any{
		"_index": name, "_type": d.Type, "_id": id, "_version": d.Version + 1,
		"found": true, "result": "deleted", "_shards": shards(1),
	}
}

// updateBody is the union of partial-document and scripted update bodies.
type updateBody struct {
	Doc         map[string]any `json:"doc"`
	DocAsUpsert bool           `json:"doc_as_upsert"`
	Script      any            `json:"script"`
	Lang        string         `json:"lang"`
	Params      map[string]any `json:"params"`
	Upsert      map[string]any `json:"upsert"`
}

func (e *Engine) update(indexName, typ, id string, body []byte) (int, any) {
	var ub updateBody
	if err := serializer.Decode(body, &ub); err != nil {
		return parseError(body)
	}
	return e.applyUpdate(indexName, typ, id, ub)
}

func (e *Engine) applyUpdate(indexName, typ, id string, ub updateBody) (int, any) {
	name := e.resolve(indexName)
	idx := e.indices[name]
	var d *document
	if idx != nil {
		d = idx.docs[id]
	}

	if d == nil {
		var insert map[string]any
		switch {
		case ub.Upsert != nil:
			insert = ub.Upsert
		case ub.Doc != nil && ub.DocAsUpsert:
			insert = ub.Doc
		default:
			return errorReply(http.StatusNotFound, "document_missing_exception",
				fmt.Sprintf("[%s][%s]: document missing", orDoc(typ), id))
		}
		status, item, _ := e.put(indexName, typ, id, deepCopy(insert), false, "")
		return status, item
	}

	src := deepCopy(d.Source)
	switch {
	case ub.Doc != nil:
		merge(src, ub.Doc)
	case ub.Script != nil:
		script, params := scriptOf(ub)
		if err := runScript(script, src, params); err != nil {
			return errorReply(http.StatusBadRequest, "illegal_argument_exception", "failed to execute script: "+err.Error())
		}
	default:
		return errorReply(http.StatusBadRequest, "action_request_validation_exception",
			"Validation Failed: 1: script or doc is missing;")
	}
	d.Source = src
	d.Version++
	return http.StatusOK, map[string]any{
		"_index": name, "_type": d.Type, "_id": id, "_version": d.Version,
		"result": "updated", "_shards": shards(1),
	}
}

// scriptOf accepts the flat form (script string plus top-level params) and
// the object form {"source": ..., "params": ...}.
func scriptOf(ub updateBody) (string, map[string]any) {
	switch s := ub.Script.(type) {
	case string:
		return s, ub.Params
	case map[string]any:
		src, _ := s["source"].(string)
		if src == "" {
			src, _ = s["inline"].(string)
		}
		params, _ := s["params"].(map[string]any)
		if params == nil {
			params = ub.Params
		}
		return src, params
	}
	return "", ub.Params
}

func (e *Engine) search(names []string, count bool, body []byte) (int, any) {
	var req struct {
		Query map[string]any `json:"query"`
		Size  *int           `json:"size"`
		From  int            `json:"from"`
	}
	if len(body) > 0 {
		if err := serializer.Decode(body, &req); err != nil {
			return parseError(body)
		}
	}
	matcher, err := compileQuery(req.Query)
	if err != nil {
		return errorReply(http.StatusBadRequest, "parsing_exception", err.Error())
	}

	var targets []string
	if len(names) == 0 || (len(names) == 1 && names[0] == "_all") {
		for name := range e.indices {
			targets = append(targets, name)
		}
	} else {
		for _, n := range names {
			name := e.resolve(n)
			if _, ok := e.indices[name]; !ok {
				return indexMissing(n)
			}
			targets = append(targets, name)
		}
	}
	sort.Strings(targets)

	type hit struct {
		index string
		id    string
		doc   *document
	}
	var hits []hit
	for _, name := range targets {
		idx := e.indices[name]
		ids := make([]string, 0, len(idx.visible))
		for id := range idx.visible {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if d := idx.visible[id]; matcher(d.Source) {
				hits = append(hits, hit{index: name, id: id, doc: d})
			}
		}
	}

	if count {
		return http.StatusOK, map[string]any{"count": len(hits), "_shards": shards(len(targets))}
	}

	size := 10
	if req.Size != nil {
		size = *req.Size
	}
	page := make([]any, 0)
	for i := req.From; i < len(hits) && len(page) < size; i++ {
		h := hits[i]
		page = append(page, map[string]any{
			"_index": h.index, "_type": h.doc.Type, "_id": h.id, "_score": 1.0, "_source": h.doc.Source,
		})
	}
	var maxScore any
	if len(page) > 0 {
		maxScore = 1.0
	}
	return http.StatusOK, map[string]any{
		"took":      1,
		"timed_out": false,
		"_shards":   shards(len(targets)),
		"hits": map[string]any{
			"total":     map[string]any{"value": len(hits), "relation": "eq"},
			"max_score": maxScore,
			"hits":      page,
		},
	}
}

func shards(n int) map[string]any {
	return map[string]any{"total": n, "successful": n, "failed": 0}
}

func sameType(stored, requested string) bool {
	return requested == "" || requested == "_doc" || stored == requested
}

func orDoc(typ string) string {
	if typ == "" {
		return "_doc"
	}
	return typ
}

func errorBody(status int, typ, reason string) map[string]any {
	cause := map[string]any{"type": typ, "reason": reason}
	return map[string]any{
		"error":  map[string]any{"root_cause": []any{cause}, "type": typ, "reason": reason},
		"status": status,
	}
}

func errorReply(status int, typ, reason string) (int, any) {
	return status, errorBody(status, typ, reason)
}

func indexMissing(name string) (int, any) {
	return errorReply(http.StatusNotFound, "index_not_found_exception", fmt.Sprintf("no such index [%s]", name))
}

func versionConflict(typ, id, reason string) (int, any) {
	return errorReply(http.StatusConflict, "version_conflict_engine_exception", fmt.Sprintf("[%s][%s]: %s", orDoc(typ), id, reason))
}

func parseError(body []byte) (int, any) {
	return errorReply(http.StatusBadRequest, "mapper_parsing_exception",
		fmt.Sprintf("failed to parse [%s]", serializer.Compact(body)))
}
