package request

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/query"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/reply"
)

// Search runs a query against zero or more indices and types. With no
// query every document matches.
type Search struct {
	Indices []string
	Types   []string
	Query   query.Query
	Size    *int
	From    int
}

// NewSearch searches a single index and, if typ is non-empty, type.
func NewSearch(index, typ string) *Search {
	s := &Search{Indices: []string{index}}
	if typ != "" {
		s.Types = []string{typ}
	}
	return s
}

// WithQuery sets the query and returns the request for chaining.
func (r *Search) WithQuery(q query.Query) *Search {
	r.Query = q
	return r
}

// WithSize limits the number of hits returned.
func (r *Search) WithSize(size int) *Search {
	r.Size = &size
	return r
}

func (r *Search) Method() string { return http.MethodPost }

func (r *Search) Path() string {
	return searchPath(r.Indices, r.Types, "_search")
}

func (r *Search) Payload() (any, bool) {
	body := map[string]any{}
	if r.Query != nil {
		body["query"] = query.Wrap(r.Query)
	}
	if r.Size != nil {
		body["size"] = *r.Size
	}
	if r.From > 0 {
		body["from"] = r.From
	}
	return body, true
}

func (r *Search) NewReply() reply.Reply { return &reply.Search{} }
func (r *Search) ReadOnly() bool        { return true }

// Count counts the documents matching a query.
type Count struct {
	Indices []string
	Types   []string
	Query   query.Query
}

func NewCount(index, typ string) *Count {
	c := &Count{Indices: []string{index}}
	if typ != "" {
		c.Types = []string{typ}
	}
	return c
}

func (r *Count) Method() string { return http.MethodPost }

func (r *Count) Path() string {
	return searchPath(r.Indices, r.Types, "_count")
}

// searchPath builds /indices/types/endpoint. A type filter without indices
// searches _all, since a lone first segment is always read as an index.
func searchPath(indices, types []string, endpoint string) string {
	idx, typ := Join(indices), Join(types)
	if idx == "" && typ != "" {
		idx = "_all"
	}
	return RawPath(idx, typ, endpoint)
}

func (r *Count) Payload() (any, bool) {
	if r.Query == nil {
		return nil, false
	}
	return map[string]any{"query": query.Wrap(r.Query)}, true
}

func (r *Count) NewReply() reply.Reply { return &reply.Count{} }
func (r *Count) ReadOnly() bool        { return true }
