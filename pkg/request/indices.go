package request

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/reply"
)

// CreateIndex creates an index, optionally with settings and mappings.
type CreateIndex struct {
	Index    string
	Settings map[string]any
	Mappings map[string]any
}

// NewCreateIndex creates an index with engine defaults.
func NewCreateIndex(index string) *CreateIndex {
	return &CreateIndex{Index: index}
}

func (r *CreateIndex) Method() string { return http.MethodPut }
func (r *CreateIndex) Path() string   { return Path(r.Index) }

func (r *CreateIndex) Payload() (any, bool) {
	if len(r.Settings) == 0 && len(r.Mappings) == 0 {
		return nil, false
	}
	body := make(map[string]any, 2)
	if len(r.Settings) > 0 {
		body["settings"] = r.Settings
	}
	if len(r.Mappings) > 0 {
		body["mappings"] = r.Mappings
	}
	return body, true
}

func (r *CreateIndex) NewReply() reply.Reply { return &reply.Acknowledged{} }

// DeleteIndex deletes one index.
type DeleteIndex struct {
	Index string
}

func NewDeleteIndex(index string) *DeleteIndex {
	return &DeleteIndex{Index: index}
}

func (r *DeleteIndex) Method() string        { return http.MethodDelete }
func (r *DeleteIndex) Path() string          { return Path(r.Index) }
func (r *DeleteIndex) Payload() (any, bool)  { return nil, false }
func (r *DeleteIndex) NewReply() reply.Reply { return &reply.Acknowledged{} }

// IndexExists probes an index with HEAD. A missing index is Exists=false,
// not an error.
type IndexExists struct {
	Index string
}

func NewIndexExists(index string) *IndexExists {
	return &IndexExists{Index: index}
}

func (r *IndexExists) Method() string               { return http.MethodHead }
func (r *IndexExists) Path() string                 { return Path(r.Index) }
func (r *IndexExists) Payload() (any, bool)         { return nil, false }
func (r *IndexExists) NewReply() reply.Reply        { return &reply.Exists{} }
func (r *IndexExists) AcceptStatus(status int) bool { return AcceptNotFound(status) }

// Refresh makes recent writes visible to search. An empty index refreshes
// every index.
type Refresh struct {
	Index string
}

func NewRefresh(index string) *Refresh {
	return &Refresh{Index: index}
}

func (r *Refresh) Method() string        { return http.MethodPost }
func (r *Refresh) Path() string          { return RawPath(Escape(r.Index), "_refresh") }
func (r *Refresh) Payload() (any, bool)  { return nil, false }
func (r *Refresh) NewReply() reply.Reply { return &reply.Refresh{} }

// PutMapping sets the mapping of a document type.
type PutMapping struct {
	Index   string
	Type    string
	Mapping map[string]any
}

func NewPutMapping(index, typ string, mapping map[string]any) *PutMapping {
	return &PutMapping{Index: index, Type: typ, Mapping: mapping}
}

func (r *PutMapping) Method() string { return http.MethodPut }

func (r *PutMapping) Path() string {
	if r.Type == "" {
		return RawPath(Escape(r.Index), "_mapping")
	}
	return RawPath(Escape(r.Index), Escape(r.Type), "_mapping")
}

func (r *PutMapping) Payload() (any, bool) {
	if r.Type == "" {
		return r.Mapping, true
	}
	return map[string]any{r.Type: r.Mapping}, true
}

func (r *PutMapping) NewReply() reply.Reply { return &reply.Acknowledged{} }
