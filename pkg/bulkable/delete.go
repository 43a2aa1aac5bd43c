package bulkable

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/reply"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/request"
)

// DeleteDocument removes a document. Deleting a missing document is a
// reply with Found=false, not an error.
type DeleteDocument struct {
	Index   string `json:"index"`
	Type    string `json:"type,omitempty"`
	ID      string `json:"id"`
	Version int64  `json:"version,omitempty"`
	Routing string `json:"routing,omitempty"`
}

func NewDeleteDocument(index, typ, id string) *DeleteDocument {
	return &DeleteDocument{Index: index, Type: typ, ID: id}
}

func (a *DeleteDocument) Kind() Kind { return KindDelete }
func (a *DeleteDocument) Verb() Verb { return VerbDelete }

func (a *DeleteDocument) Meta() Meta {
	return Meta{Index: a.Index, Type: a.Type, ID: a.ID, Routing: a.Routing, Version: a.Version}
}

func (a *DeleteDocument) Body() (any, bool) { return nil, false }

func (a *DeleteDocument) Validate() error { return a.validateIn("") }

func (a *DeleteDocument) validateIn(defaultIndex string) error {
	return validateTarget(a.Kind(), a.Index, defaultIndex, a.ID, true)
}

func (a *DeleteDocument) Equal(other Action) bool {
	o, ok := other.(*DeleteDocument)
	if !ok || o == nil {
		return false
	}
	return *a == *o
}

func (a *DeleteDocument) Method() string { return http.MethodDelete }

func (a *DeleteDocument) Path() string {
	params := url.Values{}
	if a.Version > 0 {
		params.Set("version", strconv.FormatInt(a.Version, 10))
	}
	if a.Routing != "" {
		params.Set("routing", a.Routing)
	}
	return request.WithQuery(request.DocumentPath(a.Index, a.Type, a.ID), params)
}

func (a *DeleteDocument) Payload() (any, bool)         { return nil, false }
func (a *DeleteDocument) NewReply() reply.Reply        { return &reply.Delete{} }
func (a *DeleteDocument) AcceptStatus(status int) bool { return request.AcceptNotFound(status) }
func (a *DeleteDocument) sealed()                      {}
