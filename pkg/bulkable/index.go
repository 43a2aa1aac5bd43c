package bulkable

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/reply"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/request"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/serializer"
)

// IndexDocument stores a whole document, replacing any existing one unless
// CreateOnly is set. An empty ID lets the engine assign one.
type IndexDocument struct {
	Index      string `json:"index"`
	Type       string `json:"type,omitempty"`
	ID         string `json:"id,omitempty"`
	Document   any    `json:"document"`
	CreateOnly bool   `json:"create_only,omitempty"`
	Version    int64  `json:"version,omitempty"`
	Routing    string `json:"routing,omitempty"`
}

// NewIndexDocument builds an index action.
func NewIndexDocument(index, typ, id string, document any, createOnly bool) *IndexDocument {
	return &IndexDocument{Index: index, Type: typ, ID: id, Document: document, CreateOnly: createOnly}
}

func (a *IndexDocument) Kind() Kind { return KindIndex }

func (a *IndexDocument) Verb() Verb {
	if a.CreateOnly {
		return VerbCreate
	}
	return VerbIndex
}

func (a *IndexDocument) Meta() Meta {
	return Meta{Index: a.Index, Type: a.Type, ID: a.ID, Routing: a.Routing, Version: a.Version}
}

func (a *IndexDocument) Body() (any, bool) { return a.Document, true }

func (a *IndexDocument) Validate() error { return a.validateIn("") }

func (a *IndexDocument) validateIn(defaultIndex string) error {
	return validateTarget(a.Kind(), a.Index, defaultIndex, a.ID, a.CreateOnly)
}

func (a *IndexDocument) Equal(other Action) bool {
	o, ok := other.(*IndexDocument)
	if !ok || o == nil {
		return false
	}
	return a.Index == o.Index &&
		a.Type == o.Type &&
		a.ID == o.ID &&
		a.CreateOnly == o.CreateOnly &&
		a.Version == o.Version &&
		a.Routing == o.Routing &&
		serializer.Equal(a.Document, o.Document)
}

func (a *IndexDocument) Method() string {
	if a.ID == "" {
		return http.MethodPost
	}
	return http.MethodPut
}

func (a *IndexDocument) Path() string {
	params := url.Values{}
	if a.Version > 0 {
		params.Set("version", strconv.FormatInt(a.Version, 10))
	}
	if a.Routing != "" {
		params.Set("routing", a.Routing)
	}
	var path string
	switch {
	case a.ID == "":
		path = request.RawPath(request.Escape(a.Index), request.Escape(orDefaultType(a.Type)))
	case a.CreateOnly:
		path = request.DocumentPath(a.Index, a.Type, a.ID) + "/_create"
	default:
		path = request.DocumentPath(a.Index, a.Type, a.ID)
	}
	return request.WithQuery(path, params)
}

func (a *IndexDocument) Payload() (any, bool)  { return a.Document, true }
func (a *IndexDocument) NewReply() reply.Reply { return &reply.Index{} }
func (a *IndexDocument) sealed()               {}

func orDefaultType(typ string) string {
	if typ == "" {
		return request.DefaultType
	}
	return typ
}
