package request

import (
	"net/http"
	"net/url"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/reply"
)

// DefaultType is used in document paths when no type name is given.
const DefaultType = "_doc"

// DocumentPath builds /index/type/id, substituting DefaultType for an
// empty type.
func DocumentPath(index, typ, id string) string {
	if typ == "" {
		typ = DefaultType
	}
	return RawPath(Escape(index), Escape(typ), Escape(id))
}

// GetDocument fetches a document by id. A missing document is a reply with
// Found=false rather than an error.
type GetDocument struct {
	Index   string
	Type    string
	ID      string
	Routing string
}

func NewGetDocument(index, typ, id string) *GetDocument {
	return &GetDocument{Index: index, Type: typ, ID: id}
}

func (r *GetDocument) Method() string { return http.MethodGet }

func (r *GetDocument) Path() string {
	params := url.Values{}
	if r.Routing != "" {
		params.Set("routing", r.Routing)
	}
	return WithQuery(DocumentPath(r.Index, r.Type, r.ID), params)
}

func (r *GetDocument) Payload() (any, bool)         { return nil, false }
func (r *GetDocument) NewReply() reply.Reply        { return &reply.Get{} }
func (r *GetDocument) AcceptStatus(status int) bool { return AcceptNotFound(status) }
