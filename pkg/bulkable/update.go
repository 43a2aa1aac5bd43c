package bulkable

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/reply"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/request"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/serializer"
)

// UpdateDocument merges a partial document into an existing one. With
// DocAsUpsert the partial document is inserted when none exists.
type UpdateDocument struct {
	Index           string `json:"index"`
	Type            string `json:"type,omitempty"`
	ID              string `json:"id"`
	Document        any    `json:"document"`
	DocAsUpsert     bool   `json:"doc_as_upsert,omitempty"`
	RetryOnConflict int    `json:"retry_on_conflict,omitempty"`
}

// NewUpdateDocument builds a partial update action.
func NewUpdateDocument(index, typ, id string, document any, docAsUpsert bool, retryOnConflict int) *UpdateDocument {
	return &UpdateDocument{
		Index:           index,
		Type:            typ,
		ID:              id,
		Document:        document,
		DocAsUpsert:     docAsUpsert,
		RetryOnConflict: retryOnConflict,
	}
}

func (a *UpdateDocument) Kind() Kind { return KindUpdate }
func (a *UpdateDocument) Verb() Verb { return VerbUpdate }

func (a *UpdateDocument) Meta() Meta {
	return Meta{Index: a.Index, Type: a.Type, ID: a.ID, RetryOnConflict: a.RetryOnConflict}
}

func (a *UpdateDocument) Body() (any, bool) {
	body := map[string]any{"doc": a.Document}
	if a.DocAsUpsert {
		body["doc_as_upsert"] = true
	}
	return body, true
}

func (a *UpdateDocument) Validate() error { return a.validateIn("") }

func (a *UpdateDocument) validateIn(defaultIndex string) error {
	return validateTarget(a.Kind(), a.Index, defaultIndex, a.ID, true)
}

func (a *UpdateDocument) Equal(other Action) bool {
	o, ok := other.(*UpdateDocument)
	if !ok || o == nil {
		return false
	}
	return a.Index == o.Index &&
		a.Type == o.Type &&
		a.ID == o.ID &&
		a.DocAsUpsert == o.DocAsUpsert &&
		a.RetryOnConflict == o.RetryOnConflict &&
		serializer.Equal(a.Document, o.Document)
}

func (a *UpdateDocument) Method() string        { return http.MethodPost }
func (a *UpdateDocument) Path() string          { return updatePath(a.Index, a.Type, a.ID, a.RetryOnConflict) }
func (a *UpdateDocument) Payload() (any, bool)  { return a.Body() }
func (a *UpdateDocument) NewReply() reply.Reply { return &reply.Update{} }
func (a *UpdateDocument) sealed()               {}

// UpdateDocumentScript updates a document by running a script with params.
// When the document does not exist and Upsert is set, Upsert is inserted
// instead and the script is not run; without Upsert the engine reports the
// document as missing.
type UpdateDocumentScript struct {
	Index           string         `json:"index"`
	Type            string         `json:"type,omitempty"`
	ID              string         `json:"id"`
	Script          string         `json:"script"`
	Lang            string         `json:"lang,omitempty"`
	Params          map[string]any `json:"params,omitempty"`
	Upsert          any            `json:"upsert,omitempty"`
	RetryOnConflict int            `json:"retry_on_conflict,omitempty"`
}

// NewUpdateDocumentScript builds a scripted update without an upsert
// document.
func NewUpdateDocumentScript(index, typ, id, script string, params map[string]any) *UpdateDocumentScript {
	return &UpdateDocumentScript{Index: index, Type: typ, ID: id, Script: script, Params: params}
}

// NewUpsertDocumentScript builds a scripted update that inserts upsert when
// the document is missing.
func NewUpsertDocumentScript(index, typ, id, script string, params map[string]any, upsert any) *UpdateDocumentScript {
	return &UpdateDocumentScript{Index: index, Type: typ, ID: id, Script: script, Params: params, Upsert: upsert}
}

func (a *UpdateDocumentScript) Kind() Kind { return KindUpdateScript }
func (a *UpdateDocumentScript) Verb() Verb { return VerbUpdate }

func (a *UpdateDocumentScript) Meta() Meta {
	return Meta{Index: a.Index, Type: a.Type, ID: a.ID, RetryOnConflict: a.RetryOnConflict}
}

// Body always carries the script, even an empty one, and puts the upsert
// document in its own slot; it is never sent as "doc".
func (a *UpdateDocumentScript) Body() (any, bool) {
	body := map[string]any{"script": a.Script}
	if a.Lang != "" {
		body["lang"] = a.Lang
	}
	if len(a.Params) > 0 {
		body["params"] = a.Params
	}
	if !isNull(a.Upsert) {
		body["upsert"] = a.Upsert
	}
	return body, true
}

func (a *UpdateDocumentScript) Validate() error { return a.validateIn("") }

func (a *UpdateDocumentScript) validateIn(defaultIndex string) error {
	return validateTarget(a.Kind(), a.Index, defaultIndex, a.ID, true)
}

func (a *UpdateDocumentScript) Equal(other Action) bool {
	o, ok := other.(*UpdateDocumentScript)
	if !ok || o == nil {
		return false
	}
	return a.Index == o.Index &&
		a.Type == o.Type &&
		a.ID == o.ID &&
		a.Script == o.Script &&
		a.Lang == o.Lang &&
		a.RetryOnConflict == o.RetryOnConflict &&
		sameParams(a.Params, o.Params) &&
		serializer.Equal(a.Upsert, o.Upsert)
}

func (a *UpdateDocumentScript) Method() string        { return http.MethodPost }
func (a *UpdateDocumentScript) Path() string          { return updatePath(a.Index, a.Type, a.ID, a.RetryOnConflict) }
func (a *UpdateDocumentScript) Payload() (any, bool)  { return a.Body() }
func (a *UpdateDocumentScript) NewReply() reply.Reply { return &reply.Update{} }
func (a *UpdateDocumentScript) sealed()               {}

// updatePath uses the typed form /index/type/id/_update when a type is
// given and /index/_update/id otherwise.
func updatePath(index, typ, id string, retryOnConflict int) string {
	params := url.Values{}
	if retryOnConflict > 0 {
		params.Set("retry_on_conflict", strconv.Itoa(retryOnConflict))
	}
	var path string
	if typ == "" {
		path = request.RawPath(request.Escape(index), "_update", request.Escape(id))
	} else {
		path = request.DocumentPath(index, typ, id) + "/_update"
	}
	return request.WithQuery(path, params)
}

// sameParams treats nil and empty parameter maps as equal; the empty map
// is not written to JSON.
func sameParams(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return serializer.Equal(a, b)
}

// isNull reports whether v encodes as JSON null, including nil maps and
// slices held in an interface.
func isNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return t == nil
	case []any:
		return t == nil
	case json.RawMessage:
		return len(bytes.TrimSpace(t)) == 0 || bytes.Equal(bytes.TrimSpace(t), []byte("null"))
	case []byte:
		return t == nil
	default:
		return false
	}
}
