// Package reply holds typed projections of the engine's JSON responses.
// Only the fields callers act on are mapped; everything else is ignored on
// decode.
package reply

import (
	"github.com/goccy/go-json"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/serializer"
)

// Reply is a pointer to one of the shapes in this package (or a caller's
// own struct) that a response body is decoded into.
type Reply any

// StatusReceiver is implemented by replies whose meaning depends on the HTTP
// status rather than (or in addition to) the body, such as HEAD probes.
type StatusReceiver interface {
	ReceiveStatus(status int)
}

// Shards summarises shard participation in a write or refresh.
type Shards struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// Acknowledged is returned by index, alias and mapping administration.
type Acknowledged struct {
	Acknowledged bool `json:"acknowledged"`
}

// Refresh is returned by the refresh API.
type Refresh struct {
	Shards Shards `json:"_shards"`
}

// Exists is the reply of HEAD probes; it has no body.
type Exists struct {
	Exists bool
	Status int
}

func (e *Exists) ReceiveStatus(status int) {
	e.Status = status
	e.Exists = status >= 200 && status < 300
}

// DocumentMeta is the coordinate block shared by single-document replies.
type DocumentMeta struct {
	Index   string `json:"_index"`
	Type    string `json:"_type,omitempty"`
	ID      string `json:"_id"`
	Version int64  `json:"_version,omitempty"`
}

// Index is returned when a document is indexed or created.
type Index struct {
	DocumentMeta
	Result  string `json:"result,omitempty"`
	Created bool   `json:"created,omitempty"`
	Shards  Shards `json:"_shards"`
}

// Update is returned by the partial update API.
type Update struct {
	DocumentMeta
	Result string `json:"result,omitempty"`
	Shards Shards `json:"_shards"`
}

// Delete is returned by the delete-document API.
type Delete struct {
	DocumentMeta
	Result string `json:"result,omitempty"`
	Found  bool   `json:"found"`
	Shards Shards `json:"_shards"`
}

// Get is returned by the get-document API. A missing document decodes with
// Found false.
type Get struct {
	DocumentMeta
	Found  bool            `json:"found"`
	Source json.RawMessage `json:"_source,omitempty"`
}

// SourceAs decodes the document source into target.
func (g *Get) SourceAs(target any) error {
	return serializer.Decode(g.Source, target)
}

// Count is returned by the count API.
type Count struct {
	Count  int64  `json:"count"`
	Shards Shards `json:"_shards"`
}
