package bulk

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/bulkable"
	clienterrors "github.com/Adithya-Monish-Kumar-K/searchclient/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/reply"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/request"
)

// Refresh policies accepted on a bulk call.
const (
	RefreshNone    = ""
	RefreshTrue    = "true"
	RefreshWaitFor = "wait_for"
)

// Request sends a batch of actions in one call. Index and Type, when set,
// go in the path and act as defaults for actions that name none. Type is
// ignored without Index.
type Request struct {
	Index   string
	Type    string
	Actions []bulkable.Action
	Refresh string

	encoder *Encoder
}

// NewRequest builds a bulk request over actions.
func NewRequest(actions ...bulkable.Action) *Request {
	return &Request{Actions: actions}
}

// WithEncoder overrides the encoder used to render the body.
func (r *Request) WithEncoder(e *Encoder) *Request {
	r.encoder = e
	return r
}

// Add appends actions to the batch.
func (r *Request) Add(actions ...bulkable.Action) {
	r.Actions = append(r.Actions, actions...)
}

// Len returns the number of actions in the batch.
func (r *Request) Len() int { return len(r.Actions) }

func (r *Request) Method() string { return http.MethodPost }

func (r *Request) Path() string {
	params := url.Values{}
	if r.Refresh != RefreshNone {
		params.Set("refresh", r.Refresh)
	}
	var path string
	switch {
	case r.Index == "":
		path = "/_bulk"
	default:
		path = request.RawPath(request.Escape(r.Index), request.Escape(r.Type), "_bulk")
	}
	return request.WithQuery(path, params)
}

// Payload reports no JSON body; the NDJSON body comes from RawBody.
func (r *Request) Payload() (any, bool)  { return nil, false }
func (r *Request) NewReply() reply.Reply { return &reply.Bulk{} }

// RawBody renders the NDJSON body. An empty batch is rejected locally since
// the engine answers it with a parse error.
func (r *Request) RawBody() ([]byte, string, error) {
	if len(r.Actions) == 0 {
		return nil, "", fmt.Errorf("%w: empty bulk request", clienterrors.ErrInvalidInput)
	}
	body, err := r.encoder.EncodeFor(r.Index, r.Actions)
	if err != nil {
		return nil, "", err
	}
	return body, request.ContentTypeNDJSON, nil
}
