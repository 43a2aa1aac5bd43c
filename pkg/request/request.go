// Package request defines the contract every engine operation implements and
// the catalogue of non-bulkable operations (index administration, aliases,
// get, search, count). Bulkable document operations live in package
// bulkable and satisfy the same contract.
package request

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/reply"
)

const (
	ContentTypeJSON   = "application/json"
	ContentTypeNDJSON = "application/x-ndjson"
)

// Request is one engine API call. Implementations are immutable once built.
type Request interface {
	// Method is one of GET, PUT, POST, DELETE, HEAD.
	Method() string
	// Path is the escaped URL path, including any query string.
	Path() string
	// Payload returns the JSON body. ok is false when the request has no
	// body at all, which is distinct from an empty object.
	Payload() (body any, ok bool)
	// NewReply returns a fresh pointer of the reply type the caller expects.
	NewReply() reply.Reply
}

// RawPayload is implemented by requests whose body is already encoded in a
// format other than a single JSON document, such as the bulk NDJSON body.
type RawPayload interface {
	RawBody() (body []byte, contentType string, err error)
}

// StatusAccepter widens the success range for requests where a non-2xx
// status is a normal answer, such as 404 for a missing document.
type StatusAccepter interface {
	AcceptStatus(status int) bool
}

// ReadOnly marks requests whose replies may be cached. GET requests are
// read-only without implementing it.
type ReadOnly interface {
	ReadOnly() bool
}

// IsReadOnly reports whether req does not modify engine state.
func IsReadOnly(req Request) bool {
	if ro, ok := req.(ReadOnly); ok {
		return ro.ReadOnly()
	}
	return req.Method() == http.MethodGet || req.Method() == http.MethodHead
}

// Path joins escaped path segments, skipping empty ones, with a leading
// slash.
func Path(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return RawPath(escaped...)
}

// Escape escapes a single path segment.
func Escape(segment string) string {
	return url.PathEscape(segment)
}

// RawPath joins segments that are already escaped, skipping empty ones.
func RawPath(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		if s == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(s)
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// Join escapes and comma-joins a multi-target segment such as
// "index1,index2".
func Join(names []string) string {
	escaped := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			escaped = append(escaped, url.PathEscape(n))
		}
	}
	return strings.Join(escaped, ",")
}

// WithQuery appends encoded query parameters to path.
func WithQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

// AcceptNotFound is a StatusAccepter helper for 404-as-answer requests.
func AcceptNotFound(status int) bool {
	return status == http.StatusNotFound
}
