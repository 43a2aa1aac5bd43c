// Package dispatch classifies a raw engine response into exactly one of
// three outcomes: a decoded reply, an *errors.EngineError, or an
// *errors.TransportError.
//
// The error shape is checked before the status code. Some engine versions
// answer with a 2xx status and an error body, and that must surface as an
// engine error rather than as a success or a transport failure.
package dispatch

import (
	"bytes"
	"fmt"

	"github.com/tidwall/gjson"

	clienterrors "github.com/Adithya-Monish-Kumar-K/searchclient/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/reply"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/serializer"
)

// Outcome names the terminal state a response was classified into.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeEngine    Outcome = "engine_error"
	OutcomeTransport Outcome = "transport_error"
)

// AcceptFunc reports whether a non-2xx status should still be decoded as a
// success, e.g. 404 for a get-document probe.
type AcceptFunc func(status int) bool

// Dispatch decodes body into target or returns the typed failure. A nil
// accept treats only 2xx as success.
func Dispatch(status int, body []byte, target reply.Reply, accept AcceptFunc) error {
	if engErr := EngineError(status, body); engErr != nil {
		return engErr
	}

	if !IsSuccess(status) && (accept == nil || !accept(status)) {
		return &clienterrors.TransportError{Status: status, Body: body}
	}

	if sr, ok := target.(reply.StatusReceiver); ok {
		sr.ReceiveStatus(status)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if _, ok := target.(reply.StatusReceiver); ok || target == nil {
			return nil
		}
		return &clienterrors.TransportError{
			Status: status,
			Body:   body,
			Err:    clienterrors.NewDecodeError(body, 0, fmt.Errorf("empty body")),
		}
	}
	if target == nil {
		return nil
	}
	if err := serializer.Decode(body, target); err != nil {
		return &clienterrors.TransportError{Status: status, Body: body, Err: err}
	}
	return nil
}

// Classify reports which outcome Dispatch would produce without decoding
// into a reply.
func Classify(status int, body []byte, accept AcceptFunc) Outcome {
	if HasErrorShape(body) {
		return OutcomeEngine
	}
	if IsSuccess(status) || (accept != nil && accept(status)) {
		return OutcomeSuccess
	}
	return OutcomeTransport
}

// IsSuccess reports whether status is in the 2xx range.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// HasErrorShape reports whether body is a JSON object with a non-null,
// non-false top-level "error" member.
func HasErrorShape(body []byte) bool {
	if !gjson.ValidBytes(body) {
		return false
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return false
	}
	errField := root.Get("error")
	if !errField.Exists() {
		return false
	}
	switch errField.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return errField.Str != ""
	}
	return true
}

// EngineError returns the engine's structured error when body has the
// error shape, or nil.
func EngineError(status int, body []byte) *clienterrors.EngineError {
	if !HasErrorShape(body) {
		return nil
	}
	var env reply.Error
	if err := serializer.Decode(body, &env); err != nil {
		// The error member exists but is not an object or a string; keep
		// its raw text as the reason.
		env = reply.Error{
			Error:  reply.ErrorBody{Reason: gjson.GetBytes(body, "error").Raw},
			Status: int(gjson.GetBytes(body, "status").Int()),
		}
	}
	return env.EngineError(status, body)
}
