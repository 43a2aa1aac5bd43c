// Package errors defines the client's failure taxonomy. Every typed error
// unwraps to one of the sentinels below so callers can branch with errors.Is
// ("the engine rejected this") versus errors.As for the diagnostic fields.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrDecode         = errors.New("malformed json")
	ErrSchemaMismatch = errors.New("json does not match target shape")
	ErrUnknownVariant = errors.New("unknown bulkable variant")
	ErrEngine         = errors.New("engine error")
	ErrTransport      = errors.New("transport error")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("version conflict")
	ErrInvalidInput   = errors.New("invalid input")
)

const snippetRadius = 24

// DecodeError reports bytes that are not valid JSON.
type DecodeError struct {
	Offset  int64
	Snippet string
	Err     error
}

// NewDecodeError builds a DecodeError whose snippet is a window of data
// around offset.
func NewDecodeError(data []byte, offset int64, err error) *DecodeError {
	return &DecodeError{Offset: offset, Snippet: Snippet(data, offset), Err: err}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at offset %d near %q: %v", e.Offset, e.Snippet, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// SchemaMismatchError reports well-formed JSON that cannot be mapped onto
// the requested target type.
type SchemaMismatchError struct {
	Target string
	Field  string
	Offset int64
	Err    error
}

func (e *SchemaMismatchError) Error() string {
	var b strings.Builder
	b.WriteString("schema mismatch decoding into ")
	b.WriteString(e.Target)
	if e.Field != "" {
		b.WriteString(" at field ")
		b.WriteString(e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SchemaMismatchError) Unwrap() []error { return []error{ErrSchemaMismatch, e.Err} }

// UnknownVariantError is returned when a polymorphic discriminator has no
// registered variant.
type UnknownVariantError struct {
	Discriminator string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownVariant.Error(), e.Discriminator)
}

func (e *UnknownVariantError) Unwrap() error { return ErrUnknownVariant }

// EngineError carries a structured error the engine reported for a request
// it understood.
type EngineError struct {
	Type      string
	Reason    string
	Status    int
	RootCause []EngineCause
	Raw       []byte
}

// EngineCause is one entry of the engine's root_cause list.
type EngineCause struct {
	Type   string
	Reason string
}

func (e *EngineError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("engine error (status %d): %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("engine error (status %d): %s: %s", e.Status, e.Type, e.Reason)
}

func (e *EngineError) Unwrap() error { return ErrEngine }

// Is lets callers test engine errors against the coarser sentinels.
func (e *EngineError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound ||
			strings.Contains(e.Type, "missing") ||
			strings.Contains(e.Type, "not_found") ||
			strings.HasPrefix(e.Reason, "DocumentMissingException") ||
			strings.HasPrefix(e.Reason, "IndexMissingException")
	case ErrConflict:
		return e.Status == http.StatusConflict
	}
	return false
}

// TransportError covers non-success responses with an unrecognised body,
// undecodable success bodies and failures of the transport itself.
type TransportError struct {
	Status int
	Body   []byte
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("transport error: %v", e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("transport error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transport error (status %d): %s", e.Status, Snippet(e.Body, 0))
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

// Retryable reports whether the failure is worth another attempt by a
// transport that retries: connection failures and 5xx except 501.
func (e *TransportError) Retryable() bool {
	if e.Status == 0 {
		return true
	}
	return e.Status >= 500 && e.Status != http.StatusNotImplemented
}

// Snippet returns a short window of data around offset for diagnostics.
func Snippet(data []byte, offset int64) string {
	if len(data) == 0 {
		return ""
	}
	pos := min(max(int(offset), 0), len(data))
	start := max(pos-snippetRadius, 0)
	end := min(pos+snippetRadius, len(data))
	return string(data[start:end])
}

// StatusCode maps an error to the HTTP status that best describes it.
func StatusCode(err error) int {
	var engErr *EngineError
	if errors.As(err, &engErr) && engErr.Status != 0 {
		return engErr.Status
	}
	var trErr *TransportError
	if errors.As(err, &trErr) && trErr.Status != 0 {
		return trErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnknownVariant):
		return http.StatusBadRequest
	case errors.Is(err, ErrDecode), errors.Is(err, ErrSchemaMismatch), errors.Is(err, ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
