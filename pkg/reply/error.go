package reply

import (
	"bytes"

	"github.com/goccy/go-json"

	clienterrors "github.com/Adithya-Monish-Kumar-K/searchclient/pkg/errors"
)

// Error is the engine's error envelope. It is never handed to callers as a
// reply; the dispatcher turns it into *errors.EngineError.
type Error struct {
	Error  ErrorBody `json:"error"`
	Status int       `json:"status"`
}

// ErrorBody is the structured error. Old engines send a plain string, which
// decodes into Reason.
type ErrorBody struct {
	Type      string      `json:"type,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	RootCause []ErrorBody `json:"root_cause,omitempty"`
	CausedBy  *ErrorBody  `json:"caused_by,omitempty"`
}

func (e *ErrorBody) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*e = ErrorBody{Reason: s}
		return nil
	}
	type plain ErrorBody
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*e = ErrorBody(p)
	return nil
}

// EngineError converts the envelope into the typed failure. httpStatus is
// used when the body carries no status of its own.
func (e *Error) EngineError(httpStatus int, raw []byte) *clienterrors.EngineError {
	status := e.Status
	if status == 0 {
		status = httpStatus
	}
	causes := make([]clienterrors.EngineCause, 0, len(e.Error.RootCause))
	for _, c := range e.Error.RootCause {
		causes = append(causes, clienterrors.EngineCause{Type: c.Type, Reason: c.Reason})
	}
	return &clienterrors.EngineError{
		Type:      e.Error.Type,
		Reason:    e.Error.Reason,
		Status:    status,
		RootCause: causes,
		Raw:       raw,
	}
}
