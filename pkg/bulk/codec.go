// Package bulk encodes bulkable actions into the engine's newline-delimited
// bulk body and sends them as one request.
//
// Each action becomes a metadata line naming the verb and target, followed
// by a source line unless the verb is delete:
//
//	{"index":{"_index":"books","_type":"book","_id":"1"}}
//	{"title":"Dune"}
//	{"delete":{"_index":"books","_type":"book","_id":"2"}}
//
// Lines keep the order of the input; the engine applies them in that order.
package bulk

import (
	"bytes"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/bulkable"
	clienterrors "github.com/Adithya-Monish-Kumar-K/searchclient/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/serializer"
)

// metaSlop is the per-action allowance for metadata framing when sizing the
// output buffer.
const metaSlop = 96

// Encoder writes bulk bodies. The zero value uses the default serializer.
type Encoder struct {
	ser *serializer.Serializer
}

// NewEncoder creates an Encoder that renders bodies with ser.
func NewEncoder(ser *serializer.Serializer) *Encoder {
	return &Encoder{ser: ser}
}

func (e *Encoder) serializer() *serializer.Serializer {
	if e == nil || e.ser == nil {
		return serializer.Default
	}
	return e.ser
}

// Encode renders actions as a bulk body with the default encoder.
func Encode(actions []bulkable.Action) ([]byte, error) {
	return (*Encoder)(nil).Encode(actions)
}

// Encode renders actions as a bulk body. Every action must name its index.
func (e *Encoder) Encode(actions []bulkable.Action) ([]byte, error) {
	return e.EncodeFor("", actions)
}

// EncodeFor renders actions for a bulk call whose path names index.
// Actions without their own index leave _index out of the metadata line so
// the engine applies the path default.
func (e *Encoder) EncodeFor(index string, actions []bulkable.Action) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(actions) * metaSlop)
	if err := e.encodeTo(&buf, index, actions); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo writes the bulk body for actions to w. Nothing is written for an
// action that fails validation or encoding, but earlier actions may already
// have been written.
func (e *Encoder) EncodeTo(w io.Writer, actions []bulkable.Action) error {
	return e.encodeTo(w, "", actions)
}

func (e *Encoder) encodeTo(w io.Writer, defaultIndex string, actions []bulkable.Action) error {
	var line bytes.Buffer
	for i, a := range actions {
		line.Reset()
		if err := e.writeAction(&line, defaultIndex, a); err != nil {
			return fmt.Errorf("bulk action %d: %w", i, err)
		}
		if _, err := w.Write(line.Bytes()); err != nil {
			return fmt.Errorf("writing bulk action %d: %w", i, err)
		}
	}
	return nil
}

func (e *Encoder) writeAction(buf *bytes.Buffer, defaultIndex string, a bulkable.Action) error {
	if a == nil {
		return fmt.Errorf("%w: nil action", clienterrors.ErrInvalidInput)
	}
	if err := bulkable.ValidateIn(a, defaultIndex); err != nil {
		return err
	}
	if err := e.writeMeta(buf, a.Verb(), a.Meta()); err != nil {
		return err
	}
	if a.Verb() == bulkable.VerbDelete {
		return nil
	}
	body, ok := a.Body()
	if !ok {
		return nil
	}
	return e.writeBody(buf, body)
}

func (e *Encoder) writeMeta(buf *bytes.Buffer, verb bulkable.Verb, meta bulkable.Meta) error {
	data, err := e.serializer().Encode(map[bulkable.Verb]bulkable.Meta{verb: meta})
	if err != nil {
		return err
	}
	buf.Write(data)
	buf.WriteByte('\n')
	return nil
}

func (e *Encoder) writeBody(buf *bytes.Buffer, body any) error {
	var data []byte
	switch raw := body.(type) {
	case json.RawMessage:
		data = raw
	case []byte:
		data = raw
	default:
		encoded, err := e.serializer().Encode(body)
		if err != nil {
			return err
		}
		data = encoded
	}
	if !serializer.Valid(data) {
		return clienterrors.NewDecodeError(data, 0, fmt.Errorf("bulk source is not valid json"))
	}
	if bytes.ContainsAny(data, "\r\n") {
		data = serializer.Compact(data)
	}
	buf.Write(data)
	buf.WriteByte('\n')
	return nil
}

// Lines splits a bulk body into its lines without the trailing newline. It
// is a diagnostic helper; the engine's bulk format is never decoded.
func Lines(body []byte) []string {
	var out []string
	for _, l := range bytes.Split(bytes.TrimSuffix(body, []byte("\n")), []byte("\n")) {
		out = append(out, string(l))
	}
	return out
}
