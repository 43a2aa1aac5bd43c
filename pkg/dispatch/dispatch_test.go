package dispatch

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clienterrors "github.com/Adithya-Monish-Kumar-K/searchclient/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/reply"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		accept  AcceptFunc
		outcome Outcome
	}{
		{"ack", 200, `{"acknowledged":true}`, nil, OutcomeSuccess},
		{"created", 201, `{"_id":"1"}`, nil, OutcomeSuccess},
		{"index missing", 404, `{"error":{"type":"index_not_found_exception","reason":"no such index"},"status":404}`, nil, OutcomeEngine},
		{"bad request", 400, `{"error":{"type":"parsing_exception","reason":"bad"},"status":400}`, nil, OutcomeEngine},
		{"legacy string error", 400, `{"error":"IndexMissingException[[x] missing]","status":400}`, nil, OutcomeEngine},
		{"error body with 200", 200, `{"error":{"type":"x","reason":"y"}}`, nil, OutcomeEngine},
		{"server html", 500, `<html>oops</html>`, nil, OutcomeTransport},
		{"empty 502", 502, ``, nil, OutcomeTransport},
		{"plain 404", 404, `{"found":false}`, nil, OutcomeTransport},
		{"accepted 404", 404, `{"found":false}`, func(s int) bool { return s == 404 }, OutcomeSuccess},
		{"null error", 200, `{"error":null,"ok":true}`, nil, OutcomeSuccess},
		{"false error", 200, `{"error":false}`, nil, OutcomeSuccess},
		{"array root", 200, `[{"error":"x"}]`, nil, OutcomeSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.outcome, Classify(tt.status, []byte(tt.body), tt.accept))
		})
	}
}

func TestDispatchSuccess(t *testing.T) {
	var ack reply.Acknowledged
	require.NoError(t, Dispatch(200, []byte(`{"acknowledged":true}`), &ack, nil))
	assert.True(t, ack.Acknowledged)
}

func TestDispatchEngineError(t *testing.T) {
	body := []byte(`{"error":{"root_cause":[{"type":"document_missing_exception","reason":"[t][1]: document missing"}],` +
		`"type":"document_missing_exception","reason":"[t][1]: document missing"},"status":404}`)
	var up reply.Update
	err := Dispatch(404, body, &up, nil)
	require.Error(t, err)

	var ee *clienterrors.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "document_missing_exception", ee.Type)
	assert.Equal(t, 404, ee.Status)
	require.Len(t, ee.RootCause, 1)
	assert.ErrorIs(t, err, clienterrors.ErrEngine)
	assert.ErrorIs(t, err, clienterrors.ErrNotFound)
	assert.Equal(t, string(body), string(ee.Raw))
}

func TestDispatchErrorShapeBeatsStatus(t *testing.T) {
	var ack reply.Acknowledged
	err := Dispatch(200, []byte(`{"error":"boom","status":500}`), &ack, nil)
	var ee *clienterrors.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "boom", ee.Reason)
	assert.Equal(t, 500, ee.Status)
	assert.False(t, ack.Acknowledged)
}

func TestDispatchTransportErrors(t *testing.T) {
	var ack reply.Acknowledged
	err := Dispatch(500, []byte(`<html>oops</html>`), &ack, nil)
	var te *clienterrors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 500, te.Status)
	assert.Equal(t, "<html>oops</html>", string(te.Body))
	assert.NotErrorIs(t, err, clienterrors.ErrEngine)
}

func TestDispatchUndecodableSuccess(t *testing.T) {
	var ack reply.Acknowledged
	err := Dispatch(200, []byte(`{"acknowledged":"yes"}`), &ack, nil)
	assert.ErrorIs(t, err, clienterrors.ErrTransport)
	assert.ErrorIs(t, err, clienterrors.ErrSchemaMismatch)

	err = Dispatch(200, []byte(`{"acknowledged":`), &ack, nil)
	assert.ErrorIs(t, err, clienterrors.ErrTransport)
	assert.ErrorIs(t, err, clienterrors.ErrDecode)

	err = Dispatch(200, nil, &ack, nil)
	assert.ErrorIs(t, err, clienterrors.ErrDecode)
}

func TestDispatchHead(t *testing.T) {
	var ex reply.Exists
	require.NoError(t, Dispatch(200, nil, &ex, nil))
	assert.True(t, ex.Exists)

	ex = reply.Exists{}
	require.NoError(t, Dispatch(404, nil, &ex, func(s int) bool { return s == http.StatusNotFound }))
	assert.False(t, ex.Exists)
	assert.Equal(t, 404, ex.Status)
}

func TestDispatchNilTarget(t *testing.T) {
	assert.NoError(t, Dispatch(200, []byte(`{"anything":1}`), nil, nil))
	assert.NoError(t, Dispatch(204, nil, nil, nil))
}

func TestHasErrorShape(t *testing.T) {
	assert.True(t, HasErrorShape([]byte(`{"error":{}}`)))
	assert.True(t, HasErrorShape([]byte(`{"error":"x"}`)))
	assert.False(t, HasErrorShape([]byte(`{"error":""}`)))
	assert.False(t, HasErrorShape([]byte(`not json`)))
	assert.False(t, HasErrorShape(nil))
}
