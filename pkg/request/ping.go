package request

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/reply"
)

// Ping probes the engine root. Any 2xx means the engine is reachable.
type Ping struct{}

func (Ping) Method() string        { return http.MethodHead }
func (Ping) Path() string          { return "/" }
func (Ping) Payload() (any, bool)  { return nil, false }
func (Ping) NewReply() reply.Reply { return &reply.Exists{} }
