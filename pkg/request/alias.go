package request

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/reply"
)

// AddAlias gives an index another name by which it may be addressed.
type AddAlias struct {
	Index string
	Alias string
}

func NewAddAlias(index, alias string) *AddAlias {
	return &AddAlias{Index: index, Alias: alias}
}

func (r *AddAlias) Method() string        { return http.MethodPut }
func (r *AddAlias) Path() string          { return RawPath(Escape(r.Index), "_alias", Escape(r.Alias)) }
func (r *AddAlias) Payload() (any, bool)  { return nil, false }
func (r *AddAlias) NewReply() reply.Reply { return &reply.Acknowledged{} }

// DeleteAlias removes an alias from an index.
type DeleteAlias struct {
	Index string
	Alias string
}

func NewDeleteAlias(index, alias string) *DeleteAlias {
	return &DeleteAlias{Index: index, Alias: alias}
}

func (r *DeleteAlias) Method() string        { return http.MethodDelete }
func (r *DeleteAlias) Path() string          { return RawPath(Escape(r.Index), "_alias", Escape(r.Alias)) }
func (r *DeleteAlias) Payload() (any, bool)  { return nil, false }
func (r *DeleteAlias) NewReply() reply.Reply { return &reply.Acknowledged{} }
