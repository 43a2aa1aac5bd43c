// Package bulkable defines the closed set of document operations that can be
// batched into a single bulk call, and the polymorphic JSON form used to
// carry them as messages.
//
// Each action is also a standalone request: it satisfies request.Request so
// it can be sent on its own or encoded into a bulk body.
package bulkable

import (
	"cmp"
	"fmt"

	clienterrors "github.com/Adithya-Monish-Kumar-K/searchclient/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/request"
)

// Kind is the discriminator of an action in its polymorphic JSON form.
type Kind string

const (
	KindIndex        Kind = "index"
	KindUpdate       Kind = "update"
	KindUpdateScript Kind = "update_script"
	KindDelete       Kind = "delete"
)

// Kinds enumerates every shipped variant. The registry is checked against
// this list when the package initialises.
func Kinds() []Kind {
	return []Kind{KindIndex, KindUpdate, KindUpdateScript, KindDelete}
}

// Verb is the action name on a bulk metadata line.
type Verb string

const (
	VerbIndex  Verb = "index"
	VerbCreate Verb = "create"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
)

// Meta is the body of a bulk metadata line.
type Meta struct {
	Index           string `json:"_index,omitempty"`
	Type            string `json:"_type,omitempty"`
	ID              string `json:"_id,omitempty"`
	Routing         string `json:"routing,omitempty"`
	Version         int64  `json:"version,omitempty"`
	RetryOnConflict int    `json:"retry_on_conflict,omitempty"`
}

// Action is a bulkable document operation.
type Action interface {
	request.Request

	// Kind is the polymorphic discriminator.
	Kind() Kind
	// Verb is the bulk action name; it can differ from Kind.
	Verb() Verb
	// Meta returns the target coordinates and per-action options.
	Meta() Meta
	// Body returns the bulk source line value. ok is false for actions
	// that have no source line.
	Body() (body any, ok bool)
	// Equal compares semantic fields only.
	Equal(other Action) bool
	// Validate checks the fields a bulk line cannot do without.
	Validate() error

	validateIn(defaultIndex string) error
	sealed()
}

// ValidateIn checks a as part of a bulk call whose path names
// defaultIndex, so an action without its own index is accepted when
// defaultIndex is set.
func ValidateIn(a Action, defaultIndex string) error {
	return a.validateIn(defaultIndex)
}

func validateTarget(kind Kind, index, defaultIndex, id string, needID bool) error {
	if index == "" && defaultIndex == "" {
		return fmt.Errorf("%w: %s action without index", clienterrors.ErrInvalidInput, kind)
	}
	if needID && id == "" {
		return fmt.Errorf("%w: %s action on %s without id", clienterrors.ErrInvalidInput, kind, cmp.Or(index, defaultIndex))
	}
	return nil
}
