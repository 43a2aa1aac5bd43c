package reply

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// Bulk is the engine's summary of a bulk request. Items are in request
// order.
type Bulk struct {
	Took   int        `json:"took"`
	Errors bool       `json:"errors"`
	Items  []BulkItem `json:"items"`
}

// BulkItem is the outcome of one action. The engine wraps each item in an
// object keyed by the action verb; Verb records that key.
type BulkItem struct {
	Verb    string
	Index   string
	Type    string
	ID      string
	Version int64
	Result  string
	Status  int
	Error   *ErrorBody
}

// Failed reports whether the engine rejected this action. Deleting a
// missing document answers 404 without an error and is not a failure.
func (bi *BulkItem) Failed() bool {
	if bi.Error != nil {
		return true
	}
	if bi.Verb == "delete" && bi.Status == http.StatusNotFound {
		return false
	}
	return bi.Status >= 300
}

func (bi *BulkItem) UnmarshalJSON(data []byte) error {
	type innerT struct {
		Index   string     `json:"_index"`
		Type    string     `json:"_type"`
		ID      string     `json:"_id"`
		Version int64      `json:"_version"`
		Result  string     `json:"result"`
		Status  int        `json:"status"`
		Error   *ErrorBody `json:"error,omitempty"`
	}

	var w map[string]innerT
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if len(w) != 1 {
		return fmt.Errorf("bulk item has %d verb keys, want 1", len(w))
	}

	for verb, v := range w {
		switch verb {
		case "index", "create", "update", "delete":
		default:
			return errors.New("unknown bulk action " + verb)
		}
		*bi = BulkItem{
			Verb:    verb,
			Index:   v.Index,
			Type:    v.Type,
			ID:      v.ID,
			Version: v.Version,
			Result:  v.Result,
			Status:  v.Status,
			Error:   v.Error,
		}
	}
	return nil
}

func (bi BulkItem) MarshalJSON() ([]byte, error) {
	type innerT struct {
		Index   string     `json:"_index"`
		Type    string     `json:"_type,omitempty"`
		ID      string     `json:"_id"`
		Version int64      `json:"_version,omitempty"`
		Result  string     `json:"result,omitempty"`
		Status  int        `json:"status"`
		Error   *ErrorBody `json:"error,omitempty"`
	}
	return json.Marshal(map[string]innerT{bi.Verb: {
		Index:   bi.Index,
		Type:    bi.Type,
		ID:      bi.ID,
		Version: bi.Version,
		Result:  bi.Result,
		Status:  bi.Status,
		Error:   bi.Error,
	}})
}

// BulkFailure pairs a rejected item with its position in the request.
type BulkFailure struct {
	Position int
	Item     BulkItem
}

// Failures lists rejected items. It walks the items even when the Errors
// flag is false, because some engine versions omit it.
func (b *Bulk) Failures() []BulkFailure {
	var out []BulkFailure
	for i := range b.Items {
		if b.Items[i].Failed() {
			out = append(out, BulkFailure{Position: i, Item: b.Items[i]})
		}
	}
	return out
}
