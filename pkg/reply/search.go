package reply

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/serializer"
)

// Search is returned by the search API.
type Search struct {
	Took     int    `json:"took"`
	TimedOut bool   `json:"timed_out"`
	Shards   Shards `json:"_shards"`
	Hits     Hits   `json:"hits"`
}

// Hits is the hits block of a search reply.
type Hits struct {
	Total    Total    `json:"total"`
	MaxScore *float64 `json:"max_score"`
	Hits     []Hit    `json:"hits"`
}

// Total is the hit count. Older engines report a bare number, newer ones an
// object with a relation; both decode here.
type Total struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation,omitempty"`
}

func (t *Total) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*t = Total{}
		return nil
	}
	if trimmed[0] != '{' {
		var n int64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return fmt.Errorf("decoding hits total: %w", err)
		}
		*t = Total{Value: n, Relation: "eq"}
		return nil
	}
	type plain Total
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return fmt.Errorf("decoding hits total: %w", err)
	}
	*t = Total(p)
	return nil
}

// Hit is a single search result.
type Hit struct {
	Index  string          `json:"_index"`
	Type   string          `json:"_type,omitempty"`
	ID     string          `json:"_id"`
	Score  *float64        `json:"_score"`
	Source json.RawMessage `json:"_source,omitempty"`
}

// SourceAs decodes the hit's source into target.
func (h *Hit) SourceAs(target any) error {
	return serializer.Decode(h.Source, target)
}
