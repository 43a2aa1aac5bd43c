package enginetest

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/serializer"
)

type bulkMeta struct {
	Index   string `json:"_index"`
	Type    string `json:"_type"`
	ID      string `json:"_id"`
	Version int64  `json:"version"`
}

// bulk applies NDJSON actions in order. Item failures are reported per
// item; only a malformed body fails the whole request.
func (e *Engine) bulk(defIndex, defType string, q url.Values, body []byte) (int, any) {
	if len(body) == 0 || body[len(body)-1] != '\n' {
		return errorReply(http.StatusBadRequest, "illegal_argument_exception",
			"The bulk request must be terminated by a newline [\\n]")
	}
	lines := bytes.Split(bytes.TrimSuffix(body, []byte("\n")), []byte("\n"))

	var (
		items   []any
		failed  bool
		touched = map[string]bool{}
	)
	for i := 0; i < len(lines); i++ {
		var head map[string]bulkMeta
		if err := serializer.Decode(lines[i], &head); err != nil || len(head) != 1 {
			return errorReply(http.StatusBadRequest, "illegal_argument_exception",
				fmt.Sprintf("Malformed action/metadata line [%d]", i+1))
		}
		for verb, meta := range head {
			if meta.Index == "" {
				meta.Index = defIndex
			}
			if meta.Type == "" {
				meta.Type = defType
			}
			var source []byte
			if verb != "delete" {
				i++
				if i >= len(lines) {
					return errorReply(http.StatusBadRequest, "illegal_argument_exception",
						fmt.Sprintf("Validation Failed: 1: no source for %s action;", verb))
				}
				source = lines[i]
			}
			status, resp := e.bulkItem(verb, meta, source)
			item := itemOf(resp, meta, status)
			if _, ok := item["error"]; ok {
				failed = true
			}
			items = append(items, map[string]any{verb: item})
			touched[e.resolve(meta.Index)] = true
		}
	}

	if r := q.Get("refresh"); r == "true" || r == "wait_for" || r == "" && q.Has("refresh") {
		for name := range touched {
			if idx := e.indices[name]; idx != nil {
				idx.refresh()
			}
		}
	}
	return http.StatusOK, map[string]any{"took": 1, "errors": failed, "items": items}
}

func (e *Engine) bulkItem(verb string, meta bulkMeta, source []byte) (int, any) {
	if meta.Index == "" {
		return errorReply(http.StatusBadRequest, "action_request_validation_exception", "Validation Failed: 1: index is missing;")
	}
	version := ""
	if meta.Version > 0 {
		version = strconv.FormatInt(meta.Version, 10)
	}
	switch verb {
	case "index", "create":
		var src map[string]any
		if err := serializer.Decode(source, &src); err != nil || src == nil {
			return parseError(source)
		}
		id := meta.ID
		if id == "" {
			e.seq++
			id = fmt.Sprintf("auto-%d", e.seq)
		}
		status, resp, _ := e.put(meta.Index, meta.Type, id, src, verb == "create", version)
		return status, resp
	case "update":
		var ub updateBody
		if err := serializer.Decode(source, &ub); err != nil {
			return parseError(source)
		}
		return e.applyUpdate(meta.Index, meta.Type, meta.ID, ub)
	case "delete":
		q := url.Values{}
		if version != "" {
			q.Set("version", version)
		}
		return e.delete(meta.Index, meta.Type, meta.ID, q)
	}
	return errorReply(http.StatusBadRequest, "illegal_argument_exception", fmt.Sprintf("Unknown action [%s]", verb))
}

// itemOf turns a single-document reply into a bulk item. Error replies
// keep their error object and gain the coordinates.
func itemOf(resp any, meta bulkMeta, status int) map[string]any {
	m, _ := resp.(map[string]any)
	item := map[string]any{"_index": meta.Index, "_type": orDoc(meta.Type), "_id": meta.ID, "status": status}
	if errObj, ok := m["error"]; ok {
		item["error"] = errObj
		return item
	}
	for k, v := range m {
		item[k] = v
	}
	item["status"] = status
	return item
}
