// Package cloudevents decodes Event Streams webhook deliveries. A sink
// delivers either one CloudEvent or a JSON array of them.
package cloudevents

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudevents/sdk-go/v2/event"
)

// Summary is the part of a delivery worth indexing.
type Summary struct {
	IDs   []string `json:"ids"`
	Types []string `json:"types"`
}

// Decode parses a JSON delivery body. Events that decode but fail CloudEvents
// validation are returned together with a non-nil error naming them.
func Decode(body []byte) ([]event.Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty delivery body")
	}

	var batch []event.Event
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, fmt.Errorf("invalid batch JSON: %w", err)
		}
	} else {
		var single event.Event
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		batch = []event.Event{single}
	}
	return batch, Validate(batch)
}

// Summarize collects event ids and types in delivery order.
func Summarize(events []event.Event) Summary {
	s := Summary{
		IDs:   make([]string, 0, len(events)),
		Types: make([]string, 0, len(events)),
	}
	for _, e := range events {
		s.IDs = append(s.IDs, e.ID())
		s.Types = append(s.Types, e.Type())
	}
	return s
}

// DataMap returns the event payload as a generic map, or nil when it is not a JSON object.
func DataMap(e event.Event) map[string]interface{} {
	if len(e.Data()) == 0 {
		return nil
	}
	var out map[string]interface{}
	if err := e.DataAs(&out); err != nil {
		return nil
	}
	return out
}

// IsJSONContentType reports whether a Content-Type header announces a JSON body.
func IsJSONContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	return ct == "application/json" ||
		ct == "application/cloudevents+json" ||
		ct == "application/cloudevents-batch+json"
}
