// Package subscription builds the event-type payload of a create-subscription request.
package subscription

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
)

// SchemaVersion is attached to every subscribed event type.
const SchemaVersion = "1"

type EventTypeSpec struct {
	Type          string `json:"type"`
	SchemaVersion string `json:"schema_version"`
}

// EventTypes is either a single event type name or an ordered list of them.
// The zero value is an empty list.
type EventTypes struct {
	single   string
	many     []string
	isSingle bool
}

func Single(eventType string) EventTypes {
	return EventTypes{single: eventType, isSingle: true}
}

func Many(eventTypes []string) EventTypes {
	return EventTypes{many: append([]string(nil), eventTypes...)}
}

func (e EventTypes) IsSingle() bool { return e.isSingle }

// Names returns the event type names in input order.
func (e EventTypes) Names() []string {
	if e.isSingle {
		return []string{e.single}
	}
	return append([]string(nil), e.many...)
}

// UnmarshalJSON accepts a string or an array of strings. Anything else,
// including null or an array holding non-strings, decodes to an empty list.
func (e *EventTypes) UnmarshalJSON(b []byte) error {
	*e = EventTypes{}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			*e = Single(s)
		}
	case '[':
		var list []string
		if err := json.Unmarshal(trimmed, &list); err == nil {
			*e = Many(list)
		}
	}
	return nil
}

func (e EventTypes) MarshalJSON() ([]byte, error) {
	if e.isSingle {
		return json.Marshal(e.single)
	}
	if e.many == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(e.many)
}

// FromValues reads event types from a form. A single "type" value is a
// Single; repeated "type" or "type[]" values form a Many.
func FromValues(values url.Values, key string) EventTypes {
	plain := values[key]
	bracketed := values[key+"[]"]
	if len(bracketed) == 0 && len(plain) == 1 {
		return Single(plain[0])
	}
	out := make([]string, 0, len(plain)+len(bracketed))
	out = append(out, plain...)
	out = append(out, bracketed...)
	return Many(out)
}

// Normalize expands event types into specs, one per name, order preserved
// and duplicates kept. It never returns nil.
func Normalize(e EventTypes) []EventTypeSpec {
	names := e.Names()
	out := make([]EventTypeSpec, 0, len(names))
	for _, name := range names {
		out = append(out, EventTypeSpec{Type: name, SchemaVersion: SchemaVersion})
	}
	return out
}

// Request is the transient payload of one create-subscription call.
type Request struct {
	Description string          `json:"description"`
	SinkSID     string          `json:"sink_id"`
	Types       []EventTypeSpec `json:"types"`
}

func NewRequest(description, sinkSID string, types EventTypes) Request {
	return Request{
		Description: strings.TrimSpace(description),
		SinkSID:     strings.TrimSpace(sinkSID),
		Types:       Normalize(types),
	}
}

// TypesPayload renders Types as the list of objects the events API expects.
func (r Request) TypesPayload() []interface{} {
	out := make([]interface{}, 0, len(r.Types))
	for _, t := range r.Types {
		out = append(out, map[string]interface{}{
			"type":           t.Type,
			"schema_version": t.SchemaVersion,
		})
	}
	return out
}
