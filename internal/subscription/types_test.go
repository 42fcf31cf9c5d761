package subscription

import (
	"encoding/json"
	"net/url"
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   EventTypes
		want []EventTypeSpec
	}{
		{
			name: "single",
			in:   Single("foo"),
			want: []EventTypeSpec{{Type: "foo", SchemaVersion: "1"}},
		},
		{
			name: "many keeps order and duplicates",
			in:   Many([]string{"a", "b", "a"}),
			want: []EventTypeSpec{
				{Type: "a", SchemaVersion: "1"},
				{Type: "b", SchemaVersion: "1"},
				{Type: "a", SchemaVersion: "1"},
			},
		},
		{
			name: "empty",
			in:   Many([]string{}),
			want: []EventTypeSpec{},
		},
		{
			name: "zero value",
			in:   EventTypes{},
			want: []EventTypeSpec{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.in)
			if got == nil {
				t.Fatalf("expected non-nil slice")
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestEventTypesUnmarshalJSON(t *testing.T) {
	var body struct {
		Type EventTypes `json:"type"`
	}

	if err := json.Unmarshal([]byte(`{"type":"com.twilio.messaging.message.sent"}`), &body); err != nil {
		t.Fatalf("unmarshal single: %v", err)
	}
	if !body.Type.IsSingle() || body.Type.Names()[0] != "com.twilio.messaging.message.sent" {
		t.Fatalf("unexpected single decode: %+v", body.Type.Names())
	}

	if err := json.Unmarshal([]byte(`{"type":["a","b"]}`), &body); err != nil {
		t.Fatalf("unmarshal many: %v", err)
	}
	if body.Type.IsSingle() || !reflect.DeepEqual(body.Type.Names(), []string{"a", "b"}) {
		t.Fatalf("unexpected many decode: %+v", body.Type.Names())
	}

	for _, raw := range []string{`{"type":null}`, `{"type":42}`, `{"type":[1,2]}`, `{}`} {
		body.Type = EventTypes{}
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			t.Fatalf("%s: malformed types must not error: %v", raw, err)
		}
		if n := len(Normalize(body.Type)); n != 0 {
			t.Fatalf("%s: expected empty normalization, got %d entries", raw, n)
		}
	}
}

func TestEventTypesMarshalJSON(t *testing.T) {
	b, err := json.Marshal(Single("x"))
	if err != nil || string(b) != `"x"` {
		t.Fatalf("single marshal: %s %v", b, err)
	}
	b, err = json.Marshal(EventTypes{})
	if err != nil || string(b) != `[]` {
		t.Fatalf("empty marshal: %s %v", b, err)
	}
}

func TestFromValues(t *testing.T) {
	single := FromValues(url.Values{"type": {"a"}}, "type")
	if !single.IsSingle() {
		t.Fatalf("expected single from one form value")
	}
	many := FromValues(url.Values{"type[]": {"a", "b"}}, "type")
	if many.IsSingle() || !reflect.DeepEqual(many.Names(), []string{"a", "b"}) {
		t.Fatalf("unexpected bracketed decode: %+v", many.Names())
	}
	repeated := FromValues(url.Values{"type": {"a", "a"}}, "type")
	if !reflect.DeepEqual(repeated.Names(), []string{"a", "a"}) {
		t.Fatalf("unexpected repeated decode: %+v", repeated.Names())
	}
	if len(Normalize(FromValues(url.Values{}, "type"))) != 0 {
		t.Fatalf("missing type must normalize to empty")
	}
}

func TestRequestTypesPayload(t *testing.T) {
	req := NewRequest(" billing events ", "DG123", Many([]string{"a", "b"}))
	if req.Description != "billing events" || req.SinkSID != "DG123" {
		t.Fatalf("unexpected request: %+v", req)
	}
	payload := req.TypesPayload()
	if len(payload) != 2 {
		t.Fatalf("expected 2 payload entries, got %d", len(payload))
	}
	first, ok := payload[0].(map[string]interface{})
	if !ok || first["type"] != "a" || first["schema_version"] != "1" {
		t.Fatalf("unexpected payload entry: %#v", payload[0])
	}
}
