package events

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"sinkrelay/internal/subscription"
)

// MemoryClient is an in-process stand-in for the events API, used for local
// development without an account and in tests. Listing follows the remote
// contract: newest first, at most PageSize items.
type MemoryClient struct {
	mu            sync.RWMutex
	seq           int
	sinks         map[string]Sink
	subscriptions map[string]memorySubscription
	now           func() time.Time
}

type memorySubscription struct {
	Subscription
	Types []subscription.EventTypeSpec
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		sinks:         map[string]Sink{},
		subscriptions: map[string]memorySubscription{},
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryClient) nextSID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s%032x", prefix, m.seq)
}

func (m *MemoryClient) ListSinks(ctx context.Context) ([]Sink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Sink, 0, len(m.sinks))
	for _, s := range m.sinks {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SID > out[j].SID })
	if len(out) > PageSize {
		out = out[:PageSize]
	}
	return out, nil
}

func (m *MemoryClient) CreateSink(ctx context.Context, in CreateSinkInput) (Sink, error) {
	if err := ctx.Err(); err != nil {
		return Sink{}, err
	}
	if in.Description == "" {
		return Sink{}, &RemoteError{Status: http.StatusBadRequest, Code: 20001, Message: "Missing required parameter Description in the post body"}
	}
	if in.Destination == "" {
		return Sink{}, &RemoteError{Status: http.StatusBadRequest, Code: 20001, Message: "Invalid sink configuration: destination is required"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	sid := m.nextSID("DG")
	s := Sink{
		SID:           sid,
		Description:   in.Description,
		Status:        "initialized",
		SinkType:      in.Type(),
		Configuration: in.Configuration(),
		DateCreated:   &now,
		DateUpdated:   &now,
		URL:           "https://events.twilio.com/v1/Sinks/" + sid,
	}
	m.sinks[sid] = s
	return s, nil
}

func (m *MemoryClient) FetchSink(ctx context.Context, sid string) (Sink, error) {
	if err := ctx.Err(); err != nil {
		return Sink{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sinks[sid]
	if !ok {
		return Sink{}, notFound("Sink", sid)
	}
	return s, nil
}

func (m *MemoryClient) DeleteSink(ctx context.Context, sid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sinks[sid]; !ok {
		return notFound("Sink", sid)
	}
	delete(m.sinks, sid)
	return nil
}

func (m *MemoryClient) ListSubscriptions(ctx context.Context, sinkSID string) ([]Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Subscription, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		if sinkSID != "" && s.SinkSID != sinkSID {
			continue
		}
		out = append(out, s.Subscription)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SID > out[j].SID })
	if len(out) > PageSize {
		out = out[:PageSize]
	}
	return out, nil
}

func (m *MemoryClient) CreateSubscription(ctx context.Context, req subscription.Request) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return Subscription{}, err
	}
	if req.Description == "" {
		return Subscription{}, &RemoteError{Status: http.StatusBadRequest, Code: 20001, Message: "Missing required parameter Description in the post body"}
	}
	if len(req.Types) == 0 {
		return Subscription{}, &RemoteError{Status: http.StatusBadRequest, Code: 20001, Message: "Missing required parameter Types in the post body"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sinks[req.SinkSID]; !ok {
		return Subscription{}, notFound("Sink", req.SinkSID)
	}
	now := m.now()
	sid := m.nextSID("DF")
	s := Subscription{
		SID:         sid,
		AccountSID:  "AC00000000000000000000000000000000",
		Description: req.Description,
		SinkSID:     req.SinkSID,
		DateCreated: &now,
		DateUpdated: &now,
		URL:         "https://events.twilio.com/v1/Subscriptions/" + sid,
	}
	m.subscriptions[sid] = memorySubscription{
		Subscription: s,
		Types:        append([]subscription.EventTypeSpec(nil), req.Types...),
	}
	return s, nil
}

func (m *MemoryClient) FetchSubscription(ctx context.Context, sid string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return Subscription{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subscriptions[sid]
	if !ok {
		return Subscription{}, notFound("Subscription", sid)
	}
	return s.Subscription, nil
}

func (m *MemoryClient) DeleteSubscription(ctx context.Context, sid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscriptions[sid]; !ok {
		return notFound("Subscription", sid)
	}
	delete(m.subscriptions, sid)
	return nil
}

// SubscribedTypes returns the event types recorded for a subscription.
func (m *MemoryClient) SubscribedTypes(sid string) []subscription.EventTypeSpec {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]subscription.EventTypeSpec(nil), m.subscriptions[sid].Types...)
}

func notFound(resource, sid string) error {
	return &RemoteError{
		Status:  http.StatusNotFound,
		Code:    20404,
		Message: fmt.Sprintf("The requested resource /%ss/%s was not found", resource, sid),
	}
}
