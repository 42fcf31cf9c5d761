// Package events is the client boundary for the remote Event Streams API:
// sinks and subscriptions CRUD.
package events

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sinkrelay/internal/subscription"
)

// PageSize caps every list call. There is no cursor support.
const PageSize = 20

var ErrNotFound = errors.New("not found")

type Sink struct {
	SID           string                 `json:"sid"`
	Description   string                 `json:"description"`
	Status        string                 `json:"status"`
	SinkType      string                 `json:"sink_type"`
	Configuration map[string]interface{} `json:"sink_configuration,omitempty"`
	DateCreated   *time.Time             `json:"date_created,omitempty"`
	DateUpdated   *time.Time             `json:"date_updated,omitempty"`
	URL           string                 `json:"url,omitempty"`
}

type Subscription struct {
	SID         string     `json:"sid"`
	AccountSID  string     `json:"account_sid,omitempty"`
	Description string     `json:"description"`
	SinkSID     string     `json:"sink_sid"`
	DateCreated *time.Time `json:"date_created,omitempty"`
	DateUpdated *time.Time `json:"date_updated,omitempty"`
	URL         string     `json:"url,omitempty"`
}

type CreateSinkInput struct {
	Description string
	Destination string
	Method      string
	SinkType    string
}

// Configuration renders the sink_configuration object for a webhook sink.
func (in CreateSinkInput) Configuration() map[string]interface{} {
	method := in.Method
	if method == "" {
		method = http.MethodPost
	}
	return map[string]interface{}{
		"destination":  in.Destination,
		"method":       method,
		"batch_events": false,
	}
}

func (in CreateSinkInput) Type() string {
	if in.SinkType == "" {
		return "webhook"
	}
	return in.SinkType
}

type API interface {
	ListSinks(ctx context.Context) ([]Sink, error)
	CreateSink(ctx context.Context, in CreateSinkInput) (Sink, error)
	FetchSink(ctx context.Context, sid string) (Sink, error)
	DeleteSink(ctx context.Context, sid string) error
	ListSubscriptions(ctx context.Context, sinkSID string) ([]Subscription, error)
	CreateSubscription(ctx context.Context, req subscription.Request) (Subscription, error)
	FetchSubscription(ctx context.Context, sid string) (Subscription, error)
	DeleteSubscription(ctx context.Context, sid string) error
}

// RemoteError is a non-2xx answer from the events API.
type RemoteError struct {
	Status   int
	Code     int
	Message  string
	MoreInfo string
}

func (e *RemoteError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("events api: status %d code %d: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("events api: status %d: %s", e.Status, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}
