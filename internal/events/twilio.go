package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sinkrelay/internal/subscription"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	eventsv1 "github.com/twilio/twilio-go/rest/events/v1"
)

// TwilioClient talks to the Twilio Events v1 API. The SDK calls are not
// context aware; ctx is only checked before each call.
type TwilioClient struct {
	api *eventsv1.ApiService
}

func NewTwilioClient(accountSID, authToken string) *TwilioClient {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioClient{api: rest.EventsV1}
}

func (c *TwilioClient) ListSinks(ctx context.Context) ([]Sink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params := &eventsv1.ListSinkParams{}
	params.SetPageSize(PageSize)
	params.SetLimit(PageSize)
	raw, err := c.api.ListSink(params)
	if err != nil {
		return nil, translateErr(err)
	}
	out := make([]Sink, 0, len(raw))
	for _, r := range raw {
		var s Sink
		if err := convert(r, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *TwilioClient) CreateSink(ctx context.Context, in CreateSinkInput) (Sink, error) {
	if err := ctx.Err(); err != nil {
		return Sink{}, err
	}
	params := &eventsv1.CreateSinkParams{}
	params.SetDescription(in.Description)
	params.SetSinkConfiguration(in.Configuration())
	params.SetSinkType(in.Type())
	raw, err := c.api.CreateSink(params)
	if err != nil {
		return Sink{}, translateErr(err)
	}
	var s Sink
	return s, convert(raw, &s)
}

func (c *TwilioClient) FetchSink(ctx context.Context, sid string) (Sink, error) {
	if err := ctx.Err(); err != nil {
		return Sink{}, err
	}
	raw, err := c.api.FetchSink(sid)
	if err != nil {
		return Sink{}, translateErr(err)
	}
	var s Sink
	return s, convert(raw, &s)
}

func (c *TwilioClient) DeleteSink(ctx context.Context, sid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translateErr(c.api.DeleteSink(sid))
}

func (c *TwilioClient) ListSubscriptions(ctx context.Context, sinkSID string) ([]Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params := &eventsv1.ListSubscriptionParams{}
	if sinkSID != "" {
		params.SetSinkSid(sinkSID)
	}
	params.SetPageSize(PageSize)
	params.SetLimit(PageSize)
	raw, err := c.api.ListSubscription(params)
	if err != nil {
		return nil, translateErr(err)
	}
	out := make([]Subscription, 0, len(raw))
	for _, r := range raw {
		var s Subscription
		if err := convert(r, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *TwilioClient) CreateSubscription(ctx context.Context, req subscription.Request) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return Subscription{}, err
	}
	params := &eventsv1.CreateSubscriptionParams{}
	params.SetDescription(req.Description)
	params.SetSinkSid(req.SinkSID)
	params.SetTypes(req.TypesPayload())
	raw, err := c.api.CreateSubscription(params)
	if err != nil {
		return Subscription{}, translateErr(err)
	}
	var s Subscription
	return s, convert(raw, &s)
}

func (c *TwilioClient) FetchSubscription(ctx context.Context, sid string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return Subscription{}, err
	}
	raw, err := c.api.FetchSubscription(sid)
	if err != nil {
		return Subscription{}, translateErr(err)
	}
	var s Subscription
	return s, convert(raw, &s)
}

func (c *TwilioClient) DeleteSubscription(ctx context.Context, sid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translateErr(c.api.DeleteSubscription(sid))
}

// convert maps an SDK model onto ours through its wire JSON, which uses the
// same snake_case names as our tags.
func convert(src, dst interface{}) error {
	b, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("encode events api model: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode events api model: %w", err)
	}
	return nil
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		return &RemoteError{
			Status:   restErr.Status,
			Code:     restErr.Code,
			Message:  restErr.Message,
			MoreInfo: restErr.MoreInfo,
		}
	}
	return fmt.Errorf("events api: %w", err)
}
