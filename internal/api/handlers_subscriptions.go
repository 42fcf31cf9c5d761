package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"

	"sinkrelay/internal/subscription"
)

type subscribeBody struct {
	Description string                  `json:"description"`
	Type        subscription.EventTypes `json:"type"`
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.client.ListSubscriptions(r.Context(), r.PathValue("sid"))
	if err != nil {
		handleRemoteErr(w, err)
		return
	}
	sids := make([]string, 0, len(subs))
	for _, sub := range subs {
		sids = append(sids, sub.SID)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "success",
		"subscriptions": sids,
	})
}

// handleSubscribe subscribes the sink in the path to one or many event
// types. The body is JSON or form encoded; a missing type, or a body that
// does not decode, yields an empty type list, which the events API rejects.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	body, err := readBodyLimited(w, r, maxBodyBytes)
	if err != nil {
		writeBodyErr(w, err)
		return
	}
	in, err := parseSubscribeBody(r.Header.Get("Content-Type"), body)
	if err != nil {
		s.log.V(1).Info("subscribe body did not decode, sending empty request", "error", err.Error())
		in = subscribeBody{}
	}
	req := subscription.NewRequest(in.Description, r.PathValue("sid"), in.Type)
	sub, err := s.client.CreateSubscription(r.Context(), req)
	if err != nil {
		s.log.Error(err, "create subscription failed", "sink_sid", req.SinkSID, "types", in.Type.Names())
		handleRemoteErr(w, err)
		return
	}
	s.log.Info("subscription created", "sid", sub.SID, "sink_sid", req.SinkSID, "types", in.Type.Names())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "success",
		"subscription": sub,
	})
}

func parseSubscribeBody(contentType string, body []byte) (subscribeBody, error) {
	var in subscribeBody
	if isFormContentType(contentType) {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return in, err
		}
		in.Description = values.Get("description")
		in.Type = subscription.FromValues(values, "type")
		return in, nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return in, nil
	}
	err := json.Unmarshal(body, &in)
	return in, err
}

func (s *Server) handleFetchSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.client.FetchSubscription(r.Context(), r.PathValue("sid"))
	if err != nil {
		handleRemoteErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "success",
		"subscription": sub,
	})
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("sid")
	if err := s.client.DeleteSubscription(r.Context(), sid); err != nil {
		s.log.Error(err, "delete subscription failed", "sid", sid)
		handleRemoteErr(w, err)
		return
	}
	s.log.Info("subscription deleted", "sid", sid)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "Subscription was deleted",
	})
}
