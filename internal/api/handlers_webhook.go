package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	ce "sinkrelay/internal/cloudevents"
	"sinkrelay/internal/journal"
	"sinkrelay/internal/signature"
)

// idempotencyHeader is set by the sender and stays the same across retries.
const idempotencyHeader = "I-Twilio-Idempotency-Token"

// handleWebhookSink receives a sink delivery. The signature outcome is
// logged and journaled but, unless enforcement is on, never changes the
// response: the sender always gets a 200.
func (s *Server) handleWebhookSink(w http.ResponseWriter, r *http.Request) {
	body, err := readBodyLimited(w, r, maxBodyBytes)
	if err != nil {
		writeBodyErr(w, err)
		return
	}
	log := s.log.WithName("webhook")
	contentType := r.Header.Get("Content-Type")
	env := signature.Envelope{
		SignatureHeader: r.Header.Get(signature.Header),
		RequestURL:      s.deliveryURL(r),
		Body:            body,
	}
	var eventData interface{}
	if isFormContentType(contentType) {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			log.V(1).Info("form body did not parse cleanly", "error", err.Error())
		}
		env.Fields = values
		eventData = formData(values)
	} else {
		eventData = jsonData(body)
	}

	valid := s.validator.ValidateEnvelope(env)
	if valid {
		log.Info("Valid signature. Processing event.")
	} else {
		log.Info("Invalid signature.",
			"twilio_signature", env.SignatureHeader,
			"request_uri", env.RequestURL,
			"event_data", eventData,
		)
	}
	log.Info("Event received", "event_data", eventData)
	log.Info("Request headers", "headers", r.Header)

	var summary ce.Summary
	if len(body) > 0 && (contentType == "" || ce.IsJSONContentType(contentType)) {
		batch, err := ce.Decode(body)
		if err != nil {
			log.V(1).Info("delivery is not a valid CloudEvents batch", "error", err.Error())
		}
		for _, e := range batch {
			log.V(1).Info("CloudEvent", "id", e.ID(), "type", e.Type(), "source", e.Source(), "data", ce.DataMap(e))
		}
		summary = ce.Summarize(batch)
	}

	bodyText, bodyEncoding := journal.EncodeBody(body)
	rec := journal.Delivery{
		ID:             journal.DeliveryID(r.Header.Get(idempotencyHeader), body),
		ReceivedAt:     time.Now().UTC(),
		SignatureValid: valid,
		RequestURL:     env.RequestURL,
		ContentType:    contentType,
		EventIDs:       summary.IDs,
		EventTypes:     summary.Types,
		Body:           bodyText,
		BodyEncoding:   bodyEncoding,
	}
	if err := s.journal.Append(r.Context(), rec); err != nil {
		log.Error(err, "journal append failed", "delivery_id", rec.ID)
		s.metrics.ObserveJournalError()
	}
	s.metrics.ObserveDelivery(valid, len(summary.IDs))

	if !valid && s.webhook.EnforceSignature {
		writeError(w, http.StatusForbidden, "INVALID_SIGNATURE", "invalid "+signature.Header, nil, false)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
	})
}

// deliveryURL is the URL the sender signed: the configured public base, or
// the scheme and host the request arrived with, plus path and query.
func (s *Server) deliveryURL(r *http.Request) string {
	base := strings.TrimRight(s.webhook.PublicURL, "/")
	if base == "" {
		base = requestBaseURL(r)
	}
	return base + r.URL.RequestURI()
}

func formData(values url.Values) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		if len(v) == 1 {
			out[k] = v[0]
			continue
		}
		out[k] = v
	}
	return out
}

func jsonData(body []byte) interface{} {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	var out interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		return string(body)
	}
	return out
}
