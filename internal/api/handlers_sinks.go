package api

import (
	"net/http"
	"strings"
	"time"

	"sinkrelay/internal/events"
)

const webhookSinkPath = "/webhook-sink"

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "sinkrelay",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListSinks(w http.ResponseWriter, r *http.Request) {
	sinks, err := s.client.ListSinks(r.Context())
	if err != nil {
		s.log.Error(err, "list sinks failed")
		handleRemoteErr(w, err)
		return
	}
	sids := make([]string, 0, len(sinks))
	for _, sink := range sinks {
		sids = append(sids, sink.SID)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"sinks":  sids,
	})
}

// handleCreateSink registers this relay's webhook receiver as a sink. The
// destination is the configured public URL, or the address the caller used
// to reach the relay when none is configured.
func (s *Server) handleCreateSink(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimRight(s.sink.PublicURL, "/")
	if base == "" {
		base = requestBaseURL(r)
	}
	in := events.CreateSinkInput{
		Description: s.sink.Description,
		Destination: base + webhookSinkPath,
		Method:      http.MethodPost,
		SinkType:    "webhook",
	}
	sink, err := s.client.CreateSink(r.Context(), in)
	if err != nil {
		s.log.Error(err, "create sink failed", "destination", in.Destination)
		handleRemoteErr(w, err)
		return
	}
	s.log.Info("sink created", "sid", sink.SID, "destination", in.Destination, "status", sink.Status)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"sink":   sink,
	})
}

func (s *Server) handleFetchSink(w http.ResponseWriter, r *http.Request) {
	sink, err := s.client.FetchSink(r.Context(), r.PathValue("sid"))
	if err != nil {
		handleRemoteErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"sink":   sink,
	})
}

func (s *Server) handleDeleteSink(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("sid")
	if err := s.client.DeleteSink(r.Context(), sid); err != nil {
		s.log.Error(err, "delete sink failed", "sid", sid)
		handleRemoteErr(w, err)
		return
	}
	s.log.Info("sink deleted", "sid", sid)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "Sink was deleted",
	})
}
