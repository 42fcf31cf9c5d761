package api

import (
	"net/http"
	"strconv"
	"strings"
)

func (s *Server) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a non-negative integer", nil, false)
			return
		}
		limit = n
	}
	items, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error(err, "journal read failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil, true)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"deliveries": items,
	})
}
