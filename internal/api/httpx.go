package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"sinkrelay/internal/events"
)

const maxBodyBytes int64 = 1 << 20 // 1 MiB

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, errCode, message string, details interface{}, retryable bool) {
	writeJSON(w, code, map[string]interface{}{
		"error": map[string]interface{}{
			"code":      errCode,
			"message":   message,
			"details":   details,
			"retryable": retryable,
		},
	})
}

// handleRemoteErr maps an events API failure onto the gateway's own status.
// Upstream credential problems are the relay's fault, not the caller's.
func handleRemoteErr(w http.ResponseWriter, err error) {
	var remote *events.RemoteError
	if !errors.As(err, &remote) {
		writeError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", err.Error(), nil, true)
		return
	}
	details := map[string]interface{}{
		"upstream_status": remote.Status,
	}
	if remote.Code != 0 {
		details["upstream_code"] = remote.Code
	}
	if remote.MoreInfo != "" {
		details["more_info"] = remote.MoreInfo
	}
	switch {
	case remote.Status == http.StatusNotFound:
		writeError(w, http.StatusNotFound, "NOT_FOUND", remote.Message, details, false)
	case remote.Status == http.StatusUnauthorized, remote.Status == http.StatusForbidden:
		writeError(w, http.StatusBadGateway, "UPSTREAM_AUTH", remote.Message, details, false)
	case remote.Status >= 400 && remote.Status < 500:
		writeError(w, http.StatusBadRequest, "UPSTREAM_REJECTED", remote.Message, details, false)
	default:
		writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", remote.Message, details, true)
	}
}

func readBodyLimited(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	return io.ReadAll(r.Body)
}

// writeBodyErr reports a readBodyLimited failure.
func writeBodyErr(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body is too large", nil, false)
		return
	}
	writeError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read body", nil, false)
}

func isFormContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct == "application/x-www-form-urlencoded"
}

func firstHeaderValue(r *http.Request, name string) string {
	v := r.Header.Get(name)
	if i := strings.Index(v, ","); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

// requestBaseURL rebuilds scheme://host as the client addressed it,
// honouring the usual reverse-proxy headers.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := strings.ToLower(firstHeaderValue(r, "X-Forwarded-Proto")); proto == "http" || proto == "https" {
		scheme = proto
	}
	host := r.Host
	if fwd := firstHeaderValue(r, "X-Forwarded-Host"); fwd != "" {
		host = fwd
	}
	return scheme + "://" + host
}
