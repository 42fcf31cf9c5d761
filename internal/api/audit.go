package api

import (
	"encoding/json"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

type auditEvent struct {
	Time      string   `json:"time"`
	Decision  string   `json:"decision"`
	Mechanism string   `json:"mechanism"`
	Actor     string   `json:"actor,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	Method    string   `json:"method"`
	Route     string   `json:"route"`
	Path      string   `json:"path"`
	RemoteIP  string   `json:"remote_ip,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// auditAuth records one admin authorization decision in the service log
// and, when configured, as a JSON line in the audit file.
func (s *Server) auditAuth(r *http.Request, decision, mechanism, actor string, roles []string, reason string) {
	ev := auditEvent{
		Time:      time.Now().UTC().Format(time.RFC3339),
		Decision:  decision,
		Mechanism: mechanism,
		Actor:     strings.TrimSpace(actor),
		Roles:     roles,
		Method:    r.Method,
		Route:     r.Pattern,
		Path:      r.URL.Path,
		RemoteIP:  requestRemoteIP(r),
		RequestID: strings.TrimSpace(r.Header.Get("X-Request-Id")),
		Reason:    strings.TrimSpace(reason),
	}
	log := s.log.WithName("audit")
	if decision == "deny" {
		log.Info("admin request denied", "mechanism", ev.Mechanism, "route", ev.Route, "remote_ip", ev.RemoteIP, "reason", ev.Reason)
	} else {
		log.V(1).Info("admin request allowed", "mechanism", ev.Mechanism, "actor", ev.Actor, "route", ev.Route)
	}
	s.writeAuditLine(ev)
}

func requestRemoteIP(r *http.Request) string {
	if xff := firstHeaderValue(r, "X-Forwarded-For"); xff != "" {
		return xff
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func (s *Server) writeAuditLine(ev auditEvent) {
	path := strings.TrimSpace(s.auth.Audit.LogFile)
	if path == "" {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		s.log.Error(err, "audit file unavailable", "path", path)
		return
	}
	defer f.Close()
	_, _ = f.Write(append(b, '\n'))
}
