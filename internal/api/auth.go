package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var errRateLimited = errors.New("rate limited")

// admin guards a gateway route with the configured admin policy.
func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.authorizeAdmin(r); err != nil {
			if errors.Is(err, errRateLimited) {
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", err.Error(), nil, true)
				return
			}
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), nil, false)
			return
		}
		next(w, r)
	}
}

func (s *Server) authorizeAdmin(r *http.Request) error {
	if s.rateLimiter != nil && !s.rateLimiter.Allow(r, "admin") {
		s.auditAuth(r, "deny", "rate_limit", "", nil, "admin rate limit exceeded")
		return errRateLimited
	}
	enforced, err := s.authorizeRoles(r, "admin", "operator")
	if err != nil {
		s.auditAuth(r, "deny", "roles", "", nil, err.Error())
		return err
	}
	if enforced {
		return nil
	}
	return s.authorizeAdminToken(r)
}

func (s *Server) authorizeAdminToken(r *http.Request) error {
	token := strings.TrimSpace(s.auth.AdminToken)
	if token == "" {
		s.auditAuth(r, "allow", "none", "", nil, "")
		return nil
	}
	if !matchBearer(r.Header.Get("Authorization"), token) {
		s.auditAuth(r, "deny", "bearer", "", nil, "missing or invalid bearer token")
		return errors.New("missing or invalid bearer token")
	}
	s.auditAuth(r, "allow", "bearer", "static-token", nil, "")
	return nil
}

func withAuthDefaults(in AuthConfig) AuthConfig {
	if strings.TrimSpace(in.OIDC.RolesHeader) == "" {
		in.OIDC.RolesHeader = "X-Auth-Roles"
	}
	if strings.TrimSpace(in.JWT.RolesClaim) == "" {
		in.JWT.RolesClaim = "roles"
	}
	if strings.TrimSpace(in.JWT.JWKSRefresh) == "" {
		in.JWT.JWKSRefresh = "5m"
	}
	if in.Rate.AdminPerMinute <= 0 {
		in.Rate.AdminPerMinute = 120
	}
	return in
}

func matchBearer(header, expected string) bool {
	provided := bearerToken(header)
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

// authorizeRoles reports whether a role source is configured and, if so,
// whether the caller holds one of the allowed roles.
func (s *Server) authorizeRoles(r *http.Request, allowed ...string) (bool, error) {
	source, subject, roles, enforced, err := s.resolveRoles(r)
	if err != nil {
		return true, err
	}
	if !enforced {
		return false, nil
	}
	roleSet := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		roleSet[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}
	for _, needed := range allowed {
		if _, ok := roleSet[strings.ToLower(strings.TrimSpace(needed))]; ok {
			s.auditAuth(r, "allow", source, subject, roles, "")
			return true, nil
		}
	}
	return true, errors.New("insufficient role")
}
