package api

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v4"
)

var jwtMethods = []string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodRS256.Alg()}

func (s *Server) resolveRoles(r *http.Request) (source, subject string, roles []string, enforced bool, err error) {
	switch {
	case s.auth.JWT.Enabled:
		subject, roles, err = s.rolesFromJWT(r)
		return "jwt", subject, roles, true, err
	case s.auth.OIDC.Enabled:
		roles, err = rolesFromHeader(r.Header.Get(s.auth.OIDC.RolesHeader))
		return "header", "", roles, true, err
	default:
		return "", "", nil, false, nil
	}
}

// rolesFromHeader reads the comma separated roles an authenticating proxy
// forwards in front of the relay.
func rolesFromHeader(header string) ([]string, error) {
	out := make([]string, 0, 4)
	for _, part := range strings.Split(header, ",") {
		if role := strings.ToLower(strings.TrimSpace(part)); role != "" {
			out = append(out, role)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("missing roles header")
	}
	return out, nil
}

func (s *Server) rolesFromJWT(r *http.Request) (string, []string, error) {
	raw := bearerToken(r.Header.Get("Authorization"))
	if raw == "" {
		return "", nil, errors.New("missing bearer token")
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, s.jwtKey, jwt.WithValidMethods(jwtMethods))
	if err != nil || !token.Valid {
		return "", nil, errors.New("invalid jwt token")
	}
	if !claims.VerifyIssuer(s.auth.JWT.Issuer, true) {
		return "", nil, errors.New("invalid jwt issuer")
	}
	if !claims.VerifyAudience(s.auth.JWT.Audience, true) {
		return "", nil, errors.New("invalid jwt audience")
	}
	// exp is optional for jwt.Parse; admin tokens must carry one.
	if _, ok := claims["exp"]; !ok {
		return "", nil, errors.New("jwt token missing exp")
	}
	roles := extractClaimRoles(claims, s.auth.JWT.RolesClaim)
	if len(roles) == 0 {
		return "", nil, errors.New("missing jwt roles")
	}
	subject, _ := claims["sub"].(string)
	return strings.TrimSpace(subject), roles, nil
}

func (s *Server) jwtKey(token *jwt.Token) (interface{}, error) {
	switch token.Method.Alg() {
	case jwt.SigningMethodHS256.Alg():
		secret := strings.TrimSpace(s.auth.JWT.HS256Secret)
		if secret == "" {
			return nil, errors.New("hs256 secret not configured")
		}
		return []byte(secret), nil
	case jwt.SigningMethodRS256.Alg():
		if s.jwksCache != nil {
			kid, _ := token.Header["kid"].(string)
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("jwt token missing kid header")
			}
			s.jwksMu.Lock()
			defer s.jwksMu.Unlock()
			return s.jwksCache.resolveKey(strings.TrimSpace(kid))
		}
		pemText := strings.TrimSpace(s.auth.JWT.RS256PublicKeyPEM)
		if pemText == "" {
			return nil, errors.New("rs256 public key not configured")
		}
		return parseRSAPublicKeyPEM(pemText)
	default:
		return nil, fmt.Errorf("unsupported jwt signing algorithm: %s", token.Method.Alg())
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func parseRSAPublicKeyPEM(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid rs256 public key pem")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("rs256 public key is not rsa")
	}
	return pub, nil
}

// extractClaimRoles accepts the roles claim as a list or as a comma or
// space separated string. Roles are lower-cased and deduplicated.
func extractClaimRoles(claims jwt.MapClaims, claimName string) []string {
	claimName = strings.TrimSpace(claimName)
	if claimName == "" {
		claimName = "roles"
	}
	var values []string
	switch vv := claims[claimName].(type) {
	case string:
		values = strings.FieldsFunc(vv, func(r rune) bool { return r == ',' || r == ' ' })
	case []string:
		values = vv
	case []interface{}:
		for _, item := range vv {
			if s, ok := item.(string); ok {
				values = append(values, s)
			}
		}
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if _, dup := seen[v]; v == "" || dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
