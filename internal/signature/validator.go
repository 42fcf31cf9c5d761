package signature

import (
	"net"
	"net/url"
	"strings"
)

// Validator authenticates deliveries for one auth token. Unlike the bare
// Verify functions it also accepts the request URL with its default port
// added or removed, since proxies in front of the receiver disagree on
// whether the port is part of the URL the sender signed.
type Validator struct {
	AuthToken string
}

func NewValidator(authToken string) Validator {
	return Validator{AuthToken: authToken}
}

// Validate checks a form-encoded (or empty) delivery.
func (v Validator) Validate(requestURL string, values url.Values, header string) bool {
	for _, candidate := range urlVariants(requestURL) {
		if VerifyValues(v.AuthToken, candidate, values, header) {
			return true
		}
	}
	return false
}

// ValidateBody checks a JSON delivery.
func (v Validator) ValidateBody(requestURL string, body []byte, header string) bool {
	for _, candidate := range urlVariants(requestURL) {
		if VerifyBody(v.AuthToken, candidate, body, header) {
			return true
		}
	}
	return false
}

// ValidateEnvelope dispatches on the shape of the delivery: form fields win,
// then a bodySHA256-bound JSON body, then a bare URL.
func (v Validator) ValidateEnvelope(env Envelope) bool {
	if len(env.Fields) > 0 {
		return v.Validate(env.RequestURL, env.Fields, env.SignatureHeader)
	}
	if hasBodyHash(env.RequestURL) {
		return v.ValidateBody(env.RequestURL, env.Body, env.SignatureHeader)
	}
	return v.Validate(env.RequestURL, nil, env.SignatureHeader)
}

func hasBodyHash(requestURL string) bool {
	u, err := url.Parse(requestURL)
	if err != nil {
		return false
	}
	return u.Query().Has(BodyHashParam)
}

func urlVariants(raw string) []string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return []string{raw}
	}
	defaultPort := ""
	switch strings.ToLower(u.Scheme) {
	case "https":
		defaultPort = "443"
	case "http":
		defaultPort = "80"
	default:
		return []string{raw}
	}

	alt := *u
	if port := u.Port(); port != "" {
		if port != defaultPort {
			return []string{raw}
		}
		alt.Host = u.Hostname()
		if strings.Contains(alt.Host, ":") {
			alt.Host = "[" + alt.Host + "]"
		}
	} else {
		alt.Host = net.JoinHostPort(u.Hostname(), defaultPort)
	}
	return []string{raw, alt.String()}
}
