// Package signature verifies the X-Twilio-Signature header carried by
// webhook deliveries.
//
// The signature is base64(HMAC-SHA1(authToken, message)) where message is the
// full request URL followed by every POST field as key+value, keys sorted
// ascending. JSON deliveries carry no fields; their body is bound to the
// signature through a bodySHA256 query parameter on the signed URL.
package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Header is the request header that carries the signature.
const Header = "X-Twilio-Signature"

// BodyHashParam is the query parameter holding hex(SHA-256(body)) for JSON deliveries.
const BodyHashParam = "bodySHA256"

// Envelope is everything needed to authenticate one inbound delivery.
type Envelope struct {
	SignatureHeader string
	RequestURL      string
	Fields          url.Values
	Body            []byte
}

// Compute returns the signature a sender attaches for requestURL and fields.
func Compute(authToken, requestURL string, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(requestURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(fields[k])
	}
	return sign(authToken, b.String())
}

// ComputeValues is Compute for multi-valued form fields. Repeated keys
// contribute one key+value pair per distinct value, values sorted ascending.
func ComputeValues(authToken, requestURL string, values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(requestURL)
	for _, k := range keys {
		vs := append([]string(nil), values[k]...)
		sort.Strings(vs)
		for i, v := range vs {
			if i > 0 && v == vs[i-1] {
				continue
			}
			b.WriteString(k)
			b.WriteString(v)
		}
	}
	return sign(authToken, b.String())
}

// Verify reports whether header is the signature of requestURL and fields
// under authToken. It never panics; an empty header is simply invalid.
func Verify(authToken, requestURL string, fields map[string]string, header string) bool {
	if header == "" {
		return false
	}
	return equal(Compute(authToken, requestURL, fields), header)
}

// VerifyValues is Verify for multi-valued form fields.
func VerifyValues(authToken, requestURL string, values url.Values, header string) bool {
	if header == "" {
		return false
	}
	return equal(ComputeValues(authToken, requestURL, values), header)
}

// VerifyBody checks a JSON delivery: the bodySHA256 parameter of requestURL
// must match body, and header must sign requestURL with no fields.
func VerifyBody(authToken, requestURL string, body []byte, header string) bool {
	if header == "" {
		return false
	}
	u, err := url.Parse(requestURL)
	if err != nil {
		return false
	}
	provided := u.Query().Get(BodyHashParam)
	if provided == "" {
		return false
	}
	if !equal(BodyHash(body), strings.ToLower(provided)) {
		return false
	}
	return Verify(authToken, requestURL, nil, header)
}

// BodyHash returns the lowercase hex SHA-256 of body.
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func sign(authToken, message string) string {
	mac := hmac.New(sha1.New, []byte(authToken))
	_, _ = mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func equal(expected, provided string) bool {
	return hmac.Equal([]byte(expected), []byte(provided))
}
