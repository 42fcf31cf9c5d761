package api

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"
)

// jwksKeyCache holds the RSA keys of a JWKS endpoint, refetched when stale
// or when a token names an unknown kid. Callers serialize access.
type jwksKeyCache struct {
	url          string
	refreshEvery time.Duration
	fetchedAt    time.Time
	keys         map[string]*rsa.PublicKey
	client       *http.Client
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func newJWKSKeyCache(cfg JWTPolicy) *jwksKeyCache {
	url := strings.TrimSpace(cfg.JWKSURL)
	if !cfg.Enabled || url == "" {
		return nil
	}
	refresh, err := time.ParseDuration(strings.TrimSpace(cfg.JWKSRefresh))
	if err != nil || refresh <= 0 {
		refresh = 5 * time.Minute
	}
	return &jwksKeyCache{
		url:          url,
		refreshEvery: refresh,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *jwksKeyCache) resolveKey(kid string) (*rsa.PublicKey, error) {
	stale := time.Since(c.fetchedAt) >= c.refreshEvery
	if key, ok := c.keys[kid]; ok && !stale {
		return key, nil
	}
	if err := c.refresh(); err != nil {
		// keep serving the last good set while the endpoint is down
		if key, ok := c.keys[kid]; ok {
			return key, nil
		}
		return nil, err
	}
	key, ok := c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("jwks key %q not found", kid)
	}
	return key, nil
}

func (c *jwksKeyCache) refresh() error {
	resp, err := c.client.Get(c.url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("jwks fetch failed: status %d", resp.StatusCode)
	}
	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return err
	}
	next := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if !strings.EqualFold(strings.TrimSpace(k.Kty), "RSA") || strings.TrimSpace(k.Kid) == "" {
			continue
		}
		key, err := rsaKeyFromJWK(k.N, k.E)
		if err != nil {
			continue
		}
		next[k.Kid] = key
	}
	if len(next) == 0 {
		return errors.New("jwks contains no rsa keys")
	}
	c.keys = next
	c.fetchedAt = time.Now()
	return nil
}

func rsaKeyFromJWK(nB64, eB64 string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(nB64))
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(eB64))
	if err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(nb)
	e := new(big.Int).SetBytes(eb)
	if n.Sign() <= 0 || e.Sign() <= 0 || !e.IsInt64() {
		return nil, errors.New("invalid rsa jwk parameters")
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}
