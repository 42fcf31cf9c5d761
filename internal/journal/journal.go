// Package journal keeps an append-only record of received webhook
// deliveries and the outcome of their signature check.
package journal

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

const BodyEncodingBase64 = "base64"

var ErrInvalidInput = errors.New("invalid input")

type Delivery struct {
	ID             string    `json:"id"`
	ReceivedAt     time.Time `json:"received_at"`
	SignatureValid bool      `json:"signature_valid"`
	RequestURL     string    `json:"request_url"`
	ContentType    string    `json:"content_type,omitempty"`
	EventIDs       []string  `json:"event_ids,omitempty"`
	EventTypes     []string  `json:"event_types,omitempty"`
	Body           string    `json:"body"`
	// BodyEncoding is "base64" when the raw body was not storable as text.
	BodyEncoding   string    `json:"body_encoding,omitempty"`
}

type Journal interface {
	Append(ctx context.Context, d Delivery) error
	// Recent returns up to limit deliveries, newest first.
	Recent(ctx context.Context, limit int) ([]Delivery, error)
	Close() error
}

// DeliveryID prefers the sender's idempotency token and falls back to a
// digest of the body, so retried deliveries share an id.
func DeliveryID(idempotencyToken string, body []byte) string {
	token := strings.TrimSpace(idempotencyToken)
	if token != "" {
		return token
	}
	sum := sha256.Sum256(body)
	return "dlv_" + hex.EncodeToString(sum[:8])
}

// EncodeBody returns body as journal text. Bodies that are not valid UTF-8
// or that contain NUL bytes are base64 encoded, since TEXT columns and JSON
// lines cannot hold them verbatim.
func EncodeBody(body []byte) (text, encoding string) {
	if utf8.Valid(body) && !bytes.ContainsRune(body, 0) {
		return string(body), ""
	}
	return base64.StdEncoding.EncodeToString(body), BodyEncodingBase64
}

func validate(d Delivery) error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: delivery id is required", ErrInvalidInput)
	}
	if d.ReceivedAt.IsZero() {
		return fmt.Errorf("%w: received_at is required", ErrInvalidInput)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		return MaxRecentLimit
	}
	return limit
}

type MemoryJournal struct {
	mu         sync.RWMutex
	deliveries []Delivery
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (m *MemoryJournal) Append(ctx context.Context, d Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(d); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, d)
	return nil
}

func (m *MemoryJournal) Recent(ctx context.Context, limit int) ([]Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Delivery, 0, min(limit, len(m.deliveries)))
	for i := len(m.deliveries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.deliveries[i])
	}
	return out, nil
}

func (m *MemoryJournal) Close() error { return nil }
