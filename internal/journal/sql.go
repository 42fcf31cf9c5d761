package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type SQLJournal struct {
	db      *sql.DB
	dialect string
}

func NewSQLJournal(db *sql.DB, dialect string) (*SQLJournal, error) {
	if db == nil {
		return nil, fmt.Errorf("nil db")
	}
	d := strings.ToLower(strings.TrimSpace(dialect))
	if d == "" {
		return nil, fmt.Errorf("empty dialect")
	}
	if d != "postgres" && d != "sqlite" {
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}
	return &SQLJournal{db: db, dialect: d}, nil
}

func (s *SQLJournal) Append(ctx context.Context, d Delivery) error {
	if err := validate(d); err != nil {
		return err
	}
	ids, err := json.Marshal(nonNil(d.EventIDs))
	if err != nil {
		return err
	}
	types, err := json.Marshal(nonNil(d.EventTypes))
	if err != nil {
		return err
	}
	insert := "INSERT INTO deliveries (delivery_id, received_at, signature_valid, request_url, content_type, event_ids, event_types, body, body_encoding) VALUES (" +
		s.ph(1) + "," + s.ph(2) + "," + s.ph(3) + "," + s.ph(4) + "," + s.ph(5) + "," + s.ph(6) + "," + s.ph(7) + "," + s.ph(8) + "," + s.ph(9) + ")"
	_, err = s.db.ExecContext(ctx, insert,
		d.ID,
		s.tsValue(d.ReceivedAt),
		d.SignatureValid,
		d.RequestURL,
		nullable(d.ContentType),
		string(ids),
		string(types),
		d.Body,
		nullable(d.BodyEncoding),
	)
	return err
}

func (s *SQLJournal) Recent(ctx context.Context, limit int) ([]Delivery, error) {
	limit = clampLimit(limit)
	query := `SELECT delivery_id, received_at, signature_valid, request_url, content_type, event_ids, event_types, body, body_encoding FROM deliveries ORDER BY seq DESC LIMIT ` + s.ph(1)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Delivery, 0, limit)
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLJournal) Close() error { return s.db.Close() }

func (s *SQLJournal) ph(n int) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLJournal) tsValue(t time.Time) interface{} {
	if s.dialect == "sqlite" {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDelivery(row rowScanner) (Delivery, error) {
	var d Delivery
	var receivedRaw interface{}
	var contentType, bodyEncoding sql.NullString
	var idsRaw, typesRaw interface{}

	if err := row.Scan(
		&d.ID,
		&receivedRaw,
		&d.SignatureValid,
		&d.RequestURL,
		&contentType,
		&idsRaw,
		&typesRaw,
		&d.Body,
		&bodyEncoding,
	); err != nil {
		return Delivery{}, err
	}
	d.ContentType = contentType.String
	d.BodyEncoding = bodyEncoding.String

	ts, err := parseTimeRaw(receivedRaw)
	if err != nil {
		return Delivery{}, err
	}
	d.ReceivedAt = ts

	if b := bytesFrom(idsRaw); len(b) > 0 && string(b) != "[]" {
		if err := json.Unmarshal(b, &d.EventIDs); err != nil {
			return Delivery{}, err
		}
	}
	if b := bytesFrom(typesRaw); len(b) > 0 && string(b) != "[]" {
		if err := json.Unmarshal(b, &d.EventTypes); err != nil {
			return Delivery{}, err
		}
	}
	return d, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nullable(in string) interface{} {
	if strings.TrimSpace(in) == "" {
		return nil
	}
	return in
}

func bytesFrom(v interface{}) []byte {
	switch t := v.(type) {
	case []byte:
		return t
	case string:
		return []byte(t)
	default:
		return nil
	}
}

func parseTimeRaw(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case []byte:
		return parseTimeString(string(t))
	case string:
		return parseTimeString(t)
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unsupported time type %T", v)
	}
}

func parseTimeString(in string) (time.Time, error) {
	in = strings.TrimSpace(in)
	if in == "" {
		return time.Time{}, nil
	}
	formats := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999-07:00", "2006-01-02 15:04:05-07:00", "2006-01-02 15:04:05"}
	for _, f := range formats {
		if t, err := time.Parse(f, in); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", in)
}
