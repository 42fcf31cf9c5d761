package journal

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sinkrelay/db"
	"sinkrelay/internal/migrate"

	_ "modernc.org/sqlite"
)

func sampleDelivery(n int, valid bool) Delivery {
	return Delivery{
		ID:             fmt.Sprintf("dlv_%d", n),
		ReceivedAt:     time.Date(2026, 10, 19, 10, 0, n, 0, time.UTC),
		SignatureValid: valid,
		RequestURL:     "https://relay.example.com/webhook-sink",
		ContentType:    "application/json",
		EventIDs:       []string{fmt.Sprintf("EZ%d", n)},
		EventTypes:     []string{"com.twilio.messaging.message.sent"},
		Body:           fmt.Sprintf(`[{"id":"EZ%d"}]`, n),
	}
}

// exercise runs the shared contract against any implementation.
func exercise(t *testing.T, j Journal) {
	t.Helper()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := j.Append(ctx, sampleDelivery(i, i%2 == 1)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	// retried delivery keeps its id and is appended again
	if err := j.Append(ctx, sampleDelivery(3, false)); err != nil {
		t.Fatalf("append retry: %v", err)
	}

	got, err := j.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 deliveries, got %d", len(got))
	}
	if got[0].ID != "dlv_3" || got[0].SignatureValid || got[1].ID != "dlv_3" || !got[1].SignatureValid {
		t.Fatalf("expected newest first with retry on top, got %+v", got[:2])
	}
	if got[3].ID != "dlv_1" || !got[3].ReceivedAt.Equal(sampleDelivery(1, true).ReceivedAt) {
		t.Fatalf("unexpected oldest delivery: %+v", got[3])
	}
	if len(got[3].EventIDs) != 1 || got[3].EventIDs[0] != "EZ1" || got[3].ContentType != "application/json" {
		t.Fatalf("fields lost in round trip: %+v", got[3])
	}

	two, err := j.Recent(ctx, 2)
	if err != nil || len(two) != 2 || two[0].ID != "dlv_3" || two[1].ID != "dlv_3" {
		t.Fatalf("expected two newest, got %+v err=%v", two, err)
	}

	if err := j.Append(ctx, Delivery{ReceivedAt: time.Now()}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing id, got %v", err)
	}
	if err := j.Append(ctx, Delivery{ID: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing time, got %v", err)
	}
}

func TestMemoryJournal(t *testing.T) {
	exercise(t, NewMemoryJournal())
}

func TestEncodeBody(t *testing.T) {
	if text, enc := EncodeBody([]byte(`{"a":"<b>"}`)); text != `{"a":"<b>"}` || enc != "" {
		t.Fatalf("utf-8 body must stay verbatim, got %q %q", text, enc)
	}
	for _, raw := range [][]byte{{0xff, 0xfe, 'x'}, []byte("a\x00b")} {
		text, enc := EncodeBody(raw)
		if enc != BodyEncodingBase64 {
			t.Fatalf("expected base64 for %q, got %q", raw, enc)
		}
		decoded, err := base64.StdEncoding.DecodeString(text)
		if err != nil || string(decoded) != string(raw) {
			t.Fatalf("base64 body does not round trip: %q err=%v", decoded, err)
		}
	}
}

// exerciseBinaryBody checks that an encoded body and its encoding survive storage.
func exerciseBinaryBody(t *testing.T, j Journal) {
	t.Helper()
	ctx := context.Background()
	d := sampleDelivery(7, false)
	d.Body, d.BodyEncoding = EncodeBody([]byte("bin\x00\xff"))
	if err := j.Append(ctx, d); err != nil {
		t.Fatalf("append binary delivery: %v", err)
	}
	got, err := j.Recent(ctx, 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("recent: %v", err)
	}
	if got[0].Body != d.Body || got[0].BodyEncoding != BodyEncodingBase64 {
		t.Fatalf("binary body lost: %+v", got[0])
	}
}

func TestFileJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "deliveries.log")
	j, err := NewFileJournal(path)
	if err != nil {
		t.Fatalf("new file journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	exercise(t, j)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if lines := strings.Count(string(raw), "\n"); lines != 4 {
		t.Fatalf("expected 4 json lines, got %d", lines)
	}
	exerciseBinaryBody(t, j)
}

func TestFileJournalReadsOversizedLines(t *testing.T) {
	ctx := context.Background()
	j, err := NewFileJournal(filepath.Join(t.TempDir(), "deliveries.log"))
	if err != nil {
		t.Fatalf("new file journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	big := sampleDelivery(2, false)
	// every '<' is written as \u003c, so this line is about 6 MiB
	big.Body = strings.Repeat("<", 1<<20)
	for _, d := range []Delivery{sampleDelivery(1, true), big, sampleDelivery(3, true)} {
		if err := j.Append(ctx, d); err != nil {
			t.Fatalf("append %s: %v", d.ID, err)
		}
	}

	got, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 || got[0].ID != "dlv_3" || got[1].ID != "dlv_2" || got[2].ID != "dlv_1" {
		t.Fatalf("expected all three deliveries newest first, got %d", len(got))
	}
	if len(got[1].Body) != 1<<20 {
		t.Fatalf("large body truncated to %d bytes", len(got[1].Body))
	}
}

func TestFileJournalReopenAppends(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "deliveries.log")
	first, err := NewFileJournal(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = first.Append(ctx, sampleDelivery(1, true))
	_ = first.Close()
	if err := first.Append(ctx, sampleDelivery(9, true)); err == nil {
		t.Fatalf("expected append on closed journal to fail")
	}

	second, err := NewFileJournal(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })
	_ = second.Append(ctx, sampleDelivery(2, false))
	got, err := second.Recent(ctx, 10)
	if err != nil || len(got) != 2 {
		t.Fatalf("expected both deliveries after reopen, got %d err=%v", len(got), err)
	}
}

func TestSQLJournalSQLite(t *testing.T) {
	ctx := context.Background()
	conn, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migrate.NewRunner(db.Migrations).Apply(ctx, conn, "sqlite"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	j, err := NewSQLJournal(conn, "sqlite")
	if err != nil {
		t.Fatalf("new sql journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	exercise(t, j)
	exerciseBinaryBody(t, j)
}

func TestNewSQLJournalRejectsDialects(t *testing.T) {
	if _, err := NewSQLJournal(nil, "sqlite"); err == nil {
		t.Fatalf("expected nil db error")
	}
	conn, _ := sql.Open("sqlite", ":memory:")
	defer conn.Close()
	if _, err := NewSQLJournal(conn, "mysql"); err == nil {
		t.Fatalf("expected unsupported dialect error")
	}
}

func TestDeliveryID(t *testing.T) {
	if got := DeliveryID(" idem-123 ", []byte("x")); got != "idem-123" {
		t.Fatalf("expected idempotency token, got %q", got)
	}
	a := DeliveryID("", []byte("body"))
	b := DeliveryID("", []byte("body"))
	if a != b || !strings.HasPrefix(a, "dlv_") || len(a) != len("dlv_")+16 {
		t.Fatalf("unexpected fallback id %q / %q", a, b)
	}
}
