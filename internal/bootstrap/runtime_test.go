package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"sinkrelay/internal/config"
	"sinkrelay/internal/journal"

	"github.com/go-logr/logr"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Addr:    ":0",
		Events:  config.EventsConfig{Backend: "memory"},
		Twilio:  config.TwilioConfig{AuthToken: "12345"},
		Sink:    config.SinkConfig{Description: "runtime test"},
		Journal: config.JournalConfig{Driver: "file", File: filepath.Join(t.TempDir(), "deliveries.log")},
	}
}

func TestRuntimeServesRoutesAndMetrics(t *testing.T) {
	rt := NewRuntime(context.Background(), memoryConfig(t), logr.Discard())
	defer rt.Cleanup()

	res := httptest.NewRecorder()
	rt.Handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/create-sink", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 from create-sink, got %d: %s", res.Code, res.Body.String())
	}
	res = httptest.NewRecorder()
	rt.Handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/webhook-sink", strings.NewReader(`[]`)))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 from webhook, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	rt.Handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := res.Body.String()
	for _, want := range []string{
		`sinkrelay_http_requests_total{method="GET",path="GET /create-sink",status="200"} 1`,
		`sinkrelay_webhook_deliveries_total{signature="invalid"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}

func TestRuntimesDoNotShareRegistries(t *testing.T) {
	a := NewRuntime(context.Background(), memoryConfig(t), logr.Discard())
	defer a.Cleanup()
	b := NewRuntime(context.Background(), memoryConfig(t), logr.Discard())
	defer b.Cleanup()
	if a.Registry == b.Registry {
		t.Fatalf("expected a registry per runtime")
	}
}

func TestBuildJournalFallsBack(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig(t)
	cfg.Journal.Driver = "sqlite"
	cfg.Journal.DSN = filepath.Join(t.TempDir(), "missing-dir", "nested", "journal.db")
	cfg.Journal.Migrate = true

	j, cleanup := buildJournal(ctx, cfg, logr.Discard())
	defer cleanup()
	if _, ok := j.(*journal.FileJournal); !ok {
		t.Fatalf("expected fallback to file journal, got %T", j)
	}

	cfg.Journal.DSN = filepath.Join(t.TempDir(), "journal.db")
	j2, cleanup2 := buildJournal(ctx, cfg, logr.Discard())
	defer cleanup2()
	if _, ok := j2.(*journal.SQLJournal); !ok {
		t.Fatalf("expected sqlite journal, got %T", j2)
	}

	cfg.Journal.Driver = "memory"
	j3, cleanup3 := buildJournal(ctx, cfg, logr.Discard())
	defer cleanup3()
	if _, ok := j3.(*journal.MemoryJournal); !ok {
		t.Fatalf("expected memory journal, got %T", j3)
	}
}

func TestApplyPostgresTLS(t *testing.T) {
	cfg := config.Config{Journal: config.JournalConfig{
		Driver:  "pgx",
		DSN:     "postgres://relay:pw@db:5432/relay",
		SSLMode: "verify-full",
		SSLCert: "/certs/client.crt",
	}}
	got := applyPostgresTLS(cfg)
	if !strings.Contains(got, "sslmode=verify-full") || !strings.Contains(got, "sslcert=%2Fcerts%2Fclient.crt") {
		t.Fatalf("unexpected dsn %q", got)
	}

	cfg.Journal.DSN = "host=db user=relay"
	if got := applyPostgresTLS(cfg); got != "host=db user=relay" {
		t.Fatalf("keyword dsn must pass through, got %q", got)
	}
	cfg.Journal.Driver = "sqlite"
	cfg.Journal.DSN = "file:relay.db"
	if got := applyPostgresTLS(cfg); got != "file:relay.db" {
		t.Fatalf("non-postgres dsn must pass through, got %q", got)
	}
}
