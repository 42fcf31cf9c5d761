package bootstrap

import (
	"context"
	"database/sql"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sinkrelay/db"
	"sinkrelay/internal/api"
	"sinkrelay/internal/config"
	"sinkrelay/internal/events"
	"sinkrelay/internal/journal"
	"sinkrelay/internal/migrate"
	"sinkrelay/internal/observability"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/jackc/pgx/v5/stdlib"

	_ "modernc.org/sqlite"
)

type Runtime struct {
	Handler  http.Handler
	Registry *prometheus.Registry
	Cleanup  func()
}

func NewRuntime(ctx context.Context, cfg config.Config, logger logr.Logger) *Runtime {
	client := buildEventsClient(cfg, logger)
	j, cleanup := buildJournal(ctx, cfg, logger.WithName("journal"))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server := api.NewServer(client, api.ServerOptions{
		Logger:  logger.WithName("api"),
		Journal: j,
		Metrics: observability.NewWebhookMetrics(reg),
		Auth: api.AuthConfig{
			AdminToken: cfg.Auth.AdminToken,
			OIDC: api.OIDCPolicy{
				Enabled:     cfg.Auth.OIDC.Enabled,
				RolesHeader: cfg.Auth.OIDC.RolesHeader,
			},
			JWT: api.JWTPolicy{
				Enabled:           cfg.Auth.JWT.Enabled,
				Issuer:            cfg.Auth.JWT.Issuer,
				Audience:          cfg.Auth.JWT.Audience,
				RolesClaim:        cfg.Auth.JWT.RolesClaim,
				HS256Secret:       cfg.Auth.JWT.HS256Secret,
				RS256PublicKeyPEM: cfg.Auth.JWT.RS256PublicKeyPEM,
				JWKSURL:           cfg.Auth.JWT.JWKSURL,
				JWKSRefresh:       cfg.Auth.JWT.JWKSRefresh.String(),
			},
			Audit: api.AuditPolicy{
				LogFile: cfg.Auth.Audit.LogFile,
			},
			Rate: api.RateLimitPolicy{
				Enabled:        cfg.Auth.RateLimit.Enabled,
				AdminPerMinute: cfg.Auth.RateLimit.AdminPerMinute,
			},
		},
		Webhook: api.WebhookPolicy{
			AuthToken:        cfg.Twilio.AuthToken,
			PublicURL:        cfg.PublicURL,
			EnforceSignature: cfg.Webhook.EnforceSignature,
		},
		Sink: api.SinkPolicy{
			Description: cfg.Sink.Description,
			PublicURL:   cfg.PublicURL,
		},
	})

	metrics := observability.NewHTTPMetrics(reg)
	rootMux := http.NewServeMux()
	rootMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	rootMux.Handle("/", metrics.Wrap(server.Routes()))

	return &Runtime{
		Handler:  rootMux,
		Registry: reg,
		Cleanup:  cleanup,
	}
}

func buildEventsClient(cfg config.Config, logger logr.Logger) events.API {
	if cfg.Events.Backend == "memory" {
		logger.Info("running with in-memory events api; sinks and subscriptions are not sent upstream")
		return events.NewMemoryClient()
	}
	return events.NewTwilioClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
}

// buildJournal opens the configured delivery journal. A SQL journal that
// cannot be reached or migrated falls back to the file journal, and a file
// that cannot be opened falls back to memory: losing the journal must not
// stop the relay from acknowledging deliveries.
func buildJournal(ctx context.Context, cfg config.Config, logger logr.Logger) (journal.Journal, func()) {
	switch cfg.Journal.Driver {
	case "memory":
		logger.Info("running with in-memory delivery journal")
		return journal.NewMemoryJournal(), func() {}
	case "pgx", "sqlite":
		j, err := openSQLJournal(ctx, cfg)
		if err == nil {
			logger.Info("running with SQL delivery journal", "dialect", cfg.JournalDialect())
			return j, func() { _ = j.Close() }
		}
		logger.Error(err, "sql journal unavailable, falling back to file journal", "driver", cfg.Journal.Driver)
	}

	path := cfg.Journal.File
	if strings.TrimSpace(path) == "" {
		path = "./data/logs/deliveries.log"
	}
	fj, err := journal.NewFileJournal(path)
	if err != nil {
		logger.Error(err, "file journal unavailable, falling back to in-memory journal", "path", path)
		return journal.NewMemoryJournal(), func() {}
	}
	logger.Info("running with file delivery journal", "path", path)
	return fj, func() { _ = fj.Close() }
}

func openSQLJournal(ctx context.Context, cfg config.Config) (*journal.SQLJournal, error) {
	conn, err := sql.Open(cfg.Journal.Driver, applyPostgresTLS(cfg))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if cfg.Journal.Migrate {
		if err := migrate.NewRunner(db.Migrations).Apply(ctx, conn, cfg.JournalDialect()); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	j, err := journal.NewSQLJournal(conn, cfg.JournalDialect())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return j, nil
}

// applyPostgresTLS folds the journal sslmode/sslrootcert/sslcert/sslkey
// settings into a URL-form postgres DSN. Keyword/value DSNs pass through.
func applyPostgresTLS(cfg config.Config) string {
	dsn := cfg.Journal.DSN
	if cfg.Journal.Driver != "pgx" {
		return dsn
	}
	params := map[string]string{
		"sslmode":     strings.TrimSpace(cfg.Journal.SSLMode),
		"sslrootcert": strings.TrimSpace(cfg.Journal.SSLRootCert),
		"sslcert":     strings.TrimSpace(cfg.Journal.SSLCert),
		"sslkey":      strings.TrimSpace(cfg.Journal.SSLKey),
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return dsn
	}
	q := u.Query()
	changed := false
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
			changed = true
		}
	}
	if !changed {
		return dsn
	}
	u.RawQuery = q.Encode()
	return u.String()
}
