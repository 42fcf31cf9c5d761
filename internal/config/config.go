package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr      string `mapstructure:"addr"`
	PublicURL string `mapstructure:"public_url"`
	LogFile   string `mapstructure:"log_file"`
	LogLevel  string `mapstructure:"log_level"`

	Events  EventsConfig  `mapstructure:"events"`
	Twilio  TwilioConfig  `mapstructure:"twilio"`
	Sink    SinkConfig    `mapstructure:"sink"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Journal JournalConfig `mapstructure:"journal"`
	Auth    AuthConfig    `mapstructure:"auth"`
	TLS     TLSConfig     `mapstructure:"tls"`
}

type EventsConfig struct {
	Backend string `mapstructure:"backend"`
}

type TwilioConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
}

type SinkConfig struct {
	Description string `mapstructure:"description"`
}

type WebhookConfig struct {
	EnforceSignature bool `mapstructure:"enforce_signature"`
}

type JournalConfig struct {
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
	File    string `mapstructure:"file"`
	Migrate bool   `mapstructure:"migrate"`

	SSLMode     string `mapstructure:"sslmode"`
	SSLRootCert string `mapstructure:"sslrootcert"`
	SSLCert     string `mapstructure:"sslcert"`
	SSLKey      string `mapstructure:"sslkey"`
}

type AuthConfig struct {
	AdminToken string        `mapstructure:"admin_token"`
	OIDC       OIDCAuth      `mapstructure:"oidc"`
	JWT        JWTAuth       `mapstructure:"jwt"`
	Audit      AuditAuth     `mapstructure:"audit"`
	RateLimit  RateLimitAuth `mapstructure:"rate_limit"`
}

type OIDCAuth struct {
	Enabled     bool   `mapstructure:"enabled"`
	RolesHeader string `mapstructure:"roles_header"`
}

type JWTAuth struct {
	Enabled           bool          `mapstructure:"enabled"`
	Issuer            string        `mapstructure:"issuer"`
	Audience          string        `mapstructure:"audience"`
	RolesClaim        string        `mapstructure:"roles_claim"`
	HS256Secret       string        `mapstructure:"hs256_secret"`
	RS256PublicKeyPEM string        `mapstructure:"rs256_public_key_pem"`
	JWKSURL           string        `mapstructure:"jwks_url"`
	JWKSRefresh       time.Duration `mapstructure:"jwks_refresh"`
}

type AuditAuth struct {
	LogFile string `mapstructure:"log_file"`
}

type RateLimitAuth struct {
	Enabled        bool `mapstructure:"enabled"`
	AdminPerMinute int  `mapstructure:"admin_per_min"`
}

type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// envAliases maps config keys to the environment names the service
// historically read, checked after the SINKRELAY_ prefixed form.
var envAliases = map[string][]string{
	"twilio.account_sid": {"TWILIO_ACCOUNT_SID"},
	"twilio.auth_token":  {"TWILIO_AUTH_TOKEN"},
	"sink.description":   {"TWILIO_SINK_DESCRIPTION"},
	"public_url":         {"NGROK_URL"},
}

var keys = []string{
	"addr",
	"public_url",
	"log_file",
	"log_level",
	"events.backend",
	"twilio.account_sid",
	"twilio.auth_token",
	"sink.description",
	"webhook.enforce_signature",
	"journal.driver",
	"journal.dsn",
	"journal.file",
	"journal.migrate",
	"journal.sslmode",
	"journal.sslrootcert",
	"journal.sslcert",
	"journal.sslkey",
	"auth.admin_token",
	"auth.oidc.enabled",
	"auth.oidc.roles_header",
	"auth.jwt.enabled",
	"auth.jwt.issuer",
	"auth.jwt.audience",
	"auth.jwt.roles_claim",
	"auth.jwt.hs256_secret",
	"auth.jwt.rs256_public_key_pem",
	"auth.jwt.jwks_url",
	"auth.jwt.jwks_refresh",
	"auth.audit.log_file",
	"auth.rate_limit.enabled",
	"auth.rate_limit.admin_per_min",
	"tls.enabled",
	"tls.cert_file",
	"tls.key_file",
}

func LoadFromEnv() Config {
	v := viper.New()
	v.SetEnvPrefix("SINKRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("log_file", "./data/logs/app.log")
	v.SetDefault("log_level", "debug")
	v.SetDefault("events.backend", "twilio")
	v.SetDefault("sink.description", "sinkrelay webhook sink")
	v.SetDefault("webhook.enforce_signature", false)
	v.SetDefault("journal.driver", "file")
	v.SetDefault("journal.file", "./data/logs/deliveries.log")
	v.SetDefault("journal.migrate", true)
	v.SetDefault("auth.jwt.enabled", false)
	v.SetDefault("auth.jwt.roles_claim", "roles")
	v.SetDefault("auth.jwt.jwks_refresh", "5m")
	v.SetDefault("auth.oidc.enabled", false)
	v.SetDefault("auth.oidc.roles_header", "X-Auth-Roles")
	v.SetDefault("auth.rate_limit.enabled", false)
	v.SetDefault("auth.rate_limit.admin_per_min", 120)
	v.SetDefault("tls.enabled", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/sinkrelay/")

	_ = v.ReadInConfig() // ignore if not found

	for _, key := range keys {
		names := []string{"SINKRELAY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		names = append(names, envAliases[key]...)
		_ = v.BindEnv(append([]string{key}, names...)...)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		fmt.Printf("Warning: failed to unmarshal config: %v\n", err)
	}
	cfg.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.PublicURL), "/")
	cfg.Events.Backend = strings.ToLower(strings.TrimSpace(cfg.Events.Backend))
	cfg.Journal.Driver = strings.ToLower(strings.TrimSpace(cfg.Journal.Driver))
	return cfg
}

func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Addr) == "" {
		problems = append(problems, "SINKRELAY_ADDR must not be empty")
	}
	switch c.Events.Backend {
	case "twilio":
		if strings.TrimSpace(c.Twilio.AccountSID) == "" {
			problems = append(problems, "TWILIO_ACCOUNT_SID is required")
		}
		if strings.TrimSpace(c.Twilio.AuthToken) == "" {
			problems = append(problems, "TWILIO_AUTH_TOKEN is required")
		}
	case "memory":
	default:
		problems = append(problems, "SINKRELAY_EVENTS_BACKEND must be one of: twilio, memory")
	}
	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, "NGROK_URL / SINKRELAY_PUBLIC_URL must be an absolute http(s) URL")
		}
	}
	switch c.Journal.Driver {
	case "file":
		if strings.TrimSpace(c.Journal.File) == "" {
			problems = append(problems, "SINKRELAY_JOURNAL_FILE is required when SINKRELAY_JOURNAL_DRIVER=file")
		}
	case "pgx", "sqlite":
		if strings.TrimSpace(c.Journal.DSN) == "" {
			problems = append(problems, "SINKRELAY_JOURNAL_DSN is required when SINKRELAY_JOURNAL_DRIVER="+c.Journal.Driver)
		}
	case "memory":
	default:
		problems = append(problems, "SINKRELAY_JOURNAL_DRIVER must be one of: file, pgx, sqlite, memory")
	}
	if c.Journal.Driver != "pgx" && (c.Journal.SSLMode != "" || c.Journal.SSLRootCert != "" || c.Journal.SSLCert != "" || c.Journal.SSLKey != "") {
		problems = append(problems, "SINKRELAY_JOURNAL_SSL* settings require SINKRELAY_JOURNAL_DRIVER=pgx")
	}
	if c.Auth.JWT.Enabled {
		if strings.TrimSpace(c.Auth.JWT.Issuer) == "" {
			problems = append(problems, "SINKRELAY_AUTH_JWT_ISSUER is required when SINKRELAY_AUTH_JWT_ENABLED=true")
		}
		if strings.TrimSpace(c.Auth.JWT.Audience) == "" {
			problems = append(problems, "SINKRELAY_AUTH_JWT_AUDIENCE is required when SINKRELAY_AUTH_JWT_ENABLED=true")
		}
		if strings.TrimSpace(c.Auth.JWT.HS256Secret) == "" &&
			strings.TrimSpace(c.Auth.JWT.RS256PublicKeyPEM) == "" &&
			strings.TrimSpace(c.Auth.JWT.JWKSURL) == "" {
			problems = append(problems, "one of SINKRELAY_AUTH_JWT_HS256_SECRET, SINKRELAY_AUTH_JWT_RS256_PUBLIC_KEY_PEM or SINKRELAY_AUTH_JWT_JWKS_URL is required when SINKRELAY_AUTH_JWT_ENABLED=true")
		}
	}
	if c.TLS.Enabled && strings.TrimSpace(c.TLS.CertFile) == "" {
		problems = append(problems, "SINKRELAY_TLS_CERT_FILE is required when SINKRELAY_TLS_ENABLED=true")
	}
	if c.TLS.Enabled && strings.TrimSpace(c.TLS.KeyFile) == "" {
		problems = append(problems, "SINKRELAY_TLS_KEY_FILE is required when SINKRELAY_TLS_ENABLED=true")
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.New(strings.Join(problems, "; "))
}

// JournalDialect is the SQL dialect for the configured journal driver, or "".
func (c Config) JournalDialect() string {
	switch c.Journal.Driver {
	case "pgx":
		return "postgres"
	case "sqlite":
		return "sqlite"
	default:
		return ""
	}
}

type StartupSummary struct {
	EventsBackend    string
	JournalMode      string
	PublicURL        string
	EnforceSignature bool
	AdminAuth        string
	AuthRateLimit    bool
	TLSEnabled       bool
}

func (c Config) Summary() StartupSummary {
	journalMode := c.Journal.Driver
	if journalMode == "file" {
		journalMode = "file:" + c.Journal.File
	} else if d := c.JournalDialect(); d != "" {
		journalMode = "sql:" + d
	}
	adminAuth := "none"
	switch {
	case c.Auth.JWT.Enabled:
		adminAuth = "jwt"
	case c.Auth.OIDC.Enabled:
		adminAuth = "oidc-header"
	case strings.TrimSpace(c.Auth.AdminToken) != "":
		adminAuth = "bearer"
	}
	return StartupSummary{
		EventsBackend:    c.Events.Backend,
		JournalMode:      journalMode,
		PublicURL:        c.PublicURL,
		EnforceSignature: c.Webhook.EnforceSignature,
		AdminAuth:        adminAuth,
		AuthRateLimit:    c.Auth.RateLimit.Enabled,
		TLSEnabled:       c.TLS.Enabled,
	}
}
