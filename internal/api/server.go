package api

import (
	"sync"

	"sinkrelay/internal/events"
	"sinkrelay/internal/journal"
	"sinkrelay/internal/observability"
	"sinkrelay/internal/signature"

	"github.com/go-logr/logr"
)

type AuthConfig struct {
	AdminToken string
	OIDC       OIDCPolicy
	JWT        JWTPolicy
	Audit      AuditPolicy
	Rate       RateLimitPolicy
}

type OIDCPolicy struct {
	Enabled     bool
	RolesHeader string
}

type JWTPolicy struct {
	Enabled           bool
	Issuer            string
	Audience          string
	RolesClaim        string
	HS256Secret       string
	RS256PublicKeyPEM string
	JWKSURL           string
	JWKSRefresh       string
}

type AuditPolicy struct {
	LogFile string
}

type RateLimitPolicy struct {
	Enabled        bool
	AdminPerMinute int
}

// WebhookPolicy configures the delivery receiver. PublicURL, when set,
// replaces the scheme and host of the received request URL before the
// signature check.
type WebhookPolicy struct {
	AuthToken        string
	PublicURL        string
	EnforceSignature bool
}

type SinkPolicy struct {
	Description string
	PublicURL   string
}

type ServerOptions struct {
	Logger  logr.Logger
	Journal journal.Journal
	Metrics *observability.WebhookMetrics
	Auth    AuthConfig
	Webhook WebhookPolicy
	Sink    SinkPolicy
}

type Server struct {
	client      events.API
	log         logr.Logger
	journal     journal.Journal
	metrics     *observability.WebhookMetrics
	auth        AuthConfig
	webhook     WebhookPolicy
	sink        SinkPolicy
	validator   signature.Validator
	rateLimiter *authRateLimiter
	jwksCache   *jwksKeyCache
	jwksMu      sync.Mutex
}

func NewServer(client events.API, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	j := opts.Journal
	if j == nil {
		j = journal.NewMemoryJournal()
	}
	auth := withAuthDefaults(opts.Auth)
	return &Server{
		client:      client,
		log:         logger,
		journal:     j,
		metrics:     opts.Metrics,
		auth:        auth,
		webhook:     opts.Webhook,
		sink:        opts.Sink,
		validator:   signature.NewValidator(opts.Webhook.AuthToken),
		rateLimiter: newAuthRateLimiter(auth.Rate),
		jwksCache:   newJWKSKeyCache(auth.JWT),
	}
}
