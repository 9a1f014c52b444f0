package api

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/org/credvault/internal/audit"
	"github.com/org/credvault/internal/auth"
	"github.com/org/credvault/internal/policy"
	"github.com/org/credvault/internal/storage"
	"github.com/org/credvault/internal/vault"
	"github.com/org/credvault/pkg/models"
	"github.com/rs/zerolog/log"
)

// Config holds server configuration.
type Config struct {
	ListenAddr    string
	TLSCertFile   string
	TLSKeyFile    string
	MasterSecret  string
	MasterSalt    string
	Policy        policy.Policy
	MigrationsDir string
}

// AuditLogger is the interface the server needs from an audit logger.
type AuditLogger interface {
	LogRequest(ctx context.Context, entry *models.AuditEntry)
	Record(ctx context.Context, entry *models.AuditEntry) error
	Query(ctx context.Context, filter storage.AuditFilter) ([]*models.AuditEntry, error)
}

// Server is the API server. All credential routes run authenticated and are
// therefore backed by the server vault; guest tiers are client-side and
// never reach this surface.
type Server struct {
	store   storage.CredentialStore
	vault   *vault.ServerVault
	rotator *vault.Rotator
	policy  policy.Policy
	authn   auth.Authenticator
	auditor AuditLogger
	cfg     Config
	httpSrv *http.Server
}

// NewServer creates a fully wired Server. It fails when the operator master
// secret or salt is missing — a configuration error is fatal at startup,
// never a runtime fallback.
func NewServer(store storage.CredentialStore, authn auth.Authenticator, cfg Config) (*Server, error) {
	sv, err := vault.NewServerVault(cfg.MasterSecret, cfg.MasterSalt, store)
	if err != nil {
		return nil, err
	}
	auditor := audit.NewLogger(store)
	rotator := vault.NewRotator(sv, store, auditor)

	return &Server{
		store:   store,
		vault:   sv,
		rotator: rotator,
		policy:  cfg.Policy,
		authn:   authn,
		auditor: auditor,
		cfg:     cfg,
	}, nil
}

// BuildRouter wires up all routes and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware)
	r.Use(auditMiddleware(s.auditor))

	// Prometheus metrics (unauthenticated)
	r.Handle("/metrics", MetricsHandler())

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get("/v1/sys/health", s.HealthHandler)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.authn))

		r.Get("/v1/credentials", s.CredentialListHandler)
		r.Put("/v1/credentials/{provider}", s.CredentialSaveHandler)
		r.Delete("/v1/credentials/{provider}", s.CredentialDeleteHandler)

		r.Post("/v1/credentials/{provider}/rotate", s.RotateHandler)
		r.Get("/v1/credentials/{provider}/rotation-status", s.RotationStatusHandler)

		r.Get("/v1/sys/audit-log", s.AuditLogHandler)
	})

	return r
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	handler := s.BuildRouter()

	s.httpSrv = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
		tlsCfg := &tls.Config{
			MinVersion: tls.VersionTLS12,
			CurvePreferences: []tls.CurveID{
				tls.CurveP256,
				tls.X25519,
			},
		}
		s.httpSrv.TLSConfig = tlsCfg
		log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTPS server")
		return s.httpSrv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	}

	log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTP server")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
