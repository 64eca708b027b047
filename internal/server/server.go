package server

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"secure-file-hub/internal/auth"
	"secure-file-hub/internal/storage"
	"secure-file-hub/internal/unify"
)

// Unifier builds the merged artifact on demand.
type Unifier interface {
	Unify(ctx context.Context) (*unify.Artifact, error)
}

type Config struct {
	Addr string // e.g. ":8000"

	Auth    *auth.Service
	Store   *storage.Store
	Unifier Unifier

	// DB is only used by the health check and may be nil.
	DB *sql.DB

	Logger  *slog.Logger
	Metrics *Metrics

	CookieName   string
	CookieSecure bool
	CORSOrigins  []string
	Version      string

	// LoginRateLimit caps POST /token per client IP per minute. Zero
	// disables it.
	LoginRateLimit int

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Only enable it behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

type Server struct {
	cfg        Config
	logger     *slog.Logger
	metrics    *Metrics
	router     chi.Router
	httpServer *http.Server
	startedAt  time.Time

	loginLimiter *rateLimiter
}

func New(cfg Config) (*Server, error) {
	if cfg.Auth == nil || cfg.Store == nil || cfg.Unifier == nil {
		return nil, errors.New("server: auth, store and unifier are required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "access_token"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}
	cfg.CORSOrigins = originList(cfg.CORSOrigins)

	s := &Server{
		cfg:       cfg,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		startedAt: time.Now(),
	}
	if cfg.LoginRateLimit > 0 {
		s.loginLimiter = newRateLimiter(cfg.LoginRateLimit, time.Minute)
	}
	s.router = s.routes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	if s.cfg.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(s.loggingMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(securityHeadersMiddleware(s.cfg.CookieSecure))
	r.Use(corsMiddleware(s.cfg.CORSOrigins))
	r.Use(compressionMiddleware())

	r.Get("/health", s.handleHealth)
	if s.loginLimiter != nil {
		r.With(s.loginLimiter.middleware).Post("/token", s.handleLogin)
	} else {
		r.Post("/token", s.handleLogin)
	}
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Post("/upload", s.handleUpload)
		r.Get("/files", s.handleListFiles)
		// Catch-all so names with separators reach validation.
		r.Get("/files/*", s.handleDownload)
		r.Delete("/files/*", s.handleDelete)
		r.Get("/unify-files", s.handleUnify)
		r.Get("/metrics", s.handleMetrics)
	})

	return r
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// RunJanitor prunes idle rate limiter state until ctx is done.
func (s *Server) RunJanitor(ctx context.Context) {
	if s.loginLimiter == nil {
		<-ctx.Done()
		return
	}
	s.loginLimiter.run(ctx, time.Minute)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
