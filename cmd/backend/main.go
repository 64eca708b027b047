package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"secure-file-hub/internal/auth"
	"secure-file-hub/internal/config"
	"secure-file-hub/internal/db"
	"secure-file-hub/internal/logging"
	"secure-file-hub/internal/server"
	"secure-file-hub/internal/storage"
	"secure-file-hub/internal/unify"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "backend: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}

	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return err
	}
	flags.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(stderr, cfg.Log.Format, cfg.Log.Level, cfg.IsProduction())
	slog.SetDefault(logger)

	admin, err := adminUser(cfg.Auth)
	if err != nil {
		return err
	}

	users, dbConn, err := openUsers(ctx, cfg.Database.URL, admin, logger)
	if err != nil {
		return err
	}
	if dbConn != nil {
		defer func() { _ = dbConn.Close() }()
	}

	tokens, err := auth.NewTokenIssuer([]byte(cfg.Auth.SecretKey), cfg.Auth.Algorithm, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	lockout := auth.NewLockout(cfg.Auth.MaxAttempts, cfg.Auth.Lockout, cfg.Auth.Lockout)
	go lockout.Run(ctx, time.Hour)

	store := storage.New(cfg.StorageDir,
		storage.WithReserved(cfg.UnifiedName),
		storage.WithMaxBytes(cfg.Upload.MaxBytes),
	)
	go store.RunCleanup(ctx, time.Hour, 24*time.Hour, logger)

	unifyOpts := []unify.Option{unify.WithLogger(logger)}
	if cfg.Archive.Enabled() {
		archiver, err := unify.NewMinioArchiver(ctx, cfg.Archive.Endpoint, cfg.Archive.AccessKey, cfg.Archive.SecretKey, cfg.Archive.Bucket)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		logger.Info("archiving unified artifacts", "bucket", archiver.Bucket())
		unifyOpts = append(unifyOpts, unify.WithArchiver(archiver))
	}
	relay := unify.NewWebhookRelay(cfg.Relay.URL, cfg.Relay.Timeout)
	aggregator := unify.New(store, cfg.UnifiedName, relay, unifyOpts...)

	srv, err := server.New(server.Config{
		Addr:           cfg.Addr,
		Auth:           auth.NewService(users, tokens, lockout),
		Store:          store,
		Unifier:        aggregator,
		DB:             dbConn,
		Logger:         logger,
		CookieName:     cfg.Auth.CookieName,
		CookieSecure:   cfg.Auth.CookieSecure,
		CORSOrigins:    cfg.CORSOrigins,
		Version:        version,
		LoginRateLimit: cfg.Auth.RateLimit,

		TrustProxyHeaders: cfg.TrustProxy,
	})
	if err != nil {
		return err
	}
	go srv.RunJanitor(ctx)

	logger.Info("starting",
		"addr", cfg.Addr,
		"version", version,
		"env", cfg.Env,
		"storage_dir", store.Root(),
		"webhook", relay.URL(),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// adminUser builds the seeded account, hashing the plain password when no
// precomputed hash is configured.
func adminUser(c config.AuthConfig) (auth.User, error) {
	hash := c.AdminPassHash
	if hash == "" {
		var err error
		if hash, err = auth.HashPassword(c.AdminPass); err != nil {
			return auth.User{}, fmt.Errorf("hash admin password: %w", err)
		}
	}
	return auth.User{Username: c.AdminUser, PasswordHash: hash}, nil
}

// openUsers returns the user store, seeded with admin. With a database URL
// the store lives in PostgreSQL and the returned pool must be closed by the
// caller; otherwise it is in memory and the pool is nil.
func openUsers(ctx context.Context, databaseURL string, admin auth.User, logger *slog.Logger) (auth.UserStore, *sql.DB, error) {
	if databaseURL == "" {
		return auth.NewMemoryStore(admin), nil, nil
	}

	conn, err := db.Open(databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	logger.Info("running migrations")
	if err := db.RunMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	users := auth.NewPostgresStore(conn)
	if err := users.Seed(ctx, admin); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("seed admin: %w", err)
	}
	return users, conn, nil
}
