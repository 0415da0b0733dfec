// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Fixoo authentication API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger and load .env when present.
//  2. Load configuration from environment variables.
//  3. Register the tracer provider (no-op without an endpoint).
//  4. Open durable storage (PostgreSQL or SQLite) and run migrations.
//  5. Open the challenge store (Redis or memory).
//  6. Wire the auth domain and the ledger sweeper.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/taibuivan/fixoo/internal/api"
	"github.com/taibuivan/fixoo/internal/platform/config"
	"github.com/taibuivan/fixoo/internal/platform/constants"
	"github.com/taibuivan/fixoo/internal/platform/sec"
	"github.com/taibuivan/fixoo/internal/platform/tracing"
	"github.com/taibuivan/fixoo/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("dotenv_load_failed", slog.Any("error", err))
	}

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("storage_driver", cfg.StorageDriver),
		slog.String("challenge_store", cfg.ChallengeStore),
	)

	if cfg.UsesRefreshSecretFallback() {
		log.Warn("jwt_refresh_secret_fallback",
			slog.String("detail", "set JWT_REFRESH_SECRET to sign refresh tokens with a distinct key"),
		)
	}

	// Root context for background workers; cancelled on shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Startup deadline so misconfiguration is caught quickly.
	startupCtx, startupCancel := context.WithTimeout(rootCtx, 30*time.Second)
	defer startupCancel()

	// ── 3. Tracing ────────────────────────────────────────────────────────
	shutdownTracing, err := tracing.Setup(startupCtx, constants.AppName, constants.AppVersion, cfg.OTELEndpoint)
	must(log, err, "initialize tracing")
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error("tracing_shutdown_failed", slog.Any("error", err))
		}
	}()

	// ── 4. Durable Storage ────────────────────────────────────────────────
	store, err := openStorage(startupCtx, cfg, log)
	must(log, err, "open storage")
	defer store.Close()

	// ── 5. Challenge Store ────────────────────────────────────────────────
	challenges, err := openChallengeStore(startupCtx, cfg, log)
	must(log, err, "open challenge store")
	defer challenges.Close()

	sender, err := newSMSSender(cfg, log)
	must(log, err, "initialize sms sender")

	// ── 6. Auth Domain ────────────────────────────────────────────────────
	issuer, err := sec.NewTokenIssuer(sec.TokenIssuerConfig{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        constants.AuthIssuer,
		Logger:        log,
	})
	must(log, err, "initialize token issuer")

	otpEngine := auth.NewOTPEngine(challenges.Store, sender, auth.OTPConfig{
		TTL:            cfg.OTPTTL,
		ResendInterval: cfg.OTPResendInterval,
		SendTimeout:    cfg.SMSTimeout,
	}, log)

	ledger := auth.NewRefreshLedger(store.Tokens, sec.NewHasher(auth.RefreshTokenHashParams), auth.LedgerConfig{
		TTL:         cfg.RefreshTokenTTL,
		MaxSessions: cfg.MaxSessionsPerUser,
	}, log)

	authService := auth.NewService(auth.ServiceDependencies{
		Users:                 store.Users,
		OTP:                   otpEngine,
		Credentials:           auth.NewCredentialStore(sec.NewHasher(sec.DefaultArgon2Params)),
		Tokens:                issuer,
		Ledger:                ledger,
		Logger:                log,
		RevokeSessionsOnReset: cfg.RevokeSessionsOnReset,
	})
	authHandler := auth.NewHandler(authService, !cfg.IsDevelopment())

	go ledger.RunSweeper(rootCtx, cfg.LedgerSweepInterval)

	// ── 7. HTTP Server ────────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		Database: store.Check,
		Cache:    challenges.Check,
	}, log)

	server := api.NewServer(rootCtx, cfg, log, issuer, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
	})

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_error", slog.Any("error", err))
	}

	// Stop background workers before draining requests.
	rootCancel()

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("server_shutting_down", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("server_shutdown_failed", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped_cleanly")
}

// newLogger builds the JSON process logger tagged with the application name.
func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", "fixoo"))
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
