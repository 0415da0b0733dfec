// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/taibuivan/fixoo/internal/api"
	"github.com/taibuivan/fixoo/internal/platform/config"
	"github.com/taibuivan/fixoo/internal/platform/migration"
	pgstore "github.com/taibuivan/fixoo/internal/platform/postgres"
	redisstore "github.com/taibuivan/fixoo/internal/platform/redis"
	"github.com/taibuivan/fixoo/internal/platform/sms"
	"github.com/taibuivan/fixoo/internal/platform/sqlite"
	"github.com/taibuivan/fixoo/internal/users/auth"
)

// # Durable Storage

// storage bundles the repositories of the configured driver.
type storage struct {
	Users  auth.UserRepository
	Tokens auth.RefreshTokenRepository
	Check  api.Check
	Close  func()
}

// openStorage connects the configured driver and applies pending migrations.
func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		pool, err := pgstore.NewPool(ctx, pgstore.PoolOptions{
			DSN:      cfg.DatabaseURL,
			MaxConns: cfg.DatabaseMaxConns,
			MinConns: cfg.DatabaseMinConns,
		}, log)
		if err != nil {
			return nil, err
		}

		options := migration.Options{Driver: cfg.StorageDriver, Target: cfg.DatabaseURL, Path: cfg.MigrationPath}
		if err := migration.RunUp(options, log); err != nil {
			pool.Close()
			return nil, err
		}

		return &storage{
			Users:  auth.NewPostgresUserRepository(pool),
			Tokens: auth.NewPostgresRefreshTokenRepository(pool),
			Check: api.Check{Name: "postgres", Ping: func(ctx context.Context) error {
				return pgstore.Ping(ctx, pool)
			}},
			Close: func() {
				log.Info("postgres_pool_closing")
				pool.Close()
			},
		}, nil

	case config.StorageDriverSQLite:
		options := migration.Options{Driver: cfg.StorageDriver, Target: cfg.SQLitePath, Path: cfg.MigrationPath}
		if err := migration.RunUp(options, log); err != nil {
			return nil, err
		}

		db, err := sqlite.Open(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}

		return &storage{
			Users:  auth.NewSQLiteUserRepository(db),
			Tokens: auth.NewSQLiteRefreshTokenRepository(db),
			Check:  api.Check{Name: "sqlite", Ping: db.PingContext},
			Close: func() {
				log.Info("sqlite_database_closing")
				if err := db.Close(); err != nil {
					log.Error("sqlite_close_failed", slog.Any("error", err))
				}
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// # Challenge Store

// challengeStore bundles the configured OTP challenge backend.
type challengeStore struct {
	Store auth.ChallengeStore
	Check api.Check
	Close func()
}

// openChallengeStore connects Redis or falls back to process memory.
func openChallengeStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*challengeStore, error) {
	if cfg.ChallengeStore == config.ChallengeStoreMemory {
		log.Warn("challenge_store_in_memory",
			slog.String("detail", "OTP challenges are local to this process; run a single instance"),
		)
		return &challengeStore{Store: auth.NewMemoryChallengeStore(nil), Close: func() {}}, nil
	}

	client, err := redisstore.NewClient(ctx, redisstore.ClientOptions{URL: cfg.RedisURL, PoolSize: cfg.RedisPoolSize}, log)
	if err != nil {
		return nil, err
	}

	return &challengeStore{
		Store: auth.NewRedisChallengeStore(client),
		Check: api.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return redisstore.Ping(ctx, client)
		}},
		Close: func() {
			log.Info("redis_client_closing")
			if err := client.Close(); err != nil {
				log.Error("redis_close_failed", slog.Any("error", err))
			}
		},
	}, nil
}

// # SMS

// newSMSSender returns the HTTP gateway sender, or the log-only sender when no
// gateway is configured. config.Validate forbids the latter in production.
func newSMSSender(cfg *config.Config, log *slog.Logger) (auth.SMSSender, error) {
	if cfg.SMSGatewayURL == "" {
		log.Warn("sms_gateway_not_configured", slog.String("detail", "codes are logged, not sent"))
		return sms.NewLogSender(log), nil
	}

	sender, err := sms.NewHTTPSender(sms.GatewayConfig{
		URL:      cfg.SMSGatewayURL,
		Token:    cfg.SMSGatewayToken,
		SenderID: cfg.SMSSenderID,
		Client:   &http.Client{Timeout: cfg.SMSTimeout},
	})
	if err != nil {
		return nil, err
	}
	return sender, nil
}
