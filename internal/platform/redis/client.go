// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis provides a managed client for volatile data storage.

It backs the OTP challenge store: verification codes and resend locks live
here with a TTL and are never written to the durable database.

Core Responsibilities:

  - Volatility: Every key is written with a TTL and expires on its own.
  - Atomicity: SET NX provides the per-phone resend lock.
  - Visibility: Each command becomes a client span when tracing is enabled.
*/
package redis

import (
	stdctx "context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Opinionated default timeouts for Redis operations.
const (
	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
	pingTimeout  = 2 * time.Second
)

// ClientOptions configures [NewClient]. A zero PoolSize keeps 10.
type ClientOptions struct {
	URL      string
	PoolSize int
}

// NewClient parses a Redis URL and returns a ready-to-use client.
//
// # Parameters
//   - context: Context for the initial ping.
//   - options: URL and pool size.
//   - logger: Structured logger for connection events.
func NewClient(context stdctx.Context, options ClientOptions, logger *slog.Logger) (*redis.Client, error) {
	parsed, err := redis.ParseURL(options.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	// Pool sizing. OTP traffic is a handful of commands per request.
	parsed.PoolSize = 10
	if options.PoolSize > 0 {
		parsed.PoolSize = options.PoolSize
	}
	parsed.MinIdleConns = min(2, parsed.PoolSize)
	parsed.MaxIdleConns = max(parsed.MinIdleConns, parsed.PoolSize/2)

	parsed.DialTimeout = dialTimeout
	parsed.ReadTimeout = readTimeout
	parsed.WriteTimeout = writeTimeout

	client := redis.NewClient(parsed)
	client.AddHook(newTracingHook(otel.Tracer(instrumentationName)))

	// Validate connectivity immediately at startup.
	if err := Ping(context, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis_client_connected",
		slog.String("addr", parsed.Addr),
		slog.Int("db", parsed.DB),
		slog.Int("pool_size", parsed.PoolSize),
	)

	return client, nil
}

// Ping verifies that the Redis client is healthy.
func Ping(context stdctx.Context, client redis.Cmdable) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}

	return nil
}

// # Command Tracing

const instrumentationName = "github.com/taibuivan/fixoo/internal/platform/redis"

// tracingHook opens one client span per command or pipeline.
type tracingHook struct {
	tracer trace.Tracer
}

func newTracingHook(tracer trace.Tracer) tracingHook {
	return tracingHook{tracer: tracer}
}

func (hook tracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(context stdctx.Context, network, addr string) (net.Conn, error) {
		return next(context, network, addr)
	}
}

func (hook tracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(context stdctx.Context, cmd redis.Cmder) error {
		context, span := hook.start(context, "redis "+cmd.Name(), 1)
		defer span.End()

		err := next(context, cmd)
		record(span, err)
		return err
	}
}

func (hook tracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(context stdctx.Context, cmds []redis.Cmder) error {
		context, span := hook.start(context, "redis pipeline", len(cmds))
		defer span.End()

		err := next(context, cmds)
		record(span, err)
		return err
	}
}

func (hook tracingHook) start(context stdctx.Context, name string, commands int) (stdctx.Context, trace.Span) {
	return hook.tracer.Start(context, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemKey.String("redis"),
			attribute.Int("db.redis.commands", commands),
		),
	)
}

// record marks the span failed. A missing key is a normal answer, not a failure.
func record(span trace.Span, err error) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "command_failed")
}
