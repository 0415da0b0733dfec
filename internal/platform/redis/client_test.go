// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package redis

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewClient(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := NewClient(context.Background(), ClientOptions{URL: "redis://" + server.Addr() + "/0", PoolSize: 4}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.Equal(t, 4, client.Options().PoolSize)
	assert.NoError(t, Ping(context.Background(), client))

	server.Close()
	assert.ErrorContains(t, Ping(context.Background(), client), "redis: ping failed")
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), ClientOptions{URL: "http://not-redis"}, slog.Default())
	assert.ErrorContains(t, err, "redis: invalid URL")
}

func TestTracingHook(t *testing.T) {
	server := miniredis.RunT(t)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	client.AddHook(newTracingHook(provider.Tracer(instrumentationName)))

	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "auth:otp:+998901234567", "482913", time.Minute).Err())
	assert.ErrorIs(t, client.Get(ctx, "auth:otp:missing").Err(), redis.Nil)

	// Connection setup commands (HELLO, CLIENT SETINFO) are traced too.
	byName := make(map[string]sdktrace.ReadOnlySpan)
	for _, span := range recorder.Ended() {
		byName[span.Name()] = span
	}

	require.Contains(t, byName, "redis set")
	require.Contains(t, byName, "redis get")
	assert.Equal(t, codes.Unset, byName["redis get"].Status().Code, "a missing key is not a failure")
}
