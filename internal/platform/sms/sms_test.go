// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sms_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/fixoo/internal/platform/sms"
)

/*
TestHTTPSender_Send checks the request shape the gateway receives.
*/
func TestHTTPSender_Send(t *testing.T) {
	var got map[string]string
	var auth string

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		auth = request.Header.Get("Authorization")
		_ = json.NewDecoder(request.Body).Decode(&got)
		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender, err := sms.NewHTTPSender(sms.GatewayConfig{URL: server.URL, Token: "gw-token", SenderID: "Fixoo"})
	require.NoError(t, err)

	require.NoError(t, sender.Send(context.Background(), "+998901234567", "code: 123456"))
	assert.Equal(t, "Bearer gw-token", auth)
	assert.Equal(t, "+998901234567", got["to"])
	assert.Equal(t, "Fixoo", got["from"])
	assert.Equal(t, "code: 123456", got["text"])
}

func TestHTTPSender_GatewayRejects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender, err := sms.NewHTTPSender(sms.GatewayConfig{URL: server.URL})
	require.NoError(t, err)

	err = sender.Send(context.Background(), "+998901234567", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=502")
}

/*
TestHTTPSender_Deadline verifies the caller's deadline bounds a slow gateway.
*/
func TestHTTPSender_Deadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		select {
		case <-release:
		case <-request.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	sender, err := sms.NewHTTPSender(sms.GatewayConfig{URL: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	started := time.Now()
	err = sender.Send(ctx, "+998901234567", "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestNewHTTPSender_RequiresURL(t *testing.T) {
	_, err := sms.NewHTTPSender(sms.GatewayConfig{})
	assert.Error(t, err)
}

func TestLogSender_MasksPhone(t *testing.T) {
	var buffer bytes.Buffer
	sender := sms.NewLogSender(slog.New(slog.NewJSONHandler(&buffer, nil)))

	require.NoError(t, sender.Send(context.Background(), "+998901234567", "hello"))
	assert.Contains(t, buffer.String(), "sms_logged_not_sent")
	assert.NotContains(t, buffer.String(), "+998901234567")
}
