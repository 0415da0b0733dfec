// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package sms delivers one-time verification messages to phones.

Two senders are provided:

  - HTTPSender posts the message as JSON to an SMS gateway with a bearer token.
  - LogSender only writes the message to the structured log (development).

Both satisfy auth.SMSSender. The caller bounds every send with a context
deadline; HTTPSender also carries its own client timeout as a backstop.
*/
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/taibuivan/fixoo/pkg/phone"
)

// defaultTimeout applies when the caller passes no http.Client.
const defaultTimeout = 10 * time.Second

// # HTTP Gateway

// GatewayConfig configures an [HTTPSender].
type GatewayConfig struct {
	URL      string
	Token    string
	SenderID string
	Client   *http.Client
}

// HTTPSender delivers messages through a JSON SMS gateway.
type HTTPSender struct {
	url      string
	token    string
	senderID string
	client   *http.Client
}

// message is the gateway request body.
type message struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Text string `json:"text"`
}

// NewHTTPSender validates the gateway configuration.
func NewHTTPSender(cfg GatewayConfig) (*HTTPSender, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("sms: gateway url is required")
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	return &HTTPSender{
		url:      cfg.URL,
		token:    cfg.Token,
		senderID: cfg.SenderID,
		client:   client,
	}, nil
}

/*
Send posts one message to the gateway.

Parameters:
  - context: context.Context (deadline bounds the whole exchange)
  - to: string (canonical phone, "+998XXXXXXXXX")
  - text: string

Returns:
  - error: Transport failures or any non-2xx gateway status
*/
func (sender *HTTPSender) Send(context context.Context, to, text string) error {
	body, err := json.Marshal(message{To: to, From: sender.senderID, Text: text})
	if err != nil {
		return fmt.Errorf("sms_encode_failed: %w", err)
	}

	request, err := http.NewRequestWithContext(context, http.MethodPost, sender.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sms_build_request_failed: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	if sender.token != "" {
		request.Header.Set("Authorization", "Bearer "+sender.token)
	}

	response, err := sender.client.Do(request)
	if err != nil {
		return fmt.Errorf("sms_request_failed: %w", err)
	}
	defer response.Body.Close()

	// Drain a bounded amount so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 1<<16))

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sms_gateway_rejected: status=%d", response.StatusCode)
	}

	return nil
}

// # Development Sender

// LogSender writes outgoing messages to the log instead of delivering them.
// Never select it in production: the log line contains the code.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender constructs a [LogSender].
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the message and always succeeds unless the context is done.
func (sender *LogSender) Send(context context.Context, to, text string) error {
	if err := context.Err(); err != nil {
		return err
	}

	sender.logger.InfoContext(context, "sms_logged_not_sent",
		slog.String("phone", phone.Mask(to)),
		slog.String("text", text),
	)
	return nil
}
