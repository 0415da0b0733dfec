// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	stdctx "context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"time"

	"github.com/taibuivan/fixoo/internal/platform/apperr"
	"github.com/taibuivan/fixoo/internal/platform/constants"
	"github.com/taibuivan/fixoo/pkg/phone"
)

// # OTP Engine

// CodeGenerator returns a fresh OTPLength-digit code.
type CodeGenerator func() (string, error)

// OTPConfig tunes an [OTPEngine]. Zero values take the package defaults.
type OTPConfig struct {
	TTL            time.Duration
	ResendInterval time.Duration
	SendTimeout    time.Duration
	Generate       CodeGenerator
}

// OTPEngine issues, verifies and clears SMS challenges.
//
// Every key is derived from the normalized phone, so "+998 90 123 45 67" and
// "901234567" share one challenge and one resend lock.
type OTPEngine struct {
	store  ChallengeStore
	sender SMSSender
	config OTPConfig
	logger *slog.Logger
}

// NewOTPEngine constructs an [OTPEngine].
func NewOTPEngine(store ChallengeStore, sender SMSSender, config OTPConfig, logger *slog.Logger) *OTPEngine {
	if config.TTL <= 0 {
		config.TTL = OTPTTL
	}
	if config.ResendInterval <= 0 {
		config.ResendInterval = OTPResendInterval
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = SMSTimeout
	}
	if config.Generate == nil {
		config.Generate = GenerateCode
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OTPEngine{store: store, sender: sender, config: config, logger: logger}
}

/*
Issue creates a challenge for phone and delivers it by SMS.

Description: The resend lock is taken first with a single SETNX, so two
concurrent calls for one phone can never both send a code. The challenge is
then written and the SMS sent under SendTimeout. A delivery failure leaves the
challenge and lock in place; they expire on their own.

Parameters:
  - context: context.Context
  - rawPhone: string (any spelling, normalized here)

Returns:
  - error: apperr.RateLimited, apperr.DeliveryFailed or store failures
*/
func (engine *OTPEngine) Issue(context stdctx.Context, rawPhone string) error {
	canonical := phone.Normalize(rawPhone)
	lockKey, challengeKey := lockKeyOf(canonical), challengeKeyOf(canonical)

	// 1. Resend lock (atomic check-and-set)
	acquired, err := engine.store.SetNX(context, lockKey, "1", engine.config.ResendInterval)
	if err != nil {
		return apperr.Internal(fmt.Errorf("otp_lock_failed: %w", err))
	}
	if !acquired {
		return apperr.RateLimited(engine.retryAfter(context, lockKey))
	}

	// 2. Fresh challenge
	code, err := engine.config.Generate()
	if err != nil {
		return apperr.Internal(fmt.Errorf("otp_generate_failed: %w", err))
	}

	if err := engine.store.Set(context, challengeKey, code, engine.config.TTL); err != nil {
		return apperr.Internal(fmt.Errorf("otp_store_failed: %w", err))
	}

	// 3. Bounded delivery
	sendContext, cancel := stdctx.WithTimeout(context, engine.config.SendTimeout)
	defer cancel()

	if err := engine.sender.Send(sendContext, canonical, fmt.Sprintf(otpMessageTemplate, code)); err != nil {
		engine.logger.ErrorContext(context, "otp_delivery_failed",
			slog.String("phone", phone.Mask(canonical)),
			slog.Any("error", err),
		)
		return apperr.DeliveryFailed(err)
	}

	engine.logger.InfoContext(context, "otp_issued", slog.String("phone", phone.Mask(canonical)))
	return nil
}

/*
Verify checks code against the active challenge without consuming it.

Description: A missing challenge and a wrong code produce the same error so
callers cannot tell whether a code was ever sent.

Parameters:
  - context: context.Context
  - rawPhone: string
  - code: string

Returns:
  - error: apperr.InvalidOTP or store failures
*/
func (engine *OTPEngine) Verify(context stdctx.Context, rawPhone, code string) error {
	stored, err := engine.store.Get(context, challengeKeyOf(phone.Normalize(rawPhone)))
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return apperr.InvalidOTP()
		}
		return apperr.Internal(fmt.Errorf("otp_lookup_failed: %w", err))
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return apperr.InvalidOTP()
	}

	return nil
}

// Clear deletes both the challenge and the resend lock of phone.
func (engine *OTPEngine) Clear(context stdctx.Context, rawPhone string) error {
	canonical := phone.Normalize(rawPhone)
	if err := engine.store.Delete(context, challengeKeyOf(canonical), lockKeyOf(canonical)); err != nil {
		return fmt.Errorf("otp_clear_failed: %w", err)
	}
	return nil
}

// retryAfter reports the remaining lock time in whole seconds, at least 1.
func (engine *OTPEngine) retryAfter(context stdctx.Context, lockKey string) int {
	remaining, err := engine.store.TTL(context, lockKey)
	if err != nil || remaining <= 0 {
		remaining = engine.config.ResendInterval
	}
	return int(math.Ceil(remaining.Seconds()))
}

// GenerateCode draws a uniform code in [100000, 999999] from crypto/rand.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", otpMin+n.Int64()), nil
}

func challengeKeyOf(canonical string) string {
	return constants.CachePrefixOTP + canonical
}

func lockKeyOf(canonical string) string {
	return constants.CachePrefixOTPLock + canonical
}
