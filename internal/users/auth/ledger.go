// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	stdctx "context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/fixoo/internal/platform/apperr"
	"github.com/taibuivan/fixoo/internal/platform/sec"
	"github.com/taibuivan/fixoo/pkg/uuid"
)

// # Refresh Token Ledger

// errNoLedgerMatch is the logged cause when a presented token matches no record.
var errNoLedgerMatch = errors.New("refresh token matches no active record")

// errRedeemRaceLost is the logged cause when another caller deleted the record first.
var errRedeemRaceLost = errors.New("refresh record already redeemed")

// LedgerConfig tunes a [RefreshLedger].
type LedgerConfig struct {
	// TTL is the record lifetime; it matches the refresh JWT lifetime.
	TTL time.Duration

	// MaxSessions caps live records per user. Zero disables the cap.
	MaxSessions int

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// RefreshLedger stores refresh tokens by digest and redeems each at most once.
type RefreshLedger struct {
	repository RefreshTokenRepository
	hasher     *sec.Hasher
	config     LedgerConfig
	logger     *slog.Logger
}

// NewRefreshLedger constructs a [RefreshLedger].
func NewRefreshLedger(repository RefreshTokenRepository, hasher *sec.Hasher, config LedgerConfig, logger *slog.Logger) *RefreshLedger {
	if config.TTL <= 0 {
		config.TTL = RefreshTokenTTL
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RefreshLedger{repository: repository, hasher: hasher, config: config, logger: logger}
}

/*
Store hashes rawToken and persists a new record for userID.

Description: When the user already holds MaxSessions live records, the oldest
ones are deleted first so the new login always succeeds.

Parameters:
  - context: context.Context
  - userID: int64
  - rawToken: string

Returns:
  - *RefreshToken: The persisted record
  - error: Hashing or persistence failures
*/
func (ledger *RefreshLedger) Store(context stdctx.Context, userID int64, rawToken string) (*RefreshToken, error) {
	digest, err := ledger.hasher.Hash(rawToken)
	if err != nil {
		return nil, fmt.Errorf("refresh_ledger_hash_failed: %w", err)
	}

	now := ledger.config.Clock().UTC().Truncate(time.Millisecond)

	if ledger.config.MaxSessions > 0 {
		if err := ledger.enforceCap(context, userID, now); err != nil {
			return nil, err
		}
	}

	record := &RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: digest,
		ExpiresAt: now.Add(ledger.config.TTL),
		CreatedAt: now,
	}

	if err := ledger.repository.Create(context, record); err != nil {
		return nil, fmt.Errorf("refresh_ledger_store_failed: %w", err)
	}

	return record, nil
}

/*
Redeem consumes the record matching rawToken.

Description: Loads the user's live records and verifies rawToken against each
digest. The first match is deleted with one conditional DELETE; a caller that
loses a concurrent race on the same record sees AccessDenied. Expired records
are never listed, so they can never match.

Parameters:
  - context: context.Context
  - userID: int64
  - rawToken: string

Returns:
  - string: ID of the consumed record
  - error: apperr.AccessDenied (cause kept for logs) or storage failures
*/
func (ledger *RefreshLedger) Redeem(context stdctx.Context, userID int64, rawToken string) (string, error) {
	records, err := ledger.repository.ListActive(context, userID, ledger.config.Clock())
	if err != nil {
		return "", fmt.Errorf("refresh_ledger_list_failed: %w", err)
	}

	for _, record := range records {
		ok, err := ledger.hasher.Verify(rawToken, record.TokenHash)
		if err != nil || !ok {
			continue
		}

		deleted, err := ledger.repository.Delete(context, record.ID)
		if err != nil {
			return "", fmt.Errorf("refresh_ledger_delete_failed: %w", err)
		}
		if !deleted {
			return "", apperr.AccessDenied().WithCause(errRedeemRaceLost)
		}
		return record.ID, nil
	}

	return "", apperr.AccessDenied().WithCause(errNoLedgerMatch)
}

// RevokeAll deletes every record of userID. Zero records is not an error.
func (ledger *RefreshLedger) RevokeAll(context stdctx.Context, userID int64) (int64, error) {
	count, err := ledger.repository.DeleteAllForUser(context, userID)
	if err != nil {
		return 0, fmt.Errorf("refresh_ledger_revoke_all_failed: %w", err)
	}
	return count, nil
}

// Sweep purges records past their expiry.
func (ledger *RefreshLedger) Sweep(context stdctx.Context) (int64, error) {
	count, err := ledger.repository.DeleteExpired(context, ledger.config.Clock())
	if err != nil {
		return 0, fmt.Errorf("refresh_ledger_sweep_failed: %w", err)
	}
	return count, nil
}

/*
RunSweeper calls [RefreshLedger.Sweep] every interval until context is done.

Description: Expired records are already rejected on lookup; sweeping only
reclaims storage. Failures are logged and retried on the next tick.

Parameters:
  - context: context.Context (cancel to stop)
  - interval: time.Duration (non-positive disables the sweeper)
*/
func (ledger *RefreshLedger) RunSweeper(context stdctx.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			count, err := ledger.Sweep(context)
			if err != nil {
				ledger.logger.ErrorContext(context, "ledger_sweep_failed", slog.Any("error", err))
				continue
			}
			ledger.logger.DebugContext(context, "ledger_sweep_completed", slog.Int64("deleted", count))
		case <-context.Done():
			return
		}
	}
}

// enforceCap prunes the oldest live records so one more fits under MaxSessions.
func (ledger *RefreshLedger) enforceCap(context stdctx.Context, userID int64, now time.Time) error {
	records, err := ledger.repository.ListActive(context, userID, now)
	if err != nil {
		return fmt.Errorf("refresh_ledger_list_failed: %w", err)
	}

	excess := len(records) - ledger.config.MaxSessions + 1
	if excess <= 0 {
		return nil
	}

	ledger.logger.WarnContext(context, "refresh_ledger_session_cap_reached",
		slog.Int64("user_id", userID),
		slog.Int("active", len(records)),
		slog.Int("pruned", excess),
	)

	// Records are newest first, so the tail holds the oldest.
	for _, record := range records[len(records)-excess:] {
		if _, err := ledger.repository.Delete(context, record.ID); err != nil {
			return fmt.Errorf("refresh_ledger_prune_failed: %w", err)
		}
	}

	return nil
}
