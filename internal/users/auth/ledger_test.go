// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/fixoo/internal/platform/apperr"
	"github.com/taibuivan/fixoo/internal/platform/sec"
)

// newTestLedger returns a ledger over a migrated database with one account.
func newTestLedger(t *testing.T, config LedgerConfig) (*RefreshLedger, *testClock, int64) {
	t.Helper()

	db := openTestDB(t)
	user := &User{Phone: "+998901234567", PasswordHash: "digest", FullName: "Ali", Role: sec.RoleStudent}
	require.NoError(t, NewSQLiteUserRepository(db).Create(context.Background(), user))

	clock := newTestClock()
	config.Clock = clock.Now
	ledger := NewRefreshLedger(NewSQLiteRefreshTokenRepository(db), sec.NewHasher(cheapParams), config, discardLogger)
	return ledger, clock, user.ID
}

func TestRefreshLedger_StoreAndRedeemOnce(t *testing.T) {
	ctx := context.Background()
	ledger, _, userID := newTestLedger(t, LedgerConfig{})

	record, err := ledger.Store(ctx, userID, "raw-token")
	require.NoError(t, err)
	assert.NotEqual(t, "raw-token", record.TokenHash, "only the digest is stored")
	assert.Equal(t, RefreshTokenTTL, record.ExpiresAt.Sub(record.CreatedAt))

	id, err := ledger.Redeem(ctx, userID, "raw-token")
	require.NoError(t, err)
	assert.Equal(t, record.ID, id)

	_, err = ledger.Redeem(ctx, userID, "raw-token")
	assert.True(t, apperr.HasCode(err, apperr.CodeAccessDenied), "a redeemed token cannot be replayed")
}

func TestRefreshLedger_RedeemPicksMatchingRecord(t *testing.T) {
	ctx := context.Background()
	ledger, _, userID := newTestLedger(t, LedgerConfig{})

	for _, raw := range []string{"device-a", "device-b", "device-c"} {
		_, err := ledger.Store(ctx, userID, raw)
		require.NoError(t, err)
	}

	_, err := ledger.Redeem(ctx, userID, "device-b")
	require.NoError(t, err)

	_, err = ledger.Redeem(ctx, userID, "device-a")
	assert.NoError(t, err, "other sessions are untouched")

	_, err = ledger.Redeem(ctx, userID, "unknown")
	assert.True(t, apperr.HasCode(err, apperr.CodeAccessDenied))
}

func TestRefreshLedger_WrongUser(t *testing.T) {
	ctx := context.Background()
	ledger, _, userID := newTestLedger(t, LedgerConfig{})

	_, err := ledger.Store(ctx, userID, "raw-token")
	require.NoError(t, err)

	_, err = ledger.Redeem(ctx, userID+1, "raw-token")
	assert.True(t, apperr.HasCode(err, apperr.CodeAccessDenied))
}

func TestRefreshLedger_ExpiredRecordNeverMatches(t *testing.T) {
	ctx := context.Background()
	ledger, clock, userID := newTestLedger(t, LedgerConfig{TTL: time.Hour})

	_, err := ledger.Store(ctx, userID, "raw-token")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = ledger.Redeem(ctx, userID, "raw-token")
	assert.True(t, apperr.HasCode(err, apperr.CodeAccessDenied))

	purged, err := ledger.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestRefreshLedger_RevokeAll(t *testing.T) {
	ctx := context.Background()
	ledger, _, userID := newTestLedger(t, LedgerConfig{})

	for i := 0; i < 3; i++ {
		_, err := ledger.Store(ctx, userID, fmt.Sprintf("raw-%d", i))
		require.NoError(t, err)
	}

	count, err := ledger.RevokeAll(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = ledger.RevokeAll(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, count, "revoking nothing is not an error")

	_, err = ledger.Redeem(ctx, userID, "raw-0")
	assert.True(t, apperr.HasCode(err, apperr.CodeAccessDenied))
}

func TestRefreshLedger_SessionCapPrunesOldest(t *testing.T) {
	ctx := context.Background()
	ledger, clock, userID := newTestLedger(t, LedgerConfig{MaxSessions: 2})

	for _, raw := range []string{"oldest", "middle", "newest"} {
		_, err := ledger.Store(ctx, userID, raw)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	_, err := ledger.Redeem(ctx, userID, "oldest")
	assert.True(t, apperr.HasCode(err, apperr.CodeAccessDenied), "oldest record was pruned")

	_, err = ledger.Redeem(ctx, userID, "middle")
	assert.NoError(t, err)
	_, err = ledger.Redeem(ctx, userID, "newest")
	assert.NoError(t, err)
}

func TestRefreshLedger_ConcurrentRedeemHasOneWinner(t *testing.T) {
	ctx := context.Background()
	ledger, _, userID := newTestLedger(t, LedgerConfig{})

	_, err := ledger.Store(ctx, userID, "raw-token")
	require.NoError(t, err)

	var (
		winners atomic.Int32
		denied  atomic.Int32
		start   = make(chan struct{})
		wg      sync.WaitGroup
	)

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := ledger.Redeem(ctx, userID, "raw-token")
			switch {
			case err == nil:
				winners.Add(1)
			case apperr.HasCode(err, apperr.CodeAccessDenied):
				denied.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, int32(15), denied.Load())
}

func TestRefreshLedger_RunSweeperStopsOnCancel(t *testing.T) {
	ledger, _, _ := newTestLedger(t, LedgerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ledger.RunSweeper(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
