// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/fixoo/internal/platform/apperr"
	"github.com/taibuivan/fixoo/internal/platform/sec"
)

// # Challenge Stores

type challengeBackend struct {
	name    string
	store   ChallengeStore
	advance func(time.Duration)
}

func challengeBackends(t *testing.T) []challengeBackend {
	t.Helper()

	clock := newTestClock()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return []challengeBackend{
		{name: "memory", store: NewMemoryChallengeStore(clock.Now), advance: clock.Advance},
		{name: "redis", store: NewRedisChallengeStore(client), advance: server.FastForward},
	}
}

func TestChallengeStore_Contract(t *testing.T) {
	for _, backend := range challengeBackends(t) {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()
			store := backend.store

			_, err := store.Get(ctx, "missing")
			assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

			require.NoError(t, store.Set(ctx, "k", "v1", 2*time.Minute))
			value, err := store.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v1", value)

			require.NoError(t, store.Set(ctx, "k", "v2", 2*time.Minute))
			value, err = store.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v2", value, "Set overwrites")

			remaining, err := store.TTL(ctx, "k")
			require.NoError(t, err)
			assert.InDelta(t, (2 * time.Minute).Seconds(), remaining.Seconds(), 1)

			remaining, err = store.TTL(ctx, "missing")
			require.NoError(t, err)
			assert.Zero(t, remaining)

			backend.advance(2*time.Minute + time.Second)
			_, err = store.Get(ctx, "k")
			assert.True(t, apperr.HasCode(err, apperr.CodeNotFound), "expired entries are absent")
		})
	}
}

func TestChallengeStore_SetNX(t *testing.T) {
	for _, backend := range challengeBackends(t) {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()
			store := backend.store

			ok, err := store.SetNX(ctx, "lock", "1", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = store.SetNX(ctx, "lock", "1", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok, "second SetNX must lose while the key lives")

			backend.advance(time.Minute + time.Second)

			ok, err = store.SetNX(ctx, "lock", "1", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "SetNX succeeds again after expiry")
		})
	}
}

func TestChallengeStore_SetNXConcurrent(t *testing.T) {
	for _, backend := range challengeBackends(t) {
		t.Run(backend.name, func(t *testing.T) {
			var (
				winners atomic.Int32
				start   = make(chan struct{})
				wg      sync.WaitGroup
			)

			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					ok, err := backend.store.SetNX(context.Background(), "race", "1", time.Minute)
					if err == nil && ok {
						winners.Add(1)
					}
				}()
			}

			close(start)
			wg.Wait()
			assert.Equal(t, int32(1), winners.Load())
		})
	}
}

func TestChallengeStore_Delete(t *testing.T) {
	for _, backend := range challengeBackends(t) {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()
			store := backend.store

			require.NoError(t, store.Set(ctx, "a", "1", time.Minute))
			require.NoError(t, store.Set(ctx, "b", "2", time.Minute))
			require.NoError(t, store.Delete(ctx, "a", "b", "never-set"))
			require.NoError(t, store.Delete(ctx))

			for _, key := range []string{"a", "b"} {
				_, err := store.Get(ctx, key)
				assert.True(t, apperr.HasCode(err, apperr.CodeNotFound), key)
			}
		})
	}
}

// # Account Repositories

// checkUserRepository runs the UserRepository contract against an empty table.
func checkUserRepository(t *testing.T, repository UserRepository) {
	t.Helper()
	ctx := context.Background()

	user := &User{Phone: "+998901234567", PasswordHash: "digest", FullName: "Ali", Role: sec.RoleStudent}
	require.NoError(t, repository.Create(ctx, user))
	assert.NotZero(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	duplicate := &User{Phone: "+998901234567", PasswordHash: "x", FullName: "Other", Role: sec.RoleStudent}
	err := repository.Create(ctx, duplicate)
	assert.True(t, apperr.HasCode(err, apperr.CodeAlreadyExists))

	found, err := repository.FindByPhone(ctx, "+998901234567")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "Ali", found.FullName)
	assert.Equal(t, sec.RoleStudent, found.Role)
	assert.Equal(t, "digest", found.PasswordHash)

	_, err = repository.FindByPhone(ctx, "+998900000000")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	require.NoError(t, repository.UpdatePassword(ctx, user.ID, "new-digest"))
	found, err = repository.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-digest", found.PasswordHash)

	require.NoError(t, repository.UpdateRole(ctx, user.ID, sec.RoleMentor))
	found, err = repository.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, sec.RoleMentor, found.Role)
	assert.Equal(t, "new-digest", found.PasswordHash, "role change keeps the password")

	err = repository.UpdatePassword(ctx, 9999, "x")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	err = repository.UpdateRole(ctx, 9999, sec.RoleMentor)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	_, err = repository.FindByID(ctx, 9999)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

// checkRefreshTokenRepository runs the ledger contract against empty tables.
func checkRefreshTokenRepository(t *testing.T, users UserRepository, repository RefreshTokenRepository) {
	t.Helper()
	ctx := context.Background()

	user := &User{Phone: "+998901234567", PasswordHash: "digest", FullName: "Ali", Role: sec.RoleStudent}
	require.NoError(t, users.Create(ctx, user))

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	records := []*RefreshToken{
		{ID: ids[0], UserID: user.ID, TokenHash: "h1", ExpiresAt: now.Add(time.Hour), CreatedAt: now.Add(-2 * time.Minute)},
		{ID: ids[1], UserID: user.ID, TokenHash: "h2", ExpiresAt: now.Add(time.Hour), CreatedAt: now.Add(-time.Minute)},
		{ID: ids[2], UserID: user.ID, TokenHash: "h3", ExpiresAt: now.Add(-time.Second), CreatedAt: now.Add(-3 * time.Minute)},
	}
	for _, record := range records {
		require.NoError(t, repository.Create(ctx, record))
	}

	active, err := repository.ListActive(ctx, user.ID, now)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, ids[1], active[0].ID, "newest first")
	assert.Equal(t, ids[0], active[1].ID)
	assert.True(t, now.Add(time.Hour).Equal(active[0].ExpiresAt))

	deleted, err := repository.Delete(ctx, ids[1])
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repository.Delete(ctx, ids[1])
	require.NoError(t, err)
	assert.False(t, deleted, "second delete reports nothing removed")

	purged, err := repository.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	revoked, err := repository.DeleteAllForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), revoked)

	revoked, err = repository.DeleteAllForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, revoked)
}

func TestSQLiteUserRepository(t *testing.T) {
	checkUserRepository(t, NewSQLiteUserRepository(openTestDB(t)))
}

func TestSQLiteRefreshTokenRepository(t *testing.T) {
	db := openTestDB(t)
	checkRefreshTokenRepository(t, NewSQLiteUserRepository(db), NewSQLiteRefreshTokenRepository(db))
}
