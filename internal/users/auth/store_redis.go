// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/fixoo/internal/platform/apperr"
)

// RedisChallengeStore implements ChallengeStore using Redis.
//
// Expiry is delegated to Redis key TTLs, so every instance of the API sees the
// same challenge and lock state.
type RedisChallengeStore struct {
	client redis.Cmdable
}

// NewRedisChallengeStore creates a new Redis-backed ChallengeStore.
func NewRedisChallengeStore(client redis.Cmdable) *RedisChallengeStore {
	return &RedisChallengeStore{client: client}
}

/*
Get retrieves the value stored under key.

Description: Returns apperr.NotFound if the key is absent or expired.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - string: Stored value
  - error: apperr.NotFound or connectivity errors
*/
func (repository *RedisChallengeStore) Get(context context.Context, key string) (string, error) {
	value, err := repository.client.Get(context, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.NotFound("Challenge")
		}
		return "", fmt.Errorf("redis_challenge_get_failed: %w", err)
	}

	return value, nil
}

// Set stores value under key with a TTL.
func (repository *RedisChallengeStore) Set(context context.Context, key, value string, ttl time.Duration) error {
	if err := repository.client.Set(context, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis_challenge_set_failed: %w", err)
	}
	return nil
}

/*
SetNX stores value under key only when the key is absent.

Description: Maps to a single SET NX PX command, so concurrent callers for the
same key resolve to exactly one winner.

Parameters:
  - context: context.Context
  - key: string
  - value: string
  - ttl: time.Duration

Returns:
  - bool: Whether the key was written
  - error: Connectivity errors
*/
func (repository *RedisChallengeStore) SetNX(context context.Context, key, value string, ttl time.Duration) (bool, error) {
	acquired, err := repository.client.SetNX(context, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis_challenge_setnx_failed: %w", err)
	}
	return acquired, nil
}

// TTL returns the remaining lifetime of key, or zero when it is missing.
func (repository *RedisChallengeStore) TTL(context context.Context, key string) (time.Duration, error) {
	remaining, err := repository.client.PTTL(context, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis_challenge_ttl_failed: %w", err)
	}

	// Redis reports -2 (missing) and -1 (no expiry) as negative durations.
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// Delete removes the keys.
func (repository *RedisChallengeStore) Delete(context context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := repository.client.Del(context, keys...).Err(); err != nil {
		return fmt.Errorf("redis_challenge_delete_failed: %w", err)
	}
	return nil
}
