// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/taibuivan/fixoo/internal/platform/apperr"
)

// MemoryChallengeStore is a process-local ChallengeStore for single-instance
// deployments and tests. Expired entries are dropped on access.
type MemoryChallengeStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryChallengeStore creates an empty store. A nil clock uses time.Now.
func NewMemoryChallengeStore(clock func() time.Time) *MemoryChallengeStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryChallengeStore{
		entries: make(map[string]memoryEntry),
		now:     clock,
	}
}

// Get returns the live value of key or apperr.NotFound.
func (repository *MemoryChallengeStore) Get(context context.Context, key string) (string, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	entry, ok := repository.live(key)
	if !ok {
		return "", apperr.NotFound("Challenge")
	}
	return entry.value, nil
}

// Set writes key unconditionally.
func (repository *MemoryChallengeStore) Set(context context.Context, key, value string, ttl time.Duration) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	repository.entries[key] = memoryEntry{value: value, expiresAt: repository.now().Add(ttl)}
	return nil
}

// SetNX writes key only when no live entry exists. The mutex makes it atomic.
func (repository *MemoryChallengeStore) SetNX(context context.Context, key, value string, ttl time.Duration) (bool, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	if _, ok := repository.live(key); ok {
		return false, nil
	}
	repository.entries[key] = memoryEntry{value: value, expiresAt: repository.now().Add(ttl)}
	return true, nil
}

// TTL returns the remaining lifetime of key, or zero when absent.
func (repository *MemoryChallengeStore) TTL(context context.Context, key string) (time.Duration, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	entry, ok := repository.live(key)
	if !ok {
		return 0, nil
	}
	return entry.expiresAt.Sub(repository.now()), nil
}

// Delete removes the keys.
func (repository *MemoryChallengeStore) Delete(context context.Context, keys ...string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	for _, key := range keys {
		delete(repository.entries, key)
	}
	return nil
}

// live returns the entry if present and unexpired, evicting it otherwise.
// Callers must hold mu.
func (repository *MemoryChallengeStore) live(key string) (memoryEntry, bool) {
	entry, ok := repository.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !repository.now().Before(entry.expiresAt) {
		delete(repository.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}
