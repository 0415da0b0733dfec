// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/taibuivan/fixoo/internal/platform/sec"
)

// # Credential Store

// CredentialStore hashes and verifies account passwords.
type CredentialStore struct {
	hasher *sec.Hasher

	dummyOnce sync.Once
	dummyHash string
}

// NewCredentialStore wraps a password [sec.Hasher].
func NewCredentialStore(hasher *sec.Hasher) *CredentialStore {
	return &CredentialStore{hasher: hasher}
}

// Hash derives the stored digest of password.
func (store *CredentialStore) Hash(password string) (string, error) {
	digest, err := store.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("credential_hash_failed: %w", err)
	}
	return digest, nil
}

// Verify reports whether password matches digest. Malformed digests never match.
func (store *CredentialStore) Verify(digest, password string) bool {
	ok, err := store.hasher.Verify(password, digest)
	return err == nil && ok
}

// VerifyDummy spends one verification on a throwaway digest, so an unknown
// phone costs as much as a wrong password.
func (store *CredentialStore) VerifyDummy(password string) {
	store.dummyOnce.Do(func() {
		store.dummyHash, _ = store.hasher.Hash("fixoo-dummy-password")
	})
	if store.dummyHash == "" {
		return
	}
	_, _ = store.hasher.Verify(password, store.dummyHash)
}

// errCredentialMismatch is kept as the logged cause of InvalidCredentials.
var errCredentialMismatch = errors.New("credential mismatch")
