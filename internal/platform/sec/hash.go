// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// # Argon2id Parameters

// Argon2Params fixes the cost of every digest produced by a [Hasher].
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params is the production policy (t=3, m=64MiB, p=2).
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// ErrInvalidHash is returned when a stored digest is not a well-formed argon2id PHC string.
var ErrInvalidHash = errors.New("sec: invalid argon2id hash")

// # Hasher

// Hasher produces salted, slow, one-way argon2id digests.
//
// The same instance hashes account passwords and raw refresh tokens. It is
// safe for concurrent use.
type Hasher struct {
	params Argon2Params
}

// NewHasher constructs a [Hasher]. Zero fields fall back to [DefaultArgon2Params].
func NewHasher(params Argon2Params) *Hasher {
	if params.Memory == 0 {
		params.Memory = DefaultArgon2Params.Memory
	}
	if params.Iterations == 0 {
		params.Iterations = DefaultArgon2Params.Iterations
	}
	if params.Parallelism == 0 {
		params.Parallelism = DefaultArgon2Params.Parallelism
	}
	if params.SaltLength == 0 {
		params.SaltLength = DefaultArgon2Params.SaltLength
	}
	if params.KeyLength == 0 {
		params.KeyLength = DefaultArgon2Params.KeyLength
	}
	return &Hasher{params: params}
}

/*
Hash derives an encoded digest for secret.

Returns:
  - string: "$argon2id$v=19$m=..,t=..,p=..$<salt>$<key>"
  - error: Entropy failures
*/
func (hasher *Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, hasher.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("sec_hash_salt_failed: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt,
		hasher.params.Iterations,
		hasher.params.Memory,
		hasher.params.Parallelism,
		hasher.params.KeyLength,
	)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		hasher.params.Memory,
		hasher.params.Iterations,
		hasher.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

/*
Verify reports whether secret matches encoded.

Description: Recomputes the key with the parameters stored in the digest and
compares in constant time. Raw strings are never compared.

Returns:
  - bool: Match
  - error: ErrInvalidHash for malformed digests
*/
func (hasher *Hasher) Verify(secret, encoded string) (bool, error) {
	params, salt, expected, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	actual := argon2.IDKey([]byte(secret), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}

// decodeHash splits a PHC string into its parameters, salt and key.
func decodeHash(encoded string) (Argon2Params, []byte, []byte, error) {
	var params Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return params, nil, nil, ErrInvalidHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return params, nil, nil, ErrInvalidHash
	}

	var parallelism uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &parallelism); err != nil {
		return params, nil, nil, ErrInvalidHash
	}
	if parallelism == 0 || parallelism > 255 || params.Iterations == 0 || params.Memory == 0 {
		return params, nil, nil, ErrInvalidHash
	}
	params.Parallelism = uint8(parallelism)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, ErrInvalidHash
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return params, nil, nil, ErrInvalidHash
	}

	return params, salt, key, nil
}
