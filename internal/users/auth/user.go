// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements phone-based identity and the session lifecycle.

Accounts are created and recovered through a one-time SMS code instead of an
email link. After that, access is carried by a short-lived access JWT and a
rotating refresh JWT whose digest is kept in a durable ledger.

# Architecture

  - OTPEngine: issues, verifies and clears SMS challenges in a [ChallengeStore].
  - CredentialStore: argon2id password digests.
  - RefreshLedger: hashed refresh tokens per user, redeemed exactly once.
  - Service: the Session Manager composing the above into the public flows.
  - Handler: the chi delivery layer under /api/v1/auth.

Storage is reached only through the repository interfaces in store.go, with
PostgreSQL and SQLite implementations for durable data and Redis or memory for
challenges.
*/
package auth

import (
	"time"

	"github.com/taibuivan/fixoo/internal/platform/sec"
)

// # Domain Entities

// User represents a registered Fixoo account (the Identity).
type User struct {
	ID           int64        `json:"id"`
	Phone        string       `json:"phone"`
	PasswordHash string       `json:"-"` // Explicitly omitted from JSON for security.
	FullName     string       `json:"full_name"`
	Role         sec.UserRole `json:"role"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// RefreshToken is one ledger record. Only the digest of the raw token is kept.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldPhone           = "phone"
	FieldPassword        = "password"
	FieldFullName        = "full_name"
	FieldCode            = "code"
	FieldNewPassword     = "new_password"
	FieldCurrentPassword = "current_password"
	FieldRefreshToken    = "refresh_token"
	FieldAccessToken     = "access_token"
	FieldTokenType       = "token_type"
	FieldExpiresIn       = "expires_in"
	FieldUser            = "user"
	FieldMessage         = "message"
	FieldRevoked         = "revoked"
	FieldRole            = "role"
)

// roleOf converts a stored role column, defaulting unknown values to the lowest privilege.
func roleOf(value string) sec.UserRole {
	role := sec.UserRole(value)
	if !role.IsValid() {
		return sec.DefaultRole
	}
	return role
}
