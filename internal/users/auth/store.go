// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"

	"github.com/taibuivan/fixoo/internal/platform/sec"
)

// # User Data Access

// UserRepository defines the data access contract for accounts.
//
// Every method receives an already-normalized phone.
type UserRepository interface {

	/*
		FindByPhone returns the account registered with phone.

		Parameters:
		  - context: context.Context
		  - phone: string (canonical)

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database failures
	*/
	FindByPhone(context context.Context, phone string) (*User, error)

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: int64

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database failures
	*/
	FindByID(context context.Context, id int64) (*User, error)

	/*
		Create persists a brand-new account and assigns its ID and timestamps.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: apperr.AlreadyExists on a duplicate phone, or persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		UpdatePassword replaces only the account's password hash.

		Parameters:
		  - context: context.Context
		  - userID: int64
		  - newHash: string

		Returns:
		  - error: apperr.NotFound when no row matched, or persistence failures
	*/
	UpdatePassword(context context.Context, userID int64, newHash string) error

	/*
		UpdateRole replaces only the account's role.

		Parameters:
		  - context: context.Context
		  - userID: int64
		  - role: sec.UserRole

		Returns:
		  - error: apperr.NotFound when no row matched, or persistence failures
	*/
	UpdateRole(context context.Context, userID int64, role sec.UserRole) error
}

// # Refresh Ledger Data Access

// RefreshTokenRepository defines the durable storage of ledger records.
type RefreshTokenRepository interface {

	/*
		Create persists a new record. Records of one user never overwrite each other.

		Parameters:
		  - context: context.Context
		  - token: *RefreshToken

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, token *RefreshToken) error

	/*
		ListActive returns the user's records with ExpiresAt after now, newest first.

		Parameters:
		  - context: context.Context
		  - userID: int64
		  - now: time.Time

		Returns:
		  - []*RefreshToken: Possibly empty
		  - error: Database failures
	*/
	ListActive(context context.Context, userID int64, now time.Time) ([]*RefreshToken, error)

	/*
		Delete removes one record by ID in a single conditional statement.

		Description: Two callers racing on the same ID observe exactly one true.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - bool: Whether this call removed the row
		  - error: Database failures
	*/
	Delete(context context.Context, id string) (bool, error)

	/*
		DeleteAllForUser removes every record of a user.

		Parameters:
		  - context: context.Context
		  - userID: int64

		Returns:
		  - int64: Number of removed rows
		  - error: Database failures
	*/
	DeleteAllForUser(context context.Context, userID int64) (int64, error)

	/*
		DeleteExpired purges records whose ExpiresAt is not after now.

		Parameters:
		  - context: context.Context
		  - now: time.Time

		Returns:
		  - int64: Number of removed rows
		  - error: Database failures
	*/
	DeleteExpired(context context.Context, now time.Time) (int64, error)
}

// # Volatile Data Access

// ChallengeStore is the ephemeral key/value store holding OTP codes and resend locks.
type ChallengeStore interface {

	// Get returns the value of key, or apperr.NotFound when absent or expired.
	Get(context context.Context, key string) (string, error)

	// Set writes key unconditionally with a TTL.
	Set(context context.Context, key, value string, ttl time.Duration) error

	// SetNX writes key only if it does not exist, in one atomic step.
	SetNX(context context.Context, key, value string, ttl time.Duration) (bool, error)

	// TTL returns the remaining lifetime of key, or zero when absent.
	TTL(context context.Context, key string) (time.Duration, error)

	// Delete removes every given key. Missing keys are ignored.
	Delete(context context.Context, keys ...string) error
}

// # Outbound Capabilities

// SMSSender delivers a text message to a canonical phone.
type SMSSender interface {
	Send(context context.Context, phone, message string) error
}
