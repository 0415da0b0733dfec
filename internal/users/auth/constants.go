// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"time"

	"github.com/taibuivan/fixoo/internal/platform/sec"
)

// # Authentication Constraints

const (
	// AccessTokenTTL is the default lifetime of an access JWT.
	AccessTokenTTL = 15 * time.Minute

	// RefreshTokenTTL is the default lifetime of a refresh JWT and its ledger record.
	RefreshTokenTTL = 7 * 24 * time.Hour

	// OTPTTL is how long an issued code stays verifiable.
	OTPTTL = 120 * time.Second

	// OTPResendInterval is the minimum gap between two codes for one phone.
	OTPResendInterval = 60 * time.Second

	// SMSTimeout bounds a single delivery attempt.
	SMSTimeout = 10 * time.Second

	// MaxSessionsPerUser caps live refresh records per account. Zero disables the cap.
	MaxSessionsPerUser = 10
)

// # Input Policy

const (
	// OTPLength is the number of digits in a code.
	OTPLength = 6

	// otpMin and otpSpan define the uniform range [100000, 999999].
	otpMin  = 100000
	otpSpan = 900000

	// PasswordMinLength is enforced at the HTTP boundary.
	PasswordMinLength = 6

	// FullNameMaxLength matches the account column width.
	FullNameMaxLength = 255
)

// otpMessageTemplate is the SMS body. The code is the only variable part.
const otpMessageTemplate = "Fixoo platformasidan ro'yxatdan o'tish uchun tasdiqlash kodi: %s. Kodni hech kimga bermang!"

// RefreshTokenHashParams is the argon2id policy for ledger digests.
//
// Redeem verifies against every live record of a user, so the cost is kept at
// the OWASP minimum rather than the password policy.
var RefreshTokenHashParams = sec.Argon2Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
}
