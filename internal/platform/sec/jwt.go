// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// auth domain via the [auth.TokenIssuer] interface.
package sec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/fixoo/pkg/uuid"
)

// # Claims

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// AuthClaims represents the payload embedded inside both Fixoo JWTs.
//
// # Payload
//
// Subject carries the account ID. Phone and Role let [middleware.Authenticate]
// rebuild the caller identity without a database round-trip. Type prevents an
// access token from being replayed against the refresh endpoint, which matters
// when both tokens share one secret.
type AuthClaims struct {
	jwt.RegisteredClaims

	Phone string    `json:"phone"`
	Role  UserRole  `json:"role"`
	Type  TokenType `json:"typ"`
}

// UserID parses the numeric account ID carried in the subject claim.
func (claims *AuthClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("sec: invalid subject %q: %w", claims.Subject, err)
	}
	return id, nil
}

// Subject is the identity a [TokenPair] is minted for.
type Subject struct {
	UserID int64
	Phone  string
	Role   UserRole
}

// TokenPair is the transient result of a successful authentication. Never persisted.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// # Token Issuer

// ErrInvalidToken is returned for any signature, expiry, issuer or type failure.
var ErrInvalidToken = errors.New("sec: invalid token")

// TokenIssuerConfig configures a [TokenIssuer].
type TokenIssuerConfig struct {
	AccessSecret  string
	RefreshSecret string // optional, falls back to AccessSecret
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Logger        *slog.Logger
	Clock         func() time.Time
}

// TokenIssuer mints and verifies HS256 access and refresh tokens.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	fallback      bool
	now           func() time.Time
}

/*
NewTokenIssuer validates the signing configuration.

Description: When no refresh secret is configured the access secret is reused.
This weaker mode is kept for compatibility and reported with a warning log.

Returns:
  - *TokenIssuer: Ready issuer
  - error: Missing access secret or non-positive lifetimes
*/
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if cfg.AccessSecret == "" {
		return nil, errors.New("sec: access token secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("sec: token lifetimes must be positive")
	}

	issuer := &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           cfg.Clock,
	}

	if issuer.now == nil {
		issuer.now = time.Now
	}

	if cfg.RefreshSecret == "" {
		issuer.refreshSecret = issuer.accessSecret
		issuer.fallback = true

		logger := cfg.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("jwt_refresh_secret_fallback",
			slog.String("detail", "JWT_REFRESH_SECRET is empty, refresh tokens are signed with the access secret"),
		)
	}

	return issuer, nil
}

// UsesFallbackSecret reports whether refresh tokens share the access secret.
func (issuer *TokenIssuer) UsesFallbackSecret() bool {
	return issuer.fallback
}

// AccessTTL returns the configured access-token lifetime.
func (issuer *TokenIssuer) AccessTTL() time.Duration {
	return issuer.accessTTL
}

// RefreshTTL returns the configured refresh-token lifetime.
func (issuer *TokenIssuer) RefreshTTL() time.Duration {
	return issuer.refreshTTL
}

/*
Mint signs an access token and a refresh token for subject.

Description: The two signatures are independent and computed concurrently.
Both carry {sub, phone, role} plus a random jti, so two pairs minted in the
same second for the same user never collide.

Parameters:
  - context: context.Context
  - subject: Subject

Returns:
  - *TokenPair: Signed tokens with their expiry instants
  - error: Signing failures or cancellation
*/
func (issuer *TokenIssuer) Mint(context context.Context, subject Subject) (*TokenPair, error) {
	issuedAt := issuer.now()
	pair := &TokenPair{
		AccessExpiresAt:  issuedAt.Add(issuer.accessTTL),
		RefreshExpiresAt: issuedAt.Add(issuer.refreshTTL),
	}

	group, groupContext := errgroup.WithContext(context)

	group.Go(func() error {
		token, err := issuer.sign(groupContext, issuer.accessSecret, issuer.claims(subject, TokenTypeAccess, issuedAt, pair.AccessExpiresAt))
		if err != nil {
			return fmt.Errorf("sec_mint_access_failed: %w", err)
		}
		pair.AccessToken = token
		return nil
	})

	group.Go(func() error {
		token, err := issuer.sign(groupContext, issuer.refreshSecret, issuer.claims(subject, TokenTypeRefresh, issuedAt, pair.RefreshExpiresAt))
		if err != nil {
			return fmt.Errorf("sec_mint_refresh_failed: %w", err)
		}
		pair.RefreshToken = token
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return pair, nil
}

// VerifyAccessToken checks signature, expiry, issuer and type of an access token.
func (issuer *TokenIssuer) VerifyAccessToken(tokenString string) (*AuthClaims, error) {
	return issuer.verify(tokenString, issuer.accessSecret, TokenTypeAccess)
}

// VerifyRefreshToken checks signature, expiry, issuer and type of a refresh token.
// It does not consult the ledger.
func (issuer *TokenIssuer) VerifyRefreshToken(tokenString string) (*AuthClaims, error) {
	return issuer.verify(tokenString, issuer.refreshSecret, TokenTypeRefresh)
}

// claims builds the registered and custom claims for one token.
func (issuer *TokenIssuer) claims(subject Subject, tokenType TokenType, issuedAt, expiresAt time.Time) AuthClaims {
	return AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New(),
			Subject:   strconv.FormatInt(subject.UserID, 10),
			Issuer:    issuer.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Phone: subject.Phone,
		Role:  subject.Role,
		Type:  tokenType,
	}
}

// sign serializes claims with HS256.
func (issuer *TokenIssuer) sign(context context.Context, secret []byte, claims AuthClaims) (string, error) {
	if err := context.Err(); err != nil {
		return "", err
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}
	return signed, nil
}

// verify parses tokenString and enforces every registered constraint.
func (issuer *TokenIssuer) verify(tokenString string, secret []byte, expected TokenType) (*AuthClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(issuer.now),
	)

	claims := &AuthClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid || claims.Type != expected || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
