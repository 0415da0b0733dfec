// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/fixoo/internal/platform/sec"
)

// cheapParams keeps argon2 fast in tests while exercising the same code path.
var cheapParams = sec.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1}

func newIssuer(t *testing.T, refreshSecret string, clock func() time.Time) *sec.TokenIssuer {
	t.Helper()
	issuer, err := sec.NewTokenIssuer(sec.TokenIssuerConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: refreshSecret,
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "fixoo.uz",
		Clock:         clock,
	})
	require.NoError(t, err)
	return issuer
}

var subject = sec.Subject{UserID: 1, Phone: "+998901234567", Role: sec.RoleStudent}

// # Hasher

/*
TestHasher_RoundTrip verifies hash/verify and salting.
*/
func TestHasher_RoundTrip(t *testing.T) {
	hasher := sec.NewHasher(cheapParams)

	first, err := hasher.Hash("secret1")
	require.NoError(t, err)
	second, err := hasher.Hash("secret1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first, "$argon2id$v=19$m=1024,t=1,p=1$"))
	assert.NotEqual(t, first, second, "salts must differ")

	ok, err := hasher.Verify("secret1", first)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("secret2", first)
	require.NoError(t, err)
	assert.False(t, ok)
}

/*
TestHasher_VerifyUsesStoredParameters allows policy changes without breaking old digests.
*/
func TestHasher_VerifyUsesStoredParameters(t *testing.T) {
	old := sec.NewHasher(cheapParams)
	digest, err := old.Hash("secret1")
	require.NoError(t, err)

	current := sec.NewHasher(sec.Argon2Params{Memory: 2048, Iterations: 2, Parallelism: 1})
	ok, err := current.Verify("secret1", digest)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasher_MalformedDigest(t *testing.T) {
	hasher := sec.NewHasher(cheapParams)

	for _, digest := range []string{"", "plain", "$bcrypt$v=19$m=1,t=1,p=1$a$b", "$argon2id$v=19$m=x$a$b"} {
		ok, err := hasher.Verify("secret1", digest)
		assert.False(t, ok)
		assert.ErrorIs(t, err, sec.ErrInvalidHash, "digest %q", digest)
	}
}

// # Token Issuer

/*
TestTokenIssuer_MintAndVerify checks claims on both tokens.
*/
func TestTokenIssuer_MintAndVerify(t *testing.T) {
	issuer := newIssuer(t, "refresh-secret", nil)

	pair, err := issuer.Mint(context.Background(), subject)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	access, err := issuer.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "1", access.Subject)
	assert.Equal(t, "+998901234567", access.Phone)
	assert.Equal(t, sec.RoleStudent, access.Role)

	refresh, err := issuer.VerifyRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	userID, err := refresh.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(1), userID)
	assert.NotEqual(t, access.ID, refresh.ID)
	assert.False(t, issuer.UsesFallbackSecret())
}

/*
TestTokenIssuer_TypeSeparation rejects cross-use even with the fallback secret.
*/
func TestTokenIssuer_TypeSeparation(t *testing.T) {
	issuer := newIssuer(t, "", nil)
	assert.True(t, issuer.UsesFallbackSecret())

	pair, err := issuer.Mint(context.Background(), subject)
	require.NoError(t, err)

	_, err = issuer.VerifyRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)

	_, err = issuer.VerifyAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)

	_, err = issuer.VerifyRefreshToken(pair.RefreshToken)
	assert.NoError(t, err)
}

/*
TestTokenIssuer_DistinctSecrets rejects a refresh token signed with another secret.
*/
func TestTokenIssuer_DistinctSecrets(t *testing.T) {
	minted, err := newIssuer(t, "refresh-secret", nil).Mint(context.Background(), subject)
	require.NoError(t, err)

	_, err = newIssuer(t, "other-secret", nil).VerifyRefreshToken(minted.RefreshToken)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)

	_, err = newIssuer(t, "refresh-secret", nil).VerifyRefreshToken("not.a.jwt")
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
}

/*
TestTokenIssuer_Expiry rejects tokens past their exp claim.
*/
func TestTokenIssuer_Expiry(t *testing.T) {
	past := func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }

	pair, err := newIssuer(t, "refresh-secret", past).Mint(context.Background(), subject)
	require.NoError(t, err)

	verifier := newIssuer(t, "refresh-secret", nil)
	_, err = verifier.VerifyAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
	_, err = verifier.VerifyRefreshToken(pair.RefreshToken)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
}

/*
TestTokenIssuer_UniquePairs guards against identical tokens minted in the same second.
*/
func TestTokenIssuer_UniquePairs(t *testing.T) {
	fixed := time.Now()
	issuer := newIssuer(t, "refresh-secret", func() time.Time { return fixed })

	first, err := issuer.Mint(context.Background(), subject)
	require.NoError(t, err)
	second, err := issuer.Mint(context.Background(), subject)
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
}

func TestTokenIssuer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newIssuer(t, "refresh-secret", nil).Mint(ctx, subject)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewTokenIssuer_RequiresAccessSecret(t *testing.T) {
	_, err := sec.NewTokenIssuer(sec.TokenIssuerConfig{AccessTTL: time.Minute, RefreshTTL: time.Hour})
	assert.Error(t, err)
}

// # Roles

func TestUserRole_AtLeast(t *testing.T) {
	assert.True(t, sec.RoleSuperAdmin.AtLeast(sec.RoleAdmin))
	assert.True(t, sec.RoleAdmin.AtLeast(sec.RoleAdmin))
	assert.False(t, sec.RoleMentor.AtLeast(sec.RoleAssistant))
	assert.False(t, sec.RoleStudent.AtLeast(sec.RoleMentor))
	assert.False(t, sec.UserRole("GUEST").IsValid())
	assert.Equal(t, sec.RoleStudent, sec.DefaultRole)
}

func TestUserRole_CanManage(t *testing.T) {
	tests := []struct {
		actor  sec.UserRole
		target sec.UserRole
		want   bool
	}{
		{sec.RoleSuperAdmin, sec.RoleSuperAdmin, true},
		{sec.RoleSuperAdmin, sec.RoleAdmin, true},
		{sec.RoleAdmin, sec.RoleSuperAdmin, false},
		{sec.RoleAdmin, sec.RoleAdmin, false},
		{sec.RoleAdmin, sec.RoleAssistant, true},
		{sec.RoleAdmin, sec.RoleStudent, true},
		{sec.RoleMentor, sec.RoleStudent, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.actor.CanManage(tt.target), "%s -> %s", tt.actor, tt.target)
	}
}

func TestUserRole_CanAssign(t *testing.T) {
	tests := []struct {
		actor sec.UserRole
		role  sec.UserRole
		want  bool
	}{
		{sec.RoleSuperAdmin, sec.RoleSuperAdmin, false},
		{sec.RoleSuperAdmin, sec.RoleAdmin, true},
		{sec.RoleSuperAdmin, sec.RoleMentor, true},
		{sec.RoleAdmin, sec.RoleAdmin, false},
		{sec.RoleAdmin, sec.RoleMentor, true},
		{sec.RoleAdmin, sec.RoleStudent, true},
		{sec.RoleAdmin, sec.UserRole("GUEST"), false},
		{sec.RoleAssistant, sec.RoleStudent, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.actor.CanAssign(tt.role), "%s grants %s", tt.actor, tt.role)
	}
}
