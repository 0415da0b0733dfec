// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/taibuivan/fixoo/internal/platform/apperr"
	"github.com/taibuivan/fixoo/internal/platform/constants"
	"github.com/taibuivan/fixoo/internal/platform/ctxutil"
	"github.com/taibuivan/fixoo/internal/platform/respond"
	"github.com/taibuivan/fixoo/internal/platform/sec"
)

// TokenVerifier defines the interface needed to verify tokens in middleware.
//
// [*sec.TokenIssuer] satisfies it; tests inject a stub.
type TokenVerifier interface {
	VerifyAccessToken(tokenString string) (*sec.AuthClaims, error)
}

// Authenticate extracts and verifies the access JWT from the Authorization header.
//
// # Flow
//  1. Check for 'Authorization: Bearer <token>' header.
//  2. If absent, malformed or not a valid access token, proceed as anonymous.
//  3. Otherwise inject [*sec.AuthClaims] into the request context.
//
// Rejection belongs to [RequireAuth] and [RequireRole]. Public routes such as
// the refresh endpoint must stay reachable with an expired access token or
// with the refresh token itself in the header.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			// 1. Bearer Extraction
			token, ok := BearerToken(request)
			if !ok {
				next.ServeHTTP(writer, request)
				return
			}

			// 2. Token Verification
			claims, err := verifier.VerifyAccessToken(token)
			if err != nil {
				ctxutil.GetLogger(request.Context()).DebugContext(request.Context(), "access_token_rejected",
					slog.Any("error", err),
				)
				next.ServeHTTP(writer, request)
				return
			}

			// 3. Context Injection
			if recorder, ok := writer.(*statusRecorder); ok {
				recorder.subject = claims.Subject
			}
			ctx := ctxutil.WithAuthUser(request.Context(), claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// BearerToken returns the token of an 'Authorization: Bearer <token>' header.
func BearerToken(request *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(request.Header.Get(constants.HeaderAuthorization), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAuth blocks requests that are not authenticated.
//
// Must be registered in the router AFTER [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetAuthUser(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireRole blocks requests if the authenticated user doesn't have the required role.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate]. It implies
// [RequireAuth] so you don't need to mount both.
//
// # Flow
//  1. Check if [*sec.AuthClaims] exists in context (implies AuthN).
//  2. Check the caller's role against the target with [sec.UserRole.AtLeast].
//  3. If insufficient, abort with HTTP 403 Forbidden.
func RequireRole(role sec.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			claims := ctxutil.GetAuthUser(request.Context())

			// 1. Authentication Check
			if claims == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			// 2. Authorization Check
			if !claims.Role.AtLeast(role) {
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
