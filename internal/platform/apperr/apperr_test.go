// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/fixoo/internal/platform/apperr"
)

/*
TestTaxonomy_StatusMapping pins every authentication error kind to its HTTP status.
*/
func TestTaxonomy_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    *apperr.AppError
		code   string
		status int
	}{
		{"rate_limited", apperr.RateLimited(42), apperr.CodeRateLimited, http.StatusTooManyRequests},
		{"invalid_otp", apperr.InvalidOTP(), apperr.CodeInvalidOTP, http.StatusBadRequest},
		{"invalid_credentials", apperr.InvalidCredentials(), apperr.CodeInvalidCredentials, http.StatusUnauthorized},
		{"already_exists", apperr.AlreadyExists("dup"), apperr.CodeAlreadyExists, http.StatusConflict},
		{"access_denied", apperr.AccessDenied(), apperr.CodeAccessDenied, http.StatusForbidden},
		{"delivery_failed", apperr.DeliveryFailed(errors.New("gateway 502")), apperr.CodeDeliveryFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}
}

/*
TestDeliveryFailed_HidesCause ensures transport details stay out of the message.
*/
func TestDeliveryFailed_HidesCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:443: i/o timeout")
	err := apperr.DeliveryFailed(cause)

	assert.NotContains(t, err.Error(), "10.0.0.1")
	assert.ErrorIs(t, err, cause)
}

/*
TestAs_TraversesWrapping verifies extraction through fmt.Errorf chains.
*/
func TestAs_TraversesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("auth_service_refresh_failed: %w", apperr.AccessDenied())

	ae := apperr.As(wrapped)
	require.NotNil(t, ae)
	assert.True(t, apperr.HasCode(wrapped, apperr.CodeAccessDenied))
	assert.False(t, apperr.HasCode(errors.New("plain"), apperr.CodeAccessDenied))
	assert.Equal(t, 42, apperr.RateLimited(42).RetryAfter)
}

func TestWithCause_DoesNotMutateOriginal(t *testing.T) {
	base := apperr.AccessDenied()
	withCause := base.WithCause(errors.New("ledger miss"))

	assert.Nil(t, base.Cause)
	assert.NotNil(t, withCause.Cause)
	assert.Equal(t, base.Code, withCause.Code)
}
