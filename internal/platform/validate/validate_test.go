// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/fixoo/internal/platform/apperr"
	"github.com/taibuivan/fixoo/internal/platform/validate"
)

/*
TestValidator_Required tests the mandatory field validation logic.
*/
func TestValidator_Required(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		value    string
		hasError bool
	}{
		{"valid_string", "full_name", "Ali", false},
		{"empty_string", "full_name", "", true},
		{"whitespace_only", "full_name", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Required(tt.field, tt.value)

			if tt.hasError {
				assert.True(t, v.HasErrors())
				err := v.Err()
				require.NotNil(t, err)

				ae := apperr.As(err)
				require.NotNil(t, ae)
				assert.Equal(t, apperr.CodeValidation, ae.Code)
				assert.Equal(t, tt.field, ae.Details[0].Field)
			} else {
				assert.False(t, v.HasErrors())
				assert.Nil(t, v.Err())
			}
		})
	}
}

/*
TestValidator_Phone checks the Uzbek phone rule.
*/
func TestValidator_Phone(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		isValid bool
	}{
		{"canonical", "+998901234567", true},
		{"formatted", "+998 (90) 123-45-67", true},
		{"local", "901234567", true},
		{"too_short", "+99890123", false},
		{"too_long", "+9989012345678", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Phone("phone", tt.value)
			assert.Equal(t, !tt.isValid, v.HasErrors())
		})
	}
}

/*
TestValidator_Digits checks the fixed-length OTP code rule.
*/
func TestValidator_Digits(t *testing.T) {
	tests := []struct {
		value   string
		isValid bool
	}{
		{"482913", true},
		{"48291", false},
		{"4829133", false},
		{"48a913", false},
		{"４８２９１３", false},
	}

	for _, tt := range tests {
		v := &validate.Validator{}
		v.Digits("code", tt.value, 6)
		assert.Equal(t, !tt.isValid, v.HasErrors(), "value %q", tt.value)
	}
}

/*
TestValidator_Password checks the length bounds and that one failure is reported per field.
*/
func TestValidator_Password(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		message string
	}{
		{"valid", "secret1", ""},
		{"empty", "", "This field is required"},
		{"blank", "      ", "This field is required"},
		{"short", "abc", "Minimum 6 characters"},
		{"multibyte_counts_runes", "пароль", ""},
		{"oversized", strings.Repeat("a", validate.PasswordMaxBytes+1), "Maximum 128 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&validate.Validator{}).Password("password", tt.value, 6).Err()
			if tt.message == "" {
				assert.NoError(t, err)
				return
			}

			ae := apperr.As(err)
			require.NotNil(t, ae)
			require.Len(t, ae.Details, 1)
			assert.Equal(t, tt.message, ae.Details[0].Message)
		})
	}
}

/*
TestValidator_Chain_Failure tests error accumulation in the chain.
*/
func TestValidator_Chain_Failure(t *testing.T) {
	v := &validate.Validator{}

	err := v.
		Phone("phone", "123").        // Fails
		MinLen("password", "abc", 6). // Fails
		Required("full_name", "").    // Fails
		Digits("code", "482913", 6).  // Passes
		Err()

	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)

	// Should accumulate all 3 errors
	assert.Len(t, ae.Details, 3)
}
