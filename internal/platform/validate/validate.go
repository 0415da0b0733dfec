// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package validate provides a chainable Validator that collects field-level
// errors before returning a single [apperr.AppError].
//
// # Architecture
//
// This package is used at the request boundary. Phone format, code shape and
// password length are checked here so the auth core never has to.
package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/taibuivan/fixoo/internal/platform/apperr"
	"github.com/taibuivan/fixoo/pkg/phone"
)

var (
	// ErrInvalidJSON is returned when the request body cannot be decoded.
	ErrInvalidJSON = apperr.ValidationError("Invalid JSON payload")
)

// Validator collects field-level validation errors via a fluent, chainable API.
//
// # Concurrency
//
// Validator is not safe for concurrent use. A new instance must be created
// for every request/operation.
type Validator struct {
	errs []apperr.FieldError
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "This field is required")
	}
	return v
}

// MaxLen fails if the Unicode character count exceeds max.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.add(field, fmt.Sprintf("Maximum %d characters", max))
	}
	return v
}

// MinLen fails if the Unicode character count is below min.
func (v *Validator) MinLen(field, value string, min int) *Validator {
	if utf8.RuneCountInString(value) < min {
		v.add(field, fmt.Sprintf("Minimum %d characters", min))
	}
	return v
}

// Phone fails if the value does not normalize to a complete Uzbek number.
func (v *Validator) Phone(field, value string) *Validator {
	if !phone.IsValid(value) {
		v.add(field, "Must be a valid Uzbek phone number (+998XXXXXXXXX)")
	}
	return v
}

// Digits fails unless the value is exactly length ASCII digits.
func (v *Validator) Digits(field, value string, length int) *Validator {
	valid := len(value) == length
	for i := 0; valid && i < len(value); i++ {
		valid = value[i] >= '0' && value[i] <= '9'
	}
	if !valid {
		v.add(field, fmt.Sprintf("Must be exactly %d digits", length))
	}
	return v
}

// PasswordMaxBytes bounds the input handed to the password hasher.
const PasswordMaxBytes = 128

// Password fails if the value is shorter than min characters or longer than
// [PasswordMaxBytes] bytes. Only the first failure is reported.
func (v *Validator) Password(field, value string, min int) *Validator {
	switch {
	case strings.TrimSpace(value) == "":
		v.add(field, "This field is required")
	case utf8.RuneCountInString(value) < min:
		v.add(field, fmt.Sprintf("Minimum %d characters", min))
	case len(value) > PasswordMaxBytes:
		v.add(field, fmt.Sprintf("Maximum %d bytes", PasswordMaxBytes))
	}
	return v
}

// Err returns a [apperr.AppError] (VALIDATION_ERROR) if any rules failed,
// or nil if all rules passed.
//
// This is the only output method; call it at the end of the chain.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return apperr.ValidationError("Validation failed", v.errs...)
}

// HasErrors reports whether any validation rule has failed so far.
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

// add appends a [apperr.FieldError] to the internal slice.
func (v *Validator) add(field, message string) {
	v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
}

// RequiredError is a shortcut to create a single-field validation error.
func RequiredError(field, message string) *apperr.AppError {
	return apperr.ValidationError("Validation failed", apperr.FieldError{
		Field:   field,
		Message: message,
	})
}
