// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package phone canonicalizes user-supplied Uzbek phone numbers.

Every store in the platform is keyed by the output of [Normalize], never by the
raw input, so "+998 90 123-45-67", "998901234567" and "901234567" all collapse
to the same record.

Pipeline:

  - Width folding: full-width digits (common on some mobile keyboards) become ASCII.
  - Stripping: every non-digit rune is dropped.
  - Prefixing: the country code is added when missing.
*/
package phone

import (
	"strings"

	"golang.org/x/text/transform"
	"golang.org/x/text/width"
)

// # Constants

const (
	// CountryCode is the Uzbek international dialing prefix without the plus sign.
	CountryCode = "998"

	// SubscriberLength is the number of digits after the country code.
	SubscriberLength = 9
)

// # Normalization

/*
Normalize turns a raw phone string into the canonical "+998..." comparison key.

Description: Total and deterministic. Malformed input still yields a best-effort
canonical string; format validation belongs to the request boundary.

Parameters:
  - raw: string

Returns:
  - string: Canonical phone
*/
func Normalize(raw string) string {

	// Fold full-width forms so "９９８" is treated like "998"
	folded, _, err := transform.String(width.Fold, raw)
	if err != nil {
		folded = raw
	}

	// Keep ASCII digits only
	var builder strings.Builder
	builder.Grow(len(folded) + 4)
	for _, r := range folded {
		if r >= '0' && r <= '9' {
			builder.WriteRune(r)
		}
	}
	digits := builder.String()

	if strings.HasPrefix(digits, CountryCode) {
		return "+" + digits
	}
	return "+" + CountryCode + digits
}

// IsValid reports whether the canonical form of raw is a complete Uzbek number.
func IsValid(raw string) bool {
	canonical := Normalize(raw)
	return len(canonical) == 1+len(CountryCode)+SubscriberLength
}

// # Logging

// Mask hides the middle of a phone number for log output (e.g. +9********67).
func Mask(value string) string {
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
}
