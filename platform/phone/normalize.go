// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when a number carries no country prefix.
const DefaultRegion = "US"

// NormalizeE164 formats a phone number to E.164 using DefaultRegion.
func NormalizeE164(input string) string {
	return NormalizeE164InRegion(input, DefaultRegion)
}

// NormalizeE164InRegion formats a phone number to E.164. If parsing fails or
// the number is invalid, it returns the trimmed input unchanged.
func NormalizeE164InRegion(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}
