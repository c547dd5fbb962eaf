package phone

import (
	"fmt"

	"github.com/nyaruka/phonenumbers"
)

// Normalize converts a raw phone number to E.164. The defaultRegion is
// used when the number carries no country code.
func Normalize(raw, defaultRegion string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("phone number cannot be empty")
	}
	if defaultRegion == "" {
		defaultRegion = "ES"
	}

	parsed, err := phonenumbers.Parse(raw, defaultRegion)
	if err != nil {
		return "", fmt.Errorf("failed to parse phone number: %w", err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("invalid phone number")
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// IsMobile reports whether the number can receive SMS or WhatsApp.
// Unparseable numbers are treated as non-mobile.
func IsMobile(raw, defaultRegion string) bool {
	if defaultRegion == "" {
		defaultRegion = "ES"
	}
	parsed, err := phonenumbers.Parse(raw, defaultRegion)
	if err != nil {
		return false
	}
	switch phonenumbers.GetNumberType(parsed) {
	case phonenumbers.MOBILE, phonenumbers.FIXED_LINE_OR_MOBILE:
		return true
	}
	return false
}
