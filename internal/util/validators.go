package util

import (
	"regexp"
	"strings"
)

// vehicleNumberRegex matches standard Indian vehicle registration numbers:
// two letters (state), two digits (RTO), one to three letters (series),
// four digits (number), e.g. GJ05RT1234.
var vehicleNumberRegex = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z]{1,3}[0-9]{4}$`)

var nonDigitRegex = regexp.MustCompile(`\D`)

// CanonicalVehicleNumber trims and uppercases a raw vehicle number.
func CanonicalVehicleNumber(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// IsValidVehicleNumber reports whether the input is a valid Indian vehicle
// registration number. The check is case-insensitive.
func IsValidVehicleNumber(raw string) bool {
	return vehicleNumberRegex.MatchString(CanonicalVehicleNumber(raw))
}

// NormalizePhoneNumber canonicalizes a phone number to 12-digit Indian E.164
// form without the plus sign (e.g. "919876543210"). Accepted inputs after
// stripping non-digits: a bare 10-digit number, a 12-digit number already
// starting with 91, or an 11-digit number with a leading trunk 0.
// Returns false for anything else.
func NormalizePhoneNumber(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	digits := nonDigitRegex.ReplaceAllString(raw, "")
	switch {
	case len(digits) == 10:
		return "91" + digits, true
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		return digits, true
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		return "91" + digits[1:], true
	default:
		return "", false
	}
}
