// Package util provides utility functions for the ParkEasy application.
package util

import (
	"math/rand/v2"
	"strings"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Uses math/rand/v2; not for cryptographic purposes.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// GenerateReceiptRef generates a unique receipt reference with "rcpt_" prefix.
func GenerateReceiptRef() string {
	return GenerateRandomID("rcpt_", 16)
}

// GeneratePassRef generates a unique e-pass reference with "pass_" prefix.
func GeneratePassRef() string {
	return GenerateRandomID("pass_", 16)
}
