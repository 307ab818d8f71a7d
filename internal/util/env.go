package util

import (
	"log/slog"
	"os"
	"strings"
)

// ParseBoolEnv reads a boolean environment variable, falling back to the
// given default when the variable is unset or not a recognized boolean.
// Recognized values (case-insensitive): true/1/yes/on, false/0/no/off.
func ParseBoolEnv(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		slog.Warn("ParseBoolEnv ignoring invalid value", "key", key, "value", val, "default", defaultValue)
		return defaultValue
	}
}
