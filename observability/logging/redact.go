package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces credential material in log output.
const RedactedValue = "[REDACTED]"

// MaskValue returns the redaction placeholder for non-empty values. Empty
// values pass through unchanged so absent fields stay visible as absent.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField builds a slog.Attr whose value is always redacted. Gateway
// handlers use it when logging rejected admin credentials.
func MaskField(key, value string) slog.Attr {
	return slog.String(key, MaskValue(value))
}
