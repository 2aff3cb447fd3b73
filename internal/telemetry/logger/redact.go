package logger

import (
	"log/slog"
	"strings"
)

// jwtPrefix starts every JWT: base64url of `{"`.
const jwtPrefix = "eyJ"

// Sensitive key patterns that should be redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"credential",
	"authorization",
	"bearer",
	"api_key",
	"apikey",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive checks if an attribute contains sensitive data
// and redacts it if necessary.
func redactSensitive(a slog.Attr) slog.Attr {
	// A JWT is partially masked wherever it appears; this takes priority
	// over key-based detection so the hint survives.
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		if isSensitiveValue(strVal) {
			return slog.String(a.Key, maskValue(strVal))
		}

		if strVal != "" && isSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// maskValue keeps the JWT prefix and the last 4 characters.
// Format: eyJ...wxyz
func maskValue(value string) string {
	if len(value) <= len(jwtPrefix)+8 {
		return jwtPrefix + "***"
	}
	return jwtPrefix + "..." + value[len(value)-4:]
}

// isSensitiveKey checks if a key name suggests sensitive content.
func isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// isSensitiveValue reports whether value looks like a JWT:
// three dot-separated segments with a JSON header.
func isSensitiveValue(value string) bool {
	if !strings.HasPrefix(value, jwtPrefix) {
		return false
	}
	return strings.Count(value, ".") == 2 && !strings.ContainsAny(value, " \t\n")
}
