package logging

import (
	"log/slog"
	"strings"
)

// Redacted replaces the value of secret attributes.
const Redacted = "[REDACTED]"

// secretKeys are attribute keys whose values never reach the output of a
// logger built by New. OTLP headers carry collector credentials.
var secretKeys = map[string]bool{
	"authorization": true,
	"headers":       true,
	"password":      true,
	"secret":        true,
	"token":         true,
}

func isSecret(key string) bool {
	return secretKeys[strings.ToLower(strings.TrimSpace(key))]
}

// redact masks attr when its key names a secret. Empty values pass through so
// an unset credential stays visible as unset.
func redact(attr slog.Attr) slog.Attr {
	if !isSecret(attr.Key) {
		return attr
	}
	if attr.Value.Kind() == slog.KindString && strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, Redacted)
}
