package config

import (
	"strings"

	"github.com/notehub-dev/notehub/internal/telemetry/logger"
)

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Auth.ProtectedPrefixes = append([]string(nil), cfg.Auth.ProtectedPrefixes...)

	if strings.HasPrefix(sanitized.Auth.Password, "$argon2") {
		sanitized.Auth.Password = "$argon2id$****"
	} else if sanitized.Auth.Password != "" {
		sanitized.Auth.Password = maskSecret(sanitized.Auth.Password)
	}
	if sanitized.Auth.Secret != "" {
		sanitized.Auth.Secret = maskSecret(sanitized.Auth.Secret)
	}
	// GitHub tokens keep their prefix so the token kind stays visible.
	if tok := sanitized.Artifact.Remote.Token; logger.IsSensitiveValue(tok) {
		sanitized.Artifact.Remote.Token = logger.RedactString(tok)
	} else if tok != "" {
		sanitized.Artifact.Remote.Token = maskSecret(tok)
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
