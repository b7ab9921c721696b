package config

import (
	"strings"
	"time"
)

// DefaultServer is the server notehub-cli talks to when nothing else is set.
const DefaultServer = "http://127.0.0.1:3000"

// CLIConfig is the configuration for notehub-cli.
type CLIConfig struct {
	Server string `yaml:"server,omitempty"`
	Output string `yaml:"output,omitempty"` // table, json, yaml

	// Session is the admin session saved by login.
	Session *Session `yaml:"session,omitempty"`
}

// Session is a saved admin session cookie.
type Session struct {
	Server    string `yaml:"server"`
	Cookie    string `yaml:"cookie"`
	ExpiresAt int64  `yaml:"expires_at"` // unix ms
}

// ValidFor reports whether the session belongs to server and has not
// expired at now.
func (s *Session) ValidFor(server string, now time.Time) bool {
	if s == nil || s.Cookie == "" {
		return false
	}
	if normalizeServer(s.Server) != normalizeServer(server) {
		return false
	}
	return s.ExpiresAt == 0 || now.UnixMilli() < s.ExpiresAt
}

func normalizeServer(s string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(s)), "/")
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server: DefaultServer,
		Output: "table",
	}
}
