package logger

import (
	"log/slog"
	"regexp"
	"strings"
)

// redactedValue replaces a credential in log output.
const redactedValue = "***REDACTED***"

// sessionCookie is the admin cookie name; a logged "name=value" pair
// keeps the name.
const sessionCookie = "admin_session"

// keyWords mark an attribute key as carrying a credential.
var keyWords = []string{
	"password", "secret", "token", "cookie", "session",
	"credential", "authorization", "bearer", "api_key", "apikey",
}

// tokenPrefixes are GitHub credential prefixes. Masked values keep the
// prefix and a short hint so operators can tell tokens apart.
var tokenPrefixes = []string{"github_pat_", "ghp_", "gho_", "ghs_"}

// signedSession matches a session value: base64 claims, a dot, then the
// hex HMAC-SHA256 tag.
var signedSession = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}\.[0-9a-fA-F]{64}$`)

// valueRules recognise credentials by shape, whatever key they are
// logged under.
var valueRules = []func(v string) (string, bool){
	func(v string) (string, bool) {
		for _, p := range tokenPrefixes {
			if strings.HasPrefix(v, p) {
				return maskValue(v, p), true
			}
		}
		return "", false
	},
	func(v string) (string, bool) {
		return redactedValue, strings.HasPrefix(v, "$argon2") || signedSession.MatchString(v)
	},
	func(v string) (string, bool) {
		name, _, ok := strings.Cut(v, "=")
		if ok && strings.EqualFold(strings.TrimSpace(name), sessionCookie) {
			return sessionCookie + "=" + redactedValue, true
		}
		return "", false
	},
}

// redactSensitive is the handlers' ReplaceAttr hook.
func redactSensitive(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		out := make([]slog.Attr, 0, len(group))
		for _, g := range group {
			out = append(out, redactSensitive(nil, g))
		}
		a.Value = slog.GroupValue(out...)
	case slog.KindString:
		v := a.Value.String()
		if v == "" {
			break
		}
		if masked, ok := maskKnown(v); ok {
			a.Value = slog.StringValue(masked)
		} else if IsSensitiveKey(a.Key) {
			a.Value = slog.StringValue(redactedValue)
		}
	}
	return a
}

func maskKnown(v string) (string, bool) {
	for _, rule := range valueRules {
		if masked, ok := rule(v); ok {
			return masked, true
		}
	}
	return "", false
}

// maskValue keeps prefix plus the first and last three characters of the
// rest. Short secrets keep only the prefix.
func maskValue(value, prefix string) string {
	rest := strings.TrimPrefix(value, prefix)
	if len(rest) <= 6 {
		return prefix + "***"
	}
	return prefix + rest[:3] + "..." + rest[len(rest)-3:]
}

// RedactString masks value if it looks like a credential and returns it
// unchanged otherwise.
func RedactString(value string) string {
	if masked, ok := maskKnown(value); ok {
		return masked
	}
	return value
}

// IsSensitiveKey reports whether an attribute named key should never be
// logged in clear.
func IsSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, w := range keyWords {
		if strings.Contains(key, w) {
			return true
		}
	}
	return false
}

// IsSensitiveValue reports whether value has the shape of a credential.
func IsSensitiveValue(value string) bool {
	_, ok := maskKnown(value)
	return ok
}
