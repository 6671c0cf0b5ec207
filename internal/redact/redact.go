// Package redact scrubs secrets from text before it reaches disk or an
// escalated error message.
package redact

import (
	"os"
	"regexp"
	"strings"
)

// Redacted replaces any scrubbed value.
const Redacted = "***REDACTED***"

// Env vars whose values must never appear in captures.
var secretEnvVars = []string{
	"ANTHROPIC_API_KEY",
	"OPENAI_API_KEY",
	"TRIBUNAL_API_KEY",
}

var (
	authHeaderRe = regexp.MustCompile(`(?i)(Authorization:\s*Bearer\s+)\S+`)
	xAPIKeyRe    = regexp.MustCompile(`(?i)(x-api-key:\s*)\S+`)
	urlParamRe   = regexp.MustCompile(`(?i)([?&])(api[_-]?key|token|secret|auth)=[^&\s]+`)
	skKeyRe      = regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{16,}\b`)
)

// String scrubs known secret patterns and secret env var values from s.
func String(s string) string {
	out := s

	for _, name := range secretEnvVars {
		if v := os.Getenv(name); v != "" && strings.Contains(out, v) {
			out = strings.ReplaceAll(out, v, Redacted)
		}
	}
	// TRIBUNAL_-prefixed vars are treated as sensitive wholesale; short
	// values are skipped to avoid scrubbing common substrings.
	for _, kv := range os.Environ() {
		name, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, "TRIBUNAL_") {
			continue
		}
		if len(v) > 8 && strings.Contains(out, v) {
			out = strings.ReplaceAll(out, v, Redacted)
		}
	}

	out = authHeaderRe.ReplaceAllString(out, "${1}"+Redacted)
	out = xAPIKeyRe.ReplaceAllString(out, "${1}"+Redacted)
	out = urlParamRe.ReplaceAllString(out, "${1}${2}="+Redacted)
	out = skKeyRe.ReplaceAllString(out, Redacted)
	return out
}

// Error scrubs an error message. Nil-safe.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
