package logger

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPathLength is the maximum length for URL paths in logs
	MaxPathLength = 500
	// MaxClientIDLength is the maximum length for client identifiers in logs (IPv6 with zone fits easily)
	MaxClientIDLength = 128
	// MaxErrorMessageLength is the maximum length for error messages in logs
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength is the maximum length for general strings in logs
	MaxGeneralStringLength = 2000
	// MaxDebugContentLength is the maximum length for debug content (prompts/responses)
	MaxDebugContentLength = 10000
)

// Upstream SDK errors sometimes echo the request URL, which for Gemini carries the key.
var (
	keyParamPattern  = regexp.MustCompile(`(?i)([?&](?:key|api_key)=)[^&\s"']+`)
	googleKeyPattern = regexp.MustCompile(`AIza[0-9A-Za-z_\-]{20,}`)
	bearerPattern    = regexp.MustCompile(`(?i)(bearer\s+)[0-9A-Za-z._\-]{8,}`)
)

// SanitizePath sanitizes a URL path for safe logging
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeString sanitizes a general string for safe logging
// Removes control characters, truncates to maxLength, and validates UTF-8
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	s = sanitizeFilterRunes(s)
	if len(s) > maxLength {
		s = strings.ToValidUTF8(s[:maxLength], "") + "..."
	}
	return s
}

// sanitizeFilterRunes validates UTF-8 and removes control characters (keeps printable, space, tab, newline, CR).
func sanitizeFilterRunes(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// RedactSecrets masks API keys and bearer tokens embedded in s.
func RedactSecrets(s string) string {
	s = keyParamPattern.ReplaceAllString(s, "${1}[REDACTED]")
	s = googleKeyPattern.ReplaceAllString(s, "[REDACTED]")
	return bearerPattern.ReplaceAllString(s, "${1}[REDACTED]")
}

// SanitizeError sanitizes an error message for safe logging, redacting credentials.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(RedactSecrets(err.Error()), MaxErrorMessageLength)
}

// SanitizeClientID sanitizes a client identifier (IP address or rate limit key) for safe logging
func SanitizeClientID(clientID string) string {
	return SanitizeString(clientID, MaxClientIDLength)
}

// SanitizeDebugContent sanitizes debug content (prompts/responses) for safe logging.
// Prompts embed the resume and project context, so even debug output is size-limited.
func SanitizeDebugContent(content string) string {
	return SanitizeString(content, MaxDebugContentLength)
}
