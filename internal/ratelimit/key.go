package ratelimit

import "strings"

// keyPlaceholder replaces every rune that is not an ASCII letter or digit.
const keyPlaceholder = '_'

// SanitizeKey maps a raw client identifier to a storage-safe key.
// The mapping is lossy: "10.0.0.1" and "10_0_0_1" share a key.
func SanitizeKey(identifier string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return keyPlaceholder
		}
	}, identifier)
}
