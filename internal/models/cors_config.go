package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// CorsConfig lists the browser origins allowed to call the chat endpoint.
// The portfolio frontend usually has one or two (apex and www).
type CorsConfig struct {
	ConfigKey        string    `json:"config_key"`
	AllowedOrigins   string    `json:"allowed_origins"` // Comma-separated
	AllowCredentials bool      `json:"allow_credentials"`
	MaxAge           int       `json:"max_age"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Origins returns the normalized origin list.
func (c *CorsConfig) Origins() []string {
	if c == nil {
		return nil
	}
	return ParseOrigins(c.AllowedOrigins)
}

// ParseOrigins splits a comma-separated origin list, trimming whitespace and trailing
// slashes and dropping duplicates. Order is preserved.
func ParseOrigins(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(raw, ",") {
		s := strings.TrimRight(strings.TrimSpace(p), "/")
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// ValidateOrigin accepts "*" or an http(s) scheme://host[:port] with no path.
func ValidateOrigin(origin string) error {
	if origin == "*" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || u.Path != "" || u.RawQuery != "" {
		return fmt.Errorf("invalid origin %q: want scheme://host[:port]", origin)
	}
	return nil
}
