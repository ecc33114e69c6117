package models

import "time"

// AppConfigKey is the fixed settings record the chat proxy reads.
const AppConfigKey = "config"

// AppConfig holds the externally owned settings the chat proxy needs on every call.
type AppConfig struct {
	ConfigKey     string    `json:"config_key"`
	APIKey        string    `json:"-"`
	ResumeContext string    `json:"resume_context,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasAPIKey reports whether an upstream API key is on file.
func (c *AppConfig) HasAPIKey() bool {
	return c != nil && c.APIKey != ""
}
