package models

import "time"

// RateLimitRecord is the durable per-client counter for the chat quota.
// WindowStart is in milliseconds since the Unix epoch.
type RateLimitRecord struct {
	Key         string `json:"key"`
	Count       int    `json:"count"`
	WindowStart int64  `json:"window_start"`
}

// WindowStartTime returns WindowStart as a time.Time.
func (r *RateLimitRecord) WindowStartTime() time.Time {
	return time.UnixMilli(r.WindowStart)
}

// RatelimitConfig holds the per-IP burst rate applied in front of the chat quota (e.g. "5-S", "100-M").
type RatelimitConfig struct {
	ConfigKey string    `json:"config_key"`
	Rate      string    `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
