// Package quota records the Pexels request quota reported on every response.
// It reads the X-Ratelimit-Limit, X-Ratelimit-Remaining and X-Ratelimit-Reset
// headers and keeps the latest values in Redis so several processes sharing
// one API key see the same picture. The tracker only observes: it never
// delays, blocks or retries a request.
package quota

import (
	"time"
)

// Redis keys for quota state storage.
const (
	RedisKeyLimit      = "pexels:quota:limit"
	RedisKeyRemaining  = "pexels:quota:remaining"
	RedisKeyReset      = "pexels:quota:reset_timestamp"
	RedisKeyLastUpdate = "pexels:quota:last_update"
)

// Response headers carrying the quota.
const (
	HeaderLimit     = "X-Ratelimit-Limit"
	HeaderRemaining = "X-Ratelimit-Remaining"
	HeaderReset     = "X-Ratelimit-Reset"
)

// LowWatermark is the fraction of the limit under which the quota counts as low.
const LowWatermark = 0.10

// State is the last known quota for the configured API key.
type State struct {
	// Limit is the number of requests allowed per window.
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window rolls over (X-Ratelimit-Reset is a UNIX timestamp).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was recorded.
	LastUpdate time.Time `json:"last_update"`
}

// Known reports whether any quota headers have been seen.
func (s *State) Known() bool {
	return !s.LastUpdate.IsZero()
}

// IsLow returns true once Remaining drops below LowWatermark of Limit.
func (s *State) IsLow() bool {
	if s.Limit <= 0 {
		return false
	}
	return float64(s.Remaining) < float64(s.Limit)*LowWatermark
}

// IsExhausted returns true when no requests remain in the window.
func (s *State) IsExhausted() bool {
	return s.Known() && s.Remaining <= 0
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}
