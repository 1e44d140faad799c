// Package quota implements read-quota tracking and request gating for the
// spreadsheet URL source. It monitors the X-RateLimit-Remaining and
// X-RateLimit-Reset response headers so page fetches stop before the source
// API starts rejecting the project's quota window.
package quota

import (
	"time"
)

// Redis keys for quota state storage.
const (
	RedisKeyRemaining      = "feed:quota:remaining"
	RedisKeyResetTimestamp = "feed:quota:reset_timestamp"
	RedisKeyLastUpdate     = "feed:quota:last_update"
)

// Thresholds for quota decisions.
const (
	// ThresholdCritical blocks page fetches when remaining quota falls
	// below this value, so the shared window never fully drains.
	ThresholdCritical = 2

	// ThresholdWarning applies throttling when remaining quota falls below
	// this value.
	ThresholdWarning = 10

	// ThresholdHealthy indicates normal operation. At or above this value
	// no restrictions apply.
	ThresholdHealthy = 30
)

// State represents the current source read-quota state.
// The state is shared across all daemon instances via Redis.
type State struct {
	// Remaining is the number of reads left in the current quota window.
	// Extracted from the X-RateLimit-Remaining header.
	Remaining int `json:"remaining"`

	// ResetAt is when the quota window resets. Calculated from the
	// X-RateLimit-Reset header (seconds until reset).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last updated. Used to detect
	// stale data.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if page fetches should be blocked.
func (s *State) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical
}

// NeedsThrottling returns true if page fetches should be throttled.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the quota window resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}
