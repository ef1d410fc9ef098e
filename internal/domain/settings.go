package domain

import "time"

// Settings holds the live-reloadable download options. Each task captures a
// copy at launch, so a settings update never changes a download mid-flight.
type Settings struct {
	MaxConcurrentPerHost int           `json:"maxConcurrentPerHost"`
	MaxGlobalConcurrent  int           `json:"maxGlobalConcurrent"` // 0 = default pool size
	ConnectionTimeout    time.Duration `json:"connectionTimeout"`
	MaxAttempts          int           `json:"maxAttempts"`
	ForceOrder           bool          `json:"forceOrder"`
	ClearCompleted       bool          `json:"clearCompleted"`
}

// DefaultSettings returns the settings used until the store provides a value.
func DefaultSettings() Settings {
	return Settings{
		MaxConcurrentPerHost: 4,
		MaxGlobalConcurrent:  0,
		ConnectionTimeout:    30 * time.Second,
		MaxAttempts:          3,
		ForceOrder:           false,
		ClearCompleted:       false,
	}
}

// Normalize clamps out-of-range values to safe ones.
func (s Settings) Normalize() Settings {
	if s.MaxConcurrentPerHost < 1 {
		s.MaxConcurrentPerHost = 1
	}
	if s.MaxGlobalConcurrent < 0 {
		s.MaxGlobalConcurrent = 0
	}
	if s.ConnectionTimeout <= 0 {
		s.ConnectionTimeout = 30 * time.Second
	}
	if s.MaxAttempts < 1 {
		s.MaxAttempts = 1
	}
	return s
}
