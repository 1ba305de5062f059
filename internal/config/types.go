package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the full bot configuration. Decoding is strict: unknown fields
// are rejected so typos in config files fail loudly instead of silently.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Catalog  CatalogConfig  `json:"catalog"`
	Delivery DeliveryConfig `json:"delivery"`
	Logging  LoggingConfig  `json:"logging"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// GroupLog optionally mirrors warnings/errors to this chat id.
	GroupLog string `json:"group_log,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// CatalogConfig selects the catalog backend.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "file":   tab-separated text file
type CatalogConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path"`
	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// DeliveryConfig controls the daily delivery schedule.
type DeliveryConfig struct {
	// Timezone is the IANA zone all per-user delivery times are interpreted
	// in, e.g. "Asia/Kolkata".
	Timezone string `json:"timezone"`
	// DefaultTime is the HH:MM delivery time for users who never ran /settime.
	DefaultTime string `json:"default_time,omitempty"`
}

type LoggingConfig struct {
	Level    string            `json:"level,omitempty"`
	Console  bool              `json:"console,omitempty"`
	File     LogFileConfig     `json:"file,omitempty"`
	Telegram LogTelegramConfig `json:"telegram,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

type LogTelegramConfig struct {
	Enabled    bool   `json:"enabled,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// Duration fields are carried as Go duration strings ("10s", "1m") so the
// config stays plain JSON/YAML. ParseDurationField turns one into a
// time.Duration; empty means unset and negatives are rejected. path names the
// field in the error, e.g. "telegram.poll_timeout".
func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def substituted for an
// unset field.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
