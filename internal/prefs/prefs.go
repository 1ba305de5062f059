// Package prefs holds per-user delivery preferences and exclusion history.
// State is process-lifetime and in-memory; records are created lazily on a
// user's first interaction and never destroyed.
package prefs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrBadDifficulty = errors.New("invalid difficulty")
	ErrBadTime       = errors.New("invalid time, expected HH:MM")
)

// DifficultyDefault means "no filter": the user takes items of any difficulty.
const DifficultyDefault = "default"

// recentWindow bounds the recent-delivery ring per user. Once full, the
// oldest id is evicted, making it eligible again.
const recentWindow = 20

// Clock is a time of day in the bot's fixed delivery timezone.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock parses "HH:MM" with hour 0-23 and minute 0-59.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("%w: bad hour in %q", ErrBadTime, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("%w: bad minute in %q", ErrBadTime, s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// NormalizeDifficulty validates and lowercases a difficulty choice,
// accepting "default" plus the catalog difficulties.
func NormalizeDifficulty(v string) (string, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case DifficultyDefault, "easy", "medium", "hard":
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadDifficulty, v)
}

// record is one user's mutable preference state. All access goes through the
// owning shard's lock.
type record struct {
	difficulty   string
	deliveryTime Clock
	completed    map[string]struct{}
	recent       []string
}

// Snapshot is a read-only copy of a user's preference state.
type Snapshot struct {
	Difficulty   string
	DeliveryTime Clock
	// Excluded is the union of the completed set and the recency window.
	Excluded map[string]struct{}
}

// Filter returns the difficulty to filter selection by, empty for "default".
func (s Snapshot) Filter() string {
	if s.Difficulty == DifficultyDefault {
		return ""
	}
	return s.Difficulty
}
