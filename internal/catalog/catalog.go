// Package catalog defines the recommendable item model and the gateway the
// bot reads and appends items through. Backends are driver-selectable.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "dailydsa/pkg/logx"
)

var ErrUnavailable = errors.New("catalog unavailable")

// Difficulty values accepted on items.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// ValidDifficulty reports whether v (any case) is an accepted item difficulty.
func ValidDifficulty(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Item is one catalog entry. Immutable once stored; ID is unique within the
// catalog and is the key all per-user exclusion state refers to.
type Item struct {
	ID         string
	Title      string
	Difficulty string
	Topic      string
	URL        string
}

// complete reports whether all five fields are populated. Rows that are not
// complete are skipped silently when listing.
func (it Item) complete() bool {
	return it.ID != "" && it.Title != "" && it.Difficulty != "" && it.Topic != "" && it.URL != ""
}

// Gateway is the catalog collaborator the rest of the bot is written against.
type Gateway interface {
	// ListItems returns all items in insertion order. May be empty.
	ListItems(ctx context.Context) ([]Item, error)
	AppendItem(ctx context.Context, it Item) error
	Close() error
}

// Config selects the catalog backend.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured backend.
func Open(cfg Config, log logx.Logger) (Gateway, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "file":
		return openFile(cfg, log)
	default:
		return nil, errors.New("unknown catalog driver: " + cfg.Driver)
	}
}

func normalize(it Item) Item {
	it.ID = strings.TrimSpace(it.ID)
	it.Title = strings.TrimSpace(it.Title)
	it.Difficulty = strings.ToLower(strings.TrimSpace(it.Difficulty))
	it.Topic = strings.TrimSpace(it.Topic)
	it.URL = strings.TrimSpace(it.URL)
	return it
}
