package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	logx "dailydsa/pkg/logx"
)

//go:embed schema.sql
var schemaSQL string

type sqliteGateway struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Gateway, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("catalog sqlite path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog schema: %w", err)
	}
	return &sqliteGateway{db: db, log: log}, nil
}

func (g *sqliteGateway) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT id, title, difficulty, topic, url FROM items ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var items []Item
	skipped := 0
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Title, &it.Difficulty, &it.Topic, &it.URL); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		it = normalize(it)
		if !it.complete() {
			skipped++
			continue
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if skipped > 0 {
		g.log.Debug("incomplete catalog rows skipped", logx.Int("count", skipped))
	}
	return items, nil
}

func (g *sqliteGateway) AppendItem(ctx context.Context, it Item) error {
	it = normalize(it)
	if !it.complete() {
		return errors.New("catalog item has empty fields")
	}
	_, err := g.db.ExecContext(ctx,
		`INSERT INTO items(id, title, difficulty, topic, url) VALUES(?,?,?,?,?)`,
		it.ID, it.Title, it.Difficulty, it.Topic, it.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (g *sqliteGateway) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}
