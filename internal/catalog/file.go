package catalog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "dailydsa/pkg/logx"
)

// fileGateway is a dependency-free backend: one item per line, five
// tab-separated fields (id, title, difficulty, topic, url). Lines with fewer
// than five populated fields are skipped when listing, mirroring how sparse
// spreadsheet rows behave.
type fileGateway struct {
	mu   sync.Mutex
	path string
	log  logx.Logger
}

func openFile(cfg Config, log logx.Logger) (Gateway, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("catalog file path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	// Touch the file so a fresh install starts with an empty catalog instead
	// of a read error.
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, err
	}
	_ = f.Close()
	return &fileGateway{path: cfg.Path, log: log}, nil
}

func (g *fileGateway) ListItems(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	f, err := os.Open(g.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer f.Close()

	var items []Item
	skipped := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 5 {
			skipped++
			continue
		}
		it := normalize(Item{
			ID:         parts[0],
			Title:      parts[1],
			Difficulty: parts[2],
			Topic:      parts[3],
			URL:        parts[4],
		})
		if !it.complete() {
			skipped++
			continue
		}
		items = append(items, it)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if skipped > 0 {
		g.log.Debug("incomplete catalog rows skipped", logx.Int("count", skipped))
	}
	return items, nil
}

func (g *fileGateway) AppendItem(ctx context.Context, it Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	it = normalize(it)
	if !it.complete() {
		return errors.New("catalog item has empty fields")
	}
	if strings.ContainsAny(it.ID+it.Title+it.Topic+it.URL, "\t\n") {
		return errors.New("catalog item fields must not contain tabs or newlines")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	f, err := os.OpenFile(g.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer f.Close()

	line := strings.Join([]string{it.ID, it.Title, it.Difficulty, it.Topic, it.URL}, "\t") + "\n"
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (g *fileGateway) Close() error { return nil }
