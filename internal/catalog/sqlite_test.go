package catalog

import (
	"context"
	"path/filepath"
	"testing"

	logx "dailydsa/pkg/logx"
)

func TestSQLiteGatewayRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "catalog.db")
	g, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()
	ctx := context.Background()

	want := []Item{
		{ID: "1_100", Title: "Two Sum", Difficulty: "easy", Topic: "arrays", URL: "https://example.com/1"},
		{ID: "2_101", Title: "LRU Cache", Difficulty: "Medium", Topic: "design", URL: "https://example.com/2"},
	}
	for _, it := range want {
		if err := g.AppendItem(ctx, it); err != nil {
			t.Fatal(err)
		}
	}

	items, err := g.ListItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	// Insertion order preserved, difficulty normalized.
	if items[0].ID != "1_100" || items[1].ID != "2_101" {
		t.Errorf("order: %s, %s", items[0].ID, items[1].ID)
	}
	if items[1].Difficulty != "medium" {
		t.Errorf("difficulty not normalized: %q", items[1].Difficulty)
	}
}

func TestSQLiteGatewayRejectsDuplicateID(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "catalog.db")
	g, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()
	ctx := context.Background()

	it := Item{ID: "1_1", Title: "A", Difficulty: "easy", Topic: "t", URL: "https://e.com/a"}
	if err := g.AppendItem(ctx, it); err != nil {
		t.Fatal(err)
	}
	if err := g.AppendItem(ctx, it); err == nil {
		t.Fatal("expected duplicate id rejection")
	}
}

func TestSQLiteGatewayRejectsIncompleteItem(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "catalog.db")
	g, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	if err := g.AppendItem(context.Background(), Item{ID: "1", Title: "x"}); err == nil {
		t.Fatal("expected incomplete item rejection")
	}
}
