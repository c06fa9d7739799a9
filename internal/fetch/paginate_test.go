package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func rawItems(n int) []json.RawMessage {
	out := make([]json.RawMessage, n)
	for i := range out {
		out[i] = json.RawMessage(`{}`)
	}
	return out
}

func TestPaginateStopsAtTarget(t *testing.T) {
	pages := 0
	fn := func(ctx context.Context, cursor string) ([]json.RawMessage, string, error) {
		pages++
		return rawItems(10), fmt.Sprintf("c%d", pages), nil
	}
	items, err := Paginate(context.Background(), fn, 25, 10, nil)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if pages != 3 {
		t.Fatalf("expected 3 pages for target 25, got %d", pages)
	}
	if len(items) != 30 {
		t.Fatalf("expected 30 accumulated items, got %d", len(items))
	}
}

func TestPaginateStopsOnEmptyCursor(t *testing.T) {
	pages := 0
	fn := func(ctx context.Context, cursor string) ([]json.RawMessage, string, error) {
		pages++
		if pages == 2 {
			return rawItems(5), "", nil
		}
		return rawItems(5), "next", nil
	}
	items, err := Paginate(context.Background(), fn, 100, 10, nil)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if pages != 2 || len(items) != 10 {
		t.Fatalf("expected 2 pages / 10 items, got %d / %d", pages, len(items))
	}
}

func TestPaginateStopsOnEmptyPage(t *testing.T) {
	pages := 0
	fn := func(ctx context.Context, cursor string) ([]json.RawMessage, string, error) {
		pages++
		if pages == 1 {
			return rawItems(3), "next", nil
		}
		return nil, "next", nil
	}
	items, err := Paginate(context.Background(), fn, 100, 10, nil)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if pages != 2 || len(items) != 3 {
		t.Fatalf("expected stop on empty page, got %d pages / %d items", pages, len(items))
	}
}

func TestPaginateHonorsMaxPages(t *testing.T) {
	pages := 0
	fn := func(ctx context.Context, cursor string) ([]json.RawMessage, string, error) {
		pages++
		return rawItems(1), "next", nil
	}
	if _, err := Paginate(context.Background(), fn, 1000, 4, nil); err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if pages != 4 {
		t.Fatalf("expected the page cap to hold, got %d pages", pages)
	}
}

func TestPaginateReturnsPartialOnError(t *testing.T) {
	pages := 0
	boom := errors.New("boom")
	fn := func(ctx context.Context, cursor string) ([]json.RawMessage, string, error) {
		pages++
		if pages == 2 {
			return nil, "", boom
		}
		return rawItems(7), "next", nil
	}
	items, err := Paginate(context.Background(), fn, 100, 10, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected page error back, got %v", err)
	}
	if len(items) != 7 {
		t.Fatalf("expected first page kept, got %d items", len(items))
	}
}

func TestPaginatePassesCursorForward(t *testing.T) {
	var cursors []string
	fn := func(ctx context.Context, cursor string) ([]json.RawMessage, string, error) {
		cursors = append(cursors, cursor)
		if len(cursors) == 3 {
			return rawItems(1), "", nil
		}
		return rawItems(1), fmt.Sprintf("c%d", len(cursors)), nil
	}
	if _, err := Paginate(context.Background(), fn, 100, 10, nil); err != nil {
		t.Fatalf("paginate: %v", err)
	}
	want := []string{"", "c1", "c2"}
	for i := range want {
		if cursors[i] != want[i] {
			t.Fatalf("cursor %d: got %q want %q", i, cursors[i], want[i])
		}
	}
}
