package fetch

import (
	"context"
	"encoding/json"

	"golang.org/x/time/rate"

	"derivflow/logger"
)

// PageFunc fetches one page for the given cursor and returns the raw
// items plus the cursor of the following page. An empty next cursor
// means the source has no more pages.
type PageFunc func(ctx context.Context, cursor string) (items []json.RawMessage, next string, err error)

// Paginate accumulates items across pages until target items have been
// collected, the source stops handing out cursors, a page comes back
// empty, or maxPages fetches have happened. The limiter paces page
// fetches to stay under source rate limits.
//
// Fewer items than target is not an error; whatever was accumulated is
// returned. Page-level fetch failures are returned together with the
// items collected so far and the caller decides whether to keep them.
func Paginate(ctx context.Context, fn PageFunc, target, maxPages int, limiter *rate.Limiter) ([]json.RawMessage, error) {
	if maxPages <= 0 {
		maxPages = 1
	}
	var out []json.RawMessage
	cursor := ""
	for page := 0; page < maxPages; page++ {
		if page > 0 && limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return out, err
			}
		}
		items, next, err := fn(ctx, cursor)
		if err != nil {
			return out, err
		}
		out = append(out, items...)
		logger.IncrementPageRead(len(items))
		if len(out) >= target || next == "" || len(items) == 0 {
			break
		}
		cursor = next
	}
	return out, nil
}
