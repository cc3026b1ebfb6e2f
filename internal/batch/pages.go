package batch

import (
	"context"
	"fmt"

	"github.com/desertthunder/trackstats/internal/shared"
)

// PageFunc fetches the page starting at offset and reports whether another page follows.
type PageFunc[T any] func(ctx context.Context, limit, offset int) (items []T, more bool, err error)

// Paginate walks offset-based pages of size limit until the source reports no more pages
// or capItems items have been collected. capItems <= 0 means no cap.
//
// Like [Fetcher.Fetch], a failing page fails the whole walk.
func Paginate[T any](ctx context.Context, limit, capItems int, fetch PageFunc[T]) ([]T, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: page size must be at least 1, got %d", shared.ErrInvalidArgument, limit)
	}

	var all []T
	for offset := 0; ; offset += limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, more, err := fetch(ctx, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("page at offset %d: %w", offset, err)
		}
		all = append(all, items...)

		if capItems > 0 && len(all) >= capItems {
			return all[:capItems], nil
		}
		if !more || len(items) == 0 {
			return all, nil
		}
	}
}
