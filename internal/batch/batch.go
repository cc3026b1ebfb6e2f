// package batch fetches remote entities in fixed-size chunks and flattens them into a [table.Table].
//
// The remote side is only ever seen through a [Lookup] function, so the same fetcher serves tracks,
// artists and audio features. Work is strictly sequential: one lookup per chunk, in input order,
// and any failure discards everything fetched so far.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackstats/internal/shared"
	"github.com/desertthunder/trackstats/internal/table"
)

// ErrIncompleteBatch is returned by a strict [Fetcher] when a lookup returns fewer records than ids.
var ErrIncompleteBatch = errors.New("lookup returned fewer records than requested")

// Lookup resolves up to the batch limit of identifiers into raw records.
type Lookup[R any] func(ctx context.Context, ids []string) ([]R, error)

// Extractor flattens one raw record into a row.
type Extractor[R any] func(record R) (table.Row, error)

// Normalizer appends Column = (Source - Offset) / Scale to every row.
type Normalizer struct {
	Column string
	Source string
	Offset float64
	Scale  float64
}

// Apply computes the normalized value for a single raw value.
func (n Normalizer) Apply(v float64) float64 {
	return (v - n.Offset) / n.Scale
}

func (n Normalizer) validate() error {
	if n.Column == "" || n.Source == "" {
		return fmt.Errorf("%w: normalizer needs column and source", shared.ErrInvalidArgument)
	}
	if n.Scale == 0 {
		return fmt.Errorf("%w: normalizer %s has zero scale", shared.ErrInvalidArgument, n.Column)
	}
	return nil
}

// Fetcher holds everything needed to turn a list of ids into a Result Table.
type Fetcher[R any] struct {
	Limit       int
	Lookup      Lookup[R]
	Extract     Extractor[R]
	Normalizers []Normalizer
	Columns     []string // Column order of the result; extra columns are appended sorted
	Strict      bool     // Fail when a chunk comes back short instead of dropping silently
	Logger      *log.Logger
}

// Fetch runs the fetcher over ids.
//
// ids must already be unique. An empty slice yields an empty table without calling Lookup.
func (f *Fetcher[R]) Fetch(ctx context.Context, ids []string) (*table.Table, error) {
	if f.Limit < 1 {
		return nil, fmt.Errorf("%w: batch limit must be at least 1, got %d", shared.ErrInvalidArgument, f.Limit)
	}
	if f.Lookup == nil || f.Extract == nil {
		return nil, fmt.Errorf("%w: lookup and extractor are required", shared.ErrInvalidArgument)
	}
	for _, n := range f.Normalizers {
		if err := n.validate(); err != nil {
			return nil, err
		}
	}

	logger := f.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	chunks := Chunk(ids, f.Limit)
	var records []R

	for i, chunk := range chunks {
		got, err := f.Lookup(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", i+1, len(chunks), err)
		}

		if len(got) < len(chunk) {
			if f.Strict {
				return nil, fmt.Errorf("%w: batch %d/%d requested %d, got %d",
					ErrIncompleteBatch, i+1, len(chunks), len(chunk), len(got))
			}
			logger.Warn("lookup returned short batch", "batch", i+1, "requested", len(chunk), "returned", len(got))
		}

		logger.Debug("fetched batch", "batch", i+1, "of", len(chunks), "records", len(got))
		records = append(records, got...)
	}

	result := table.New(f.Columns...)
	for i, rec := range records {
		row, err := f.Extract(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", shared.ErrMalformedRecord, i, err)
		}
		result.Append(row)
	}

	if err := Normalize(result, f.Normalizers...); err != nil {
		return nil, err
	}

	return result, nil
}

// FetchAndNormalize is the functional form of [Fetcher.Fetch] with default (lenient) settings.
func FetchAndNormalize[R any](
	ctx context.Context,
	ids []string,
	limit int,
	lookup Lookup[R],
	extract Extractor[R],
	normalizers ...Normalizer,
) (*table.Table, error) {
	f := &Fetcher[R]{
		Limit:       limit,
		Lookup:      lookup,
		Extract:     extract,
		Normalizers: normalizers,
	}
	return f.Fetch(ctx, ids)
}

// Chunk splits ids into consecutive slices of at most size elements, preserving order.
// size must be positive.
func Chunk(ids []string, size int) [][]string {
	if size < 1 || len(ids) == 0 {
		return nil
	}

	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// Normalize appends each normalizer's column to every row of t.
//
// Values are not clamped. The table is left untouched if any row fails.
func Normalize(t *table.Table, normalizers ...Normalizer) error {
	for _, n := range normalizers {
		if err := n.validate(); err != nil {
			return err
		}
	}

	values := make([][]float64, len(normalizers))
	for i, n := range normalizers {
		raw, err := t.Floats(n.Source)
		if err != nil {
			return fmt.Errorf("%w: normalizing %s: %v", shared.ErrMalformedRecord, n.Column, err)
		}
		for j, v := range raw {
			raw[j] = n.Apply(v)
		}
		values[i] = raw
	}

	for i, n := range normalizers {
		for j, row := range t.Rows {
			row[n.Column] = values[i][j]
		}
		t.AddColumn(n.Column)
	}
	return nil
}
