package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/desertthunder/trackstats/internal/shared"
	"github.com/desertthunder/trackstats/internal/table"
)

type record struct {
	ID         string
	Popularity int
	Tempo      float64
}

// stubLookup records every call and returns one record per id.
type stubLookup struct {
	calls     [][]string
	data      map[string]record
	failOn    int // 1-based call number that fails; 0 never fails
	dropEvery bool
}

func (s *stubLookup) lookup(ctx context.Context, ids []string) ([]record, error) {
	s.calls = append(s.calls, append([]string(nil), ids...))
	if s.failOn == len(s.calls) {
		return nil, fmt.Errorf("%w: status 429", shared.ErrAPIRequest)
	}

	var out []record
	for i, id := range ids {
		if s.dropEvery && i == 0 {
			continue
		}
		rec, ok := s.data[id]
		if !ok {
			rec = record{ID: id}
		}
		out = append(out, rec)
	}
	return out, nil
}

func extract(r record) (table.Row, error) {
	if r.ID == "" {
		return nil, errors.New("record has no id")
	}
	return table.Row{"id": r.ID, "popularity": r.Popularity, "tempo": r.Tempo}, nil
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("id%d", i)
	}
	return out
}

var popularityNorm = Normalizer{Column: "popularity_norm", Source: "popularity", Offset: 0, Scale: 100}

func TestFetchAndNormalize(t *testing.T) {
	ctx := context.Background()

	t.Run("three ids with limit two", func(t *testing.T) {
		stub := &stubLookup{data: map[string]record{
			"a": {ID: "a", Popularity: 10},
			"b": {ID: "b", Popularity: 50},
			"c": {ID: "c", Popularity: 90},
		}}

		result, err := FetchAndNormalize(ctx, []string{"a", "b", "c"}, 2, stub.lookup, extract, popularityNorm)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wantCalls := [][]string{{"a", "b"}, {"c"}}
		if !reflect.DeepEqual(stub.calls, wantCalls) {
			t.Errorf("expected calls %v, got %v", wantCalls, stub.calls)
		}

		if result.Len() != 3 {
			t.Fatalf("expected 3 rows, got %d", result.Len())
		}

		got, err := result.Floats("popularity_norm")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []float64{0.10, 0.50, 0.90}
		for i := range want {
			if math.Abs(got[i]-want[i]) > 1e-9 {
				t.Errorf("row %d: expected %v, got %v", i, want[i], got[i])
			}
		}

		if _, err := result.Rows[0].Float("popularity"); err != nil {
			t.Errorf("raw column should be kept: %v", err)
		}
	})

	t.Run("call count is ceil(n/k)", func(t *testing.T) {
		tc := []struct {
			n, k, calls int
		}{
			{n: 1, k: 1, calls: 1},
			{n: 7, k: 1, calls: 7},
			{n: 50, k: 50, calls: 1},
			{n: 51, k: 50, calls: 2},
			{n: 100, k: 50, calls: 2},
			{n: 101, k: 50, calls: 3},
			{n: 3, k: 10, calls: 1},
		}

		for _, tt := range tc {
			t.Run(fmt.Sprintf("n=%d k=%d", tt.n, tt.k), func(t *testing.T) {
				stub := &stubLookup{}
				result, err := FetchAndNormalize(ctx, ids(tt.n), tt.k, stub.lookup, extract)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}

				if len(stub.calls) != tt.calls {
					t.Errorf("expected %d calls, got %d", tt.calls, len(stub.calls))
				}
				for _, call := range stub.calls {
					if len(call) > tt.k {
						t.Errorf("call with %d ids exceeds limit %d", len(call), tt.k)
					}
				}
				if result.Len() != tt.n {
					t.Errorf("expected %d rows, got %d", tt.n, result.Len())
				}
			})
		}
	})

	t.Run("empty ids never call lookup", func(t *testing.T) {
		stub := &stubLookup{}
		result, err := FetchAndNormalize(ctx, nil, 50, stub.lookup, extract, popularityNorm)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Len() != 0 {
			t.Errorf("expected empty table, got %d rows", result.Len())
		}
		if len(stub.calls) != 0 {
			t.Errorf("expected no lookup calls, got %d", len(stub.calls))
		}
	})

	t.Run("tempo normalization", func(t *testing.T) {
		stub := &stubLookup{data: map[string]record{"t": {ID: "t", Tempo: 112}}}
		tempo := Normalizer{Column: "tempo_norm", Source: "tempo", Offset: 24, Scale: 176}

		result, err := FetchAndNormalize(ctx, []string{"t"}, 50, stub.lookup, extract, tempo)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, _ := result.Rows[0].Float("tempo_norm")
		if got != 0.5 {
			t.Errorf("expected 0.5, got %v", got)
		}
	})

	t.Run("failure on second chunk returns nothing", func(t *testing.T) {
		stub := &stubLookup{failOn: 2}
		result, err := FetchAndNormalize(ctx, ids(5), 2, stub.lookup, extract)

		if err == nil {
			t.Fatal("expected error")
		}
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected wrapped ErrAPIRequest, got %v", err)
		}
		if result != nil {
			t.Errorf("expected no result table, got %d rows", result.Len())
		}
		if len(stub.calls) != 2 {
			t.Errorf("expected to stop after 2 calls, got %d", len(stub.calls))
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		stub := &stubLookup{data: map[string]record{"a": {ID: "a", Popularity: 33}}}
		first, err := FetchAndNormalize(ctx, []string{"a", "b"}, 1, stub.lookup, extract, popularityNorm)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := FetchAndNormalize(ctx, []string{"a", "b"}, 1, stub.lookup, extract, popularityNorm)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Error("expected identical tables")
		}
	})

	t.Run("malformed record is a hard failure", func(t *testing.T) {
		lookup := func(ctx context.Context, ids []string) ([]record, error) {
			return []record{{ID: ""}}, nil
		}
		_, err := FetchAndNormalize(ctx, []string{"x"}, 1, lookup, extract)
		if !errors.Is(err, shared.ErrMalformedRecord) {
			t.Errorf("expected ErrMalformedRecord, got %v", err)
		}
	})

	t.Run("invalid arguments", func(t *testing.T) {
		stub := &stubLookup{}
		if _, err := FetchAndNormalize(ctx, ids(2), 0, stub.lookup, extract); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for zero limit, got %v", err)
		}

		zero := Normalizer{Column: "x_norm", Source: "x", Scale: 0}
		if _, err := FetchAndNormalize(ctx, ids(2), 1, stub.lookup, extract, zero); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for zero scale, got %v", err)
		}

		if len(stub.calls) != 0 {
			t.Errorf("validation should happen before lookup, got %d calls", len(stub.calls))
		}
	})

	t.Run("missing normalizer source", func(t *testing.T) {
		stub := &stubLookup{}
		n := Normalizer{Column: "energy_norm", Source: "energy", Scale: 1}
		_, err := FetchAndNormalize(ctx, ids(1), 1, stub.lookup, extract, n)
		if !errors.Is(err, shared.ErrMalformedRecord) {
			t.Errorf("expected ErrMalformedRecord, got %v", err)
		}
	})
}

func TestFetcher(t *testing.T) {
	ctx := context.Background()

	t.Run("short batch is dropped and logged", func(t *testing.T) {
		var buf bytes.Buffer
		stub := &stubLookup{dropEvery: true}
		f := &Fetcher[record]{
			Limit:   2,
			Lookup:  stub.lookup,
			Extract: extract,
			Logger:  shared.NewLogger(&buf),
		}

		result, err := f.Fetch(ctx, ids(4))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Len() != 2 {
			t.Errorf("expected 2 rows after drops, got %d", result.Len())
		}
		if !strings.Contains(buf.String(), "short batch") {
			t.Errorf("expected warning in log, got %q", buf.String())
		}
	})

	t.Run("strict fetcher fails on short batch", func(t *testing.T) {
		stub := &stubLookup{dropEvery: true}
		f := &Fetcher[record]{Limit: 2, Lookup: stub.lookup, Extract: extract, Strict: true}

		result, err := f.Fetch(ctx, ids(4))
		if !errors.Is(err, ErrIncompleteBatch) {
			t.Errorf("expected ErrIncompleteBatch, got %v", err)
		}
		if result != nil {
			t.Error("expected no result on strict failure")
		}
	})

	t.Run("column order", func(t *testing.T) {
		stub := &stubLookup{}
		f := &Fetcher[record]{
			Limit:       10,
			Lookup:      stub.lookup,
			Extract:     extract,
			Columns:     []string{"id", "popularity", "tempo"},
			Normalizers: []Normalizer{popularityNorm},
		}

		result, err := f.Fetch(ctx, ids(1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"id", "popularity", "tempo", "popularity_norm"}
		if !reflect.DeepEqual(result.Columns, want) {
			t.Errorf("expected columns %v, got %v", want, result.Columns)
		}
	})

	t.Run("missing lookup", func(t *testing.T) {
		f := &Fetcher[record]{Limit: 1, Extract: extract}
		if _, err := f.Fetch(ctx, ids(1)); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestChunk(t *testing.T) {
	tc := []struct {
		name string
		ids  []string
		size int
		want [][]string
	}{
		{name: "empty", ids: nil, size: 3, want: nil},
		{name: "exact", ids: []string{"a", "b"}, size: 2, want: [][]string{{"a", "b"}}},
		{name: "remainder", ids: []string{"a", "b", "c"}, size: 2, want: [][]string{{"a", "b"}, {"c"}}},
		{name: "zero size", ids: []string{"a"}, size: 0, want: nil},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(tt.ids, tt.size)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Chunk() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Run("values within range stay in [0,1]", func(t *testing.T) {
		tempo := Normalizer{Column: "tempo_norm", Source: "tempo", Offset: 24, Scale: 176}
		tbl := table.New("tempo")
		for _, v := range []float64{24, 60, 112, 150, 200} {
			tbl.Append(table.Row{"tempo": v})
		}

		if err := Normalize(tbl, tempo); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, row := range tbl.Rows {
			v, _ := row.Float("tempo_norm")
			if v < 0 || v > 1 {
				t.Errorf("normalized value %v out of range", v)
			}
		}
	})

	t.Run("out of range values are not clamped", func(t *testing.T) {
		tbl := table.New("popularity")
		tbl.Append(table.Row{"popularity": 150})

		if err := Normalize(tbl, popularityNorm); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v, _ := tbl.Rows[0].Float("popularity_norm"); v != 1.5 {
			t.Errorf("expected 1.5, got %v", v)
		}
	})

	t.Run("failure leaves table untouched", func(t *testing.T) {
		tbl := table.New("popularity")
		tbl.Append(table.Row{"popularity": 10}, table.Row{"popularity": "n/a"})

		if err := Normalize(tbl, popularityNorm); err == nil {
			t.Fatal("expected error")
		}
		if tbl.HasColumn("popularity_norm") {
			t.Error("expected no normalized column after failure")
		}
		if _, ok := tbl.Rows[0]["popularity_norm"]; ok {
			t.Error("expected first row untouched")
		}
	})
}
