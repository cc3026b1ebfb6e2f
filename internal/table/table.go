// package table implements the in-memory Result Table built from flattened API records.
//
// A [Table] is an ordered list of [Row] values sharing a column list. Rows are plain maps so extractors
// can flatten arbitrary nested records; typed accessors convert on read and fail loudly when a column is
// missing or has the wrong shape.
package table

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/desertthunder/trackstats/internal/shared"
)

// Row is a single flattened record keyed by column name.
type Row map[string]any

// Table is an ordered sequence of rows with a known column order.
type Table struct {
	Columns []string
	Rows    []Row
}

// New creates an empty table with the given column order.
func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether name is part of the column list.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Append adds rows, registering any column not yet known in sorted order.
func (t *Table) Append(rows ...Row) {
	for _, row := range rows {
		var extra []string
		for k := range row {
			if !t.HasColumn(k) {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		t.Columns = append(t.Columns, extra...)
		t.Rows = append(t.Rows, row)
	}
}

// AddColumn registers name at the end of the column list if missing.
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}

// Derive computes a new column from every row.
func (t *Table) Derive(name string, fn func(Row) (any, error)) error {
	for i, row := range t.Rows {
		v, err := fn(row)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		row[name] = v
	}
	t.AddColumn(name)
	return nil
}

// Unique returns the distinct string values of column in first-seen order.
// Rows where the column is missing or empty are skipped.
func (t *Table) Unique(column string) []string {
	seen := make(map[string]struct{}, len(t.Rows))
	var out []string
	for _, row := range t.Rows {
		v, err := row.String(column)
		if err != nil || v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Floats returns the numeric values of column for every row.
func (t *Table) Floats(column string) ([]float64, error) {
	out := make([]float64, 0, len(t.Rows))
	for i, row := range t.Rows {
		v, err := row.Float(column)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// SortBy orders rows by the numeric value of column. The sort is stable.
func (t *Table) SortBy(column string, descending bool) error {
	keys := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		v, err := row.Float(column)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		keys[i] = v
	}

	idx := make([]int, len(t.Rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if descending {
			return keys[idx[a]] > keys[idx[b]]
		}
		return keys[idx[a]] < keys[idx[b]]
	})

	sorted := make([]Row, len(t.Rows))
	for i, j := range idx {
		sorted[i] = t.Rows[j]
	}
	t.Rows = sorted
	return nil
}

// Join performs an inner join of left and right on the string column on.
//
// Each left row is paired with every right row sharing its key, in left order then right order.
// Columns present on both sides keep the left value.
func Join(left, right *Table, on string) (*Table, error) {
	if !left.HasColumn(on) {
		return nil, fmt.Errorf("%w: left table has no %q column", shared.ErrMissingColumn, on)
	}
	if !right.HasColumn(on) {
		return nil, fmt.Errorf("%w: right table has no %q column", shared.ErrMissingColumn, on)
	}

	index := make(map[string][]Row, len(right.Rows))
	for _, row := range right.Rows {
		key, err := row.String(on)
		if err != nil {
			return nil, err
		}
		index[key] = append(index[key], row)
	}

	out := New(left.Columns...)
	for _, c := range right.Columns {
		out.AddColumn(c)
	}

	for _, l := range left.Rows {
		key, err := l.String(on)
		if err != nil {
			return nil, err
		}
		for _, r := range index[key] {
			merged := make(Row, len(l)+len(r))
			for k, v := range r {
				merged[k] = v
			}
			for k, v := range l {
				merged[k] = v
			}
			out.Rows = append(out.Rows, merged)
		}
	}
	return out, nil
}

// String returns column as a string. Numbers are formatted, lists are rejected.
func (r Row) String(column string) (string, error) {
	v, ok := r[column]
	if !ok {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingColumn, column)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("%w: %s holds %T", shared.ErrInvalidInput, column, v)
	}
}

// Float returns column as a float64, converting integer types.
func (r Row) Float(column string) (float64, error) {
	v, ok := r[column]
	if !ok {
		return 0, fmt.Errorf("%w: %s", shared.ErrMissingColumn, column)
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("%w: %s holds %T", shared.ErrNotNumeric, column, v)
	}
}

// Strings returns a list column.
func (r Row) Strings(column string) ([]string, error) {
	v, ok := r[column]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrMissingColumn, column)
	}
	x, ok := v.([]string)
	if !ok {
		return nil, fmt.Errorf("%w: %s holds %T", shared.ErrInvalidInput, column, v)
	}
	return x, nil
}
