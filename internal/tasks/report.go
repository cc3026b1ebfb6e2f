package tasks

import (
	"fmt"
	"math"
	"slices"

	"github.com/desertthunder/trackstats/internal/models"
	"github.com/desertthunder/trackstats/internal/shared"
	"github.com/desertthunder/trackstats/internal/table"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultBins = 30
	topTracks   = 10
)

// DistributionKeys are summarized with a [models.Summary] and a [models.Histogram].
var DistributionKeys = []string{
	"duration_ms", "acousticness", "danceability", "energy", "instrumentalness", "liveness",
	"loudness", "valence", "speechiness", "tempo", "popularity", "artist_popularity",
}

// duration_ms has no fixed range; keys not listed range over [0, 1].
var distributionLimits = map[string]*models.Limits{
	"duration_ms":       nil,
	"loudness":          {Min: -60, Max: 0},
	"tempo":             {Min: 24, Max: 200},
	"popularity":        {Min: 0, Max: 100},
	"artist_popularity": {Min: 0, Max: 100},
}

// LimitsFor returns the fixed range of key, or nil when the range follows the data.
func LimitsFor(key string) *models.Limits {
	if l, ok := distributionLimits[key]; ok {
		return l
	}
	return &models.Limits{Min: 0, Max: 1}
}

// CountKeys are categorical columns counted over a fixed category set.
var CountKeys = []string{"key", "time_signature", "mode"}

var countCategories = map[string][]int{
	"key":            {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	"time_signature": {1, 2, 3, 4, 5},
	"mode":           {0, 1},
}

// BoxKeys share a [0, 1] scale and are summarized side by side as box statistics.
var BoxKeys = []string{
	"acousticness", "danceability", "energy", "instrumentalness", "liveness",
	"valence", "speechiness", "artist_popularity_norm", "popularity_norm", "tempo_norm",
}

// LabeledTable is an enriched table with its display label.
type LabeledTable struct {
	Label  string
	Source string
	Table  *table.Table
}

// NewReport summarizes every table. The caller stamps CreatedAt.
//
// Histograms of keys without fixed [models.Limits] share the range of all tables so data sets stay comparable.
func NewReport(bins int, datasets ...LabeledTable) (*models.Report, error) {
	if bins == 0 {
		bins = DefaultBins
	}
	if bins < 1 {
		return nil, fmt.Errorf("%w: bins must be at least 1, got %d", shared.ErrInvalidArgument, bins)
	}

	values := make([]map[string][]float64, len(datasets))
	for i, ds := range datasets {
		if ds.Table == nil {
			return nil, fmt.Errorf("%w: data set %q has no table", shared.ErrMissingArgument, ds.Label)
		}
		values[i] = make(map[string][]float64)
		for _, key := range slices.Concat(DistributionKeys, CountKeys, BoxKeys) {
			if _, ok := values[i][key]; ok {
				continue
			}
			v, err := ds.Table.Floats(key)
			if err != nil {
				return nil, fmt.Errorf("data set %q: %w", ds.Label, err)
			}
			values[i][key] = v
		}
	}

	ranges := make(map[string]models.Limits, len(DistributionKeys))
	for _, key := range DistributionKeys {
		if l := LimitsFor(key); l != nil {
			ranges[key] = *l
			continue
		}
		var all []float64
		for i := range datasets {
			all = append(all, values[i][key]...)
		}
		ranges[key] = dataRange(all)
	}

	report := &models.Report{Bins: bins}
	for i, ds := range datasets {
		section := models.Dataset{Label: ds.Label, Source: ds.Source, Rows: ds.Table.Len()}

		for _, key := range DistributionKeys {
			r := ranges[key]
			hist, err := NewHistogram(values[i][key], bins, r.Min, r.Max)
			if err != nil {
				return nil, err
			}
			section.Distributions = append(section.Distributions, models.Distribution{
				Key:       key,
				Limits:    LimitsFor(key),
				Summary:   Describe(values[i][key]),
				Histogram: hist,
			})
		}

		for _, key := range CountKeys {
			cats, other := CountCategories(values[i][key], countCategories[key])
			section.Counts = append(section.Counts, models.Counts{Key: key, Categories: cats, Other: other})
		}

		for _, key := range BoxKeys {
			section.Boxes = append(section.Boxes, NewBox(key, values[i][key]))
		}

		section.Top = top(ds.Table, topTracks)
		report.Datasets = append(report.Datasets, section)
	}

	return report, nil
}

// Describe computes count, mean, sample standard deviation, extrema and quartiles.
// Quartiles interpolate linearly between closest ranks. An empty input yields a zero Summary.
func Describe(values []float64) models.Summary {
	n := len(values)
	if n == 0 {
		return models.Summary{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	if n == 1 {
		std = 0
	}

	return models.Summary{
		Count:  n,
		Mean:   mean,
		Std:    std,
		Min:    sorted[0],
		Q1:     quantile(sorted, 0.25),
		Median: quantile(sorted, 0.5),
		Q3:     quantile(sorted, 0.75),
		Max:    sorted[n-1],
	}
}

// quantile interpolates between closest ranks (R type 7), which stat.Quantile does not offer.
// It expects sorted, non-empty input.
func quantile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// NewHistogram bins values into bins equal-width buckets over [lo, hi].
//
// The last bucket is closed so hi itself is counted. When lo == hi every value equal to lo lands in
// the first bucket.
func NewHistogram(values []float64, bins int, lo, hi float64) (models.Histogram, error) {
	if bins < 1 {
		return models.Histogram{}, fmt.Errorf("%w: bins must be at least 1, got %d", shared.ErrInvalidArgument, bins)
	}
	if hi < lo {
		return models.Histogram{}, fmt.Errorf("%w: histogram range [%v, %v] is inverted", shared.ErrInvalidArgument, lo, hi)
	}

	h := models.Histogram{Min: lo, Max: hi, Width: (hi - lo) / float64(bins), Counts: make([]int, bins)}

	inside := make([]float64, 0, len(values))
	for _, v := range values {
		if v < lo || v > hi || math.IsNaN(v) {
			h.Outside++
			continue
		}
		inside = append(inside, v)
	}
	if len(inside) == 0 {
		return h, nil
	}
	if h.Width == 0 {
		h.Counts[0] = len(inside)
		return h, nil
	}

	// stat.Histogram wants sorted input below the last divider.
	slices.Sort(inside)
	dividers := floats.Span(make([]float64, bins+1), lo, hi)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	for i, c := range stat.Histogram(nil, dividers, inside, nil) {
		h.Counts[i] = int(c)
	}
	return h, nil
}

// CountCategories counts values per category. Values that are not one of the categories are
// counted in other.
func CountCategories(values []float64, categories []int) (counts []models.CategoryCount, other int) {
	index := make(map[int]int, len(categories))
	counts = make([]models.CategoryCount, len(categories))
	for i, c := range categories {
		counts[i] = models.CategoryCount{Category: c}
		index[c] = i
	}

	for _, v := range values {
		i, ok := index[int(v)]
		if !ok || v != math.Trunc(v) {
			other++
			continue
		}
		counts[i].Count++
	}
	return counts, other
}

// NewBox computes box statistics with whiskers at 1.5 IQR.
func NewBox(key string, values []float64) models.Box {
	b := models.Box{Key: key, Summary: Describe(values)}
	if b.Summary.Count == 0 {
		return b
	}

	iqr := b.Summary.Q3 - b.Summary.Q1
	lowFence := b.Summary.Q1 - 1.5*iqr
	highFence := b.Summary.Q3 + 1.5*iqr

	b.LowerWhisker = b.Summary.Max
	b.UpperWhisker = b.Summary.Min
	for _, v := range values {
		if v < lowFence || v > highFence {
			b.Outliers++
			continue
		}
		b.LowerWhisker = min(b.LowerWhisker, v)
		b.UpperWhisker = max(b.UpperWhisker, v)
	}
	return b
}

func dataRange(values []float64) models.Limits {
	if len(values) == 0 {
		return models.Limits{}
	}
	return models.Limits{Min: floats.Min(values), Max: floats.Max(values)}
}

// top returns up to n leading rows; enriched tables are already sorted by popularity.
// Rows without a name or a numeric popularity are skipped.
func top(t *table.Table, n int) []models.TopTrack {
	if !t.HasColumn("full_name") {
		return nil
	}

	out := make([]models.TopTrack, 0, min(n, t.Len()))
	for _, row := range t.Rows[:min(n, t.Len())] {
		name, err := row.String("full_name")
		if err != nil {
			continue
		}
		pop, err := row.Float("popularity")
		if err != nil {
			continue
		}
		out = append(out, models.TopTrack{FullName: name, Popularity: pop})
	}
	return out
}
