package models

import (
	"time"
)

// Data set sources.
const (
	SourcePlaylist = "playlist"
	SourceSample   = "sample"
	SourceCompare  = "compare"
)

// Limits is the expected value range of a distribution key.
type Limits struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Summary is the descriptive statistics of a numeric column.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// Histogram counts values into equal-width bins over [Min, Max].
type Histogram struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Width   float64 `json:"width"`
	Counts  []int   `json:"counts"`
	Outside int     `json:"outside"` // Values outside [Min, Max]
}

// CategoryCount is the number of rows holding one category value.
type CategoryCount struct {
	Category int `json:"category"`
	Count    int `json:"count"`
}

// Counts is the category breakdown of a categorical column.
type Counts struct {
	Key        string          `json:"key"`
	Categories []CategoryCount `json:"categories"`
	Other      int             `json:"other"` // Values outside the category set
}

// Box holds the statistics drawn by a box plot.
type Box struct {
	Key          string  `json:"key"`
	Summary      Summary `json:"summary"`
	LowerWhisker float64 `json:"lower_whisker"`
	UpperWhisker float64 `json:"upper_whisker"`
	Outliers     int     `json:"outliers"`
}

// Distribution is the summary and histogram of one key.
type Distribution struct {
	Key       string    `json:"key"`
	Limits    *Limits   `json:"limits,omitempty"`
	Summary   Summary   `json:"summary"`
	Histogram Histogram `json:"histogram"`
}

// TopTrack is one of the most popular rows of a data set.
type TopTrack struct {
	FullName   string  `json:"full_name"`
	Popularity float64 `json:"popularity"`
}

// Dataset is the report section of a single enriched table.
type Dataset struct {
	Label         string         `json:"label"`
	Source        string         `json:"source"`
	Rows          int            `json:"rows"`
	Distributions []Distribution `json:"distributions"`
	Counts        []Counts       `json:"counts"`
	Boxes         []Box          `json:"boxes"`
	Top           []TopTrack     `json:"top"`
}

// Report compares one or more enriched tables.
type Report struct {
	Bins      int       `json:"bins"`
	Datasets  []Dataset `json:"datasets"`
	CreatedAt time.Time `json:"created_at"`
}

// Dataset returns the first section built from source.
func (r *Report) Dataset(source string) (*Dataset, bool) {
	if r == nil {
		return nil, false
	}
	for i := range r.Datasets {
		if r.Datasets[i].Source == source {
			return &r.Datasets[i], true
		}
	}
	return nil, false
}

// Source describes which data sets the report covers.
func (r *Report) Source() string {
	_, playlist := r.Dataset(SourcePlaylist)
	_, sample := r.Dataset(SourceSample)
	switch {
	case playlist && sample:
		return SourceCompare
	case sample:
		return SourceSample
	default:
		return SourcePlaylist
	}
}

// Rows returns the number of rows of the section built from source, or zero.
func (r *Report) Rows(source string) int {
	if ds, ok := r.Dataset(source); ok {
		return ds.Rows
	}
	return 0
}
