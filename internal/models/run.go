package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Run is a completed report saved to the run history.
//
// Only the report summary is kept; the result tables it was built from are not persisted.
type Run struct {
	id           string
	sequence     int
	label        string
	source       string
	playlistRows int
	sampleRows   int
	summary      []byte
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewRun creates an unsaved run. The ID is assigned by the repository.
func NewRun(label, source string, playlistRows, sampleRows int, summary []byte) *Run {
	now := time.Now()
	return &Run{
		label:        label,
		source:       source,
		playlistRows: playlistRows,
		sampleRows:   sampleRows,
		summary:      summary,
		createdAt:    now,
		updatedAt:    now,
	}
}

// RunFromReport serializes report into a new run.
func RunFromReport(label string, report *Report) (*Run, error) {
	if report == nil {
		return nil, fmt.Errorf("report is required")
	}
	summary, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return NewRun(label, report.Source(), report.Rows(SourcePlaylist), report.Rows(SourceSample), summary), nil
}

func (r *Run) ID() string { return r.id }
func (r *Run) Sequence() int { return r.sequence }
func (r *Run) Label() string { return r.label }
func (r *Run) Source() string { return r.source }
func (r *Run) PlaylistRows() int { return r.playlistRows }
func (r *Run) SampleRows() int { return r.sampleRows }
func (r *Run) Summary() []byte { return r.summary }
func (r *Run) CreatedAt() time.Time { return r.createdAt }
func (r *Run) UpdatedAt() time.Time { return r.updatedAt }
func (r *Run) DeletedAt() *time.Time { return r.deletedAt }

func (r *Run) SetID(id string) { r.id = id }
func (r *Run) SetSequence(seq int) { r.sequence = seq }
func (r *Run) SetLabel(label string) { r.label = label }
func (r *Run) SetCreatedAt(t time.Time) { r.createdAt = t }
func (r *Run) SetUpdatedAt(t time.Time) { r.updatedAt = t }
func (r *Run) SetDeletedAt(t *time.Time) { r.deletedAt = t }

// Report decodes the stored summary.
func (r *Run) Report() (*Report, error) {
	var report Report
	if err := json.Unmarshal(r.summary, &report); err != nil {
		return nil, fmt.Errorf("failed to decode run summary: %w", err)
	}
	return &report, nil
}

// Validate checks that the run can be stored.
func (r *Run) Validate() error {
	if r.label == "" {
		return fmt.Errorf("run label is required")
	}
	switch r.source {
	case SourcePlaylist, SourceSample, SourceCompare:
	default:
		return fmt.Errorf("invalid run source %q", r.source)
	}
	if r.playlistRows < 0 || r.sampleRows < 0 {
		return fmt.Errorf("row counts must not be negative")
	}
	if !json.Valid(r.summary) {
		return fmt.Errorf("run summary is not valid JSON")
	}
	return nil
}
