package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/trackstats/internal/models"
	"github.com/desertthunder/trackstats/internal/shared"
)

const runColumns = "id, sequence, label, source, playlist_rows, sample_rows, summary, created_at, updated_at, deleted_at"

// RunRepository implements models.Repository[*models.Run] for the report history.
//
// Runs are soft deleted and listed newest first.
type RunRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.Run] = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run into the database with generated ID and sequence
func (r *RunRepository) Create(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO runs (id, sequence, label, source, playlist_rows, sample_rows, summary, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		run.Label(),
		run.Source(),
		run.PlaylistRows(),
		run.SampleRows(),
		string(run.Summary()),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := "SELECT " + runColumns + " FROM runs WHERE id = ? AND deleted_at IS NULL"
	return r.scan(r.db.QueryRow(query, id), id)
}

// GetBySequence retrieves a run by its history number
func (r *RunRepository) GetBySequence(sequence int) (*models.Run, error) {
	query := "SELECT " + runColumns + " FROM runs WHERE sequence = ? AND deleted_at IS NULL"
	return r.scan(r.db.QueryRow(query, sequence), fmt.Sprintf("#%d", sequence))
}

// Update renames a run. The stored summary is immutable.
func (r *RunRepository) Update(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	query := `
		UPDATE runs
		SET label = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, run.Label(), now, run.ID())
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	if err := affected(result, run.ID()); err != nil {
		return err
	}
	run.SetUpdatedAt(now)
	return nil
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	query := `
		UPDATE runs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return affected(result, id)
}

// List retrieves runs matching the given criteria, newest first, excluding soft-deleted runs.
//
// Supported criteria: "source" (string) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.Run, error) {
	query := "SELECT " + runColumns + " FROM runs WHERE deleted_at IS NULL"
	args := []any{}

	if source, ok := criteria["source"].(string); ok && source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

func (r *RunRepository) scan(row *sql.Row, ref string) (*models.Run, error) {
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, ref)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a row from either [sql.Row] or [sql.Rows] into a [models.Run]
func scanRun(s scanner) (*models.Run, error) {
	var (
		id           string
		sequence     int
		label        string
		source       string
		playlistRows int
		sampleRows   int
		summary      []byte
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := s.Scan(&id, &sequence, &label, &source, &playlistRows, &sampleRows, &summary, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run := models.NewRun(label, source, playlistRows, sampleRows, summary)
	run.SetID(id)
	run.SetSequence(sequence)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}

func affected(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return nil
}
