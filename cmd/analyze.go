package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/trackstats/internal/formatter"
	"github.com/desertthunder/trackstats/internal/models"
	"github.com/desertthunder/trackstats/internal/shared"
	"github.com/desertthunder/trackstats/internal/table"
	"github.com/desertthunder/trackstats/internal/tasks"
	"github.com/desertthunder/trackstats/internal/ui"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// compareOpts merges the source flags over the [analysis] config section.
func (r *Runner) compareOpts(cmd *cli.Command) tasks.CompareOpts {
	a := r.config.Analysis
	opts := tasks.CompareOpts{
		User:       a.Username,
		Playlist:   a.Playlist,
		Genres:     a.Genres,
		SampleSize: a.SampleSize,
		Labels:     a.Labels,
		Bins:       r.config.Report.Bins,
	}

	if v := cmd.String("user"); v != "" {
		opts.User = v
	}
	if v := cmd.String("playlist"); v != "" {
		opts.Playlist = v
	}
	if v := cmd.StringSlice("genre"); len(v) > 0 {
		opts.Genres = v
	}
	if cmd.IsSet("sample-size") {
		opts.SampleSize = cmd.Int("sample-size")
	}
	if v := cmd.StringSlice("label"); len(v) > 0 {
		opts.Labels = v
	}
	if cmd.IsSet("bins") {
		opts.Bins = cmd.Int("bins")
	}

	if cmd.Bool("strict") && !r.config.Analysis.Strict {
		r.config.Analysis.Strict = true
		r.engine = r.newEngine()
	}
	return opts
}

// watch starts printing progress updates. The returned func closes the channel and
// waits until every update has been written.
func (r *Runner) watch() (chan tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go ui.Watch(r.progress, ui.Styles, progress, done)
	return progress, func() {
		close(progress)
		<-done
	}
}

// Analyze compares a playlist with a genre sample and prints the report.
func (r *Runner) Analyze(ctx context.Context, cmd *cli.Command) error {
	opts := r.compareOpts(cmd)

	format := cmd.String("format")
	if format == "" {
		format = r.config.Report.Format
	}
	if err := formatter.CheckFormat(format); err != nil {
		return err
	}

	r.logger.Info("starting analysis", "user", opts.User, "playlist", opts.Playlist, "genres", opts.Genres, "sample_size", opts.SampleSize)

	progress, stop := r.watch()
	result, err := r.engine.Compare(ctx, progress, opts)
	stop()
	if err != nil {
		return err
	}

	if dir := cmd.String("export-dir"); dir != "" {
		if err := r.exportComparison(dir, result); err != nil {
			return err
		}
	}

	if cmd.Bool("save") {
		if err := r.saveRun(cmd.String("name"), result.Report); err != nil {
			return err
		}
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteReport(result.Report, format, path); err != nil {
			return err
		}
		r.writePlain("✓ Report written to %s\n", path)
		return nil
	}

	data, err := formatter.Render(result.Report, format)
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}

func (r *Runner) exportComparison(dir string, result *tasks.Comparison) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	for _, ds := range result.Report.Datasets {
		t := result.Playlist
		if ds.Source == models.SourceSample {
			t = result.Sample
		}
		if err := r.writeExport(t, filepath.Join(dir, ds.Source), ds.Source, ds.Label); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) writeExport(t *table.Table, path, source, label string) error {
	res, err := formatter.WriteCSVExport(t, path, formatter.ExportMetadata{Source: source, Label: label})
	if err != nil {
		return err
	}
	r.logger.Debug("exported table", "source", source, "rows", t.Len(), "file", res.TracksFile)
	r.writePlain("✓ Exported %s rows to %s (metadata: %s)\n", humanize.Comma(int64(t.Len())), res.TracksFile, res.MetadataFile)
	return nil
}

func (r *Runner) saveRun(name string, report *models.Report) error {
	if name == "" {
		labels := make([]string, 0, len(report.Datasets))
		for _, ds := range report.Datasets {
			labels = append(labels, ds.Label)
		}
		name = strings.Join(labels, " vs. ")
	}

	run, err := models.RunFromReport(name, report)
	if err != nil {
		return err
	}

	repo, closeFn, err := r.openRuns()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := repo.Create(run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	r.logger.Info("saved run", "id", run.ID(), "sequence", run.Sequence())
	r.writePlain("✓ Saved run #%d (%s)\n", run.Sequence(), run.ID())
	return nil
}

// Export fetches and enriches one source and writes it as CSV.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	opts := r.compareOpts(cmd)
	source := cmd.String("source")

	progress, stop := r.watch()
	t, label, err := r.fetchSource(ctx, progress, source, opts)
	stop()
	if err != nil {
		return err
	}

	return r.writeExport(t, cmd.String("output"), source, label)
}

func (r *Runner) fetchSource(ctx context.Context, progress chan<- tasks.ProgressUpdate, source string, opts tasks.CompareOpts) (*table.Table, string, error) {
	var (
		tracks *table.Table
		label  string
		err    error
	)

	switch source {
	case models.SourcePlaylist:
		label = opts.Playlist
		tracks, err = r.engine.Playlist(ctx, progress, opts.User, opts.Playlist)
	case models.SourceSample:
		label = fmt.Sprintf("%v sample", opts.Genres)
		tracks, err = r.engine.Sample(ctx, progress, opts.Genres, opts.SampleSize)
	default:
		return nil, "", fmt.Errorf("%w: unknown source %q (want playlist or sample)", shared.ErrInvalidFlag, source)
	}
	if err != nil {
		return nil, "", err
	}

	enriched, err := r.engine.Enrich(ctx, progress, tracks)
	if err != nil {
		return nil, "", err
	}
	return enriched, label, nil
}
