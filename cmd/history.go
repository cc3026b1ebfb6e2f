package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/trackstats/internal/formatter"
	"github.com/desertthunder/trackstats/internal/models"
	"github.com/desertthunder/trackstats/internal/repositories"
	"github.com/desertthunder/trackstats/internal/shared"
	"github.com/urfave/cli/v3"
)

// HistoryList prints saved runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, closeFn, err := r.openRuns()
	if err != nil {
		return err
	}
	defer closeFn()

	runs, err := repo.List(map[string]any{
		"source": cmd.String("source"),
		"limit":  cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(formatter.SummarizeRuns(runs), true)
	}
	return r.writeBytes(formatter.RunsToText(runs))
}

// HistoryShow re-renders a saved report.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if format == "" {
		format = r.config.Report.Format
	}
	if err := formatter.CheckFormat(format); err != nil {
		return err
	}

	repo, closeFn, err := r.openRuns()
	if err != nil {
		return err
	}
	defer closeFn()

	run, err := findRun(repo, cmd.StringArg("id"))
	if err != nil {
		return err
	}

	report, err := run.Report()
	if err != nil {
		return err
	}

	data, err := formatter.Render(report, format)
	if err != nil {
		return err
	}
	if format == formatter.FormatText || format == "" {
		r.writePlainHeader(fmt.Sprintf("Run #%d: %s", run.Sequence(), run.Label()))
	}
	return r.writeBytes(data)
}

// HistoryRename changes the label of a saved run.
func (r *Runner) HistoryRename(ctx context.Context, cmd *cli.Command) error {
	label := strings.TrimSpace(cmd.StringArg("label"))
	if label == "" {
		return fmt.Errorf("%w: new label is required", shared.ErrMissingArgument)
	}

	repo, closeFn, err := r.openRuns()
	if err != nil {
		return err
	}
	defer closeFn()

	run, err := findRun(repo, cmd.StringArg("id"))
	if err != nil {
		return err
	}

	run.SetLabel(label)
	if err := repo.Update(run); err != nil {
		return err
	}

	r.writePlain("✓ Renamed run #%d to %q\n", run.Sequence(), label)
	return nil
}

// HistoryDelete removes a saved run from the history.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	repo, closeFn, err := r.openRuns()
	if err != nil {
		return err
	}
	defer closeFn()

	run, err := findRun(repo, cmd.StringArg("id"))
	if err != nil {
		return err
	}

	if err := repo.Delete(run.ID()); err != nil {
		return err
	}

	r.logger.Info("deleted run", "id", run.ID())
	r.writePlain("✓ Deleted run #%d (%s)\n", run.Sequence(), run.ID())
	return nil
}

// findRun accepts either a run ID or its history number.
func findRun(repo *repositories.RunRepository, ref string) (*models.Run, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
	if ref == "" {
		return nil, fmt.Errorf("%w: run ID or number is required", shared.ErrMissingArgument)
	}
	if seq, err := strconv.Atoi(ref); err == nil {
		return repo.GetBySequence(seq)
	}
	return repo.Get(ref)
}
