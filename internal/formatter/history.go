package formatter

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/desertthunder/trackstats/internal/models"
	"github.com/desertthunder/trackstats/internal/ui"
	"github.com/dustin/go-humanize"
)

// RunSummary is the JSON shape of a run in history listings.
type RunSummary struct {
	ID           string `json:"id"`
	Sequence     int    `json:"sequence"`
	Label        string `json:"label"`
	Source       string `json:"source"`
	PlaylistRows int    `json:"playlist_rows"`
	SampleRows   int    `json:"sample_rows"`
	CreatedAt    string `json:"created_at"`
}

// SummarizeRuns converts runs for JSON output.
func SummarizeRuns(runs []*models.Run) []RunSummary {
	out := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, RunSummary{
			ID:           r.ID(),
			Sequence:     r.Sequence(),
			Label:        r.Label(),
			Source:       r.Source(),
			PlaylistRows: r.PlaylistRows(),
			SampleRows:   r.SampleRows(),
			CreatedAt:    r.CreatedAt().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return out
}

// RunsToText renders the run history as a table, newest first as given.
func RunsToText(runs []*models.Run) []byte {
	p := ui.Styles
	var buf bytes.Buffer

	if len(runs) == 0 {
		buf.WriteString(p.Help("No saved runs. Use 'trackstats analyze --save' to record one.") + "\n")
		return buf.Bytes()
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			strconv.Itoa(r.Sequence()),
			r.ID(),
			r.Label(),
			r.Source(),
			humanize.Comma(int64(r.PlaylistRows())),
			humanize.Comma(int64(r.SampleRows())),
			humanize.Time(r.CreatedAt()),
		})
	}

	buf.WriteString(textTable(p, []string{"#", "id", "label", "source", "playlist rows", "sample rows", "created"}, rows))
	buf.WriteString(fmt.Sprintf("\n%s\n", p.Help(fmt.Sprintf("%d runs", len(runs)))))
	return buf.Bytes()
}
