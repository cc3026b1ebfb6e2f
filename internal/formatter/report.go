package formatter

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/trackstats/internal/models"
	"github.com/desertthunder/trackstats/internal/shared"
	"github.com/desertthunder/trackstats/internal/ui"
	"github.com/dustin/go-humanize"
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Render converts a report to the named format.
func Render(report *models.Report, format string) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("%w: report is required", shared.ErrMissingArgument)
	}

	if err := CheckFormat(format); err != nil {
		return nil, err
	}

	switch format {
	case FormatMarkdown:
		return ReportToMarkdown(report), nil
	case FormatJSON:
		return shared.MarshalJSON(report, true)
	default:
		return ReportToText(report), nil
	}
}

// CheckFormat returns [shared.ErrInvalidFlag] unless format names a report format.
// The empty string selects text.
func CheckFormat(format string) error {
	switch format {
	case "", FormatText, FormatMarkdown, FormatJSON:
		return nil
	}
	return fmt.Errorf("%w: unknown report format %q (want text, markdown or json)", shared.ErrInvalidFlag, format)
}

// WriteReport renders report to path.
func WriteReport(report *models.Report, format, path string) error {
	data, err := Render(report, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReportToText renders a terminal report styled with the default [ui.Palette].
func ReportToText(report *models.Report) []byte {
	p := ui.Styles
	var buf bytes.Buffer

	buf.WriteString(p.Title("trackstats report") + "\n")

	for _, ds := range report.Datasets {
		buf.WriteString(p.Header(fmt.Sprintf("%s (%s, %s rows)", ds.Label, ds.Source, humanize.Comma(int64(ds.Rows)))) + "\n\n")

		rows := make([][]string, 0, len(ds.Distributions))
		for _, d := range ds.Distributions {
			rows = append(rows, []string{
				d.Key,
				strconv.Itoa(d.Summary.Count),
				number(d.Summary.Mean),
				number(d.Summary.Std),
				number(d.Summary.Min),
				number(d.Summary.Median),
				number(d.Summary.Max),
				Sparkline(d.Histogram),
			})
		}
		buf.WriteString(textTable(p, []string{"key", "count", "mean", "std", "min", "median", "max", "histogram"}, rows) + "\n\n")

		for _, c := range ds.Counts {
			buf.WriteString(fmt.Sprintf("%-15s %s\n", c.Key, countsLine(c)))
		}
		buf.WriteString("\n")

		rows = rows[:0]
		for _, b := range ds.Boxes {
			rows = append(rows, []string{
				b.Key,
				number(b.LowerWhisker),
				number(b.Summary.Q1),
				number(b.Summary.Median),
				number(b.Summary.Q3),
				number(b.UpperWhisker),
				strconv.Itoa(b.Outliers),
			})
		}
		buf.WriteString(textTable(p, []string{"box", "low", "q1", "median", "q3", "high", "outliers"}, rows) + "\n\n")

		if len(ds.Top) > 0 {
			buf.WriteString(p.Header("Most popular") + "\n")
			for i, t := range ds.Top {
				buf.WriteString(fmt.Sprintf("%2d. %s %s\n", i+1, t.FullName, p.Help(fmt.Sprintf("(%.0f)", t.Popularity))))
			}
			buf.WriteString("\n")
		}
	}

	if len(report.Datasets) == 2 {
		buf.WriteString(p.Header(fmt.Sprintf("%s vs. %s", report.Datasets[0].Label, report.Datasets[1].Label)) + "\n\n")
		buf.WriteString(textTable(p, []string{"key", "mean", "mean", "difference"}, comparisonRows(report)) + "\n")
	}

	return buf.Bytes()
}

// ReportToMarkdown renders a report as GitHub-flavored Markdown.
func ReportToMarkdown(report *models.Report) []byte {
	var buf bytes.Buffer

	buf.WriteString("# trackstats report\n\n")
	buf.WriteString(fmt.Sprintf("**Created**: %s\n", report.CreatedAt.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("**Histogram bins**: %d\n\n", report.Bins))

	for _, ds := range report.Datasets {
		buf.WriteString(fmt.Sprintf("## %s\n\n", ds.Label))
		buf.WriteString(fmt.Sprintf("**Source**: %s\n", ds.Source))
		buf.WriteString(fmt.Sprintf("**Rows**: %s\n\n", humanize.Comma(int64(ds.Rows))))

		buf.WriteString("### Distributions\n\n")
		buf.WriteString("| key | count | mean | std | min | q1 | median | q3 | max | histogram |\n")
		buf.WriteString("|---|---|---|---|---|---|---|---|---|---|\n")
		for _, d := range ds.Distributions {
			s := d.Summary
			buf.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %s | %s | %s | %s | `%s` |\n",
				d.Key, s.Count, number(s.Mean), number(s.Std), number(s.Min), number(s.Q1),
				number(s.Median), number(s.Q3), number(s.Max), Sparkline(d.Histogram)))
		}

		buf.WriteString("\n### Counts\n\n")
		for _, c := range ds.Counts {
			buf.WriteString(fmt.Sprintf("- **%s**: %s\n", c.Key, countsLine(c)))
		}

		buf.WriteString("\n### Box statistics\n\n")
		buf.WriteString("| key | low | q1 | median | q3 | high | outliers |\n")
		buf.WriteString("|---|---|---|---|---|---|---|\n")
		for _, b := range ds.Boxes {
			buf.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %d |\n",
				b.Key, number(b.LowerWhisker), number(b.Summary.Q1), number(b.Summary.Median),
				number(b.Summary.Q3), number(b.UpperWhisker), b.Outliers))
		}

		if len(ds.Top) > 0 {
			buf.WriteString("\n### Most popular\n\n")
			for i, t := range ds.Top {
				buf.WriteString(fmt.Sprintf("%d. %s (%.0f)\n", i+1, t.FullName, t.Popularity))
			}
		}
		buf.WriteString("\n")
	}

	if len(report.Datasets) == 2 {
		a, b := report.Datasets[0], report.Datasets[1]
		buf.WriteString(fmt.Sprintf("## %s vs. %s\n\n", a.Label, b.Label))
		buf.WriteString(fmt.Sprintf("| key | %s | %s | difference |\n", a.Label, b.Label))
		buf.WriteString("|---|---|---|---|\n")
		for _, row := range comparisonRows(report) {
			buf.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
	}

	return buf.Bytes()
}

// Sparkline draws a histogram as one block character per bin, scaled to the fullest bin.
func Sparkline(h models.Histogram) string {
	peak := 0
	for _, c := range h.Counts {
		peak = max(peak, c)
	}

	var sb strings.Builder
	for _, c := range h.Counts {
		if c == 0 || peak == 0 {
			sb.WriteRune(' ')
			continue
		}
		level := int(math.Ceil(float64(c)/float64(peak)*float64(len(sparkLevels)))) - 1
		sb.WriteRune(sparkLevels[max(level, 0)])
	}
	return sb.String()
}

func countsLine(c models.Counts) string {
	parts := make([]string, 0, len(c.Categories)+1)
	for _, cat := range c.Categories {
		parts = append(parts, fmt.Sprintf("%d:%d", cat.Category, cat.Count))
	}
	if c.Other > 0 {
		parts = append(parts, fmt.Sprintf("other:%d", c.Other))
	}
	return strings.Join(parts, " ")
}

// comparisonRows pairs the distribution means of the first two data sets.
func comparisonRows(report *models.Report) [][]string {
	a, b := report.Datasets[0], report.Datasets[1]
	means := make(map[string]float64, len(b.Distributions))
	for _, d := range b.Distributions {
		means[d.Key] = d.Summary.Mean
	}

	rows := make([][]string, 0, len(a.Distributions))
	for _, d := range a.Distributions {
		other, ok := means[d.Key]
		if !ok {
			continue
		}
		diff := d.Summary.Mean - other
		sign := ""
		if diff > 0 {
			sign = "+"
		}
		rows = append(rows, []string{d.Key, number(d.Summary.Mean), number(other), sign + number(diff)})
	}
	return rows
}

func textTable(p *ui.Palette, headers []string, rows [][]string) string {
	return ltable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(p.Accent())).
		Headers(headers...).
		Rows(rows...).
		String()
}

// number formats large values with thousands separators and small values with three decimals.
func number(v float64) string {
	if math.Abs(v) >= 1000 {
		return humanize.Comma(int64(math.Round(v)))
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}
