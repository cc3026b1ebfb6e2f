// package formatter renders reports and run history and exports result tables (CSV, Markdown, JSON, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/trackstats/internal/shared"
	"github.com/desertthunder/trackstats/internal/table"
)

// Output formats
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatCSV      = "csv"
)

// listSeparator joins list cells such as artist_genres.
const listSeparator = "|"

// TableToCSV converts a result table to CSV with one header row in column order.
func TableToCSV(t *table.Table) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: table is required", shared.ErrMissingArgument)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range t.Rows {
		record := make([]string, len(t.Columns))
		for i, column := range t.Columns {
			record[i] = cell(row[column])
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case []string:
		return strings.Join(x, listSeparator)
	default:
		return fmt.Sprint(x)
	}
}

// ExportMetadata describes an exported table.
type ExportMetadata struct {
	Source     string    `json:"source"`
	Label      string    `json:"label,omitempty"`
	Rows       int       `json:"rows"`
	Columns    []string  `json:"columns"`
	ExportedAt time.Time `json:"exported_at"`
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport writes t to path and a metadata JSON file next to it.
//
// A path without the .csv extension gets one; the metadata file replaces it with _metadata.json.
func WriteCSVExport(t *table.Table, path string, meta ExportMetadata) (*CSVExportResult, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: output path is required", shared.ErrMissingArgument)
	}

	base := strings.TrimSuffix(path, ".csv")
	tracksFile := base + ".csv"
	metadataFile := base + "_metadata.json"

	csvData, err := TableToCSV(t)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	meta.Rows = t.Len()
	meta.Columns = t.Columns
	if meta.ExportedAt.IsZero() {
		meta.ExportedAt = time.Now()
	}

	metadataJSON, err := shared.MarshalJSON(meta, true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}
