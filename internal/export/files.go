package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dqa/internal/quality"

	"github.com/rs/zerolog/log"
)

// Format is an output file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormats parses a comma separated format list such as "csv,parquet".
func ParseFormats(s string) ([]Format, error) {
	var out []Format
	seen := make(map[Format]bool)
	for _, part := range strings.Split(s, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		if f == "" || seen[f] {
			continue
		}
		if f != FormatCSV && f != FormatParquet {
			return nil, fmt.Errorf("unknown output format %q (expected csv or parquet)", part)
		}
		seen[f] = true
		out = append(out, f)
	}
	if len(out) == 0 {
		return []Format{FormatCSV}, nil
	}
	return out, nil
}

// WriteResult writes the result tables of a run into dir and returns the
// written paths. CSV covers every table; Parquet covers the record and
// rollup tables.
func WriteResult(dir string, res *quality.Result, formats []Format) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var written []string
	for _, f := range formats {
		switch f {
		case FormatCSV:
			tables := []struct {
				name  string
				write func(io.Writer) error
			}{
				{"records.csv", func(w io.Writer) error { return WriteRecordsCSV(w, res.Records) }},
				{"reporting_styles.csv", func(w io.Writer) error { return WriteStylesCSV(w, res.Styles) }},
				{"facilities.csv", func(w io.Writer) error { return WriteFacilitiesCSV(w, res.Facilities) }},
				{"rollup.csv", func(w io.Writer) error { return WriteRollupCSV(w, res.Rollup) }},
				{"presentation.csv", func(w io.Writer) error { return WritePresentationCSV(w, res.Presentation) }},
			}
			for _, t := range tables {
				path := filepath.Join(dir, t.name)
				if err := writeFile(path, t.write); err != nil {
					return written, err
				}
				written = append(written, path)
			}
		case FormatParquet:
			path := filepath.Join(dir, "records.parquet")
			if err := WriteParquet(path, RecordRows(res.Records)); err != nil {
				return written, fmt.Errorf("%s: %w", path, err)
			}
			written = append(written, path)

			path = filepath.Join(dir, "rollup.parquet")
			if err := WriteParquet(path, RollupRows(res.Rollup)); err != nil {
				return written, fmt.Errorf("%s: %w", path, err)
			}
			written = append(written, path)
		default:
			return written, fmt.Errorf("unknown output format %q", f)
		}
	}

	log.Info().Str("runId", res.RunID).Str("dir", dir).Int("files", len(written)).Msg("Results written")
	return written, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
