package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"dqa/internal/dataset"
)

// table streams one CSV extraction table with a header row.
type table struct {
	name   string
	csv    *csv.Reader
	colIdx map[string]int // upper-cased header -> column index
	row    int
}

func openTable(r io.Reader, name string) (*table, error) {
	bufReader := bufio.NewReaderSize(r, 256*1024)

	// Skip UTF-8 BOM if present
	bom, err := bufReader.Peek(3)
	if err == nil && len(bom) >= 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = bufReader.Discard(3)
	}

	reader := csv.NewReader(bufReader)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &dataset.SchemaError{Table: name, Reason: "missing header row"}
		}
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}

	t := &table{name: name, csv: reader, colIdx: make(map[string]int, len(header))}
	for i, h := range header {
		key := strings.ToUpper(strings.TrimSpace(h))
		if _, dup := t.colIdx[key]; !dup {
			t.colIdx[key] = i
		}
	}
	return t, nil
}

// column returns the index of a column, or -1 when it is absent and optional.
func (t *table) column(name string, required bool) (int, error) {
	if idx, ok := t.colIdx[name]; ok {
		return idx, nil
	}
	if required {
		return -1, &dataset.SchemaError{Table: t.name, Column: name, Reason: "required column missing"}
	}
	return -1, nil
}

// next returns the next data row, io.EOF at the end.
func (t *table) next() ([]string, error) {
	rec, err := t.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%s: row %d: %w", t.name, t.row+1, err)
	}
	t.row++
	return rec, nil
}

// cell returns a trimmed cell, "" when the column is absent or the row short.
func cell(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

// optional returns a pointer to a non-empty cell.
func optional(rec []string, idx int) *string {
	v := cell(rec, idx)
	if v == "" {
		return nil
	}
	return &v
}
