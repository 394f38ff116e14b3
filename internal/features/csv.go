package features

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CSVWriter writes feature rows as comma-separated values.
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter creates a new feature table writer.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// WriteHeader writes the header line.
func (cw *CSVWriter) WriteHeader() error {
	return cw.w.Write(Columns)
}

// Write writes a single row.
func (cw *CSVWriter) Write(r *Row) error {
	return cw.w.Write(r.Record())
}

// Flush flushes any buffered data to the underlying writer.
func (cw *CSVWriter) Flush() error {
	cw.w.Flush()
	return cw.w.Error()
}

// WriteCSV writes the full table to path, replacing any existing file.
// The table is written to a temporary file in the same directory and renamed
// into place, so readers never see a partial table.
func WriteCSV(path string, rows []Row) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cw := NewCSVWriter(tmp)
	err = cw.WriteHeader()
	for i := 0; err == nil && i < len(rows); i++ {
		err = cw.Write(&rows[i])
	}
	if err == nil {
		err = cw.Flush()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write feature table: %w", err)
	}

	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod feature table: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename feature table: %w", err)
	}
	return nil
}

// ReadCSV reads a feature table written by WriteCSV.
func ReadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("feature file not found: %s: %w", path, os.ErrNotExist)
		}
		return nil, fmt.Errorf("open feature file: %w", err)
	}
	defer f.Close()

	return NewCSVReader(f).ReadAll()
}

// CSVReader reads feature rows from comma-separated values.
type CSVReader struct {
	r *csv.Reader
}

// NewCSVReader creates a new feature table reader.
func NewCSVReader(r io.Reader) *CSVReader {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	return &CSVReader{r: cr}
}

// ReadAll reads the header and every row. Columns may appear in any order,
// but all of Columns must be present.
func (cr *CSVReader) ReadAll() ([]Row, error) {
	header, err := cr.r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("feature table is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	cols := make([]int, len(Columns))
	for i, name := range Columns {
		idx, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("feature table missing column %q", name)
		}
		cols[i] = idx
	}

	var rows []Row
	for {
		rec, err := cr.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		line, _ := cr.r.FieldPos(0)
		row, err := parseRecord(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseRecord converts cells (addressed via cols, in Columns order) into a Row.
func parseRecord(rec []string, cols []int) (Row, error) {
	cell := func(i int) string { return rec[cols[i]] }

	pos, err := strconv.ParseInt(cell(1), 10, 64)
	if err != nil {
		return Row{}, fmt.Errorf("POS: invalid value %q", cell(1))
	}

	row := Row{
		Chrom:  cell(0),
		Pos:    pos,
		ID:     cell(2),
		Ref:    cell(3),
		Alt:    cell(4),
		Filter: cell(6),
	}

	if row.Qual, err = parseValue(cell(5)); err != nil {
		return Row{}, fmt.Errorf("QUAL: %w", err)
	}
	for i, key := range AnnotationKeys {
		v, err := parseValue(cell(7 + i))
		if err != nil {
			return Row{}, fmt.Errorf("%s: %w", key, err)
		}
		row.setAnnotation(key, v)
	}
	return row, nil
}

// parseValue parses a numeric cell; an empty cell is an absent value.
func parseValue(s string) (Value, error) {
	if s == "" {
		return Value{}, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("invalid number %q", s)
	}
	return Float(f), nil
}
