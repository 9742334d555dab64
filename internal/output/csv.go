package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mrzor/pingpong-analyzer/internal/summary"
)

// SeqColumn is the leading index column of every table.
const SeqColumn = "seq"

// CSVWriter writes a table with a zero-based seq column assigned at write
// time. Rows become visible at the destination only after Commit.
type CSVWriter struct {
	path    string
	tmp     *os.File
	w       *csv.Writer
	columns int
	rows    int
	done    bool
}

// NewCSVWriter creates the destination directory and stages a temporary
// file holding the header.
func NewCSVWriter(path string, columns []string) (*CSVWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temporary output file: %w", err)
	}

	cw := &CSVWriter{path: path, tmp: tmp, w: csv.NewWriter(tmp), columns: len(columns)}
	header := append([]string{SeqColumn}, columns...)
	if err := cw.w.Write(header); err != nil {
		cw.Abort()
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}
	return cw, nil
}

// Write appends one numeric row. values must match the column count.
func (cw *CSVWriter) Write(values ...float64) error {
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = FormatValue(v)
	}
	return cw.WriteFields(fields...)
}

// WriteFields appends one row of preformatted cells.
func (cw *CSVWriter) WriteFields(fields ...string) error {
	if cw.done {
		return errors.New("write after commit or abort")
	}
	if len(fields) != cw.columns {
		return fmt.Errorf("row has %d values, table has %d columns", len(fields), cw.columns)
	}
	record := make([]string, 0, len(fields)+1)
	record = append(record, strconv.Itoa(cw.rows))
	record = append(record, fields...)
	if err := cw.w.Write(record); err != nil {
		return fmt.Errorf("writing CSV row %d: %w", cw.rows, err)
	}
	cw.rows++
	return nil
}

// Flush pushes buffered rows to the staging file.
func (cw *CSVWriter) Flush() error {
	cw.w.Flush()
	return cw.w.Error()
}

// Rows returns the number of rows written.
func (cw *CSVWriter) Rows() int {
	return cw.rows
}

// Path returns the destination path.
func (cw *CSVWriter) Path() string {
	return cw.path
}

// Commit flushes, closes and renames the staging file onto the destination.
func (cw *CSVWriter) Commit() error {
	if cw.done {
		return errors.New("CSV writer already closed")
	}
	cw.done = true

	if err := cw.Flush(); err != nil {
		_ = cw.tmp.Close()           //nolint:errcheck // Best-effort cleanup in error path
		_ = os.Remove(cw.tmp.Name()) //nolint:errcheck // Best-effort cleanup in error path
		return fmt.Errorf("flushing CSV: %w", err)
	}
	_ = cw.tmp.Chmod(0o644) //nolint:errcheck // Staging files are created 0600
	if err := cw.tmp.Close(); err != nil {
		_ = os.Remove(cw.tmp.Name()) //nolint:errcheck // Best-effort cleanup in error path
		return fmt.Errorf("closing CSV: %w", err)
	}
	if err := os.Rename(cw.tmp.Name(), cw.path); err != nil {
		_ = os.Remove(cw.tmp.Name()) //nolint:errcheck // Best-effort cleanup in error path
		return fmt.Errorf("moving CSV into place: %w", err)
	}
	return nil
}

// Abort discards the staging file. It is safe to call after Commit.
func (cw *CSVWriter) Abort() {
	if cw.done {
		return
	}
	cw.done = true
	_ = cw.tmp.Close()           //nolint:errcheck // Discarding output
	_ = os.Remove(cw.tmp.Name()) //nolint:errcheck // Discarding output
}

// WriteCSV writes a whole table in one call.
func WriteCSV(path string, columns []string, rows [][]float64) error {
	cw, err := NewCSVWriter(path, columns)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row...); err != nil {
			cw.Abort()
			return err
		}
	}
	return cw.Commit()
}

// FormatValue renders a cell the way the table writer does.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadCSV loads a table into a dataset, one series per column except seq.
// Cells that are not numbers are skipped.
func ReadCSV(r io.Reader) (summary.Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	var ds summary.Dataset
	var index []int
	for i, name := range header {
		if name == SeqColumn {
			continue
		}
		ds = append(ds, summary.Series{Name: name})
		index = append(index, i)
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		for s, col := range index {
			if col >= len(record) {
				continue
			}
			v, err := strconv.ParseFloat(record[col], 64)
			if err != nil || math.IsNaN(v) {
				continue
			}
			ds[s].Values = append(ds[s].Values, v)
		}
	}
	return ds, nil
}

// ReadCSVFile opens path and loads it with ReadCSV.
func ReadCSVFile(path string) (summary.Dataset, error) {
	f, err := os.Open(path) //nolint:gosec // Input path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() {
		_ = f.Close() //nolint:errcheck // Read-only file
	}()
	return ReadCSV(f)
}
