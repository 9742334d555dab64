package live

import (
	"strconv"

	"github.com/mrzor/pingpong-analyzer/internal/output"
)

// CSVColumns follow the seq column in the live CSV.
var CSVColumns = []string{"kind", "pid", "entry_us", "exit_us", "stack_us"}

// CSVSink streams pairs to a CSV that is moved into place on Close.
type CSVSink struct {
	w *output.CSVWriter
}

// NewCSVSink stages the CSV at path.
func NewCSVSink(path string) (*CSVSink, error) {
	w, err := output.NewCSVWriter(path, CSVColumns)
	if err != nil {
		return nil, err
	}
	return &CSVSink{w: w}, nil
}

// HandlePair appends and flushes one row.
func (s *CSVSink) HandlePair(_ int, p Pair) error {
	err := s.w.WriteFields(
		string(p.Kind),
		strconv.FormatUint(uint64(p.PID), 10),
		output.FormatValue(p.EntryUs),
		output.FormatValue(p.ExitUs),
		output.FormatValue(p.StackUs()),
	)
	if err != nil {
		return err
	}
	return s.w.Flush()
}

// Rows returns the number of pairs written.
func (s *CSVSink) Rows() int {
	return s.w.Rows()
}

// Close commits every complete pair written so far.
func (s *CSVSink) Close() error {
	return s.w.Commit()
}

// Abort discards the staged CSV unless it was already committed.
func (s *CSVSink) Abort() {
	s.w.Abort()
}
