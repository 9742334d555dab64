package eventstream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mrzor/pingpong-analyzer/internal/event"
)

// Recorder writes events as capture log lines for later batch analysis.
type Recorder struct {
	mu sync.Mutex
	w  *bufio.Writer
	c  io.Closer
}

// NewRecorder writes to w. Close closes w when it is an io.Closer.
func NewRecorder(w io.Writer) *Recorder {
	r := &Recorder{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		r.c = c
	}
	return r
}

// CreateRecorder creates the file at path, and its directory.
func CreateRecorder(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating record directory: %w", err)
	}
	//nolint:gosec // Path comes from the command line
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating record file: %w", err)
	}
	return NewRecorder(f), nil
}

// Record appends one line.
func (r *Recorder) Record(e event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintln(r.w, event.FormatLine(e))
	return err
}

// Close flushes buffered lines and closes the destination.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.w.Flush()
	if r.c != nil {
		err = errors.Join(err, r.c.Close())
	}
	return err
}
