// Package eventstream reads live events from a monitor's output or from the
// capture program's ring buffer.
package eventstream

import (
	"bufio"
	"errors"
	"io"
	"sync"

	"github.com/mrzor/pingpong-analyzer/internal/event"
)

// ErrClosed is returned by Next once the source has been closed.
var ErrClosed = errors.New("event source closed")

// maxLineSize bounds a single event line.
const maxLineSize = 64 * 1024

// Source yields events one at a time. Next blocks until an event is
// available and returns io.EOF when the stream ends. Close may be called
// from another goroutine to unblock a pending Next.
type Source interface {
	Next() (event.Event, error)
	Close() error
}

// LineSource parses event lines from a reader. Lines in the full capture
// grammar keep every field; lines in the live grammar carry only the
// timestamp, PID and kind. Anything else is skipped.
//
// Lines are scanned on a background goroutine so Close unblocks Next even
// when the reader ignores Close, as a wrapped stdin does. That goroutine
// exits once the reader returns.
type LineSource struct {
	rc      io.ReadCloser
	lines   chan string
	readErr error
	closed  chan struct{}
	once    sync.Once
	skipped int
}

// NewLineSource reads lines from rc and closes it on Close.
func NewLineSource(rc io.ReadCloser) *LineSource {
	s := &LineSource{rc: rc, lines: make(chan string), closed: make(chan struct{})}

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	go s.scan(scanner)
	return s
}

func (s *LineSource) scan(scanner *bufio.Scanner) {
	defer close(s.lines)
	for scanner.Scan() {
		select {
		case s.lines <- scanner.Text():
		case <-s.closed:
			return
		}
	}
	// Published by close(s.lines).
	s.readErr = scanner.Err()
}

// Next returns the next parseable event.
func (s *LineSource) Next() (event.Event, error) {
	for {
		if s.isClosed() {
			return event.Event{}, ErrClosed
		}

		select {
		case <-s.closed:
			return event.Event{}, ErrClosed
		case line, ok := <-s.lines:
			if !ok {
				if s.isClosed() {
					return event.Event{}, ErrClosed
				}
				if s.readErr != nil {
					return event.Event{}, s.readErr
				}
				return event.Event{}, io.EOF
			}
			if e, ok := parse(line); ok {
				return e, nil
			}
			s.skipped++
		}
	}
}

func (s *LineSource) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Skipped returns the number of lines that did not parse. Call it from the
// goroutine that calls Next.
func (s *LineSource) Skipped() int {
	return s.skipped
}

// Close unblocks Next and closes the underlying reader.
func (s *LineSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		err = s.rc.Close()
	})
	return err
}

func parse(line string) (event.Event, bool) {
	if e, ok := event.ParseLine(line); ok {
		return e, true
	}
	le, ok := event.ParseLiveLine(line)
	if !ok {
		return event.Event{}, false
	}
	return event.Event{TimestampUs: le.TimestampUs, PID: le.PID, Kind: le.Kind}, true
}
