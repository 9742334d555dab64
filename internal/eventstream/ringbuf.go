package eventstream

import (
	"errors"
	"log"

	"github.com/cilium/ebpf/ringbuf"
	"github.com/mrzor/pingpong-analyzer/internal/bpf"
	"github.com/mrzor/pingpong-analyzer/internal/event"
)

// PortFilter restricts captured events to a local and remote port. A zero
// target accepts everything. Events whose own port is unset pass unless
// Force is set.
type PortFilter struct {
	Sport uint16
	Dport uint16
	Force bool
}

// Allow reports whether an event with the given ports passes.
func (f PortFilter) Allow(sport, dport uint16) bool {
	return f.allowPort(f.Sport, sport) && f.allowPort(f.Dport, dport)
}

func (f PortFilter) allowPort(target, port uint16) bool {
	if target == 0 {
		return true
	}
	if port == 0 {
		return !f.Force
	}
	return port == target
}

// recordReader is the subset of *ringbuf.Reader RingBufferSource uses.
type recordReader interface {
	Read() (ringbuf.Record, error)
	Close() error
}

// RingBufferSource decodes events from the capture program's ring buffer.
type RingBufferSource struct {
	reader   recordReader
	filter   PortFilter
	recorder *Recorder
}

// NewRingBufferSource wraps reader. recorder may be nil.
func NewRingBufferSource(reader *ringbuf.Reader, filter PortFilter, recorder *Recorder) *RingBufferSource {
	return &RingBufferSource{reader: reader, filter: filter, recorder: recorder}
}

// Next blocks until a record passes the filter.
func (s *RingBufferSource) Next() (event.Event, error) {
	for {
		record, err := s.reader.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) {
				return event.Event{}, ErrClosed
			}
			log.Printf("reading from ring buffer: %v", err)
			continue
		}

		raw, err := bpf.Decode(record.RawSample)
		if err != nil {
			log.Printf("parsing event: %v", err)
			continue
		}
		if !s.filter.Allow(raw.Sport, raw.Dport) {
			continue
		}
		e, ok := raw.ToEvent()
		if !ok {
			continue
		}

		if s.recorder != nil {
			if err := s.recorder.Record(e); err != nil {
				log.Printf("recording event: %v", err)
			}
		}
		return e, nil
	}
}

// Close closes the reader, unblocking Next.
func (s *RingBufferSource) Close() error {
	return s.reader.Close()
}
