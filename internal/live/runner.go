package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/mrzor/pingpong-analyzer/internal/eventstream"
)

// PairSink consumes matched pairs. seq is the zero-based pair index.
type PairSink interface {
	HandlePair(seq int, p Pair) error
}

// StopReason says why Run returned.
type StopReason string

// Stop reasons.
const (
	StopCount       StopReason = "count reached"
	StopEOF         StopReason = "stream closed"
	StopInterrupted StopReason = "interrupted"
	StopFailed      StopReason = "failed"
)

// Stats summarizes a finished run.
type Stats struct {
	Events  int
	Pairs   int
	Orphans int
	Dropped int
	// PendingSends and PendingRecvs are entries discarded at shutdown.
	PendingSends int
	PendingRecvs int
	Reason       StopReason
}

// Runner drives a source through a Matcher on a single goroutine.
type Runner struct {
	source eventstream.Source
	count  int
	sinks  []PairSink
}

// NewRunner creates a runner that stops after count pairs when count > 0.
func NewRunner(source eventstream.Source, count int, sinks ...PairSink) *Runner {
	return &Runner{source: source, count: count, sinks: sinks}
}

// Run reads until ctx is cancelled, the count is reached or the source ends.
// Cancellation closes the source to unblock a pending read; the event in
// flight, if any, is discarded so no pair is emitted after cancellation.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var m Matcher
	var stats Stats

	stop := context.AfterFunc(ctx, func() {
		if err := r.source.Close(); err != nil {
			log.Printf("Error closing event source: %v", err)
		}
	})
	defer stop()

	finish := func(reason StopReason) Stats {
		stats.Orphans, stats.Dropped = m.Orphans(), m.Dropped()
		stats.PendingSends, stats.PendingRecvs = m.Pending()
		stats.Reason = reason
		return stats
	}

	for {
		e, err := r.source.Next()
		if ctx.Err() != nil {
			return finish(StopInterrupted), nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, eventstream.ErrClosed) {
				return finish(StopEOF), nil
			}
			return finish(StopFailed), fmt.Errorf("reading events: %w", err)
		}
		stats.Events++

		p, ok := m.Push(e)
		if !ok {
			continue
		}
		for _, s := range r.sinks {
			if err := s.HandlePair(stats.Pairs, p); err != nil {
				return finish(StopFailed), fmt.Errorf("handling pair %d: %w", stats.Pairs, err)
			}
		}
		stats.Pairs++

		if r.count > 0 && stats.Pairs >= r.count {
			return finish(StopCount), nil
		}
	}
}
