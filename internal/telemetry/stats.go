package telemetry

import (
	"sync"

	"github.com/mrzor/pingpong-analyzer/internal/live"
	"github.com/mrzor/pingpong-analyzer/internal/summary"
)

// Metric names the live digest reports.
const (
	SendStack = "send_stack_us"
	RecvStack = "recv_stack_us"
)

// Stats keeps streaming percentiles of the live stack times. It is safe
// for concurrent use.
type Stats struct {
	mu          sync.Mutex
	digest      *summary.Digest
	percentiles []float64
	pairs       int
}

// NewStats reports the given percentiles.
func NewStats(percentiles []float64) (*Stats, error) {
	ps, err := summary.NormalizePercentiles(percentiles)
	if err != nil {
		return nil, err
	}
	return &Stats{digest: summary.NewDigest(SendStack, RecvStack), percentiles: ps}, nil
}

// HandlePair adds the pair's stack time to its digest.
func (s *Stats) HandlePair(_ int, p live.Pair) error {
	name := SendStack
	if p.Kind == live.RecvPair {
		name = RecvStack
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.digest.Add(name, p.StackUs())
	s.pairs++
	return nil
}

// Snapshot returns the pair count and current percentile estimates.
// summary.ErrNoData is returned until a pair has been seen.
func (s *Stats) Snapshot() (int, []summary.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines, err := s.digest.Summarize(s.percentiles)
	return s.pairs, lines, err
}
