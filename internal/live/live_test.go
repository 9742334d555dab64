package live

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mrzor/pingpong-analyzer/internal/event"
	"github.com/mrzor/pingpong-analyzer/internal/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(kind event.Kind, us float64) event.Event {
	return event.Event{TimestampUs: us, PID: 7, Kind: kind}
}

func TestMatcher_FIFO(t *testing.T) {
	var m Matcher
	feed := []event.Event{
		ev(event.SendEntry, 10),
		ev(event.SendEntry, 20),
		ev(event.RecvEntry, 25),
		ev(event.SendExit, 30),
		ev(event.RecvExit, 31),
		ev(event.SendExit, 45),
		ev(event.RecvExit, 50),
	}

	var pairs []Pair
	for _, e := range feed {
		if p, ok := m.Push(e); ok {
			pairs = append(pairs, p)
		}
	}

	assert.Equal(t, []Pair{
		{Kind: SendPair, PID: 7, EntryUs: 10, ExitUs: 30},
		{Kind: RecvPair, PID: 7, EntryUs: 25, ExitUs: 31},
		{Kind: SendPair, PID: 7, EntryUs: 20, ExitUs: 45},
	}, pairs)
	assert.InDelta(t, 20.0, pairs[0].StackUs(), 0)
	assert.Equal(t, 1, m.Orphans(), "second recv exit had no entry")

	sends, recvs := m.Pending()
	assert.Zero(t, sends)
	assert.Zero(t, recvs)
}

func TestMatcher_IgnoresUnknownKind(t *testing.T) {
	var m Matcher
	_, ok := m.Push(ev(event.KindUnknown, 1))
	assert.False(t, ok)
	_, ok = m.Push(ev(event.Kind(42), 2))
	assert.False(t, ok)

	sends, recvs := m.Pending()
	assert.Zero(t, sends)
	assert.Zero(t, recvs)
	assert.Zero(t, m.Orphans())
}

func TestMatcher_BoundsQueue(t *testing.T) {
	var m Matcher
	for i := 0; i < MaxPending+3; i++ {
		_, ok := m.Push(ev(event.SendEntry, float64(i)))
		require.False(t, ok)
	}
	assert.Equal(t, 3, m.Dropped())

	p, ok := m.Push(ev(event.SendExit, 5000))
	require.True(t, ok)
	assert.InDelta(t, 3.0, p.EntryUs, 0, "oldest entries were evicted")
}

type sliceSource struct {
	events []event.Event
	err    error
	closed bool
}

func (s *sliceSource) Next() (event.Event, error) {
	if len(s.events) == 0 {
		if s.err != nil {
			return event.Event{}, s.err
		}
		return event.Event{}, io.EOF
	}
	e := s.events[0]
	s.events = s.events[1:]
	return e, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

type collector struct {
	seqs  []int
	pairs []Pair
	err   error
}

func (c *collector) HandlePair(seq int, p Pair) error {
	if c.err != nil {
		return c.err
	}
	c.seqs = append(c.seqs, seq)
	c.pairs = append(c.pairs, p)
	return nil
}

func pingPong(n int) []event.Event {
	var out []event.Event
	for i := 0; i < n; i++ {
		base := float64(100 * i)
		out = append(out,
			ev(event.SendEntry, base),
			ev(event.SendExit, base+5),
			ev(event.RecvEntry, base+40),
			ev(event.RecvExit, base+42),
		)
	}
	return out
}

func TestRunner_CountBound(t *testing.T) {
	src := &sliceSource{events: pingPong(5)}
	c := &collector{}

	stats, err := NewRunner(src, 3, c).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StopCount, stats.Reason)
	assert.Equal(t, 3, stats.Pairs)
	assert.Equal(t, []int{0, 1, 2}, c.seqs)
	assert.Equal(t, []PairKind{SendPair, RecvPair, SendPair}, []PairKind{c.pairs[0].Kind, c.pairs[1].Kind, c.pairs[2].Kind})
	assert.Equal(t, 6, stats.Events)
}

func TestRunner_EndOfStream(t *testing.T) {
	src := &sliceSource{events: append(pingPong(2), ev(event.SendEntry, 999))}
	c := &collector{}

	stats, err := NewRunner(src, 0, c).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StopEOF, stats.Reason)
	assert.Equal(t, 4, stats.Pairs)
	assert.Equal(t, 1, stats.PendingSends, "incomplete pair is never emitted")
	assert.Len(t, c.pairs, 4)
}

func TestRunner_Errors(t *testing.T) {
	t.Run("source failure", func(t *testing.T) {
		src := &sliceSource{err: errors.New("broken pipe")}
		stats, err := NewRunner(src, 0).Run(context.Background())
		require.Error(t, err)
		assert.Equal(t, StopFailed, stats.Reason)
	})

	t.Run("closed source ends the stream", func(t *testing.T) {
		src := &sliceSource{err: eventstream.ErrClosed}
		stats, err := NewRunner(src, 0).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StopEOF, stats.Reason)
	})

	t.Run("sink failure", func(t *testing.T) {
		src := &sliceSource{events: pingPong(1)}
		_, err := NewRunner(src, 0, &collector{err: errors.New("disk full")}).Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})
}

// blockingSource hands out events from a channel and blocks until Close.
// When cancelOn is set, cancel runs as soon as an event of that kind is
// received and before it is returned.
type blockingSource struct {
	ch       chan event.Event
	done     chan struct{}
	once     sync.Once
	cancelOn event.Kind
	cancel   func()
}

func newBlockingSource() *blockingSource {
	return &blockingSource{ch: make(chan event.Event), done: make(chan struct{})}
}

func (s *blockingSource) Next() (event.Event, error) {
	select {
	case e := <-s.ch:
		if s.cancel != nil && e.Kind == s.cancelOn {
			s.cancel()
		}
		return e, nil
	case <-s.done:
		return event.Event{}, eventstream.ErrClosed
	}
}

func (s *blockingSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func TestRunner_CancelUnblocksRead(t *testing.T) {
	src := newBlockingSource()
	c := &collector{}
	ctx, cancel := context.WithCancel(context.Background())

	type result struct {
		stats Stats
		err   error
	}
	resCh := make(chan result, 1)
	go func() {
		stats, err := NewRunner(src, 0, c).Run(ctx)
		resCh <- result{stats, err}
	}()

	src.ch <- ev(event.SendEntry, 1)
	src.ch <- ev(event.SendExit, 2)
	src.ch <- ev(event.RecvEntry, 3)
	cancel()

	select {
	case res := <-resCh:
		require.NoError(t, res.err)
		assert.Equal(t, StopInterrupted, res.stats.Reason)
		assert.Equal(t, 1, res.stats.Pairs)
		assert.Equal(t, 1, res.stats.PendingRecvs)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
	assert.Len(t, c.pairs, 1)
}

func TestRunner_CancelUnblocksStdinLikeSource(t *testing.T) {
	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	defer pw.Close()
	defer pr.Close()

	src := eventstream.NewLineSource(io.NopCloser(pr))
	ctx, cancel := context.WithCancel(context.Background())

	resCh := make(chan Stats, 1)
	go func() {
		stats, _ := NewRunner(src, 0).Run(ctx)
		resCh <- stats
	}()

	_, err = pw.WriteString("ts:1000 pid:7 type:send_entry\nts:6000 pid:7 type:send_exit\n")
	require.NoError(t, err)
	cancel()

	select {
	case stats := <-resCh:
		assert.Equal(t, StopInterrupted, stats.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}

func TestRunner_CancelDiscardsEventInFlight(t *testing.T) {
	src := newBlockingSource()
	c := &collector{}
	ctx, cancel := context.WithCancel(context.Background())
	src.cancelOn, src.cancel = event.SendExit, cancel

	resCh := make(chan Stats, 1)
	go func() {
		stats, _ := NewRunner(src, 0, c).Run(ctx)
		resCh <- stats
	}()

	src.ch <- ev(event.SendEntry, 1)
	src.ch <- ev(event.SendExit, 2)

	select {
	case stats := <-resCh:
		assert.Equal(t, StopInterrupted, stats.Reason)
		assert.Zero(t, stats.Pairs)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
	assert.Empty(t, c.pairs, "exit observed after cancellation completes no pair")
}

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live", "pairs.csv")
	sink, err := NewCSVSink(path)
	require.NoError(t, err)

	src := &sliceSource{events: pingPong(1)}
	_, err = NewRunner(src, 0, sink).Run(context.Background())
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "CSV appears only once closed")

	require.NoError(t, sink.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "seq,kind,pid,entry_us,exit_us,stack_us\n0,send,7,0,5,5\n1,recv,7,40,42,2\n", string(data))
	assert.Equal(t, 2, sink.Rows())
}

func TestCSVSink_AbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pairs.csv")
	sink, err := NewCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.HandlePair(0, Pair{Kind: SendPair, EntryUs: 1, ExitUs: 2}))

	sink.Abort()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
