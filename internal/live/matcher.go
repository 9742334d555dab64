// Package live matches entry and exit events from a continuous feed into
// stack-time pairs.
package live

import "github.com/mrzor/pingpong-analyzer/internal/event"

// MaxPending bounds each queue of unmatched entries. The oldest entry is
// dropped when a queue is full.
const MaxPending = 1024

// PairKind tells send pairs from receive pairs.
type PairKind string

// Pair kinds.
const (
	SendPair PairKind = "send"
	RecvPair PairKind = "recv"
)

// Pair is an entry matched to the next exit of the same direction.
type Pair struct {
	Kind    PairKind
	PID     uint32
	EntryUs float64
	ExitUs  float64
}

// StackUs is the time spent inside the call.
func (p Pair) StackUs() float64 {
	return p.ExitUs - p.EntryUs
}

// Matcher pairs entries with exits strictly in arrival order. Socket and
// PID are not consulted, so it assumes one conversation in flight.
type Matcher struct {
	sends   []event.Event
	recvs   []event.Event
	orphans int
	dropped int
}

// Push consumes one event and reports a pair when e completes one.
func (m *Matcher) Push(e event.Event) (Pair, bool) {
	if e.Kind < event.SendEntry || e.Kind > event.RecvExit {
		return Pair{}, false
	}

	q, kind := &m.recvs, RecvPair
	if e.Kind.IsSend() {
		q, kind = &m.sends, SendPair
	}
	if e.Kind.IsEntry() {
		*q = m.enqueue(*q, e)
		return Pair{}, false
	}
	return m.complete(q, kind, e)
}

func (m *Matcher) enqueue(q []event.Event, e event.Event) []event.Event {
	if len(q) >= MaxPending {
		q = q[1:]
		m.dropped++
	}
	return append(q, e)
}

func (m *Matcher) complete(q *[]event.Event, kind PairKind, exit event.Event) (Pair, bool) {
	if len(*q) == 0 {
		m.orphans++
		return Pair{}, false
	}
	entry := (*q)[0]
	*q = (*q)[1:]
	return Pair{Kind: kind, PID: entry.PID, EntryUs: entry.TimestampUs, ExitUs: exit.TimestampUs}, true
}

// Pending returns the number of unmatched send and receive entries.
func (m *Matcher) Pending() (sends, recvs int) {
	return len(m.sends), len(m.recvs)
}

// Orphans returns the number of exits that arrived with no pending entry.
func (m *Matcher) Orphans() int {
	return m.orphans
}

// Dropped returns the number of entries evicted from a full queue.
func (m *Matcher) Dropped() int {
	return m.dropped
}
