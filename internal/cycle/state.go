package cycle

import (
	"fmt"

	"github.com/mrzor/pingpong-analyzer/internal/event"
)

// State is a position in the cycle state machine.
type State uint8

// Cycle states.
const (
	SeekingStart State = iota
	AwaitSendExit
	AwaitRecvEntry
	AwaitRecvExit
	Sealed
)

func (s State) String() string {
	switch s {
	case SeekingStart:
		return "seeking_start"
	case AwaitSendExit:
		return "await_send_exit"
	case AwaitRecvEntry:
		return "await_recv_entry"
	case AwaitRecvExit:
		return "await_recv_exit"
	case Sealed:
		return "sealed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Expects returns the event kind that advances s.
func (s State) Expects() event.Kind {
	switch s {
	case SeekingStart:
		return event.SendEntry
	case AwaitSendExit:
		return event.SendExit
	case AwaitRecvEntry:
		return event.RecvEntry
	case AwaitRecvExit:
		return event.RecvExit
	default:
		return event.KindUnknown
	}
}

// Action tells the driver what a transition did with the event.
type Action uint8

// Transition outcomes.
const (
	// Skip ignores an event while seeking a start.
	Skip Action = iota
	// Advance consumed the event as the next phase.
	Advance
	// Restart abandoned the candidate and began a new one at this event.
	Restart
	// Seal consumed the final phase; the candidate is a complete Cycle.
	Seal
	// Mismatch means the event is not the expected next phase.
	Mismatch
)

func (a Action) String() string {
	switch a {
	case Skip:
		return "skip"
	case Advance:
		return "advance"
	case Restart:
		return "restart"
	case Seal:
		return "seal"
	case Mismatch:
		return "mismatch"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// Step is the transition function of the state machine. It never mutates its
// inputs. On Mismatch the returned state and candidate are the inputs.
func Step(state State, cand Cycle, dir Direction, e event.Event) (State, Cycle, Action) {
	if state == SeekingStart || state == Sealed {
		if isStart(dir, e) {
			return AwaitSendExit, begin(e), Advance
		}
		return SeekingStart, Cycle{}, Skip
	}

	if e.Kind == state.Expects() && continues(dir, cand, e) {
		next := cand
		switch state {
		case AwaitSendExit:
			next.SendExitUs = e.TimestampUs
			return AwaitRecvEntry, next, Advance
		case AwaitRecvEntry:
			next.RecvEntryUs = e.TimestampUs
			return AwaitRecvExit, next, Advance
		case AwaitRecvExit:
			next.RecvExitUs = e.TimestampUs
			return Sealed, next, Seal
		}
	}

	if isStart(dir, e) && e.SocketID == cand.SocketID {
		return AwaitSendExit, begin(e), Restart
	}
	return state, cand, Mismatch
}

func isStart(dir Direction, e event.Event) bool {
	return e.Kind == event.SendEntry && e.Flow(dir.Initiator, dir.Responder)
}

func begin(e event.Event) Cycle {
	return Cycle{
		SocketID:    e.SocketID,
		SendEntryUs: e.TimestampUs,
		RTTUs:       e.SmoothedRTTUs,
	}
}

// continues checks socket, address direction and timestamp order of a phase
// after the start.
func continues(dir Direction, cand Cycle, e event.Event) bool {
	if e.SocketID != cand.SocketID || e.TimestampUs < cand.last() {
		return false
	}
	if e.Kind.IsSend() {
		return e.Flow(dir.Initiator, dir.Responder)
	}
	return e.Flow(dir.Responder, dir.Initiator)
}
