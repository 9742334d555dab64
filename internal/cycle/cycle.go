package cycle

import (
	"fmt"
	"math"
)

// Cycle is one sealed request/response exchange. Timestamps are
// microseconds and non-decreasing in field order.
type Cycle struct {
	SocketID    uint64
	SendEntryUs float64
	SendExitUs  float64
	RecvEntryUs float64
	RecvExitUs  float64
	// RTTUs is the kernel smoothed RTT carried by the initiating send.
	RTTUs uint32
}

// Monotonic reports whether the phase timestamps are in order.
func (c Cycle) Monotonic() bool {
	return c.SendEntryUs <= c.SendExitUs &&
		c.SendExitUs <= c.RecvEntryUs &&
		c.RecvEntryUs <= c.RecvExitUs
}

func (c Cycle) last() float64 {
	return math.Max(math.Max(c.SendEntryUs, c.SendExitUs), math.Max(c.RecvEntryUs, c.RecvExitUs))
}

// Direction names which endpoint starts a cycle.
type Direction struct {
	Initiator string
	Responder string
}

// Reverse swaps the roles.
func (d Direction) Reverse() Direction {
	return Direction{Initiator: d.Responder, Responder: d.Initiator}
}

func (d Direction) String() string {
	return d.Initiator + "->" + d.Responder
}

// Mode selects how a mismatched phase is handled.
type Mode uint8

// Matching modes.
const (
	// Tolerant scans forward past unrelated events.
	Tolerant Mode = iota
	// Strict aborts extraction on the first out-of-order phase.
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "tolerant"
}

// ParseMode parses "tolerant" or "strict".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "tolerant":
		return Tolerant, nil
	case "strict":
		return Strict, nil
	default:
		return Tolerant, fmt.Errorf("unknown match mode %q (want tolerant or strict)", s)
	}
}
