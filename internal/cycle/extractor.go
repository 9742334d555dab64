package cycle

import (
	"errors"
	"fmt"

	"github.com/mrzor/pingpong-analyzer/internal/event"
)

var (
	// ErrNoCycles is returned when neither direction yields a cycle.
	ErrNoCycles = errors.New("no cycles extracted")
	// ErrOrderingViolation is returned in strict mode when a phase arrives
	// out of order.
	ErrOrderingViolation = errors.New("cycle ordering violation")
)

// Extractor matches cycles for a single direction.
type Extractor struct {
	Direction Direction
	Mode      Mode
}

// Extract scans events once and returns the sealed cycles in input order.
// Scanning resumes after the event that sealed a cycle, so cycles never
// overlap.
func (x Extractor) Extract(events []event.Event) ([]Cycle, error) {
	var cycles []Cycle
	state := SeekingStart
	var cand Cycle

	for i, e := range events {
		next, c, action := Step(state, cand, x.Direction, e)
		switch action {
		case Skip:
		case Advance:
			state, cand = next, c
		case Seal:
			cycles = append(cycles, c)
			state, cand = SeekingStart, Cycle{}
		case Restart, Mismatch:
			if x.Mode == Strict {
				return cycles, fmt.Errorf("%w: event %d (%s on socket %d) while %s on socket %d",
					ErrOrderingViolation, i, e.Kind, e.SocketID, state, cand.SocketID)
			}
			if action == Restart {
				state, cand = next, c
			}
		}
	}
	return cycles, nil
}

// Outcome reports what a Strategy produced.
type Outcome struct {
	Cycles    []Cycle
	Direction Direction
	Attempts  int
}

// FellBack reports whether the reversed direction was used.
func (o Outcome) FellBack() bool {
	return o.Attempts > 1
}

// Strategy extracts with the configured direction and, if that yields
// nothing, retries once with the roles reversed.
type Strategy struct {
	Direction Direction
	Mode      Mode
}

// Extract runs at most two attempts. A strict-mode violation aborts without
// a retry.
func (s Strategy) Extract(events []event.Event) (Outcome, error) {
	attempts := [2]Direction{s.Direction, s.Direction.Reverse()}
	for i, dir := range attempts {
		cycles, err := Extractor{Direction: dir, Mode: s.Mode}.Extract(events)
		out := Outcome{Cycles: cycles, Direction: dir, Attempts: i + 1}
		if err != nil {
			return out, err
		}
		if len(cycles) > 0 {
			return out, nil
		}
	}
	return Outcome{Direction: attempts[1], Attempts: len(attempts)}, ErrNoCycles
}
