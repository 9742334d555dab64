// Package trimmer isolates the longest stretch of a capture in which every
// 4-event window carries all four event kinds. Captures that start or end
// mid-exchange, or that lost events, are cut down to that stretch before
// cycle extraction.
package trimmer

import (
	"errors"
	"fmt"

	"github.com/mrzor/pingpong-analyzer/internal/event"
)

// WindowSize is the number of events in one exchange.
const WindowSize = 4

// ErrNoValidRun is returned when no window holds all four kinds.
var ErrNoValidRun = errors.New("no complete cycle runs found")

// Run is a contiguous span of complete windows.
type Run struct {
	Start  int
	Length int
}

// Flags marks each window start whose WindowSize events contain every kind.
// Order inside the window is ignored.
func Flags(events []event.Event) []bool {
	if len(events) < WindowSize {
		return nil
	}
	flags := make([]bool, len(events)-WindowSize+1)
	for i := range flags {
		flags[i] = complete(events[i : i+WindowSize])
	}
	return flags
}

func complete(window []event.Event) bool {
	var seen [event.RecvExit + 1]bool
	for _, e := range window {
		if e.Kind <= event.RecvExit {
			seen[e.Kind] = true
		}
	}
	return seen[event.SendEntry] && seen[event.SendExit] && seen[event.RecvEntry] && seen[event.RecvExit]
}

// LongestRun finds the longest run of true flags. The earliest run wins ties.
func LongestRun(flags []bool) Run {
	var best Run
	start := -1
	for i, ok := range flags {
		switch {
		case ok && start < 0:
			start = i
		case !ok && start >= 0:
			if i-start > best.Length {
				best = Run{Start: start, Length: i - start}
			}
			start = -1
		}
	}
	if start >= 0 && len(flags)-start > best.Length {
		best = Run{Start: start, Length: len(flags) - start}
	}
	return best
}

// Trim truncates events to the longest complete run and floors the result to
// a whole number of windows.
func Trim(events []event.Event) ([]event.Event, Run, error) {
	run := LongestRun(Flags(events))
	if run.Length == 0 {
		return nil, run, ErrNoValidRun
	}
	n := run.Length - run.Length%WindowSize
	if n == 0 {
		return nil, run, fmt.Errorf("%w: longest run at event %d spans %d windows, less than one exchange",
			ErrNoValidRun, run.Start, run.Length)
	}
	return events[run.Start : run.Start+n], run, nil
}
