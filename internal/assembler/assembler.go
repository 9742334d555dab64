// Package assembler turns one or more capture logs into a single
// time-ordered event sequence restricted to one client/server pair.
package assembler

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/mrzor/pingpong-analyzer/internal/event"
)

// ErrNoEvents is returned when no input contributes a usable event.
var ErrNoEvents = errors.New("no events between the configured endpoints")

// maxLineSize bounds a single capture line.
const maxLineSize = 64 * 1024

// Pair names the two endpoints of the exchange.
type Pair struct {
	Client string
	Server string
}

// Matches reports whether e travels between the pair in either direction.
func (p Pair) Matches(e event.Event) bool {
	return e.Flow(p.Client, p.Server) || e.Flow(p.Server, p.Client)
}

// SourceStats describes what a single input contributed.
type SourceStats struct {
	Path     string
	Parsed   int
	Filtered int
}

// Result is the assembled sequence and per-input accounting.
type Result struct {
	Events  []event.Event
	Sources []SourceStats
}

// Load reads capture lines from r and keeps the ones that parse.
func Load(r io.Reader) ([]event.Event, error) {
	var events []event.Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	for scanner.Scan() {
		if e, ok := event.ParseLine(scanner.Text()); ok {
			events = append(events, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading capture lines: %w", err)
	}
	return events, nil
}

// LoadFile opens path and loads its events.
func LoadFile(path string) ([]event.Event, error) {
	f, err := os.Open(path) //nolint:gosec // Input paths come from the operator
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() {
		_ = f.Close() //nolint:errcheck // Read-only file
	}()

	events, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return events, nil
}

// Merge concatenates sources in order and stable-sorts by timestamp, so
// events with equal timestamps keep their input order.
func Merge(sources ...[]event.Event) []event.Event {
	total := 0
	for _, s := range sources {
		total += len(s)
	}
	merged := make([]event.Event, 0, total)
	for _, s := range sources {
		merged = append(merged, s...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].TimestampUs < merged[j].TimestampUs
	})
	return merged
}

// Filter keeps the events exchanged between the pair.
func Filter(events []event.Event, pair Pair) []event.Event {
	out := make([]event.Event, 0, len(events))
	for _, e := range events {
		if pair.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Assemble loads every path, merges them and filters to pair. An input that
// contributes nothing is logged; an empty result is ErrNoEvents.
func Assemble(paths []string, pair Pair) (*Result, error) {
	res := &Result{Sources: make([]SourceStats, 0, len(paths))}
	loaded := make([][]event.Event, 0, len(paths))

	for _, path := range paths {
		events, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		kept := Filter(events, pair)
		res.Sources = append(res.Sources, SourceStats{Path: path, Parsed: len(events), Filtered: len(kept)})
		if len(kept) == 0 {
			log.Printf("Warning: %s has no events between %s and %s (%d parsed)", path, pair.Client, pair.Server, len(events))
		}
		loaded = append(loaded, kept)
	}

	res.Events = Merge(loaded...)
	if len(res.Events) == 0 {
		return nil, ErrNoEvents
	}
	return res, nil
}
