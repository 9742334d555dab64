package trimmer

import (
	"testing"

	"github.com/mrzor/pingpong-analyzer/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cycleKinds = []event.Kind{event.SendEntry, event.SendExit, event.RecvEntry, event.RecvExit}

// sequence builds events with increasing timestamps from kinds.
func sequence(kinds ...event.Kind) []event.Event {
	out := make([]event.Event, len(kinds))
	for i, k := range kinds {
		out[i] = event.Event{TimestampUs: float64(i), Kind: k}
	}
	return out
}

func periodic(n int) []event.Kind {
	kinds := make([]event.Kind, n)
	for i := range kinds {
		kinds[i] = cycleKinds[i%len(cycleKinds)]
	}
	return kinds
}

func repeat(k event.Kind, n int) []event.Kind {
	kinds := make([]event.Kind, n)
	for i := range kinds {
		kinds[i] = k
	}
	return kinds
}

func TestFlags(t *testing.T) {
	assert.Nil(t, Flags(sequence(event.SendEntry, event.SendExit, event.RecvEntry)))

	flags := Flags(sequence(event.RecvExit, event.RecvEntry, event.SendExit, event.SendEntry, event.SendEntry))
	assert.Equal(t, []bool{true, false}, flags, "order inside a window is ignored")
}

func TestLongestRun(t *testing.T) {
	tests := []struct {
		name  string
		flags []bool
		want  Run
	}{
		{name: "empty", flags: nil, want: Run{}},
		{name: "all false", flags: []bool{false, false}, want: Run{}},
		{name: "single run", flags: []bool{false, true, true, false}, want: Run{Start: 1, Length: 2}},
		{name: "run at tail", flags: []bool{true, false, true, true, true}, want: Run{Start: 2, Length: 3}},
		{name: "tie keeps earliest", flags: []bool{true, true, false, true, true}, want: Run{Start: 0, Length: 2}},
		{name: "all true", flags: []bool{true, true, true}, want: Run{Start: 0, Length: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LongestRun(tt.flags))
		})
	}
}

func TestTrim_BrokenCompleteBroken(t *testing.T) {
	// 3 noise + 15 periodic + 2 noise yields 17 windows:
	// 3 broken, 12 complete, 2 broken.
	var kinds []event.Kind
	kinds = append(kinds, repeat(event.SendEntry, 3)...)
	kinds = append(kinds, periodic(15)...)
	kinds = append(kinds, repeat(event.SendEntry, 2)...)
	events := sequence(kinds...)

	flags := Flags(events)
	require.Len(t, flags, 17)
	for i, ok := range flags {
		assert.Equal(t, i >= 3 && i < 15, ok, "window %d", i)
	}

	trimmed, run, err := Trim(events)
	require.NoError(t, err)
	assert.Equal(t, Run{Start: 3, Length: 12}, run)
	require.Len(t, trimmed, 12)
	assert.Equal(t, 0, len(trimmed)%WindowSize)
	assert.Equal(t, events[3:15], trimmed)
	for i, e := range trimmed {
		assert.Equal(t, cycleKinds[i%4], e.Kind)
	}
}

func TestTrim_FloorsToWholeWindows(t *testing.T) {
	// 10 periodic events: 7 complete windows, floored to 4 events.
	trimmed, run, err := Trim(sequence(periodic(10)...))
	require.NoError(t, err)
	assert.Equal(t, Run{Start: 0, Length: 7}, run)
	assert.Len(t, trimmed, 4)
}

func TestTrim_NoRun(t *testing.T) {
	_, _, err := Trim(sequence(repeat(event.SendEntry, 10)...))
	require.ErrorIs(t, err, ErrNoValidRun)

	_, _, err = Trim(nil)
	require.ErrorIs(t, err, ErrNoValidRun)
}

func TestTrim_RunShorterThanOneExchange(t *testing.T) {
	// One clean exchange is a single complete window, which floors to zero.
	trimmed, run, err := Trim(sequence(periodic(4)...))
	require.ErrorIs(t, err, ErrNoValidRun)
	assert.Equal(t, Run{Start: 0, Length: 1}, run)
	assert.Nil(t, trimmed)
}
