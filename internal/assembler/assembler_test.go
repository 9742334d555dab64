package assembler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mrzor/pingpong-analyzer/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	client = "100.80.0.1"
	server = "100.80.0.0"
)

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

func TestLoad_SkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		"Attaching probes...",
		"ts:1000 sock:1 pid:1 type:send_entry srtt:5 100.80.0.1:4000 -> 100.80.0.0:5000",
		"ts:oops sock:1 pid:1 type:send_exit srtt:5 100.80.0.1:4000 -> 100.80.0.0:5000",
		"",
		"ts:3000 sock:1 pid:1 type:send_exit srtt:5 100.80.0.1:4000 -> 100.80.0.0:5000",
	}, "\n")

	events, err := Load(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, event.SendEntry, events[0].Kind)
	assert.Equal(t, event.SendExit, events[1].Kind)
}

func TestMerge_StableByTimestamp(t *testing.T) {
	a := []event.Event{
		{TimestampUs: 1, PID: 1},
		{TimestampUs: 5, PID: 1},
	}
	b := []event.Event{
		{TimestampUs: 1, PID: 2},
		{TimestampUs: 3, PID: 2},
	}

	merged := Merge(a, b)
	require.Len(t, merged, 4)

	var got [][2]float64
	for _, e := range merged {
		got = append(got, [2]float64{e.TimestampUs, float64(e.PID)})
	}
	assert.Equal(t, [][2]float64{{1, 1}, {1, 2}, {3, 2}, {5, 1}}, got)
}

func TestFilter(t *testing.T) {
	pair := Pair{Client: client, Server: server}
	events := []event.Event{
		{SrcAddr: client, DstAddr: server},
		{SrcAddr: server, DstAddr: client},
		{SrcAddr: client, DstAddr: "10.0.0.9"},
		{SrcAddr: "10.0.0.9", DstAddr: server},
		{SrcAddr: server, DstAddr: server},
	}

	kept := Filter(events, pair)
	assert.Len(t, kept, 2)
	for _, e := range kept {
		assert.True(t, pair.Matches(e))
	}
}

func TestAssemble(t *testing.T) {
	clientLog := writeLog(t,
		"ts:3000 sock:1 pid:1 type:send_exit srtt:5 100.80.0.1:4000 -> 100.80.0.0:5000",
		"ts:1000 sock:1 pid:1 type:send_entry srtt:5 100.80.0.1:4000 -> 100.80.0.0:5000",
	)
	serverLog := writeLog(t,
		"ts:2000 sock:9 pid:2 type:recv_entry srtt:5 100.80.0.1:4000 -> 100.80.0.0:5000",
		"ts:2500 sock:9 pid:2 type:recv_entry srtt:5 10.1.1.1:4000 -> 100.80.0.0:5000",
	)
	noise := writeLog(t, "nothing to see here")

	res, err := Assemble([]string{clientLog, serverLog, noise}, Pair{Client: client, Server: server})
	require.NoError(t, err)

	require.Len(t, res.Events, 3)
	assert.Equal(t, []float64{1, 2, 3}, []float64{res.Events[0].TimestampUs, res.Events[1].TimestampUs, res.Events[2].TimestampUs})

	require.Len(t, res.Sources, 3)
	assert.Equal(t, SourceStats{Path: serverLog, Parsed: 2, Filtered: 1}, res.Sources[1])
	assert.Equal(t, 0, res.Sources[2].Filtered)
}

func TestAssemble_Empty(t *testing.T) {
	empty := writeLog(t, "")

	_, err := Assemble([]string{empty}, Pair{Client: client, Server: server})
	require.ErrorIs(t, err, ErrNoEvents)
}

func TestAssemble_MissingFile(t *testing.T) {
	_, err := Assemble([]string{filepath.Join(t.TempDir(), "absent.log")}, Pair{Client: client, Server: server})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoEvents)
	t.Logf("got error %q (of type %T)", err, err)
}
