// Package storage persists analyzed cycles outside the CSV: Parquet files,
// a ClickHouse table and S3 uploads of the run artifacts.
package storage

import (
	"fmt"

	"github.com/mrzor/pingpong-analyzer/internal/cycle"
	"github.com/mrzor/pingpong-analyzer/internal/event"
	"github.com/mrzor/pingpong-analyzer/internal/metrics"
	"github.com/mrzor/pingpong-analyzer/internal/output"
)

// CycleRow is the flattened form of one cycle and its standard metrics.
type CycleRow struct {
	RunID         string  `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Seq           int64   `parquet:"name=seq, type=INT64"`
	SocketID      int64   `parquet:"name=socket_id, type=INT64"`
	StartUnixNano int64   `parquet:"name=start_unix_nano, type=INT64"`
	SendEntryUs   float64 `parquet:"name=send_entry_us, type=DOUBLE"`
	SendExitUs    float64 `parquet:"name=send_exit_us, type=DOUBLE"`
	RecvEntryUs   float64 `parquet:"name=recv_entry_us, type=DOUBLE"`
	RecvExitUs    float64 `parquet:"name=recv_exit_us, type=DOUBLE"`
	SrttUs        int32   `parquet:"name=srtt_us, type=INT32"`
	SendStackUs   float64 `parquet:"name=send_stack_us, type=DOUBLE"`
	RecvStackUs   float64 `parquet:"name=recv_stack_us, type=DOUBLE"`
	NetworkUs     float64 `parquet:"name=network_latency_us, type=DOUBLE"`
	RoundTripUs   float64 `parquet:"name=round_trip_us, type=DOUBLE"`
}

// Rows pairs cycles with their records. clock may be nil, in which case
// StartUnixNano stays zero.
func Rows(runID string, clock output.Clock, cycles []cycle.Cycle, records []metrics.Record) ([]CycleRow, error) {
	if len(cycles) != len(records) {
		return nil, fmt.Errorf("%d cycles but %d records", len(cycles), len(records))
	}

	rows := make([]CycleRow, len(cycles))
	for i, c := range cycles {
		r := records[i]
		row := CycleRow{
			RunID: runID,
			Seq:   int64(i),
			//nolint:gosec // Socket IDs are opaque kernel pointers, sign is irrelevant
			SocketID:    int64(c.SocketID),
			SendEntryUs: c.SendEntryUs,
			SendExitUs:  c.SendExitUs,
			RecvEntryUs: c.RecvEntryUs,
			RecvExitUs:  c.RecvExitUs,
			//nolint:gosec // srtt is bounded well below 2^31 microseconds
			SrttUs:      int32(c.RTTUs),
			SendStackUs: r.SendStackUs,
			RecvStackUs: r.RecvStackUs,
			NetworkUs:   r.NetworkLatencyUs,
			RoundTripUs: r.RoundTripUs,
		}
		if clock != nil {
			row.StartUnixNano = clock.MonotonicToWallClock(event.MicrosToNanos(c.SendEntryUs)).UnixNano()
		}
		rows[i] = row
	}
	return rows, nil
}

// Extras maps configured custom columns to their values per record.
func Extras(names []string, records []metrics.Record) []map[string]float64 {
	out := make([]map[string]float64, len(records))
	for i, r := range records {
		m := make(map[string]float64, len(names))
		for j, name := range names {
			if j < len(r.Custom) {
				m[name] = r.Custom[j]
			}
		}
		out[i] = m
	}
	return out
}
