package output

import (
	"context"
	"fmt"
	"time"

	"github.com/mrzor/pingpong-analyzer/internal/cycle"
	"github.com/mrzor/pingpong-analyzer/internal/event"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Clock converts capture timestamps (nanoseconds since boot) to wall-clock
// time. timesync.Converter satisfies it.
type Clock interface {
	MonotonicToWallClock(monotonicNanos uint64) time.Time
}

// SpanExporter emits one span tree per cycle.
type SpanExporter struct {
	tracer trace.Tracer
	clock  Clock
	runID  string
}

// NewSpanExporter creates a SpanExporter.
func NewSpanExporter(tracer trace.Tracer, clock Clock, runID string) *SpanExporter {
	return &SpanExporter{tracer: tracer, clock: clock, runID: runID}
}

func (x *SpanExporter) at(us float64) time.Time {
	return x.clock.MonotonicToWallClock(event.MicrosToNanos(us))
}

// ExportCycle creates a "pingpong.cycle" span covering the exchange with
// child spans for the send call, the wire time and the receive call. values
// are attached as attributes named by columns.
func (x *SpanExporter) ExportCycle(ctx context.Context, seq int, c cycle.Cycle, columns []string, values []float64) error {
	if len(columns) != len(values) {
		return fmt.Errorf("cycle %d: %d columns but %d values", seq, len(columns), len(values))
	}

	attrs := []attribute.KeyValue{
		attribute.Int("pingpong.seq", seq),
		attribute.String("pingpong.run_id", x.runID),
		//nolint:gosec // Socket IDs are opaque kernel pointers, sign is irrelevant
		attribute.Int64("pingpong.socket_id", int64(c.SocketID)),
		attribute.Int("pingpong.srtt_us", int(c.RTTUs)),
	}
	for i, name := range columns {
		attrs = append(attrs, attribute.Float64("pingpong."+name, values[i]))
	}

	cycleCtx, span := x.tracer.Start(ctx, "pingpong.cycle",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(x.at(c.SendEntryUs)),
		trace.WithAttributes(attrs...),
	)

	x.child(cycleCtx, "pingpong.send", c.SendEntryUs, c.SendExitUs)
	x.child(cycleCtx, "pingpong.network", c.SendExitUs, c.RecvEntryUs)
	x.child(cycleCtx, "pingpong.recv", c.RecvEntryUs, c.RecvExitUs)

	span.SetStatus(codes.Ok, "")
	span.End(trace.WithTimestamp(x.at(c.RecvExitUs)))
	return nil
}

func (x *SpanExporter) child(ctx context.Context, name string, startUs, endUs float64) {
	_, span := x.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(x.at(startUs)),
	)
	span.End(trace.WithTimestamp(x.at(endUs)))
}

// ExportAll exports every cycle, numbering them from zero like the CSV. All
// spans share the trace given by RunTraceID.
func (x *SpanExporter) ExportAll(ctx context.Context, cycles []cycle.Cycle, columns []string, rows [][]float64) error {
	if len(cycles) != len(rows) {
		return fmt.Errorf("%d cycles but %d metric rows", len(cycles), len(rows))
	}
	ctx = trace.ContextWithRemoteSpanContext(ctx, runParent(x.runID))
	for i, c := range cycles {
		if err := x.ExportCycle(ctx, i, c, columns, rows[i]); err != nil {
			return err
		}
	}
	return nil
}
