package output

import (
	"crypto/sha256"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// RunTraceID maps a run ID to the trace holding all of its cycle spans. A
// UUID or any 32 hex character ID is used as is; anything else is hashed
// with SHA-256.
func RunTraceID(runID string) trace.TraceID {
	if s := strings.ReplaceAll(runID, "-", ""); len(s) == 32 {
		if id, err := trace.TraceIDFromHex(s); err == nil && id.IsValid() {
			return id
		}
	}

	var id trace.TraceID
	hash := sha256.Sum256([]byte(runID))
	copy(id[:], hash[:16])
	return id
}

// runParent is the remote span every cycle span hangs off. Its span ID is
// derived from the run ID so re-exports of a run land in the same place.
func runParent(runID string) trace.SpanContext {
	var spanID trace.SpanID
	hash := sha256.Sum256([]byte("parent:" + runID))
	copy(spanID[:], hash[:8])

	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    RunTraceID(runID),
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
}
