// Package output writes analysis results.
//
// CSVWriter stages rows in a temporary file next to the destination and
// renames it into place on Commit, so an aborted run never leaves a partial
// table behind. ReadCSV loads such a table back into a summary dataset.
//
// SpanExporter is a pure formatting layer over OpenTelemetry: it turns sealed
// cycles into spans stamped with their capture-time wall clock. Timestamp
// conversion is delegated to timesync.
package output
