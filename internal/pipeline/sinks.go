package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/mrzor/pingpong-analyzer/internal/config"
	"github.com/mrzor/pingpong-analyzer/internal/output"
	"github.com/mrzor/pingpong-analyzer/internal/storage"
	"github.com/mrzor/pingpong-analyzer/internal/timesync"
)

// NewClock maps capture timestamps to wall-clock time for the sinks. A
// configured boot time wins over the local host's.
func NewClock(cfg *config.AnalyzeConfig) output.Clock {
	if !cfg.BootTime.IsZero() {
		log.Printf("Using capture host boot time %s", cfg.BootTime.Format(time.RFC3339))
		return timesync.NewConverterAt(cfg.BootTime)
	}
	return timesync.NewConverter()
}

// ParquetSink archives cycles to a Parquet file.
type ParquetSink struct {
	Path  string
	Clock output.Clock
}

func (s *ParquetSink) Name() string { return "parquet" }

func (s *ParquetSink) Export(_ context.Context, res *Result) error {
	rows, err := storage.Rows(res.RunID, s.Clock, res.Outcome.Cycles, res.Records)
	if err != nil {
		return err
	}
	if err := storage.WriteParquet(s.Path, rows); err != nil {
		return err
	}
	res.Artifacts = append(res.Artifacts, s.Path)
	log.Printf("Wrote %d cycles to %s", len(rows), s.Path)
	return nil
}

// CycleWriter stores cycle rows. storage.ClickHouseSink implements it.
type CycleWriter interface {
	Write(ctx context.Context, rows []storage.CycleRow, extras []map[string]float64) error
}

// TableSink inserts cycles and custom columns into a database table.
type TableSink struct {
	Writer      CycleWriter
	Clock       output.Clock
	CustomNames []string
}

func (s *TableSink) Name() string { return "clickhouse" }

func (s *TableSink) Export(ctx context.Context, res *Result) error {
	rows, err := storage.Rows(res.RunID, s.Clock, res.Outcome.Cycles, res.Records)
	if err != nil {
		return err
	}
	var extras []map[string]float64
	if len(s.CustomNames) > 0 {
		extras = storage.Extras(s.CustomNames, res.Records)
	}
	return s.Writer.Write(ctx, rows, extras)
}

// SpanSink exports one span tree per cycle.
type SpanSink struct {
	Exporter *output.SpanExporter
}

func (s *SpanSink) Name() string { return "otel" }

func (s *SpanSink) Export(ctx context.Context, res *Result) error {
	if err := s.Exporter.ExportAll(ctx, res.Outcome.Cycles, res.Columns, res.Rows()); err != nil {
		return err
	}
	log.Printf("Exported %d cycle spans", len(res.Outcome.Cycles))
	return nil
}

// ArtifactUploader copies files somewhere durable. storage.Uploader
// implements it.
type ArtifactUploader interface {
	Upload(ctx context.Context, runID string, files ...string) ([]string, error)
}

// UploadSink uploads every artifact written before it. Place it last.
type UploadSink struct {
	Uploader ArtifactUploader
}

func (s *UploadSink) Name() string { return "upload" }

func (s *UploadSink) Export(ctx context.Context, res *Result) error {
	_, err := s.Uploader.Upload(ctx, res.RunID, res.Artifacts...)
	return err
}
