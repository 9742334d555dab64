package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/mrzor/pingpong-analyzer/internal/assembler"
	"github.com/mrzor/pingpong-analyzer/internal/config"
	"github.com/mrzor/pingpong-analyzer/internal/cycle"
	"github.com/mrzor/pingpong-analyzer/internal/event"
	"github.com/mrzor/pingpong-analyzer/internal/metrics"
	"github.com/mrzor/pingpong-analyzer/internal/output"
	"github.com/mrzor/pingpong-analyzer/internal/plot"
	"github.com/mrzor/pingpong-analyzer/internal/summary"
	"github.com/mrzor/pingpong-analyzer/internal/trimmer"
)

// Result is everything a successful run produced.
type Result struct {
	RunID   string
	Sources []assembler.SourceStats
	// Events is the sequence handed to the extractor, after trimming.
	Events  []event.Event
	Trimmed trimmer.Run
	Outcome cycle.Outcome
	Columns []string
	Records []metrics.Record
	Summary []summary.Line
	// Artifacts lists files written so far, in order.
	Artifacts []string
}

// Rows returns the records in column order.
func (r *Result) Rows() [][]float64 {
	rows := make([][]float64, len(r.Records))
	for i, rec := range r.Records {
		rows[i] = rec.Values()
	}
	return rows
}

// Sink consumes a result after the CSV has been committed.
type Sink interface {
	Name() string
	Export(ctx context.Context, res *Result) error
}

// Pipeline runs one batch analysis.
type Pipeline struct {
	cfg    *config.AnalyzeConfig
	stdout io.Writer
	sinks  []Sink
}

// New creates a pipeline writing its report to stdout. Sinks run in order.
func New(cfg *config.AnalyzeConfig, stdout io.Writer, sinks ...Sink) *Pipeline {
	return &Pipeline{cfg: cfg, stdout: stdout, sinks: sinks}
}

// Run executes every stage. Fatal errors are *StageError. The CSV is only
// created once every preceding stage has succeeded.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	cfg := p.cfg

	mode, err := cycle.ParseMode(cfg.MatchMode)
	if err != nil {
		return nil, fail(StageConfigure, err)
	}
	network, err := metrics.ParseNetworkMode(cfg.NetworkMode)
	if err != nil {
		return nil, fail(StageConfigure, err)
	}
	calc, err := metrics.NewCalculator(network, cfg.CustomMetrics)
	if err != nil {
		return nil, fail(StageConfigure, err)
	}
	percentiles, err := summary.NormalizePercentiles(cfg.Percentiles)
	if err != nil {
		return nil, fail(StageConfigure, err)
	}

	res := &Result{RunID: cfg.RunID, Columns: calc.Columns()}

	asm, err := assembler.Assemble(cfg.Inputs, assembler.Pair{Client: cfg.ClientIP, Server: cfg.ServerIP})
	if err != nil {
		return nil, fail(StageAssemble, err)
	}
	res.Sources = asm.Sources
	res.Events = asm.Events
	log.Printf("Assembled %d events from %d input(s)", len(asm.Events), len(cfg.Inputs))

	if cfg.SmartSkip {
		trimmed, run, err := trimmer.Trim(res.Events)
		if err != nil {
			return nil, fail(StageTrim, err)
		}
		log.Printf("Smart-skip kept %d of %d events starting at index %d", len(trimmed), len(res.Events), run.Start)
		res.Events, res.Trimmed = trimmed, run
	}

	dir := cycle.Direction{Initiator: cfg.ClientIP, Responder: cfg.ServerIP}
	outcome, err := cycle.Strategy{Direction: dir, Mode: mode}.Extract(res.Events)
	if err != nil {
		return nil, fail(StageExtract, err)
	}
	if outcome.FellBack() {
		log.Printf("Warning: no cycles initiated by %s, using reversed direction %s", dir.Initiator, outcome.Direction)
	}
	res.Outcome = outcome
	log.Printf("Extracted %d complete ping-pong cycles", len(outcome.Cycles))

	res.Records = calc.ComputeAll(outcome.Cycles)
	rows := res.Rows()
	ds := summary.FromColumns(res.Columns, rows)

	lines, err := summary.Summarize(ds, percentiles)
	if err != nil {
		return nil, fail(StageSummarize, err)
	}
	res.Summary = lines

	if err := output.WriteCSV(cfg.Output, res.Columns, rows); err != nil {
		return nil, fail(StageWrite, err)
	}
	res.Artifacts = append(res.Artifacts, cfg.Output)
	fmt.Fprintf(p.stdout, "Written %d records to %s\n", len(rows), cfg.Output)
	fmt.Fprint(p.stdout, summary.FormatReport(lines))

	if cfg.Plot {
		if err := plot.WriteCDF(cfg.PlotOutput, ds); err != nil {
			return res, fail(StagePlot, err)
		}
		res.Artifacts = append(res.Artifacts, cfg.PlotOutput)
		log.Printf("Saved CDF plot to %s", cfg.PlotOutput)
	}

	for _, s := range p.sinks {
		if err := s.Export(ctx, res); err != nil {
			return res, fail(StageExport, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}

	return res, nil
}
