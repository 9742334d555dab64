// pingpong-analyze reconstructs ping-pong cycles from client and server
// capture logs and reports their latency breakdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrzor/pingpong-analyzer/internal/config"
	"github.com/mrzor/pingpong-analyzer/internal/otel"
	"github.com/mrzor/pingpong-analyzer/internal/output"
	"github.com/mrzor/pingpong-analyzer/internal/pipeline"
	"github.com/mrzor/pingpong-analyzer/internal/storage"
)

// Version information injected at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// setupOTEL initializes the OTEL provider and returns a span sink and cleanup function.
func setupOTEL(cfg *config.AnalyzeConfig, clock output.Clock) (*pipeline.SpanSink, func(), error) {
	otelCfg, err := config.ParseOTELConfig()
	if err != nil {
		return nil, nil, err
	}

	tp, err := otel.InitProvider(otelCfg, fmt.Sprintf("%s (%s)", version, commit), cfg.RunID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize OTEL provider: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otel.ShutdownProvider(shutdownCtx, tp); err != nil {
			log.Printf("Error shutting down OTEL provider: %v", err)
		}
	}

	exporter := output.NewSpanExporter(tp.Tracer("pingpong-analyze"), clock, cfg.RunID)
	return &pipeline.SpanSink{Exporter: exporter}, cleanup, nil
}

// setupClickHouse connects the cycle table sink.
func setupClickHouse(ctx context.Context, cfg *config.AnalyzeConfig, clock output.Clock) (*pipeline.TableSink, func(), error) {
	chCfg, err := config.ParseClickHouseConfig()
	if err != nil {
		return nil, nil, err
	}

	writer, err := storage.NewClickHouseSink(ctx, chCfg)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := writer.Close(); err != nil {
			log.Printf("Error closing ClickHouse connection: %v", err)
		}
	}

	names := make([]string, len(cfg.CustomMetrics))
	for i, m := range cfg.CustomMetrics {
		names[i] = m.Name
	}
	return &pipeline.TableSink{Writer: writer, Clock: clock, CustomNames: names}, cleanup, nil
}

// setupUpload prepares the artifact uploader. It must be the last sink.
func setupUpload(ctx context.Context, cfg *config.AnalyzeConfig) (*pipeline.UploadSink, error) {
	dest, err := storage.ParseDestination(cfg.Upload)
	if err != nil {
		return nil, err
	}

	s3Cfg, err := config.ParseS3Config()
	if err != nil {
		return nil, err
	}

	uploader, err := storage.NewUploader(ctx, s3Cfg, dest)
	if err != nil {
		return nil, err
	}
	return &pipeline.UploadSink{Uploader: uploader}, nil
}

// setupSinks builds the optional exports in the order they run.
func setupSinks(ctx context.Context, cfg *config.AnalyzeConfig) ([]pipeline.Sink, func(), error) {
	var sinks []pipeline.Sink
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var clock output.Clock
	if cfg.ParquetOutput != "" || cfg.ClickHouse || cfg.OTEL {
		clock = pipeline.NewClock(cfg)
	}

	if cfg.ParquetOutput != "" {
		sinks = append(sinks, &pipeline.ParquetSink{Path: cfg.ParquetOutput, Clock: clock})
	}

	if cfg.ClickHouse {
		sink, closeFn, err := setupClickHouse(ctx, cfg, clock)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		sinks = append(sinks, sink)
		cleanups = append(cleanups, closeFn)
	}

	if cfg.OTEL {
		sink, shutdownFn, err := setupOTEL(cfg, clock)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		sinks = append(sinks, sink)
		cleanups = append(cleanups, shutdownFn)
	}

	if cfg.Upload != "" {
		sink, err := setupUpload(ctx, cfg)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		sinks = append(sinks, sink)
	}

	return sinks, cleanup, nil
}

func run() error {
	cfg, err := config.ParseAnalyzeArgs(os.Args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return &pipeline.StageError{Stage: pipeline.StageConfigure, Err: err}
	}

	log.Printf("Starting pingpong-analyze %s (commit: %s, run: %s)", version, commit, cfg.RunID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks, cleanup, err := setupSinks(ctx, cfg)
	if err != nil {
		return &pipeline.StageError{Stage: pipeline.StageConfigure, Err: err}
	}
	defer cleanup()

	if _, err := pipeline.New(cfg, os.Stdout, sinks...).Run(ctx); err != nil {
		return err
	}
	return nil
}
