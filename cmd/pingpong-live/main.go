// pingpong-live pairs send and receive calls as they are captured and
// reports their stack time while the workload runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrzor/pingpong-analyzer/internal/bpfloader"
	"github.com/mrzor/pingpong-analyzer/internal/config"
	"github.com/mrzor/pingpong-analyzer/internal/eventstream"
	"github.com/mrzor/pingpong-analyzer/internal/live"
	"github.com/mrzor/pingpong-analyzer/internal/summary"
	"github.com/mrzor/pingpong-analyzer/internal/supervisor"
	"github.com/mrzor/pingpong-analyzer/internal/telemetry"
)

// Version information injected at build time.
var (
	version = "dev"
	commit  = "unknown"
)

// drainTimeout lets in-flight events reach the runner after the workload exits.
const drainTimeout = 500 * time.Millisecond

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// setupBPF loads the capture program, attaches it and wraps its ring buffer.
func setupBPF(cfg *config.LiveConfig) (eventstream.Source, func(), error) {
	loader, err := bpfloader.New(cfg.BPFObject)
	if err != nil {
		return nil, nil, err
	}

	if err := loader.Attach(); err != nil {
		if closeErr := loader.Close(); closeErr != nil {
			log.Printf("Error closing loader after attach failure: %v", closeErr)
		}
		return nil, nil, err
	}

	rd, err := loader.OpenRingBuffer()
	if err != nil {
		if closeErr := loader.Close(); closeErr != nil {
			log.Printf("Error closing loader after ring buffer open failure: %v", closeErr)
		}
		return nil, nil, err
	}

	var recorder *eventstream.Recorder
	if cfg.Record != "" {
		recorder, err = eventstream.CreateRecorder(cfg.Record)
		if err != nil {
			_ = rd.Close()     //nolint:errcheck // Best-effort cleanup in error path
			_ = loader.Close() //nolint:errcheck // Best-effort cleanup in error path
			return nil, nil, err
		}
	}

	filter := eventstream.PortFilter{Sport: cfg.SrcPort, Dport: cfg.DstPort, Force: cfg.ForceFilter}
	src := eventstream.NewRingBufferSource(rd, filter, recorder)

	cleanup := func() {
		if err := src.Close(); err != nil {
			log.Printf("Error closing ring buffer: %v", err)
		}
		if err := loader.Close(); err != nil {
			log.Printf("Error closing loader: %v", err)
		}
		if recorder != nil {
			if err := recorder.Close(); err != nil {
				log.Printf("Error closing recording %s: %v", cfg.Record, err)
			} else {
				log.Printf("Recorded events to %s", cfg.Record)
			}
		}
	}
	return src, cleanup, nil
}

// setupSource opens the configured event source.
func setupSource(cfg *config.LiveConfig, sup *supervisor.Supervisor) (eventstream.Source, func(), error) {
	switch cfg.Source() {
	case "monitor":
		_, stdout, err := sup.StartPiped("monitor", cfg.Monitor, os.Stderr)
		if err != nil {
			return nil, nil, err
		}
		src := eventstream.NewLineSource(stdout)
		return src, func() { reportSkipped(src) }, nil
	case "bpf":
		return setupBPF(cfg)
	default:
		var rc io.ReadCloser = os.Stdin
		if cfg.Input != "-" {
			f, err := os.Open(cfg.Input)
			if err != nil {
				return nil, nil, fmt.Errorf("opening input: %w", err)
			}
			rc = f
		}
		src := eventstream.NewLineSource(rc)
		return src, func() { reportSkipped(src) }, nil
	}
}

func reportSkipped(src *eventstream.LineSource) {
	if n := src.Skipped(); n > 0 {
		log.Printf("Skipped %d unparseable lines", n)
	}
	_ = src.Close() //nolint:errcheck // Idempotent, runner already closed it
}

// setupTelemetry starts the HTTP API when an address is configured.
func setupTelemetry(cfg *config.LiveConfig, stats *telemetry.Stats) ([]live.PairSink, func()) {
	if cfg.MetricsAddr == "" {
		return nil, func() {}
	}

	metrics := telemetry.NewMetrics()
	server := telemetry.StartServer(cfg.MetricsAddr, telemetry.NewRouter(metrics, stats))

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down telemetry server: %v", err)
		}
	}
	return []live.PairSink{metrics}, cleanup
}

// setupPublisher connects to NATS when publishing is enabled.
func setupPublisher(cfg *config.LiveConfig) ([]live.PairSink, func(), error) {
	if !cfg.Publish {
		return nil, func() {}, nil
	}

	natsCfg, err := config.ParseNATSConfig()
	if err != nil {
		return nil, nil, err
	}
	pub, err := telemetry.NewPublisher(natsCfg)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if n := pub.Failed(); n > 0 {
			log.Printf("Warning: %d pairs could not be published", n)
		}
		if err := pub.Close(); err != nil {
			log.Printf("Error closing NATS publisher: %v", err)
		}
	}
	return []live.PairSink{pub}, cleanup, nil
}

// startWorkload runs the command after "--" and cancels the capture once it
// exits and late events have drained.
func startWorkload(cfg *config.LiveConfig, sup *supervisor.Supervisor, cancel context.CancelFunc) error {
	if len(cfg.Command) == 0 {
		return nil
	}

	p, err := sup.Start("workload", cfg.Command, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}

	go func() {
		<-p.Done()
		if err := p.Err(); err != nil {
			log.Printf("Workload exited with error: %v", err)
		}
		time.Sleep(drainTimeout)
		cancel()
	}()
	return nil
}

func printReport(stats live.Stats, digest *telemetry.Stats) {
	fmt.Printf("Stopped (%s): %d events, %d pairs", stats.Reason, stats.Events, stats.Pairs)
	if stats.Orphans > 0 || stats.Dropped > 0 {
		fmt.Printf(", %d orphan exits, %d dropped entries", stats.Orphans, stats.Dropped)
	}
	if stats.PendingSends > 0 || stats.PendingRecvs > 0 {
		fmt.Printf(", discarded %d send and %d recv entries without exit", stats.PendingSends, stats.PendingRecvs)
	}
	fmt.Println()

	_, lines, err := digest.Snapshot()
	if err != nil {
		if !errors.Is(err, summary.ErrNoData) {
			log.Printf("Warning: summarizing stack times: %v", err)
		}
		return
	}
	fmt.Print(summary.FormatReport(lines))
}

func run() error {
	cfg, err := config.ParseLiveArgs(os.Args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	log.Printf("Starting pingpong-live %s (commit: %s, source: %s)", version, commit, cfg.Source())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sup := supervisor.New(supervisor.DefaultGrace)
	defer func() {
		if err := sup.StopAll(); err != nil {
			log.Printf("Error stopping children: %v", err)
		}
	}()

	digest, err := telemetry.NewStats(cfg.Percentiles)
	if err != nil {
		return err
	}
	sinks := []live.PairSink{digest}

	var csvSink *live.CSVSink
	if cfg.Output != "" {
		csvSink, err = live.NewCSVSink(cfg.Output)
		if err != nil {
			return err
		}
		sinks = append(sinks, csvSink)
		defer csvSink.Abort()
	}

	telemetrySinks, cleanupTelemetry := setupTelemetry(cfg, digest)
	defer cleanupTelemetry()
	sinks = append(sinks, telemetrySinks...)

	publishSinks, cleanupPublisher, err := setupPublisher(cfg)
	if err != nil {
		return err
	}
	defer cleanupPublisher()
	sinks = append(sinks, publishSinks...)

	src, cleanupSource, err := setupSource(cfg, sup)
	if err != nil {
		return err
	}
	defer cleanupSource()

	if err := startWorkload(cfg, sup, cancel); err != nil {
		return err
	}

	stats, runErr := live.NewRunner(src, cfg.Count, sinks...).Run(ctx)

	if csvSink != nil {
		if err := csvSink.Close(); err != nil {
			return errors.Join(runErr, err)
		}
		fmt.Printf("Written %d pairs to %s\n", csvSink.Rows(), cfg.Output)
	}
	printReport(stats, digest)
	return runErr
}
