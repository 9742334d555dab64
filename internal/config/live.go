package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

// LiveConfig holds the live capture settings.
type LiveConfig struct {
	// Monitor is an external command whose stdout carries event lines.
	Monitor []string
	// BPFObject is a compiled capture program loaded in-process.
	BPFObject string
	// Input reads event lines from a file, or stdin when "-".
	Input       string
	Count       int
	Output      string
	MetricsAddr string
	Publish     bool
	Record      string
	SrcPort     uint16
	DstPort     uint16
	ForceFilter bool
	Percentiles []float64
	// Command is the workload started after the source is ready.
	Command []string
}

// Source names the configured event source.
func (c *LiveConfig) Source() string {
	switch {
	case len(c.Monitor) > 0:
		return "monitor"
	case c.BPFObject != "":
		return "bpf"
	default:
		return "input"
	}
}

// ParseLiveArgs parses the live binary command line. Everything after "--"
// is the workload command.
func ParseLiveArgs(args []string, usageOut io.Writer) (*LiveConfig, error) {
	if len(args) == 0 {
		return nil, errors.New("no arguments provided")
	}

	cfg := &LiveConfig{Percentiles: []float64{50, 90, 99}}
	var monitor string
	var sport, dport uint

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	if usageOut != nil {
		fs.SetOutput(usageOut)
	}
	fs.StringVar(&monitor, "monitor", "", "monitor command printing event lines on stdout")
	fs.StringVar(&cfg.BPFObject, "bpf-object", "", "compiled capture object to load")
	fs.StringVar(&cfg.Input, "input", "", "read event lines from a file (- for stdin)")
	fs.IntVar(&cfg.Count, "count", 0, "stop after this many complete pairs (0 = unbounded)")
	fs.StringVar(&cfg.Output, "output", "", "CSV output path for matched pairs")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "serve /metrics and /summary on this address")
	fs.BoolVar(&cfg.Publish, "publish", false, "publish pairs to NATS (NATS_* env)")
	fs.StringVar(&cfg.Record, "record", "", "write captured events as capture log lines (bpf source only)")
	fs.UintVar(&sport, "sport", 0, "only capture this local port (bpf source only)")
	fs.UintVar(&dport, "dport", 0, "only capture this remote port (bpf source only)")
	fs.BoolVar(&cfg.ForceFilter, "force-filter", false, "apply port filters even when a port is 0")
	fs.Var(&percentileList{values: &cfg.Percentiles}, "percentiles", "comma separated percentiles to report")

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	cfg.Command = fs.Args()
	cfg.Monitor = strings.Fields(monitor)

	if sport > 0xffff || dport > 0xffff {
		return nil, fmt.Errorf("port out of range: sport=%d dport=%d", sport, dport)
	}
	cfg.SrcPort = uint16(sport)
	cfg.DstPort = uint16(dport)

	sources := 0
	for _, set := range []bool{len(cfg.Monitor) > 0, cfg.BPFObject != "", cfg.Input != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, fmt.Errorf("exactly one of -monitor, -bpf-object or -input is required (got %d)", sources)
	}
	if cfg.Count < 0 {
		return nil, fmt.Errorf("-count must not be negative, got %d", cfg.Count)
	}
	if cfg.Record != "" && cfg.BPFObject == "" {
		return nil, errors.New("-record requires -bpf-object")
	}

	return cfg, nil
}

// CDFConfig holds the standalone CSV summarizer settings.
type CDFConfig struct {
	Input       string
	Output      string
	Plot        bool
	Percentiles []float64
}

// ParseCDFArgs parses the CSV summarizer command line.
func ParseCDFArgs(args []string, usageOut io.Writer) (*CDFConfig, error) {
	if len(args) == 0 {
		return nil, errors.New("no arguments provided")
	}

	cfg := &CDFConfig{Percentiles: []float64{50, 90, 99}}
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	if usageOut != nil {
		fs.SetOutput(usageOut)
	}
	fs.StringVar(&cfg.Input, "input", "results/results.csv", "CSV file written by the analyzer")
	fs.StringVar(&cfg.Output, "output", "results/latency_cdf.png", "CDF plot output path")
	fs.BoolVar(&cfg.Plot, "plot", true, "write the CDF plot")
	fs.Var(&percentileList{values: &cfg.Percentiles}, "percentiles", "comma separated percentiles to report")

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	if cfg.Input == "" {
		return nil, errors.New("-input cannot be empty")
	}
	return cfg, nil
}
