// Package config parses command-line flags, the optional YAML file and
// environment settings for the analyzer binaries.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Default endpoint roles used by the capture setup.
const (
	DefaultClientIP = "100.80.0.1"
	DefaultServerIP = "100.80.0.0"
)

// AnalyzeConfig holds the batch analyzer settings.
type AnalyzeConfig struct {
	Inputs        []string
	Output        string
	ClientIP      string
	ServerIP      string
	SmartSkip     bool
	MatchMode     string
	NetworkMode   string
	Percentiles   []float64
	Plot          bool
	PlotOutput    string
	ParquetOutput string
	// Upload is an s3://bucket/prefix destination for run artifacts.
	Upload        string
	ClickHouse    bool
	OTEL          bool
	CustomMetrics []CustomMetric
	RunID         string
	ConfigPath    string
	// BootTime is the boot time of the host that recorded the inputs. Zero
	// means the local host's.
	BootTime      time.Time
}

// DefaultAnalyzeConfig returns the settings used when nothing is configured.
func DefaultAnalyzeConfig() *AnalyzeConfig {
	return &AnalyzeConfig{
		Output:      "results/results.csv",
		ClientIP:    DefaultClientIP,
		ServerIP:    DefaultServerIP,
		SmartSkip:   true,
		MatchMode:   "tolerant",
		NetworkMode: "srtt",
		Percentiles: []float64{50, 90, 99},
		Plot:        true,
		PlotOutput:  "results/latency_cdf.png",
	}
}

// ParseAnalyzeArgs parses the analyzer command line. args[0] is the program
// name. Input logs may be given with -input or as positional arguments.
func ParseAnalyzeArgs(args []string, usageOut io.Writer) (*AnalyzeConfig, error) {
	if len(args) == 0 {
		return nil, errors.New("no arguments provided")
	}

	cfg := DefaultAnalyzeConfig()
	if path := configPathFromArgs(args[1:]); path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		fc.apply(cfg)
		cfg.ConfigPath = path
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	if usageOut != nil {
		fs.SetOutput(usageOut)
	}
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "YAML configuration file")
	fs.Var(&stringList{values: &cfg.Inputs}, "input", "capture log file (repeatable)")
	fs.StringVar(&cfg.Output, "output", cfg.Output, "CSV output path")
	fs.StringVar(&cfg.ClientIP, "client-ip", cfg.ClientIP, "client address")
	fs.StringVar(&cfg.ServerIP, "server-ip", cfg.ServerIP, "server address")
	fs.BoolVar(&cfg.SmartSkip, "smart-skip", cfg.SmartSkip, "keep only the longest run of complete event windows")
	fs.StringVar(&cfg.MatchMode, "match-mode", cfg.MatchMode, "cycle matching mode: tolerant or strict")
	fs.StringVar(&cfg.NetworkMode, "network-latency", cfg.NetworkMode, "network latency source: srtt or gap")
	fs.Var(&percentileList{values: &cfg.Percentiles}, "percentiles", "comma separated percentiles to report")
	fs.BoolVar(&cfg.Plot, "plot", cfg.Plot, "write a CDF plot")
	fs.StringVar(&cfg.PlotOutput, "plot-output", cfg.PlotOutput, "CDF plot output path")
	fs.StringVar(&cfg.ParquetOutput, "parquet", cfg.ParquetOutput, "also write cycles to this Parquet file")
	fs.StringVar(&cfg.Upload, "upload", cfg.Upload, "upload artifacts to s3://bucket/prefix")
	fs.BoolVar(&cfg.ClickHouse, "clickhouse", cfg.ClickHouse, "insert cycles into ClickHouse (CLICKHOUSE_* env)")
	fs.BoolVar(&cfg.OTEL, "otel", cfg.OTEL, "export one span per cycle (OTEL_* env)")
	fs.Var(&metricList{values: &cfg.CustomMetrics}, "metric", "extra column NAME=EXPR (repeatable)")
	fs.StringVar(&cfg.RunID, "run-id", cfg.RunID, "run identifier (default: random UUID)")
	fs.Var(&timeValue{value: &cfg.BootTime}, "boot-time", "boot time of the capturing host, RFC3339 or unix seconds (default: this host)")

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	if rest := fs.Args(); len(rest) > 0 {
		cfg.Inputs = append(cfg.Inputs, rest...)
	}

	if len(cfg.Inputs) == 0 {
		return nil, fmt.Errorf("no input files: usage: %s [flags] -input <log> [-input <log>...]", args[0])
	}
	if cfg.Output == "" {
		return nil, errors.New("-output cannot be empty")
	}
	if cfg.ClientIP == cfg.ServerIP {
		return nil, fmt.Errorf("client and server address are both %s", cfg.ClientIP)
	}
	if cfg.Plot && cfg.PlotOutput == "" {
		return nil, errors.New("-plot-output cannot be empty when plotting")
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	return cfg, nil
}
