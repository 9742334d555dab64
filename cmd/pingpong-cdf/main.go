// pingpong-cdf summarizes a results CSV written by pingpong-analyze and
// renders its latency CDF.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mrzor/pingpong-analyzer/internal/config"
	"github.com/mrzor/pingpong-analyzer/internal/output"
	"github.com/mrzor/pingpong-analyzer/internal/plot"
	"github.com/mrzor/pingpong-analyzer/internal/summary"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	cfg, err := config.ParseCDFArgs(os.Args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	ds, err := output.ReadCSVFile(cfg.Input)
	if err != nil {
		return err
	}

	lines, err := summary.Summarize(ds, cfg.Percentiles)
	if err != nil {
		return fmt.Errorf("summarizing %s: %w", cfg.Input, err)
	}
	fmt.Print(summary.FormatReport(lines))

	if !cfg.Plot {
		return nil
	}
	if err := plot.WriteCDF(cfg.Output, ds); err != nil {
		return err
	}
	log.Printf("Saved CDF plot to %s", cfg.Output)
	return nil
}
