package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML layout accepted by -config. Unset fields keep the
// built-in defaults; command-line flags override both.
type FileConfig struct {
	Inputs        []string       `yaml:"inputs"`
	Output        string         `yaml:"output"`
	ClientIP      string         `yaml:"client_ip"`
	ServerIP      string         `yaml:"server_ip"`
	SmartSkip     *bool          `yaml:"smart_skip"`
	MatchMode     string         `yaml:"match_mode"`
	Network       string         `yaml:"network_latency"`
	Percentiles   []float64      `yaml:"percentiles"`
	Plot          *bool          `yaml:"plot"`
	PlotOutput    string         `yaml:"plot_output"`
	Parquet       string         `yaml:"parquet"`
	Upload        string         `yaml:"upload"`
	ClickHouse    *bool          `yaml:"clickhouse"`
	OTEL          *bool          `yaml:"otel"`
	CustomMetrics []CustomMetric `yaml:"metrics"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Config path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	for _, m := range fc.CustomMetrics {
		if m.Name == "" || m.Expression == "" {
			return nil, fmt.Errorf("config file %s: metric entries need both name and expr", path)
		}
	}
	return &fc, nil
}

// apply overlays the set fields of fc onto cfg.
func (fc *FileConfig) apply(cfg *AnalyzeConfig) {
	if len(fc.Inputs) > 0 {
		cfg.Inputs = fc.Inputs
	}
	setString(&cfg.Output, fc.Output)
	setString(&cfg.ClientIP, fc.ClientIP)
	setString(&cfg.ServerIP, fc.ServerIP)
	setString(&cfg.MatchMode, fc.MatchMode)
	setString(&cfg.NetworkMode, fc.Network)
	setString(&cfg.PlotOutput, fc.PlotOutput)
	setString(&cfg.ParquetOutput, fc.Parquet)
	setString(&cfg.Upload, fc.Upload)
	setBool(&cfg.SmartSkip, fc.SmartSkip)
	setBool(&cfg.Plot, fc.Plot)
	setBool(&cfg.ClickHouse, fc.ClickHouse)
	setBool(&cfg.OTEL, fc.OTEL)
	if len(fc.Percentiles) > 0 {
		cfg.Percentiles = fc.Percentiles
	}
	if len(fc.CustomMetrics) > 0 {
		cfg.CustomMetrics = fc.CustomMetrics
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// configPathFromArgs finds -config before flag parsing so the file can seed
// flag defaults.
func configPathFromArgs(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			return ""
		}
		name := strings.TrimLeft(a, "-")
		if len(name) == len(a) {
			continue
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v
		}
	}
	return ""
}
