package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalyzeArgs_Defaults(t *testing.T) {
	cfg, err := ParseAnalyzeArgs([]string{"pingpong-analyze", "-input", "client.log"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, []string{"client.log"}, cfg.Inputs)
	assert.Equal(t, DefaultClientIP, cfg.ClientIP)
	assert.Equal(t, DefaultServerIP, cfg.ServerIP)
	assert.True(t, cfg.SmartSkip)
	assert.True(t, cfg.Plot)
	assert.Equal(t, "tolerant", cfg.MatchMode)
	assert.Equal(t, "srtt", cfg.NetworkMode)
	assert.Equal(t, []float64{50, 90, 99}, cfg.Percentiles)
	assert.Empty(t, cfg.CustomMetrics)

	_, err = uuid.Parse(cfg.RunID)
	assert.NoError(t, err, "run ID should be a generated UUID")
}

func TestParseAnalyzeArgs_Flags(t *testing.T) {
	args := []string{
		"pingpong-analyze",
		"-input", "client.log",
		"-input", "server.log",
		"-client-ip", "fd00::1",
		"-server-ip", "fd00::2",
		"-smart-skip=false",
		"-match-mode", "strict",
		"-percentiles", "50, 99.9",
		"-metric", "app_us=round_trip - network_latency",
		"-metric", "slow=send_stack > 100 ? 1.0 : 0.0",
		"-run-id", "bench-42",
		"-boot-time", "2024-05-01T08:00:00Z",
		"extra.log",
	}

	cfg, err := ParseAnalyzeArgs(args, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"client.log", "server.log", "extra.log"}, cfg.Inputs)
	assert.Equal(t, "fd00::1", cfg.ClientIP)
	assert.False(t, cfg.SmartSkip)
	assert.Equal(t, "strict", cfg.MatchMode)
	assert.Equal(t, []float64{50, 99.9}, cfg.Percentiles)
	require.Len(t, cfg.CustomMetrics, 2)
	assert.Equal(t, CustomMetric{Name: "app_us", Expression: "round_trip - network_latency"}, cfg.CustomMetrics[0])
	assert.Equal(t, "bench-42", cfg.RunID)
	assert.True(t, cfg.BootTime.Equal(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)))
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{name: "unix seconds", in: "1700000000", want: time.Unix(1_700_000_000, 0)},
		{name: "rfc3339", in: "2024-05-01T10:00:00+02:00", want: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)},
		{name: "garbage", in: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseAnalyzeArgs_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no inputs", args: []string{"pingpong-analyze"}, want: "no input files"},
		{name: "same endpoints", args: []string{"pingpong-analyze", "-client-ip", "1.1.1.1", "-server-ip", "1.1.1.1", "x.log"}, want: "both 1.1.1.1"},
		{name: "bad percentile", args: []string{"pingpong-analyze", "-percentiles", "fifty", "x.log"}, want: "invalid percentile"},
		{name: "metric without equals", args: []string{"pingpong-analyze", "-metric", "nope", "x.log"}, want: "NAME=EXPR"},
		{name: "metric empty name", args: []string{"pingpong-analyze", "-metric", "=1", "x.log"}, want: "name cannot be empty"},
		{name: "metric empty expression", args: []string{"pingpong-analyze", "-metric", "a=", "x.log"}, want: "expression cannot be empty"},
		{name: "bad boot time", args: []string{"pingpong-analyze", "-boot-time", "later", "x.log"}, want: "invalid time"},
		{name: "missing config file", args: []string{"pingpong-analyze", "-config", "/nonexistent/cfg.yaml", "x.log"}, want: "reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAnalyzeArgs(tt.args, io.Discard)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseAnalyzeArgs_Help(t *testing.T) {
	_, err := ParseAnalyzeArgs([]string{"pingpong-analyze", "-h"}, io.Discard)
	require.ErrorIs(t, err, flag.ErrHelp)
}

func TestParseAnalyzeArgs_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analyze.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
inputs: [a.log, b.log]
output: out/cycles.csv
client_ip: 10.0.0.1
server_ip: 10.0.0.2
smart_skip: false
network_latency: gap
percentiles: [25, 75]
plot: false
metrics:
  - name: app_us
    expr: round_trip - network_latency
`), 0o600))

	t.Run("file values", func(t *testing.T) {
		cfg, err := ParseAnalyzeArgs([]string{"pingpong-analyze", "-config", path}, io.Discard)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.log", "b.log"}, cfg.Inputs)
		assert.Equal(t, "out/cycles.csv", cfg.Output)
		assert.Equal(t, "10.0.0.1", cfg.ClientIP)
		assert.False(t, cfg.SmartSkip)
		assert.False(t, cfg.Plot)
		assert.Equal(t, "gap", cfg.NetworkMode)
		assert.Equal(t, []float64{25, 75}, cfg.Percentiles)
		require.Len(t, cfg.CustomMetrics, 1)
		assert.Equal(t, path, cfg.ConfigPath)
	})

	t.Run("flags override file", func(t *testing.T) {
		cfg, err := ParseAnalyzeArgs([]string{
			"pingpong-analyze", "-config=" + path, "-input", "c.log", "-smart-skip", "-client-ip", "10.0.0.9",
		}, io.Discard)
		require.NoError(t, err)
		assert.Equal(t, []string{"c.log"}, cfg.Inputs)
		assert.True(t, cfg.SmartSkip)
		assert.Equal(t, "10.0.0.9", cfg.ClientIP)
		assert.Equal(t, "10.0.0.2", cfg.ServerIP)
	})
}

func TestLoadFile_RejectsIncompleteMetric(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  - name: x\n"), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name and expr")
}

func TestParseLiveArgs(t *testing.T) {
	cfg, err := ParseLiveArgs([]string{
		"pingpong-live", "-monitor", "./pingpong_user -p 5000", "-count", "100", "-percentiles", "50",
		"--", "./client", "-n", "100",
	}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"./pingpong_user", "-p", "5000"}, cfg.Monitor)
	assert.Equal(t, "monitor", cfg.Source())
	assert.Equal(t, 100, cfg.Count)
	assert.Equal(t, []float64{50}, cfg.Percentiles)
	assert.Equal(t, []string{"./client", "-n", "100"}, cfg.Command)
}

func TestParseLiveArgs_BPF(t *testing.T) {
	cfg, err := ParseLiveArgs([]string{
		"pingpong-live", "-bpf-object", "pingpong.bpf.o", "-sport", "5000", "-force-filter", "-record", "cap.log",
	}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "bpf", cfg.Source())
	assert.Equal(t, uint16(5000), cfg.SrcPort)
	assert.Equal(t, uint16(0), cfg.DstPort)
	assert.True(t, cfg.ForceFilter)
	assert.Empty(t, cfg.Command)
}

func TestParseLiveArgs_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no source", args: []string{"pingpong-live"}, want: "exactly one of"},
		{name: "two sources", args: []string{"pingpong-live", "-input", "-", "-bpf-object", "x.o"}, want: "got 2"},
		{name: "negative count", args: []string{"pingpong-live", "-input", "-", "-count", "-1"}, want: "must not be negative"},
		{name: "record without bpf", args: []string{"pingpong-live", "-input", "-", "-record", "x"}, want: "requires -bpf-object"},
		{name: "port overflow", args: []string{"pingpong-live", "-input", "-", "-sport", "70000"}, want: "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLiveArgs(tt.args, io.Discard)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseCDFArgs(t *testing.T) {
	cfg, err := ParseCDFArgs([]string{"pingpong-cdf", "-input", "r.csv", "-plot=false"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "r.csv", cfg.Input)
	assert.False(t, cfg.Plot)
	assert.Equal(t, []float64{50, 90, 99}, cfg.Percentiles)
}

func TestParsePercentiles(t *testing.T) {
	ps, err := ParsePercentiles("99,50,,90")
	require.NoError(t, err)
	assert.Equal(t, []float64{99, 50, 90}, ps)
	assert.Equal(t, "99,50,90", FormatPercentiles(ps))
}

func TestParseOTELConfig(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "env=lab, host = node1,broken")

	cfg, err := ParseOTELConfig()
	require.NoError(t, err)
	assert.Equal(t, "collector:4318", cfg.GetEndpoint())

	attrs := cfg.ParseResourceAttributes()
	require.Len(t, attrs, 2)
	assert.Equal(t, "host", string(attrs[1].Key))
	assert.Equal(t, "node1", attrs[1].Value.AsString())

	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "traces:4318")
	cfg, err = ParseOTELConfig()
	require.NoError(t, err)
	assert.Equal(t, "traces:4318", cfg.GetEndpoint())
}

func TestParseSinkConfigs(t *testing.T) {
	t.Setenv("CLICKHOUSE_ADDR", "ch:9000")
	t.Setenv("NATS_SUBJECT", "lab.pairs")
	t.Setenv("S3_PATH_STYLE", "true")

	ch, err := ParseClickHouseConfig()
	require.NoError(t, err)
	assert.Equal(t, "ch:9000", ch.Addr)
	assert.Equal(t, "pingpong_cycles", ch.Table)

	nc, err := ParseNATSConfig()
	require.NoError(t, err)
	assert.Equal(t, "lab.pairs", nc.Subject)

	s3, err := ParseS3Config()
	require.NoError(t, err)
	assert.True(t, s3.PathStyle)
}
