package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel/attribute"
)

// OTELConfig holds OpenTelemetry configuration from environment variables
type OTELConfig struct {
	ServiceName        string `env:"OTEL_SERVICE_NAME" envDefault:"pingpong-analyzer"`
	ResourceAttributes string `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:""`
	ExporterEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	TracesEndpoint     string `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT" envDefault:""`
}

// ParseOTELConfig parses OTEL configuration from environment variables
func ParseOTELConfig() (*OTELConfig, error) {
	var cfg OTELConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse OTEL config: %w", err)
	}
	return &cfg, nil
}

// GetEndpoint returns the appropriate endpoint for traces
// Priority: OTEL_EXPORTER_OTLP_TRACES_ENDPOINT > OTEL_EXPORTER_OTLP_ENDPOINT > default
func (c *OTELConfig) GetEndpoint() string {
	if c.TracesEndpoint != "" {
		return c.TracesEndpoint
	}
	if c.ExporterEndpoint != "" {
		return c.ExporterEndpoint
	}
	return "localhost:4318"
}

// ParseResourceAttributes parses the OTEL_RESOURCE_ATTRIBUTES string
// Format: key1=value1,key2=value2
func (c *OTELConfig) ParseResourceAttributes() []attribute.KeyValue {
	if c.ResourceAttributes == "" {
		return nil
	}

	var attrs []attribute.KeyValue
	for _, pair := range strings.Split(c.ResourceAttributes, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		if key = strings.TrimSpace(key); key != "" {
			attrs = append(attrs, attribute.String(key, strings.TrimSpace(value)))
		}
	}
	return attrs
}

// ClickHouseConfig locates the cycle sink.
type ClickHouseConfig struct {
	Addr     string `env:"CLICKHOUSE_ADDR" envDefault:"localhost:9000"`
	Database string `env:"CLICKHOUSE_DATABASE" envDefault:"default"`
	Username string `env:"CLICKHOUSE_USERNAME" envDefault:"default"`
	Password string `env:"CLICKHOUSE_PASSWORD" envDefault:""`
	Table    string `env:"CLICKHOUSE_TABLE" envDefault:"pingpong_cycles"`
}

// NATSConfig locates the live pair publisher.
type NATSConfig struct {
	URL     string `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	Subject string `env:"NATS_SUBJECT" envDefault:"pingpong.pairs"`
}

// S3Config configures artifact uploads. Credentials come from the standard
// AWS chain.
type S3Config struct {
	Region    string `env:"AWS_REGION" envDefault:"us-east-1"`
	Endpoint  string `env:"S3_ENDPOINT" envDefault:""`
	PathStyle bool   `env:"S3_PATH_STYLE" envDefault:"false"`
}

// ParseClickHouseConfig reads CLICKHOUSE_* variables.
func ParseClickHouseConfig() (*ClickHouseConfig, error) {
	return parseEnv[ClickHouseConfig]("ClickHouse")
}

// ParseNATSConfig reads NATS_* variables.
func ParseNATSConfig() (*NATSConfig, error) {
	return parseEnv[NATSConfig]("NATS")
}

// ParseS3Config reads AWS_REGION and S3_* variables.
func ParseS3Config() (*S3Config, error) {
	return parseEnv[S3Config]("S3")
}

func parseEnv[T any](what string) (*T, error) {
	var cfg T
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s config: %w", what, err)
	}
	return &cfg, nil
}
