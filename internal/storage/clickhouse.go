package storage

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/mrzor/pingpong-analyzer/internal/config"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS %s (
    RunID            String,
    Seq              UInt32,
    StartTime        DateTime64(9),
    SocketID         UInt64,
    SendEntryUs      Float64,
    SendExitUs       Float64,
    RecvEntryUs      Float64,
    RecvExitUs       Float64,
    SrttUs           UInt32,
    SendStackUs      Float64,
    RecvStackUs      Float64,
    NetworkLatencyUs Float64,
    RoundTripUs      Float64,
    Extra            Map(String, Float64)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(StartTime)
ORDER BY (RunID, Seq);
`

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ClickHouseSink inserts cycle rows into a MergeTree table.
type ClickHouseSink struct {
	conn  driver.Conn
	table string
}

// NewClickHouseSink connects and ensures the table exists.
func NewClickHouseSink(ctx context.Context, cfg *config.ClickHouseConfig) (*ClickHouseSink, error) {
	if !tableNameRe.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid ClickHouse table name %q", cfg.Table)
	}

	conn, err := connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(ctx, fmt.Sprintf(createTableStatement, cfg.Table)); err != nil {
		conn.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Printf("Connected to ClickHouse at %s, table %s ready", cfg.Addr, cfg.Table)

	return &ClickHouseSink{conn: conn, table: cfg.Table}, nil
}

func connect(ctx context.Context, cfg *config.ClickHouseConfig) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Write inserts rows in one batch. extras, when non-nil, must be parallel
// to rows and fills the Extra map column.
func (s *ClickHouseSink) Write(ctx context.Context, rows []CycleRow, extras []map[string]float64) error {
	if len(rows) == 0 {
		return nil
	}
	if extras != nil && len(extras) != len(rows) {
		return fmt.Errorf("%d rows but %d extra maps", len(rows), len(extras))
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.table)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for i, r := range rows {
		extra := map[string]float64{}
		if extras != nil {
			extra = extras[i]
		}
		err := batch.Append(
			r.RunID,
			//nolint:gosec // Sequence numbers are non-negative
			uint32(r.Seq),
			time.Unix(0, r.StartUnixNano),
			//nolint:gosec // Round-trips the opaque socket ID
			uint64(r.SocketID),
			r.SendEntryUs,
			r.SendExitUs,
			r.RecvEntryUs,
			r.RecvExitUs,
			//nolint:gosec // srtt is non-negative
			uint32(r.SrttUs),
			r.SendStackUs,
			r.RecvStackUs,
			r.NetworkUs,
			r.RoundTripUs,
			extra,
		)
		if err != nil {
			return fmt.Errorf("failed to append cycle %d to batch: %w", r.Seq, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Printf("Wrote %d cycles to ClickHouse table %s", len(rows), s.table)
	return nil
}

// Close releases the connection.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}
