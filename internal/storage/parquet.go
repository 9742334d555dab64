package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// parquetParallelism is the number of goroutines parquet-go uses per file.
const parquetParallelism = 4

// WriteParquet writes rows to path, creating its directory. A failed write
// removes the partial file.
func WriteParquet(path string, rows []CycleRow) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create parquet directory: %w", err)
	}

	file, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(path) //nolint:errcheck // Best-effort cleanup of a partial file
		}
	}()

	pw, err := writer.NewParquetWriter(file, new(CycleRow), parquetParallelism)
	if err != nil {
		file.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i := range rows {
		if err := pw.Write(rows[i]); err != nil {
			return errors.Join(fmt.Errorf("failed to write row %d: %w", i, err), file.Close())
		}
	}

	if err := pw.WriteStop(); err != nil {
		return errors.Join(fmt.Errorf("failed to stop parquet writer: %w", err), file.Close())
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close parquet file: %w", err)
	}
	return nil
}

// ReadParquet loads every row of a file written by WriteParquet.
func ReadParquet(path string) ([]CycleRow, error) {
	file, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close() //nolint:errcheck // Read-only

	pr, err := reader.NewParquetReader(file, new(CycleRow), parquetParallelism)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	n := pr.GetNumRows()
	if n == 0 {
		return nil, nil
	}
	rows := make([]CycleRow, n)
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("failed to read parquet rows: %w", err)
	}
	return rows, nil
}
