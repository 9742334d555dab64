package timesync

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const procStat = "/proc/stat"

// ErrNoBootTime is returned when no btime line is present.
var ErrNoBootTime = errors.New("btime not found")

// Converter maps monotonic capture timestamps to wall-clock time.
type Converter struct {
	bootTime time.Time
}

// NewConverter reads the boot time from /proc/stat. When it cannot be read,
// the boot time is estimated as one hour ago and a warning is logged, so
// exported spans stay ordered even if their absolute time is off.
func NewConverter() *Converter {
	bootTime, err := readBootTime(procStat)
	if err != nil {
		log.Printf("Warning: %v; span timestamps will be approximate", err)
		bootTime = time.Now().Add(-time.Hour)
	}
	return &Converter{bootTime: bootTime}
}

// NewConverterAt creates a converter for a known boot time, typically the
// boot time of the host that recorded an older capture.
func NewConverterAt(bootTime time.Time) *Converter {
	return &Converter{bootTime: bootTime}
}

// MonotonicToWallClock converts nanoseconds since boot to wall-clock time.
func (c *Converter) MonotonicToWallClock(monotonicNanos uint64) time.Time {
	//nolint:gosec // uint64 to int64 conversion for time.Duration is safe for reasonable timestamps
	return c.bootTime.Add(time.Duration(monotonicNanos))
}

// BootTime returns the boot time used for conversions.
func (c *Converter) BootTime() time.Time {
	return c.bootTime
}

func readBootTime(path string) (time.Time, error) {
	file, err := os.Open(path) //nolint:gosec // Fixed procfs path
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = file.Close() //nolint:errcheck // Read-only file, defer cleanup
	}()
	return parseBootTime(file)
}

// parseBootTime extracts the "btime <unix seconds>" line of /proc/stat.
func parseBootTime(r io.Reader) (time.Time, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		rest, ok := strings.CutPrefix(scanner.Text(), "btime ")
		if !ok {
			continue
		}
		secs, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse btime: %w", err)
		}
		return time.Unix(secs, 0), nil
	}
	if err := scanner.Err(); err != nil {
		return time.Time{}, fmt.Errorf("error reading boot time: %w", err)
	}
	return time.Time{}, ErrNoBootTime
}
