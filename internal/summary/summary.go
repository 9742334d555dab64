// Package summary computes percentile reports and empirical CDFs over metric
// samples.
//
// Percentiles use linear interpolation between closest ranks: for N sorted
// samples the p-th percentile sits at fractional rank p/100*(N-1). CDF points
// use y_k = k/(N-1) for the k-th smallest sample, so the curve spans [0, 1].
package summary

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// DefaultPercentiles are reported when none are configured.
var DefaultPercentiles = []float64{50, 90, 99}

// ReportHeader opens every printed summary.
const ReportHeader = "Latency Percentile Summary (microseconds):"

var (
	// ErrNoData is returned when there is nothing to summarize.
	ErrNoData = errors.New("no data to summarize")
	// ErrInvalidPercentile is returned for percentiles outside [0, 100].
	ErrInvalidPercentile = errors.New("percentile out of range")
)

// Series is the sample set of one metric.
type Series struct {
	Name   string
	Values []float64
}

// Dataset is an ordered set of series.
type Dataset []Series

// FromColumns builds a dataset from row-major values laid out by columns.
func FromColumns(columns []string, rows [][]float64) Dataset {
	ds := make(Dataset, len(columns))
	for i, name := range columns {
		ds[i] = Series{Name: name, Values: make([]float64, 0, len(rows))}
	}
	for _, row := range rows {
		for i := range columns {
			if i < len(row) {
				ds[i].Values = append(ds[i].Values, row[i])
			}
		}
	}
	return ds
}

// Empty reports whether no series holds a sample.
func (ds Dataset) Empty() bool {
	for _, s := range ds {
		if len(s.Values) > 0 {
			return false
		}
	}
	return true
}

// Percentile returns the p-th percentile of sorted values using linear
// interpolation. values must be sorted ascending and non-empty.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Quantile is one percentile of one metric.
type Quantile struct {
	Percentile float64
	Value      float64
}

// Line is the summary of one metric.
type Line struct {
	Name      string
	Count     int
	Quantiles []Quantile
}

// NormalizePercentiles validates ps and returns a sorted copy. An empty ps
// yields DefaultPercentiles.
func NormalizePercentiles(ps []float64) ([]float64, error) {
	if len(ps) == 0 {
		return append([]float64(nil), DefaultPercentiles...), nil
	}
	out := append([]float64(nil), ps...)
	for _, p := range out {
		if math.IsNaN(p) || p < 0 || p > 100 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPercentile, p)
		}
	}
	sort.Float64s(out)
	return out, nil
}

// Summarize computes the requested percentiles for each series. NaN samples
// are ignored and series without samples are omitted.
func Summarize(ds Dataset, ps []float64) ([]Line, error) {
	ps, err := NormalizePercentiles(ps)
	if err != nil {
		return nil, err
	}

	var lines []Line
	for _, s := range ds {
		sorted := sortedFinite(s.Values)
		if len(sorted) == 0 {
			continue
		}
		line := Line{Name: s.Name, Count: len(sorted), Quantiles: make([]Quantile, len(ps))}
		for i, p := range ps {
			line.Quantiles[i] = Quantile{Percentile: p, Value: Percentile(sorted, p)}
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, ErrNoData
	}
	return lines, nil
}

// FormatReport renders lines as the printed percentile summary.
func FormatReport(lines []Line) string {
	var b strings.Builder
	b.WriteString(ReportHeader)
	b.WriteByte('\n')
	for _, l := range lines {
		b.WriteString(FormatLine(l))
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatLine renders one metric as "  name: 50th=1.00, 90th=2.00".
func FormatLine(l Line) string {
	parts := make([]string, len(l.Quantiles))
	for i, q := range l.Quantiles {
		parts[i] = fmt.Sprintf("%sth=%.2f", strconv.FormatFloat(q.Percentile, 'f', -1, 64), q.Value)
	}
	return fmt.Sprintf("  %s: %s", l.Name, strings.Join(parts, ", "))
}

// Point is one step of an empirical CDF.
type Point struct {
	X float64
	Y float64
}

// CDF returns the empirical distribution of values. NaN samples are ignored.
func CDF(values []float64) []Point {
	sorted := sortedFinite(values)
	if len(sorted) == 0 {
		return nil
	}
	points := make([]Point, len(sorted))
	if len(sorted) == 1 {
		points[0] = Point{X: sorted[0], Y: 1}
		return points
	}
	denom := float64(len(sorted) - 1)
	for k, v := range sorted {
		points[k] = Point{X: v, Y: float64(k) / denom}
	}
	return points
}

func sortedFinite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}
