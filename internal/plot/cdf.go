// Package plot renders latency distributions as PNG charts.
package plot

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/mrzor/pingpong-analyzer/internal/summary"
	"github.com/wcharczuk/go-chart/v2"
)

// Chart dimensions in pixels.
const (
	Width  = 1024
	Height = 640
)

// ErrNothingToPlot is returned when no series holds a sample.
var ErrNothingToPlot = fmt.Errorf("nothing to plot: %w", summary.ErrNoData)

// cdfSeries converts a metric into a chart series. A single sample is drawn
// as a vertical step so the renderer has a non-empty range.
func cdfSeries(s summary.Series, idx int) (chart.ContinuousSeries, bool) {
	points := summary.CDF(s.Values)
	if len(points) == 0 {
		return chart.ContinuousSeries{}, false
	}

	xs := make([]float64, 0, len(points)+1)
	ys := make([]float64, 0, len(points)+1)
	if len(points) == 1 {
		xs = append(xs, points[0].X)
		ys = append(ys, 0)
	}
	for _, p := range points {
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
	}

	return chart.ContinuousSeries{
		Name:    s.Name,
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeWidth: 2,
			StrokeColor: chart.GetDefaultColor(idx),
		},
	}, true
}

// xRange spans every series, padded when all samples are equal.
func xRange(series []chart.Series) *chart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		cs, ok := s.(chart.ContinuousSeries)
		if !ok {
			continue
		}
		for _, x := range cs.XValues {
			lo = math.Min(lo, x)
			hi = math.Max(hi, x)
		}
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

// RenderCDF draws one CDF curve per series of ds.
func RenderCDF(w io.Writer, title string, ds summary.Dataset) error {
	var series []chart.Series
	for i, s := range ds {
		if cs, ok := cdfSeries(s, i); ok {
			series = append(series, cs)
		}
	}
	if len(series) == 0 {
		return ErrNothingToPlot
	}

	ch := chart.Chart{
		Title:      title,
		Width:      Width,
		Height:     Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "Latency (us)", Range: xRange(series)},
		YAxis:      chart.YAxis{Name: "CDF", Range: &chart.ContinuousRange{Min: 0, Max: 1}},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("rendering CDF chart: %w", err)
	}
	return nil
}

// WriteCDF renders the chart to path, creating its directory.
func WriteCDF(path string, ds summary.Dataset) error {
	var buf bytes.Buffer
	if err := RenderCDF(&buf, "Latency CDF", ds); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating plot directory: %w", err)
	}
	//nolint:gosec // Plot is a world-readable artifact
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing plot: %w", err)
	}
	return nil
}
