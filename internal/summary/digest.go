package summary

import (
	"math"

	"github.com/influxdata/tdigest"
)

// digestCompression keeps roughly a hundred centroids per metric.
const digestCompression = 100

// Digest accumulates streaming samples in bounded memory. It is not safe for
// concurrent use.
type Digest struct {
	names   []string
	digests map[string]*tdigest.TDigest
	counts  map[string]int
}

// NewDigest creates a digest that reports names in the given order.
func NewDigest(names ...string) *Digest {
	d := &Digest{
		digests: make(map[string]*tdigest.TDigest, len(names)),
		counts:  make(map[string]int, len(names)),
	}
	for _, n := range names {
		d.ensure(n)
	}
	return d
}

func (d *Digest) ensure(name string) *tdigest.TDigest {
	td, ok := d.digests[name]
	if !ok {
		td = tdigest.NewWithCompression(digestCompression)
		d.digests[name] = td
		d.names = append(d.names, name)
	}
	return td
}

// Add records one sample. NaN is ignored.
func (d *Digest) Add(name string, v float64) {
	if math.IsNaN(v) {
		return
	}
	d.ensure(name).Add(v, 1)
	d.counts[name]++
}

// Count returns the number of samples recorded for name.
func (d *Digest) Count(name string) int {
	return d.counts[name]
}

// Summarize estimates the requested percentiles for every metric seen.
func (d *Digest) Summarize(ps []float64) ([]Line, error) {
	ps, err := NormalizePercentiles(ps)
	if err != nil {
		return nil, err
	}

	var lines []Line
	for _, name := range d.names {
		n := d.counts[name]
		if n == 0 {
			continue
		}
		td := d.digests[name]
		line := Line{Name: name, Count: n, Quantiles: make([]Quantile, len(ps))}
		for i, p := range ps {
			line.Quantiles[i] = Quantile{Percentile: p, Value: td.Quantile(p / 100)}
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, ErrNoData
	}
	return lines, nil
}
