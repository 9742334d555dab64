package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CustomMetric defines an extra output column computed from a cycle.
type CustomMetric struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expr"`
}

// ParseCustomMetric parses NAME=EXPR. Only the first '=' separates the
// name, so expressions may contain comparisons.
func ParseCustomMetric(s string) (CustomMetric, error) {
	name, expression, ok := strings.Cut(s, "=")
	if !ok {
		return CustomMetric{}, fmt.Errorf("invalid metric format %q: expected NAME=EXPR", s)
	}
	name = strings.TrimSpace(name)
	expression = strings.TrimSpace(expression)
	if name == "" {
		return CustomMetric{}, fmt.Errorf("invalid metric %q: name cannot be empty", s)
	}
	if expression == "" {
		return CustomMetric{}, fmt.Errorf("invalid metric %q: expression cannot be empty", s)
	}
	return CustomMetric{Name: name, Expression: expression}, nil
}

// stringList is a repeatable string flag. The first Set on the command line
// replaces any value loaded from a file.
type stringList struct {
	values *[]string
	set    bool
}

func (l *stringList) String() string {
	if l.values == nil {
		return ""
	}
	return strings.Join(*l.values, ",")
}

func (l *stringList) Set(v string) error {
	if !l.set {
		*l.values = nil
		l.set = true
	}
	*l.values = append(*l.values, v)
	return nil
}

// metricList is a repeatable NAME=EXPR flag.
type metricList struct {
	values *[]CustomMetric
	set    bool
}

func (l *metricList) String() string {
	if l.values == nil {
		return ""
	}
	parts := make([]string, len(*l.values))
	for i, m := range *l.values {
		parts[i] = m.Name + "=" + m.Expression
	}
	return strings.Join(parts, ",")
}

func (l *metricList) Set(v string) error {
	m, err := ParseCustomMetric(v)
	if err != nil {
		return err
	}
	if !l.set {
		*l.values = nil
		l.set = true
	}
	*l.values = append(*l.values, m)
	return nil
}

// percentileList is a comma separated list of percentiles.
type percentileList struct {
	values *[]float64
}

func (l *percentileList) String() string {
	if l.values == nil {
		return ""
	}
	return FormatPercentiles(*l.values)
}

func (l *percentileList) Set(v string) error {
	ps, err := ParsePercentiles(v)
	if err != nil {
		return err
	}
	*l.values = ps
	return nil
}

// ParsePercentiles parses "50,90,99". Range checks happen in the summarizer.
func ParsePercentiles(s string) ([]float64, error) {
	var out []float64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		p, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid percentile %q: %w", field, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// FormatPercentiles is the inverse of ParsePercentiles.
func FormatPercentiles(ps []float64) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = strconv.FormatFloat(p, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// timeValue accepts RFC3339 or unix seconds.
type timeValue struct {
	value *time.Time
}

func (v *timeValue) String() string {
	if v.value == nil || v.value.IsZero() {
		return ""
	}
	return v.value.Format(time.RFC3339)
}

func (v *timeValue) Set(s string) error {
	t, err := ParseTime(s)
	if err != nil {
		return err
	}
	*v.value = t
	return nil
}

// ParseTime parses an RFC3339 timestamp or integer unix seconds.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or unix seconds", s)
	}
	return t, nil
}
