// Package metrics derives latency measurements from sealed cycles.
package metrics

import (
	"fmt"
	"log"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/mrzor/pingpong-analyzer/internal/config"
	"github.com/mrzor/pingpong-analyzer/internal/cycle"
)

// Standard column names, in output order.
const (
	SendStack      = "send_stack_us"
	RecvStack      = "recv_stack_us"
	NetworkLatency = "network_latency_us"
	RoundTrip      = "round_trip_us"
)

// StandardColumns lists the columns every record carries.
var StandardColumns = []string{SendStack, RecvStack, NetworkLatency, RoundTrip}

// NetworkMode selects how network latency is derived.
type NetworkMode uint8

// Network latency definitions.
const (
	// NetworkSRTT reports the kernel smoothed RTT of the initiating send.
	NetworkSRTT NetworkMode = iota
	// NetworkGap reports the time between send exit and receive entry.
	NetworkGap
)

func (m NetworkMode) String() string {
	if m == NetworkGap {
		return "gap"
	}
	return "srtt"
}

// ParseNetworkMode parses "srtt" or "gap".
func ParseNetworkMode(s string) (NetworkMode, error) {
	switch s {
	case "", "srtt":
		return NetworkSRTT, nil
	case "gap":
		return NetworkGap, nil
	default:
		return NetworkSRTT, fmt.Errorf("unknown network latency mode %q (want srtt or gap)", s)
	}
}

// Record holds the measurements for one cycle.
type Record struct {
	SendStackUs      float64
	RecvStackUs      float64
	NetworkLatencyUs float64
	RoundTripUs      float64
	// Custom holds configured expression columns in Calculator order.
	Custom []float64
}

// Values returns the record in column order.
func (r Record) Values() []float64 {
	out := make([]float64, 0, len(StandardColumns)+len(r.Custom))
	out = append(out, r.SendStackUs, r.RecvStackUs, r.NetworkLatencyUs, r.RoundTripUs)
	return append(out, r.Custom...)
}

// Calculator turns cycles into records.
type Calculator struct {
	network  NetworkMode
	custom   []config.CustomMetric
	programs []*vm.Program
}

// exprEnv is the variable set custom expressions are checked against.
func exprEnv(c cycle.Cycle, r Record) map[string]interface{} {
	return map[string]interface{}{
		"send_entry":      c.SendEntryUs,
		"send_exit":       c.SendExitUs,
		"recv_entry":      c.RecvEntryUs,
		"recv_exit":       c.RecvExitUs,
		"srtt":            float64(c.RTTUs),
		"socket":          float64(c.SocketID),
		"send_stack":      r.SendStackUs,
		"recv_stack":      r.RecvStackUs,
		"network_latency": r.NetworkLatencyUs,
		"round_trip":      r.RoundTripUs,
	}
}

// NewCalculator compiles the custom column expressions.
func NewCalculator(network NetworkMode, custom []config.CustomMetric) (*Calculator, error) {
	env := exprEnv(cycle.Cycle{}, Record{})

	programs := make([]*vm.Program, len(custom))
	for i, m := range custom {
		program, err := expr.Compile(m.Expression, expr.Env(env), expr.AsFloat64())
		if err != nil {
			return nil, fmt.Errorf("failed to compile expression for metric %q: %w", m.Name, err)
		}
		programs[i] = program
	}

	return &Calculator{network: network, custom: custom, programs: programs}, nil
}

// Columns returns the output column names.
func (c *Calculator) Columns() []string {
	cols := append([]string(nil), StandardColumns...)
	for _, m := range c.custom {
		cols = append(cols, m.Name)
	}
	return cols
}

// Compute derives the record for one cycle. A custom expression that fails
// at run time yields NaN for that column.
func (c *Calculator) Compute(cy cycle.Cycle) Record {
	r := Record{
		SendStackUs: cy.SendExitUs - cy.SendEntryUs,
		RecvStackUs: cy.RecvExitUs - cy.RecvEntryUs,
		RoundTripUs: cy.RecvExitUs - cy.SendEntryUs,
	}
	switch c.network {
	case NetworkGap:
		r.NetworkLatencyUs = cy.RecvEntryUs - cy.SendExitUs
	default:
		r.NetworkLatencyUs = float64(cy.RTTUs)
	}

	if len(c.programs) == 0 {
		return r
	}

	env := exprEnv(cy, r)
	r.Custom = make([]float64, len(c.programs))
	for i, program := range c.programs {
		out, err := expr.Run(program, env)
		if err != nil {
			log.Printf("Warning: failed to evaluate metric %q: %v", c.custom[i].Name, err)
			r.Custom[i] = math.NaN()
			continue
		}
		v, ok := out.(float64)
		if !ok {
			r.Custom[i] = math.NaN()
			continue
		}
		r.Custom[i] = v
	}
	return r
}

// ComputeAll maps Compute over cycles, preserving order.
func (c *Calculator) ComputeAll(cycles []cycle.Cycle) []Record {
	records := make([]Record, len(cycles))
	for i, cy := range cycles {
		records[i] = c.Compute(cy)
	}
	return records
}
