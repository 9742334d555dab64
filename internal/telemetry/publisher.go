package telemetry

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/mrzor/pingpong-analyzer/internal/config"
	"github.com/mrzor/pingpong-analyzer/internal/live"
	"github.com/nats-io/nats.go"
)

// PairMessage is the JSON body published for every pair.
type PairMessage struct {
	Seq     int     `json:"seq"`
	Kind    string  `json:"kind"`
	PID     uint32  `json:"pid"`
	EntryUs float64 `json:"entry_us"`
	ExitUs  float64 `json:"exit_us"`
	StackUs float64 `json:"stack_us"`
}

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher sends pairs to a NATS subject. Publish failures are logged and
// counted; they never stop the live loop.
type Publisher struct {
	nc      conn
	subject string
	failed  int
}

// NewPublisher connects to the configured NATS server.
func NewPublisher(cfg *config.NATSConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("pingpong-live"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// HandlePair publishes one pair.
func (p *Publisher) HandlePair(seq int, pair live.Pair) error {
	data, err := json.Marshal(PairMessage{
		Seq:     seq,
		Kind:    string(pair.Kind),
		PID:     pair.PID,
		EntryUs: pair.EntryUs,
		ExitUs:  pair.ExitUs,
		StackUs: pair.StackUs(),
	})
	if err != nil {
		return err
	}

	if err := p.nc.Publish(p.subject, data); err != nil {
		if p.failed == 0 {
			log.Printf("Warning: publishing to %s: %v", p.subject, err)
		}
		p.failed++
	}
	return nil
}

// Failed returns the number of pairs that could not be published.
func (p *Publisher) Failed() int {
	return p.failed
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		return fmt.Errorf("draining NATS connection: %w", err)
	}
	log.Println("NATS connection drained and closed.")
	return nil
}
