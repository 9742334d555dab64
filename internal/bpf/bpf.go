// Package bpf defines the ring-buffer record emitted by the ping-pong capture
// program and its conversion to events.
package bpf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/mrzor/pingpong-analyzer/internal/event"
)

// Event type constants matching the capture program.
//
//nolint:revive,staticcheck // ALL_CAPS naming matches C/kernel conventions
const (
	EVENT_TCP_SEND      = 1
	EVENT_TCP_RECV      = 2
	EVENT_TCP_SEND_EXIT = 3
	EVENT_TCP_RECV_EXIT = 4
)

// Address families as reported in Event.Af.
//
//nolint:revive,staticcheck // ALL_CAPS naming matches C/kernel conventions
const (
	AF_INET  = 2
	AF_INET6 = 10
)

// EventSize is the encoded size of Event.
const EventSize = 64

// Event matches the C struct written to the "events" ring buffer. IPv4
// addresses occupy the first four bytes of Saddr and Daddr. Sport is the
// local port and Dport the remote one, both in host order.
type Event struct {
	TimestampNs uint64
	SockID      uint64
	Pid         uint32
	SrttUs      uint32
	Sport       uint16
	Dport       uint16
	Type        uint8
	Af          uint8
	_           [2]byte // Padding
	Saddr       [16]byte
	Daddr       [16]byte
}

// Decode parses one ring-buffer sample.
func Decode(raw []byte) (Event, error) {
	var e Event
	if len(raw) < EventSize {
		return e, fmt.Errorf("short sample: %d bytes, want %d", len(raw), EventSize)
	}
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &e); err != nil {
		return e, fmt.Errorf("parsing event: %w", err)
	}
	return e, nil
}

// Kind maps the record type to an event kind.
func (e *Event) Kind() (event.Kind, bool) {
	switch e.Type {
	case EVENT_TCP_SEND:
		return event.SendEntry, true
	case EVENT_TCP_SEND_EXIT:
		return event.SendExit, true
	case EVENT_TCP_RECV:
		return event.RecvEntry, true
	case EVENT_TCP_RECV_EXIT:
		return event.RecvExit, true
	default:
		return event.KindUnknown, false
	}
}

func (e *Event) addr(raw [16]byte) string {
	switch e.Af {
	case AF_INET:
		return netip.AddrFrom4([4]byte(raw[:4])).String()
	case AF_INET6:
		return netip.AddrFrom16(raw).String()
	default:
		return "?"
	}
}

// ToEvent converts the record. Send events travel local to remote and
// receive events remote to local, so the address pair follows the data.
func (e *Event) ToEvent() (event.Event, bool) {
	kind, ok := e.Kind()
	if !ok {
		return event.Event{}, false
	}

	local, remote := e.addr(e.Saddr), e.addr(e.Daddr)
	out := event.Event{
		TimestampUs:   event.NanosToMicros(e.TimestampNs),
		SocketID:      e.SockID,
		PID:           e.Pid,
		Kind:          kind,
		SmoothedRTTUs: e.SrttUs,
	}
	if kind.IsSend() {
		out.SrcAddr, out.SrcPort, out.DstAddr, out.DstPort = local, e.Sport, remote, e.Dport
	} else {
		out.SrcAddr, out.SrcPort, out.DstAddr, out.DstPort = remote, e.Dport, local, e.Sport
	}
	return out, true
}
