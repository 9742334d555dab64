package event

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies the instrumentation point that produced an event.
type Kind uint8

// Event kinds, in the order a well-formed exchange produces them.
const (
	KindUnknown Kind = iota
	SendEntry
	SendExit
	RecvEntry
	RecvExit
)

var kindNames = [...]string{
	KindUnknown: "unknown",
	SendEntry:   "send_entry",
	SendExit:    "send_exit",
	RecvEntry:   "recv_entry",
	RecvExit:    "recv_exit",
}

// String returns the name the capture program prints for k.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a printed type name back to a Kind.
func ParseKind(s string) (Kind, bool) {
	for k := SendEntry; k <= RecvExit; k++ {
		if kindNames[k] == s {
			return k, true
		}
	}
	return KindUnknown, false
}

// IsSend reports whether k belongs to the send path.
func (k Kind) IsSend() bool { return k == SendEntry || k == SendExit }

// IsEntry reports whether k marks the start of a kernel call.
func (k Kind) IsEntry() bool { return k == SendEntry || k == RecvEntry }

// Event is one instrumentation record.
type Event struct {
	TimestampUs   float64
	SocketID      uint64
	PID           uint32
	Kind          Kind
	SmoothedRTTUs uint32
	SrcAddr       string
	SrcPort       uint16
	DstAddr       string
	DstPort       uint16
}

// Flow reports whether the event travels from src to dst.
func (e Event) Flow(src, dst string) bool {
	return e.SrcAddr == src && e.DstAddr == dst
}

var (
	lineRe = regexp.MustCompile(`ts:(\d+)\s+sock:(\d+)\s+pid:(\d+)\s+type:(\w+)\s+srtt:(\d+)\s+(.+)`)
	addrRe = regexp.MustCompile(`^(\[?[0-9A-Fa-f:.]+\]?):(\d+)\s*->\s*(\[?[0-9A-Fa-f:.]+\]?):(\d+)`)
	liveRe = regexp.MustCompile(`ts:(\d+)\s+(?:sock:\d+\s+)?pid:(\d+)\s+type:(\w+)`)
)

// ParseLine parses one capture log line. It reports false for any line that
// does not follow the full grammar.
func ParseLine(line string) (Event, bool) {
	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}

	ts, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return Event{}, false
	}
	sock, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		return Event{}, false
	}
	pid, err := strconv.ParseUint(m[3], 10, 32)
	if err != nil {
		return Event{}, false
	}
	kind, ok := ParseKind(m[4])
	if !ok {
		return Event{}, false
	}
	srtt, err := strconv.ParseUint(m[5], 10, 32)
	if err != nil {
		return Event{}, false
	}

	a := addrRe.FindStringSubmatch(strings.TrimSpace(m[6]))
	if a == nil {
		return Event{}, false
	}
	sport, err := strconv.ParseUint(a[2], 10, 16)
	if err != nil {
		return Event{}, false
	}
	dport, err := strconv.ParseUint(a[4], 10, 16)
	if err != nil {
		return Event{}, false
	}

	return Event{
		TimestampUs:   NanosToMicros(ts),
		SocketID:      sock,
		PID:           uint32(pid),
		Kind:          kind,
		SmoothedRTTUs: uint32(srtt),
		SrcAddr:       stripBrackets(a[1]),
		SrcPort:       uint16(sport),
		DstAddr:       stripBrackets(a[3]),
		DstPort:       uint16(dport),
	}, true
}

// FormatLine renders e in the full capture grammar. ParseLine(FormatLine(e))
// yields e back, up to float rounding of the timestamp.
func FormatLine(e Event) string {
	return fmt.Sprintf("ts:%d sock:%d pid:%d type:%s srtt:%d %s:%d -> %s:%d",
		MicrosToNanos(e.TimestampUs), e.SocketID, e.PID, e.Kind, e.SmoothedRTTUs,
		bracket(e.SrcAddr), e.SrcPort, bracket(e.DstAddr), e.DstPort)
}

// LiveEvent is the reduced record consumed by the live matcher.
type LiveEvent struct {
	TimestampUs float64
	PID         uint32
	Kind        Kind
}

// ParseLiveLine parses a reduced live line. Full capture lines are accepted
// too; their extra fields are ignored.
func ParseLiveLine(line string) (LiveEvent, bool) {
	m := liveRe.FindStringSubmatch(line)
	if m == nil {
		return LiveEvent{}, false
	}
	ts, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return LiveEvent{}, false
	}
	pid, err := strconv.ParseUint(m[2], 10, 32)
	if err != nil {
		return LiveEvent{}, false
	}
	kind, ok := ParseKind(m[3])
	if !ok {
		return LiveEvent{}, false
	}
	return LiveEvent{TimestampUs: NanosToMicros(ts), PID: uint32(pid), Kind: kind}, true
}

// NanosToMicros converts a capture timestamp to microseconds.
func NanosToMicros(ns uint64) float64 {
	return float64(ns) / 1000.0
}

// MicrosToNanos is the inverse of NanosToMicros.
func MicrosToNanos(us float64) uint64 {
	if us <= 0 {
		return 0
	}
	return uint64(math.Round(us * 1000.0))
}

func stripBrackets(addr string) string {
	return strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
}

func bracket(addr string) string {
	if strings.Contains(addr, ":") {
		return "[" + addr + "]"
	}
	return addr
}
