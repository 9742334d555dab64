package bpf

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/mrzor/pingpong-analyzer/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, e Event) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &e))
	return buf.Bytes()
}

func v4(a, b, c, d byte) [16]byte {
	var out [16]byte
	copy(out[:], []byte{a, b, c, d})
	return out
}

func TestEventSize(t *testing.T) {
	assert.Equal(t, EventSize, binary.Size(Event{}))
}

func TestDecode(t *testing.T) {
	in := Event{
		TimestampNs: 1_500_000,
		SockID:      0xffff8881_2345_6780,
		Pid:         4242,
		SrttUs:      87,
		Sport:       40000,
		Dport:       8080,
		Type:        EVENT_TCP_SEND,
		Af:          AF_INET,
		Saddr:       v4(100, 80, 0, 1),
		Daddr:       v4(100, 80, 0, 0),
	}

	got, err := Decode(encode(t, in))
	require.NoError(t, err)
	assert.Equal(t, in, got)

	_, err = Decode(make([]byte, 10))
	assert.Error(t, err)
}

func TestToEvent(t *testing.T) {
	base := Event{
		TimestampNs: 2_000_500,
		SockID:      7,
		Pid:         11,
		SrttUs:      30,
		Sport:       40000,
		Dport:       8080,
		Af:          AF_INET,
		Saddr:       v4(100, 80, 0, 1),
		Daddr:       v4(100, 80, 0, 0),
	}

	tests := []struct {
		name     string
		typ      uint8
		wantKind event.Kind
		wantSrc  string
		wantSp   uint16
		wantDst  string
		wantDp   uint16
	}{
		{name: "send entry travels local to remote", typ: EVENT_TCP_SEND, wantKind: event.SendEntry,
			wantSrc: "100.80.0.1", wantSp: 40000, wantDst: "100.80.0.0", wantDp: 8080},
		{name: "send exit", typ: EVENT_TCP_SEND_EXIT, wantKind: event.SendExit,
			wantSrc: "100.80.0.1", wantSp: 40000, wantDst: "100.80.0.0", wantDp: 8080},
		{name: "recv entry travels remote to local", typ: EVENT_TCP_RECV, wantKind: event.RecvEntry,
			wantSrc: "100.80.0.0", wantSp: 8080, wantDst: "100.80.0.1", wantDp: 40000},
		{name: "recv exit", typ: EVENT_TCP_RECV_EXIT, wantKind: event.RecvExit,
			wantSrc: "100.80.0.0", wantSp: 8080, wantDst: "100.80.0.1", wantDp: 40000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base
			e.Type = tt.typ
			got, ok := e.ToEvent()
			require.True(t, ok)
			assert.Equal(t, event.Event{
				TimestampUs:   2000.5,
				SocketID:      7,
				PID:           11,
				Kind:          tt.wantKind,
				SmoothedRTTUs: 30,
				SrcAddr:       tt.wantSrc,
				SrcPort:       tt.wantSp,
				DstAddr:       tt.wantDst,
				DstPort:       tt.wantDp,
			}, got)
		})
	}
}

func TestToEvent_IPv6AndUnknown(t *testing.T) {
	var src, dst [16]byte
	src[15], dst[15] = 1, 2
	src[0], dst[0] = 0xfd, 0xfd

	e := Event{Type: EVENT_TCP_SEND, Af: AF_INET6, Saddr: src, Daddr: dst}
	got, ok := e.ToEvent()
	require.True(t, ok)
	assert.Equal(t, "fd00::1", got.SrcAddr)
	assert.Equal(t, "fd00::2", got.DstAddr)

	e.Af = 0
	got, ok = e.ToEvent()
	require.True(t, ok)
	assert.Equal(t, "?", got.SrcAddr)

	e.Type = 99
	_, ok = e.ToEvent()
	assert.False(t, ok)
}
