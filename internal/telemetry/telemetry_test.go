package telemetry

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mrzor/pingpong-analyzer/internal/live"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(t *testing.T, sinks ...live.PairSink) {
	t.Helper()
	pairs := []live.Pair{
		{Kind: live.SendPair, PID: 1, EntryUs: 0, ExitUs: 10},
		{Kind: live.RecvPair, PID: 1, EntryUs: 20, ExitUs: 24},
		{Kind: live.SendPair, PID: 1, EntryUs: 100, ExitUs: 130},
	}
	for i, p := range pairs {
		for _, s := range sinks {
			require.NoError(t, s.HandlePair(i, p))
		}
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter(t *testing.T) {
	metrics := NewMetrics()
	stats, err := NewStats([]float64{50})
	require.NoError(t, err)
	router := NewRouter(metrics, stats)

	t.Run("summary before any pair", func(t *testing.T) {
		rec := get(t, router, "/summary")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp SummaryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Zero(t, resp.Pairs)
		assert.Empty(t, resp.Metrics)
	})

	feed(t, metrics, stats)

	t.Run("metrics", func(t *testing.T) {
		rec := get(t, router, "/metrics")
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `pingpong_pairs_total{kind="send"} 2`)
		assert.Contains(t, body, `pingpong_pairs_total{kind="recv"} 1`)
		assert.Contains(t, body, `pingpong_stack_microseconds_count{kind="send"} 2`)
	})

	t.Run("summary", func(t *testing.T) {
		rec := get(t, router, "/summary")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var resp SummaryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.Pairs)
		require.Len(t, resp.Metrics, 2)
		assert.Equal(t, SendStack, resp.Metrics[0].Name)
		assert.Equal(t, 2, resp.Metrics[0].Count)
		assert.Contains(t, resp.Metrics[0].Percentiles, "p50")
		assert.Equal(t, RecvStack, resp.Metrics[1].Name)
		assert.InDelta(t, 4.0, resp.Metrics[1].Percentiles["p50"], 1e-9)
	})

	t.Run("healthz", func(t *testing.T) {
		rec := get(t, router, "/healthz")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/summary", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestNewStats_RejectsBadPercentile(t *testing.T) {
	_, err := NewStats([]float64{101})
	assert.Error(t, err)
}

func TestServer(t *testing.T) {
	srv := httptest.NewServer(NewRouter(NewMetrics(), mustStats(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(body))
}

func mustStats(t *testing.T) *Stats {
	t.Helper()
	s, err := NewStats(nil)
	require.NoError(t, err)
	return s
}

type fakeConn struct {
	subjects []string
	messages [][]byte
	err      error
	drained  bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.messages = append(c.messages, data)
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func TestPublisher(t *testing.T) {
	nc := &fakeConn{}
	pub := &Publisher{nc: nc, subject: "pingpong.pairs"}
	feed(t, pub)

	require.Len(t, nc.messages, 3)
	assert.Equal(t, []string{"pingpong.pairs", "pingpong.pairs", "pingpong.pairs"}, nc.subjects)

	var msg PairMessage
	require.NoError(t, json.Unmarshal(nc.messages[1], &msg))
	assert.Equal(t, PairMessage{Seq: 1, Kind: "recv", PID: 1, EntryUs: 20, ExitUs: 24, StackUs: 4}, msg)

	require.NoError(t, pub.Close())
	assert.True(t, nc.drained)
}

func TestPublisher_FailuresDoNotStopTheLoop(t *testing.T) {
	nc := &fakeConn{err: errors.New("no responders")}
	pub := &Publisher{nc: nc, subject: "pingpong.pairs"}
	feed(t, pub)
	assert.Equal(t, 3, pub.Failed())
}
