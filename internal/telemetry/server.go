package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/mrzor/pingpong-analyzer/internal/summary"
)

// MetricSummary is one metric in the /summary response.
type MetricSummary struct {
	Name        string             `json:"name"`
	Count       int                `json:"count"`
	Percentiles map[string]float64 `json:"percentiles"`
}

// SummaryResponse is the /summary body.
type SummaryResponse struct {
	Pairs   int             `json:"pairs"`
	Metrics []MetricSummary `json:"metrics"`
}

// APIHandler serves the live endpoints.
type APIHandler struct {
	metrics *Metrics
	stats   *Stats
}

// NewRouter routes /metrics, /summary and /healthz.
func NewRouter(metrics *Metrics, stats *Stats) *mux.Router {
	h := &APIHandler{metrics: metrics, stats: stats}

	r := mux.NewRouter()
	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	r.HandleFunc("/summary", h.summaryHandler).Methods("GET")
	r.HandleFunc("/healthz", h.healthHandler).Methods("GET")
	return r
}

func (h *APIHandler) summaryHandler(w http.ResponseWriter, _ *http.Request) {
	pairs, lines, err := h.stats.Snapshot()
	if err != nil && !errors.Is(err, summary.ErrNoData) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := SummaryResponse{Pairs: pairs, Metrics: []MetricSummary{}}
	for _, l := range lines {
		ms := MetricSummary{Name: l.Name, Count: l.Count, Percentiles: make(map[string]float64, len(l.Quantiles))}
		for _, q := range l.Quantiles {
			ms.Percentiles["p"+strconv.FormatFloat(q.Percentile, 'f', -1, 64)] = q.Value
		}
		resp.Metrics = append(resp.Metrics, ms)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Error encoding summary response: %v", err)
	}
}

func (h *APIHandler) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n")) //nolint:errcheck // Client may have gone away
}

// Server runs the HTTP API in the background.
type Server struct {
	srv *http.Server
}

// StartServer listens on addr and serves handler until Shutdown.
func StartServer(addr string, handler http.Handler) *Server {
	s := &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}}

	go func() {
		log.Printf("Telemetry server starting on %s", addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Telemetry server on %s stopped: %v", addr, err)
		}
	}()
	return s
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
