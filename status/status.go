// Package status implements a minimal liveness/metrics HTTP surface for a
// running worker: /healthz for a JSON liveness check, in the same
// always-JSON REST style the teacher's console/rest.go uses, and /metrics
// for Prometheus scraping. It intentionally carries none of the teacher's
// full crawl-management dashboard (templates, sessions, link browsing) —
// only the ambient operational surface SPEC_FULL.md's status concern asks
// for.
package status

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthResponse is the /healthz body, matching the teacher rest.go
// convention of always returning JSON with an explicit version field.
type healthResponse struct {
	Version      int    `json:"version"`
	Status       string `json:"status"`
	WorkerID     string `json:"worker_id"`
	UptimeSecond int64  `json:"uptime_seconds"`
}

// Server exposes /healthz and /metrics for one worker process.
type Server struct {
	workerID  string
	startedAt time.Time
	registry  *prometheus.Registry

	pagesFetched prometheus.Counter
	domainsDone  prometheus.Counter
	internalErrs prometheus.Counter
	inFlight     prometheus.Gauge

	healthy int32 // atomic bool: 1 once MarkHealthy has been called
}

// NewServer builds a Server for workerID, registering its counters against
// a dedicated registry (not the global default) so multiple Servers in the
// same test binary don't collide.
func NewServer(workerID string) *Server {
	reg := prometheus.NewRegistry()
	s := &Server{
		workerID:  workerID,
		startedAt: time.Now(),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pacman_pages_fetched_total",
			Help: "Total pages successfully fetched and extracted by this worker.",
		}),
		domainsDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pacman_domains_completed_total",
			Help: "Total domain pipelines completed by this worker.",
		}),
		internalErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pacman_internal_errors_total",
			Help: "Total InternalError pipeline outcomes observed by this worker.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pacman_pipelines_in_flight",
			Help: "Domain pipelines currently running in this worker's cohort.",
		}),
	}
	reg.MustRegister(s.pagesFetched, s.domainsDone, s.internalErrs, s.inFlight)
	s.registry = reg
	return s
}

// Handler returns the mux.Router serving /healthz and /metrics.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, req *http.Request) {
	status := "starting"
	if atomic.LoadInt32(&s.healthy) == 1 {
		status = "ok"
	}
	resp := healthResponse{
		Version:      1,
		Status:       status,
		WorkerID:     s.workerID,
		UptimeSecond: int64(time.Since(s.startedAt).Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// MarkHealthy flips /healthz's status to "ok". package cmd calls it at
// startup, right after launching the status server and before the first
// cohort starts.
func (s *Server) MarkHealthy() { atomic.StoreInt32(&s.healthy, 1) }

// RecordPageFetched increments the pages-fetched counter.
func (s *Server) RecordPageFetched() { s.pagesFetched.Inc() }

// RecordDomainCompleted increments the domains-completed counter.
func (s *Server) RecordDomainCompleted() { s.domainsDone.Inc() }

// RecordInternalError increments the internal-error counter.
func (s *Server) RecordInternalError() { s.internalErrs.Inc() }

// SetInFlight sets the in-flight pipelines gauge.
func (s *Server) SetInFlight(n int) { s.inFlight.Set(float64(n)) }
