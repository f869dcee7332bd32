package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthzReportsStartingThenOK(t *testing.T) {
	s := NewServer("worker-1")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "starting" {
		t.Errorf("got status %q, want starting", body.Status)
	}
	if body.WorkerID != "worker-1" {
		t.Errorf("got worker_id %q, want worker-1", body.WorkerID)
	}

	s.MarkHealthy()

	resp2, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	var body2 healthResponse
	if err := json.NewDecoder(resp2.Body).Decode(&body2); err != nil {
		t.Fatal(err)
	}
	if body2.Status != "ok" {
		t.Errorf("got status %q after MarkHealthy, want ok", body2.Status)
	}
}

func TestMetricsEndpointExposesCounters(t *testing.T) {
	s := NewServer("worker-2")
	s.RecordPageFetched()
	s.RecordPageFetched()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
}
