package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHandlerExposesTickCounter(t *testing.T) {
	TicksTotal.WithLabelValues(ResultOK).Inc()
	SnapshotFailuresTotal.Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "p2pwatcher_ticks_total" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("p2pwatcher_ticks_total metric not found")
	}

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "p2pwatcher_snapshot_failures_total") {
		t.Fatalf("scrape output missing snapshot failures counter")
	}
}
