package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRegisterTwice(t *testing.T) {
	Register()
	Register()
}

func TestObserveStatus(t *testing.T) {
	before := testutil.ToFloat64(StatusComputationsTotal.WithLabelValues("5 - Terminée"))
	ObserveStatus("5 - Terminée", 50*time.Microsecond)

	if got := testutil.ToFloat64(StatusComputationsTotal.WithLabelValues("5 - Terminée")); got != before+1 {
		t.Errorf("status counter = %v, want %v", got, before+1)
	}
}

func TestObserveCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(ProcedureCacheLookupsTotal.WithLabelValues("hit"))
	misses := testutil.ToFloat64(ProcedureCacheLookupsTotal.WithLabelValues("miss"))

	ObserveCacheLookup(true)
	ObserveCacheLookup(false)
	ObserveCacheLookup(false)

	if got := testutil.ToFloat64(ProcedureCacheLookupsTotal.WithLabelValues("hit")); got != hits+1 {
		t.Errorf("hits = %v, want %v", got, hits+1)
	}
	if got := testutil.ToFloat64(ProcedureCacheLookupsTotal.WithLabelValues("miss")); got != misses+2 {
		t.Errorf("misses = %v, want %v", got, misses+2)
	}
}

func TestObserveRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "404"))
	ObserveRequest("GET", 404, 3*time.Millisecond)

	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "404")); got != before+1 {
		t.Errorf("requests = %v, want %v", got, before+1)
	}
}

func TestObserveRequestKeepsSubMillisecondDurations(t *testing.T) {
	ObserveRequest("OPTIONS", 204, 400*time.Microsecond)

	var m dto.Metric
	observer := HTTPRequestDuration.WithLabelValues("OPTIONS")
	if err := observer.(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	h := m.GetHistogram()
	if got := h.GetSampleSum(); got < 0.399 || got > 0.401 {
		t.Errorf("sample sum = %v ms, want 0.4", got)
	}
	want := map[float64]uint64{0.25: 0, 0.5: 1, 1: 1}
	for _, b := range h.GetBucket() {
		if n, ok := want[b.GetUpperBound()]; ok && b.GetCumulativeCount() != n {
			t.Errorf("bucket le=%v count = %d, want %d", b.GetUpperBound(), b.GetCumulativeCount(), n)
		}
	}
}
