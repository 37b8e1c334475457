package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// The standalone listener used by the worker binary must expose the
// pipeline collectors, not just runtime metrics.
func TestStandaloneMetricsIncludePipelineCollectors(t *testing.T) {
	ObserveFetch("itaka", "http", nil, 8*time.Millisecond)
	ObserveCrawlStep("itaka", "continued")
	ObservePersist("itaka", "created")

	rr := httptest.NewRecorder()
	metricsMux().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, series := range []string{
		"holidays_fetch_requests_total",
		"holidays_crawl_steps_total",
		"holidays_persist_outcomes_total",
	} {
		if !strings.Contains(out, series) {
			t.Fatalf("expected %s in standalone metrics output", series)
		}
	}
}
