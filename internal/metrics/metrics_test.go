package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordCycle(ResultOK, 1.5)
	m.RecordCycle(ResultOK, 2)
	m.RecordCycle(ResultFailed, 0.1)
	m.RecordSkipped()
	m.RecordFetchError("rss")
	m.RecordFetchError("rss")
	m.RecordFetchError("html")
	m.RecordEvicted(3)
	m.RecordEvicted(0)
	m.RecordNotification(StatusSent)
	m.RecordNotification(StatusFailed)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{name: "ok cycles", c: m.ScanCycles.WithLabelValues(ResultOK), want: 2},
		{name: "failed cycles", c: m.ScanCycles.WithLabelValues(ResultFailed), want: 1},
		{name: "skipped", c: m.ScanSkipped, want: 1},
		{name: "rss fetch errors", c: m.FetchErrors.WithLabelValues("rss"), want: 2},
		{name: "html fetch errors", c: m.FetchErrors.WithLabelValues("html"), want: 1},
		{name: "evicted", c: m.LinksEvicted, want: 3},
		{name: "sent", c: m.Notifications.WithLabelValues(StatusSent), want: 1},
		{name: "failed sends", c: m.Notifications.WithLabelValues(StatusFailed), want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.c); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if got := testutil.CollectAndCount(m.ScanDuration); got != 1 {
		t.Errorf("duration histogram series = %d, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordCycle(ResultOK, 1)
	m.RecordSkipped()
	m.RecordFetchError("rss")
	m.RecordEvicted(1)
	m.RecordNotification(StatusSent)
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordSkipped()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "feedbot_scan_skipped_total 1") {
		t.Errorf("metrics output missing skipped counter:\n%s", body)
	}
}
