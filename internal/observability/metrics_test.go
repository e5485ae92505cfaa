package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsNilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.IncRelayDelivered("chunk")
	m.AddReaped(3)
	m.LiveConnectionOpened()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("nil metrics handler: expected 404, got %d", rec.Code)
	}
}

func TestMetricsExposition(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.IncRelayDelivered("chunk")
	m.IncRelayDelivered("chunk")
	m.IncCallback("final")
	m.AddReaped(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)
	for _, want := range []string{
		`cr_relay_deliveries_total{event="chunk"} 2`,
		`cr_callbacks_total{outcome="final"} 1`,
		`cr_reaped_connections_total 2`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in exposition", want)
		}
	}
}
