package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistry_CounterIsShared(t *testing.T) {
	r := NewRegistry()
	a := r.Counter("x_total", "help", "")
	b := r.Counter("x_total", "help", "")
	a.Inc()
	b.Add(2)
	if a.Value() != 3 {
		t.Fatalf("expected 3, got %d", a.Value())
	}
}

func TestRegistry_HandlerRendersSeries(t *testing.T) {
	r := NewRegistry()
	r.Counter("replies_total", "Replies", `outcome="ok"`).Inc()
	r.Gauge("sessions", "Sessions", "").Set(4)
	h := r.Histogram("latency_seconds", "Latency", "", []float64{1, 0.5})
	h.Observe(0.7)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`replies_total{outcome="ok"} 1`,
		"# TYPE sessions gauge",
		"sessions 4",
		`latency_seconds_bucket{le="0.5"} 0`,
		`latency_seconds_bucket{le="1"} 1`,
		"latency_seconds_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in output:\n%s", want, body)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestReplies_LabelsByOutcome(t *testing.T) {
	before := Replies("empty").Value()
	Replies("empty").Inc()
	if Replies("empty").Value() != before+1 {
		t.Fatal("outcome counter not shared")
	}
}
