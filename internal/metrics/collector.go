// Package metrics exposes counters, gauges and histograms in the Prometheus
// text exposition format without pulling in prometheus/client_golang.
package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide registry.
var Collector = NewRegistry()

// Registry aggregates named series. Series are created lazily and live for
// the whole process.
type Registry struct {
	counters   sync.Map // key -> *Counter
	gauges     sync.Map // key -> *Gauge
	histograms sync.Map // key -> *Histogram
	startTime  time.Time
}

func NewRegistry() *Registry {
	return &Registry{startTime: time.Now()}
}

func (r *Registry) Uptime() time.Duration {
	return time.Since(r.startTime)
}

type series struct {
	name   string
	help   string
	labels string
}

func (s series) key() string { return s.name + "{" + s.labels + "}" }

// Counter only goes up.
type Counter struct {
	series
	value atomic.Int64
}

func (c *Counter) Inc() { c.value.Add(1) }
func (c *Counter) Add(n int64) { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge goes up and down.
type Gauge struct {
	series
	value atomic.Int64
}

func (g *Gauge) Set(v int64) { g.value.Store(v) }
func (g *Gauge) Inc() { g.value.Add(1) }
func (g *Gauge) Dec() { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram counts observations into cumulative buckets.
type Histogram struct {
	series
	mu      sync.Mutex
	count   int64
	sum     float64
	bounds  []float64
	buckets []int64
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.buckets[i]++
		}
	}
}

// Count returns the number of observations so far.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (r *Registry) Counter(name, help, labels string) *Counter {
	c := &Counter{series: series{name, help, labels}}
	actual, _ := r.counters.LoadOrStore(c.key(), c)
	return actual.(*Counter)
}

func (r *Registry) Gauge(name, help, labels string) *Gauge {
	g := &Gauge{series: series{name, help, labels}}
	actual, _ := r.gauges.LoadOrStore(g.key(), g)
	return actual.(*Gauge)
}

func (r *Registry) Histogram(name, help, labels string, bounds []float64) *Histogram {
	key := series{name, help, labels}.key()
	if v, ok := r.histograms.Load(key); ok {
		return v.(*Histogram)
	}
	sorted := append([]float64(nil), bounds...)
	sort.Float64s(sorted)
	h := &Histogram{
		series:  series{name, help, labels},
		bounds:  sorted,
		buckets: make([]int64, len(sorted)),
	}
	actual, _ := r.histograms.LoadOrStore(key, h)
	return actual.(*Histogram)
}

// Handler renders every registered series.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WriteTo(w)
	}
}

// WriteTo writes the exposition text. Series are sorted by key so the output
// is stable between scrapes.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# HELP babas_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(&sb, "# TYPE babas_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "babas_uptime_seconds %d\n", int64(r.Uptime().Seconds()))

	writeScalar(&sb, "counter", collect[*Counter](&r.counters), func(c *Counter) (series, int64) {
		return c.series, c.Value()
	})
	writeScalar(&sb, "gauge", collect[*Gauge](&r.gauges), func(g *Gauge) (series, int64) {
		return g.series, g.Value()
	})

	for _, h := range collect[*Histogram](&r.histograms) {
		h.mu.Lock()
		fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
		sep := ""
		if h.labels != "" {
			sep = h.labels + ","
		}
		for i, le := range h.bounds {
			bound := fmt.Sprintf("%g", le)
			if math.IsInf(le, 1) {
				bound = "+Inf"
			}
			fmt.Fprintf(&sb, "%s_bucket{%sle=\"%s\"} %d\n", h.name, sep, bound, h.buckets[i])
		}
		fmt.Fprintf(&sb, "%s_count%s %d\n", h.name, braced(h.labels), h.count)
		fmt.Fprintf(&sb, "%s_sum%s %f\n", h.name, braced(h.labels), h.sum)
		h.mu.Unlock()
	}

	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

func collect[T interface{ key() string }](m *sync.Map) []T {
	var out []T
	m.Range(func(_, v any) bool {
		out = append(out, v.(T))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].key() < out[j].key() })
	return out
}

func writeScalar[T any](sb *strings.Builder, kind string, items []T, read func(T) (series, int64)) {
	helpWritten := make(map[string]bool)
	for _, it := range items {
		s, v := read(it)
		if !helpWritten[s.name] {
			fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s %s\n", s.name, s.help, s.name, kind)
			helpWritten[s.name] = true
		}
		fmt.Fprintf(sb, "%s%s %d\n", s.name, braced(s.labels), v)
	}
}

func braced(labels string) string {
	if labels == "" {
		return ""
	}
	return "{" + labels + "}"
}

// Series shared across packages.
var (
	MessagesTotal  = Collector.Counter("babas_messages_total", "User messages accepted", "")
	BusyRejections = Collector.Counter("babas_busy_rejections_total", "Submissions rejected while a reply was pending", "")
	ActiveSessions = Collector.Gauge("babas_active_sessions", "Chat sessions held in memory", "")
	WSConnections  = Collector.Gauge("babas_ws_connections", "Open websocket connections", "")

	ModelLatency = Collector.Histogram("babas_model_latency_seconds", "Language model call latency in seconds", "",
		[]float64{0.5, 1, 2, 5, 10, 30, 60, 120})
)

// Replies counts gateway answers by outcome (ok, empty, error, no_credential).
func Replies(outcome string) *Counter {
	return Collector.Counter("babas_replies_total", "Assistant replies by outcome", fmt.Sprintf("outcome=%q", outcome))
}
