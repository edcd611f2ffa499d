package metrics

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrLabelCountMismatch is returned when the number of label values doesn't
// match the metric's label names.
var ErrLabelCountMismatch = errors.New("label count mismatch")

// MetricType is the Prometheus TYPE of a metric.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Sample is one exposition line.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Metric is implemented by Counter, Gauge and Histogram.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	Collect() []Sample
}

// atomicFloat64 stores float64 bits in a uint64.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (a *atomicFloat64) Load() float64 { return math.Float64frombits(a.bits.Load()) }

func (a *atomicFloat64) Store(v float64) { a.bits.Store(math.Float64bits(v)) }

func (a *atomicFloat64) Add(delta float64) {
	for {
		old := a.bits.Load()
		if a.bits.CompareAndSwap(old, math.Float64bits(math.Float64frombits(old)+delta)) {
			return
		}
	}
}

// family holds the per-label-combination children of a metric.
type family[T any] struct {
	name       string
	help       string
	labelNames []string

	mu       sync.RWMutex
	children map[string]*child[T]
	newValue func() *T
}

type child[T any] struct {
	labels map[string]string
	value  *T
}

func (f *family[T]) init(name, help string, labelNames []string, newValue func() *T) {
	f.name = name
	f.help = help
	f.labelNames = labelNames
	f.children = make(map[string]*child[T])
	f.newValue = newValue
}

func newFloat() *atomicFloat64 { return new(atomicFloat64) }

func (f *family[T]) Name() string { return f.name }
func (f *family[T]) Help() string { return f.help }

func (f *family[T]) with(values []string) (*T, error) {
	if len(values) != len(f.labelNames) {
		return nil, fmt.Errorf("%w: %s expected %d labels, got %d", ErrLabelCountMismatch, f.name, len(f.labelNames), len(values))
	}
	key := strings.Join(values, "\x00")

	f.mu.RLock()
	c, ok := f.children[key]
	f.mu.RUnlock()
	if ok {
		return c.value, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok = f.children[key]; !ok {
		labels := make(map[string]string, len(values))
		for i, name := range f.labelNames {
			labels[name] = values[i]
		}
		c = &child[T]{labels: labels, value: f.newValue()}
		f.children[key] = c
	}
	return c.value, nil
}

// each visits children ordered by label values.
func (f *family[T]) each(fn func(labels map[string]string, v *T)) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	keys := make([]string, 0, len(f.children))
	for k := range f.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c := f.children[k]
		fn(c.labels, c.value)
	}
}

// Counter only goes up.
type Counter struct {
	family[atomicFloat64]
}

func (c *Counter) Type() MetricType { return MetricTypeCounter }

// Inc adds one to the child identified by values.
func (c *Counter) Inc(values ...string) error {
	v, err := c.with(values)
	if err != nil {
		return err
	}
	v.Add(1)
	return nil
}

// Value returns the current value of the child identified by values.
func (c *Counter) Value(values ...string) float64 {
	v, err := c.with(values)
	if err != nil {
		return 0
	}
	return v.Load()
}

func (c *Counter) Collect() []Sample {
	var out []Sample
	c.each(func(labels map[string]string, v *atomicFloat64) {
		out = append(out, Sample{Name: c.name, Labels: labels, Value: v.Load()})
	})
	return out
}

// Gauge can go up and down.
type Gauge struct {
	family[atomicFloat64]
}

func (g *Gauge) Type() MetricType { return MetricTypeGauge }

// Set sets the child identified by values.
func (g *Gauge) Set(value float64, values ...string) error {
	v, err := g.with(values)
	if err != nil {
		return err
	}
	v.Store(value)
	return nil
}

// Value returns the current value of the child identified by values.
func (g *Gauge) Value(values ...string) float64 {
	v, err := g.with(values)
	if err != nil {
		return 0
	}
	return v.Load()
}

func (g *Gauge) Collect() []Sample {
	var out []Sample
	g.each(func(labels map[string]string, v *atomicFloat64) {
		out = append(out, Sample{Name: g.name, Labels: labels, Value: v.Load()})
	})
	return out
}

type histogramValue struct {
	counts []atomic.Uint64
	sum    atomicFloat64
	count  atomic.Uint64
}

// Histogram counts observations into cumulative buckets.
type Histogram struct {
	family[histogramValue]
	buckets []float64
}

func (h *Histogram) Type() MetricType { return MetricTypeHistogram }

// Observe records value for the child identified by values.
func (h *Histogram) Observe(value float64, values ...string) error {
	v, err := h.with(values)
	if err != nil {
		return err
	}
	for i, ub := range h.buckets {
		if value <= ub {
			v.counts[i].Add(1)
		}
	}
	v.sum.Add(value)
	v.count.Add(1)
	return nil
}

func (h *Histogram) Collect() []Sample {
	var out []Sample
	h.each(func(labels map[string]string, v *histogramValue) {
		for i, ub := range h.buckets {
			bl := make(map[string]string, len(labels)+1)
			for k, val := range labels {
				bl[k] = val
			}
			bl["le"] = formatFloat(ub)
			out = append(out, Sample{Name: h.name + "_bucket", Labels: bl, Value: float64(v.counts[i].Load())})
		}
		out = append(out,
			Sample{Name: h.name + "_sum", Labels: labels, Value: v.sum.Load()},
			Sample{Name: h.name + "_count", Labels: labels, Value: float64(v.count.Load())},
		)
	})
	return out
}

// DefaultBuckets are request duration buckets in seconds.
var DefaultBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Registry holds metrics and serves them in Prometheus text format.
type Registry struct {
	mu      sync.RWMutex
	metrics []Metric
	names   map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// NewCounter creates and registers a counter.
func (r *Registry) NewCounter(name, help string, labels ...string) *Counter {
	c := &Counter{}
	c.init(name, help, labels, newFloat)
	r.register(c)
	return c
}

// NewGauge creates and registers a gauge.
func (r *Registry) NewGauge(name, help string, labels ...string) *Gauge {
	g := &Gauge{}
	g.init(name, help, labels, newFloat)
	r.register(g)
	return g
}

// NewHistogram creates and registers a histogram. A +Inf bucket is appended.
func (r *Registry) NewHistogram(name, help string, buckets []float64, labels ...string) *Histogram {
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	if len(sorted) == 0 || !math.IsInf(sorted[len(sorted)-1], 1) {
		sorted = append(sorted, math.Inf(1))
	}
	h := &Histogram{buckets: sorted}
	h.init(name, help, labels, func() *histogramValue {
		return &histogramValue{counts: make([]atomic.Uint64, len(sorted))}
	})
	r.register(h)
	return h
}

// register panics on a duplicate name; duplicates produce invalid output.
func (r *Registry) register(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[m.Name()]; exists {
		panic("duplicate metric name: " + m.Name())
	}
	r.names[m.Name()] = struct{}{}
	r.metrics = append(r.metrics, m)
}

// WriteTo writes every metric with at least one sample.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	r.mu.RLock()
	metrics := append([]Metric(nil), r.metrics...)
	r.mu.RUnlock()

	var b strings.Builder
	for _, m := range metrics {
		samples := m.Collect()
		if len(samples) == 0 {
			continue
		}
		fmt.Fprintf(&b, "# HELP %s %s\n", m.Name(), escape(m.Help(), false))
		fmt.Fprintf(&b, "# TYPE %s %s\n", m.Name(), m.Type())
		for _, s := range samples {
			if len(s.Labels) == 0 {
				fmt.Fprintf(&b, "%s %s\n", s.Name, formatFloat(s.Value))
			} else {
				fmt.Fprintf(&b, "%s{%s} %s\n", s.Name, formatLabels(s.Labels), formatFloat(s.Value))
			}
		}
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Handler serves the registry as a /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = r.WriteTo(w)
	})
}

func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + `="` + escape(labels[k], true) + `"`
	}
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case v == math.Trunc(v) && math.Abs(v) < 1e15:
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%g", v)
}

func escape(s string, quote bool) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	if quote {
		s = strings.ReplaceAll(s, `"`, `\"`)
	}
	return s
}
