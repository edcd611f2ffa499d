package metrics

import (
	"strconv"
	"time"
)

// Result label values for RequestsTotal.
const (
	ResultMatched   = "matched"
	ResultUnmatched = "unmatched"
)

// Server groups the metrics one mock server reports. Each server owns its
// registry so parallel tests never share counters.
type Server struct {
	Registry *Registry

	// RequestsTotal counts resolved requests. Labels: method, status, result.
	RequestsTotal *Counter
	// RequestDuration observes handling time. Labels: method.
	RequestDuration *Histogram
	// Expectations is the number of registered expectations.
	Expectations *Gauge
	// VerificationsTotal counts verify calls. Labels: result (passed, failed).
	VerificationsTotal *Counter
	// UptimeSeconds is refreshed on every scrape.
	UptimeSeconds *Gauge

	started time.Time
}

// NewServer creates the metric set with a fresh registry.
func NewServer() *Server {
	r := NewRegistry()
	return &Server{
		Registry: r,
		RequestsTotal: r.NewCounter(
			"expectd_requests_total",
			"Total number of requests resolved against expectations",
			"method", "status", "result",
		),
		RequestDuration: r.NewHistogram(
			"expectd_request_duration_seconds",
			"Duration of expectation requests in seconds",
			DefaultBuckets,
			"method",
		),
		Expectations: r.NewGauge(
			"expectd_expectations",
			"Number of registered expectations",
		),
		VerificationsTotal: r.NewCounter(
			"expectd_verifications_total",
			"Total number of verifications by result",
			"result",
		),
		UptimeSeconds: r.NewGauge(
			"expectd_uptime_seconds",
			"Server uptime in seconds",
		),
		started: time.Now(),
	}
}

// ObserveRequest records one resolved request.
func (s *Server) ObserveRequest(method string, status int, matched bool, d time.Duration) {
	result := ResultUnmatched
	if matched {
		result = ResultMatched
	}
	_ = s.RequestsTotal.Inc(method, strconv.Itoa(status), result)
	_ = s.RequestDuration.Observe(d.Seconds(), method)
}

// ObserveVerify records one verification.
func (s *Server) ObserveVerify(passed bool) {
	result := "failed"
	if passed {
		result = "passed"
	}
	_ = s.VerificationsTotal.Inc(result)
}

// Refresh updates the point-in-time gauges before a scrape.
func (s *Server) Refresh(expectations int) {
	_ = s.Expectations.Set(float64(expectations))
	_ = s.UptimeSeconds.Set(time.Since(s.started).Seconds())
}
