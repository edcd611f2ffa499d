// Package metrics implements Prometheus-compatible counters, gauges and
// histograms and serves them in the text exposition format
// (text/plain; version=0.0.4).
//
// Server bundles the metrics a mock server reports:
//
//   - expectd_requests_total: labels method, status, result (matched, unmatched)
//   - expectd_request_duration_seconds: label method
//   - expectd_expectations: registered expectations
//   - expectd_verifications_total: label result (passed, failed)
//   - expectd_uptime_seconds
//
// All metrics are safe for concurrent use.
package metrics
