package testing

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/getmockd/expectd/pkg/expect"
	"github.com/getmockd/expectd/pkg/fingerprint"
	"github.com/getmockd/expectd/pkg/report"
	"github.com/getmockd/expectd/pkg/requestlog"
	"github.com/getmockd/expectd/pkg/server"
)

// MockServer is a test helper that serves expectations over HTTP and
// verifies them when the test ends.
type MockServer struct {
	t        testing.TB
	provider *expect.Provider
	store    *requestlog.MemoryStore
	cfg      server.Config

	mu         sync.Mutex
	httpSrv    *httptest.Server
	baseURL    string
	autoVerify bool
}

// Option configures a MockServer.
type Option func(*MockServer)

// WithMatchHeaders sets which request headers take part in matching.
// The default is Content-Type only.
func WithMatchHeaders(names ...string) Option {
	return func(m *MockServer) {
		m.cfg.MatchHeaders = names
	}
}

// WithNoMatchStatus sets the status code returned for unexpected requests.
func WithNoMatchStatus(status int) Option {
	return func(m *MockServer) {
		m.cfg.NoMatchStatus = status
	}
}

// WithLogger routes provider and server logs to l.
func WithLogger(l *slog.Logger) Option {
	return func(m *MockServer) {
		m.cfg.Logger = l
	}
}

// WithoutAutoVerify disables the verification that otherwise runs when the
// test finishes.
func WithoutAutoVerify() Option {
	return func(m *MockServer) {
		m.autoVerify = false
	}
}

// New creates a mock server for t. Unless WithoutAutoVerify is given, the
// expectations are verified in t.Cleanup after the server is stopped.
func New(t testing.TB, opts ...Option) *MockServer {
	t.Helper()

	m := &MockServer{
		t:          t,
		store:      requestlog.NewMemoryStore(requestlog.DefaultMaxEntries),
		autoVerify: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cfg.RequestLog = m.store
	m.provider = expect.NewProvider(
		expect.WithLogger(m.cfg.Logger),
		expect.WithRequestLog(m.store),
	)

	t.Cleanup(func() {
		m.Stop()
		if m.autoVerify && !t.Failed() {
			m.AssertVerified(t)
		}
	})
	return m
}

// Start starts the server and returns its base URL. Calling Start again
// returns the same URL. Expectations may be added before or after Start.
func (m *MockServer) Start() string {
	m.t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpSrv != nil {
		return m.baseURL
	}
	m.httpSrv = httptest.NewServer(server.NewHandler(m.provider, m.cfg))
	m.baseURL = m.httpSrv.URL
	return m.baseURL
}

// Stop shuts the server down and waits for in-flight requests. It is safe
// to call more than once.
func (m *MockServer) Stop() {
	m.mu.Lock()
	srv := m.httpSrv
	m.httpSrv = nil
	m.mu.Unlock()

	if srv != nil {
		srv.Close()
	}
}

// URL returns the base URL, or "" if Start has not been called.
func (m *MockServer) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseURL
}

// Client returns an http.Client for the server.
func (m *MockServer) Client() *http.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.httpSrv != nil {
		return m.httpSrv.Client()
	}
	return http.DefaultClient
}

// Expect starts an expectation for a request without a body.
//
//	mock.Expect("GET", "/users/1").RespondJSON(200, user)
func (m *MockServer) Expect(method, path string) *ExpectationBuilder {
	return &ExpectationBuilder{
		server: m,
		method: fingerprint.ParseMethod(method),
		path:   path,
	}
}

// ExpectWithBody starts an expectation for a request with a body.
func (m *MockServer) ExpectWithBody(method, path, contentType, body string) *ExpectationBuilder {
	return m.Expect(method, path).WithContentType(contentType).WithBody(body)
}

// register adds one expectation and fails the test on setup misuse.
func (m *MockServer) register(f fingerprint.Fingerprint, resp expect.Response) {
	m.t.Helper()
	if err := m.provider.ExpectRequest(f).RespondWithResponse(resp).Err(); err != nil {
		m.t.Fatalf("registering expectation %s: %v", f, err)
	}
}

// Provider returns the underlying expectation provider.
func (m *MockServer) Provider() *expect.Provider {
	return m.provider
}

// Verify checks that exactly the expected requests were received.
func (m *MockServer) Verify() error {
	return m.provider.Verify()
}

// AssertVerified fails t with a full report if verification fails.
func (m *MockServer) AssertVerified(t testing.TB) {
	t.Helper()

	err := m.Verify()
	if err == nil {
		return
	}
	var buf bytes.Buffer
	_ = report.WriteText(&buf, report.Build(err))
	t.Errorf("%s", buf.String())
}

// Requests returns every request received, oldest first, repeats included.
func (m *MockServer) Requests() []RequestLog {
	entries := m.store.List(nil)
	out := make([]RequestLog, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = RequestLog{
			Method:  e.Method,
			Path:    e.Path,
			Headers: e.Headers,
			Body:    e.Body,
			Matched: e.Matched,
			Status:  e.ResponseStatus,
		}
	}
	return out
}

// AssertCalled asserts that method and path were requested at least once.
func (m *MockServer) AssertCalled(t testing.TB, method, path string) {
	t.Helper()
	if m.countCalls(method, path) == 0 {
		t.Errorf("expected %s %s to be called, but it was not called", method, path)
	}
}

// AssertCalledTimes asserts that method and path were requested exactly n times.
func (m *MockServer) AssertCalledTimes(t testing.TB, method, path string, times int) {
	t.Helper()
	if count := m.countCalls(method, path); count != times {
		t.Errorf("expected %s %s to be called %d times, but was called %d times",
			method, path, times, count)
	}
}

// AssertNotCalled asserts that method and path were never requested.
func (m *MockServer) AssertNotCalled(t testing.TB, method, path string) {
	t.Helper()
	if count := m.countCalls(method, path); count > 0 {
		t.Errorf("expected %s %s to not be called, but it was called %d times",
			method, path, count)
	}
}

func (m *MockServer) countCalls(method, path string) int {
	method = string(fingerprint.ParseMethod(method))
	count := 0
	for _, e := range m.store.List(&requestlog.Filter{Method: method}) {
		if e.Path == path {
			count++
		}
	}
	return count
}
