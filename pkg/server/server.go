package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/getmockd/expectd/pkg/expect"
	"github.com/getmockd/expectd/pkg/fingerprint"
	"github.com/getmockd/expectd/pkg/httputil"
	"github.com/getmockd/expectd/pkg/logging"
	"github.com/getmockd/expectd/pkg/metrics"
	"github.com/getmockd/expectd/pkg/report"
	"github.com/getmockd/expectd/pkg/requestlog"
)

// Defaults for Config.
const (
	DefaultAddr          = "127.0.0.1:0"
	DefaultAdminPrefix   = "/__expectd"
	DefaultNoMatchStatus = http.StatusNotFound
	DefaultMaxBodyBytes  = 10 << 20
	DefaultReadTimeout   = 30 * time.Second
	DefaultWriteTimeout  = 30 * time.Second
)

// ErrAlreadyStarted is returned by Start on a running server.
var ErrAlreadyStarted = errors.New("server already started")

// Config configures the mock server.
type Config struct {
	// Addr is the listen address. Defaults to DefaultAddr (random port).
	Addr string

	// MatchHeaders lists the request headers that become part of the
	// fingerprint. Every other header is ignored. Defaults to Content-Type.
	MatchHeaders []string

	// NoMatchStatus is the status returned when no expectation matches.
	NoMatchStatus int

	// AdminPrefix mounts the admin endpoints (health, verify, requests,
	// metrics).
	// Requests under it are not resolved. Set DisableAdmin to turn it off.
	AdminPrefix  string
	DisableAdmin bool

	// MaxBodyBytes caps the request body read for fingerprinting.
	MaxBodyBytes int64

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Logger defaults to a no-op logger.
	Logger *slog.Logger

	// RequestLog, when set, backs the admin requests endpoint. It should be
	// the same store given to the provider with expect.WithRequestLog.
	RequestLog requestlog.Store
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MatchHeaders == nil {
		c.MatchHeaders = []string{fingerprint.HeaderContentType}
	}
	if c.NoMatchStatus == 0 {
		c.NoMatchStatus = DefaultNoMatchStatus
	}
	if c.AdminPrefix == "" {
		c.AdminPrefix = DefaultAdminPrefix
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	c.Logger = logging.OrNop(c.Logger)
	return c
}

// Server serves expectations from a Provider over HTTP.
type Server struct {
	cfg      Config
	provider *expect.Provider
	router   chi.Router
	logger   *slog.Logger
	metrics  *metrics.Server

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
	done     chan struct{}
}

// New creates a Server for p. It does not listen until Start.
func New(p *expect.Provider, cfg Config) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		cfg:      cfg,
		provider: p,
		router:   chi.NewRouter(),
		logger:   cfg.Logger,
		metrics:  metrics.NewServer(),
	}
	s.routes()
	return s
}

// NewHandler returns the HTTP handler without starting a listener, for use
// with httptest or an existing server.
func NewHandler(p *expect.Provider, cfg Config) http.Handler {
	return New(p, cfg).Handler()
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recoverer)

	if !s.cfg.DisableAdmin {
		r.Route(s.cfg.AdminPrefix, func(r chi.Router) {
			r.Get("/health", s.handleHealth)
			r.Get("/verify", s.handleVerify)
			r.Get("/requests", s.handleRequests)
			r.Get("/metrics", s.handleMetrics)
		})
	}

	r.HandleFunc("/*", s.handleExpectation)
	r.NotFound(s.handleExpectation)
	r.MethodNotAllowed(s.handleExpectation)
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's metric set.
func (s *Server) Metrics() *metrics.Server {
	return s.metrics
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpSrv != nil {
		return ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}

	s.listener = ln
	s.httpSrv = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.done = make(chan struct{})

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("mock server stopped", "error", err)
		}
	}(s.httpSrv, s.done)

	s.logger.Info("mock server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// URL returns the base URL, or "" before Start.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	return "http://" + addr
}

// Shutdown stops the server and waits for in-flight requests, so every
// request that was answered is visible to a following Verify.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.httpSrv, s.done
	s.httpSrv, s.listener, s.done = nil, nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down mock server: %w", err)
	}
	<-done
	return nil
}

// HeaderBodyTruncated marks the fingerprint of a request whose body went
// over MaxBodyBytes. Such a request is recorded with the bytes read so far
// and this header, so it can never satisfy an expectation.
const HeaderBodyTruncated = "X-Expectd-Body-Truncated"

// RequestPath returns the decoded URL path of r followed by its raw query,
// e.g. "/search?q=a". Requests differing only in their query are distinct.
func RequestPath(r *http.Request) string {
	if r.URL.RawQuery == "" && !r.URL.ForceQuery {
		return r.URL.Path
	}
	return r.URL.Path + "?" + r.URL.RawQuery
}

// Fingerprint builds the fingerprint of r using only the given headers.
// The path includes the query string (see RequestPath). Repeated header
// values are joined with ", ".
func Fingerprint(r *http.Request, matchHeaders []string, body []byte) fingerprint.Fingerprint {
	var headers map[string]string
	for _, name := range matchHeaders {
		values := r.Header.Values(name)
		if len(values) == 0 {
			continue
		}
		if headers == nil {
			headers = make(map[string]string, len(matchHeaders))
		}
		headers[name] = strings.Join(values, ", ")
	}
	return fingerprint.New(fingerprint.ParseMethod(r.Method), RequestPath(r), headers, body)
}

func (s *Server) handleExpectation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.resolveTruncated(r, body, maxErr.Limit)
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large",
				fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
			s.metrics.ObserveRequest(string(fingerprint.ParseMethod(r.Method)), http.StatusRequestEntityTooLarge, false, time.Since(start))
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, "read_error", "failed to read request body")
		return
	}

	f := Fingerprint(r, s.cfg.MatchHeaders, body)
	resp, ok := s.provider.Resolve(f)
	if !ok {
		httputil.WriteText(w, s.cfg.NoMatchStatus, "no expectation for %s", f.String())
		s.metrics.ObserveRequest(string(f.Method()), s.cfg.NoMatchStatus, false, time.Since(start))
		return
	}

	if resp.HasContentType() {
		w.Header().Set("Content-Type", resp.ContentType())
	}
	w.WriteHeader(resp.StatusCode())
	if resp.HasBody() {
		_, _ = w.Write(resp.Body())
	}
	s.metrics.ObserveRequest(string(f.Method()), resp.StatusCode(), true, time.Since(start))
}

// resolveTruncated records an oversized request so it still reaches the
// ledger and shows up as unexpected.
func (s *Server) resolveTruncated(r *http.Request, partial []byte, limit int64) {
	base := Fingerprint(r, s.cfg.MatchHeaders, partial)
	headers := base.Headers()
	if headers == nil {
		headers = fingerprint.Headers{}
	}
	headers[HeaderBodyTruncated] = strconv.FormatInt(limit, 10)
	f := fingerprint.New(base.Method(), base.Path(), headers, partial)

	s.provider.Resolve(f)
	s.logger.Warn("request body too large", "request", f.String(), "limit", limit)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"state":  s.provider.State().String(),
	})
}

// handleVerify answers 200 with a passing report or 409 with the failure.
func (s *Server) handleVerify(w http.ResponseWriter, _ *http.Request) {
	rep := report.Build(s.provider.Verify())
	s.metrics.ObserveVerify(rep.Passed)
	status := http.StatusOK
	if !rep.Passed {
		status = http.StatusConflict
	}
	httputil.WriteJSON(w, status, rep)
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	if s.cfg.RequestLog == nil {
		httputil.WriteJSON(w, http.StatusOK, []*requestlog.Entry{})
		return
	}
	filter := &requestlog.Filter{
		Method: r.URL.Query().Get("method"),
		Path:   r.URL.Query().Get("path"),
	}
	httputil.WriteJSON(w, http.StatusOK, s.cfg.RequestLog.List(filter))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.Refresh(s.provider.Len())
	s.metrics.Registry.Handler().ServeHTTP(w, r)
}
