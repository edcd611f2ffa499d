package expect

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/getmockd/expectd/pkg/fingerprint"
	"github.com/getmockd/expectd/pkg/logging"
	"github.com/getmockd/expectd/pkg/requestlog"
)

// State is the lifecycle stage of a Provider.
type State int32

// Provider states, in lifecycle order.
const (
	StateEmpty      State = iota // nothing registered or received
	StatePopulating              // expectations are being registered
	StateActive                  // requests are being resolved
	StateVerified                // Verify ran and no request arrived since
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePopulating:
		return "populating"
	case StateActive:
		return "active"
	case StateVerified:
		return "verified"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Provider keeps expected requests and their canned responses in memory,
// answers incoming requests from them, and verifies at the end of a test
// that exactly the expected requests arrived.
//
// Registration is a fluent two-step protocol:
//
//	p.Expect(fingerprint.MethodGet, "/users/1").
//	    RespondWith(200, "application/json", []byte(`{"id":1}`))
//
// A Provider is safe for concurrent use. Registration and resolution are
// serialized by a read/write lock, and the receipt ledger has its own mutex,
// so any number of server goroutines may call Resolve at once.
type Provider struct {
	mu       sync.RWMutex
	registry *registry
	err      error // first setup error

	ledger *ledger
	state  atomic.Int32

	// stateMu orders Resolve's move to StateActive against Verify's move
	// to StateVerified. resolves counts Resolve calls.
	stateMu  sync.Mutex
	resolves uint64

	logger     *slog.Logger
	requestLog requestlog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logging.OrNop(l)
	}
}

// WithRequestLog records every resolved request, repeats included, to l.
func WithRequestLog(l requestlog.Logger) Option {
	return func(p *Provider) {
		p.requestLog = l
	}
}

// NewProvider creates an empty Provider.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		registry: newRegistry(),
		ledger:   newLedger(),
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// setError records the first setup error. Later errors are logged only.
// Callers must hold p.mu.
func (p *Provider) setError(err error) {
	if p.err == nil {
		p.err = err
	}
	p.logger.Error("expectation setup error", "error", err)
}

// Err returns the first setup misuse error, or nil.
func (p *Provider) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// State returns the current lifecycle state.
func (p *Provider) State() State {
	return State(p.state.Load())
}

// Expect declares an expected request without a body. It must be followed
// by RespondWith.
func (p *Provider) Expect(method fingerprint.Method, path string) *Provider {
	return p.ExpectRequest(fingerprint.New(method, path, nil, nil))
}

// ExpectWithBody declares an expected request carrying body with the given
// Content-Type. An empty contentType adds no header.
func (p *Provider) ExpectWithBody(method fingerprint.Method, path, contentType string, body []byte) *Provider {
	var headers map[string]string
	if contentType != "" {
		headers = map[string]string{fingerprint.HeaderContentType: contentType}
	}
	return p.ExpectRequest(fingerprint.New(method, path, headers, body))
}

// ExpectRequest declares an arbitrary expected request fingerprint.
//
// Declaring while a previous declaration still has no response records
// ErrPendingExpectation; the new declaration replaces the old one.
func (p *Provider) ExpectRequest(f fingerprint.Fingerprint) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case !f.Method().Valid():
		p.setError(fmt.Errorf("%w: %q", ErrInvalidMethod, f.Method()))
	case f.Path() == "":
		p.setError(fmt.Errorf("%w: %s", ErrEmptyPath, f.Method()))
	}

	if err := p.registry.declare(f); err != nil {
		p.setError(fmt.Errorf("%w: declaring %s", err, f.String()))
	}
	p.state.CompareAndSwap(int32(StateEmpty), int32(StatePopulating))
	return p
}

// RespondWith completes the pending declaration. A nil body means the
// response has no body; a non-nil empty body is an empty body.
//
// Registering the same fingerprint again replaces the earlier response
// (last write wins). Calling RespondWith with nothing pending records
// ErrNoPendingExpectation.
func (p *Provider) RespondWith(statusCode int, contentType string, body []byte) *Provider {
	return p.RespondWithResponse(NewResponse(statusCode, contentType, body))
}

// RespondWithString is RespondWith with a string body that is always present.
func (p *Provider) RespondWithString(statusCode int, contentType, body string) *Provider {
	return p.RespondWith(statusCode, contentType, []byte(body))
}

// RespondWithResponse completes the pending declaration with resp.
func (p *Provider) RespondWithResponse(resp Response) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()

	req, replaced, err := p.registry.attach(resp)
	if err != nil {
		p.setError(fmt.Errorf("%w: status %d", err, resp.StatusCode()))
		return p
	}
	if replaced {
		p.logger.Warn("expectation replaced", "request", req.String(), "status", resp.StatusCode())
	} else {
		p.logger.Debug("expectation registered", "request", req.String(), "status", resp.StatusCode())
	}
	return p
}

// Resolve records f as received and returns the response registered for it.
// The boolean is false when no expectation matches; that is a normal result,
// not an error, and callers decide how to answer (typically 404).
//
// f is recorded even when nothing matches. A Resolve after Verify moves the
// Provider back to StateActive, so the earlier verification is stale.
func (p *Provider) Resolve(f fingerprint.Fingerprint) (Response, bool) {
	first := p.ledger.record(f)
	p.markActive()

	p.mu.RLock()
	resp, ok := p.registry.lookup(f)
	p.mu.RUnlock()

	if ok {
		p.logger.Debug("request matched", "request", f.String(), "status", resp.StatusCode(), "first", first)
	} else {
		p.logger.Info("no expectation for request", "request", f.String(), "first", first)
	}

	if p.requestLog != nil {
		entry := &requestlog.Entry{
			Method:   string(f.Method()),
			Path:     f.Path(),
			Headers:  f.Headers(),
			Body:     requestlog.TruncateBody(f.Body()),
			BodySize: len(f.Body()),
			Matched:  ok,
		}
		if ok {
			entry.ResponseStatus = resp.StatusCode()
		}
		p.requestLog.Log(entry)
	}
	return resp, ok
}

// ResolveRequest is Resolve for a request given by its parts.
func (p *Provider) ResolveRequest(method fingerprint.Method, path string, headers map[string]string, body []byte) (Response, bool) {
	return p.Resolve(fingerprint.New(method, path, headers, body))
}

// Verify checks that the set of received requests equals the set of
// expected requests. It returns nil on success and an
// *UnsatisfiedExpectationError listing every missing and unexpected request
// otherwise. A setup misuse error, or a declaration still waiting for its
// response, is returned instead of the comparison.
//
// Verify does not modify the expectations or the receipts; calling it twice
// with no Resolve in between gives the same result.
func (p *Provider) Verify() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	defer p.markVerified(p.resolveCount())

	if p.err != nil {
		return fmt.Errorf("expectation setup failed: %w", p.err)
	}
	if p.registry.pending != nil {
		return fmt.Errorf("%w: %s", ErrIncompleteExpectation, p.registry.pending.String())
	}

	received := p.ledger.snapshot()

	var missing []fingerprint.Fingerprint
	for _, req := range p.registry.requests() {
		if _, ok := received[req.Key()]; !ok {
			missing = append(missing, req)
		}
	}

	var unexpected []fingerprint.Fingerprint
	for key, f := range received {
		if !p.registry.contains(key) {
			unexpected = append(unexpected, f)
		}
	}
	fingerprint.Sort(unexpected)

	if len(missing) == 0 && len(unexpected) == 0 {
		p.logger.Debug("verification passed", "expectations", p.registry.len())
		return nil
	}

	p.logger.Warn("verification failed", "missing", len(missing), "unexpected", len(unexpected))
	return &UnsatisfiedExpectationError{Missing: missing, Unexpected: unexpected}
}

func (p *Provider) markActive() {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	p.resolves++
	p.state.Store(int32(StateActive))
}

func (p *Provider) resolveCount() uint64 {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.resolves
}

// markVerified moves to StateVerified only if no Resolve happened since gen
// was read; otherwise the result is already stale and the state stays active.
func (p *Provider) markVerified(gen uint64) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.resolves == gen {
		p.state.Store(int32(StateVerified))
	}
}

// Expected returns the registered request fingerprints, sorted by key.
func (p *Provider) Expected() []fingerprint.Fingerprint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.registry.requests()
}

// Received returns the distinct received fingerprints, sorted by key.
func (p *Provider) Received() []fingerprint.Fingerprint {
	snap := p.ledger.snapshot()
	out := make([]fingerprint.Fingerprint, 0, len(snap))
	for _, f := range snap {
		out = append(out, f)
	}
	fingerprint.Sort(out)
	return out
}

// Len returns the number of registered expectations.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.registry.len()
}
