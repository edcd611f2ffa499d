package expect

import (
	"github.com/getmockd/expectd/pkg/fingerprint"
)

// expectation pairs a request fingerprint with its canned response.
type expectation struct {
	request  fingerprint.Fingerprint
	response Response
}

// registry maps fingerprint keys to expectations. It holds at most one
// pending declaration waiting for its response. Not safe for concurrent use;
// the Provider serializes access.
type registry struct {
	entries map[string]expectation
	pending *fingerprint.Fingerprint
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]expectation)}
}

// declare sets the pending request. It returns ErrPendingExpectation when a
// previous declaration is still waiting; the new one replaces it either way.
func (r *registry) declare(f fingerprint.Fingerprint) error {
	var err error
	if r.pending != nil {
		err = ErrPendingExpectation
	}
	r.pending = &f
	return err
}

// attach completes the pending declaration with resp. It reports whether an
// existing expectation for the same fingerprint was replaced.
func (r *registry) attach(resp Response) (req fingerprint.Fingerprint, replaced bool, err error) {
	if r.pending == nil {
		return fingerprint.Fingerprint{}, false, ErrNoPendingExpectation
	}
	req = *r.pending
	r.pending = nil

	key := req.Key()
	_, replaced = r.entries[key]
	r.entries[key] = expectation{request: req, response: resp}
	return req, replaced, nil
}

func (r *registry) lookup(f fingerprint.Fingerprint) (Response, bool) {
	e, ok := r.entries[f.Key()]
	return e.response, ok
}

func (r *registry) contains(key string) bool {
	_, ok := r.entries[key]
	return ok
}

func (r *registry) requests() []fingerprint.Fingerprint {
	out := make([]fingerprint.Fingerprint, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.request)
	}
	fingerprint.Sort(out)
	return out
}

func (r *registry) len() int {
	return len(r.entries)
}
