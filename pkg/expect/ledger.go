package expect

import (
	"sync"

	"github.com/getmockd/expectd/pkg/fingerprint"
)

// ledger is the set of fingerprints presented to the resolver. Repeated
// requests collapse to one receipt. It only grows; a new Provider is the only
// way to start over.
type ledger struct {
	mu       sync.Mutex
	received map[string]fingerprint.Fingerprint
}

func newLedger() *ledger {
	return &ledger{received: make(map[string]fingerprint.Fingerprint)}
}

// record adds f and reports whether it was new.
func (l *ledger) record(f fingerprint.Fingerprint) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := f.Key()
	if _, ok := l.received[key]; ok {
		return false
	}
	l.received[key] = f
	return true
}

// snapshot returns a copy of the set keyed by fingerprint key.
func (l *ledger) snapshot() map[string]fingerprint.Fingerprint {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]fingerprint.Fingerprint, len(l.received))
	for k, f := range l.received {
		out[k] = f
	}
	return out
}

func (l *ledger) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.received)
}
