package requestlog

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger is the minimal interface for recording request entries.
// The expectation provider accepts this interface so any sink can be used.
type Logger interface {
	Log(entry *Entry)
}

// Store is a Logger that can also be queried.
type Store interface {
	Logger

	// Get retrieves an entry by ID.
	Get(id string) *Entry

	// List returns entries newest first, optionally filtered.
	List(filter *Filter) []*Entry

	// Clear removes all entries.
	Clear()

	// Count returns the number of entries.
	Count() int
}

// Filter defines criteria for listing entries.
type Filter struct {
	// Method filters by HTTP method.
	Method string

	// Path filters by path prefix.
	Path string

	// Matched filters by whether an expectation answered.
	Matched *bool

	// Limit is the maximum number of entries to return.
	Limit int

	// Offset is the number of entries to skip.
	Offset int
}

// DefaultMaxEntries is the capacity used when NewMemoryStore gets a
// non-positive size.
const DefaultMaxEntries = 1000

// MemoryStore is a Store backed by a bounded in-memory buffer. When full,
// the oldest entry is evicted.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    []*Entry
	maxEntries int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore holding at most maxEntries entries.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{
		entries:    make([]*Entry, 0, maxEntries),
		maxEntries: maxEntries,
	}
}

// Log records an entry, assigning an ID and timestamp when missing.
func (s *MemoryStore) Log(entry *Entry) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.maxEntries {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, entry)
}

// Get retrieves an entry by ID, or nil.
func (s *MemoryStore) Get(id string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// List returns entries newest first.
func (s *MemoryStore) List(filter *Filter) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if filter != nil && !matchesFilter(e, filter) {
			continue
		}
		result = append(result, e)
	}

	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(result) {
				return []*Entry{}
			}
			result = result[filter.Offset:]
		}
		if filter.Limit > 0 && filter.Limit < len(result) {
			result = result[:filter.Limit]
		}
	}
	return result
}

func matchesFilter(e *Entry, f *Filter) bool {
	if f.Method != "" && !strings.EqualFold(e.Method, f.Method) {
		return false
	}
	if f.Path != "" && !strings.HasPrefix(e.Path, f.Path) {
		return false
	}
	if f.Matched != nil && e.Matched != *f.Matched {
		return false
	}
	return true
}

// Clear removes all entries.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make([]*Entry, 0, s.maxEntries)
}

// Count returns the number of stored entries.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
