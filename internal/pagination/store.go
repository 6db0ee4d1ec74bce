// Package pagination implements the TTL'd opaque pagination cursor store
// of spec §4.B: cursors are one-shot per page over a frozen result slice,
// swept after five minutes of age. Generic over the element type, in the
// style of the MCP devtools bridge pack's generic pagination helpers
// (adapted here from their composite timestamp:sequence cursor design to
// this spec's opaque-TTL-cursor design).
package pagination

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TTL is the cursor lifetime; entries older than TTL are swept on every
// Open or Next call (spec §4.B, §3 Pagination cursor).
const TTL = 5 * time.Minute

// ErrNotFound is returned by Next when the cursor is unknown or expired.
// It is not a caller error (spec §4.B Failure) — the caller should treat
// it as "start over".
var ErrNotFound = errors.New("cursor not found")

type entry[T any] struct {
	frozen     []T
	nextOffset int
	createdAt  time.Time
}

// Store is safe for concurrent use. Callers typically hold one Store[T]
// per result kind (console messages, network requests, ...).
type Store[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{entries: make(map[string]*entry[T])}
}

// Page is one page of results plus the cursor for the next page, if any.
// Total is the length of the full frozen result list the page was cut
// from, letting callers report {count, total} per spec §6.3.
type Page[T any] struct {
	Items      []T
	Total      int
	NextCursor string
	HasMore    bool
}

// Open returns the first limit elements of list. If list is longer than
// limit, a fresh cursor id is allocated pointing at offset limit.
func (s *Store[T]) Open(list []T, limit int) Page[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	if limit <= 0 {
		limit = len(list)
	}
	if limit >= len(list) {
		return Page[T]{Items: list, Total: len(list), HasMore: false}
	}
	page := list[:limit]
	id := newCursorID()
	s.entries[id] = &entry[T]{frozen: list, nextOffset: limit, createdAt: time.Now()}
	return Page[T]{Items: page, Total: len(list), NextCursor: id, HasMore: true}
}

// Next advances the stored offset by limit and returns the next page. A
// fresh cursor id is allocated for the page after this one, unless the
// frozen list is now exhausted (spec §4.B Properties: cursors are
// one-shot per page — each Next allocates a fresh id for the subsequent
// page, or none if exhausted).
func (s *Store[T]) Next(cursorID string, limit int) (Page[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	e, ok := s.entries[cursorID]
	if !ok {
		return Page[T]{}, ErrNotFound
	}
	delete(s.entries, cursorID)

	if limit <= 0 {
		limit = len(e.frozen) - e.nextOffset
	}
	start := e.nextOffset
	if start > len(e.frozen) {
		start = len(e.frozen)
	}
	end := start + limit
	if end > len(e.frozen) {
		end = len(e.frozen)
	}
	page := e.frozen[start:end]

	if end >= len(e.frozen) {
		return Page[T]{Items: page, Total: len(e.frozen), HasMore: false}, nil
	}
	id := newCursorID()
	s.entries[id] = &entry[T]{frozen: e.frozen, nextOffset: end, createdAt: time.Now()}
	return Page[T]{Items: page, Total: len(e.frozen), NextCursor: id, HasMore: true}, nil
}

// sweepLocked removes entries older than TTL. Callers must hold s.mu.
func (s *Store[T]) sweepLocked() {
	cutoff := time.Now().Add(-TTL)
	for id, e := range s.entries {
		if e.createdAt.Before(cutoff) {
			delete(s.entries, id)
		}
	}
}

// Len reports the number of live cursors, for diagnostics/tests.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// cursor ids are generated with uuid rather than a counter: they must be
// "sufficiently large and unguessable to preclude collision within
// process lifetime" (spec §4.B Properties) and this process already
// depends on google/uuid for correlation ids.
func newCursorID() string {
	return uuid.NewString()
}
