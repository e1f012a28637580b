// Package store provides a single-writer observable state container.
package store

import (
	"sync"
)

// Store holds a value of type S. Writers commit whole states through Update; subscribers
// receive every committed state, one at a time and in commit order.
//
// Delivery happens on the committing goroutine unless another goroutine is already
// delivering, in which case that goroutine delivers the new state once it is done with the
// earlier ones. A commit made from inside a subscriber is therefore delivered after the
// current fan-out returns, never recursively.
type Store[S any] struct {
	mu         sync.RWMutex
	state      S
	pending    []S
	delivering bool

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(S)
}

// New creates a Store holding initial.
func New[S any](initial S) *Store[S] {
	return &Store[S]{
		state: initial,
		subs:  make(map[int]func(S)),
	}
}

// Get returns the current state.
func (s *Store[S]) Get() S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Set replaces the state and notifies subscribers.
func (s *Store[S]) Set(next S) {
	s.Update(func(S) S { return next })
}

// Update applies fn to the current state as one atomic commit and notifies subscribers.
// Subscribers never observe an intermediate value.
func (s *Store[S]) Update(fn func(S) S) S {
	s.mu.Lock()
	next := fn(s.state)
	s.state = next
	s.pending = append(s.pending, next)
	s.mu.Unlock()

	s.drain()
	return next
}

// UpdateIf is Update for conditional writes: fn reports whether it changed anything, and
// subscribers are only notified when it did.
func (s *Store[S]) UpdateIf(fn func(S) (S, bool)) (S, bool) {
	s.mu.Lock()
	next, changed := fn(s.state)
	if changed {
		s.state = next
		s.pending = append(s.pending, next)
	} else {
		next = s.state
	}
	s.mu.Unlock()

	if changed {
		s.drain()
	}
	return next, changed
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store[S]) Subscribe(fn func(S)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subs, id)
		})
	}
}

// drain delivers queued states until none are left, unless another call is already doing so.
func (s *Store[S]) drain() {
	s.mu.Lock()
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	for len(s.pending) > 0 {
		next := s.pending[0]
		var zero S
		s.pending[0] = zero
		s.pending = s.pending[1:]
		s.mu.Unlock()

		s.notify(next)

		s.mu.Lock()
	}
	s.pending = nil
	s.delivering = false
	s.mu.Unlock()
}

func (s *Store[S]) notify(state S) {
	s.subMu.Lock()
	fns := make([]func(S), 0, len(s.subs))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
