package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct {
	A, B int
}

func TestStore_UpdateNotifiesSubscribersInOrder(t *testing.T) {
	s := New(pair{})

	var seen []string
	s.Subscribe(func(p pair) { seen = append(seen, "first") })
	s.Subscribe(func(p pair) { seen = append(seen, "second") })

	got := s.Update(func(p pair) pair {
		p.A = 1
		p.B = 2
		return p
	})

	assert.Equal(t, pair{A: 1, B: 2}, got)
	assert.Equal(t, pair{A: 1, B: 2}, s.Get())
	assert.Equal(t, []string{"first", "second"}, seen)
}

func TestStore_Unsubscribe(t *testing.T) {
	s := New(0)
	calls := 0
	unsub := s.Subscribe(func(int) { calls++ })

	s.Set(1)
	unsub()
	unsub()
	s.Set(2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, s.Get())
}

func TestStore_SubscribersNeverSeePartialState(t *testing.T) {
	s := New(pair{})
	var mu sync.Mutex
	var bad int
	s.Subscribe(func(p pair) {
		if p.A != p.B {
			mu.Lock()
			bad++
			mu.Unlock()
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Update(func(p pair) pair { return pair{A: n, B: n} })
		}(i)
	}
	wg.Wait()

	assert.Zero(t, bad)
	final := s.Get()
	assert.Equal(t, final.A, final.B)
}

func TestStore_SubscriberMayReadState(t *testing.T) {
	s := New(0)
	var observed int
	s.Subscribe(func(int) { observed = s.Get() })

	s.Set(5)
	assert.Equal(t, 5, observed)
}

func TestStore_UpdateIfSkipsUnchanged(t *testing.T) {
	s := New(pair{A: 1})
	calls := 0
	s.Subscribe(func(pair) { calls++ })

	got, changed := s.UpdateIf(func(p pair) (pair, bool) { return pair{A: 99}, false })
	assert.False(t, changed)
	assert.Equal(t, pair{A: 1}, got)
	assert.Equal(t, 0, calls)

	got, changed = s.UpdateIf(func(p pair) (pair, bool) { p.B = 2; return p, true })
	assert.True(t, changed)
	assert.Equal(t, pair{A: 1, B: 2}, got)
	assert.Equal(t, 1, calls)
}

func TestStore_ConcurrentCommitsDeliveredInOrder(t *testing.T) {
	s := New(0)
	var mu sync.Mutex
	var seen []int
	s.Subscribe(func(n int) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, n)
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(n int) int { return n + 1 })
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 100)
	for i, n := range seen {
		assert.Equal(t, i+1, n)
	}
	assert.Equal(t, 100, s.Get())
}

func TestStore_LastDeliveredMatchesFinalState(t *testing.T) {
	s := New(pair{})
	var mu sync.Mutex
	var last pair
	s.Subscribe(func(p pair) {
		mu.Lock()
		defer mu.Unlock()
		last = p
	})

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			s.Set(pair{A: n})
		}(i)
		go func() {
			defer wg.Done()
			s.UpdateIf(func(p pair) (pair, bool) {
				if p.A == 0 {
					return p, false
				}
				p.B = p.A
				return p, true
			})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, s.Get(), last)
}

func TestStore_CommitFromSubscriberIsDeliveredAfterCurrentFanOut(t *testing.T) {
	s := New(0)
	var seen []string
	s.Subscribe(func(n int) {
		seen = append(seen, "a"+string(rune('0'+n)))
		if n == 1 {
			s.Set(2)
		}
	})
	s.Subscribe(func(n int) { seen = append(seen, "b"+string(rune('0'+n))) })

	s.Set(1)

	assert.Equal(t, []string{"a1", "b1", "a2", "b2"}, seen)
	assert.Equal(t, 2, s.Get())
}
