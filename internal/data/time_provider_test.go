package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_FiresInDeadlineOrder(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)

	var fired []string
	clock.AfterFunc(200*time.Millisecond, func() { fired = append(fired, "b") })
	clock.AfterFunc(100*time.Millisecond, func() { fired = append(fired, "a") })
	stopped := clock.AfterFunc(150*time.Millisecond, func() { fired = append(fired, "x") })

	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	clock.Add(120 * time.Millisecond)
	assert.Equal(t, []string{"a"}, fired)
	assert.Equal(t, 1, clock.Pending())

	clock.Add(100 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, start.Add(220*time.Millisecond), clock.Now())
	assert.Zero(t, clock.Pending())
}

func TestFakeClock_CallbackMayScheduleMore(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			clock.AfterFunc(time.Second, tick)
		}
	}
	clock.AfterFunc(time.Second, tick)

	clock.Add(10 * time.Second)
	assert.Equal(t, 3, count)
}

func TestSystemClock_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	SystemClock{}.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}
