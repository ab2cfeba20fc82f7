// Package clock abstracts time so the polling loops can be driven by tests.
// Use RealClock in the service and MockClock in tests.
package clock

import (
	"sync"
	"time"
)

// Clock is the subset of the time package used by the pollers
type Clock interface {
	// Now returns the current time
	Now() time.Time

	// After waits for the duration to elapse and then sends the current time on the returned channel
	After(d time.Duration) <-chan time.Time
}

// RealClock implements Clock using the standard time package
type RealClock struct{}

// NewRealClock creates a new RealClock instance
func NewRealClock() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

func (c *RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// MockClock only moves when Advance or Set is called
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []waiter
}

type waiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewMockClock creates a new MockClock starting at the given time
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{current: start}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that fires once the mock time reaches now+d
func (c *MockClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	deadline := c.current.Add(d)
	if d <= 0 {
		ch <- c.current
		return ch
	}
	c.waiters = append(c.waiters, waiter{deadline: deadline, ch: ch})
	return ch
}

// Waiters returns how many After channels are still pending.
// Tests use it to wait until a loop has parked on the clock.
func (c *MockClock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Advance moves the mock clock forward by d and fires expired channels
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	now := c.current

	remaining := c.waiters[:0]
	var fire []waiter
	for _, w := range c.waiters {
		if !w.deadline.After(now) {
			fire = append(fire, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
	c.mu.Unlock()

	// Channels are buffered, sends never block
	for _, w := range fire {
		w.ch <- now
	}
}

// Set moves the clock to t, firing expired channels when moving forward
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	old := c.current
	c.mu.Unlock()

	if t.After(old) {
		c.Advance(t.Sub(old))
		return
	}

	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}
