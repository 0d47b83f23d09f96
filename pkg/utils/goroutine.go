package utils

import (
	"runtime"
	"testing"
	"time"
)

// LeakCheck fails a test whose goroutine count has not settled back to its
// starting value by the time the test ends
type LeakCheck struct {
	tb       testing.TB
	start    int
	allowed  int
	deadline time.Duration
}

// CheckGoroutines records the current goroutine count and registers a
// cleanup comparing against it
func CheckGoroutines(tb testing.TB) *LeakCheck {
	tb.Helper()
	c := &LeakCheck{
		tb:       tb,
		start:    runtime.NumGoroutine(),
		deadline: 2 * time.Second,
	}
	tb.Cleanup(c.verify)
	return c
}

// Allow tolerates n goroutines more than at the start
func (c *LeakCheck) Allow(n int) *LeakCheck {
	c.allowed = n
	return c
}

// Within sets how long goroutines get to exit
func (c *LeakCheck) Within(d time.Duration) *LeakCheck {
	c.deadline = d
	return c
}

func (c *LeakCheck) verify() {
	limit := c.start + c.allowed
	deadline := time.Now().Add(c.deadline)
	for {
		n := runtime.NumGoroutine()
		if n <= limit {
			return
		}
		if time.Now().After(deadline) {
			buf := make([]byte, 1<<20)
			buf = buf[:runtime.Stack(buf, true)]
			c.tb.Errorf("goroutine leak: %d running, started with %d (allowed %d more)\n%s", n, c.start, c.allowed, buf)
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}
