package relay

import (
	"sync"
	"time"
)

// Coalescer collapses a burst of change notifications into a single fire of
// the callback once no notification has arrived for the quiet interval. Each
// notification cancels and reschedules the pending fire and replaces the
// carried reason, so one fire covers the whole burst with the latest reason.
type Coalescer struct {
	mu       sync.Mutex
	quiet    time.Duration
	fire     func(reason string)
	timer    *time.Timer
	gen      uint64
	reason   string
	stopped  bool
	inFlight sync.WaitGroup
}

// NewCoalescer creates a coalescer that invokes fire after quiet has passed
// without further notifications. A zero quiet defaults to 200ms.
func NewCoalescer(quiet time.Duration, fire func(reason string)) *Coalescer {
	if quiet == 0 {
		quiet = 200 * time.Millisecond
	}
	return &Coalescer{quiet: quiet, fire: fire}
}

// Notify records a change and (re)schedules the fire.
func (c *Coalescer) Notify(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}

	c.reason = reason
	c.gen++
	gen := c.gen

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.quiet, func() { c.fireIfCurrent(gen) })
}

// fireIfCurrent runs the callback unless the schedule that armed this timer
// has been superseded or the coalescer was stopped. The generation check
// closes the race between an expiring timer and a concurrent Notify.
func (c *Coalescer) fireIfCurrent(gen uint64) {
	c.mu.Lock()
	if c.stopped || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	reason := c.reason
	c.inFlight.Add(1)
	c.mu.Unlock()

	c.fire(reason)
	c.inFlight.Done()
}

// Stop cancels any pending fire and waits for a callback already running.
// No callback runs after Stop returns. Stop must not be called from inside
// the callback.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.inFlight.Wait()
}
