package lifecycle

import "time"

// cleanupPolicy schedules the silent deferred delete of a record that
// resolved to a terminal failure or unacceptable quality. The delay lets
// the terminal UI render before the record disappears; the delete itself
// clears the selected handle before removing the record.
type cleanupPolicy struct {
	clock Clock
	delay time.Duration

	timer Timer
}

func newCleanupPolicy(clock Clock, cfg Config) *cleanupPolicy {
	return &cleanupPolicy{
		clock: clock,
		delay: cfg.CleanupDelay,
	}
}

// Schedule arms the deferred delete. A second call while a delete is
// already pending is a no-op.
func (c *cleanupPolicy) Schedule(f func()) {
	if c.timer != nil {
		return
	}
	c.timer = c.clock.AfterFunc(c.delay, f)
}

// Cancel clears any pending delete. Called on session close so an unmount
// cancels rather than deletes.
func (c *cleanupPolicy) Cancel() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
