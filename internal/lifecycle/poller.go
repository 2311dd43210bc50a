package lifecycle

import (
	"sync"
	"time"
)

// pollTask is the cancellable scheduled continuation that drives result
// polling for one session. At most one continuation is pending and at most
// one request is in flight at any time: the next poll is scheduled only
// after the previous response has been fully processed.
type pollTask struct {
	session  *Session
	clock    Clock
	interval time.Duration

	mu      sync.Mutex
	timer   Timer
	stopped bool
}

func newPollTask(s *Session, clock Clock, cfg Config) *pollTask {
	return &pollTask{
		session:  s,
		clock:    clock,
		interval: cfg.PollInterval,
	}
}

// Schedule arms the next continuation after the given delay. Calls are
// ignored once the task is stopped or while a continuation is pending.
func (p *pollTask) Schedule(delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.timer != nil {
		return
	}
	p.timer = p.clock.AfterFunc(delay, p.run)
}

// Stop cancels the pending continuation and prevents any further
// scheduling. A continuation that already fired checks the stopped flag
// before applying its response.
func (p *pollTask) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *pollTask) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// run executes one poll cycle: issue the query, hand the response to the
// session, and only then decide whether to arm the next continuation.
func (p *pollTask) run() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.mu.Unlock()

	again := p.session.runPoll()

	if again && !p.isStopped() {
		p.Schedule(p.interval)
	}
}
