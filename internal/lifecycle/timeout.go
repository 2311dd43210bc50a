package lifecycle

import "time"

// timeoutGuard owns the two independent deadlines of a session: the
// single-shot upload deadline, armed at session start and cleared the
// moment a remote URL appears, and the analysis deadline, which is an
// elapsed-time check performed on every incoming update rather than a
// timer of its own.
type timeoutGuard struct {
	clock            Clock
	uploadDeadline   time.Duration
	analysisDeadline time.Duration

	upload Timer
}

func newTimeoutGuard(clock Clock, cfg Config) *timeoutGuard {
	return &timeoutGuard{
		clock:            clock,
		uploadDeadline:   cfg.UploadDeadline,
		analysisDeadline: cfg.AnalysisDeadline,
	}
}

// ArmUpload schedules the upload deadline callback. Rearming replaces any
// previously armed timer.
func (g *timeoutGuard) ArmUpload(f func()) {
	g.ClearUpload()
	g.upload = g.clock.AfterFunc(g.uploadDeadline, f)
}

// ClearUpload cancels the pending upload deadline, if any.
func (g *timeoutGuard) ClearUpload() {
	if g.upload != nil {
		g.upload.Stop()
		g.upload = nil
	}
}

// AnalysisExpired reports whether the analysis deadline has passed for a
// session started at the given time.
func (g *timeoutGuard) AnalysisExpired(startedAt, now time.Time) bool {
	return now.Sub(startedAt) > g.analysisDeadline
}

// Cancel releases every pending deadline. Must be called on session close
// so no deadline mutates state after disposal.
func (g *timeoutGuard) Cancel() {
	g.ClearUpload()
}
