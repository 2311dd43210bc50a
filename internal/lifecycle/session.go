// Package lifecycle implements the photo analysis lifecycle controller:
// submission, result polling, deadline enforcement, the screen-facing state
// machine, and the automatic-cleanup policy for unusable results.
//
// One Session owns one PhotoRecord. All mutation of the record happens
// under the session mutex, and every scheduled continuation (poll retry,
// deadline, settle delay, cleanup delay) checks for disposal before
// applying, so nothing writes after Close.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Ayush-autviz/skin-sub000/internal/domain"
	"github.com/Ayush-autviz/skin-sub000/internal/metrics"
	"github.com/Ayush-autviz/skin-sub000/internal/provider"
	"github.com/google/uuid"
)

// Store is the persistence surface a session needs: saving the evolving
// analysis result and removing a record the cleanup policy discarded.
type Store interface {
	// SaveResult persists the record's provider identity, metrics, masks,
	// thread and status.
	SaveResult(ctx context.Context, rec *domain.PhotoRecord) error

	// Delete removes the record. Implementations also drop any stored
	// artifacts tied to it.
	Delete(ctx context.Context, id uuid.UUID) error
}

// Mode selects the session entry path.
type Mode int

const (
	// ModeCapture submits a freshly captured photo, then polls.
	ModeCapture Mode = iota

	// ModeResume skips submission for an already-known provider image id
	// and polls immediately.
	ModeResume
)

// Params describes one session to open.
type Params struct {
	Record *domain.PhotoRecord
	Mode   Mode

	// Capture mode inputs
	ImageData   []byte
	ContentType string
	Slot        string
}

// Snapshot is the read-only view observers receive. The record is a deep
// copy; the session keeps mutating its own.
type Snapshot struct {
	Record         domain.PhotoRecord
	UIState        domain.UIState
	ViewState      domain.ViewState
	Display        domain.DisplayMode
	QualityWarning bool
	Retryable      bool
	StatusMessage  string
}

// Session drives one photo through the analysis lifecycle. Construction
// performs the entire one-shot initialization (deadlines armed, submission
// or polling started), so there is no initialize-once guard flag anywhere
// in the update path.
type Session struct {
	cfg    Config
	prov   provider.Provider
	store  Store
	clock  Clock
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	poll    *pollTask
	guard   *timeoutGuard
	cleanup *cleanupPolicy

	onDelete  func(uuid.UUID) // clears the selected handle before delete returns
	zoomReset func()          // fired when the view leaves zooming

	mu             sync.Mutex
	rec            *domain.PhotoRecord
	ui             domain.UIState
	view           domain.ViewState
	startedAt      time.Time // current attempt start, drives both deadlines
	qualityWarning bool
	retryable      bool // no_results came from a submission failure
	closed         bool
	deleted        bool
	settle         Timer

	// capture inputs retained for manual retry
	imageData   []byte
	contentType string
	slot        string
}

func newSession(cfg Config, prov provider.Provider, store Store, clock Clock, logger *slog.Logger, params Params, onDelete func(uuid.UUID)) (*Session, error) {
	if params.Record == nil {
		return nil, domain.Invalid("session.open", "Photo record is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:       cfg,
		prov:      prov,
		store:     store,
		clock:     clock,
		logger:    logger.With("photo_id", params.Record.ID),
		ctx:       ctx,
		cancel:    cancel,
		rec:       params.Record,
		ui:        domain.UIStateLoading,
		view:      domain.ViewStateDefault,
		startedAt: clock.Now(),
	}
	s.poll = newPollTask(s, clock, cfg)
	s.guard = newTimeoutGuard(clock, cfg)
	s.cleanup = newCleanupPolicy(clock, cfg)
	s.onDelete = onDelete

	switch params.Mode {
	case ModeCapture:
		if len(params.ImageData) == 0 {
			cancel()
			return nil, domain.Invalid("session.open", "Image data is required for capture mode")
		}
		s.imageData = params.ImageData
		s.contentType = params.ContentType
		s.slot = params.Slot
		s.guard.ArmUpload(s.uploadTimedOut)
		go s.submit()

	case ModeResume:
		if params.Record.ProviderImageID == "" {
			cancel()
			return nil, domain.Invalid("session.open", "Provider image ID is required for resume mode")
		}
		// Resume skips submission entirely and goes straight to polling.
		s.ui = domain.UIStateAnalyzing
		if !params.Record.HasRemote() {
			s.guard.ArmUpload(s.uploadTimedOut)
		}
		s.poll.Schedule(0)

	default:
		cancel()
		return nil, domain.Invalid("session.open", "Unknown session mode")
	}

	return s, nil
}

// SetZoomReset installs the side effect fired when the view returns to
// default from zooming.
func (s *Session) SetZoomReset(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoomReset = f
}

// ID returns the photo id this session owns.
func (s *Session) ID() uuid.UUID {
	return s.rec.ID
}

// Snapshot returns a consistent read-only view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Record:         s.rec.Clone(),
		UIState:        s.ui,
		ViewState:      s.view,
		Display:        domain.DisplayFor(s.ui, s.view),
		QualityWarning: s.qualityWarning,
		Retryable:      s.retryable,
		StatusMessage:  s.rec.Status.Message,
	}
}

// =============================================================================
// Submission
// =============================================================================

// submit runs the fresh-capture path: upload the photo, record the
// provider identity, then start polling. Fails closed: a rejected
// submission resolves the session to no_results with no automatic retry.
func (s *Session) submit() {
	res, err := s.prov.Submit(s.ctx, provider.SubmitParams{
		ImageData:   s.imageData,
		ContentType: s.contentType,
		Slot:        s.slot,
		PhotoID:     s.rec.ID,
		UserID:      s.rec.UserID,
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if err != nil {
		metrics.PhotosSubmitted.WithLabelValues("error").Inc()
		s.logger.Error("Photo submission failed", "error", err)
		s.retryable = true
		s.transitionLocked(domain.UIStateNoResults, "Upload failed: "+domainMessage(err))
		s.mu.Unlock()
		return
	}

	metrics.PhotosSubmitted.WithLabelValues("ok").Inc()
	now := s.clock.Now()
	s.rec.ProviderBatchID = res.BatchID
	s.rec.ProviderImageID = res.ImageID
	s.rec.UpdatedAt = now
	if res.ImageURL != "" {
		s.rec.RemoteURL = res.ImageURL
		// Remote URL appeared; the upload deadline no longer applies.
		s.guard.ClearUpload()
	}
	s.transitionLocked(domain.UIStateAnalyzing, "")
	poll := s.poll
	s.mu.Unlock()

	s.persist()
	poll.Schedule(0)
}

// uploadTimedOut fires when no remote URL appeared within the upload
// deadline.
func (s *Session) uploadTimedOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.ui.Terminal() || s.rec.HasRemote() {
		return
	}
	s.logger.Warn("Upload deadline expired", "deadline", s.cfg.UploadDeadline)
	s.transitionLocked(domain.UIStateNoResults, "upload failed or timed out")
}

// Retry re-runs the capture path manually. It is only valid for a
// no_results outcome caused by a submission failure, and only while the
// cleanup policy has not discarded the record yet.
func (s *Session) Retry() error {
	s.mu.Lock()
	if s.closed || s.deleted {
		s.mu.Unlock()
		return domain.Gone("session.retry", "photo", s.rec.ID.String())
	}
	if s.ui != domain.UIStateNoResults || !s.retryable {
		s.mu.Unlock()
		return domain.Invalid("session.retry", "Retry is only available after a failed upload")
	}
	s.cleanup.Cancel()
	// A retry is a new attempt: reset the lifecycle and both deadlines.
	// The terminal transition stopped the poll task for good, so the new
	// attempt needs a fresh one.
	s.poll = newPollTask(s, s.clock, s.cfg)
	s.ui = domain.UIStateLoading
	s.retryable = false
	s.qualityWarning = false
	s.rec.Status = domain.Status{}
	s.startedAt = s.clock.Now()
	s.guard.ArmUpload(s.uploadTimedOut)
	s.mu.Unlock()

	go s.submit()
	return nil
}

// =============================================================================
// Polling
// =============================================================================

// runPoll issues one result query and applies the response. The return
// value tells the poll task whether to arm the next continuation.
func (s *Session) runPoll() bool {
	s.mu.Lock()
	if s.closed || s.ui.Terminal() {
		s.mu.Unlock()
		return false
	}
	imageID := s.rec.ProviderImageID
	s.mu.Unlock()
	if imageID == "" {
		return false
	}

	start := time.Now()
	page, err := s.prov.GetResults(s.ctx, imageID)
	metrics.PollDuration.Observe(time.Since(start).Seconds())

	return s.applyPoll(page, err)
}

// applyPoll evaluates the transition rules against one polling response.
// Responses arriving after close or after a terminal state are discarded.
func (s *Session) applyPoll(page *provider.ResultsPage, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.ui.Terminal() {
		return false
	}
	now := s.clock.Now()

	if err != nil {
		if provider.IsNotReady(err) {
			// Transient: never surfaced, retried on the next interval.
			metrics.PollsTotal.WithLabelValues("not_ready").Inc()
			return !s.checkAnalysisDeadlineLocked(now)
		}
		metrics.PollsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Result query failed", "error", err)
		s.transitionLocked(domain.UIStateNoResults, "Analysis failed: "+domainMessage(err))
		return false
	}

	// Carry the provider-reported status; while unresolved this updates
	// the message only.
	if page.Status.State != "" {
		s.rec.Status = page.Status
	} else if page.Status.Message != "" {
		s.rec.Status.Message = page.Status.Message
	}

	// An explicit provider error resolves immediately, carrying the
	// provider's message.
	if page.Status.State == domain.AnalysisStateError {
		metrics.PollsTotal.WithLabelValues("error").Inc()
		msg := page.Status.Message
		if msg == "" {
			msg = "The analysis provider reported an error"
		}
		s.transitionLocked(domain.UIStateNoResults, msg)
		return false
	}

	if !page.Ready() {
		metrics.PollsTotal.WithLabelValues("not_ready").Inc()
		return !s.checkAnalysisDeadlineLocked(now)
	}

	metrics.PollsTotal.WithLabelValues("ready").Inc()

	// Metrics are immutable once set non-empty; a second arrival never
	// partially overwrites the first.
	if s.rec.Metrics.Empty() {
		s.rec.Metrics = provider.MetricsFromResults(page.Results)
		s.rec.UpdatedAt = now
	}

	return s.evaluateLocked(now)
}

// evaluateLocked applies the data-received transition rules in order.
// Quality failure takes precedence over completion when both hold.
func (s *Session) evaluateLocked(now time.Time) bool {
	// No remote URL yet: stay in the current unresolved state, message
	// updates only.
	if !s.rec.HasRemote() {
		return !s.checkAnalysisDeadlineLocked(now)
	}

	overall, hasQuality := s.rec.Metrics.QualityOverall()

	// Unusable quality resolves to low_quality regardless of any other
	// scores present, and triggers the cleanup policy.
	if hasQuality && overall < s.cfg.QualityMinThreshold {
		s.transitionLocked(domain.UIStateLowQuality, "Photo quality too low to analyze")
		return false
	}

	// Marginal quality stays in the normal flow with a non-blocking
	// indicator for the consumer UI.
	if hasQuality && overall < s.cfg.QualityWarnThreshold {
		s.qualityWarning = true
	}

	if s.rec.HasMetrics() {
		s.scheduleSettleLocked()
		return false
	}

	return !s.checkAnalysisDeadlineLocked(now)
}

// checkAnalysisDeadlineLocked applies the elapsed-time analysis deadline:
// metrics still absent, the provider not reporting an active state, and
// the deadline passed resolve the session to no_results. Reports whether
// a terminal transition happened.
func (s *Session) checkAnalysisDeadlineLocked(now time.Time) bool {
	if s.rec.HasMetrics() {
		return false
	}
	if s.rec.Status.State.Active() {
		return false
	}
	if !s.guard.AnalysisExpired(s.startedAt, now) {
		return false
	}
	s.logger.Warn("Analysis deadline expired", "deadline", s.cfg.AnalysisDeadline)
	s.transitionLocked(domain.UIStateNoResults, "Analysis timed out")
	return true
}

// scheduleSettleLocked arms the short settle delay before the transition
// to complete.
func (s *Session) scheduleSettleLocked() {
	if s.settle != nil {
		return
	}
	s.settle = s.clock.AfterFunc(s.cfg.SettleDelay, s.settleFired)
}

func (s *Session) settleFired() {
	s.mu.Lock()
	if s.closed || s.ui.Terminal() {
		s.mu.Unlock()
		return
	}
	s.transitionLocked(domain.UIStateComplete, "")
	s.mu.Unlock()

	s.fetchSecondary()
}

// =============================================================================
// Secondary Fetches
// =============================================================================

// fetchSecondary opportunistically loads mask results, mask images, and
// the conversational thread once metrics exist. Every step is fail-soft:
// failures are logged and never surface to the lifecycle.
func (s *Session) fetchSecondary() {
	s.mu.Lock()
	if s.closed || s.deleted || s.ui != domain.UIStateComplete {
		s.mu.Unlock()
		return
	}
	imageID := s.rec.ProviderImageID
	photoID := s.rec.ID
	hasThread := s.rec.HasThread()
	s.mu.Unlock()

	if masks, err := s.prov.GetMaskResults(s.ctx, imageID); err != nil {
		s.logger.Warn("Mask results fetch failed", "error", err)
	} else {
		s.mu.Lock()
		if !s.closed {
			if s.rec.Masks == nil {
				s.rec.Masks = &domain.MaskArtifacts{}
			}
			s.rec.Masks.Results = masks
		}
		s.mu.Unlock()
	}

	if images, err := s.prov.GetMaskImages(s.ctx, imageID); err != nil {
		s.logger.Warn("Mask images fetch failed", "error", err)
	} else {
		s.mu.Lock()
		if !s.closed {
			if s.rec.Masks == nil {
				s.rec.Masks = &domain.MaskArtifacts{}
			}
			s.rec.Masks.Images = images
		}
		s.mu.Unlock()
	}

	if !hasThread {
		if threadID, err := s.prov.CreateThread(s.ctx, photoID); err != nil {
			s.logger.Warn("Thread creation failed", "error", err)
		} else {
			s.mu.Lock()
			if !s.closed {
				s.rec.ThreadID = threadID
			}
			s.mu.Unlock()
		}
	}

	s.persist()
}

// =============================================================================
// Transitions and Teardown
// =============================================================================

// transitionLocked advances the forward-only state machine. Invalid moves
// are dropped; terminal failure states stop all pending work and arm the
// cleanup policy.
func (s *Session) transitionLocked(target domain.UIState, message string) {
	next, err := s.ui.Transition(target)
	if err != nil {
		s.logger.Debug("Dropping ui transition", "error", err)
		return
	}
	s.ui = next
	if message != "" {
		s.rec.Status.Message = message
	}
	s.logger.Info("Lifecycle state changed", "state", next)

	if next.Terminal() {
		metrics.AnalysesResolved.WithLabelValues(next.String()).Inc()
		s.poll.Stop()
		s.guard.Cancel()
	}

	switch next {
	case domain.UIStateNoResults:
		s.rec.Status.State = domain.AnalysisStateError
		s.cleanup.Schedule(func() { s.autoDelete("no_results") })
	case domain.UIStateLowQuality:
		s.cleanup.Schedule(func() { s.autoDelete("low_quality") })
	case domain.UIStateComplete:
		s.rec.Status.State = domain.AnalysisStateCompleted
	}
}

// autoDelete is the deferred cleanup callback for terminal failures.
// Silent: errors are logged, nothing surfaces to the user.
func (s *Session) autoDelete(reason string) {
	if err := s.Delete(context.Background()); err != nil {
		s.logger.Error("Auto-cleanup delete failed", "error", err)
		return
	}
	metrics.CleanupsTotal.WithLabelValues(reason).Inc()
	s.logger.Info("Record auto-cleaned", "reason", reason)
}

// Delete removes the record. The selected/focused handle is cleared before
// the store delete so observers never hold a dangling reference,
// and the session is closed afterwards.
func (s *Session) Delete(ctx context.Context) error {
	s.mu.Lock()
	if s.deleted {
		s.mu.Unlock()
		return nil
	}
	s.deleted = true
	id := s.rec.ID
	s.mu.Unlock()

	if s.onDelete != nil {
		s.onDelete(id)
	}
	err := s.store.Delete(ctx, id)
	s.Close()
	return err
}

// Close cancels the session without deleting the record: the active poll
// continuation, both deadlines, the settle delay, and any pending cleanup
// are cleared so no callback mutates state after disposal.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.guard.Cancel()
	s.cleanup.Cancel()
	if s.settle != nil {
		s.settle.Stop()
		s.settle = nil
	}
	poll := s.poll // Retry may swap in a fresh task; stop the current one.
	s.mu.Unlock()

	poll.Stop()
	s.cancel()
	s.logger.Debug("Session closed")
}

// persist writes the current record state through the store. Failures are
// logged only; persistence never stalls the lifecycle.
func (s *Session) persist() {
	s.mu.Lock()
	if s.closed || s.deleted {
		s.mu.Unlock()
		return
	}
	rec := s.rec.Clone()
	s.mu.Unlock()

	if err := s.store.SaveResult(s.ctx, &rec); err != nil {
		s.logger.Error("Failed to persist analysis result", "error", err)
	}
}

// domainMessage extracts a user-facing message from an error.
func domainMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg := domain.ErrorMessage(err); msg != "" && domain.ErrorCode(err) != domain.EINTERNAL {
		return msg
	}
	return err.Error()
}
