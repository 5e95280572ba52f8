// Package session runs one interview rehearsal at a time: recording, upload,
// analysis submission, status polling and report aggregation. Any pipeline
// failure is replaced by a synthetic report so a session always completes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/cabinprep/internal/analysis"
	"github.com/kiranshivaraju/cabinprep/internal/cache"
	"github.com/kiranshivaraju/cabinprep/internal/metrics"
	"github.com/kiranshivaraju/cabinprep/internal/store"
	"github.com/kiranshivaraju/cabinprep/internal/targets"
	"github.com/kiranshivaraju/cabinprep/internal/upload"
	"github.com/kiranshivaraju/cabinprep/pkg/models"
)

var (
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrAlreadySaved      = errors.New("report already saved")
	ErrNoSession         = errors.New("no active session")
	ErrNoMedia           = errors.New("no media captured")
	ErrClosed            = errors.New("orchestrator closed")
	ErrUnknownTarget     = targets.ErrUnknownTarget
)

// Pipeline collaborators. The concrete types live in internal/upload and
// internal/analysis.
type (
	Uploader interface {
		Upload(ctx context.Context, a *models.Artifact) error
	}
	Submitter interface {
		Submit(ctx context.Context, storageKey, bucket string) (*models.AnalysisJobSet, error)
	}
	Poller interface {
		Poll(ctx context.Context, jobs *models.AnalysisJobSet, onProgress func(*models.AnalysisJobSet)) (models.Resolution, error)
	}
	Aggregator interface {
		Aggregate(ctx context.Context, jobs *models.AnalysisJobSet, c analysis.Candidate) (*models.FeedbackReport, error)
	}
	Fallback interface {
		Generate(c analysis.Candidate) *models.FeedbackReport
	}
	TargetTable interface {
		Lookup(name string) (models.Target, error)
		RandomQuestion(name string, rng *rand.Rand) (string, error)
	}
)

// Dependencies holds everything the orchestrator needs. Metrics, Cache,
// Events and Listener are optional. Listener receives every snapshot change
// in order on a dedicated goroutine and may call back into the Orchestrator.
type Dependencies struct {
	Recorder   Recorder
	Uploader   Uploader
	Submitter  Submitter
	Poller     Poller
	Aggregator Aggregator
	Fallback   Fallback
	Store      store.ReportStore
	Targets    TargetTable

	Metrics  *metrics.Metrics
	Cache    cache.Cache
	Events   EventSink
	Listener func(Snapshot)
}

// Options tunes session behaviour.
type Options struct {
	Tick         time.Duration
	ContentType  string
	JobStatusTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.Tick <= 0 {
		o.Tick = time.Second
	}
	if o.ContentType == "" {
		o.ContentType = upload.DefaultContentType
	}
	if o.JobStatusTTL <= 0 {
		o.JobStatusTTL = 30 * time.Minute
	}
	return o
}

// Snapshot is an immutable view of the current session.
type Snapshot struct {
	models.Session
	Elapsed  string                               `json:"elapsed"`
	Progress string                               `json:"progress,omitempty"`
	Jobs     map[models.JobKind]models.JobHandle `json:"jobs,omitempty"`
	Report   *models.FeedbackReport               `json:"report,omitempty"`
}

// run is one session's mutable state. Fields other than ctx, cancel, done,
// wg and the pipeline-owned artifact are guarded by Orchestrator.mu.
type run struct {
	session   models.Session
	candidate analysis.Candidate
	ctx       context.Context
	cancel    context.CancelFunc
	timer     *timer
	artifact  *models.Artifact
	jobs      map[models.JobKind]models.JobHandle
	progress  string
	report    *models.FeedbackReport
	stoppedAt time.Time
	saving    bool

	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
}

func (r *run) finish() {
	r.doneOnce.Do(func() { close(r.done) })
}

func (r *run) snapshot() Snapshot {
	s := Snapshot{
		Session:  r.session,
		Progress: r.progress,
		Report:   r.report.Clone(),
	}
	if r.session.State == models.StateRecording && r.timer != nil {
		s.ElapsedSeconds = r.timer.seconds()
	}
	s.Elapsed = FormatElapsed(s.ElapsedSeconds)
	if len(r.jobs) > 0 {
		s.Jobs = make(map[models.JobKind]models.JobHandle, len(r.jobs))
		for k, h := range r.jobs {
			s.Jobs[k] = h
		}
	}
	return s
}

var closedDone = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Orchestrator owns at most one session at a time.
type Orchestrator struct {
	deps Dependencies
	opts Options
	now  func() time.Time

	base       context.Context
	cancelBase context.CancelFunc
	listener   *notifier
	pipelines  sync.WaitGroup

	mu     sync.Mutex
	cur    *run
	closed bool
}

// New creates an Orchestrator. All pipeline dependencies are required.
func New(deps Dependencies, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Recorder == nil:
		return nil, errors.New("session: recorder is required")
	case deps.Uploader == nil, deps.Submitter == nil, deps.Poller == nil, deps.Aggregator == nil:
		return nil, errors.New("session: pipeline dependencies are required")
	case deps.Fallback == nil:
		return nil, errors.New("session: fallback is required")
	case deps.Store == nil:
		return nil, errors.New("session: report store is required")
	case deps.Targets == nil:
		return nil, errors.New("session: target table is required")
	}

	base, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		deps:       deps,
		opts:       opts.withDefaults(),
		now:        time.Now,
		base:       base,
		cancelBase: cancel,
	}
	if deps.Listener != nil {
		o.listener = newNotifier(deps.Listener)
	}
	return o, nil
}

// Start discards any existing session and begins recording a new one for
// targetName. On ErrDeviceUnavailable the orchestrator stays idle.
func (o *Orchestrator) Start(ctx context.Context, targetName, candidate string) (Snapshot, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return idleSnapshot(), ErrClosed
	}

	target, err := o.deps.Targets.Lookup(targetName)
	if err != nil {
		o.mu.Unlock()
		return o.Snapshot(), err
	}

	old := o.detachLocked(ctx)

	if !o.deps.Recorder.Available(ctx) {
		o.mu.Unlock()
		o.release(old)
		o.diagnose(uuid.Nil, models.StateIdle, ErrDeviceUnavailable)
		return idleSnapshot(), ErrDeviceUnavailable
	}
	if err := o.deps.Recorder.Start(ctx); err != nil {
		o.mu.Unlock()
		o.release(old)
		if !errors.Is(err, ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
		}
		o.diagnose(uuid.Nil, models.StateIdle, err)
		return idleSnapshot(), err
	}

	question, _ := o.deps.Targets.RandomQuestion(target.Name, nil)

	rctx, cancel := context.WithCancel(o.base)
	r := &run{
		session: models.Session{
			ID:        uuid.New(),
			StartedAt: o.now().UTC(),
			Target:    target.Name,
			Candidate: candidate,
			Question:  question,
			State:     models.StateRecording,
		},
		candidate: analysis.Candidate{Name: candidate, Target: target.Name},
		ctx:       rctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	r.timer = startTimer(rctx, o.opts.Tick, func(n int) { o.onTick(r, n) })
	o.cur = r
	o.deps.Metrics.Transition(string(models.StateRecording))
	snap := r.snapshot()
	o.notifyLocked(snap)
	o.mu.Unlock()

	slog.Info("session started",
		"session_id", r.session.ID,
		"target", target.Name,
		"candidate", candidate,
	)
	o.release(old)
	return snap, nil
}

// Stop ends recording and hands the capture to the analysis pipeline, which
// runs on its own goroutine.
func (o *Orchestrator) Stop(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	r := o.cur
	if r == nil {
		o.mu.Unlock()
		return idleSnapshot(), ErrNoSession
	}
	if r.session.State != models.StateRecording {
		snap := r.snapshot()
		o.mu.Unlock()
		return snap, fmt.Errorf("%w: stop from %s", ErrInvalidTransition, r.session.State)
	}

	r.session.ElapsedSeconds = r.timer.stop()
	r.stoppedAt = o.now()

	var cause error
	capture, err := o.deps.Recorder.Stop(ctx)
	switch {
	case err != nil:
		cause = fmt.Errorf("%w: %w", ErrNoMedia, err)
	case capture == nil || len(capture.Data) == 0:
		cause = ErrNoMedia
	default:
		contentType := capture.ContentType
		if contentType == "" {
			contentType = o.opts.ContentType
		}
		r.artifact = &models.Artifact{
			Data:        capture.Data,
			FileName:    upload.FileName(r.session.Candidate, contentType, r.stoppedAt),
			ContentType: contentType,
			CapturedAt:  r.stoppedAt.UTC(),
		}
	}

	if cause != nil {
		r.session.State = models.StateAggregating
		r.progress = "No recording captured, preparing feedback..."
	} else {
		r.session.State = models.StateUploading
		r.progress = "Uploading recording..."
	}
	o.deps.Metrics.Transition(string(r.session.State))

	r.wg.Add(1)
	o.pipelines.Add(1)
	go o.pipeline(r, cause)

	snap := r.snapshot()
	o.notifyLocked(snap)
	o.mu.Unlock()
	return snap, nil
}

// Reset discards the current session, cancelling its tasks, and returns to
// idle. A discarded session never resumes.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	old := o.detachLocked(context.Background())
	o.mu.Unlock()

	o.release(old)
}

// Abandon is Reset for callers navigating away from the session.
func (o *Orchestrator) Abandon() {
	o.Reset()
}

// Save appends the completed report to the report store exactly once.
func (o *Orchestrator) Save(ctx context.Context) (*models.FeedbackReport, error) {
	o.mu.Lock()
	r := o.cur
	if r == nil {
		o.mu.Unlock()
		return nil, ErrNoSession
	}
	if r.session.State != models.StateCompleted {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: save from %s", ErrInvalidTransition, r.session.State)
	}
	if r.session.Saved || r.saving {
		o.mu.Unlock()
		return nil, ErrAlreadySaved
	}
	r.saving = true
	report := r.report
	o.mu.Unlock()

	err := o.deps.Store.Append(ctx, report)

	o.mu.Lock()
	r.saving = false
	if err != nil {
		o.mu.Unlock()
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, ErrAlreadySaved
		}
		return nil, fmt.Errorf("save report: %w", err)
	}
	r.session.Saved = true
	saved := report.Clone()
	if o.cur == r {
		o.notifyLocked(r.snapshot())
	}
	o.mu.Unlock()

	slog.Info("report saved", "session_id", r.session.ID, "report_id", saved.ID)
	return saved, nil
}

// Snapshot returns the current session view, or an idle one.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cur == nil {
		return idleSnapshot()
	}
	return o.cur.snapshot()
}

// Done returns a channel closed when the current session completes or is
// discarded. With no session the channel is already closed.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cur == nil {
		return closedDone
	}
	return o.cur.done
}

// Close discards the current session, waits for every pipeline goroutine,
// including those of sessions replaced earlier, and rejects further starts.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.detachLocked(context.Background())
	o.mu.Unlock()

	o.cancelBase()
	o.pipelines.Wait()
	o.listener.close()
	return nil
}

// detachLocked removes the current run and cancels its tasks. Callers wait
// on the returned run's wg after releasing mu.
func (o *Orchestrator) detachLocked(ctx context.Context) *run {
	r := o.cur
	if r == nil {
		return nil
	}
	o.cur = nil
	if r.session.State == models.StateRecording {
		r.timer.stop()
		_, _ = o.deps.Recorder.Stop(ctx)
	}
	r.cancel()
	r.finish()
	o.notifyLocked(idleSnapshot())
	slog.Info("session discarded", "session_id", r.session.ID, "state", r.session.State)
	return r
}

func (o *Orchestrator) onTick(r *run, n int) {
	o.mu.Lock()
	if o.cur != r || r.session.State != models.StateRecording {
		o.mu.Unlock()
		return
	}
	r.session.ElapsedSeconds = n
	o.notifyLocked(r.snapshot())
	o.mu.Unlock()
}

func (o *Orchestrator) pipeline(r *run, cause error) {
	defer o.pipelines.Done()
	defer r.wg.Done()

	report, stage, err := o.runStages(r, cause)
	if r.ctx.Err() != nil {
		return
	}
	if err != nil {
		o.diagnose(r.session.ID, stage, err)
		if !o.advance(r, models.StateAggregating, "Preparing feedback...") {
			return
		}
		report = o.deps.Fallback.Generate(r.candidate)
	}
	o.complete(r, report)
}

// runStages drives upload, submit, poll and aggregate. On failure it
// returns the stage that failed.
func (o *Orchestrator) runStages(r *run, cause error) (*models.FeedbackReport, models.SessionState, error) {
	if cause != nil {
		return nil, models.StateRecording, cause
	}
	ctx := r.ctx

	if err := o.deps.Uploader.Upload(ctx, r.artifact); err != nil {
		return nil, models.StateUploading, err
	}

	if !o.advance(r, models.StateSubmitting, "Requesting analysis...") {
		return nil, "", ctx.Err()
	}
	jobs, err := o.deps.Submitter.Submit(ctx, r.artifact.StorageKey, r.artifact.Bucket)
	if err != nil {
		return nil, models.StateSubmitting, err
	}

	o.recordJobs(r, jobs)
	if !o.advance(r, models.StatePolling, progressText(jobs)) {
		return nil, "", ctx.Err()
	}
	if _, err := o.deps.Poller.Poll(ctx, jobs, func(j *models.AnalysisJobSet) { o.onProgress(r, j) }); err != nil {
		return nil, models.StatePolling, err
	}

	if !o.advance(r, models.StateAggregating, "Analysis complete, building report...") {
		return nil, "", ctx.Err()
	}
	report, err := o.deps.Aggregator.Aggregate(ctx, jobs, r.candidate)
	if err != nil {
		return nil, models.StateAggregating, err
	}
	return report, "", nil
}

// advance moves r to state if r is still the current session.
func (o *Orchestrator) advance(r *run, state models.SessionState, progress string) bool {
	o.mu.Lock()
	if o.cur != r || r.ctx.Err() != nil {
		o.mu.Unlock()
		return false
	}
	r.session.State = state
	r.progress = progress
	o.deps.Metrics.Transition(string(state))
	o.notifyLocked(r.snapshot())
	o.mu.Unlock()
	return true
}

func (o *Orchestrator) onProgress(r *run, jobs *models.AnalysisJobSet) {
	o.recordJobs(r, jobs)

	o.mu.Lock()
	if o.cur != r || r.ctx.Err() != nil {
		o.mu.Unlock()
		return
	}
	r.progress = progressText(jobs)
	o.notifyLocked(r.snapshot())
	o.mu.Unlock()
}

// recordJobs copies job handles into the session view and mirrors their
// statuses into the cache.
func (o *Orchestrator) recordJobs(r *run, jobs *models.AnalysisJobSet) {
	handles := make(map[models.JobKind]models.JobHandle, len(models.JobKinds))
	for _, kind := range models.JobKinds {
		if h, ok := jobs.Handle(kind); ok {
			handles[kind] = h
		}
	}

	o.mu.Lock()
	if o.cur == r {
		r.jobs = handles
	}
	o.mu.Unlock()

	if o.deps.Cache == nil || r.ctx.Err() != nil {
		return
	}
	for kind, h := range handles {
		if err := o.deps.Cache.SetJobStatus(r.ctx, kind, h.ID, h.Status, o.opts.JobStatusTTL); err != nil {
			slog.Debug("caching job status failed", "job_id", h.ID, "error", err)
		}
	}
}

func (o *Orchestrator) complete(r *run, report *models.FeedbackReport) {
	o.mu.Lock()
	if o.cur != r || r.ctx.Err() != nil {
		o.mu.Unlock()
		return
	}
	report.SessionID = r.session.ID
	report.DurationSeconds = r.session.ElapsedSeconds
	r.report = report
	r.session.State = models.StateCompleted
	r.progress = ""
	o.deps.Metrics.Transition(string(models.StateCompleted))
	o.deps.Metrics.Outcome(report.Synthetic)
	o.deps.Metrics.ObservePipeline(o.now().Sub(r.stoppedAt))
	r.finish()
	o.notifyLocked(r.snapshot())
	o.mu.Unlock()

	slog.Info("session completed",
		"session_id", r.session.ID,
		"total_score", report.TotalScore,
		"grade", report.Grade,
		"synthetic", report.Synthetic,
	)
}

func (o *Orchestrator) diagnose(sessionID uuid.UUID, stage models.SessionState, err error) {
	kind := Classify(err)
	slog.Warn("interview session step failed",
		"session_id", sessionID,
		"stage", stage,
		"kind", kind,
		"error", err,
	)
	o.deps.Metrics.Failure(kind)
	if o.deps.Events != nil {
		o.deps.Events(Event{
			SessionID: sessionID,
			Stage:     stage,
			Kind:      kind,
			Err:       err,
			At:        o.now().UTC(),
		})
	}
}

// notifyLocked queues s for the listener. Queuing under mu keeps snapshots
// in the order the state changed.
func (o *Orchestrator) notifyLocked(s Snapshot) {
	o.listener.send(s)
}

// release waits for a detached run's pipeline to exit.
func (o *Orchestrator) release(old *run) {
	if old != nil {
		old.wg.Wait()
	}
}

func idleSnapshot() Snapshot {
	return Snapshot{
		Session: models.Session{State: models.StateIdle},
		Elapsed: FormatElapsed(0),
	}
}

func progressText(jobs *models.AnalysisJobSet) string {
	st := jobs.Statuses()
	return fmt.Sprintf("Analyzing... (STT: %s, Face: %s, Segment: %s)",
		st[models.JobKindSTT], st[models.JobKindFace], st[models.JobKindSegment])
}
