package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/stickybus/internal/event"
	"github.com/dshills/stickybus/internal/event/directory"
)

// JobsBus is the tag of the bus the demo workload submits jobs on.
const JobsBus = "jobs"

// failEvery makes every n-th demo job fail.
const failEvery = 10

// ErrJobRejected is returned by the demo job runner for rejected jobs.
var ErrJobRejected = errors.New("job rejected")

// Heartbeat is the sticky liveness event of the demo workload.
type Heartbeat struct {
	Seq uint64
	At  time.Time
}

// Job is a unit of work submitted on the jobs bus.
type Job struct {
	ID    uuid.UUID
	Input uint64
}

// JobDone is posted on the default bus when a job finished.
type JobDone struct {
	ID     uuid.UUID
	Output uint64
	Took   time.Duration
}

// Workload exercises the buses of a directory: a sticky heartbeat on the
// default bus, a status board that reacts to it on the main loop, an audit
// trail on the background goroutine, and jobs run on the async pool of the
// jobs bus.
type Workload struct {
	buses   *directory.Directory
	logger  *zap.SugaredLogger
	metrics *Metrics

	mu     sync.Mutex
	seq    uint64
	status *statusBoard
	audit  *auditTrail
	runner *jobRunner
}

// NewWorkload creates a workload over buses. A nil metrics discards the counters.
func NewWorkload(buses *directory.Directory, logger *zap.SugaredLogger, metrics *Metrics) *Workload {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Workload{
		buses:   buses,
		logger:  logger.Named("workload"),
		metrics: metrics,
	}
}

// Start registers the workload subscribers.
func (w *Workload) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	bus, err := w.buses.Default()
	if err != nil {
		return err
	}
	jobs, err := w.buses.Obtain(JobsBus)
	if err != nil {
		return err
	}

	w.status = &statusBoard{logger: w.logger}
	w.audit = &auditTrail{logger: w.logger}
	w.runner = &jobRunner{bus: bus, metrics: w.metrics}

	// Sticky so a board created after the first tick still shows the last heartbeat.
	if err := bus.RegisterSticky(w.status); err != nil {
		return fmt.Errorf("register status board: %w", err)
	}
	if err := bus.RegisterWithPriority(w.audit, -1); err != nil {
		return fmt.Errorf("register audit trail: %w", err)
	}
	if _, err := event.Subscribe(jobs, w.runner, w.runner.run, event.OnThread(event.Async)); err != nil {
		return fmt.Errorf("subscribe job runner: %w", err)
	}
	if _, err := event.SubscribeFunc(jobs, w.runner, w.runner.reportFailure); err != nil {
		return fmt.Errorf("subscribe failure reporter: %w", err)
	}
	return nil
}

// Tick posts one heartbeat and submits one job.
func (w *Workload) Tick(ctx context.Context) error {
	w.mu.Lock()
	w.seq++
	seq := w.seq
	w.mu.Unlock()

	bus, err := w.buses.Default()
	if err != nil {
		return err
	}
	if err := bus.PostSticky(ctx, Heartbeat{Seq: seq, At: time.Now()}); err != nil {
		return fmt.Errorf("post heartbeat: %w", err)
	}
	w.metrics.RecordHeartbeat()

	jobs, err := w.buses.Obtain(JobsBus)
	if err != nil {
		return err
	}
	job := Job{ID: uuid.New(), Input: seq}
	if err := jobs.Post(ctx, job); err != nil {
		return fmt.Errorf("submit job %s: %w", job.ID, err)
	}
	w.metrics.RecordJobSubmitted()
	return nil
}

// Stop unregisters the workload subscribers.
func (w *Workload) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if bus, ok := w.buses.Lookup(""); ok {
		bus.Unregister(w.status)
		bus.Unregister(w.audit)
	}
	if jobs, ok := w.buses.Lookup(JobsBus); ok {
		jobs.Unregister(w.runner)
	}
}

// LastHeartbeat returns the heartbeat the status board saw last.
func (w *Workload) LastHeartbeat() (Heartbeat, bool) {
	w.mu.Lock()
	status := w.status
	w.mu.Unlock()
	if status == nil {
		return Heartbeat{}, false
	}
	return status.last()
}

// AuditLen returns the number of entries in the audit trail.
func (w *Workload) AuditLen() int {
	w.mu.Lock()
	audit := w.audit
	w.mu.Unlock()
	if audit == nil {
		return 0
	}
	return audit.len()
}

// statusBoard tracks the latest heartbeat on the main loop.
type statusBoard struct {
	logger *zap.SugaredLogger

	mu   sync.Mutex
	beat Heartbeat
	seen bool
}

func (*statusBoard) EventMethods() []event.Annotation {
	return []event.Annotation{
		{Method: "OnHeartbeat", Mode: event.MainThread},
	}
}

func (s *statusBoard) OnHeartbeat(h Heartbeat) {
	s.mu.Lock()
	s.beat, s.seen = h, true
	s.mu.Unlock()
	s.logger.Debugw("heartbeat", "seq", h.Seq)
}

func (s *statusBoard) last() (Heartbeat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beat, s.seen
}

// auditTrail records finished jobs on the background goroutine.
type auditTrail struct {
	logger *zap.SugaredLogger

	mu      sync.Mutex
	entries []JobDone
}

func (*auditTrail) EventMethods() []event.Annotation {
	return []event.Annotation{
		{Method: "OnJobDone", Mode: event.BackgroundThread},
	}
}

func (a *auditTrail) OnJobDone(d JobDone) {
	a.mu.Lock()
	a.entries = append(a.entries, d)
	a.mu.Unlock()
	a.logger.Infow("job done", "job", d.ID, "output", d.Output, "took", d.Took)
}

func (a *auditTrail) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// jobRunner runs jobs on the jobs bus and reports results on bus.
type jobRunner struct {
	bus     *event.Bus
	metrics *Metrics
}

func (r *jobRunner) run(ctx context.Context, job Job) error {
	start := time.Now()
	if job.Input%failEvery == 0 {
		return fmt.Errorf("%w: %s", ErrJobRejected, job.ID)
	}
	var out uint64
	for i := uint64(1); i <= job.Input; i++ {
		out += i * i
	}
	r.metrics.RecordJobCompleted()
	return r.bus.Post(ctx, JobDone{ID: job.ID, Output: out, Took: time.Since(start)})
}

func (r *jobRunner) reportFailure(e event.SubscriberExceptionEvent) {
	if _, ok := e.Event.(Job); ok && errors.Is(e.Err, ErrJobRejected) {
		r.metrics.RecordJobFailed()
	}
}

// runWorkload ticks the demo workload until ctx is cancelled.
func (app *Application) runWorkload(ctx context.Context) error {
	w := NewWorkload(app.buses, app.logger.SugaredLogger, app.metrics)
	if err := w.Start(); err != nil {
		return &ComponentError{Component: "workload", Action: "start", Err: err}
	}
	defer w.Stop()

	ticker := time.NewTicker(app.opts.DemoInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil && ctx.Err() == nil {
				app.logger.Warnw("workload tick failed", "error", err)
			}
		}
	}
}
