package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"voxtrace/internal/analysis"
	"voxtrace/internal/archive"
	"voxtrace/internal/backoff"
	"voxtrace/internal/config"
	"voxtrace/internal/jobstore"
	"voxtrace/internal/logging"
	"voxtrace/internal/notifications"
	"voxtrace/internal/poller"
	"voxtrace/internal/services"
)

// RemoteService is the backend surface the tracker depends on.
type RemoteService interface {
	Submit(ctx context.Context, filePath string) (string, error)
	FetchStatus(ctx context.Context, jobID string) (analysis.StatusReport, error)
	Retry(ctx context.Context, jobID string) error
	Delete(ctx context.Context, jobID string) error
}

// Options carries the tracker's collaborators. Archive and Notifier may be
// nil; Clock defaults to the system clock.
type Options struct {
	Config   *config.Config
	Remote   RemoteService
	Archive  *archive.Store
	Notifier notifications.Service
	Clock    poller.Clock
	Logger   *slog.Logger
}

// Tracker owns the in-memory job map and the poller registry, and exposes
// the operations the daemon serves over IPC.
type Tracker struct {
	cfg      *config.Config
	store    *jobstore.Store
	registry *poller.Registry
	remote   RemoteService
	archive  *archive.Store
	notifier notifications.Service
	logger   *slog.Logger

	unsubscribe func()
	closeOnce   sync.Once
}

// New wires up a tracker. Every terminal merge is archived and published;
// removing a job from the store tears down its poller.
func New(opts Options) *Tracker {
	logger := opts.Logger
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(opts.Config)
	}

	store := jobstore.New()
	registry := poller.NewRegistry(poller.RegistryConfig{
		Store:   store,
		Fetcher: opts.Remote,
		Policy: backoff.Policy{
			Initial:    opts.Config.InitialDelay(),
			Max:        opts.Config.MaxDelay(),
			Multiplier: opts.Config.Polling.Multiplier,
		},
		MaxRetries: opts.Config.Polling.MaxRetries,
		Clock:      opts.Clock,
		Logger:     logger,
	})
	store.OnRemove(registry.Stop)

	t := &Tracker{
		cfg:      opts.Config,
		store:    store,
		registry: registry,
		remote:   opts.Remote,
		archive:  opts.Archive,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "tracker"),
	}
	t.unsubscribe = store.Subscribe("", t.onMerge)
	return t
}

// onMerge runs on the merging goroutine for every applied store change.
// Terminal merges fire exactly once per job because repeat terminal patches
// are rejected before dispatch.
func (t *Tracker) onMerge(job analysis.Job) {
	if !job.State.IsTerminal() {
		return
	}
	if t.archive != nil {
		if err := t.archive.Record(context.Background(), job); err != nil {
			t.logger.Error("archive terminal job",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err))
		}
	}
	// Push delivery happens off the merge path so a slow notification
	// endpoint cannot stall polling.
	go func() {
		if err := t.notifier.NotifyJobTerminal(context.Background(), job); err != nil {
			t.logger.Warn("publish terminal notification",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err))
		}
	}()
}

// Submit uploads a recording, tracks the returned job id, and starts
// polling it.
func (t *Tracker) Submit(ctx context.Context, filePath string) (analysis.Job, error) {
	jobID, err := t.remote.Submit(ctx, filePath)
	if err != nil {
		return analysis.Job{}, err
	}
	job, _ := t.store.Track(jobID)
	t.registry.Start(jobID)
	t.logger.Info("tracking new analysis", logging.String(logging.FieldJobID, jobID))
	return job, nil
}

// Track starts polling an already-submitted job id. Tracking an id twice is
// a no-op that returns the existing record.
func (t *Tracker) Track(jobID string) (analysis.Job, bool) {
	job, created := t.store.Track(jobID)
	if !job.State.IsTerminal() {
		t.registry.Start(jobID)
	}
	return job, created
}

// Job returns the current record for one job id.
func (t *Tracker) Job(jobID string) (analysis.Job, bool) {
	return t.store.Get(jobID)
}

// Jobs returns every tracked job ordered by creation time.
func (t *Tracker) Jobs() []analysis.Job {
	return t.store.List()
}

// Counts aggregates tracked jobs per lifecycle state.
func (t *Tracker) Counts() map[analysis.LifecycleState]int {
	return t.store.Counts()
}

// Snapshots exposes the scheduling state of every live poller.
func (t *Tracker) Snapshots() []poller.Snapshot {
	return t.registry.Snapshots()
}

// Subscribe registers a callback for merges of one job, or all jobs when
// jobID is empty.
func (t *Tracker) Subscribe(jobID string, fn func(analysis.Job)) func() {
	return t.store.Subscribe(jobID, fn)
}

// Cancel stops polling and marks the job cancelled locally. A fetch already
// in flight is discarded when it resolves.
func (t *Tracker) Cancel(jobID string) error {
	if _, ok := t.store.Get(jobID); !ok {
		return services.Wrap(services.ErrNotFound, "tracker", "cancel", jobID, nil)
	}
	t.registry.Stop(jobID)
	t.store.Merge(jobID, analysis.Patch{State: analysis.StateCancelled})
	return nil
}

// Stop halts polling without changing the job's state.
func (t *Tracker) Stop(jobID string) {
	t.registry.Stop(jobID)
}

// Pause suspends a job's polling schedule, preserving backoff state.
func (t *Tracker) Pause(jobID string) {
	t.registry.Pause(jobID)
}

// Resume re-arms a paused schedule.
func (t *Tracker) Resume(jobID string) {
	t.registry.Resume(jobID)
}

// Retry asks the backend to re-run a failed analysis and begins polling the
// job again from a fresh record.
func (t *Tracker) Retry(ctx context.Context, jobID string) error {
	job, ok := t.store.Get(jobID)
	if !ok {
		if t.archive != nil {
			if entry, found, err := t.archive.Get(ctx, jobID); err == nil && found {
				job = analysis.Job{ID: entry.JobID, State: entry.State}
				ok = true
			}
		}
	}
	if !ok {
		return services.Wrap(services.ErrNotFound, "tracker", "retry", jobID, nil)
	}
	if job.State != analysis.StateFailed {
		return services.Wrap(services.ErrValidation, "tracker", "retry",
			"only failed analyses can be retried, job is "+string(job.State), nil)
	}

	if err := t.remote.Retry(ctx, jobID); err != nil {
		return err
	}

	// A failed record cannot move forward again, so polling restarts from
	// a fresh one.
	t.store.Remove(jobID)
	t.store.Track(jobID)
	t.registry.Start(jobID)
	t.logger.Info("retrying failed analysis", logging.String(logging.FieldJobID, jobID))
	return nil
}

// Remove stops polling and deletes the local record. When purgeRemote is
// set the backend's record is deleted as well; a job the backend has
// already forgotten is not an error.
func (t *Tracker) Remove(ctx context.Context, jobID string, purgeRemote bool) error {
	if purgeRemote {
		if err := t.remote.Delete(ctx, jobID); err != nil && !errors.Is(err, services.ErrNotFound) {
			return err
		}
	}
	if !t.store.Remove(jobID) {
		return services.Wrap(services.ErrNotFound, "tracker", "remove", jobID, nil)
	}
	return nil
}

// History lists archived terminal jobs, newest first.
func (t *Tracker) History(ctx context.Context, limit int) ([]archive.Entry, error) {
	if t.archive == nil {
		return nil, nil
	}
	return t.archive.List(ctx, limit)
}

// TestNotification sends a canned message through the configured notifier.
func (t *Tracker) TestNotification(ctx context.Context) error {
	return t.notifier.TestNotification(ctx)
}

// StopAll cancels every live poller without tearing down the tracker.
// Tracked records stay in the store so a later start can resume them.
func (t *Tracker) StopAll() {
	t.registry.StopAll()
}

// Close cancels every live poller and detaches the terminal-merge
// subscription. It does not close the archive, which the caller owns.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		if t.unsubscribe != nil {
			t.unsubscribe()
		}
		t.registry.StopAll()
	})
}
