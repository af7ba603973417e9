package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"voxtrace/internal/analysis"
	"voxtrace/internal/archive"
	"voxtrace/internal/config"
	"voxtrace/internal/logging"
	"voxtrace/internal/poller"
	"voxtrace/internal/tracker"
)

// Daemon coordinates the tracker and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	tracker *tracker.Tracker
	history *archive.Store

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running     bool
	PID         int
	StartedAt   time.Time
	SocketPath  string
	LockPath    string
	ArchivePath string
	JobCounts   map[analysis.LifecycleState]int
	Pollers     []poller.Snapshot
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, tr *tracker.Tracker, history *archive.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || tr == nil {
		return nil, errors.New("daemon requires config and tracker")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		tracker:  tr,
		history:  history,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the singleton lock and marks the daemon live.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another voxtrace daemon instance is already running")
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("voxtrace daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop cancels every live poller and releases the daemon lock. Tracked
// records remain in memory until the process exits.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.tracker.StopAll()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("voxtrace daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.tracker.Close()
	if d.history != nil {
		if err := d.history.Close(); err != nil {
			return fmt.Errorf("close history store: %w", err)
		}
	}
	return nil
}

// Tracker exposes the job-tracking surface served over IPC.
func (d *Daemon) Tracker() *tracker.Tracker { return d.tracker }

// Status reports daemon runtime information.
func (d *Daemon) Status() Status {
	archivePath := ""
	if d.history != nil {
		archivePath = d.history.Path()
	}
	return Status{
		Running:     d.running.Load(),
		PID:         os.Getpid(),
		StartedAt:   d.startedAt,
		SocketPath:  d.cfg.SocketPath(),
		LockPath:    d.lockPath,
		ArchivePath: archivePath,
		JobCounts:   d.tracker.Counts(),
		Pollers:     d.tracker.Snapshots(),
	}
}
