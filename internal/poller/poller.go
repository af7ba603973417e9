package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"voxtrace/internal/analysis"
	"voxtrace/internal/backoff"
	"voxtrace/internal/jobstore"
	"voxtrace/internal/logging"
	"voxtrace/internal/services"
)

// Fetcher retrieves the backend's current view of one analysis job.
type Fetcher interface {
	FetchStatus(ctx context.Context, jobID string) (analysis.StatusReport, error)
}

// Phase describes where a poller sits in its scheduling cycle.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseScheduled  Phase = "scheduled"
	PhaseInFlight   Phase = "in-flight"
	PhasePaused     Phase = "paused"
	PhaseTerminated Phase = "terminated"
	PhaseStopped    Phase = "stopped"
)

// Snapshot is a point-in-time view of a poller's scheduling state.
type Snapshot struct {
	JobID      string
	Phase      Phase
	RetryCount int
	NextDelay  time.Duration
}

// Config carries the collaborators for a single job's poll loop.
type Config struct {
	JobID      string
	Store      *jobstore.Store
	Fetcher    Fetcher
	Policy     backoff.Policy
	MaxRetries int
	Clock      Clock
	Logger     *slog.Logger

	// OnTerminated fires once, off the poller's lock, when the loop ends
	// because the job reached a terminal state.
	OnTerminated func(jobID string)
}

// Poller drives one job from tracking-start to a terminal state through a
// loop of fetch, merge, reschedule. At most one fetch is in flight and at
// most one timer is armed for the job at any instant.
type Poller struct {
	jobID        string
	store        *jobstore.Store
	fetcher      Fetcher
	policy       backoff.Policy
	maxRetries   int
	clock        Clock
	logger       *slog.Logger
	onTerminated func(jobID string)

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	timer       Timer
	inFlight    bool
	paused      bool
	stopped     bool
	terminated  bool
	retryCount  int
	nextDelay   time.Duration
	resumeDelay time.Duration
}

// New builds a poller. It does not schedule anything until Start is called.
func New(cfg Config) *Poller {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = backoff.DefaultMaxRetries
	}
	logger := logging.NewComponentLogger(cfg.Logger, "poller").
		With(logging.String(logging.FieldJobID, cfg.JobID))

	// Every fetch carries the job id so the remote client's logs can be
	// correlated without threading the id through call sites.
	ctx, cancel := context.WithCancel(services.WithJobID(context.Background(), cfg.JobID))
	return &Poller{
		jobID:        cfg.JobID,
		store:        cfg.Store,
		fetcher:      cfg.Fetcher,
		policy:       cfg.Policy,
		maxRetries:   maxRetries,
		clock:        clock,
		logger:       logger,
		onTerminated: cfg.OnTerminated,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// JobID returns the job this poller owns.
func (p *Poller) JobID() string { return p.jobID }

// Start arms the first fetch. Calling Start on a live poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.terminated || p.timer != nil || p.inFlight {
		return
	}
	p.nextDelay = p.policy.NextDelay(0)
	p.armLocked(0)
}

// Stop cancels the loop. Any fetch already in flight finishes but its
// result is discarded; no further store writes occur for this job.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.clearTimerLocked()
	p.mu.Unlock()
	p.cancel()
}

// Pause suspends scheduling while preserving the retry count and current
// delay, so backoff state survives across a pause.
func (p *Poller) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused || p.stopped || p.terminated {
		return
	}
	p.paused = true
	p.clearTimerLocked()
	p.logger.Debug("polling paused", logging.Int(logging.FieldAttempt, p.retryCount))
}

// Resume re-arms the schedule with the delay that was pending when the
// poller was paused.
func (p *Poller) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused || p.stopped || p.terminated {
		return
	}
	p.paused = false
	if p.inFlight || p.timer != nil {
		return
	}
	p.timer = p.clock.AfterFunc(p.resumeDelay, p.poll)
	p.logger.Debug("polling resumed", logging.Duration(logging.FieldDelay, p.resumeDelay))
}

// Terminated reports whether the loop has ended because the job reached a
// terminal state.
func (p *Poller) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

// Snapshot returns the poller's current scheduling state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		JobID:      p.jobID,
		Phase:      p.phaseLocked(),
		RetryCount: p.retryCount,
		NextDelay:  p.nextDelay,
	}
}

func (p *Poller) phaseLocked() Phase {
	switch {
	case p.stopped:
		return PhaseStopped
	case p.terminated:
		return PhaseTerminated
	case p.paused:
		return PhasePaused
	case p.inFlight:
		return PhaseInFlight
	case p.timer != nil:
		return PhaseScheduled
	default:
		return PhaseIdle
	}
}

// armLocked records the delay the schedule should use next and arms the
// timer unless the poller is paused. Recording the delay even while paused
// lets Resume pick up exactly where the schedule left off.
func (p *Poller) armLocked(delay time.Duration) {
	if p.stopped || p.terminated {
		return
	}
	p.resumeDelay = delay
	if p.paused {
		return
	}
	p.timer = p.clock.AfterFunc(delay, p.poll)
}

func (p *Poller) clearTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Poller) poll() {
	p.mu.Lock()
	p.timer = nil
	if p.stopped || p.terminated || p.paused {
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	ctx := p.ctx
	p.mu.Unlock()

	report, err := p.fetcher.FetchStatus(ctx, p.jobID)

	p.mu.Lock()
	p.inFlight = false
	if p.stopped {
		// Cancelled while the fetch was in flight: the result is stale.
		p.mu.Unlock()
		return
	}
	var done bool
	if err != nil {
		done = p.handleErrorLocked(err)
	} else {
		done = p.handleReportLocked(report)
	}
	onTerminated := p.onTerminated
	p.mu.Unlock()

	if done && onTerminated != nil {
		onTerminated(p.jobID)
	}
}

func (p *Poller) handleErrorLocked(err error) bool {
	if p.ctx.Err() != nil {
		return false
	}
	if services.Permanent(err) {
		p.logger.Error("polling stopped on permanent error", logging.Error(err))
		p.store.Merge(p.jobID, analysis.Patch{
			State:        analysis.StateFailed,
			ErrorMessage: err.Error(),
		})
		p.terminated = true
		return true
	}

	p.retryCount++
	if p.retryCount >= p.maxRetries {
		p.logger.Error("retry budget exhausted",
			logging.Int(logging.FieldAttempt, p.retryCount),
			logging.Error(err))
		p.store.Merge(p.jobID, analysis.Patch{
			State:        analysis.StateFailed,
			ErrorMessage: timeoutMessage,
		})
		p.terminated = true
		return true
	}

	p.nextDelay = p.policy.NextDelay(p.retryCount)
	p.logger.Warn("status fetch failed, backing off",
		logging.Int(logging.FieldAttempt, p.retryCount),
		logging.Duration(logging.FieldDelay, p.nextDelay),
		logging.Error(err))
	p.armLocked(p.nextDelay)
	return false
}

func (p *Poller) handleReportLocked(report analysis.StatusReport) bool {
	patch, terminal := decide(report)
	merged, applied := p.store.Merge(p.jobID, patch)
	if terminal {
		if applied {
			p.logger.Info("job reached terminal state",
				logging.String(logging.FieldState, string(merged.State)))
		}
		p.terminated = true
		return true
	}

	p.retryCount = 0
	p.nextDelay = p.policy.NextDelay(0)
	p.logger.Debug("poll complete, next fetch scheduled",
		logging.String(logging.FieldState, string(merged.State)),
		logging.Duration(logging.FieldDelay, p.nextDelay))
	p.armLocked(p.nextDelay)
	return false
}
