package poller

import (
	"log/slog"
	"sort"
	"sync"

	"voxtrace/internal/backoff"
	"voxtrace/internal/jobstore"
	"voxtrace/internal/logging"
)

// RegistryConfig carries the shared collaborators handed to every poller.
type RegistryConfig struct {
	Store      *jobstore.Store
	Fetcher    Fetcher
	Policy     backoff.Policy
	MaxRetries int
	Clock      Clock
	Logger     *slog.Logger
}

// Registry supervises the live pollers, holding at most one per job id.
type Registry struct {
	store      *jobstore.Store
	fetcher    Fetcher
	policy     backoff.Policy
	maxRetries int
	clock      Clock
	logger     *slog.Logger

	mu      sync.Mutex
	pollers map[string]*Poller
}

// NewRegistry builds an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}
	return &Registry{
		store:      cfg.Store,
		fetcher:    cfg.Fetcher,
		policy:     cfg.Policy,
		maxRetries: cfg.MaxRetries,
		clock:      clock,
		logger:     logging.NewComponentLogger(cfg.Logger, "registry"),
		pollers:    make(map[string]*Poller),
	}
}

// Start creates and arms a poller for the job id. It is idempotent: a
// second Start while a poller is live is a no-op. A poller left behind by a
// terminated job is replaced.
func (r *Registry) Start(jobID string) {
	r.mu.Lock()
	if existing, ok := r.pollers[jobID]; ok && !existing.Terminated() {
		r.mu.Unlock()
		return
	}

	var p *Poller
	p = New(Config{
		JobID:      jobID,
		Store:      r.store,
		Fetcher:    r.fetcher,
		Policy:     r.policy,
		MaxRetries: r.maxRetries,
		Clock:      r.clock,
		Logger:     r.logger,
		OnTerminated: func(id string) {
			r.release(id, p)
		},
	})
	r.pollers[jobID] = p
	r.mu.Unlock()

	r.logger.Debug("poller started", logging.String(logging.FieldJobID, jobID))
	p.Start()
}

// Stop cancels and removes the job's poller. It is idempotent and a no-op
// when no poller is live for the id.
func (r *Registry) Stop(jobID string) {
	r.mu.Lock()
	p := r.pollers[jobID]
	delete(r.pollers, jobID)
	r.mu.Unlock()

	if p != nil {
		p.Stop()
		r.logger.Debug("poller stopped", logging.String(logging.FieldJobID, jobID))
	}
}

// Pause suspends the job's schedule without discarding backoff state.
func (r *Registry) Pause(jobID string) {
	if p := r.lookup(jobID); p != nil {
		p.Pause()
	}
}

// Resume re-arms a paused schedule.
func (r *Registry) Resume(jobID string) {
	if p := r.lookup(jobID); p != nil {
		p.Resume()
	}
}

// StopAll cancels every live poller. Used during daemon shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	pollers := make([]*Poller, 0, len(r.pollers))
	for _, p := range r.pollers {
		pollers = append(pollers, p)
	}
	r.pollers = make(map[string]*Poller)
	r.mu.Unlock()

	for _, p := range pollers {
		p.Stop()
	}
}

// Active returns the job ids with a live poller, sorted for stable output.
func (r *Registry) Active() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.pollers))
	for id := range r.pollers {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Snapshots returns the scheduling state of every live poller, ordered by
// job id.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	pollers := make([]*Poller, 0, len(r.pollers))
	for _, p := range r.pollers {
		pollers = append(pollers, p)
	}
	r.mu.Unlock()

	snapshots := make([]Snapshot, 0, len(pollers))
	for _, p := range pollers {
		snapshots = append(snapshots, p.Snapshot())
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].JobID < snapshots[j].JobID })
	return snapshots
}

func (r *Registry) lookup(jobID string) *Poller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pollers[jobID]
}

// release drops the registry entry once a poller terminates, but only when
// the entry still points at that poller. A replacement started in the
// meantime must not be evicted.
func (r *Registry) release(jobID string, p *Poller) {
	r.mu.Lock()
	if r.pollers[jobID] == p {
		delete(r.pollers, jobID)
	}
	r.mu.Unlock()
}
