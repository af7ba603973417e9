package jobstore

import (
	"sort"
	"sync"
	"time"

	"voxtrace/internal/analysis"
)

// Subscriber receives a snapshot of a job after each applied merge.
type Subscriber func(analysis.Job)

type subscription struct {
	jobID string // empty subscribes to every job
	fn    Subscriber
}

// Store is the in-memory registry of tracked jobs.
type Store struct {
	mu     sync.RWMutex
	jobs   map[string]*analysis.Job
	subs   map[int]subscription
	nextID int

	onRemove func(jobID string)

	// notifyMu serializes subscriber dispatch so callbacks observe merges
	// in the order they were applied.
	notifyMu sync.Mutex
}

// New returns an empty store.
func New() *Store {
	return &Store{
		jobs: make(map[string]*analysis.Job),
		subs: make(map[int]subscription),
	}
}

// OnRemove registers a hook invoked after a job is deleted. The poller
// registry uses it to tear down the job's poller so removal never leaves an
// orphaned timer behind.
func (s *Store) OnRemove(hook func(jobID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRemove = hook
}

// Track creates the initial record for a job id. When the id is already
// tracked the existing record is returned unchanged and created is false.
func (s *Store) Track(jobID string) (analysis.Job, bool) {
	s.mu.Lock()
	if existing, ok := s.jobs[jobID]; ok {
		snapshot := existing.Clone()
		s.mu.Unlock()
		return snapshot, false
	}
	job := analysis.NewJob(jobID, time.Now())
	s.jobs[jobID] = &job
	snapshot := job.Clone()
	subs := s.subscribersFor(jobID)
	s.mu.Unlock()

	s.dispatch(subs, snapshot)
	return snapshot, true
}

// Get returns a snapshot of a tracked job.
func (s *Store) Get(jobID string) (analysis.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return analysis.Job{}, false
	}
	return job.Clone(), true
}

// List returns snapshots of every tracked job ordered by creation time.
func (s *Store) List() []analysis.Job {
	s.mu.RLock()
	jobs := make([]analysis.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs
}

// Counts aggregates tracked jobs per lifecycle state.
func (s *Store) Counts() map[analysis.LifecycleState]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[analysis.LifecycleState]int, len(analysis.AllStates()))
	for _, job := range s.jobs {
		counts[job.State]++
	}
	return counts
}

// Merge applies a patch to a tracked job under the lifecycle transition
// rule and notifies subscribers when the patch took effect. Merging into an
// unknown id, or a patch that would move the job backward, is a silent
// no-op.
func (s *Store) Merge(jobID string, patch analysis.Patch) (analysis.Job, bool) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return analysis.Job{}, false
	}
	if !job.Apply(patch, time.Now()) {
		snapshot := job.Clone()
		s.mu.Unlock()
		return snapshot, false
	}
	snapshot := job.Clone()
	subs := s.subscribersFor(jobID)
	s.mu.Unlock()

	s.dispatch(subs, snapshot)
	return snapshot, true
}

// Remove deletes a job and fires the removal hook so any live poller for
// the id is stopped as well.
func (s *Store) Remove(jobID string) bool {
	s.mu.Lock()
	_, ok := s.jobs[jobID]
	if ok {
		delete(s.jobs, jobID)
	}
	hook := s.onRemove
	s.mu.Unlock()

	if ok && hook != nil {
		hook(jobID)
	}
	return ok
}

// Subscribe registers a callback for merges of one job id, or of every job
// when jobID is empty. The returned function cancels the subscription.
// Callbacks run synchronously on the merging goroutine and must not call
// back into the store's control surface.
func (s *Store) Subscribe(jobID string, fn Subscriber) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = subscription{jobID: jobID, fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) subscribersFor(jobID string) []Subscriber {
	if len(s.subs) == 0 {
		return nil
	}
	matched := make([]Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.jobID == "" || sub.jobID == jobID {
			matched = append(matched, sub.fn)
		}
	}
	return matched
}

func (s *Store) dispatch(subs []Subscriber, snapshot analysis.Job) {
	if len(subs) == 0 {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for _, fn := range subs {
		fn(snapshot.Clone())
	}
}
