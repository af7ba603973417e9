package analysis

import (
	"encoding/json"
	"strings"
	"time"
)

// LifecycleState represents the lifecycle of a tracked analysis job.
type LifecycleState string

const (
	StateUploading  LifecycleState = "uploading"
	StateProcessing LifecycleState = "processing"
	StateCompleted  LifecycleState = "completed"
	StateFailed     LifecycleState = "failed"
	StateCancelled  LifecycleState = "cancelled"
)

var allStates = []LifecycleState{
	StateUploading,
	StateProcessing,
	StateCompleted,
	StateFailed,
	StateCancelled,
}

// stateRank orders states so merges can reject movement backward. All
// terminal states share the top rank; they are unreachable from each other
// because terminal states never transition at all.
var stateRank = map[LifecycleState]int{
	StateUploading:  0,
	StateProcessing: 1,
	StateCompleted:  2,
	StateFailed:     2,
	StateCancelled:  2,
}

// AllStates returns the ordered list of known lifecycle states.
func AllStates() []LifecycleState {
	cp := make([]LifecycleState, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known LifecycleState.
func ParseState(value string) (LifecycleState, bool) {
	normalized := LifecycleState(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateRank[normalized]
	return normalized, ok
}

// IsTerminal reports whether a state permits no further transitions.
func (s LifecycleState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a job currently in state s may move to
// target. Terminal states are absorbing, and no transition may move a job
// backward in the lifecycle ordering.
func (s LifecycleState) CanTransition(target LifecycleState) bool {
	if s.IsTerminal() {
		return false
	}
	from, ok := stateRank[s]
	if !ok {
		return false
	}
	to, ok := stateRank[target]
	if !ok {
		return false
	}
	return to >= from
}

// Job is the record kept for one tracked analysis request. Results is
// populated only when State is StateCompleted, ErrorMessage only when State
// is StateFailed; Apply maintains both invariants.
type Job struct {
	ID           string
	State        LifecycleState
	Progress     int
	Results      json.RawMessage
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewJob returns the initial record for a freshly issued job id.
func NewJob(id string, now time.Time) Job {
	stamp := now.UTC()
	return Job{
		ID:        id,
		State:     StateUploading,
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}
}

// IsTerminal reports whether the job has reached a terminal state.
func (j Job) IsTerminal() bool {
	return j.State.IsTerminal()
}

// Clone returns a deep copy so callers can hand out snapshots without
// sharing the results buffer.
func (j Job) Clone() Job {
	cp := j
	if j.Results != nil {
		cp.Results = make(json.RawMessage, len(j.Results))
		copy(cp.Results, j.Results)
	}
	return cp
}

// Patch describes one status update to merge into a job record.
type Patch struct {
	State        LifecycleState
	Progress     int
	Results      json.RawMessage
	ErrorMessage string
}

// Apply merges a patch into the job, enforcing the transition rule: the
// merge is dropped silently when it would move the job backward or out of a
// terminal state. Progress never decreases while the job is non-terminal,
// and is pinned to 100 on completion. Returns true when the patch was
// applied; UpdatedAt is stamped only on applied merges.
func (j *Job) Apply(patch Patch, now time.Time) bool {
	if !j.State.CanTransition(patch.State) {
		return false
	}

	switch patch.State {
	case StateCompleted:
		j.State = StateCompleted
		j.Progress = 100
		j.Results = cloneRaw(patch.Results)
		j.ErrorMessage = ""
	case StateFailed:
		j.State = StateFailed
		j.Results = nil
		j.ErrorMessage = patch.ErrorMessage
		if j.ErrorMessage == "" {
			j.ErrorMessage = "analysis failed"
		}
	case StateCancelled:
		// Cancellation is not an error: the record keeps its last progress.
		j.State = StateCancelled
		j.Results = nil
		j.ErrorMessage = ""
	default:
		j.State = patch.State
		if progress := clampProgress(patch.Progress); progress > j.Progress {
			j.Progress = progress
		}
	}

	j.UpdatedAt = now.UTC()
	return true
}

func clampProgress(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	cp := make(json.RawMessage, len(raw))
	copy(cp, raw)
	return cp
}
