package ipc

import (
	"encoding/json"
	"time"

	"voxtrace/internal/analysis"
	"voxtrace/internal/archive"
	"voxtrace/internal/poller"
)

// JobView is the wire representation of a tracked job.
type JobView struct {
	ID           string          `json:"id"`
	State        string          `json:"state"`
	Progress     int             `json:"progress"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Results      json.RawMessage `json:"results,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

// FromJob converts a job record into its wire representation.
func FromJob(job analysis.Job) JobView {
	return JobView{
		ID:           job.ID,
		State:        string(job.State),
		Progress:     job.Progress,
		ErrorMessage: job.ErrorMessage,
		Results:      job.Results,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
	}
}

// PollerStatus is the wire representation of a live poller.
type PollerStatus struct {
	JobID       string `json:"job_id"`
	Phase       string `json:"phase"`
	RetryCount  int    `json:"retry_count"`
	NextDelayMS int64  `json:"next_delay_ms"`
}

func fromSnapshot(s poller.Snapshot) PollerStatus {
	return PollerStatus{
		JobID:       s.JobID,
		Phase:       string(s.Phase),
		RetryCount:  s.RetryCount,
		NextDelayMS: s.NextDelay.Milliseconds(),
	}
}

// HistoryEntry is the wire representation of an archived terminal job.
type HistoryEntry struct {
	JobID        string          `json:"job_id"`
	State        string          `json:"state"`
	Progress     int             `json:"progress"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Results      json.RawMessage `json:"results,omitempty"`
	ArchivedAt   string          `json:"archived_at"`
}

func fromArchiveEntry(e archive.Entry) HistoryEntry {
	return HistoryEntry{
		JobID:        e.JobID,
		State:        string(e.State),
		Progress:     e.Progress,
		ErrorMessage: e.ErrorMessage,
		Results:      e.Results,
		ArchivedAt:   e.ArchivedAt.Format(time.RFC3339),
	}
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents daemon runtime information.
type StatusResponse struct {
	Running     bool           `json:"running"`
	PID         int            `json:"pid"`
	StartedAt   string         `json:"started_at"`
	SocketPath  string         `json:"socket_path"`
	LockPath    string         `json:"lock_path"`
	ArchivePath string         `json:"archive_path"`
	JobStats    map[string]int `json:"job_stats"`
	Pollers     []PollerStatus `json:"pollers"`
}

// SubmitRequest uploads a recording for analysis.
type SubmitRequest struct {
	Path string `json:"path"`
}

// SubmitResponse returns the newly tracked job.
type SubmitResponse struct {
	Job JobView `json:"job"`
}

// TrackRequest starts polling an already-submitted job id.
type TrackRequest struct {
	JobID string `json:"job_id"`
}

// TrackResponse returns the tracked job record.
type TrackResponse struct {
	Job     JobView `json:"job"`
	Created bool    `json:"created"`
}

// ListRequest filters job listing by lifecycle state.
type ListRequest struct {
	States []string `json:"states"`
}

// ListResponse contains tracked jobs.
type ListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// DescribeRequest fetches a single job by id.
type DescribeRequest struct {
	JobID string `json:"job_id"`
}

// DescribeResponse contains a single job.
type DescribeResponse struct {
	Job JobView `json:"job"`
}

// CancelRequest stops polling and marks a job cancelled.
type CancelRequest struct {
	JobID string `json:"job_id"`
}

// CancelResponse contains the job after cancellation.
type CancelResponse struct {
	Job JobView `json:"job"`
}

// PauseRequest suspends a job's polling schedule.
type PauseRequest struct {
	JobID string `json:"job_id"`
}

// PauseResponse acknowledges the pause.
type PauseResponse struct{}

// ResumeRequest re-arms a paused schedule.
type ResumeRequest struct {
	JobID string `json:"job_id"`
}

// ResumeResponse acknowledges the resume.
type ResumeResponse struct{}

// RetryRequest re-runs a failed analysis.
type RetryRequest struct {
	JobID string `json:"job_id"`
}

// RetryResponse contains the fresh job record.
type RetryResponse struct {
	Job JobView `json:"job"`
}

// RemoveRequest deletes a tracked job, optionally purging the backend.
type RemoveRequest struct {
	JobID string `json:"job_id"`
	Purge bool   `json:"purge"`
}

// RemoveResponse acknowledges the removal.
type RemoveResponse struct{}

// HistoryRequest lists archived terminal jobs.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse contains archived jobs, newest first.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges the shutdown.
type ShutdownResponse struct {
	Stopping bool `json:"stopping"`
}
