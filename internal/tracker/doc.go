// Package tracker is the orchestration layer between the daemon surface
// and the polling core. It owns the job store and poller registry, talks to
// the analysis backend for submit/retry/delete, archives terminal jobs, and
// publishes push notifications.
package tracker
