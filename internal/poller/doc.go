// Package poller drives the fetch/merge/reschedule loop for tracked
// analysis jobs.
//
// Each job owns exactly one Poller, supervised by the Registry. The loop
// alternates between an armed timer and an in-flight fetch, never both,
// which guarantees a job is polled by at most one request at a time. Delays
// between polls follow the backoff package's curve: reset to the initial
// delay after a successful fetch, grown per consecutive failure, and capped.
// Once the retry budget is exhausted the job is marked failed locally and
// the loop ends.
package poller
