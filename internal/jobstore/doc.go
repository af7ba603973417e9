// Package jobstore holds the authoritative in-memory map of tracked
// analysis jobs. All mutation funnels through Merge, which applies the
// forward-only transition rule and broadcasts snapshots to subscribers, so
// every write is auditable and late status responses cannot clobber a
// terminal record.
package jobstore
