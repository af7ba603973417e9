// Package analysis defines the lifecycle model for tracked analysis jobs:
// the lifecycle states and their ordering, the remote status codes reported
// by the analysis service and their translation into lifecycle states, and
// the job record with its merge rule. The merge rule is the single place
// that enforces forward-only transitions, so late or duplicated status
// responses collapse into no-ops.
package analysis
