package analysis

import (
	"encoding/json"
	"strings"
)

// RemoteStatus is a status code reported by the analysis service.
type RemoteStatus string

const (
	RemotePending    RemoteStatus = "PENDING"
	RemoteProcessing RemoteStatus = "PROCESSING"
	RemoteComplete   RemoteStatus = "COMPLETE"
	RemoteFailed     RemoteStatus = "FAILED"
)

// NormalizeRemoteStatus canonicalizes a raw status string from the wire.
func NormalizeRemoteStatus(value string) RemoteStatus {
	return RemoteStatus(strings.ToUpper(strings.TrimSpace(value)))
}

// MapRemoteStatus translates a remote status code into a lifecycle state.
// The mapping is total: codes this build does not recognize are treated as
// "still waiting" so a new server-side status never crashes the tracker or
// ends polling early. Cancellation is deliberately absent here; it is only
// ever applied locally, never derived from a server response.
func MapRemoteStatus(status RemoteStatus) LifecycleState {
	switch status {
	case RemotePending, RemoteProcessing:
		return StateProcessing
	case RemoteComplete:
		return StateCompleted
	case RemoteFailed:
		return StateFailed
	default:
		return StateProcessing
	}
}

// StatusReport is the envelope produced by one successful status fetch.
type StatusReport struct {
	Status       RemoteStatus
	Progress     int
	Results      json.RawMessage
	ErrorMessage string
}
