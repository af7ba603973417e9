package poller

import (
	"bytes"

	"voxtrace/internal/analysis"
)

const (
	timeoutMessage        = "polling timed out"
	missingResultsMessage = "analysis reported complete without a results payload"
)

// decide converts a backend report into the patch to merge and reports
// whether the job reached a terminal state. A COMPLETE status without a
// results payload is a business failure: the backend will not self-correct
// on the same job, so retrying is pointless.
func decide(report analysis.StatusReport) (analysis.Patch, bool) {
	switch report.Status {
	case analysis.RemoteComplete:
		if emptyResults(report.Results) {
			return analysis.Patch{
				State:        analysis.StateFailed,
				ErrorMessage: missingResultsMessage,
			}, true
		}
		return analysis.Patch{
			State:   analysis.StateCompleted,
			Results: report.Results,
		}, true
	case analysis.RemoteFailed:
		msg := report.ErrorMessage
		if msg == "" {
			msg = "analysis failed"
		}
		return analysis.Patch{
			State:        analysis.StateFailed,
			ErrorMessage: msg,
		}, true
	default:
		return analysis.Patch{
			State:    analysis.MapRemoteStatus(report.Status),
			Progress: report.Progress,
		}, false
	}
}

func emptyResults(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
