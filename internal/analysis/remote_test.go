package analysis_test

import (
	"testing"

	"voxtrace/internal/analysis"
)

func TestMapRemoteStatus(t *testing.T) {
	cases := []struct {
		status analysis.RemoteStatus
		want   analysis.LifecycleState
	}{
		{analysis.RemotePending, analysis.StateProcessing},
		{analysis.RemoteProcessing, analysis.StateProcessing},
		{analysis.RemoteComplete, analysis.StateCompleted},
		{analysis.RemoteFailed, analysis.StateFailed},
		{"CANCELLED", analysis.StateProcessing},
		{"SOMETHING_NEW", analysis.StateProcessing},
		{"", analysis.StateProcessing},
	}
	for _, tc := range cases {
		if got := analysis.MapRemoteStatus(tc.status); got != tc.want {
			t.Fatalf("MapRemoteStatus(%q) = %s, want %s", tc.status, got, tc.want)
		}
	}
}

func TestNormalizeRemoteStatus(t *testing.T) {
	if got := analysis.NormalizeRemoteStatus("  complete "); got != analysis.RemoteComplete {
		t.Fatalf("NormalizeRemoteStatus = %q, want %q", got, analysis.RemoteComplete)
	}
}
