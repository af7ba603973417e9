package jobstore_test

import (
	"encoding/json"
	"testing"

	"voxtrace/internal/analysis"
	"voxtrace/internal/jobstore"
)

func TestTrackIsIdempotent(t *testing.T) {
	store := jobstore.New()

	first, created := store.Track("job-1")
	if !created {
		t.Fatal("expected first Track to create the record")
	}
	if first.State != analysis.StateUploading {
		t.Fatalf("new job state = %s, want %s", first.State, analysis.StateUploading)
	}

	if _, ok := store.Merge("job-1", analysis.Patch{State: analysis.StateProcessing, Progress: 40}); !ok {
		t.Fatal("merge did not apply")
	}

	again, created := store.Track("job-1")
	if created {
		t.Fatal("second Track must not recreate the record")
	}
	if again.State != analysis.StateProcessing || again.Progress != 40 {
		t.Fatalf("second Track returned %s/%d, want existing processing/40", again.State, again.Progress)
	}
}

func TestMergeRejectsBackwardTransition(t *testing.T) {
	store := jobstore.New()
	store.Track("job-1")
	store.Merge("job-1", analysis.Patch{State: analysis.StateProcessing, Progress: 50})

	job, applied := store.Merge("job-1", analysis.Patch{State: analysis.StateUploading})
	if applied {
		t.Fatal("backward transition must be rejected")
	}
	if job.State != analysis.StateProcessing || job.Progress != 50 {
		t.Fatalf("rejected merge mutated record: %s/%d", job.State, job.Progress)
	}
}

func TestMergeTerminalIsAbsorbing(t *testing.T) {
	store := jobstore.New()
	store.Track("job-1")
	results := json.RawMessage(`{"score": 0.9}`)
	store.Merge("job-1", analysis.Patch{State: analysis.StateCompleted, Results: results})

	if _, applied := store.Merge("job-1", analysis.Patch{State: analysis.StateFailed, ErrorMessage: "late"}); applied {
		t.Fatal("terminal state must absorb further merges")
	}
	job, _ := store.Get("job-1")
	if job.State != analysis.StateCompleted || job.ErrorMessage != "" {
		t.Fatalf("terminal record mutated: %s %q", job.State, job.ErrorMessage)
	}
}

func TestMergeUnknownJobIsNoop(t *testing.T) {
	store := jobstore.New()
	if _, applied := store.Merge("missing", analysis.Patch{State: analysis.StateProcessing}); applied {
		t.Fatal("merge into unknown id must not apply")
	}
}

func TestSubscribeReceivesAppliedMergesOnly(t *testing.T) {
	store := jobstore.New()
	store.Track("job-1")

	var seen []analysis.Job
	cancel := store.Subscribe("job-1", func(job analysis.Job) {
		seen = append(seen, job)
	})
	defer cancel()

	store.Merge("job-1", analysis.Patch{State: analysis.StateProcessing, Progress: 10})
	store.Merge("job-1", analysis.Patch{State: analysis.StateProcessing, Progress: 5}) // monotonic clamp, still applied
	store.Merge("job-1", analysis.Patch{State: analysis.StateUploading})                // rejected
	store.Merge("job-1", analysis.Patch{State: analysis.StateCompleted, Results: json.RawMessage(`{}`)})
	store.Merge("job-1", analysis.Patch{State: analysis.StateCompleted}) // terminal repeat, rejected

	if len(seen) != 3 {
		t.Fatalf("subscriber saw %d merges, want 3", len(seen))
	}
	if seen[0].Progress != 10 || seen[1].Progress != 10 {
		t.Fatalf("progress snapshots = %d, %d; want 10, 10", seen[0].Progress, seen[1].Progress)
	}
	if seen[2].State != analysis.StateCompleted || seen[2].Progress != 100 {
		t.Fatalf("final snapshot = %s/%d, want completed/100", seen[2].State, seen[2].Progress)
	}
}

func TestSubscribeAllJobs(t *testing.T) {
	store := jobstore.New()

	var ids []string
	cancel := store.Subscribe("", func(job analysis.Job) {
		ids = append(ids, job.ID)
	})
	defer cancel()

	store.Track("a")
	store.Track("b")
	store.Merge("b", analysis.Patch{State: analysis.StateProcessing})

	want := []string{"a", "b", "b"}
	if len(ids) != len(want) {
		t.Fatalf("saw %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("saw %v, want %v", ids, want)
		}
	}
}

func TestSubscriberSnapshotsAreIsolated(t *testing.T) {
	store := jobstore.New()
	store.Track("job-1")

	var captured analysis.Job
	cancel := store.Subscribe("job-1", func(job analysis.Job) {
		captured = job
	})
	defer cancel()

	store.Merge("job-1", analysis.Patch{State: analysis.StateCompleted, Results: json.RawMessage(`{"k":1}`)})
	captured.Results[2] = 'x'

	job, _ := store.Get("job-1")
	if string(job.Results) != `{"k":1}` {
		t.Fatalf("store record shares the subscriber's results buffer: %s", job.Results)
	}
}

func TestCancelledSubscriptionStopsDelivery(t *testing.T) {
	store := jobstore.New()
	store.Track("job-1")

	calls := 0
	cancel := store.Subscribe("job-1", func(analysis.Job) { calls++ })
	store.Merge("job-1", analysis.Patch{State: analysis.StateProcessing, Progress: 1})
	cancel()
	store.Merge("job-1", analysis.Patch{State: analysis.StateProcessing, Progress: 2})

	if calls != 1 {
		t.Fatalf("subscriber called %d times after cancel, want 1", calls)
	}
}

func TestRemoveFiresHook(t *testing.T) {
	store := jobstore.New()
	store.Track("job-1")

	var removed []string
	store.OnRemove(func(jobID string) { removed = append(removed, jobID) })

	if !store.Remove("job-1") {
		t.Fatal("Remove returned false for tracked job")
	}
	if store.Remove("job-1") {
		t.Fatal("Remove returned true for already removed job")
	}
	if len(removed) != 1 || removed[0] != "job-1" {
		t.Fatalf("hook calls = %v, want [job-1]", removed)
	}
	if _, ok := store.Get("job-1"); ok {
		t.Fatal("job still present after Remove")
	}
}

func TestListOrderedByCreation(t *testing.T) {
	store := jobstore.New()
	store.Track("b")
	store.Track("a")
	store.Track("c")

	jobs := store.List()
	if len(jobs) != 3 {
		t.Fatalf("List returned %d jobs, want 3", len(jobs))
	}
	for i := 1; i < len(jobs); i++ {
		prev, cur := jobs[i-1], jobs[i]
		if cur.CreatedAt.Before(prev.CreatedAt) {
			t.Fatalf("jobs out of creation order: %s before %s", cur.ID, prev.ID)
		}
	}
}

func TestCounts(t *testing.T) {
	store := jobstore.New()
	store.Track("a")
	store.Track("b")
	store.Merge("b", analysis.Patch{State: analysis.StateProcessing})
	store.Track("c")
	store.Merge("c", analysis.Patch{State: analysis.StateFailed, ErrorMessage: "boom"})

	counts := store.Counts()
	if counts[analysis.StateUploading] != 1 || counts[analysis.StateProcessing] != 1 || counts[analysis.StateFailed] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
