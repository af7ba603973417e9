package tracker_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"voxtrace/internal/analysis"
	"voxtrace/internal/archive"
	"voxtrace/internal/services"
	"voxtrace/internal/testsupport"
	"voxtrace/internal/tracker"
)

type recordingNotifier struct {
	events chan analysis.Job
}

func (r *recordingNotifier) NotifyJobTerminal(_ context.Context, job analysis.Job) error {
	r.events <- job
	return nil
}

func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

type fixture struct {
	tracker  *tracker.Tracker
	remote   *testsupport.FakeRemote
	clock    *testsupport.FakeClock
	archive  *archive.Store
	notifier *recordingNotifier
}

func newFixture(t *testing.T, script ...testsupport.FetchResult) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	hist, err := archive.Open(cfg)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	remote := testsupport.NewFakeRemote(script...)
	clock := testsupport.NewFakeClock(time.Unix(0, 0))
	notifier := &recordingNotifier{events: make(chan analysis.Job, 4)}

	tr := tracker.New(tracker.Options{
		Config:   cfg,
		Remote:   remote,
		Archive:  hist,
		Notifier: notifier,
		Clock:    clock,
	})
	t.Cleanup(tr.Close)
	return &fixture{tracker: tr, remote: remote, clock: clock, archive: hist, notifier: notifier}
}

func writeRecording(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "take.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSubmitTracksAndPollsToCompletion(t *testing.T) {
	f := newFixture(t,
		testsupport.ProcessingReport(30),
		testsupport.CompleteReport(`{"tempo": 98}`),
	)

	job, err := f.tracker.Submit(context.Background(), writeRecording(t))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.State != analysis.StateUploading {
		t.Fatalf("initial state = %s", job.State)
	}

	f.clock.Advance(time.Minute)

	final, ok := f.tracker.Job(job.ID)
	if !ok || final.State != analysis.StateCompleted {
		t.Fatalf("final = %+v ok=%v", final, ok)
	}
	if string(final.Results) != `{"tempo": 98}` {
		t.Fatalf("results = %s", final.Results)
	}

	select {
	case event := <-f.notifier.events:
		if event.State != analysis.StateCompleted {
			t.Fatalf("notified state = %s", event.State)
		}
	case <-time.After(time.Second):
		t.Fatal("no terminal notification published")
	}

	entry, found, err := f.archive.Get(context.Background(), job.ID)
	if err != nil || !found {
		t.Fatalf("archive entry missing: found=%v err=%v", found, err)
	}
	if entry.State != analysis.StateCompleted {
		t.Fatalf("archived state = %s", entry.State)
	}
}

func TestTrackIsIdempotent(t *testing.T) {
	f := newFixture(t, testsupport.ProcessingReport(10))

	if _, created := f.tracker.Track("job-x"); !created {
		t.Fatal("first Track should create the record")
	}
	if _, created := f.tracker.Track("job-x"); created {
		t.Fatal("second Track must reuse the record")
	}

	f.clock.Advance(0)
	if f.remote.Fetcher.Calls() != 1 {
		t.Fatalf("fetch count = %d, want 1 (single poller)", f.remote.Fetcher.Calls())
	}
}

func TestCancelStopsPollingAndMarksCancelled(t *testing.T) {
	f := newFixture(t, testsupport.ProcessingReport(10))

	f.tracker.Track("job-1")
	f.clock.Advance(0)

	if err := f.tracker.Cancel("job-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	job, _ := f.tracker.Job("job-1")
	if job.State != analysis.StateCancelled {
		t.Fatalf("state = %s, want cancelled", job.State)
	}
	if job.ErrorMessage != "" {
		t.Fatalf("cancellation recorded as an error: %q", job.ErrorMessage)
	}

	calls := f.remote.Fetcher.Calls()
	f.clock.Advance(time.Hour)
	if f.remote.Fetcher.Calls() != calls {
		t.Fatal("fetches continued after cancel")
	}
}

func TestCancelUnknownJob(t *testing.T) {
	f := newFixture(t)
	if err := f.tracker.Cancel("missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestRetryOnlyFromFailed(t *testing.T) {
	f := newFixture(t,
		testsupport.FailedReport("corrupt stream"),
		testsupport.ProcessingReport(5),
	)

	f.tracker.Track("job-1")
	f.clock.Advance(0)

	job, _ := f.tracker.Job("job-1")
	if job.State != analysis.StateFailed {
		t.Fatalf("precondition: state = %s", job.State)
	}

	if err := f.tracker.Retry(context.Background(), "job-1"); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if len(f.remote.Retries) != 1 || f.remote.Retries[0] != "job-1" {
		t.Fatalf("backend retries = %v", f.remote.Retries)
	}

	job, _ = f.tracker.Job("job-1")
	if job.State != analysis.StateUploading {
		t.Fatalf("retried job state = %s, want fresh uploading record", job.State)
	}

	f.clock.Advance(0)
	job, _ = f.tracker.Job("job-1")
	if job.State != analysis.StateProcessing {
		t.Fatalf("polling did not restart: %s", job.State)
	}
}

func TestRetryRejectsNonFailedJob(t *testing.T) {
	f := newFixture(t, testsupport.CompleteReport(`{}`))

	f.tracker.Track("job-1")
	f.clock.Advance(0)

	err := f.tracker.Retry(context.Background(), "job-1")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation marker", err)
	}
}

func TestRemoveStopsPollerViaStoreHook(t *testing.T) {
	f := newFixture(t, testsupport.ProcessingReport(10))

	f.tracker.Track("job-1")
	f.clock.Advance(0)
	calls := f.remote.Fetcher.Calls()

	if err := f.tracker.Remove(context.Background(), "job-1", true); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(f.remote.Deletes) != 1 || f.remote.Deletes[0] != "job-1" {
		t.Fatalf("backend deletes = %v", f.remote.Deletes)
	}
	if _, ok := f.tracker.Job("job-1"); ok {
		t.Fatal("record survived Remove")
	}

	f.clock.Advance(time.Hour)
	if f.remote.Fetcher.Calls() != calls {
		t.Fatal("poller survived store removal")
	}
}

func TestPauseResumeRoundTrip(t *testing.T) {
	f := newFixture(t, testsupport.ProcessingReport(10))

	f.tracker.Track("job-1")
	f.tracker.Pause("job-1")
	f.clock.Advance(time.Hour)
	if f.remote.Fetcher.Calls() != 0 {
		t.Fatal("fetch fired while paused")
	}

	f.tracker.Resume("job-1")
	f.clock.Advance(time.Second)
	if f.remote.Fetcher.Calls() != 1 {
		t.Fatalf("fetch count after resume = %d", f.remote.Fetcher.Calls())
	}
}

func TestHistoryListsArchivedJobs(t *testing.T) {
	f := newFixture(t, testsupport.FailedReport("boom"))

	f.tracker.Track("job-1")
	f.clock.Advance(0)

	entries, err := f.tracker.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 || entries[0].JobID != "job-1" {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].ErrorMessage != "boom" {
		t.Fatalf("error message = %q", entries[0].ErrorMessage)
	}
}
