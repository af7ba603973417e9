package testsupport

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"voxtrace/internal/analysis"
)

// FetchResult is one scripted response from a fake backend.
type FetchResult struct {
	Report analysis.StatusReport
	Err    error
}

// ProcessingReport builds a non-terminal status report.
func ProcessingReport(progress int) FetchResult {
	return FetchResult{Report: analysis.StatusReport{Status: analysis.RemoteProcessing, Progress: progress}}
}

// CompleteReport builds a terminal COMPLETE report carrying raw results.
func CompleteReport(results string) FetchResult {
	return FetchResult{Report: analysis.StatusReport{Status: analysis.RemoteComplete, Results: json.RawMessage(results)}}
}

// FailedReport builds a terminal FAILED report with a server message.
func FailedReport(message string) FetchResult {
	return FetchResult{Report: analysis.StatusReport{Status: analysis.RemoteFailed, ErrorMessage: message}}
}

// FetchError builds a scripted fetch failure.
func FetchError(err error) FetchResult {
	return FetchResult{Err: err}
}

// ScriptedFetcher returns canned results in order, repeating the final
// entry once the script runs out. It records overlapping fetches so tests
// can assert that a job is never polled by two requests at once.
type ScriptedFetcher struct {
	mu       sync.Mutex
	script   []FetchResult
	calls    int
	inFlight int
	overlap  bool

	// Gate, when non-nil, blocks every fetch until a value is received.
	Gate chan struct{}
}

// NewScriptedFetcher builds a fetcher that replays the given results.
func NewScriptedFetcher(script ...FetchResult) *ScriptedFetcher {
	return &ScriptedFetcher{script: script}
}

func (f *ScriptedFetcher) FetchStatus(ctx context.Context, jobID string) (analysis.StatusReport, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > 1 {
		f.overlap = true
	}
	idx := f.calls
	f.calls++
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	var result FetchResult
	if idx >= 0 {
		result = f.script[idx]
	} else {
		result = ProcessingReport(0)
	}
	gate := f.Gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return result.Report, result.Err
}

// Calls reports how many fetches have started.
func (f *ScriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Overlapped reports whether two fetches were ever in flight together.
func (f *ScriptedFetcher) Overlapped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlap
}

// FakeRemote implements the full backend service surface for tracker tests.
type FakeRemote struct {
	Fetcher *ScriptedFetcher

	mu        sync.Mutex
	nextID    int
	SubmitErr error
	RetryErr  error
	DeleteErr error
	Submits   []string
	Retries   []string
	Deletes   []string
}

// NewFakeRemote builds a backend fake whose status fetches replay script.
func NewFakeRemote(script ...FetchResult) *FakeRemote {
	return &FakeRemote{Fetcher: NewScriptedFetcher(script...)}
}

func (f *FakeRemote) Submit(ctx context.Context, filePath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubmitErr != nil {
		return "", f.SubmitErr
	}
	f.nextID++
	f.Submits = append(f.Submits, filePath)
	return "job-" + strconv.Itoa(f.nextID), nil
}

func (f *FakeRemote) FetchStatus(ctx context.Context, id string) (analysis.StatusReport, error) {
	return f.Fetcher.FetchStatus(ctx, id)
}

func (f *FakeRemote) Retry(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RetryErr != nil {
		return f.RetryErr
	}
	f.Retries = append(f.Retries, id)
	return nil
}

func (f *FakeRemote) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.Deletes = append(f.Deletes, id)
	return nil
}
