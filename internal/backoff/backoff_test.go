package backoff_test

import (
	"testing"
	"time"

	"voxtrace/internal/backoff"
)

func TestNextDelayCurve(t *testing.T) {
	policy := backoff.DefaultPolicy()
	cases := []struct {
		retry int
		want  time.Duration
	}{
		{0, 2 * time.Second},
		{1, 3 * time.Second},
		{2, 4500 * time.Millisecond},
		{3, 6750 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := policy.NextDelay(tc.retry); got != tc.want {
			t.Fatalf("NextDelay(%d) = %s, want %s", tc.retry, got, tc.want)
		}
	}
}

func TestNextDelayMonotonicAndCapped(t *testing.T) {
	policy := backoff.DefaultPolicy()
	previous := time.Duration(0)
	for retry := 0; retry < 100; retry++ {
		delay := policy.NextDelay(retry)
		if delay < previous {
			t.Fatalf("NextDelay(%d) = %s decreased from %s", retry, delay, previous)
		}
		if delay > policy.Max {
			t.Fatalf("NextDelay(%d) = %s exceeds cap %s", retry, delay, policy.Max)
		}
		previous = delay
	}
	if policy.NextDelay(1000) != policy.Max {
		t.Fatal("expected large retry counts to saturate at Max")
	}
}

func TestNextDelayNegativeRetry(t *testing.T) {
	policy := backoff.DefaultPolicy()
	if got := policy.NextDelay(-5); got != policy.Initial {
		t.Fatalf("NextDelay(-5) = %s, want %s", got, policy.Initial)
	}
}

func TestNormalizedDefaults(t *testing.T) {
	var zero backoff.Policy
	if got := zero.NextDelay(0); got != backoff.DefaultInitialDelay {
		t.Fatalf("zero policy NextDelay(0) = %s, want default initial", got)
	}
	if got := zero.NextDelay(1000); got != backoff.DefaultMaxDelay {
		t.Fatalf("zero policy cap = %s, want default max", got)
	}
}

func TestWorstCaseMatchesSequenceSum(t *testing.T) {
	policy := backoff.Policy{Initial: time.Second, Max: 4 * time.Second, Multiplier: 2}
	// Delays after failures 1..4: 2s, 4s, 4s, 4s; the fifth failure terminates.
	want := 14 * time.Second
	if got := policy.WorstCase(5); got != want {
		t.Fatalf("WorstCase(5) = %s, want %s", got, want)
	}
	if policy.WorstCase(1) != 0 {
		t.Fatal("a single permitted retry waits for nothing before terminating")
	}
}
