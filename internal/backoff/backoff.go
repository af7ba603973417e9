// Package backoff computes the delay between status polls. The same curve
// governs routine rescheduling after a "still processing" response and retry
// after a transient fetch failure, which keeps the worst-case time to a
// terminal state easy to reason about.
package backoff

import (
	"math"
	"time"
)

const (
	DefaultInitialDelay = 2 * time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultMultiplier   = 1.5
	DefaultMaxRetries   = 30
)

// Policy describes a capped exponential backoff curve.
type Policy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultPolicy returns the standard polling curve.
func DefaultPolicy() Policy {
	return Policy{
		Initial:    DefaultInitialDelay,
		Max:        DefaultMaxDelay,
		Multiplier: DefaultMultiplier,
	}
}

func (p Policy) normalized() Policy {
	if p.Initial <= 0 {
		p.Initial = DefaultInitialDelay
	}
	if p.Max < p.Initial {
		p.Max = p.Initial
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	return p
}

// NextDelay returns min(Initial * Multiplier^retry, Max). It is
// non-decreasing in retry and never exceeds Max.
func (p Policy) NextDelay(retry int) time.Duration {
	p = p.normalized()
	if retry < 0 {
		retry = 0
	}
	delay := float64(p.Initial) * math.Pow(p.Multiplier, float64(retry))
	if math.IsInf(delay, 1) || delay >= float64(p.Max) {
		return p.Max
	}
	return time.Duration(delay)
}

// WorstCase returns the total wait across maxRetries consecutive failures:
// the sum of the capped geometric delay sequence. This is the effective
// timeout for a job whose fetches never succeed. The final failure
// terminates without scheduling, so the last delay in the sequence is
// NextDelay(maxRetries-1).
func (p Policy) WorstCase(maxRetries int) time.Duration {
	var total time.Duration
	for retry := 1; retry < maxRetries; retry++ {
		total += p.NextDelay(retry)
	}
	return total
}
