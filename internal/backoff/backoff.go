// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package backoff provides the CAS-retry backoff strategy shared by the
// orderedset and deque packages: a few rounds of a scheduler yield followed by
// truncated exponential sleeps, using a pooled *time.Timer for the sleeping
// rounds so that sustained contention doesn't allocate a timer per retry.
//
// Go has no portable userspace CPU-pause intrinsic, so runtime.Gosched is
// used as the yield-equivalent for the first few rounds; this is a
// performance knob only; it is never required for correctness (every CAS
// loop in this module retries indefinitely regardless of how it backs off).
package backoff

import (
	"runtime"
	"time"

	"github.com/gammazero-labs/lockfree/internal/timerp"
)

const (
	// yieldRounds is the number of retries that back off with a plain
	// scheduler yield before escalating to timed sleeps.
	yieldRounds = 4
	minSleep    = 1 * time.Microsecond
	maxSleep    = 1 * time.Millisecond
)

// Backoff tracks the retry count for a single CAS-retry loop. The zero value
// is ready to use.
type Backoff struct {
	attempts int
}

// Wait backs off proportionally to the number of prior failed attempts in
// this loop, then increments the attempt counter.
func (b *Backoff) Wait() {
	switch {
	case b.attempts < yieldRounds:
		runtime.Gosched()
	default:
		d := minSleep << (b.attempts - yieldRounds)
		if d > maxSleep || d <= 0 {
			d = maxSleep
		}
		sleep(d)
	}
	b.attempts++
}

// Reset clears the attempt counter, e.g. after a CAS loop restarts from
// scratch rather than merely retrying the same step.
func (b *Backoff) Reset() {
	b.attempts = 0
}

func sleep(d time.Duration) {
	t := timerp.Get()
	t.Reset(d)
	<-t.C
	timerp.Put(t)
}
