// Package fetcher talks to the upstream signal providers: the Apify TikTok
// scraper, the RapidAPI Reddit proxy, the GitHub REST API and the Google
// Trends daily RSS feed. Every client paces itself with a token bucket.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrRunFailed   = errors.New("scraper run failed")
	ErrRunTimedOut = errors.New("scraper run timed out")
)

// RunState is the lifecycle of an asynchronous scraper run as seen by the poller.
type RunState int

const (
	RunPending RunState = iota
	RunRunning
	RunSucceeded
	RunFailed
	RunTimedOut
)

func (s RunState) String() string {
	switch s {
	case RunPending:
		return "pending"
	case RunRunning:
		return "running"
	case RunSucceeded:
		return "succeeded"
	case RunFailed:
		return "failed"
	case RunTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

func (s RunState) terminal() bool {
	return s == RunSucceeded || s == RunFailed || s == RunTimedOut
}

// ParseRunStatus maps an Apify status string onto a RunState.
func ParseRunStatus(status string) RunState {
	switch status {
	case "READY":
		return RunPending
	case "RUNNING":
		return RunRunning
	case "SUCCEEDED":
		return RunSucceeded
	case "TIMED-OUT", "TIMING-OUT":
		return RunTimedOut
	case "FAILED", "ABORTED", "ABORTING":
		return RunFailed
	default:
		return RunRunning
	}
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poller drives a run from Pending to a terminal state.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	Sleep       Sleeper
}

// DefaultPoller checks every 3 seconds, 30 times.
func DefaultPoller() Poller {
	return Poller{Interval: 3 * time.Second, MaxAttempts: 30, Sleep: contextSleep}
}

// Wait sleeps, asks status for the current state, and repeats until the run
// succeeds, fails or the attempts run out.
func (p Poller) Wait(ctx context.Context, status func(context.Context) (RunState, error)) (RunState, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = contextSleep
	}

	state := RunPending
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := sleep(ctx, p.Interval); err != nil {
			return state, err
		}
		next, err := status(ctx)
		if err != nil {
			return state, fmt.Errorf("poll attempt %d: %w", attempt, err)
		}
		state = next
		if state.terminal() {
			break
		}
	}

	switch state {
	case RunSucceeded:
		return state, nil
	case RunFailed:
		return state, ErrRunFailed
	case RunTimedOut:
		return state, ErrRunTimedOut
	default:
		return RunTimedOut, fmt.Errorf("%w: still %s after %d attempts", ErrRunTimedOut, state, p.MaxAttempts)
	}
}
