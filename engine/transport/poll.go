package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/genvid/genvid/engine/core"
	"github.com/genvid/genvid/engine/job"
)

// ErrPoll is matched by every *PollError.
var ErrPoll = errors.New("transport: poll failed")

// PollError reports one failed pull for a job. The caller decides whether to
// try again on its next tick.
type PollError struct {
	JobID core.ID
	Err   error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("transport: poll job %s: %v", e.JobID, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

func (e *PollError) Is(target error) bool { return target == ErrPoll }

// JobFetcher loads the current state of one job.
type JobFetcher interface {
	GetJob(ctx context.Context, id core.ID) (job.Snapshot, error)
}

// Poller performs single, non-retrying pulls.
type Poller struct {
	fetcher JobFetcher
}

func NewPoller(fetcher JobFetcher) *Poller {
	return &Poller{fetcher: fetcher}
}

func (p *Poller) Poll(ctx context.Context, id core.ID) (job.Snapshot, error) {
	snap, err := p.fetcher.GetJob(ctx, id)
	if err != nil {
		return job.Snapshot{}, &PollError{JobID: id, Err: err}
	}
	if snap.ID.IsZero() {
		snap.ID = id
	}
	return snap, nil
}
