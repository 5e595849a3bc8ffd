package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/genvid/genvid/engine/core"
	"github.com/genvid/genvid/engine/job"
)

type Kind string

const (
	KindReady  Kind = "ready"
	KindFailed Kind = "failed"
)

// Notification is one user-facing announcement of a terminal transition.
type Notification struct {
	ID        core.ID    `json:"id"`
	Kind      Kind       `json:"kind"`
	JobID     core.ID    `json:"job_id"`
	Status    job.Status `json:"status"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
}

type record struct {
	jobID  core.ID
	status job.Status
}

// Deduper emits at most one notification per (job, terminal status) for the
// active job. Only the most recent pair is retained.
type Deduper struct {
	mu   sync.Mutex
	last record
	now  func() time.Time
}

func NewDeduper() *Deduper {
	return &Deduper{now: time.Now}
}

// Observe inspects j and returns a notification when one is due.
func (d *Deduper) Observe(j job.Job, activeID core.ID) (Notification, bool) {
	if j.ID.IsZero() || j.ID != activeID || !j.Status.IsTerminal() {
		return Notification{}, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last.jobID == j.ID && d.last.status == j.Status {
		return Notification{}, false
	}
	d.last = record{jobID: j.ID, status: j.Status}
	var n Notification
	switch j.Status {
	case job.StatusSucceeded:
		if j.IsPublished() {
			return Notification{}, false
		}
		n = Notification{
			Kind:    KindReady,
			Message: fmt.Sprintf("Draft ready (id %s). Preview below. Publish now?", j.ID),
		}
	case job.StatusFailed:
		msg := fmt.Sprintf("Generation failed for id %s. Try again.", j.ID)
		if j.ErrorMessage != "" {
			msg = fmt.Sprintf("Generation failed for id %s: %s. Try again.", j.ID, j.ErrorMessage)
		}
		n = Notification{Kind: KindFailed, Message: msg}
	}
	id, err := core.NewID()
	if err == nil {
		n.ID = id
	}
	n.JobID = j.ID
	n.Status = j.Status
	n.CreatedAt = d.now()
	return n, true
}

// Reset primes the record for a newly selected job. Passing the job's current
// terminal status marks it as already announced; an empty status makes the
// next terminal transition eligible.
func (d *Deduper) Reset(jobID core.ID, status job.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = record{jobID: jobID, status: status}
}
