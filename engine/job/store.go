package job

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/genvid/genvid/engine/core"
	"github.com/genvid/genvid/pkg/logger"
)

// ErrMergeConflict marks a snapshot that tried to move a terminal job back to
// a non-terminal status. It is logged and counted, never returned to callers.
var ErrMergeConflict = errors.New("job: status regression from terminal state")

// IngestResult describes the effect of one snapshot on the store.
type IngestResult struct {
	Job            Job
	PreviousStatus Status
	Inserted       bool
	StatusChanged  bool
	Conflict       bool
	IsActive       bool
}

type record struct {
	job Job
	seq uint64
}

// Store is the single owner of reconciled job state.
type Store struct {
	mu        sync.RWMutex
	jobs      map[core.ID]*record
	seq       uint64
	activeID  core.ID
	listeners map[uint64]func(IngestResult)
	nextLis   uint64
	log       logger.Logger
	now       func() time.Time
	onReject  func(id core.ID, from, to Status)
}

type Option func(*Store)

func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock sets the clock used to stamp first-seen records without timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithConflictHook is invoked for every rejected status regression.
func WithConflictHook(fn func(id core.ID, from, to Status)) Option {
	return func(s *Store) {
		s.onReject = fn
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		jobs:      make(map[core.ID]*record),
		listeners: make(map[uint64]func(IngestResult)),
		log:       logger.FromContext(context.Background()),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest merges one snapshot. Present fields overwrite stored ones, absent
// fields are preserved. Status is latest-wins except that a terminal job is
// never moved back to QUEUED or RUNNING.
func (s *Store) Ingest(snap Snapshot) IngestResult {
	if snap.ID.IsZero() {
		return IngestResult{}
	}
	s.mu.Lock()
	res := s.apply(snap)
	listeners := s.snapshotListeners()
	s.mu.Unlock()
	if res.Conflict {
		s.log.Warn(
			"ignoring stale status",
			"job_id", snap.ID,
			"current", res.PreviousStatus,
			"incoming", *snap.Status,
			"err", ErrMergeConflict,
		)
		if s.onReject != nil {
			s.onReject(snap.ID, res.PreviousStatus, *snap.Status)
		}
	}
	for _, fn := range listeners {
		fn(res)
	}
	return res
}

func (s *Store) apply(snap Snapshot) IngestResult {
	rec, ok := s.jobs[snap.ID]
	if !ok {
		s.seq++
		rec = &record{job: Job{ID: snap.ID}, seq: s.seq}
		s.jobs[snap.ID] = rec
	}
	res := IngestResult{Inserted: !ok, PreviousStatus: rec.job.Status}
	j := &rec.job
	if snap.Status != nil && snap.Status.IsValid() {
		switch {
		case j.Status.IsTerminal() && !snap.Status.IsTerminal():
			res.Conflict = true
		case *snap.Status != j.Status:
			j.Status = *snap.Status
			res.StatusChanged = true
		}
	}
	if snap.Prompt != nil && *snap.Prompt != "" {
		j.Prompt = *snap.Prompt
	}
	if snap.CreatedAt != nil && !snap.CreatedAt.IsZero() {
		j.CreatedAt = *snap.CreatedAt
	}
	if snap.UpdatedAt != nil && !snap.UpdatedAt.IsZero() {
		j.UpdatedAt = *snap.UpdatedAt
	}
	if snap.PublishedResourceID != nil && !snap.PublishedResourceID.IsZero() && !j.IsPublished() {
		j.PublishedResourceID = *snap.PublishedResourceID
	}
	if snap.ErrorMessage != nil && *snap.ErrorMessage != "" {
		j.ErrorMessage = *snap.ErrorMessage
	}
	if res.StatusChanged && j.Status != StatusFailed {
		j.ErrorMessage = ""
	}
	if snap.PreviewRefs != nil {
		j.PreviewRefs = j.PreviewRefs.merge(*snap.PreviewRefs)
	}
	if res.Inserted && j.CreatedAt.IsZero() {
		j.CreatedAt = s.now()
	}
	res.Job = *j
	res.IsActive = s.activeID == snap.ID
	return res
}

func (s *Store) snapshotListeners() []func(IngestResult) {
	if len(s.listeners) == 0 {
		return nil
	}
	keys := make([]uint64, 0, len(s.listeners))
	for k := range s.listeners {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]func(IngestResult), 0, len(keys))
	for _, k := range keys {
		out = append(out, s.listeners[k])
	}
	return out
}

// Subscribe registers fn to run after every ingest, in registration order.
// The returned function removes the listener.
func (s *Store) Subscribe(fn func(IngestResult)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLis++
	key := s.nextLis
	s.listeners[key] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, key)
	}
}

// Placeholder inserts an optimistic record so a freshly created job can be
// made active before its first snapshot arrives.
func (s *Store) Placeholder(id core.ID, prompt string, status Status) IngestResult {
	snap := Snapshot{ID: id, Prompt: &prompt}
	if status != "" {
		snap.Status = &status
	}
	return s.Ingest(snap)
}

// SetActive selects the job the single-job affordances operate on. It is a
// no-op returning false when id is unknown.
func (s *Store) SetActive(id core.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	s.activeID = id
	return true
}

func (s *Store) ClearActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = ""
}

func (s *Store) ActiveID() core.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

func (s *Store) Active() (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeID.IsZero() {
		return Job{}, false
	}
	rec, ok := s.jobs[s.activeID]
	if !ok {
		return Job{}, false
	}
	return rec.job, true
}

func (s *Store) Get(id core.ID) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return rec.job, true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// All returns every job, most recent first.
func (s *Store) All() []Job {
	s.mu.RLock()
	recs := make([]record, 0, len(s.jobs))
	for _, rec := range s.jobs {
		recs = append(recs, *rec)
	}
	s.mu.RUnlock()
	return sortByRecency(recs)
}

// Drafts returns successful, unpublished jobs, most recently updated first.
func (s *Store) Drafts() []Job {
	s.mu.RLock()
	recs := make([]record, 0, len(s.jobs))
	for _, rec := range s.jobs {
		if rec.job.IsDraft() {
			recs = append(recs, *rec)
		}
	}
	s.mu.RUnlock()
	return sortByRecency(recs)
}

// Locked reports whether any job is still queued or running.
func (s *Store) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.jobs {
		if rec.job.Status == StatusQueued || rec.job.Status == StatusRunning {
			return true
		}
	}
	return false
}

func sortByRecency(recs []record) []Job {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.job.UpdatedAt.Equal(b.job.UpdatedAt) {
			return a.job.UpdatedAt.After(b.job.UpdatedAt)
		}
		if !a.job.CreatedAt.Equal(b.job.CreatedAt) {
			return a.job.CreatedAt.After(b.job.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]Job, len(recs))
	for i, rec := range recs {
		out[i] = rec.job
	}
	return out
}
