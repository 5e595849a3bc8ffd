package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/genvid/genvid/engine/core"
	"github.com/genvid/genvid/engine/infra/monitoring"
	"github.com/genvid/genvid/engine/job"
	"github.com/genvid/genvid/engine/notify"
	"github.com/genvid/genvid/pkg/logger"
	"github.com/romdo/go-debounce"
)

const (
	DefaultPollInterval   = 3 * time.Second
	DefaultChangeWait     = 100 * time.Millisecond
	DefaultChangeMaxWait  = time.Second
	defaultOutputCapacity = 32
)

// Snapshot sources, used as metric labels.
const (
	sourceChannel = "channel"
	sourcePoll    = "poll"
	sourcePreview = "preview"
	sourceLocal   = "local"
	sourceFetch   = "fetch"
)

// Channel is a live stream of job snapshots.
type Channel interface {
	Open(ctx context.Context, token string) (<-chan job.Snapshot, error)
	Close() error
}

// Poller pulls the current state of one job.
type Poller interface {
	Poll(ctx context.Context, id core.ID) (job.Snapshot, error)
}

// PreviewResolver returns preview media for a succeeded job.
type PreviewResolver interface {
	Resolve(ctx context.Context, id core.ID) (job.PreviewRefs, error)
}

// JobAPI creates and publishes jobs on the backend.
type JobAPI interface {
	CreateJob(ctx context.Context, prompt string) (job.Job, error)
	PublishJob(ctx context.Context, id core.ID) (core.ID, error)
}

type Options struct {
	Store    *job.Store
	Channel  Channel
	Poller   Poller
	Previews PreviewResolver
	Jobs     JobAPI
	Deduper  *notify.Deduper
	Sinks    []notify.Sink
	Metrics  *monitoring.SyncMetrics
	// PollInterval spaces repeated pulls for one job.
	PollInterval time.Duration
	// OnChange runs after store updates, coalesced over ChangeWait and at
	// most ChangeMaxWait apart.
	OnChange      func()
	ChangeWait    time.Duration
	ChangeMaxWait time.Duration
}

// Session owns the lifecycle of one signed-in job synchronization scope.
// Every snapshot, whatever its source, is applied under a single lock so the
// store, deduper and preview triggers always observe a consistent order.
// A Session is single use: after Teardown it cannot be initialized again.
type Session struct {
	store    *job.Store
	channel  Channel
	poller   Poller
	previews PreviewResolver
	jobs     JobAPI
	deduper  *notify.Deduper
	sinks    []notify.Sink
	metrics  *monitoring.SyncMetrics
	interval time.Duration

	applyMu sync.Mutex

	mu            sync.Mutex
	started       bool
	closed        bool
	drained       bool
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	polls         map[core.ID]context.CancelFunc
	generation    atomic.Uint64
	unsubscribe   func()
	onChange      func()
	cancelChange  func()
	notifications chan notify.Notification
	errs          chan error
}

func New(opts Options) *Session {
	store := opts.Store
	if store == nil {
		store = job.NewStore()
	}
	deduper := opts.Deduper
	if deduper == nil {
		deduper = notify.NewDeduper()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	s := &Session{
		store:         store,
		channel:       opts.Channel,
		poller:        opts.Poller,
		previews:      opts.Previews,
		jobs:          opts.Jobs,
		deduper:       deduper,
		sinks:         opts.Sinks,
		metrics:       opts.Metrics,
		interval:      interval,
		polls:         make(map[core.ID]context.CancelFunc),
		notifications: make(chan notify.Notification, defaultOutputCapacity),
		errs:          make(chan error, defaultOutputCapacity),
	}
	if opts.OnChange != nil {
		wait, maxWait := opts.ChangeWait, opts.ChangeMaxWait
		if wait <= 0 {
			wait = DefaultChangeWait
		}
		if maxWait <= 0 {
			maxWait = DefaultChangeMaxWait
		}
		s.onChange, s.cancelChange = debounce.NewWithMaxWait(wait, maxWait, opts.OnChange)
	}
	return s
}

func (s *Session) Store() *job.Store {
	return s.store
}

// Notifications delivers ready and failed announcements for the active job.
// It is closed by Teardown.
func (s *Session) Notifications() <-chan notify.Notification {
	return s.notifications
}

// Errors delivers failures the user can act on, such as poll and preview
// errors. It is closed by Teardown.
func (s *Session) Errors() <-chan error {
	return s.errs
}

// Init opens the live channel with token. Without a token nothing is opened.
func (s *Session) Init(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	scope, cancel := context.WithCancel(ctx)
	if s.channel != nil {
		snaps, err := s.channel.Open(scope, token)
		if err != nil {
			cancel()
			return fmt.Errorf("open job channel: %w", err)
		}
		s.wg.Add(1)
		go s.consume(scope, snaps)
	}
	s.ctx, s.cancel = scope, cancel
	s.started = true
	s.generation.Add(1)
	if s.onChange != nil {
		s.unsubscribe = s.store.Subscribe(func(job.IngestResult) { s.onChange() })
	}
	logger.FromContext(ctx).Debug("session initialized", "live_channel", s.channel != nil)
	return nil
}

// Teardown stops the channel and every poll loop and waits for background
// work to finish. Preview results that complete afterwards are discarded.
func (s *Session) Teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation.Add(1)
	started, scope, cancel := s.started, s.ctx, s.cancel
	unsubscribe := s.unsubscribe
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s.channel != nil && started {
		if err := s.channel.Close(); err != nil {
			logger.FromContext(scope).Debug("closing job channel", "error", err)
		}
	}
	s.wg.Wait()
	if unsubscribe != nil {
		unsubscribe()
	}
	if s.cancelChange != nil {
		s.cancelChange()
	}
	s.mu.Lock()
	s.drained = true
	close(s.notifications)
	close(s.errs)
	s.mu.Unlock()
}

func (s *Session) consume(ctx context.Context, snaps <-chan job.Snapshot) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			s.apply(ctx, snap, sourceChannel)
		}
	}
}

// Ingest applies a snapshot fetched outside the live channel, such as the
// initial job list. It is ordered with channel and poll updates.
func (s *Session) Ingest(ctx context.Context, snap job.Snapshot) job.IngestResult {
	return s.apply(ctx, snap, sourceFetch)
}

// apply ingests one snapshot and fires the derived triggers for the active job.
func (s *Session) apply(ctx context.Context, snap job.Snapshot, source string) job.IngestResult {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	res := s.store.Ingest(snap)
	s.metrics.RecordSnapshot(ctx, source)
	if res.Conflict {
		s.metrics.RecordConflict(ctx)
	}
	if res.IsActive {
		s.observe(ctx, res.Job)
	}
	return res
}

func (s *Session) observe(ctx context.Context, j job.Job) {
	n, ok := s.deduper.Observe(j, s.store.ActiveID())
	if !ok {
		return
	}
	s.emit(ctx, n)
	if n.Kind == notify.KindReady {
		s.resolvePreview(j.ID)
	}
}

func (s *Session) emit(ctx context.Context, n notify.Notification) {
	log := logger.FromContext(ctx)
	s.metrics.RecordNotification(ctx, string(n.Kind))
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, n); err != nil {
			log.Warn("notification sink failed", "error", err, "job_id", n.JobID)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drained {
		return
	}
	select {
	case s.notifications <- n:
	default:
		log.Warn("notification dropped, consumer is not keeping up", "job_id", n.JobID, "kind", n.Kind)
	}
}

func (s *Session) report(ctx context.Context, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drained {
		return
	}
	select {
	case s.errs <- err:
	default:
		logger.FromContext(ctx).Warn("error dropped, consumer is not keeping up", "error", err)
	}
}

// goBackground runs fn in the session scope unless the session is closed.
func (s *Session) goBackground(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.closed {
		return false
	}
	ctx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(ctx)
	}()
	return true
}

func (s *Session) resolvePreview(id core.ID) {
	if s.previews == nil {
		return
	}
	gen := s.generation.Load()
	s.goBackground(func(ctx context.Context) {
		start := time.Now()
		refs, err := s.previews.Resolve(ctx, id)
		if s.generation.Load() != gen || ctx.Err() != nil {
			return
		}
		if err != nil {
			s.metrics.RecordPreviewFetch(ctx, "error", time.Since(start))
			logger.FromContext(ctx).Warn("preview resolution failed", "job_id", id, "error", err)
			s.report(ctx, err)
			return
		}
		s.metrics.RecordPreviewFetch(ctx, "ok", time.Since(start))
		s.apply(ctx, job.Snapshot{ID: id, PreviewRefs: &refs}, sourcePreview)
	})
}

// CreateJob submits prompt, records an optimistic placeholder and makes the
// new job active. It refuses while another job is queued or running unless
// force is set.
func (s *Session) CreateJob(ctx context.Context, prompt string, force bool) (job.Job, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return job.Job{}, ErrEmptyPrompt
	}
	if !force && s.store.Locked() {
		return job.Job{}, ErrLocked
	}
	created, err := s.jobs.CreateJob(ctx, prompt)
	if err != nil {
		return job.Job{}, fmt.Errorf("create job: %w", err)
	}
	status := created.Status
	if status == "" {
		status = job.StatusQueued
	}
	s.applyMu.Lock()
	s.store.Placeholder(created.ID, prompt, status)
	s.store.Ingest(job.SnapshotOf(created))
	s.store.SetActive(created.ID)
	s.deduper.Reset(created.ID, "")
	s.applyMu.Unlock()
	s.metrics.RecordSnapshot(ctx, sourceLocal)

	current, _ := s.store.Get(created.ID)
	s.followActive(current)
	return current, nil
}

// Select makes id the active job. Selecting an already terminal job does not
// announce it again; selecting an unpublished success fetches its preview.
func (s *Session) Select(id core.ID) error {
	s.applyMu.Lock()
	if !s.store.SetActive(id) {
		s.applyMu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	current, _ := s.store.Get(id)
	primed := job.Status("")
	if current.Status.IsTerminal() {
		primed = current.Status
	}
	s.deduper.Reset(id, primed)
	s.applyMu.Unlock()

	if current.IsDraft() && current.PreviewRefs.VideoURL == "" {
		s.resolvePreview(id)
	}
	s.followActive(current)
	return nil
}

// followActive polls a non-terminal active job when no live channel exists.
func (s *Session) followActive(j job.Job) {
	if s.channel != nil || s.poller == nil || j.Status.IsTerminal() {
		return
	}
	if err := s.StartPolling(j.ID); err != nil && !errors.Is(err, ErrNotStarted) {
		logger.FromContext(s.scope()).Debug("not polling active job", "job_id", j.ID, "error", err)
	}
}

// Publish publishes the active job and records the resulting resource id.
func (s *Session) Publish(ctx context.Context) (core.ID, error) {
	active, ok := s.store.Active()
	if !ok {
		return "", ErrNoActiveJob
	}
	if active.IsPublished() {
		return "", fmt.Errorf("%w: job %s as %s", ErrAlreadyPublished, active.ID, active.PublishedResourceID)
	}
	if active.Status != job.StatusSucceeded {
		return "", fmt.Errorf("%w: job %s is %s", ErrNotReady, active.ID, active.Status)
	}
	published, err := s.jobs.PublishJob(ctx, active.ID)
	if err != nil {
		return "", fmt.Errorf("publish job %s: %w", active.ID, err)
	}
	s.apply(ctx, job.Snapshot{ID: active.ID, PublishedResourceID: published.Ptr()}, sourceLocal)
	return published, nil
}

// StartPolling pulls id every poll interval until it is terminal, StopPolling
// is called, or the session is torn down. Failures are reported on Errors and
// polling continues on the next tick.
func (s *Session) StartPolling(id core.ID) error {
	if s.poller == nil {
		return errors.New("session: no poller configured")
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if _, running := s.polls[id]; running {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.polls[id] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.StopPolling(id)
		s.pollLoop(ctx, id)
	}()
	return nil
}

func (s *Session) StopPolling(id core.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.polls[id]; ok {
		cancel()
		delete(s.polls, id)
	}
}

func (s *Session) pollLoop(ctx context.Context, id core.ID) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if s.pollOnce(ctx, id) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollOnce reports whether polling should stop.
func (s *Session) pollOnce(ctx context.Context, id core.ID) bool {
	snap, err := s.poller.Poll(ctx, id)
	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		s.metrics.RecordPollError(ctx)
		logger.FromContext(ctx).Debug("poll failed", "job_id", id, "error", err)
		s.report(ctx, err)
		return false
	}
	res := s.apply(ctx, snap, sourcePoll)
	return res.Job.Status.IsTerminal()
}

func (s *Session) scope() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}
