package cli

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/genvid/genvid/cli/helpers"
	"github.com/genvid/genvid/engine/core"
	"github.com/genvid/genvid/engine/job"
	"github.com/genvid/genvid/engine/preview"
	"github.com/genvid/genvid/pkg/config"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	followLatest = "latest"
	followDraft  = "draft"
)

// watcher renders session output. It prints the job table, or only the
// active job, on every coalesced store change, and the preview of the
// active job once it resolves.
type watcher struct {
	rt        *syncRuntime
	printer   *Printer
	errOut    io.Writer
	table     bool
	untilDone bool

	mu            sync.Mutex
	pendingFollow string
	lastStatus    map[core.ID]job.Status
	previewShown  map[core.ID]bool
	previewFailed map[core.ID]bool
	done          chan struct{}
	doneOnce      sync.Once
}

func newWatcher(printer *Printer, errOut io.Writer, table, untilDone bool) *watcher {
	return &watcher{
		printer:       printer,
		errOut:        errOut,
		table:         table,
		untilDone:     untilDone,
		lastStatus:    make(map[core.ID]job.Status),
		previewShown:  make(map[core.ID]bool),
		previewFailed: make(map[core.ID]bool),
		done:          make(chan struct{}),
	}
}

func (w *watcher) onChange() {
	store := w.rt.session.Store()
	active, ok := store.Active()
	if !ok {
		active, ok = w.adopt()
	}
	if w.table {
		_ = w.printer.Jobs(store.All(), store.ActiveID())
	} else if ok && w.statusChanged(active) {
		_ = w.printer.Job(active)
	}
	if !ok {
		return
	}
	if active.IsDraft() && active.PreviewRefs.VideoURL != "" && w.firstPreview(active.ID) {
		_ = w.printer.Preview(active.ID, active.PreviewRefs)
	}
	w.checkDone(active)
}

// adopt selects the job picked by the pending follow policy once one
// appears. It runs outside store listeners, where Select is safe to call.
func (w *watcher) adopt() (job.Job, bool) {
	w.mu.Lock()
	follow := w.pendingFollow
	w.mu.Unlock()
	if follow == "" {
		return job.Job{}, false
	}
	store := w.rt.session.Store()
	id := pickJob(store, follow)
	if id.IsZero() {
		return job.Job{}, false
	}
	if err := w.rt.session.Select(id); err != nil {
		w.handleError(err)
		return job.Job{}, false
	}
	w.mu.Lock()
	w.pendingFollow = ""
	w.mu.Unlock()
	_ = w.printer.Message("Following job %s.", id)
	return store.Active()
}

func (w *watcher) statusChanged(j job.Job) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastStatus[j.ID] == j.Status {
		return false
	}
	w.lastStatus[j.ID] = j.Status
	return true
}

func (w *watcher) firstPreview(id core.ID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.previewShown[id] {
		return false
	}
	w.previewShown[id] = true
	return true
}

// checkDone ends an until-done watch once the active job failed, or
// succeeded and its preview was shown or could not be loaded.
func (w *watcher) checkDone(active job.Job) {
	if !w.untilDone {
		return
	}
	w.mu.Lock()
	finished := active.Status == job.StatusFailed ||
		(active.Status == job.StatusSucceeded &&
			(active.IsPublished() || w.previewShown[active.ID] || w.previewFailed[active.ID]))
	w.mu.Unlock()
	if finished {
		w.doneOnce.Do(func() { close(w.done) })
	}
}

func (w *watcher) handleError(err error) {
	helpers.OutputError(w.errOut, classifyError(err), w.printer.Mode())
	var resErr *preview.ResolutionError
	if !errors.As(err, &resErr) {
		return
	}
	w.mu.Lock()
	w.previewFailed[resErr.JobID] = true
	w.mu.Unlock()
	if active, ok := w.rt.session.Store().Active(); ok && active.ID == resErr.JobID {
		w.checkDone(active)
	}
}

// run drains notifications and errors until ctx ends, the session closes,
// or an until-done watch completes.
func (w *watcher) run(ctx context.Context) error {
	notes := w.rt.session.Notifications()
	errs := w.rt.session.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case n, ok := <-notes:
			if !ok {
				return nil
			}
			if err := w.printer.Notification(n); err != nil {
				return err
			}
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			w.handleError(err)
		}
	}
}

// selectJob makes id, or the job picked by follow, the active job. When
// follow picks nothing yet, the watcher adopts the first job it picks later.
func (w *watcher) selectJob(ctx context.Context, id core.ID, follow string) error {
	store := w.rt.session.Store()
	if id.IsZero() {
		id = pickJob(store, follow)
	}
	if id.IsZero() {
		w.mu.Lock()
		w.pendingFollow = follow
		w.mu.Unlock()
		return w.printer.Message("No job to follow yet, the first matching job will be followed.")
	}
	if err := w.rt.ensureJob(ctx, id); err != nil {
		return err
	}
	return w.rt.session.Select(id)
}

// pickJob returns the most recently created job, or for follow=draft the
// most recently updated unpublished success.
func pickJob(store *job.Store, follow string) core.ID {
	if follow == followDraft {
		drafts := store.Drafts()
		if len(drafts) == 0 {
			return ""
		}
		return drafts[0].ID
	}
	var latest job.Job
	for _, j := range store.All() {
		if latest.ID.IsZero() || j.CreatedAt.After(latest.CreatedAt) {
			latest = j
		}
	}
	return latest.ID
}

type watchOptions struct {
	follow string
	jobID  string
}

func WatchCmd() *cobra.Command {
	var opts watchOptions
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow job updates live",
		Long: `Keep the job list in sync with the backend and announce when the followed
job is ready or has failed. The preview of a ready draft is printed as soon as
it resolves.`,
		Args: cobra.NoArgs,
		RunE: runE(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			return runWatch(ctx, cmd, opts)
		}),
	}
	cmd.Flags().String("transport", "", "Live update transport (sse, socket, poll)")
	cmd.Flags().StringVar(&opts.follow, "follow", followLatest, "Job to follow when --job is not set (latest, draft)")
	cmd.Flags().StringVar(&opts.jobID, "job", "", "Id of the job to follow")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().String("redis-url", "", "Also publish notifications to this Redis server")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts watchOptions) error {
	if err := helpers.ValidateEnum(opts.follow, []string{followLatest, followDraft}, "follow"); err != nil {
		return err
	}
	cfg := config.FromContext(ctx)
	if cmd.Flags().Changed("metrics-addr") {
		local := *cfg
		local.Monitoring.Enabled = true
		cfg = &local
	}
	printer := newPrinter(cmd)
	w := newWatcher(printer, cmd.ErrOrStderr(), true, false)
	rt, err := newSyncRuntime(ctx, cfg, runtimeOptions{OnChange: w.onChange})
	if err != nil {
		return err
	}
	w.rt = rt
	defer rt.Close(ctx)

	if err := rt.seed(ctx); err != nil {
		return err
	}
	if err := rt.session.Init(ctx, rt.token); err != nil {
		return err
	}
	if err := w.selectJob(ctx, core.ID(opts.jobID), opts.follow); err != nil {
		return err
	}
	store := rt.session.Store()
	if err := printer.Jobs(store.All(), store.ActiveID()); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return rt.monitor.Serve(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return w.run(gctx)
	})
	return g.Wait()
}
