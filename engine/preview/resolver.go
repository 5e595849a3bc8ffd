package preview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/genvid/genvid/engine/core"
	"github.com/genvid/genvid/engine/job"
	"golang.org/x/sync/singleflight"
)

// ErrResolution is matched by every *ResolutionError.
var ErrResolution = errors.New("preview: resolution failed")

// ResolutionError reports a failed fetch for one job. Failures are never cached.
type ResolutionError struct {
	JobID core.ID
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("preview: resolve job %s: %v", e.JobID, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func (e *ResolutionError) Is(target error) bool { return target == ErrResolution }

// Fetcher asks the backend for a job's preview media.
type Fetcher interface {
	GetPreview(ctx context.Context, id core.ID) (job.PreviewRefs, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, id core.ID) (job.PreviewRefs, error)

func (f FetcherFunc) GetPreview(ctx context.Context, id core.ID) (job.PreviewRefs, error) {
	return f(ctx, id)
}

// Resolver fetches preview references at most once per job id. Concurrent
// calls for the same id share a single request.
type Resolver struct {
	fetcher Fetcher
	baseURL string
	group   singleflight.Group
	mu      sync.RWMutex
	cache   map[core.ID]job.PreviewRefs
	onFetch func(id core.ID, err error)
}

type Option func(*Resolver)

// WithBaseURL resolves relative preview URLs against base.
func WithBaseURL(base string) Option {
	return func(r *Resolver) {
		r.baseURL = base
	}
}

// WithFetchHook runs after every network fetch, successful or not.
func WithFetchHook(fn func(id core.ID, err error)) Option {
	return func(r *Resolver) {
		r.onFetch = fn
	}
}

func NewResolver(fetcher Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher: fetcher,
		cache:   make(map[core.ID]job.PreviewRefs),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the preview for id. Callers must only ask for jobs that
// have already succeeded.
func (r *Resolver) Resolve(ctx context.Context, id core.ID) (job.PreviewRefs, error) {
	if refs, ok := r.Cached(id); ok {
		return refs, nil
	}
	// The shared fetch must outlive any single caller's cancellation.
	fetchCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(id.String(), func() (any, error) {
		if refs, ok := r.Cached(id); ok {
			return refs, nil
		}
		refs, err := r.fetcher.GetPreview(fetchCtx, id)
		if r.onFetch != nil {
			r.onFetch(id, err)
		}
		if err != nil {
			return nil, &ResolutionError{JobID: id, Err: err}
		}
		refs.VideoURL = AbsoluteURL(r.baseURL, refs.VideoURL)
		refs.ThumbnailURL = AbsoluteURL(r.baseURL, refs.ThumbnailURL)
		r.store(id, refs)
		return refs, nil
	})
	select {
	case <-ctx.Done():
		return job.PreviewRefs{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return job.PreviewRefs{}, res.Err
		}
		refs, ok := res.Val.(job.PreviewRefs)
		if !ok {
			return job.PreviewRefs{}, &ResolutionError{JobID: id, Err: errors.New("unexpected cached value")}
		}
		return refs, nil
	}
}

// Cached returns a previously resolved preview without touching the network.
func (r *Resolver) Cached(id core.ID) (job.PreviewRefs, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	refs, ok := r.cache[id]
	return refs, ok
}

func (r *Resolver) store(id core.ID, refs job.PreviewRefs) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.cache[id]; exists {
		return
	}
	r.cache[id] = refs
}

// AbsoluteURL turns a server-relative media path into a URL under base.
// Absolute http(s) URLs are returned as is.
func AbsoluteURL(base, path string) string {
	if path == "" {
		return ""
	}
	lower := strings.ToLower(path)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return path
	}
	if base == "" {
		return path
	}
	normalized := strings.TrimLeft(strings.ReplaceAll(path, "\\", "/"), "/")
	return strings.TrimRight(base, "/") + "/" + normalized
}
