package session

import "errors"

var (
	ErrNoToken          = errors.New("session: auth token is required")
	ErrAlreadyStarted   = errors.New("session: already initialized")
	ErrNotStarted       = errors.New("session: not initialized")
	ErrClosed           = errors.New("session: torn down")
	ErrLocked           = errors.New("session: a generation is already queued or running")
	ErrEmptyPrompt      = errors.New("session: prompt is required")
	ErrUnknownJob       = errors.New("session: unknown job")
	ErrNoActiveJob      = errors.New("session: no job selected")
	ErrAlreadyPublished = errors.New("session: job already published")
	ErrNotReady         = errors.New("session: job has not succeeded yet")
)
