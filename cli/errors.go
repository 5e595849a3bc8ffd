package cli

import (
	"errors"
	"net/http"

	"github.com/genvid/genvid/cli/helpers"
	"github.com/genvid/genvid/engine/preview"
	"github.com/genvid/genvid/engine/session"
	"github.com/genvid/genvid/engine/transport"
)

// classifyError maps domain failures onto CliError codes. Anything it does
// not recognize is left for helpers.HandleCommonErrors.
func classifyError(err error) error {
	if err == nil || errors.Is(err, helpers.ErrAuth) {
		return err
	}
	var apiErr *APIError
	switch {
	case errors.Is(err, session.ErrNoToken):
		return helpers.NewCliError("AUTH_ERROR", "Not logged in", "run 'genvid login' first").Wrap(err)
	case errors.Is(err, session.ErrLocked):
		return helpers.NewCliError("JOB_LOCKED", "Another job is still queued or running",
			"wait for it to finish or pass --force").Wrap(err)
	case errors.Is(err, session.ErrEmptyPrompt):
		return helpers.NewCliError("INVALID_PROMPT", "Prompt cannot be empty").Wrap(err)
	case errors.Is(err, session.ErrUnknownJob):
		return helpers.NewCliError("JOB_NOT_FOUND", "Job not found", err.Error()).Wrap(err)
	case errors.Is(err, session.ErrNoActiveJob):
		return helpers.NewCliError("NO_ACTIVE_JOB", "No job is selected").Wrap(err)
	case errors.Is(err, session.ErrAlreadyPublished):
		return helpers.NewCliError("ALREADY_PUBLISHED", "Job is already published", err.Error()).Wrap(err)
	case errors.Is(err, session.ErrNotReady):
		return helpers.NewCliError("NOT_READY", "Job has not succeeded yet", err.Error()).Wrap(err)
	case errors.Is(err, preview.ErrResolution):
		return helpers.NewCliError("PREVIEW_ERROR", "Could not load the preview", err.Error()).Wrap(err)
	case errors.Is(err, transport.ErrPoll):
		return helpers.NewCliError("POLL_ERROR", "Could not refresh the job", err.Error()).Wrap(err)
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound:
		return helpers.NewCliError("NOT_FOUND", "Resource not found", apiErr.Detail).Wrap(err)
	case errors.As(err, &apiErr):
		return helpers.NewCliError("API_ERROR", "Request rejected by the server", apiErr.Error()).Wrap(err)
	default:
		return err
	}
}
