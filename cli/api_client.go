package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/genvid/genvid/cli/helpers"
	"github.com/genvid/genvid/engine/comment"
	"github.com/genvid/genvid/engine/core"
	"github.com/genvid/genvid/engine/job"
	"github.com/genvid/genvid/engine/transport"
	"github.com/genvid/genvid/pkg/config"
	"github.com/genvid/genvid/pkg/logger"
	"github.com/genvid/genvid/pkg/version"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// APIError is a non-2xx backend response. Detail carries the body's detail
// field when present.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api error (status %d)", e.Status)
	}
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Detail)
}

// Is matches helpers.ErrAuth for rejected credentials.
func (e *APIError) Is(target error) bool {
	return target == helpers.ErrAuth && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// SignupRequest registers a new account.
type SignupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// APIClient talks to the genvid REST API. It implements the job, preview
// and poll contracts the session depends on.
type APIClient struct {
	client  *resty.Client
	single  *resty.Client
	baseURL string
}

func NewAPIClient(cfg *config.Config, token string) (*APIClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	baseURL, err := buildBaseURL(cfg.API.BaseURL)
	if err != nil {
		return nil, err
	}
	return &APIClient{
		client:  newRestyClient(cfg, baseURL, token, cfg.API.RetryCount),
		single:  newRestyClient(cfg, baseURL, token, 0),
		baseURL: baseURL,
	}, nil
}

func newRestyClient(cfg *config.Config, baseURL, token string, retries int) *resty.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.API.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", version.UserAgent())
	if retries > 0 {
		client.
			SetRetryCount(retries).
			SetRetryWaitTime(100 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			AddRetryCondition(retryCondition)
	}
	if token != "" {
		client.SetAuthToken(token)
	}
	return client
}

// WithoutRetry returns a client that sends every request exactly once. It
// backs the session poller, which repeats on its own interval.
func (c *APIClient) WithoutRetry() *APIClient {
	return &APIClient{client: c.single, single: c.single, baseURL: c.baseURL}
}

func buildBaseURL(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("base URL scheme must be http or https, got: %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("base URL must have a host, got: %s", raw)
	}
	return strings.TrimRight(parsed.String(), "/"), nil
}

// retryCondition retries reads on network errors, 429 and 5xx. Writes are
// never retried so a job is not submitted twice.
func retryCondition(r *resty.Response, err error) bool {
	if r != nil && r.Request != nil && r.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func (c *APIClient) BaseURL() string {
	return c.baseURL
}

func (c *APIClient) do(
	ctx context.Context,
	operation, method, path string,
	prepare func(*resty.Request),
) ([]byte, error) {
	log := logger.FromContext(ctx)
	req := c.client.R().SetContext(ctx)
	if prepare != nil {
		prepare(req)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, helpers.NewNetworkError(operation, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s: %w", operation, decodeAPIError(resp.StatusCode(), resp.Body()))
	}
	log.Debug("API request completed", "method", method, "path", path, "status", resp.StatusCode())
	return resp.Body(), nil
}

// decodeAPIError reads {"detail": ...}. A non-string detail, such as a
// validation error list, is kept as raw JSON.
func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	if gjson.ValidBytes(body) {
		detail := gjson.GetBytes(body, "detail")
		switch {
		case detail.Type == gjson.String:
			apiErr.Detail = detail.Str
		case detail.Exists():
			apiErr.Detail = detail.Raw
		}
		return apiErr
	}
	apiErr.Detail = helpers.Truncate(strings.TrimSpace(string(body)), 200)
	return apiErr
}

// Login exchanges credentials for an access token.
func (c *APIClient) Login(ctx context.Context, username, password string) (string, error) {
	body, err := c.do(ctx, "login", http.MethodPost, "/auth/token", func(r *resty.Request) {
		r.SetFormData(map[string]string{"username": username, "password": password})
	})
	if err != nil {
		return "", err
	}
	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return "", errors.New("login: response carried no access token")
	}
	return token, nil
}

func (c *APIClient) Signup(ctx context.Context, req SignupRequest) error {
	_, err := c.do(ctx, "signup", http.MethodPost, "/auth/signup", func(r *resty.Request) {
		r.SetBody(req)
	})
	return err
}

// CreateJob submits a prompt. The backend answers with the new job id and
// its initial status only.
func (c *APIClient) CreateJob(ctx context.Context, prompt string) (job.Job, error) {
	body, err := c.do(ctx, "create job", http.MethodPost, "/video-generation/generate", func(r *resty.Request) {
		r.SetBody(map[string]string{"prompt": prompt})
	})
	if err != nil {
		return job.Job{}, err
	}
	snap, err := transport.NormalizeJob(body)
	if err != nil {
		return job.Job{}, fmt.Errorf("create job: %w", err)
	}
	created := job.JobOf(snap)
	if created.Prompt == "" {
		created.Prompt = prompt
	}
	return created, nil
}

func (c *APIClient) GetJob(ctx context.Context, id core.ID) (job.Snapshot, error) {
	body, err := c.do(ctx, "get job", http.MethodGet, "/video-generation/{id}", func(r *resty.Request) {
		r.SetPathParam("id", id.String())
	})
	if err != nil {
		return job.Snapshot{}, err
	}
	return transport.NormalizeJob(body)
}

func (c *APIClient) ListJobs(ctx context.Context) ([]job.Snapshot, error) {
	body, err := c.do(ctx, "list jobs", http.MethodGet, "/videos/", nil)
	if err != nil {
		return nil, err
	}
	return transport.Normalize(body)
}

func (c *APIClient) PublishJob(ctx context.Context, id core.ID) (core.ID, error) {
	body, err := c.do(ctx, "publish job", http.MethodPost, "/videos/{id}/publish", func(r *resty.Request) {
		r.SetPathParam("id", id.String())
	})
	if err != nil {
		return "", err
	}
	published, err := transport.PublishedID(body)
	if err != nil {
		return "", fmt.Errorf("publish job: %w", err)
	}
	return published, nil
}

func (c *APIClient) GetPreview(ctx context.Context, id core.ID) (job.PreviewRefs, error) {
	body, err := c.do(ctx, "get preview", http.MethodGet, "/videos/{id}/preview-urls", func(r *resty.Request) {
		r.SetPathParam("id", id.String())
	})
	if err != nil {
		return job.PreviewRefs{}, err
	}
	return transport.NormalizePreview(body)
}

func (c *APIClient) ListComments(ctx context.Context, videoID core.ID) ([]comment.Comment, error) {
	body, err := c.do(ctx, "list comments", http.MethodGet, "/interactions/{id}/comments", func(r *resty.Request) {
		r.SetPathParam("id", videoID.String())
	})
	if err != nil {
		return nil, err
	}
	return transport.NormalizeComments(body)
}

// PostComment adds a comment, or a reply when parentID is set. Numeric ids
// are sent as numbers.
func (c *APIClient) PostComment(
	ctx context.Context,
	videoID core.ID,
	text string,
	parentID *core.ID,
) (comment.Comment, error) {
	payload := map[string]any{"comment_text": text}
	if parentID != nil && !parentID.IsZero() {
		payload["parent_comment_id"] = numericOrString(*parentID)
	}
	body, err := c.do(ctx, "post comment", http.MethodPost, "/interactions/{id}/comment", func(r *resty.Request) {
		r.SetPathParam("id", videoID.String())
		r.SetBody(payload)
	})
	if err != nil {
		return comment.Comment{}, err
	}
	posted, err := transport.NormalizeComment(body)
	if err != nil {
		return comment.Comment{}, fmt.Errorf("post comment: %w", err)
	}
	if posted.Text == "" {
		posted.Text = text
	}
	if posted.ParentID == nil && parentID != nil && !parentID.IsZero() {
		posted.ParentID = parentID
	}
	return posted, nil
}

func numericOrString(id core.ID) any {
	if n, err := strconv.ParseInt(id.String(), 10, 64); err == nil {
		return n
	}
	return id.String()
}
