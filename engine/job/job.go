package job

import (
	"time"

	"github.com/genvid/genvid/engine/core"
)

// Status is the lifecycle state of a generation job as reported by the backend.
type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is expected.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

// PreviewRefs points at derived preview media. Path is the raw storage path
// reported by the job stream; the URLs come from the preview endpoint.
type PreviewRefs struct {
	Path         string `json:"path,omitempty"`
	VideoURL     string `json:"video_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

func (p PreviewRefs) IsZero() bool {
	return p.Path == "" && p.VideoURL == "" && p.ThumbnailURL == ""
}

// merge overlays the non-empty fields of other.
func (p PreviewRefs) merge(other PreviewRefs) PreviewRefs {
	if other.Path != "" {
		p.Path = other.Path
	}
	if other.VideoURL != "" {
		p.VideoURL = other.VideoURL
	}
	if other.ThumbnailURL != "" {
		p.ThumbnailURL = other.ThumbnailURL
	}
	return p
}

// Job is the reconciled client-side record of one generation job.
type Job struct {
	ID                  core.ID     `json:"id"`
	Status              Status      `json:"status"`
	Prompt              string      `json:"prompt,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
	PublishedResourceID core.ID     `json:"published_resource_id,omitempty"`
	ErrorMessage        string      `json:"error_message,omitempty"`
	PreviewRefs         PreviewRefs `json:"preview,omitempty"`
}

func (j Job) IsPublished() bool {
	return !j.PublishedResourceID.IsZero()
}

// IsDraft reports a successful job whose output has not been published yet.
func (j Job) IsDraft() bool {
	return j.Status == StatusSucceeded && !j.IsPublished()
}

// Snapshot is one externally sourced, possibly partial description of a job.
// Nil fields are absent and never overwrite stored values.
type Snapshot struct {
	ID                  core.ID
	Status              *Status
	Prompt              *string
	CreatedAt           *time.Time
	UpdatedAt           *time.Time
	PublishedResourceID *core.ID
	ErrorMessage        *string
	PreviewRefs         *PreviewRefs
}

// SnapshotOf describes every populated field of j.
func SnapshotOf(j Job) Snapshot {
	s := Snapshot{ID: j.ID}
	if j.Status != "" {
		s.Status = Ptr(j.Status)
	}
	if j.Prompt != "" {
		s.Prompt = Ptr(j.Prompt)
	}
	if !j.CreatedAt.IsZero() {
		s.CreatedAt = Ptr(j.CreatedAt)
	}
	if !j.UpdatedAt.IsZero() {
		s.UpdatedAt = Ptr(j.UpdatedAt)
	}
	if j.IsPublished() {
		s.PublishedResourceID = Ptr(j.PublishedResourceID)
	}
	if j.ErrorMessage != "" {
		s.ErrorMessage = Ptr(j.ErrorMessage)
	}
	if !j.PreviewRefs.IsZero() {
		s.PreviewRefs = Ptr(j.PreviewRefs)
	}
	return s
}

// JobOf builds a job from the populated fields of s.
func JobOf(s Snapshot) Job {
	j := Job{ID: s.ID}
	if s.Status != nil {
		j.Status = *s.Status
	}
	if s.Prompt != nil {
		j.Prompt = *s.Prompt
	}
	if s.CreatedAt != nil {
		j.CreatedAt = *s.CreatedAt
	}
	if s.UpdatedAt != nil {
		j.UpdatedAt = *s.UpdatedAt
	}
	if s.PublishedResourceID != nil {
		j.PublishedResourceID = *s.PublishedResourceID
	}
	if s.ErrorMessage != nil {
		j.ErrorMessage = *s.ErrorMessage
	}
	if s.PreviewRefs != nil {
		j.PreviewRefs = *s.PreviewRefs
	}
	return j
}

func Ptr[T any](v T) *T {
	return &v
}
