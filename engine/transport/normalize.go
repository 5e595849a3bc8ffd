package transport

import (
	"errors"
	"strings"
	"time"

	"github.com/genvid/genvid/engine/comment"
	"github.com/genvid/genvid/engine/core"
	"github.com/genvid/genvid/engine/job"
	"github.com/tidwall/gjson"
)

var errMalformed = errors.New("transport: malformed message")

// Field aliases observed across the job list, event stream and single-job
// endpoints. The first present key wins.
var (
	idKeys        = []string{"id", "job_id"}
	previewKeys   = []string{"preview", "preview_video_path", "file_path"}
	publishedKeys = []string{"published_video_id", "published_resource_id"}
	errorKeys     = []string{"error_message", "error"}

	commentIDKeys     = []string{"id", "comment_id"}
	commentTextKeys   = []string{"content", "comment_text", "text"}
	commentParentKeys = []string{"parent_comment_id", "parent_id"}
	commentAuthorKeys = []string{"author", "username", "author_name"}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

// Normalize parses one message payload into canonical snapshots. The payload
// is either an array of job objects or a single job object. Elements without
// an id are skipped.
func Normalize(data []byte) ([]job.Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return nil, errMalformed
	}
	root := gjson.ParseBytes(data)
	switch {
	case root.IsArray():
		items := root.Array()
		out := make([]job.Snapshot, 0, len(items))
		for _, item := range items {
			if snap, ok := normalizeOne(item); ok {
				out = append(out, snap)
			}
		}
		return out, nil
	case root.IsObject():
		snap, ok := normalizeOne(root)
		if !ok {
			return nil, nil
		}
		return []job.Snapshot{snap}, nil
	default:
		return nil, errMalformed
	}
}

// NormalizeJob parses a single job document, as returned by the job endpoints.
func NormalizeJob(data []byte) (job.Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return job.Snapshot{}, errMalformed
	}
	snap, ok := normalizeOne(gjson.ParseBytes(data))
	if !ok {
		return job.Snapshot{}, errMalformed
	}
	return snap, nil
}

func normalizeOne(obj gjson.Result) (job.Snapshot, bool) {
	if !obj.IsObject() {
		return job.Snapshot{}, false
	}
	id := idOf(first(obj, idKeys))
	if id.IsZero() {
		return job.Snapshot{}, false
	}
	snap := job.Snapshot{ID: id}
	if v := obj.Get("status"); v.Type == gjson.String {
		if status := job.Status(strings.ToUpper(strings.TrimSpace(v.Str))); status.IsValid() {
			snap.Status = job.Ptr(status)
		}
	}
	if v := obj.Get("prompt"); v.Type == gjson.String && v.Str != "" {
		snap.Prompt = job.Ptr(v.Str)
	}
	if t, ok := timeOf(obj.Get("created_at")); ok {
		snap.CreatedAt = &t
	}
	if t, ok := timeOf(obj.Get("updated_at")); ok {
		snap.UpdatedAt = &t
	}
	if pub := idOf(first(obj, publishedKeys)); !pub.IsZero() {
		snap.PublishedResourceID = &pub
	}
	if v := first(obj, errorKeys); v.Type == gjson.String && v.Str != "" {
		snap.ErrorMessage = job.Ptr(v.Str)
	}
	refs := job.PreviewRefs{
		Path:         first(obj, previewKeys).Str,
		VideoURL:     obj.Get("preview_video_url").Str,
		ThumbnailURL: obj.Get("preview_thumbnail_url").Str,
	}
	if !refs.IsZero() {
		snap.PreviewRefs = &refs
	}
	return snap, true
}

func first(obj gjson.Result, keys []string) gjson.Result {
	for _, key := range keys {
		if v := obj.Get(key); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func idOf(v gjson.Result) core.ID {
	switch v.Type {
	case gjson.Number:
		return core.ID(v.Raw)
	case gjson.String:
		return core.ID(strings.TrimSpace(v.Str))
	default:
		return ""
	}
}

func timeOf(v gjson.Result) (time.Time, bool) {
	if v.Type != gjson.String || v.Str == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v.Str); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// NormalizePreview parses the preview endpoint response.
func NormalizePreview(data []byte) (job.PreviewRefs, error) {
	if !gjson.ValidBytes(data) {
		return job.PreviewRefs{}, errMalformed
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return job.PreviewRefs{}, errMalformed
	}
	return job.PreviewRefs{
		Path:         first(root, previewKeys).Str,
		VideoURL:     root.Get("preview_video_url").Str,
		ThumbnailURL: root.Get("preview_thumbnail_url").Str,
	}, nil
}

// PublishedID extracts the resource id from a publish response, which names
// it either video_id or id.
func PublishedID(data []byte) (core.ID, error) {
	if !gjson.ValidBytes(data) {
		return "", errMalformed
	}
	root := gjson.ParseBytes(data)
	id := idOf(first(root, []string{"video_id", "published_video_id", "id"}))
	if id.IsZero() {
		return "", errMalformed
	}
	return id, nil
}

// NormalizeComments parses a flat comment list. Elements without an id are
// skipped.
func NormalizeComments(data []byte) ([]comment.Comment, error) {
	if !gjson.ValidBytes(data) {
		return nil, errMalformed
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, errMalformed
	}
	items := root.Array()
	out := make([]comment.Comment, 0, len(items))
	for _, item := range items {
		if c, ok := normalizeComment(item); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// NormalizeComment parses a single comment document.
func NormalizeComment(data []byte) (comment.Comment, error) {
	if !gjson.ValidBytes(data) {
		return comment.Comment{}, errMalformed
	}
	c, ok := normalizeComment(gjson.ParseBytes(data))
	if !ok {
		return comment.Comment{}, errMalformed
	}
	return c, nil
}

func normalizeComment(obj gjson.Result) (comment.Comment, bool) {
	if !obj.IsObject() {
		return comment.Comment{}, false
	}
	id := idOf(first(obj, commentIDKeys))
	if id.IsZero() {
		return comment.Comment{}, false
	}
	c := comment.Comment{
		ID:         id,
		Text:       first(obj, commentTextKeys).Str,
		AuthorName: first(obj, commentAuthorKeys).Str,
	}
	if parent := idOf(first(obj, commentParentKeys)); !parent.IsZero() {
		c.ParentID = &parent
	}
	if t, ok := timeOf(obj.Get("created_at")); ok {
		c.CreatedAt = t
	}
	return c, true
}
