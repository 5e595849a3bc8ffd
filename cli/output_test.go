package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/genvid/genvid/cli/helpers"
	"github.com/genvid/genvid/engine/comment"
	"github.com/genvid/genvid/engine/core"
	"github.com/genvid/genvid/engine/job"
	"github.com/genvid/genvid/engine/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinter_Jobs(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	jobs := []job.Job{
		{ID: "2", Status: job.StatusRunning, Prompt: "a dog", CreatedAt: now.Add(-2 * time.Minute)},
		{ID: "1", Status: job.StatusSucceeded, Prompt: "a cat", CreatedAt: now.Add(-3 * time.Hour)},
	}

	t.Run("Should emit the job list and active id as JSON", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPrinter(&buf, helpers.ModeJSON)
		require.NoError(t, p.Jobs(jobs, "2"))
		var out struct {
			Jobs     []job.Job `json:"jobs"`
			ActiveID core.ID   `json:"active_id"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		assert.Len(t, out.Jobs, 2)
		assert.Equal(t, core.ID("2"), out.ActiveID)
	})
	t.Run("Should mark the active job and label drafts in text mode", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPrinter(&buf, helpers.ModeText)
		p.now = func() time.Time { return now }
		require.NoError(t, p.Jobs(jobs, "2"))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[1], "* 2")
		assert.Contains(t, lines[1], "2m ago")
		assert.Contains(t, lines[2], "DRAFT")
		assert.Contains(t, lines[2], "3h ago")
	})
	t.Run("Should say so when there are no jobs", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, helpers.ModeText).Jobs(nil, ""))
		assert.Contains(t, buf.String(), "No jobs yet.")
	})
}

func TestStatusLabel(t *testing.T) {
	t.Run("Should prefer published over draft", func(t *testing.T) {
		assert.Equal(t, "PUBLISHED", statusLabel(job.Job{Status: job.StatusSucceeded, PublishedResourceID: "9"}))
		assert.Equal(t, "DRAFT", statusLabel(job.Job{Status: job.StatusSucceeded}))
		assert.Equal(t, "UNKNOWN", statusLabel(job.Job{}))
		assert.Equal(t, "FAILED", statusLabel(job.Job{Status: job.StatusFailed}))
	})
}

func TestPrinter_Comments(t *testing.T) {
	t.Run("Should cap reply indentation", func(t *testing.T) {
		flat := []comment.Comment{{ID: "0", Text: "root"}}
		for i := 1; i <= 6; i++ {
			parentID := core.ID(string(rune('0' + i - 1)))
			flat = append(flat, comment.Comment{ID: core.ID(string(rune('0' + i))), Text: "reply", ParentID: &parentID})
		}
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, helpers.ModeText).Comments(comment.BuildTree(flat)))
		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		require.Len(t, lines, 7)
		assert.True(t, strings.HasPrefix(lines[0], "- "))
		assert.True(t, strings.HasPrefix(lines[4], strings.Repeat("  ", 4)+"- "))
		assert.True(t, strings.HasPrefix(lines[6], strings.Repeat("  ", 4)+"- "))
		assert.Contains(t, lines[0], "anonymous")
	})
	t.Run("Should count replies in JSON mode", func(t *testing.T) {
		parentID := core.ID("1")
		tree := comment.BuildTree([]comment.Comment{
			{ID: "1", Text: "root"},
			{ID: "2", Text: "reply", ParentID: &parentID},
		})
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, helpers.ModeJSON).Comments(tree))
		var out struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		assert.Equal(t, 2, out.Count)
	})
}

func TestPrinter_Notification(t *testing.T) {
	t.Run("Should print the message in text mode", func(t *testing.T) {
		var buf bytes.Buffer
		n := notify.Notification{Kind: notify.KindFailed, Message: "Job 3 failed"}
		require.NoError(t, NewPrinter(&buf, helpers.ModeText).Notification(n))
		assert.Contains(t, buf.String(), "Job 3 failed")
	})
}
