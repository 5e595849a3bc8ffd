package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/genvid/genvid/cli/helpers"
	"github.com/genvid/genvid/engine/comment"
	"github.com/genvid/genvid/engine/core"
	"github.com/genvid/genvid/engine/job"
	"github.com/genvid/genvid/engine/notify"
)

// maxCommentIndent caps the rendered nesting depth of reply threads.
const maxCommentIndent = 4

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	activeStyle  = lipgloss.NewStyle().Bold(true)
	readyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F2C94C"))
)

var statusStyles = map[job.Status]lipgloss.Style{
	job.StatusSucceeded: readyStyle,
	job.StatusFailed:    failedStyle,
	job.StatusRunning:   runningStyle,
	job.StatusQueued:    mutedStyle,
}

// Printer renders command results as styled text or JSON lines. It is safe
// for concurrent use.
type Printer struct {
	mu   sync.Mutex
	out  io.Writer
	mode helpers.Mode
	now  func() time.Time
}

func NewPrinter(out io.Writer, mode helpers.Mode) *Printer {
	return &Printer{out: out, mode: mode, now: time.Now}
}

func (p *Printer) Mode() helpers.Mode {
	return p.mode
}

// JSON writes v as one JSON document regardless of mode.
func (p *Printer) JSON(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeJSON(v)
}

func (p *Printer) writeJSON(v any) error {
	encoder := json.NewEncoder(p.out)
	if p.mode == helpers.ModeText {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}

func (p *Printer) writeLine(line string) error {
	_, err := fmt.Fprintln(p.out, line)
	return err
}

// Message prints an informational line.
func (p *Printer) Message(format string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	if p.mode == helpers.ModeJSON {
		return p.writeJSON(map[string]string{"message": msg})
	}
	return p.writeLine(msg)
}

// Jobs prints the job list, marking activeID.
func (p *Printer) Jobs(jobs []job.Job, activeID core.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode == helpers.ModeJSON {
		return p.writeJSON(map[string]any{"jobs": jobs, "active_id": activeID})
	}
	if len(jobs) == 0 {
		return p.writeLine(mutedStyle.Render("No jobs yet."))
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(formatRow("", "ID", "STATUS", "UPDATED", "PROMPT")))
	b.WriteByte('\n')
	for _, j := range jobs {
		marker := " "
		if j.ID == activeID {
			marker = "*"
		}
		updated := j.UpdatedAt
		if updated.IsZero() {
			updated = j.CreatedAt
		}
		row := formatRow(
			marker,
			j.ID.String(),
			statusLabel(j),
			helpers.FormatAge(p.now(), updated),
			helpers.Truncate(j.Prompt, 48),
		)
		if j.ID == activeID {
			row = activeStyle.Render(row)
		}
		b.WriteString(row)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(p.out, b.String())
	return err
}

func formatRow(marker, id, status, age, prompt string) string {
	return fmt.Sprintf("%1s %-12s %-20s %-10s %s", marker, id, status, age, prompt)
}

// statusLabel describes a job the way a person reads it, which is more
// specific than the raw status for published and failed jobs.
func statusLabel(j job.Job) string {
	switch {
	case j.IsPublished():
		return "PUBLISHED"
	case j.IsDraft():
		return "DRAFT"
	case j.Status == "":
		return "UNKNOWN"
	default:
		return j.Status.String()
	}
}

// Job prints a single job with its preview and error details.
func (p *Printer) Job(j job.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode == helpers.ModeJSON {
		return p.writeJSON(j)
	}
	style, ok := statusStyles[j.Status]
	if !ok {
		style = mutedStyle
	}
	lines := []string{
		fmt.Sprintf("Job %s  %s", j.ID, style.Render(statusLabel(j))),
	}
	if j.Prompt != "" {
		lines = append(lines, "  prompt:    "+j.Prompt)
	}
	if j.IsPublished() {
		lines = append(lines, "  published: "+j.PublishedResourceID.String())
	}
	if j.ErrorMessage != "" {
		lines = append(lines, "  error:     "+failedStyle.Render(j.ErrorMessage))
	}
	lines = append(lines, previewLines(j.PreviewRefs)...)
	return p.writeLine(strings.Join(lines, "\n"))
}

func previewLines(refs job.PreviewRefs) []string {
	var lines []string
	if refs.VideoURL != "" {
		lines = append(lines, "  preview:   "+refs.VideoURL)
	}
	if refs.ThumbnailURL != "" {
		lines = append(lines, "  thumbnail: "+refs.ThumbnailURL)
	}
	return lines
}

// Notification prints a ready or failed announcement.
func (p *Printer) Notification(n notify.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode == helpers.ModeJSON {
		return p.writeJSON(map[string]any{"notification": n})
	}
	style := readyStyle
	if n.Kind == notify.KindFailed {
		style = failedStyle
	}
	return p.writeLine(style.Render(n.Message))
}

// Preview prints the resolved preview media for a job.
func (p *Printer) Preview(id core.ID, refs job.PreviewRefs) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode == helpers.ModeJSON {
		return p.writeJSON(map[string]any{"preview": refs, "job_id": id})
	}
	lines := previewLines(refs)
	if len(lines) == 0 {
		return nil
	}
	return p.writeLine(strings.Join(lines, "\n"))
}

// Comments prints a reply tree. Replies deeper than maxCommentIndent are
// drawn at that depth.
func (p *Printer) Comments(tree []*comment.Comment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode == helpers.ModeJSON {
		return p.writeJSON(map[string]any{"comments": tree, "count": comment.Count(tree)})
	}
	if len(tree) == 0 {
		return p.writeLine(mutedStyle.Render("No comments yet."))
	}
	var b strings.Builder
	comment.Walk(tree, func(c *comment.Comment, depth int) {
		b.WriteString(renderComment(c, depth))
		b.WriteByte('\n')
	})
	_, err := io.WriteString(p.out, b.String())
	return err
}

func renderComment(c *comment.Comment, depth int) string {
	indent := strings.Repeat("  ", min(depth, maxCommentIndent))
	author := c.AuthorName
	if author == "" {
		author = "anonymous"
	}
	return fmt.Sprintf("%s- %s %s %s", indent, activeStyle.Render(author), c.Text, mutedStyle.Render("#"+c.ID.String()))
}
