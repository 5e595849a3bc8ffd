package notify_test

import (
	"testing"

	"github.com/genvid/genvid/engine/core"
	"github.com/genvid/genvid/engine/job"
	"github.com/genvid/genvid/engine/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduper_Observe(t *testing.T) {
	t.Run("Should emit ready exactly once for repeated observations", func(t *testing.T) {
		d := notify.NewDeduper()
		j := job.Job{ID: "7", Status: job.StatusSucceeded}

		first, ok := d.Observe(j, "7")
		require.True(t, ok)
		_, again := d.Observe(j, "7")

		assert.False(t, again)
		assert.Equal(t, notify.KindReady, first.Kind)
		assert.Equal(t, core.ID("7"), first.JobID)
		assert.False(t, first.ID.IsZero())
		assert.Contains(t, first.Message, "Draft ready (id 7)")
	})

	t.Run("Should emit failed with the error message", func(t *testing.T) {
		d := notify.NewDeduper()
		n, ok := d.Observe(job.Job{ID: "3", Status: job.StatusFailed, ErrorMessage: "out of memory"}, "3")

		require.True(t, ok)
		assert.Equal(t, notify.KindFailed, n.Kind)
		assert.Contains(t, n.Message, "out of memory")
	})

	t.Run("Should suppress jobs that are not active", func(t *testing.T) {
		d := notify.NewDeduper()
		_, ok := d.Observe(job.Job{ID: "2", Status: job.StatusSucceeded}, "1")
		assert.False(t, ok)

		_, ok = d.Observe(job.Job{ID: "2", Status: job.StatusSucceeded}, "")
		assert.False(t, ok)
	})

	t.Run("Should ignore non-terminal statuses", func(t *testing.T) {
		d := notify.NewDeduper()
		_, ok := d.Observe(job.Job{ID: "1", Status: job.StatusRunning}, "1")
		assert.False(t, ok)
	})

	t.Run("Should not announce already published jobs", func(t *testing.T) {
		d := notify.NewDeduper()
		_, ok := d.Observe(job.Job{ID: "1", Status: job.StatusSucceeded, PublishedResourceID: "v1"}, "1")
		assert.False(t, ok)
	})

	t.Run("Should make a new active job eligible after switching", func(t *testing.T) {
		d := notify.NewDeduper()
		_, ok := d.Observe(job.Job{ID: "1", Status: job.StatusSucceeded}, "1")
		require.True(t, ok)

		d.Reset("2", "")
		_, ok = d.Observe(job.Job{ID: "2", Status: job.StatusSucceeded}, "2")
		assert.True(t, ok)
	})

	t.Run("Should respect a primed terminal status", func(t *testing.T) {
		d := notify.NewDeduper()
		d.Reset("5", job.StatusSucceeded)

		_, ok := d.Observe(job.Job{ID: "5", Status: job.StatusSucceeded}, "5")
		assert.False(t, ok)
	})

	t.Run("Should emit again when the terminal status changes", func(t *testing.T) {
		d := notify.NewDeduper()
		_, ok := d.Observe(job.Job{ID: "1", Status: job.StatusSucceeded}, "1")
		require.True(t, ok)

		n, ok := d.Observe(job.Job{ID: "1", Status: job.StatusFailed}, "1")
		require.True(t, ok)
		assert.Equal(t, notify.KindFailed, n.Kind)
	})
}
