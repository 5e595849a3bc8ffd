package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/genvid/genvid/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetrics exposes instruments for the job synchronization pipeline.
// A nil *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	stateChanges  metric.Int64Counter
	reconnects    metric.Int64Counter
	snapshots     metric.Int64Counter
	conflicts     metric.Int64Counter
	notifications metric.Int64Counter
	previewFetch  metric.Float64Histogram
	pollErrors    metric.Int64Counter
}

func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return &SyncMetrics{}, nil
	}
	m := &SyncMetrics{}
	counters := []struct {
		dst         *metric.Int64Counter
		subsystem   string
		name        string
		description string
	}{
		{&m.stateChanges, "transport", "state_changes_total", "Transport state transitions grouped by kind and state"},
		{&m.reconnects, "transport", "reconnects_total", "Scheduled reconnects grouped by transport kind"},
		{&m.snapshots, "store", "snapshots_total", "Job snapshots ingested grouped by source"},
		{&m.conflicts, "store", "conflicts_total", "Rejected status regressions out of a terminal state"},
		{&m.notifications, "notify", "notifications_total", "User notifications emitted grouped by kind"},
		{&m.pollErrors, "poll", "errors_total", "Failed job polls"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(
			metrics.MetricNameWithSubsystem(c.subsystem, c.name),
			metric.WithDescription(c.description),
			metric.WithUnit("1"),
		)
		if err != nil {
			return nil, fmt.Errorf("create %s %s counter: %w", c.subsystem, c.name, err)
		}
		*c.dst = counter
	}
	histogram, err := meter.Float64Histogram(
		metrics.MetricNameWithSubsystem("preview", "fetch_duration_seconds"),
		metric.WithDescription("Preview resolution latency grouped by outcome"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.PreviewFetchBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create preview fetch histogram: %w", err)
	}
	m.previewFetch = histogram
	return m, nil
}

// RecordStateChange counts a transport transition; entering RECONNECT_WAIT
// also counts as a reconnect.
func (m *SyncMetrics) RecordStateChange(ctx context.Context, kind, state string) {
	if m == nil || m.stateChanges == nil {
		return
	}
	m.stateChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("state", state),
	))
	if state == "RECONNECT_WAIT" && m.reconnects != nil {
		m.reconnects.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

func (m *SyncMetrics) RecordSnapshot(ctx context.Context, source string) {
	if m == nil || m.snapshots == nil {
		return
	}
	m.snapshots.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (m *SyncMetrics) RecordConflict(ctx context.Context) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Add(ctx, 1)
}

func (m *SyncMetrics) RecordNotification(ctx context.Context, kind string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *SyncMetrics) RecordPreviewFetch(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil || m.previewFetch == nil {
		return
	}
	m.previewFetch.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *SyncMetrics) RecordPollError(ctx context.Context) {
	if m == nil || m.pollErrors == nil {
		return
	}
	m.pollErrors.Add(ctx, 1)
}
