package metrics

import "testing"

func TestMetricName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "adds prefix", input: "reconnects_total", expected: "genvid_reconnects_total"},
		{name: "keeps prefixed", input: "genvid_custom_metric", expected: "genvid_custom_metric"},
		{name: "blank returns prefix", input: "", expected: "genvid_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MetricName(tt.input); got != tt.expected {
				t.Fatalf("MetricName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMetricNameWithSubsystem(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		subsystem  string
		metricName string
		expected   string
	}{
		{name: "subsystem and name", subsystem: "transport", metricName: "reconnects_total", expected: "genvid_transport_reconnects_total"},
		{name: "subsystem trims underscore", subsystem: "_preview_", metricName: "fetches_total", expected: "genvid_preview_fetches_total"},
		{name: "empty name", subsystem: "store", metricName: "", expected: "genvid_store"},
		{name: "already prefixed", subsystem: "", metricName: "genvid_existing", expected: "genvid_existing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MetricNameWithSubsystem(tt.subsystem, tt.metricName); got != tt.expected {
				t.Fatalf("MetricNameWithSubsystem(%q, %q) = %q, want %q", tt.subsystem, tt.metricName, got, tt.expected)
			}
		})
	}
}
