package metrics

// PreviewFetchBuckets defines latency buckets for preview resolution in seconds.
var PreviewFetchBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
