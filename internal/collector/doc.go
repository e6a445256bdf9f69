// Package collector samples metrics for running servers: CPU and memory of
// the managed process, established connections, and request rate, error
// rate and latency percentiles over a rolling window. Samples land in the
// registry (which enforces that only running servers carry metrics) and on
// the event sink for live dashboards.
package collector
