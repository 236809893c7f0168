package metrics

// Package metrics defines the observability contract of the tracker. Sinks
// like PromSink and InfluxSink record status transitions, fleet snapshots,
// forecast windows and sync attempts. The factory helpers return a MultiSink
// automatically when multiple sinks are configured.
