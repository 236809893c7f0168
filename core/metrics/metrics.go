package metrics

import (
	"time"

	"github.com/kilianp07/porttrack/core/model"
)

// MetricsSink records vessel status transitions.
type MetricsSink interface {
	RecordTransitions(events []model.TransitionEvent) error
}

// FleetEvent is a snapshot of the tracking store statistics.
type FleetEvent struct {
	Stats model.Stats
	Time  time.Time
}

// FleetRecorder records fleet snapshots.
type FleetRecorder interface {
	RecordFleet(ev FleetEvent) error
}

// ForecastWindow is the recorded outcome of one arrival window.
type ForecastWindow struct {
	Name       string
	Count      int
	SurgeScore *float64
	Level      string
}

// ForecastEvent captures a generated forecast.
type ForecastEvent struct {
	Windows []ForecastWindow
	Time    time.Time
}

// ForecastRecorder records forecasts.
type ForecastRecorder interface {
	RecordForecast(ev ForecastEvent) error
}

// Sync directions.
const (
	SyncPush = "push"
	SyncPull = "pull"
)

// SyncEvent describes one exchange with the remote store.
type SyncEvent struct {
	Direction string
	Success   bool
	// Changed is set when a pull modified the local store.
	Changed bool
	Error   string
	Latency time.Duration
	Time    time.Time
}

// SyncRecorder records sync attempts.
type SyncRecorder interface {
	RecordSync(ev SyncEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordTransitions([]model.TransitionEvent) error { return nil }
func (NopSink) RecordFleet(FleetEvent) error                    { return nil }
func (NopSink) RecordForecast(ForecastEvent) error              { return nil }
func (NopSink) RecordSync(SyncEvent) error                      { return nil }
