package metrics

import (
	"errors"

	"github.com/kilianp07/porttrack/core/model"
)

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTransitions forwards to every sink and joins their errors.
func (m *MultiSink) RecordTransitions(evs []model.TransitionEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordTransitions(evs))
	}
	return errors.Join(errs...)
}

// RecordFleet forwards fleet snapshots to sinks supporting them.
func (m *MultiSink) RecordFleet(ev FleetEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(FleetRecorder); ok {
			errs = append(errs, r.RecordFleet(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordForecast forwards forecasts to sinks supporting them.
func (m *MultiSink) RecordForecast(ev ForecastEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(ForecastRecorder); ok {
			errs = append(errs, r.RecordForecast(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordSync forwards sync attempts to sinks supporting them.
func (m *MultiSink) RecordSync(ev SyncEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(SyncRecorder); ok {
			errs = append(errs, r.RecordSync(ev))
		}
	}
	return errors.Join(errs...)
}
