package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/porttrack/core/metrics"
	"github.com/kilianp07/porttrack/core/model"
)

// PromSink records tracker activity in Prometheus metrics.
type PromSink struct {
	transitions *prometheus.CounterVec
	vessels     *prometheus.GaugeVec
	surge       *prometheus.GaugeVec
	arrivals    *prometheus.GaugeVec
	syncs       *prometheus.CounterVec
	syncLatency *prometheus.HistogramVec
}

// NewPromSink registers metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vessel_transitions_total",
			Help: "Total number of vessel status transitions",
		}, []string{"from", "to"}),
		vessels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vessels_tracked",
			Help: "Number of tracked vessels by status",
		}, []string{"status"}),
		surge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "forecast_surge_score",
			Help: "Arrival surge score by forecast window",
		}, []string{"window"}),
		arrivals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "forecast_window_vessels",
			Help: "Vessels expected in each forecast window",
		}, []string{"window"}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "remote_sync_total",
			Help: "Remote store exchanges by direction and outcome",
		}, []string{"direction", "success"}),
		syncLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "remote_sync_latency_seconds",
			Help:    "Duration of remote store exchanges",
			Buckets: prometheus.DefBuckets,
		}, []string{"direction"}),
	}
	var err error
	if s.transitions, err = register(reg, s.transitions); err != nil {
		return nil, err
	}
	if s.vessels, err = register(reg, s.vessels); err != nil {
		return nil, err
	}
	if s.surge, err = register(reg, s.surge); err != nil {
		return nil, err
	}
	if s.arrivals, err = register(reg, s.arrivals); err != nil {
		return nil, err
	}
	if s.syncs, err = register(reg, s.syncs); err != nil {
		return nil, err
	}
	if s.syncLatency, err = register(reg, s.syncLatency); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when c was registered
// by an earlier sink.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordTransitions increments the transition counter.
func (s *PromSink) RecordTransitions(evs []model.TransitionEvent) error {
	for _, ev := range evs {
		s.transitions.WithLabelValues(ev.From.String(), ev.To.String()).Inc()
	}
	return nil
}

// RecordFleet sets the per-status gauge, zeroing statuses with no vessels.
func (s *PromSink) RecordFleet(ev coremetrics.FleetEvent) error {
	for _, st := range model.Statuses {
		s.vessels.WithLabelValues(st.String()).Set(float64(ev.Stats.ByStatus[st]))
	}
	return nil
}

// RecordForecast sets the surge and arrival gauges. Windows without a surge
// score keep their previous surge value.
func (s *PromSink) RecordForecast(ev coremetrics.ForecastEvent) error {
	for _, w := range ev.Windows {
		s.arrivals.WithLabelValues(w.Name).Set(float64(w.Count))
		if w.SurgeScore != nil {
			s.surge.WithLabelValues(w.Name).Set(*w.SurgeScore)
		}
	}
	return nil
}

// RecordSync counts the exchange and observes its latency.
func (s *PromSink) RecordSync(ev coremetrics.SyncEvent) error {
	success := "false"
	if ev.Success {
		success = "true"
	}
	s.syncs.WithLabelValues(ev.Direction, success).Inc()
	s.syncLatency.WithLabelValues(ev.Direction).Observe(ev.Latency.Seconds())
	return nil
}
