package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/porttrack/core/metrics"
	"github.com/kilianp07/porttrack/core/model"
	"github.com/kilianp07/porttrack/infra/logger"
)

// InfluxSink writes tracker activity to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordTransitions writes one vessel_transition point per event.
func (s *InfluxSink) RecordTransitions(evs []model.TransitionEvent) error {
	if len(evs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(evs))
	for _, ev := range evs {
		p := write.NewPointWithMeasurement("vessel_transition").
			AddTag("vessel_id", ev.VesselID).
			AddTag("from", ev.From.String()).
			AddTag("to", ev.To.String())
		if ev.Terminal != nil {
			p = p.AddTag("terminal", *ev.Terminal)
		}
		p = p.AddField("event_id", ev.ID).
			AddField("name", ev.Name).
			SetTime(ev.Timestamp)
		points = append(points, p)
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordFleet writes the store statistics.
func (s *InfluxSink) RecordFleet(ev coremetrics.FleetEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st := ev.Stats
	p := write.NewPointWithMeasurement("fleet_snapshot").
		AddTag("component", "tracker").
		AddField("total_tracked", st.TotalTracked).
		AddField("currently_docked", st.CurrentlyDocked).
		AddField("unloading_now", st.UnloadingNow).
		AddField("inbound", st.Inbound).
		AddField("departing", st.Departing).
		AddField("departed_today", st.DepartedToday).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordForecast writes one forecast_window point per window.
func (s *InfluxSink) RecordForecast(ev coremetrics.ForecastEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(ev.Windows))
	for _, w := range ev.Windows {
		p := write.NewPointWithMeasurement("forecast_window").
			AddTag("window", w.Name).
			AddField("vessels", w.Count)
		if w.SurgeScore != nil {
			p = p.AddTag("level", w.Level).
				AddField("surge_score", round3(*w.SurgeScore))
		}
		points = append(points, p.SetTime(ev.Time))
	}
	if len(points) == 0 {
		return nil
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordSync writes a remote exchange outcome.
func (s *InfluxSink) RecordSync(ev coremetrics.SyncEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("remote_sync").
		AddTag("direction", ev.Direction).
		AddTag("success", strconv.FormatBool(ev.Success)).
		AddField("changed", ev.Changed).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		AddField("errors", ev.Error).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
