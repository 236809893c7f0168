// Package app wires the tracker, the forecast engine and their adapters into
// a runnable service.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	forecastapi "github.com/kilianp07/porttrack/api/forecast"
	trackerapi "github.com/kilianp07/porttrack/api/tracker"
	"github.com/kilianp07/porttrack/config"
	"github.com/kilianp07/porttrack/core/forecast"
	coremetrics "github.com/kilianp07/porttrack/core/metrics"
	"github.com/kilianp07/porttrack/core/model"
	"github.com/kilianp07/porttrack/core/tracker"
	"github.com/kilianp07/porttrack/infra/logger"
	"github.com/kilianp07/porttrack/infra/metrics"
	"github.com/kilianp07/porttrack/infra/mqtt"
	"github.com/kilianp07/porttrack/infra/remote"
	"github.com/kilianp07/porttrack/infra/storage"
	"github.com/kilianp07/porttrack/internal/eventbus"
)

const busBuffer = 256

// Service orchestrates the tracker, the forecast engine and their adapters.
type Service struct {
	Tracker *tracker.Tracker
	Engine  *forecast.Engine

	cfg     *config.Config
	store   storage.Store
	bus     *eventbus.TypedBus[model.TransitionEvent]
	sink    coremetrics.MetricsSink
	syncer  *Syncer
	feed    *mqtt.Feed
	handler http.Handler
	log     logger.Logger
}

// New creates a Service from the configuration and loads the persisted store.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	bus := eventbus.NewTyped[model.TransitionEvent](busBuffer)
	tr := tracker.New(cfg.Tracker, store, tracker.WithLogger(logger.New("tracker")), tracker.WithBus(bus))
	tr.Load(context.Background())

	s := &Service{
		Tracker: tr,
		Engine:  forecast.New(cfg.Port),
		cfg:     cfg,
		store:   store,
		bus:     bus,
		sink:    sink,
		log:     logg,
	}

	if cfg.Remote.Enabled {
		client := remote.NewClient(cfg.Remote, nil)
		rec, _ := sink.(coremetrics.SyncRecorder)
		s.syncer = NewSyncer(client, tr, cfg.Remote.PushPerMinute, cfg.Remote.Timeout(), rec, logger.New("sync"))
	}
	if cfg.MQTT.Enabled {
		feed, err := mqtt.NewFeed(cfg.MQTT, notifyingApplier{tr: tr, onChange: s.changed}, logger.New("mqtt_feed"))
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("mqtt feed: %w", err)
		}
		s.feed = feed
	}

	s.handler = s.routes()
	return s, nil
}

func (s *Service) routes() http.Handler {
	mux := http.NewServeMux()
	trackerapi.New(s.Tracker,
		trackerapi.WithToken(s.cfg.Server.Token),
		trackerapi.WithMaxBody(s.cfg.Server.MaxBodyBytes),
		trackerapi.WithOnChange(s.changed),
		trackerapi.WithLogger(logger.New("tracker-api")),
	).Register(mux)
	rec, _ := s.sink.(coremetrics.ForecastRecorder)
	forecastapi.New(s.Engine, s.forecastInput, rec).Register(mux)
	mux.HandleFunc("/api/health", s.health)
	return mux
}

// Handler returns the HTTP handler of the service.
func (s *Service) Handler() http.Handler { return s.handler }

func (s *Service) forecastInput() []forecast.Vessel {
	return forecast.FromRecords(s.Tracker.Vessels())
}

// changed runs after every local mutation: the fleet snapshot is recorded
// and a background sync is started.
func (s *Service) changed() {
	if r, ok := s.sink.(coremetrics.FleetRecorder); ok {
		if err := r.RecordFleet(coremetrics.FleetEvent{Stats: s.Tracker.Stats(), Time: time.Now()}); err != nil {
			s.log.Warnf("record fleet: %v", err)
		}
	}
	if s.syncer != nil {
		s.syncer.Trigger()
	}
}

func (s *Service) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"vessels": len(s.Tracker.Vessels()),
		"sync":    s.syncer != nil,
		"mqtt":    s.feed != nil,
	})
}

// Run serves the HTTP API and the enabled adapters until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("metrics"))
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.feed != nil {
		go s.feed.Run(ctx, s.bus)
	}
	if s.syncer != nil {
		go s.syncer.Pull(ctx)
	}

	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.Server.ReadTimeout(),
		ReadTimeout:       s.cfg.Server.ReadTimeout(),
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close waits for pending syncs and releases the service resources.
func (s *Service) Close() error {
	if s.syncer != nil {
		s.syncer.Wait()
	}
	var errs []error
	if s.feed != nil {
		errs = append(errs, s.feed.Close())
	}
	s.bus.Close()
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}

// notifyingApplier applies MQTT batches and reports successful ones.
type notifyingApplier struct {
	tr       *tracker.Tracker
	onChange func()
}

func (a notifyingApplier) ApplyBatch(ctx context.Context, b tracker.Batch) ([]model.VesselRecord, error) {
	updated, err := a.tr.ApplyBatch(ctx, b)
	if err == nil && len(updated) > 0 {
		a.onChange()
	}
	return updated, err
}
