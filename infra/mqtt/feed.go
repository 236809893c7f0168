// Package mqtt connects the tracker to an MQTT broker: position reports are
// consumed from one topic and status transitions are published per vessel.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/porttrack/core/model"
	"github.com/kilianp07/porttrack/core/tracker"
	"github.com/kilianp07/porttrack/infra/logger"
	"github.com/kilianp07/porttrack/internal/eventbus"
)

// BatchApplier applies a batch of reports. *tracker.Tracker implements it.
type BatchApplier interface {
	ApplyBatch(ctx context.Context, b tracker.Batch) ([]model.VesselRecord, error)
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

const applyTimeout = 10 * time.Second

// Feed is the tracker's MQTT adapter.
type Feed struct {
	cli     pahoClient
	cfg     Config
	applier BatchApplier
	log     logger.Logger
}

// NewFeed connects to the broker and subscribes to the reports topic. The
// subscription is renewed on every reconnect.
func NewFeed(cfg Config, applier BatchApplier, log logger.Logger) (*Feed, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New("mqtt_feed")
	}
	f := &Feed{cfg: cfg, applier: applier, log: log}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(cfg.ReportsTopic, cfg.qos("reports"), f.onReports); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	f.cli = c
	return f, nil
}

func (f *Feed) onReports(_ paho.Client, msg paho.Message) {
	b, err := tracker.DecodeBatch(msg.Payload())
	if err != nil {
		f.log.Errorf("failed to decode reports: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()
	updated, err := f.applier.ApplyBatch(ctx, b)
	switch {
	case errors.Is(err, tracker.ErrStaleBatch):
		f.log.Warnf("dropping batch: %v", err)
	case err != nil:
		f.log.Errorf("apply batch: %v", err)
	default:
		f.log.Debugw("applied reports", map[string]any{"topic": msg.Topic(), "updated": len(updated)})
	}
}

// PublishTransition sends ev to <transitions_topic>/<vesselID>, retrying with
// exponential backoff.
func (f *Feed) PublishTransition(ev model.TransitionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	topic := f.cfg.TransitionsTopic + "/" + ev.VesselID
	backoff := time.Duration(f.cfg.BackoffMS) * time.Millisecond
	var publishErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		token := f.cli.Publish(topic, f.cfg.qos("transitions"), false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		f.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < f.cfg.MaxRetries {
			time.Sleep(backoff * time.Duration(1<<attempt))
		}
	}
	return publishErr
}

// Run publishes every transition from bus until ctx is done or the bus closes.
func (f *Feed) Run(ctx context.Context, bus *eventbus.TypedBus[model.TransitionEvent]) {
	bus.Consume(ctx, func(ev model.TransitionEvent) {
		if err := f.PublishTransition(ev); err != nil {
			f.log.Errorf("transition %s not published: %v", ev.ID, err)
		}
	})
}

// Close gracefully closes the MQTT connection.
func (f *Feed) Close() error {
	if f.cli != nil && f.cli.IsConnected() {
		f.cli.Disconnect(250)
	}
	return nil
}
