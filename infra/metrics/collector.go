package metrics

import (
	"context"

	coremetrics "github.com/kilianp07/porttrack/core/metrics"
	"github.com/kilianp07/porttrack/core/model"
	"github.com/kilianp07/porttrack/infra/logger"
	"github.com/kilianp07/porttrack/internal/eventbus"
)

// StartEventCollector subscribes to the transition bus and records every
// event on sink. It stops when the context is canceled or the bus closes.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[model.TransitionEvent], sink coremetrics.MetricsSink, log logger.Logger) {
	if bus == nil || sink == nil {
		return
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := sink.RecordTransitions([]model.TransitionEvent{ev}); err != nil {
					log.Warnf("record transition %s: %v", ev.ID, err)
				}
			}
		}
	}()
}
