package metrics

import (
	"context"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/core/events"
	coremetrics "github.com/FlexMeasures/flexmeasures-sub003/core/metrics"
	"github.com/FlexMeasures/flexmeasures-sub003/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// platform events. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
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
				switch e := ev.(type) {
				case events.BeliefsAddedEvent:
					_ = sink.RecordIngestion(coremetrics.IngestionEvent{
						SensorID: e.SensorID,
						SourceID: e.SourceID,
						Count:    e.Count,
						Time:     e.Time,
					})
				case events.JobEvent:
					_ = sink.RecordJob(coremetrics.JobUpdate{
						JobID:   e.JobID,
						Queue:   e.Queue,
						State:   e.State,
						Attempt: e.Attempt,
						Time:    time.Now(),
					})
				case events.ScheduleComputedEvent:
					_ = sink.RecordScheduleResult(coremetrics.ScheduleResult{
						AssetID:   e.AssetID,
						Scheduler: e.Scheduler,
						JobID:     e.JobID,
						Start:     e.Start,
						Duration:  e.Duration,
						Cost:      e.Cost,
						Fallback:  e.Fallback,
						Time:      time.Now(),
					})
				case events.ForecastComputedEvent:
					_ = sink.RecordForecastResult(coremetrics.ForecastResult{
						SensorID:   e.SensorID,
						Forecaster: e.Forecaster,
						Horizon:    e.Horizon,
						Count:      e.Count,
						Time:       time.Now(),
					})
				}
			}
		}
	}()
}
