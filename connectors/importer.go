package connectors

import (
	"context"
	"fmt"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/core/events"
	"github.com/FlexMeasures/flexmeasures-sub003/core/logger"
	"github.com/FlexMeasures/flexmeasures-sub003/core/model"
	"github.com/FlexMeasures/flexmeasures-sub003/core/store"
	"github.com/FlexMeasures/flexmeasures-sub003/internal/eventbus"
)

// Importer writes fetched market prices into the belief store.
type Importer struct {
	src      PriceSource
	store    store.Store
	bus      eventbus.EventBus
	sensorID string
	sourceID string
	window   time.Duration
	log      logger.Logger
}

// NewImporter creates an importer targeting the given price sensor. The bus
// and logger may be nil.
func NewImporter(src PriceSource, st store.Store, bus eventbus.EventBus, sensorID, sourceID string, window time.Duration, log logger.Logger) *Importer {
	if window <= 0 {
		window = 48 * time.Hour
	}
	return &Importer{
		src:      src,
		store:    st,
		bus:      bus,
		sensorID: sensorID,
		sourceID: sourceID,
		window:   window,
		log:      log,
	}
}

// ImportOnce fetches prices over the configured window starting today and
// records them as beliefs. It returns the number of beliefs written.
func (i *Importer) ImportOnce(ctx context.Context) (int, error) {
	sensor, err := i.store.GetSensor(ctx, i.sensorID)
	if err != nil {
		return 0, fmt.Errorf("price sensor %s: %w", i.sensorID, err)
	}
	now := time.Now()
	start := now.Truncate(24 * time.Hour)
	points, err := i.src.Prices(ctx, start, start.Add(i.window))
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, nil
	}

	beliefs := make([]model.Belief, 0, len(points))
	for _, p := range points {
		beliefs = append(beliefs, model.Belief{
			SensorID:   sensor.ID,
			EventStart: p.Start,
			BeliefTime: now,
			SourceID:   i.sourceID,
			Value:      p.Price,
		})
	}
	if err := i.store.AddBeliefs(ctx, beliefs); err != nil {
		return 0, err
	}
	if i.bus != nil {
		i.bus.Publish(events.BeliefsAddedEvent{
			SensorID: sensor.ID,
			SourceID: i.sourceID,
			Count:    len(beliefs),
			Time:     now,
		})
	}
	return len(beliefs), nil
}

// Run imports prices at the given interval until ctx is done. Failures are
// logged and retried on the next tick.
func (i *Importer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if n, err := i.ImportOnce(ctx); err != nil {
			if i.log != nil {
				i.log.Errorf("price import: %v", err)
			}
		} else if i.log != nil && n > 0 {
			i.log.Infof("imported %d prices for %s", n, i.sensorID)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
