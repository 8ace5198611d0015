package forecasting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/core/factory"
	"github.com/FlexMeasures/flexmeasures-sub003/core/model"
	"github.com/FlexMeasures/flexmeasures-sub003/core/timeseries"
)

// ErrNoHistory indicates the sensor has no observations to forecast from.
var ErrNoHistory = errors.New("forecasting: no history")

// Request carries what a forecaster needs: the sensor, its recent history
// and the window to fill. History does not have to reach Start; forecasters
// read the latest values relative to it.
type Request struct {
	Sensor  model.Sensor
	History timeseries.Series
	// Start is the event start of the first forecast value.
	Start time.Time
	// Horizon is the length of the forecast window.
	Horizon time.Duration
	// Resolution defaults to the sensor's event resolution when zero.
	Resolution time.Duration
}

// steps validates the request and returns the slot count and resolution.
func (r Request) steps() (int, time.Duration, error) {
	res := r.Resolution
	if res == 0 {
		res = r.Sensor.EventResolution
	}
	if res <= 0 {
		return 0, 0, fmt.Errorf("forecasting: resolution must be positive")
	}
	if r.Horizon <= 0 {
		return 0, 0, fmt.Errorf("forecasting: horizon must be positive")
	}
	if r.Horizon%res != 0 {
		return 0, 0, fmt.Errorf("forecasting: horizon %v is not a multiple of resolution %v", r.Horizon, res)
	}
	if r.History.Len() == 0 {
		return 0, 0, ErrNoHistory
	}
	return int(r.Horizon / res), res, nil
}

// Forecaster fills a future window with predicted sensor values.
type Forecaster interface {
	Forecast(ctx context.Context, req Request) (timeseries.Series, error)
}

var registry = factory.NewRegistry[Forecaster]()

// Register adds a forecaster factory identified by name.
func Register(name string, f factory.Factory[Forecaster]) error {
	return registry.Register(name, f)
}

// New creates a Forecaster from the provided configuration. An empty type
// selects the persistence forecaster.
func New(cfg factory.ModuleConfig) (Forecaster, error) {
	if cfg.Type == "" {
		cfg.Type = "persistence"
	}
	return registry.Create(cfg)
}

// Registered returns the names of all known forecasters.
func Registered() []string {
	return registry.Names()
}

// Beliefs converts a forecast series into beliefs attributed to the given
// source, all formed at beliefTime. Horizons stay positive as long as the
// series lies in the future of beliefTime.
func Beliefs(s timeseries.Series, sensorID, sourceID string, beliefTime time.Time) []model.Belief {
	beliefs := make([]model.Belief, 0, s.Len())
	for i, v := range s.Values {
		beliefs = append(beliefs, model.Belief{
			SensorID:   sensorID,
			EventStart: s.TimeAt(i),
			BeliefTime: beliefTime,
			SourceID:   sourceID,
			Value:      v,
		})
	}
	return beliefs
}

func init() {
	_ = Register("persistence", func(map[string]any) (Forecaster, error) {
		return &PersistenceForecaster{}, nil
	})
	_ = Register("seasonal", func(conf map[string]any) (Forecaster, error) {
		var c SeasonalConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSeasonalForecaster(c)
	})
}
