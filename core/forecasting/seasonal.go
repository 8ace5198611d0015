package forecasting

import (
	"context"
	"fmt"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/core/timeseries"
)

// SeasonalConfig selects the repeating period of the seasonal forecaster.
type SeasonalConfig struct {
	// Period is "PT24H" (daily, the default) or "P7D" (weekly).
	Period string `json:"period"`
}

// SeasonalForecaster predicts each event with the value observed one
// seasonal period earlier. Events with no observation one period back fall
// back to persistence.
type SeasonalForecaster struct {
	period time.Duration
}

// NewSeasonalForecaster returns a seasonal forecaster for the configured
// period.
func NewSeasonalForecaster(cfg SeasonalConfig) (*SeasonalForecaster, error) {
	var period time.Duration
	switch cfg.Period {
	case "", "PT24H":
		period = 24 * time.Hour
	case "P7D":
		period = 7 * 24 * time.Hour
	default:
		return nil, fmt.Errorf("forecasting: unsupported seasonal period %q", cfg.Period)
	}
	return &SeasonalForecaster{period: period}, nil
}

// Period returns the seasonal period.
func (f *SeasonalForecaster) Period() time.Duration { return f.period }

// Forecast fills the window with values from one period earlier.
func (f *SeasonalForecaster) Forecast(ctx context.Context, req Request) (timeseries.Series, error) {
	if err := ctx.Err(); err != nil {
		return timeseries.Series{}, err
	}
	n, res, err := req.steps()
	if err != nil {
		return timeseries.Series{}, err
	}
	last := lastValueBefore(req.History, req.Start)
	values := make([]float64, n)
	for i := range values {
		eventStart := req.Start.Add(time.Duration(i) * res)
		if idx := req.History.IndexAt(eventStart.Add(-f.period)); idx >= 0 {
			values[i] = req.History.Values[idx]
		} else {
			values[i] = last
		}
	}
	return timeseries.Series{Start: req.Start, Resolution: res, Values: values}, nil
}

var _ Forecaster = (*SeasonalForecaster)(nil)
