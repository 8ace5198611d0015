package forecasting

import (
	"context"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/core/timeseries"
)

// PersistenceForecaster repeats the last observed value over the whole
// forecast window. It is the baseline every other forecaster is measured
// against and the fallback when history is too short for anything smarter.
type PersistenceForecaster struct{}

// Forecast returns a flat series holding the most recent history value.
func (f *PersistenceForecaster) Forecast(ctx context.Context, req Request) (timeseries.Series, error) {
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
		values[i] = last
	}
	return timeseries.Series{Start: req.Start, Resolution: res, Values: values}, nil
}

// lastValueBefore returns the most recent history value whose event starts
// before t, or the final value when the whole history precedes t.
func lastValueBefore(h timeseries.Series, t time.Time) float64 {
	idx := h.Len() - 1
	if i := h.IndexAt(t); i > 0 {
		idx = i - 1
	} else if i == 0 {
		idx = 0
	}
	return h.Values[idx]
}

var _ Forecaster = (*PersistenceForecaster)(nil)
