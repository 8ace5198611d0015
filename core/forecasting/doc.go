// Package forecasting predicts future sensor values from their history.
// Forecasts are plain series; callers persist them as beliefs so their
// provenance (source and belief time) survives alongside measurements.
package forecasting
