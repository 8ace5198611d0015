// Package connectors pulls external market data into the belief store.
package connectors

import (
	"context"
	"time"
)

// PricePoint is one day-ahead market price observation in EUR/MWh.
type PricePoint struct {
	Start time.Time
	Price float64
}

// PriceSource fetches day-ahead prices covering [start, end).
type PriceSource interface {
	Prices(ctx context.Context, start, end time.Time) ([]PricePoint, error)
}
