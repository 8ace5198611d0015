package model

import (
	"fmt"
	"time"
)

// Sensor records a time series at a native event resolution.
type Sensor struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Unit            string        `json:"unit"`             // e.g. "kW", "EUR/MWh", "°C"
	EventResolution time.Duration `json:"event_resolution"` // native recording resolution
	Timezone        string        `json:"timezone"`
	AssetID         string        `json:"asset_id,omitempty"`
}

// Validate checks that the sensor definition is sound.
func (s Sensor) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("sensor id is required")
	}
	if s.Unit == "" {
		return fmt.Errorf("sensor %s: unit is required", s.ID)
	}
	if s.EventResolution <= 0 {
		return fmt.Errorf("sensor %s: event resolution must be positive", s.ID)
	}
	return nil
}

// Location returns the sensor's time zone, defaulting to UTC when unset or
// unknown.
func (s Sensor) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
