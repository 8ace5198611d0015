package model

import (
	"fmt"
	"time"
)

// SourceKind classifies where a belief originated.
type SourceKind int

const (
	SourceMeasurement SourceKind = iota
	SourceForecaster
	SourceScheduler
	SourceUser
	SourcePlugin
)

// String returns a human-readable representation of the source kind.
func (k SourceKind) String() string {
	switch k {
	case SourceMeasurement:
		return "measurement"
	case SourceForecaster:
		return "forecaster"
	case SourceScheduler:
		return "scheduler"
	case SourceUser:
		return "user"
	case SourcePlugin:
		return "plugin"
	default:
		return "unknown"
	}
}

// Source identifies who (or what) recorded a belief.
type Source struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Kind SourceKind `json:"kind"`
}

// Belief is a timestamped, sourced statement about a sensor value: the source
// believed, at BeliefTime, that the sensor's value over the event starting at
// EventStart is Value.
type Belief struct {
	SensorID   string    `json:"sensor_id"`
	EventStart time.Time `json:"event_start"`
	BeliefTime time.Time `json:"belief_time"`
	SourceID   string    `json:"source_id"`
	Value      float64   `json:"value"`
}

// Horizon is the lead time between forming the belief and the event it is
// about. A positive horizon marks a forecast (ex-ante); zero or negative
// marks a measurement or other after-the-fact knowledge (ex-post).
func (b Belief) Horizon() time.Duration {
	return b.EventStart.Sub(b.BeliefTime)
}

// IsForecast reports whether the belief was formed before the event started.
func (b Belief) IsForecast() bool {
	return b.Horizon() > 0
}

// Validate checks the belief is well-formed.
func (b Belief) Validate() error {
	if b.SensorID == "" {
		return fmt.Errorf("belief: sensor id is required")
	}
	if b.EventStart.IsZero() {
		return fmt.Errorf("belief: event start is required")
	}
	if b.BeliefTime.IsZero() {
		return fmt.Errorf("belief: belief time is required")
	}
	if b.SourceID == "" {
		return fmt.Errorf("belief: source id is required")
	}
	return nil
}
