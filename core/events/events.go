package events

import (
	"time"
)

// BeliefsAddedEvent is published when new beliefs are recorded for a sensor.
type BeliefsAddedEvent struct {
	SensorID string
	SourceID string
	Count    int
	Time     time.Time
}

// JobEvent is published on every job state transition.
// State is one of "pending", "running", "done", "failed".
type JobEvent struct {
	JobID   string
	Queue   string
	State   string
	Attempt int
	Err     error
}

// ScheduleComputedEvent is published when a scheduler finishes a plan.
type ScheduleComputedEvent struct {
	AssetID   string
	Scheduler string
	JobID     string
	Start     time.Time
	Duration  time.Duration
	Cost      float64
	Fallback  bool
}

// ForecastComputedEvent is published when a forecaster writes new beliefs.
type ForecastComputedEvent struct {
	SensorID   string
	Forecaster string
	Horizon    time.Duration
	Count      int
}
