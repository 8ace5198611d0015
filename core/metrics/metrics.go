package metrics

import "time"

// IngestionEvent captures a batch of beliefs written for a sensor.
type IngestionEvent struct {
	SensorID string
	SourceID string
	Count    int
	Time     time.Time
}

// ScheduleResult captures the outcome of one scheduling run.
type ScheduleResult struct {
	AssetID   string
	Scheduler string
	JobID     string
	Start     time.Time
	// Duration is the solver wall-clock time.
	Duration time.Duration
	Cost     float64
	Fallback bool
	Time     time.Time
}

// ForecastResult captures one forecasting run and its written beliefs.
type ForecastResult struct {
	SensorID   string
	Forecaster string
	Horizon    time.Duration
	Count      int
	Time       time.Time
}

// JobUpdate captures a job state transition.
type JobUpdate struct {
	JobID   string
	Queue   string
	State   string
	Attempt int
	Time    time.Time
}

// MetricsSink records platform activity for observability purposes.
type MetricsSink interface {
	RecordIngestion(ev IngestionEvent) error
	RecordScheduleResult(res ScheduleResult) error
	RecordForecastResult(res ForecastResult) error
	RecordJob(ev JobUpdate) error
}

// HealthChecker is implemented by sinks backed by a remote system.
type HealthChecker interface {
	Healthy() bool
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordIngestion(IngestionEvent) error      { return nil }
func (NopSink) RecordScheduleResult(ScheduleResult) error { return nil }
func (NopSink) RecordForecastResult(ForecastResult) error { return nil }
func (NopSink) RecordJob(JobUpdate) error                 { return nil }
