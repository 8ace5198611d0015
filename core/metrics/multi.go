package metrics

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordIngestion forwards the record to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordIngestion(ev IngestionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordIngestion(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordScheduleResult forwards schedule outcomes.
func (m *MultiSink) RecordScheduleResult(res ScheduleResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordScheduleResult(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordForecastResult forwards forecast outcomes.
func (m *MultiSink) RecordForecastResult(res ForecastResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordForecastResult(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordJob forwards job transitions.
func (m *MultiSink) RecordJob(ev JobUpdate) error {
	for _, s := range m.Sinks {
		if err := s.RecordJob(ev); err != nil {
			return err
		}
	}
	return nil
}

// Healthy reports whether every health-aware sink is healthy.
func (m *MultiSink) Healthy() bool {
	for _, s := range m.Sinks {
		if hc, ok := s.(HealthChecker); ok && !hc.Healthy() {
			return false
		}
	}
	return true
}

var _ MetricsSink = (*MultiSink)(nil)
