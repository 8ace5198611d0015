package metrics

import (
	"fmt"
	"testing"
	"time"
)

type recordingSink struct {
	ingestions int
	schedules  int
	forecasts  int
	jobs       int
	fail       bool
	healthy    bool
}

func (r *recordingSink) RecordIngestion(IngestionEvent) error {
	if r.fail {
		return fmt.Errorf("sink down")
	}
	r.ingestions++
	return nil
}

func (r *recordingSink) RecordScheduleResult(ScheduleResult) error {
	r.schedules++
	return nil
}

func (r *recordingSink) RecordForecastResult(ForecastResult) error {
	r.forecasts++
	return nil
}

func (r *recordingSink) RecordJob(JobUpdate) error {
	r.jobs++
	return nil
}

func (r *recordingSink) Healthy() bool { return r.healthy }

func TestMultiSinkForwardsToAll(t *testing.T) {
	a := &recordingSink{healthy: true}
	b := &recordingSink{healthy: true}
	m := NewMultiSink(a, b)

	if err := m.RecordIngestion(IngestionEvent{SensorID: "s1", Count: 4, Time: time.Now()}); err != nil {
		t.Fatalf("ingestion: %v", err)
	}
	if err := m.RecordScheduleResult(ScheduleResult{AssetID: "bat1"}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := m.RecordForecastResult(ForecastResult{SensorID: "s1"}); err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if err := m.RecordJob(JobUpdate{JobID: "j1", State: "done"}); err != nil {
		t.Fatalf("job: %v", err)
	}
	for _, s := range []*recordingSink{a, b} {
		if s.ingestions != 1 || s.schedules != 1 || s.forecasts != 1 || s.jobs != 1 {
			t.Fatalf("sink not reached: %+v", s)
		}
	}
}

func TestMultiSinkReturnsFirstError(t *testing.T) {
	m := NewMultiSink(&recordingSink{fail: true}, &recordingSink{})
	if err := m.RecordIngestion(IngestionEvent{}); err == nil {
		t.Fatalf("expected error from failing sink")
	}
}

func TestMultiSinkHealth(t *testing.T) {
	m := NewMultiSink(&recordingSink{healthy: true}, NopSink{})
	if !m.Healthy() {
		t.Fatalf("expected healthy")
	}
	m = NewMultiSink(&recordingSink{healthy: false})
	if m.Healthy() {
		t.Fatalf("expected unhealthy")
	}
}
