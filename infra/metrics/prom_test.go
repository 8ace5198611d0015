package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/FlexMeasures/flexmeasures-sub003/core/events"
	coremetrics "github.com/FlexMeasures/flexmeasures-sub003/core/metrics"
	"github.com/FlexMeasures/flexmeasures-sub003/internal/eventbus"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestPromSinkRecordsIngestion(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ev := coremetrics.IngestionEvent{SensorID: "s1", SourceID: "src1", Count: 12, Time: time.Now()}
	if err := sink.RecordIngestion(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	fam := gather(t, reg, "beliefs_ingested_total")
	if fam == nil || len(fam.Metric) != 1 {
		t.Fatalf("metric missing: %v", fam)
	}
	if got := fam.Metric[0].GetCounter().GetValue(); got != 12 {
		t.Fatalf("counter: got %v want 12", got)
	}
}

func TestPromSinkRecordsScheduleLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res := coremetrics.ScheduleResult{AssetID: "bat1", Scheduler: "storage", Duration: 200 * time.Millisecond}
	if err := sink.RecordScheduleResult(res); err != nil {
		t.Fatalf("record: %v", err)
	}
	fam := gather(t, reg, "schedule_compute_seconds")
	if fam == nil || len(fam.Metric) != 1 {
		t.Fatalf("metric missing: %v", fam)
	}
	if got := fam.Metric[0].GetHistogram().GetSampleCount(); got != 1 {
		t.Fatalf("sample count: got %v want 1", got)
	}
}

func TestPromSinkDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("first: %v", err)
	}
	// Re-registering on the same registry must reuse the existing collectors.
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("second: %v", err)
	}
}

func TestEventCollectorRecordsBusEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	bus := eventbus.New()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartEventCollector(ctx, bus, sink)
	time.Sleep(10 * time.Millisecond)

	bus.Publish(events.BeliefsAddedEvent{SensorID: "s1", SourceID: "src1", Count: 3, Time: time.Now()})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fam := gather(t, reg, "beliefs_ingested_total"); fam != nil && len(fam.Metric) == 1 {
			if fam.Metric[0].GetCounter().GetValue() == 3 {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ingestion metric never recorded")
}
