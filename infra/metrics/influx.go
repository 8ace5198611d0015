package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/FlexMeasures/flexmeasures-sub003/core/metrics"
	"github.com/FlexMeasures/flexmeasures-sub003/infra/logger"
)

// InfluxSink writes platform events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Healthy pings the InfluxDB instance.
func (s *InfluxSink) Healthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := s.client.Health(ctx)
	return err == nil && health.Status == "pass"
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

// RecordIngestion writes the ingestion batch as a line-protocol point.
func (s *InfluxSink) RecordIngestion(ev coremetrics.IngestionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("beliefs_ingested").
		AddTag("sensor_id", ev.SensorID).
		AddTag("source_id", ev.SourceID).
		AddField("count", ev.Count).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordScheduleResult persists a scheduling outcome.
func (s *InfluxSink) RecordScheduleResult(res coremetrics.ScheduleResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_computed").
		AddTag("asset_id", res.AssetID).
		AddTag("scheduler", res.Scheduler).
		AddTag("fallback", strconv.FormatBool(res.Fallback)).
		AddTag("job_id", res.JobID).
		AddField("cost_eur", round3(res.Cost)).
		AddField("compute_ms", round3(res.Duration.Seconds()*1000)).
		SetTime(res.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordForecastResult persists a forecasting outcome.
func (s *InfluxSink) RecordForecastResult(res coremetrics.ForecastResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("forecast_computed").
		AddTag("sensor_id", res.SensorID).
		AddTag("forecaster", res.Forecaster).
		AddField("horizon_hours", round3(res.Horizon.Hours())).
		AddField("count", res.Count).
		SetTime(res.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordJob persists a job state transition.
func (s *InfluxSink) RecordJob(ev coremetrics.JobUpdate) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("job_transition").
		AddTag("queue", ev.Queue).
		AddTag("state", ev.State).
		AddTag("job_id", ev.JobID).
		AddField("attempt", ev.Attempt).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
