package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/FlexMeasures/flexmeasures-sub003/core/metrics"
)

// PromSink records platform activity in Prometheus metrics.
type PromSink struct {
	ingested  *prometheus.CounterVec
	schedules *prometheus.HistogramVec
	forecasts *prometheus.CounterVec
	jobs      *prometheus.GaugeVec
}

// NewPromSink registers platform metrics on the default Prometheus
// registerer. The Prometheus server is started separately with
// StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ingested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "beliefs_ingested_total",
		Help: "Total number of beliefs written per sensor",
	}, []string{"sensor_id", "source_id"})
	schedules := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedule_compute_seconds",
		Help:    "Time spent computing a schedule",
		Buckets: prometheus.DefBuckets,
	}, []string{"asset_id", "scheduler", "fallback"})
	forecasts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_values_total",
		Help: "Total number of forecast values written per sensor",
	}, []string{"sensor_id", "forecaster"})
	jobs := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "jobs_in_state",
		Help: "Number of jobs per queue and state",
	}, []string{"queue", "state"})

	if err := reg.Register(ingested); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			ingested = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(schedules); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			schedules = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(forecasts); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			forecasts = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(jobs); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			jobs = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{ingested: ingested, schedules: schedules, forecasts: forecasts, jobs: jobs}, nil
}

// RecordIngestion increments the ingestion counter.
func (s *PromSink) RecordIngestion(ev coremetrics.IngestionEvent) error {
	s.ingested.WithLabelValues(ev.SensorID, ev.SourceID).Add(float64(ev.Count))
	return nil
}

// RecordScheduleResult observes the compute latency histogram.
func (s *PromSink) RecordScheduleResult(res coremetrics.ScheduleResult) error {
	s.schedules.WithLabelValues(res.AssetID, res.Scheduler, strconv.FormatBool(res.Fallback)).
		Observe(res.Duration.Seconds())
	return nil
}

// RecordForecastResult increments the forecast counter.
func (s *PromSink) RecordForecastResult(res coremetrics.ForecastResult) error {
	s.forecasts.WithLabelValues(res.SensorID, res.Forecaster).Add(float64(res.Count))
	return nil
}

// RecordJob moves the job gauge: the new state gains one, the previous
// state of a running or finished job loses one.
func (s *PromSink) RecordJob(ev coremetrics.JobUpdate) error {
	s.jobs.WithLabelValues(ev.Queue, ev.State).Inc()
	switch ev.State {
	case "running":
		s.jobs.WithLabelValues(ev.Queue, "pending").Dec()
	case "done", "failed":
		s.jobs.WithLabelValues(ev.Queue, "running").Dec()
	}
	return nil
}
