package app

import (
	"context"
	"fmt"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/api"
	"github.com/FlexMeasures/flexmeasures-sub003/auth"
	"github.com/FlexMeasures/flexmeasures-sub003/config"
	"github.com/FlexMeasures/flexmeasures-sub003/connectors"
	"github.com/FlexMeasures/flexmeasures-sub003/connectors/dayahead"
	"github.com/FlexMeasures/flexmeasures-sub003/core/events"
	"github.com/FlexMeasures/flexmeasures-sub003/core/factory"
	"github.com/FlexMeasures/flexmeasures-sub003/core/forecasting"
	"github.com/FlexMeasures/flexmeasures-sub003/core/jobs"
	coremetrics "github.com/FlexMeasures/flexmeasures-sub003/core/metrics"
	"github.com/FlexMeasures/flexmeasures-sub003/core/model"
	coremqtt "github.com/FlexMeasures/flexmeasures-sub003/core/mqtt"
	"github.com/FlexMeasures/flexmeasures-sub003/core/scheduling"
	"github.com/FlexMeasures/flexmeasures-sub003/core/store"
	"github.com/FlexMeasures/flexmeasures-sub003/core/timeseries"
	"github.com/FlexMeasures/flexmeasures-sub003/infra/logger"
	inframetrics "github.com/FlexMeasures/flexmeasures-sub003/infra/metrics"
	inframqtt "github.com/FlexMeasures/flexmeasures-sub003/infra/mqtt"
	"github.com/FlexMeasures/flexmeasures-sub003/internal/eventbus"

	// Register built-in schedulers, forecasters, stores and sinks.
	_ "github.com/FlexMeasures/flexmeasures-sub003/app/plugins"
)

// schedulerSourceID tags beliefs written back from computed schedules.
const schedulerSourceID = "scheduler"

// Service wires the store, job queue, schedulers, forecasters, MQTT layer
// and HTTP API from the configuration.
type Service struct {
	cfg        *config.Config
	store      store.Store
	queue      *jobs.Queue
	bus        eventbus.EventBus
	sink       coremetrics.MetricsSink
	forecaster forecasting.Forecaster
	publisher  coremqtt.Publisher
	ingestor   *inframqtt.Ingestor
	prices     *connectors.Importer
	apiServer  *api.Server
	log        logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	log := logger.New("service")

	st, err := store.New(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	forecaster, err := forecasting.New(cfg.Forecasting.Forecaster)
	if err != nil {
		return nil, fmt.Errorf("forecaster: %w", err)
	}

	svc := &Service{
		cfg:        cfg,
		store:      st,
		queue:      jobs.NewQueue(cfg.Jobs.QueueBuffer),
		bus:        eventbus.New(),
		sink:       sink,
		forecaster: forecaster,
		log:        log,
	}

	if cfg.MQTT.Broker != "" {
		client, err := inframqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.publisher = client
		svc.ingestor = inframqtt.NewIngestor(client, st, svc.bus, cfg.MQTT.SourceID)
	}

	if cfg.Prices.URL != "" {
		var cred *auth.ClientCred
		if cfg.Prices.Auth.TokenURL != "" {
			cred = auth.NewClientCred(cfg.Prices.Auth)
		}
		feed := dayahead.New(cfg.Prices.URL, cred)
		svc.prices = connectors.NewImporter(feed, st, svc.bus,
			cfg.Prices.SensorID, cfg.Prices.SourceID, cfg.Prices.Window(), logger.New("price-import"))
	}

	if err := svc.registerSources(context.Background()); err != nil {
		return nil, err
	}
	svc.apiServer = api.NewServer(st, svc, svc.bus, log)
	return svc, nil
}

// registerSources upserts the well-known belief sources.
func (s *Service) registerSources(ctx context.Context) error {
	sources := []model.Source{
		{ID: s.cfg.MQTT.SourceID, Name: "MQTT telemetry", Kind: model.SourceMeasurement},
		{ID: s.cfg.Forecasting.SourceID, Name: "forecaster", Kind: model.SourceForecaster},
		{ID: schedulerSourceID, Name: "scheduler", Kind: model.SourceScheduler},
	}
	if s.prices != nil {
		sources = append(sources, model.Source{ID: s.cfg.Prices.SourceID, Name: "day-ahead market", Kind: model.SourceMeasurement})
	}
	for _, src := range sources {
		if err := s.store.AddSource(ctx, src); err != nil {
			return fmt.Errorf("register source %s: %w", src.ID, err)
		}
	}
	return nil
}

// Store exposes the belief store, mainly for seeding in tests and commands.
func (s *Service) Store() store.Store { return s.store }

// Run starts the workers, collectors and servers and blocks until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	schedWorker := jobs.NewWorker(s.queue, s.cfg.Jobs.Scheduling.ToWorkerConfig(jobs.QueueScheduling), s.bus, s.log)
	fcWorker := jobs.NewWorker(s.queue, s.cfg.Jobs.Forecasting.ToWorkerConfig(jobs.QueueForecasting), s.bus, s.log)
	go schedWorker.Run(ctx)
	go fcWorker.Run(ctx)

	inframetrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.cfg.Prometheus.Addr != "" {
		go func() {
			if err := inframetrics.StartPromServer(ctx, s.cfg.Prometheus.Addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.ingestor != nil {
		if err := s.ingestor.Start(ctx); err != nil {
			return fmt.Errorf("mqtt ingest: %w", err)
		}
	}
	if interval := s.cfg.Forecasting.Interval(); interval > 0 {
		go s.runForecastLoop(ctx, interval)
	}
	if s.prices != nil {
		go s.prices.Run(ctx, s.cfg.Prices.Interval())
	}
	go func() {
		if err := s.apiServer.Start(ctx, s.cfg.API.Addr); err != nil {
			s.log.Errorf("api server: %v", err)
		}
	}()

	s.log.Infof("service running: api on %s", s.cfg.API.Addr)
	<-ctx.Done()
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if p, ok := s.publisher.(*inframqtt.PahoClient); ok && p != nil {
		p.Disconnect()
	}
	s.bus.Close()
	return s.store.Close()
}

// Trigger enqueues a scheduling job for the asset and returns the job ID.
func (s *Service) Trigger(_ context.Context, assetID string) (string, error) {
	return s.queue.Enqueue(jobs.QueueScheduling, func(jobCtx context.Context) (any, error) {
		return s.computeSchedule(jobCtx, s.planDefaults(assetID))
	})
}

// ComputeNow plans the asset synchronously, bypassing the job queue. Used by
// the one-shot CLI command.
func (s *Service) ComputeNow(ctx context.Context, assetID string) (*scheduling.Schedule, error) {
	return s.computeSchedule(ctx, s.planDefaults(assetID))
}

// ComputePlan plans synchronously with a standalone planning config, filling
// unset fields from the service defaults. Used by `schedule --plan`.
func (s *Service) ComputePlan(ctx context.Context, plan scheduling.Config) (*scheduling.Schedule, error) {
	defaults := s.planDefaults(plan.AssetID)
	if plan.Scheduler == "" {
		plan.Scheduler = defaults.Scheduler
	}
	if plan.ResolutionMinutes == 0 {
		plan.ResolutionMinutes = defaults.ResolutionMinutes
	}
	if plan.HorizonHours == 0 {
		plan.HorizonHours = defaults.HorizonHours
	}
	if plan.SoCAtStart == 0 {
		plan.SoCAtStart = defaults.SoCAtStart
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("plan config: %w", err)
	}
	return s.computeSchedule(ctx, plan)
}

// planDefaults builds the planning parameters from the service config.
func (s *Service) planDefaults(assetID string) scheduling.Config {
	return scheduling.Config{
		AssetID:           assetID,
		Scheduler:         s.cfg.Scheduling.Scheduler,
		ResolutionMinutes: s.cfg.Scheduling.ResolutionMinutes,
		HorizonHours:      s.cfg.Scheduling.HorizonHours,
		SoCAtStart:        s.cfg.Scheduling.SoCAtStart,
	}
}

// Result returns the job for API polling.
func (s *Service) Result(jobID string) (jobs.Job, error) {
	return s.queue.Job(jobID)
}

// TriggerForecast enqueues a forecasting job for the sensor.
func (s *Service) TriggerForecast(_ context.Context, sensorID string) (string, error) {
	return s.queue.Enqueue(jobs.QueueForecasting, func(jobCtx context.Context) (any, error) {
		return s.computeForecast(jobCtx, sensorID)
	})
}

// computeSchedule plans the asset over the plan's horizon, persists the
// result as beliefs and pushes it to the asset over MQTT when connected.
// When run by a worker the job's ID is taken from the context.
func (s *Service) computeSchedule(ctx context.Context, plan scheduling.Config) (*scheduling.Schedule, error) {
	asset, err := s.store.GetAsset(ctx, plan.AssetID)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", plan.AssetID, err)
	}
	resolution := plan.Resolution()
	start := time.Now().Truncate(resolution)
	end := start.Add(plan.Horizon())

	prices, err := s.priceSeries(ctx, start, end)
	if err != nil {
		return nil, err
	}

	name := plan.Scheduler
	if name == "" {
		name = scheduling.ForKind(asset.Kind)
	}
	sch, err := scheduling.New(factory.ModuleConfig{Type: name})
	if err != nil {
		return nil, fmt.Errorf("scheduler %s: %w", name, err)
	}

	t0 := time.Now()
	sched, err := sch.Compute(ctx, scheduling.Request{
		Asset:      asset,
		Start:      start,
		End:        end,
		Resolution: resolution,
		Prices:     prices,
		SoCAtStart: plan.SoCAtStart,
	})
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(t0)

	if err := s.persistSchedule(ctx, asset, sched); err != nil {
		s.log.Warnf("persist schedule for %s: %v", asset.ID, err)
	}
	s.bus.Publish(events.ScheduleComputedEvent{
		AssetID:   asset.ID,
		Scheduler: sched.Scheduler,
		JobID:     jobs.JobIDFrom(ctx),
		Start:     sched.Start,
		Duration:  elapsed,
		Cost:      sched.Cost,
		Fallback:  sched.Fallback,
	})
	s.pushSchedule(asset.ID, sched)
	return sched, nil
}

// priceSeries assembles the consumption price series over the window.
func (s *Service) priceSeries(ctx context.Context, start, end time.Time) (timeseries.Series, error) {
	id := s.cfg.Scheduling.PriceSensorID
	if id == "" {
		return timeseries.Series{}, fmt.Errorf("scheduling.price_sensor_id is not configured")
	}
	sensor, err := s.store.GetSensor(ctx, id)
	if err != nil {
		return timeseries.Series{}, fmt.Errorf("price sensor %s: %w", id, err)
	}
	beliefs, err := s.store.Search(ctx, store.SearchParams{
		SensorID:       sensor.ID,
		EventStart:     start,
		EventEnd:       end,
		MostRecentOnly: true,
	})
	if err != nil {
		return timeseries.Series{}, err
	}
	set := timeseries.BeliefSet{SensorID: sensor.ID, Resolution: sensor.EventResolution}
	set.Add(beliefs...)
	series, known := set.Dense(start, end, timeseries.Selection{})
	covered := false
	for _, k := range known {
		if k {
			covered = true
			break
		}
	}
	if !covered {
		return timeseries.Series{}, fmt.Errorf("no price data for [%v, %v)", start, end)
	}
	return series, nil
}

// persistSchedule writes the plan as beliefs on the asset's power sensor.
func (s *Service) persistSchedule(ctx context.Context, asset model.Asset, sched *scheduling.Schedule) error {
	sensor, err := s.powerSensor(ctx, asset)
	if err != nil {
		return err
	}
	series := sched.Series()
	if sensor.EventResolution != series.Resolution {
		series, err = series.Resample(sensor.EventResolution)
		if err != nil {
			return err
		}
	}
	beliefs := forecasting.Beliefs(series, sensor.ID, schedulerSourceID, time.Now())
	if err := s.store.AddBeliefs(ctx, beliefs); err != nil {
		return err
	}
	s.bus.Publish(events.BeliefsAddedEvent{
		SensorID: sensor.ID,
		SourceID: schedulerSourceID,
		Count:    len(beliefs),
		Time:     time.Now(),
	})
	return nil
}

// powerSensor finds the asset's power sensor, preferring the explicit link.
func (s *Service) powerSensor(ctx context.Context, asset model.Asset) (model.Sensor, error) {
	if asset.SensorID != "" {
		return s.store.GetSensor(ctx, asset.SensorID)
	}
	sensors, err := s.store.ListSensors(ctx)
	if err != nil {
		return model.Sensor{}, err
	}
	for _, sensor := range sensors {
		if sensor.AssetID == asset.ID {
			return sensor, nil
		}
	}
	return model.Sensor{}, fmt.Errorf("asset %s has no power sensor: %w", asset.ID, store.ErrNotFound)
}

// pushSchedule publishes the plan over MQTT and waits for the asset's ack.
func (s *Service) pushSchedule(assetID string, sched *scheduling.Schedule) {
	if s.publisher == nil {
		return
	}
	cmdID, err := s.publisher.SendSchedule(assetID, *sched)
	if err != nil {
		s.log.Errorf("send schedule to %s: %v", assetID, err)
		return
	}
	timeout := time.Duration(s.cfg.Scheduling.AckTimeoutSeconds) * time.Second
	if ok, err := s.publisher.WaitForAck(cmdID, timeout); err != nil || !ok {
		s.log.Warnf("schedule %s to %s not acknowledged: %v", cmdID, assetID, err)
	}
}

// computeForecast forecasts the sensor over the configured horizon and
// writes the result back as ex-ante beliefs.
func (s *Service) computeForecast(ctx context.Context, sensorID string) (int, error) {
	sensor, err := s.store.GetSensor(ctx, sensorID)
	if err != nil {
		return 0, fmt.Errorf("sensor %s: %w", sensorID, err)
	}
	horizon := s.cfg.Forecasting.Horizon()
	now := time.Now()
	start := now.Truncate(sensor.EventResolution).Add(sensor.EventResolution)

	// History reaches back far enough for the weekly seasonal period.
	histStart := start.Add(-8 * 24 * time.Hour)
	beliefs, err := s.store.Search(ctx, store.SearchParams{
		SensorID:       sensor.ID,
		EventStart:     histStart,
		EventEnd:       start,
		MostRecentOnly: true,
	})
	if err != nil {
		return 0, err
	}
	if len(beliefs) == 0 {
		return 0, forecasting.ErrNoHistory
	}
	set := timeseries.BeliefSet{SensorID: sensor.ID, Resolution: sensor.EventResolution}
	set.Add(beliefs...)
	history, _ := set.Select(histStart, start, timeseries.Selection{})

	forecast, err := s.forecaster.Forecast(ctx, forecasting.Request{
		Sensor:  sensor,
		History: history,
		Start:   start,
		Horizon: horizon,
	})
	if err != nil {
		return 0, err
	}
	out := forecasting.Beliefs(forecast, sensor.ID, s.cfg.Forecasting.SourceID, now)
	if err := s.store.AddBeliefs(ctx, out); err != nil {
		return 0, err
	}
	name := s.cfg.Forecasting.Forecaster.Type
	if name == "" {
		name = "persistence"
	}
	s.bus.Publish(events.ForecastComputedEvent{
		SensorID:   sensor.ID,
		Forecaster: name,
		Horizon:    horizon,
		Count:      len(out),
	})
	return len(out), nil
}

// runForecastLoop periodically refreshes forecasts for every sensor.
func (s *Service) runForecastLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sensors, err := s.store.ListSensors(ctx)
			if err != nil {
				s.log.Errorf("list sensors: %v", err)
				continue
			}
			for _, sensor := range sensors {
				if _, err := s.TriggerForecast(ctx, sensor.ID); err != nil {
					s.log.Warnf("forecast for %s not enqueued: %v", sensor.ID, err)
				}
			}
		}
	}
}

var _ api.ScheduleService = (*Service)(nil)
