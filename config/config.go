package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/FlexMeasures/flexmeasures-sub003/auth"
	"github.com/FlexMeasures/flexmeasures-sub003/core/factory"
	"github.com/FlexMeasures/flexmeasures-sub003/core/jobs"
	"github.com/FlexMeasures/flexmeasures-sub003/core/metrics"
	"github.com/FlexMeasures/flexmeasures-sub003/infra/mqtt"
)

// Config is the root service configuration, loaded from a JSON or YAML file
// with FM_ environment overrides.
type Config struct {
	API         APIConfig            `json:"api"`
	Store       factory.ModuleConfig `json:"store"`
	MQTT        mqtt.Config          `json:"mqtt"`
	Metrics     metrics.Config       `json:"metrics"`
	Prometheus  PrometheusConfig     `json:"prometheus"`
	Jobs        JobsConfig           `json:"jobs"`
	Scheduling  SchedulingConfig     `json:"scheduling"`
	Forecasting ForecastingConfig    `json:"forecasting"`
	Prices      PricesConfig         `json:"prices"`
}

// APIConfig configures the HTTP API server.
type APIConfig struct {
	Addr string `json:"addr"`
}

// PrometheusConfig configures the metrics endpoint. An empty address
// disables the server.
type PrometheusConfig struct {
	Addr string `json:"addr"`
}

// WorkerSettings tunes one worker pool. Durations are expressed in plain
// units so they survive the JSON/YAML round trip.
type WorkerSettings struct {
	Concurrency int `json:"concurrency"`
	JobTimeoutS int `json:"job_timeout_s"`
	MaxAttempts int `json:"max_attempts"`
	BackoffMS   int `json:"backoff_ms"`
}

// ToWorkerConfig converts the settings for the named queue.
func (w WorkerSettings) ToWorkerConfig(queue string) jobs.WorkerConfig {
	return jobs.WorkerConfig{
		Queue:       queue,
		Concurrency: w.Concurrency,
		JobTimeout:  time.Duration(w.JobTimeoutS) * time.Second,
		MaxAttempts: w.MaxAttempts,
		Backoff:     time.Duration(w.BackoffMS) * time.Millisecond,
	}
}

// JobsConfig configures the in-process job queue.
type JobsConfig struct {
	QueueBuffer int            `json:"queue_buffer"`
	Scheduling  WorkerSettings `json:"scheduling"`
	Forecasting WorkerSettings `json:"forecasting"`
}

// SchedulingConfig sets the planning defaults used by triggered jobs.
type SchedulingConfig struct {
	// Scheduler overrides the per-kind default when set.
	Scheduler         string  `json:"scheduler"`
	ResolutionMinutes int     `json:"resolution_minutes"`
	HorizonHours      int     `json:"horizon_hours"`
	PriceSensorID     string  `json:"price_sensor_id"`
	SoCAtStart        float64 `json:"soc_at_start"`
	AckTimeoutSeconds int     `json:"ack_timeout_seconds"`
}

// Resolution returns the planning slot duration.
func (c SchedulingConfig) Resolution() time.Duration {
	return time.Duration(c.ResolutionMinutes) * time.Minute
}

// Horizon returns the planning window length.
func (c SchedulingConfig) Horizon() time.Duration {
	return time.Duration(c.HorizonHours) * time.Hour
}

// ForecastingConfig selects the forecaster and its window.
type ForecastingConfig struct {
	Forecaster   factory.ModuleConfig `json:"forecaster"`
	HorizonHours int                  `json:"horizon_hours"`
	// IntervalMinutes spaces the periodic forecasting runs. Zero disables
	// them; forecasts can still be triggered through jobs.
	IntervalMinutes int `json:"interval_minutes"`
	// SourceID tags forecast beliefs. Defaults to "forecaster".
	SourceID string `json:"source_id"`
}

// Horizon returns the forecast window length.
func (c ForecastingConfig) Horizon() time.Duration {
	return time.Duration(c.HorizonHours) * time.Hour
}

// Interval returns the spacing of periodic forecasting runs.
func (c ForecastingConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// PricesConfig connects a day-ahead market feed to the price sensor. An
// empty URL disables the importer.
type PricesConfig struct {
	URL string `json:"url"`
	// SensorID receives the imported prices. Falls back to the scheduling
	// price sensor when empty.
	SensorID        string    `json:"sensor_id"`
	SourceID        string    `json:"source_id"`
	Auth            auth.Conf `json:"auth"`
	FetchHours      int       `json:"fetch_hours"`
	IntervalMinutes int       `json:"interval_minutes"`
}

// Window returns how far ahead prices are fetched.
func (c PricesConfig) Window() time.Duration {
	return time.Duration(c.FetchHours) * time.Hour
}

// Interval returns the spacing of import runs.
func (c PricesConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if c.Jobs.QueueBuffer == 0 {
		c.Jobs.QueueBuffer = 64
	}
	if c.Scheduling.ResolutionMinutes == 0 {
		c.Scheduling.ResolutionMinutes = 15
	}
	if c.Scheduling.HorizonHours == 0 {
		c.Scheduling.HorizonHours = 24
	}
	if c.Scheduling.AckTimeoutSeconds == 0 {
		c.Scheduling.AckTimeoutSeconds = 5
	}
	if c.Forecasting.HorizonHours == 0 {
		c.Forecasting.HorizonHours = 24
	}
	if c.Forecasting.SourceID == "" {
		c.Forecasting.SourceID = "forecaster"
	}
	if c.MQTT.SourceID == "" {
		c.MQTT.SourceID = "telemetry"
	}
	if c.Prices.SourceID == "" {
		c.Prices.SourceID = "market"
	}
	if c.Prices.SensorID == "" {
		c.Prices.SensorID = c.Scheduling.PriceSensorID
	}
	if c.Prices.FetchHours == 0 {
		c.Prices.FetchHours = 48
	}
	if c.Prices.IntervalMinutes == 0 {
		c.Prices.IntervalMinutes = 360
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Scheduling.ResolutionMinutes <= 0 {
		return fmt.Errorf("scheduling.resolution_minutes must be positive")
	}
	if c.Scheduling.HorizonHours <= 0 {
		return fmt.Errorf("scheduling.horizon_hours must be positive")
	}
	if c.Scheduling.Horizon()%c.Scheduling.Resolution() != 0 {
		return fmt.Errorf("scheduling horizon must be a multiple of the resolution")
	}
	if c.Forecasting.HorizonHours <= 0 {
		return fmt.Errorf("forecasting.horizon_hours must be positive")
	}
	if c.Prices.URL != "" && c.Prices.SensorID == "" {
		return fmt.Errorf("prices.sensor_id is required when a price feed is configured")
	}
	return nil
}

// Load reads the configuration file, applies FM_ environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides: FM_API__ADDR=:9090 sets api.addr. The
	// callback yields dotted paths, so the provider splits on ".".
	if err := k.Load(env.Provider("FM_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "fm_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
