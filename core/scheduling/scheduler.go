package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/core/factory"
	"github.com/FlexMeasures/flexmeasures-sub003/core/model"
	"github.com/FlexMeasures/flexmeasures-sub003/core/timeseries"
)

// ErrInfeasible indicates no schedule satisfies the asset's constraints.
var ErrInfeasible = errors.New("scheduling: infeasible")

// Request carries everything a scheduler needs to plan one asset over a
// window. Prices are resampled to the requested resolution before solving
// when their native resolution differs.
type Request struct {
	Asset      model.Asset
	Start      time.Time
	End        time.Time
	Resolution time.Duration
	// Prices holds consumption prices in EUR/MWh over at least [Start, End).
	Prices timeseries.Series
	// InflexibleLoad optionally carries the site's base consumption in kW.
	// It is netted into the schedule's cost; the flexible power itself stays
	// bound by the asset's own limits.
	InflexibleLoad timeseries.Series
	// SoCAtStart overrides the asset's configured start state when positive.
	SoCAtStart float64
}

// Schedule is a planned power series for one asset. Power follows the
// consumption convention: positive charges or consumes, negative discharges
// or produces.
type Schedule struct {
	AssetID    string        `json:"asset_id"`
	Start      time.Time     `json:"start"`
	Resolution time.Duration `json:"resolution"`
	PowerKW    []float64     `json:"power_kw"`
	// SoC holds the state of charge after each step, for storage assets.
	SoC []float64 `json:"soc,omitempty"`
	// Cost is the total energy cost in EUR over the window.
	Cost      float64 `json:"cost"`
	Scheduler string  `json:"scheduler"`
	// Fallback marks schedules produced by the fallback heuristic after the
	// primary solver failed.
	Fallback bool `json:"fallback,omitempty"`
}

// Series returns the planned power as a time series.
func (s Schedule) Series() timeseries.Series {
	return timeseries.Series{Start: s.Start, Resolution: s.Resolution, Values: s.PowerKW}
}

// Scheduler computes a planned time series for a flexible asset given
// constraints and context. Implementations are registered by name and may be
// supplied by plugins.
type Scheduler interface {
	Compute(ctx context.Context, req Request) (*Schedule, error)
}

var registry = factory.NewRegistry[Scheduler]()

// Register adds a scheduler factory identified by name.
func Register(name string, f factory.Factory[Scheduler]) error {
	return registry.Register(name, f)
}

// New creates a Scheduler from the provided configuration.
func New(cfg factory.ModuleConfig) (Scheduler, error) {
	return registry.Create(cfg)
}

// Registered returns the names of all known schedulers.
func Registered() []string {
	return registry.Names()
}

// ForKind returns the default scheduler name for an asset kind.
func ForKind(k model.AssetKind) string {
	if k == model.AssetProcess {
		return "process"
	}
	return "storage"
}

// steps validates the request window and returns the number of slots and the
// prices at the scheduling resolution.
func (r Request) steps() (int, timeseries.Series, error) {
	if r.Resolution <= 0 {
		return 0, timeseries.Series{}, fmt.Errorf("scheduling: resolution must be positive")
	}
	window := r.End.Sub(r.Start)
	if window <= 0 {
		return 0, timeseries.Series{}, fmt.Errorf("scheduling: end must be after start")
	}
	if window%r.Resolution != 0 {
		return 0, timeseries.Series{}, fmt.Errorf("scheduling: window %v is not a multiple of resolution %v", window, r.Resolution)
	}
	n := int(window / r.Resolution)

	prices := r.Prices
	if prices.Resolution != r.Resolution {
		var err error
		prices, err = prices.Resample(r.Resolution)
		if err != nil {
			return 0, timeseries.Series{}, fmt.Errorf("scheduling: resample prices: %w", err)
		}
	}
	prices = prices.Slice(r.Start, r.End)
	if prices.Len() < n || !prices.Start.Equal(r.Start) {
		return 0, timeseries.Series{}, fmt.Errorf("scheduling: prices do not cover window [%v, %v)", r.Start, r.End)
	}
	return n, prices, nil
}

// loadValues returns the inflexible load at the scheduling resolution, or
// nil when no load series is set.
func (r Request) loadValues(n int) ([]float64, error) {
	if r.InflexibleLoad.Len() == 0 {
		return nil, nil
	}
	load := r.InflexibleLoad
	if load.Resolution != r.Resolution {
		var err error
		load, err = load.Resample(r.Resolution)
		if err != nil {
			return nil, fmt.Errorf("scheduling: resample inflexible load: %w", err)
		}
	}
	load = load.Slice(r.Start, r.End)
	if load.Len() < n || !load.Start.Equal(r.Start) {
		return nil, fmt.Errorf("scheduling: inflexible load does not cover window [%v, %v)", r.Start, r.End)
	}
	return load.Values[:n], nil
}

// socAtStart resolves the effective initial state of charge.
func (r Request) socAtStart() float64 {
	if r.SoCAtStart > 0 {
		return r.SoCAtStart
	}
	return r.Asset.SoCAtStart
}

func init() {
	_ = Register("storage", func(conf map[string]any) (Scheduler, error) {
		var c StorageConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewStorageScheduler(c), nil
	})
	_ = Register("greedy", func(map[string]any) (Scheduler, error) {
		return &GreedyStorageScheduler{}, nil
	})
	_ = Register("process", func(conf map[string]any) (Scheduler, error) {
		var c struct {
			Policy string `json:"policy"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		p, err := ParseProcessPolicy(c.Policy)
		if err != nil {
			return nil, err
		}
		return &ProcessScheduler{Policy: p}, nil
	})
}
