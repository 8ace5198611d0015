// Package scenarios runs YAML-defined scheduling cases end to end against
// the registered schedulers.
package scenarios

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FlexMeasures/flexmeasures-sub003/core/model"
)

type TargetDef struct {
	AfterMinutes int     `yaml:"after_minutes"`
	SoC          float64 `yaml:"soc"`
}

type AssetDef struct {
	ID                     string      `yaml:"id"`
	Kind                   string      `yaml:"kind"`
	BatteryKWh             float64     `yaml:"battery_kwh"`
	MaxPowerKW             float64     `yaml:"max_power_kw"`
	MinPowerKW             float64     `yaml:"min_power_kw"`
	SoCMin                 float64     `yaml:"soc_min"`
	SoCMax                 float64     `yaml:"soc_max"`
	SoCAtStart             float64     `yaml:"soc_at_start"`
	RoundTripEfficiency    float64     `yaml:"round_trip_efficiency"`
	Targets                []TargetDef `yaml:"targets,omitempty"`
	ProcessPowerKW         float64     `yaml:"process_power_kw"`
	ProcessDurationMinutes int         `yaml:"process_duration_minutes"`
	ProcessPolicy          string      `yaml:"process_policy,omitempty"`
}

// ToModel converts the definition, anchoring relative targets at start.
func (a AssetDef) ToModel(start time.Time) (model.Asset, error) {
	kind, err := model.ParseAssetKind(a.Kind)
	if err != nil {
		return model.Asset{}, err
	}
	asset := model.Asset{
		ID:                  a.ID,
		Kind:                kind,
		BatteryKWh:          a.BatteryKWh,
		MaxPowerKW:          a.MaxPowerKW,
		MinPowerKW:          a.MinPowerKW,
		SoCMin:              a.SoCMin,
		SoCMax:              a.SoCMax,
		SoCAtStart:          a.SoCAtStart,
		RoundTripEfficiency: a.RoundTripEfficiency,
		ProcessPowerKW:      a.ProcessPowerKW,
		ProcessDuration:     time.Duration(a.ProcessDurationMinutes) * time.Minute,
	}
	for _, tgt := range a.Targets {
		asset.Targets = append(asset.Targets, model.SoCTarget{
			Time: start.Add(time.Duration(tgt.AfterMinutes) * time.Minute),
			SoC:  tgt.SoC,
		})
	}
	return asset, nil
}

type Expected struct {
	Feasible bool `yaml:"feasible"`
	// MaxCost bounds the plan's energy cost in EUR. Ignored when zero.
	MaxCost float64 `yaml:"max_cost,omitempty"`
	// MinFinalSoC bounds the state of charge at the end of the window.
	// Ignored when zero.
	MinFinalSoC float64 `yaml:"min_final_soc,omitempty"`
	// RunMinutes asserts the total process runtime. Ignored when zero.
	RunMinutes int `yaml:"run_minutes,omitempty"`
}

type Scenario struct {
	Name              string    `yaml:"name"`
	Description       string    `yaml:"description,omitempty"`
	Asset             AssetDef  `yaml:"asset"`
	ResolutionMinutes int       `yaml:"resolution_minutes"`
	Prices            []float64 `yaml:"prices"`
	Expected          Expected  `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
