package model

import (
	"fmt"
	"math"
	"time"
)

// AssetKind identifies the flexibility model that applies to an asset.
type AssetKind int

const (
	AssetBattery AssetKind = iota
	AssetEV
	AssetHeatPump
	AssetProcess
)

// String returns a human-readable representation of the asset kind.
func (k AssetKind) String() string {
	switch k {
	case AssetBattery:
		return "battery"
	case AssetEV:
		return "ev"
	case AssetHeatPump:
		return "heatpump"
	case AssetProcess:
		return "process"
	default:
		return "unknown"
	}
}

// ParseAssetKind converts a configuration string to an AssetKind.
func ParseAssetKind(s string) (AssetKind, error) {
	switch s {
	case "battery":
		return AssetBattery, nil
	case "ev":
		return AssetEV, nil
	case "heatpump":
		return AssetHeatPump, nil
	case "process":
		return AssetProcess, nil
	default:
		return 0, fmt.Errorf("unknown asset kind %q", s)
	}
}

// SoCTarget requests a minimum state of charge at a given time, e.g. an EV
// that must be at 80%% before departure.
type SoCTarget struct {
	Time time.Time `json:"time"`
	SoC  float64   `json:"soc"`
}

// Asset is a flexible energy asset whose consumption or production can be
// scheduled. Storage-like assets (battery, EV, heat pump buffer) use the SoC
// fields; process assets use the Process fields.
type Asset struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Kind     AssetKind         `json:"kind"`
	SensorID string            `json:"sensor_id"` // power sensor schedules are stored on
	Metadata map[string]string `json:"metadata,omitempty"`

	// Storage flexibility model.
	BatteryKWh          float64     `json:"battery_kwh"`
	MaxPowerKW          float64     `json:"max_power_kw"` // max charge power
	MinPowerKW          float64     `json:"min_power_kw"` // max discharge power (stored positive)
	SoCMin              float64     `json:"soc_min"`
	SoCMax              float64     `json:"soc_max"`
	SoCAtStart          float64     `json:"soc_at_start"`
	RoundTripEfficiency float64     `json:"round_trip_efficiency"`
	Targets             []SoCTarget `json:"targets,omitempty"`

	// Process flexibility model.
	ProcessPowerKW  float64       `json:"process_power_kw"`
	ProcessDuration time.Duration `json:"process_duration"`
}

// Validate checks that the asset configuration is sound for its kind.
func (a Asset) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("asset id is required")
	}
	switch a.Kind {
	case AssetBattery, AssetEV, AssetHeatPump:
		if a.BatteryKWh <= 0 {
			return fmt.Errorf("asset %s: storage capacity must be positive", a.ID)
		}
		if a.MaxPowerKW <= 0 {
			return fmt.Errorf("asset %s: max power must be positive", a.ID)
		}
		if a.SoCMin < 0 || a.SoCMax > 1 || a.SoCMin > a.SoCMax {
			return fmt.Errorf("asset %s: soc bounds must satisfy 0 <= min <= max <= 1", a.ID)
		}
		if a.RoundTripEfficiency < 0 || a.RoundTripEfficiency > 1 {
			return fmt.Errorf("asset %s: round-trip efficiency must be in [0,1]", a.ID)
		}
	case AssetProcess:
		if a.ProcessPowerKW <= 0 {
			return fmt.Errorf("asset %s: process power must be positive", a.ID)
		}
		if a.ProcessDuration <= 0 {
			return fmt.Errorf("asset %s: process duration must be positive", a.ID)
		}
	}
	return nil
}

// Efficiency returns the one-way conversion efficiency derived from the
// round-trip value. Zero is treated as a perfect battery.
func (a Asset) Efficiency() float64 {
	if a.RoundTripEfficiency <= 0 || a.RoundTripEfficiency > 1 {
		return 1
	}
	// losses split evenly between charge and discharge
	return math.Sqrt(a.RoundTripEfficiency)
}
