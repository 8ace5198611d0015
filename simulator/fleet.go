package simulator

import (
	"fmt"
	"time"
)

// Config holds parameters for the simulator.
type Config struct {
	Broker          string
	Count           int
	Interval        time.Duration
	AckLatency      time.Duration
	DropRate        float64
	CapacityKWh     float64
	ChargeRateKW    float64
	DischargeRateKW float64
	SoC             float64
}

// Validate checks the simulator parameters.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if c.Count <= 0 {
		return fmt.Errorf("count must be positive")
	}
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("drop rate must be in [0,1]")
	}
	if c.SoC < 0 || c.SoC > 1 {
		return fmt.Errorf("soc must be in [0,1]")
	}
	return nil
}

// GenerateFleet builds Count simulated assets named bat1..batN, each with
// its own battery and meter sensor.
func GenerateFleet(cfg Config) []*SimulatedAsset {
	strat := RandomAck{Delay: cfg.AckLatency, DropRate: cfg.DropRate}
	assets := make([]*SimulatedAsset, 0, cfg.Count)
	for i := 1; i <= cfg.Count; i++ {
		id := fmt.Sprintf("bat%d", i)
		a := NewSimulatedAsset(id, id+"-power", cfg.Broker, strat)
		a.Interval = cfg.Interval
		a.Battery = NewBattery(cfg.CapacityKWh, cfg.ChargeRateKW, cfg.DischargeRateKW, cfg.SoC)
		assets = append(assets, a)
	}
	return assets
}
