package scheduling

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// StorageConfig tunes the LP-based storage scheduler.
type StorageConfig struct {
	// DisableFallback turns off the greedy fallback, surfacing solver errors
	// to the caller instead.
	DisableFallback bool `json:"disable_fallback"`
}

// StorageScheduler plans batteries, EVs and heat-pump buffers by solving a
// linear program: minimize energy cost over the window subject to power
// limits, state-of-charge bounds on every step and SoC targets (e.g. an EV
// departure). When the LP fails it falls back to GreedyStorageScheduler
// unless configured otherwise.
type StorageScheduler struct {
	cfg      StorageConfig
	fallback GreedyStorageScheduler
}

// NewStorageScheduler returns an LP-based storage scheduler.
func NewStorageScheduler(cfg StorageConfig) *StorageScheduler {
	return &StorageScheduler{cfg: cfg}
}

// storageProblem collects the dimensions shared by the solvers.
type storageProblem struct {
	n       int       // number of slots
	dt      float64   // slot duration in hours
	prices  []float64 // EUR/MWh per slot
	load    []float64 // inflexible site load in kW, nil when absent
	eff     float64   // one-way efficiency
	e0      float64   // initial energy in kWh
	eMin    float64
	eMax    float64
	pCharge float64 // max charge power in kW
	pDis    float64 // max discharge power in kW
	targets []targetConstraint
}

type targetConstraint struct {
	step   int // inclusive prefix length: E after step `step` must satisfy the target
	minKWh float64
}

func buildStorageProblem(req Request) (*storageProblem, error) {
	a := req.Asset
	if err := a.Validate(); err != nil {
		return nil, err
	}
	n, prices, err := req.steps()
	if err != nil {
		return nil, err
	}
	load, err := req.loadValues(n)
	if err != nil {
		return nil, err
	}
	p := &storageProblem{
		n:       n,
		dt:      req.Resolution.Hours(),
		prices:  prices.Values[:n],
		load:    load,
		eff:     a.Efficiency(),
		e0:      req.socAtStart() * a.BatteryKWh,
		eMin:    a.SoCMin * a.BatteryKWh,
		eMax:    a.SoCMax * a.BatteryKWh,
		pCharge: a.MaxPowerKW,
		pDis:    a.MinPowerKW,
	}
	if p.eMax <= 0 {
		p.eMax = a.BatteryKWh
	}
	for _, tgt := range a.Targets {
		if tgt.Time.Before(req.Start) || tgt.Time.After(req.End) {
			continue
		}
		step := int(tgt.Time.Sub(req.Start)/req.Resolution) - 1
		if tgt.Time.Equal(req.Start) {
			step = -1
		}
		if step < 0 {
			// Target at or before the first step boundary: check against E0.
			if p.e0+1e-9 < tgt.SoC*a.BatteryKWh {
				return nil, fmt.Errorf("%w: target soc %.2f at window start exceeds initial soc", ErrInfeasible, tgt.SoC)
			}
			continue
		}
		p.targets = append(p.targets, targetConstraint{step: step, minKWh: tgt.SoC * a.BatteryKWh})
	}
	return p, nil
}

// solveStorageLP builds and solves the LP. Variables are charge[0..n) and
// discharge[0..n) power in kW. The general form is handed to lp.Convert and
// solved with the simplex method.
func solveStorageLP(p *storageProblem) (charge, discharge []float64, err error) {
	n := p.n
	nv := 2 * n

	// Objective: energy cost. Prices are EUR/MWh, energy per slot is kW*h.
	c := make([]float64, nv)
	for t := 0; t < n; t++ {
		c[t] = p.prices[t] * p.dt / 1000
		c[n+t] = -p.prices[t] * p.dt / 1000
	}

	// Inequalities G x <= h: variable bounds, non-negativity and cumulative
	// SoC bounds per step, plus one row per SoC target.
	rows := 2*nv + 2*n + len(p.targets)
	g := mat.NewDense(rows, nv, nil)
	h := make([]float64, rows)
	r := 0
	for i := 0; i < nv; i++ {
		g.Set(r, i, 1)
		if i < n {
			h[r] = p.pCharge
		} else {
			h[r] = p.pDis
		}
		r++
	}
	for i := 0; i < nv; i++ {
		g.Set(r, i, -1)
		h[r] = 0
		r++
	}
	// E[t] = e0 + sum_{k<=t} (eff*charge[k] - discharge[k]/eff) * dt
	for t := 0; t < n; t++ {
		for k := 0; k <= t; k++ {
			g.Set(r, k, p.eff*p.dt)
			g.Set(r, n+k, -p.dt/p.eff)
		}
		h[r] = p.eMax - p.e0
		r++
		for k := 0; k <= t; k++ {
			g.Set(r, k, -p.eff*p.dt)
			g.Set(r, n+k, p.dt/p.eff)
		}
		h[r] = p.e0 - p.eMin
		r++
	}
	for _, tgt := range p.targets {
		for k := 0; k <= tgt.step; k++ {
			g.Set(r, k, -p.eff*p.dt)
			g.Set(r, n+k, p.dt/p.eff)
		}
		h[r] = p.e0 - tgt.minKWh
		r++
	}

	cStd, aStd, bStd := lp.Convert(c, g, h, nil, nil)
	_, sol, err := lpSimplex(cStd, aStd, bStd, 1e-7, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInfeasible, err)
	}

	charge = make([]float64, n)
	discharge = make([]float64, n)
	for t := 0; t < n; t++ {
		charge[t] = clamp(sol[t], 0, p.pCharge)
		discharge[t] = clamp(sol[n+t], 0, p.pDis)
	}
	return charge, discharge, nil
}

// lpSimplex points to the simplex solver. Tests override it to simulate
// solver failures.
var lpSimplex = lp.Simplex

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Compute solves the storage LP and assembles the schedule. On solver failure
// the greedy heuristic is used and the result marked as a fallback.
func (s *StorageScheduler) Compute(ctx context.Context, req Request) (*Schedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := buildStorageProblem(req)
	if err != nil {
		return nil, err
	}
	charge, discharge, err := solveStorageLP(p)
	if err != nil {
		if s.cfg.DisableFallback {
			return nil, err
		}
		sched, gerr := s.fallback.Compute(ctx, req)
		if gerr != nil {
			return nil, fmt.Errorf("lp failed (%v), greedy failed: %w", err, gerr)
		}
		sched.Fallback = true
		return sched, nil
	}
	return assembleStorageSchedule(req, p, charge, discharge, "storage"), nil
}

// assembleStorageSchedule turns per-slot charge/discharge into a Schedule
// with the resulting SoC trajectory and cost.
func assembleStorageSchedule(req Request, p *storageProblem, charge, discharge []float64, name string) *Schedule {
	a := req.Asset
	power := make([]float64, p.n)
	soc := make([]float64, p.n)
	e := p.e0
	cost := 0.0
	for t := 0; t < p.n; t++ {
		power[t] = charge[t] - discharge[t]
		e += (p.eff*charge[t] - discharge[t]/p.eff) * p.dt
		soc[t] = e / a.BatteryKWh
		site := power[t]
		if p.load != nil {
			site += p.load[t]
		}
		cost += p.prices[t] * site * p.dt / 1000
	}
	return &Schedule{
		AssetID:    a.ID,
		Start:      req.Start,
		Resolution: req.Resolution,
		PowerKW:    power,
		SoC:        soc,
		Cost:       cost,
		Scheduler:  name,
	}
}

var _ Scheduler = (*StorageScheduler)(nil)
