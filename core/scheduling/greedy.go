package scheduling

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// GreedyStorageScheduler is the heuristic fallback for storage assets. It
// meets each SoC target by charging in the cheapest slots before the target
// time, then sells surplus energy in the dearest slots, keeping the
// trajectory inside the SoC bounds and above every target level.
type GreedyStorageScheduler struct{}

// Compute plans charging greedily. It returns ErrInfeasible when a target
// cannot be met within the power and SoC limits.
func (g *GreedyStorageScheduler) Compute(ctx context.Context, req Request) (*Schedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := buildStorageProblem(req)
	if err != nil {
		return nil, err
	}
	charge := make([]float64, p.n)

	// Targets sorted by time; each is satisfied with the cheapest slots in
	// its prefix.
	targets := append([]targetConstraint(nil), p.targets...)
	sort.Slice(targets, func(i, j int) bool { return targets[i].step < targets[j].step })

	for _, tgt := range targets {
		if err := g.meetTarget(p, charge, tgt); err != nil {
			return nil, err
		}
	}
	discharge := make([]float64, p.n)
	g.dischargeSurplus(p, charge, discharge)
	return assembleStorageSchedule(req, p, charge, discharge, "greedy"), nil
}

// dischargeSurplus sells stored energy in the dearest slots first. Selling in
// slot k lowers the stored energy at every later step, so the sale is capped
// by the tightest slack over that suffix: distance to the SoC floor, or to a
// target level where one applies.
func (g *GreedyStorageScheduler) dischargeSurplus(p *storageProblem, charge, discharge []float64) {
	const eps = 1e-9
	order := make([]int, p.n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return p.prices[order[i]] > p.prices[order[j]] })

	floor := make([]float64, p.n)
	for t := range floor {
		floor[t] = p.eMin
	}
	for _, tgt := range p.targets {
		if tgt.step >= 0 && tgt.step < p.n && tgt.minKWh > floor[tgt.step] {
			floor[tgt.step] = tgt.minKWh
		}
	}

	for _, k := range order {
		if p.prices[k] <= 0 {
			continue
		}
		head := p.pDis - discharge[k]
		if head <= eps {
			continue
		}
		slack := math.MaxFloat64
		e := p.e0
		for t := 0; t < p.n; t++ {
			e += (p.eff*charge[t] - discharge[t]/p.eff) * p.dt
			if t >= k && e-floor[t] < slack {
				slack = e - floor[t]
			}
		}
		d := minf(head, slack*p.eff/p.dt)
		if d > eps {
			discharge[k] += d
		}
	}
}

// meetTarget raises charging in the cheapest slots of the target's prefix
// until the stored energy at the target step reaches the target level.
func (g *GreedyStorageScheduler) meetTarget(p *storageProblem, charge []float64, tgt targetConstraint) error {
	const eps = 1e-9
	order := make([]int, tgt.step+1)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return p.prices[order[i]] < p.prices[order[j]] })

	for {
		deficit := tgt.minKWh - energyAt(p, charge, tgt.step)
		if deficit <= eps {
			return nil
		}
		progressed := false
		for _, k := range order {
			head := p.pCharge - charge[k]
			if head <= eps {
				continue
			}
			// Charging in slot k raises every later E[j]; stay under eMax.
			room := p.eMax - maxEnergyFrom(p, charge, k)
			if room <= eps {
				continue
			}
			add := minf(head, room/(p.eff*p.dt), deficit/(p.eff*p.dt))
			if add <= eps {
				continue
			}
			charge[k] += add
			progressed = true
			break
		}
		if !progressed {
			return fmt.Errorf("%w: target of %.1f kWh at slot %d cannot be met", ErrInfeasible, tgt.minKWh, tgt.step)
		}
	}
}

// energyAt returns the stored energy after the given step.
func energyAt(p *storageProblem, charge []float64, step int) float64 {
	e := p.e0
	for k := 0; k <= step && k < p.n; k++ {
		e += p.eff * charge[k] * p.dt
	}
	return e
}

// maxEnergyFrom returns the highest stored energy from step k onward.
func maxEnergyFrom(p *storageProblem, charge []float64, from int) float64 {
	e := p.e0
	maxE := p.e0
	for t := 0; t < p.n; t++ {
		e += p.eff * charge[t] * p.dt
		if t >= from && e > maxE {
			maxE = e
		}
	}
	return maxE
}

func minf(vals ...float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

var _ Scheduler = (*GreedyStorageScheduler)(nil)
