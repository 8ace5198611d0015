package scheduling

import (
	"context"
	"fmt"
	"sort"

	"github.com/FlexMeasures/flexmeasures-sub003/core/model"
)

// ProcessPolicy controls how a process asset's run may be placed in time.
type ProcessPolicy int

const (
	// PolicyInflexible runs the process at the window start.
	PolicyInflexible ProcessPolicy = iota
	// PolicyShiftable places the whole run in the cheapest contiguous block.
	PolicyShiftable
	// PolicyBreakable splits the run over the cheapest individual slots.
	PolicyBreakable
)

// String returns a human-readable representation of the policy.
func (p ProcessPolicy) String() string {
	switch p {
	case PolicyInflexible:
		return "inflexible"
	case PolicyShiftable:
		return "shiftable"
	case PolicyBreakable:
		return "breakable"
	default:
		return "unknown"
	}
}

// ParseProcessPolicy converts a configuration string to a ProcessPolicy.
// An empty string selects the shiftable policy.
func ParseProcessPolicy(s string) (ProcessPolicy, error) {
	switch s {
	case "", "shiftable":
		return PolicyShiftable, nil
	case "inflexible":
		return PolicyInflexible, nil
	case "breakable":
		return PolicyBreakable, nil
	default:
		return 0, fmt.Errorf("unknown process policy %q", s)
	}
}

// ProcessScheduler plans shiftable industrial loads: a block of constant
// power that must run for a fixed duration somewhere inside the window.
type ProcessScheduler struct {
	Policy ProcessPolicy
}

// Compute places the process run according to the policy, minimizing energy
// cost against the price series.
func (s *ProcessScheduler) Compute(ctx context.Context, req Request) (*Schedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := req.Asset
	if a.Kind != model.AssetProcess {
		return nil, fmt.Errorf("scheduling: process scheduler requires a process asset, got %s", a.Kind)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	n, prices, err := req.steps()
	if err != nil {
		return nil, err
	}
	if a.ProcessDuration%req.Resolution != 0 {
		return nil, fmt.Errorf("scheduling: process duration %v is not a multiple of resolution %v", a.ProcessDuration, req.Resolution)
	}
	slots := int(a.ProcessDuration / req.Resolution)
	if slots > n {
		return nil, fmt.Errorf("%w: process needs %d slots, window has %d", ErrInfeasible, slots, n)
	}

	chosen := make([]bool, n)
	switch s.Policy {
	case PolicyInflexible:
		for i := 0; i < slots; i++ {
			chosen[i] = true
		}
	case PolicyShiftable:
		best, bestCost := 0, 0.0
		for i := 0; i < slots; i++ {
			bestCost += prices.Values[i]
		}
		cost := bestCost
		for start := 1; start+slots <= n; start++ {
			cost += prices.Values[start+slots-1] - prices.Values[start-1]
			if cost < bestCost {
				bestCost, best = cost, start
			}
		}
		for i := best; i < best+slots; i++ {
			chosen[i] = true
		}
	case PolicyBreakable:
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(i, j int) bool { return prices.Values[order[i]] < prices.Values[order[j]] })
		for _, idx := range order[:slots] {
			chosen[idx] = true
		}
	default:
		return nil, fmt.Errorf("scheduling: unknown process policy %d", s.Policy)
	}

	power := make([]float64, n)
	cost := 0.0
	dt := req.Resolution.Hours()
	for i, on := range chosen {
		if on {
			power[i] = a.ProcessPowerKW
			cost += prices.Values[i] * a.ProcessPowerKW * dt / 1000
		}
	}
	return &Schedule{
		AssetID:    a.ID,
		Start:      req.Start,
		Resolution: req.Resolution,
		PowerKW:    power,
		Cost:       cost,
		Scheduler:  "process",
	}, nil
}

var _ Scheduler = (*ProcessScheduler)(nil)
