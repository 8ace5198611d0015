package scenarios

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/core/factory"
	"github.com/FlexMeasures/flexmeasures-sub003/core/scheduling"
	"github.com/FlexMeasures/flexmeasures-sub003/core/timeseries"
)

// RunScenario plans the scenario's asset against its price curve and checks
// the expectations.
func RunScenario(t *testing.T, sc *Scenario) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	resolution := time.Duration(sc.ResolutionMinutes) * time.Minute
	if resolution <= 0 {
		t.Fatalf("scenario %s: resolution_minutes must be positive", sc.Name)
	}
	asset, err := sc.Asset.ToModel(start)
	if err != nil {
		t.Fatalf("scenario %s: asset: %v", sc.Name, err)
	}

	name := scheduling.ForKind(asset.Kind)
	conf := map[string]any{}
	if sc.Asset.ProcessPolicy != "" {
		conf["policy"] = sc.Asset.ProcessPolicy
	}
	sch, err := scheduling.New(factory.ModuleConfig{Type: name, Conf: conf})
	if err != nil {
		t.Fatalf("scenario %s: scheduler: %v", sc.Name, err)
	}

	req := scheduling.Request{
		Asset:      asset,
		Start:      start,
		End:        start.Add(time.Duration(len(sc.Prices)) * resolution),
		Resolution: resolution,
		Prices:     timeseries.Series{Start: start, Resolution: resolution, Values: sc.Prices},
	}
	sched, err := sch.Compute(context.Background(), req)

	if !sc.Expected.Feasible {
		if !errors.Is(err, scheduling.ErrInfeasible) {
			t.Errorf("scenario %s: expected infeasible, got err=%v", sc.Name, err)
		}
		return
	}
	if err != nil {
		t.Fatalf("scenario %s: compute: %v", sc.Name, err)
	}
	if len(sched.PowerKW) != len(sc.Prices) {
		t.Errorf("scenario %s: %d slots planned, want %d", sc.Name, len(sched.PowerKW), len(sc.Prices))
	}
	if sc.Expected.MaxCost > 0 && sched.Cost > sc.Expected.MaxCost {
		t.Errorf("scenario %s: cost %.2f exceeds %.2f", sc.Name, sched.Cost, sc.Expected.MaxCost)
	}
	if sc.Expected.MinFinalSoC > 0 {
		if len(sched.SoC) == 0 {
			t.Errorf("scenario %s: no SoC trajectory", sc.Name)
		} else if final := sched.SoC[len(sched.SoC)-1]; final < sc.Expected.MinFinalSoC-1e-9 {
			t.Errorf("scenario %s: final soc %.3f below %.3f", sc.Name, final, sc.Expected.MinFinalSoC)
		}
	}
	if sc.Expected.RunMinutes > 0 {
		var run time.Duration
		for _, p := range sched.PowerKW {
			if p != 0 {
				run += resolution
			}
		}
		if got := int(run.Minutes()); got != sc.Expected.RunMinutes {
			t.Errorf("scenario %s: process ran %d minutes, want %d", sc.Name, got, sc.Expected.RunMinutes)
		}
	}
}
