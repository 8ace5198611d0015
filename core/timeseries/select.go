package timeseries

import (
	"sort"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/core/model"
)

// Selection controls which belief wins for each event when collapsing a
// belief set into one deterministic series.
type Selection struct {
	// BeliefsBefore, when set, replays history: only beliefs formed strictly
	// before this time are considered.
	BeliefsBefore time.Time
	// SourcePriority breaks ties between beliefs with the same belief time.
	// Earlier entries win. Sources not listed rank last, in input order.
	SourcePriority []string
}

// BeliefSet holds beliefs about a single sensor.
type BeliefSet struct {
	SensorID   string
	Resolution time.Duration
	Beliefs    []model.Belief
}

// Add appends beliefs to the set. Beliefs for other sensors are ignored.
func (bs *BeliefSet) Add(beliefs ...model.Belief) {
	for _, b := range beliefs {
		if b.SensorID == bs.SensorID {
			bs.Beliefs = append(bs.Beliefs, b)
		}
	}
}

// Select collapses the set into one deterministic series: for each event the
// belief with the most recent belief time wins, subject to the selection's
// cutoff and source priority. The returned series is anchored at the first
// winning event and aligned to the resolution grid, so Values[i] always
// covers Start + i*Resolution; events between winners carry the previous
// winner's value. The second return value lists the winning beliefs in event
// order, which is also the record of which events actually hold data.
func (bs *BeliefSet) Select(start, end time.Time, sel Selection) (Series, []model.Belief) {
	picked := bs.pick(start, end, sel)
	if len(picked) == 0 {
		return Series{Start: start, Resolution: bs.Resolution}, nil
	}

	first := picked[0].EventStart
	n := int(picked[len(picked)-1].EventStart.Sub(first)/bs.Resolution) + 1
	values := make([]float64, n)
	known := make([]bool, n)
	for _, b := range picked {
		idx := int(b.EventStart.Sub(first) / bs.Resolution)
		values[idx] = b.Value
		known[idx] = true
	}
	for i := 1; i < n; i++ {
		if !known[i] {
			values[i] = values[i-1]
		}
	}
	return Series{Start: first, Resolution: bs.Resolution, Values: values}, picked
}

// pick resolves the winning belief per event over [start, end), ordered by
// event start.
func (bs *BeliefSet) pick(start, end time.Time, sel Selection) []model.Belief {
	winners := make(map[time.Time]model.Belief)
	for _, b := range bs.Beliefs {
		if b.EventStart.Before(start) || !b.EventStart.Before(end) {
			continue
		}
		if !sel.BeliefsBefore.IsZero() && !b.BeliefTime.Before(sel.BeliefsBefore) {
			continue
		}
		cur, ok := winners[b.EventStart]
		if !ok || beats(b, cur, sel.SourcePriority) {
			winners[b.EventStart] = b
		}
	}
	if len(winners) == 0 {
		return nil
	}
	picked := make([]model.Belief, 0, len(winners))
	for _, b := range winners {
		picked = append(picked, b)
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].EventStart.Before(picked[j].EventStart) })
	return picked
}

// beats reports whether a should replace b as the winning belief. A rewrite
// of the same (event, belief time, source) record wins, so duplicates resolve
// to the latest write, matching the store's MostRecentOnly semantics.
func beats(a, b model.Belief, priority []string) bool {
	if a.BeliefTime.After(b.BeliefTime) {
		return true
	}
	if a.BeliefTime.Before(b.BeliefTime) {
		return false
	}
	ra, rb := sourceRank(a.SourceID, priority), sourceRank(b.SourceID, priority)
	if ra != rb {
		return ra < rb
	}
	return a.SourceID == b.SourceID
}

func sourceRank(id string, priority []string) int {
	for i, p := range priority {
		if p == id {
			return i
		}
	}
	return len(priority)
}

// Dense returns the selected series re-indexed onto a contiguous grid over
// [start, end), along with a mask marking which events actually hold data.
// Gaps carry the previous known value (forward fill) so downstream solvers
// see a complete series; leading gaps carry the first known value.
func (bs *BeliefSet) Dense(start, end time.Time, sel Selection) (Series, []bool) {
	picked := bs.pick(start, end, sel)
	n := int(end.Sub(start) / bs.Resolution)
	if n <= 0 {
		return Series{Start: start, Resolution: bs.Resolution}, nil
	}
	values := make([]float64, n)
	known := make([]bool, n)
	for _, b := range picked {
		idx := int(b.EventStart.Sub(start) / bs.Resolution)
		if idx >= 0 && idx < n {
			values[idx] = b.Value
			known[idx] = true
		}
	}
	first := -1
	for i := range values {
		if known[i] {
			first = i
			break
		}
	}
	if first >= 0 {
		for i := 0; i < first; i++ {
			values[i] = values[first]
		}
		for i := first + 1; i < n; i++ {
			if !known[i] {
				values[i] = values[i-1]
			}
		}
	}
	return Series{Start: start, Resolution: bs.Resolution, Values: values}, known
}
