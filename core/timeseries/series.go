package timeseries

import (
	"fmt"
	"time"
)

// Series is a regular time-indexed numeric series. Values[i] covers the event
// [Start + i*Resolution, Start + (i+1)*Resolution).
type Series struct {
	Start      time.Time     `json:"start"`
	Resolution time.Duration `json:"resolution"`
	Values     []float64     `json:"values"`
}

// New creates a Series and validates its shape.
func New(start time.Time, resolution time.Duration, values []float64) (Series, error) {
	if resolution <= 0 {
		return Series{}, fmt.Errorf("timeseries: resolution must be positive")
	}
	return Series{Start: start, Resolution: resolution, Values: values}, nil
}

// Len returns the number of events in the series.
func (s Series) Len() int { return len(s.Values) }

// End returns the exclusive end of the covered window.
func (s Series) End() time.Time {
	return s.Start.Add(time.Duration(len(s.Values)) * s.Resolution)
}

// TimeAt returns the event start of index i.
func (s Series) TimeAt(i int) time.Time {
	return s.Start.Add(time.Duration(i) * s.Resolution)
}

// IndexAt returns the index covering t, or -1 when t falls outside the series.
func (s Series) IndexAt(t time.Time) int {
	if t.Before(s.Start) || !t.Before(s.End()) {
		return -1
	}
	return int(t.Sub(s.Start) / s.Resolution)
}

// Sum returns the sum of all values.
func (s Series) Sum() float64 {
	total := 0.0
	for _, v := range s.Values {
		total += v
	}
	return total
}

// Mean returns the average value, or zero for an empty series.
func (s Series) Mean() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return s.Sum() / float64(len(s.Values))
}

// Energy interprets the values as power in kW and returns the total energy in
// kWh over the covered window.
func (s Series) Energy() float64 {
	return s.Sum() * s.Resolution.Hours()
}

// Slice returns the sub-series covering [start, end). Both bounds are clamped
// to the series window and snapped down to resolution boundaries.
func (s Series) Slice(start, end time.Time) Series {
	i := 0
	if start.After(s.Start) {
		i = int(start.Sub(s.Start) / s.Resolution)
	}
	j := len(s.Values)
	if end.Before(s.End()) {
		j = int(end.Sub(s.Start) / s.Resolution)
	}
	if i < 0 {
		i = 0
	}
	if j > len(s.Values) {
		j = len(s.Values)
	}
	if i >= j {
		return Series{Start: s.TimeAt(i), Resolution: s.Resolution}
	}
	out := make([]float64, j-i)
	copy(out, s.Values[i:j])
	return Series{Start: s.TimeAt(i), Resolution: s.Resolution, Values: out}
}
