package timeseries

import (
	"errors"
	"fmt"
	"time"
)

// ErrIncompatibleResolution is returned when the target resolution is neither
// an integer multiple nor an integer divisor of the native one.
var ErrIncompatibleResolution = errors.New("timeseries: incompatible resolution")

// Resample converts the series to the target resolution. Downsampling (finer
// to coarser) averages the fine values inside each coarse event, which is the
// correct aggregation for flow and instantaneous quantities such as power and
// prices. Upsampling (coarser to finer) pads the coarse value onto each fine
// event. Partial trailing events are dropped on downsampling.
//
// The result is a derived view: resampling never creates new beliefs.
func (s Series) Resample(target time.Duration) (Series, error) {
	if target <= 0 {
		return Series{}, fmt.Errorf("timeseries: target resolution must be positive")
	}
	if s.Resolution <= 0 {
		return Series{}, fmt.Errorf("timeseries: source resolution must be positive")
	}
	if target == s.Resolution {
		out := make([]float64, len(s.Values))
		copy(out, s.Values)
		return Series{Start: s.Start, Resolution: s.Resolution, Values: out}, nil
	}
	if target > s.Resolution {
		if target%s.Resolution != 0 {
			return Series{}, fmt.Errorf("%w: %v into %v", ErrIncompatibleResolution, s.Resolution, target)
		}
		return s.downsample(int(target / s.Resolution)), nil
	}
	if s.Resolution%target != 0 {
		return Series{}, fmt.Errorf("%w: %v into %v", ErrIncompatibleResolution, s.Resolution, target)
	}
	return s.upsample(int(s.Resolution / target)), nil
}

// downsample averages each group of n consecutive values. A trailing group
// shorter than n is dropped rather than extrapolated.
func (s Series) downsample(n int) Series {
	out := make([]float64, 0, len(s.Values)/n)
	for i := 0; i+n <= len(s.Values); i += n {
		sum := 0.0
		for _, v := range s.Values[i : i+n] {
			sum += v
		}
		out = append(out, sum/float64(n))
	}
	return Series{Start: s.Start, Resolution: s.Resolution * time.Duration(n), Values: out}
}

// upsample pads each value onto n finer events.
func (s Series) upsample(n int) Series {
	out := make([]float64, 0, len(s.Values)*n)
	for _, v := range s.Values {
		for i := 0; i < n; i++ {
			out = append(out, v)
		}
	}
	return Series{Start: s.Start, Resolution: s.Resolution / time.Duration(n), Values: out}
}
