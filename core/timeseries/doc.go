// Package timeseries implements the beliefs engine: deterministic selection
// of sensor values from timestamped, sourced beliefs, and resampling between
// recording and scheduling resolutions.
//
// A belief states that a source believed, at a given belief time, what a
// sensor's value over an event would be. Selecting a series for a window asks
// "what is the current best knowledge per event", optionally replayed as of
// an earlier belief time. Resampling reconciles data recorded at one
// resolution with computations running at another.
package timeseries
