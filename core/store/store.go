package store

import (
	"context"
	"errors"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/core/model"
)

// ErrNotFound is returned when a sensor, asset or source is unknown.
var ErrNotFound = errors.New("store: not found")

// SearchParams filters beliefs. The event window is half-open [EventStart,
// EventEnd). BeliefsBefore, when set, replays provenance: only beliefs formed
// strictly before the cutoff are returned.
type SearchParams struct {
	SensorID      string
	EventStart    time.Time
	EventEnd      time.Time
	BeliefsBefore time.Time
	SourceIDs     []string
	// MostRecentOnly keeps only the belief with the latest belief time per
	// event start, after the other filters.
	MostRecentOnly bool
}

// Store persists beliefs with provenance, plus the sensor, asset and source
// registries they reference. Beliefs are append-only: recording a new belief
// never mutates or removes an earlier one.
type Store interface {
	AddBeliefs(ctx context.Context, beliefs []model.Belief) error
	Search(ctx context.Context, p SearchParams) ([]model.Belief, error)

	AddSensor(ctx context.Context, s model.Sensor) error
	GetSensor(ctx context.Context, id string) (model.Sensor, error)
	ListSensors(ctx context.Context) ([]model.Sensor, error)

	AddAsset(ctx context.Context, a model.Asset) error
	GetAsset(ctx context.Context, id string) (model.Asset, error)
	ListAssets(ctx context.Context) ([]model.Asset, error)

	AddSource(ctx context.Context, s model.Source) error
	GetSource(ctx context.Context, id string) (model.Source, error)

	Close() error
}

// matches applies the non-ordering filters to a single belief.
func (p SearchParams) matches(b model.Belief) bool {
	if p.SensorID != "" && b.SensorID != p.SensorID {
		return false
	}
	if !p.EventStart.IsZero() && b.EventStart.Before(p.EventStart) {
		return false
	}
	if !p.EventEnd.IsZero() && !b.EventStart.Before(p.EventEnd) {
		return false
	}
	if !p.BeliefsBefore.IsZero() && !b.BeliefTime.Before(p.BeliefsBefore) {
		return false
	}
	if len(p.SourceIDs) > 0 {
		found := false
		for _, id := range p.SourceIDs {
			if b.SourceID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// mostRecent reduces a belief list to the latest belief per event start.
// The input must already be sorted by (event start, belief time).
func mostRecent(beliefs []model.Belief) []model.Belief {
	var out []model.Belief
	for _, b := range beliefs {
		if n := len(out); n > 0 && out[n-1].EventStart.Equal(b.EventStart) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
