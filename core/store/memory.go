package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/FlexMeasures/flexmeasures-sub003/core/model"
)

// MemoryStore keeps everything in process memory. It backs tests and small
// single-node deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	beliefs []model.Belief
	sensors map[string]model.Sensor
	assets  map[string]model.Asset
	sources map[string]model.Source
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sensors: make(map[string]model.Sensor),
		assets:  make(map[string]model.Asset),
		sources: make(map[string]model.Source),
	}
}

// AddBeliefs validates and appends the beliefs.
func (s *MemoryStore) AddBeliefs(_ context.Context, beliefs []model.Belief) error {
	for _, b := range beliefs {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.beliefs = append(s.beliefs, beliefs...)
	s.mu.Unlock()
	return nil
}

// Search returns beliefs matching p, ordered by event start then belief time.
func (s *MemoryStore) Search(_ context.Context, p SearchParams) ([]model.Belief, error) {
	s.mu.RLock()
	var out []model.Belief
	for _, b := range s.beliefs {
		if p.matches(b) {
			out = append(out, b)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].EventStart.Equal(out[j].EventStart) {
			return out[i].EventStart.Before(out[j].EventStart)
		}
		return out[i].BeliefTime.Before(out[j].BeliefTime)
	})
	if p.MostRecentOnly {
		out = mostRecent(out)
	}
	return out, nil
}

func (s *MemoryStore) AddSensor(_ context.Context, sensor model.Sensor) error {
	if err := sensor.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sensors[sensor.ID] = sensor
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetSensor(_ context.Context, id string) (model.Sensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sensor, ok := s.sensors[id]
	if !ok {
		return model.Sensor{}, fmt.Errorf("sensor %s: %w", id, ErrNotFound)
	}
	return sensor, nil
}

func (s *MemoryStore) ListSensors(_ context.Context) ([]model.Sensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Sensor, 0, len(s.sensors))
	for _, sensor := range s.sensors {
		out = append(out, sensor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) AddAsset(_ context.Context, a model.Asset) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.assets[a.ID] = a
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetAsset(_ context.Context, id string) (model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return model.Asset{}, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (s *MemoryStore) ListAssets(_ context.Context) ([]model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) AddSource(_ context.Context, src model.Source) error {
	if src.ID == "" {
		return fmt.Errorf("source id is required")
	}
	s.mu.Lock()
	s.sources[src.ID] = src
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetSource(_ context.Context, id string) (model.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[id]
	if !ok {
		return model.Source{}, fmt.Errorf("source %s: %w", id, ErrNotFound)
	}
	return src, nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error { return nil }
