package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/core/factory"
	"github.com/FlexMeasures/flexmeasures-sub003/core/model"
)

var day = time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)

func seedBeliefs(t *testing.T, s Store) {
	t.Helper()
	beliefs := []model.Belief{
		{SensorID: "power", EventStart: day, BeliefTime: day.Add(-24 * time.Hour), SourceID: "forecaster", Value: 5},
		{SensorID: "power", EventStart: day, BeliefTime: day.Add(time.Minute), SourceID: "meter", Value: 4.4},
		{SensorID: "power", EventStart: day.Add(time.Hour), BeliefTime: day.Add(-24 * time.Hour), SourceID: "forecaster", Value: 6},
		{SensorID: "price", EventStart: day, BeliefTime: day.Add(-12 * time.Hour), SourceID: "market", Value: 42},
	}
	if err := s.AddBeliefs(context.Background(), beliefs); err != nil {
		t.Fatalf("add beliefs: %v", err)
	}
}

func TestMemorySearchFilters(t *testing.T) {
	s := NewMemoryStore()
	seedBeliefs(t, s)
	ctx := context.Background()

	got, err := s.Search(ctx, SearchParams{SensorID: "power"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 power beliefs, got %d", len(got))
	}
	// Ordered by event start then belief time.
	if !got[0].EventStart.Equal(day) || got[0].SourceID != "forecaster" {
		t.Fatalf("ordering wrong: %#v", got[0])
	}

	got, err = s.Search(ctx, SearchParams{SensorID: "power", EventEnd: day.Add(time.Hour)})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("event window filter failed: %d", len(got))
	}

	got, err = s.Search(ctx, SearchParams{SensorID: "power", SourceIDs: []string{"meter"}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Value != 4.4 {
		t.Fatalf("source filter failed: %#v", got)
	}
}

func TestMemorySearchBeliefsBefore(t *testing.T) {
	s := NewMemoryStore()
	seedBeliefs(t, s)
	got, err := s.Search(context.Background(), SearchParams{
		SensorID:       "power",
		BeliefsBefore:  day.Add(-time.Hour),
		MostRecentOnly: true,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// The meter reading arrived after the cutoff, so the forecast wins.
	if len(got) != 2 || got[0].SourceID != "forecaster" {
		t.Fatalf("replay failed: %#v", got)
	}
}

func TestMemoryMostRecentOnly(t *testing.T) {
	s := NewMemoryStore()
	seedBeliefs(t, s)
	got, err := s.Search(context.Background(), SearchParams{SensorID: "power", MostRecentOnly: true})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].SourceID != "meter" {
		t.Fatalf("latest belief should win: %#v", got[0])
	}
}

func TestMemoryAddBeliefsValidates(t *testing.T) {
	s := NewMemoryStore()
	err := s.AddBeliefs(context.Background(), []model.Belief{{SensorID: "x"}})
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestMemoryRegistries(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	sensor := model.Sensor{ID: "power", Unit: "kW", EventResolution: 15 * time.Minute}
	if err := s.AddSensor(ctx, sensor); err != nil {
		t.Fatalf("add sensor: %v", err)
	}
	got, err := s.GetSensor(ctx, "power")
	if err != nil || got.Unit != "kW" {
		t.Fatalf("get sensor: %v %#v", err, got)
	}
	if _, err := s.GetSensor(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	asset := model.Asset{ID: "bat", Kind: model.AssetBattery, BatteryKWh: 10, MaxPowerKW: 5, SoCMax: 1}
	if err := s.AddAsset(ctx, asset); err != nil {
		t.Fatalf("add asset: %v", err)
	}
	assets, err := s.ListAssets(ctx)
	if err != nil || len(assets) != 1 {
		t.Fatalf("list assets: %v %d", err, len(assets))
	}

	if err := s.AddSource(ctx, model.Source{ID: "meter", Kind: model.SourceMeasurement}); err != nil {
		t.Fatalf("add source: %v", err)
	}
	src, err := s.GetSource(ctx, "meter")
	if err != nil || src.Kind != model.SourceMeasurement {
		t.Fatalf("get source: %v %#v", err, src)
	}
}

func TestFactoryDefaultsToMemory(t *testing.T) {
	s, err := New(factory.ModuleConfig{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", s)
	}
}

func TestFactoryUnknownBackend(t *testing.T) {
	if _, err := New(factory.ModuleConfig{Type: "postgres"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
