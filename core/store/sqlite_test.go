package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/core/factory"
	"github.com/FlexMeasures/flexmeasures-sub003/core/model"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "beliefs.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteSearch(t *testing.T) {
	s := newSQLite(t)
	seedBeliefs(t, s)
	ctx := context.Background()

	got, err := s.Search(ctx, SearchParams{SensorID: "power"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 beliefs, got %d", len(got))
	}
	if !got[0].EventStart.Equal(day) || got[0].SourceID != "forecaster" {
		t.Fatalf("ordering wrong: %#v", got[0])
	}

	got, err = s.Search(ctx, SearchParams{SensorID: "power", MostRecentOnly: true})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 || got[0].SourceID != "meter" {
		t.Fatalf("most recent filter failed: %#v", got)
	}

	got, err = s.Search(ctx, SearchParams{SensorID: "power", BeliefsBefore: day.Add(-time.Hour), MostRecentOnly: true})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 || got[0].SourceID != "forecaster" {
		t.Fatalf("replay failed: %#v", got)
	}

	got, err = s.Search(ctx, SearchParams{SensorID: "power", SourceIDs: []string{"meter"}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Value != 4.4 {
		t.Fatalf("source filter failed: %#v", got)
	}
}

func TestSQLiteRegistries(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	sensor := model.Sensor{ID: "price", Unit: "EUR/MWh", EventResolution: time.Hour, Timezone: "Europe/Amsterdam"}
	if err := s.AddSensor(ctx, sensor); err != nil {
		t.Fatalf("add sensor: %v", err)
	}
	// Upsert replaces the record.
	sensor.Name = "day-ahead price"
	if err := s.AddSensor(ctx, sensor); err != nil {
		t.Fatalf("upsert sensor: %v", err)
	}
	got, err := s.GetSensor(ctx, "price")
	if err != nil || got.Name != "day-ahead price" || got.EventResolution != time.Hour {
		t.Fatalf("get sensor: %v %#v", err, got)
	}
	sensors, err := s.ListSensors(ctx)
	if err != nil || len(sensors) != 1 {
		t.Fatalf("list sensors: %v %d", err, len(sensors))
	}
	if _, err := s.GetSensor(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	a := model.Asset{ID: "bat", Kind: model.AssetBattery, BatteryKWh: 40, MaxPowerKW: 10, SoCMax: 1, SensorID: "power"}
	if err := s.AddAsset(ctx, a); err != nil {
		t.Fatalf("add asset: %v", err)
	}
	gotA, err := s.GetAsset(ctx, "bat")
	if err != nil || gotA.BatteryKWh != 40 {
		t.Fatalf("get asset: %v %#v", err, gotA)
	}

	if err := s.AddSource(ctx, model.Source{ID: "market", Kind: model.SourceUser}); err != nil {
		t.Fatalf("add source: %v", err)
	}
	src, err := s.GetSource(ctx, "market")
	if err != nil || src.ID != "market" {
		t.Fatalf("get source: %v %#v", err, src)
	}
}

func TestSQLiteFactory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.db")
	s, err := New(factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{"path": path}})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	defer func() { _ = s.Close() }()
	if _, ok := s.(*SQLiteStore); !ok {
		t.Fatalf("expected sqlite store, got %T", s)
	}
}
