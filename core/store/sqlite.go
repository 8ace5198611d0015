package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/FlexMeasures/flexmeasures-sub003/core/model"
)

// SQLiteStore persists beliefs and registries to a SQLite database. Beliefs
// are append-only; queries filter on indexed columns and decode the full
// record from its JSON payload.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS beliefs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        sensor_id TEXT NOT NULL,
        event_start INTEGER NOT NULL,
        belief_time INTEGER NOT NULL,
        source_id TEXT NOT NULL,
        record TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_beliefs_sensor_event ON beliefs(sensor_id, event_start);
    CREATE TABLE IF NOT EXISTS sensors (id TEXT PRIMARY KEY, record TEXT NOT NULL);
    CREATE TABLE IF NOT EXISTS assets (id TEXT PRIMARY KEY, record TEXT NOT NULL);
    CREATE TABLE IF NOT EXISTS sources (id TEXT PRIMARY KEY, record TEXT NOT NULL);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// AddBeliefs writes the beliefs in one transaction.
func (s *SQLiteStore) AddBeliefs(ctx context.Context, beliefs []model.Belief) error {
	for _, b := range beliefs {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO beliefs (sensor_id, event_start, belief_time, source_id, record) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, b := range beliefs {
		rec, err := json.Marshal(b)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			b.SensorID, b.EventStart.UnixNano(), b.BeliefTime.UnixNano(), b.SourceID, string(rec)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Search returns beliefs matching p, ordered by event start then belief time.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.Belief, error) {
	query := `SELECT record FROM beliefs WHERE 1=1`
	var args []any
	if p.SensorID != "" {
		query += ` AND sensor_id = ?`
		args = append(args, p.SensorID)
	}
	if !p.EventStart.IsZero() {
		query += ` AND event_start >= ?`
		args = append(args, p.EventStart.UnixNano())
	}
	if !p.EventEnd.IsZero() {
		query += ` AND event_start < ?`
		args = append(args, p.EventEnd.UnixNano())
	}
	if !p.BeliefsBefore.IsZero() {
		query += ` AND belief_time < ?`
		args = append(args, p.BeliefsBefore.UnixNano())
	}
	query += ` ORDER BY event_start, belief_time`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Belief
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var b model.Belief
		if err := json.Unmarshal([]byte(data), &b); err != nil {
			return nil, fmt.Errorf("unmarshal belief: %w", err)
		}
		// Source filter stays in Go to keep the SQL placeholder list fixed.
		if len(p.SourceIDs) > 0 {
			matched := false
			for _, id := range p.SourceIDs {
				if b.SourceID == id {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if p.MostRecentOnly {
		out = mostRecent(out)
	}
	return out, nil
}

func (s *SQLiteStore) AddSensor(ctx context.Context, sensor model.Sensor) error {
	if err := sensor.Validate(); err != nil {
		return err
	}
	return s.upsert(ctx, "sensors", sensor.ID, sensor)
}

func (s *SQLiteStore) GetSensor(ctx context.Context, id string) (model.Sensor, error) {
	var sensor model.Sensor
	if err := s.get(ctx, "sensors", id, &sensor); err != nil {
		return model.Sensor{}, fmt.Errorf("sensor %s: %w", id, err)
	}
	return sensor, nil
}

func (s *SQLiteStore) ListSensors(ctx context.Context) ([]model.Sensor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM sensors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Sensor
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var sensor model.Sensor
		if err := json.Unmarshal([]byte(data), &sensor); err != nil {
			return nil, err
		}
		out = append(out, sensor)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddAsset(ctx context.Context, a model.Asset) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return s.upsert(ctx, "assets", a.ID, a)
}

func (s *SQLiteStore) GetAsset(ctx context.Context, id string) (model.Asset, error) {
	var a model.Asset
	if err := s.get(ctx, "assets", id, &a); err != nil {
		return model.Asset{}, fmt.Errorf("asset %s: %w", id, err)
	}
	return a, nil
}

func (s *SQLiteStore) ListAssets(ctx context.Context) ([]model.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM assets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Asset
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var a model.Asset
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddSource(ctx context.Context, src model.Source) error {
	if src.ID == "" {
		return fmt.Errorf("source id is required")
	}
	return s.upsert(ctx, "sources", src.ID, src)
}

func (s *SQLiteStore) GetSource(ctx context.Context, id string) (model.Source, error) {
	var src model.Source
	if err := s.get(ctx, "sources", id, &src); err != nil {
		return model.Source{}, fmt.Errorf("source %s: %w", id, err)
	}
	return src, nil
}

func (s *SQLiteStore) upsert(ctx context.Context, table, id string, v any) error {
	rec, err := json.Marshal(v)
	if err != nil {
		return err
	}
	//nolint:gosec // table names are fixed strings, not user input
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (id, record) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET record=excluded.record`,
		id, string(rec))
	return err
}

func (s *SQLiteStore) get(ctx context.Context, table, id string, out any) error {
	var data string
	//nolint:gosec // table names are fixed strings, not user input
	err := s.db.QueryRowContext(ctx, `SELECT record FROM `+table+` WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), out)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
