// Package sqlite persists artifact projection runs: the parameters a
// pipeline invocation ran with, the events it detected, and the
// projection vectors it produced. One run maps to one pipeline
// invocation.
package sqlite

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/meglab-data/artifact.report/internal/events"
	"github.com/meglab-data/artifact.report/internal/recording"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run is one persisted pipeline invocation.
type Run struct {
	RunID       string          `json:"run_id"`
	Mode        string          `json:"mode"`
	CreatedAtNs int64           `json:"created_at_ns"`
	SampleRate  float64         `json:"sample_rate"`
	ParamsJSON  json.RawMessage `json:"params_json,omitempty"`

	Events      []events.Event         `json:"events"`
	Projections []recording.Projection `json:"projections"`
}

// Store provides persistence for projection runs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and applies any
// pending schema migrations. Use ":memory:" for an in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrateUp applies all pending migrations from the embedded set.
func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migration setup: %w", err)
	}
	// Not closing m: that would close the shared DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SaveRun inserts a run with its events and projections in one
// transaction. An empty RunID is replaced with a fresh UUID; a zero
// CreatedAtNs with the current time.
func (s *Store) SaveRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAtNs == 0 {
		run.CreatedAtNs = time.Now().UnixNano()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO ssp_runs (run_id, mode, created_at_ns, sample_rate, params_json, n_events, n_projections)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.Mode, run.CreatedAtNs, run.SampleRate,
		nullString(string(run.ParamsJSON)), len(run.Events), len(run.Projections))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, ev := range run.Events {
		if _, err := tx.Exec(`
			INSERT INTO ssp_events (run_id, seq, sample, event_id) VALUES (?, ?, ?, ?)
		`, run.RunID, i, ev.Sample, ev.ID); err != nil {
			return fmt.Errorf("insert event %d: %w", i, err)
		}
	}

	for i, proj := range run.Projections {
		channels, err := json.Marshal(proj.ChannelNames)
		if err != nil {
			return fmt.Errorf("marshal projection %d channels: %w", i, err)
		}
		vector, err := json.Marshal(proj.Vector)
		if err != nil {
			return fmt.Errorf("marshal projection %d vector: %w", i, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO ssp_projections (run_id, seq, kind, description, active, channels_json, vector_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, run.RunID, i, proj.Kind.String(), proj.Desc, boolToInt(proj.Active),
			string(channels), string(vector)); err != nil {
			return fmt.Errorf("insert projection %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// GetRun loads a run with its events and projections.
func (s *Store) GetRun(runID string) (*Run, error) {
	var run Run
	var paramsJSON sql.NullString
	err := s.db.QueryRow(`
		SELECT run_id, mode, created_at_ns, sample_rate, params_json
		FROM ssp_runs WHERE run_id = ?
	`, runID).Scan(&run.RunID, &run.Mode, &run.CreatedAtNs, &run.SampleRate, &paramsJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if paramsJSON.Valid {
		run.ParamsJSON = json.RawMessage(paramsJSON.String)
	}

	if run.Events, err = s.runEvents(runID); err != nil {
		return nil, err
	}
	if run.Projections, err = s.runProjections(runID); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns all runs ordered newest first, without their events or
// projections.
func (s *Store) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, mode, created_at_ns, sample_rate
		FROM ssp_runs ORDER BY created_at_ns DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.RunID, &run.Mode, &run.CreatedAtNs, &run.SampleRate); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) runEvents(runID string) ([]events.Event, error) {
	rows, err := s.db.Query(`
		SELECT sample, event_id FROM ssp_events WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get run events: %w", err)
	}
	defer rows.Close()

	var evs []events.Event
	for rows.Next() {
		var ev events.Event
		if err := rows.Scan(&ev.Sample, &ev.ID); err != nil {
			return nil, fmt.Errorf("get run events: %w", err)
		}
		evs = append(evs, ev)
	}
	return evs, rows.Err()
}

func (s *Store) runProjections(runID string) ([]recording.Projection, error) {
	rows, err := s.db.Query(`
		SELECT kind, description, active, channels_json, vector_json
		FROM ssp_projections WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get run projections: %w", err)
	}
	defer rows.Close()

	var projs []recording.Projection
	for rows.Next() {
		var kind, channelsJSON, vectorJSON string
		var active int
		var proj recording.Projection
		if err := rows.Scan(&kind, &proj.Desc, &active, &channelsJSON, &vectorJSON); err != nil {
			return nil, fmt.Errorf("get run projections: %w", err)
		}
		proj.Kind = kindFromString(kind)
		proj.Active = active != 0
		if err := json.Unmarshal([]byte(channelsJSON), &proj.ChannelNames); err != nil {
			return nil, fmt.Errorf("unmarshal projection channels: %w", err)
		}
		if err := json.Unmarshal([]byte(vectorJSON), &proj.Vector); err != nil {
			return nil, fmt.Errorf("unmarshal projection vector: %w", err)
		}
		projs = append(projs, proj)
	}
	return projs, rows.Err()
}

func kindFromString(s string) recording.ChannelKind {
	switch s {
	case "grad":
		return recording.KindGrad
	case "mag":
		return recording.KindMag
	case "eeg":
		return recording.KindEEG
	case "eog":
		return recording.KindEOG
	case "ecg":
		return recording.KindECG
	case "stim":
		return recording.KindStim
	default:
		return recording.KindOther
	}
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
