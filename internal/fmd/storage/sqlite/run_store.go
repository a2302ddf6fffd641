// Package sqlite persists sharing-correction runs, cuts, dead strips and
// energy-loss fits in a local sqlite database.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fmd-data/sharing.report/internal/fmd"
)

// Run records one pass of the sharing correction over an event source.
// Timestamps are Unix nanoseconds; FinishedAt is zero while running.
type Run struct {
	RunID      string          `json:"run_id"`
	StartedAt  int64           `json:"started_at"`
	FinishedAt int64           `json:"finished_at,omitempty"`
	Source     string          `json:"source"`
	VertexZ    float64         `json:"vertex_z"`
	Events     int64           `json:"events"`
	ParamsJSON json.RawMessage `json:"params_json,omitempty"`
	Invalid    int64           `json:"invalid"`
	Dead       int64           `json:"dead"`
	Status     string          `json:"status"`
}

// RingStats holds the per-ring merge counters of a completed run.
type RingStats struct {
	Ring    fmd.Ring `json:"ring"`
	Singles int64    `json:"singles"`
	Doubles int64    `json:"doubles"`
	Triples int64    `json:"triples"`
}

// Run status values.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// RunStore provides persistence for sharing-correction runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Insert persists a new run in the running state. If RunID is empty a UUID
// is generated.
func (s *RunStore) Insert(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAt == 0 {
		run.StartedAt = time.Now().UnixNano()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	params := "{}"
	if len(run.ParamsJSON) > 0 {
		params = string(run.ParamsJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO runs (id, started_at, source, vertex_z, events, params_json, invalid, dead, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.StartedAt, run.Source, run.VertexZ,
			run.Events, params, run.Invalid, run.Dead, run.Status,
		)
		return err
	})
}

// Finish marks a run complete, records its totals and stores the per-ring
// merge counters in one transaction.
func (s *RunStore) Finish(runID string, stats fmd.MergeStats) error {
	finishedAt := time.Now().UnixNano()

	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin finish tx: %w", err)
		}
		defer tx.Rollback()

		res, err := tx.Exec(`
			UPDATE runs
			SET finished_at = ?, events = ?, invalid = ?, dead = ?, status = ?
			WHERE id = ?`,
			finishedAt, stats.Events, stats.Invalid, stats.Dead, RunStatusComplete, runID,
		)
		if err != nil {
			return fmt.Errorf("update run %s: %w", runID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("run %s not found", runID)
		}

		for _, r := range fmd.Rings() {
			if _, err := tx.Exec(`
				INSERT INTO run_ring_stats (run_id, ring, singles, doubles, triples)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(run_id, ring) DO UPDATE SET
					singles = excluded.singles,
					doubles = excluded.doubles,
					triples = excluded.triples`,
				runID, r.String(), stats.Singles[r], stats.Doubles[r], stats.Triples[r],
			); err != nil {
				return fmt.Errorf("insert ring stats for %s: %w", r, err)
			}
		}
		return tx.Commit()
	})
}

// Fail marks a run as failed without touching its counters.
func (s *RunStore) Fail(runID string) error {
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`UPDATE runs SET finished_at = ?, status = ? WHERE id = ?`,
			time.Now().UnixNano(), RunStatusFailed, runID)
		return err
	})
}

// Get returns a run by ID, or sql.ErrNoRows if it does not exist.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at, source, vertex_z, events, params_json, invalid, dead, status
		FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

// List returns the most recent runs, newest first.
func (s *RunStore) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, source, vertex_z, events, params_json, invalid, dead, status
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RingStats returns the per-ring merge counters recorded for a run.
func (s *RunStore) RingStats(runID string) ([]RingStats, error) {
	rows, err := s.db.Query(`
		SELECT ring, singles, doubles, triples
		FROM run_ring_stats WHERE run_id = ? ORDER BY ring`, runID)
	if err != nil {
		return nil, fmt.Errorf("query ring stats: %w", err)
	}
	defer rows.Close()

	var stats []RingStats
	for rows.Next() {
		var rs RingStats
		var ring string
		if err := rows.Scan(&ring, &rs.Singles, &rs.Doubles, &rs.Triples); err != nil {
			return nil, fmt.Errorf("scan ring stats: %w", err)
		}
		r, err := fmd.ParseRing(ring)
		if err != nil {
			return nil, err
		}
		rs.Ring = r
		stats = append(stats, rs)
	}
	return stats, rows.Err()
}

// Delete removes a run and, through foreign keys, its ring stats and cuts.
func (s *RunStore) Delete(runID string) error {
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, runID)
		return err
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var finishedAt sql.NullInt64
	var params sql.NullString
	err := row.Scan(&r.RunID, &r.StartedAt, &finishedAt, &r.Source, &r.VertexZ,
		&r.Events, &params, &r.Invalid, &r.Dead, &r.Status)
	if err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		r.FinishedAt = finishedAt.Int64
	}
	if params.Valid && params.String != "" {
		r.ParamsJSON = json.RawMessage(params.String)
	}
	return &r, nil
}
