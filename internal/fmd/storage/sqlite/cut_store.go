package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/fmd-data/sharing.report/internal/fmd"
)

// RunCut is one evaluated (ring, eta bin) threshold pair recorded for a run.
type RunCut struct {
	Ring    fmd.Ring `json:"ring"`
	EtaBin  int      `json:"eta_bin"`
	Eta     float64  `json:"eta"`
	LowCut  float64  `json:"low_cut"`
	HighCut float64  `json:"high_cut"`
}

// CutStore persists the evaluated cut tables of completed runs.
type CutStore struct {
	db *sql.DB
}

// NewCutStore creates a new CutStore.
func NewCutStore(db *sql.DB) *CutStore {
	return &CutStore{db: db}
}

// SaveTable records every (ring, eta bin) cut of a table for a run in one
// transaction. Saving twice for the same run replaces the previous table.
func (s *CutStore) SaveTable(runID string, table *fmd.CutTable) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin cuts tx: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM run_cuts WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("clear cuts for run %s: %w", runID, err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO run_cuts (run_id, ring, eta_bin, low_cut, high_cut)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare cut insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range fmd.Rings() {
			for b := 0; b < table.Axis.Bins; b++ {
				if _, err := stmt.Exec(runID, r.String(), b, table.Low[r][b], table.High[r][b]); err != nil {
					return fmt.Errorf("insert cut %s bin %d: %w", r, b, err)
				}
			}
		}
		return tx.Commit()
	})
}

// ListByRun returns the recorded cuts for one run and ring, ordered by bin.
// The eta column is reconstructed from the axis.
func (s *CutStore) ListByRun(runID string, ring fmd.Ring, axis fmd.EtaAxis) ([]RunCut, error) {
	rows, err := s.db.Query(`
		SELECT eta_bin, low_cut, high_cut
		FROM run_cuts
		WHERE run_id = ? AND ring = ?
		ORDER BY eta_bin`, runID, ring.String())
	if err != nil {
		return nil, fmt.Errorf("query cuts: %w", err)
	}
	defer rows.Close()

	var cuts []RunCut
	for rows.Next() {
		c := RunCut{Ring: ring}
		if err := rows.Scan(&c.EtaBin, &c.LowCut, &c.HighCut); err != nil {
			return nil, fmt.Errorf("scan cut: %w", err)
		}
		c.Eta = axis.Center(c.EtaBin)
		cuts = append(cuts, c)
	}
	return cuts, rows.Err()
}
