package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fmd-data/sharing.report/internal/fmd"
)

// FitStore persists per-(ring, eta bin) energy-loss fit parameters.
type FitStore struct {
	db *sql.DB
}

// NewFitStore creates a new FitStore.
func NewFitStore(db *sql.DB) *FitStore {
	return &FitStore{db: db}
}

// Upsert stores the fit for one (ring, eta bin) cell, replacing any
// previous parameters.
func (s *FitStore) Upsert(ring fmd.Ring, etaBin int, p fmd.FitParams) error {
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO eloss_fits (ring, eta_bin, delta, xi, sigma, range_low, quality, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(ring, eta_bin) DO UPDATE SET
				delta = excluded.delta,
				xi = excluded.xi,
				sigma = excluded.sigma,
				range_low = excluded.range_low,
				quality = excluded.quality,
				updated_at = excluded.updated_at`,
			ring.String(), etaBin, p.Delta, p.Xi, p.Sigma, p.RangeLow, p.Quality,
			time.Now().UTC(),
		)
		return err
	})
}

// SaveAll replaces the whole fit table in one transaction.
func (s *FitStore) SaveAll(fits *fmd.ELossFit) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin fits tx: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM eloss_fits`); err != nil {
			return fmt.Errorf("clear fits: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO eloss_fits (ring, eta_bin, delta, xi, sigma, range_low, quality, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare fit insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, r := range fmd.Rings() {
			for b := 0; b < fits.Axis.Bins; b++ {
				p, ok := fits.At(r, b)
				if !ok {
					continue
				}
				if _, err := stmt.Exec(r.String(), b, p.Delta, p.Xi, p.Sigma, p.RangeLow, p.Quality, now); err != nil {
					return fmt.Errorf("insert fit %s bin %d: %w", r, b, err)
				}
			}
		}
		return tx.Commit()
	})
}

// Load reads the persisted fit table over the given axis. Rows outside the
// axis are skipped.
func (s *FitStore) Load(axis fmd.EtaAxis) (*fmd.ELossFit, error) {
	rows, err := s.db.Query(`
		SELECT ring, eta_bin, delta, xi, sigma, range_low, quality FROM eloss_fits`)
	if err != nil {
		return nil, fmt.Errorf("query fits: %w", err)
	}
	defer rows.Close()

	fits := fmd.NewELossFit(axis)
	for rows.Next() {
		var ring string
		var bin int
		var p fmd.FitParams
		if err := rows.Scan(&ring, &bin, &p.Delta, &p.Xi, &p.Sigma, &p.RangeLow, &p.Quality); err != nil {
			return nil, fmt.Errorf("scan fit: %w", err)
		}
		r, err := fmd.ParseRing(ring)
		if err != nil {
			return nil, err
		}
		if bin < 0 || bin >= axis.Bins {
			continue
		}
		if err := fits.Set(r, bin, p); err != nil {
			return nil, err
		}
	}
	return fits, rows.Err()
}

// Count returns the number of persisted fit cells.
func (s *FitStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM eloss_fits`).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}
