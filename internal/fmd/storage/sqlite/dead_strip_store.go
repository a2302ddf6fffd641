package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fmd-data/sharing.report/internal/fmd"
)

// DeadStripStore persists the detector's dead-strip list.
type DeadStripStore struct {
	db *sql.DB
}

// NewDeadStripStore creates a new DeadStripStore.
func NewDeadStripStore(db *sql.DB) *DeadStripStore {
	return &DeadStripStore{db: db}
}

// Add marks one strip dead. Adding an already-dead strip updates its note.
func (s *DeadStripStore) Add(strip fmd.DeadStrip, note string) error {
	if _, err := fmd.Pack(strip.Ring, strip.Sector, strip.Strip); err != nil {
		return fmt.Errorf("invalid dead strip: %w", err)
	}
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO dead_strips (ring, sector, strip, note, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(ring, sector, strip) DO UPDATE SET note = excluded.note`,
			strip.Ring.String(), strip.Sector, strip.Strip, note, time.Now().UnixNano(),
		)
		return err
	})
}

// Remove revives a strip. Removing an unknown strip is not an error.
func (s *DeadStripStore) Remove(strip fmd.DeadStrip) error {
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			DELETE FROM dead_strips WHERE ring = ? AND sector = ? AND strip = ?`,
			strip.Ring.String(), strip.Sector, strip.Strip,
		)
		return err
	})
}

// List returns all dead strips ordered by ring, sector, strip.
func (s *DeadStripStore) List() ([]fmd.DeadStrip, error) {
	rows, err := s.db.Query(`
		SELECT ring, sector, strip FROM dead_strips ORDER BY ring, sector, strip`)
	if err != nil {
		return nil, fmt.Errorf("query dead strips: %w", err)
	}
	defer rows.Close()

	var strips []fmd.DeadStrip
	for rows.Next() {
		var ring string
		var ds fmd.DeadStrip
		if err := rows.Scan(&ring, &ds.Sector, &ds.Strip); err != nil {
			return nil, fmt.Errorf("scan dead strip: %w", err)
		}
		r, err := fmd.ParseRing(ring)
		if err != nil {
			return nil, err
		}
		ds.Ring = r
		strips = append(strips, ds)
	}
	return strips, rows.Err()
}

// LoadDeadMap builds a DeadMap from the persisted list for use by the
// filter.
func (s *DeadStripStore) LoadDeadMap() (*fmd.DeadMap, error) {
	strips, err := s.List()
	if err != nil {
		return nil, err
	}
	m := fmd.NewDeadMap()
	for _, ds := range strips {
		m.MarkDead(ds.Ring, ds.Sector, ds.Strip)
	}
	return m, nil
}
