package fmd

import (
	"github.com/fmd-data/sharing.report/internal/monitoring"
)

// DeadMap records strips known to be dead beyond what the reconstruction
// flags, as a bitset over global strip indices. The zero value is usable.
type DeadMap struct {
	bits []uint64
	n    int
}

// NewDeadMap returns an empty dead-strip map covering all rings.
func NewDeadMap() *DeadMap {
	return &DeadMap{bits: make([]uint64, (NumStrips+63)/64)}
}

// MarkDead flags one strip as dead. Invalid addressing is logged and
// ignored; the varied detector shapes make bad addresses a config-file
// hazard rather than a programming error.
func (m *DeadMap) MarkDead(r Ring, sector, strip int) {
	idx, err := Pack(r, sector, strip)
	if err != nil {
		monitoring.Logf("deadmap: ignoring %v", err)
		return
	}
	if m.bits == nil {
		m.bits = make([]uint64, (NumStrips+63)/64)
	}
	w, b := idx/64, uint(idx%64)
	if m.bits[w]&(1<<b) == 0 {
		m.bits[w] |= 1 << b
		m.n++
	}
}

// MarkDeadRegion flags the inclusive rectangle [s1,s2]x[t1,t2] as dead.
func (m *DeadMap) MarkDeadRegion(r Ring, s1, s2, t1, t2 int) {
	for s := s1; s <= s2; s++ {
		for t := t1; t <= t2; t++ {
			m.MarkDead(r, s, t)
		}
	}
}

// IsDead reports whether a strip has been flagged dead. Out-of-range
// addresses report false.
func (m *DeadMap) IsDead(r Ring, sector, strip int) bool {
	if m == nil || m.bits == nil {
		return false
	}
	idx, err := Pack(r, sector, strip)
	if err != nil {
		return false
	}
	return m.bits[idx/64]&(1<<uint(idx%64)) != 0
}

// Count returns the number of dead strips.
func (m *DeadMap) Count() int {
	if m == nil {
		return 0
	}
	return m.n
}

// DeadStrip is one dead-strip address, used for persistence and listings.
type DeadStrip struct {
	Ring   Ring `json:"ring"`
	Sector int  `json:"sector"`
	Strip  int  `json:"strip"`
}

// Strips enumerates all dead strips in global index order.
func (m *DeadMap) Strips() []DeadStrip {
	if m == nil || m.n == 0 {
		return nil
	}
	out := make([]DeadStrip, 0, m.n)
	for w, word := range m.bits {
		if word == 0 {
			continue
		}
		for b := 0; b < 64; b++ {
			if word&(1<<uint(b)) == 0 {
				continue
			}
			r, s, t, err := Unpack(w*64 + b)
			if err != nil {
				continue
			}
			out = append(out, DeadStrip{Ring: r, Sector: s, Strip: t})
		}
	}
	return out
}
