package fmd

// Event holds one event's worth of per-strip energy-loss signals together
// with per-strip pseudorapidity and azimuth. Storage is dense: one flat
// slice per ring indexed by sector*strips+strip.
type Event struct {
	Sequence int64 // event sequence number within a run
	VertexZ  float64

	// AngleCorrected reports whether the stored signals have already been
	// projected onto the particle incidence angle.
	AngleCorrected bool

	signals [NumRings][]float64
	etas    [NumRings][]float64
	phis    [NumRings][]float64
}

// NewEvent allocates an event with all signals zero and all etas invalid.
func NewEvent() *Event {
	e := &Event{}
	for _, r := range Rings() {
		n := r.Sectors() * r.Strips()
		e.signals[r] = make([]float64, n)
		e.etas[r] = make([]float64, n)
		e.phis[r] = make([]float64, n)
		for i := range e.etas[r] {
			e.etas[r][i] = InvalidSignal
		}
		for s := 0; s < r.Sectors(); s++ {
			phi := SectorPhi(r, s)
			base := s * r.Strips()
			for t := 0; t < r.Strips(); t++ {
				e.phis[r][base+t] = phi
			}
		}
	}
	return e
}

func (e *Event) idx(r Ring, sector, strip int) int {
	return sector*r.Strips() + strip
}

// Signal returns the stored signal for a strip.
func (e *Event) Signal(r Ring, sector, strip int) float64 {
	return e.signals[r][e.idx(r, sector, strip)]
}

// SetSignal stores a signal for a strip.
func (e *Event) SetSignal(r Ring, sector, strip int, v float64) {
	e.signals[r][e.idx(r, sector, strip)] = v
}

// Eta returns the stored pseudorapidity for a strip.
func (e *Event) Eta(r Ring, sector, strip int) float64 {
	return e.etas[r][e.idx(r, sector, strip)]
}

// SetEta stores a pseudorapidity for a strip.
func (e *Event) SetEta(r Ring, sector, strip int, eta float64) {
	e.etas[r][e.idx(r, sector, strip)] = eta
}

// Phi returns the azimuth (radians) of the strip's sector.
func (e *Event) Phi(r Ring, sector, strip int) float64 {
	return e.phis[r][e.idx(r, sector, strip)]
}

// FillGeometry populates all strip etas from the ring geometry and the
// event's vertex position. Azimuths are fixed by construction.
func (e *Event) FillGeometry() {
	for _, r := range Rings() {
		for s := 0; s < r.Sectors(); s++ {
			base := s * r.Strips()
			for t := 0; t < r.Strips(); t++ {
				e.etas[r][base+t] = EtaFromStrip(r, t, e.VertexZ)
			}
		}
	}
}

// Clear zeroes all signals. Etas, phis and metadata are kept.
func (e *Event) Clear() {
	for _, r := range Rings() {
		sig := e.signals[r]
		for i := range sig {
			sig[i] = 0
		}
	}
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	out := &Event{
		Sequence:       e.Sequence,
		VertexZ:        e.VertexZ,
		AngleCorrected: e.AngleCorrected,
	}
	for _, r := range Rings() {
		out.signals[r] = append([]float64(nil), e.signals[r]...)
		out.etas[r] = append([]float64(nil), e.etas[r]...)
		out.phis[r] = append([]float64(nil), e.phis[r]...)
	}
	return out
}

// EventRecord is the serialisable form of Event used by the eventlog
// package for gob encoding.
type EventRecord struct {
	Sequence       int64
	VertexZ        float64
	AngleCorrected bool
	Signals        [NumRings][]float64
	Etas           [NumRings][]float64
}

// Record converts the event into its serialisable record form.
func (e *Event) Record() EventRecord {
	rec := EventRecord{
		Sequence:       e.Sequence,
		VertexZ:        e.VertexZ,
		AngleCorrected: e.AngleCorrected,
	}
	for _, r := range Rings() {
		rec.Signals[r] = append([]float64(nil), e.signals[r]...)
		rec.Etas[r] = append([]float64(nil), e.etas[r]...)
	}
	return rec
}

// FromRecord rebuilds an event from a record produced by Record.
func FromRecord(rec EventRecord) *Event {
	e := NewEvent()
	e.Sequence = rec.Sequence
	e.VertexZ = rec.VertexZ
	e.AngleCorrected = rec.AngleCorrected
	for _, r := range Rings() {
		copy(e.signals[r], rec.Signals[r])
		copy(e.etas[r], rec.Etas[r])
	}
	return e
}
