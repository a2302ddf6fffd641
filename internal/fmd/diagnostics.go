package fmd

import (
	"math"
	"sync"
)

// RingDiagnostics collects the distributions the sharing correction is
// judged by for one ring: signal spectra before and after merging, merged
// cluster spectra by multiplicity, and neighbour correlations.
type RingDiagnostics struct {
	Ring Ring

	Before *Hist1D // raw signal spectrum; dead/invalid strips land at -1
	After  *Hist1D // merged signal spectrum

	Single         *Hist1D
	Double         *Hist1D
	Triple         *Hist1D
	SinglePerStrip *Hist2D

	BeforeAfter     *Hist2D
	NeighborsBefore *Hist2D
	NeighborsAfter  *Hist2D

	// Sum accumulates the merged signal over (eta, phi); scaled to a
	// per-event average by Accumulator.Finish.
	Sum *Hist2D
}

// NewRingDiagnostics allocates the diagnostic set for one ring.
func NewRingDiagnostics(r Ring) *RingDiagnostics {
	corrBins := 320
	return &RingDiagnostics{
		Ring:            r,
		Before:          NewHist1D("elossBefore", 640, -1, 15),
		After:           NewHist1D("elossAfter", 640, -1, 15),
		Single:          NewHist1D("elossSingle", 600, 0, 15),
		Double:          NewHist1D("elossDouble", 600, 0, 15),
		Triple:          NewHist1D("elossTriple", 600, 0, 15),
		SinglePerStrip:  NewHist2D("singlePerStrip", 600, 0, 15, r.Strips(), 0, float64(r.Strips())),
		BeforeAfter:     NewHist2D("beforeAfter", corrBins, -1, 15, corrBins, -1, 15),
		NeighborsBefore: NewHist2D("neighborsBefore", corrBins, -1, 15, corrBins, -1, 15),
		NeighborsAfter:  NewHist2D("neighborsAfter", corrBins, -1, 15, corrBins, -1, 15),
		Sum:             NewHist2D("summed", 200, -4, 6, r.Sectors(), 0, 2*math.Pi),
	}
}

// MergeStats counts the cluster multiplicities produced by one or more
// filter passes.
type MergeStats struct {
	Singles [NumRings]int64
	Doubles [NumRings]int64
	Triples [NumRings]int64
	Invalid int64
	Dead    int64
	Events  int64
}

// Add accumulates another stats record into s.
func (s *MergeStats) Add(o MergeStats) {
	for _, r := range Rings() {
		s.Singles[r] += o.Singles[r]
		s.Doubles[r] += o.Doubles[r]
		s.Triples[r] += o.Triples[r]
	}
	s.Invalid += o.Invalid
	s.Dead += o.Dead
	s.Events += o.Events
}

// TotalSingles sums single-strip clusters over all rings.
func (s *MergeStats) TotalSingles() int64 { return sumCounts(s.Singles) }

// TotalDoubles sums two-strip clusters over all rings.
func (s *MergeStats) TotalDoubles() int64 { return sumCounts(s.Doubles) }

// TotalTriples sums three-strip clusters over all rings.
func (s *MergeStats) TotalTriples() int64 { return sumCounts(s.Triples) }

func sumCounts(c [NumRings]int64) int64 {
	var t int64
	for _, v := range c {
		t += v
	}
	return t
}

// Accumulator owns the diagnostics for all rings plus run-level counters.
// Filter passes run single-threaded per event; the accumulator serialises
// concurrent recorders behind its mutex.
type Accumulator struct {
	mu     sync.Mutex
	rings  [NumRings]*RingDiagnostics
	stats  MergeStats
	events int64
	Cuts   *CutTable
}

// NewAccumulator allocates diagnostics for all five rings.
func NewAccumulator() *Accumulator {
	a := &Accumulator{}
	for _, r := range Rings() {
		a.rings[r] = NewRingDiagnostics(r)
	}
	return a
}

// Ring returns the diagnostics for one ring.
func (a *Accumulator) Ring(r Ring) *RingDiagnostics { return a.rings[r] }

// Record merges one event's stats into the run totals.
func (a *Accumulator) Record(s MergeStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.Add(s)
	a.events++
}

// Stats returns a copy of the accumulated counters.
func (a *Accumulator) Stats() MergeStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Events returns the number of recorded events.
func (a *Accumulator) Events() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.events
}

// Finish scales the summed (eta, phi) histograms to a per-event average.
// Call once, after the last event.
func (a *Accumulator) Finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.events == 0 {
		return
	}
	f := 1 / float64(a.events)
	for _, r := range Rings() {
		a.rings[r].Sum.Scale(f)
	}
}
