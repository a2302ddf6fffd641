package fmd

import (
	"errors"
)

// FilterOptions controls the sharing correction behaviour.
type FilterOptions struct {
	// CorrectAngles selects the working representation: when true the
	// filter operates on angle-corrected signals, otherwise on raw energy
	// loss. Output signals are always angle-corrected.
	CorrectAngles bool

	// ThreeStripSharing permits merging a third consecutive strip into a
	// pending cluster.
	ThreeStripSharing bool

	// RecalculateEta recomputes per-strip pseudorapidity from the ring
	// geometry and the event vertex, rescaling signals accordingly.
	RecalculateEta bool

	// InvalidIsEmpty treats reconstruction-invalid signals as empty
	// strips. Needed for data produced before invalid markers and dead
	// channels were kept separate; dead strips registered in the DeadMap
	// are unaffected.
	InvalidIsEmpty bool
}

// DefaultFilterOptions enables three-strip sharing and leaves everything
// else off.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{ThreeStripSharing: true}
}

// SharingFilter merges energy deposits shared across adjacent strips into
// single clusters. A particle crossing the detector near a strip boundary
// splits its charge over two or occasionally three neighbours; the filter
// re-assembles those fragments so downstream multiplicity estimates see one
// hit instead of several small ones.
type SharingFilter struct {
	opts FilterOptions
	cuts *CutTable
	dead *DeadMap
	diag *Accumulator
}

// NewSharingFilter builds a filter over precomputed cut tables. dead and
// diag may be nil.
func NewSharingFilter(opts FilterOptions, cuts *CutTable, dead *DeadMap, diag *Accumulator) (*SharingFilter, error) {
	if cuts == nil {
		return nil, errors.New("sharing filter requires a cut table")
	}
	return &SharingFilter{opts: opts, cuts: cuts, dead: dead, diag: diag}, nil
}

// Options returns the filter configuration.
func (f *SharingFilter) Options() FilterOptions { return f.opts }

// signalInStrip reads one strip and normalises it to the filter's working
// representation. Invalid and empty signals pass through untouched.
func (f *SharingFilter) signalInStrip(in *Event, r Ring, s, t int) float64 {
	m := in.Signal(r, s, t)
	if m == InvalidSignal || m == 0 ||
		(f.opts.CorrectAngles && in.AngleCorrected) ||
		(!f.opts.CorrectAngles && !in.AngleCorrected) {
		return m
	}
	if f.opts.CorrectAngles {
		return AngleCorrect(m, in.Eta(r, s, t))
	}
	return DeAngleCorrect(m, in.Eta(r, s, t))
}

// Filter runs the merging pass over every ring and sector of input,
// writing merged signals into output. Output is cleared first; consumed
// neighbour strips end up at zero and dead or invalid strips keep the
// invalid marker. Returns the per-ring cluster counts.
func (f *SharingFilter) Filter(input, output *Event) (MergeStats, error) {
	if input == nil || output == nil {
		return MergeStats{}, errors.New("nil event")
	}
	output.Clear()
	output.Sequence = input.Sequence
	output.VertexZ = input.VertexZ
	output.AngleCorrected = true

	stats := MergeStats{Events: 1}

	for _, r := range Rings() {
		var d *RingDiagnostics
		if f.diag != nil {
			d = f.diag.Ring(r)
		}
		nstr := r.Strips()
		for s := 0; s < r.Sectors(); s++ {
			// used flags that the current strip was consumed by the
			// previous iteration's merge.
			used := false
			// eTotal carries the pending sum of a 2-strip candidate
			// that may still grow to 3 strips; -1 means no candidate.
			eTotal := -1.0
			// twoLow flags two consecutive strips both between the
			// low and high cuts.
			twoLow := false

			for t := 0; t < nstr; t++ {
				output.SetSignal(r, s, t, 0)

				mult := f.signalInStrip(input, r, s, t)
				multNext := 0.0
				if t < nstr-1 {
					multNext = f.signalInStrip(input, r, s, t+1)
				}
				multNextNext := 0.0
				if t < nstr-2 {
					multNextNext = f.signalInStrip(input, r, s, t+2)
				}
				if multNext == InvalidSignal {
					multNext = 0
				}
				if multNextNext == InvalidSignal {
					multNextNext = 0
				}
				if !f.opts.ThreeStripSharing {
					multNextNext = 0
				}

				eta := input.Eta(r, s, t)
				phi := input.Phi(r, s, t)
				if s == 0 {
					output.SetEta(r, s, t, eta)
				}

				if f.opts.RecalculateEta {
					etaOld := eta
					eta = EtaFromStrip(r, t, input.VertexZ)
					if mult > 0 && mult != InvalidSignal {
						corr := etaCos(eta) / etaCos(etaOld)
						mult *= corr
						multNext *= corr
						multNextNext *= corr
					}
				}

				if mult == InvalidSignal && f.opts.InvalidIsEmpty {
					mult = 0
				}

				if mult == InvalidSignal || f.dead.IsDead(r, s, t) {
					output.SetSignal(r, s, t, InvalidSignal)
					if d != nil {
						d.Before.Fill(-1)
					}
					if mult == InvalidSignal {
						stats.Invalid++
					} else {
						stats.Dead++
					}
					mult = InvalidSignal
				}

				// Empty or unusable strip: flush any pending sum into
				// the previous strip and reset, so clusters never span
				// a dead strip.
				if mult == InvalidSignal || mult == 0 {
					if mult == 0 && d != nil {
						d.Sum.FillW(eta, phi, 0)
					}
					if eTotal > 0 && t > 0 {
						output.SetSignal(r, s, t-1, eTotal)
					}
					eTotal = -1
					used = false
					twoLow = false
					continue
				}

				if d != nil {
					d.Before.Fill(mult)
					if t < nstr-1 {
						d.NeighborsBefore.Fill(mult, multNext)
					}
				}

				lowCut := f.cuts.LowCut(r, eta)
				highCut := f.cuts.HighCut(r, eta)
				thisValid := mult > lowCut
				nextValid := multNext > lowCut
				thisSmall := mult < highCut
				nextSmall := multNext < highCut

				etot := 0.0
				if eTotal > 0 {
					// One strip is already pending. Absorb the next
					// strip as a third fragment when it stays inside
					// the sharing band, otherwise close out a double.
					if f.opts.ThreeStripSharing && nextValid && (nextSmall || twoLow) {
						eTotal += multNext
						used = true
						if d != nil {
							d.Triple.Fill(eTotal)
						}
						stats.Triples[r]++
						twoLow = false
					} else {
						used = false
						if d != nil {
							d.Double.Fill(eTotal)
						}
						stats.Doubles[r]++
					}
					etot = eTotal
					eTotal = -1
				} else {
					if used {
						used = false
						continue
					}
					if thisValid {
						etot = mult
					}
					if thisValid && nextValid && (thisSmall || nextSmall) {
						if thisSmall && nextSmall {
							twoLow = true
						}
						// A falling pair with nothing usable after it
						// merges immediately; otherwise defer in case a
						// third strip belongs to the cluster.
						if mult > multNext && multNextNext < lowCut {
							etot = mult + multNext
							used = true
							if d != nil {
								d.Double.Fill(etot)
							}
							stats.Doubles[r]++
						} else {
							etot = 0
							eTotal = mult + multNext
						}
					} else if etot > 0 {
						if d != nil {
							d.Single.Fill(etot)
							d.SinglePerStrip.Fill(etot, float64(t))
						}
						stats.Singles[r]++
					}
				}

				merged := etot
				if !f.opts.CorrectAngles {
					merged = AngleCorrect(merged, eta)
				}

				if d != nil {
					if t != 0 {
						d.NeighborsAfter.Fill(output.Signal(r, s, t-1), merged)
					}
					d.BeforeAfter.Fill(mult, merged)
					if merged > 0 {
						d.After.Fill(merged)
					}
					d.Sum.FillW(eta, phi, merged)
				}
				output.SetSignal(r, s, t, merged)
			}
		}
	}

	if f.diag != nil {
		f.diag.Record(stats)
	}
	return stats, nil
}
