package fmd

import (
	"fmt"
)

// CutMethod selects how a signal threshold is derived from the energy-loss
// calibration.
type CutMethod int

const (
	// CutFixed uses a constant threshold.
	CutFixed CutMethod = iota
	// CutMPVFraction uses a fraction of the fitted most probable value.
	CutMPVFraction
	// CutLandauWidth uses Delta_p - NXi*(Xi [+ Sigma]); the usual high-cut
	// definition of "MPV minus so many widths".
	CutLandauWidth
	// CutFitRange uses the lower bound of the energy-loss fit range.
	CutFitRange
)

func (m CutMethod) String() string {
	switch m {
	case CutFixed:
		return "fixed"
	case CutMPVFraction:
		return "mpv-fraction"
	case CutLandauWidth:
		return "landau-width"
	case CutFitRange:
		return "fit-range"
	}
	return fmt.Sprintf("CutMethod(%d)", int(m))
}

// ParseCutMethod converts a config string to a CutMethod.
func ParseCutMethod(s string) (CutMethod, error) {
	switch s {
	case "fixed":
		return CutFixed, nil
	case "mpv-fraction":
		return CutMPVFraction, nil
	case "landau-width":
		return CutLandauWidth, nil
	case "fit-range":
		return CutFitRange, nil
	}
	return 0, fmt.Errorf("unknown cut method %q", s)
}

// CutSpec is a threshold policy evaluated per (ring, eta) against the
// energy-loss calibration. Fixed is both the CutFixed value and the floor
// returned when a calibration-derived cut comes out non-positive or the
// calibration cell is missing.
type CutSpec struct {
	Method       CutMethod `json:"method"`
	Fixed        float64   `json:"fixed"`
	MPVFraction  float64   `json:"mpv_fraction"`
	NXi          float64   `json:"n_xi"`
	IncludeSigma bool      `json:"include_sigma"`
}

// DefaultLowCut mirrors the standard sharing-filter low threshold.
func DefaultLowCut() CutSpec {
	return CutSpec{Method: CutFixed, Fixed: 0.15}
}

// DefaultHighCut is the most probable value minus one Landau width plus
// smear, the standard "several widths below the peak" high threshold.
func DefaultHighCut() CutSpec {
	return CutSpec{Method: CutLandauWidth, Fixed: 0.15, NXi: 1, IncludeSigma: true}
}

// Cut evaluates the threshold for one ring at the given pseudorapidity.
// The fits table may be nil for CutFixed.
func (c CutSpec) Cut(fits *ELossFit, r Ring, eta float64) float64 {
	v := c.Fixed
	switch c.Method {
	case CutFixed:
		return c.Fixed
	case CutMPVFraction, CutLandauWidth, CutFitRange:
		if fits == nil {
			return c.Fixed
		}
		p, ok := fits.Get(r, eta)
		if !ok {
			return c.Fixed
		}
		switch c.Method {
		case CutMPVFraction:
			v = c.MPVFraction * p.Delta
		case CutLandauWidth:
			w := p.Xi
			if c.IncludeSigma {
				w += p.Sigma
			}
			v = p.Delta - c.NXi*w
		case CutFitRange:
			v = p.RangeLow
		}
	}
	if v <= 0 {
		v = c.Fixed
	}
	return v
}

// CutTable is a precomputed low/high threshold lookup for one ring over an
// eta axis, built once per run and reused for every strip.
type CutTable struct {
	Axis EtaAxis
	Low  [NumRings][]float64
	High [NumRings][]float64
}

// BuildCutTable evaluates the low and high cut policies over the full axis
// for all five rings.
func BuildCutTable(axis EtaAxis, fits *ELossFit, low, high CutSpec) *CutTable {
	t := &CutTable{Axis: axis}
	for _, r := range Rings() {
		t.Low[r] = make([]float64, axis.Bins)
		t.High[r] = make([]float64, axis.Bins)
		for b := 0; b < axis.Bins; b++ {
			eta := axis.Center(b)
			t.Low[r][b] = low.Cut(fits, r, eta)
			t.High[r][b] = high.Cut(fits, r, eta)
		}
	}
	return t
}

// LowCut returns the low threshold for a ring at eta.
func (t *CutTable) LowCut(r Ring, eta float64) float64 {
	return t.Low[r][t.Axis.BinOf(eta)]
}

// HighCut returns the high threshold for a ring at eta.
func (t *CutTable) HighCut(r Ring, eta float64) float64 {
	return t.High[r][t.Axis.BinOf(eta)]
}
