package fmd

import (
	"fmt"
	"math"
)

// EtaAxis is a uniform pseudorapidity binning shared by calibration tables
// and diagnostics.
type EtaAxis struct {
	Bins int
	Min  float64
	Max  float64
}

// DefaultEtaAxis covers the FMD acceptance with 0.05-wide bins.
var DefaultEtaAxis = EtaAxis{Bins: 200, Min: -4, Max: 6}

// BinOf returns the bin index for eta, clamped to [0, Bins).
func (a EtaAxis) BinOf(eta float64) int {
	if a.Bins <= 0 {
		return 0
	}
	if math.IsNaN(eta) {
		return 0
	}
	b := int((eta - a.Min) / a.Width())
	if b < 0 {
		return 0
	}
	if b >= a.Bins {
		return a.Bins - 1
	}
	return b
}

// Center returns the centre of bin b.
func (a EtaAxis) Center(b int) float64 {
	return a.Min + (float64(b)+0.5)*a.Width()
}

// Width returns the bin width.
func (a EtaAxis) Width() float64 { return (a.Max - a.Min) / float64(a.Bins) }

// FitParams are the Landau-convolution parameters fitted to the per-strip
// energy-loss distribution in one (ring, eta bin) cell. Delta is the most
// probable energy loss, Xi the Landau width, Sigma the Gaussian smear, and
// RangeLow the lower edge of the fit range. Quality below a working
// threshold marks the cell as unusable.
type FitParams struct {
	Delta    float64 `json:"delta"`
	Xi       float64 `json:"xi"`
	Sigma    float64 `json:"sigma"`
	RangeLow float64 `json:"range_low"`
	Quality  int     `json:"quality"`
}

// MinFitQuality is the lowest Quality considered usable for cuts.
const MinFitQuality = 8

// Valid reports whether the cell carries a usable fit.
func (p FitParams) Valid() bool {
	return p.Quality >= MinFitQuality && p.Delta > 0 && p.Xi > 0
}

// ELossFit holds fitted energy-loss parameters for every ring and eta bin.
type ELossFit struct {
	Axis EtaAxis
	fits [NumRings][]FitParams
}

// NewELossFit allocates an empty fit table over the given axis.
func NewELossFit(axis EtaAxis) *ELossFit {
	f := &ELossFit{Axis: axis}
	for _, r := range Rings() {
		f.fits[r] = make([]FitParams, axis.Bins)
	}
	return f
}

// Set stores the fit for one (ring, eta bin) cell.
func (f *ELossFit) Set(r Ring, bin int, p FitParams) error {
	if bin < 0 || bin >= f.Axis.Bins {
		return fmt.Errorf("eta bin %d out of range [0,%d)", bin, f.Axis.Bins)
	}
	f.fits[r][bin] = p
	return nil
}

// At returns the raw fit stored in one (ring, eta bin) cell and whether it
// is usable. Unlike Get it never falls back to a neighbouring cell.
func (f *ELossFit) At(r Ring, bin int) (FitParams, bool) {
	if bin < 0 || bin >= f.Axis.Bins {
		return FitParams{}, false
	}
	p := f.fits[r][bin]
	return p, p.Valid()
}

// Get returns the fit for the eta bin containing eta. When that cell has no
// usable fit the nearest usable cell in the same ring is used instead,
// matching how sparse calibration tables are applied.
func (f *ELossFit) Get(r Ring, eta float64) (FitParams, bool) {
	bin := f.Axis.BinOf(eta)
	if f.fits[r][bin].Valid() {
		return f.fits[r][bin], true
	}
	for d := 1; d < f.Axis.Bins; d++ {
		if b := bin - d; b >= 0 && f.fits[r][b].Valid() {
			return f.fits[r][b], true
		}
		if b := bin + d; b < f.Axis.Bins && f.fits[r][b].Valid() {
			return f.fits[r][b], true
		}
	}
	return FitParams{}, false
}

// SyntheticELossFit builds a plausible fit table for tests and tooling:
// the most probable loss rises gently away from mid-rapidity and outer
// rings see slightly broader Landau tails.
func SyntheticELossFit(axis EtaAxis) *ELossFit {
	f := NewELossFit(axis)
	for _, r := range Rings() {
		width := 0.08
		if !r.Inner() {
			width = 0.10
		}
		for b := 0; b < axis.Bins; b++ {
			eta := axis.Center(b)
			f.fits[r][b] = FitParams{
				Delta:    0.8 + 0.02*math.Abs(eta),
				Xi:       width,
				Sigma:    0.05,
				RangeLow: 0.4,
				Quality:  10,
			}
		}
	}
	return f
}
