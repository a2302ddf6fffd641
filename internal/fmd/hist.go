package fmd

import (
	"gonum.org/v1/gonum/floats"
)

// Hist1D is a fixed uniform-binning histogram with under/overflow bins.
// It plays the role the analysis framework's 1D histograms play in the
// original correction: cheap diagnostic counters, not statistics objects.
type Hist1D struct {
	Name  string
	Bins  int
	Min   float64
	Max   float64
	Count []float64 // len Bins
	Under float64
	Over  float64
}

// NewHist1D allocates a histogram with the given binning.
func NewHist1D(name string, bins int, min, max float64) *Hist1D {
	return &Hist1D{Name: name, Bins: bins, Min: min, Max: max, Count: make([]float64, bins)}
}

// Fill adds a unit-weight entry.
func (h *Hist1D) Fill(x float64) { h.FillW(x, 1) }

// FillW adds a weighted entry.
func (h *Hist1D) FillW(x, w float64) {
	switch {
	case x < h.Min:
		h.Under += w
	case x >= h.Max:
		h.Over += w
	default:
		b := int((x - h.Min) / (h.Max - h.Min) * float64(h.Bins))
		if b == h.Bins { // x == Max after rounding
			b--
		}
		h.Count[b] += w
	}
}

// Entries returns the total in-range weight.
func (h *Hist1D) Entries() float64 {
	total := 0.0
	for _, c := range h.Count {
		total += c
	}
	return total
}

// Scale multiplies all bin contents (including under/overflow) by f.
func (h *Hist1D) Scale(f float64) {
	for i := range h.Count {
		h.Count[i] *= f
	}
	h.Under *= f
	h.Over *= f
}

// Centers returns the bin centre positions.
func (h *Hist1D) Centers() []float64 {
	w := (h.Max - h.Min) / float64(h.Bins)
	centers := make([]float64, h.Bins)
	floats.Span(centers, h.Min+w/2, h.Max-w/2)
	return centers
}

// Hist2D is a fixed uniform-binning 2D histogram. Out-of-range entries are
// dropped; the correction diagnostics never read 2D overflow.
type Hist2D struct {
	Name   string
	XBins  int
	XMin   float64
	XMax   float64
	YBins  int
	YMin   float64
	YMax   float64
	Count  []float64 // len XBins*YBins, row-major in y
	Filled int64
}

// NewHist2D allocates a 2D histogram with the given binning.
func NewHist2D(name string, xBins int, xMin, xMax float64, yBins int, yMin, yMax float64) *Hist2D {
	return &Hist2D{
		Name:  name,
		XBins: xBins, XMin: xMin, XMax: xMax,
		YBins: yBins, YMin: yMin, YMax: yMax,
		Count: make([]float64, xBins*yBins),
	}
}

func (h *Hist2D) bin(x, min, max float64, bins int) int {
	if x < min || x >= max {
		if x == max {
			return bins - 1
		}
		return -1
	}
	b := int((x - min) / (max - min) * float64(bins))
	if b == bins {
		b--
	}
	return b
}

// Fill adds a unit-weight entry.
func (h *Hist2D) Fill(x, y float64) { h.FillW(x, y, 1) }

// FillW adds a weighted entry.
func (h *Hist2D) FillW(x, y, w float64) {
	bx := h.bin(x, h.XMin, h.XMax, h.XBins)
	by := h.bin(y, h.YMin, h.YMax, h.YBins)
	if bx < 0 || by < 0 {
		return
	}
	h.Count[by*h.XBins+bx] += w
	h.Filled++
}

// At returns the content of bin (bx, by).
func (h *Hist2D) At(bx, by int) float64 { return h.Count[by*h.XBins+bx] }

// Scale multiplies all bin contents by f.
func (h *Hist2D) Scale(f float64) {
	for i := range h.Count {
		h.Count[i] *= f
	}
}

// ProjectX sums the histogram over y, returning per-x-bin totals.
func (h *Hist2D) ProjectX() []float64 {
	out := make([]float64, h.XBins)
	for by := 0; by < h.YBins; by++ {
		row := h.Count[by*h.XBins : (by+1)*h.XBins]
		for bx, v := range row {
			out[bx] += v
		}
	}
	return out
}

// XCenters returns the x bin centre positions.
func (h *Hist2D) XCenters() []float64 {
	w := (h.XMax - h.XMin) / float64(h.XBins)
	centers := make([]float64, h.XBins)
	floats.Span(centers, h.XMin+w/2, h.XMax-w/2)
	return centers
}
