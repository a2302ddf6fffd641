package fmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCutSpecFixed(t *testing.T) {
	t.Parallel()
	c := CutSpec{Method: CutFixed, Fixed: 0.15}
	assert.Equal(t, 0.15, c.Cut(nil, FMD1i, 2.5))
}

func TestCutSpecLandauWidth(t *testing.T) {
	t.Parallel()
	fits := NewELossFit(EtaAxis{Bins: 4, Min: 0, Max: 4})
	require.NoError(t, fits.Set(FMD1i, 2, FitParams{Delta: 0.9, Xi: 0.1, Sigma: 0.05, RangeLow: 0.4, Quality: 10}))

	c := CutSpec{Method: CutLandauWidth, Fixed: 0.15, NXi: 2, IncludeSigma: false}
	assert.InDelta(t, 0.9-2*0.1, c.Cut(fits, FMD1i, 2.5), 1e-12)

	c.IncludeSigma = true
	assert.InDelta(t, 0.9-2*(0.1+0.05), c.Cut(fits, FMD1i, 2.5), 1e-12)
}

func TestCutSpecMPVFractionAndFitRange(t *testing.T) {
	t.Parallel()
	fits := NewELossFit(EtaAxis{Bins: 4, Min: 0, Max: 4})
	require.NoError(t, fits.Set(FMD2o, 1, FitParams{Delta: 0.8, Xi: 0.1, Sigma: 0.05, RangeLow: 0.42, Quality: 10}))

	frac := CutSpec{Method: CutMPVFraction, Fixed: 0.15, MPVFraction: 0.5}
	assert.InDelta(t, 0.4, frac.Cut(fits, FMD2o, 1.5), 1e-12)

	rng := CutSpec{Method: CutFitRange, Fixed: 0.15}
	assert.InDelta(t, 0.42, rng.Cut(fits, FMD2o, 1.5), 1e-12)
}

func TestCutFallsBackToFixed(t *testing.T) {
	t.Parallel()
	// Missing fits table, missing cell, and non-positive derived value all
	// fall back to the fixed floor.
	c := CutSpec{Method: CutLandauWidth, Fixed: 0.15, NXi: 1}
	assert.Equal(t, 0.15, c.Cut(nil, FMD1i, 2))

	empty := NewELossFit(EtaAxis{Bins: 4, Min: 0, Max: 4})
	assert.Equal(t, 0.15, c.Cut(empty, FMD1i, 2))

	fits := NewELossFit(EtaAxis{Bins: 4, Min: 0, Max: 4})
	require.NoError(t, fits.Set(FMD1i, 2, FitParams{Delta: 0.1, Xi: 0.2, Sigma: 0, RangeLow: 0.4, Quality: 10}))
	deep := CutSpec{Method: CutLandauWidth, Fixed: 0.15, NXi: 3}
	assert.Equal(t, 0.15, deep.Cut(fits, FMD1i, 2), "0.1-0.6 is negative")
}

func TestELossFitNearestUsableCell(t *testing.T) {
	t.Parallel()
	axis := EtaAxis{Bins: 10, Min: 0, Max: 10}
	fits := NewELossFit(axis)
	require.NoError(t, fits.Set(FMD1i, 7, FitParams{Delta: 0.9, Xi: 0.1, Sigma: 0.05, RangeLow: 0.4, Quality: 10}))

	// Bin 2 is empty; lookup walks outward to the usable cell at bin 7.
	p, ok := fits.Get(FMD1i, 2.5)
	require.True(t, ok)
	assert.Equal(t, 0.9, p.Delta)

	// Low-quality fits are skipped entirely.
	require.NoError(t, fits.Set(FMD1i, 3, FitParams{Delta: 5, Xi: 0.1, Quality: 2}))
	p, ok = fits.Get(FMD1i, 2.5)
	require.True(t, ok)
	assert.Equal(t, 0.9, p.Delta)
}

func TestEtaAxisClamps(t *testing.T) {
	t.Parallel()
	a := EtaAxis{Bins: 10, Min: -4, Max: 6}
	assert.Equal(t, 0, a.BinOf(-100))
	assert.Equal(t, 9, a.BinOf(100))
	assert.Equal(t, 4, a.BinOf(0.5-1e-9))
	assert.InDelta(t, -3.5, a.Center(0), 1e-12)
}

func TestBuildCutTable(t *testing.T) {
	t.Parallel()
	axis := EtaAxis{Bins: 20, Min: -4, Max: 6}
	fits := SyntheticELossFit(axis)
	table := BuildCutTable(axis, fits, DefaultLowCut(), DefaultHighCut())

	for _, r := range Rings() {
		for b := 0; b < axis.Bins; b++ {
			assert.Equal(t, 0.15, table.Low[r][b])
			assert.Greater(t, table.High[r][b], table.Low[r][b],
				"%s bin %d: high cut below low cut", r, b)
		}
	}

	// Outer rings carry wider Landau tails, hence lower high cuts.
	assert.Less(t, table.HighCut(FMD2o, 2), table.HighCut(FMD2i, 2))
}

func TestParseCutMethod(t *testing.T) {
	t.Parallel()
	for _, m := range []CutMethod{CutFixed, CutMPVFraction, CutLandauWidth, CutFitRange} {
		got, err := ParseCutMethod(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseCutMethod("bogus")
	assert.Error(t, err)
}
