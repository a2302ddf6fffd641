package fmd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingShapes(t *testing.T) {
	t.Parallel()
	total := 0
	for _, r := range Rings() {
		if r.Inner() {
			assert.Equal(t, 20, r.Sectors(), r.String())
			assert.Equal(t, 512, r.Strips(), r.String())
		} else {
			assert.Equal(t, 40, r.Sectors(), r.String())
			assert.Equal(t, 256, r.Strips(), r.String())
		}
		total += r.Sectors() * r.Strips()
	}
	assert.Equal(t, NumStrips, total)
}

func TestRingDetector(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1, FMD1i.Detector())
	assert.Equal(t, 2, FMD2o.Detector())
	assert.Equal(t, 3, FMD3i.Detector())
}

func TestPackUnpackRoundTrip(t *testing.T) {
	t.Parallel()
	cases := []struct {
		ring   Ring
		sector int
		strip  int
	}{
		{FMD1i, 0, 0},
		{FMD1i, 19, 511},
		{FMD2i, 7, 100},
		{FMD2o, 39, 255},
		{FMD3i, 10, 0},
		{FMD3o, 0, 1},
	}
	for _, c := range cases {
		idx, err := Pack(c.ring, c.sector, c.strip)
		require.NoError(t, err)
		r, s, tt, err := Unpack(idx)
		require.NoError(t, err)
		assert.Equal(t, c.ring, r)
		assert.Equal(t, c.sector, s)
		assert.Equal(t, c.strip, tt)
	}
}

func TestPackRejectsBadAddresses(t *testing.T) {
	t.Parallel()
	_, err := Pack(FMD1i, 20, 0)
	assert.Error(t, err, "inner ring has 20 sectors")
	_, err = Pack(FMD2o, 0, 256)
	assert.Error(t, err, "outer ring has 256 strips")
	_, err = Pack(Ring(9), 0, 0)
	assert.Error(t, err)
	_, _, _, err = Unpack(NumStrips)
	assert.Error(t, err)
	_, _, _, err = Unpack(-1)
	assert.Error(t, err)
}

func TestPackIsContiguous(t *testing.T) {
	t.Parallel()
	last, err := Pack(FMD3o, 39, 255)
	require.NoError(t, err)
	assert.Equal(t, NumStrips-1, last)

	firstOuter, err := Pack(FMD2o, 0, 0)
	require.NoError(t, err)
	lastInner, err := Pack(FMD2i, 19, 511)
	require.NoError(t, err)
	assert.Equal(t, lastInner+1, firstOuter)
}

func TestParseRing(t *testing.T) {
	t.Parallel()
	r, err := ParseRing("fmd2O")
	require.NoError(t, err)
	assert.Equal(t, FMD2o, r)
	_, err = ParseRing("FMD4i")
	assert.Error(t, err)
}

func TestAngleCorrectRoundTrip(t *testing.T) {
	t.Parallel()
	for _, eta := range []float64{-3.2, -0.5, 0.8, 2.1, 4.9} {
		v := DeAngleCorrect(AngleCorrect(1.3, eta), eta)
		assert.InDelta(t, 1.3, v, 1e-12, "eta=%v", eta)
	}
}

func TestAngleCorrectShrinksSignal(t *testing.T) {
	t.Parallel()
	// A forward track crosses the silicon at a shallow angle and deposits
	// more energy; the correction projects it back below the raw value.
	assert.Less(t, AngleCorrect(1.0, 2.0), 1.0)
	assert.Greater(t, AngleCorrect(1.0, 2.0), 0.0)
}

func TestEtaFromStrip(t *testing.T) {
	t.Parallel()
	// FMD1 sits far forward: all strips should be at large positive eta,
	// with the innermost strip the most forward.
	etaIn := EtaFromStrip(FMD1i, 0, 0)
	etaOut := EtaFromStrip(FMD1i, 511, 0)
	assert.Greater(t, etaIn, etaOut)
	assert.Greater(t, etaOut, 2.0)

	// FMD3 points backward: negative eta.
	assert.Less(t, EtaFromStrip(FMD3i, 100, 0), 0.0)

	// Moving the vertex toward FMD1 makes its strips less forward.
	assert.Less(t, EtaFromStrip(FMD1i, 0, 50), EtaFromStrip(FMD1i, 0, 0))
}

func TestSectorPhiRange(t *testing.T) {
	t.Parallel()
	for _, r := range Rings() {
		for s := 0; s < r.Sectors(); s++ {
			phi := SectorPhi(r, s)
			assert.GreaterOrEqual(t, phi, 0.0)
			assert.Less(t, phi, 2*math.Pi)
		}
	}
}
