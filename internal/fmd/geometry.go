// Package fmd implements the Forward Multiplicity Detector domain model:
// ring geometry, per-event strip signals, energy-loss calibration cuts and
// the adjacent-strip sharing correction filter.
package fmd

import (
	"fmt"
	"math"
)

// Ring identifies one of the five detector rings. FMD1 carries only an
// inner ring; FMD2 and FMD3 carry both an inner and an outer ring.
type Ring uint8

const (
	FMD1i Ring = iota
	FMD2i
	FMD2o
	FMD3i
	FMD3o
	NumRings
)

// Signal units are Delta/Delta_mip (energy loss scaled to the most probable
// loss of a minimum-ionising particle).

// InvalidSignal marks a strip with no usable reconstruction value, e.g. a
// channel the reconstruction flagged as bad.
const InvalidSignal = float64(1024)

// NumStrips is the total strip count across all five rings.
const NumStrips = 51200

var ringNames = [NumRings]string{"FMD1i", "FMD2i", "FMD2o", "FMD3i", "FMD3o"}

// ringGeom holds the per-ring shape and placement. Radii are in cm, z is the
// nominal distance from the interaction point along the beam axis in cm.
type ringGeom struct {
	sectors int
	strips  int
	rMin    float64
	rMax    float64
	z       float64
}

var geoms = [NumRings]ringGeom{
	FMD1i: {sectors: 20, strips: 512, rMin: 4.2, rMax: 17.2, z: 320.266},
	FMD2i: {sectors: 20, strips: 512, rMin: 4.2, rMax: 17.2, z: 83.666},
	FMD2o: {sectors: 40, strips: 256, rMin: 15.4, rMax: 28.4, z: 75.232},
	FMD3i: {sectors: 20, strips: 512, rMin: 4.2, rMax: 17.2, z: -63.066},
	FMD3o: {sectors: 40, strips: 256, rMin: 15.4, rMax: 28.4, z: -74.966},
}

// ringBase is the starting global strip index of each ring. Rings are laid
// out contiguously in declaration order; each ring spans sectors*strips
// indices. All five rings happen to span 10240 strips each.
var ringBase = [NumRings + 1]int{0, 10240, 20480, 30720, 40960, NumStrips}

func (r Ring) String() string {
	if r >= NumRings {
		return fmt.Sprintf("Ring(%d)", uint8(r))
	}
	return ringNames[r]
}

// Detector returns the sub-detector number (1..3) the ring belongs to.
func (r Ring) Detector() int {
	switch r {
	case FMD1i:
		return 1
	case FMD2i, FMD2o:
		return 2
	default:
		return 3
	}
}

// Inner reports whether the ring is an inner ring (20 sectors of 512 strips).
func (r Ring) Inner() bool { return r == FMD1i || r == FMD2i || r == FMD3i }

// Sectors returns the number of azimuthal sectors in the ring.
func (r Ring) Sectors() int { return geoms[r].sectors }

// Strips returns the number of radial strips per sector.
func (r Ring) Strips() int { return geoms[r].strips }

// Z returns the nominal z position of the ring plane in cm.
func (r Ring) Z() float64 { return geoms[r].z }

// Rings lists all five rings in global index order.
func Rings() []Ring { return []Ring{FMD1i, FMD2i, FMD2o, FMD3i, FMD3o} }

// ParseRing converts names like "FMD2o" or "fmd2O" to a Ring.
func ParseRing(s string) (Ring, error) {
	for i, n := range ringNames {
		if equalFold(s, n) {
			return Ring(i), nil
		}
	}
	return 0, fmt.Errorf("unknown ring %q", s)
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Pack converts (ring, sector, strip) to a global strip index.
// Returns an error when the address is outside the ring's extent.
func Pack(r Ring, sector, strip int) (int, error) {
	if r >= NumRings {
		return 0, fmt.Errorf("invalid ring %d", uint8(r))
	}
	g := geoms[r]
	if sector < 0 || sector >= g.sectors {
		return 0, fmt.Errorf("%s: sector %d out of range [0,%d)", r, sector, g.sectors)
	}
	if strip < 0 || strip >= g.strips {
		return 0, fmt.Errorf("%s: strip %d out of range [0,%d)", r, strip, g.strips)
	}
	return ringBase[r] + sector*g.strips + strip, nil
}

// Unpack converts a global strip index back to (ring, sector, strip).
func Unpack(idx int) (Ring, int, int, error) {
	if idx < 0 || idx >= NumStrips {
		return 0, 0, 0, fmt.Errorf("strip index %d out of range [0,%d)", idx, NumStrips)
	}
	r := Ring(0)
	for r < NumRings && idx >= ringBase[r+1] {
		r++
	}
	local := idx - ringBase[r]
	g := geoms[r]
	return r, local / g.strips, local % g.strips, nil
}

// StripRadius returns the mid-strip radial distance from the beam axis in cm.
func StripRadius(r Ring, strip int) float64 {
	g := geoms[r]
	pitch := (g.rMax - g.rMin) / float64(g.strips)
	return g.rMin + (float64(strip)+0.5)*pitch
}

// SectorPhi returns the mid-sector azimuth in radians, in [0, 2pi).
func SectorPhi(r Ring, sector int) float64 {
	return (float64(sector) + 0.5) * 2 * math.Pi / float64(geoms[r].sectors)
}

// EtaFromStrip computes the pseudorapidity of a strip as seen from an
// interaction vertex displaced by vz (cm) along the beam axis.
func EtaFromStrip(r Ring, strip int, vz float64) float64 {
	rad := StripRadius(r, strip)
	theta := math.Atan2(rad, geoms[r].z-vz)
	return -math.Log(math.Tan(theta / 2))
}

// Theta returns the polar angle corresponding to a pseudorapidity.
// Negative eta maps into the backward hemisphere.
func Theta(eta float64) float64 {
	theta := 2 * math.Atan(math.Exp(-eta))
	if eta < 0 {
		theta -= math.Pi
	}
	return theta
}

// AngleCorrect projects a traversal-length-dependent energy loss onto the
// particle's incidence angle, converting it to a normal-incidence equivalent.
func AngleCorrect(signal, eta float64) float64 {
	return signal * math.Cos(Theta(eta))
}

// DeAngleCorrect undoes AngleCorrect.
func DeAngleCorrect(signal, eta float64) float64 {
	return signal / math.Cos(Theta(eta))
}

// etaCos is cos(2 atan exp(-|eta|)), the geometric factor used when
// rescaling signals after a vertex-dependent eta recalculation.
func etaCos(eta float64) float64 {
	return math.Cos(2 * math.Atan(math.Exp(-math.Abs(eta))))
}
