// Package synth generates synthetic detector events for testing and demos.
package synth

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fmd-data/sharing.report/internal/fmd"
)

// Generator produces events whose energy-loss spectrum follows a smeared
// Landau approximation, with a configurable fraction of hits split across
// neighbouring strips.
type Generator struct {
	// Configuration
	HitsPerSector   float64 // mean hits per sector per event
	SharingFraction float64 // fraction of hits split over two strips
	TripleFraction  float64 // fraction of shared hits leaking into a third strip
	Delta           float64 // most probable energy loss
	Xi              float64 // Landau width
	Sigma           float64 // Gaussian smear
	VertexZ         float64

	seq    int64
	rng    *rand.Rand
	normal distuv.Normal
}

// NewGenerator creates a generator with spectrum parameters matching the
// synthetic calibration tables.
func NewGenerator(seed uint64) *Generator {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Generator{
		HitsPerSector:   3,
		SharingFraction: 0.35,
		TripleFraction:  0.1,
		Delta:           0.8,
		Xi:              0.08,
		Sigma:           0.05,
		rng:             rand.New(src),
		normal:          distuv.Normal{Mu: 0, Sigma: 1, Src: src},
	}
}

// moyal samples the Moyal approximation to the Landau distribution: the
// negative log of a chi-squared(1) variate.
func (g *Generator) moyal() float64 {
	z := g.normal.Rand()
	return -math.Log(z * z)
}

// eloss draws one hit's energy loss.
func (g *Generator) eloss() float64 {
	v := g.Delta + g.Xi*g.moyal() + g.Sigma*g.normal.Rand()
	if v < 0.05 {
		v = 0.05
	}
	return v
}

// Next generates the next event. Hit counts per sector are Poissonian with
// mean HitsPerSector; shared hits split their charge over adjacent strips
// the way a boundary crossing does.
func (g *Generator) Next() *fmd.Event {
	g.seq++
	e := fmd.NewEvent()
	e.Sequence = g.seq
	e.VertexZ = g.VertexZ
	e.FillGeometry()

	poisson := distuv.Poisson{Lambda: g.HitsPerSector, Src: g.rng}
	for _, r := range fmd.Rings() {
		nstr := r.Strips()
		for s := 0; s < r.Sectors(); s++ {
			hits := int(poisson.Rand())
			for h := 0; h < hits; h++ {
				t := g.rng.IntN(nstr)
				total := g.eloss()

				if g.rng.Float64() >= g.SharingFraction || t >= nstr-1 {
					g.deposit(e, r, s, t, total)
					continue
				}

				// Split across the strip boundary, biased so the first
				// strip usually carries the larger fragment.
				frac := 0.5 + 0.35*g.rng.Float64()
				g.deposit(e, r, s, t, frac*total)
				rest := (1 - frac) * total
				if g.rng.Float64() < g.TripleFraction && t < nstr-2 {
					g.deposit(e, r, s, t+1, 0.7*rest)
					g.deposit(e, r, s, t+2, 0.3*rest)
				} else {
					g.deposit(e, r, s, t+1, rest)
				}
			}
		}
	}
	return e
}

// deposit adds signal to a strip, accumulating if the strip already fired.
func (g *Generator) deposit(e *fmd.Event, r fmd.Ring, s, t int, v float64) {
	e.SetSignal(r, s, t, e.Signal(r, s, t)+v)
}

// Events generates n events.
func (g *Generator) Events(n int) []*fmd.Event {
	out := make([]*fmd.Event, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.Next())
	}
	return out
}
