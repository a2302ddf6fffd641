package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmd-data/sharing.report/internal/fmd"
)

func countHits(e *fmd.Event) int {
	n := 0
	for _, r := range fmd.Rings() {
		for s := 0; s < r.Sectors(); s++ {
			for t := 0; t < r.Strips(); t++ {
				if e.Signal(r, s, t) > 0 {
					n++
				}
			}
		}
	}
	return n
}

func TestGeneratorProducesHits(t *testing.T) {
	gen := NewGenerator(42)
	e := gen.Next()

	require.NotNil(t, e)
	assert.Equal(t, int64(1), e.Sequence)
	// 160 sectors at ~3 hits each; sharing adds extra struck strips.
	hits := countHits(e)
	assert.Greater(t, hits, 200)
	assert.Less(t, hits, 2000)
}

func TestGeneratorIsDeterministic(t *testing.T) {
	a := NewGenerator(7).Next()
	b := NewGenerator(7).Next()

	for _, r := range fmd.Rings() {
		for s := 0; s < r.Sectors(); s++ {
			for t1 := 0; t1 < r.Strips(); t1++ {
				if a.Signal(r, s, t1) != b.Signal(r, s, t1) {
					t.Fatalf("generators diverged at %s sector %d strip %d", r, s, t1)
				}
			}
		}
	}
}

func TestGeneratorSpectrumNearMPV(t *testing.T) {
	gen := NewGenerator(1)
	gen.SharingFraction = 0 // isolated hits only

	var sum float64
	var n int
	for i := 0; i < 20; i++ {
		e := gen.Next()
		for _, r := range fmd.Rings() {
			for s := 0; s < r.Sectors(); s++ {
				for t1 := 0; t1 < r.Strips(); t1++ {
					if v := e.Signal(r, s, t1); v > 0 {
						sum += v
						n++
					}
				}
			}
		}
	}
	require.Greater(t, n, 1000)
	mean := sum / float64(n)
	// The Landau tail pulls the mean above the most probable value.
	assert.Greater(t, mean, gen.Delta)
	assert.Less(t, mean, gen.Delta+10*gen.Xi)
}

func TestGeneratorSequenceIncrements(t *testing.T) {
	gen := NewGenerator(3)
	events := gen.Events(3)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Sequence)
	}
}
