package fmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSignalRoundTrip(t *testing.T) {
	t.Parallel()
	e := NewEvent()
	e.SetSignal(FMD2i, 4, 123, 0.75)
	assert.Equal(t, 0.75, e.Signal(FMD2i, 4, 123))
	assert.Zero(t, e.Signal(FMD2i, 4, 124))
}

func TestEventEtasStartInvalid(t *testing.T) {
	t.Parallel()
	e := NewEvent()
	assert.Equal(t, InvalidSignal, e.Eta(FMD1i, 0, 0))

	e.FillGeometry()
	assert.NotEqual(t, InvalidSignal, e.Eta(FMD1i, 0, 0))
	assert.InDelta(t, EtaFromStrip(FMD3o, 17, 0), e.Eta(FMD3o, 9, 17), 1e-12)
}

func TestEventPhiMatchesSector(t *testing.T) {
	t.Parallel()
	e := NewEvent()
	assert.InDelta(t, SectorPhi(FMD2o, 13), e.Phi(FMD2o, 13, 200), 1e-12)
}

func TestEventClear(t *testing.T) {
	t.Parallel()
	e := NewEvent()
	e.FillGeometry()
	e.SetSignal(FMD1i, 1, 2, 3)
	e.Clear()
	assert.Zero(t, e.Signal(FMD1i, 1, 2))
	// Geometry survives a clear.
	assert.NotEqual(t, InvalidSignal, e.Eta(FMD1i, 1, 2))
}

func TestEventClone(t *testing.T) {
	t.Parallel()
	e := NewEvent()
	e.Sequence = 7
	e.VertexZ = -2.5
	e.SetSignal(FMD3i, 2, 10, 1.5)

	c := e.Clone()
	assert.Equal(t, e.Sequence, c.Sequence)
	assert.Equal(t, e.VertexZ, c.VertexZ)
	assert.Equal(t, 1.5, c.Signal(FMD3i, 2, 10))

	c.SetSignal(FMD3i, 2, 10, 9)
	assert.Equal(t, 1.5, e.Signal(FMD3i, 2, 10), "clone must not alias")
}

func TestEventRecordRoundTrip(t *testing.T) {
	t.Parallel()
	e := NewEvent()
	e.Sequence = 42
	e.VertexZ = 1.25
	e.AngleCorrected = true
	e.FillGeometry()
	e.SetSignal(FMD2o, 30, 100, 0.6)

	rec := e.Record()
	back := FromRecord(rec)
	require.Equal(t, e.Sequence, back.Sequence)
	require.Equal(t, e.VertexZ, back.VertexZ)
	require.True(t, back.AngleCorrected)
	assert.Equal(t, 0.6, back.Signal(FMD2o, 30, 100))
	assert.Equal(t, e.Eta(FMD2o, 0, 100), back.Eta(FMD2o, 0, 100))
}
