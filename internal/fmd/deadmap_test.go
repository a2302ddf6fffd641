package fmd

import (
	"strings"
	"testing"

	"github.com/fmd-data/sharing.report/internal/monitoring"
	"github.com/stretchr/testify/assert"
)

func TestDeadMapMarkAndQuery(t *testing.T) {
	m := NewDeadMap()
	m.MarkDead(FMD2o, 12, 200)
	m.MarkDead(FMD2o, 12, 200) // idempotent

	assert.True(t, m.IsDead(FMD2o, 12, 200))
	assert.False(t, m.IsDead(FMD2o, 12, 201))
	assert.Equal(t, 1, m.Count())
}

func TestDeadMapRegion(t *testing.T) {
	m := NewDeadMap()
	m.MarkDeadRegion(FMD1i, 2, 3, 10, 12)
	assert.Equal(t, 6, m.Count())
	assert.True(t, m.IsDead(FMD1i, 3, 11))
	assert.False(t, m.IsDead(FMD1i, 4, 11))
}

func TestDeadMapInvalidAddressWarns(t *testing.T) {
	var msgs []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		msgs = append(msgs, format)
	})
	defer monitoring.SetLogger(nil)

	m := NewDeadMap()
	m.MarkDead(FMD1i, 20, 0)  // sector out of range
	m.MarkDead(FMD2o, 0, 256) // strip out of range
	m.MarkDead(Ring(7), 0, 0) // no such ring

	assert.Equal(t, 0, m.Count())
	assert.Len(t, msgs, 3)
	for _, msg := range msgs {
		assert.True(t, strings.Contains(msg, "deadmap"), msg)
	}
}

func TestDeadMapStrips(t *testing.T) {
	m := NewDeadMap()
	m.MarkDead(FMD3o, 5, 100)
	m.MarkDead(FMD1i, 0, 1)

	got := m.Strips()
	assert.Equal(t, []DeadStrip{
		{Ring: FMD1i, Sector: 0, Strip: 1},
		{Ring: FMD3o, Sector: 5, Strip: 100},
	}, got)
}

func TestDeadMapNilSafe(t *testing.T) {
	var m *DeadMap
	assert.False(t, m.IsDead(FMD1i, 0, 0))
	assert.Equal(t, 0, m.Count())
	assert.Nil(t, m.Strips())
}
