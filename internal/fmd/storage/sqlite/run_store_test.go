package sqlite

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmd-data/sharing.report/internal/fmd"
)

func TestRunStoreInsertAndGet(t *testing.T) {
	d := setupTestDB(t)
	store := NewRunStore(d.DB)

	run := &Run{
		Source:     "events.gob.gz",
		VertexZ:    2.5,
		ParamsJSON: json.RawMessage(`{"low_cut":0.15}`),
	}
	require.NoError(t, store.Insert(run))
	require.NotEmpty(t, run.RunID)

	got, err := store.Get(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, "events.gob.gz", got.Source)
	assert.Equal(t, 2.5, got.VertexZ)
	assert.Equal(t, RunStatusRunning, got.Status)
	assert.Zero(t, got.FinishedAt)
	assert.JSONEq(t, `{"low_cut":0.15}`, string(got.ParamsJSON))
}

func TestRunStoreGetMissing(t *testing.T) {
	d := setupTestDB(t)
	store := NewRunStore(d.DB)

	_, err := store.Get("no-such-run")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRunStoreFinishRecordsStats(t *testing.T) {
	d := setupTestDB(t)
	store := NewRunStore(d.DB)

	run := &Run{Source: "synthetic"}
	require.NoError(t, store.Insert(run))

	var stats fmd.MergeStats
	stats.Events = 100
	stats.Invalid = 7
	stats.Dead = 3
	stats.Singles[fmd.FMD1i] = 500
	stats.Doubles[fmd.FMD1i] = 120
	stats.Triples[fmd.FMD2o] = 9
	require.NoError(t, store.Finish(run.RunID, stats))

	got, err := store.Get(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, got.Status)
	require.NotZero(t, got.FinishedAt)
	assert.Equal(t, int64(100), got.Events)
	assert.Equal(t, int64(7), got.Invalid)
	assert.Equal(t, int64(3), got.Dead)

	rings, err := store.RingStats(run.RunID)
	require.NoError(t, err)
	require.Len(t, rings, len(fmd.Rings()))

	byRing := map[fmd.Ring]RingStats{}
	for _, rs := range rings {
		byRing[rs.Ring] = rs
	}
	assert.Equal(t, int64(500), byRing[fmd.FMD1i].Singles)
	assert.Equal(t, int64(120), byRing[fmd.FMD1i].Doubles)
	assert.Equal(t, int64(9), byRing[fmd.FMD2o].Triples)
	assert.Zero(t, byRing[fmd.FMD3i].Singles)
}

func TestRunStoreFinishUnknownRun(t *testing.T) {
	d := setupTestDB(t)
	store := NewRunStore(d.DB)

	err := store.Finish("missing", fmd.MergeStats{})
	assert.Error(t, err)
}

func TestRunStoreListOrdersNewestFirst(t *testing.T) {
	d := setupTestDB(t)
	store := NewRunStore(d.DB)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Insert(&Run{Source: "batch"}))
	}

	runs, err := store.List(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.GreaterOrEqual(t, runs[0].StartedAt, runs[1].StartedAt)
}

func TestRunStoreDeleteCascades(t *testing.T) {
	d := setupTestDB(t)
	store := NewRunStore(d.DB)

	run := &Run{Source: "synthetic"}
	require.NoError(t, store.Insert(run))
	require.NoError(t, store.Finish(run.RunID, fmd.MergeStats{Events: 1}))
	require.NoError(t, store.Delete(run.RunID))

	_, err := store.Get(run.RunID)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	rings, err := store.RingStats(run.RunID)
	require.NoError(t, err)
	assert.Empty(t, rings)
}

func TestRunStoreFail(t *testing.T) {
	d := setupTestDB(t)
	store := NewRunStore(d.DB)

	run := &Run{Source: "synthetic"}
	require.NoError(t, store.Insert(run))
	require.NoError(t, store.Fail(run.RunID))

	got, err := store.Get(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.NotZero(t, got.FinishedAt)
}
