package pipeline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmd-data/sharing.report/internal/config"
	"github.com/fmd-data/sharing.report/internal/fmd"
	"github.com/fmd-data/sharing.report/internal/fmd/eventlog"
)

// fakeRecorder captures run lifecycle calls in memory.
type fakeRecorder struct {
	beginCalls  int
	finishCalls int
	failCalls   int
	savedCuts   *fmd.CutTable
	params      json.RawMessage
	stats       fmd.MergeStats
}

func (f *fakeRecorder) Begin(source string, vertexZ float64, params json.RawMessage) (string, error) {
	f.beginCalls++
	f.params = params
	return "run-1", nil
}

func (f *fakeRecorder) Finish(runID string, stats fmd.MergeStats) error {
	f.finishCalls++
	f.stats = stats
	return nil
}

func (f *fakeRecorder) Fail(runID string) error {
	f.failCalls++
	return nil
}

func (f *fakeRecorder) SaveCuts(runID string, table *fmd.CutTable) error {
	f.savedCuts = table
	return nil
}

func sharedPairEvent(seq int64) *fmd.Event {
	e := fmd.NewEvent()
	e.Sequence = seq
	e.FillGeometry()
	e.SetSignal(fmd.FMD1i, 3, 100, 0.5)
	e.SetSignal(fmd.FMD1i, 3, 101, 0.3)
	return e
}

func testFits() *fmd.ELossFit {
	return fmd.SyntheticELossFit(fmd.DefaultEtaAxis)
}

func TestRunnerProcessesSliceSource(t *testing.T) {
	rec := &fakeRecorder{}
	runner := NewRunner(config.EmptyTuningConfig(), testFits(), nil, rec)

	var sunk []*fmd.Event
	runner.Sink = func(e *fmd.Event) error {
		sunk = append(sunk, e.Clone())
		return nil
	}

	events := []*fmd.Event{sharedPairEvent(1), sharedPairEvent(2)}
	res, err := runner.Run(context.Background(), NewSliceSource(events), "memory")
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, int64(2), res.Events)
	assert.Equal(t, int64(2), res.Stats.Events)
	// Each event's falling pair merges into one two-strip cluster.
	assert.Equal(t, int64(2), res.Stats.Doubles[fmd.FMD1i])
	assert.Zero(t, res.Stats.TotalSingles())

	require.Len(t, sunk, 2)
	assert.Equal(t, int64(1), sunk[0].Sequence)
	merged := sunk[0].Signal(fmd.FMD1i, 3, 100)
	assert.Greater(t, merged, 0.5)
	assert.Zero(t, sunk[0].Signal(fmd.FMD1i, 3, 101))

	assert.Equal(t, 1, rec.beginCalls)
	assert.Equal(t, 1, rec.finishCalls)
	assert.Zero(t, rec.failCalls)
	require.NotNil(t, rec.savedCuts)
	assert.NotEmpty(t, rec.params)
}

func TestRunnerNilRecorderAndSink(t *testing.T) {
	runner := NewRunner(nil, testFits(), nil, nil)

	res, err := runner.Run(context.Background(), NewSliceSource([]*fmd.Event{sharedPairEvent(1)}), "memory")
	require.NoError(t, err)
	assert.Empty(t, res.RunID)
	assert.Equal(t, int64(1), res.Events)
}

func TestRunnerContextCancellation(t *testing.T) {
	rec := &fakeRecorder{}
	runner := NewRunner(config.EmptyTuningConfig(), testFits(), nil, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, NewSliceSource([]*fmd.Event{sharedPairEvent(1)}), "memory")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, rec.failCalls)
}

func TestRunnerFromEventLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.gob.gz")
	events := []*fmd.Event{sharedPairEvent(1), sharedPairEvent(2), sharedPairEvent(3)}
	require.NoError(t, eventlog.WriteFile(path, "runner test", events))

	src, err := OpenFileSource(path, 1.5)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, "runner test", src.Comment())

	runner := NewRunner(config.EmptyTuningConfig(), testFits(), nil, nil)
	res, err := runner.Run(context.Background(), src, path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Events)
	assert.Equal(t, int64(3), res.Stats.Doubles[fmd.FMD1i])
}

func TestFileSourceStampsVertex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.gob.gz")
	e := sharedPairEvent(1)
	e.VertexZ = 0
	require.NoError(t, eventlog.WriteFile(path, "", []*fmd.Event{e}))

	src, err := OpenFileSource(path, 2.5)
	require.NoError(t, err)
	defer src.Close()

	got, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, 2.5, got.VertexZ)
}

func TestSliceSourceExhausts(t *testing.T) {
	src := NewSliceSource([]*fmd.Event{sharedPairEvent(1)})
	_, err := src.Next()
	require.NoError(t, err)
	_, err = src.Next()
	assert.Error(t, err)
}
