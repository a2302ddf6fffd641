package pipeline

import (
	"encoding/json"

	"github.com/fmd-data/sharing.report/internal/fmd"
	storage "github.com/fmd-data/sharing.report/internal/fmd/storage/sqlite"
)

// StoreRecorder persists run lifecycle events through the sqlite stores.
type StoreRecorder struct {
	Runs *storage.RunStore
	Cuts *storage.CutStore
}

// NewStoreRecorder wraps the run and cut stores as a RunRecorder.
func NewStoreRecorder(runs *storage.RunStore, cuts *storage.CutStore) *StoreRecorder {
	return &StoreRecorder{Runs: runs, Cuts: cuts}
}

// Begin inserts a run in the running state and returns its id.
func (r *StoreRecorder) Begin(source string, vertexZ float64, params json.RawMessage) (string, error) {
	run := &storage.Run{Source: source, VertexZ: vertexZ, ParamsJSON: params}
	if err := r.Runs.Insert(run); err != nil {
		return "", err
	}
	return run.RunID, nil
}

// Finish marks the run complete with its merge counters.
func (r *StoreRecorder) Finish(runID string, stats fmd.MergeStats) error {
	return r.Runs.Finish(runID, stats)
}

// Fail marks the run failed.
func (r *StoreRecorder) Fail(runID string) error {
	return r.Runs.Fail(runID)
}

// SaveCuts records the evaluated cut table for the run.
func (r *StoreRecorder) SaveCuts(runID string, table *fmd.CutTable) error {
	return r.Cuts.SaveTable(runID, table)
}
