// Package pipeline wires the event source, sharing filter, diagnostics and
// stores into one run of the correction.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fmd-data/sharing.report/internal/config"
	"github.com/fmd-data/sharing.report/internal/fmd"
	"github.com/fmd-data/sharing.report/internal/fmd/eventlog"
	"github.com/fmd-data/sharing.report/internal/monitoring"
)

// EventSource yields events one at a time. Next returns io.EOF when the
// source is exhausted.
type EventSource interface {
	Next() (*fmd.Event, error)
	Close() error
}

// RunRecorder is the subset of run persistence the runner needs. The
// sqlite RunStore satisfies it; tests use lighter fakes.
type RunRecorder interface {
	Begin(source string, vertexZ float64, params json.RawMessage) (runID string, err error)
	Finish(runID string, stats fmd.MergeStats) error
	Fail(runID string) error
	SaveCuts(runID string, table *fmd.CutTable) error
}

// Runner drives the sharing correction over an event source.
type Runner struct {
	cfg      *config.TuningConfig
	fits     *fmd.ELossFit
	dead     *fmd.DeadMap
	recorder RunRecorder

	// Sink receives each corrected event. Nil discards output events.
	Sink func(*fmd.Event) error

	// ProgressEvery controls how often progress is logged. Zero uses the
	// default of 1000 events.
	ProgressEvery int
}

// NewRunner assembles a runner from configuration, calibration and
// persistence. fits may be nil when both cut policies are fixed; dead and
// recorder may always be nil.
func NewRunner(cfg *config.TuningConfig, fits *fmd.ELossFit, dead *fmd.DeadMap, recorder RunRecorder) *Runner {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	return &Runner{cfg: cfg, fits: fits, dead: dead, recorder: recorder}
}

// Result summarises one completed run.
type Result struct {
	RunID    string
	Events   int64
	Stats    fmd.MergeStats
	Diag     *fmd.Accumulator
	Duration time.Duration
}

// Run processes every event from the source until io.EOF or context
// cancellation. The cut table is evaluated once up front and recorded with
// the run; diagnostics are normalised before returning.
func (r *Runner) Run(ctx context.Context, source EventSource, sourceName string) (*Result, error) {
	start := time.Now()

	axis := r.cfg.GetEtaAxis()
	table := fmd.BuildCutTable(axis, r.fits, r.cfg.GetLowCut(), r.cfg.GetHighCut())
	diag := fmd.NewAccumulator()

	filter, err := fmd.NewSharingFilter(r.cfg.GetFilterOptions(), table, r.dead, diag)
	if err != nil {
		return nil, err
	}

	var runID string
	if r.recorder != nil {
		params, err := json.Marshal(r.cfg)
		if err != nil {
			return nil, fmt.Errorf("marshal run params: %w", err)
		}
		runID, err = r.recorder.Begin(sourceName, r.cfg.GetVertexZ(), params)
		if err != nil {
			return nil, fmt.Errorf("record run start: %w", err)
		}
		if err := r.recorder.SaveCuts(runID, table); err != nil {
			return nil, fmt.Errorf("record cut table: %w", err)
		}
	}

	progressEvery := r.ProgressEvery
	if progressEvery <= 0 {
		progressEvery = 1000
	}

	output := fmd.NewEvent()
	var events int64
	for {
		select {
		case <-ctx.Done():
			r.fail(runID)
			return nil, ctx.Err()
		default:
		}

		in, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.fail(runID)
			return nil, fmt.Errorf("read event %d: %w", events, err)
		}

		if _, err := filter.Filter(in, output); err != nil {
			r.fail(runID)
			return nil, fmt.Errorf("filter event %d: %w", in.Sequence, err)
		}
		if r.Sink != nil {
			if err := r.Sink(output); err != nil {
				r.fail(runID)
				return nil, fmt.Errorf("sink event %d: %w", in.Sequence, err)
			}
		}

		events++
		if events%int64(progressEvery) == 0 {
			s := diag.Stats()
			monitoring.Logf("pipeline: %d events, %d singles, %d doubles, %d triples",
				events, s.TotalSingles(), s.TotalDoubles(), s.TotalTriples())
		}
	}

	diag.Finish()
	stats := diag.Stats()

	if r.recorder != nil {
		if err := r.recorder.Finish(runID, stats); err != nil {
			return nil, fmt.Errorf("record run finish: %w", err)
		}
	}

	elapsed := time.Since(start)
	monitoring.Logf("pipeline: run %s complete: %d events in %s", runID, events, elapsed.Round(time.Millisecond))

	return &Result{
		RunID:    runID,
		Events:   events,
		Stats:    stats,
		Diag:     diag,
		Duration: elapsed,
	}, nil
}

func (r *Runner) fail(runID string) {
	if r.recorder == nil || runID == "" {
		return
	}
	if err := r.recorder.Fail(runID); err != nil {
		monitoring.Logf("pipeline: mark run %s failed: %v", runID, err)
	}
}

// FileSource streams events from an event log on disk.
type FileSource struct {
	f  *os.File
	r  *eventlog.Reader
	vz float64
}

// OpenFileSource opens an event-log file. When recalculating eta the
// configured vertex is applied to every event read.
func OpenFileSource(path string, vertexZ float64) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := eventlog.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileSource{f: f, r: r, vz: vertexZ}, nil
}

// Comment returns the event log's header comment.
func (s *FileSource) Comment() string { return s.r.Comment() }

// Next returns the next event, stamping the configured vertex when the
// log carries none.
func (s *FileSource) Next() (*fmd.Event, error) {
	e, err := s.r.Next()
	if err != nil {
		return nil, err
	}
	if e.VertexZ == 0 && s.vz != 0 {
		e.VertexZ = s.vz
	}
	return e, nil
}

// Close releases the reader and the underlying file.
func (s *FileSource) Close() error {
	rerr := s.r.Close()
	ferr := s.f.Close()
	if rerr != nil {
		return rerr
	}
	return ferr
}

// SliceSource yields events from memory, for tests and synthetic runs.
type SliceSource struct {
	events []*fmd.Event
	pos    int
}

// NewSliceSource wraps a slice of events as an EventSource.
func NewSliceSource(events []*fmd.Event) *SliceSource {
	return &SliceSource{events: events}
}

// Next returns the next event or io.EOF.
func (s *SliceSource) Next() (*fmd.Event, error) {
	if s.pos >= len(s.events) {
		return nil, io.EOF
	}
	e := s.events[s.pos]
	s.pos++
	return e, nil
}

// Close is a no-op.
func (s *SliceSource) Close() error { return nil }
