// Package api serves the tuning parameters, run history and debug charts
// over HTTP.
package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fmd-data/sharing.report/internal/config"
	"github.com/fmd-data/sharing.report/internal/fmd"
	"github.com/fmd-data/sharing.report/internal/fmd/report"
	storage "github.com/fmd-data/sharing.report/internal/fmd/storage/sqlite"
	"github.com/fmd-data/sharing.report/internal/httputil"
	"github.com/fmd-data/sharing.report/internal/monitoring"
	"github.com/fmd-data/sharing.report/internal/version"
)

// ANSI escape codes for request logging
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// Server exposes the correction's parameters, run history and diagnostics.
type Server struct {
	runs *storage.RunStore
	cuts *storage.CutStore
	dead *storage.DeadStripStore
	fits *storage.FitStore

	mu   sync.RWMutex
	cfg  *config.TuningConfig
	diag *fmd.Accumulator
	// lastTable is the cut table of the most recent in-process run,
	// backing the debug chart pages.
	lastTable *fmd.CutTable
}

// NewServer builds a server over the sqlite stores. cfg may be nil for
// all-defaults.
func NewServer(cfg *config.TuningConfig, runs *storage.RunStore, cuts *storage.CutStore, dead *storage.DeadStripStore, fits *storage.FitStore) *Server {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	return &Server{cfg: cfg, runs: runs, cuts: cuts, dead: dead, fits: fits}
}

// Config returns the current tuning configuration.
func (s *Server) Config() *config.TuningConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetDiagnostics publishes a finished run's accumulator and cut table to
// the debug chart pages.
func (s *Server) SetDiagnostics(diag *fmd.Accumulator, table *fmd.CutTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diag = diag
	s.lastTable = table
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/params", s.handleParams)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/", s.handleRun)
	mux.HandleFunc("/api/deadstrips", s.handleDeadStrips)
	mux.HandleFunc("/api/fits", s.showFits)
	mux.HandleFunc("/debug/charts/rings/", s.showRingCharts)
	mux.HandleFunc("/debug/charts/summary", s.showSummaryCharts)
	return mux
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.RLock()
		cfg := s.cfg
		s.mu.RUnlock()
		httputil.WriteJSONOK(w, cfg)
	case http.MethodPost:
		patch := config.EmptyTuningConfig()
		if err := httputil.DecodeJSON(r, patch); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if err := patch.Validate(); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		s.mu.Lock()
		s.cfg = s.cfg.Merge(patch)
		merged := s.cfg
		s.mu.Unlock()
		httputil.WriteJSONOK(w, merged)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = v
	}
	runs, err := s.runs.List(limit)
	if err != nil {
		httputil.InternalServerError(w, "failed to list runs: "+err.Error())
		return
	}
	if runs == nil {
		runs = []*storage.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

// runResponse bundles a run row with its per-ring counters.
type runResponse struct {
	*storage.Run
	RingStats []storage.RingStats `json:"ring_stats,omitempty"`
}

// handleRun serves /api/runs/{id} and /api/runs/{id}/cuts.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		httputil.NotFound(w, "missing run id")
		return
	}
	runID := parts[0]

	if len(parts) == 2 && parts[1] == "cuts" {
		s.showRunCuts(w, r, runID)
		return
	}
	if len(parts) != 1 {
		httputil.NotFound(w, "unknown path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		run, err := s.runs.Get(runID)
		if errors.Is(err, sql.ErrNoRows) {
			httputil.NotFound(w, "run not found")
			return
		}
		if err != nil {
			httputil.InternalServerError(w, "failed to load run: "+err.Error())
			return
		}
		stats, err := s.runs.RingStats(runID)
		if err != nil {
			httputil.InternalServerError(w, "failed to load ring stats: "+err.Error())
			return
		}
		httputil.WriteJSONOK(w, runResponse{Run: run, RingStats: stats})
	case http.MethodDelete:
		if _, err := s.runs.Get(runID); errors.Is(err, sql.ErrNoRows) {
			httputil.NotFound(w, "run not found")
			return
		}
		if err := s.runs.Delete(runID); err != nil {
			httputil.InternalServerError(w, "failed to delete run: "+err.Error())
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"deleted": runID})
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) showRunCuts(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	ring := fmd.FMD1i
	if q := r.URL.Query().Get("ring"); q != "" {
		parsed, err := fmd.ParseRing(q)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		ring = parsed
	}
	s.mu.RLock()
	axis := s.cfg.GetEtaAxis()
	s.mu.RUnlock()

	cuts, err := s.cuts.ListByRun(runID, ring, axis)
	if err != nil {
		httputil.InternalServerError(w, "failed to load cuts: "+err.Error())
		return
	}
	if cuts == nil {
		cuts = []storage.RunCut{}
	}
	httputil.WriteJSONOK(w, cuts)
}

// deadStripRequest is the POST/DELETE body for /api/deadstrips.
type deadStripRequest struct {
	Ring   string `json:"ring"`
	Sector int    `json:"sector"`
	Strip  int    `json:"strip"`
	Note   string `json:"note,omitempty"`
}

func (s *Server) handleDeadStrips(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		strips, err := s.dead.List()
		if err != nil {
			httputil.InternalServerError(w, "failed to list dead strips: "+err.Error())
			return
		}
		if strips == nil {
			strips = []fmd.DeadStrip{}
		}
		httputil.WriteJSONOK(w, strips)
	case http.MethodPost, http.MethodDelete:
		var req deadStripRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		ring, err := fmd.ParseRing(req.Ring)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		ds := fmd.DeadStrip{Ring: ring, Sector: req.Sector, Strip: req.Strip}
		if r.Method == http.MethodPost {
			err = s.dead.Add(ds, req.Note)
		} else {
			err = s.dead.Remove(ds)
		}
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, ds)
	default:
		httputil.MethodNotAllowed(w)
	}
}

// fitCell is one (ring, eta bin) row of the calibration table.
type fitCell struct {
	EtaBin int           `json:"eta_bin"`
	Eta    float64       `json:"eta"`
	Params fmd.FitParams `json:"params"`
}

// showFits returns the usable calibration cells for one ring.
func (s *Server) showFits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	ring := fmd.FMD1i
	if q := r.URL.Query().Get("ring"); q != "" {
		parsed, err := fmd.ParseRing(q)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		ring = parsed
	}
	s.mu.RLock()
	axis := s.cfg.GetEtaAxis()
	s.mu.RUnlock()

	table, err := s.fits.Load(axis)
	if err != nil {
		httputil.InternalServerError(w, "failed to load fits: "+err.Error())
		return
	}
	cells := []fitCell{}
	for b := 0; b < axis.Bins; b++ {
		if p, ok := table.At(ring, b); ok {
			cells = append(cells, fitCell{EtaBin: b, Eta: axis.Center(b), Params: p})
		}
	}
	httputil.WriteJSONOK(w, cells)
}

// showRingCharts renders /debug/charts/rings/{ring} for the most recent
// in-process run.
func (s *Server) showRingCharts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/debug/charts/rings/")
	ring, err := fmd.ParseRing(strings.Trim(name, "/"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	s.mu.RLock()
	diag, table := s.diag, s.lastTable
	s.mu.RUnlock()
	if diag == nil || table == nil {
		httputil.NotFound(w, "no diagnostics available; run the filter first")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteRingReport(w, diag, table, ring); err != nil {
		monitoring.Logf("api: render ring charts: %v", err)
	}
}

func (s *Server) showSummaryCharts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	s.mu.RLock()
	diag, table := s.diag, s.lastTable
	s.mu.RUnlock()
	if diag == nil || table == nil {
		httputil.NotFound(w, "no diagnostics available; run the filter first")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteSummaryReport(w, diag, table); err != nil {
		monitoring.Logf("api: render summary charts: %v", err)
	}
}
