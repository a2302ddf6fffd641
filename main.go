// Command fmd-filter applies the strip sharing correction to forward
// detector event logs and serves the run history and diagnostics over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fmd-data/sharing.report/internal/api"
	"github.com/fmd-data/sharing.report/internal/config"
	"github.com/fmd-data/sharing.report/internal/db"
	"github.com/fmd-data/sharing.report/internal/fmd"
	"github.com/fmd-data/sharing.report/internal/fmd/eventlog"
	"github.com/fmd-data/sharing.report/internal/fmd/pipeline"
	"github.com/fmd-data/sharing.report/internal/fmd/report"
	storage "github.com/fmd-data/sharing.report/internal/fmd/storage/sqlite"
	"github.com/fmd-data/sharing.report/internal/version"
)

var (
	listen        = flag.String("listen", ":8080", "HTTP listen address")
	dbFile        = flag.String("db", "sharing_data.db", "sqlite database path")
	migrationsDir = flag.String("migrations", "migrations", "schema migrations directory")
	configPath    = flag.String("config", "", "tuning config JSON (empty uses built-in defaults)")
	input         = flag.String("input", "", "event log to filter (.gob.gz); empty serves the API only")
	output        = flag.String("output", "", "write corrected events to this event log")
	reportDir     = flag.String("report-dir", "", "write per-ring PNG plots here after a run")
	serve         = flag.Bool("serve", true, "serve the HTTP API after any filter run")
	showVersion   = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("fmd-filter %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	d, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer d.Close()
	if err := d.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	runs := storage.NewRunStore(d.DB)
	cuts := storage.NewCutStore(d.DB)
	deadStrips := storage.NewDeadStripStore(d.DB)
	fitStore := storage.NewFitStore(d.DB)

	srv := api.NewServer(cfg, runs, cuts, deadStrips, fitStore)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *input != "" {
		if err := runFilter(ctx, cfg, d, srv); err != nil {
			log.Fatalf("filter run failed: %v", err)
		}
		if !*serve {
			return
		}
	} else if !*serve {
		log.Fatal("nothing to do: provide -input or enable -serve")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := srv.ServeMux()
		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("serving on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
	log.Printf("graceful shutdown complete")
}

// runFilter processes one event log end to end: load calibration, filter
// every event, persist the run and publish diagnostics to the server.
func runFilter(ctx context.Context, cfg *config.TuningConfig, d *db.DB, srv *api.Server) error {
	deadStore := storage.NewDeadStripStore(d.DB)
	dead, err := deadStore.LoadDeadMap()
	if err != nil {
		return fmt.Errorf("load dead strips: %w", err)
	}

	fitStore := storage.NewFitStore(d.DB)
	fits, err := fitStore.Load(cfg.GetEtaAxis())
	if err != nil {
		return fmt.Errorf("load energy-loss fits: %w", err)
	}

	source, err := pipeline.OpenFileSource(*input, cfg.GetVertexZ())
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer source.Close()

	runner := pipeline.NewRunner(cfg, fits, dead,
		pipeline.NewStoreRecorder(storage.NewRunStore(d.DB), storage.NewCutStore(d.DB)))

	var outWriter *eventlog.Writer
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("create output log: %w", err)
		}
		defer f.Close()
		outWriter, err = eventlog.NewWriter(f, "sharing-corrected from "+*input)
		if err != nil {
			return fmt.Errorf("open output log: %w", err)
		}
		runner.Sink = func(e *fmd.Event) error { return outWriter.Write(e) }
	}

	res, err := runner.Run(ctx, source, *input)
	if err != nil {
		return err
	}
	if outWriter != nil {
		if err := outWriter.Close(); err != nil {
			return fmt.Errorf("close output log: %w", err)
		}
	}

	log.Printf("run %s: %d events, %d singles, %d doubles, %d triples",
		res.RunID, res.Events,
		res.Stats.TotalSingles(), res.Stats.TotalDoubles(), res.Stats.TotalTriples())

	table := fmd.BuildCutTable(cfg.GetEtaAxis(), fits, cfg.GetLowCut(), cfg.GetHighCut())
	srv.SetDiagnostics(res.Diag, table)

	if *reportDir != "" {
		files, err := report.SaveAll(res.Diag, *reportDir)
		if err != nil {
			return fmt.Errorf("write report plots: %w", err)
		}
		log.Printf("wrote %d plot files to %s", len(files), *reportDir)
	}
	return nil
}
