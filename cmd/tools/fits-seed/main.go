// Command fits-seed populates the database with plausible energy-loss fit
// parameters for every ring and eta bin, so the correction can run before
// real calibration data exists.
package main

import (
	"flag"
	"log"

	"github.com/fmd-data/sharing.report/internal/db"
	"github.com/fmd-data/sharing.report/internal/fmd"
	storage "github.com/fmd-data/sharing.report/internal/fmd/storage/sqlite"
)

func main() {
	dbFile := flag.String("db", "sharing_data.db", "sqlite database path")
	migrationsDir := flag.String("migrations", "migrations", "schema migrations directory")
	bins := flag.Int("bins", fmd.DefaultEtaAxis.Bins, "eta bins")
	etaMin := flag.Float64("eta-min", fmd.DefaultEtaAxis.Min, "eta axis lower edge")
	etaMax := flag.Float64("eta-max", fmd.DefaultEtaAxis.Max, "eta axis upper edge")
	flag.Parse()

	d, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer d.Close()
	if err := d.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	axis := fmd.EtaAxis{Bins: *bins, Min: *etaMin, Max: *etaMax}
	store := storage.NewFitStore(d.DB)
	if err := store.SaveAll(fmd.SyntheticELossFit(axis)); err != nil {
		log.Fatalf("failed to seed fits: %v", err)
	}

	n, err := store.Count()
	if err != nil {
		log.Fatalf("failed to count fits: %v", err)
	}
	log.Printf("seeded %d fit cells into %s", n, *dbFile)
}
