// Command gen-events generates synthetic event logs for testing the
// sharing correction.
package main

import (
	"flag"
	"log"

	"github.com/fmd-data/sharing.report/internal/fmd/eventlog"
	"github.com/fmd-data/sharing.report/internal/fmd/synth"
)

func main() {
	output := flag.String("o", "events.gob.gz", "output path")
	events := flag.Int("n", 100, "number of events")
	seed := flag.Uint64("seed", 1, "random seed")
	hits := flag.Float64("hits", 3, "mean hits per sector")
	sharing := flag.Float64("sharing", 0.35, "fraction of hits shared across strips")
	vertexZ := flag.Float64("vz", 0, "event vertex z (cm)")
	flag.Parse()

	gen := synth.NewGenerator(*seed)
	gen.HitsPerSector = *hits
	gen.SharingFraction = *sharing
	gen.VertexZ = *vertexZ

	if err := eventlog.WriteFile(*output, "synthetic", gen.Events(*events)); err != nil {
		log.Fatalf("failed to write event log: %v", err)
	}
	log.Printf("wrote %d events to %s", *events, *output)
}
