package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/fmd-data/sharing.report/internal/fmd"
)

var seriesColors = []color.RGBA{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 255},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 255},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 255},
}

func histLine(h *fmd.Hist1D) (*plotter.Line, error) {
	centers := h.Centers()
	pts := make(plotter.XYs, 0, h.Bins)
	for i, c := range h.Count {
		pts = append(pts, plotter.XY{X: centers[i], Y: c})
	}
	return plotter.NewLine(pts)
}

// SaveClusterPlot writes the single/double/triple cluster spectra of one
// ring as a PNG.
func SaveClusterPlot(d *fmd.RingDiagnostics, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s merged clusters", d.Ring)
	p.X.Label.Text = "ΔE/ΔE_mip"
	p.Y.Label.Text = "entries"
	p.Legend.Top = true

	hists := []*fmd.Hist1D{d.Single, d.Double, d.Triple}
	names := []string{"single", "double", "triple"}
	for i, h := range hists {
		line, err := histLine(h)
		if err != nil {
			return fmt.Errorf("build %s series: %w", names[i], err)
		}
		line.Color = seriesColors[i%len(seriesColors)]
		p.Add(line)
		p.Legend.Add(names[i], line)
	}

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

// SaveEtaCoveragePlot writes the eta projection of one ring's per-event
// average merged signal as a PNG.
func SaveEtaCoveragePlot(d *fmd.RingDiagnostics, path string) error {
	proj := d.Sum.ProjectX()
	centers := d.Sum.XCenters()

	pts := make(plotter.XYs, 0, len(proj))
	for i, v := range proj {
		pts = append(pts, plotter.XY{X: centers[i], Y: v})
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("build eta projection: %w", err)
	}
	line.Color = seriesColors[0]

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s signal vs η", d.Ring)
	p.X.Label.Text = "η"
	p.Y.Label.Text = "signal per event"
	p.Add(line)

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

// SaveAll writes the per-ring plot files into outputDir, creating it if
// needed. Returns the written file paths.
func SaveAll(diag *fmd.Accumulator, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}

	var files []string
	for _, r := range fmd.Rings() {
		d := diag.Ring(r)

		clusterPath := filepath.Join(outputDir, fmt.Sprintf("%s_clusters.png", r))
		if err := SaveClusterPlot(d, clusterPath); err != nil {
			return files, err
		}
		files = append(files, clusterPath)

		etaPath := filepath.Join(outputDir, fmt.Sprintf("%s_eta.png", r))
		if err := SaveEtaCoveragePlot(d, etaPath); err != nil {
			return files, err
		}
		files = append(files, etaPath)
	}
	return files, nil
}
