// Package report renders the correction diagnostics as browsable charts
// and publication-style plot files.
package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/fmd-data/sharing.report/internal/fmd"
)

// EChartsAssetsHost overrides where chart HTML loads its scripts from.
// Empty uses the go-echarts default CDN.
var EChartsAssetsHost = ""

func initOpts(title, subtitle string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px", AssetsHost: EChartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	}
}

func lineData(h *fmd.Hist1D) []opts.LineData {
	data := make([]opts.LineData, h.Bins)
	for i, c := range h.Count {
		data[i] = opts.LineData{Value: c}
	}
	return data
}

func axisLabels(centers []float64) []string {
	labels := make([]string, len(centers))
	for i, c := range centers {
		labels[i] = fmt.Sprintf("%.3f", c)
	}
	return labels
}

// SpectrumStats returns the count-weighted mean and standard deviation of a
// spectrum histogram. An empty histogram returns zeros.
func SpectrumStats(h *fmd.Hist1D) (mean, stddev float64) {
	if floats.Sum(h.Count) == 0 {
		return 0, 0
	}
	centers := h.Centers()
	mean = stat.Mean(centers, h.Count)
	stddev = math.Sqrt(stat.Variance(centers, h.Count))
	return mean, stddev
}

// ELossChart plots the raw and merged energy-loss spectra of one ring on a
// log-friendly line chart.
func ELossChart(d *fmd.RingDiagnostics) *charts.Line {
	beforeMean, _ := SpectrumStats(d.Before)
	afterMean, _ := SpectrumStats(d.After)

	line := charts.NewLine()
	line.SetGlobalOptions(append(initOpts(
		fmt.Sprintf("%s energy loss", d.Ring),
		fmt.Sprintf("signal spectrum before and after strip merging (mean %.3f → %.3f)", beforeMean, afterMean),
	), charts.WithXAxisOpts(opts.XAxis{Name: "ΔE/ΔE_mip"}))...)

	line.SetXAxis(axisLabels(d.Before.Centers())).
		AddSeries("before", lineData(d.Before)).
		AddSeries("after", lineData(d.After)).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Symbol: "none"}))
	return line
}

// ClusterChart plots the per-multiplicity cluster spectra of one ring.
func ClusterChart(d *fmd.RingDiagnostics) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(append(initOpts(
		fmt.Sprintf("%s merged clusters", d.Ring),
		"cluster energy by number of contributing strips",
	), charts.WithXAxisOpts(opts.XAxis{Name: "ΔE/ΔE_mip"}))...)

	line.SetXAxis(axisLabels(d.Single.Centers())).
		AddSeries("single", lineData(d.Single)).
		AddSeries("double", lineData(d.Double)).
		AddSeries("triple", lineData(d.Triple)).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Symbol: "none"}))
	return line
}

// CutsChart plots the low and high thresholds of one ring against
// pseudorapidity.
func CutsChart(table *fmd.CutTable, r fmd.Ring) *charts.Line {
	axis := table.Axis
	centers := make([]float64, axis.Bins)
	low := make([]opts.LineData, axis.Bins)
	high := make([]opts.LineData, axis.Bins)
	for b := 0; b < axis.Bins; b++ {
		centers[b] = axis.Center(b)
		low[b] = opts.LineData{Value: table.Low[r][b]}
		high[b] = opts.LineData{Value: table.High[r][b]}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(append(initOpts(
		fmt.Sprintf("%s sharing cuts", r),
		"merge thresholds by pseudorapidity",
	), charts.WithXAxisOpts(opts.XAxis{Name: "η"}))...)

	line.SetXAxis(axisLabels(centers)).
		AddSeries("low cut", low).
		AddSeries("high cut", high).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Symbol: "none"}))
	return line
}

// CoverageChart plots the per-event average merged signal of one ring as a
// coloured (eta, sector) scatter.
func CoverageChart(d *fmd.RingDiagnostics) *charts.Scatter {
	sum := d.Sum
	data := make([]opts.ScatterData, 0, sum.XBins*sum.YBins)
	maxW := 0.0
	xCenters := sum.XCenters()
	for by := 0; by < sum.YBins; by++ {
		for bx := 0; bx < sum.XBins; bx++ {
			w := sum.At(bx, by)
			if w == 0 {
				continue
			}
			if w > maxW {
				maxW = w
			}
			data = append(data, opts.ScatterData{Value: []interface{}{xCenters[bx], by, w}})
		}
	}
	if maxW == 0 {
		maxW = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(append(initOpts(
		fmt.Sprintf("%s coverage", d.Ring),
		"per-event average merged signal over (η, sector)",
	),
		charts.WithXAxisOpts(opts.XAxis{Name: "η"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "sector"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxW),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)...)
	scatter.AddSeries("signal", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	return scatter
}

// WriteRingReport renders the full chart set for one ring as a standalone
// HTML page.
func WriteRingReport(w io.Writer, diag *fmd.Accumulator, table *fmd.CutTable, r fmd.Ring) error {
	d := diag.Ring(r)

	page := components.NewPage()
	if EChartsAssetsHost != "" {
		page.SetAssetsHost(EChartsAssetsHost)
	}
	page.AddCharts(
		ELossChart(d),
		ClusterChart(d),
		CutsChart(table, r),
		CoverageChart(d),
	)
	return page.Render(w)
}

// WriteSummaryReport renders the cluster spectra of every ring on one page.
func WriteSummaryReport(w io.Writer, diag *fmd.Accumulator, table *fmd.CutTable) error {
	page := components.NewPage()
	if EChartsAssetsHost != "" {
		page.SetAssetsHost(EChartsAssetsHost)
	}
	for _, r := range fmd.Rings() {
		page.AddCharts(ClusterChart(diag.Ring(r)), CutsChart(table, r))
	}
	return page.Render(w)
}
