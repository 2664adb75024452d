// Package plotting renders fitted incubation-period distributions against
// the empirical distribution of observed window midpoints.
package plotting

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"incuba/domain/cases"
	"incuba/domain/dist"
	"incuba/domain/results"
)

const (
	plotWidth  = 6 * vg.Inch
	plotHeight = 4 * vg.Inch

	// Fitted curves are sampled on a dense grid up to this quantile.
	upperTail  = 0.999
	gridPoints = 200
)

// ecdfPoints builds the empirical CDF staircase over the positive window
// midpoints: flat to each observation, then a vertical step of 1/n.
func ecdfPoints(delays []float64) plotter.XYs {
	sorted := make([]float64, len(delays))
	copy(sorted, delays)
	sort.Float64s(sorted)

	n := len(sorted)
	pts := make(plotter.XYs, 2*n+1)

	j := 0
	pts[j].X = 0
	pts[j].Y = 0
	j++

	for i, t := range sorted {
		pts[j].X = t
		pts[j].Y = pts[j-1].Y
		j++
		pts[j].X = t
		pts[j].Y = float64(i+1) / float64(n)
		j++
	}

	return pts
}

// cdfPoints samples the fitted CDF from zero to its 99.9th percentile.
func cdfPoints(d dist.Distribution) plotter.XYs {
	upper := d.Quantile(upperTail)
	pts := make(plotter.XYs, gridPoints)
	for i := range pts {
		x := upper * float64(i) / float64(gridPoints-1)
		pts[i].X = x
		pts[i].Y = d.CDF(x)
	}
	return pts
}

// newCDFPlot sets up the shared axes for a cumulative plot.
func newCDFPlot(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Days from exposure to onset"
	p.Y.Label.Text = "Cumulative probability"
	p.Y.Min = 0
	p.Y.Max = 1
	p.Legend.Top = true
	p.Legend.Left = true
	return p
}

// addEmpirical draws the midpoint ECDF staircase as the first line.
func addEmpirical(p *plot.Plot, cohort *cases.Cohort) error {
	line, err := plotter.NewLine(ecdfPoints(cohort.PositiveMidpoints()))
	if err != nil {
		return fmt.Errorf("failed to build empirical line: %w", err)
	}
	line.Color = plotutil.Color(0)
	p.Add(line)
	p.Legend.Add("empirical", line)
	return nil
}

// addFitted draws one fitted family's CDF, colored by its line index.
func addFitted(p *plot.Plot, res results.FitResult, index int) error {
	line, err := plotter.NewLine(cdfPoints(res.Fitted))
	if err != nil {
		return fmt.Errorf("failed to build %s line: %w", res.Family, err)
	}
	line.Color = plotutil.Color(index)
	p.Add(line)
	p.Legend.Add(res.Family.String(), line)
	return nil
}

// FamilyPlot writes one family's fitted CDF over the empirical staircase.
func FamilyPlot(res results.FitResult, cohort *cases.Cohort, path string) error {
	p := newCDFPlot(fmt.Sprintf("%s incubation period fit", res.Family))
	if err := addEmpirical(p, cohort); err != nil {
		return err
	}
	if err := addFitted(p, res, 1); err != nil {
		return err
	}
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}

// CombinedPlot overlays every fitted family on one empirical staircase.
func CombinedPlot(report *results.FitReport, cohort *cases.Cohort, path string) error {
	p := newCDFPlot("Incubation period fits")
	if err := addEmpirical(p, cohort); err != nil {
		return err
	}
	for i, res := range report.Results {
		if err := addFitted(p, res, i+1); err != nil {
			return err
		}
	}
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}

// WriteAll renders one PNG per fitted family plus the combined overlay into
// dir, creating it if needed. Returns the written paths.
func WriteAll(report *results.FitReport, cohort *cases.Cohort, dir string) ([]string, error) {
	if len(report.Results) == 0 {
		return nil, fmt.Errorf("no fitted families to plot")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory: %w", err)
	}

	var written []string
	for _, res := range report.Results {
		path := filepath.Join(dir, fmt.Sprintf("%s.png", res.Family))
		if err := FamilyPlot(res, cohort, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	combined := filepath.Join(dir, "combined.png")
	if err := CombinedPlot(report, cohort, combined); err != nil {
		return written, err
	}
	written = append(written, combined)

	log.Printf("[Plot] Wrote %d plots to %s", len(written), dir)
	return written, nil
}
