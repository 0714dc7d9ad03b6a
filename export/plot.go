package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/AntoninoFulci/bdxplot"
	"github.com/AntoninoFulci/bdxplot/histo"
)

// Labels are the texts of a plot.
type Labels struct {
	Title, X, Y string
}

// Plots renders every histogram of files in <dir>/plots and returns the
// written paths.
func Plots(files []File, dir string, opts Options) ([]string, error) {
	var (
		logger = opts.logger()
		outDir = filepath.Join(dir, "plots")
		out    []string
	)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, bdxplot.DataErr(outDir, err)
	}

	for i, f := range Order(files) {
		entries, err := histo.ReadAll(f.Path)
		if err != nil {
			return out, err
		}
		prefix := Prefix(i, f.Window)
		logger.Printf("processing file %d/%d: %s", i+1, len(files), filepath.Base(f.Path))

		n := 0
		for _, e := range entries {
			title, xlabel, ylabel := histo.Labels(e.Title)
			lbl := Labels{Title: title, X: xlabel, Y: ylabel}
			fname := filepath.Join(outDir, prefix+e.Name+"."+opts.format())

			switch {
			case e.H1 != nil:
				err = Plot1D(fname, e.H1, lbl, strings.HasSuffix(e.Name, "_log"))
				if strings.HasSuffix(e.Name, "_lin") {
					sum, serr := Integral1D(e.H1)
					logger.Printf("    %s: %.2E ± %.2E (%.2f%%)", e.Name, sum, serr, percent(serr, sum))
					logger.Printf("      entries: %d", e.H1.Entries())
				}
			case e.H2 != nil:
				err = Plot2D(fname, e.H2, lbl, "n/EOT")
			default:
				continue
			}
			if err != nil {
				return out, fmt.Errorf("could not render %q of %q: %w", e.Path, f.Path, err)
			}
			out = append(out, fname)
			n++
		}
		logger.Printf("    exported %d histograms from %s", n, filepath.Base(f.Path))
	}
	return out, nil
}

// Plot1D draws h with a log-scaled y axis when it has positive content,
// and a log-scaled x axis if logx.
func Plot1D(fname string, h *hbook.H1D, lbl Labels, logx bool) error {
	p := hplot.New()
	p.Title.Text = lbl.Title
	p.X.Label.Text = lbl.X
	p.Y.Label.Text = lbl.Y
	p.X.Tick.Marker = bdxplot.PreciseTicks{NSuggestedTicks: 5}

	hh := hplot.NewH1D(h)
	hh.LineStyle.Width = vg.Points(1.5)
	hh.Infos.Style = hplot.HInfoNone

	if positive(h) {
		hh.LogY = true
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	if logx && h.XMin() > 0 {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	p.Add(hh)

	return save(p.Plot, fname)
}

func positive(h *hbook.H1D) bool {
	for _, bin := range h.Binning.Bins {
		if bin.SumW() > 0 {
			return true
		}
	}
	return false
}

func save(p *plot.Plot, fname string) error {
	if err := p.Save(6*vg.Inch, 4*vg.Inch, fname); err != nil {
		return bdxplot.DataErr(fname, err)
	}
	return nil
}

// Plot2D draws h as a heat map of log10 of its content next to a colour
// bar. Empty bins are left blank.
func Plot2D(fname string, h *hbook.H2D, lbl Labels, zlabel string) error {
	format := strings.TrimPrefix(filepath.Ext(fname), ".")
	c, err := draw.NewFormattedCanvas(670, 400, format)
	if err != nil {
		return bdxplot.DataErr(fname, err)
	}
	dc := draw.New(c)
	dc0 := draw.Crop(dc, 0, -70, 0, 0)
	dc1 := draw.Crop(dc, 620, 0, 0, 0)

	grid := newLogGrid(h)

	p := plot.New()
	p.Title.Text = lbl.Title
	p.X.Label.Text = lbl.X
	p.Y.Label.Text = lbl.Y
	p.X.Tick.Marker = bdxplot.PreciseTicks{NSuggestedTicks: 5}
	p.Y.Tick.Marker = bdxplot.PreciseTicks{NSuggestedTicks: 5}

	colorMap := moreland.ExtendedBlackBody()
	colorMap.SetMin(grid.min)
	colorMap.SetMax(grid.max)
	heatMap := plotter.NewHeatMap(grid, colorMap.Palette(255))
	heatMap.Min = grid.min
	heatMap.Max = grid.max
	p.Add(heatMap)
	p.X.Min, p.X.Max = h.XMin(), h.XMax()
	p.Y.Min, p.Y.Max = h.YMin(), h.YMax()

	p.Draw(dc0)

	p = plot.New()

	colorBar := &plotter.ColorBar{ColorMap: colorMap}
	colorBar.Vertical = true
	p.Add(colorBar)
	p.HideX()
	p.Y.Padding = 0
	p.Y.Label.Text = "log10 " + zlabel

	p.Draw(dc1)

	w, err := os.Create(fname)
	if err != nil {
		return bdxplot.DataErr(fname, err)
	}
	defer w.Close()

	if _, err = c.WriteTo(w); err != nil {
		return bdxplot.DataErr(fname, err)
	}
	return w.Close()
}

// logGrid presents log10 of the content of a 2-D histogram to a heat map.
type logGrid struct {
	plotter.GridXYZ
	min, max float64
}

func newLogGrid(h *hbook.H2D) *logGrid {
	g := &logGrid{GridXYZ: h.GridXYZ(), min: math.Inf(+1), max: math.Inf(-1)}
	nx, ny := g.Dims()
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			z := g.Z(i, j)
			if math.IsNaN(z) {
				continue
			}
			g.min = math.Min(g.min, z)
			g.max = math.Max(g.max, z)
		}
	}
	switch {
	case math.IsInf(g.min, +1):
		g.min, g.max = 0, 1
	case g.min == g.max:
		g.max = g.min + 1
	}
	return g
}

func (g *logGrid) Z(c, r int) float64 {
	v := g.GridXYZ.Z(c, r)
	if v <= 0 {
		return math.NaN()
	}
	return math.Log10(v)
}
