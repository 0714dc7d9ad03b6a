// Package compare overlays histograms read from independently produced
// analysis files and tabulates their integrals.
package compare

import (
	"fmt"
	"image/color"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/AntoninoFulci/bdxplot"
	"github.com/AntoninoFulci/bdxplot/config"
	"github.com/AntoninoFulci/bdxplot/export"
	"github.com/AntoninoFulci/bdxplot/histo"
)

// DefaultColors are the ROOT colour codes used when none is configured.
var DefaultColors = []int{2, 4, 8, 6, 1, 7, 9, 3}

type Options struct {
	Logger *log.Logger
	// Dir is the output directory used when the comparison does not set
	// one.
	Dir string
}

// Row is the integral of one compared histogram. Found is false when the
// histogram could not be read.
type Row struct {
	Histogram    string
	File         string
	Label        string
	Integral     float64
	Error        float64
	ErrorPercent float64
	Found        bool
	HasPercent   bool
}

// Result lists what a comparison produced.
type Result struct {
	Rows  []Row
	Table string // rendered integral table
	Plot  string // empty when fewer than two histograms could be drawn
	XLSX  string
	CSV   string
}

// Run draws the overlay of cmp and writes its integral table.
func Run(cmp config.Comparison, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	dir := outputDir(cmp, opts.Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, bdxplot.DataErr(dir, err)
	}

	var (
		res   = &Result{}
		hists []*hbook.H1D
		names []string
	)
	for i, fname := range cmp.Files {
		row := Row{Histogram: cmp.Hists[i], File: fname, Label: label(cmp, i)}
		e, err := histo.Find(fname, cmp.Hists[i])
		switch {
		case err != nil:
			logger.Printf("warning: could not find histogram %q in file %q: %v", cmp.Hists[i], fname, err)
		case e.H1 != nil:
			row.Found = true
			row.Integral, row.Error = export.Integral1D(e.H1)
			hists = append(hists, e.H1)
			names = append(names, row.Label)
		case e.H2 != nil:
			row.Found = true
			row.Integral, row.Error = export.Integral2D(e.H2)
			logger.Printf("warning: %q in %q is 2-D and is not overlaid", cmp.Hists[i], fname)
		}
		if row.Found && row.Integral != 0 {
			row.HasPercent = true
			row.ErrorPercent = 100 * row.Error / math.Abs(row.Integral)
		}
		res.Rows = append(res.Rows, row)
	}

	res.Table = Table(res.Rows)
	logger.Printf("comparing the following histograms:\n%s", res.Table)

	res.XLSX = filepath.Join(dir, cmp.Output+".xlsx")
	if err := WriteXLSX(res.XLSX, sheetName(cmp.Output), res.Rows); err != nil {
		return nil, err
	}
	res.CSV = filepath.Join(dir, cmp.Output+".csv")
	if err := WriteCSV(res.CSV, res.Rows); err != nil {
		return nil, err
	}

	if len(hists) < 2 {
		logger.Printf("not enough histograms to compare for %q", cmp.Output)
		return res, nil
	}

	if _, ok := LegendBox(cmp.LegendPosition); !ok && cmp.LegendPosition != "" {
		logger.Printf("warning: invalid legend position %q, using top_right", cmp.LegendPosition)
	}
	res.Plot = filepath.Join(dir, cmp.Output+".pdf")
	if err := Overlay(res.Plot, cmp, hists, names); err != nil {
		return nil, err
	}
	logger.Printf("saved comparison plot %s", res.Plot)
	return res, nil
}

func outputDir(cmp config.Comparison, dir string) string {
	switch {
	case cmp.OutputDirectory != "":
		return cmp.OutputDirectory
	case dir != "":
		return dir
	default:
		return "."
	}
}

func label(cmp config.Comparison, i int) string {
	if i < len(cmp.Labels) && cmp.Labels[i] != "" {
		return cmp.Labels[i]
	}
	return cmp.Hists[i]
}

func sheetName(s string) string {
	if len(s) > 31 {
		return s[:31]
	}
	return s
}

// Color maps a ROOT colour code to RGBA.
func Color(code int) color.Color {
	switch code {
	case 0:
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	case 1:
		return color.RGBA{A: 255}
	case 2:
		return color.RGBA{R: 255, A: 255}
	case 3:
		return color.RGBA{G: 255, A: 255}
	case 4:
		return color.RGBA{B: 255, A: 255}
	case 5:
		return color.RGBA{R: 255, G: 255, A: 255}
	case 6:
		return color.RGBA{R: 255, B: 255, A: 255}
	case 7:
		return color.RGBA{G: 255, B: 255, A: 255}
	case 8:
		return color.RGBA{R: 89, G: 212, B: 84, A: 255}
	case 9:
		return color.RGBA{R: 89, G: 84, B: 216, A: 255}
	}
	return plotutil.Color(code)
}

// Legend positions, as fractions of the canvas (x1, y1, x2, y2).
var legendPositions = map[string][4]float64{
	"top_right":    {0.65, 0.75, 0.89, 0.89},
	"top_left":     {0.15, 0.75, 0.39, 0.89},
	"bottom_right": {0.65, 0.15, 0.89, 0.29},
	"bottom_left":  {0.15, 0.15, 0.39, 0.29},
	"center_right": {0.65, 0.50, 0.89, 0.64},
	"center_left":  {0.15, 0.50, 0.39, 0.64},
	"custom":       {0.45, 0.78, 0.89, 0.93},
}

// LegendBox resolves a legend position given by name or as four
// comma or space separated fractions.
func LegendBox(pos string) ([4]float64, bool) {
	if box, ok := legendPositions[pos]; ok {
		return box, true
	}
	fields := strings.FieldsFunc(pos, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	if len(fields) != 4 {
		return legendPositions["top_right"], false
	}
	var box [4]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return legendPositions["top_right"], false
		}
		box[i] = v
	}
	return box, true
}

// Overlay draws hists on one plot, labelled by names.
func Overlay(fname string, cmp config.Comparison, hists []*hbook.H1D, names []string) error {
	p := hplot.New()
	p.Title.Text = cmp.Title
	p.X.Label.Text = cmp.XLabel
	p.Y.Label.Text = cmp.YLabel
	p.X.Tick.Marker = bdxplot.PreciseTicks{NSuggestedTicks: 5}

	logy := cmp.LogY && anyPositive(hists)
	if logy {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	if cmp.LogX && hists[0].XMin() > 0 {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	}

	colors := cmp.Colors
	if len(colors) == 0 {
		colors = DefaultColors
	}
	width := cmp.LineWidth
	if width <= 0 {
		width = 2
	}

	for i, h := range hists {
		c := Color(colors[i%len(colors)])
		switch strings.ToLower(cmp.DrawOption) {
		case "e", "ep", "e1", "pe":
			points, yerr, err := errorBars(h, logy)
			if err != nil {
				return fmt.Errorf("could not build error bars of %q: %w", names[i], err)
			}
			points.GlyphStyle.Color = c
			yerr.LineStyle.Color = c
			yerr.LineStyle.Width = vg.Points(width / 2)
			p.Add(points, yerr)
			p.Legend.Add(names[i], points)
		default:
			hh := hplot.NewH1D(h)
			hh.LineStyle.Color = c
			hh.LineStyle.Width = vg.Points(width)
			hh.Infos.Style = hplot.HInfoNone
			hh.LogY = logy
			p.Add(hh)
			p.Legend.Add(names[i], hh)
		}
	}

	box, _ := LegendBox(cmp.LegendPosition)
	p.Legend.Top = box[3] > 0.5
	p.Legend.Left = box[0] < 0.5
	p.Legend.Padding = 2 * vg.Millimeter

	xmin, xmax, ymin, ymax := cmp.Ranges()
	if xmin != nil {
		p.X.Min = *xmin
	}
	if xmax != nil {
		p.X.Max = *xmax
	}
	if ymin != nil && (!logy || *ymin > 0) {
		p.Y.Min = *ymin
	}
	if ymax != nil {
		p.Y.Max = *ymax
	}

	if err := p.Save(6*vg.Inch, 5*vg.Inch, fname); err != nil {
		return bdxplot.DataErr(fname, err)
	}
	return nil
}

func anyPositive(hists []*hbook.H1D) bool {
	for _, h := range hists {
		for _, bin := range h.Binning.Bins {
			if bin.SumW() > 0 {
				return true
			}
		}
	}
	return false
}

// errorBars returns the bin centres of h with their statistical errors.
// Empty bins are dropped on log scales.
func errorBars(h *hbook.H1D, logy bool) (*plotter.Scatter, *plotter.YErrorBars, error) {
	var (
		points  plotter.XYs
		yErrors plotter.YErrors
	)
	for _, bin := range h.Binning.Bins {
		y := bin.SumW()
		if logy && y <= 0 {
			continue
		}
		e := math.Sqrt(bin.SumW2())
		if logy && y-e <= 0 {
			e = y * 0.999
		}
		points = append(points, plotter.XY{X: 0.5 * (bin.XMin() + bin.XMax()), Y: y})
		yErrors = append(yErrors, struct{ Low, High float64 }{e, e})
	}
	if len(points) == 0 {
		return nil, nil, fmt.Errorf("no bin to draw")
	}

	errPoints := plotutil.ErrorPoints{XYs: points, YErrors: yErrors}
	scatter, err := plotter.NewScatter(errPoints)
	if err != nil {
		return nil, nil, err
	}
	yerr, err := plotter.NewYErrorBars(errPoints)
	if err != nil {
		return nil, nil, err
	}
	return scatter, yerr, nil
}
