// Package histo accumulates the histogram sets of an analysis, normalizes
// them by the exposure and persists them in ROOT files.
package histo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-hep.org/x/hep/hbook"

	"github.com/AntoninoFulci/bdxplot"
	"github.com/AntoninoFulci/bdxplot/config"
	"github.com/AntoninoFulci/bdxplot/frame"
	"github.com/AntoninoFulci/bdxplot/selection"
)

// ErrAlreadyNormalized is returned when a raw histogram collection is
// normalized a second time.
var ErrAlreadyNormalized = errors.New("histo: histograms already normalized")

// Set holds the booked histograms of one region. Log, Vertex and Var2D are
// nil when disabled.
type Set struct {
	Region string
	Log    *frame.H1D
	Lin    *frame.H1D
	Vertex *frame.H2D
	Var2D  *frame.H2D
}

// Raw is the collection of not yet normalized histograms of one energy
// window.
type Raw struct {
	Particle string
	Window   config.EnergyWindow
	Sets     []*Set

	consumed bool
}

// Name returns the stored name of a histogram of region.
func Name(particle, kind, region string) string {
	switch kind {
	case "log", "lin":
		return particle + "_h1_" + region + "_" + kind
	case "h2var":
		return particle + "_h2var_" + region
	default:
		return particle + "_h2_" + region
	}
}

// Title builds a ROOT-style "title;x-label;y-label" string.
func Title(title, xlabel, ylabel string) string {
	return title + ";" + xlabel + ";" + ylabel
}

// Labels splits a ROOT-style title into its title and axis labels.
func Labels(s string) (title, xlabel, ylabel string) {
	parts := strings.SplitN(s, ";", 4)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return parts[0], parts[1], parts[2]
}

// Book books on fr the histograms of every request of window w.
func Book(fr *frame.Frame, cfg *config.Analysis, reqs []selection.Request, w config.EnergyWindow) (*Raw, error) {
	var (
		p        = cfg.Particle
		xlabel   = p.Variable + " [GeV]"
		ylabel1D = "n/(GeV * EOT)"
		raw      = &Raw{Particle: p.Name, Window: w}
	)

	var edges []float64
	if w.AlsoLogBins {
		var err error
		edges, err = w.LogEdges()
		if err != nil {
			return nil, err
		}
	}

	for _, req := range reqs {
		set := &Set{Region: req.Region}

		if edges != nil {
			h := hbook.NewH1DFromEdges(edges)
			annotate(h.Ann, Name(p.Name, "log", req.Region), Title(req.Region, xlabel, ylabel1D))
			set.Log = fr.Histo1D(req.Spectrum, h, p.Variable, p.Weight)
		}

		h := hbook.NewH1D(w.NBins, w.MinEnergy, w.MaxEnergy)
		annotate(h.Ann, Name(p.Name, "lin", req.Region), Title(req.Region, xlabel, ylabel1D))
		set.Lin = fr.Histo1D(req.Spectrum, h, p.Variable, p.Weight)

		if req.Spatial {
			x, y := req.Proj.X, req.Proj.Y
			nx, ny := x.Bins(req.BinWidth), y.Bins(req.BinWidth)
			if nx <= 0 || ny <= 0 {
				return nil, bdxplot.Configf(
					"region %q: bin width %g gives %dx%d spatial bins", req.Region, req.BinWidth, nx, ny,
				)
			}
			h := hbook.NewH2D(nx, x.Min, x.Max, ny, y.Min, y.Max)
			annotate(h.Ann, Name(p.Name, "h2", req.Region), Title(req.Region, x.Label(), y.Label()))
			set.Vertex = fr.Histo2D(req.Energy, h, x.Column, y.Column, p.Weight)
		}

		if v := cfg.Variable2D; v != nil && v.Enabled {
			h := hbook.NewH2D(v.XBins, v.XMin, v.XMax, v.YBins, v.YMin, v.YMax)
			annotate(h.Ann, Name(p.Name, "h2var", req.Region), Title(v.Title+" "+req.Region, v.XLabel, v.YLabel))
			set.Var2D = fr.Histo2D(req.Energy, h, v.XVariable, v.YVariable, p.Weight)
		}

		raw.Sets = append(raw.Sets, set)
	}
	return raw, nil
}

func annotate(ann hbook.Annotation, name, title string) {
	ann["name"] = name
	ann["title"] = title
}

// NormSet is the normalized counterpart of Set.
type NormSet struct {
	Region string
	Log    *hbook.H1D
	Lin    *hbook.H1D
	Vertex *hbook.H2D
	Var2D  *hbook.H2D
}

// Normalized is a write-ready histogram collection.
type Normalized struct {
	Particle string
	Window   config.EnergyWindow
	EOT      float64
	Sets     []NormSet
}

// Normalize materializes the histograms of r and scales them by 1/eot:
// 1-D histograms are also divided by their bin widths. r cannot be
// normalized twice.
func (r *Raw) Normalize(ctx context.Context, eot float64) (*Normalized, error) {
	if r.consumed {
		return nil, ErrAlreadyNormalized
	}
	if !(eot > 0) {
		return nil, bdxplot.Computef("invalid EOT %v", eot)
	}
	r.consumed = true

	out := &Normalized{Particle: r.Particle, Window: r.Window, EOT: eot}
	for _, set := range r.Sets {
		ns := NormSet{Region: set.Region}
		var err error
		if ns.Log, err = value1D(ctx, set.Log); err != nil {
			return nil, err
		}
		if ns.Lin, err = value1D(ctx, set.Lin); err != nil {
			return nil, err
		}
		if ns.Vertex, err = value2D(ctx, set.Vertex); err != nil {
			return nil, err
		}
		if ns.Var2D, err = value2D(ctx, set.Var2D); err != nil {
			return nil, err
		}

		scaleWidth(ns.Log, 1/eot)
		scaleWidth(ns.Lin, 1/eot)
		if ns.Vertex != nil {
			ns.Vertex.Scale(1 / eot)
		}
		if ns.Var2D != nil {
			ns.Var2D.Scale(1 / eot)
		}
		out.Sets = append(out.Sets, ns)
	}
	return out, nil
}

func value1D(ctx context.Context, h *frame.H1D) (*hbook.H1D, error) {
	if h == nil {
		return nil, nil
	}
	v, err := h.Value(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not fill histograms: %w", err)
	}
	return v, nil
}

func value2D(ctx context.Context, h *frame.H2D) (*hbook.H2D, error) {
	if h == nil {
		return nil, nil
	}
	v, err := h.Value(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not fill histograms: %w", err)
	}
	return v, nil
}

// scaleWidth scales h by f, then divides each in-range bin by its width.
// The histogram totals are recomputed from the scaled bins and outflows.
func scaleWidth(h *hbook.H1D, f float64) {
	if h == nil {
		return
	}
	h.Scale(f)
	tot := &h.Binning.Dist
	tot.Dist.SumW, tot.Dist.SumW2 = 0, 0
	tot.Stats.SumWX, tot.Stats.SumWX2 = 0, 0
	add := func(d hbook.Dist1D) {
		tot.Dist.SumW += d.Dist.SumW
		tot.Dist.SumW2 += d.Dist.SumW2
		tot.Stats.SumWX += d.Stats.SumWX
		tot.Stats.SumWX2 += d.Stats.SumWX2
	}
	for i := range h.Binning.Bins {
		bin := &h.Binning.Bins[i]
		w := 1 / bin.XWidth()
		bin.Dist.Dist.SumW *= w
		bin.Dist.Dist.SumW2 *= w * w
		bin.Dist.Stats.SumWX *= w
		bin.Dist.Stats.SumWX2 *= w
		add(bin.Dist)
	}
	for _, d := range h.Binning.Outflows {
		add(d)
	}
}
