package config

import (
	"fmt"
	"strings"

	"github.com/AntoninoFulci/bdxplot"
)

// Validate checks the configuration for contradictions. All problems found
// are reported in a single ConfigError.
func (a *Analysis) Validate() error {
	var v validator

	for i, c := range a.Comparisons {
		v.check(len(c.Files) > 0, "comparison %d: no files", i)
		v.check(len(c.Files) == len(c.Hists), "comparison %d: %d files but %d histograms", i, len(c.Files), len(c.Hists))
		v.check(c.Output != "", "comparison %d: missing output name", i)
		v.check(c.LineWidth >= 0, "comparison %d: negative line width", i)
	}
	if a.ComparisonOnly() {
		return v.err()
	}

	p := a.Particle
	v.check(len(p.IDs) > 0, "particle: no particle_id configured")
	v.check(p.Name != "", "particle: empty name")
	v.check(p.Variable != "", "particle: empty variable")
	v.check(p.Weight != "", "particle: empty weight")

	regions := make(map[string]bool)
	region := func(name string) {
		v.check(!regions[name], "region %q defined more than once", name)
		regions[name] = true
	}

	ids := make(map[int]bool)
	for _, s := range a.Surfaces {
		name := s.RegionName()
		v.check(!ids[s.ID], "surface id %d defined more than once", s.ID)
		ids[s.ID] = true
		region(name)

		v.check(s.BinWidth > 0, "surface %q: bin_width must be positive", name)
		proj := s.Projection()
		for _, ax := range []Axis{proj.X, proj.Y} {
			v.check(ax.Max > ax.Min, "surface %q: empty %s range [%g, %g]", name, ax.Name, ax.Min, ax.Max)
			if s.SpatialAnalysis && s.BinWidth > 0 && ax.Max > ax.Min {
				v.check(ax.Bins(s.BinWidth) > 0, "surface %q: bin_width %g larger than %s range", name, s.BinWidth, ax.Name)
			}
		}
	}

	for _, b := range a.BoxSurfaces {
		v.check(b.Name != "", "box surface with id %d has no name", b.SurfaceID)
		v.check(!ids[b.SurfaceID], "surface id %d defined more than once", b.SurfaceID)
		ids[b.SurfaceID] = true
		v.check(b.BinWidth > 0, "box %q: bin_width must be positive", b.Name)
		v.check(b.XMax > b.XMin && b.YMax > b.YMin && b.ZMax > b.ZMin, "box %q: empty extent", b.Name)
		for _, f := range b.Faces() {
			region(b.Name + "_" + f.Name)
			if b.SpatialAnalysis && b.BinWidth > 0 {
				v.check(f.Proj.X.Bins(b.BinWidth) > 0 && f.Proj.Y.Bins(b.BinWidth) > 0,
					"box %q: bin_width %g yields no bins on %s", b.Name, b.BinWidth, f.Name)
			}
		}
	}

	for i, w := range a.Histograms {
		v.check(w.NBins > 0, "histogram %d: n_bins must be positive", i)
		v.check(w.MaxEnergy > w.MinEnergy, "histogram %d: empty energy range [%g, %g]", i, w.MinEnergy, w.MaxEnergy)
		if w.AlsoLogBins {
			v.check(w.MinEnergy > 0, "histogram %d: log bins need min_energy > 0", i)
		}
		for _, r := range w.Regions {
			known := regions[r]
			for _, b := range a.BoxSurfaces {
				known = known || b.Name == r
			}
			v.check(known, "histogram %d: unknown region %q", i, r)
		}
	}

	seen := make(map[string]bool)
	for _, nv := range a.NewVariables {
		v.check(nv.Name != "" && nv.Expression != "", "new variable needs a name and an expression")
		v.check(!seen[nv.Name], "new variable %q defined more than once", nv.Name)
		seen[nv.Name] = true
	}

	if v2 := a.Variable2D; v2 != nil && v2.Enabled {
		v.check(v2.XVariable != "" && v2.YVariable != "", "variable_2d: missing variable")
		v.check(v2.XBins > 0 && v2.YBins > 0, "variable_2d: bins must be positive")
		v.check(v2.XMax > v2.XMin && v2.YMax > v2.YMin, "variable_2d: empty range")
	}

	return v.err()
}

type validator struct {
	msgs []string
}

func (v *validator) check(ok bool, format string, args ...interface{}) {
	if ok {
		return
	}
	v.msgs = append(v.msgs, fmt.Sprintf(format, args...))
}

func (v *validator) err() error {
	if len(v.msgs) == 0 {
		return nil
	}
	return &bdxplot.ConfigError{Msg: strings.Join(v.msgs, "; ")}
}
