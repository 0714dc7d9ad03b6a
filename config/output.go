package config

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/AntoninoFulci/bdxplot"
)

// DefaultTemplate is the default histogram container file name.
const DefaultTemplate = "{base_name}_{particle_name}_{n_bins}bins_{min_energy}_{max_energy}.root"

// Filename returns the path of the histogram container of window w.
func (o *Output) Filename(p Particle, w EnergyWindow, now time.Time) string {
	tmpl := o.FormatTemplate
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	name := strings.NewReplacer(
		"{base_name}", o.BaseName,
		"{particle_name}", p.Name,
		"{n_bins}", strconv.Itoa(w.NBins),
		"{min_energy}", bdxplot.FormatEnergy(w.MinEnergy),
		"{max_energy}", bdxplot.FormatEnergy(w.MaxEnergy),
	).Replace(tmpl)

	if o.IncludeTimestamp {
		ext := filepath.Ext(name)
		name = strings.TrimSuffix(name, ext) + "_" + now.Format("20060102_150405") + ext
	}
	return filepath.Join(o.Directory, name)
}

// SummaryFile is the path of the exposure sidecar store.
func (o *Output) SummaryFile() string {
	return filepath.Join(o.Directory, "simulation_summary.root")
}

// LogEdges returns NBins+1 edges evenly spaced in log10 between MinEnergy
// and MaxEnergy.
func (w *EnergyWindow) LogEdges() ([]float64, error) {
	if w.MinEnergy <= 0 || w.MaxEnergy <= w.MinEnergy || w.NBins <= 0 {
		return nil, bdxplot.Configf(
			"log binning needs 0 < min_energy < max_energy and n_bins > 0 (got %d bins in [%g, %g])",
			w.NBins, w.MinEnergy, w.MaxEnergy,
		)
	}
	edges := floats.LogSpan(make([]float64, w.NBins+1), w.MinEnergy, w.MaxEnergy)
	// pin the end points: exp(log(x)) may not round-trip.
	edges[0], edges[w.NBins] = w.MinEnergy, w.MaxEnergy
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) || math.IsNaN(edges[i]) {
			return nil, bdxplot.Configf("log binning of [%g, %g] is not strictly increasing", w.MinEnergy, w.MaxEnergy)
		}
	}
	return edges, nil
}

// Label returns "minE - maxE" with human formatted energies.
func (w *EnergyWindow) Label() string {
	return bdxplot.FormatEnergy(w.MinEnergy) + " - " + bdxplot.FormatEnergy(w.MaxEnergy)
}

// Applies reports whether the window is requested for a region, given the
// region name and, for box faces, the box name.
func (w *EnergyWindow) Applies(names ...string) bool {
	if len(w.Regions) == 0 {
		return true
	}
	for _, r := range w.Regions {
		for _, n := range names {
			if r == n {
				return true
			}
		}
	}
	return false
}
