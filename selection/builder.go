package selection

import (
	"github.com/AntoninoFulci/bdxplot"
	"github.com/AntoninoFulci/bdxplot/config"
)

// Event columns read by the region predicates.
const (
	ParticleColumn = "ParticleID"
	SurfaceColumn  = "SurfaceID"
)

// Request is everything needed to accumulate the histogram set of one
// region in one energy window.
type Request struct {
	Region string // histogram set key, e.g. "fl_1000" or "hall_front_face"
	Box    string // enclosing box name, empty for surfaces

	// Energy selects particle, region and energy window. It feeds the 2-D
	// histograms.
	Energy *Chain
	// Spectrum additionally clips surfaces to their configured footprint.
	// It feeds the 1-D histograms.
	Spectrum *Chain

	Window   config.EnergyWindow
	Proj     config.Projection
	BinWidth float64
	Spatial  bool
}

// Builder composes the predicate chains of an analysis. The particle and
// region stages are built once and shared by every energy window.
type Builder struct {
	variable string
	regions  []region
}

type region struct {
	name     string
	box      string
	chain    *Chain
	proj     config.Projection
	binWidth float64
	spatial  bool
	clip     bool
}

// ParticleFilter returns the OR of ParticleID equality tests over ids.
func ParticleFilter(ids []int) (Predicate, error) {
	if len(ids) == 0 {
		return nil, bdxplot.Configf("no particle id configured")
	}
	ps := make([]Predicate, len(ids))
	for i, id := range ids {
		ps[i] = Eq(ParticleColumn, float64(id))
	}
	return Or(ps...), nil
}

// NewBuilder prepares the particle and region stages of cfg.
func NewBuilder(cfg *config.Analysis) (*Builder, error) {
	pf, err := ParticleFilter(cfg.Particle.IDs)
	if err != nil {
		return nil, err
	}
	if cfg.Particle.Variable == "" {
		return nil, bdxplot.Configf("no kinematic variable configured")
	}
	particle := New("particle", pf)

	b := &Builder{variable: cfg.Particle.Variable}
	seen := make(map[string]bool)
	add := func(r region) error {
		if seen[r.name] {
			return bdxplot.Configf("region %q defined more than once", r.name)
		}
		seen[r.name] = true
		b.regions = append(b.regions, r)
		return nil
	}

	for _, s := range cfg.Surfaces {
		err := add(region{
			name:     s.RegionName(),
			chain:    particle.Then("surface", Eq(SurfaceColumn, float64(s.ID))),
			proj:     s.Projection(),
			binWidth: s.BinWidth,
			spatial:  s.SpatialAnalysis,
			clip:     true,
		})
		if err != nil {
			return nil, err
		}
	}

	for _, box := range cfg.BoxSurfaces {
		inBox := particle.Then("box", Eq(SurfaceColumn, float64(box.SurfaceID)))
		for _, f := range box.Faces() {
			err := add(region{
				name:     box.Name + "_" + f.Name,
				box:      box.Name,
				chain:    inBox.Then("face", Eq(f.Column, f.Value)),
				proj:     f.Proj,
				binWidth: box.BinWidth,
				spatial:  box.SpatialAnalysis,
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}

// Regions returns the region names, surfaces first then box faces.
func (b *Builder) Regions() []string {
	names := make([]string, len(b.regions))
	for i, r := range b.regions {
		names[i] = r.name
	}
	return names
}

// Requests returns one request per region selected by w.
func (b *Builder) Requests(w config.EnergyWindow) ([]Request, error) {
	if w.NBins <= 0 || !(w.MaxEnergy > w.MinEnergy) {
		return nil, bdxplot.Configf("invalid energy window: %d bins in [%g, %g]", w.NBins, w.MinEnergy, w.MaxEnergy)
	}
	for _, name := range w.Regions {
		if !b.known(name) {
			return nil, bdxplot.Configf("energy window [%g, %g] references unknown region %q", w.MinEnergy, w.MaxEnergy, name)
		}
	}

	energy := Range(b.variable, w.MinEnergy, w.MaxEnergy)
	var reqs []Request
	for _, r := range b.regions {
		if !w.Applies(r.name, r.box) {
			continue
		}
		req := Request{
			Region:   r.name,
			Box:      r.box,
			Energy:   r.chain.Then("energy", energy),
			Window:   w,
			Proj:     r.proj,
			BinWidth: r.binWidth,
			Spatial:  r.spatial,
		}
		req.Spectrum = req.Energy
		if r.clip {
			req.Spectrum = req.Energy.Then("footprint", And(
				Range(r.proj.X.Column, r.proj.X.Min, r.proj.X.Max),
				Range(r.proj.Y.Column, r.proj.Y.Min, r.proj.Y.Max),
			))
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func (b *Builder) known(name string) bool {
	for _, r := range b.regions {
		if r.name == name || r.box == name {
			return true
		}
	}
	return false
}
