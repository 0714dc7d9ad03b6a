// Package config holds the canonical schema of an analysis configuration,
// its loading from YAML or JSON documents and its validation.
package config

// Analysis is one analysis unit: a particle selection, the regions to
// histogram, the energy windows and the comparisons to draw.
type Analysis struct {
	InputDirectory string         `yaml:"input_directory"`
	Particle       Particle       `yaml:"particle"`
	Surfaces       []Surface      `yaml:"surfaces"`
	BoxSurfaces    []BoxSurface   `yaml:"box_surfaces"`
	Histograms     []EnergyWindow `yaml:"histograms"`
	Output         Output         `yaml:"output"`
	NewVariables   []NewVariable  `yaml:"new_variables"`
	Variable2D     *Variable2D    `yaml:"variable_2d"`
	Comparisons    []Comparison   `yaml:"comparisons"`

	// Path is the file the configuration was loaded from, if any.
	Path string `yaml:"-"`
}

// ComparisonOnly reports whether the unit only overlays existing histograms.
func (a *Analysis) ComparisonOnly() bool {
	return len(a.Histograms) == 0 &&
		len(a.Surfaces) == 0 &&
		len(a.BoxSurfaces) == 0 &&
		a.Variable2D == nil &&
		len(a.NewVariables) == 0 &&
		len(a.Comparisons) > 0
}

// Particle selects events by particle identity and names the histogrammed
// kinematic variable and the weight column.
type Particle struct {
	IDs      []int  `yaml:"particle_id"`
	Name     string `yaml:"name"`
	Variable string `yaml:"variable"`
	Weight   string `yaml:"weight"`
}

// Surface is a planar detector surface. Exactly two of the three bound
// pairs select the 2-D projection of the surface.
type Surface struct {
	ID              int      `yaml:"id"`
	XL              *float64 `yaml:"xl"`
	XH              *float64 `yaml:"xh"`
	YL              *float64 `yaml:"yl"`
	YH              *float64 `yaml:"yh"`
	ZL              *float64 `yaml:"zl"`
	ZH              *float64 `yaml:"zh"`
	BinWidth        float64  `yaml:"bin_width"`
	Name            string   `yaml:"name"`
	SpatialAnalysis bool     `yaml:"spatial_analysis"`
}

// BoxSurface is a rectangular prism scored as six faces.
type BoxSurface struct {
	Name            string  `yaml:"name"`
	SurfaceID       int     `yaml:"surface_id"`
	XMin            float64 `yaml:"xmin"`
	XMax            float64 `yaml:"xmax"`
	YMin            float64 `yaml:"ymin"`
	YMax            float64 `yaml:"ymax"`
	ZMin            float64 `yaml:"zmin"`
	ZMax            float64 `yaml:"zmax"`
	BinWidth        float64 `yaml:"bin_width"`
	SpatialAnalysis bool    `yaml:"spatial_analysis"`
}

// EnergyWindow is one [MinEnergy, MaxEnergy] histogram request, in GeV.
// Regions optionally restricts the window to the named regions.
type EnergyWindow struct {
	NBins       int      `yaml:"n_bins"`
	MinEnergy   float64  `yaml:"min_energy"`
	MaxEnergy   float64  `yaml:"max_energy"`
	AlsoLogBins bool     `yaml:"also_log_bins"`
	Regions     []string `yaml:"regions"`
}

// NewVariable defines a derived column computed from an expression over
// input columns.
type NewVariable struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
}

// Variable2D requests a secondary 2-D histogram of two arbitrary columns.
type Variable2D struct {
	XVariable string  `yaml:"x_variable"`
	YVariable string  `yaml:"y_variable"`
	XBins     int     `yaml:"x_bins"`
	YBins     int     `yaml:"y_bins"`
	XMin      float64 `yaml:"x_min"`
	XMax      float64 `yaml:"x_max"`
	YMin      float64 `yaml:"y_min"`
	YMax      float64 `yaml:"y_max"`
	XLabel    string  `yaml:"x_label"`
	YLabel    string  `yaml:"y_label"`
	Title     string  `yaml:"title"`
	Enabled   bool    `yaml:"enabled"`
}

// Output controls where and under which names histogram containers are
// written.
type Output struct {
	BaseName         string `yaml:"base_name"`
	Directory        string `yaml:"directory"`
	IncludeTimestamp bool   `yaml:"include_timestamp"`
	FormatTemplate   string `yaml:"format_template"`
}

// Comparison overlays histograms read from several files.
type Comparison struct {
	Files           []string   `yaml:"files"`
	Hists           []string   `yaml:"hists"`
	Labels          []string   `yaml:"labels"`
	Output          string     `yaml:"output"`
	Title           string     `yaml:"title"`
	XLabel          string     `yaml:"x_label"`
	YLabel          string     `yaml:"y_label"`
	LogX            bool       `yaml:"logx"`
	LogY            bool       `yaml:"logy"`
	XMin            *float64   `yaml:"x_min"`
	XMax            *float64   `yaml:"x_max"`
	YMin            *float64   `yaml:"y_min"`
	YMax            *float64   `yaml:"y_max"`
	OutputDirectory string     `yaml:"output_directory"`
	PlotRange       *PlotRange `yaml:"plot_range"`
	Colors          []int      `yaml:"colors"`
	LineWidth       float64    `yaml:"line_width"`
	LegendPosition  string     `yaml:"legend_position"`
	DrawOption      string     `yaml:"draw_option"`
}

// PlotRange holds explicit axis ranges; nil entries are automatic.
type PlotRange struct {
	XRange []*float64 `yaml:"x_range"`
	YRange []*float64 `yaml:"y_range"`
}

// Ranges resolves the axis limits of a comparison, giving precedence to
// PlotRange over the individual limits.
func (c *Comparison) Ranges() (xmin, xmax, ymin, ymax *float64) {
	if c.PlotRange == nil {
		return c.XMin, c.XMax, c.YMin, c.YMax
	}
	at := func(v []*float64, i int) *float64 {
		if i < len(v) {
			return v[i]
		}
		return nil
	}
	return at(c.PlotRange.XRange, 0), at(c.PlotRange.XRange, 1),
		at(c.PlotRange.YRange, 0), at(c.PlotRange.YRange, 1)
}
