// Package analysis runs analysis units: the exposure barrier, then one
// normalized histogram container per energy window, exports and
// comparisons.
package analysis

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AntoninoFulci/bdxplot"
	"github.com/AntoninoFulci/bdxplot/compare"
	"github.com/AntoninoFulci/bdxplot/config"
	"github.com/AntoninoFulci/bdxplot/export"
	"github.com/AntoninoFulci/bdxplot/exposure"
	"github.com/AntoninoFulci/bdxplot/frame"
	"github.com/AntoninoFulci/bdxplot/histo"
	"github.com/AntoninoFulci/bdxplot/selection"
)

// Statistics file names, in the output directory.
const (
	StatsXLSX = "histogram_statistics.xlsx"
	StatsCSV  = "histogram_statistics.csv"
	StatsDB   = "histogram_statistics.db"
)

type Options struct {
	Workers int
	Logger  *log.Logger

	// InputDir and OutputDir override the directories of the configuration.
	InputDir  string
	OutputDir string

	SavePlots bool
	SaveStats bool
	Preview   bool

	// EnergyRanges restricts the run to the configured windows with these
	// [min, max] bounds, in GeV. All windows run when empty.
	EnergyRanges [][2]float64

	Now func() time.Time
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return o.Logger
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// Result lists what one analysis unit produced.
type Result struct {
	RunID       string
	Summary     *exposure.Summary // nil for comparison-only units
	Files       []export.File
	Plots       []string
	Stats       []export.Stat
	Comparisons []*compare.Result
	Rows        int64 // events read
	Passes      int   // event loops run
}

// Run processes cfg. The configuration is checked before any file is
// touched, and no histogram is filled before the exposure is resolved.
func Run(ctx context.Context, cfg *config.Analysis, opts Options) (*Result, error) {
	c := *cfg
	if opts.InputDir != "" {
		c.InputDirectory = opts.InputDir
	}
	if opts.OutputDir != "" {
		c.Output.Directory = opts.OutputDir
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if len(opts.EnergyRanges) > 0 {
		ws, err := selectWindows(c.Histograms, opts.EnergyRanges)
		if err != nil {
			return nil, err
		}
		c.Histograms = ws
	}

	res := &Result{RunID: uuid.NewString()}
	base := opts.logger()
	logger := log.New(base.Writer(), base.Prefix()+"["+res.RunID[:8]+"] ", base.Flags())

	if c.ComparisonOnly() {
		logger.Printf("comparison-only configuration, skipping analysis")
		if err := runComparisons(&c, res, logger); err != nil {
			return nil, err
		}
		return res, nil
	}

	b, err := selection.NewBuilder(&c)
	if err != nil {
		return nil, err
	}
	reqs := make([][]selection.Request, len(c.Histograms))
	for i, w := range c.Histograms {
		if reqs[i], err = b.Requests(w); err != nil {
			return nil, err
		}
		if w.AlsoLogBins {
			if _, err := w.LogEdges(); err != nil {
				return nil, err
			}
		}
	}
	if c.InputDirectory == "" {
		return nil, bdxplot.Configf("no input directory configured")
	}

	if err := os.MkdirAll(c.Output.Directory, 0755); err != nil {
		return nil, bdxplot.DataErr(c.Output.Directory, err)
	}

	runs, err := frame.Glob(c.InputDirectory, frame.RunSummaryTree)
	if err != nil {
		return nil, err
	}
	sum, err := exposure.Resolve(ctx, c.Output.SummaryFile(), runs, logger)
	if err != nil {
		return nil, fmt.Errorf("could not resolve exposure: %w", err)
	}
	res.Summary = &sum
	logger.Printf("EOT: %g", sum.EOT)

	events, err := frame.Glob(c.InputDirectory, frame.EventsTree)
	if err != nil {
		return nil, err
	}
	fr := frame.New(events, frame.Workers(opts.Workers), frame.Logger(logger))
	for _, v := range c.NewVariables {
		if err := fr.Define(ctx, v.Name, v.Expression); err != nil {
			return nil, err
		}
		logger.Printf("defined variable %s = %s", v.Name, v.Expression)
	}

	raws := make([]*histo.Raw, len(c.Histograms))
	for i, w := range c.Histograms {
		logger.Printf("booking %d regions in %s with %d bins", len(reqs[i]), w.Label(), w.NBins)
		if raws[i], err = histo.Book(fr, &c, reqs[i], w); err != nil {
			return nil, err
		}
	}
	if err := fr.Run(ctx); err != nil {
		return nil, err
	}
	res.Rows, res.Passes = fr.Rows()

	now := opts.now()
	for i, raw := range raws {
		norm, err := raw.Normalize(ctx, sum.EOT)
		if err != nil {
			return nil, err
		}
		w := c.Histograms[i]
		fname := c.Output.Filename(c.Particle, w, now)
		if err := norm.Write(fname); err != nil {
			return nil, err
		}
		logger.Printf("saved histograms of %s to %s", w.Label(), fname)
		res.Files = append(res.Files, export.File{Path: fname, Window: w})
	}

	eopts := export.Options{Logger: logger, RunID: res.RunID, EOT: sum.EOT}
	if opts.SavePlots {
		logger.Printf("saving plots in %s", c.Output.Directory)
		if res.Plots, err = export.Plots(res.Files, c.Output.Directory, eopts); err != nil {
			return nil, err
		}
	}
	if opts.SaveStats {
		if res.Stats, err = saveStats(ctx, res.Files, c.Output.Directory, eopts); err != nil {
			return nil, err
		}
	}
	if opts.Preview {
		if err := preview(res.Files, logger); err != nil {
			return nil, err
		}
	}

	if err := runComparisons(&c, res, logger); err != nil {
		return nil, err
	}
	return res, nil
}

func selectWindows(ws []config.EnergyWindow, ranges [][2]float64) ([]config.EnergyWindow, error) {
	same := func(a, b float64) bool { return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b)) }
	var out []config.EnergyWindow
	for _, w := range ws {
		for _, r := range ranges {
			if same(w.MinEnergy, r[0]) && same(w.MaxEnergy, r[1]) {
				out = append(out, w)
				break
			}
		}
	}
	if len(out) == 0 && len(ws) > 0 {
		return nil, bdxplot.Configf("no configured energy window matches %v", ranges)
	}
	return out, nil
}

func saveStats(ctx context.Context, files []export.File, dir string, opts export.Options) ([]export.Stat, error) {
	stats, err := export.Statistics(files, opts)
	if err != nil {
		return nil, err
	}
	join := func(name string) string { return filepath.Join(dir, name) }
	if err := export.WriteXLSX(join(StatsXLSX), stats, opts.EOT); err != nil {
		return nil, err
	}
	if err := export.WriteCSV(join(StatsCSV), stats); err != nil {
		return nil, err
	}
	if err := export.WriteSQLite(ctx, join(StatsDB), stats); err != nil {
		return nil, err
	}
	opts.Logger.Printf("saved statistics of %d detectors to %s", len(stats), join(StatsXLSX))
	return stats, nil
}

func preview(files []export.File, logger *log.Logger) error {
	for _, f := range files {
		entries, err := histo.ReadAll(f.Path)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.H1 == nil || !strings.HasSuffix(e.Name, "_lin") {
				continue
			}
			logger.Printf("\n%s", export.Preview(e.H1, e.Name+" "+f.Window.Label(), 60, 10))
		}
	}
	return nil
}

func runComparisons(c *config.Analysis, res *Result, logger *log.Logger) error {
	for _, cmp := range c.Comparisons {
		out, err := compare.Run(cmp, compare.Options{Logger: logger, Dir: c.Output.Directory})
		if err != nil {
			return fmt.Errorf("comparison %q: %w", cmp.Output, err)
		}
		res.Comparisons = append(res.Comparisons, out)
	}
	return nil
}
