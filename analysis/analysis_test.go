package analysis

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"
	"go-hep.org/x/hep/hbook"

	"github.com/AntoninoFulci/bdxplot"
	"github.com/AntoninoFulci/bdxplot/config"
	"github.com/AntoninoFulci/bdxplot/frame"
	"github.com/AntoninoFulci/bdxplot/histo"
)

type event struct {
	pid, sid   int32
	ekin, w    float64
	vx, vy, vz float64
}

var testEvents = []event{
	{pid: 11, sid: 1, ekin: 0.5, w: 2, vx: 1, vy: 1},
	{pid: 11, sid: 1, ekin: 1.5, w: 2, vx: 20, vy: 1}, // outside the surface footprint
	{pid: 22, sid: 1, ekin: 0.5, w: 1, vx: 1, vy: 1},
	{pid: 11, sid: 2, ekin: 0.5, w: 1, vx: 1, vy: 1},
}

// writeInput writes a simulation output file holding the events and one
// run summary record.
func writeInput(t *testing.T, fname string, tot int64, start float64) {
	t.Helper()

	f, err := groot.Create(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var ev event
	w, err := rtree.NewWriter(riofs.Dir(f), frame.EventsTree, []rtree.WriteVar{
		{Name: "ParticleID", Value: &ev.pid},
		{Name: "SurfaceID", Value: &ev.sid},
		{Name: "Ekin", Value: &ev.ekin},
		{Name: "Weight1", Value: &ev.w},
		{Name: "Vx", Value: &ev.vx},
		{Name: "Vy", Value: &ev.vy},
		{Name: "Vz", Value: &ev.vz},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range testEvents {
		ev = e
		if _, err := w.Write(); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	var (
		n   = tot
		avg = 0.5
		beg = start
		dur = 10.0
	)
	rw, err := rtree.NewWriter(riofs.Dir(f), frame.RunSummaryTree, []rtree.WriteVar{
		{Name: "TotEvents", Value: &n},
		{Name: "AvgTime", Value: &avg},
		{Name: "StartTime", Value: &beg},
		{Name: "TotTime", Value: &dur},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rw.Write(); err != nil {
		t.Fatal(err)
	}
	if err := rw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func fptr(v float64) *float64 { return &v }

func testConfig(in, out string) *config.Analysis {
	return &config.Analysis{
		InputDirectory: in,
		Particle:       config.Particle{IDs: []int{11}, Name: "e", Variable: "Ekin", Weight: "Weight1"},
		Surfaces: []config.Surface{{
			ID: 1, Name: "s1",
			XL: fptr(-10), XH: fptr(10), YL: fptr(-10), YH: fptr(10),
			BinWidth: 5, SpatialAnalysis: true,
		}},
		Histograms: []config.EnergyWindow{
			{NBins: 2, MinEnergy: 0.001, MaxEnergy: 2, AlsoLogBins: true},
			{NBins: 4, MinEnergy: 0.001, MaxEnergy: 1},
		},
		NewVariables: []config.NewVariable{{Name: "R", Expression: "sqrt(Vx*Vx + Vy*Vy)"}},
		Variable2D: &config.Variable2D{
			XVariable: "R", YVariable: "Ekin",
			XBins: 2, XMin: 0, XMax: 40,
			YBins: 2, YMin: 0, YMax: 2,
			Enabled: true,
		},
		Output: config.Output{BaseName: "analysis", Directory: out, FormatTemplate: config.DefaultTemplate},
	}
}

func testInput(t *testing.T) string {
	dir := filepath.Join(t.TempDir(), "input")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	writeInput(t, filepath.Join(dir, "run_1.root"), 100, 0)
	writeInput(t, filepath.Join(dir, "run_2.root"), 300, 5)
	return dir
}

func TestRun(t *testing.T) {
	in := testInput(t)
	out := filepath.Join(t.TempDir(), "output")
	cfg := testConfig(in, out)

	var buf bytes.Buffer
	opts := Options{
		Workers:   2,
		Logger:    log.New(&buf, "", 0),
		SavePlots: true,
		SaveStats: true,
		Preview:   true,
		Now:       func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
	res, err := Run(context.Background(), cfg, opts)
	if err != nil {
		t.Fatalf("could not run analysis: %+v\n%s", err, buf.String())
	}

	if got, want := res.Summary.EOT, 400.0; got != want {
		t.Fatalf("invalid EOT: got=%v, want=%v", got, want)
	}
	if got, want := res.Passes, 1; got != want {
		t.Fatalf("all windows should be filled in one pass: got=%d", got)
	}
	if got, want := res.Rows, int64(2*len(testEvents)); got != want {
		t.Fatalf("invalid number of rows: got=%d, want=%d", got, want)
	}
	if _, err := os.Stat(filepath.Join(out, "simulation_summary.root")); err != nil {
		t.Fatalf("missing summary file: %v", err)
	}

	if got, want := len(res.Files), 2; got != want {
		t.Fatalf("invalid number of containers: got=%d, want=%d", got, want)
	}
	if got, want := res.Files[0].Path, filepath.Join(out, "analysis_e_2bins_1.0MeV_2.0GeV.root"); got != want {
		t.Fatalf("invalid container: got=%q, want=%q", got, want)
	}

	lin, err := histo.Find(res.Files[0].Path, "s1/e_h1_s1_lin")
	if err != nil {
		t.Fatal(err)
	}
	width := (2 - 0.001) / 2
	if got, want := lin.H1.Binning.Bins[0].SumW(), 4/400.0/width; math.Abs(got-want) > 1e-12 {
		t.Fatalf("invalid normalized content: got=%v, want=%v", got, want)
	}
	if got := lin.H1.Binning.Bins[1].SumW(); got != 0 {
		t.Fatalf("events outside the footprint were histogrammed: %v", got)
	}

	vtx, err := histo.Find(res.Files[0].Path, "e_h2_s1")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := sumInRange(vtx.H2), 4/400.0; math.Abs(got-want) > 1e-12 {
		t.Fatalf("invalid vertex content: got=%v, want=%v", got, want)
	}
	if _, err := histo.Find(res.Files[0].Path, "e_h1_s1_log"); err != nil {
		t.Fatalf("missing log histogram: %v", err)
	}
	if _, err := histo.Find(res.Files[1].Path, "e_h1_s1_log"); err == nil {
		t.Fatalf("unexpected log histogram in %s", res.Files[1].Path)
	}
	v2, err := histo.Find(res.Files[0].Path, "e_h2var_s1")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := sumInRange(v2.H2), 8/400.0; math.Abs(got-want) > 1e-12 {
		t.Fatalf("invalid variable_2d content: got=%v, want=%v", got, want)
	}

	if len(res.Plots) == 0 {
		t.Fatalf("no plot written")
	}
	if got, want := len(res.Stats), 2; got != want {
		t.Fatalf("invalid number of statistics rows: got=%d, want=%d", got, want)
	}
	for _, name := range []string{StatsXLSX, StatsCSV, StatsDB} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Fatalf("missing statistics file: %v", err)
		}
	}
	if !strings.Contains(buf.String(), "["+res.RunID[:8]+"]") {
		t.Fatalf("log lines are not tagged with the run id")
	}

	// a second run reuses the sidecar.
	buf.Reset()
	again, err := Run(context.Background(), cfg, Options{Logger: log.New(&buf, "", 0)})
	if err != nil {
		t.Fatalf("could not rerun analysis: %+v", err)
	}
	if again.Summary.EOT != res.Summary.EOT || again.Summary.TotalDuration != res.Summary.TotalDuration {
		t.Fatalf("summary changed: got=%+v, want=%+v", again.Summary, res.Summary)
	}
	if !strings.Contains(buf.String(), "existing summary file") {
		t.Fatalf("summary was not reloaded:\n%s", buf.String())
	}
	if again.RunID == res.RunID {
		t.Fatalf("run ids should differ")
	}
}

func sumInRange(h *hbook.H2D) float64 {
	var sum float64
	for _, bin := range h.Binning.Bins {
		sum += bin.SumW()
	}
	return sum
}

func TestRunConfigErrorBeforeIO(t *testing.T) {
	in := testInput(t)
	for _, tc := range []struct {
		name   string
		modify func(cfg *config.Analysis)
		opts   Options
	}{
		{
			name:   "unknown-region",
			modify: func(cfg *config.Analysis) { cfg.Histograms[0].Regions = []string{"nowhere"} },
		},
		{
			name:   "wide-bins",
			modify: func(cfg *config.Analysis) { cfg.Surfaces[0].BinWidth = 100 },
		},
		{
			name:   "empty-variable-2d",
			modify: func(cfg *config.Analysis) { cfg.Variable2D.XBins = 0 },
		},
		{
			name:   "log-bins-from-zero",
			modify: func(cfg *config.Analysis) { cfg.Histograms[0].MinEnergy = 0 },
		},
		{
			name:   "no-matching-window",
			modify: func(cfg *config.Analysis) {},
			opts:   Options{EnergyRanges: [][2]float64{{0.5, 6}}},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "output")
			cfg := testConfig(in, out)
			tc.modify(cfg)

			_, err := Run(context.Background(), cfg, tc.opts)
			var cerr *bdxplot.ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected a configuration error, got %v", err)
			}
			if _, err := os.Stat(filepath.Join(out, "simulation_summary.root")); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("summary file was written: %v", err)
			}
			if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("output directory was created: %v", err)
			}
		})
	}
}

func TestRunEnergyRanges(t *testing.T) {
	in := testInput(t)
	out := filepath.Join(t.TempDir(), "output")
	res, err := Run(context.Background(), testConfig(in, out), Options{
		EnergyRanges: [][2]float64{{0.001, 1}},
	})
	if err != nil {
		t.Fatalf("could not run analysis: %+v", err)
	}
	if got, want := len(res.Files), 1; got != want {
		t.Fatalf("invalid number of containers: got=%d, want=%d", got, want)
	}
	if got, want := res.Files[0].Path, filepath.Join(out, "analysis_e_4bins_1.0MeV_1.0GeV.root"); got != want {
		t.Fatalf("invalid container: got=%q, want=%q", got, want)
	}
}

func TestRunMissingInput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "output")
	cfg := testConfig(filepath.Join(t.TempDir(), "missing"), out)

	_, err := Run(context.Background(), cfg, Options{})
	var derr *bdxplot.DataError
	if !errors.As(err, &derr) {
		t.Fatalf("expected a data access error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "simulation_summary.root")); err == nil {
		t.Fatalf("summary file written without input")
	}
}

func TestRunComparisonOnly(t *testing.T) {
	in := testInput(t)
	out := filepath.Join(t.TempDir(), "output")
	res, err := Run(context.Background(), testConfig(in, out), Options{})
	if err != nil {
		t.Fatal(err)
	}

	cmpDir := filepath.Join(t.TempDir(), "cmp")
	cfg := &config.Analysis{
		Comparisons: []config.Comparison{{
			Files:  []string{res.Files[0].Path, res.Files[1].Path},
			Hists:  []string{"e_h1_s1_lin", "s1/e_h1_s1_lin"},
			Output: "windows",
			LogY:   true,
		}},
		Output: config.Output{Directory: cmpDir},
	}
	got, err := Run(context.Background(), cfg, Options{})
	if err != nil {
		t.Fatalf("could not run comparison: %+v", err)
	}
	if got.Summary != nil {
		t.Fatalf("comparison-only run resolved the exposure")
	}
	if len(got.Comparisons) != 1 || got.Comparisons[0].Plot != filepath.Join(cmpDir, "windows.pdf") {
		t.Fatalf("invalid comparison result: %+v", got.Comparisons)
	}
}

func TestRunBatch(t *testing.T) {
	in := testInput(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "output")

	good := filepath.Join(dir, "configs", "good.yaml")
	bad := filepath.Join(dir, "configs", "nested", "bad.yaml")
	for fname, doc := range map[string]string{
		good: `
input_directory: ` + in + `
particle: {particle_id: 11, name: e, variable: Ekin, weight: Weight1}
surfaces:
  - {id: 1, name: s1, xl: -10, xh: 10, yl: -10, yh: 10, bin_width: 5}
histograms:
  - {n_bins: 2, min_energy: 0.001, max_energy: 2}
output: {directory: ` + out + `}
`,
		bad: `
particle: {particle_id: 11, name: e, variable: Ekin, weight: Weight1}
histograms:
  - {n_bins: 0, min_energy: 2, max_energy: 1}
`,
	} {
		if err := os.MkdirAll(filepath.Dir(fname), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(fname, []byte(doc), 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := config.Find(filepath.Join(dir, "configs"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(files), 2; got != want {
		t.Fatalf("invalid number of configurations: got=%d, want=%d", got, want)
	}

	rep := RunBatch(context.Background(), files, Options{})
	if got, want := len(rep.Units), 2; got != want {
		t.Fatalf("invalid number of units: got=%d, want=%d", got, want)
	}
	failed := rep.Failed()
	if len(failed) != 1 || failed[0].Path != bad {
		t.Fatalf("invalid failures: %+v", failed)
	}
	var cerr *bdxplot.ConfigError
	if !errors.As(failed[0].Err, &cerr) {
		t.Fatalf("expected a configuration error, got %v", failed[0].Err)
	}
	if _, err := os.Stat(filepath.Join(out, "analysis_e_2bins_1.0MeV_2.0GeV.root")); err != nil {
		t.Fatalf("the good unit did not run: %v", err)
	}

	sum := rep.Summary()
	if !strings.Contains(sum, "Failed: 1") || !strings.Contains(sum, bad) {
		t.Fatalf("invalid summary:\n%s", sum)
	}
}
