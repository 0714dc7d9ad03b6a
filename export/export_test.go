package export

import (
	"context"
	"database/sql"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"go-hep.org/x/hep/hbook"

	"github.com/AntoninoFulci/bdxplot/config"
	"github.com/AntoninoFulci/bdxplot/histo"
)

func window(n int, lo, hi float64) config.EnergyWindow {
	return config.EnergyWindow{NBins: n, MinEnergy: lo, MaxEnergy: hi}
}

func TestOrder(t *testing.T) {
	files := []File{
		{Path: "c", Window: window(10, 0.5, 1)},
		{Path: "full", Window: window(100, 1e-9, 6)},
		{Path: "a", Window: window(10, 0.001, 0.01)},
		{Path: "b", Window: window(10, 0.1, 0.2)},
	}
	var got []string
	for _, f := range Order(files) {
		got = append(got, f.Path)
	}
	if strings.Join(got, ",") != "full,a,b,c" {
		t.Fatalf("got %v", got)
	}

	if got, want := Prefix(0, files[1].Window), "00_100bins_1.0eV_6.0GeV_"; got != want {
		t.Fatalf("prefix: got=%q, want=%q", got, want)
	}
}

func TestIntegral(t *testing.T) {
	h1 := hbook.NewH1D(4, 0, 2)
	h1.Fill(0.1, 2)
	h1.Fill(1.9, 3)
	h1.Fill(5, 100) // overflow is not integrated
	sum, err := Integral1D(h1)
	if got, want := sum, 0.5*5; math.Abs(got-want) > 1e-12 {
		t.Fatalf("1-D integral: got=%v, want=%v", got, want)
	}
	if got, want := err, math.Sqrt(0.25*(4+9)); math.Abs(got-want) > 1e-12 {
		t.Fatalf("1-D error: got=%v, want=%v", got, want)
	}

	h2 := hbook.NewH2D(2, 0, 10, 2, 0, 4)
	h2.Fill(1, 1, 2)
	h2.Fill(6, 3, 1)
	sum, err = Integral2D(h2)
	if got, want := sum, 10.0*3; math.Abs(got-want) > 1e-12 {
		t.Fatalf("2-D integral: got=%v, want=%v", got, want)
	}
	if got, want := err, math.Sqrt(100*(4+1)); math.Abs(got-want) > 1e-12 {
		t.Fatalf("2-D error: got=%v, want=%v", got, want)
	}
}

func writeContainer(t *testing.T, fname string, w config.EnergyWindow) {
	t.Helper()

	lin := hbook.NewH1D(w.NBins, w.MinEnergy, w.MaxEnergy)
	lin.Ann["name"] = histo.Name("e", "lin", "s1")
	lin.Ann["title"] = histo.Title("s1", "Ekin [GeV]", "n/(GeV * EOT)")
	lin.Fill(w.MinEnergy+1e-3, 1)

	vtx := hbook.NewH2D(4, -10, 10, 4, -10, 10)
	vtx.Ann["name"] = histo.Name("e", "h2", "s1")
	vtx.Ann["title"] = histo.Title("s1", "x [cm]", "y [cm]")
	vtx.Fill(1, 1, 2)

	lin2 := hbook.NewH1D(w.NBins, w.MinEnergy, w.MaxEnergy)
	lin2.Ann["name"] = histo.Name("e", "lin", "s2")
	lin2.Ann["title"] = histo.Title("s2", "Ekin [GeV]", "n/(GeV * EOT)")
	lin2.Fill(w.MinEnergy+1e-3, 4)

	norm := &histo.Normalized{
		Particle: "e",
		Window:   w,
		EOT:      1,
		Sets: []histo.NormSet{
			{Region: "s1", Lin: lin, Vertex: vtx},
			{Region: "s2", Lin: lin2},
		},
	}
	if err := norm.Write(fname); err != nil {
		t.Fatal(err)
	}
}

func testFiles(t *testing.T) (string, []File) {
	dir := t.TempDir()
	files := []File{
		{Path: filepath.Join(dir, "analysis_e_2bins_1.0MeV_10.0MeV.root"), Window: window(2, 0.001, 0.01)},
		{Path: filepath.Join(dir, "analysis_e_4bins_1.0MeV_1.0GeV.root"), Window: window(4, 0.001, 1)},
	}
	for _, f := range files {
		writeContainer(t, f.Path, f.Window)
	}
	return dir, files
}

func TestStatistics(t *testing.T) {
	dir, files := testFiles(t)

	stats, err := Statistics(files, Options{RunID: "run-1"})
	if err != nil {
		t.Fatalf("could not collect statistics: %+v", err)
	}
	if got, want := len(stats), 4; got != want {
		t.Fatalf("rows: got=%d, want=%d", got, want)
	}

	// widest window first, spatial histogram preferred.
	s := stats[0]
	if s.File != filepath.Base(files[1].Path) || s.Detector != "s1" || s.Histogram != "e_h2_s1" {
		t.Fatalf("first row: %+v", s)
	}
	if got, want := s.Integral, 2*5.0*5.0; math.Abs(got-want) > 1e-12 {
		t.Fatalf("integral: got=%v, want=%v", got, want)
	}
	if s.YL != -10 || s.YH != 10 || s.RunID != "run-1" {
		t.Fatalf("extents: %+v", s)
	}
	if s := stats[1]; s.Histogram != "e_h1_s2_lin" || !math.IsNaN(s.YL) || s.EnergyRange != "1.0MeV - 1.0GeV" {
		t.Fatalf("second row: %+v", s)
	}

	csvName := filepath.Join(dir, "histogram_statistics.csv")
	if err := WriteCSV(csvName, stats); err != nil {
		t.Fatalf("could not write csv: %+v", err)
	}
	f, err := os.Open(csvName)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 5 || recs[0][0] != "analyzed_file" || recs[2][9] != "" {
		t.Fatalf("csv: %q", recs)
	}

	xlsxName := filepath.Join(dir, "histogram_statistics.xlsx")
	if err := WriteXLSX(xlsxName, stats, 1e9); err != nil {
		t.Fatalf("could not write xlsx: %+v", err)
	}
	xf, err := excelize.OpenFile(xlsxName)
	if err != nil {
		t.Fatal(err)
	}
	defer xf.Close()
	if got, want := strings.Join(xf.GetSheetList(), ","), "Notes,00,01"; got != want {
		t.Fatalf("sheets: got=%q, want=%q", got, want)
	}
	rows, err := xf.GetRows("00")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[1][2] != "e_h2_s1" {
		t.Fatalf("sheet 00: %q", rows)
	}

	dbName := filepath.Join(dir, "histogram_statistics.db")
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := WriteSQLite(ctx, dbName, stats); err != nil {
			t.Fatalf("could not write sqlite: %+v", err)
		}
	}
	db, err := sql.Open("sqlite", dbName)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stats WHERE run_id = ?", "run-1").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 8 {
		t.Fatalf("sqlite rows: got=%d, want=8", n)
	}
}

func TestPlots(t *testing.T) {
	dir, files := testFiles(t)

	out, err := Plots(files, dir, Options{Format: "png"})
	if err != nil {
		t.Fatalf("could not render: %+v", err)
	}
	if got, want := len(out), 6; got != want {
		t.Fatalf("plots: got=%d, want=%d", got, want)
	}
	if got, want := filepath.Base(out[0]), "00_4bins_1.0MeV_1.0GeV_e_h1_s1_lin.png"; got != want {
		t.Fatalf("first plot: got=%q, want=%q", got, want)
	}
	for _, fname := range out {
		fi, err := os.Stat(fname)
		if err != nil {
			t.Fatal(err)
		}
		if fi.Size() == 0 {
			t.Fatalf("empty plot %s", fname)
		}
	}
}

func TestPreview(t *testing.T) {
	h := hbook.NewH1D(10, 0, 10)
	for i := 0; i < 10; i++ {
		h.Fill(float64(i)+0.5, float64(i*i))
	}
	s := Preview(h, "spectrum", 40, 5)
	if !strings.Contains(s, "spectrum") {
		t.Fatalf("caption missing from:\n%s", s)
	}
}
