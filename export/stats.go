package export

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go-hep.org/x/hep/csvutil"
	"go-hep.org/x/hep/hbook"
	_ "modernc.org/sqlite"

	"github.com/AntoninoFulci/bdxplot"
	"github.com/AntoninoFulci/bdxplot/histo"
)

// Stat is the integral of the histogram chosen for one detector region.
type Stat struct {
	File         string
	Detector     string
	Histogram    string
	EnergyRange  string
	Integral     float64
	Error        float64
	ErrorPercent float64
	XL, XH       float64
	YL, YH       float64 // NaN for 1-D histograms
	RunID        string
}

var statColumns = []string{
	"analyzed_file", "detector", "histogram_name", "energy_range",
	"integral", "error", "error_percent",
	"xl", "xh", "yl", "yh", "delta_x", "delta_y", "run_id",
}

// Integral1D returns Σ content×width over the in-range bins of h and its
// error √Σ σ²×width².
func Integral1D(h *hbook.H1D) (sum, err float64) {
	var err2 float64
	for _, bin := range h.Binning.Bins {
		w := bin.XWidth()
		sum += bin.SumW() * w
		err2 += bin.SumW2() * w * w
	}
	return sum, math.Sqrt(err2)
}

// Integral2D is Integral1D for 2-D histograms, with bin areas as widths.
func Integral2D(h *hbook.H2D) (sum, err float64) {
	var err2 float64
	for _, bin := range h.Binning.Bins {
		a := bin.XWidth() * bin.YWidth()
		sum += bin.SumW() * a
		err2 += bin.SumW2() * a * a
	}
	return sum, math.Sqrt(err2)
}

func percent(err, sum float64) float64 {
	if sum == 0 {
		return 0
	}
	return err / sum * 100
}

// Statistics returns one row per detector region of every file: the
// spatial histogram when present, the linear spectrum otherwise.
func Statistics(files []File, opts Options) ([]Stat, error) {
	var out []Stat
	for _, f := range Order(files) {
		entries, err := histo.ReadAll(f.Path)
		if err != nil {
			return nil, err
		}

		var (
			order []string
			best  = make(map[string]Stat)
			prio  = make(map[string]int)
		)
		for _, e := range entries {
			det := e.Region()
			if det == "" {
				det = e.Name
			}

			var (
				st = Stat{
					File:        filepath.Base(f.Path),
					Detector:    det,
					Histogram:   e.Name,
					EnergyRange: f.Window.Label(),
					YL:          math.NaN(),
					YH:          math.NaN(),
					RunID:       opts.RunID,
				}
				p int
			)
			switch {
			case e.H2 != nil && strings.Contains(e.Name, "_h2_"):
				p = 0
				st.Integral, st.Error = Integral2D(e.H2)
				st.XL, st.XH = e.H2.XMin(), e.H2.XMax()
				st.YL, st.YH = e.H2.YMin(), e.H2.YMax()
			case e.H1 != nil && strings.HasSuffix(e.Name, "_lin"):
				p = 1
				st.Integral, st.Error = Integral1D(e.H1)
				st.XL, st.XH = e.H1.XMin(), e.H1.XMax()
			default:
				continue
			}
			st.ErrorPercent = percent(st.Error, st.Integral)

			old, ok := prio[det]
			if !ok {
				order = append(order, det)
			}
			if !ok || p < old {
				prio[det] = p
				best[det] = st
			}
		}
		for _, det := range order {
			out = append(out, best[det])
		}
	}
	return out, nil
}

func (s Stat) values() []interface{} {
	return []interface{}{
		s.File, s.Detector, s.Histogram, s.EnergyRange,
		s.Integral, s.Error, s.ErrorPercent,
		s.XL, s.XH, nullable(s.YL), nullable(s.YH),
		s.XH - s.XL, nullable(s.YH - s.YL), s.RunID,
	}
}

func nullable(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// WriteCSV writes stats to a comma separated file.
func WriteCSV(fname string, stats []Stat) error {
	tbl, err := csvutil.Create(fname)
	if err != nil {
		return bdxplot.DataErr(fname, err)
	}
	defer tbl.Close()
	tbl.Writer.Comma = ','

	hdr := make([]interface{}, len(statColumns))
	for i, c := range statColumns {
		hdr[i] = c
	}
	if err := tbl.WriteRow(hdr...); err != nil {
		return bdxplot.DataErr(fname, err)
	}
	for _, s := range stats {
		vals := s.values()
		for i, v := range vals {
			if v == nil {
				vals[i] = ""
			}
		}
		if err := tbl.WriteRow(vals...); err != nil {
			return bdxplot.DataErr(fname, err)
		}
	}
	if err := tbl.Close(); err != nil {
		return bdxplot.DataErr(fname, err)
	}
	return nil
}

// WriteXLSX writes stats to an Excel workbook: a Notes sheet describing
// the integrals, then one sheet per energy range.
func WriteXLSX(fname string, stats []Stat, eot float64) error {
	f := excelize.NewFile()
	defer f.Close()

	notes := "Integrals are sums of bin content times bin width (area for 2-D histograms) over the in-range bins, scaled by 1/EOT"
	if eot > 0 {
		notes += fmt.Sprintf(" where EOT=%g", eot)
	}
	if err := f.SetSheetName("Sheet1", "Notes"); err != nil {
		return bdxplot.DataErr(fname, err)
	}
	if err := f.SetCellStr("Notes", "A1", notes+"."); err != nil {
		return bdxplot.DataErr(fname, err)
	}

	sci, err := numFmt(f, "0.00E+00")
	if err != nil {
		return bdxplot.DataErr(fname, err)
	}
	pct, err := numFmt(f, `0.00"%"`)
	if err != nil {
		return bdxplot.DataErr(fname, err)
	}
	dim, err := numFmt(f, "0.00")
	if err != nil {
		return bdxplot.DataErr(fname, err)
	}
	styles := map[int]int{5: sci, 6: sci, 7: pct, 8: dim, 9: dim, 10: dim, 11: dim, 12: dim, 13: dim}

	var (
		sheets []string
		rows   = make(map[string][]Stat)
	)
	for _, s := range stats {
		if _, ok := rows[s.EnergyRange]; !ok {
			sheets = append(sheets, s.EnergyRange)
		}
		rows[s.EnergyRange] = append(rows[s.EnergyRange], s)
	}

	for i, label := range sheets {
		sheet := fmt.Sprintf("%02d", i)
		if _, err := f.NewSheet(sheet); err != nil {
			return bdxplot.DataErr(fname, err)
		}
		hdr := make([]interface{}, len(statColumns))
		for j, c := range statColumns {
			hdr[j] = c
		}
		if err := f.SetSheetRow(sheet, "A1", &hdr); err != nil {
			return bdxplot.DataErr(fname, err)
		}
		for j, s := range rows[label] {
			vals := s.values()
			cell, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return bdxplot.DataErr(fname, err)
			}
			if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
				return bdxplot.DataErr(fname, err)
			}
			for col, style := range styles {
				cell, _ := excelize.CoordinatesToCellName(col, j+2)
				if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
					return bdxplot.DataErr(fname, err)
				}
			}
		}
	}

	if err := f.SaveAs(fname); err != nil {
		return bdxplot.DataErr(fname, err)
	}
	return nil
}

func numFmt(f *excelize.File, format string) (int, error) {
	return f.NewStyle(&excelize.Style{CustomNumFmt: &format})
}

// WriteSQLite appends stats to the stats table of the SQLite database
// fname, creating it if needed.
func WriteSQLite(ctx context.Context, fname string, stats []Stat) error {
	if err := os.MkdirAll(filepath.Dir(fname), 0o750); err != nil {
		return bdxplot.DataErr(fname, err)
	}

	db, err := sql.Open("sqlite", fname)
	if err != nil {
		return bdxplot.DataErr(fname, fmt.Errorf("failed to open database: %w", err))
	}
	defer db.Close()

	for _, q := range []string{
		"PRAGMA busy_timeout=5000",
		`CREATE TABLE IF NOT EXISTS stats (
			analyzed_file  TEXT NOT NULL,
			detector       TEXT NOT NULL,
			histogram_name TEXT NOT NULL,
			energy_range   TEXT NOT NULL,
			integral       REAL,
			error          REAL,
			error_percent  REAL,
			xl REAL, xh REAL, yl REAL, yh REAL,
			delta_x REAL, delta_y REAL,
			run_id TEXT
		)`,
	} {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return bdxplot.DataErr(fname, fmt.Errorf("failed to execute %q: %w", q, err))
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return bdxplot.DataErr(fname, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO stats (%s) VALUES (?%s)",
		strings.Join(statColumns, ", "), strings.Repeat(", ?", len(statColumns)-1),
	))
	if err != nil {
		return bdxplot.DataErr(fname, err)
	}
	defer stmt.Close()

	for _, s := range stats {
		if _, err := stmt.ExecContext(ctx, s.values()...); err != nil {
			return bdxplot.DataErr(fname, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return bdxplot.DataErr(fname, err)
	}
	return nil
}
