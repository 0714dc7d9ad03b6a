package compare

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/xuri/excelize/v2"
	"go-hep.org/x/hep/csvutil"

	"github.com/AntoninoFulci/bdxplot"
)

var tableHeaders = []string{"Histogram", "File", "Name", "Integral", "Error", "Error %"}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
)

// ShortPath keeps the last two elements of a file path.
func ShortPath(fname string) string {
	parts := strings.Split(filepath.ToSlash(fname), "/")
	if len(parts) <= 2 {
		return fname
	}
	return ".../" + strings.Join(parts[len(parts)-2:], "/")
}

// cells formats r for display; missing or zero values read "N/A".
func (r Row) cells() []string {
	out := []string{r.Histogram, ShortPath(r.File), r.Label, "N/A", "N/A", "N/A"}
	if !r.Found {
		return out
	}
	if r.Integral != 0 {
		out[3] = fmt.Sprintf("%.2E", r.Integral)
	}
	if r.Error != 0 {
		out[4] = fmt.Sprintf("%.2E", r.Error)
	}
	if r.HasPercent {
		out[5] = fmt.Sprintf("%.2f%%", r.ErrorPercent)
	}
	return out
}

// Table renders rows as a terminal table.
func Table(rows []Row) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(tableHeaders...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col >= 3:
				return numberStyle
			default:
				return cellStyle
			}
		})
	for _, r := range rows {
		t.Row(r.cells()...)
	}
	return t.String()
}

// WriteCSV writes the formatted integral table to fname.
func WriteCSV(fname string, rows []Row) error {
	tbl, err := csvutil.Create(fname)
	if err != nil {
		return bdxplot.DataErr(fname, err)
	}
	defer tbl.Close()
	tbl.Writer.Comma = ','

	hdr := make([]interface{}, len(tableHeaders))
	for i, h := range tableHeaders {
		hdr[i] = h
	}
	if err := tbl.WriteRow(hdr...); err != nil {
		return bdxplot.DataErr(fname, err)
	}
	for _, r := range rows {
		cells := r.cells()
		cells[1] = r.File
		vals := make([]interface{}, len(cells))
		for i, c := range cells {
			vals[i] = c
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

// WriteXLSX writes the integral table to the sheet of a new workbook.
func WriteXLSX(fname, sheet string, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Comparison"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return bdxplot.DataErr(fname, err)
	}

	hdr := make([]interface{}, len(tableHeaders))
	for i, h := range tableHeaders {
		hdr[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		return bdxplot.DataErr(fname, err)
	}
	for i, r := range rows {
		cells := r.cells()
		cells[1] = r.File
		vals := make([]interface{}, len(cells))
		for j, c := range cells {
			vals[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return bdxplot.DataErr(fname, err)
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return bdxplot.DataErr(fname, err)
		}
	}

	if err := f.SaveAs(fname); err != nil {
		return bdxplot.DataErr(fname, err)
	}
	return nil
}
