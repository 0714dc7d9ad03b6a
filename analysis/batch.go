package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AntoninoFulci/bdxplot/config"
)

// Unit is the outcome of one configuration file.
type Unit struct {
	Path   string
	Result *Result
	Err    error
}

// BatchReport is the outcome of RunBatch.
type BatchReport struct {
	Units []Unit
}

// Failed returns the units that failed.
func (r BatchReport) Failed() []Unit {
	var out []Unit
	for _, u := range r.Units {
		if u.Err != nil {
			out = append(out, u)
		}
	}
	return out
}

// RunBatch loads and runs every configuration of files in turn. A failing
// unit is logged and counted; it does not stop the others.
func RunBatch(ctx context.Context, files []string, opts Options) BatchReport {
	logger := opts.logger()
	var rep BatchReport
	for i, fname := range files {
		logger.Printf("[%d/%d] processing %s", i+1, len(files), fname)
		u := Unit{Path: fname}
		cfg, err := config.Load(fname)
		if err == nil {
			u.Result, err = Run(ctx, cfg, opts)
		}
		if err != nil {
			u.Err = err
			logger.Printf("error processing %s: %v", fname, err)
		} else {
			logger.Printf("analysis completed for %s", fname)
		}
		rep.Units = append(rep.Units, u)

		if ctx.Err() != nil {
			break
		}
	}
	return rep
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// Summary renders the report for a terminal.
func (r BatchReport) Summary() string {
	failed := r.Failed()
	lines := []string{
		titleStyle.Render("Batch processing summary"),
		fmt.Sprintf("Total config files: %d", len(r.Units)),
		okStyle.Render(fmt.Sprintf("Successful: %d", len(r.Units)-len(failed))),
	}
	if len(failed) == 0 {
		lines = append(lines, okStyle.Render("Failed: 0"))
		return boxStyle.Render(strings.Join(lines, "\n"))
	}
	lines = append(lines, failStyle.Render(fmt.Sprintf("Failed: %d", len(failed))))
	for _, u := range failed {
		lines = append(lines, failStyle.Render("  - "+u.Path)+": "+u.Err.Error())
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
