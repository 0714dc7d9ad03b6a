// Package export renders the histograms of analysis containers and
// tabulates their integrals.
package export

import (
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/AntoninoFulci/bdxplot"
	"github.com/AntoninoFulci/bdxplot/config"
)

// File is an analysis container and the energy window it was filled for.
type File struct {
	Path   string
	Window config.EnergyWindow
}

// Options configures exports.
type Options struct {
	Logger *log.Logger
	RunID  string  // tagged on statistics rows
	EOT    float64 // reported in the notes, when known
	Format string  // plot file format, "pdf" by default
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return o.Logger
}

func (o Options) format() string {
	if o.Format == "" {
		return "pdf"
	}
	return o.Format
}

// Order sorts files with the widest energy window first, then by
// increasing minimum energy.
func Order(files []File) []File {
	out := append([]File(nil), files...)
	if len(out) == 0 {
		return out
	}
	span := func(f File) float64 { return f.Window.MaxEnergy - f.Window.MinEnergy }
	widest := span(out[0])
	for _, f := range out[1:] {
		if s := span(f); s > widest {
			widest = s
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		fi, fj := span(out[i]) == widest, span(out[j]) == widest
		if fi != fj {
			return fi
		}
		if fi {
			return false
		}
		return out[i].Window.MinEnergy < out[j].Window.MinEnergy
	})
	return out
}

// Prefix returns the "NN_<nbins>bins_<minE>_<maxE>_" prefix of the plots of
// the i-th file.
func Prefix(i int, w config.EnergyWindow) string {
	return fmt.Sprintf("%02d_%dbins_%s_%s_",
		i, w.NBins, bdxplot.FormatEnergy(w.MinEnergy), bdxplot.FormatEnergy(w.MaxEnergy),
	)
}
