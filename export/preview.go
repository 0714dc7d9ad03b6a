package export

import (
	"github.com/guptarohit/asciigraph"
	"go-hep.org/x/hep/hbook"
)

// Preview renders the bin contents of h as a terminal line chart.
func Preview(h *hbook.H1D, caption string, width, height int) string {
	data := make([]float64, len(h.Binning.Bins))
	for i, bin := range h.Binning.Bins {
		data[i] = bin.SumW()
	}
	if width < 20 {
		width = 20
	}
	if height < 3 {
		height = 3
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}
