package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/AntoninoFulci/bdxplot"
	"github.com/AntoninoFulci/bdxplot/compare"
	"github.com/AntoninoFulci/bdxplot/config"
)

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: `+os.Args[0]+` [options] <file>:<histogram> <file>:<histogram>...

Overlay histograms stored in analysis files and print their integrals.
A histogram is given by its path in the file (region/name) or its bare name.

ex:
 $> `+os.Args[0]+` -o shielding -label shielded -label bare \
      a.root:fl_1000/neutrons_h1_fl_1000_lin b.root:neutrons_h1_fl_1000_lin

options:
`,
	)
	flag.PrintDefaults()
}

func main() {
	log.SetPrefix("hist-compare: ")
	log.SetFlags(0)

	var (
		labels bdxplot.StringArrayFlags
		colors bdxplot.StringArrayFlags
		xrange bdxplot.FloatArrayFlags
		yrange bdxplot.FloatArrayFlags

		output = flag.String("o", "comparison", "output file stem")
		outDir = flag.String("output-dir", ".", "output directory")
		title  = flag.String("title", "Comparison", "plot title")
		xlabel = flag.String("xlabel", "", "x axis label")
		ylabel = flag.String("ylabel", "", "y axis label")
		logx   = flag.Bool("logx", false, "log-scaled x axis")
		liny   = flag.Bool("liny", false, "linear y axis (log by default)")
		width  = flag.Float64("line-width", 2, "line width")
		legend = flag.String("legend", "top_right", "legend position (top_right, bottom_left, ... or x1,y1,x2,y2)")
		draw   = flag.String("draw", "hist", "draw option (hist, e)")
	)
	flag.Var(&labels, "label", "legend label (repeatable, in argument order)")
	flag.Var(&colors, "color", "ROOT colour code (repeatable)")
	flag.Var(&xrange, "xrange", "x axis limit (give twice: min then max)")
	flag.Var(&yrange, "yrange", "y axis limit (give twice: min then max)")
	flag.Usage = printUsage
	flag.Parse()
	if flag.NArg() < 1 {
		printUsage()
		log.Fatal("Invalid arguments")
	}

	cmp := config.Comparison{
		Labels:          labels.Array,
		Output:          *output,
		Title:           *title,
		XLabel:          *xlabel,
		YLabel:          *ylabel,
		LogX:            *logx,
		LogY:            !*liny,
		OutputDirectory: *outDir,
		LineWidth:       *width,
		LegendPosition:  *legend,
		DrawOption:      *draw,
	}
	for _, arg := range flag.Args() {
		i := strings.LastIndex(arg, ":")
		if i <= 0 || i == len(arg)-1 {
			log.Fatalf("invalid argument %q: want <file>:<histogram>", arg)
		}
		cmp.Files = append(cmp.Files, filepath.Clean(arg[:i]))
		cmp.Hists = append(cmp.Hists, arg[i+1:])
	}
	for _, c := range colors.Array {
		var code int
		if _, err := fmt.Sscanf(c, "%d", &code); err != nil {
			log.Fatalf("invalid colour code %q: %+v", c, err)
		}
		cmp.Colors = append(cmp.Colors, code)
	}
	if lo, hi, ok := xrange.Range(); ok {
		cmp.XMin, cmp.XMax = &lo, &hi
	}
	if lo, hi, ok := yrange.Range(); ok {
		cmp.YMin, cmp.YMax = &lo, &hi
	}

	if _, err := compare.Run(cmp, compare.Options{Logger: log.Default()}); err != nil {
		log.Fatalf("could not compare histograms: %+v", err)
	}
}
