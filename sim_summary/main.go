package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/AntoninoFulci/bdxplot"
	"github.com/AntoninoFulci/bdxplot/exposure"
	"github.com/AntoninoFulci/bdxplot/frame"
)

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: `+os.Args[0]+` [options] [<input-dir>]

Compute, or reload, the exposure summary (EOT, simulated time span and
parallel job occupancy) of the simulation ROOT files of a directory.

options:
`,
	)
	flag.PrintDefaults()
}

func main() {
	log.SetPrefix("sim-summary: ")
	log.SetFlags(0)

	if err := bdxplot.LoadEnv(".env"); err != nil {
		log.Fatalf("could not load .env file: %+v", err)
	}

	var (
		outDir = flag.String("output-dir", bdxplot.EnvString(bdxplot.EnvOutputDir, "."), "directory of the summary file")
		force  = flag.Bool("f", false, "recompute the summary even if the summary file exists")
	)
	flag.Usage = printUsage
	flag.Parse()

	input := bdxplot.EnvString(bdxplot.EnvInputDir, "")
	switch flag.NArg() {
	case 0:
	case 1:
		input = flag.Arg(0)
	default:
		printUsage()
		log.Fatal("Invalid arguments")
	}
	if input == "" {
		printUsage()
		log.Fatal("Invalid arguments: no input directory")
	}

	src, err := frame.Glob(input, frame.RunSummaryTree)
	if err != nil {
		log.Fatalf("could not find run summaries: %+v", err)
	}

	ctx := context.Background()
	if *force {
		recs, err := exposure.Read(ctx, src)
		if err != nil {
			log.Fatalf("could not read run summaries: %+v", err)
		}
		s, err := exposure.Estimate(recs)
		if err != nil {
			log.Fatalf("could not estimate exposure: %+v", err)
		}
		fmt.Println(s)
		return
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("could not create output directory: %+v", err)
	}
	s, err := exposure.Resolve(ctx, filepath.Join(*outDir, "simulation_summary.root"), src, log.Default())
	if err != nil {
		log.Fatalf("could not resolve exposure: %+v", err)
	}
	fmt.Println(s)
}
