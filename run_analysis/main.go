package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/pkg/profile"

	"github.com/AntoninoFulci/bdxplot"
	"github.com/AntoninoFulci/bdxplot/analysis"
	"github.com/AntoninoFulci/bdxplot/config"
)

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: `+os.Args[0]+` [options] [<config-file>]

Run the analysis of one configuration file, or of every configuration
file found below -config-dir.

ex:
 $> `+os.Args[0]+` -i ./sim/run42 config/neutrons.yaml
 $> `+os.Args[0]+` -config-dir ./config -output-dir ./out -t 8

options:
`,
	)
	flag.PrintDefaults()
}

func main() {
	log.SetPrefix("bdx: ")
	log.SetFlags(0)

	if err := bdxplot.LoadEnv(".env"); err != nil {
		log.Fatalf("could not load .env file: %+v", err)
	}

	var (
		inputDir  = flag.String("i", bdxplot.EnvString(bdxplot.EnvInputDir, ""), "input directory of the simulation ROOT files")
		configDir = flag.String("config-dir", "", "directory of configuration files to process")
		outputDir = flag.String("output-dir", bdxplot.EnvString(bdxplot.EnvOutputDir, ""), "override the output directory of the configurations")
		noPDF     = flag.Bool("no-save-pdf", false, "do not save the histograms as PDF")
		noStats   = flag.Bool("no-save-hstat", false, "do not save the histogram statistics")
		workers   = flag.Int("t", bdxplot.EnvInt(bdxplot.EnvWorkers, 0), "number of files read concurrently (0: one per CPU)")
		prof      = flag.String("profile", "", "profile the run (cpu|mem)")
		preview   = flag.Bool("preview", false, "print the linear spectra in the terminal")
		ranges    = flag.String("energy-ranges", "", "only run the configured windows with these bounds (ex: 0.001-1,1.0GeV-6.0GeV)")
	)
	flag.Usage = printUsage
	flag.Parse()

	var files []string
	switch {
	case flag.NArg() == 1 && *configDir == "":
		files = []string{flag.Arg(0)}
	case flag.NArg() == 0 && *configDir != "":
		var err error
		files, err = config.Find(*configDir)
		if err != nil {
			log.Fatalf("could not find configuration files: %+v", err)
		}
		if len(files) == 0 {
			log.Fatalf("no configuration file found in %q", *configDir)
		}
		log.Printf("found %d configuration files in %q:", len(files), *configDir)
		for _, f := range files {
			log.Printf("  - %s", f)
		}
	default:
		printUsage()
		log.Fatal("Invalid arguments: need either a configuration file or -config-dir")
	}

	energyRanges, err := bdxplot.ParseEnergyRanges(*ranges)
	if err != nil {
		log.Fatalf("could not parse -energy-ranges: %+v", err)
	}

	prf, err := startProfile(*prof, ".")
	if err != nil {
		log.Fatalf("%+v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rep := analysis.RunBatch(ctx, files, analysis.Options{
		Workers:   *workers,
		Logger:    log.Default(),
		InputDir:  *inputDir,
		OutputDir: *outputDir,
		SavePlots: !*noPDF,
		SaveStats: !*noStats,
		Preview:   *preview,

		EnergyRanges: energyRanges,
	})
	fmt.Println(rep.Summary())
	// stopped before log.Fatalf, which skips deferred calls.
	prf.Stop()

	if n := len(rep.Failed()); n > 0 {
		log.Fatalf("%d of %d configuration(s) failed", n, len(rep.Units))
	}
}

type noProfile struct{}

func (noProfile) Stop() {}

// startProfile starts the cpu or mem profiler, writing in dir.
func startProfile(mode, dir string) (interface{ Stop() }, error) {
	switch mode {
	case "":
		return noProfile{}, nil
	case "cpu":
		return profile.Start(profile.CPUProfile, profile.ProfilePath(dir), profile.NoShutdownHook), nil
	case "mem":
		return profile.Start(profile.MemProfile, profile.ProfilePath(dir), profile.NoShutdownHook), nil
	default:
		return nil, fmt.Errorf("invalid profile mode %q", mode)
	}
}
