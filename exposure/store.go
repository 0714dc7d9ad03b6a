package exposure

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"sort"

	"github.com/minio/highwayhash"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"

	"github.com/AntoninoFulci/bdxplot"
	"github.com/AntoninoFulci/bdxplot/frame"
)

// SummaryTree is the name of the single-entry tree of the sidecar file.
const SummaryTree = "SimSummary"

var fingerprintKey = []byte("bdxplot simulation summary key!!")

// Write stores s in a new file fname. It fails with an error matching
// fs.ErrExist when fname already exists: the file is written aside and
// linked into place, so concurrent writers never expose a partial file.
func Write(fname string, s Summary) error {
	tmp, err := os.CreateTemp(filepath.Dir(fname), ".simsummary-*.root")
	if err != nil {
		return bdxplot.DataErr(fname, err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	if err := write(tmp.Name(), s); err != nil {
		return bdxplot.DataErr(fname, err)
	}

	if err := os.Link(tmp.Name(), fname); err != nil {
		return bdxplot.DataErr(fname, err)
	}
	return nil
}

func write(fname string, s Summary) error {
	f, err := groot.Create(fname)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := rtree.NewWriter(riofs.Dir(f), SummaryTree, []rtree.WriteVar{
		{Name: "MeanAvgTime", Value: &s.MeanAvgTime},
		{Name: "EOT", Value: &s.EOT},
		{Name: "MinStart", Value: &s.MinStart},
		{Name: "MaxEnd", Value: &s.MaxEnd},
		{Name: "TotalDuration", Value: &s.TotalDuration},
		{Name: "AverageParallelJobs", Value: &s.AverageParallelJobs},
		{Name: "ParallelJobsStdError", Value: &s.ParallelJobsStdError},
		{Name: "Fingerprint", Value: &s.Fingerprint},
	})
	if err != nil {
		return fmt.Errorf("could not create %s tree: %w", SummaryTree, err)
	}
	if _, err := w.Write(); err != nil {
		return fmt.Errorf("could not fill %s tree: %w", SummaryTree, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("could not close %s tree: %w", SummaryTree, err)
	}
	return f.Close()
}

// Load reads the summary stored in fname. Only EOT is required; the other
// fields are read when present.
func Load(fname string) (Summary, error) {
	f, err := groot.Open(fname)
	if err != nil {
		return Summary{}, bdxplot.DataErr(fname, err)
	}
	defer f.Close()

	obj, err := riofs.Dir(f).Get(SummaryTree)
	if err != nil {
		return Summary{}, bdxplot.DataErr(fname, err)
	}
	t, ok := obj.(rtree.Tree)
	if !ok {
		return Summary{}, bdxplot.DataErr(fname, fmt.Errorf("%s is a %T, not a tree", SummaryTree, obj))
	}

	var s Summary
	fields := map[string]interface{}{
		"MeanAvgTime":          &s.MeanAvgTime,
		"EOT":                  &s.EOT,
		"MinStart":             &s.MinStart,
		"MaxEnd":               &s.MaxEnd,
		"TotalDuration":        &s.TotalDuration,
		"AverageParallelJobs":  &s.AverageParallelJobs,
		"ParallelJobsStdError": &s.ParallelJobsStdError,
		"Fingerprint":          &s.Fingerprint,
	}

	var (
		rvars  []rtree.ReadVar
		hasEOT bool
	)
	for _, rv := range rtree.NewReadVars(t) {
		ptr, ok := fields[rv.Name]
		if !ok || reflect.TypeOf(rv.Value) != reflect.TypeOf(ptr) {
			continue
		}
		hasEOT = hasEOT || rv.Name == "EOT"
		rvars = append(rvars, rtree.ReadVar{Name: rv.Name, Value: ptr})
	}
	if !hasEOT {
		return Summary{}, bdxplot.DataErr(fname, fmt.Errorf("no EOT branch in %s", SummaryTree))
	}
	if t.Entries() < 1 {
		return Summary{}, bdxplot.DataErr(fname, fmt.Errorf("empty %s tree", SummaryTree))
	}

	r, err := rtree.NewReader(t, rvars, rtree.WithRange(0, 1))
	if err != nil {
		return Summary{}, bdxplot.DataErr(fname, err)
	}
	defer r.Close()

	if err := r.Read(func(rtree.RCtx) error { return nil }); err != nil {
		return Summary{}, bdxplot.DataErr(fname, err)
	}
	return s, nil
}

// Resolve returns the summary cached in fname or, when fname does not
// exist, estimates it from the run-summary tree of src and stores it.
// A concurrent writer winning the race to fname is not an error: its file
// is loaded instead.
func Resolve(ctx context.Context, fname string, src *frame.TreeSource, logger *log.Logger) (Summary, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	fp, err := Fingerprint(src.Files)
	if err != nil {
		return Summary{}, err
	}

	switch _, err := os.Stat(fname); {
	case err == nil:
		s, err := Load(fname)
		if err != nil {
			return Summary{}, err
		}
		logger.Printf("read EOT from existing summary file %s: %g", fname, s.EOT)
		if s.Fingerprint != "" && s.Fingerprint != fp {
			logger.Printf("warning: %s was computed from a different input set", fname)
		}
		return s, nil
	case !errors.Is(err, fs.ErrNotExist):
		return Summary{}, bdxplot.DataErr(fname, err)
	}

	logger.Printf("creating new simulation summary file %s", fname)
	recs, err := Read(ctx, src)
	if err != nil {
		return Summary{}, err
	}
	s, err := Estimate(recs)
	if err != nil {
		return Summary{}, err
	}
	s.Fingerprint = fp

	err = Write(fname, s)
	switch {
	case err == nil:
		logger.Printf("total number of primaries simulated: %g", s.EOT)
		logger.Printf("mean AvgTime per primary: %.3e s", s.MeanAvgTime)
		return s, nil
	case errors.Is(err, fs.ErrExist):
		logger.Printf("summary file %s created concurrently, loading it", fname)
		return Load(fname)
	default:
		return Summary{}, err
	}
}

// Fingerprint hashes the names and sizes of files.
func Fingerprint(files []string) (string, error) {
	h, err := highwayhash.New(fingerprintKey)
	if err != nil {
		return "", fmt.Errorf("could not create hash: %w", err)
	}

	names := append([]string(nil), files...)
	sort.Strings(names)
	for _, name := range names {
		fi, err := os.Stat(name)
		if err != nil {
			return "", bdxplot.DataErr(name, err)
		}
		fmt.Fprintf(h, "%s:%d\n", filepath.Base(name), fi.Size())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
