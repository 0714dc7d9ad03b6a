package frame

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/root"
	"go-hep.org/x/hep/groot/rtree"

	"github.com/AntoninoFulci/bdxplot"
	"github.com/AntoninoFulci/bdxplot/selection"
)

// Tree names written by the simulation.
const (
	EventsTree     = "Events"
	RunSummaryTree = "RunSummary"
)

// TreeSource reads the tree named Tree from each of Files, one partition
// per file.
type TreeSource struct {
	Tree  string
	Files []string
}

// Glob returns a TreeSource over every ROOT file of dir.
func Glob(dir, tree string) (*TreeSource, error) {
	files, err := doublestar.FilepathGlob(filepath.Join(dir, "*.root"))
	if err != nil {
		return nil, bdxplot.DataErr(dir, err)
	}
	if len(files) == 0 {
		return nil, bdxplot.DataErr(dir, fmt.Errorf("no ROOT file found"))
	}
	sort.Strings(files)
	return &TreeSource{Tree: tree, Files: files}, nil
}

func (s *TreeSource) Partitions() int { return len(s.Files) }

func (s *TreeSource) Columns(ctx context.Context) ([]string, error) {
	if len(s.Files) == 0 {
		return nil, fmt.Errorf("frame: empty tree source")
	}
	var cols []string
	err := s.open(s.Files[0], func(t rtree.Tree) error {
		for _, rv := range rtree.NewReadVars(t) {
			if _, err := scalar(rv.Value); err == nil {
				cols = append(cols, rv.Name)
			}
		}
		return nil
	})
	return cols, err
}

func (s *TreeSource) Scan(ctx context.Context, part int, cols []string, fn func(selection.Row) error) error {
	if part < 0 || part >= len(s.Files) {
		return fmt.Errorf("frame: invalid partition %d/%d", part, len(s.Files))
	}
	fname := s.Files[part]

	return s.open(fname, func(t rtree.Tree) error {
		avail := make(map[string]rtree.ReadVar)
		for _, rv := range rtree.NewReadVars(t) {
			avail[rv.Name] = rv
		}

		rvars := make([]rtree.ReadVar, len(cols))
		getters := make([]func() float64, len(cols))
		for i, c := range cols {
			rv, ok := avail[c]
			if !ok {
				return bdxplot.DataErr(fname, fmt.Errorf("no branch %q in tree %q", c, s.Tree))
			}
			get, err := scalar(rv.Value)
			if err != nil {
				return bdxplot.DataErr(fname, fmt.Errorf("branch %q: %w", c, err))
			}
			rvars[i] = rv
			getters[i] = get
		}

		r, err := rtree.NewReader(t, rvars)
		if err != nil {
			return bdxplot.DataErr(fname, fmt.Errorf("could not create tree reader: %w", err))
		}
		defer r.Close()

		row := make(selection.Row, len(cols))
		err = r.Read(func(rctx rtree.RCtx) error {
			if rctx.Entry%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			for i, get := range getters {
				row[i] = get()
			}
			return fn(row)
		})
		if err != nil {
			return fmt.Errorf("could not read %q: %w", fname, err)
		}
		return nil
	})
}

func (s *TreeSource) open(fname string, fn func(t rtree.Tree) error) error {
	f, err := groot.Open(fname)
	if err != nil {
		return bdxplot.DataErr(fname, err)
	}
	defer f.Close()

	obj, err := riofs.Dir(f).Get(s.Tree)
	if err != nil {
		return bdxplot.DataErr(fname, err)
	}
	t, ok := obj.(rtree.Tree)
	if !ok {
		return bdxplot.DataErr(fname, fmt.Errorf("object %q is a %T, not a tree", s.Tree, obj))
	}
	return fn(t)
}

// scalar returns an accessor converting the value behind a read variable
// to float64.
func scalar(v interface{}) (func() float64, error) {
	switch p := v.(type) {
	case *float64:
		return func() float64 { return *p }, nil
	case *float32:
		return func() float64 { return float64(*p) }, nil
	case *root.Double32:
		return func() float64 { return float64(*p) }, nil
	case *root.Float16:
		return func() float64 { return float64(*p) }, nil
	case *int64:
		return func() float64 { return float64(*p) }, nil
	case *int32:
		return func() float64 { return float64(*p) }, nil
	case *int16:
		return func() float64 { return float64(*p) }, nil
	case *int8:
		return func() float64 { return float64(*p) }, nil
	case *uint64:
		return func() float64 { return float64(*p) }, nil
	case *uint32:
		return func() float64 { return float64(*p) }, nil
	case *uint16:
		return func() float64 { return float64(*p) }, nil
	case *uint8:
		return func() float64 { return float64(*p) }, nil
	case *bool:
		return func() float64 {
			if *p {
				return 1
			}
			return 0
		}, nil
	}
	return nil, fmt.Errorf("unsupported column type %T", v)
}
