package histo

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hbook/rootcnv"

	"github.com/AntoninoFulci/bdxplot"
)

// Write stores every histogram of n in a new ROOT file, one directory per
// region.
func (n *Normalized) Write(fname string) error {
	if err := os.MkdirAll(filepath.Dir(fname), 0755); err != nil {
		return bdxplot.DataErr(fname, err)
	}

	f, err := groot.Create(fname)
	if err != nil {
		return bdxplot.DataErr(fname, err)
	}
	defer f.Close()

	for _, set := range n.Sets {
		dir, err := riofs.Dir(f).Mkdir(set.Region)
		if err != nil {
			return bdxplot.DataErr(fname, fmt.Errorf("could not create directory %q: %w", set.Region, err))
		}
		for _, h := range []*hbook.H1D{set.Log, set.Lin} {
			if h == nil {
				continue
			}
			if err := dir.Put(h.Name(), rhist.NewH1DFrom(h)); err != nil {
				return bdxplot.DataErr(fname, fmt.Errorf("could not write %q: %w", h.Name(), err))
			}
		}
		for _, h := range []*hbook.H2D{set.Vertex, set.Var2D} {
			if h == nil {
				continue
			}
			if err := dir.Put(h.Name(), rhist.NewH2DFrom(h)); err != nil {
				return bdxplot.DataErr(fname, fmt.Errorf("could not write %q: %w", h.Name(), err))
			}
		}
	}

	if err := f.Close(); err != nil {
		return bdxplot.DataErr(fname, err)
	}
	return nil
}

// Entry is a histogram read back from a ROOT file. Exactly one of H1 and
// H2 is set.
type Entry struct {
	Path  string // "region/name", or "name" at the top level
	Name  string
	Title string
	H1    *hbook.H1D
	H2    *hbook.H2D
}

// Region returns the directory the histogram was stored in.
func (e Entry) Region() string {
	dir := path.Dir(e.Path)
	if dir == "." {
		return ""
	}
	return dir
}

// ReadAll returns every 1-D and 2-D histogram stored in fname, in key
// order.
func ReadAll(fname string) ([]Entry, error) {
	f, err := groot.Open(fname)
	if err != nil {
		return nil, bdxplot.DataErr(fname, err)
	}
	defer f.Close()

	var out []Entry
	if err := walk(f, "", &out); err != nil {
		return nil, bdxplot.DataErr(fname, err)
	}
	return out, nil
}

func walk(dir riofs.Directory, prefix string, out *[]Entry) error {
	for _, key := range dir.Keys() {
		obj, err := key.Object()
		if err != nil {
			return fmt.Errorf("could not read %q: %w", path.Join(prefix, key.Name()), err)
		}
		name := path.Join(prefix, key.Name())
		switch o := obj.(type) {
		case riofs.Directory:
			if err := walk(o, name, out); err != nil {
				return err
			}
		case rhist.H2:
			h := rootcnv.H2D(o)
			*out = append(*out, Entry{Path: name, Name: key.Name(), Title: o.Title(), H2: h})
		case rhist.H1:
			h := rootcnv.H1D(o)
			*out = append(*out, Entry{Path: name, Name: key.Name(), Title: o.Title(), H1: h})
		}
	}
	return nil
}

// Find returns the histogram at hpath in fname. A bare name that is not
// found at the top level is looked up in every directory.
func Find(fname, hpath string) (Entry, error) {
	entries, err := ReadAll(fname)
	if err != nil {
		return Entry{}, err
	}
	hpath = strings.Trim(hpath, "/")
	for _, e := range entries {
		if e.Path == hpath {
			return e, nil
		}
	}
	if !strings.Contains(hpath, "/") {
		var match []Entry
		for _, e := range entries {
			if e.Name == hpath {
				match = append(match, e)
			}
		}
		switch len(match) {
		case 1:
			return match[0], nil
		case 0:
		default:
			paths := make([]string, len(match))
			for i, e := range match {
				paths[i] = e.Path
			}
			sort.Strings(paths)
			return Entry{}, bdxplot.DataErr(fname, fmt.Errorf("histogram %q is ambiguous: %s", hpath, strings.Join(paths, ", ")))
		}
	}
	return Entry{}, bdxplot.DataErr(fname, fmt.Errorf("no histogram %q", hpath))
}
