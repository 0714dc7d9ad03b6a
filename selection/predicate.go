// Package selection builds the row predicates that narrow the event stream
// down to one particle, one region and one energy window.
//
// Predicates are declared against column names and only bound to column
// positions when an event loop is about to run, so that one loop can
// evaluate every chain of an analysis.
package selection

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Row holds the values of one event, addressed by column position.
type Row []float64

// Resolver maps a column name to its position in a Row.
type Resolver func(name string) (int, error)

// Test is a predicate bound to column positions.
type Test func(Row) bool

// Predicate is a row-level boolean condition over named columns.
type Predicate interface {
	fmt.Stringer
	// Columns returns the columns the predicate reads.
	Columns() []string
	// Bind resolves the columns and returns the compiled test.
	Bind(Resolver) (Test, error)
}

// Eq is true iff col == v.
func Eq(col string, v float64) Predicate { return eq{col: col, v: v} }

// Range is true iff lo <= col <= hi.
func Range(col string, lo, hi float64) Predicate { return within{col: col, lo: lo, hi: hi} }

// Or is true iff any of ps is true.
func Or(ps ...Predicate) Predicate {
	if len(ps) == 1 {
		return ps[0]
	}
	return anyOf(ps)
}

// And is true iff all of ps are true.
func And(ps ...Predicate) Predicate {
	if len(ps) == 1 {
		return ps[0]
	}
	return allOf(ps)
}

type eq struct {
	col string
	v   float64
}

func (p eq) String() string    { return p.col + " == " + ftoa(p.v) }
func (p eq) Columns() []string { return []string{p.col} }

func (p eq) Bind(resolve Resolver) (Test, error) {
	i, err := resolve(p.col)
	if err != nil {
		return nil, err
	}
	v := p.v
	return func(r Row) bool { return r[i] == v }, nil
}

type within struct {
	col    string
	lo, hi float64
}

func (p within) String() string {
	return p.col + " >= " + ftoa(p.lo) + " && " + p.col + " <= " + ftoa(p.hi)
}

func (p within) Columns() []string { return []string{p.col} }

func (p within) Bind(resolve Resolver) (Test, error) {
	i, err := resolve(p.col)
	if err != nil {
		return nil, err
	}
	lo, hi := p.lo, p.hi
	return func(r Row) bool { return lo <= r[i] && r[i] <= hi }, nil
}

type anyOf []Predicate

func (ps anyOf) String() string    { return join(ps, " || ") }
func (ps anyOf) Columns() []string { return columns(ps) }

func (ps anyOf) Bind(resolve Resolver) (Test, error) {
	tests, err := bindAll(ps, resolve)
	if err != nil {
		return nil, err
	}
	return func(r Row) bool {
		for _, t := range tests {
			if t(r) {
				return true
			}
		}
		return false
	}, nil
}

type allOf []Predicate

func (ps allOf) String() string    { return join(ps, " && ") }
func (ps allOf) Columns() []string { return columns(ps) }

func (ps allOf) Bind(resolve Resolver) (Test, error) {
	tests, err := bindAll(ps, resolve)
	if err != nil {
		return nil, err
	}
	return func(r Row) bool {
		for _, t := range tests {
			if !t(r) {
				return false
			}
		}
		return true
	}, nil
}

func bindAll(ps []Predicate, resolve Resolver) ([]Test, error) {
	tests := make([]Test, len(ps))
	for i, p := range ps {
		t, err := p.Bind(resolve)
		if err != nil {
			return nil, err
		}
		tests[i] = t
	}
	return tests, nil
}

func join(ps []Predicate, sep string) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		s := p.String()
		switch p.(type) {
		case anyOf, allOf:
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, sep)
}

func columns(ps []Predicate) []string {
	set := make(map[string]struct{})
	for _, p := range ps {
		for _, c := range p.Columns() {
			set[c] = struct{}{}
		}
	}
	cols := make([]string, 0, len(set))
	for c := range set {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
