package frame

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"

	"go-hep.org/x/hep/hbook"
	"golang.org/x/sync/errgroup"

	"github.com/AntoninoFulci/bdxplot"
	"github.com/AntoninoFulci/bdxplot/selection"
)

const batchSize = 4096

// Frame books histogram fills on selection chains. Nothing is read until a
// result's Value (or Run) is called; then every pending booking is filled
// in a single pass over the source.
type Frame struct {
	src     Source
	workers int
	logger  *log.Logger

	mu      sync.Mutex
	cols    []string
	defines []*define
	pending []*booking
	rows    int64
	passes  int
}

type Option func(*Frame)

// Workers bounds the number of partitions scanned concurrently.
func Workers(n int) Option {
	return func(f *Frame) {
		if n > 0 {
			f.workers = n
		}
	}
}

// Logger sets the logger used to report event loops.
func Logger(l *log.Logger) Option {
	return func(f *Frame) { f.logger = l }
}

func New(src Source, opts ...Option) *Frame {
	f := &Frame{src: src, workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Define adds a column computed by an arithmetic expression over existing
// columns.
func (f *Frame) Define(ctx context.Context, name, expression string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	known, err := f.columns(ctx)
	if err != nil {
		return err
	}
	for _, c := range known {
		if c == name {
			return bdxplot.Configf("column %q already defined", name)
		}
	}

	d, err := compile(name, expression, known)
	if err != nil {
		return err
	}
	f.defines = append(f.defines, d)
	return nil
}

// Columns lists the source columns followed by the defined ones.
func (f *Frame) Columns(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.columns(ctx)
}

func (f *Frame) columns(ctx context.Context) ([]string, error) {
	if f.cols == nil {
		cols, err := f.src.Columns(ctx)
		if err != nil {
			return nil, err
		}
		f.cols = cols
	}
	out := append([]string(nil), f.cols...)
	for _, d := range f.defines {
		out = append(out, d.name)
	}
	return out, nil
}

// Rows returns the number of rows read so far and the number of passes
// over the source.
func (f *Frame) Rows() (rows int64, passes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows, f.passes
}

type booking struct {
	chain *selection.Chain
	cols  []string
	fill  func(v []float64)

	done bool
	err  error
}

// H1D is a lazily filled 1-D histogram.
type H1D struct {
	f *Frame
	b *booking
	h *hbook.H1D
}

// Value runs the event loop if needed and returns the filled histogram.
func (r *H1D) Value(ctx context.Context) (*hbook.H1D, error) {
	if err := r.f.resolve(ctx, r.b); err != nil {
		return nil, err
	}
	return r.h, nil
}

// H2D is a lazily filled 2-D histogram.
type H2D struct {
	f *Frame
	b *booking
	h *hbook.H2D
}

// Value runs the event loop if needed and returns the filled histogram.
func (r *H2D) Value(ctx context.Context) (*hbook.H2D, error) {
	if err := r.f.resolve(ctx, r.b); err != nil {
		return nil, err
	}
	return r.h, nil
}

// Histo1D books the fill of h with column x weighted by column w, for the
// rows passing every stage of c.
func (f *Frame) Histo1D(c *selection.Chain, h *hbook.H1D, x, w string) *H1D {
	b := &booking{
		chain: c,
		cols:  []string{x, w},
		fill:  func(v []float64) { h.Fill(v[0], v[1]) },
	}
	f.book(b)
	return &H1D{f: f, b: b, h: h}
}

// Histo2D books the fill of h with columns (x, y) weighted by column w,
// for the rows passing every stage of c.
func (f *Frame) Histo2D(c *selection.Chain, h *hbook.H2D, x, y, w string) *H2D {
	b := &booking{
		chain: c,
		cols:  []string{x, y, w},
		fill:  func(v []float64) { h.Fill(v[0], v[1], v[2]) },
	}
	f.book(b)
	return &H2D{f: f, b: b, h: h}
}

func (f *Frame) book(b *booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, b)
}

func (f *Frame) resolve(ctx context.Context, b *booking) error {
	f.mu.Lock()
	done := b.done
	f.mu.Unlock()
	if !done {
		if err := f.Run(ctx); err != nil {
			return err
		}
	}
	return b.err
}

// Run fills every pending booking in one pass over the source.
func (f *Frame) Run(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	books := f.pending
	f.pending = nil
	if len(books) == 0 {
		return nil
	}

	n, err := f.loop(ctx, books)
	f.rows += n
	f.passes++
	for _, b := range books {
		b.done = true
		b.err = err
	}
	if f.logger != nil {
		f.logger.Printf("event loop: %d rows, %d histograms", n, len(books))
	}
	return err
}

// plan is the compiled layout of one event loop: the row holds the source
// columns followed by the active derived columns.
type plan struct {
	srcCols []string
	defines []*define
	defIdx  [][]int // row index of each define dependency
	width   int

	nodes []node
	books []plannedBooking
}

type node struct {
	parent int
	test   selection.Test
}

type plannedBooking struct {
	node int
	cols []int
	fill func(v []float64)
}

type fill struct {
	book int
	v    [3]float64
}

func (f *Frame) loop(ctx context.Context, books []*booking) (int64, error) {
	p, err := f.plan(ctx, books)
	if err != nil {
		return 0, err
	}

	var rows int64
	fills := make(chan []fill, f.workers)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for batch := range fills {
			for _, r := range batch {
				b := p.books[r.book]
				b.fill(r.v[:len(b.cols)])
			}
		}
	}()

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(f.workers)
	for part := 0; part < f.src.Partitions(); part++ {
		part := part
		grp.Go(func() error {
			n, err := p.scan(gctx, f.src, part, fills)
			atomic.AddInt64(&rows, n)
			return err
		})
	}
	err = grp.Wait()
	close(fills)
	<-done

	return rows, err
}

func (f *Frame) plan(ctx context.Context, books []*booking) (*plan, error) {
	if _, err := f.columns(ctx); err != nil {
		return nil, err
	}

	need := make(map[string]bool)
	for _, b := range books {
		for _, c := range b.chain.Columns() {
			need[c] = true
		}
		for _, c := range b.cols {
			need[c] = true
		}
	}

	var active []*define
	for i := len(f.defines) - 1; i >= 0; i-- {
		d := f.defines[i]
		if !need[d.name] {
			continue
		}
		active = append([]*define{d}, active...)
		for _, dep := range d.deps {
			need[dep] = true
		}
	}

	defined := make(map[string]bool, len(active))
	for _, d := range active {
		defined[d.name] = true
	}

	p := &plan{defines: active}
	index := make(map[string]int)
	for _, c := range f.cols {
		if need[c] && !defined[c] {
			index[c] = len(p.srcCols)
			p.srcCols = append(p.srcCols, c)
		}
	}
	for c := range need {
		if _, ok := index[c]; !ok && !defined[c] {
			return nil, bdxplot.Configf("unknown column %q", c)
		}
	}
	for i, d := range active {
		index[d.name] = len(p.srcCols) + i
	}
	p.width = len(p.srcCols) + len(active)

	for _, d := range active {
		idx := make([]int, len(d.deps))
		for i, dep := range d.deps {
			idx[i] = index[dep]
		}
		p.defIdx = append(p.defIdx, idx)
	}

	resolve := func(name string) (int, error) {
		i, ok := index[name]
		if !ok {
			return 0, fmt.Errorf("unknown column %q", name)
		}
		return i, nil
	}

	ids := make(map[*selection.Chain]int)
	for _, b := range books {
		parent := -1
		for _, stage := range b.chain.Stages() {
			if i, ok := ids[stage]; ok {
				parent = i
				continue
			}
			test, err := stage.Predicate().Bind(resolve)
			if err != nil {
				return nil, bdxplot.Configf("stage %q: %v", stage.Name(), err)
			}
			ids[stage] = len(p.nodes)
			p.nodes = append(p.nodes, node{parent: parent, test: test})
			parent = ids[stage]
		}

		cols := make([]int, len(b.cols))
		for i, c := range b.cols {
			cols[i] = index[c]
		}
		p.books = append(p.books, plannedBooking{node: ids[b.chain], cols: cols, fill: b.fill})
	}

	return p, nil
}

func (p *plan) scan(ctx context.Context, src Source, part int, out chan<- []fill) (int64, error) {
	var (
		rows  int64
		row   = make(selection.Row, p.width)
		pass  = make([]bool, len(p.nodes))
		env   = make(map[string]any)
		batch = make([]fill, 0, batchSize)
	)

	send := func() error {
		select {
		case out <- batch:
			batch = make([]fill, 0, batchSize)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	nsrc := len(p.srcCols)
	err := src.Scan(ctx, part, p.srcCols, func(in selection.Row) error {
		rows++
		copy(row, in)
		for i, d := range p.defines {
			for j, dep := range d.deps {
				env[dep] = row[p.defIdx[i][j]]
			}
			v, err := d.eval(env)
			if err != nil {
				return err
			}
			row[nsrc+i] = v
		}

		for i, n := range p.nodes {
			ok := n.parent < 0 || pass[n.parent]
			pass[i] = ok && n.test(row)
		}

		for i, b := range p.books {
			if !pass[b.node] {
				continue
			}
			r := fill{book: i}
			for j, c := range b.cols {
				r.v[j] = row[c]
			}
			batch = append(batch, r)
		}
		if len(batch) >= batchSize {
			return send()
		}
		return nil
	})
	if err != nil {
		return rows, err
	}
	if len(batch) > 0 {
		return rows, send()
	}
	return rows, nil
}
