package frame

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"
	"go-hep.org/x/hep/hbook"

	"github.com/AntoninoFulci/bdxplot"
	"github.com/AntoninoFulci/bdxplot/selection"
)

func events(parts int) *Table {
	return &Table{
		Cols: []string{"ParticleID", "Ekin", "Weight1", "Vx", "Vy"},
		Rows: [][]float64{
			{11, 0.5, 1, 3, 4},
			{11, 1.5, 2, 0, 1},
			{-11, 2.5, 1, 6, 8},
			{22, 0.5, 5, 1, 1},
			{11, 3.5, 1, 0, 0},
			{11, 9.5, 4, 0, 0},
		},
		Parts: parts,
	}
}

func TestSinglePass(t *testing.T) {
	ctx := context.Background()
	fr := New(events(3), Workers(2))

	electrons := selection.New("particle", selection.Or(
		selection.Eq("ParticleID", 11),
		selection.Eq("ParticleID", -11),
	))
	low := electrons.Then("energy", selection.Range("Ekin", 0, 2))
	high := electrons.Then("energy", selection.Range("Ekin", 2, 10))

	hall := fr.Histo1D(electrons, hbook.NewH1D(10, 0, 10), "Ekin", "Weight1")
	hlow := fr.Histo1D(low, hbook.NewH1D(10, 0, 10), "Ekin", "Weight1")
	h2 := fr.Histo2D(high, hbook.NewH2D(10, 0, 10, 10, 0, 10), "Vx", "Vy", "Weight1")

	all, err := hall.Value(ctx)
	if err != nil {
		t.Fatalf("could not run: %+v", err)
	}
	if got, want := all.SumW(), 9.0; got != want {
		t.Fatalf("sumw: got=%v, want=%v", got, want)
	}
	if got, want := all.Entries(), int64(5); got != want {
		t.Fatalf("entries: got=%v, want=%v", got, want)
	}

	lo, err := hlow.Value(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := lo.SumW(), 3.0; got != want {
		t.Fatalf("low sumw: got=%v, want=%v", got, want)
	}

	hi, err := h2.Value(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := hi.SumW(), 6.0; got != want {
		t.Fatalf("2d sumw: got=%v, want=%v", got, want)
	}

	rows, passes := fr.Rows()
	if rows != 6 || passes != 1 {
		t.Fatalf("got %d rows in %d passes, want 6 rows in 1 pass", rows, passes)
	}
}

func TestPartitionsAgree(t *testing.T) {
	ctx := context.Background()
	var sums []float64
	for _, parts := range []int{1, 2, 6} {
		fr := New(events(parts), Workers(4))
		c := selection.New("particle", selection.Eq("ParticleID", 11))
		h, err := fr.Histo1D(c, hbook.NewH1D(10, 0, 10), "Ekin", "Weight1").Value(ctx)
		if err != nil {
			t.Fatal(err)
		}
		sums = append(sums, h.SumW())
	}
	for i, v := range sums {
		if v != sums[0] {
			t.Fatalf("partition layout %d: sumw=%v, want %v", i, v, sums[0])
		}
	}
}

func TestDefine(t *testing.T) {
	ctx := context.Background()
	fr := New(events(1))

	if err := fr.Define(ctx, "R", "sqrt(Vx*Vx + Vy*Vy)"); err != nil {
		t.Fatalf("could not define R: %+v", err)
	}
	if err := fr.Define(ctx, "R2", "R * 2"); err != nil {
		t.Fatalf("could not define R2: %+v", err)
	}

	c := selection.New("far", selection.Range("R", 4.5, 100))
	h, err := fr.Histo1D(c, hbook.NewH1D(40, 0, 40), "R2", "Weight1").Value(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// rows with R=5 and R=10
	if got, want := h.Entries(), int64(2); got != want {
		t.Fatalf("entries: got=%d, want=%d", got, want)
	}
	if got, want := h.XMean(), 15.0; math.Abs(got-want) > 1e-12 {
		t.Fatalf("mean: got=%v, want=%v", got, want)
	}

	var cerr *bdxplot.ConfigError
	if err := fr.Define(ctx, "Ekin", "Ekin*2"); !errors.As(err, &cerr) {
		t.Fatalf("redefining a column: got %v, want a ConfigError", err)
	}
	if err := fr.Define(ctx, "Bad", "Ekin +* 2"); !errors.As(err, &cerr) {
		t.Fatalf("syntax error: got %v, want a ConfigError", err)
	}
	if err := fr.Define(ctx, "Missing", "Nope * 2"); !errors.As(err, &cerr) {
		t.Fatalf("unknown identifier: got %v, want a ConfigError", err)
	}
}

func TestUnknownColumn(t *testing.T) {
	fr := New(events(1))
	c := selection.New("particle", selection.Eq("ParticleID", 11))
	_, err := fr.Histo1D(c, hbook.NewH1D(10, 0, 10), "Ekin", "Weight7").Value(context.Background())
	var cerr *bdxplot.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want a ConfigError", err)
	}
}

func TestTreeSource(t *testing.T) {
	dir := t.TempDir()
	for i, fname := range []string{"a.root", "b.root"} {
		writeEvents(t, filepath.Join(dir, fname), float64(i+1))
	}

	src, err := Glob(dir, EventsTree)
	if err != nil {
		t.Fatalf("could not glob: %+v", err)
	}
	if got, want := src.Partitions(), 2; got != want {
		t.Fatalf("partitions: got=%d, want=%d", got, want)
	}

	fr := New(src, Workers(2))
	c := selection.New("particle", selection.Eq("ParticleID", 11))
	h, err := fr.Histo1D(c, hbook.NewH1D(10, 0, 10), "Ekin", "Weight1").Value(context.Background())
	if err != nil {
		t.Fatalf("could not fill: %+v", err)
	}
	// 3 electrons per file, weights 1 and 2
	if got, want := h.SumW(), 9.0; got != want {
		t.Fatalf("sumw: got=%v, want=%v", got, want)
	}

	fr = New(src)
	_, err = fr.Histo1D(c, hbook.NewH1D(10, 0, 10), "Ekin", "Weight9").Value(context.Background())
	if err == nil {
		t.Fatalf("expected an error for a missing branch")
	}

	if _, err := Glob(t.TempDir(), EventsTree); err == nil {
		t.Fatalf("expected an error for an empty directory")
	} else {
		var derr *bdxplot.DataError
		if !errors.As(err, &derr) {
			t.Fatalf("got %T, want a DataError", err)
		}
	}
}

func writeEvents(t *testing.T, fname string, weight float64) {
	t.Helper()

	f, err := groot.Create(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var (
		pid  int32
		ekin float64
		w    float64
	)
	wt, err := rtree.NewWriter(riofs.Dir(f), EventsTree, []rtree.WriteVar{
		{Name: "ParticleID", Value: &pid},
		{Name: "Ekin", Value: &ekin},
		{Name: "Weight1", Value: &w},
	})
	if err != nil {
		t.Fatal(err)
	}

	for i, id := range []int32{11, 22, 11, 2112, 11} {
		pid = id
		ekin = float64(i) + 0.5
		w = weight
		if _, err := wt.Write(); err != nil {
			t.Fatal(err)
		}
	}
	if err := wt.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}
