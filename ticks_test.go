package bdxplot

import "testing"

func TestPreciseTicks(t *testing.T) {
	ticks := PreciseTicks{NSuggestedTicks: 5}.Ticks(-250, 250)
	labels := 0
	for _, tick := range ticks {
		if tick.Value < -250 || tick.Value > 250 {
			t.Fatalf("tick %v out of range", tick.Value)
		}
		if tick.Label != "" {
			labels++
		}
	}
	if labels < 3 || labels > 7 {
		t.Fatalf("got %d labelled ticks, want about 5", labels)
	}

	if got := (PreciseTicks{}).Ticks(1, 1); len(got) != 1 {
		t.Fatalf("degenerate range: got %d ticks", len(got))
	}
}

func TestFlags(t *testing.T) {
	f := FloatArrayFlags{Array: []float64{0, 1}}
	for _, v := range []string{"-2", "3.5"} {
		if err := f.Set(v); err != nil {
			t.Fatal(err)
		}
	}
	lo, hi, ok := f.Range()
	if !ok || lo != -2 || hi != 3.5 {
		t.Fatalf("got [%v, %v] ok=%v", lo, hi, ok)
	}
	if err := f.Set("x"); err == nil {
		t.Fatalf("expected a parse error")
	}

	s := StringArrayFlags{Array: []string{"default"}}
	_ = s.Set("a")
	_ = s.Set("b")
	if s.String() != "a,b" {
		t.Fatalf("got %q", s.String())
	}
}
