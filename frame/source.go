// Package frame is a small lazy columnar engine: histogram fills are booked
// against predicate chains and all of them are accumulated in one pass over
// the event stream, the first time a result is needed.
package frame

import (
	"context"
	"fmt"

	"github.com/AntoninoFulci/bdxplot/selection"
)

// Source is a row-oriented dataset split in independently scannable
// partitions (typically one per input file).
type Source interface {
	// Columns lists the scalar columns available in the dataset.
	Columns(ctx context.Context) ([]string, error)
	// Partitions returns the number of partitions.
	Partitions() int
	// Scan calls fn once per row of partition part with the values of
	// cols, in order. The row is reused between calls.
	Scan(ctx context.Context, part int, cols []string, fn func(selection.Row) error) error
}

// Table is an in-memory Source.
type Table struct {
	Cols  []string
	Rows  [][]float64
	Parts int // number of partitions the rows are split in, 1 if zero
}

func (t *Table) Columns(ctx context.Context) ([]string, error) {
	return append([]string(nil), t.Cols...), nil
}

func (t *Table) Partitions() int {
	if t.Parts < 1 {
		return 1
	}
	return t.Parts
}

func (t *Table) Scan(ctx context.Context, part int, cols []string, fn func(selection.Row) error) error {
	n := t.Partitions()
	if part < 0 || part >= n {
		return fmt.Errorf("frame: invalid partition %d/%d", part, n)
	}

	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = -1
		for j, name := range t.Cols {
			if name == c {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return fmt.Errorf("frame: no column %q", c)
		}
	}

	beg := part * len(t.Rows) / n
	end := (part + 1) * len(t.Rows) / n
	row := make(selection.Row, len(cols))
	for _, r := range t.Rows[beg:end] {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, j := range idx {
			row[i] = r[j]
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}
