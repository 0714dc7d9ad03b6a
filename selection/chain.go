package selection

import "strings"

// Chain is an ordered composition of predicates. Each stage narrows the
// rows accepted by its parent. Chains are immutable and may share parents,
// which lets an event loop evaluate a common prefix once per row.
type Chain struct {
	parent *Chain
	name   string
	pred   Predicate
}

// New starts a chain with a single stage.
func New(name string, p Predicate) *Chain {
	return &Chain{name: name, pred: p}
}

// Then returns a new chain narrowing c with p.
func (c *Chain) Then(name string, p Predicate) *Chain {
	return &Chain{parent: c, name: name, pred: p}
}

func (c *Chain) Parent() *Chain       { return c.parent }
func (c *Chain) Name() string         { return c.name }
func (c *Chain) Predicate() Predicate { return c.pred }

// Stages returns the stages of c, root first.
func (c *Chain) Stages() []*Chain {
	var stages []*Chain
	for s := c; s != nil; s = s.parent {
		stages = append(stages, s)
	}
	for i, j := 0, len(stages)-1; i < j; i, j = i+1, j-1 {
		stages[i], stages[j] = stages[j], stages[i]
	}
	return stages
}

// Columns returns the columns read by every stage of c.
func (c *Chain) Columns() []string {
	var ps []Predicate
	for _, s := range c.Stages() {
		ps = append(ps, s.pred)
	}
	return columns(ps)
}

// Flatten returns the conjunction of all stages of c.
func (c *Chain) Flatten() Predicate {
	var ps []Predicate
	for _, s := range c.Stages() {
		ps = append(ps, s.pred)
	}
	return And(ps...)
}

func (c *Chain) String() string {
	var parts []string
	for _, s := range c.Stages() {
		parts = append(parts, s.name+"["+s.pred.String()+"]")
	}
	return strings.Join(parts, " -> ")
}
