package frame

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"

	"github.com/AntoninoFulci/bdxplot"
)

// define is a derived column computed from an arithmetic expression over
// the source columns and the columns defined before it.
type define struct {
	name string
	src  string
	prog *vm.Program
	deps []string
}

var mathFuncs = []expr.Option{
	unary("sqrt", math.Sqrt),
	unary("log", math.Log),
	unary("log10", math.Log10),
	unary("exp", math.Exp),
	unary("sin", math.Sin),
	unary("cos", math.Cos),
	unary("tan", math.Tan),
	unary("asin", math.Asin),
	unary("acos", math.Acos),
	unary("atan", math.Atan),
	binary("atan2", math.Atan2),
	binary("hypot", math.Hypot),
	binary("pow", math.Pow),
}

func unary(name string, fn func(float64) float64) expr.Option {
	return expr.Function(name, func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s: want 1 argument, got %d", name, len(args))
		}
		x, err := toFloat(args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return fn(x), nil
	})
}

func binary(name string, fn func(x, y float64) float64) expr.Option {
	return expr.Function(name, func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s: want 2 arguments, got %d", name, len(args))
		}
		x, err := toFloat(args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		y, err := toFloat(args[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return fn(x, y), nil
	})
}

// compile compiles src against the known columns.
func compile(name, src string, known []string) (*define, error) {
	env := make(map[string]any, len(known))
	for _, c := range known {
		env[c] = 0.0
	}

	opts := append([]expr.Option{expr.Env(env)}, mathFuncs...)
	prog, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, bdxplot.Configf("invalid expression for %q: %v", name, err)
	}

	ids := &identifiers{known: env, seen: make(map[string]bool)}
	node := prog.Node()
	ast.Walk(&node, ids)

	return &define{name: name, src: src, prog: prog, deps: ids.names}, nil
}

func (d *define) eval(env map[string]any) (float64, error) {
	out, err := expr.Run(d.prog, env)
	if err != nil {
		return 0, fmt.Errorf("could not evaluate %q: %w", d.name, err)
	}
	v, err := toFloat(out)
	if err != nil {
		return 0, fmt.Errorf("could not evaluate %q: %w", d.name, err)
	}
	return v, nil
}

type identifiers struct {
	known map[string]any
	seen  map[string]bool
	names []string
}

func (ids *identifiers) Visit(node *ast.Node) {
	n, ok := (*node).(*ast.IdentifierNode)
	if !ok {
		return
	}
	if _, ok := ids.known[n.Value]; !ok || ids.seen[n.Value] {
		return
	}
	ids.seen[n.Value] = true
	ids.names = append(ids.names, n.Value)
}

func toFloat(v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("non numeric value %v (%T)", v, v)
}
