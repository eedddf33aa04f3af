package builtin

import (
	"sort"

	"github.com/funvibe/tracelet/internal/abstract"
	"github.com/funvibe/tracelet/internal/graph"
	"github.com/funvibe/tracelet/internal/guard"
	"github.com/funvibe/tracelet/internal/op"
)

// proxyOperands renders abstract arguments as graph operands:
// graph-backed values by node reference, constants inline. A value
// with neither representation makes the call unrepresentable.
func proxyOperands(o op.Op, args []abstract.Value, kwargs map[string]abstract.Value) ([]graph.Operand, error) {
	operands := make([]graph.Operand, 0, len(args)+len(kwargs))
	for _, arg := range args {
		operand, err := proxyOperand(o, arg)
		if err != nil {
			return nil, err
		}
		operands = append(operands, operand)
	}
	for _, name := range sortedNames(kwargs) {
		operand, err := proxyOperand(o, kwargs[name])
		if err != nil {
			return nil, err
		}
		operand.Name = name
		operands = append(operands, operand)
	}
	return operands, nil
}

func proxyOperand(o op.Op, v abstract.Value) (graph.Operand, error) {
	switch val := v.(type) {
	case *abstract.TensorHandle:
		return graph.Ref(val.Node), nil
	case *abstract.DynamicShape:
		return graph.Ref(val.Node), nil
	case *abstract.Constant:
		return graph.Lit(val.Value), nil
	case *abstract.Sequence:
		items := make([]any, len(val.Items))
		for i, item := range val.Items {
			raw, ok := abstract.ConstValue(item)
			if !ok {
				return graph.Operand{}, unsupportedf(o, "partial tensor op over %s", v.Inspect())
			}
			items[i] = raw
		}
		return graph.Lit(items), nil
	default:
		return graph.Operand{}, unsupportedf(o, "partial tensor op over %s", v.Inspect())
	}
}

func sortedNames(kwargs map[string]abstract.Value) []string {
	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// emitTensorCall defers a graph-representable operation with at least
// one tensor argument into the graph. Three result shapes exist: a
// needs-materialization tensor when any argument carries that marker,
// an eagerly evaluated unspecialized scalar when the arguments are
// scalar wrappers, and a symbolic number when every argument is one.
func (e *Evaluator) emitTensorCall(c *call) (abstract.Value, error) {
	fn := c.op
	args := append([]abstract.Value{}, c.args...)

	// In-place add with a constant left operand is re-emitted as a
	// plain add over swapped operands.
	if fn == op.IAdd && len(args) == 2 && abstract.IsConstant(args[0]) {
		fn = op.Add
		args[0], args[1] = args[1], args[0]
	}

	// Specialize the dividend of a float-by-tensor division: keeping it
	// symbolic loses precision against the untraced execution.
	if (fn == op.TrueDiv || fn == op.ITrueDiv) && len(args) == 2 && abstract.IsUnspec(args[0]) {
		src := args[0].Source()
		args[0] = abstract.Specialize(args[0])
		if src != nil && !src.Constant() {
			g := guard.New(src, guard.ValueMatch, args[0].Inspect())
			args[0] = args[0].WithGuards(guard.NewSet(g))
		}
	}

	operands, err := proxyOperands(fn, args, c.kwargs)
	if err != nil {
		return nil, err
	}
	node := e.builder.CreateNode(graph.CallFunction, fn, operands)

	// Guards installed on rewritten arguments (the pinned dividend)
	// must survive onto the result.
	gs := abstract.MergeGuards(args...)

	for _, arg := range args {
		if abstract.IsFakeItem(arg) {
			res := &abstract.TensorHandle{Node: node, FakeItem: true}
			return res.WithGuards(gs), nil
		}
	}

	if unspecArgs(args, c.kwargs) {
		raws, rawKw, err := unwrapScalars(fn, args, c.kwargs)
		if err != nil {
			return nil, err
		}
		rawRes, err := op.Fold(fn, raws, rawKw)
		if err != nil {
			return nil, unsupportedf(fn, "partial tensor op: %v", err)
		}
		res := &abstract.TensorHandle{
			Node:   node,
			Unspec: &abstract.UnspecInfo{Raw: rawRes, NeedUnwrap: needUnwrap(args, c.kwargs)},
		}
		return res.WithGuards(gs), nil
	}

	if allDynamic(args) {
		return abstract.NewDynamicShape(node, symbolicNumKind(args...), nil).WithGuards(gs), nil
	}

	return abstract.NewTensor(abstract.DTypeUnknown, node).WithGuards(gs), nil
}

// dynProxy defers a non-operator call whose arguments include symbolic
// values, wrapping the node as a tensor result.
func (e *Evaluator) dynProxy(c *call) outcome {
	operands, err := proxyOperands(c.op, c.args, c.kwargs)
	if err != nil {
		return escape(err)
	}
	node := e.builder.CreateNode(graph.CallFunction, c.op, operands)
	return apply(abstract.NewTensor(abstract.DTypeUnknown, node))
}

// convertSymbolic reinterprets int()/float() over a symbolic value as
// a symbolic numeric conversion node instead of a host conversion.
func (e *Evaluator) convertSymbolic(c *call) (abstract.Value, error) {
	d := c.args[0].(*abstract.DynamicShape)
	target, numeric := op.SymInt, abstract.NumInt
	if c.op == op.Float {
		target, numeric = op.SymFloat, abstract.NumFloat
	}
	node := e.builder.CreateNode(graph.CallFunction, target, []graph.Operand{graph.Ref(d.Node)})

	var hint any
	if d.Hint != nil {
		if converted, err := op.Fold(c.op, []any{d.Hint}, nil); err == nil {
			hint = converted
		}
	}
	return abstract.NewDynamicShape(node, numeric, hint), nil
}

func allDynamic(args []abstract.Value) bool {
	for _, arg := range args {
		if !isDynamicShape(arg) {
			return false
		}
	}
	return len(args) > 0
}

// unspecArgs reports whether every argument is a constant or an
// unspecialized scalar wrapper, with at least one of the latter.
func unspecArgs(args []abstract.Value, kwargs map[string]abstract.Value) bool {
	sawUnspec := false
	check := func(v abstract.Value) bool {
		if abstract.IsUnspec(v) {
			sawUnspec = true
			return true
		}
		return abstract.IsConstant(v)
	}
	for _, arg := range args {
		if !check(arg) {
			return false
		}
	}
	for _, v := range kwargs {
		if !check(v) {
			return false
		}
	}
	return sawUnspec
}

func unwrapScalars(o op.Op, args []abstract.Value, kwargs map[string]abstract.Value) ([]any, map[string]any, error) {
	raws := make([]any, len(args))
	for i, arg := range args {
		raw, ok := abstract.RawScalar(arg)
		if !ok {
			return nil, nil, unsupportedf(o, "cannot unwrap %s to a host scalar", arg.Inspect())
		}
		raws[i] = raw
	}
	var rawKw map[string]any
	if len(kwargs) > 0 {
		rawKw = make(map[string]any, len(kwargs))
		for name, v := range kwargs {
			raw, ok := abstract.RawScalar(v)
			if !ok {
				return nil, nil, unsupportedf(o, "cannot unwrap %s to a host scalar", v.Inspect())
			}
			rawKw[name] = raw
		}
	}
	return raws, rawKw, nil
}

func needUnwrap(args []abstract.Value, kwargs map[string]abstract.Value) bool {
	for _, arg := range args {
		if t, ok := arg.(*abstract.TensorHandle); ok && t.Unspec != nil && t.Unspec.NeedUnwrap {
			return true
		}
	}
	for _, v := range kwargs {
		if t, ok := v.(*abstract.TensorHandle); ok && t.Unspec != nil && t.Unspec.NeedUnwrap {
			return true
		}
	}
	return false
}
