package builtin

import (
	"github.com/funvibe/tracelet/internal/abstract"
	"github.com/funvibe/tracelet/internal/graph"
	"github.com/funvibe/tracelet/internal/op"
)

// callMinMax serves min and max. A single unpackable argument stands
// for its items; more than two arguments reduce pairwise from the
// left. Unmatched operand combinations decline so folding may still
// serve them.
func callMinMax(e *Evaluator, c *call) outcome {
	args := c.args
	if len(args) == 1 {
		items, ok := abstract.Unpack(args[0])
		if !ok {
			return pass
		}
		if len(items) == 0 {
			return escape(unsupportedf(c.op, "%s over an empty sequence", c.op))
		}
		args = items
	}

	acc := args[0]
	for _, next := range args[1:] {
		out := e.minMaxBinary(c, acc, next)
		if out.state != stateApplied {
			return out
		}
		acc = out.value
	}
	return apply(acc)
}

func (e *Evaluator) minMaxBinary(c *call, a, b abstract.Value) outcome {
	emit := op.Minimum
	clamp := op.ClampMax
	if c.op == op.Max {
		emit = op.Maximum
		clamp = op.ClampMin
	}

	// A materialized tensor on either side forces graph emission. When
	// the other operand is a known constant a clamp node is preferred:
	// it keeps the bound inline instead of materializing a scalar
	// tensor.
	if tensorOperand(a) || tensorOperand(b) {
		if t, raw, ok := tensorAndBound(a, b); ok {
			node := e.builder.CreateNode(graph.CallFunction, clamp, []graph.Operand{
				graph.Ref(t.Node), graph.Lit(raw),
			})
			return apply(abstract.NewTensor(t.DType, node))
		}
		operands, err := proxyOperands(c.op, []abstract.Value{a, b}, nil)
		if err != nil {
			return escape(err)
		}
		node := e.builder.CreateNode(graph.CallFunction, emit, operands)
		return apply(abstract.NewTensor(abstract.DTypeUnknown, node))
	}

	// Scalar wrappers and constants compute eagerly; the result keeps
	// the classification of its inputs.
	ra, aok := abstract.RawScalar(a)
	rb, bok := abstract.RawScalar(b)
	if aok && bok {
		res, err := op.Fold(c.op, []any{ra, rb}, nil)
		if err != nil {
			return escape(unsupportedf(c.op, "%v", err))
		}
		if abstract.IsUnspec(a) || abstract.IsUnspec(b) {
			operands, perr := proxyOperands(c.op, []abstract.Value{a, b}, nil)
			if perr != nil {
				return escape(perr)
			}
			node := e.builder.CreateNode(graph.CallFunction, emit, operands)
			return apply(&abstract.TensorHandle{
				Node:   node,
				Unspec: &abstract.UnspecInfo{Raw: res, NeedUnwrap: needUnwrap([]abstract.Value{a, b}, nil)},
			})
		}
		return apply(abstract.Const(res))
	}

	if isDynamicShape(a) || isDynamicShape(b) {
		operands, err := proxyOperands(c.op, []abstract.Value{a, b}, nil)
		if err != nil {
			return escape(err)
		}
		node := e.builder.CreateNode(graph.CallFunction, emit, operands)
		return apply(abstract.NewDynamicShape(node, symbolicNumKind(a, b), nil))
	}

	return pass
}

// tensorOperand reports a materialized tensor, excluding scalar
// wrappers which prefer the eager path.
func tensorOperand(v abstract.Value) bool {
	t, ok := v.(*abstract.TensorHandle)
	return ok && t.Unspec == nil
}

// tensorAndBound matches the tensor/constant pair in either order.
func tensorAndBound(a, b abstract.Value) (*abstract.TensorHandle, any, bool) {
	if t, ok := a.(*abstract.TensorHandle); ok && t.Unspec == nil {
		if raw, cok := abstract.RawScalar(b); cok {
			return t, raw, true
		}
		return nil, nil, false
	}
	if t, ok := b.(*abstract.TensorHandle); ok && t.Unspec == nil {
		if raw, cok := abstract.RawScalar(a); cok {
			return t, raw, true
		}
	}
	return nil, nil, false
}
