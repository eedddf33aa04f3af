package builtin

import (
	"fmt"

	"github.com/funvibe/tracelet/internal/abstract"
	"github.com/funvibe/tracelet/internal/graph"
	"github.com/funvibe/tracelet/internal/op"
)

// callComparison dispatches a comparison on the operand variants.
// Identity-bearing variants compare by identity under a restricted
// operator subset, same-kind sequences compare element-wise, tensor
// operands defer into the graph, and fully known operands compute
// eagerly. Everything else escapes.
func callComparison(e *Evaluator, c *call) outcome {
	a, b := c.args[0], c.args[1]

	// Function and module identities. Only equality and identity
	// operators are defined over them, and idents are comparable only
	// within the same kind.
	if ia, ka, ok := compareIdent(a); ok {
		if ib, kb, ok := compareIdent(b); ok {
			if ka != kb {
				return escape(unsupportedf(c.op, "identity comparison over %s and %s", a.Inspect(), b.Inspect()))
			}
			if !e.tables.constCompare[c.op] {
				return escape(unsupportedf(c.op, "identity comparison supports eq/ne/is only"))
			}
			return apply(abstract.Const(identVerdict(c.op, ia == ib)))
		}
	}

	if ua, ok := a.(*abstract.UserObject); ok {
		if ub, ok := b.(*abstract.UserObject); ok {
			if c.op == op.Is || c.op == op.IsNot {
				return apply(abstract.Const(identVerdict(c.op, ua.ID == ub.ID)))
			}
			return escape(unsupportedf(c.op, "comparison over %s and %s", a.Inspect(), b.Inspect()))
		}
	}

	if sa, ok := a.(*abstract.Sequence); ok {
		if sb, ok := b.(*abstract.Sequence); ok && sa.SeqKind == sb.SeqKind {
			return e.compareSequences(c, sa, sb)
		}
	}

	// Tensor and symbolic operands defer; the operator must already
	// exist for that variant.
	if tensorOperand(a) || tensorOperand(b) {
		if !e.tables.tensorCompare[c.op] {
			return escape(unsupportedf(c.op, "comparison operator not defined over tensors"))
		}
		operands, err := proxyOperands(c.op, []abstract.Value{a, b}, nil)
		if err != nil {
			return escape(err)
		}
		node := e.builder.CreateNode(graph.CallFunction, c.op, operands)
		return apply(abstract.NewTensor(abstract.DTypeBool, node))
	}
	if isDynamicShape(a) || isDynamicShape(b) {
		if !e.tables.tensorCompare[c.op] {
			return escape(unsupportedf(c.op, "comparison operator not defined over symbolic values"))
		}
		operands, err := proxyOperands(c.op, []abstract.Value{a, b}, nil)
		if err != nil {
			return escape(err)
		}
		node := e.builder.CreateNode(graph.CallFunction, c.op, operands)
		return apply(abstract.NewDynamicShape(node, abstract.NumInt, nil))
	}

	ra, aok := abstract.RawScalar(a)
	rb, bok := abstract.RawScalar(b)
	if aok && bok {
		res, err := compareRaw(c.op, ra, rb)
		if err != nil {
			return escape(unsupportedf(c.op, "%v", err))
		}
		return apply(abstract.Const(res))
	}

	return escape(unsupportedf(c.op, "comparison over args %s", abstract.Summarize(c.args)))
}

// compareIdent extracts the identity of identity-compared variants,
// along with the kind scoping that identity.
func compareIdent(v abstract.Value) (int64, abstract.Kind, bool) {
	switch val := v.(type) {
	case *abstract.Callable:
		return val.Ident, val.Kind(), true
	case *abstract.ModuleNS:
		return val.Ident, val.Kind(), true
	}
	return 0, 0, false
}

// identVerdict inverts the verdict for the negated operators.
func identVerdict(o op.Op, same bool) bool {
	if o == op.Ne || o == op.IsNot {
		return !same
	}
	return same
}

// compareSequences compares same-kind sequences element-wise. Only
// equality operators are defined; any element pair that cannot be
// decided statically escapes.
func (e *Evaluator) compareSequences(c *call, a, b *abstract.Sequence) outcome {
	if c.op != op.Eq && c.op != op.Ne {
		return escape(unsupportedf(c.op, "sequence comparison supports eq/ne only"))
	}
	if len(a.Items) != len(b.Items) {
		return apply(abstract.Const(identVerdict(c.op, false)))
	}
	for i := range a.Items {
		ra, aok := abstract.RawScalar(a.Items[i])
		rb, bok := abstract.RawScalar(b.Items[i])
		if !aok || !bok {
			return escape(unsupportedf(c.op, "sequence elements %s and %s are not statically comparable",
				a.Items[i].Inspect(), b.Items[i].Inspect()))
		}
		same, err := compareRaw(op.Eq, ra, rb)
		if err != nil {
			return escape(unsupportedf(c.op, "%v", err))
		}
		if !same {
			return apply(abstract.Const(identVerdict(c.op, false)))
		}
	}
	return apply(abstract.Const(identVerdict(c.op, true)))
}

// compareRaw applies a comparison to raw host values.
func compareRaw(o op.Op, a, b any) (bool, error) {
	switch o {
	case op.Eq, op.Ne, op.Is, op.IsNot:
		same := rawEqual(a, b)
		return identVerdict(o, same), nil
	case op.Lt, op.Le, op.Gt, op.Ge:
		return rawOrdered(o, a, b)
	default:
		return false, fmt.Errorf("%s is not a comparison", o)
	}
}

func rawEqual(a, b any) bool {
	if fa, ok := asFloatRaw(a); ok {
		if fb, ok := asFloatRaw(b); ok {
			return fa == fb
		}
		return false
	}
	return a == b
}

func rawOrdered(o op.Op, a, b any) (bool, error) {
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return orderedVerdict(o, sa < sb, sa == sb), nil
		}
	}
	fa, aok := asFloatRaw(a)
	fb, bok := asFloatRaw(b)
	if !aok || !bok {
		return false, fmt.Errorf("unorderable values %v and %v", a, b)
	}
	return orderedVerdict(o, fa < fb, fa == fb), nil
}

func orderedVerdict(o op.Op, less, equal bool) bool {
	switch o {
	case op.Lt:
		return less
	case op.Le:
		return less || equal
	case op.Gt:
		return !less && !equal
	default: // Ge
		return !less
	}
}

func asFloatRaw(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
