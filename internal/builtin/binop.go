package builtin

import (
	"errors"

	"github.com/funvibe/tracelet/internal/abstract"
	"github.com/funvibe/tracelet/internal/graph"
)

// userBinopHandler dispatches a reversible operator to the operand's
// overload: the forward method when the user object is on the left,
// the reverse method when it is on the right. Overload resolution wins
// over every other strategy, so a tensor on the other side must not
// short-circuit into graph emission.
func userBinopHandler(names magicNames) binopHandler {
	return func(e *Evaluator, c *call, a, b abstract.Value) outcome {
		if u, ok := a.(*abstract.UserObject); ok {
			return callOverload(c, u, names.Forward, b)
		}
		if u, ok := b.(*abstract.UserObject); ok {
			return callOverload(c, u, names.Reverse, a)
		}
		return escape(invariantf("user-object pattern matched %s and %s", a.Kind(), b.Kind()))
	}
}

func callOverload(c *call, u *abstract.UserObject, method string, other abstract.Value) outcome {
	res, err := u.CallMethod(method, []abstract.Value{other})
	if err != nil {
		if errors.Is(err, abstract.ErrNoSuchMethod) {
			return escape(unsupportedf(c.op, "%s does not define %s", u.Inspect(), method))
		}
		return escape(unsupportedf(c.op, "%s.%s: %v", u.Inspect(), method, err))
	}
	return apply(res)
}

// dynamicBinopHandler emits the operation as a graph node over both
// operands. Tensor operands never reach here (they are claimed by the
// graph-insertion step before binary dispatch runs), so the result is
// a symbolic number.
func dynamicBinopHandler() binopHandler {
	return func(e *Evaluator, c *call, a, b abstract.Value) outcome {
		operands, err := proxyOperands(c.op, []abstract.Value{a, b}, nil)
		if err != nil {
			return escape(err)
		}
		node := e.builder.CreateNode(graph.CallFunction, c.op, operands)
		return apply(abstract.NewDynamicShape(node, symbolicNumKind(a, b), nil))
	}
}

func symbolicNumKind(values ...abstract.Value) abstract.NumKind {
	for _, v := range values {
		switch val := v.(type) {
		case *abstract.DynamicShape:
			if val.Numeric == abstract.NumFloat {
				return abstract.NumFloat
			}
		case *abstract.Constant:
			if _, ok := val.Value.(float64); ok {
				return abstract.NumFloat
			}
		}
	}
	return abstract.NumInt
}

// concatTupleConst handles tuple + constant, unpacking the constant
// into tuple items.
func concatTupleConst(e *Evaluator, c *call, a, b abstract.Value) outcome {
	left := a.(*abstract.Sequence)
	right, ok := abstract.Unpack(b)
	if !ok {
		return escape(unsupportedf(c.op, "cannot unpack %s for concatenation", b.Inspect()))
	}
	return apply(&abstract.Sequence{
		SeqKind: abstract.TupleSeq,
		Items:   append(append([]abstract.Value{}, left.Items...), right...),
	})
}

// concatConstTuple is the mirrored case.
func concatConstTuple(e *Evaluator, c *call, a, b abstract.Value) outcome {
	left, ok := abstract.Unpack(a)
	if !ok {
		return escape(unsupportedf(c.op, "cannot unpack %s for concatenation", a.Inspect()))
	}
	right := b.(*abstract.Sequence)
	return apply(&abstract.Sequence{
		SeqKind: abstract.TupleSeq,
		Items:   append(left, right.Items...),
	})
}

// concatSequences concatenates two sequences of the same kind, keeping
// the left operand's kind. Mismatched kinds decline so the call can
// fall through to folding or escape.
func concatSequences(e *Evaluator, c *call, a, b abstract.Value) outcome {
	left := a.(*abstract.Sequence)
	right := b.(*abstract.Sequence)
	if left.SeqKind != right.SeqKind {
		return pass
	}
	return apply(&abstract.Sequence{
		SeqKind: left.SeqKind,
		Items:   append(append([]abstract.Value{}, left.Items...), right.Items...),
	})
}

// repeatSequence handles sequence * constant-count repetition. The
// result is trace-local and exclusively owned.
func repeatSequence(e *Evaluator, c *call, a, b abstract.Value) outcome {
	return repeatSeq(c, a.(*abstract.Sequence), b)
}

func repeatSequenceRev(e *Evaluator, c *call, a, b abstract.Value) outcome {
	return repeatSeq(c, b.(*abstract.Sequence), a)
}

func repeatSeq(c *call, seq *abstract.Sequence, count abstract.Value) outcome {
	raw, _ := abstract.ConstValue(count)
	n, ok := rawInt(raw)
	if !ok {
		return escape(unsupportedf(c.op, "sequence repetition count must be an integer, got %s", count.Inspect()))
	}
	items := make([]abstract.Value, 0, int64(len(seq.Items))*max64(n, 0))
	for i := int64(0); i < n; i++ {
		items = append(items, seq.Items...)
	}
	return apply(abstract.NewSequence(seq.SeqKind, items))
}

func rawInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
