package builtin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/tracelet/internal/abstract"
	"github.com/funvibe/tracelet/internal/builtin"
	"github.com/funvibe/tracelet/internal/op"
)

func accumulator(t *testing.T, methods map[string]abstract.Method) *abstract.UserObject {
	t.Helper()
	u := abstract.NewUserObject(&abstract.Class{Name: "Acc"})
	u.Methods = &abstract.MethodTable{Methods: methods}
	return u
}

func TestUserObjectForwardOverload(t *testing.T) {
	h := defaultHarness()
	u := accumulator(t, map[string]abstract.Method{
		"__add__": func(self abstract.Value, args []abstract.Value) (abstract.Value, error) {
			return args[0], nil
		},
	})

	res, err := h.eval.CallBuiltin(op.Add, []abstract.Value{u, konst(int64(5))}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), constValue(t, res))
}

func TestUserObjectReverseOverload(t *testing.T) {
	h := defaultHarness()
	u := accumulator(t, map[string]abstract.Method{
		"__radd__": func(self abstract.Value, args []abstract.Value) (abstract.Value, error) {
			return args[0], nil
		},
	})

	res, err := h.eval.CallBuiltin(op.Add, []abstract.Value{konst(int64(7)), u}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), constValue(t, res))
}

func TestUserObjectBeatsDynamicShape(t *testing.T) {
	h := defaultHarness()
	x := h.dynamic("x", abstract.NumInt, int64(3))
	u := accumulator(t, map[string]abstract.Method{
		"__radd__": func(self abstract.Value, args []abstract.Value) (abstract.Value, error) {
			return args[0], nil
		},
	})

	before := len(h.rec.Nodes())
	res, err := h.eval.CallBuiltin(op.Add, []abstract.Value{x, u}, nil)
	require.NoError(t, err)

	// The reverse overload receives the symbolic operand; no graph
	// node may be emitted on its behalf.
	require.IsType(t, &abstract.DynamicShape{}, res)
	assert.Len(t, h.rec.Nodes(), before, "overload dispatch must not emit nodes")
}

func TestUserObjectMissingOverloadEscapes(t *testing.T) {
	h := defaultHarness()
	u := accumulator(t, nil)

	_, err := h.eval.CallBuiltin(op.Sub, []abstract.Value{u, konst(int64(1))}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))
	assert.Contains(t, err.Error(), "__sub__")
}

func TestDynamicBinopEmitsSymbolicNode(t *testing.T) {
	h := defaultHarness()
	x := h.dynamic("x", abstract.NumInt, int64(3))

	res, err := h.eval.CallBuiltin(op.Mul, []abstract.Value{x, konst(int64(2))}, nil)
	require.NoError(t, err)

	out, ok := res.(*abstract.DynamicShape)
	require.True(t, ok)
	assert.Equal(t, abstract.NumInt, out.Numeric)
	assert.Equal(t, op.Mul, h.lastNode(t).Op)
}

func TestDynamicBinopFloatContaminates(t *testing.T) {
	h := defaultHarness()
	x := h.dynamic("x", abstract.NumInt, int64(3))

	res, err := h.eval.CallBuiltin(op.Mul, []abstract.Value{x, konst(0.5)}, nil)
	require.NoError(t, err)
	out, ok := res.(*abstract.DynamicShape)
	require.True(t, ok)
	assert.Equal(t, abstract.NumFloat, out.Numeric)
}

func TestListConcatenation(t *testing.T) {
	h := defaultHarness()
	a := list(konst(int64(1)), konst(int64(2)))
	b := list(konst(int64(3)), konst(int64(4)))

	res, err := h.eval.CallBuiltin(op.Add, []abstract.Value{a, b}, nil)
	require.NoError(t, err)

	out, ok := res.(*abstract.Sequence)
	require.True(t, ok)
	assert.Equal(t, abstract.ListSeq, out.SeqKind)
	require.Len(t, out.Items, 4)
	for i, want := range []int64{1, 2, 3, 4} {
		assert.Equal(t, want, constValue(t, out.Items[i]))
	}
}

func TestTupleConstCoercion(t *testing.T) {
	h := defaultHarness()
	a := tuple(konst(int64(1)))

	res, err := h.eval.CallBuiltin(op.Add, []abstract.Value{a, konst([]any{int64(2), int64(3)})}, nil)
	require.NoError(t, err)

	out, ok := res.(*abstract.Sequence)
	require.True(t, ok)
	assert.Equal(t, abstract.TupleSeq, out.SeqKind)
	require.Len(t, out.Items, 3)

	res, err = h.eval.CallBuiltin(op.Add, []abstract.Value{konst([]any{int64(0)}), a}, nil)
	require.NoError(t, err)
	out = res.(*abstract.Sequence)
	require.Len(t, out.Items, 2)
	assert.Equal(t, int64(0), constValue(t, out.Items[0]))
}

func TestSequenceRepetition(t *testing.T) {
	h := defaultHarness()
	a := tuple(konst(int64(1)), konst(int64(2)))

	res, err := h.eval.CallBuiltin(op.Mul, []abstract.Value{a, konst(int64(3))}, nil)
	require.NoError(t, err)

	out, ok := res.(*abstract.Sequence)
	require.True(t, ok)
	assert.Equal(t, abstract.TupleSeq, out.SeqKind)
	require.Len(t, out.Items, 6)
	want := []int64{1, 2, 1, 2, 1, 2}
	for i := range want {
		assert.Equal(t, want[i], constValue(t, out.Items[i]))
	}
	require.NotNil(t, out.Mutation)
	assert.NotSame(t, a.Mutation, out.Mutation, "repetition owns fresh storage")
}

func TestSequenceRepetitionReversed(t *testing.T) {
	h := defaultHarness()
	a := list(konst(int64(7)))

	res, err := h.eval.CallBuiltin(op.Mul, []abstract.Value{konst(int64(2)), a}, nil)
	require.NoError(t, err)
	out := res.(*abstract.Sequence)
	assert.Equal(t, abstract.ListSeq, out.SeqKind)
	assert.Len(t, out.Items, 2)
}

func TestSequenceSpecialCasesOnlyForAddMul(t *testing.T) {
	h := defaultHarness()
	a := list(konst(int64(1)))
	b := list(konst(int64(2)))

	// Subtraction has no sequence handler; with constant items the
	// fold layer cannot serve it either, so the call must escape.
	_, err := h.eval.CallBuiltin(op.Sub, []abstract.Value{a, b}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))
}

func TestMixedKindConcatFallsThrough(t *testing.T) {
	h := defaultHarness()
	a := list(konst(int64(1)))
	b := tuple(konst(int64(2)))

	// list + tuple declines in the sequence handler; folding over the
	// unwrapped raw values then serves it as a plain list concat.
	res, err := h.eval.CallBuiltin(op.Add, []abstract.Value{a, b}, nil)
	require.NoError(t, err)
	raw := constValue(t, res)
	assert.Equal(t, []any{int64(1), int64(2)}, raw)
}

func TestRepetitionByNonIntegerEscapes(t *testing.T) {
	h := defaultHarness()
	a := list(konst(int64(1)))

	_, err := h.eval.CallBuiltin(op.Mul, []abstract.Value{a, konst("x")}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))
}
