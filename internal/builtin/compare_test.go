package builtin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/tracelet/internal/abstract"
	"github.com/funvibe/tracelet/internal/builtin"
	"github.com/funvibe/tracelet/internal/graph"
	"github.com/funvibe/tracelet/internal/op"
)

func TestConstantComparisonFolds(t *testing.T) {
	cases := []struct {
		name string
		op   op.Op
		a, b any
		want bool
	}{
		{"lt_ints", op.Lt, int64(1), int64(2), true},
		{"lt_false", op.Lt, int64(3), int64(2), false},
		{"le_equal", op.Le, int64(2), int64(2), true},
		{"gt_strings", op.Gt, "b", "a", true},
		{"eq_cross_numeric", op.Eq, int64(1), 1.0, true},
		{"ne_cross_numeric", op.Ne, int64(1), 1.0, false},
		{"eq_strings", op.Eq, "x", "x", true},
		{"ne_mixed_types", op.Ne, int64(1), "1", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := defaultHarness()
			res, err := h.eval.CallBuiltin(tc.op, []abstract.Value{konst(tc.a), konst(tc.b)}, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, constValue(t, res))
			assert.Empty(t, h.rec.Nodes())
		})
	}
}

func TestTensorComparisonEmitsBoolTensor(t *testing.T) {
	h := defaultHarness()
	x := h.tensor("x", abstract.DTypeFloat32)

	res, err := h.eval.CallBuiltin(op.Lt, []abstract.Value{x, konst(0.0)}, nil)
	require.NoError(t, err)

	// A tensor comparison is never decided at trace time.
	out, ok := res.(*abstract.TensorHandle)
	require.True(t, ok, "got %T", res)
	assert.Equal(t, abstract.DTypeBool, out.DType)

	node := h.lastNode(t)
	assert.Equal(t, op.Lt, node.Op)
	assert.Equal(t, graph.CallFunction, node.Kind)
	assert.Equal(t, out.Node, node.Ref)
}

func TestSymbolicComparisonEmitsNode(t *testing.T) {
	h := defaultHarness()
	n := h.dynamic("n", abstract.NumInt, int64(4))

	res, err := h.eval.CallBuiltin(op.Eq, []abstract.Value{n, konst(int64(4))}, nil)
	require.NoError(t, err)

	out, ok := res.(*abstract.DynamicShape)
	require.True(t, ok)
	assert.Equal(t, abstract.NumInt, out.Numeric)
	assert.Equal(t, op.Eq, h.lastNode(t).Op)
}

func TestCallableIdentityComparison(t *testing.T) {
	h := defaultHarness()
	f := abstract.NewCallable("relu")
	g := abstract.NewCallable("gelu")

	res, err := h.eval.CallBuiltin(op.Is, []abstract.Value{f, f}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, constValue(t, res))

	res, err = h.eval.CallBuiltin(op.Eq, []abstract.Value{f, g}, nil)
	require.NoError(t, err)
	assert.Equal(t, false, constValue(t, res))

	res, err = h.eval.CallBuiltin(op.IsNot, []abstract.Value{f, g}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, constValue(t, res))
}

func TestCallableOrderingEscapes(t *testing.T) {
	h := defaultHarness()
	f := abstract.NewCallable("relu")

	_, err := h.eval.CallBuiltin(op.Lt, []abstract.Value{f, f}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))
}

func TestModuleIdentityComparison(t *testing.T) {
	h := defaultHarness()
	m := abstract.NewModule("math", nil)
	n := abstract.NewModule("math", nil)

	res, err := h.eval.CallBuiltin(op.Is, []abstract.Value{m, m}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, constValue(t, res))

	// Same name, distinct namespace objects.
	res, err = h.eval.CallBuiltin(op.Eq, []abstract.Value{m, n}, nil)
	require.NoError(t, err)
	assert.Equal(t, false, constValue(t, res))
}

func TestCrossKindIdentityComparisonEscapes(t *testing.T) {
	h := defaultHarness()
	f := abstract.NewCallable("relu")
	m := abstract.NewModule("math", nil)

	// Idents live in per-kind spaces; comparing a function against a
	// module is declined rather than folded.
	_, err := h.eval.CallBuiltin(op.Eq, []abstract.Value{f, m}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))

	_, err = h.eval.CallBuiltin(op.Is, []abstract.Value{m, f}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))
}

func TestUserObjectIdentityComparison(t *testing.T) {
	h := defaultHarness()
	u := abstract.NewUserObject(&abstract.Class{Name: "A"})
	v := abstract.NewUserObject(&abstract.Class{Name: "A"})

	res, err := h.eval.CallBuiltin(op.Is, []abstract.Value{u, u}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, constValue(t, res))

	res, err = h.eval.CallBuiltin(op.IsNot, []abstract.Value{u, v}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, constValue(t, res))

	_, err = h.eval.CallBuiltin(op.Eq, []abstract.Value{u, v}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))
}

func TestSequenceEquality(t *testing.T) {
	h := defaultHarness()
	a := list(konst(int64(1)), konst(int64(2)))
	b := list(konst(int64(1)), konst(int64(2)))
	short := list(konst(int64(1)))

	res, err := h.eval.CallBuiltin(op.Eq, []abstract.Value{a, b}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, constValue(t, res))

	res, err = h.eval.CallBuiltin(op.Ne, []abstract.Value{a, b}, nil)
	require.NoError(t, err)
	assert.Equal(t, false, constValue(t, res))

	res, err = h.eval.CallBuiltin(op.Eq, []abstract.Value{a, short}, nil)
	require.NoError(t, err)
	assert.Equal(t, false, constValue(t, res))
}

func TestSequenceOrderingEscapes(t *testing.T) {
	h := defaultHarness()
	a := list(konst(int64(1)))
	b := list(konst(int64(2)))

	_, err := h.eval.CallBuiltin(op.Lt, []abstract.Value{a, b}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))
}

func TestSequenceEqualityWithSymbolicElementEscapes(t *testing.T) {
	h := defaultHarness()
	n := h.dynamic("n", abstract.NumInt, int64(2))
	a := list(konst(int64(1)), n)
	b := list(konst(int64(1)), konst(int64(2)))

	_, err := h.eval.CallBuiltin(op.Eq, []abstract.Value{a, b}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))
}

func TestGreaterEqualHasNoHandler(t *testing.T) {
	h := defaultHarness()

	_, err := h.eval.CallBuiltin(op.Ge, []abstract.Value{konst(int64(2)), konst(int64(1))}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))
}
