package builtin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/tracelet/internal/abstract"
	"github.com/funvibe/tracelet/internal/builtin"
	"github.com/funvibe/tracelet/internal/guard"
	"github.com/funvibe/tracelet/internal/op"
)

func TestSetAttrThenGetAttr(t *testing.T) {
	h := defaultHarness()
	u := abstract.NewUserObject(&abstract.Class{Name: "Cfg"})
	u.Fields["lr"] = konst(0.1)

	res, err := h.eval.CallBuiltin(op.SetAttr, []abstract.Value{u, konst("lr"), konst(0.01)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.01, constValue(t, res))

	// The pending write wins over the object's own field.
	res, err = h.eval.CallBuiltin(op.GetAttr, []abstract.Value{u, konst("lr")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.01, constValue(t, res))

	// The object itself was not mutated.
	assert.Equal(t, 0.1, constValue(t, u.Fields["lr"]))
}

func TestSetAttrNativeClassEscapes(t *testing.T) {
	h := defaultHarness()
	u := abstract.NewUserObject(&abstract.Class{Name: "Ext", Native: true})

	_, err := h.eval.CallBuiltin(op.SetAttr, []abstract.Value{u, konst("x"), konst(int64(1))}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))
	assert.Contains(t, err.Error(), "not virtualizable")
}

func TestSetAttrOnConstantEscapes(t *testing.T) {
	h := defaultHarness()

	_, err := h.eval.CallBuiltin(op.SetAttr, []abstract.Value{konst(int64(1)), konst("x"), konst(int64(2))}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))
}

func TestGetAttrUserField(t *testing.T) {
	h := defaultHarness()
	u := abstract.NewUserObject(&abstract.Class{Name: "Cfg"})
	u.Fields["momentum"] = konst(0.9)

	res, err := h.eval.CallBuiltin(op.GetAttr, []abstract.Value{u, konst("momentum")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.9, constValue(t, res))
}

func TestGetAttrDefaultAfterConfirmedAbsence(t *testing.T) {
	h := defaultHarness()
	u := abstract.NewUserObject(&abstract.Class{Name: "Cfg"})
	src := guard.LocalSource{Name: "cfg"}
	obj := u.WithSource(src)

	res, err := h.eval.CallBuiltin(op.GetAttr, []abstract.Value{obj, konst("missing"), konst(int64(42))}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), constValue(t, res))

	// The default is only valid while the attribute stays absent.
	gs := res.Guards()
	require.Len(t, gs.Sorted(), 1)
	g := gs.Sorted()[0]
	assert.Equal(t, guard.HasAttr, g.Kind)
	assert.Equal(t, "missing:absent", g.Detail)
}

func TestGetAttrMissingWithoutDefaultEscapes(t *testing.T) {
	h := defaultHarness()
	u := abstract.NewUserObject(&abstract.Class{Name: "Cfg"})

	_, err := h.eval.CallBuiltin(op.GetAttr, []abstract.Value{u, konst("missing")}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))
	assert.Contains(t, err.Error(), `"missing"`)
}

func TestGetAttrNonConstantNameEscapes(t *testing.T) {
	h := defaultHarness()
	u := abstract.NewUserObject(&abstract.Class{Name: "Cfg"})
	n := h.dynamic("n", abstract.NumInt, int64(0))

	_, err := h.eval.CallBuiltin(op.GetAttr, []abstract.Value{u, n}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))
}

func TestGetAttrModuleMember(t *testing.T) {
	h := defaultHarness()
	pi := konst(3.141592653589793)
	m := abstract.NewModule("math", map[string]abstract.Value{"pi": pi})

	res, err := h.eval.CallBuiltin(op.GetAttr, []abstract.Value{m, konst("pi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3.141592653589793, constValue(t, res))
}

func TestGetAttrPropagatesSource(t *testing.T) {
	h := defaultHarness()
	src := guard.LocalSource{Name: "m"}
	m := abstract.NewModule("mod", map[string]abstract.Value{"flag": konst(true)}).WithSource(src)

	res, err := h.eval.CallBuiltin(op.GetAttr, []abstract.Value{m, konst("flag")}, nil)
	require.NoError(t, err)

	attr, ok := res.Source().(guard.AttrSource)
	require.True(t, ok, "got %T", res.Source())
	assert.Equal(t, "flag", attr.Name)
	assert.Equal(t, src, attr.Base)
}

func TestGetAttrBoundMethodEscapes(t *testing.T) {
	h := defaultHarness()
	u := accumulator(t, map[string]abstract.Method{
		"step": func(self abstract.Value, args []abstract.Value) (abstract.Value, error) {
			return konst(int64(0)), nil
		},
	})

	_, err := h.eval.CallBuiltin(op.GetAttr, []abstract.Value{u, konst("step")}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))
	assert.Contains(t, err.Error(), "bound method")
}

func TestGetAttrTensorDType(t *testing.T) {
	h := defaultHarness()
	x := h.tensor("x", abstract.DTypeFloat32)

	res, err := h.eval.CallBuiltin(op.GetAttr, []abstract.Value{x, konst("dtype")}, nil)
	require.NoError(t, err)
	assert.Equal(t, string(abstract.DTypeFloat32), constValue(t, res))
}

func TestGetAttrTensorGradResolvesCapturedInput(t *testing.T) {
	h := defaultHarness()
	x := h.tensor("x", abstract.DTypeFloat32)

	gradRef := h.rec.AddInput("x_grad")
	h.eval.AddInput(builtin.GraphInput{
		Name:   "x_grad",
		Node:   gradRef,
		Source: guard.AttrSource{Base: guard.LocalSource{Name: "x"}, Name: "grad"},
	})

	res, err := h.eval.CallBuiltin(op.GetAttr, []abstract.Value{x, konst("grad")}, nil)
	require.NoError(t, err)

	out, ok := res.(*abstract.TensorHandle)
	require.True(t, ok)
	assert.Equal(t, gradRef, out.Node)
}

func TestGetAttrTensorGradWithoutInputEscapes(t *testing.T) {
	h := defaultHarness()
	x := h.tensor("x", abstract.DTypeFloat32)

	_, err := h.eval.CallBuiltin(op.GetAttr, []abstract.Value{x, konst("grad")}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))
}

func TestHasAttr(t *testing.T) {
	h := defaultHarness()
	src := guard.LocalSource{Name: "cfg"}
	u := abstract.NewUserObject(&abstract.Class{Name: "Cfg"})
	u.Fields["lr"] = konst(0.1)
	obj := u.WithSource(src)

	res, err := h.eval.CallBuiltin(op.HasAttr, []abstract.Value{obj, konst("lr")}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, constValue(t, res))
	require.Len(t, res.Guards().Sorted(), 1)
	assert.Equal(t, "lr", res.Guards().Sorted()[0].Detail)

	res, err = h.eval.CallBuiltin(op.HasAttr, []abstract.Value{obj, konst("wd")}, nil)
	require.NoError(t, err)
	assert.Equal(t, false, constValue(t, res))
	assert.Equal(t, "wd:absent", res.Guards().Sorted()[0].Detail)
}

func TestHasAttrSeesPendingWrites(t *testing.T) {
	h := defaultHarness()
	u := abstract.NewUserObject(&abstract.Class{Name: "Cfg"})

	_, err := h.eval.CallBuiltin(op.SetAttr, []abstract.Value{u, konst("lr"), konst(0.5)}, nil)
	require.NoError(t, err)

	res, err := h.eval.CallBuiltin(op.HasAttr, []abstract.Value{u, konst("lr")}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, constValue(t, res))
}

func TestTypeOfValues(t *testing.T) {
	cases := []struct {
		name string
		arg  abstract.Value
		want *abstract.Class
	}{
		{"int", konst(int64(1)), abstract.IntClass},
		{"bool", konst(true), abstract.BoolClass},
		{"str", konst("x"), abstract.StrClass},
		{"none", konst(nil), abstract.NoneClass},
		{"list", list(konst(int64(1))), abstract.ListClass},
		{"dict", abstract.NewMapping(nil), abstract.DictClass},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := defaultHarness()
			res, err := h.eval.CallBuiltin(op.Type, []abstract.Value{tc.arg}, nil)
			require.NoError(t, err)
			assert.Same(t, tc.want, constValue(t, res))
		})
	}
}

func TestTypeGuardsProvenance(t *testing.T) {
	h := defaultHarness()
	x := h.tensor("x", abstract.DTypeFloat32)

	res, err := h.eval.CallBuiltin(op.Type, []abstract.Value{x}, nil)
	require.NoError(t, err)
	assert.Same(t, abstract.TensorClass, constValue(t, res))

	gs := res.Guards().Sorted()
	require.Len(t, gs, 1)
	assert.Equal(t, guard.TypeMatch, gs[0].Kind)
	assert.Equal(t, "Tensor", gs[0].Detail)
}

func TestTypeOfTupleIsConstructor(t *testing.T) {
	h := defaultHarness()
	tup := tuple(konst(int64(1)), konst(int64(2)))

	res, err := h.eval.CallBuiltin(op.Type, []abstract.Value{tup}, nil)
	require.NoError(t, err)

	ctor, ok := res.(*abstract.Callable)
	require.True(t, ok)
	require.NotNil(t, ctor.Invoke)

	rebuilt, err := ctor.Invoke([]abstract.Value{list(konst(int64(3)))})
	require.NoError(t, err)
	seq, ok := rebuilt.(*abstract.Sequence)
	require.True(t, ok)
	assert.Equal(t, abstract.TupleSeq, seq.SeqKind)
	require.Len(t, seq.Items, 1)
}

func TestIsInstance(t *testing.T) {
	base := &abstract.Class{Name: "Module"}
	derived := &abstract.Class{Name: "Linear", Bases: []*abstract.Class{base}}

	cases := []struct {
		name  string
		obj   abstract.Value
		class abstract.Value
		want  bool
	}{
		{"int_int", konst(int64(1)), konst(abstract.IntClass), true},
		{"bool_is_int", konst(true), konst(abstract.IntClass), true},
		{"int_not_bool", konst(int64(1)), konst(abstract.BoolClass), false},
		{"float_not_int", konst(1.5), konst(abstract.IntClass), false},
		{"subclass", abstract.NewUserObject(derived), konst(base), true},
		{"unrelated", abstract.NewUserObject(base), konst(derived), false},
		{"tuple_of_classes", konst("s"), tuple(konst(abstract.IntClass), konst(abstract.StrClass)), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := defaultHarness()
			res, err := h.eval.CallBuiltin(op.IsInstance, []abstract.Value{tc.obj, tc.class}, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, constValue(t, res))
		})
	}
}

func TestIsInstanceCustomCheckWins(t *testing.T) {
	h := defaultHarness()
	anyInt := &abstract.Class{Name: "AnyInt", InstanceCheck: func(v abstract.Value) bool {
		return abstract.ClassOf(v) == abstract.IntClass
	}}

	res, err := h.eval.CallBuiltin(op.IsInstance, []abstract.Value{konst(int64(3)), konst(anyInt)}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, constValue(t, res))
}

func TestIsInstanceOpaqueObjectCheckEscapes(t *testing.T) {
	h := defaultHarness()
	class := &abstract.Class{Name: "Proxy", InstanceCheck: func(abstract.Value) bool { return true }}
	u := abstract.NewUserObject(class)

	_, err := h.eval.CallBuiltin(op.IsInstance, []abstract.Value{u, konst(abstract.IntClass)}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))
}

func TestIsInstanceNonClassEscapes(t *testing.T) {
	h := defaultHarness()

	_, err := h.eval.CallBuiltin(op.IsInstance, []abstract.Value{konst(int64(1)), konst("int")}, nil)
	require.Error(t, err)
	assert.True(t, builtin.IsUnsupported(err))
}
