package abstract

import (
	"fmt"

	"github.com/funvibe/tracelet/internal/graph"
	"github.com/funvibe/tracelet/internal/guard"
)

// DType is a tensor element type. Only the bool dtype changes evaluator
// decisions (boolean-mask subscription); the rest ride along for
// diagnostics and isinstance checks.
type DType string

const (
	DTypeUnknown DType = ""
	DTypeFloat32 DType = "float32"
	DTypeFloat64 DType = "float64"
	DTypeInt32   DType = "int32"
	DTypeInt64   DType = "int64"
	DTypeBool    DType = "bool"
)

// UnspecInfo marks a tensor-backed host scalar that was deliberately
// not specialized: the graph node computes it, but the raw host value
// observed during tracing is still available for eager evaluation.
type UnspecInfo struct {
	Raw any
	// NeedUnwrap propagates through derived scalars: the compiled code
	// must unwrap the runtime value before use.
	NeedUnwrap bool
}

// TensorHandle is a tensor known only by its node in the deferred
// graph. FakeItem marks the result of an item() call that must be
// re-materialized as a tensor before tensor-only operations.
type TensorHandle struct {
	origin
	DType    DType
	Node     graph.NodeRef
	Unspec   *UnspecInfo
	FakeItem bool
}

// NewTensor wraps a graph node as a tensor value.
func NewTensor(dtype DType, node graph.NodeRef) *TensorHandle {
	return &TensorHandle{DType: dtype, Node: node}
}

func (t *TensorHandle) Kind() Kind { return KindTensor }

func (t *TensorHandle) Inspect() string {
	switch {
	case t.FakeItem:
		return fmt.Sprintf("fake_item(%s)", t.DType)
	case t.Unspec != nil:
		return fmt.Sprintf("unspec(%s)", inspectRaw(t.Unspec.Raw))
	case t.DType == DTypeUnknown:
		return "tensor"
	default:
		return fmt.Sprintf("tensor(%s)", t.DType)
	}
}

func (t *TensorHandle) WithGuards(gs guard.Set) Value {
	cp := *t
	cp.origin = t.merged(gs)
	return &cp
}

func (t *TensorHandle) WithSource(src guard.Source) Value {
	cp := *t
	cp.origin = t.resourced(src)
	return &cp
}
