package abstract

import (
	"fmt"

	"github.com/funvibe/tracelet/internal/graph"
	"github.com/funvibe/tracelet/internal/guard"
)

// Constant is a fully known value. Raw payloads are host scalars
// (int64, float64, bool, string, nil), []any for literal tuples,
// op.Range / op.Slice, or *Class for class references.
type Constant struct {
	origin
	Value any
}

// Const wraps a raw host value.
func Const(v any) *Constant { return &Constant{Value: v} }

// ConstWithSource wraps a raw host value observed at a known place.
func ConstWithSource(v any, src guard.Source) *Constant {
	return &Constant{origin: origin{src: src}, Value: v}
}

func (c *Constant) Kind() Kind      { return KindConstant }
func (c *Constant) Inspect() string { return inspectRaw(c.Value) }

func (c *Constant) WithGuards(gs guard.Set) Value {
	cp := *c
	cp.origin = c.merged(gs)
	return &cp
}

func (c *Constant) WithSource(src guard.Source) Value {
	cp := *c
	cp.origin = c.resourced(src)
	return &cp
}

// NumKind is the numeric sort of a symbolic expression.
type NumKind int

const (
	NumInt NumKind = iota
	NumFloat
)

func (n NumKind) String() string {
	if n == NumFloat {
		return "float"
	}
	return "int"
}

// DynamicShape is a value known only as a symbolic expression over
// unresolved integers, e.g. an unresolved tensor dimension. Hint is the
// value observed during tracing; pinning a symbolic value to its hint
// always installs a value guard.
type DynamicShape struct {
	origin
	Node    graph.NodeRef
	Numeric NumKind
	Hint    any
}

// NewDynamicShape wraps a symbolic expression node.
func NewDynamicShape(node graph.NodeRef, numeric NumKind, hint any) *DynamicShape {
	return &DynamicShape{Node: node, Numeric: numeric, Hint: hint}
}

func (d *DynamicShape) Kind() Kind      { return KindDynamicShape }
func (d *DynamicShape) Inspect() string { return fmt.Sprintf("dynamic(%s)", d.Numeric) }

func (d *DynamicShape) WithGuards(gs guard.Set) Value {
	cp := *d
	cp.origin = d.merged(gs)
	return &cp
}

func (d *DynamicShape) WithSource(src guard.Source) Value {
	cp := *d
	cp.origin = d.resourced(src)
	return &cp
}
