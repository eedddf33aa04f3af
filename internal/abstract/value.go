// Package abstract models the values observed while tracing a program:
// each runtime value is represented by exactly one tagged variant, and
// every variant carries the provenance and guard set that produced it.
package abstract

import (
	"fmt"
	"strings"

	"github.com/funvibe/tracelet/internal/guard"
)

// Kind tags a Value variant. Dispatch sites switch over Kind
// exhaustively; an unlisted kind reaching a switch default is a defect.
type Kind int

const (
	KindConstant Kind = iota
	KindDynamicShape
	KindTensor
	KindSequence
	KindMapping
	KindUserObject
	KindModule
	KindCallable
	KindAttrRef
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindDynamicShape:
		return "dynamic_shape"
	case KindTensor:
		return "tensor"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindUserObject:
		return "user_object"
	case KindModule:
		return "module"
	case KindCallable:
		return "callable"
	case KindAttrRef:
		return "attr_ref"
	default:
		return "unknown"
	}
}

// Value is one traced value. Values are immutable: WithGuards and
// WithSource return modified copies, and derived values always merge
// the guard sets of everything that produced them.
type Value interface {
	Kind() Kind
	Inspect() string
	Source() guard.Source
	Guards() guard.Set
	// WithGuards returns a copy whose guard set additionally contains gs.
	WithGuards(gs guard.Set) Value
	// WithSource returns a copy with the given provenance.
	WithSource(src guard.Source) Value
}

// origin carries provenance and guards; embedded by every variant.
type origin struct {
	src    guard.Source
	guards guard.Set
}

func (o origin) Source() guard.Source { return o.src }
func (o origin) Guards() guard.Set    { return o.guards }

func (o origin) merged(gs guard.Set) origin {
	return origin{src: o.src, guards: o.guards.Union(gs)}
}

func (o origin) resourced(src guard.Source) origin {
	return origin{src: src, guards: o.guards}
}

// MergeGuards unions the guard sets of all given values.
func MergeGuards(values ...Value) guard.Set {
	var out guard.Set
	for _, v := range values {
		if v != nil {
			out = out.Union(v.Guards())
		}
	}
	return out
}

// Summarize renders a short diagnostic description of argument values,
// used in unsupported-call errors.
func Summarize(args []Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if a == nil {
			parts[i] = "nil"
			continue
		}
		parts[i] = a.Inspect()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// IsConstant reports whether v is a fully known value.
func IsConstant(v Value) bool {
	_, ok := v.(*Constant)
	return ok
}

// ConstValue unwraps a constant to its raw host value.
func ConstValue(v Value) (any, bool) {
	c, ok := v.(*Constant)
	if !ok {
		return nil, false
	}
	return c.Value, true
}

// IsUnspec reports whether v is a tensor-backed scalar that still
// carries its raw host value.
func IsUnspec(v Value) bool {
	t, ok := v.(*TensorHandle)
	return ok && t.Unspec != nil
}

// IsFakeItem reports whether v carries the needs-materialization marker.
func IsFakeItem(v Value) bool {
	t, ok := v.(*TensorHandle)
	return ok && t.FakeItem
}

// Specialize pins an unspecialized scalar to its observed raw value,
// returning a constant with the same provenance and guards. Every other
// variant is returned unchanged.
func Specialize(v Value) Value {
	t, ok := v.(*TensorHandle)
	if !ok || t.Unspec == nil {
		return v
	}
	return &Constant{origin: t.origin, Value: t.Unspec.Raw}
}

// RawScalar unwraps constants and unspecialized scalars to their raw
// host value.
func RawScalar(v Value) (any, bool) {
	switch val := v.(type) {
	case *Constant:
		return val.Value, true
	case *TensorHandle:
		if val.Unspec != nil {
			return val.Unspec.Raw, true
		}
	}
	return nil, false
}

func inspectRaw(v any) string {
	switch raw := v.(type) {
	case nil:
		return "None"
	case bool:
		if raw {
			return "True"
		}
		return "False"
	case string:
		return fmt.Sprintf("%q", raw)
	default:
		return fmt.Sprint(raw)
	}
}
