package abstract

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/funvibe/tracelet/internal/guard"
	"github.com/funvibe/tracelet/internal/op"
)

// identCounter issues identities for modules and callables. One shared
// space keeps every Ident distinct for the life of the process.
var identCounter atomic.Int64

func nextIdent() int64 { return identCounter.Add(1) }

// Class is the identity of a traced object's class.
type Class struct {
	Name  string
	Bases []*Class
	// InstanceCheck, when set, replaces the subsumption rule for
	// isinstance. Classes defining one force decisions the evaluator
	// cannot make structurally.
	InstanceCheck func(Value) bool
	// Native marks classes whose attribute slots live outside the
	// tracer's reach; attribute writes to their instances cannot be
	// virtualized.
	Native bool
}

// Subsumes reports whether other is c or inherits from c.
func (c *Class) Subsumes(other *Class) bool {
	if other == nil {
		return false
	}
	if other == c {
		return true
	}
	for _, base := range other.Bases {
		if c.Subsumes(base) {
			return true
		}
	}
	return false
}

// Built-in class identities, used by type() and isinstance folding.
var (
	IntClass      = &Class{Name: "int"}
	FloatClass    = &Class{Name: "float"}
	BoolClass     = &Class{Name: "bool", Bases: []*Class{IntClass}}
	StrClass      = &Class{Name: "str"}
	NoneClass     = &Class{Name: "NoneType"}
	ListClass     = &Class{Name: "list"}
	TupleClass    = &Class{Name: "tuple"}
	DictClass     = &Class{Name: "dict"}
	RangeClass    = &Class{Name: "range"}
	SliceClass    = &Class{Name: "slice"}
	TensorClass   = &Class{Name: "Tensor"}
	ModuleClass   = &Class{Name: "module"}
	FunctionClass = &Class{Name: "function"}
)

// ClassOf resolves the class identity of a traced value, or nil when
// the value's class is not statically known.
func ClassOf(v Value) *Class {
	switch val := v.(type) {
	case *Constant:
		switch val.Value.(type) {
		case nil:
			return NoneClass
		case bool:
			return BoolClass
		case int64, int:
			return IntClass
		case float64:
			return FloatClass
		case string:
			return StrClass
		case []any:
			return TupleClass
		case op.Range:
			return RangeClass
		case op.Slice:
			return SliceClass
		case *Class:
			return nil // the class of a class is not modeled
		default:
			return nil
		}
	case *DynamicShape:
		if val.Numeric == NumFloat {
			return FloatClass
		}
		return IntClass
	case *TensorHandle:
		return TensorClass
	case *Sequence:
		if val.SeqKind == TupleSeq {
			return TupleClass
		}
		return ListClass
	case *Mapping:
		return DictClass
	case *UserObject:
		return val.Class
	case *ModuleNS:
		return ModuleClass
	case *Callable:
		return FunctionClass
	case *AttrRef:
		return nil
	default:
		return nil
	}
}

// ErrNoSuchMethod reports a method lookup miss on a user object.
var ErrNoSuchMethod = errors.New("no such method")

// Method is a bound operation on a user object, supplied by the tracer
// when it wraps the object.
type Method func(self Value, args []Value) (Value, error)

// MethodTable holds the overload methods of a user-defined class that
// the tracer chose to expose.
type MethodTable struct {
	Methods map[string]Method
}

// UserObject is an instance of a user-defined class. Identity is the
// unit of side-effect tracking.
type UserObject struct {
	origin
	ID      uuid.UUID
	Class   *Class
	Fields  map[string]Value
	Methods *MethodTable
}

// NewUserObject builds a user object with a fresh identity.
func NewUserObject(class *Class) *UserObject {
	return &UserObject{ID: uuid.New(), Class: class, Fields: map[string]Value{}}
}

func (u *UserObject) Kind() Kind { return KindUserObject }

func (u *UserObject) Inspect() string {
	name := "object"
	if u.Class != nil {
		name = u.Class.Name
	}
	return fmt.Sprintf("<%s object>", name)
}

// CallMethod invokes an exposed method by name.
func (u *UserObject) CallMethod(name string, args []Value) (Value, error) {
	if u.Methods == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchMethod, name)
	}
	m, ok := u.Methods.Methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchMethod, name)
	}
	return m(u, args)
}

// HasMethod reports whether the object exposes a method by name.
func (u *UserObject) HasMethod(name string) bool {
	if u.Methods == nil {
		return false
	}
	_, ok := u.Methods.Methods[name]
	return ok
}

func (u *UserObject) WithGuards(gs guard.Set) Value {
	cp := *u
	cp.origin = u.merged(gs)
	return &cp
}

func (u *UserObject) WithSource(src guard.Source) Value {
	cp := *u
	cp.origin = u.resourced(src)
	return &cp
}

// ModuleNS is an imported module namespace.
type ModuleNS struct {
	origin
	Name      string
	Ident     int64
	Namespace map[string]Value
}

// NewModule builds a module namespace with a process-unique identity.
func NewModule(name string, namespace map[string]Value) *ModuleNS {
	if namespace == nil {
		namespace = map[string]Value{}
	}
	return &ModuleNS{Name: name, Ident: nextIdent(), Namespace: namespace}
}

func (m *ModuleNS) Kind() Kind      { return KindModule }
func (m *ModuleNS) Inspect() string { return fmt.Sprintf("<module %s>", m.Name) }

func (m *ModuleNS) WithGuards(gs guard.Set) Value {
	cp := *m
	cp.origin = m.merged(gs)
	return &cp
}

func (m *ModuleNS) WithSource(src guard.Source) Value {
	cp := *m
	cp.origin = m.resourced(src)
	return &cp
}

// Callable is a function identity. The evaluator never inlines user
// code: it only compares identities and, when the tracer supplied an
// applier, maps it over statically unpacked sequences.
type Callable struct {
	origin
	Name       string
	ModuleName string
	Ident      int64
	// Invoke, when set, applies the callable to already-abstracted
	// arguments on the tracer's behalf.
	Invoke func(args []Value) (Value, error)
}

// NewCallable builds a callable identity.
func NewCallable(name string) *Callable {
	return &Callable{Name: name, Ident: nextIdent()}
}

func (c *Callable) Kind() Kind      { return KindCallable }
func (c *Callable) Inspect() string { return fmt.Sprintf("<function %s>", c.Name) }

func (c *Callable) WithGuards(gs guard.Set) Value {
	cp := *c
	cp.origin = c.merged(gs)
	return &cp
}

func (c *Callable) WithSource(src guard.Source) Value {
	cp := *c
	cp.origin = c.resourced(src)
	return &cp
}

// AttrRef is the generic attribute-reference placeholder produced when
// an attribute read cannot be resolved to a concrete value but the
// access itself is representable.
type AttrRef struct {
	origin
	Object Value
	Name   string
}

// NewAttrRef builds an unresolved attribute reference.
func NewAttrRef(obj Value, name string) *AttrRef {
	return &AttrRef{Object: obj, Name: name}
}

func (a *AttrRef) Kind() Kind      { return KindAttrRef }
func (a *AttrRef) Inspect() string { return fmt.Sprintf("<attr %s.%s>", a.Object.Inspect(), a.Name) }

func (a *AttrRef) WithGuards(gs guard.Set) Value {
	cp := *a
	cp.origin = a.merged(gs)
	return &cp
}

func (a *AttrRef) WithSource(src guard.Source) Value {
	cp := *a
	cp.origin = a.resourced(src)
	return &cp
}
