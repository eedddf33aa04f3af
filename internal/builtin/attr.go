package builtin

import (
	"errors"

	"github.com/funvibe/tracelet/internal/abstract"
	"github.com/funvibe/tracelet/internal/guard"
	"github.com/funvibe/tracelet/internal/op"
)

// errAttrMissing distinguishes "the attribute is not there" from "the
// access is not representable"; only the former may be absorbed by a
// getattr default.
var errAttrMissing = errors.New("attribute missing")

// callGetAttr resolves an attribute read. Pending trace-local writes
// win over the object's own state; an optional default is honored only
// after confirming the attribute is genuinely absent.
func callGetAttr(e *Evaluator, c *call) outcome {
	obj := c.args[0]
	name, ok := constName(c.args[1])
	if !ok {
		return escape(unsupportedf(c.op, "attribute name %s is not a compile-time constant", c.args[1].Inspect()))
	}

	if u, isUser := obj.(*abstract.UserObject); isUser && e.effects.IsTracked(u.ID) {
		if pending, found := e.effects.ReadPending(u.ID, name); found {
			return apply(pending)
		}
	}

	res, err := e.resolveAttr(c, obj, name)
	if err == nil {
		if src := obj.Source(); src != nil && res.Source() == nil {
			res = res.WithSource(guard.AttrSource{Base: src, Name: name})
		}
		return apply(res)
	}

	if errors.Is(err, errAttrMissing) && len(c.args) == 3 {
		present, gs, herr := e.hasAttr(obj, name)
		if herr == nil && !present {
			return apply(c.args[2].WithGuards(gs))
		}
	}
	if errors.Is(err, errAttrMissing) {
		return escape(unsupportedf(c.op, "%s has no attribute %q", obj.Inspect(), name))
	}
	return escape(err)
}

// resolveAttr reads an attribute off one variant. errAttrMissing means
// the object is understood but the attribute is not there.
func (e *Evaluator) resolveAttr(c *call, obj abstract.Value, name string) (abstract.Value, error) {
	switch v := obj.(type) {
	case *abstract.ModuleNS:
		if member, ok := v.Namespace[name]; ok {
			return member, nil
		}
		return nil, errAttrMissing
	case *abstract.TensorHandle:
		if name == "grad" {
			return e.resolveGrad(c, v)
		}
		if name == "dtype" && v.DType != abstract.DTypeUnknown {
			return abstract.Const(string(v.DType)), nil
		}
		return abstract.NewAttrRef(obj, name), nil
	case *abstract.UserObject:
		if field, ok := v.Fields[name]; ok {
			return field, nil
		}
		if v.HasMethod(name) {
			// Bound methods are not first-class trace values; reading
			// one without calling it is unrepresentable.
			return nil, unsupportedf(c.op, "cannot read bound method %s.%s", v.Inspect(), name)
		}
		return nil, errAttrMissing
	case *abstract.Callable:
		switch name {
		case "__name__":
			return abstract.Const(v.Name), nil
		case "__module__":
			return abstract.Const(v.ModuleName), nil
		}
		return nil, errAttrMissing
	case *abstract.Constant, *abstract.Sequence, *abstract.Mapping, *abstract.DynamicShape:
		return nil, errAttrMissing
	default:
		return abstract.NewAttrRef(obj, name), nil
	}
}

// resolveGrad resolves a tensor's grad only through a captured graph
// input: the gradient of an intermediate value does not exist at trace
// time.
func (e *Evaluator) resolveGrad(c *call, t *abstract.TensorHandle) (abstract.Value, error) {
	src := t.Source()
	if src == nil {
		return nil, unsupportedf(c.op, "grad of a tensor with no provenance")
	}
	gradSrc := guard.AttrSource{Base: src, Name: "grad"}
	if in, ok := e.findInput(gradSrc); ok {
		res := abstract.NewTensor(abstract.DTypeUnknown, in.Node)
		return res.WithSource(gradSrc), nil
	}
	return nil, unsupportedf(c.op, "grad of %s is not a captured input", src.Ref())
}

// hasAttr decides attribute presence and returns the guard that pins
// the answer.
func (e *Evaluator) hasAttr(obj abstract.Value, name string) (bool, guard.Set, error) {
	present := false
	switch v := obj.(type) {
	case *abstract.UserObject:
		if e.effects.IsTracked(v.ID) {
			if _, ok := e.effects.ReadPending(v.ID, name); ok {
				return true, guard.Set{}, nil
			}
		}
		_, inFields := v.Fields[name]
		present = inFields || v.HasMethod(name)
	case *abstract.ModuleNS:
		_, present = v.Namespace[name]
	case *abstract.Callable:
		present = name == "__name__" || name == "__module__"
	case *abstract.TensorHandle:
		present = name == "grad" || name == "dtype"
	case *abstract.Constant, *abstract.Sequence, *abstract.Mapping, *abstract.DynamicShape:
		present = false
	default:
		return false, guard.Set{}, unsupportedf(op.HasAttr, "hasattr over %s", obj.Inspect())
	}

	gs := guard.Set{}
	if src := obj.Source(); src != nil && !src.Constant() {
		detail := name
		if !present {
			detail = name + ":absent"
		}
		gs = gs.Add(guard.New(src, guard.HasAttr, detail))
	}
	return present, gs, nil
}

func callHasAttr(e *Evaluator, c *call) outcome {
	name, ok := constName(c.args[1])
	if !ok {
		return escape(unsupportedf(c.op, "attribute name %s is not a compile-time constant", c.args[1].Inspect()))
	}
	present, gs, err := e.hasAttr(c.args[0], name)
	if err != nil {
		return escape(err)
	}
	return apply(abstract.Const(present).WithGuards(gs))
}

// callSetAttr virtualizes an attribute write into the side-effect
// ledger. Only user objects whose class keeps its attribute slots
// under the tracer's control accept writes.
func callSetAttr(e *Evaluator, c *call) outcome {
	name, ok := constName(c.args[1])
	if !ok {
		return escape(unsupportedf(c.op, "attribute name %s is not a compile-time constant", c.args[1].Inspect()))
	}
	u, isUser := c.args[0].(*abstract.UserObject)
	if !isUser || (u.Class != nil && u.Class.Native) {
		return escape(unsupportedf(c.op, "attribute write to %s is not virtualizable", c.args[0].Inspect()))
	}
	if !e.effects.IsTracked(u.ID) {
		e.effects.Track(u.ID)
	}
	val := c.args[2]
	e.effects.RecordWrite(u.ID, name, val)
	return apply(val)
}

// callType resolves the class identity of its argument. A provenance-
// carrying argument gets a type guard: reuse of the trace must re-check
// the class.
func callType(e *Evaluator, c *call) outcome {
	arg := c.args[0]

	// type over a tuple answers with the tuple constructor itself, so
	// traced code can rebuild same-shaped tuples.
	if seq, ok := arg.(*abstract.Sequence); ok && seq.SeqKind == abstract.TupleSeq {
		ctor := abstract.NewCallable("tuple")
		ctor.Invoke = func(args []abstract.Value) (abstract.Value, error) {
			return e.CallBuiltin(op.Tuple, args, nil)
		}
		return apply(ctor)
	}

	class := abstract.ClassOf(arg)
	if class == nil {
		return escape(unsupportedf(c.op, "type of %s is not statically known", arg.Inspect()))
	}
	res := abstract.Const(class)
	if src := arg.Source(); src != nil && !src.Constant() {
		g := guard.New(guard.TypeSource{Base: src}, guard.TypeMatch, class.Name)
		return apply(res.WithGuards(guard.NewSet(g)))
	}
	return apply(res)
}

// callIsInstance folds class membership via identity subsumption.
// Classes that install their own instance check force the answer;
// user objects under such a class escape, since the check is opaque.
func callIsInstance(e *Evaluator, c *call) outcome {
	obj := c.args[0]
	classes, err := classArg(c, c.args[1])
	if err != nil {
		return escape(err)
	}

	objClass := abstract.ClassOf(obj)
	if u, ok := obj.(*abstract.UserObject); ok && u.Class != nil && u.Class.InstanceCheck != nil {
		return escape(unsupportedf(c.op, "%s defines a custom instance check", u.Class.Name))
	}

	for _, class := range classes {
		if class.InstanceCheck != nil {
			if class.InstanceCheck(obj) {
				return apply(abstract.Const(true))
			}
			continue
		}
		if objClass == nil {
			return escape(unsupportedf(c.op, "class of %s is not statically known", obj.Inspect()))
		}
		if class.Subsumes(objClass) {
			return apply(abstract.Const(true))
		}
	}
	return apply(abstract.Const(false))
}

// classArg accepts a single class or a tuple of classes.
func classArg(c *call, v abstract.Value) ([]*abstract.Class, error) {
	if raw, ok := abstract.ConstValue(v); ok {
		if class, isClass := raw.(*abstract.Class); isClass {
			return []*abstract.Class{class}, nil
		}
	}
	items, ok := abstract.Unpack(v)
	if !ok {
		return nil, unsupportedf(c.op, "%s is not a class or tuple of classes", v.Inspect())
	}
	classes := make([]*abstract.Class, 0, len(items))
	for _, item := range items {
		raw, rok := abstract.ConstValue(item)
		class, cok := raw.(*abstract.Class)
		if !rok || !cok {
			return nil, unsupportedf(c.op, "%s is not a class", item.Inspect())
		}
		classes = append(classes, class)
	}
	return classes, nil
}

func constName(v abstract.Value) (string, bool) {
	raw, ok := abstract.ConstValue(v)
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}
