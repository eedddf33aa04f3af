package builtin

import (
	"sync"

	"github.com/funvibe/tracelet/internal/abstract"
	"github.com/funvibe/tracelet/internal/config"
	"github.com/funvibe/tracelet/internal/graph"
	"github.com/funvibe/tracelet/internal/guard"
	"github.com/funvibe/tracelet/internal/op"
	"github.com/funvibe/tracelet/internal/sideeffect"
)

// GraphInput is one captured input of the trace being built. The
// evaluator needs the registry to resolve values, like a tensor's
// grad, that only exist relative to a captured input.
type GraphInput struct {
	Name   string
	Node   graph.NodeRef
	Source guard.Source
}

// Evaluator decides how one builtin call is represented in the trace:
// folded to a constant, deferred into the graph, transformed
// symbolically, or rejected. One Evaluator serves one trace session;
// its dispatch tables are built on first use and read-only afterwards.
type Evaluator struct {
	opts    config.Options
	builder graph.Builder
	effects *sideeffect.Ledger
	inputs  []GraphInput

	tablesOnce sync.Once
	tables     *dispatchTables
	tablesErr  error
}

// New builds an evaluator emitting into builder.
func New(builder graph.Builder, opts config.Options) *Evaluator {
	return &Evaluator{
		opts:    opts,
		builder: builder,
		effects: sideeffect.NewLedger(),
	}
}

// Effects exposes the trace's attribute-mutation ledger so the driving
// tracer can commit or discard it when the trace completes.
func (e *Evaluator) Effects() *sideeffect.Ledger { return e.effects }

// AddInput registers a captured graph input.
func (e *Evaluator) AddInput(in GraphInput) {
	e.inputs = append(e.inputs, in)
}

func (e *Evaluator) findInput(src guard.Source) (GraphInput, bool) {
	if src == nil {
		return GraphInput{}, false
	}
	for _, in := range e.inputs {
		if in.Source != nil && in.Source.Ref() == src.Ref() {
			return in, true
		}
	}
	return GraphInput{}, false
}

func (e *Evaluator) ensureTables() error {
	e.tablesOnce.Do(func() {
		e.tables, e.tablesErr = buildTables()
	})
	return e.tablesErr
}

// call is one evaluation in flight: the operation, its arguments, and
// the classification the decision sequence keys on.
type call struct {
	op     op.Op
	args   []abstract.Value
	kwargs map[string]abstract.Value

	// merged is the union of every argument's guard set; it is folded
	// into whatever value the call produces.
	merged guard.Set

	tensorArgs bool
	constArgs  bool
	// foldable means the operation is in the constant-fold set and
	// every argument unwraps to a raw host value.
	foldable bool
}

func (e *Evaluator) newCall(o op.Op, args []abstract.Value, kwargs map[string]abstract.Value) *call {
	c := &call{
		op:     o,
		args:   append([]abstract.Value{}, args...),
		kwargs: kwargs,
	}
	c.reclassify(e)
	return c
}

// reclassify recomputes the call classification; run again after a
// step rewrites arguments in place.
func (c *call) reclassify(e *Evaluator) {
	c.merged = guard.Set{}
	c.tensorArgs = false
	c.constArgs = true
	c.foldable = e.tables.foldable[c.op]
	check := func(v abstract.Value) {
		c.merged = c.merged.Union(v.Guards())
		if _, ok := v.(*abstract.TensorHandle); ok {
			c.tensorArgs = true
		}
		if !abstract.IsConstant(v) {
			c.constArgs = false
		}
		if c.foldable {
			if _, ok := e.rawFoldArg(v); !ok {
				c.foldable = false
			}
		}
	}
	for _, a := range c.args {
		check(a)
	}
	for _, v := range c.kwargs {
		check(v)
	}

	// type() and callable() fold on variant identity, not raw values.
	if (c.op == op.Type || c.op == op.Callable) && len(c.args) == 1 && len(c.kwargs) == 0 {
		c.foldable = e.tables.foldable[c.op]
	}
}

// rawFoldArg unwraps a value to the raw host value constant folding
// operates on. Unspecialized scalars unwrap only when scalar
// specialization is enabled; otherwise they stay symbolic and flow to
// graph emission instead.
func (e *Evaluator) rawFoldArg(v abstract.Value) (any, bool) {
	switch val := v.(type) {
	case *abstract.Constant:
		return val.Value, true
	case *abstract.TensorHandle:
		if val.Unspec != nil && e.opts.SpecializeScalars {
			return val.Unspec.Raw, true
		}
	case *abstract.Sequence:
		items := make([]any, len(val.Items))
		for i, item := range val.Items {
			raw, ok := e.rawFoldArg(item)
			if !ok {
				return nil, false
			}
			items[i] = raw
		}
		return items, true
	}
	return nil, false
}

// CallBuiltin evaluates one builtin call over abstract arguments and
// returns the value representing it in the trace. An *UnsupportedError
// tells the driving tracer to fall back to untraced execution for this
// call; an *InvariantError reports a defect in the dispatch tables.
//
// The decision sequence is fixed: exclusions, graph emission, symbolic
// numeric conversion, reversible binary dispatch, the named handler,
// constant folding, escape.
func (e *Evaluator) CallBuiltin(o op.Op, args []abstract.Value, kwargs map[string]abstract.Value) (abstract.Value, error) {
	if err := e.ensureTables(); err != nil {
		return nil, err
	}
	c := e.newCall(o, args, kwargs)

	// Boolean-mask subscription yields a result of unknown length; it
	// is representable only under dynamic shapes.
	if o == op.GetItem && len(c.args) == 2 && !e.opts.DynamicShapes {
		if t, ok := c.args[1].(*abstract.TensorHandle); ok && t.DType == abstract.DTypeBool && t.Unspec == nil {
			return nil, unsupportedf(o, "boolean-mask subscription requires dynamic shapes")
		}
	}

	// Subscription defers into the graph only when the subscripted
	// object itself is a tensor. Indexing host storage stays on the
	// host: a scalar-wrapper index pins to its observed value, and a
	// tensor index has no host-side answer at all.
	if o == op.GetItem && len(c.args) == 2 {
		if _, ok := c.args[0].(*abstract.TensorHandle); !ok {
			changed := false
			for i, a := range c.args {
				if abstract.IsUnspec(a) {
					c.args[i] = e.pinScalar(a)
					changed = true
				}
			}
			if changed {
				c.reclassify(e)
			}
			c.tensorArgs = false
		}
	}

	if e.tables.graphOps[o] && c.tensorArgs {
		res, err := e.emitTensorCall(c)
		if err != nil {
			return nil, err
		}
		return res.WithGuards(c.merged), nil
	}

	if (o == op.Int || o == op.Float) && len(c.args) == 1 && len(c.kwargs) == 0 {
		if isDynamicShape(c.args[0]) {
			res, err := e.convertSymbolic(c)
			if err != nil {
				return nil, err
			}
			return res.WithGuards(c.merged), nil
		}
	}

	// In-place operators never dispatch through the reversible table:
	// the overload protocol it selects belongs to the forward
	// operators, and in-place mutation has its own handlers.
	if len(c.args) == 2 && len(c.kwargs) == 0 {
		if _, ok := e.tables.reversible[o]; ok {
			if h := e.tables.findBinopHandler(o, c.args[0], c.args[1]); h != nil {
				out := h(e, c, c.args[0], c.args[1])
				switch out.state {
				case stateApplied:
					return out.value.WithGuards(c.merged), nil
				case stateFailed:
					return nil, out.err
				}
				// Not applicable: the matched pattern declined, fall
				// through to the named handler and folding.
			}
		}
	}

	if spec, ok := e.tables.handlers[o]; ok {
		if spec.accepts(c) {
			out := spec.fn(e, c)
			switch out.state {
			case stateApplied:
				return out.value.WithGuards(c.merged), nil
			case stateFailed:
				// A handler-local escape is suppressed when folding can
				// still serve the call; everything else propagates.
				if !(c.foldable && IsUnsupported(out.err)) {
					return nil, out.err
				}
			}
		} else if !c.foldable {
			return nil, unsupportedf(o, "handler %s rejects %d positional / %d keyword arguments",
				spec.name, len(c.args), len(c.kwargs))
		}
	}

	if c.foldable {
		res, err := e.foldCall(c)
		if err != nil {
			return nil, err
		}
		return res.WithGuards(c.merged), nil
	}

	return nil, unsupportedf(o, "no rule over args %s", abstract.Summarize(c.args))
}

// pinScalar specializes an unspecialized scalar and installs a value
// guard over its provenance.
func (e *Evaluator) pinScalar(v abstract.Value) abstract.Value {
	pinned := abstract.Specialize(v)
	if src := pinned.Source(); src != nil && !src.Constant() {
		g := guard.New(src, guard.ValueMatch, pinned.Inspect())
		pinned = pinned.WithGuards(guard.NewSet(g))
	}
	return pinned
}

// foldCall computes the call on the host and wraps the result as a
// constant. Class-aware builtins fold here, before the raw unwrap,
// since class identities are not host scalars.
func (e *Evaluator) foldCall(c *call) (abstract.Value, error) {
	switch c.op {
	case op.Type:
		if len(c.args) == 1 {
			if class := abstract.ClassOf(c.args[0]); class != nil {
				return abstract.Const(class), nil
			}
			return nil, unsupportedf(c.op, "type of %s is not statically known", c.args[0].Inspect())
		}
	case op.Callable:
		if len(c.args) == 1 {
			if _, ok := c.args[0].(*abstract.Callable); ok {
				return abstract.Const(true), nil
			}
			if raw, ok := abstract.ConstValue(c.args[0]); ok {
				_, isClass := raw.(*abstract.Class)
				return abstract.Const(isClass), nil
			}
		}
	}

	raws := make([]any, len(c.args))
	for i, a := range c.args {
		raw, ok := e.rawFoldArg(a)
		if !ok {
			return nil, unsupportedf(c.op, "cannot unwrap %s for folding", a.Inspect())
		}
		raws[i] = raw
	}
	var rawKw map[string]any
	if len(c.kwargs) > 0 {
		rawKw = make(map[string]any, len(c.kwargs))
		for name, v := range c.kwargs {
			raw, ok := e.rawFoldArg(v)
			if !ok {
				return nil, unsupportedf(c.op, "cannot unwrap keyword %s=%s for folding", name, v.Inspect())
			}
			rawKw[name] = raw
		}
	}

	res, err := op.Fold(c.op, raws, rawKw)
	if err != nil {
		return nil, unsupportedf(c.op, "fold: %v", err)
	}
	return abstract.Const(res), nil
}
