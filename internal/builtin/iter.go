package builtin

import (
	"strconv"

	"github.com/funvibe/tracelet/internal/abstract"
	"github.com/funvibe/tracelet/internal/graph"
	"github.com/funvibe/tracelet/internal/guard"
	"github.com/funvibe/tracelet/internal/op"
)

// callRange folds range(...) when every argument is statically known
// or can be pinned. A symbolic argument with an observed hint is pinned
// to the hint under a value guard; without a hint the handler declines.
func callRange(e *Evaluator, c *call) outcome {
	raws := make([]any, len(c.args))
	extra := guard.Set{}
	for i, a := range c.args {
		if raw, ok := abstract.RawScalar(a); ok {
			raws[i] = raw
			continue
		}
		if d, ok := a.(*abstract.DynamicShape); ok && d.Hint != nil {
			raws[i] = d.Hint
			if src := d.Source(); src != nil && !src.Constant() {
				extra = extra.Add(guard.New(src, guard.ValueMatch, abstract.Const(d.Hint).Inspect()))
			}
			continue
		}
		return pass
	}
	res, err := op.Fold(op.MakeRange, raws, nil)
	if err != nil {
		return escape(unsupportedf(c.op, "%v", err))
	}
	return apply(abstract.Const(res).WithGuards(extra))
}

// callSlice always folds to a constant slice value; a bound that is
// neither a known integer nor None escapes.
func callSlice(e *Evaluator, c *call) outcome {
	bounds := make([]*int64, 3)
	for i, a := range c.args {
		raw, ok := abstract.RawScalar(a)
		if !ok {
			return escape(unsupportedf(c.op, "slice bound %s is not statically known", a.Inspect()))
		}
		if raw == nil {
			continue
		}
		n, ok := rawInt(raw)
		if !ok {
			return escape(unsupportedf(c.op, "slice bound must be an integer or None, got %s", a.Inspect()))
		}
		bounds[i] = &n
	}
	s := op.Slice{}
	switch len(c.args) {
	case 1:
		s.Stop = bounds[0]
	case 2:
		s.Start, s.Stop = bounds[0], bounds[1]
	default:
		s.Start, s.Stop, s.Step = bounds[0], bounds[1], bounds[2]
	}
	return apply(abstract.Const(s))
}

// callSequenceBuild serves iter, list and tuple. A statically
// unpackable source becomes a concrete sequence, guarded by length
// when the source may change between runs; symbolic sources defer into
// the graph.
func callSequenceBuild(e *Evaluator, c *call) outcome {
	kind := abstract.ListSeq
	if c.op == op.Tuple {
		kind = abstract.TupleSeq
	}
	if len(c.args) == 0 {
		return apply(abstract.NewSequence(kind, nil))
	}

	src := c.args[0]
	if isDynamicShape(src) {
		return e.dynProxy(c)
	}
	items, ok := abstract.Unpack(src)
	if !ok {
		return pass
	}
	seq := abstract.NewSequence(kind, items)
	if p := src.Source(); p != nil && !p.Constant() {
		g := guard.New(p, guard.ListLength, strconv.Itoa(len(items)))
		return apply(seq.WithGuards(guard.NewSet(g)))
	}
	return apply(seq)
}

// callDict builds a mapping: cloning an existing one into fresh
// exclusively-owned storage, or collecting keyword arguments.
func callDict(e *Evaluator, c *call) outcome {
	if len(c.args) == 1 {
		m, ok := c.args[0].(*abstract.Mapping)
		if !ok {
			return pass
		}
		if len(c.kwargs) != 0 {
			return escape(unsupportedf(c.op, "dict over a mapping does not accept keywords"))
		}
		return apply(m.CloneLocal())
	}

	entries := make([]abstract.Entry, 0, len(c.kwargs))
	for _, name := range sortedNames(c.kwargs) {
		entries = append(entries, abstract.Entry{Key: abstract.Const(name), Val: c.kwargs[name]})
	}
	return apply(abstract.NewMapping(entries))
}

// callZip tuples corresponding items of its sources, stopping at the
// shortest one.
func callZip(e *Evaluator, c *call) outcome {
	columns := make([][]abstract.Value, len(c.args))
	shortest := -1
	for i, a := range c.args {
		items, ok := abstract.Unpack(a)
		if !ok {
			return pass
		}
		columns[i] = items
		if shortest < 0 || len(items) < shortest {
			shortest = len(items)
		}
	}
	if shortest < 0 {
		shortest = 0
	}
	rows := make([]abstract.Value, shortest)
	for i := 0; i < shortest; i++ {
		row := make([]abstract.Value, len(columns))
		for j, col := range columns {
			row[j] = col[i]
		}
		rows[i] = abstract.NewSequence(abstract.TupleSeq, row)
	}
	return apply(abstract.NewSequence(abstract.TupleSeq, rows))
}

// callEnumerate pairs each item with its index, honoring a constant
// start.
func callEnumerate(e *Evaluator, c *call) outcome {
	items, ok := abstract.Unpack(c.args[0])
	if !ok {
		return pass
	}
	start := int64(0)
	if len(c.args) == 2 {
		raw, ok := abstract.RawScalar(c.args[1])
		if !ok {
			return pass
		}
		n, ok := rawInt(raw)
		if !ok {
			return escape(unsupportedf(c.op, "enumerate start must be an integer, got %s", c.args[1].Inspect()))
		}
		start = n
	}
	rows := make([]abstract.Value, len(items))
	for i, item := range items {
		rows[i] = abstract.NewSequence(abstract.TupleSeq, []abstract.Value{
			abstract.Const(start + int64(i)), item,
		})
	}
	return apply(abstract.NewSequence(abstract.TupleSeq, rows))
}

// callLen answers for container variants whose length is structural;
// constants fall through to folding.
func callLen(e *Evaluator, c *call) outcome {
	switch v := c.args[0].(type) {
	case *abstract.Sequence:
		n := int64(v.Len())
		if src := v.Source(); src != nil && !src.Constant() {
			g := guard.New(src, guard.ListLength, strconv.FormatInt(n, 10))
			return apply(abstract.Const(n).WithGuards(guard.NewSet(g)))
		}
		return apply(abstract.Const(n))
	case *abstract.Mapping:
		return apply(abstract.Const(int64(v.Len())))
	default:
		return pass
	}
}

// callIAdd extends an exclusively-owned list in place, keeping its
// mutation marker so later writes still see the same storage. Every
// other combination was already claimed by binary dispatch or falls
// through.
func callIAdd(e *Evaluator, c *call) outcome {
	seq, ok := c.args[0].(*abstract.Sequence)
	if !ok || seq.SeqKind != abstract.ListSeq || seq.Mutation == nil {
		return pass
	}
	items, ok := abstract.Unpack(c.args[1])
	if !ok {
		return pass
	}
	grown := &abstract.Sequence{
		SeqKind:  seq.SeqKind,
		Items:    append(append([]abstract.Value{}, seq.Items...), items...),
		Mutation: seq.Mutation,
	}
	return apply(grown.WithGuards(seq.Guards()))
}

// callGetItem resolves subscription over container variants.
// Subscription of a tensor never reaches here; it is claimed by graph
// emission. A tensor used as an index into host storage is not
// statically resolvable and escapes below.
func callGetItem(e *Evaluator, c *call) outcome {
	obj, key := c.args[0], c.args[1]

	if d, ok := key.(*abstract.DynamicShape); ok {
		// A symbolic index into host storage pins to its observed hint.
		if d.Hint == nil {
			return escape(unsupportedf(c.op, "subscript by %s has no observed value", key.Inspect()))
		}
		pinned := abstract.Const(d.Hint)
		if src := d.Source(); src != nil && !src.Constant() {
			key = pinned.WithGuards(guard.NewSet(guard.New(src, guard.ValueMatch, pinned.Inspect())))
		} else {
			key = pinned
		}
	}

	switch v := obj.(type) {
	case *abstract.Mapping:
		raw, ok := abstract.RawScalar(key)
		if !ok {
			return escape(unsupportedf(c.op, "mapping key %s is not statically known", key.Inspect()))
		}
		val, found := v.Get(raw)
		if !found {
			return escape(unsupportedf(c.op, "mapping has no key %s", key.Inspect()))
		}
		return apply(val.WithGuards(key.Guards()))
	case *abstract.Sequence:
		raw, ok := abstract.RawScalar(key)
		if !ok {
			return escape(unsupportedf(c.op, "sequence index %s is not statically known", key.Inspect()))
		}
		if s, isSlice := raw.(op.Slice); isSlice {
			return apply(subsequence(v, s).WithGuards(key.Guards()))
		}
		idx, ok := rawInt(raw)
		if !ok {
			return escape(unsupportedf(c.op, "sequence index must be an integer, got %s", key.Inspect()))
		}
		n := int64(v.Len())
		if idx < 0 {
			idx += n
		}
		if idx < 0 || idx >= n {
			return escape(unsupportedf(c.op, "sequence index %s out of range", key.Inspect()))
		}
		return apply(v.Items[idx].WithGuards(key.Guards()))
	default:
		return pass
	}
}

func subsequence(seq *abstract.Sequence, s op.Slice) abstract.Value {
	start, stop, step := s.Indices(int64(seq.Len()))
	var items []abstract.Value
	if step > 0 {
		for i := start; i < stop; i += step {
			items = append(items, seq.Items[i])
		}
	} else {
		for i := start; i > stop; i += step {
			items = append(items, seq.Items[i])
		}
	}
	return abstract.NewSequence(seq.SeqKind, items)
}

// callNext yields the first item of a statically unpackable source.
func callNext(e *Evaluator, c *call) outcome {
	items, ok := abstract.Unpack(c.args[0])
	if !ok {
		return pass
	}
	if len(items) == 0 {
		return escape(unsupportedf(c.op, "next over an exhausted source"))
	}
	return apply(items[0])
}

// callMap applies a callable over unpackable sources. The evaluator
// never inlines user code, so the callable must carry a
// tracer-supplied applier.
func callMap(e *Evaluator, c *call) outcome {
	fn, ok := c.args[0].(*abstract.Callable)
	if !ok {
		return pass
	}
	if fn.Invoke == nil {
		return escape(unsupportedf(c.op, "cannot apply opaque callable %s", fn.Inspect()))
	}
	columns := make([][]abstract.Value, len(c.args)-1)
	shortest := -1
	for i, a := range c.args[1:] {
		items, unpackable := abstract.Unpack(a)
		if !unpackable {
			return pass
		}
		columns[i] = items
		if shortest < 0 || len(items) < shortest {
			shortest = len(items)
		}
	}
	out := make([]abstract.Value, shortest)
	for i := 0; i < shortest; i++ {
		row := make([]abstract.Value, len(columns))
		for j, col := range columns {
			row[j] = col[i]
		}
		res, err := fn.Invoke(row)
		if err != nil {
			return escape(unsupportedf(c.op, "%s: %v", fn.Inspect(), err))
		}
		out[i] = res
	}
	return apply(abstract.NewSequence(abstract.TupleSeq, out))
}

// callSum folds eagerly over fully known items and otherwise reduces
// with add through the evaluator, so symbolic items still defer into
// the graph.
func callSum(e *Evaluator, c *call) outcome {
	items, ok := abstract.Unpack(c.args[0])
	if !ok {
		return pass
	}
	var acc abstract.Value = abstract.Const(int64(0))
	if len(c.args) == 2 {
		acc = c.args[1]
	} else if start, ok := c.kwargs["start"]; ok {
		acc = start
	}
	for _, item := range items {
		next, err := e.CallBuiltin(op.Add, []abstract.Value{acc, item}, nil)
		if err != nil {
			return escape(err)
		}
		acc = next
	}
	return apply(acc)
}

// callReduce folds a tracer-applied callable from the left, seeded by
// the optional initializer.
func callReduce(e *Evaluator, c *call) outcome {
	fn, ok := c.args[0].(*abstract.Callable)
	if !ok {
		return pass
	}
	if fn.Invoke == nil {
		return escape(unsupportedf(c.op, "cannot apply opaque callable %s", fn.Inspect()))
	}
	items, ok := abstract.Unpack(c.args[1])
	if !ok {
		return pass
	}
	var acc abstract.Value
	if len(c.args) == 3 {
		acc = c.args[2]
	} else {
		if len(items) == 0 {
			return escape(unsupportedf(c.op, "reduce over an empty sequence with no initializer"))
		}
		acc, items = items[0], items[1:]
	}
	for _, item := range items {
		next, err := fn.Invoke([]abstract.Value{acc, item})
		if err != nil {
			return escape(unsupportedf(c.op, "%s: %v", fn.Inspect(), err))
		}
		acc = next
	}
	return apply(acc)
}

func callReversed(e *Evaluator, c *call) outcome {
	items, ok := abstract.Unpack(c.args[0])
	if !ok {
		return pass
	}
	out := make([]abstract.Value, len(items))
	for i, item := range items {
		out[len(items)-1-i] = item
	}
	return apply(abstract.NewSequence(abstract.TupleSeq, out))
}

func callChain(e *Evaluator, c *call) outcome {
	var out []abstract.Value
	for _, a := range c.args {
		items, ok := abstract.Unpack(a)
		if !ok {
			return pass
		}
		out = append(out, items...)
	}
	return apply(abstract.NewSequence(abstract.TupleSeq, out))
}

// callISlice cuts an unpackable source by constant bounds; a None
// bound means unbounded.
func callISlice(e *Evaluator, c *call) outcome {
	items, ok := abstract.Unpack(c.args[0])
	if !ok {
		return pass
	}
	bounds := make([]*int64, 3)
	for i, a := range c.args[1:] {
		raw, rok := abstract.RawScalar(a)
		if !rok {
			return pass
		}
		if raw == nil {
			continue
		}
		n, iok := rawInt(raw)
		if !iok || n < 0 {
			return escape(unsupportedf(c.op, "islice bound must be a non-negative integer or None"))
		}
		bounds[i] = &n
	}
	s := op.Slice{}
	if len(c.args) == 2 {
		s.Stop = bounds[0]
	} else {
		s.Start, s.Stop, s.Step = bounds[0], bounds[1], bounds[2]
	}
	start, stop, step := s.Indices(int64(len(items)))
	var out []abstract.Value
	for i := start; i < stop; i += step {
		out = append(out, items[i])
	}
	return apply(abstract.NewSequence(abstract.TupleSeq, out))
}

// callNeg covers only the symbolic case; constants reach it only when
// folding was not applicable.
func callNeg(e *Evaluator, c *call) outcome {
	d, ok := c.args[0].(*abstract.DynamicShape)
	if !ok {
		return pass
	}
	node := e.builder.CreateNode(graph.CallFunction, op.Neg, []graph.Operand{graph.Ref(d.Node)})
	var hint any
	if d.Hint != nil {
		if negated, err := op.Fold(op.Neg, []any{d.Hint}, nil); err == nil {
			hint = negated
		}
	}
	return apply(abstract.NewDynamicShape(node, d.Numeric, hint))
}

// callAnd covers only symbolic operands.
func callAnd(e *Evaluator, c *call) outcome {
	if !isDynamicShape(c.args[0]) && !isDynamicShape(c.args[1]) {
		return pass
	}
	for _, a := range c.args {
		if !isDynamicShape(a) {
			if _, ok := abstract.RawScalar(a); !ok {
				return pass
			}
		}
	}
	operands, err := proxyOperands(c.op, c.args, nil)
	if err != nil {
		return escape(err)
	}
	node := e.builder.CreateNode(graph.CallFunction, c.op, operands)
	return apply(abstract.NewDynamicShape(node, abstract.NumInt, nil))
}

// callID is supported only for module namespaces, whose identity is
// stable for the process lifetime.
func callID(e *Evaluator, c *call) outcome {
	m, ok := c.args[0].(*abstract.ModuleNS)
	if !ok {
		return escape(unsupportedf(c.op, "id over %s", c.args[0].Inspect()))
	}
	return apply(abstract.Const(m.Ident))
}
