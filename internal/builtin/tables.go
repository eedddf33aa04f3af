package builtin

import (
	"github.com/funvibe/tracelet/internal/abstract"
	"github.com/funvibe/tracelet/internal/op"
)

// magicNames are the forward/reverse overload method names of a
// reversible binary operator.
type magicNames struct {
	Forward string
	Reverse string
}

// kindPredicate matches one operand of a binary-operator pattern.
type kindPredicate func(abstract.Value) bool

// binopHandler implements one (pattern, handler) table entry.
type binopHandler func(e *Evaluator, c *call, a, b abstract.Value) outcome

type binopEntry struct {
	left    kindPredicate
	right   kindPredicate
	handler binopHandler
}

// handlerFunc is a named handler for one specific operation.
type handlerFunc func(e *Evaluator, c *call) outcome

// handlerSpec pairs a named handler with its declared arity. maxArgs
// of -1 means variadic.
type handlerSpec struct {
	name    string
	fn      handlerFunc
	minArgs int
	maxArgs int
	allowKw bool
}

func (h handlerSpec) accepts(c *call) bool {
	n := len(c.args)
	if n < h.minArgs {
		return false
	}
	if h.maxArgs >= 0 && n > h.maxArgs {
		return false
	}
	if !h.allowKw && len(c.kwargs) != 0 {
		return false
	}
	return true
}

// dispatchTables are built once per evaluator on first use and
// read-only afterwards, so parallel traces can share an evaluator's
// tables without synchronization.
type dispatchTables struct {
	foldable      map[op.Op]bool
	graphOps      map[op.Op]bool
	reversible    map[op.Op]magicNames
	binops        map[op.Op][]binopEntry
	handlers      map[op.Op]handlerSpec
	constCompare  map[op.Op]bool
	tensorCompare map[op.Op]bool
}

func buildTables() (*dispatchTables, error) {
	t := &dispatchTables{
		foldable: opSet(
			op.Abs, op.All, op.Any, op.Bool, op.Callable, op.Chr, op.Divmod,
			op.Float, op.Int, op.Len, op.List, op.Max, op.Min, op.Ord,
			op.Repr, op.Round, op.Str, op.Sum, op.Tuple, op.Type,
			op.Pos, op.Neg, op.Not, op.Invert, op.Index,
			op.Pow, op.Mul, op.MatMul, op.FloorDiv, op.TrueDiv, op.Mod,
			op.Add, op.Sub, op.GetItem, op.LShift, op.RShift,
			op.And, op.Or, op.Xor,
			op.IPow, op.IMul, op.IMatMul, op.IFloorDiv, op.ITrueDiv,
			op.IMod, op.IAdd, op.ISub, op.ILShift, op.IRShift,
			op.IAnd, op.IXor, op.IOr,
			op.Sqrt, op.Floor, op.Ceil,
		),
		graphOps: opSet(
			op.Pos, op.Neg, op.Not, op.Invert,
			op.Pow, op.Mul, op.MatMul, op.FloorDiv, op.TrueDiv, op.Mod,
			op.Add, op.Sub, op.GetItem, op.LShift, op.RShift,
			op.And, op.Or, op.Xor,
			op.IPow, op.IMul, op.IMatMul, op.IFloorDiv, op.ITrueDiv,
			op.IMod, op.IAdd, op.ISub, op.ILShift, op.IRShift,
			op.IAnd, op.IXor, op.IOr,
		),
		reversible: map[op.Op]magicNames{
			op.Add:      {"__add__", "__radd__"},
			op.Sub:      {"__sub__", "__rsub__"},
			op.Mul:      {"__mul__", "__rmul__"},
			op.TrueDiv:  {"__truediv__", "__rtruediv__"},
			op.FloorDiv: {"__floordiv__", "__rfloordiv__"},
			op.Mod:      {"__mod__", "__rmod__"},
			// The reverse overloads of matmul, divmod and the shift and
			// bitwise family are not defined on symbolic numbers, so
			// those operators stay out of this table.
			op.Pow: {"__pow__", "__rpow__"},
		},
		constCompare:  opSet(op.Eq, op.Ne, op.Is, op.IsNot),
		tensorCompare: opSet(op.Eq, op.Ne, op.Lt, op.Le, op.Gt, op.Ge),
	}

	t.binops = buildBinopTable(t.reversible)

	handlers, err := buildHandlers()
	if err != nil {
		return nil, err
	}
	t.handlers = handlers

	for o, spec := range handlers {
		if spec.fn == nil {
			return nil, invariantf("handler %s has no implementation", o)
		}
		if spec.maxArgs >= 0 && spec.minArgs > spec.maxArgs {
			return nil, invariantf("handler %s declares arity %d..%d", o, spec.minArgs, spec.maxArgs)
		}
	}
	return t, nil
}

func opSet(ops ...op.Op) map[op.Op]bool {
	m := make(map[op.Op]bool, len(ops))
	for _, o := range ops {
		m[o] = true
	}
	return m
}

// Operand variant predicates for binary-operator patterns.
func anyValue(abstract.Value) bool { return true }

func isUserObject(v abstract.Value) bool {
	_, ok := v.(*abstract.UserObject)
	return ok
}

func isDynamicShape(v abstract.Value) bool {
	_, ok := v.(*abstract.DynamicShape)
	return ok
}

func isConstant(v abstract.Value) bool {
	return abstract.IsConstant(v)
}

func isSeqOfKind(kind abstract.SeqKind) kindPredicate {
	return func(v abstract.Value) bool {
		s, ok := v.(*abstract.Sequence)
		return ok && s.SeqKind == kind
	}
}

func isSequence(v abstract.Value) bool {
	_, ok := v.(*abstract.Sequence)
	return ok
}

// buildBinopTable derives the ordered per-operator handler lists. Order
// is the dispatch priority: user-object overloads first, then symbolic
// operands, then the sequence special cases for add and mul.
func buildBinopTable(reversible map[op.Op]magicNames) map[op.Op][]binopEntry {
	isTuple := isSeqOfKind(abstract.TupleSeq)
	isList := isSeqOfKind(abstract.ListSeq)

	table := make(map[op.Op][]binopEntry, len(reversible))
	for o, names := range reversible {
		user := userBinopHandler(names)
		dyn := dynamicBinopHandler()
		table[o] = []binopEntry{
			{isUserObject, anyValue, user},
			{anyValue, isUserObject, user},
			{isDynamicShape, anyValue, dyn},
			{anyValue, isDynamicShape, dyn},
		}
	}

	// Sequence concatenation. The tuple entries run before the generic
	// same-kind entry so constant operands coerce into tuples.
	table[op.Add] = append(table[op.Add],
		binopEntry{isTuple, isConstant, concatTupleConst},
		binopEntry{isConstant, isTuple, concatConstTuple},
		binopEntry{isTuple, isTuple, concatSequences},
		binopEntry{isSameKindSequences, isSequence, concatSequences},
	)

	// Sequence repetition by a constant count.
	table[op.Mul] = append(table[op.Mul],
		binopEntry{isList, isConstant, repeatSequence},
		binopEntry{isTuple, isConstant, repeatSequence},
		binopEntry{isConstant, isList, repeatSequenceRev},
		binopEntry{isConstant, isTuple, repeatSequenceRev},
	)

	return table
}

// isSameKindSequences is evaluated against the left operand only;
// concatSequences re-checks kind agreement with the right operand,
// since patterns see one operand at a time.
func isSameKindSequences(v abstract.Value) bool { return isSequence(v) }

// findBinopHandler returns the first entry whose pattern matches, in
// table order.
func (t *dispatchTables) findBinopHandler(o op.Op, a, b abstract.Value) binopHandler {
	for _, entry := range t.binops[o] {
		if entry.left(a) && entry.right(b) {
			return entry.handler
		}
	}
	return nil
}
