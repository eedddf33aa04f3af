// Package op defines the fixed catalogue of primitive operations the
// builtin-call evaluator knows about, together with the host-level
// constant-folding semantics for those that are foldable.
package op

// Op identifies one primitive operation. The catalogue is closed: the
// evaluator dispatches on Op values only, never on strings.
type Op int

const (
	Invalid Op = iota

	// Reversible binary arithmetic.
	Add
	Sub
	Mul
	TrueDiv
	FloorDiv
	Mod
	Pow

	// Remaining binary operators.
	MatMul
	LShift
	RShift
	And
	Or
	Xor

	// In-place variants. They share folding semantics with their
	// forward counterparts.
	IAdd
	ISub
	IMul
	ITrueDiv
	IFloorDiv
	IMod
	IPow
	IMatMul
	ILShift
	IRShift
	IAnd
	IOr
	IXor

	// Unary operators.
	Pos
	Neg
	Not
	Invert
	Index

	// Comparisons and identity.
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
	Is
	IsNot

	// Subscription.
	GetItem

	// Builtins.
	Abs
	All
	Any
	Bool
	Callable
	Chr
	Dict
	Divmod
	Float
	Int
	Len
	List
	Max
	Min
	Ord
	Repr
	Round
	Str
	Sum
	Tuple
	Type
	MakeRange
	MakeSlice
	Iter
	Zip
	Enumerate
	Map
	Reduce
	Reversed
	Chain
	ISlice
	Next
	ID
	GetAttr
	SetAttr
	HasAttr
	IsInstance

	// Math primitives.
	Sqrt
	Floor
	Ceil

	// Symbolic numeric conversion, emitted when int()/float() is applied
	// to a value known only as a symbolic expression.
	SymInt
	SymFloat

	// Tensor-level operations the evaluator may emit on behalf of a
	// builtin (never called directly by the tracer).
	ClampMin
	ClampMax
	Minimum
	Maximum
	Materialize

	opCount
)

var opNames = map[Op]string{
	Add:         "add",
	Sub:         "sub",
	Mul:         "mul",
	TrueDiv:     "truediv",
	FloorDiv:    "floordiv",
	Mod:         "mod",
	Pow:         "pow",
	MatMul:      "matmul",
	LShift:      "lshift",
	RShift:      "rshift",
	And:         "and_",
	Or:          "or_",
	Xor:         "xor",
	IAdd:        "iadd",
	ISub:        "isub",
	IMul:        "imul",
	ITrueDiv:    "itruediv",
	IFloorDiv:   "ifloordiv",
	IMod:        "imod",
	IPow:        "ipow",
	IMatMul:     "imatmul",
	ILShift:     "ilshift",
	IRShift:     "irshift",
	IAnd:        "iand",
	IOr:         "ior",
	IXor:        "ixor",
	Pos:         "pos",
	Neg:         "neg",
	Not:         "not_",
	Invert:      "invert",
	Index:       "index",
	Eq:          "eq",
	Ne:          "ne",
	Lt:          "lt",
	Le:          "le",
	Gt:          "gt",
	Ge:          "ge",
	Is:          "is_",
	IsNot:       "is_not",
	GetItem:     "getitem",
	Abs:         "abs",
	All:         "all",
	Any:         "any",
	Bool:        "bool",
	Callable:    "callable",
	Chr:         "chr",
	Dict:        "dict",
	Divmod:      "divmod",
	Float:       "float",
	Int:         "int",
	Len:         "len",
	List:        "list",
	Max:         "max",
	Min:         "min",
	Ord:         "ord",
	Repr:        "repr",
	Round:       "round",
	Str:         "str",
	Sum:         "sum",
	Tuple:       "tuple",
	Type:        "type",
	MakeRange:   "range",
	MakeSlice:   "slice",
	Iter:        "iter",
	Zip:         "zip",
	Enumerate:   "enumerate",
	Map:         "map",
	Reduce:      "reduce",
	Reversed:    "reversed",
	Chain:       "chain",
	ISlice:      "islice",
	Next:        "next",
	ID:          "id",
	GetAttr:     "getattr",
	SetAttr:     "setattr",
	HasAttr:     "hasattr",
	IsInstance:  "isinstance",
	Sqrt:        "sqrt",
	Floor:       "floor",
	Ceil:        "ceil",
	SymInt:      "sym_int",
	SymFloat:    "sym_float",
	ClampMin:    "clamp_min",
	ClampMax:    "clamp_max",
	Minimum:     "minimum",
	Maximum:     "maximum",
	Materialize: "materialize",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "invalid"
}

// byName is the reverse of opNames, for parsing scenario files.
var byName = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for o, name := range opNames {
		m[name] = o
	}
	return m
}()

// Parse resolves an operation by its catalogue name.
func Parse(name string) (Op, bool) {
	o, ok := byName[name]
	return o, ok
}

// Forward maps an in-place operator to its forward counterpart and
// reports whether the receiver was in-place. All other operations map
// to themselves.
func (o Op) Forward() (Op, bool) {
	switch o {
	case IAdd:
		return Add, true
	case ISub:
		return Sub, true
	case IMul:
		return Mul, true
	case ITrueDiv:
		return TrueDiv, true
	case IFloorDiv:
		return FloorDiv, true
	case IMod:
		return Mod, true
	case IPow:
		return Pow, true
	case IMatMul:
		return MatMul, true
	case ILShift:
		return LShift, true
	case IRShift:
		return RShift, true
	case IAnd:
		return And, true
	case IOr:
		return Or, true
	case IXor:
		return Xor, true
	default:
		return o, false
	}
}

// Range is the host representation of a folded range(...) call.
type Range struct {
	Start int64
	Stop  int64
	Step  int64
}

// Len reports how many values the range produces.
func (r Range) Len() int64 {
	step := r.Step
	if step == 0 {
		step = 1
	}
	if step > 0 {
		if r.Stop <= r.Start {
			return 0
		}
		return (r.Stop - r.Start + step - 1) / step
	}
	if r.Start <= r.Stop {
		return 0
	}
	return (r.Start - r.Stop - step - 1) / (-step)
}

// Values materializes the range.
func (r Range) Values() []int64 {
	step := r.Step
	if step == 0 {
		step = 1
	}
	out := make([]int64, 0, r.Len())
	if step > 0 {
		for v := r.Start; v < r.Stop; v += step {
			out = append(out, v)
		}
	} else {
		for v := r.Start; v > r.Stop; v += step {
			out = append(out, v)
		}
	}
	return out
}

// Slice is the host representation of a folded slice(...) call. Nil
// bounds were omitted at the call site.
type Slice struct {
	Start *int64
	Stop  *int64
	Step  *int64
}

// Indices resolves the slice bounds against a sequence length, with
// the host language's clamping and negative-index rules. The returned
// step is never zero.
func (s Slice) Indices(length int64) (start, stop, step int64) {
	step = int64(1)
	if s.Step != nil && *s.Step != 0 {
		step = *s.Step
	}

	clamp := func(i int64, lo, hi int64) int64 {
		if i < 0 {
			i += length
		}
		if i < lo {
			return lo
		}
		if i > hi {
			return hi
		}
		return i
	}

	if step > 0 {
		start, stop = 0, length
		if s.Start != nil {
			start = clamp(*s.Start, 0, length)
		}
		if s.Stop != nil {
			stop = clamp(*s.Stop, 0, length)
		}
		return start, stop, step
	}

	start, stop = length-1, -1
	if s.Start != nil {
		start = clamp(*s.Start, -1, length-1)
	}
	if s.Stop != nil {
		stop = clamp(*s.Stop, -1, length-1)
	}
	return start, stop, step
}
