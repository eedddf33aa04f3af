package op

import (
	"fmt"
	"math"
	"strconv"
)

// Fold applies the host semantics of a foldable operation to fully
// unwrapped argument values. It is the single place where the evaluator
// actually computes: everything else only decides.
//
// Numeric semantics follow the traced language: integer division and
// modulo round toward negative infinity, true division always yields a
// float.
func Fold(o Op, args []any, kwargs map[string]any) (any, error) {
	if fwd, ok := o.Forward(); ok {
		o = fwd
	}

	switch o {
	case Add, Sub, Mul, TrueDiv, FloorDiv, Mod, Pow, MatMul, LShift, RShift, And, Or, Xor:
		if len(args) != 2 || len(kwargs) != 0 {
			return nil, fmt.Errorf("%s expects exactly 2 arguments, got %d", o, len(args))
		}
		return foldBinary(o, args[0], args[1])
	case Pos, Neg, Not, Invert, Index:
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects exactly 1 argument, got %d", o, len(args))
		}
		return foldUnary(o, args[0])
	case GetItem:
		if len(args) != 2 {
			return nil, fmt.Errorf("getitem expects exactly 2 arguments, got %d", len(args))
		}
		return foldGetItem(args[0], args[1])
	case Bool:
		return truthy(args[0]), nil
	case Int:
		return foldInt(args[0])
	case Float:
		return foldFloat(args[0])
	case Str, Repr:
		return foldStr(args[0]), nil
	case Chr:
		n, ok := asInt(args[0])
		if !ok {
			return nil, fmt.Errorf("chr over %T", args[0])
		}
		return string(rune(n)), nil
	case Ord:
		s, ok := args[0].(string)
		if !ok || len([]rune(s)) != 1 {
			return nil, fmt.Errorf("ord expects a single character, got %v", args[0])
		}
		return int64([]rune(s)[0]), nil
	case Abs:
		return foldAbs(args[0])
	case Round:
		return foldRound(args)
	case Len:
		return foldLen(args[0])
	case Divmod:
		if len(args) != 2 {
			return nil, fmt.Errorf("divmod expects exactly 2 arguments, got %d", len(args))
		}
		q, err := foldBinary(FloorDiv, args[0], args[1])
		if err != nil {
			return nil, err
		}
		r, err := foldBinary(Mod, args[0], args[1])
		if err != nil {
			return nil, err
		}
		return []any{q, r}, nil
	case Min, Max:
		return foldMinMax(o, args)
	case All, Any:
		return foldAllAny(o, args[0])
	case Sum:
		return foldSum(args, kwargs)
	case List, Tuple:
		return foldItems(args)
	case MakeRange:
		return foldRange(args)
	case Sqrt, Floor, Ceil:
		f, ok := asFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("%s over %T", o, args[0])
		}
		switch o {
		case Sqrt:
			return math.Sqrt(f), nil
		case Floor:
			return int64(math.Floor(f)), nil
		default:
			return int64(math.Ceil(f)), nil
		}
	default:
		return nil, fmt.Errorf("%s is not constant foldable", o)
	}
}

func foldBinary(o Op, a, b any) (any, error) {
	// String and sequence cases first, numeric towers second.
	if as, ok := a.(string); ok {
		switch o {
		case Add:
			if bs, ok := b.(string); ok {
				return as + bs, nil
			}
		case Mul:
			if n, ok := asInt(b); ok {
				return repeatString(as, n), nil
			}
		}
		return nil, fmt.Errorf("cannot fold %s over string and %T", o, b)
	}
	if al, ok := a.([]any); ok {
		switch o {
		case Add:
			if bl, ok := b.([]any); ok {
				out := make([]any, 0, len(al)+len(bl))
				out = append(out, al...)
				return append(out, bl...), nil
			}
		case Mul:
			if n, ok := asInt(b); ok {
				return repeatItems(al, n), nil
			}
		}
		return nil, fmt.Errorf("cannot fold %s over list and %T", o, b)
	}

	ai, aIsInt := asInt(a)
	bi, bIsInt := asInt(b)
	if aIsInt && bIsInt {
		return foldIntBinary(o, ai, bi)
	}

	af, aOK := asFloat(a)
	bf, bOK := asFloat(b)
	if aOK && bOK {
		return foldFloatBinary(o, af, bf)
	}

	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch o {
			case And:
				return ab && bb, nil
			case Or:
				return ab || bb, nil
			case Xor:
				return ab != bb, nil
			}
		}
	}

	return nil, fmt.Errorf("cannot fold %s over %T and %T", o, a, b)
}

func foldIntBinary(o Op, a, b int64) (any, error) {
	switch o {
	case Add:
		return a + b, nil
	case Sub:
		return a - b, nil
	case Mul:
		return a * b, nil
	case TrueDiv:
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return float64(a) / float64(b), nil
	case FloorDiv:
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return floorDiv(a, b), nil
	case Mod:
		if b == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		return a - floorDiv(a, b)*b, nil
	case Pow:
		if b < 0 {
			return math.Pow(float64(a), float64(b)), nil
		}
		return intPow(a, b), nil
	case LShift:
		return a << uint(b), nil
	case RShift:
		return a >> uint(b), nil
	case And:
		return a & b, nil
	case Or:
		return a | b, nil
	case Xor:
		return a ^ b, nil
	default:
		return nil, fmt.Errorf("cannot fold %s over integers", o)
	}
}

func foldFloatBinary(o Op, a, b float64) (any, error) {
	switch o {
	case Add:
		return a + b, nil
	case Sub:
		return a - b, nil
	case Mul:
		return a * b, nil
	case TrueDiv:
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return a / b, nil
	case FloorDiv:
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return math.Floor(a / b), nil
	case Mod:
		if b == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return m, nil
	case Pow:
		return math.Pow(a, b), nil
	default:
		return nil, fmt.Errorf("cannot fold %s over floats", o)
	}
}

func foldUnary(o Op, a any) (any, error) {
	switch o {
	case Not:
		return !truthy(a), nil
	case Pos, Index:
		if n, ok := asInt(a); ok {
			return n, nil
		}
		if o == Pos {
			if f, ok := asFloat(a); ok {
				return f, nil
			}
		}
	case Neg:
		if n, ok := asInt(a); ok {
			return -n, nil
		}
		if f, ok := asFloat(a); ok {
			return -f, nil
		}
	case Invert:
		if n, ok := asInt(a); ok {
			return ^n, nil
		}
	}
	return nil, fmt.Errorf("cannot fold %s over %T", o, a)
}

func foldGetItem(obj, key any) (any, error) {
	idx, isInt := asInt(key)
	switch seq := obj.(type) {
	case []any:
		if !isInt {
			return nil, fmt.Errorf("list index must be an integer, got %T", key)
		}
		i, ok := normalizeIndex(idx, int64(len(seq)))
		if !ok {
			return nil, fmt.Errorf("list index %d out of range", idx)
		}
		return seq[i], nil
	case string:
		if !isInt {
			return nil, fmt.Errorf("string index must be an integer, got %T", key)
		}
		runes := []rune(seq)
		i, ok := normalizeIndex(idx, int64(len(runes)))
		if !ok {
			return nil, fmt.Errorf("string index %d out of range", idx)
		}
		return string(runes[i]), nil
	case Range:
		if !isInt {
			return nil, fmt.Errorf("range index must be an integer, got %T", key)
		}
		values := seq.Values()
		i, ok := normalizeIndex(idx, int64(len(values)))
		if !ok {
			return nil, fmt.Errorf("range index %d out of range", idx)
		}
		return values[i], nil
	default:
		return nil, fmt.Errorf("cannot fold getitem over %T", obj)
	}
}

func foldInt(a any) (any, error) {
	switch v := a.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(math.Trunc(v)), nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer literal %q", v)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("cannot fold int over %T", a)
	}
}

func foldFloat(a any) (any, error) {
	if f, ok := asFloat(a); ok {
		return f, nil
	}
	if s, ok := a.(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float literal %q", s)
		}
		return f, nil
	}
	return nil, fmt.Errorf("cannot fold float over %T", a)
}

func foldStr(a any) string {
	switch v := a.(type) {
	case nil:
		return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case string:
		return v
	case Range:
		return fmt.Sprintf("range(%d, %d, %d)", v.Start, v.Stop, v.Step)
	default:
		return fmt.Sprint(v)
	}
}

func foldAbs(a any) (any, error) {
	if n, ok := asInt(a); ok {
		if n < 0 {
			return -n, nil
		}
		return n, nil
	}
	if f, ok := asFloat(a); ok {
		return math.Abs(f), nil
	}
	return nil, fmt.Errorf("cannot fold abs over %T", a)
}

func foldRound(args []any) (any, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, fmt.Errorf("round expects 1 or 2 arguments, got %d", len(args))
	}
	f, ok := asFloat(args[0])
	if !ok {
		return nil, fmt.Errorf("cannot fold round over %T", args[0])
	}
	if len(args) == 2 {
		digits, ok := asInt(args[1])
		if !ok {
			return nil, fmt.Errorf("round digits must be an integer, got %T", args[1])
		}
		scale := math.Pow(10, float64(digits))
		return math.RoundToEven(f*scale) / scale, nil
	}
	return int64(math.RoundToEven(f)), nil
}

func foldLen(a any) (any, error) {
	switch v := a.(type) {
	case string:
		return int64(len([]rune(v))), nil
	case []any:
		return int64(len(v)), nil
	case Range:
		return v.Len(), nil
	default:
		return nil, fmt.Errorf("cannot fold len over %T", a)
	}
}

func foldMinMax(o Op, args []any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%s expects at least 2 arguments, got %d", o, len(args))
	}
	best := args[0]
	for _, arg := range args[1:] {
		less, err := numericLess(arg, best)
		if err != nil {
			return nil, err
		}
		if (o == Min) == less {
			best = arg
		}
	}
	return best, nil
}

func numericLess(a, b any) (bool, error) {
	af, aOK := asFloat(a)
	bf, bOK := asFloat(b)
	if aOK && bOK {
		return af < bf, nil
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return as < bs, nil
		}
	}
	return false, fmt.Errorf("cannot order %T and %T", a, b)
}

func foldAllAny(o Op, a any) (any, error) {
	items, ok := a.([]any)
	if !ok {
		return nil, fmt.Errorf("cannot fold %s over %T", o, a)
	}
	for _, item := range items {
		if truthy(item) == (o == Any) {
			return o == Any, nil
		}
	}
	return o == All, nil
}

func foldSum(args []any, kwargs map[string]any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("sum expects exactly 1 positional argument, got %d", len(args))
	}
	items, ok := args[0].([]any)
	if !ok {
		return nil, fmt.Errorf("cannot fold sum over %T", args[0])
	}
	var acc any = int64(0)
	if start, ok := kwargs["start"]; ok {
		acc = start
	}
	for _, item := range items {
		next, err := foldBinary(Add, acc, item)
		if err != nil {
			return nil, err
		}
		acc = next
	}
	return acc, nil
}

func foldItems(args []any) (any, error) {
	switch len(args) {
	case 0:
		return []any{}, nil
	case 1:
		switch v := args[0].(type) {
		case []any:
			out := make([]any, len(v))
			copy(out, v)
			return out, nil
		case string:
			runes := []rune(v)
			out := make([]any, len(runes))
			for i, r := range runes {
				out[i] = string(r)
			}
			return out, nil
		case Range:
			values := v.Values()
			out := make([]any, len(values))
			for i, n := range values {
				out[i] = n
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("cannot fold sequence constructor over %d arguments", len(args))
}

func foldRange(args []any) (any, error) {
	nums := make([]int64, len(args))
	for i, arg := range args {
		n, ok := asInt(arg)
		if !ok {
			return nil, fmt.Errorf("range argument %d must be an integer, got %T", i, arg)
		}
		nums[i] = n
	}
	switch len(nums) {
	case 1:
		return Range{Start: 0, Stop: nums[0], Step: 1}, nil
	case 2:
		return Range{Start: nums[0], Stop: nums[1], Step: 1}, nil
	case 3:
		if nums[2] == 0 {
			return nil, fmt.Errorf("range step must not be zero")
		}
		return Range{Start: nums[0], Stop: nums[1], Step: nums[2]}, nil
	default:
		return nil, fmt.Errorf("range expects 1 to 3 arguments, got %d", len(nums))
	}
}

func truthy(a any) bool {
	switch v := a.(type) {
	case nil:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	case Range:
		return v.Len() > 0
	default:
		return true
	}
}

func asInt(a any) (int64, bool) {
	switch v := a.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

func asFloat(a any) (float64, bool) {
	switch v := a.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func intPow(n, m int64) int64 {
	var result int64 = 1
	for i := int64(0); i < m; i++ {
		result *= n
	}
	return result
}

func repeatString(s string, n int64) string {
	if n <= 0 {
		return ""
	}
	out := ""
	for i := int64(0); i < n; i++ {
		out += s
	}
	return out
}

func repeatItems(items []any, n int64) []any {
	if n <= 0 {
		return []any{}
	}
	out := make([]any, 0, int64(len(items))*n)
	for i := int64(0); i < n; i++ {
		out = append(out, items...)
	}
	return out
}

func normalizeIndex(i, length int64) (int64, bool) {
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, false
	}
	return i, true
}
