package builtin

import "github.com/funvibe/tracelet/internal/op"

// buildHandlers assembles the static named-handler registry. Every
// entry declares its accepted arity up front; the decision sequence
// checks it before the handler runs, so handlers may assume it.
func buildHandlers() (map[op.Op]handlerSpec, error) {
	specs := []struct {
		op   op.Op
		spec handlerSpec
	}{
		{op.Min, handlerSpec{name: "min_max", fn: callMinMax, minArgs: 1, maxArgs: -1}},
		{op.Max, handlerSpec{name: "min_max", fn: callMinMax, minArgs: 1, maxArgs: -1}},
		{op.MakeRange, handlerSpec{name: "range", fn: callRange, minArgs: 1, maxArgs: 3}},
		{op.MakeSlice, handlerSpec{name: "slice", fn: callSlice, minArgs: 1, maxArgs: 3}},
		{op.Iter, handlerSpec{name: "sequence_build", fn: callSequenceBuild, minArgs: 1, maxArgs: 1}},
		{op.List, handlerSpec{name: "sequence_build", fn: callSequenceBuild, minArgs: 0, maxArgs: 1}},
		{op.Tuple, handlerSpec{name: "sequence_build", fn: callSequenceBuild, minArgs: 0, maxArgs: 1}},
		{op.Dict, handlerSpec{name: "dict", fn: callDict, minArgs: 0, maxArgs: 1, allowKw: true}},
		{op.Zip, handlerSpec{name: "zip", fn: callZip, minArgs: 0, maxArgs: -1}},
		{op.Enumerate, handlerSpec{name: "enumerate", fn: callEnumerate, minArgs: 1, maxArgs: 2}},
		{op.Len, handlerSpec{name: "len", fn: callLen, minArgs: 1, maxArgs: 1}},
		{op.IAdd, handlerSpec{name: "iadd", fn: callIAdd, minArgs: 2, maxArgs: 2}},
		{op.GetItem, handlerSpec{name: "getitem", fn: callGetItem, minArgs: 2, maxArgs: 2}},
		{op.IsInstance, handlerSpec{name: "isinstance", fn: callIsInstance, minArgs: 2, maxArgs: 2}},
		{op.Next, handlerSpec{name: "next", fn: callNext, minArgs: 1, maxArgs: 1}},
		{op.HasAttr, handlerSpec{name: "hasattr", fn: callHasAttr, minArgs: 2, maxArgs: 2}},
		{op.Map, handlerSpec{name: "map", fn: callMap, minArgs: 2, maxArgs: -1}},
		{op.Sum, handlerSpec{name: "sum", fn: callSum, minArgs: 1, maxArgs: 2, allowKw: true}},
		{op.Reduce, handlerSpec{name: "reduce", fn: callReduce, minArgs: 2, maxArgs: 3}},
		{op.GetAttr, handlerSpec{name: "getattr", fn: callGetAttr, minArgs: 2, maxArgs: 3}},
		{op.SetAttr, handlerSpec{name: "setattr", fn: callSetAttr, minArgs: 3, maxArgs: 3}},
		{op.Type, handlerSpec{name: "type", fn: callType, minArgs: 1, maxArgs: 1}},
		{op.Reversed, handlerSpec{name: "reversed", fn: callReversed, minArgs: 1, maxArgs: 1}},
		{op.Chain, handlerSpec{name: "chain", fn: callChain, minArgs: 0, maxArgs: -1}},
		{op.ISlice, handlerSpec{name: "islice", fn: callISlice, minArgs: 2, maxArgs: 4}},
		{op.Neg, handlerSpec{name: "neg", fn: callNeg, minArgs: 1, maxArgs: 1}},
		{op.And, handlerSpec{name: "and_", fn: callAnd, minArgs: 2, maxArgs: 2}},
		{op.ID, handlerSpec{name: "id", fn: callID, minArgs: 1, maxArgs: 1}},

		{op.Eq, handlerSpec{name: "comparison", fn: callComparison, minArgs: 2, maxArgs: 2}},
		{op.Ne, handlerSpec{name: "comparison", fn: callComparison, minArgs: 2, maxArgs: 2}},
		{op.Lt, handlerSpec{name: "comparison", fn: callComparison, minArgs: 2, maxArgs: 2}},
		{op.Le, handlerSpec{name: "comparison", fn: callComparison, minArgs: 2, maxArgs: 2}},
		{op.Gt, handlerSpec{name: "comparison", fn: callComparison, minArgs: 2, maxArgs: 2}},
		{op.Is, handlerSpec{name: "comparison", fn: callComparison, minArgs: 2, maxArgs: 2}},
		{op.IsNot, handlerSpec{name: "comparison", fn: callComparison, minArgs: 2, maxArgs: 2}},
	}

	handlers := make(map[op.Op]handlerSpec, len(specs))
	for _, s := range specs {
		if _, dup := handlers[s.op]; dup {
			return nil, invariantf("duplicate handler registration for %s", s.op)
		}
		handlers[s.op] = s.spec
	}
	return handlers, nil
}
