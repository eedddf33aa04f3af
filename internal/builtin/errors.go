package builtin

import (
	"errors"
	"fmt"

	"github.com/funvibe/tracelet/internal/abstract"
	"github.com/funvibe/tracelet/internal/op"
)

// UnsupportedError is the expected escape: the evaluator could not
// represent this call and the driving tracer should fall back to
// untraced execution for it. It is never fatal to the trace.
type UnsupportedError struct {
	Op     op.Op
	Detail string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported builtin call %s: %s", e.Op, e.Detail)
}

func unsupportedf(o op.Op, format string, args ...any) *UnsupportedError {
	return &UnsupportedError{Op: o, Detail: fmt.Sprintf(format, args...)}
}

// IsUnsupported reports whether err is an escape rather than a defect.
func IsUnsupported(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}

// InvariantError reports a defect in the dispatch tables themselves.
// Unlike an escape it must not be swallowed by the caller.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return "dispatch table invariant violated: " + e.Detail
}

func invariantf(format string, args ...any) *InvariantError {
	return &InvariantError{Detail: fmt.Sprintf(format, args...)}
}

// outcomeState tags the result of one dispatch strategy.
type outcomeState int

const (
	stateNotApplicable outcomeState = iota
	stateApplied
	stateFailed
)

// outcome is the explicit result of a handler: it either applied and
// produced a value, declined so the next strategy may run, or failed.
// Handlers never signal through panics.
type outcome struct {
	state outcomeState
	value abstract.Value
	err   error
}

// pass declines without consuming the call.
var pass = outcome{state: stateNotApplicable}

func apply(v abstract.Value) outcome {
	return outcome{state: stateApplied, value: v}
}

func escape(err error) outcome {
	return outcome{state: stateFailed, err: err}
}
