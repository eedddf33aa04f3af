// Package graph defines the contract between the builtin-call evaluator
// and the deferred-computation graph it emits into. The evaluator only
// consumes the Builder interface; the Recorder implementation exists
// for tests and diagnostics.
package graph

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/funvibe/tracelet/internal/op"
)

// NodeRef identifies a node inside one trace's graph. Refs are opaque
// to the evaluator; it only threads them between operands and results.
type NodeRef int

// Invalid is the zero NodeRef; no real node ever has it.
const Invalid NodeRef = 0

// NodeKind distinguishes how a node entered the graph.
type NodeKind int

const (
	// CallFunction is a deferred call to a primitive operation.
	CallFunction NodeKind = iota
	// Placeholder is a captured graph input.
	Placeholder
)

func (k NodeKind) String() string {
	switch k {
	case CallFunction:
		return "call_function"
	case Placeholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

// Operand is one input to a node: either a reference to an earlier node
// or an inline literal. Name is set on keyword operands.
type Operand struct {
	Node  NodeRef
	Const any
	Name  string
}

// Ref wraps a node reference as an operand.
func Ref(n NodeRef) Operand { return Operand{Node: n} }

// Lit wraps a literal as an operand.
func Lit(v any) Operand { return Operand{Const: v} }

func (o Operand) String() string {
	var s string
	if o.Node != Invalid {
		s = fmt.Sprintf("%%%d", o.Node)
	} else {
		s = fmt.Sprint(o.Const)
	}
	if o.Name != "" {
		return o.Name + "=" + s
	}
	return s
}

// Builder is the graph side of the evaluator boundary. Implementations
// are owned by the driving tracer; CreateNode must be cheap and must
// never fail (an unrepresentable call is rejected before it gets here).
type Builder interface {
	CreateNode(kind NodeKind, o op.Op, operands []Operand) NodeRef
}

// Node is one recorded entry of a Recorder graph.
type Node struct {
	Ref      NodeRef
	Kind     NodeKind
	Op       op.Op
	Name     string
	Operands []Operand
}

func (n Node) String() string {
	parts := make([]string, len(n.Operands))
	for i, o := range n.Operands {
		parts[i] = o.String()
	}
	label := n.Op.String()
	if n.Kind == Placeholder {
		label = n.Name
	}
	return fmt.Sprintf("%%%d = %s %s(%s)", n.Ref, n.Kind, label, strings.Join(parts, ", "))
}

// Recorder is an in-memory Builder that keeps every node it creates.
// One Recorder corresponds to one trace session.
type Recorder struct {
	trace uuid.UUID
	nodes []Node
}

// NewRecorder starts an empty trace graph with a fresh session identity.
func NewRecorder() *Recorder {
	return &Recorder{trace: uuid.New()}
}

// TraceID returns the session identity of this graph.
func (r *Recorder) TraceID() uuid.UUID { return r.trace }

// CreateNode appends a call node and returns its reference.
func (r *Recorder) CreateNode(kind NodeKind, o op.Op, operands []Operand) NodeRef {
	ref := NodeRef(len(r.nodes) + 1)
	r.nodes = append(r.nodes, Node{Ref: ref, Kind: kind, Op: o, Operands: operands})
	return ref
}

// AddInput records a captured graph input and returns its reference.
func (r *Recorder) AddInput(name string) NodeRef {
	ref := NodeRef(len(r.nodes) + 1)
	r.nodes = append(r.nodes, Node{Ref: ref, Kind: Placeholder, Name: name})
	return ref
}

// Nodes returns the recorded nodes in creation order.
func (r *Recorder) Nodes() []Node { return r.nodes }

// Dump renders the recorded graph, one node per line.
func (r *Recorder) Dump() string {
	var b strings.Builder
	for _, n := range r.nodes {
		b.WriteString(n.String())
		b.WriteByte('\n')
	}
	return b.String()
}
