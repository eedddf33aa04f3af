package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/tracelet/internal/graph"
	"github.com/funvibe/tracelet/internal/op"
)

func TestRecorderRefsAreSequential(t *testing.T) {
	rec := graph.NewRecorder()

	x := rec.AddInput("x")
	y := rec.AddInput("y")
	sum := rec.CreateNode(graph.CallFunction, op.Add, []graph.Operand{graph.Ref(x), graph.Ref(y)})

	assert.Equal(t, graph.NodeRef(1), x)
	assert.Equal(t, graph.NodeRef(2), y)
	assert.Equal(t, graph.NodeRef(3), sum)
	require.Len(t, rec.Nodes(), 3)
	assert.NotEqual(t, graph.Invalid, sum)
}

func TestRecorderTraceIdentity(t *testing.T) {
	a := graph.NewRecorder()
	b := graph.NewRecorder()
	assert.NotEqual(t, a.TraceID(), b.TraceID())
}

func TestDump(t *testing.T) {
	rec := graph.NewRecorder()
	x := rec.AddInput("x")
	rec.CreateNode(graph.CallFunction, op.Mul, []graph.Operand{graph.Ref(x), graph.Lit(int64(2))})

	want := "%1 = placeholder x()\n%2 = call_function mul(%1, 2)\n"
	assert.Equal(t, want, rec.Dump())
}

func TestOperandString(t *testing.T) {
	assert.Equal(t, "%3", graph.Ref(graph.NodeRef(3)).String())
	assert.Equal(t, "7", graph.Lit(int64(7)).String())

	kw := graph.Lit(true)
	kw.Name = "keepdim"
	assert.Equal(t, "keepdim=true", kw.String())
}
