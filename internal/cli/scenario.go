package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/funvibe/tracelet/internal/abstract"
	"github.com/funvibe/tracelet/internal/builtin"
	"github.com/funvibe/tracelet/internal/config"
	"github.com/funvibe/tracelet/internal/graph"
	"github.com/funvibe/tracelet/internal/guard"
	"github.com/funvibe/tracelet/internal/op"
)

// Scenario is one inspector input file: evaluator options plus an
// ordered list of builtin calls over literal values.
type Scenario struct {
	Options *config.Options `yaml:"options"`
	Calls   []CallSpec      `yaml:"calls"`
}

// CallSpec is one builtin call of a scenario.
type CallSpec struct {
	Op     string               `yaml:"op"`
	Args   []ValueSpec          `yaml:"args"`
	Kwargs map[string]ValueSpec `yaml:"kwargs"`
}

// ValueSpec describes one abstract argument. Exactly one of the
// variant fields should be set; None stands for a null constant, which
// YAML cannot distinguish from an absent field.
type ValueSpec struct {
	Const   any          `yaml:"const"`
	None    bool         `yaml:"none"`
	List    []ValueSpec  `yaml:"list"`
	Tuple   []ValueSpec  `yaml:"tuple"`
	Tensor  *TensorSpec  `yaml:"tensor"`
	Dynamic *DynamicSpec `yaml:"dynamic"`
	Local   string       `yaml:"local"`
}

// TensorSpec wraps a captured tensor input; Unspec makes it a scalar
// wrapper carrying the given raw value.
type TensorSpec struct {
	Input  string `yaml:"input"`
	Dtype  string `yaml:"dtype"`
	Unspec any    `yaml:"unspec"`
}

// DynamicSpec wraps a captured symbolic numeric input.
type DynamicSpec struct {
	Input string `yaml:"input"`
	Hint  any    `yaml:"hint"`
	Float bool   `yaml:"float"`
}

// LoadScenario reads and parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return &sc, nil
}

// scene owns one replay session: the recorder graph, the evaluator and
// the placeholder inputs created for tensor/dynamic value specs.
type scene struct {
	recorder  *graph.Recorder
	evaluator *builtin.Evaluator
	inputs    map[string]graph.NodeRef
}

func newScene(opts config.Options) *scene {
	rec := graph.NewRecorder()
	return &scene{
		recorder:  rec,
		evaluator: builtin.New(rec, opts),
		inputs:    map[string]graph.NodeRef{},
	}
}

// input resolves a named placeholder, creating and registering it on
// first use.
func (s *scene) input(name string) (graph.NodeRef, guard.Source) {
	src := guard.LocalSource{Name: name}
	if ref, ok := s.inputs[name]; ok {
		return ref, src
	}
	ref := s.recorder.AddInput(name)
	s.inputs[name] = ref
	s.evaluator.AddInput(builtin.GraphInput{Name: name, Node: ref, Source: src})
	return ref, src
}

// build turns a value spec into an abstract value.
func (s *scene) build(spec ValueSpec) (abstract.Value, error) {
	set := 0
	for _, on := range []bool{
		spec.Const != nil, spec.None, spec.List != nil, spec.Tuple != nil,
		spec.Tensor != nil, spec.Dynamic != nil,
	} {
		if on {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("value spec must set exactly one variant field")
	}

	var v abstract.Value
	switch {
	case spec.None:
		v = abstract.Const(nil)
	case spec.Const != nil:
		v = abstract.Const(normalizeLiteral(spec.Const))
	case spec.List != nil:
		items, err := s.buildAll(spec.List)
		if err != nil {
			return nil, err
		}
		v = abstract.NewSequence(abstract.ListSeq, items)
	case spec.Tuple != nil:
		items, err := s.buildAll(spec.Tuple)
		if err != nil {
			return nil, err
		}
		v = abstract.NewSequence(abstract.TupleSeq, items)
	case spec.Tensor != nil:
		if spec.Tensor.Input == "" {
			return nil, fmt.Errorf("tensor spec needs an input name")
		}
		ref, src := s.input(spec.Tensor.Input)
		t := abstract.NewTensor(abstract.DType(spec.Tensor.Dtype), ref)
		if spec.Tensor.Unspec != nil {
			t.Unspec = &abstract.UnspecInfo{Raw: normalizeLiteral(spec.Tensor.Unspec)}
		}
		v = t.WithSource(src)
	case spec.Dynamic != nil:
		if spec.Dynamic.Input == "" {
			return nil, fmt.Errorf("dynamic spec needs an input name")
		}
		ref, src := s.input(spec.Dynamic.Input)
		numeric := abstract.NumInt
		if spec.Dynamic.Float {
			numeric = abstract.NumFloat
		}
		d := abstract.NewDynamicShape(ref, numeric, normalizeLiteral(spec.Dynamic.Hint))
		v = d.WithSource(src)
	}

	if spec.Local != "" {
		v = v.WithSource(guard.LocalSource{Name: spec.Local})
	}
	return v, nil
}

func (s *scene) buildAll(specs []ValueSpec) ([]abstract.Value, error) {
	out := make([]abstract.Value, len(specs))
	for i, spec := range specs {
		v, err := s.build(spec)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// run evaluates one call spec.
func (s *scene) run(spec CallSpec) (abstract.Value, error) {
	o, ok := op.Parse(spec.Op)
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", spec.Op)
	}
	args, err := s.buildAll(spec.Args)
	if err != nil {
		return nil, err
	}
	var kwargs map[string]abstract.Value
	if len(spec.Kwargs) > 0 {
		kwargs = make(map[string]abstract.Value, len(spec.Kwargs))
		for name, vs := range spec.Kwargs {
			v, err := s.build(vs)
			if err != nil {
				return nil, err
			}
			kwargs[name] = v
		}
	}
	return s.evaluator.CallBuiltin(o, args, kwargs)
}

// normalizeLiteral maps YAML scalars onto the raw value types the
// folding layer computes over.
func normalizeLiteral(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case float32:
		return float64(n)
	case []any:
		out := make([]any, len(n))
		for i, item := range n {
			out[i] = normalizeLiteral(item)
		}
		return out
	default:
		return v
	}
}
