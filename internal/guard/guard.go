package guard

import (
	"fmt"
	"sort"
)

// Kind classifies the runtime predicate a guard re-checks.
type Kind int

const (
	// ListLength re-checks that a sequence still has the recorded length.
	ListLength Kind = iota
	// TypeMatch re-checks that a value still has the recorded type.
	TypeMatch
	// ValueMatch re-checks that a value still equals the recorded value.
	ValueMatch
	// HasAttr re-checks that an attribute is still present (or absent).
	HasAttr
)

func (k Kind) String() string {
	switch k {
	case ListLength:
		return "list_length"
	case TypeMatch:
		return "type_match"
	case ValueMatch:
		return "value_match"
	case HasAttr:
		return "hasattr"
	default:
		return "unknown"
	}
}

// Guard is one recorded precondition over a provenance reference. Two
// guards are the same precondition iff their keys are equal.
type Guard struct {
	Source Source
	Kind   Kind
	// Detail carries the predicate payload, e.g. the recorded length.
	Detail string
}

// New builds a guard over src. Callers are expected to skip constant
// sources; Set.Add enforces it as a second line of defense.
func New(src Source, kind Kind, detail string) Guard {
	return Guard{Source: src, Kind: kind, Detail: detail}
}

func (g Guard) key() string {
	return fmt.Sprintf("%s|%s|%s", g.Source.Ref(), g.Kind, g.Detail)
}

func (g Guard) String() string {
	if g.Detail == "" {
		return fmt.Sprintf("%s(%s)", g.Kind, g.Source.Ref())
	}
	return fmt.Sprintf("%s(%s, %s)", g.Kind, g.Source.Ref(), g.Detail)
}

// Set is a deduplicated collection of guards. The zero value is an
// empty set; all operations are non-destructive and return new sets, so
// a set attached to a value never shrinks or changes underneath it.
type Set struct {
	m map[string]Guard
}

// NewSet builds a set from the given guards.
func NewSet(guards ...Guard) Set {
	s := Set{}
	for _, g := range guards {
		s = s.Add(g)
	}
	return s
}

// Len reports the number of distinct guards.
func (s Set) Len() int { return len(s.m) }

// Contains reports whether an equal guard is already recorded.
func (s Set) Contains(g Guard) bool {
	_, ok := s.m[g.key()]
	return ok
}

// Add returns a set extended with g. Guards over constant sources are
// dropped: they can never be invalidated.
func (s Set) Add(g Guard) Set {
	if g.Source == nil || g.Source.Constant() {
		return s
	}
	if s.Contains(g) {
		return s
	}
	out := make(map[string]Guard, len(s.m)+1)
	for k, v := range s.m {
		out[k] = v
	}
	out[g.key()] = g
	return Set{m: out}
}

// Union returns the set union of s and other.
func (s Set) Union(other Set) Set {
	if other.Len() == 0 {
		return s
	}
	if s.Len() == 0 {
		return other
	}
	out := make(map[string]Guard, len(s.m)+len(other.m))
	for k, v := range s.m {
		out[k] = v
	}
	for k, v := range other.m {
		out[k] = v
	}
	return Set{m: out}
}

// Superset reports whether s contains every guard in other.
func (s Set) Superset(other Set) bool {
	for k := range other.m {
		if _, ok := s.m[k]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the guards in deterministic key order.
func (s Set) Sorted() []Guard {
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Guard, len(keys))
	for i, k := range keys {
		out[i] = s.m[k]
	}
	return out
}

// Union merges any number of sets.
func Union(sets ...Set) Set {
	var out Set
	for _, s := range sets {
		out = out.Union(s)
	}
	return out
}
