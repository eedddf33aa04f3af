package abstract

import (
	"strings"

	"github.com/google/uuid"

	"github.com/funvibe/tracelet/internal/guard"
)

// Mutation is an exclusive-ownership marker for container storage. A
// container created inside the current trace carries a marker and may
// be mutated in place; containers observed from outside carry none and
// every mutation must produce a fresh value. Two values sharing one
// marker are the same storage on purpose; everything else is
// copy-on-write.
type Mutation struct {
	id uuid.UUID
}

// NewMutation mints a marker proving exclusive ownership.
func NewMutation() *Mutation { return &Mutation{id: uuid.New()} }

// SeqKind distinguishes list-like from tuple-like sequences.
type SeqKind int

const (
	ListSeq SeqKind = iota
	TupleSeq
)

func (k SeqKind) String() string {
	if k == TupleSeq {
		return "tuple"
	}
	return "list"
}

// Sequence is an ordered container of traced values.
type Sequence struct {
	origin
	SeqKind  SeqKind
	Items    []Value
	Mutation *Mutation
}

// NewSequence builds a trace-local sequence with exclusive storage.
func NewSequence(kind SeqKind, items []Value) *Sequence {
	return &Sequence{SeqKind: kind, Items: items, Mutation: NewMutation()}
}

func (s *Sequence) Kind() Kind { return KindSequence }

func (s *Sequence) Inspect() string {
	parts := make([]string, len(s.Items))
	for i, item := range s.Items {
		parts[i] = item.Inspect()
	}
	if s.SeqKind == TupleSeq {
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Len reports the number of items.
func (s *Sequence) Len() int { return len(s.Items) }

func (s *Sequence) WithGuards(gs guard.Set) Value {
	cp := *s
	cp.origin = s.merged(gs)
	return &cp
}

func (s *Sequence) WithSource(src guard.Source) Value {
	cp := *s
	cp.origin = s.resourced(src)
	return &cp
}

// Entry is one mapping entry. Keys must be constants.
type Entry struct {
	Key Value
	Val Value
}

// Mapping is an ordered map of traced values keyed by constants.
type Mapping struct {
	origin
	Entries  []Entry
	Mutation *Mutation
}

// NewMapping builds a trace-local mapping with exclusive storage.
func NewMapping(entries []Entry) *Mapping {
	return &Mapping{Entries: entries, Mutation: NewMutation()}
}

func (m *Mapping) Kind() Kind { return KindMapping }

func (m *Mapping) Inspect() string {
	parts := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		parts[i] = e.Key.Inspect() + ": " + e.Val.Inspect()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Len reports the number of entries.
func (m *Mapping) Len() int { return len(m.Entries) }

// Get looks up the value stored under a raw constant key.
func (m *Mapping) Get(key any) (Value, bool) {
	for _, e := range m.Entries {
		if raw, ok := ConstValue(e.Key); ok && raw == key {
			return e.Val, true
		}
	}
	return nil, false
}

// CloneLocal copies the mapping into fresh exclusively-owned storage.
func (m *Mapping) CloneLocal() *Mapping {
	entries := make([]Entry, len(m.Entries))
	copy(entries, m.Entries)
	return &Mapping{origin: m.origin, Entries: entries, Mutation: NewMutation()}
}

func (m *Mapping) WithGuards(gs guard.Set) Value {
	cp := *m
	cp.origin = m.merged(gs)
	return &cp
}

func (m *Mapping) WithSource(src guard.Source) Value {
	cp := *m
	cp.origin = m.resourced(src)
	return &cp
}
