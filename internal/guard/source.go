// Package guard tracks where traced values came from and which runtime
// preconditions must be revalidated before a compiled trace can be
// reused.
package guard

import "fmt"

// Source is the provenance of a traced value: a path from one of the
// trace's observed inputs to the value. Sources are compared by their
// canonical reference string.
type Source interface {
	// Ref renders the canonical access path, e.g. "L['x'].weight".
	Ref() string
	// Constant reports whether the source is known to always produce
	// the same value, making guards on it unnecessary.
	Constant() bool
}

// LocalSource refers to a local variable of the traced frame.
type LocalSource struct {
	Name string
}

func (s LocalSource) Ref() string    { return fmt.Sprintf("L[%q]", s.Name) }
func (s LocalSource) Constant() bool { return false }

// GlobalSource refers to a module-level name of the traced frame.
type GlobalSource struct {
	Name string
}

func (s GlobalSource) Ref() string    { return fmt.Sprintf("G[%q]", s.Name) }
func (s GlobalSource) Constant() bool { return false }

// AttrSource refers to an attribute read off another source.
type AttrSource struct {
	Base Source
	Name string
}

func (s AttrSource) Ref() string    { return s.Base.Ref() + "." + s.Name }
func (s AttrSource) Constant() bool { return s.Base.Constant() }

// ItemSource refers to a subscript read off another source.
type ItemSource struct {
	Base  Source
	Index string
}

func (s ItemSource) Ref() string    { return fmt.Sprintf("%s[%s]", s.Base.Ref(), s.Index) }
func (s ItemSource) Constant() bool { return s.Base.Constant() }

// TypeSource refers to the type of another source's value.
type TypeSource struct {
	Base Source
}

func (s TypeSource) Ref() string    { return "type(" + s.Base.Ref() + ")" }
func (s TypeSource) Constant() bool { return s.Base.Constant() }

// ConstSource marks a value materialized from a literal; guards against
// it are pointless and are not installed.
type ConstSource struct {
	Literal string
}

func (s ConstSource) Ref() string    { return s.Literal }
func (s ConstSource) Constant() bool { return true }
