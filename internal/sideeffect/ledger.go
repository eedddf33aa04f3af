// Package sideeffect virtualizes attribute mutation during tracing:
// writes land in a per-trace ledger instead of the real object, and
// reads consult the ledger before the object's own fields.
package sideeffect

import (
	"github.com/google/uuid"

	"github.com/funvibe/tracelet/internal/abstract"
)

// Ledger is the attribute-mutation record of one trace. It is owned
// exclusively by that trace and discarded (or committed by the tracer)
// when the trace completes.
type Ledger struct {
	tracked map[uuid.UUID]bool
	writes  map[uuid.UUID]map[string]abstract.Value
}

// NewLedger starts an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		tracked: map[uuid.UUID]bool{},
		writes:  map[uuid.UUID]map[string]abstract.Value{},
	}
}

// Track registers an object as attribute-mutation virtualized. Only
// tracked objects accept recorded writes.
func (l *Ledger) Track(id uuid.UUID) {
	l.tracked[id] = true
}

// IsTracked reports whether the object's mutations are virtualized.
func (l *Ledger) IsTracked(id uuid.UUID) bool {
	return l.tracked[id]
}

// RecordWrite stores the most recent write to (object, field).
func (l *Ledger) RecordWrite(id uuid.UUID, field string, v abstract.Value) {
	m, ok := l.writes[id]
	if !ok {
		m = map[string]abstract.Value{}
		l.writes[id] = m
	}
	m[field] = v
}

// ReadPending returns the most recently written value for (object,
// field), if any write happened during this trace.
func (l *Ledger) ReadPending(id uuid.UUID, field string) (abstract.Value, bool) {
	v, ok := l.writes[id][field]
	return v, ok
}

// Discard drops every recorded write, keeping tracking registrations.
func (l *Ledger) Discard() {
	l.writes = map[uuid.UUID]map[string]abstract.Value{}
}
