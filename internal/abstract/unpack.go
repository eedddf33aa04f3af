package abstract

import "github.com/funvibe/tracelet/internal/op"

// Unpack returns the statically known, finite item sequence behind v,
// or false when v has no such unpacking. Unpacking never mutates: the
// returned slice is freshly allocated.
func Unpack(v Value) ([]Value, bool) {
	switch val := v.(type) {
	case *Sequence:
		items := make([]Value, len(val.Items))
		copy(items, val.Items)
		return items, true
	case *Mapping:
		keys := make([]Value, len(val.Entries))
		for i, e := range val.Entries {
			keys[i] = e.Key
		}
		return keys, true
	case *Constant:
		switch raw := val.Value.(type) {
		case string:
			runes := []rune(raw)
			items := make([]Value, len(runes))
			for i, r := range runes {
				items[i] = Const(string(r))
			}
			return items, true
		case []any:
			items := make([]Value, len(raw))
			for i, item := range raw {
				items[i] = Const(item)
			}
			return items, true
		case op.Range:
			values := raw.Values()
			items := make([]Value, len(values))
			for i, n := range values {
				items[i] = Const(n)
			}
			return items, true
		}
	}
	return nil, false
}

// CanUnpack reports whether Unpack would succeed for v.
func CanUnpack(v Value) bool {
	switch val := v.(type) {
	case *Sequence, *Mapping:
		return true
	case *Constant:
		switch val.Value.(type) {
		case string, []any, op.Range:
			return true
		}
	}
	return false
}
