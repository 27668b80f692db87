// Package act defines the Action ADT the concurrency interpreter steps
// through, its observed ThreadAction/Lookahead counterparts, and the
// Value type flowing through MVars, CRefs and TVars.
package act

import (
	"fmt"
	"strings"
)

// Value is any payload an Action can carry or produce: the contents of
// an MVar/CRef/TVar, a Message payload, or a thrown exception. Adapted
// from a bytecode-VM's value ADT, generalized so the engine never has
// to know the shape of user data — it only clones and compares it.
type Value interface {
	isValue()
	AsBool() bool
	Clone() Value
	Cmp(other Value) (int, bool)
	String() string
}

// NoneValue is the unit value, returned by operations with no
// meaningful result (PutMVar, WriteCRef, Stop).
type NoneValue struct{}

func (NoneValue) isValue()          {}
func (NoneValue) AsBool() bool      { return false }
func (NoneValue) Clone() Value      { return NoneValue{} }
func (NoneValue) String() string    { return "None" }
func (NoneValue) Cmp(o Value) (int, bool) {
	_, ok := o.(NoneValue)
	if !ok {
		return 0, false
	}
	return 0, true
}

// BoolValue is a boolean payload.
type BoolValue bool

func (BoolValue) isValue()     {}
func (b BoolValue) AsBool() bool { return bool(b) }
func (b BoolValue) Clone() Value { return b }
func (b BoolValue) String() string {
	if b {
		return "True"
	}
	return "False"
}
func (b BoolValue) Cmp(o Value) (int, bool) {
	v, ok := o.(BoolValue)
	if !ok {
		return 0, false
	}
	if b == v {
		return 0, true
	}
	if !b && v {
		return -1, true
	}
	return 1, true
}

// IntValue is an integer payload.
type IntValue int64

func (IntValue) isValue()       {}
func (i IntValue) AsBool() bool { return i != 0 }
func (i IntValue) Clone() Value { return i }
func (i IntValue) String() string { return fmt.Sprintf("%d", int64(i)) }
func (i IntValue) Cmp(o Value) (int, bool) {
	v, ok := o.(IntValue)
	if !ok {
		return 0, false
	}
	switch {
	case i < v:
		return -1, true
	case i > v:
		return 1, true
	default:
		return 0, true
	}
}

// StrValue is a string payload.
type StrValue string

func (StrValue) isValue()       {}
func (s StrValue) AsBool() bool { return s != "" }
func (s StrValue) Clone() Value { return s }
func (s StrValue) String() string { return string(s) }
func (s StrValue) Cmp(o Value) (int, bool) {
	v, ok := o.(StrValue)
	if !ok {
		return 0, false
	}
	return strings.Compare(string(s), string(v)), true
}

// TupleValue is an ordered, fixed-arity grouping of values, used for
// Message payloads and multi-value returns.
type TupleValue []Value

func (TupleValue) isValue() {}
func (t TupleValue) AsBool() bool { return len(t) != 0 }
func (t TupleValue) Clone() Value {
	out := make(TupleValue, len(t))
	for i, v := range t {
		out[i] = v.Clone()
	}
	return out
}
func (t TupleValue) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
func (t TupleValue) Cmp(o Value) (int, bool) {
	v, ok := o.(TupleValue)
	if !ok || len(t) != len(v) {
		return 0, false
	}
	for i := range t {
		c, ok := t[i].Cmp(v[i])
		if !ok {
			return 0, false
		}
		if c != 0 {
			return c, true
		}
	}
	return 0, true
}

// ExceptionValue wraps a Go error so it can travel through Throw/Catching
// as an ordinary Value.
type ExceptionValue struct{ Err error }

func (ExceptionValue) isValue()     {}
func (ExceptionValue) AsBool() bool { return true }
func (e ExceptionValue) Clone() Value { return e }
func (e ExceptionValue) String() string {
	if e.Err == nil {
		return "<exception>"
	}
	return e.Err.Error()
}
func (e ExceptionValue) Cmp(o Value) (int, bool) {
	v, ok := o.(ExceptionValue)
	if !ok {
		return 0, false
	}
	if e.Err == v.Err {
		return 0, true
	}
	return 0, false
}
