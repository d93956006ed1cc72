// Package lisp implements the small Lisp hosted by repld shells: a reader, an
// interpreter with proper tail calls, and a session type satisfying the
// shell's evaluator contract with streaming output and interruption.
package lisp

import (
	"sort"
	"strconv"
	"strings"
)

// Value is a Lisp value. The concrete types are float64, bool, string,
// Symbol, []Value (a list), *Builtin, *Lambda and Unspecified.
type Value any

// Symbol is a Lisp symbol.
type Symbol string

// Unspecified is the value of forms that exist for their side effects, such
// as define and display. The REPL does not print it.
type Unspecified struct{}

// Builtin is a function implemented in Go.
type Builtin struct {
	Name string
	Fn   func(m *machine, args []Value) (Value, error)
}

// Lambda is a function defined with the lambda special form (or the defun
// sugar of define). It closes over the environment it was created in.
type Lambda struct {
	Name   string // for printing; "" when anonymous
	Params []Symbol
	Body   []Value
	Env    *Env
}

// Interp is one interpreter: a root environment of builtins shared by all
// sessions created from it.
type Interp struct {
	root *Env
}

// New returns an interpreter with the standard builtins.
func New() *Interp {
	root := NewEnv(nil)
	for _, b := range builtins {
		root.define(Symbol(b.Name), b)
	}
	return &Interp{root: root}
}

// Builtins returns the names of all builtin functions, sorted. It backs
// completion in the language server.
func Builtins() []string {
	names := make([]string, len(builtins))
	for i, b := range builtins {
		names[i] = b.Name
	}
	sort.Strings(names)
	return names
}

// Repr returns the machine-readable form of v: strings are quoted the way
// the reader accepts them.
func Repr(v Value) string {
	var sb strings.Builder
	writeValue(&sb, v, true)
	return sb.String()
}

// ToString returns the human-readable form of v: strings are raw. This is
// what the display builtin prints.
func ToString(v Value) string {
	var sb strings.Builder
	writeValue(&sb, v, false)
	return sb.String()
}

func writeValue(sb *strings.Builder, v Value, quoted bool) {
	switch v := v.(type) {
	case float64:
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	case bool:
		if v {
			sb.WriteString("#t")
		} else {
			sb.WriteString("#f")
		}
	case string:
		if quoted {
			sb.WriteString(strconv.Quote(v))
		} else {
			sb.WriteString(v)
		}
	case Symbol:
		sb.WriteString(string(v))
	case []Value:
		sb.WriteByte('(')
		for i, elem := range v {
			if i > 0 {
				sb.WriteByte(' ')
			}
			writeValue(sb, elem, quoted)
		}
		sb.WriteByte(')')
	case *Builtin:
		sb.WriteString("#<builtin " + v.Name + ">")
	case *Lambda:
		if v.Name == "" {
			sb.WriteString("#<procedure>")
		} else {
			sb.WriteString("#<procedure " + v.Name + ">")
		}
	case Unspecified:
		sb.WriteString("#<unspecified>")
	default:
		sb.WriteString("#<unknown>")
	}
}

// Only #f is false; every other value, including 0 and the empty list, is
// true.
func truthy(v Value) bool {
	b, ok := v.(bool)
	return !ok || b
}
