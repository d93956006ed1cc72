package lisp

// Env is a lexical environment: a frame of bindings plus a parent to search
// when a name is not bound locally.
type Env struct {
	vars   map[Symbol]Value
	parent *Env
}

// NewEnv returns an empty environment with the given parent. A nil parent
// makes a root environment.
func NewEnv(parent *Env) *Env {
	return &Env{vars: make(map[Symbol]Value), parent: parent}
}

func (e *Env) lookup(name Symbol) (Value, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *Env) define(name Symbol, v Value) {
	e.vars[name] = v
}

// set rebinds an existing name, searching the parent chain. It reports
// whether the name was found.
func (e *Env) set(name Symbol, v Value) bool {
	for env := e; env != nil; env = env.parent {
		if _, ok := env.vars[name]; ok {
			env.vars[name] = v
			return true
		}
	}
	return false
}
