package lisp

import (
	"errors"
	"fmt"
)

// ErrInterrupted is returned from evaluation when the session's interrupt is
// raised.
var ErrInterrupted = errors.New("interrupted")

// machine carries the dynamic context of one evaluation: the channel closed
// to interrupt it and the sink that streams display output.
type machine struct {
	intr <-chan struct{}
	emit func(string)
}

func (m *machine) interrupted() bool {
	select {
	case <-m.intr:
		return true
	default:
		return false
	}
}

// eval evaluates form in env. Tail calls are iterative: a call in tail
// position rebinds form and env and loops, so unbounded recursion like
// (define (loop) (loop)) runs in constant stack and stays interruptible.
func (m *machine) eval(form Value, env *Env) (Value, error) {
	for {
		if m.interrupted() {
			return nil, ErrInterrupted
		}
		switch f := form.(type) {
		case Symbol:
			v, ok := env.lookup(f)
			if !ok {
				return nil, fmt.Errorf("unbound symbol %s", f)
			}
			return v, nil
		case []Value:
			if len(f) == 0 {
				return nil, errors.New("cannot evaluate ()")
			}
		default:
			return form, nil
		}

		list := form.([]Value)
		if sym, ok := list[0].(Symbol); ok {
			switch sym {
			case "quote":
				if len(list) != 2 {
					return nil, errors.New("quote wants 1 argument")
				}
				return list[1], nil
			case "if":
				if len(list) < 3 || len(list) > 4 {
					return nil, errors.New("if wants 2 or 3 arguments")
				}
				cond, err := m.eval(list[1], env)
				if err != nil {
					return nil, err
				}
				if truthy(cond) {
					form = list[2]
				} else if len(list) == 4 {
					form = list[3]
				} else {
					return Unspecified{}, nil
				}
				continue
			case "define":
				return m.evalDefine(list, env)
			case "set!":
				return m.evalSet(list, env)
			case "lambda":
				if len(list) < 3 {
					return nil, errors.New("lambda wants a parameter list and a body")
				}
				paramForms, ok := list[1].([]Value)
				if !ok {
					return nil, errors.New("lambda wants a parameter list")
				}
				params, err := paramList(paramForms)
				if err != nil {
					return nil, err
				}
				return &Lambda{Params: params, Body: list[2:], Env: env}, nil
			case "begin":
				if len(list) == 1 {
					return Unspecified{}, nil
				}
				for _, sub := range list[1 : len(list)-1] {
					if _, err := m.eval(sub, env); err != nil {
						return nil, err
					}
				}
				form = list[len(list)-1]
				continue
			case "let":
				newEnv, err := m.evalLetBindings(list, env)
				if err != nil {
					return nil, err
				}
				for _, sub := range list[2 : len(list)-1] {
					if _, err := m.eval(sub, newEnv); err != nil {
						return nil, err
					}
				}
				form = list[len(list)-1]
				env = newEnv
				continue
			case "and":
				if len(list) == 1 {
					return true, nil
				}
				for _, sub := range list[1 : len(list)-1] {
					v, err := m.eval(sub, env)
					if err != nil {
						return nil, err
					}
					if !truthy(v) {
						return v, nil
					}
				}
				form = list[len(list)-1]
				continue
			case "or":
				if len(list) == 1 {
					return false, nil
				}
				for _, sub := range list[1 : len(list)-1] {
					v, err := m.eval(sub, env)
					if err != nil {
						return nil, err
					}
					if truthy(v) {
						return v, nil
					}
				}
				form = list[len(list)-1]
				continue
			}
		}

		fn, err := m.eval(list[0], env)
		if err != nil {
			return nil, err
		}
		args := make([]Value, len(list)-1)
		for i, argForm := range list[1:] {
			arg, err := m.eval(argForm, env)
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		switch fn := fn.(type) {
		case *Builtin:
			return fn.Fn(m, args)
		case *Lambda:
			if len(args) != len(fn.Params) {
				return nil, fmt.Errorf(
					"%s wants %d arguments, got %d",
					procName(fn), len(fn.Params), len(args))
			}
			newEnv := NewEnv(fn.Env)
			for i, param := range fn.Params {
				newEnv.define(param, args[i])
			}
			if len(fn.Body) == 0 {
				return Unspecified{}, nil
			}
			for _, sub := range fn.Body[:len(fn.Body)-1] {
				if _, err := m.eval(sub, newEnv); err != nil {
					return nil, err
				}
			}
			form = fn.Body[len(fn.Body)-1]
			env = newEnv
			continue
		default:
			return nil, fmt.Errorf("cannot apply %s", Repr(fn))
		}
	}
}

// evalDefine handles (define name expr) and the procedure shorthand
// (define (name params...) body...).
func (m *machine) evalDefine(list []Value, env *Env) (Value, error) {
	if len(list) < 2 {
		return nil, errors.New("define wants a name")
	}
	switch target := list[1].(type) {
	case Symbol:
		if len(list) != 3 {
			return nil, errors.New("define wants a single value")
		}
		v, err := m.eval(list[2], env)
		if err != nil {
			return nil, err
		}
		if lam, ok := v.(*Lambda); ok && lam.Name == "" {
			lam.Name = string(target)
		}
		env.define(target, v)
		return Unspecified{}, nil
	case []Value:
		if len(target) == 0 {
			return nil, errors.New("define wants a name")
		}
		name, ok := target[0].(Symbol)
		if !ok {
			return nil, errors.New("define wants a symbol name")
		}
		params, err := paramList(target[1:])
		if err != nil {
			return nil, err
		}
		env.define(name, &Lambda{
			Name: string(name), Params: params, Body: list[2:], Env: env})
		return Unspecified{}, nil
	default:
		return nil, errors.New("define wants a symbol or parameter list")
	}
}

func (m *machine) evalSet(list []Value, env *Env) (Value, error) {
	if len(list) != 3 {
		return nil, errors.New("set! wants a symbol and a value")
	}
	name, ok := list[1].(Symbol)
	if !ok {
		return nil, errors.New("set! wants a symbol")
	}
	v, err := m.eval(list[2], env)
	if err != nil {
		return nil, err
	}
	if !env.set(name, v) {
		return nil, fmt.Errorf("unbound symbol %s", name)
	}
	return Unspecified{}, nil
}

// evalLetBindings evaluates the binding list of (let ((name expr) ...)
// body...) in env and returns a child environment with the bindings.
func (m *machine) evalLetBindings(list []Value, env *Env) (*Env, error) {
	if len(list) < 3 {
		return nil, errors.New("let wants bindings and a body")
	}
	bindings, ok := list[1].([]Value)
	if !ok {
		return nil, errors.New("let wants a binding list")
	}
	newEnv := NewEnv(env)
	for _, b := range bindings {
		pair, ok := b.([]Value)
		if !ok || len(pair) != 2 {
			return nil, errors.New("let binding wants (name expr)")
		}
		name, ok := pair[0].(Symbol)
		if !ok {
			return nil, errors.New("let binding wants a symbol name")
		}
		v, err := m.eval(pair[1], env)
		if err != nil {
			return nil, err
		}
		newEnv.define(name, v)
	}
	return newEnv, nil
}

func paramList(forms []Value) ([]Symbol, error) {
	params := make([]Symbol, len(forms))
	for i, f := range forms {
		s, ok := f.(Symbol)
		if !ok {
			return nil, fmt.Errorf("parameter %d is not a symbol", i+1)
		}
		params[i] = s
	}
	return params, nil
}

func procName(lam *Lambda) string {
	if lam.Name == "" {
		return "procedure"
	}
	return lam.Name
}
