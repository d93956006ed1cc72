package lisp

import (
	"errors"
	"fmt"
	"time"
)

var builtins = []*Builtin{
	{Name: "+", Fn: add},
	{Name: "-", Fn: sub},
	{Name: "*", Fn: mul},
	{Name: "/", Fn: div},
	compareChain("<", func(a, b float64) bool { return a < b }),
	compareChain(">", func(a, b float64) bool { return a > b }),
	compareChain("=", func(a, b float64) bool { return a == b }),
	compareChain("<=", func(a, b float64) bool { return a <= b }),
	compareChain(">=", func(a, b float64) bool { return a >= b }),
	{Name: "not", Fn: not},
	{Name: "car", Fn: car},
	{Name: "cdr", Fn: cdr},
	{Name: "cons", Fn: cons},
	{Name: "list", Fn: listFn},
	{Name: "null?", Fn: isNull},
	{Name: "length", Fn: length},
	{Name: "display", Fn: display},
	{Name: "write", Fn: write},
	{Name: "newline", Fn: newline},
	{Name: "sleep", Fn: sleep},
}

func wantNumbers(name string, args []Value) ([]float64, error) {
	nums := make([]float64, len(args))
	for i, a := range args {
		n, ok := a.(float64)
		if !ok {
			return nil, fmt.Errorf("%s wants numbers, got %s", name, Repr(a))
		}
		nums[i] = n
	}
	return nums, nil
}

func wantList(name string, args []Value) ([]Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s wants 1 argument, got %d", name, len(args))
	}
	l, ok := args[0].([]Value)
	if !ok {
		return nil, fmt.Errorf("%s wants a list, got %s", name, Repr(args[0]))
	}
	return l, nil
}

func add(m *machine, args []Value) (Value, error) {
	nums, err := wantNumbers("+", args)
	if err != nil {
		return nil, err
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return sum, nil
}

func sub(m *machine, args []Value) (Value, error) {
	nums, err := wantNumbers("-", args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, errors.New("- wants at least 1 argument")
	}
	if len(nums) == 1 {
		return -nums[0], nil
	}
	diff := nums[0]
	for _, n := range nums[1:] {
		diff -= n
	}
	return diff, nil
}

func mul(m *machine, args []Value) (Value, error) {
	nums, err := wantNumbers("*", args)
	if err != nil {
		return nil, err
	}
	product := 1.0
	for _, n := range nums {
		product *= n
	}
	return product, nil
}

func div(m *machine, args []Value) (Value, error) {
	nums, err := wantNumbers("/", args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, errors.New("/ wants at least 1 argument")
	}
	if len(nums) == 1 {
		nums = []float64{1, nums[0]}
	}
	quot := nums[0]
	for _, n := range nums[1:] {
		if n == 0 {
			return nil, errors.New("division by zero")
		}
		quot /= n
	}
	return quot, nil
}

func compareChain(name string, pred func(a, b float64) bool) *Builtin {
	return &Builtin{Name: name, Fn: func(m *machine, args []Value) (Value, error) {
		nums, err := wantNumbers(name, args)
		if err != nil {
			return nil, err
		}
		if len(nums) < 2 {
			return nil, fmt.Errorf("%s wants at least 2 arguments, got %d", name, len(nums))
		}
		for i := 0; i+1 < len(nums); i++ {
			if !pred(nums[i], nums[i+1]) {
				return false, nil
			}
		}
		return true, nil
	}}
}

func not(m *machine, args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("not wants 1 argument, got %d", len(args))
	}
	return !truthy(args[0]), nil
}

func car(m *machine, args []Value) (Value, error) {
	l, err := wantList("car", args)
	if err != nil {
		return nil, err
	}
	if len(l) == 0 {
		return nil, errors.New("car of empty list")
	}
	return l[0], nil
}

func cdr(m *machine, args []Value) (Value, error) {
	l, err := wantList("cdr", args)
	if err != nil {
		return nil, err
	}
	if len(l) == 0 {
		return nil, errors.New("cdr of empty list")
	}
	return l[1:], nil
}

func cons(m *machine, args []Value) (Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("cons wants 2 arguments, got %d", len(args))
	}
	l, ok := args[1].([]Value)
	if !ok {
		return nil, fmt.Errorf("cons wants a list, got %s", Repr(args[1]))
	}
	return append([]Value{args[0]}, l...), nil
}

func listFn(m *machine, args []Value) (Value, error) {
	return append([]Value{}, args...), nil
}

func isNull(m *machine, args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("null? wants 1 argument, got %d", len(args))
	}
	l, ok := args[0].([]Value)
	return ok && len(l) == 0, nil
}

func length(m *machine, args []Value) (Value, error) {
	l, err := wantList("length", args)
	if err != nil {
		return nil, err
	}
	return float64(len(l)), nil
}

func display(m *machine, args []Value) (Value, error) {
	for _, a := range args {
		m.emit(ToString(a))
	}
	return Unspecified{}, nil
}

func write(m *machine, args []Value) (Value, error) {
	for _, a := range args {
		m.emit(Repr(a))
	}
	return Unspecified{}, nil
}

func newline(m *machine, args []Value) (Value, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("newline wants no arguments, got %d", len(args))
	}
	m.emit("\n")
	return Unspecified{}, nil
}

// sleep pauses for the given number of milliseconds. It wakes early when the
// evaluation is interrupted.
func sleep(m *machine, args []Value) (Value, error) {
	nums, err := wantNumbers("sleep", args)
	if err != nil {
		return nil, err
	}
	if len(nums) != 1 {
		return nil, fmt.Errorf("sleep wants 1 argument, got %d", len(nums))
	}
	t := time.NewTimer(time.Duration(nums[0] * float64(time.Millisecond)))
	defer t.Stop()
	select {
	case <-t.C:
		return Unspecified{}, nil
	case <-m.intr:
		return nil, ErrInterrupted
	}
}
