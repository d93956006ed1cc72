package lisp

import (
	"strings"
	"testing"
)

var evalTests = []struct {
	name string
	src  string
	want string
}{
	{"number", "42", "42\n"},
	{"string", `"a b"`, "\"a b\"\n"},
	{"arithmetic", "(+ 1 (* 2 3))", "7\n"},
	{"subtraction", "(- 10 1 2)", "7\n"},
	{"negation", "(- 5)", "-5\n"},
	{"division", "(/ 1 8)", "0.125\n"},
	{"reciprocal", "(/ 4)", "0.25\n"},
	{"comparison chain", "(< 1 2 3)", "#t\n"},
	{"comparison chain false", "(<= 1 2 2 1)", "#f\n"},
	{"equality", "(= 2 2 2)", "#t\n"},
	{"if true", "(if (> 2 1) 'yes 'no)", "yes\n"},
	{"if false without else", "(if #f 'yes)", ""},
	{"not", "(not #f)", "#t\n"},
	{"and returns last", "(and 1 2 3)", "3\n"},
	{"and short-circuits", "(and #f (car '()))", "#f\n"},
	{"or returns first true", "(or #f 2 (car '()))", "2\n"},
	{"quote", "'(1 2)", "(1 2)\n"},
	{"car", "(car '(1 2 3))", "1\n"},
	{"cdr", "(cdr '(1 2 3))", "(2 3)\n"},
	{"cons", "(cons 1 '(2 3))", "(1 2 3)\n"},
	{"list", `(list 1 'two "three")`, "(1 two \"three\")\n"},
	{"null? of empty", "(null? '())", "#t\n"},
	{"null? of nonempty", "(null? '(1))", "#f\n"},
	{"length", "(length '(1 2 3))", "3\n"},
	{"define and use", "(define x 7) (* x x)", "49\n"},
	{"define procedure", "(define (sq n) (* n n)) (sq 9)", "81\n"},
	{"lambda", "((lambda (a b) (+ a b)) 3 4)", "7\n"},
	{"closure",
		"(define (adder n) (lambda (x) (+ x n))) ((adder 10) 5)", "15\n"},
	{"set!", "(define x 1) (set! x (+ x 1)) x", "2\n"},
	{"let", "(let ((a 2) (b 3)) (* a b))", "6\n"},
	{"let shadows", "(define x 1) (let ((x 2)) x)", "2\n"},
	{"begin", "(begin 1 2 3)", "3\n"},
	{"display", `(display "a" "b")`, "ab"},
	{"display of list", "(display '(1 2))", "(1 2)"},
	{"write quotes strings", `(write "a")`, "\"a\""},
	{"newline", "(newline)", "\n"},
	{"recursion",
		"(define (fact n) (if (= n 0) 1 (* n (fact (- n 1))))) (fact 10)",
		"3628800\n"},
	{"deep tail recursion runs in constant stack",
		"(define (count n) (if (= n 0) 'done (count (- n 1)))) (count 100000)",
		"done\n"},
	{"procedure prints with name", "(define (f) 1) f", "#<procedure f>\n"},
	{"builtin prints with name", "car", "#<builtin car>\n"},
	{"multiple results", "1 2", "1\n2\n"},
	{"comment only", "; nothing", ""},
	{"empty input", "", ""},
	{"define result is hidden", "(define x 1)", ""},
}

func TestEval(t *testing.T) {
	for _, test := range evalTests {
		t.Run(test.name, func(t *testing.T) {
			out, evalErr := evalString(t, New().NewSession(), test.src)
			if out != test.want {
				t.Errorf("eval %q -> %q, want %q", test.src, out, test.want)
			}
			if evalErr {
				t.Errorf("eval %q flagged an error", test.src)
			}
		})
	}
}

var evalErrorTests = []struct {
	name string
	src  string
	want string
}{
	{"unbound symbol", "nosuch", ";; error: unbound symbol nosuch\n"},
	{"cannot apply number", "(1 2)", ";; error: cannot apply 1\n"},
	{"empty call", "()", ";; error: cannot evaluate ()\n"},
	{"bad operand type", `(+ 1 "x")`, ";; error: + wants numbers, got \"x\"\n"},
	{"division by zero", "(/ 1 0)", ";; error: division by zero\n"},
	{"car of empty", "(car '())", ";; error: car of empty list\n"},
	{"arity mismatch", "(define (f a b) a) (f 1)",
		";; error: f wants 2 arguments, got 1\n"},
	{"set! of unbound", "(set! nosuch 1)", ";; error: unbound symbol nosuch\n"},
	{"syntax error", "(a))", ";; error: unexpected )\n"},
	{"output kept before error", `(display "partial") (car '())`,
		"partial;; error: car of empty list\n"},
}

func TestEval_Errors(t *testing.T) {
	for _, test := range evalErrorTests {
		t.Run(test.name, func(t *testing.T) {
			out, evalErr := evalString(t, New().NewSession(), test.src)
			if out != test.want {
				t.Errorf("eval %q -> %q, want %q", test.src, out, test.want)
			}
			if !evalErr {
				t.Errorf("eval %q did not flag an error", test.src)
			}
		})
	}
}

func TestEval_SessionsAreIsolated(t *testing.T) {
	in := New()
	s1, s2 := in.NewSession(), in.NewSession()
	if out, _ := evalString(t, s1, "(define x 1) x"); out != "1\n" {
		t.Fatalf("defining session -> %q, want %q", out, "1\n")
	}
	out, evalErr := evalString(t, s2, "x")
	if !evalErr {
		t.Errorf("other session sees definition: %q", out)
	}
}

func TestBuiltins_Sorted(t *testing.T) {
	names := Builtins()
	if len(names) == 0 {
		t.Fatalf("Builtins() -> empty")
	}
	for i := 0; i+1 < len(names); i++ {
		if names[i] >= names[i+1] {
			t.Errorf("Builtins() not sorted at %q, %q", names[i], names[i+1])
		}
	}
}

// evalString evaluates src synchronously on s and returns all output and the
// error flag.
func evalString(t *testing.T, s *Session, src string) (string, bool) {
	t.Helper()
	s.Begin()
	s.EvalExpr(src)
	return drain(s), s.EvalError()
}

func drain(s *Session) string {
	var sb strings.Builder
	for chunk := s.PollResult(); chunk != ""; chunk = s.PollResult() {
		sb.WriteString(chunk)
	}
	return sb.String()
}
