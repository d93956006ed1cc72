package lisp

import (
	"sync"
)

// Session is one REPL's view of an interpreter. It owns a child environment
// of the interpreter root, accumulates partial input across lines, and
// queues result chunks for polling. It implements the evaluator contract of
// the shell package: Begin is called on the submitting goroutine, EvalExpr
// on a dedicated goroutine, and PollResult on the goroutine draining output.
type Session struct {
	env *Env

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []string
	running bool
	frag    string
	evalErr bool
	intr    chan struct{}
}

// NewSession returns a session on a fresh child environment, so definitions
// in one session do not leak into another.
func (in *Interp) NewSession() *Session {
	s := &Session{env: NewEnv(in.root), intr: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Begin marks an evaluation as in flight and arms a fresh interrupt. It must
// be called before EvalExpr is started, on the goroutine that will poll.
func (s *Session) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.evalErr = false
	s.intr = make(chan struct{})
}

// EvalExpr evaluates expr, appended to any input still pending from earlier
// calls. Unbalanced input pends instead of evaluating. Results and display
// output are queued for PollResult; errors are queued as ";; error: " lines.
func (s *Session) EvalExpr(expr string) {
	s.mu.Lock()
	src := s.frag + expr
	intr := s.intr
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.cond.Broadcast()
		s.mu.Unlock()
	}()

	forms, err := ReadAll(src)
	if IsIncomplete(err) {
		s.mu.Lock()
		s.frag = src
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	s.frag = ""
	s.mu.Unlock()
	if err != nil {
		s.pushError(err)
		return
	}

	m := &machine{intr: intr, emit: s.push}
	for _, form := range forms {
		v, err := m.eval(form, s.env)
		if err != nil {
			s.pushError(err)
			return
		}
		if _, ok := v.(Unspecified); !ok {
			s.push(Repr(v) + "\n")
		}
	}
}

// PollResult returns the next chunk of output. While an evaluation is in
// flight it blocks until a chunk arrives or the evaluation completes; it
// returns "" only when the evaluation is done and all chunks are drained.
func (s *Session) PollResult() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if len(s.queue) > 0 {
			chunk := s.queue[0]
			s.queue = s.queue[1:]
			return chunk
		}
		if !s.running {
			return ""
		}
		s.cond.Wait()
	}
}

// Interrupt stops the in-flight evaluation, if any. It is idempotent.
func (s *Session) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.intr:
	default:
		close(s.intr)
	}
}

// ClearPending drops input accumulated from unbalanced lines.
func (s *Session) ClearPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frag = ""
}

// InputPending reports whether unbalanced input is waiting for more lines.
func (s *Session) InputPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frag != ""
}

// EvalError reports whether the last evaluation ended in an error.
func (s *Session) EvalError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evalErr
}

// Close interrupts any in-flight evaluation. The session holds no other
// resources.
func (s *Session) Close() error {
	s.Interrupt()
	return nil
}

func (s *Session) push(chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, chunk)
	s.cond.Broadcast()
}

func (s *Session) pushError(err error) {
	s.mu.Lock()
	s.queue = append(s.queue, ";; error: "+err.Error()+"\n")
	s.evalErr = true
	s.cond.Broadcast()
	s.mu.Unlock()
}
