// Package shell implements the core of an interactive, network-facing REPL:
// a session owning one evaluator, a line discipline for the control bytes
// terminal clients embed in their input, and a poller that streams evaluation
// output back to the client while the evaluation is still running.
package shell

import (
	"io"
	"strings"
	"sync"

	"src.repld.dev/pkg/logutil"
)

var logger = logutil.GetLogger("[shell] ")

// Evaluator is one hosted interpreter session. An Evaluator is exclusive to
// its Shell: EvalExpr is never called concurrently with another EvalExpr, but
// PollResult, Interrupt, ClearPending and the predicates may be called from a
// different goroutine while EvalExpr is in flight, and must be safe for that.
type Evaluator interface {
	// Begin marks the start of an evaluation. It is called on the
	// goroutine that submits the expression, before EvalExpr starts.
	Begin()
	// EvalExpr evaluates one expression, blocking until it completes or
	// is interrupted.
	EvalExpr(expr string)
	// PollResult returns the next chunk of output the current evaluation
	// has produced. While an evaluation is in flight it may block until a
	// chunk arrives or the evaluation completes; it returns "" only when
	// the current evaluation is complete and fully drained.
	PollResult() string
	// Interrupt stops an in-flight evaluation. It must be safe to call
	// when no evaluation is running.
	Interrupt()
	// ClearPending discards any partial expression accumulated so far.
	ClearPending()
	// InputPending reports whether the evaluator has seen an incomplete
	// expression and is waiting for its continuation.
	InputPending() bool
	// EvalError reports whether the last evaluation raised an error.
	EvalError() bool
}

// ThreadIniter is implemented by evaluators that need per-evaluation
// initialization on the evaluation goroutine itself, before EvalExpr runs.
type ThreadIniter interface {
	ThreadInit()
}

// Transport is the byte-oriented duplex channel a Shell talks through. Send
// writes bytes to the client. SendPrompt writes the transport's own prompt,
// used when the shell detaches and the client is back at the outer console.
// SetShell attaches or (with nil) detaches the shell the transport routes
// input lines to.
type Transport interface {
	Send(s string) error
	SendPrompt()
	SetShell(sh *Shell)
}

const (
	stateActive = iota
	stateTerminating
	stateTerminated
)

// Shell drives one interactive session: it owns an Evaluator, applies the
// line discipline to every input line, and relays evaluation output to the
// attached Transport.
//
// Submit and Close must be called from the goroutine that services the
// transport's receive path. The shell serializes evaluations by joining the
// previous evaluation and poller tasks before starting new ones, which
// guarantees that output of consecutive evaluations never interleaves.
type Shell struct {
	ev        Evaluator
	transport Transport

	mu            sync.Mutex
	showOutput    bool
	showPrompt    bool
	normalPrompt  string
	pendingPrompt string
	outBuf        strings.Builder
	drained       bool
	selfDestruct  bool
	state         int

	abortPrompt string

	// Join handles for the in-flight evaluation and poller tasks. Only
	// the submitting goroutine touches these.
	evalDone chan struct{}
	pollDone chan struct{}
}

// New returns a Shell owning the given evaluator. The shell starts with
// output and prompts visible and the default "> " and "... " prompts, and
// must be attached to a transport before input is submitted.
func New(ev Evaluator) *Shell {
	return &Shell{
		ev:            ev,
		showOutput:    true,
		showPrompt:    true,
		normalPrompt:  "> ",
		pendingPrompt: "... ",
		abortPrompt:   string([]byte{IAC, WILL, TimingMark, '\n'}),
	}
}

// Attach registers the shell with a transport; the transport routes
// subsequent input lines to Submit. Attaching a shell that already has a
// transport is a programming error and panics.
func (sh *Shell) Attach(t Transport) {
	if sh.transport != nil {
		panic("shell: already attached to a transport")
	}
	sh.transport = t
	t.SetShell(sh)
}

// Submit runs the line discipline over one line of input (trailing newline
// already stripped) and starts an evaluation if the line calls for one. It
// returns as soon as the evaluation has been handed off, so the caller can
// keep servicing its connection; output is relayed by a poller task that
// runs until the evaluation's output is exhausted. Submit only ever blocks
// while joining the tasks of the previous evaluation.
//
// Submitting to a terminated shell is a programming error and panics.
func (sh *Shell) Submit(line string) {
	if sh.Closed() {
		panic("shell: submit after termination")
	}

	evaluated := sh.lineDiscipline(line)

	if !evaluated {
		// Interrupts and the other synchronous responses skip the
		// poller task; the whole response is in the output buffer.
		sh.send(sh.pollOutput())
	} else {
		// doEval has already joined the previous cycle's tasks, so the
		// poller started here is the only one in flight and results
		// stay serialized on the transport.
		done := make(chan struct{})
		sh.pollDone = done
		go func() {
			defer close(done)
			for s := sh.pollOutput(); s != ""; s = sh.pollOutput() {
				sh.send(s)
			}
		}()
	}

	// The user is leaving the shell. Nothing will call into this instance
	// again: the logout response was flushed above, so hand the client
	// back to the outer console and detach. The detach happens strictly
	// after the last send of the logout response.
	sh.mu.Lock()
	quit := sh.selfDestruct
	sh.mu.Unlock()
	if quit {
		sh.transport.SendPrompt()
		sh.transport.SetShell(nil)
		sh.mu.Lock()
		sh.state = stateTerminated
		sh.mu.Unlock()
	}
}

// doEval starts the asynchronous evaluation of input. It implements the
// serialization barrier: the previous evaluation task and the previous
// poller task are joined, in that order, before the new evaluation starts.
// This keeps at most one evaluation and one poller in flight per shell, and
// means a new evaluation cannot clobber results that have not been relayed
// yet.
func (sh *Shell) doEval(input string) {
	if sh.evalDone != nil {
		<-sh.evalDone
		sh.evalDone = nil
	}
	if sh.pollDone != nil {
		<-sh.pollDone
		sh.pollDone = nil
	}

	sh.mu.Lock()
	sh.drained = false
	sh.mu.Unlock()

	// Begin must run on the submitting goroutine: the poller assumes the
	// evaluation state is initialized by the time it starts.
	sh.ev.Begin()

	done := make(chan struct{})
	sh.evalDone = done
	go func() {
		defer close(done)
		if ti, ok := sh.ev.(ThreadIniter); ok {
			ti.ThreadInit()
		}
		sh.ev.EvalExpr(input)
	}()
}

// putOutput appends to the local output buffer, which holds responses
// produced by the line discipline itself. They take priority over evaluator
// output when polled.
func (sh *Shell) putOutput(s string) {
	sh.mu.Lock()
	sh.outBuf.WriteString(s)
	sh.mu.Unlock()
}

// pollOutput returns the next chunk of output to relay, or "" when the
// current evaluation cycle has nothing further to say. The trailing prompt
// is emitted exactly once per cycle, after all evaluator output has drained.
func (sh *Shell) pollOutput() string {
	// Protocol responses first.
	sh.mu.Lock()
	if sh.outBuf.Len() > 0 {
		s := sh.outBuf.String()
		sh.outBuf.Reset()
		sh.mu.Unlock()
		return s
	}
	sh.mu.Unlock()

	// Then whatever the evaluator has produced.
	if s := sh.ev.PollResult(); s != "" {
		return s
	}

	// The evaluation is done and drained. All that remains is the
	// trailing prompt.
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.drained {
		return ""
	}
	sh.drained = true

	if sh.ev.InputPending() {
		if sh.showOutput && sh.showPrompt {
			return sh.pendingPrompt
		}
		return ""
	}
	// An error is reported to the user even when output is hushed, by
	// way of showing the prompt again.
	if (sh.showOutput || sh.ev.EvalError()) && sh.showPrompt {
		return sh.normalPrompt
	}
	return ""
}

func (sh *Shell) send(s string) {
	if err := sh.transport.Send(s); err != nil {
		logger.Println("send:", err)
	}
}

// Prompt returns the prompt matching the current evaluator state: the
// continuation prompt while a partial expression is pending, the normal
// prompt otherwise, and "" when prompts are hushed.
func (sh *Shell) Prompt() string {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if !sh.showPrompt {
		return ""
	}
	if sh.ev.InputPending() {
		return sh.pendingPrompt
	}
	return sh.normalPrompt
}

// HushOutput suppresses (or, with false, restores) evaluation output.
func (sh *Shell) HushOutput(hush bool) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.showOutput = !hush
}

// HushPrompt suppresses (or, with false, restores) prompts.
func (sh *Shell) HushPrompt(hush bool) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.showPrompt = !hush
}

// SetPrompts replaces the normal and continuation prompts.
func (sh *Shell) SetPrompts(normal, pending string) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.normalPrompt = normal
	sh.pendingPrompt = pending
}

// Closed reports whether the session has terminated, because the user logged
// out or the shell was closed. The owning transport checks this before
// routing further input.
func (sh *Shell) Closed() bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.state != stateActive
}

// Close tears the session down when the connection goes away: it interrupts
// any in-flight evaluation, joins the evaluation and poller tasks, and
// closes the evaluator if it supports closing.
func (sh *Shell) Close() {
	sh.ev.Interrupt()
	if sh.evalDone != nil {
		<-sh.evalDone
		sh.evalDone = nil
	}
	if sh.pollDone != nil {
		<-sh.pollDone
		sh.pollDone = nil
	}
	if c, ok := sh.ev.(io.Closer); ok {
		c.Close()
	}
	sh.mu.Lock()
	sh.state = stateTerminated
	sh.mu.Unlock()
}
