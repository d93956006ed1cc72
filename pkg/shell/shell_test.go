package shell_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	. "src.repld.dev/pkg/shell"
	"src.repld.dev/pkg/testutil"
)

// outcome scripts what the fake evaluator does with one expression.
type outcome struct {
	chunks  []string      // result text, emitted chunk by chunk
	delay   time.Duration // pause before each chunk
	pending bool          // leave a partial expression pending
	err     bool          // flag an evaluation error on completion
	block   bool          // block after the chunks until interrupted
}

// fakeEvaluator implements Evaluator with scripted outcomes keyed by the
// expression text (sans the newline Submit re-appends). PollResult follows
// the bounded-wait contract: it blocks while an evaluation is in flight and
// no output is queued.
type fakeEvaluator struct {
	mu   sync.Mutex
	cond *sync.Cond

	outcomes map[string]outcome

	queue       []string
	running     bool
	pending     bool
	errFlag     bool
	interrupted bool

	evals      []string
	begins     int
	interrupts int
	clears     int
	closed     bool
}

func newFakeEvaluator() *fakeEvaluator {
	f := &fakeEvaluator{outcomes: make(map[string]outcome)}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *fakeEvaluator) on(expr string, oc outcome) { f.outcomes[expr] = oc }

func (f *fakeEvaluator) Begin() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begins++
	f.running = true
	f.errFlag = false
	f.interrupted = false
}

func (f *fakeEvaluator) EvalExpr(expr string) {
	f.mu.Lock()
	f.evals = append(f.evals, expr)
	oc := f.outcomes[strings.TrimSuffix(expr, "\n")]
	f.mu.Unlock()

	for _, c := range oc.chunks {
		if oc.delay > 0 {
			time.Sleep(oc.delay)
		}
		f.mu.Lock()
		f.queue = append(f.queue, c)
		f.cond.Broadcast()
		f.mu.Unlock()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if oc.block {
		for !f.interrupted {
			f.cond.Wait()
		}
	}
	f.pending = oc.pending
	f.errFlag = oc.err
	f.running = false
	f.cond.Broadcast()
}

func (f *fakeEvaluator) PollResult() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		if len(f.queue) > 0 {
			s := f.queue[0]
			f.queue = f.queue[1:]
			return s
		}
		if !f.running {
			return ""
		}
		f.cond.Wait()
	}
}

func (f *fakeEvaluator) Interrupt() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interrupts++
	f.interrupted = true
	f.cond.Broadcast()
}

func (f *fakeEvaluator) ClearPending() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	f.pending = false
}

func (f *fakeEvaluator) InputPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

func (f *fakeEvaluator) EvalError() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errFlag
}

func (f *fakeEvaluator) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEvaluator) counts() (begins, interrupts, clears int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.begins, f.interrupts, f.clears
}

func (f *fakeEvaluator) evaled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.evals...)
}

// recordingTransport records every call chronologically, so that tests can
// assert ordering between sends, the outer prompt and detaching.
type recordingTransport struct {
	mu     sync.Mutex
	events []string
}

func (tr *recordingTransport) Send(s string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, "send "+s)
	return nil
}

func (tr *recordingTransport) SendPrompt() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, "sendprompt")
}

func (tr *recordingTransport) SetShell(sh *Shell) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if sh == nil {
		tr.events = append(tr.events, "setshell nil")
	} else {
		tr.events = append(tr.events, "setshell")
	}
}

func (tr *recordingTransport) Events() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.events...)
}

func setup() (*fakeEvaluator, *recordingTransport, *Shell) {
	f := newFakeEvaluator()
	tr := &recordingTransport{}
	sh := New(f)
	sh.Attach(tr)
	return f, tr, sh
}

func waitUntil(t *testing.T, what string, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(testutil.Scaled(5 * time.Second))
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitEvents(t *testing.T, tr *recordingTransport, want []string) {
	t.Helper()
	waitUntil(t, "transport events", func() bool { return len(tr.Events()) >= len(want) })
	if diff := cmp.Diff(want, tr.Events()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestEval_StreamsResultThenPrompt(t *testing.T) {
	f, tr, sh := setup()
	f.on("(+ 1 1)", outcome{chunks: []string{"2"}})

	sh.Submit("(+ 1 1)")

	waitEvents(t, tr, []string{"setshell", "send 2", "send > "})
	if got := f.evaled(); len(got) != 1 || got[0] != "(+ 1 1)\n" {
		t.Errorf("evaluator got %q, want one expression with newline re-appended", got)
	}
}

func TestEval_OutputOrderPreservedAcrossSubmits(t *testing.T) {
	f, tr, sh := setup()
	f.on("a", outcome{chunks: []string{"a1", "a2"}, delay: 5 * time.Millisecond})
	f.on("b", outcome{chunks: []string{"b1", "b2"}, delay: 5 * time.Millisecond})

	sh.Submit("a")
	sh.Submit("b")

	// The second Submit joins the first cycle's poller before starting,
	// so by the time it returns the first cycle is fully on the wire.
	got := tr.Events()
	wantFirst := []string{"setshell", "send a1", "send a2", "send > "}
	if len(got) < len(wantFirst) {
		t.Fatalf("after second Submit returned, events = %v, want at least %v", got, wantFirst)
	}
	if diff := cmp.Diff(wantFirst, got[:len(wantFirst)]); diff != "" {
		t.Errorf("first cycle not drained before second started (-want +got):\n%s", diff)
	}

	waitEvents(t, tr, []string{
		"setshell",
		"send a1", "send a2", "send > ",
		"send b1", "send b2", "send > ",
	})
}

// threadInitEvaluator augments the fake with per-evaluation initialization,
// recording its ordering relative to EvalExpr.
type threadInitEvaluator struct {
	*fakeEvaluator
	callMu sync.Mutex
	calls  []string
}

func (f *threadInitEvaluator) ThreadInit() {
	f.callMu.Lock()
	defer f.callMu.Unlock()
	f.calls = append(f.calls, "init")
}

func (f *threadInitEvaluator) EvalExpr(expr string) {
	f.callMu.Lock()
	f.calls = append(f.calls, "eval")
	f.callMu.Unlock()
	f.fakeEvaluator.EvalExpr(expr)
}

func TestEval_ThreadInitPrecedesEachEvaluation(t *testing.T) {
	f := &threadInitEvaluator{fakeEvaluator: newFakeEvaluator()}
	sh := New(f)
	sh.Attach(&recordingTransport{})

	sh.Submit("a")
	sh.Submit("b")
	waitUntil(t, "both evaluations", func() bool {
		return len(f.evaled()) == 2
	})

	f.callMu.Lock()
	got := append([]string(nil), f.calls...)
	f.callMu.Unlock()
	if diff := cmp.Diff([]string{"init", "eval", "init", "eval"}, got); diff != "" {
		t.Errorf("call order (-want +got):\n%s", diff)
	}
}

func TestAbortWhileIdle_SendsAck(t *testing.T) {
	f, tr, sh := setup()

	sh.Submit(string([]byte{IAC, IP}))

	ack := string([]byte{IAC, WILL, TimingMark, '\n'})
	waitEvents(t, tr, []string{"setshell", "send " + ack})
	begins, interrupts, clears := f.counts()
	if begins != 0 {
		t.Errorf("begins = %d, want 0 (nothing submitted to eval)", begins)
	}
	if interrupts != 1 || clears != 1 {
		t.Errorf("interrupts, clears = %d, %d, want 1, 1", interrupts, clears)
	}
}

func TestAbortDuringEval_InterruptsAndAcks(t *testing.T) {
	f, tr, sh := setup()
	f.on("spin", outcome{block: true, err: true})

	sh.Submit("spin")
	waitUntil(t, "evaluation started", func() bool {
		begins, _, _ := f.counts()
		return begins == 1
	})

	sh.Submit(string([]byte{'x', IAC, AO}))

	// The ack goes out on the submitting goroutine while the poller may
	// be sending the trailing prompt concurrently, so only membership is
	// deterministic, not their relative order.
	ack := string([]byte{IAC, WILL, TimingMark, '\n'})
	waitUntil(t, "abort ack and trailing prompt", func() bool {
		return hasEvent(tr, "send "+ack) && hasEvent(tr, "send > ")
	})
	begins, interrupts, _ := f.counts()
	if begins != 1 {
		t.Errorf("begins = %d, want 1 (abort line must not be evaluated)", begins)
	}
	if interrupts != 1 {
		t.Errorf("interrupts = %d, want 1", interrupts)
	}
}

func hasEvent(tr *recordingTransport, want string) bool {
	for _, ev := range tr.Events() {
		if ev == want {
			return true
		}
	}
	return false
}

func TestEraseLine_ReissuesPrompt(t *testing.T) {
	f, tr, sh := setup()

	sh.Submit("half-typed garbage" + string([]byte{IAC, EL}))

	waitEvents(t, tr, []string{"setshell", "send > "})
	if begins, _, _ := f.counts(); begins != 0 {
		t.Errorf("begins = %d, want 0", begins)
	}
}

func TestEraseLine_ContinuationPrompt(t *testing.T) {
	f, tr, sh := setup()
	f.on("(foo", outcome{pending: true})

	sh.Submit("(foo")
	waitEvents(t, tr, []string{"setshell", "send ... "})

	sh.Submit("bar" + string([]byte{IAC, EL}))
	waitEvents(t, tr, []string{"setshell", "send ... ", "send ... "})
}

func TestCancelBytes(t *testing.T) {
	for _, b := range []byte{SYN, CAN, ESC} {
		f, tr, sh := setup()

		sh.Submit("partial input" + string([]byte{b}))

		waitEvents(t, tr, []string{"setshell", "send \n> "})
		begins, interrupts, clears := f.counts()
		if begins != 0 || interrupts != 1 || clears != 1 {
			t.Errorf("byte %#x: begins, interrupts, clears = %d, %d, %d, want 0, 1, 1",
				b, begins, interrupts, clears)
		}
	}
}

func TestLogout_Period(t *testing.T) {
	f, tr, sh := setup()

	sh.Submit(".")

	// The logout response is flushed, then the outer prompt, then the
	// detach, strictly in that order.
	want := []string{"setshell", "send Exiting the shell\n", "sendprompt", "setshell nil"}
	if diff := cmp.Diff(want, tr.Events()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
	if !sh.Closed() {
		t.Errorf("Closed() = false after logout, want true")
	}
	if begins, _, _ := f.counts(); begins != 0 {
		t.Errorf("begins = %d, want 0", begins)
	}

	if r := testutil.Recover(func() { sh.Submit("more") }); r == nil {
		t.Errorf("Submit after logout did not panic")
	}
}

func TestLogout_PeriodWithPendingInput_Evaluates(t *testing.T) {
	f, tr, sh := setup()
	f.on("(foo", outcome{pending: true})

	sh.Submit("(foo")
	waitEvents(t, tr, []string{"setshell", "send ... "})

	sh.Submit(".")
	waitUntil(t, "period evaluated", func() bool {
		return len(f.evaled()) == 2
	})
	if sh.Closed() {
		t.Errorf("Closed() = true, want false: period continues a pending expression")
	}
	if got := f.evaled()[1]; got != ".\n" {
		t.Errorf("second expression = %q, want %q", got, ".\n")
	}
}

func TestLogout_TrailingEOT(t *testing.T) {
	_, tr, sh := setup()

	sh.Submit("bye" + string([]byte{EOT}))

	want := []string{"setshell", "send Exiting the shell\n", "sendprompt", "setshell nil"}
	if diff := cmp.Diff(want, tr.Events()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestLogout_HushedPromptSkipsNotice(t *testing.T) {
	_, tr, sh := setup()
	sh.HushPrompt(true)

	sh.Submit(".")

	want := []string{"setshell", "send ", "sendprompt", "setshell nil"}
	if diff := cmp.Diff(want, tr.Events()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestEmptyLine_EvaluatesNewline(t *testing.T) {
	f, tr, sh := setup()

	sh.Submit("")

	waitEvents(t, tr, []string{"setshell", "send > "})
	if got := f.evaled(); len(got) != 1 || got[0] != "\n" {
		t.Errorf("evaluator got %q, want a bare newline", got)
	}
}

func TestHushOutput_ErrorStillShowsPrompt(t *testing.T) {
	f, tr, sh := setup()
	sh.HushOutput(true)
	f.on("boom", outcome{err: true})
	f.on("fine", outcome{})

	sh.Submit("fine")
	sh.Submit("boom")

	// The silent evaluation produces no trailing prompt; the failed one
	// still does, so the user can tell something happened.
	waitEvents(t, tr, []string{"setshell", "send > "})
}

func TestHushPrompt_NoTrailingPrompt(t *testing.T) {
	f, tr, sh := setup()
	sh.HushPrompt(true)
	f.on("(+ 1 1)", outcome{chunks: []string{"2"}})

	sh.Submit("(+ 1 1)")

	waitEvents(t, tr, []string{"setshell", "send 2"})
	// Give a straggling prompt a chance to show up before asserting it
	// did not.
	time.Sleep(testutil.Scaled(10 * time.Millisecond))
	if got := tr.Events(); len(got) != 2 {
		t.Errorf("events = %v, want no trailing prompt", got)
	}
}

func TestSetPrompts(t *testing.T) {
	f, tr, sh := setup()
	sh.SetPrompts("repl$ ", ".... ")
	f.on("x", outcome{})

	sh.Submit("x")

	waitEvents(t, tr, []string{"setshell", "send repl$ "})
}

func TestAttach_SecondTransportPanics(t *testing.T) {
	_, _, sh := setup()

	if r := testutil.Recover(func() { sh.Attach(&recordingTransport{}) }); r == nil {
		t.Errorf("second Attach did not panic")
	}
}

func TestClose_InterruptsAndClosesEvaluator(t *testing.T) {
	f, _, sh := setup()
	f.on("spin", outcome{block: true, err: true})

	sh.Submit("spin")
	waitUntil(t, "evaluation started", func() bool {
		begins, _, _ := f.counts()
		return begins == 1
	})

	sh.Close()

	if !sh.Closed() {
		t.Errorf("Closed() = false after Close")
	}
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if !closed {
		t.Errorf("evaluator not closed")
	}
	if r := testutil.Recover(func() { sh.Submit("x") }); r == nil {
		t.Errorf("Submit after Close did not panic")
	}
}
