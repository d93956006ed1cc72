// Package storetest keeps test suites against storedefs.Store.
package storetest

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"src.repld.dev/pkg/store/storedefs"
)

var testCmds = []string{"(+ 1 1)", "(define x 2)", "(display x)", "(+ x x)"}

// TestCmd tests the command history API of a store.
func TestCmd(t *testing.T, st storedefs.Store) {
	startSeq, err := st.NextCmdSeq()
	if err != nil {
		t.Fatalf("NextCmdSeq -> error %v", err)
	}
	for i, cmd := range testCmds {
		wantSeq := startSeq + i
		seq, err := st.AddCmd(cmd)
		if seq != wantSeq || err != nil {
			t.Errorf("AddCmd(%q) -> (%d, %v), want (%d, nil)", cmd, seq, err, wantSeq)
		}
	}
	endSeq := startSeq + len(testCmds)
	if next, err := st.NextCmdSeq(); next != endSeq || err != nil {
		t.Errorf("NextCmdSeq -> (%d, %v), want (%d, nil)", next, err, endSeq)
	}

	if cmd, err := st.Cmd(startSeq + 1); cmd != testCmds[1] || err != nil {
		t.Errorf("Cmd(%d) -> (%q, %v), want (%q, nil)",
			startSeq+1, cmd, err, testCmds[1])
	}
	if _, err := st.Cmd(endSeq); !matchErr(err, storedefs.ErrNoMatchingCmd) {
		t.Errorf("Cmd(%d) -> error %v, want %v", endSeq, err, storedefs.ErrNoMatchingCmd)
	}

	wantRange := []storedefs.Cmd{
		{Text: testCmds[1], Seq: startSeq + 1},
		{Text: testCmds[2], Seq: startSeq + 2},
	}
	cmds, err := st.CmdsWithSeq(startSeq+1, startSeq+3)
	if err != nil {
		t.Errorf("CmdsWithSeq -> error %v", err)
	}
	if diff := cmp.Diff(wantRange, cmds); diff != "" {
		t.Errorf("CmdsWithSeq (-want +got):\n%s", diff)
	}

	wantLatest := []storedefs.Cmd{{Text: testCmds[3], Seq: startSeq + 3}}
	cmds, err = st.CmdsWithPrefix("(+", 1)
	if err != nil {
		t.Errorf("CmdsWithPrefix -> error %v", err)
	}
	if diff := cmp.Diff(wantLatest, cmds); diff != "" {
		t.Errorf("CmdsWithPrefix limit 1 (-want +got):\n%s", diff)
	}

	wantAll := []storedefs.Cmd{
		{Text: testCmds[0], Seq: startSeq},
		{Text: testCmds[3], Seq: startSeq + 3},
	}
	cmds, err = st.CmdsWithPrefix("(+", 0)
	if err != nil {
		t.Errorf("CmdsWithPrefix -> error %v", err)
	}
	if diff := cmp.Diff(wantAll, cmds); diff != "" {
		t.Errorf("CmdsWithPrefix no limit (-want +got):\n%s", diff)
	}

	if err := st.DelCmd(startSeq + 2); err != nil {
		t.Errorf("DelCmd(%d) -> error %v", startSeq+2, err)
	}
	if _, err := st.Cmd(startSeq + 2); !matchErr(err, storedefs.ErrNoMatchingCmd) {
		t.Errorf("Cmd(%d) after DelCmd -> error %v, want %v",
			startSeq+2, err, storedefs.ErrNoMatchingCmd)
	}
	// Deleting does not shift sequence numbers.
	if next, err := st.NextCmdSeq(); next != endSeq || err != nil {
		t.Errorf("NextCmdSeq after DelCmd -> (%d, %v), want (%d, nil)",
			next, err, endSeq)
	}
}

// TestVar tests the named variable API of a store.
func TestVar(t *testing.T, st storedefs.Store) {
	noSuchVariable := errors.New("no such variable")
	if _, err := st.Var("no-such"); !matchErr(err, noSuchVariable) {
		t.Errorf("Var(no-such) -> error %v, want %v", err, noSuchVariable)
	}
	if err := st.SetVar("greeting", "hello"); err != nil {
		t.Errorf("SetVar -> error %v", err)
	}
	if v, err := st.Var("greeting"); v != "hello" || err != nil {
		t.Errorf("Var(greeting) -> (%q, %v), want (%q, nil)", v, err, "hello")
	}
	if err := st.SetVar("greeting", "bye"); err != nil {
		t.Errorf("SetVar overwrite -> error %v", err)
	}
	if v, _ := st.Var("greeting"); v != "bye" {
		t.Errorf("Var(greeting) after overwrite -> %q, want %q", v, "bye")
	}
	if err := st.DelVar("greeting"); err != nil {
		t.Errorf("DelVar -> error %v", err)
	}
	if _, err := st.Var("greeting"); !matchErr(err, noSuchVariable) {
		t.Errorf("Var(greeting) after DelVar -> error %v, want %v", err, noSuchVariable)
	}
}

func matchErr(e1, e2 error) bool {
	return (e1 == nil && e2 == nil) || (e1 != nil && e2 != nil && e1.Error() == e2.Error())
}
