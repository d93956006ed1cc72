package store_test

import (
	"testing"

	"src.repld.dev/pkg/store"
	"src.repld.dev/pkg/testutil"
)

func TestStore_SurvivesReopen(t *testing.T) {
	testutil.InTempDir(t)
	st, err := store.NewStore("db")
	if err != nil {
		t.Fatalf("NewStore -> error %v", err)
	}
	seq, err := st.AddCmd("(+ 1 2)")
	if err != nil {
		t.Fatalf("AddCmd -> error %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close -> error %v", err)
	}

	st, err = store.NewStore("db")
	if err != nil {
		t.Fatalf("NewStore on existing file -> error %v", err)
	}
	defer st.Close()
	if cmd, err := st.Cmd(seq); cmd != "(+ 1 2)" || err != nil {
		t.Errorf("Cmd(%d) -> (%q, %v), want (%q, nil)", seq, cmd, err, "(+ 1 2)")
	}
	if next, err := st.NextCmdSeq(); next != seq+1 || err != nil {
		t.Errorf("NextCmdSeq -> (%d, %v), want (%d, nil)", next, err, seq+1)
	}
}
