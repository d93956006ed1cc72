package testutil

import "testing"

func TestRecover(t *testing.T) {
	if r := Recover(func() {}); r != nil {
		t.Errorf("Recover(func not panicking) = %v, want nil", r)
	}
	if r := Recover(func() { panic("unreachable") }); r != "unreachable" {
		t.Errorf("Recover(func panicking) = %v, want unreachable", r)
	}
}
