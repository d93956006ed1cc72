package testutil

// Recover runs f and returns the value recovered from any panic during its
// execution. It returns nil if f did not panic.
func Recover(f func()) (r any) {
	defer func() {
		r = recover()
	}()
	f()
	return
}
