package testutil

import "os"

// Must panics if the error value is not nil. It is typically used like this:
//
//	testutil.Must(someFunction(...))
//
// Where someFunction returns a single error value. This is useful with
// functions like os.Mkdir to succinctly ensure the test fails to proceed if
// an operation required for the test setup fails.
func Must(err error) {
	if err != nil {
		panic(err)
	}
}

// MustPipe calls os.Pipe and panics if it fails.
func MustPipe() (*os.File, *os.File) {
	r, w, err := os.Pipe()
	if err != nil {
		panic(err)
	}
	return r, w
}

// MustWriteFile writes data to a file with permission 0644, and panics if it
// fails.
func MustWriteFile(filename, data string) {
	err := os.WriteFile(filename, []byte(data), 0644)
	if err != nil {
		panic(err)
	}
}

// MustMkdirAll calls os.MkdirAll with permission 0700 for each argument, and
// panics if any call fails.
func MustMkdirAll(names ...string) {
	for _, name := range names {
		err := os.MkdirAll(name, 0700)
		if err != nil {
			panic(err)
		}
	}
}
