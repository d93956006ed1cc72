// Package logutil provides the process-wide debug log.
//
// Packages obtain a logger with GetLogger at init time; all loggers write to
// a common sink, which discards messages until redirected with SetOutput or
// SetOutputFile. The redirection functions are meant to be called once,
// early in startup, before any goroutines log concurrently.
package logutil

import (
	"io"
	"log"
	"os"
)

var (
	out     io.Writer = io.Discard
	outFile *os.File
	loggers []*log.Logger
)

// GetLogger returns a logger that prefixes each message with the given
// string, conventionally "[pkgname] ".
func GetLogger(prefix string) *log.Logger {
	logger := log.New(out, prefix, log.LstdFlags)
	loggers = append(loggers, logger)
	return logger
}

// SetOutput redirects the output of all loggers obtained from GetLogger to
// w. If the previous output was a file opened by SetOutputFile, it is
// closed.
func SetOutput(w io.Writer) {
	closeOutFile()
	outFile = nil
	setOutput(w)
}

// SetOutputFile redirects the output of all loggers obtained from GetLogger
// to the named file, opened for appending. An empty name reverts to
// discarding. If the previous output was a file opened by SetOutputFile, it
// is closed.
func SetOutputFile(name string) error {
	if name == "" {
		SetOutput(io.Discard)
		return nil
	}
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	closeOutFile()
	outFile = f
	setOutput(f)
	return nil
}

func closeOutFile() {
	if outFile != nil {
		outFile.Close()
	}
}

func setOutput(w io.Writer) {
	out = w
	for _, logger := range loggers {
		logger.SetOutput(out)
	}
}
