// Package client implements a minimal line-mode client for the repld
// console. It exists because plain netcat does not speak the interrupt
// protocol: ^C should stop the evaluation on the server, not kill the
// connection.
package client

import (
	"io"
	"net"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"
	"src.repld.dev/pkg/logutil"
	"src.repld.dev/pkg/prog"
	"src.repld.dev/pkg/shell"
)

var logger = logutil.GetLogger("[client] ")

// Program is the client subprogram, selected by the -connect flag.
type Program struct{}

func (p Program) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	if f.Connect == "" {
		return prog.ErrNotSuitable
	}
	if len(args) > 0 {
		return prog.BadUsage("arguments are only allowed with -ctl")
	}
	return run(fds, f.Connect)
}

func run(fds [3]*os.File, addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	tcpConn := conn.(*net.TCPConn)
	defer tcpConn.Close()

	// When stdin is a terminal, ^C is turned into the server-side
	// interrupt sequence. In batch mode (a piped script) the default
	// behavior of dying on SIGINT is the right one.
	if isatty.IsTerminal(fds[0].Fd()) {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		defer signal.Stop(sigCh)
		go func() {
			for range sigCh {
				if err := sendInterrupt(tcpConn); err != nil {
					logger.Println("send interrupt:", err)
				}
			}
		}()
	}

	copyDone := make(chan error, 1)
	go func() {
		_, err := io.Copy(fds[1], tcpConn)
		copyDone <- err
	}()

	if _, err := io.Copy(tcpConn, fds[0]); err != nil {
		logger.Println("copy input:", err)
	}
	// Stdin is exhausted. Log any shell out, and half-close so that the
	// server sees EOF after the logout line; its close then ends the
	// output copy above.
	if err := sendLogout(tcpConn); err == nil {
		tcpConn.CloseWrite()
	}
	return <-copyDone
}

// sendInterrupt writes the telnet interrupt-process sequence. The trailing
// newline pushes the sequence through the server's line reader.
func sendInterrupt(w io.Writer) error {
	_, err := w.Write([]byte{shell.IAC, shell.IP, '\n'})
	return err
}

// sendLogout writes a lone EOT line, which logs out of a shell if one is
// attached.
func sendLogout(w io.Writer) error {
	_, err := w.Write([]byte{shell.EOT, '\n'})
	return err
}
