package server

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"src.repld.dev/pkg/shell"
)

// lineReader yields one line of client input at a time.
type lineReader interface {
	// ReadLine returns the next line with the terminator stripped. A final
	// unterminated fragment is returned as a line of its own before the read
	// error is reported.
	ReadLine() (string, error)
}

// Console is one client connection. It reads lines and routes them either
// to the command table or, once a lisp command has started one, to the
// attached shell. It is also the transport that shell output goes out on.
type Console struct {
	srv *server
	rd  lineReader
	w   io.Writer

	id      int
	kind    string
	peer    string
	started time.Time
	// Lines submitted to a shell. Guarded by srv.mu.
	evals int

	// Serializes writes from the reader goroutine and the shell's poller.
	wmu sync.Mutex

	mu sync.Mutex
	sh *shell.Shell

	// Set by the quit command. Only the reader goroutine touches this.
	quit bool
}

func (c *Console) run() {
	c.write(c.srv.greeting())
	c.write(c.srv.cfg.Console.Prompt)
	for !c.quit {
		line, err := c.rd.ReadLine()
		if err != nil {
			if err != io.EOF {
				logger.Println("read:", err)
			}
			break
		}
		c.dispatch(line)
	}
	if sh := c.shell(); sh != nil {
		sh.Close()
	}
}

func (c *Console) dispatch(line string) {
	if sh := c.shell(); sh != nil && !sh.Closed() {
		c.srv.countEval(c)
		c.srv.record(line)
		sh.Submit(line)
		return
	}
	c.runCommand(line)
}

func (c *Console) shell() *shell.Shell {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sh
}

func (c *Console) inShell() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sh != nil && !c.sh.Closed()
}

// Send writes a chunk of shell output to the client.
func (c *Console) Send(s string) error { return c.write(s) }

// SendPrompt writes the console prompt. The shell calls this as it
// terminates; the console is back in command mode.
func (c *Console) SendPrompt() { c.write(c.srv.cfg.Console.Prompt) }

// SetShell attaches or detaches the shell that input lines are routed to.
func (c *Console) SetShell(sh *shell.Shell) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sh = sh
}

func (c *Console) write(s string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := io.WriteString(c.w, s)
	return err
}

func (c *Console) writef(format string, args ...any) {
	c.write(fmt.Sprintf(format, args...))
}

// netReader reads lines from a byte stream. A trailing fragment without a
// terminator is delivered as a line before the error, so that a client that
// sends ^D and nothing else is still heard.
type netReader struct {
	r   *bufio.Reader
	err error
}

func (rd *netReader) ReadLine() (string, error) {
	if rd.err != nil {
		return "", rd.err
	}
	line, err := rd.r.ReadString('\n')
	if err != nil {
		if line == "" {
			return "", err
		}
		rd.err = err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
