package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"src.repld.dev/pkg/prog"
	"src.repld.dev/pkg/store/storedefs"
)

const callTimeout = 5 * time.Second

// Program is the control client subprogram, selected by -ctl.
type Program struct{}

func (p Program) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	if !f.Ctl {
		return prog.ErrNotSuitable
	}
	if f.Sock == "" {
		return prog.BadUsage("-ctl requires -sock")
	}
	if len(args) == 0 {
		return prog.BadUsage("-ctl requires a command: status, sessions, history or shutdown")
	}

	var method string
	var params any
	switch args[0] {
	case "status", "sessions", "shutdown":
		if len(args) > 1 {
			return prog.BadUsage(args[0] + " takes no arguments")
		}
		method, params = "repld."+args[0], struct{}{}
	case "history":
		hp := HistoryParams{Limit: 10}
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return prog.BadUsage("history limit must be a number")
			}
			hp.Limit = n
		}
		if len(args) > 2 {
			hp.Prefix = args[2]
		}
		if len(args) > 3 {
			return prog.BadUsage("history takes at most a limit and a prefix")
		}
		method, params = "repld.history", hp
	default:
		return prog.BadUsage("unknown ctl command: " + args[0])
	}

	result, err := call(f.Sock, method, params)
	if err != nil {
		return err
	}

	out := fds[1]
	if f.JSON {
		var buf bytes.Buffer
		if err := json.Indent(&buf, result, "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		_, err := out.Write(buf.Bytes())
		return err
	}
	switch args[0] {
	case "status":
		return printStatus(out, result)
	case "sessions":
		return printSessions(out, result)
	case "history":
		return printHistory(out, result)
	default: // shutdown
		fmt.Fprintln(out, "server is shutting down")
		return nil
	}
}

// call performs one RPC on the control socket.
func call(sockpath, method string, params any) (json.RawMessage, error) {
	conn, err := net.DialTimeout("unix", sockpath, callTimeout)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to server at %s: %w", sockpath, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	rpcConn := jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(conn, jsonrpc2.PlainObjectCodec{}),
		routingHandler(nil))
	defer rpcConn.Close()

	var result json.RawMessage
	if err := rpcConn.Call(ctx, method, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func printStatus(out io.Writer, result json.RawMessage) error {
	var st Status
	if err := json.Unmarshal(result, &st); err != nil {
		return err
	}
	fmt.Fprintf(out, "pid: %d\n", st.Pid)
	fmt.Fprintf(out, "version: %s\n", st.Version)
	fmt.Fprintf(out, "uptime: %s\n", st.Uptime)
	fmt.Fprintf(out, "connections: %d (total %d)\n", st.Conns, st.TotalConns)
	fmt.Fprintf(out, "shells: %d (total %d)\n", st.Shells, st.TotalShells)
	fmt.Fprintf(out, "lines evaluated: %d (all time %d)\n", st.Evals, st.EvalsAllTime)
	if st.HistoryEnabled {
		fmt.Fprintf(out, "history entries: %d\n", st.HistorySize)
	} else {
		fmt.Fprintln(out, "history: disabled")
	}
	fmt.Fprintf(out, "cpu: %.1f%%\n", st.CPUPercent)
	fmt.Fprintf(out, "rss: %d MB\n", st.RSSBytes/(1<<20))
	return nil
}

func printSessions(out io.Writer, result json.RawMessage) error {
	var sessions []Session
	if err := json.Unmarshal(result, &sessions); err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "no sessions")
		return nil
	}
	for _, s := range sessions {
		state := "console"
		if s.InShell {
			state = "lisp"
		}
		fmt.Fprintf(out, "%3d  %-9s  %-7s  %s  %d evals, connected %s\n",
			s.ID, s.Kind, state, s.Peer, s.Evals,
			time.Since(s.Started).Round(time.Second))
	}
	return nil
}

func printHistory(out io.Writer, result json.RawMessage) error {
	var cmds []storedefs.Cmd
	if err := json.Unmarshal(result, &cmds); err != nil {
		return err
	}
	for _, c := range cmds {
		fmt.Fprintf(out, "%5d  %s\n", c.Seq, c.Text)
	}
	return nil
}
