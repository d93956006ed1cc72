package server

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"src.repld.dev/pkg/shell"
)

type command struct {
	help string
	fn   func(c *Console, args []string) error
}

var commands map[string]command

// Populated in init so that the help command can range over the table.
func init() {
	commands = map[string]command{
		"help":     {"list available commands", helpCmd},
		"lisp":     {"enter the lisp shell; \"lisp hush\" suppresses output and prompts", lispCmd},
		"history":  {"show command history: history [limit] [prefix]", historyCmd},
		"stats":    {"show server statistics", statsCmd},
		"quit":     {"close this connection", quitCmd},
		"shutdown": {"stop the server", shutdownCmd},
	}
}

func (c *Console) runCommand(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		c.write(c.srv.cfg.Console.Prompt)
		return
	}
	cmd, ok := commands[fields[0]]
	if !ok {
		c.writef("unknown command %q; try help\n", fields[0])
		c.write(c.srv.cfg.Console.Prompt)
		return
	}
	if err := cmd.fn(c, fields[1:]); err != nil {
		c.writef("error: %v\n", err)
	}
	// The lisp command hands the prompt to the shell; quit closes the
	// connection.
	if c.shell() == nil && !c.quit {
		c.write(c.srv.cfg.Console.Prompt)
	}
}

func helpCmd(c *Console, args []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.writef("%-9s %s\n", name, commands[name].help)
	}
	return nil
}

func lispCmd(c *Console, args []string) error {
	hush := false
	switch {
	case len(args) == 0:
	case len(args) == 1 && args[0] == "hush":
		hush = true
	default:
		return errors.New("usage: lisp [hush]")
	}

	cfg := c.srv.cfg.Shell
	sh := shell.New(c.srv.interp.NewSession())
	sh.SetPrompts(cfg.Prompt, cfg.PendingPrompt)
	if cfg.HideOutput || hush {
		sh.HushOutput(true)
	}
	if cfg.HidePrompt || hush {
		sh.HushPrompt(true)
	}
	c.srv.countShell()
	sh.Attach(c)
	if p := sh.Prompt(); p != "" {
		c.write("Entering the lisp shell. Use ^D or a single . on a line to exit.\n")
		c.write(p)
	}
	return nil
}

func historyCmd(c *Console, args []string) error {
	st := c.srv.st
	if st == nil {
		return errors.New("history is not enabled; start the server with -db")
	}
	limit, prefix := 10, ""
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.New("usage: history [limit] [prefix]")
		}
		limit = n
	}
	if len(args) > 1 {
		prefix = args[1]
	}
	if len(args) > 2 {
		return errors.New("usage: history [limit] [prefix]")
	}
	cmds, err := st.CmdsWithPrefix(prefix, limit)
	if err != nil {
		return err
	}
	for _, cmd := range cmds {
		c.writef("%5d  %s\n", cmd.Seq, cmd.Text)
	}
	return nil
}

func statsCmd(c *Console, args []string) error {
	st := c.srv.Status()
	c.writef("uptime: %s\n", st.Uptime)
	c.writef("connections: %d (total %d)\n", st.Conns, st.TotalConns)
	c.writef("shells: %d (total %d)\n", st.Shells, st.TotalShells)
	c.writef("lines evaluated: %d (all time %d)\n", st.Evals, st.EvalsAllTime)
	if st.HistoryEnabled {
		c.writef("history entries: %d\n", st.HistorySize)
	}
	return nil
}

func quitCmd(c *Console, args []string) error {
	c.write("bye\n")
	c.quit = true
	return nil
}

func shutdownCmd(c *Console, args []string) error {
	c.write("shutting down\n")
	c.srv.Shutdown()
	return nil
}
