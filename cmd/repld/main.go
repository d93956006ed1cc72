// Repld is a server that hosts interactive lisp shells over TCP and
// WebSocket connections, in the tradition of network REPLs: connect with
// netcat, telnet or the bundled line client, type expressions, and watch
// output stream back while they still run. The same binary contains the
// line client, a control client and a language server for the hosted lisp.
package main

import (
	"os"

	"src.repld.dev/pkg/buildinfo"
	"src.repld.dev/pkg/client"
	"src.repld.dev/pkg/ctl"
	"src.repld.dev/pkg/lsp"
	"src.repld.dev/pkg/prog"
	"src.repld.dev/pkg/server"
)

func main() {
	os.Exit(prog.Run(
		[3]*os.File{os.Stdin, os.Stdout, os.Stderr}, os.Args,
		prog.Composite(
			buildinfo.Program{}, lsp.Program{}, ctl.Program{},
			client.Program{}, server.Program{})))
}
