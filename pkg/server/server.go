// Package server implements the repld server: a TCP console hosting
// interactive lisp shells, with an optional WebSocket endpoint, persistent
// command history and a control socket.
package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"time"

	"src.repld.dev/pkg/buildinfo"
	"src.repld.dev/pkg/ctl"
	"src.repld.dev/pkg/lisp"
	"src.repld.dev/pkg/logutil"
	"src.repld.dev/pkg/prog"
	"src.repld.dev/pkg/store"
	"src.repld.dev/pkg/store/storedefs"
)

var logger = logutil.GetLogger("[server] ")

// Name of the store variable holding the all-time eval count.
const evalsTotalVar = "evals-total"

type server struct {
	cfg    *Config
	interp *lisp.Interp
	st     store.DBStore // nil when history is disabled

	start     time.Time
	prevEvals int

	mu          sync.Mutex
	consoles    map[*Console]struct{}
	nextID      int
	totalConns  int
	totalShells int
	totalEvals  int

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

func newServer(cfg *Config, st store.DBStore) *server {
	s := &server{
		cfg: cfg, interp: lisp.New(), st: st,
		start:    time.Now(),
		consoles: make(map[*Console]struct{}),
		shutdown: make(chan struct{}),
	}
	if st != nil {
		if v, err := st.Var(evalsTotalVar); err == nil {
			s.prevEvals, _ = strconv.Atoi(v)
		}
	}
	return s
}

func (s *server) greeting() string {
	return "repld " + buildinfo.Value.Version + "\ntype help for a list of commands\n"
}

func (s *server) serveConn(conn net.Conn) {
	defer conn.Close()
	c := s.newConsole(&netReader{r: bufio.NewReader(conn)}, conn,
		"tcp", conn.RemoteAddr().String())
	defer s.dropConsole(c)
	c.run()
}

func (s *server) newConsole(rd lineReader, w io.Writer, kind, peer string) *Console {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.totalConns++
	c := &Console{
		srv: s, rd: rd, w: w,
		id: s.nextID, kind: kind, peer: peer, started: time.Now(),
	}
	s.consoles[c] = struct{}{}
	return c
}

func (s *server) dropConsole(c *Console) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.consoles, c)
}

func (s *server) countShell() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalShells++
}

func (s *server) countEval(c *Console) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalEvals++
	c.evals++
}

// record adds a line to the command history. Control lines and the logout
// line are not history.
func (s *server) record(line string) {
	if s.st == nil || line == "" || line == "." {
		return
	}
	for i := 0; i < len(line); i++ {
		if line[i] < 0x20 && line[i] != '\t' || line[i] == 0xff {
			return
		}
	}
	if _, err := s.st.AddCmd(line); err != nil {
		logger.Println("failed to record history:", err)
	}
}

// saveTotals persists the all-time eval count across restarts.
func (s *server) saveTotals() {
	if s.st == nil {
		return
	}
	s.mu.Lock()
	evals := s.totalEvals
	s.mu.Unlock()
	err := s.st.SetVar(evalsTotalVar, strconv.Itoa(s.prevEvals+evals))
	if err != nil {
		logger.Println("failed to save counters:", err)
	}
}

// Status implements ctl.Backend.
func (s *server) Status() ctl.Status {
	s.mu.Lock()
	shells := 0
	for c := range s.consoles {
		if c.inShell() {
			shells++
		}
	}
	st := ctl.Status{
		Version:      buildinfo.Value.Version,
		Uptime:       time.Since(s.start).Round(time.Second).String(),
		Conns:        len(s.consoles),
		TotalConns:   s.totalConns,
		Shells:       shells,
		TotalShells:  s.totalShells,
		Evals:        s.totalEvals,
		EvalsAllTime: s.prevEvals + s.totalEvals,
	}
	s.mu.Unlock()
	if s.st != nil {
		st.HistoryEnabled = true
		if next, err := s.st.NextCmdSeq(); err == nil {
			st.HistorySize = next - 1
		}
	}
	return st
}

// Sessions implements ctl.Backend.
func (s *server) Sessions() []ctl.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := make([]ctl.Session, 0, len(s.consoles))
	for c := range s.consoles {
		sessions = append(sessions, ctl.Session{
			ID: c.id, Kind: c.kind, Peer: c.peer,
			Started: c.started, Evals: c.evals, InShell: c.inShell(),
		})
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID < sessions[j].ID
	})
	return sessions
}

// History implements ctl.Backend.
func (s *server) History(prefix string, limit int) ([]storedefs.Cmd, error) {
	if s.st == nil {
		return nil, errors.New("history is not enabled")
	}
	return s.st.CmdsWithPrefix(prefix, limit)
}

// Shutdown implements ctl.Backend. It stops the serve loop; it is also what
// the console shutdown command calls.
func (s *server) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}

// ServeOpts keeps options that can be passed to Serve.
type ServeOpts struct {
	// If not nil, receives the console listener address once the server is
	// ready to accept connections.
	Ready chan<- net.Addr
	// Causes the server to shut down if closed or sent any value. If nil,
	// Serve sets up its own channel by listening to SIGINT and SIGTERM.
	Signals <-chan os.Signal
}

// Serve runs the server with the given configuration until it is stopped by
// a signal, a shutdown command or a control request. It returns the process
// exit status.
func Serve(cfg *Config, opts ServeOpts) int {
	logger.Println("pid is", os.Getpid())
	logger.Println("going to listen", cfg.Listen)
	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		logger.Printf("failed to listen on %s: %v", cfg.Listen, err)
		logger.Println("aborting")
		return 2
	}

	var st store.DBStore
	if cfg.DB != "" {
		st, err = store.NewStore(cfg.DB)
		if err != nil {
			logger.Printf("failed to open history database: %v", err)
			logger.Println("serving without history")
			st = nil
		}
	}

	srv := newServer(cfg, st)

	var ctlServer *ctl.Server
	if cfg.Sock != "" {
		ctlServer, err = ctl.NewServer(cfg.Sock, srv)
		if err != nil {
			logger.Printf("failed to listen on control socket %s: %v", cfg.Sock, err)
			logger.Println("serving without the control service")
		} else {
			go ctlServer.Serve()
		}
	}

	var httpServer *http.Server
	if cfg.HTTP != "" {
		httpServer = &http.Server{Addr: cfg.HTTP, Handler: srv.httpHandler()}
		go func() {
			err := httpServer.ListenAndServe()
			if err != nil && err != http.ErrServerClosed {
				logger.Printf("failed to serve http on %s: %v", cfg.HTTP, err)
			}
		}()
	}

	connCh := make(chan net.Conn, 10)
	listenErrCh := make(chan error, 1)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				listenErrCh <- err
				close(listenErrCh)
				return
			}
			connCh <- conn
		}
	}()

	sigCh := opts.Signals
	if sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
		sigCh = ch
	}

	conns := make(map[net.Conn]struct{})
	connDoneCh := make(chan net.Conn, 10)
	acceptErrCh := listenErrCh
	draining := false

	if opts.Ready != nil {
		opts.Ready <- listener.Addr()
	}

loop:
	for {
		select {
		case sig := <-sigCh:
			logger.Printf("received signal %v", sig)
			break loop
		case <-srv.shutdown:
			logger.Println("shutdown requested")
			break loop
		case err := <-acceptErrCh:
			logger.Println("could not listen:", err)
			if len(conns) == 0 {
				logger.Println("exiting since there are no clients")
				break loop
			}
			logger.Println("continuing to serve until all existing clients exit")
			acceptErrCh = nil
			draining = true
		case conn := <-connCh:
			conns[conn] = struct{}{}
			go func() {
				srv.serveConn(conn)
				connDoneCh <- conn
			}()
		case conn := <-connDoneCh:
			delete(conns, conn)
			if draining && len(conns) == 0 {
				logger.Println("all clients disconnected, exiting")
				break loop
			}
		}
	}

	logger.Printf("going to close %v active connections", len(conns))
	for conn := range conns {
		conn.Close()
	}
	if httpServer != nil {
		httpServer.Close()
	}
	if ctlServer != nil {
		ctlServer.Close()
	}
	srv.saveTotals()
	if st != nil {
		if err := st.Close(); err != nil {
			logger.Println("failed to close storage:", err)
		}
	}
	if err := listener.Close(); err != nil {
		logger.Println("failed to close listener:", err)
	}
	// Ensure that the listener goroutine has exited before returning.
	<-listenErrCh
	return 0
}

// Program is the server subprogram. It runs when no client flag selects
// another subprogram.
type Program struct{}

func (p Program) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	if f.Connect != "" || f.Ctl || f.LSP {
		return prog.ErrNotSuitable
	}
	if len(args) > 0 {
		return prog.BadUsage("arguments are only allowed with -ctl")
	}
	cfg := DefaultConfig()
	if f.ConfigPath != "" {
		loaded, err := LoadConfig(f.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.applyFlags(f)
	return prog.Exit(Serve(cfg, ServeOpts{}))
}
