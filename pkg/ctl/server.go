package ctl

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sourcegraph/jsonrpc2"
	"src.repld.dev/pkg/store/storedefs"
)

var (
	errMethodNotFound = &jsonrpc2.Error{
		Code: jsonrpc2.CodeMethodNotFound, Message: "method not found"}
	errInvalidParams = &jsonrpc2.Error{
		Code: jsonrpc2.CodeInvalidParams, Message: "invalid params"}
)

// Server serves the control interface on a Unix socket.
type Server struct {
	backend  Backend
	listener net.Listener
}

// NewServer listens on the given Unix socket path. The socket is created
// with access restricted to the owner.
func NewServer(sockpath string, backend Backend) (*Server, error) {
	listener, err := listenSocket(sockpath)
	if err != nil {
		return nil, err
	}
	return &Server{backend: backend, listener: listener}, nil
}

// Serve accepts and serves control connections until the listener is closed.
func (s *Server) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logger.Println("accept:", err)
			}
			return
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rpcConn := jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(conn, jsonrpc2.PlainObjectCodec{}),
		s.handler())
	<-rpcConn.DisconnectNotify()
}

// Close closes the listener. The socket file is unlinked as part of closing.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) handler() jsonrpc2.Handler {
	return routingHandler(map[string]method{
		"repld.status":   s.status,
		"repld.sessions": s.sessions,
		"repld.history":  s.history,
		"repld.shutdown": s.shutdown,
	})
}

type method func(context.Context, jsonrpc2.JSONRPC2, json.RawMessage) (any, error)

func routingHandler(methods map[string]method) jsonrpc2.Handler {
	return jsonrpc2.HandlerWithError(func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
		fn, ok := methods[req.Method]
		if !ok {
			return nil, errMethodNotFound
		}
		var rawParams json.RawMessage
		if req.Params != nil {
			rawParams = *req.Params
		}
		return fn(ctx, conn, rawParams)
	})
}

// Handler implementations. These are all called synchronously.

func (s *Server) status(_ context.Context, _ jsonrpc2.JSONRPC2, _ json.RawMessage) (any, error) {
	st := s.backend.Status()
	st.Pid = os.Getpid()
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if cpu, err := proc.CPUPercent(); err == nil {
			st.CPUPercent = cpu
		}
		if mem, err := proc.MemoryInfo(); err == nil {
			st.RSSBytes = mem.RSS
		}
	}
	return st, nil
}

func (s *Server) sessions(_ context.Context, _ jsonrpc2.JSONRPC2, _ json.RawMessage) (any, error) {
	sessions := s.backend.Sessions()
	if sessions == nil {
		sessions = []Session{}
	}
	return sessions, nil
}

func (s *Server) history(_ context.Context, _ jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params HistoryParams
	if rawParams != nil {
		if json.Unmarshal(rawParams, &params) != nil {
			return nil, errInvalidParams
		}
	}
	cmds, err := s.backend.History(params.Prefix, params.Limit)
	if err != nil {
		return nil, &jsonrpc2.Error{
			Code: jsonrpc2.CodeInternalError, Message: err.Error()}
	}
	if cmds == nil {
		cmds = []storedefs.Cmd{}
	}
	return cmds, nil
}

func (s *Server) shutdown(_ context.Context, _ jsonrpc2.JSONRPC2, _ json.RawMessage) (any, error) {
	s.backend.Shutdown()
	return nil, nil
}
