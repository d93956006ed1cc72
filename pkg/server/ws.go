package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// The endpoint speaks the same line protocol as the TCP console and
	// holds no browser state, so cross-origin pages may connect.
	CheckOrigin: func(*http.Request) bool { return true },
}

// httpHandler returns the handler for the WebSocket endpoint.
func (s *server) httpHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/shell", s.serveShellWS)
	return mux
}

func (s *server) serveShellWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Println("websocket upgrade:", err)
		return
	}
	defer conn.Close()
	rw := &wsRW{conn: conn}
	c := s.newConsole(rw, rw, "websocket", r.RemoteAddr)
	defer s.dropConsole(c)
	c.run()
}

// wsRW adapts a WebSocket connection to the console's line model: each text
// message from the client is one line, and each write becomes one message.
type wsRW struct {
	conn *websocket.Conn
}

func (rw *wsRW) ReadLine() (string, error) {
	for {
		typ, data, err := rw.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "", io.EOF
			}
			return "", err
		}
		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
}

func (rw *wsRW) Write(p []byte) (int, error) {
	if err := rw.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
