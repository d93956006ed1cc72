// Package ctl implements the control service of the repld server and its
// command-line client: a JSON-RPC interface over a Unix socket for
// inspecting and managing a running server.
package ctl

import (
	"time"

	"src.repld.dev/pkg/logutil"
	"src.repld.dev/pkg/store/storedefs"
)

var logger = logutil.GetLogger("[ctl] ")

// Status describes a running server. Pid, CPUPercent and RSSBytes are
// filled in by the control service; the rest comes from the backend.
type Status struct {
	Pid            int     `json:"pid"`
	Version        string  `json:"version"`
	Uptime         string  `json:"uptime"`
	Conns          int     `json:"conns"`
	TotalConns     int     `json:"totalConns"`
	Shells         int     `json:"shells"`
	TotalShells    int     `json:"totalShells"`
	Evals          int     `json:"evals"`
	EvalsAllTime   int     `json:"evalsAllTime"`
	HistoryEnabled bool    `json:"historyEnabled"`
	HistorySize    int     `json:"historySize"`
	CPUPercent     float64 `json:"cpuPercent"`
	RSSBytes       uint64  `json:"rssBytes"`
}

// Session describes one connected console.
type Session struct {
	ID      int       `json:"id"`
	Kind    string    `json:"kind"`
	Peer    string    `json:"peer"`
	Started time.Time `json:"started"`
	Evals   int       `json:"evals"`
	InShell bool      `json:"inShell"`
}

// HistoryParams are the parameters of the repld.history method.
type HistoryParams struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit"`
}

// Backend is the view of a running server that the control service exposes.
// It is implemented by the server package.
type Backend interface {
	Status() Status
	Sessions() []Session
	History(prefix string, limit int) ([]storedefs.Cmd, error)
	Shutdown()
}
