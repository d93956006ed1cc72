package client

import (
	"bytes"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"src.repld.dev/pkg/prog/progtest"
	"src.repld.dev/pkg/testutil"
)

func TestSendInterrupt(t *testing.T) {
	var buf bytes.Buffer
	if err := sendInterrupt(&buf); err != nil {
		t.Fatalf("sendInterrupt: %v", err)
	}
	if want := []byte{0xff, 0xf4, '\n'}; !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("sendInterrupt wrote %v, want %v", buf.Bytes(), want)
	}
}

func TestSendLogout(t *testing.T) {
	var buf bytes.Buffer
	if err := sendLogout(&buf); err != nil {
		t.Fatalf("sendLogout: %v", err)
	}
	if want := []byte{0x04, '\n'}; !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("sendLogout wrote %v, want %v", buf.Bytes(), want)
	}
}

func TestRun_PumpsBothWaysAndLogsOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.WriteString(conn, "hello\n")
		b, _ := io.ReadAll(conn)
		received <- string(b)
	}()

	stdinR, stdinW := testutil.MustPipe()
	stdoutR, stdoutW := testutil.MustPipe()
	defer stdinR.Close()
	defer stdoutR.Close()

	runDone := make(chan error, 1)
	go func() {
		runDone <- run([3]*os.File{stdinR, stdoutW, stdoutW}, ln.Addr().String())
	}()

	io.WriteString(stdinW, "(+ 1 2)\n")
	stdinW.Close()

	select {
	case got := <-received:
		if want := "(+ 1 2)\n\x04\n"; got != want {
			t.Errorf("server received %q, want %q", got, want)
		}
	case <-time.After(testutil.Scaled(5 * time.Second)):
		t.Fatal("server did not receive the input")
	}
	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("run -> error %v", err)
		}
	case <-time.After(testutil.Scaled(5 * time.Second)):
		t.Fatal("run did not return")
	}

	stdoutW.Close()
	out, _ := io.ReadAll(stdoutR)
	if string(out) != "hello\n" {
		t.Errorf("client wrote %q to stdout, want %q", out, "hello\n")
	}
}

func TestProgram_BadUsage(t *testing.T) {
	progtest.Test(t, Program{},
		progtest.ThatRepld("-connect", "127.0.0.1:1", "extra").
			ExitsWith(2).
			WritesStderrContaining("arguments are only allowed with -ctl"),
	)
}

func TestProgram_UnreachableServer(t *testing.T) {
	exit, _, stderr := progtest.Run(Program{}, "-connect", "127.0.0.1:0")
	if exit != 2 {
		t.Errorf("exit code %d, want 2", exit)
	}
	if !bytes.Contains([]byte(stderr), []byte("dial tcp")) {
		t.Errorf("stderr %q lacks dial error", stderr)
	}
}
