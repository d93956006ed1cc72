package shell

// Telnet RFC 854 command bytes, plus the RFC 860 timing mark. They are
// exported so that clients can speak the same protocol.
const (
	IAC        byte = 0xff // interpret as command
	IP         byte = 0xf4 // interrupt process
	AO         byte = 0xf5 // abort output
	EL         byte = 0xf8 // erase line
	WILL       byte = 0xfb
	TimingMark byte = 0x06
)

// ASCII control bytes with conventional keyboard bindings.
const (
	EOT byte = 0x04 // ^D
	SYN byte = 0x16 // ^C
	CAN byte = 0x18 // ^X
	ESC byte = 0x1b // ^[
)

// lineDiscipline classifies one line of input and performs the resulting
// action. It reports whether an evaluation was started, in which case output
// must be relayed by a poller task; for every other action the full response
// is already in the local output buffer when it returns.
func (sh *Shell) lineDiscipline(line string) (evaluated bool) {
	logger.Printf("line discipline: %d bytes %q", len(line), line)

	if len(line) == 0 {
		sh.doEval("\n")
		return true
	}

	// Telnet-encoded abort and interrupt sequences arrive at the end of
	// the line. Search for IAC at most 20 bytes from the end; looking
	// further back would find control-like bytes inside legitimate
	// program text.
	m := len(line) - 20
	if m < 0 {
		m = 0
	}
	for i := len(line) - 2; i >= m; i-- {
		if line[i] != IAC {
			continue
		}
		switch line[i+1] {
		case IP, AO:
			// Acknowledge with IAC WILL TIMING-MARK so that a telnet
			// client does not sit there flushing output forever.
			sh.ev.Interrupt()
			sh.ev.ClearPending()
			sh.putOutput(sh.abortPrompt)
			return false
		case EL:
			// Erase line: ignore the line, just reissue the prompt.
			sh.putOutput(sh.Prompt())
			return false
		}
	}

	// Don't evaluate if the line is terminated by escape (^[), cancel
	// (^X) or quit (^C). These are typically sent by netcat rather than
	// telnet.
	switch line[len(line)-1] {
	case SYN, CAN, ESC:
		sh.ev.Interrupt()
		sh.ev.ClearPending()
		sh.mu.Lock()
		sh.outBuf.WriteString("\n")
		sh.outBuf.WriteString(sh.normalPrompt)
		sh.mu.Unlock()
		return false
	}

	// A line ending in EOT (^D at the keyboard), or a single period on a
	// line by itself, means "leave the shell". Only when no partial
	// expression is pending: a period can legitimately continue one.
	if !sh.ev.InputPending() &&
		(line[len(line)-1] == EOT || line == ".") {
		sh.mu.Lock()
		sh.selfDestruct = true
		sh.state = stateTerminating
		notice := sh.showPrompt
		sh.mu.Unlock()
		if notice {
			sh.putOutput("Exiting the shell\n")
		}
		return false
	}

	// The transport cuts the newline off every line. Re-insert it;
	// otherwise a trailing comment would comment out the rest of a
	// multi-line expression.
	sh.doEval(line + "\n")
	return true
}
