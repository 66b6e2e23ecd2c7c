package session

import (
	"regexp"
	"strings"

	"github.com/golang/glog"

	"github.com/brunopacheco1/gnucobol-debug/api"
	"github.com/brunopacheco1/gnucobol-debug/mi"
)

var (
	miPrefix  = regexp.MustCompile(`^(\d*|undefined)[*+=~@&^]`)
	gdbPrompt = regexp.MustCompile(`^(\d*|undefined)\(gdb\)`)
)

// isMILine classifies one complete line: MI protocol traffic goes to the
// parser, everything else is inferior program output.
func isMILine(line string) bool {
	return miPrefix.MatchString(line) || gdbPrompt.MatchString(line)
}

// handleStdoutData consumes one chunk from the child's stdout. The buffer is
// split on the last newline; a trailing partial chunk that does not already
// match the MI line prefix is treated as inferior output and flushed without
// waiting for its newline so interactive prompts from the debuggee appear
// promptly.
func (s *Session) handleStdoutData(data string) {
	s.outBuf += data
	if i := strings.LastIndexByte(s.outBuf, '\n'); i >= 0 {
		complete := s.outBuf[:i]
		s.outBuf = s.outBuf[i+1:]
		for _, line := range strings.Split(complete, "\n") {
			s.handleLine(strings.TrimSuffix(line, "\r"))
		}
	}
	if s.outBuf != "" && !isMILine(s.outBuf) {
		s.emitMsg(api.MsgStdout, s.outBuf)
		s.outBuf = ""
	}
}

// handleStderrData consumes one chunk from the child's stderr; stderr is
// always flushed, complete lines first, any partial remainder raw.
func (s *Session) handleStderrData(data string) {
	s.errBuf += data
	if i := strings.LastIndexByte(s.errBuf, '\n'); i >= 0 {
		complete := s.errBuf[:i]
		s.errBuf = s.errBuf[i+1:]
		for _, line := range strings.Split(complete, "\n") {
			if line != "" {
				s.emitMsg(api.MsgStderr, strings.TrimSuffix(line, "\r"))
			}
		}
	}
	if s.errBuf != "" {
		s.emitMsg(api.MsgStderr, s.errBuf)
		s.errBuf = ""
	}
}

func (s *Session) handleLine(line string) {
	if line == "" {
		return
	}
	if !isMILine(line) {
		s.emitMsg(api.MsgStdout, line)
		return
	}
	if gdbPrompt.MatchString(line) {
		return
	}
	glog.V(3).Infof("<- %s", line)
	rec, err := mi.ParseRecord(line)
	if err != nil {
		glog.Errorf("dropping MI line: %v", err)
		s.emitMsg(api.MsgLog, err.Error())
		return
	}
	s.dispatch(rec)
}

func (s *Session) dispatch(rec *mi.Record) {
	claimed := false
	if rec.HasToken && rec.Class != "" {
		s.mu.Lock()
		p := s.pending[rec.Token]
		delete(s.pending, rec.Token)
		s.mu.Unlock()

		if p == nil {
			glog.Warningf("Unhandled token %d: %s", rec.Token, rec.Raw)
		} else {
			claimed = true
			if rec.Class == mi.ResultError && !p.suppress {
				p.ch <- Outcome{Record: rec, Err: &CommandError{
					Command: p.command,
					Msg:     rec.Results.GetString("msg"),
				}}
			} else {
				p.ch <- Outcome{Record: rec}
			}
		}
	}
	if rec.Class == mi.ResultError && !claimed {
		if msg := rec.Results.GetString("msg"); msg != "" {
			s.emitMsg(api.MsgStderr, msg)
		}
	}
	for _, oob := range rec.OutOfBand {
		switch {
		case oob.Stream != nil:
			s.emitMsg(streamChannel(oob.Stream.Type), oob.Stream.Content)
		case oob.Async != nil:
			s.handleAsync(oob.Async, rec.Raw)
		}
	}
}

func streamChannel(typ mi.StreamType) api.MsgType {
	switch typ {
	case mi.TargetStream:
		return api.MsgTarget
	case mi.LogStream:
		return api.MsgLog
	default:
		return api.MsgConsole
	}
}

func (s *Session) handleAsync(rec *mi.AsyncRecord, raw string) {
	switch rec.Type {
	case mi.ExecAsync:
		s.emit(&api.Event{Name: api.ExecAsyncOutput, AsyncOutput: &api.AsyncOutputData{
			Class: rec.Class,
			Raw:   raw,
		}})
		s.handleExec(rec)
	case mi.NotifyAsync:
		switch rec.Class {
		case "thread-created":
			id, _ := rec.Results.GetInt("id")
			s.emit(&api.Event{Name: api.ThreadCreated, Thread: &api.ThreadData{ID: id}})
		case "thread-exited":
			id, _ := rec.Results.GetInt("id")
			s.emit(&api.Event{Name: api.ThreadExited, Thread: &api.ThreadData{ID: id}})
		default:
			glog.V(3).Infof("ignoring notify %s", rec.Class)
		}
	case mi.StatusAsync:
		glog.V(3).Infof("ignoring status %s", rec.Class)
	}
}

func (s *Session) handleExec(rec *mi.AsyncRecord) {
	switch rec.Class {
	case "running":
		s.emit(&api.Event{Name: api.Running})
	case "stopped":
		s.handleStopped(rec)
	}
}

func (s *Session) handleStopped(rec *mi.AsyncRecord) {
	reason := rec.Results.GetString("reason")
	threadID, _ := rec.Results.GetInt("thread-id")
	data := &api.StoppedData{Reason: reason, ThreadID: threadID}

	switch reason {
	case "breakpoint-hit":
		s.emit(&api.Event{Name: api.BreakpointHit, Stopped: data})
	case "end-stepping-range":
		s.emit(&api.Event{Name: api.StepEnd, Stopped: data})
	case "function-finished":
		s.emit(&api.Event{Name: api.StepOutEnd, Stopped: data})
	case "signal-received":
		s.emit(&api.Event{Name: api.SignalStop, Stopped: data})
	case "exited-normally":
		s.emit(&api.Event{Name: api.ExitedNormally})
	case "exited":
		s.emitMsg(api.MsgLog, "Inferior exited with code "+rec.Results.GetString("exit-code"))
		s.emit(&api.Event{Name: api.ExitedNormally})
	default:
		s.emitMsg(api.MsgLog, "Not implemented stop reason (assuming exception): "+reason)
		s.emit(&api.Event{Name: api.Stopped, Stopped: data})
	}
}
