// Package session drives a GDB child process over its MI2 interpreter:
// outgoing commands are serialized with monotonically increasing tokens,
// incoming lines are parsed into records and dispatched either to the
// pending command that requested them or to the session's event channel.
package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/golang/glog"
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"

	"github.com/brunopacheco1/gnucobol-debug/api"
	"github.com/brunopacheco1/gnucobol-debug/mi"
)

// killDelay is how long Stop/Detach wait for the child to exit before the
// whole process group is killed.
const killDelay = 1 * time.Second

var ErrSessionClosed = errors.New("debugger session closed")

// Outcome is the completion of one MI command.
type Outcome struct {
	Record *mi.Record
	Err    error
}

// CommandError is a GDB error result, annotated with the originating
// command for diagnostics.
type CommandError struct {
	Command string
	Msg     string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("gdb: %s (command %q)", e.Msg, e.Command)
}

// Options configure the child debugger process. A nil Env value deletes the
// key from the inherited environment.
type Options struct {
	Path string
	Args []string
	Cwd  string
	Env  map[string]*string
}

type pending struct {
	command  string
	suppress bool
	ch       chan Outcome
}

// Session owns one child debugger process. All writes to the child's stdin
// go through Send/SendRaw; stdout and stderr are consumed by internal
// goroutines that feed the pending table and the event channel.
type Session struct {
	events chan<- *api.Event

	cmd   *exec.Cmd
	stdin io.Writer

	seq     *atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]*pending
	closed  bool

	outBuf string
	errBuf string

	exited   chan struct{}
	killOnce sync.Once
}

// Spawn starts the child in its own process group and begins consuming its
// output.
func Spawn(opts Options, events chan<- *api.Event) (*Session, error) {
	cmd := exec.Command(opts.Path, opts.Args...)
	cmd.Dir = opts.Cwd
	cmd.Env = overlayEnv(os.Environ(), opts.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning %s: %w", opts.Path, err)
	}
	glog.V(1).Infof("spawned %s (pid %d) in %s", opts.Path, cmd.Process.Pid, opts.Cwd)

	s := newSession(events)
	s.cmd = cmd
	s.stdin = stdin
	go s.readLoop(stdout, s.handleStdoutData)
	go s.readLoop(stderr, s.handleStderrData)
	go s.wait()
	return s, nil
}

func newSession(events chan<- *api.Event) *Session {
	return &Session{
		events:  events,
		seq:     atomic.NewUint64(0),
		pending: make(map[uint64]*pending),
		exited:  make(chan struct{}),
	}
}

// overlayEnv applies overrides on top of the inherited environment. A nil
// value deletes the key.
func overlayEnv(base []string, overrides map[string]*string) []string {
	if len(overrides) == 0 {
		return base
	}
	merged := make(map[string]string, len(base))
	order := make([]string, 0, len(base))
	for _, kv := range base {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				k := kv[:i]
				if _, seen := merged[k]; !seen {
					order = append(order, k)
				}
				merged[k] = kv[i+1:]
				break
			}
		}
	}
	for k, v := range overrides {
		if v == nil {
			delete(merged, k)
			continue
		}
		if _, seen := merged[k]; !seen {
			order = append(order, k)
		}
		merged[k] = *v
	}
	env := make([]string, 0, len(merged))
	for _, k := range order {
		if v, ok := merged[k]; ok {
			env = append(env, k+"="+v)
		}
	}
	return env
}

// Send issues one MI command and returns a future for its result record. A
// GDB error result rejects the future with a *CommandError.
func (s *Session) Send(command string) <-chan Outcome {
	return s.send(command, false)
}

// SendSuppress is Send for best-effort commands: an error result resolves
// the future with the record instead of rejecting it.
func (s *Session) SendSuppress(command string) <-chan Outcome {
	return s.send(command, true)
}

func (s *Session) send(command string, suppress bool) <-chan Outcome {
	ch := make(chan Outcome, 1)
	t := s.seq.Inc()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ch <- Outcome{Err: ErrSessionClosed}
		return ch
	}
	s.pending[t] = &pending{command: command, suppress: suppress, ch: ch}
	s.mu.Unlock()

	glog.V(2).Infof("-> %d-%s", t, command)
	if _, err := fmt.Fprintf(s.stdin, "%d-%s\n", t, command); err != nil {
		s.mu.Lock()
		delete(s.pending, t)
		s.mu.Unlock()
		ch <- Outcome{Err: fmt.Errorf("writing command: %w", err)}
	}
	return ch
}

// SendRaw writes one untokenized line to the child; no reply is matched.
func (s *Session) SendRaw(line string) error {
	glog.V(2).Infof("-> %s", line)
	_, err := fmt.Fprintf(s.stdin, "%s\n", line)
	return err
}

// Stop asks GDB to exit and arms the kill watchdog.
func (s *Session) Stop() error {
	return s.shutdown("-gdb-exit")
}

// Detach detaches GDB from its target and arms the kill watchdog.
func (s *Session) Detach() error {
	return s.shutdown("-target-detach")
}

func (s *Session) shutdown(command string) error {
	if err := s.SendRaw(command); err != nil {
		s.killGroup()
		return err
	}
	timer := time.AfterFunc(killDelay, s.killGroup)
	go func() {
		<-s.exited
		timer.Stop()
	}()
	return nil
}

// killGroup sends SIGKILL to the child's process group, at most once.
func (s *Session) killGroup() {
	s.killOnce.Do(func() {
		if s.cmd == nil || s.cmd.Process == nil {
			return
		}
		pid := s.cmd.Process.Pid
		glog.Warningf("killing debugger process group %d", pid)
		if err := unix.Kill(-pid, unix.SIGKILL); err != nil {
			glog.Errorf("killing process group %d: %v", pid, err)
		}
	})
}

// Exited returns a channel closed when the child process has exited.
func (s *Session) Exited() <-chan struct{} { return s.exited }

func (s *Session) wait() {
	err := s.cmd.Wait()
	glog.V(1).Infof("debugger exited: %v", err)
	close(s.exited)

	s.mu.Lock()
	s.closed = true
	waiting := s.pending
	s.pending = make(map[uint64]*pending)
	s.mu.Unlock()
	for _, p := range waiting {
		p.ch <- Outcome{Err: ErrSessionClosed}
	}
	s.emit(&api.Event{Name: api.Quit})
}

func (s *Session) readLoop(r io.Reader, handle func(string)) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			handle(string(buf[:n]))
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) emit(event *api.Event) {
	s.events <- event
}

func (s *Session) emitMsg(typ api.MsgType, text string) {
	s.emit(&api.Event{Name: api.Msg, Msg: &api.MsgData{Type: typ, Text: text}})
}
