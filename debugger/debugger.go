// Package debugger is the high-level COBOL debugging facade: it compiles the
// COBOL sources, owns the GDB session and the source map, and translates
// between COBOL and generated-C coordinates on every operation.
package debugger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/golang/glog"

	"github.com/brunopacheco1/gnucobol-debug/api"
	"github.com/brunopacheco1/gnucobol-debug/mi"
	"github.com/brunopacheco1/gnucobol-debug/session"
	"github.com/brunopacheco1/gnucobol-debug/sourcemap"
)

var (
	ErrNoSession = errors.New("no debug session")
	ErrNoMapping = errors.New("no source mapping")
)

// CompileError is a non-zero exit from the COBOL compiler.
type CompileError struct {
	ExitCode int
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiler exited with code %d", e.ExitCode)
}

// miSession is the subset of session.Session the facade depends on.
type miSession interface {
	Send(command string) <-chan session.Outcome
	SendSuppress(command string) <-chan session.Outcome
	SendRaw(line string) error
	Stop() error
	Detach() error
}

type spawnFunc func(opts session.Options, events chan<- *api.Event) (miSession, error)

func defaultSpawn(opts session.Options, events chan<- *api.Event) (miSession, error) {
	return session.Spawn(opts, events)
}

// Config carries the external tool paths and arguments for one debug target.
type Config struct {
	CobcPath string
	CobcArgs []string
	GdbPath  string
	GdbArgs  []string
	Env      map[string]*string
	NoDebug  bool
}

// Debugger composes the MI session and the source map behind the operations
// a debugger UI needs. Events carries everything the UI consumes.
type Debugger struct {
	Events chan *api.Event

	cfg   Config
	id    uuid.UUID
	cwd   string
	sess  miSession
	smap  *sourcemap.Map
	spawn spawnFunc

	mu          sync.Mutex
	breakpoints map[int]*api.BreakPoint

	uiBreakDone   chan struct{}
	breakDoneOnce sync.Once
}

func New(cfg Config) *Debugger {
	if cfg.CobcPath == "" {
		cfg.CobcPath = "cobc"
	}
	if cfg.GdbPath == "" {
		cfg.GdbPath = "gdb"
	}
	id, _ := uuid.NewV4()
	return &Debugger{
		Events:      make(chan *api.Event, 64),
		cfg:         cfg,
		id:          id,
		spawn:       defaultSpawn,
		breakpoints: make(map[int]*api.BreakPoint),
		uiBreakDone: make(chan struct{}),
	}
}

// SessionID identifies this debug session in events and logs.
func (d *Debugger) SessionID() string { return d.id.String() }

// Load compiles target plus group and opens a GDB session against the
// resulting executable. With NoDebug set, the program is compiled and run
// directly instead; no GDB is spawned.
func (d *Debugger) Load(cwd, target string, group []string) error {
	d.cwd = cwd
	if d.cfg.NoDebug {
		return d.runWithoutDebug(cwd, target, group)
	}

	args := append([]string{}, d.cfg.CobcArgs...)
	args = append(args, "-g", "-d", "-fdebugging-line", "-fsource-location", "-ftraceall", target)
	args = append(args, group...)
	if err := d.compile(cwd, args); err != nil {
		d.emit(&api.Event{Name: api.Quit})
		return err
	}

	smap, err := sourcemap.New(cwd, append([]string{target}, group...))
	if err != nil {
		d.emitLaunchError(err)
		return err
	}
	d.smap = smap

	exe := executablePath(cwd, target)
	if err := d.spawnGdb(cwd, nil); err != nil {
		return err
	}
	if _, err := d.commandSuppress("gdb-set target-async on"); err != nil {
		return err
	}
	if _, err := d.commandSuppress("environment-directory " + quoted(cwd)); err != nil {
		return err
	}
	if _, err := d.command("file-exec-and-symbols " + quoted(exe)); err != nil {
		return err
	}
	d.emit(&api.Event{Name: api.DebugReady, DebugReady: &api.DebugReadyData{SessionID: d.id.String()}})
	return nil
}

// Connect opens a GDB session against a remote MI target instead of a local
// executable.
func (d *Debugger) Connect(cwd, executable, target string) error {
	d.cwd = cwd
	var positional []string
	if executable != "" {
		positional = []string{executable}
	}
	if err := d.spawnGdb(cwd, positional); err != nil {
		return err
	}
	if _, err := d.commandSuppress("gdb-set target-async on"); err != nil {
		return err
	}
	if _, err := d.commandSuppress("environment-directory " + quoted(cwd)); err != nil {
		return err
	}
	if _, err := d.command("target-select remote " + target); err != nil {
		return err
	}
	d.emit(&api.Event{Name: api.DebugReady, DebugReady: &api.DebugReadyData{SessionID: d.id.String()}})
	return nil
}

func (d *Debugger) spawnGdb(cwd string, positional []string) error {
	args := append([]string{"-q", "--interpreter=mi2"}, d.cfg.GdbArgs...)
	args = append(args, positional...)
	sess, err := d.spawn(session.Options{
		Path: d.cfg.GdbPath,
		Args: args,
		Cwd:  cwd,
		Env:  d.cfg.Env,
	}, d.Events)
	if err != nil {
		d.emitLaunchError(err)
		return err
	}
	d.sess = sess
	return nil
}

// compile runs the COBOL compiler, forwarding its output to the UI channels.
func (d *Debugger) compile(cwd string, args []string) error {
	glog.V(1).Infof("compiling: %s %s", d.cfg.CobcPath, strings.Join(args, " "))
	cmd := exec.Command(d.cfg.CobcPath, args...)
	cmd.Dir = cwd

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		d.emitLaunchError(err)
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go d.forwardLines(stdout, api.MsgStdout, &wg)
	go d.forwardLines(stderr, api.MsgStderr, &wg)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &CompileError{ExitCode: exitErr.ExitCode()}
		}
		return err
	}
	return nil
}

// runWithoutDebug compiles and runs the program in one cobc invocation. The
// call returns when the program exits.
func (d *Debugger) runWithoutDebug(cwd, target string, group []string) error {
	args := append([]string{}, d.cfg.CobcArgs...)
	args = append(args, "-j", target)
	args = append(args, group...)

	glog.V(1).Infof("running without debug: %s %s", d.cfg.CobcPath, strings.Join(args, " "))
	cmd := exec.Command(d.cfg.CobcPath, args...)
	cmd.Dir = cwd

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		d.emitLaunchError(err)
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go d.forwardLines(stdout, api.MsgStdout, &wg)
	go d.forwardLines(stderr, api.MsgStderr, &wg)
	wg.Wait()

	err = cmd.Wait()
	d.emit(&api.Event{Name: api.Quit})
	return err
}

func (d *Debugger) forwardLines(r io.Reader, typ api.MsgType, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		d.emitMsg(typ, scanner.Text())
	}
}

// Start waits for the UI to finish installing breakpoints, then runs the
// inferior. It reports true iff GDB acknowledged with "running".
func (d *Debugger) Start() (bool, error) {
	<-d.uiBreakDone
	rec, err := d.command("exec-run")
	if err != nil {
		return false, err
	}
	return rec.Class == mi.ResultRunning, nil
}

// UIBreakDone is the one-shot rendezvous the UI signals once its initial
// breakpoints are installed.
func (d *Debugger) UIBreakDone() {
	d.breakDoneOnce.Do(func() { close(d.uiBreakDone) })
}

func (d *Debugger) Continue(reverse bool) (bool, error) {
	return d.execControl("exec-continue", reverse)
}

func (d *Debugger) Next(reverse bool) (bool, error) {
	return d.execControl("exec-next", reverse)
}

func (d *Debugger) Step(reverse bool) (bool, error) {
	return d.execControl("exec-step", reverse)
}

func (d *Debugger) StepOut(reverse bool) (bool, error) {
	return d.execControl("exec-finish", reverse)
}

func (d *Debugger) execControl(command string, reverse bool) (bool, error) {
	if reverse {
		command += " --reverse"
	}
	rec, err := d.command(command)
	if err != nil {
		return false, err
	}
	return rec.Class == mi.ResultRunning, nil
}

// Interrupt pauses the running inferior; true iff GDB acknowledged.
func (d *Debugger) Interrupt() (bool, error) {
	rec, err := d.command("exec-interrupt")
	if err != nil {
		return false, err
	}
	return rec.Class == mi.ResultDone, nil
}

// Goto moves execution to a COBOL location by placing a temporary
// breakpoint there and jumping to it.
func (d *Debugger) Goto(file string, line int) (bool, error) {
	location := fmt.Sprintf("%s:%d", file, line)
	if d.smap != nil {
		if e := d.smap.CFromCobol(file, line); !e.IsNone() {
			location = fmt.Sprintf("%s:%d", e.CFile, e.CLine)
		}
	}
	if _, err := d.command("break-insert -t " + quoted(location)); err != nil {
		return false, err
	}
	rec, err := d.command("exec-jump " + quoted(location))
	if err != nil {
		return false, err
	}
	return rec.Class == mi.ResultRunning, nil
}

// SendUserInput forwards one console line: lines starting with "-" are MI
// commands, everything else runs through the console interpreter.
func (d *Debugger) SendUserInput(line string, thread, frame int) (*mi.Record, error) {
	if strings.HasPrefix(line, "-") {
		return d.command(line[1:])
	}
	command := "interpreter-exec "
	if thread != 0 {
		command += fmt.Sprintf("--thread %d --frame %d ", thread, frame)
	}
	command += `console "` + escape(line) + `"`
	return d.command(command)
}

// Stop ends the session; the session watchdog kills the child if GDB does
// not exit in time.
func (d *Debugger) Stop() error {
	if d.sess == nil {
		return ErrNoSession
	}
	return d.sess.Stop()
}

// Detach detaches from the target and ends the session.
func (d *Debugger) Detach() error {
	if d.sess == nil {
		return ErrNoSession
	}
	return d.sess.Detach()
}

func (d *Debugger) command(cmd string) (*mi.Record, error) {
	if d.sess == nil {
		return nil, ErrNoSession
	}
	out := <-d.sess.Send(cmd)
	return out.Record, out.Err
}

func (d *Debugger) commandSuppress(cmd string) (*mi.Record, error) {
	if d.sess == nil {
		return nil, ErrNoSession
	}
	out := <-d.sess.SendSuppress(cmd)
	return out.Record, out.Err
}

func (d *Debugger) emit(event *api.Event) {
	d.Events <- event
}

func (d *Debugger) emitMsg(typ api.MsgType, text string) {
	d.emit(&api.Event{Name: api.Msg, Msg: &api.MsgData{Type: typ, Text: text}})
}

func (d *Debugger) emitLaunchError(err error) {
	d.emit(&api.Event{Name: api.LaunchError, LaunchError: &api.LaunchErrorData{Error: err.Error()}})
}

// executablePath derives the executable from the main COBOL source: the
// COBOL extension is stripped and, on Windows, ".exe" appended.
func executablePath(cwd, target string) string {
	exe := strings.TrimSuffix(target, filepath.Ext(target))
	if runtime.GOOS == "windows" {
		exe += ".exe"
	}
	if !filepath.IsAbs(exe) {
		exe = filepath.Join(cwd, exe)
	}
	return exe
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func quoted(s string) string {
	return `"` + escape(s) + `"`
}
