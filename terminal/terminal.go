package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"

	api "github.com/brunopacheco1/gnucobol-debug/api"
	client "github.com/brunopacheco1/gnucobol-debug/client"
)

const historyFile string = ".gcdb_history"

// Term is an interactive console driving the debug bridge.
type Term struct {
	client client.Interface
	prompt string
	line   *liner.State
	cache  *cache
}

type cache struct {
	breakPoints []*api.BreakPoint
	threads     []api.Thread
	frames      []api.Frame
}

func New(client client.Interface) *Term {
	return &Term{
		prompt: "(gcdb) ",
		line:   liner.NewLiner(),
		client: client,
		cache:  &cache{},
	}
}

func (t *Term) die(status int, args ...interface{}) {
	if t.line != nil {
		t.line.Close()
	}
	fmt.Fprint(os.Stderr, args...)
	fmt.Fprint(os.Stderr, "\n")
	os.Exit(status)
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}
	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}
	return l, nil
}

func (t *Term) Run() {
	defer t.line.Close()

	go t.handleEvents()

	cmds := DebugCommands(t.cache, t.client)
	f, err := os.Open(historyFile)
	if err != nil {
		f, _ = os.Create(historyFile)
	}
	t.line.ReadHistory(f)
	f.Close()
	fmt.Println("Type 'help' for list of commands.")

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				t.handleExit(0)
			}
			t.die(1, "Prompt for input failed.\n")
		}
		if len(cmdstr) == 0 {
			continue
		}

		// Lines starting with "-" pass straight through as MI commands.
		if strings.HasPrefix(cmdstr, "-") {
			if err := t.client.UserInput(cmdstr, 0, 0); err != nil {
				fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
			}
			continue
		}

		cmdstr, args := parseCommand(cmdstr)
		if cmdstr == "exit" {
			t.handleExit(0)
		}

		cmd := cmds.Find(cmdstr)
		if err := cmd(t.client, t.cache, args...); err != nil {
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

func (t *Term) handleEvents() {
	for {
		event, err := t.client.NextEvent()
		if err != nil {
			fmt.Fprintf(os.Stderr, "event error: %s\n", err)
			return
		}

		switch event.Name {
		case api.Msg:
			switch event.Msg.Type {
			case api.MsgStderr, api.MsgLog:
				fmt.Fprintln(os.Stderr, event.Msg.Text)
			default:
				fmt.Print(event.Msg.Text)
				if !strings.HasSuffix(event.Msg.Text, "\n") {
					fmt.Println()
				}
			}
		case api.BreakPointsUpdated:
			t.cache.breakPoints = event.BreakPointsUpdated.BreakPoints
		case api.ThreadsUpdated:
			t.cache.threads = event.ThreadsUpdated.Threads
			for _, th := range t.cache.threads {
				fmt.Printf("Thread %d %s %s\n", th.ID, th.TargetID, th.Name)
			}
		case api.StackUpdated:
			t.cache.frames = event.StackUpdated.Frames
			for _, fr := range t.cache.frames {
				fmt.Printf("#%d %s %s:%d\n", fr.Level, fr.Function, fr.FileBasename, fr.Line)
			}
		case api.VariablesUpdated:
			for _, v := range event.VariablesUpdated.Variables {
				fmt.Printf("%s = %s\n", v.Name, v.ValueStr)
			}
		case api.EvalResult:
			fmt.Printf("%s = %s\n", event.EvalResult.Expression, event.EvalResult.Value)
		case api.BreakpointHit:
			fmt.Printf("Breakpoint hit (thread %d)\n", event.Stopped.ThreadID)
		case api.StepEnd, api.StepOutEnd, api.SignalStop, api.Stopped:
			fmt.Printf("Stopped: %s (thread %d)\n", event.Stopped.Reason, event.Stopped.ThreadID)
		case api.ExitedNormally:
			fmt.Println("Program exited.")
		case api.Quit:
			fmt.Println("Debugger quit.")
		case api.Running, api.DebugReady, api.ThreadCreated, api.ThreadExited, api.ExecAsyncOutput:
			// quiet events
		default:
			fmt.Printf("unsupported event %s\n", event.Name)
		}
	}
}

func (t *Term) handleExit(status int) {
	if f, err := os.OpenFile(historyFile, os.O_RDWR|os.O_CREATE, 0666); err == nil {
		_, err := t.line.WriteHistory(f)
		if err != nil {
			fmt.Println("readline history error: ", err)
		}
		f.Close()
	}

	t.client.ClearBreakPoints()

	fmt.Println("Detaching from process...")
	t.client.Detach()

	answer, err := t.line.Prompt("Would you like to kill the process? [y/n] ")
	if err != nil {
		t.die(2, io.EOF)
	}
	if strings.TrimSuffix(answer, "\n") == "y" {
		fmt.Println("Killing process")
		t.client.Stop()
	}

	t.die(status, "Hope I was of service hunting your bug!")
}

func parseCommand(cmdstr string) (string, []string) {
	vals := strings.Split(cmdstr, " ")
	return vals[0], vals[1:]
}
