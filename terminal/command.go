package terminal

import (
	"fmt"
	"strconv"
	"strings"

	api "github.com/brunopacheco1/gnucobol-debug/api"
	client "github.com/brunopacheco1/gnucobol-debug/client"
)

type cmdfunc func(client client.Interface, cache *cache, args ...string) error

type command struct {
	aliases []string
	helpMsg string
	cmdFn   cmdfunc
}

func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands is the terminal's command table.
type Commands struct {
	cmds []command
}

// DebugCommands returns the command table wired to a client.
func DebugCommands(cache *cache, client client.Interface) *Commands {
	c := &Commands{}
	c.cmds = []command{
		{aliases: []string{"help"}, cmdFn: c.help, helpMsg: "Prints the help message."},
		{aliases: []string{"break", "b"}, cmdFn: breakpoint, helpMsg: "break <file>:<line> [condition] - Sets a breakpoint."},
		{aliases: []string{"delete"}, cmdFn: deleteBreakpoint, helpMsg: "delete <file>:<line> - Deletes a breakpoint."},
		{aliases: []string{"clear"}, cmdFn: clearBreakpoints, helpMsg: "Deletes all breakpoints."},
		{aliases: []string{"run", "r"}, cmdFn: run, helpMsg: "Starts the program."},
		{aliases: []string{"continue", "c"}, cmdFn: control(client.Continue), helpMsg: "continue [-r] - Resumes execution."},
		{aliases: []string{"next", "n"}, cmdFn: control(client.Next), helpMsg: "next [-r] - Steps over the current statement."},
		{aliases: []string{"step", "s"}, cmdFn: control(client.Step), helpMsg: "step [-r] - Steps into the current statement."},
		{aliases: []string{"finish"}, cmdFn: control(client.StepOut), helpMsg: "finish [-r] - Runs until the current call returns."},
		{aliases: []string{"interrupt"}, cmdFn: interrupt, helpMsg: "Pauses the running program."},
		{aliases: []string{"threads"}, cmdFn: threads, helpMsg: "Lists threads."},
		{aliases: []string{"stack", "bt"}, cmdFn: stack, helpMsg: "stack [levels] [thread] - Lists stack frames."},
		{aliases: []string{"vars"}, cmdFn: variables, helpMsg: "vars [thread] [frame] - Lists the frame's variables."},
		{aliases: []string{"print", "p"}, cmdFn: eval, helpMsg: "print <variable> - Evaluates a COBOL variable."},
	}
	return c
}

// Find returns the command for cmdstr, or a not-found fallback.
func (c *Commands) Find(cmdstr string) cmdfunc {
	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}
	return noCmdAvailable
}

func noCmdAvailable(client client.Interface, cache *cache, args ...string) error {
	return fmt.Errorf("command not available")
}

func (c *Commands) help(client client.Interface, cache *cache, args ...string) error {
	for _, cmd := range c.cmds {
		fmt.Printf(" %-18s %s\n", strings.Join(cmd.aliases, "|"), cmd.helpMsg)
	}
	return nil
}

func parseLocation(arg string) (api.BreakPoint, error) {
	i := strings.LastIndex(arg, ":")
	if i < 0 {
		// No file:line shape; treat it as a raw GDB location.
		return api.BreakPoint{Raw: arg}, nil
	}
	line, err := strconv.Atoi(arg[i+1:])
	if err != nil {
		return api.BreakPoint{}, fmt.Errorf("invalid line in location %q", arg)
	}
	return api.BreakPoint{File: arg[:i], Line: line}, nil
}

func breakpoint(client client.Interface, cache *cache, args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: break <file>:<line> [condition]")
	}
	bp, err := parseLocation(args[0])
	if err != nil {
		return err
	}
	if len(args) > 1 {
		bp.Condition = strings.Join(args[1:], " ")
	}
	return client.AddBreakPoint(bp)
}

func deleteBreakpoint(client client.Interface, cache *cache, args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: delete <file>:<line>")
	}
	bp, err := parseLocation(args[0])
	if err != nil {
		return err
	}
	return client.RemoveBreakPoint(bp)
}

func clearBreakpoints(client client.Interface, cache *cache, args ...string) error {
	return client.ClearBreakPoints()
}

func run(client client.Interface, cache *cache, args ...string) error {
	return client.Start()
}

func control(op func(reverse bool) error) cmdfunc {
	return func(client client.Interface, cache *cache, args ...string) error {
		reverse := len(args) > 0 && args[0] == "-r"
		return op(reverse)
	}
}

func interrupt(client client.Interface, cache *cache, args ...string) error {
	return client.Interrupt()
}

func threads(client client.Interface, cache *cache, args ...string) error {
	return client.Threads()
}

func stack(client client.Interface, cache *cache, args ...string) error {
	maxLevels, thread := 20, 0
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			maxLevels = n
		}
	}
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			thread = n
		}
	}
	return client.Stack(maxLevels, thread)
}

func variables(client client.Interface, cache *cache, args ...string) error {
	thread, frame := 1, 0
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			thread = n
		}
	}
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			frame = n
		}
	}
	return client.Variables(thread, frame)
}

func eval(client client.Interface, cache *cache, args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: print <variable>")
	}
	return client.Eval(strings.Join(args, " "), 0, 0)
}
