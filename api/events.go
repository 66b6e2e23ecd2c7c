package api

type EventName string

const (
	Msg             EventName = "msg"
	Quit            EventName = "quit"
	LaunchError     EventName = "launcherror"
	DebugReady      EventName = "debug-ready"
	Running         EventName = "running"
	BreakpointHit   EventName = "breakpoint"
	StepEnd         EventName = "step-end"
	StepOutEnd      EventName = "step-out-end"
	SignalStop      EventName = "signal-stop"
	ExitedNormally  EventName = "exited-normally"
	Stopped         EventName = "stopped"
	ThreadCreated   EventName = "thread-created"
	ThreadExited    EventName = "thread-exited"
	ExecAsyncOutput EventName = "exec-async-output"

	// Bridge responses to query commands.
	BreakPointsUpdated EventName = "breakpoints-updated"
	ThreadsUpdated     EventName = "threads-updated"
	StackUpdated       EventName = "stack-updated"
	VariablesUpdated   EventName = "variables-updated"
	EvalResult         EventName = "eval-result"
)

// MsgType is the UI channel a piece of text belongs to.
type MsgType string

const (
	MsgStdout  MsgType = "stdout"
	MsgStderr  MsgType = "stderr"
	MsgConsole MsgType = "console"
	MsgLog     MsgType = "log"
	MsgTarget  MsgType = "target"
)

type Event struct {
	Name EventName `json:"name"`

	Msg         *MsgData         `json:"msg,omitempty"`
	LaunchError *LaunchErrorData `json:"launchError,omitempty"`
	DebugReady  *DebugReadyData  `json:"debugReady,omitempty"`
	Stopped     *StoppedData     `json:"stopped,omitempty"`
	Thread      *ThreadData      `json:"thread,omitempty"`
	AsyncOutput *AsyncOutputData `json:"asyncOutput,omitempty"`

	BreakPointsUpdated *BreakPointsUpdatedData `json:"breakPointsUpdated,omitempty"`
	ThreadsUpdated     *ThreadsUpdatedData     `json:"threadsUpdated,omitempty"`
	StackUpdated       *StackUpdatedData       `json:"stackUpdated,omitempty"`
	VariablesUpdated   *VariablesUpdatedData   `json:"variablesUpdated,omitempty"`
	EvalResult         *EvalResultData         `json:"evalResult,omitempty"`
}

type MsgData struct {
	Type MsgType `json:"type"`
	Text string  `json:"text"`
}

type LaunchErrorData struct {
	Error string `json:"error"`
}

type DebugReadyData struct {
	SessionID string `json:"sessionId"`
}

// StoppedData accompanies every stop event (breakpoint, step-end,
// step-out-end, signal-stop, stopped).
type StoppedData struct {
	Reason   string `json:"reason,omitempty"`
	ThreadID int    `json:"threadId,omitempty"`
}

type ThreadData struct {
	ID int `json:"id"`
}

// AsyncOutputData carries a raw exec async record for UIs that want the
// unprocessed MI output.
type AsyncOutputData struct {
	Class string `json:"class"`
	Raw   string `json:"raw"`
}

type BreakPointsUpdatedData struct {
	BreakPoints []*BreakPoint `json:"breakPoints"`
}

type ThreadsUpdatedData struct {
	Threads []Thread `json:"threads"`
}

type StackUpdatedData struct {
	Frames []Frame `json:"frames"`
}

type VariablesUpdatedData struct {
	Variables []Variable `json:"variables"`
}

type EvalResultData struct {
	Expression string `json:"expression"`
	Value      string `json:"value"`
}

// Command is one request from a UI to the bridge.
type Command struct {
	Name CommandName `json:"name"`

	AddBreakPoint    *BreakPoint       `json:"addBreakPoint,omitempty"`
	RemoveBreakPoint *BreakPoint       `json:"removeBreakPoint,omitempty"`
	Control          *ControlCommand   `json:"control,omitempty"`
	Stack            *StackCommand     `json:"stack,omitempty"`
	Variables        *VariablesCommand `json:"variables,omitempty"`
	Eval             *EvalCommand      `json:"eval,omitempty"`
	UserInput        *UserInputCommand `json:"userInput,omitempty"`
}

type CommandName string

const (
	AddBreakPoint    CommandName = "AddBreakPoint"
	RemoveBreakPoint CommandName = "RemoveBreakPoint"
	ClearBreakPoints CommandName = "ClearBreakPoints"
	Start            CommandName = "Start"
	Continue         CommandName = "Continue"
	Next             CommandName = "Next"
	Step             CommandName = "Step"
	StepOut          CommandName = "StepOut"
	Interrupt        CommandName = "Interrupt"
	Threads          CommandName = "Threads"
	Stack            CommandName = "Stack"
	Variables        CommandName = "Variables"
	Eval             CommandName = "Eval"
	UserInput        CommandName = "UserInput"
	Stop             CommandName = "Stop"
	Detach           CommandName = "Detach"
)

type ControlCommand struct {
	Reverse bool `json:"reverse,omitempty"`
}

type StackCommand struct {
	MaxLevels int `json:"maxLevels"`
	Thread    int `json:"thread"`
}

type VariablesCommand struct {
	Thread int `json:"thread"`
	Frame  int `json:"frame"`
}

type EvalCommand struct {
	Expression string `json:"expression"`
	Thread     int    `json:"thread"`
	Frame      int    `json:"frame"`
}

type UserInputCommand struct {
	Line   string `json:"line"`
	Thread int    `json:"thread"`
	Frame  int    `json:"frame"`
}
