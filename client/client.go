package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	websocket "github.com/gorilla/websocket"

	api "github.com/brunopacheco1/gnucobol-debug/api"
)

// Interface represents a client connection to the debug bridge.
type Interface interface {
	// Open establishes a connection to the bridge.
	Open() error
	// Close closes the connection.
	Close() error
	// NextEvent blocks until it can return the next available debugger event.
	NextEvent() (*api.Event, error)
	// AddBreakPoint installs a breakpoint.
	AddBreakPoint(bp api.BreakPoint) error
	// RemoveBreakPoint removes a breakpoint.
	RemoveBreakPoint(bp api.BreakPoint) error
	// ClearBreakPoints removes all breakpoints.
	ClearBreakPoints() error
	// Start signals that breakpoints are installed and runs the program.
	Start() error
	// Continue resumes execution.
	Continue(reverse bool) error
	// Next steps over the current statement.
	Next(reverse bool) error
	// Step steps into the current statement.
	Step(reverse bool) error
	// StepOut finishes the current paragraph or call.
	StepOut(reverse bool) error
	// Interrupt pauses a running program.
	Interrupt() error
	// Threads requests the thread list.
	Threads() error
	// Stack requests a stack listing.
	Stack(maxLevels, thread int) error
	// Variables requests the locals of a frame.
	Variables(thread, frame int) error
	// Eval evaluates a COBOL variable.
	Eval(expression string, thread, frame int) error
	// UserInput forwards a console line to the debugger.
	UserInput(line string, thread, frame int) error
	// Stop ends the debug session.
	Stop() error
	// Detach detaches from the target.
	Detach() error
}

var _ = Interface(&WebsocketClient{})

// WebsocketClient communicates with the bridge via WebSockets.
// Create a WebsocketClient using NewWebsocketClient.
type WebsocketClient struct {
	addr string
	conn *websocket.Conn
}

func NewWebsocketClient(addr string) *WebsocketClient {
	return &WebsocketClient{addr: addr}
}

func (c *WebsocketClient) writeMessage(obj interface{}) error {
	payload, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("error marshalling obj: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("error writing obj: %w", err)
	}
	return nil
}

func (c *WebsocketClient) Open() error {
	dialer := &websocket.Dialer{
		HandshakeTimeout: 3 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	conn, resp, err := dialer.Dial(c.addr, http.Header{})
	if err != nil {
		return fmt.Errorf("dial error: %w\nresponse:%+v", err, resp)
	}
	c.conn = conn
	return nil
}

func (c *WebsocketClient) Close() error {
	return c.conn.Close()
}

func (c *WebsocketClient) NextEvent() (*api.Event, error) {
	messageType, message, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if messageType != websocket.TextMessage {
		return nil, fmt.Errorf("invalid message type %d", messageType)
	}

	var event *api.Event
	if err := json.Unmarshal(message, &event); err != nil {
		return nil, err
	}
	return event, nil
}

func (c *WebsocketClient) AddBreakPoint(bp api.BreakPoint) error {
	return c.writeMessage(&api.Command{
		Name:          api.AddBreakPoint,
		AddBreakPoint: &bp,
	})
}

func (c *WebsocketClient) RemoveBreakPoint(bp api.BreakPoint) error {
	return c.writeMessage(&api.Command{
		Name:             api.RemoveBreakPoint,
		RemoveBreakPoint: &bp,
	})
}

func (c *WebsocketClient) ClearBreakPoints() error {
	return c.writeMessage(&api.Command{Name: api.ClearBreakPoints})
}

func (c *WebsocketClient) Start() error {
	return c.writeMessage(&api.Command{Name: api.Start})
}

func (c *WebsocketClient) control(name api.CommandName, reverse bool) error {
	return c.writeMessage(&api.Command{
		Name:    name,
		Control: &api.ControlCommand{Reverse: reverse},
	})
}

func (c *WebsocketClient) Continue(reverse bool) error {
	return c.control(api.Continue, reverse)
}

func (c *WebsocketClient) Next(reverse bool) error {
	return c.control(api.Next, reverse)
}

func (c *WebsocketClient) Step(reverse bool) error {
	return c.control(api.Step, reverse)
}

func (c *WebsocketClient) StepOut(reverse bool) error {
	return c.control(api.StepOut, reverse)
}

func (c *WebsocketClient) Interrupt() error {
	return c.writeMessage(&api.Command{Name: api.Interrupt})
}

func (c *WebsocketClient) Threads() error {
	return c.writeMessage(&api.Command{Name: api.Threads})
}

func (c *WebsocketClient) Stack(maxLevels, thread int) error {
	return c.writeMessage(&api.Command{
		Name:  api.Stack,
		Stack: &api.StackCommand{MaxLevels: maxLevels, Thread: thread},
	})
}

func (c *WebsocketClient) Variables(thread, frame int) error {
	return c.writeMessage(&api.Command{
		Name:      api.Variables,
		Variables: &api.VariablesCommand{Thread: thread, Frame: frame},
	})
}

func (c *WebsocketClient) Eval(expression string, thread, frame int) error {
	return c.writeMessage(&api.Command{
		Name: api.Eval,
		Eval: &api.EvalCommand{Expression: expression, Thread: thread, Frame: frame},
	})
}

func (c *WebsocketClient) UserInput(line string, thread, frame int) error {
	return c.writeMessage(&api.Command{
		Name:      api.UserInput,
		UserInput: &api.UserInputCommand{Line: line, Thread: thread, Frame: frame},
	})
}

func (c *WebsocketClient) Stop() error {
	return c.writeMessage(&api.Command{Name: api.Stop})
}

func (c *WebsocketClient) Detach() error {
	return c.writeMessage(&api.Command{Name: api.Detach})
}
