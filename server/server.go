// Package server bridges a Debugger to a UI over websockets: commands come
// in as api.Command messages, everything the debugger emits goes back out as
// api.Event messages.
package server

import (
	"github.com/golang/glog"

	"github.com/brunopacheco1/gnucobol-debug/api"
	"github.com/brunopacheco1/gnucobol-debug/debugger"
)

type commandHandler func(*api.Command) error

// Bridge dispatches UI commands to the debugger facade and turns query
// results into events on the debugger's event channel.
type Bridge struct {
	debugger *debugger.Debugger
	handlers map[api.CommandName]commandHandler
}

func NewBridge(d *debugger.Debugger) *Bridge {
	b := &Bridge{debugger: d}
	b.handlers = map[api.CommandName]commandHandler{
		api.AddBreakPoint:    b.handleAddBreakPoint,
		api.RemoveBreakPoint: b.handleRemoveBreakPoint,
		api.ClearBreakPoints: b.handleClearBreakPoints,
		api.Start:            b.handleStart,
		api.Continue:         b.control(d.Continue),
		api.Next:             b.control(d.Next),
		api.Step:             b.control(d.Step),
		api.StepOut:          b.control(d.StepOut),
		api.Interrupt:        b.handleInterrupt,
		api.Threads:          b.handleThreads,
		api.Stack:            b.handleStack,
		api.Variables:        b.handleVariables,
		api.Eval:             b.handleEval,
		api.UserInput:        b.handleUserInput,
		api.Stop:             func(*api.Command) error { return d.Stop() },
		api.Detach:           func(*api.Command) error { return d.Detach() },
	}
	return b
}

// Dispatch runs one UI command. Handler errors are reported on the stderr
// channel rather than tearing the bridge down.
func (b *Bridge) Dispatch(command *api.Command) {
	handler, ok := b.handlers[command.Name]
	if !ok {
		glog.Errorf("no handler for command %s", command.Name)
		return
	}
	glog.V(1).Infof("handling command %s", command.Name)
	if err := handler(command); err != nil {
		glog.Errorf("command %s: %v", command.Name, err)
		b.emitMsg(api.MsgStderr, err.Error())
	}
}

func (b *Bridge) emit(event *api.Event) {
	b.debugger.Events <- event
}

func (b *Bridge) emitMsg(typ api.MsgType, text string) {
	b.emit(&api.Event{Name: api.Msg, Msg: &api.MsgData{Type: typ, Text: text}})
}

func (b *Bridge) handleAddBreakPoint(command *api.Command) error {
	if command.AddBreakPoint == nil {
		return nil
	}
	bp, err := b.debugger.AddBreakPoint(*command.AddBreakPoint)
	if err != nil {
		return err
	}
	if bp != nil {
		b.notifyBreakPoints()
	}
	return nil
}

func (b *Bridge) handleRemoveBreakPoint(command *api.Command) error {
	if command.RemoveBreakPoint == nil {
		return nil
	}
	if _, err := b.debugger.RemoveBreakPoint(*command.RemoveBreakPoint); err != nil {
		return err
	}
	b.notifyBreakPoints()
	return nil
}

func (b *Bridge) handleClearBreakPoints(command *api.Command) error {
	if _, err := b.debugger.ClearBreakPoints(); err != nil {
		return err
	}
	b.notifyBreakPoints()
	return nil
}

func (b *Bridge) notifyBreakPoints() {
	b.emit(&api.Event{
		Name: api.BreakPointsUpdated,
		BreakPointsUpdated: &api.BreakPointsUpdatedData{
			BreakPoints: b.debugger.BreakPoints(),
		},
	})
}

func (b *Bridge) handleStart(command *api.Command) error {
	// The UI sends Start once its initial breakpoints are installed.
	b.debugger.UIBreakDone()
	_, err := b.debugger.Start()
	return err
}

func (b *Bridge) control(op func(bool) (bool, error)) commandHandler {
	return func(command *api.Command) error {
		reverse := command.Control != nil && command.Control.Reverse
		_, err := op(reverse)
		return err
	}
}

func (b *Bridge) handleInterrupt(command *api.Command) error {
	_, err := b.debugger.Interrupt()
	return err
}

func (b *Bridge) handleThreads(command *api.Command) error {
	threads, err := b.debugger.GetThreads()
	if err != nil {
		return err
	}
	b.emit(&api.Event{
		Name:           api.ThreadsUpdated,
		ThreadsUpdated: &api.ThreadsUpdatedData{Threads: threads},
	})
	return nil
}

func (b *Bridge) handleStack(command *api.Command) error {
	maxLevels, thread := 0, 0
	if command.Stack != nil {
		maxLevels, thread = command.Stack.MaxLevels, command.Stack.Thread
	}
	frames, err := b.debugger.GetStack(maxLevels, thread)
	if err != nil {
		return err
	}
	b.emit(&api.Event{
		Name:         api.StackUpdated,
		StackUpdated: &api.StackUpdatedData{Frames: frames},
	})
	return nil
}

func (b *Bridge) handleVariables(command *api.Command) error {
	thread, frame := 0, 0
	if command.Variables != nil {
		thread, frame = command.Variables.Thread, command.Variables.Frame
	}
	variables, err := b.debugger.GetStackVariables(thread, frame)
	if err != nil {
		return err
	}
	b.emit(&api.Event{
		Name:             api.VariablesUpdated,
		VariablesUpdated: &api.VariablesUpdatedData{Variables: variables},
	})
	return nil
}

func (b *Bridge) handleEval(command *api.Command) error {
	if command.Eval == nil {
		return nil
	}
	value, err := b.debugger.EvalExpression(
		command.Eval.Expression, command.Eval.Thread, command.Eval.Frame)
	if err != nil {
		return err
	}
	b.emit(&api.Event{
		Name: api.EvalResult,
		EvalResult: &api.EvalResultData{
			Expression: command.Eval.Expression,
			Value:      value,
		},
	})
	return nil
}

func (b *Bridge) handleUserInput(command *api.Command) error {
	if command.UserInput == nil {
		return nil
	}
	_, err := b.debugger.SendUserInput(
		command.UserInput.Line, command.UserInput.Thread, command.UserInput.Frame)
	return err
}
