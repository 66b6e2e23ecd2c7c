package debugger

import (
	"fmt"
	"path/filepath"

	"github.com/brunopacheco1/gnucobol-debug/api"
	"github.com/brunopacheco1/gnucobol-debug/mi"
)

// GetThreads lists the inferior's threads.
func (d *Debugger) GetThreads() ([]api.Thread, error) {
	rec, err := d.command("thread-info")
	if err != nil {
		return nil, err
	}
	list, ok := rec.Results.Get("threads")
	if !ok || list.Kind != mi.ListKind {
		return nil, nil
	}
	threads := make([]api.Thread, 0, len(list.List))
	for _, item := range list.List {
		id, _ := item.GetInt("id")
		threads = append(threads, api.Thread{
			ID:       id,
			TargetID: item.GetString("target-id"),
			Name:     item.GetString("name"),
		})
	}
	return threads, nil
}

// GetStack lists up to maxLevels frames, translated into COBOL coordinates
// where the source map knows the C position and left in C coordinates
// otherwise.
func (d *Debugger) GetStack(maxLevels, thread int) ([]api.Frame, error) {
	command := "stack-list-frames"
	if thread != 0 {
		command += fmt.Sprintf(" --thread %d", thread)
	}
	if maxLevels > 0 {
		command += fmt.Sprintf(" 0 %d", maxLevels)
	}
	rec, err := d.command(command)
	if err != nil {
		return nil, err
	}
	stack, ok := rec.Results.Get("stack")
	if !ok || stack.Kind != mi.ListKind {
		return nil, nil
	}
	frames := make([]api.Frame, 0, len(stack.List))
	for _, item := range stack.List {
		frame, ok := item.Get("frame")
		if !ok {
			frame = item
		}
		frames = append(frames, d.frameFromMI(frame))
	}
	return frames, nil
}

func (d *Debugger) frameFromMI(frame mi.Value) api.Frame {
	level, _ := frame.GetInt("level")
	line, _ := frame.GetInt("line")
	fullname := frame.GetString("fullname")
	if fullname == "" {
		fullname = frame.GetString("file")
	}
	if fullname != "" {
		fullname = filepath.Clean(fullname)
	}

	file := fullname
	if d.smap != nil && fullname != "" {
		if e := d.smap.CobolFromC(fullname, line); !e.IsNone() {
			file = e.CobolFile
			line = e.CobolLine
		}
	}

	function := frame.GetString("func")
	if function == "" {
		function = frame.GetString("from")
	}
	return api.Frame{
		Level:        level,
		Address:      frame.GetString("addr"),
		Function:     function,
		File:         file,
		FileBasename: filepath.Base(file),
		Line:         line,
	}
}
