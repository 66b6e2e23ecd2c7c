package debugger

import (
	"fmt"

	"github.com/brunopacheco1/gnucobol-debug/api"
	"github.com/brunopacheco1/gnucobol-debug/mi"
)

// GetStackVariables lists the frame's locals, surfacing only variables whose
// C identifier the source map knows, under their COBOL names.
func (d *Debugger) GetStackVariables(thread, frame int) ([]api.Variable, error) {
	if d.smap == nil {
		return nil, ErrNoMapping
	}
	rec, err := d.command(fmt.Sprintf(
		"stack-list-variables --thread %d --frame %d --simple-values", thread, frame))
	if err != nil {
		return nil, err
	}
	list, ok := rec.Results.Get("variables")
	if !ok || list.Kind != mi.ListKind {
		return nil, nil
	}
	variables := make([]api.Variable, 0, len(list.List))
	for _, item := range list.List {
		cName := item.GetString("name")
		cobolName, ok := d.smap.CobolVarFromC(cName)
		if !ok {
			continue
		}
		variables = append(variables, api.Variable{
			Name:     cobolName,
			ValueStr: item.GetString("value"),
			Type:     item.GetString("type"),
		})
	}
	return variables, nil
}

// EvalExpression evaluates a COBOL variable by translating its name to the
// mangled C identifier first.
func (d *Debugger) EvalExpression(name string, thread, frame int) (string, error) {
	if d.smap == nil {
		return "", ErrNoMapping
	}
	cName, ok := d.smap.CFromCobolVar(name)
	if !ok {
		return "", fmt.Errorf("%w for variable %s", ErrNoMapping, name)
	}
	command := "data-evaluate-expression "
	if thread != 0 {
		command += fmt.Sprintf("--thread %d --frame %d ", thread, frame)
	}
	rec, err := d.command(command + cName)
	if err != nil {
		return "", err
	}
	return rec.Results.GetString("value"), nil
}

// ExamineMemory reads length bytes starting at from.
func (d *Debugger) ExamineMemory(from uint64, length int) (string, error) {
	rec, err := d.command(fmt.Sprintf("data-read-memory-bytes 0x%x %d", from, length))
	if err != nil {
		return "", err
	}
	return rec.Results.GetString("memory.0.contents"), nil
}

// VarCreate creates a GDB variable object for expression; name "-" lets GDB
// pick one.
func (d *Debugger) VarCreate(expression, name string) (*api.VarObj, error) {
	if name == "" {
		name = "-"
	}
	rec, err := d.command(fmt.Sprintf(`var-create %s @ "%s"`, name, escape(expression)))
	if err != nil {
		return nil, err
	}
	obj := varObjFromMI(rec.Results)
	if obj.Exp == "" {
		obj.Exp = expression
	}
	return obj, nil
}

// VarEvalExpression reads the current value of a variable object.
func (d *Debugger) VarEvalExpression(name string) (string, error) {
	rec, err := d.command("var-evaluate-expression " + name)
	if err != nil {
		return "", err
	}
	return rec.Results.GetString("value"), nil
}

// VarListChildren expands a compound variable object.
func (d *Debugger) VarListChildren(name string) ([]*api.VarObj, error) {
	rec, err := d.command("var-list-children --all-values " + quoted(name))
	if err != nil {
		return nil, err
	}
	list, ok := rec.Results.Get("children")
	if !ok || list.Kind != mi.ListKind {
		return nil, nil
	}
	children := make([]*api.VarObj, 0, len(list.List))
	for _, item := range list.List {
		child, ok := item.Get("child")
		if !ok {
			child = item
		}
		children = append(children, varObjFromMI(child))
	}
	return children, nil
}

// VarUpdate reports variable objects whose values changed since the last
// read; an empty name updates all of them.
func (d *Debugger) VarUpdate(name string) (*mi.Record, error) {
	if name == "" {
		name = "*"
	}
	return d.command("var-update --all-values " + name)
}

// VarAssign writes a new value through a variable object and returns the
// value GDB stored.
func (d *Debugger) VarAssign(name, value string) (string, error) {
	rec, err := d.command(fmt.Sprintf("var-assign %s %s", name, value))
	if err != nil {
		return "", err
	}
	return rec.Results.GetString("value"), nil
}

func varObjFromMI(v mi.Value) *api.VarObj {
	numChild, _ := v.GetInt("numchild")
	return &api.VarObj{
		Name:        v.GetString("name"),
		Exp:         v.GetString("exp"),
		NumChild:    numChild,
		Type:        v.GetString("type"),
		Value:       v.GetString("value"),
		ThreadID:    v.GetString("thread-id"),
		Frozen:      v.GetString("frozen") == "1",
		Dynamic:     v.GetString("dynamic") == "1",
		DisplayHint: v.GetString("displayhint"),
		HasMore:     v.GetString("has_more") == "1",
	}
}
