package debugger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/brunopacheco1/gnucobol-debug/api"
)

// AddBreakPoint installs bp and returns the canonical breakpoint record,
// with its GDB id and COBOL coordinates translated back from GDB's reply.
// A failing condition command returns (nil, nil): the breakpoint is not
// usable but the failure is not an error to the caller.
func (d *Debugger) AddBreakPoint(bp api.BreakPoint) (*api.BreakPoint, error) {
	if existing := d.findBreakPoint(bp); existing != nil {
		return existing, nil
	}

	location, err := d.breakLocation(bp)
	if err != nil {
		return nil, err
	}
	rec, err := d.command("break-insert -f " + d.countPrefix(bp.CountCondition) + quoted(location))
	if err != nil {
		return nil, err
	}

	canonical := bp
	num, ok := rec.Results.GetInt("bkpt.number")
	if !ok {
		return nil, fmt.Errorf("break-insert reply carries no breakpoint number: %s", rec.Raw)
	}
	canonical.ID = num
	cFile := rec.Results.GetString("bkpt.file")
	cLine, _ := rec.Results.GetInt("bkpt.line")
	if d.smap != nil && cFile != "" {
		if e := d.smap.CobolFromC(cFile, cLine); !e.IsNone() {
			canonical.File = e.CobolFile
			canonical.Line = e.CobolLine
		}
	}

	d.mu.Lock()
	d.breakpoints[num] = &canonical
	d.mu.Unlock()

	if bp.Condition != "" {
		if _, err := d.command(fmt.Sprintf("break-condition %d %s", num, bp.Condition)); err != nil {
			glog.Warningf("setting breakpoint condition: %v", err)
			return nil, nil
		}
	}
	return &canonical, nil
}

// breakLocation renders the GDB location string: raw breakpoints pass
// through verbatim, mapped ones translate through the source map.
func (d *Debugger) breakLocation(bp api.BreakPoint) (string, error) {
	if bp.Raw != "" {
		return bp.Raw, nil
	}
	if d.smap == nil {
		return "", ErrNoMapping
	}
	e := d.smap.CFromCobol(bp.File, bp.Line)
	if e.IsNone() {
		return "", fmt.Errorf("%w for %s:%d", ErrNoMapping, bp.File, bp.Line)
	}
	return fmt.Sprintf("%s:%d", e.CFile, e.CLine), nil
}

// countPrefix renders a break count condition into break-insert flags:
// ">N" ignores the first N hits, a bare N breaks once on the (N+1)th hit.
func (d *Debugger) countPrefix(countCondition string) string {
	if countCondition == "" {
		return ""
	}
	if strings.HasPrefix(countCondition, ">") {
		if n, err := strconv.Atoi(strings.TrimSpace(countCondition[1:])); err == nil {
			return fmt.Sprintf("-i %d ", n)
		}
	} else if n, err := strconv.Atoi(strings.TrimSpace(countCondition)); err == nil {
		if n == 0 {
			return "-t "
		}
		return fmt.Sprintf("-t -i %d ", n)
	}
	d.emitMsg(api.MsgLog, "Unsupported break count expression: "+countCondition)
	return "-t "
}

func (d *Debugger) findBreakPoint(bp api.BreakPoint) *api.BreakPoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.breakpoints {
		if sameBreakPoint(*existing, bp) {
			return existing
		}
	}
	return nil
}

func sameBreakPoint(a, b api.BreakPoint) bool {
	if a.Raw != "" || b.Raw != "" {
		return a.Raw == b.Raw && a.Condition == b.Condition && a.CountCondition == b.CountCondition
	}
	return a.File == b.File && a.Line == b.Line &&
		a.Condition == b.Condition && a.CountCondition == b.CountCondition
}

// RemoveBreakPoint deletes the live breakpoint matching bp.
func (d *Debugger) RemoveBreakPoint(bp api.BreakPoint) (bool, error) {
	existing := d.findBreakPoint(bp)
	if existing == nil {
		return false, nil
	}
	if _, err := d.command(fmt.Sprintf("break-delete %d", existing.ID)); err != nil {
		return false, err
	}
	d.mu.Lock()
	delete(d.breakpoints, existing.ID)
	d.mu.Unlock()
	return true, nil
}

// ClearBreakPoints deletes every live breakpoint.
func (d *Debugger) ClearBreakPoints() (bool, error) {
	if _, err := d.command("break-delete"); err != nil {
		return false, err
	}
	d.mu.Lock()
	d.breakpoints = make(map[int]*api.BreakPoint)
	d.mu.Unlock()
	return true, nil
}

// BreakPoints returns the live breakpoint table.
func (d *Debugger) BreakPoints() []*api.BreakPoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	bps := make([]*api.BreakPoint, 0, len(d.breakpoints))
	for _, bp := range d.breakpoints {
		bps = append(bps, bp)
	}
	return bps
}
