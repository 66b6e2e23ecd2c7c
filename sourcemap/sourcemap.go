// Package sourcemap indexes the marker comments the GnuCOBOL compiler leaves
// in its generated C sources, giving the debugger a bidirectional mapping
// between COBOL coordinates and the C coordinates GDB understands.
package sourcemap

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

// Entry ties one COBOL statement to the generated C line that implements it.
// The zero Entry is the "no mapping" sentinel; callers fall through to raw
// coordinates when they receive it.
type Entry struct {
	CobolFile string
	CobolLine int
	CFile     string
	CLine     int
}

// IsNone reports whether e is the no-mapping sentinel.
func (e Entry) IsNone() bool {
	return e.CobolFile == "" && e.CFile == "" && e.CobolLine == 0 && e.CLine == 0
}

func (e Entry) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d", e.CobolFile, e.CobolLine, e.CFile, e.CLine)
}

var (
	reGenerated = regexp.MustCompile(`(?i)/\* Generated from\s+([^*]+?)\s*\*/`)
	reLine      = regexp.MustCompile(`(?i)/\* Line:\s*(\d+)(?:.*:\s*([^\s*:]+))?\s*\*/`)
	reVariable  = regexp.MustCompile(`(?i)^\s*static\s+.*\bcob_u8_t\b\s+(\w+).*?/\*\s*(.+?)\s*\*/`)
	reInclude   = regexp.MustCompile(`^\s*#include\s+"([^"]+)"`)
)

// Map is the in-memory index built from one compile. All stored paths are
// absolute; for any COBOL coordinate there is at most one current C
// coordinate.
type Map struct {
	cwd      string
	lines    []Entry
	cobolByC map[string]string
	cByCobol map[string]string
}

// New scans the generated C file of every COBOL source in sources, following
// #include directives recursively, and builds the combined map. Relative
// paths are resolved against cwd.
func New(cwd string, sources []string) (*Map, error) {
	m := &Map{
		cwd:      cwd,
		cobolByC: make(map[string]string),
		cByCobol: make(map[string]string),
	}
	visited := make(map[string]bool)
	for _, src := range sources {
		cFile := m.resolve(strings.TrimSuffix(src, filepath.Ext(src)) + ".c")
		if err := m.parseFile(cFile, visited); err != nil {
			return nil, err
		}
	}
	glog.V(1).Infof("source map: %d line entries, %d variables", len(m.lines), len(m.cobolByC))
	return m, nil
}

func (m *Map) resolve(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.cwd, path)
	}
	return filepath.Clean(path)
}

func (m *Map) parseFile(cFile string, visited map[string]bool) error {
	if visited[cFile] {
		return nil
	}
	visited[cFile] = true

	f, err := os.Open(cFile)
	if err != nil {
		return fmt.Errorf("opening generated source: %w", err)
	}
	defer f.Close()

	cobolFile := ""
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if match := reGenerated.FindStringSubmatch(line); match != nil {
			cobolFile = m.resolve(match[1])
			continue
		}
		if match := reLine.FindStringSubmatch(line); match != nil {
			n, err := strconv.Atoi(match[1])
			if err != nil || n <= 0 {
				glog.Warningf("%s:%d: unusable line marker %q", cFile, lineNo, line)
				continue
			}
			file := cobolFile
			if match[2] != "" {
				file = m.resolve(match[2])
			}
			if file == "" {
				glog.Warningf("%s:%d: line marker before any Generated from marker", cFile, lineNo)
				continue
			}
			// The marker is a comment immediately preceding the statement
			// it describes, hence the +2.
			m.addLine(Entry{
				CobolFile: file,
				CobolLine: n,
				CFile:     cFile,
				CLine:     lineNo + 2,
			})
			continue
		}
		if match := reVariable.FindStringSubmatch(line); match != nil {
			m.addVariable(match[2], match[1])
			continue
		}
		if match := reInclude.FindStringSubmatch(line); match != nil {
			if err := m.parseFile(m.resolve(match[1]), visited); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", cFile, err)
	}
	return nil
}

// addLine appends a line entry, replacing the immediately previous entry
// when it carries the same COBOL coordinate so that a COBOL statement keeps
// the last C position seen for it.
func (m *Map) addLine(e Entry) {
	if n := len(m.lines); n > 0 {
		last := m.lines[n-1]
		if last.CobolFile == e.CobolFile && last.CobolLine == e.CobolLine {
			m.lines[n-1] = e
			return
		}
	}
	m.lines = append(m.lines, e)
}

func (m *Map) addVariable(cobolName, cName string) {
	m.cobolByC[cName] = cobolName
	m.cByCobol[cobolName] = cName
}

// CFromCobol returns the line entry for a COBOL coordinate, or the sentinel.
func (m *Map) CFromCobol(file string, line int) Entry {
	file = m.resolve(file)
	for i := len(m.lines) - 1; i >= 0; i-- {
		if m.lines[i].CobolFile == file && m.lines[i].CobolLine == line {
			return m.lines[i]
		}
	}
	return Entry{}
}

// CobolFromC returns the line entry for a generated C coordinate, or the
// sentinel. The input path is normalized to absolute form first.
func (m *Map) CobolFromC(file string, line int) Entry {
	file = m.resolve(file)
	for _, e := range m.lines {
		if e.CFile == file && e.CLine == line {
			return e
		}
	}
	return Entry{}
}

// HasCobolVar reports whether a C identifier belongs to a COBOL variable.
func (m *Map) HasCobolVar(cName string) bool {
	_, ok := m.cobolByC[cName]
	return ok
}

// CobolVarFromC returns the COBOL name for a mangled C identifier.
func (m *Map) CobolVarFromC(cName string) (string, bool) {
	name, ok := m.cobolByC[cName]
	return name, ok
}

// CFromCobolVar returns the mangled C identifier for a COBOL variable name.
// ASCII double quotes are stripped from the query first.
func (m *Map) CFromCobolVar(cobolName string) (string, bool) {
	name, ok := m.cByCobol[strings.ReplaceAll(cobolName, `"`, "")]
	return name, ok
}

// LineCount returns the number of line entries in the map.
func (m *Map) LineCount() int { return len(m.lines) }

// VariableCount returns the number of variable entries in the map.
func (m *Map) VariableCount() int { return len(m.cobolByC) }
