package sourcemap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLineMarkerOffset(t *testing.T) {
	dir := t.TempDir()
	// Generated from marker on line 1, blanks up to line 20, line marker on
	// line 21; the mapped statement sits two lines below the marker.
	content := "/* Generated from hello.cbl */\n" +
		strings.Repeat("\n", 19) +
		"/* Line: 10        : hello.cbl */\n" +
		"  cob_move (...);\n"
	writeFile(t, dir, "hello.c", content)

	m, err := New(dir, []string{"hello.cbl"})
	if err != nil {
		t.Fatal(err)
	}
	e := m.CFromCobol(filepath.Join(dir, "hello.cbl"), 10)
	if e.IsNone() {
		t.Fatal("no mapping for hello.cbl:10")
	}
	if e.CLine != 23 {
		t.Errorf("CLine = %d, want 23", e.CLine)
	}
	if e.CFile != filepath.Join(dir, "hello.c") {
		t.Errorf("CFile = %q", e.CFile)
	}
}

func TestLastWriteWins(t *testing.T) {
	dir := t.TempDir()
	var sb strings.Builder
	sb.WriteString("/* Generated from hello.cbl */\n")
	for sb.Len() > 0 && strings.Count(sb.String(), "\n") < 20 {
		sb.WriteString("\n")
	}
	sb.WriteString("/* Line: 10        : hello.cbl */\n") // marker line 21 -> C line 23
	for strings.Count(sb.String(), "\n") < 54 {
		sb.WriteString("\n")
	}
	sb.WriteString("/* Line: 10        : hello.cbl */\n") // marker line 55 -> C line 57
	writeFile(t, dir, "hello.c", sb.String())

	m, err := New(dir, []string{"hello.cbl"})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.LineCount(); got != 1 {
		t.Errorf("LineCount = %d, want 1", got)
	}
	e := m.CFromCobol(filepath.Join(dir, "hello.cbl"), 10)
	if e.CLine != 57 {
		t.Errorf("CLine = %d, want 57", e.CLine)
	}
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	content := "/* Generated from hello.cbl */\n" +
		"/* Line: 8 */\n" +
		";\n" +
		"/* Line: 9 */\n" +
		";\n" +
		"/* Line: 12 */\n" +
		";\n"
	writeFile(t, dir, "hello.c", content)

	m, err := New(dir, []string{"hello.cbl"})
	if err != nil {
		t.Fatal(err)
	}
	if m.LineCount() != 3 {
		t.Fatalf("LineCount = %d, want 3", m.LineCount())
	}
	cobol := filepath.Join(dir, "hello.cbl")
	for _, line := range []int{8, 9, 12} {
		e := m.CFromCobol(cobol, line)
		if e.IsNone() {
			t.Fatalf("no mapping for line %d", line)
		}
		back := m.CobolFromC(e.CFile, e.CLine)
		if back != e {
			t.Errorf("round trip for line %d: %v != %v", line, back, e)
		}
	}
}

func TestCobolFromCNormalizesPath(t *testing.T) {
	dir := t.TempDir()
	content := "/* Generated from hello.cbl */\n" +
		"/* Line: 5 */\n" +
		";\n"
	writeFile(t, dir, "hello.c", content)

	m, err := New(dir, []string{"hello.cbl"})
	if err != nil {
		t.Fatal(err)
	}
	// Relative query path resolves against the working directory.
	e := m.CobolFromC("hello.c", 4)
	if e.IsNone() {
		t.Fatal("relative path did not normalize")
	}
	if e.CobolLine != 5 {
		t.Errorf("CobolLine = %d, want 5", e.CobolLine)
	}
}

func TestVariables(t *testing.T) {
	dir := t.TempDir()
	content := "/* Generated from hello.cbl */\n" +
		"static cob_u8_t b_11[8] __attribute__((aligned));\t/* WS-AMOUNT */\n" +
		"static cob_u8_t b_12[4];\t/* WS-COUNT */\n"
	writeFile(t, dir, "hello.c", content)

	m, err := New(dir, []string{"hello.cbl"})
	if err != nil {
		t.Fatal(err)
	}
	if !m.HasCobolVar("b_11") || !m.HasCobolVar("b_12") {
		t.Fatal("expected b_11 and b_12 in the map")
	}
	if name, _ := m.CobolVarFromC("b_11"); name != "WS-AMOUNT" {
		t.Errorf("CobolVarFromC(b_11) = %q", name)
	}
	if c, ok := m.CFromCobolVar("WS-COUNT"); !ok || c != "b_12" {
		t.Errorf("CFromCobolVar(WS-COUNT) = (%q, %v)", c, ok)
	}
}

func TestVariableQueryStripsQuotes(t *testing.T) {
	dir := t.TempDir()
	content := "static cob_u8_t b_9[2];\t/* WS-FLAG */\n"
	writeFile(t, dir, "hello.c", content)

	m, err := New(dir, []string{"hello.cbl"})
	if err != nil {
		t.Fatal(err)
	}
	plain, ok1 := m.CFromCobolVar("WS-FLAG")
	quoted, ok2 := m.CFromCobolVar(`"WS-FLAG"`)
	if !ok1 || !ok2 || plain != quoted {
		t.Errorf("quoted lookup differs: (%q, %v) vs (%q, %v)", plain, ok1, quoted, ok2)
	}
}

func TestIncludeRecursion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hello.c",
		"/* Generated from hello.cbl */\n"+
			"#include \"hello.c.h\"\n"+
			"/* Line: 3 */\n"+
			";\n")
	writeFile(t, dir, "hello.c.h",
		"static cob_u8_t b_7[4];\t/* WS-INCLUDED */\n")

	m, err := New(dir, []string{"hello.cbl"})
	if err != nil {
		t.Fatal(err)
	}
	if c, ok := m.CFromCobolVar("WS-INCLUDED"); !ok || c != "b_7" {
		t.Errorf("included variable missing: (%q, %v)", c, ok)
	}
}

func TestIncludeCycleTerminates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.c", "#include \"b.c\"\n")
	writeFile(t, dir, "b.c", "#include \"a.c\"\nstatic cob_u8_t b_1[1];\t/* WS-X */\n")

	m, err := New(dir, []string{"a.cbl"})
	if err != nil {
		t.Fatal(err)
	}
	if !m.HasCobolVar("b_1") {
		t.Error("variable from cyclic include missing")
	}
}

func TestMissingCFile(t *testing.T) {
	if _, err := New(t.TempDir(), []string{"absent.cbl"}); err == nil {
		t.Error("expected error for missing generated source")
	}
}

func TestInlineMarkerPathOverridesContext(t *testing.T) {
	dir := t.TempDir()
	content := "/* Generated from hello.cbl */\n" +
		"/* Line: 4         : copybook.cbl */\n" +
		";\n"
	writeFile(t, dir, "hello.c", content)

	m, err := New(dir, []string{"hello.cbl"})
	if err != nil {
		t.Fatal(err)
	}
	e := m.CFromCobol(filepath.Join(dir, "copybook.cbl"), 4)
	if e.IsNone() {
		t.Error("marker with inline path not attributed to that file")
	}
}
