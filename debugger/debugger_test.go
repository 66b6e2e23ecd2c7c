package debugger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brunopacheco1/gnucobol-debug/api"
	"github.com/brunopacheco1/gnucobol-debug/mi"
	"github.com/brunopacheco1/gnucobol-debug/session"
	"github.com/brunopacheco1/gnucobol-debug/sourcemap"
)

// fakeSession records every command and replies from a scripted table.
type fakeSession struct {
	commands []string
	replies  map[string]string // command prefix -> MI reply line
	raw      []string
}

func (f *fakeSession) Send(command string) <-chan session.Outcome {
	f.commands = append(f.commands, command)
	ch := make(chan session.Outcome, 1)
	for prefix, reply := range f.replies {
		if strings.HasPrefix(command, prefix) {
			rec, err := mi.ParseRecord(reply)
			if err != nil {
				ch <- session.Outcome{Err: err}
				return ch
			}
			if rec.Class == mi.ResultError {
				ch <- session.Outcome{Record: rec, Err: &session.CommandError{
					Command: command,
					Msg:     rec.Results.GetString("msg"),
				}}
				return ch
			}
			ch <- session.Outcome{Record: rec}
			return ch
		}
	}
	ch <- session.Outcome{Record: &mi.Record{Class: mi.ResultDone, Results: mi.Tuple()}}
	return ch
}

func (f *fakeSession) SendSuppress(command string) <-chan session.Outcome {
	return f.Send(command)
}

func (f *fakeSession) SendRaw(line string) error {
	f.raw = append(f.raw, line)
	return nil
}

func (f *fakeSession) Stop() error   { return f.SendRaw("-gdb-exit") }
func (f *fakeSession) Detach() error { return f.SendRaw("-target-detach") }

func newTestDebugger(t *testing.T, fake *fakeSession) *Debugger {
	t.Helper()
	d := New(Config{})
	d.sess = fake
	go func() {
		for range d.Events {
		}
	}()
	return d
}

// mapFor builds a source map whose hello.cbl line 10 lands on hello.c:23.
func mapFor(t *testing.T, dir string) *sourcemap.Map {
	t.Helper()
	content := "/* Generated from hello.cbl */\n" +
		strings.Repeat("\n", 19) +
		"/* Line: 10        : hello.cbl */\n" +
		"  cob_move (...);\n" +
		"static cob_u8_t b_11[8];\t/* WS-AMOUNT */\n"
	if err := os.WriteFile(filepath.Join(dir, "hello.c"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := sourcemap.New(dir, []string{"hello.cbl"})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestAddBreakPointMapped(t *testing.T) {
	dir := t.TempDir()
	cFile := filepath.Join(dir, "hello.c")
	fake := &fakeSession{replies: map[string]string{
		"break-insert":    `^done,bkpt={number="1",file="` + cFile + `",line="23"}`,
		"break-condition": `^done`,
	}}
	d := newTestDebugger(t, fake)
	d.smap = mapFor(t, dir)

	bp, err := d.AddBreakPoint(api.BreakPoint{
		File:      filepath.Join(dir, "hello.cbl"),
		Line:      10,
		Condition: "x > 0",
	})
	if err != nil {
		t.Fatal(err)
	}

	wantInsert := `break-insert -f "` + cFile + `:23"`
	if fake.commands[0] != wantInsert {
		t.Errorf("command = %q, want %q", fake.commands[0], wantInsert)
	}
	if fake.commands[1] != "break-condition 1 x > 0" {
		t.Errorf("condition command = %q", fake.commands[1])
	}
	if bp.ID != 1 || bp.File != filepath.Join(dir, "hello.cbl") || bp.Line != 10 {
		t.Errorf("canonical breakpoint = %+v", bp)
	}
	if len(d.BreakPoints()) != 1 {
		t.Errorf("table size = %d, want 1", len(d.BreakPoints()))
	}
}

func TestAddBreakPointRawWithIgnoreCount(t *testing.T) {
	fake := &fakeSession{replies: map[string]string{
		"break-insert": `^done,bkpt={number="2",func="main"}`,
	}}
	d := newTestDebugger(t, fake)

	if _, err := d.AddBreakPoint(api.BreakPoint{Raw: "main", CountCondition: ">3"}); err != nil {
		t.Fatal(err)
	}
	want := `break-insert -f -i 3 "main"`
	if fake.commands[0] != want {
		t.Errorf("command = %q, want %q", fake.commands[0], want)
	}
}

func TestCountConditionVariants(t *testing.T) {
	cases := []struct {
		cc   string
		want string
	}{
		{"", `break-insert -f "main"`},
		{">3", `break-insert -f -i 3 "main"`},
		{"0", `break-insert -f -t "main"`},
		{"5", `break-insert -f -t -i 5 "main"`},
		{"odd", `break-insert -f -t "main"`},
	}
	for _, tc := range cases {
		t.Run(tc.cc, func(t *testing.T) {
			fake := &fakeSession{replies: map[string]string{
				"break-insert": `^done,bkpt={number="9"}`,
			}}
			d := newTestDebugger(t, fake)
			if _, err := d.AddBreakPoint(api.BreakPoint{Raw: "main", CountCondition: tc.cc}); err != nil {
				t.Fatal(err)
			}
			if fake.commands[0] != tc.want {
				t.Errorf("command = %q, want %q", fake.commands[0], tc.want)
			}
		})
	}
}

func TestAddBreakPointDeduplicates(t *testing.T) {
	fake := &fakeSession{replies: map[string]string{
		"break-insert": `^done,bkpt={number="3"}`,
	}}
	d := newTestDebugger(t, fake)

	first, err := d.AddBreakPoint(api.BreakPoint{Raw: "main"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.AddBreakPoint(api.BreakPoint{Raw: "main"})
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("duplicate breakpoint was re-inserted")
	}
	if n := len(fake.commands); n != 1 {
		t.Errorf("commands sent = %d, want 1", n)
	}
}

func TestAddBreakPointUnmappedFails(t *testing.T) {
	d := newTestDebugger(t, &fakeSession{})
	d.smap = mapFor(t, t.TempDir())

	if _, err := d.AddBreakPoint(api.BreakPoint{File: "/nowhere/x.cbl", Line: 1}); err == nil {
		t.Error("expected error for unmapped breakpoint")
	}
}

func TestFailingConditionResolvesEmpty(t *testing.T) {
	fake := &fakeSession{replies: map[string]string{
		"break-insert":    `^done,bkpt={number="4"}`,
		"break-condition": `^error,msg="bad condition"`,
	}}
	d := newTestDebugger(t, fake)

	bp, err := d.AddBreakPoint(api.BreakPoint{Raw: "main", Condition: "nonsense"})
	if err != nil {
		t.Errorf("err = %v, want nil", err)
	}
	if bp != nil {
		t.Errorf("bp = %+v, want nil", bp)
	}
}

func TestRemoveAndClearBreakPoints(t *testing.T) {
	fake := &fakeSession{replies: map[string]string{
		"break-insert": `^done,bkpt={number="7"}`,
	}}
	d := newTestDebugger(t, fake)

	if _, err := d.AddBreakPoint(api.BreakPoint{Raw: "main"}); err != nil {
		t.Fatal(err)
	}
	ok, err := d.RemoveBreakPoint(api.BreakPoint{Raw: "main"})
	if err != nil || !ok {
		t.Fatalf("remove = (%v, %v)", ok, err)
	}
	if fake.commands[len(fake.commands)-1] != "break-delete 7" {
		t.Errorf("command = %q", fake.commands[len(fake.commands)-1])
	}
	if len(d.BreakPoints()) != 0 {
		t.Error("table not emptied")
	}

	if _, err := d.ClearBreakPoints(); err != nil {
		t.Fatal(err)
	}
	if fake.commands[len(fake.commands)-1] != "break-delete" {
		t.Errorf("command = %q", fake.commands[len(fake.commands)-1])
	}
}

func TestControlFlow(t *testing.T) {
	fake := &fakeSession{replies: map[string]string{
		"exec-continue":  `^running`,
		"exec-next":      `^running`,
		"exec-step":      `^running`,
		"exec-finish":    `^running`,
		"exec-interrupt": `^done`,
	}}
	d := newTestDebugger(t, fake)

	for _, op := range []func(bool) (bool, error){d.Continue, d.Next, d.Step, d.StepOut} {
		ok, err := op(false)
		if err != nil || !ok {
			t.Errorf("control op = (%v, %v), want (true, nil)", ok, err)
		}
	}
	if ok, err := d.Interrupt(); err != nil || !ok {
		t.Errorf("interrupt = (%v, %v)", ok, err)
	}

	fake.commands = nil
	if _, err := d.Continue(true); err != nil {
		t.Fatal(err)
	}
	if fake.commands[0] != "exec-continue --reverse" {
		t.Errorf("command = %q", fake.commands[0])
	}
}

func TestGetThreads(t *testing.T) {
	fake := &fakeSession{replies: map[string]string{
		"thread-info": `^done,threads=[{id="1",target-id="process 1042",name="hello"},{id="2",target-id="process 1043"}]`,
	}}
	d := newTestDebugger(t, fake)

	threads, err := d.GetThreads()
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 2 {
		t.Fatalf("len = %d, want 2", len(threads))
	}
	if threads[0].ID != 1 || threads[0].TargetID != "process 1042" || threads[0].Name != "hello" {
		t.Errorf("threads[0] = %+v", threads[0])
	}
}

func TestGetStackTranslatesFrames(t *testing.T) {
	dir := t.TempDir()
	cFile := filepath.Join(dir, "hello.c")
	fake := &fakeSession{replies: map[string]string{
		"stack-list-frames": `^done,stack=[` +
			`frame={level="0",addr="0x40",func="hello_",fullname="` + cFile + `",line="23"},` +
			`frame={level="1",addr="0x50",from="/lib/libcob.so",fullname="/src/libcob.c",line="99"}]`,
	}}
	d := newTestDebugger(t, fake)
	d.smap = mapFor(t, dir)

	frames, err := d.GetStack(10, 1)
	if err != nil {
		t.Fatal(err)
	}
	if fake.commands[0] != "stack-list-frames --thread 1 0 10" {
		t.Errorf("command = %q", fake.commands[0])
	}
	if len(frames) != 2 {
		t.Fatalf("len = %d, want 2", len(frames))
	}
	if frames[0].File != filepath.Join(dir, "hello.cbl") || frames[0].Line != 10 {
		t.Errorf("frame 0 not translated: %+v", frames[0])
	}
	if frames[0].FileBasename != "hello.cbl" {
		t.Errorf("basename = %q", frames[0].FileBasename)
	}
	// Unmapped frame falls through to raw C coordinates; func falls back to
	// the shared object it came from.
	if frames[1].File != "/src/libcob.c" || frames[1].Line != 99 {
		t.Errorf("frame 1 = %+v", frames[1])
	}
	if frames[1].Function != "/lib/libcob.so" {
		t.Errorf("frame 1 function = %q", frames[1].Function)
	}
}

func TestGetStackVariablesFiltersUnmapped(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeSession{replies: map[string]string{
		"stack-list-variables": `^done,variables=[` +
			`{name="b_11",value="000123",type="cob_u8_t [8]"},` +
			`{name="i_7",value="0"}]`,
	}}
	d := newTestDebugger(t, fake)
	d.smap = mapFor(t, dir)

	vars, err := d.GetStackVariables(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if fake.commands[0] != "stack-list-variables --thread 1 --frame 0 --simple-values" {
		t.Errorf("command = %q", fake.commands[0])
	}
	if len(vars) != 1 {
		t.Fatalf("len = %d, want 1 (unmapped variable not filtered)", len(vars))
	}
	if vars[0].Name != "WS-AMOUNT" || vars[0].ValueStr != "000123" {
		t.Errorf("vars[0] = %+v", vars[0])
	}
}

func TestEvalExpressionTranslatesName(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeSession{replies: map[string]string{
		"data-evaluate-expression": `^done,value="000123"`,
	}}
	d := newTestDebugger(t, fake)
	d.smap = mapFor(t, dir)

	value, err := d.EvalExpression(`"WS-AMOUNT"`, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if value != "000123" {
		t.Errorf("value = %q", value)
	}
	if fake.commands[0] != "data-evaluate-expression --thread 1 --frame 0 b_11" {
		t.Errorf("command = %q", fake.commands[0])
	}
}

func TestExamineMemory(t *testing.T) {
	fake := &fakeSession{replies: map[string]string{
		"data-read-memory-bytes": `^done,memory=[{begin="0x1000",end="0x1004",contents="deadbeef"}]`,
	}}
	d := newTestDebugger(t, fake)

	contents, err := d.ExamineMemory(0x1000, 4)
	if err != nil {
		t.Fatal(err)
	}
	if contents != "deadbeef" {
		t.Errorf("contents = %q", contents)
	}
	if fake.commands[0] != "data-read-memory-bytes 0x1000 4" {
		t.Errorf("command = %q", fake.commands[0])
	}
}

func TestVarCreateAndChildren(t *testing.T) {
	fake := &fakeSession{replies: map[string]string{
		"var-create": `^done,name="var1",numchild="2",value="{...}",type="cob_field",thread-id="1",has_more="0"`,
		"var-list-children": `^done,numchild="2",children=[` +
			`child={name="var1.size",exp="size",numchild="0",value="8",type="size_t"},` +
			`child={name="var1.data",exp="data",numchild="0",value="0x5555",type="unsigned char *"}]`,
	}}
	d := newTestDebugger(t, fake)

	obj, err := d.VarCreate("b_11", "")
	if err != nil {
		t.Fatal(err)
	}
	if fake.commands[0] != `var-create - @ "b_11"` {
		t.Errorf("command = %q", fake.commands[0])
	}
	if !obj.IsCompound() {
		t.Error("varobj with children not compound")
	}

	children, err := d.VarListChildren(obj.Name)
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 || children[0].Exp != "size" || children[1].Value != "0x5555" {
		t.Errorf("children = %+v", children)
	}
}

func TestSendUserInput(t *testing.T) {
	fake := &fakeSession{}
	d := newTestDebugger(t, fake)

	if _, err := d.SendUserInput("-exec-next", 0, 0); err != nil {
		t.Fatal(err)
	}
	if fake.commands[0] != "exec-next" {
		t.Errorf("MI passthrough = %q", fake.commands[0])
	}

	if _, err := d.SendUserInput(`print "x"`, 2, 1); err != nil {
		t.Fatal(err)
	}
	want := `interpreter-exec --thread 2 --frame 1 console "print \"x\""`
	if fake.commands[1] != want {
		t.Errorf("console command = %q, want %q", fake.commands[1], want)
	}
}

func TestStartWaitsForUIRendezvous(t *testing.T) {
	fake := &fakeSession{replies: map[string]string{
		"exec-run": `^running`,
	}}
	d := newTestDebugger(t, fake)

	started := make(chan bool, 1)
	go func() {
		ok, _ := d.Start()
		started <- ok
	}()

	select {
	case <-started:
		t.Fatal("Start returned before the UI finished installing breakpoints")
	default:
	}
	d.UIBreakDone()
	if ok := <-started; !ok {
		t.Error("Start = false, want true")
	}
	d.UIBreakDone() // second signal is a no-op
}

func TestExecutablePath(t *testing.T) {
	cases := []struct {
		cwd    string
		target string
		want   string
	}{
		{"/work", "hello.cbl", "/work/hello"},
		{"/work", "/abs/hello.cob", "/abs/hello"},
		{"/work", "noext", "/work/noext"},
	}
	for _, tc := range cases {
		if got := executablePath(tc.cwd, tc.target); got != tc.want {
			t.Errorf("executablePath(%q, %q) = %q, want %q", tc.cwd, tc.target, got, tc.want)
		}
	}
}

func TestGoto(t *testing.T) {
	dir := t.TempDir()
	cFile := filepath.Join(dir, "hello.c")
	fake := &fakeSession{replies: map[string]string{
		"break-insert": `^done,bkpt={number="5"}`,
		"exec-jump":    `^running`,
	}}
	d := newTestDebugger(t, fake)
	d.smap = mapFor(t, dir)

	ok, err := d.Goto(filepath.Join(dir, "hello.cbl"), 10)
	if err != nil || !ok {
		t.Fatalf("goto = (%v, %v)", ok, err)
	}
	wantLoc := `"` + cFile + `:23"`
	if fake.commands[0] != "break-insert -t "+wantLoc {
		t.Errorf("command = %q", fake.commands[0])
	}
	if fake.commands[1] != "exec-jump "+wantLoc {
		t.Errorf("command = %q", fake.commands[1])
	}
}

func TestNoSession(t *testing.T) {
	d := New(Config{})
	if _, err := d.Continue(false); err != ErrNoSession {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}
