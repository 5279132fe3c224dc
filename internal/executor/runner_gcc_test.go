//go:build linux

package executor

import (
	"context"
	"fmt"
	"os/exec"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/SachiinVishwakarma/CodeBasse/internal/domain"
	"github.com/SachiinVishwakarma/CodeBasse/internal/instrument"
	"github.com/SachiinVishwakarma/CodeBasse/internal/sandbox"
	"github.com/SachiinVishwakarma/CodeBasse/internal/tracelog"
	"github.com/SachiinVishwakarma/CodeBasse/internal/workspace"
)

// ──────────────────────────────────────────────────────
// Compiler tests, skipped when gcc is not installed
// ──────────────────────────────────────────────────────

func skipIfNoGCC(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("gcc"); err != nil {
		t.Skip("gcc not installed, skipping compiler test")
	}
}

func compileAndRun(t *testing.T, src, stdin string, cfg Config) (*domain.CompileOutcome, *domain.RunOutcome) {
	t.Helper()
	skipIfNoGCC(t)

	m, ws := newTestWorkspace(t)
	if err := m.Materialize(ws, src); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	sb := sandbox.NewProcess(sandbox.Limits{UID: -1, GID: -1, MaxOpenFiles: 64}, zap.NewNop())
	r := NewRunner(cfg, sb, zap.NewNop())

	compiled, err := r.Compile(context.Background(), ws)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !compiled.OK {
		return compiled, nil
	}
	run, err := r.Run(context.Background(), ws, stdin)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return compiled, run
}

func TestGCC_HelloWorld(t *testing.T) {
	_, run := compileAndRun(t, "#include <stdio.h>\nint main(void){ printf(\"Hello\\n\"); return 0; }\n", "", Config{})

	if run == nil || run.Status != domain.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %+v", run)
	}
	if run.Stdout != "Hello\n" {
		t.Errorf("expected %q, got %q", "Hello\n", run.Stdout)
	}
}

func TestGCC_CompileErrorReportsUserLine(t *testing.T) {
	src, err := instrument.Transform("int main(void) {\n  int x = 1\n  return x;\n}\n")
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	compiled, run := compileAndRun(t, src, "", Config{})

	if compiled.OK || run != nil {
		t.Fatal("expected compilation to fail")
	}
	if !strings.Contains(compiled.Diagnostics, "main.c:2") && !strings.Contains(compiled.Diagnostics, "main.c:3") {
		t.Errorf("expected diagnostics to point at the user's lines, got:\n%s", compiled.Diagnostics)
	}
}

func TestGCC_NonZeroExit(t *testing.T) {
	_, run := compileAndRun(t, "int main(void){ return 3; }\n", "", Config{})

	if run.Status != domain.StatusRuntimeError || run.ExitCode != 3 {
		t.Errorf("expected RUNTIME_ERROR with exit 3, got %s / %d", run.Status, run.ExitCode)
	}
}

func TestGCC_Segfault(t *testing.T) {
	_, run := compileAndRun(t, "int main(void){ volatile int *p = 0; *p = 1; return 0; }\n", "", Config{})

	if run.Status != domain.StatusRuntimeError {
		t.Errorf("expected RUNTIME_ERROR, got %s", run.Status)
	}
	if run.Signal != "SIGSEGV" {
		t.Errorf("expected SIGSEGV, got %q", run.Signal)
	}
}

func TestGCC_InfiniteLoopTimesOut(t *testing.T) {
	start := time.Now()
	_, run := compileAndRun(t, "int main(void){ for(;;){} }\n", "", Config{RunTimeout: 300 * time.Millisecond})

	if run.Status != domain.StatusTimeout {
		t.Errorf("expected TIMEOUT, got %s", run.Status)
	}
	if time.Since(start) > 10*time.Second {
		t.Errorf("expected prompt kill, took %s", time.Since(start))
	}
}

func TestGCC_InstrumentedTraceRoundTrip(t *testing.T) {
	src, err := instrument.Transform("#include <stdio.h>\nint main(void) {\n  int x = 5;\n  x = x + 1;\n  printf(\"%d\\n\", x);\n  return 0;\n}\n")
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	_, run := compileAndRun(t, src, "", Config{})
	if run == nil || run.Status != domain.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %+v", run)
	}

	display, entries := tracelog.Parse(run.Stdout)
	if display != "6\n" {
		t.Errorf("expected display %q, got %q", "6\n", display)
	}
	want := []domain.TraceEntry{
		{Variable: "x", Value: "5", Address: "0x1000"},
		{Variable: "x", Value: "6", Address: "0x1000"},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d: %+v", len(want), len(entries), entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], entries[i])
		}
	}
}

func TestGCC_ScanfReadsStdin(t *testing.T) {
	src, err := instrument.Transform("#include <stdio.h>\nint main(void) {\n  int n;\n  scanf(\"%d\", &n);\n  printf(\"%d\\n\", n * 2);\n  return 0;\n}\n")
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	_, run := compileAndRun(t, src, "21\n", Config{})

	display, entries := tracelog.Parse(run.Stdout)
	if display != "42\n" {
		t.Errorf("expected display %q, got %q", "42\n", display)
	}
	if len(entries) != 1 || entries[0].Variable != "n" || entries[0].Value != "21" {
		t.Errorf("expected a single n=21 entry, got %+v", entries)
	}
}

func TestGCC_TraceAfterPromptWithoutNewline(t *testing.T) {
	src, err := instrument.Transform("#include <stdio.h>\nint main(void) {\n  int n;\n  printf(\"Enter n: \");\n  scanf(\"%d\", &n);\n  printf(\"n=%d\\n\", n);\n  return 0;\n}\n")
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	_, run := compileAndRun(t, src, "7\n", Config{})
	if run == nil || run.Status != domain.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %+v", run)
	}

	display, entries := tracelog.Parse(run.Stdout)
	if display != "Enter n: n=7\n" {
		t.Errorf("expected display %q, got %q", "Enter n: n=7\n", display)
	}
	want := domain.TraceEntry{Variable: "n", Value: "7", Address: "0x1000"}
	if len(entries) != 1 || entries[0] != want {
		t.Errorf("expected [%+v], got %+v", want, entries)
	}
}

func TestGCC_PartialLineBeforeAssignment(t *testing.T) {
	src, err := instrument.Transform("#include <stdio.h>\nint main(void) {\n  int x = 1;\n  printf(\"v\");\n  x = 2;\n  printf(\"%d\\n\", x);\n  return 0;\n}\n")
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	_, run := compileAndRun(t, src, "", Config{})

	display, entries := tracelog.Parse(run.Stdout)
	if display != "v2\n" {
		t.Errorf("expected display %q, got %q", "v2\n", display)
	}
	if len(entries) != 2 || entries[1].Value != "2" {
		t.Errorf("expected x=1 then x=2, got %+v", entries)
	}
}

// ──────────────────────────────────────────────────────
// Input exhaustion
// ──────────────────────────────────────────────────────

const twoInts = "#include <stdio.h>\nint main(void) {\n  int a, b;\n  scanf(\"%d %d\", &a, &b);\n  printf(\"%d\\n\", a + b);\n  return 0;\n}\n"

func TestGCC_InsufficientStdinIsRuntimeError(t *testing.T) {
	src, err := instrument.Transform(twoInts)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	_, run := compileAndRun(t, src, "3\n", Config{})

	if run.Status != domain.StatusRuntimeError || run.ExitCode != 1 {
		t.Errorf("expected RUNTIME_ERROR with exit 1, got %s / %d", run.Status, run.ExitCode)
	}
	if !strings.Contains(run.Stderr, instrument.InputExhaustedMessage) {
		t.Errorf("expected stderr to explain the missing input, got %q", run.Stderr)
	}
}

func TestGCC_EmptyStdinIsRuntimeError(t *testing.T) {
	src, err := instrument.Transform(twoInts)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	_, run := compileAndRun(t, src, "", Config{})

	if run.Status != domain.StatusRuntimeError {
		t.Errorf("expected RUNTIME_ERROR, got %s", run.Status)
	}
}

func TestGCC_SufficientStdinSucceeds(t *testing.T) {
	src, err := instrument.Transform(twoInts)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	_, run := compileAndRun(t, src, "3 4", Config{})

	if run.Status != domain.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s (stderr %q)", run.Status, run.Stderr)
	}
	if display, _ := tracelog.Parse(run.Stdout); display != "7\n" {
		t.Errorf("expected display %q, got %q", "7\n", display)
	}
}

func TestGCC_CheckedReadLoopEndsCleanlyAtEOF(t *testing.T) {
	src, err := instrument.Transform("#include <stdio.h>\nint main(void) {\n  int x, sum = 0;\n  while (scanf(\"%d\", &x) == 1) sum += x;\n  printf(\"%d\\n\", sum);\n  return 0;\n}\n")
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	_, run := compileAndRun(t, src, "1 2 3\n", Config{})

	if run.Status != domain.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s (stderr %q)", run.Status, run.Stderr)
	}
	if display, _ := tracelog.Parse(run.Stdout); display != "6\n" {
		t.Errorf("expected display %q, got %q", "6\n", display)
	}
}

// ──────────────────────────────────────────────────────
// Concurrent runs
// ──────────────────────────────────────────────────────

type tracedRun struct {
	display string
	entries []domain.TraceEntry
}

func TestGCC_ConcurrentDifferentProgramsMatchSequential(t *testing.T) {
	skipIfNoGCC(t)

	programs := []struct{ src, stdin string }{
		{"#include <stdio.h>\nint main(void) {\n  int a = 1, b = 2;\n  for (int i = 0; i < 50; i++) { a = a + b; }\n  printf(\"a=%d\\n\", a);\n  return 0;\n}\n", ""},
		{"#include <stdio.h>\nint main(void) {\n  int n;\n  double d;\n  scanf(\"%d\", &n);\n  d = n / 4.0;\n  printf(\"d=%g\\n\", d);\n  return 0;\n}\n", "10\n"},
	}

	sb := sandbox.NewProcess(sandbox.Limits{UID: -1, GID: -1, MaxOpenFiles: 64}, zap.NewNop())
	r := NewRunner(Config{}, sb, zap.NewNop())

	execute := func(ws *workspace.Workspace, m *workspace.Manager, src, stdin string) (tracedRun, error) {
		instrumented, err := instrument.Transform(src)
		if err != nil {
			return tracedRun{}, err
		}
		if err := m.Materialize(ws, instrumented); err != nil {
			return tracedRun{}, err
		}
		compiled, err := r.Compile(context.Background(), ws)
		if err != nil {
			return tracedRun{}, err
		}
		if !compiled.OK {
			return tracedRun{}, fmt.Errorf("compile failed: %s", compiled.Diagnostics)
		}
		run, err := r.Run(context.Background(), ws, stdin)
		if err != nil {
			return tracedRun{}, err
		}
		display, entries := tracelog.Parse(run.Stdout)
		return tracedRun{display: display, entries: entries}, nil
	}

	sequential := make([]tracedRun, len(programs))
	for i, p := range programs {
		m, ws := newTestWorkspace(t)
		got, err := execute(ws, m, p.src, p.stdin)
		if err != nil {
			t.Fatalf("sequential run %d: %v", i, err)
		}
		sequential[i] = got
	}

	const rounds = 4
	type slot struct {
		m  *workspace.Manager
		ws *workspace.Workspace
	}
	slots := make([]slot, rounds*len(programs))
	for i := range slots {
		m, ws := newTestWorkspace(t)
		slots[i] = slot{m, ws}
	}

	concurrent := make([]tracedRun, len(slots))
	errs := make([]error, len(slots))
	var wg sync.WaitGroup
	for i := range slots {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := programs[i%len(programs)]
			concurrent[i], errs[i] = execute(slots[i].ws, slots[i].m, p.src, p.stdin)
		}(i)
	}
	wg.Wait()

	for i := range slots {
		if errs[i] != nil {
			t.Fatalf("concurrent run %d: %v", i, errs[i])
		}
		want := sequential[i%len(programs)]
		got := concurrent[i]
		if got.display != want.display {
			t.Errorf("run %d: expected display %q, got %q", i, want.display, got.display)
		}
		if !reflect.DeepEqual(got.entries, want.entries) {
			t.Errorf("run %d: trace differs from the sequential run\nexpected %+v\ngot      %+v", i, want.entries, got.entries)
		}
	}

	if sequential[1].entries[0] != (domain.TraceEntry{Variable: "n", Value: "10", Address: "0x1000"}) {
		t.Errorf("expected the second program to start its addresses at 0x1000, got %+v", sequential[1].entries[0])
	}
}
