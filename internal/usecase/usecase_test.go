package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/SachiinVishwakarma/CodeBasse/internal/domain"
	"github.com/SachiinVishwakarma/CodeBasse/internal/pool"
	pubmock "github.com/SachiinVishwakarma/CodeBasse/internal/publisher/mock"
	"github.com/SachiinVishwakarma/CodeBasse/internal/repository/mock"
	"github.com/SachiinVishwakarma/CodeBasse/internal/usecase"
	"github.com/SachiinVishwakarma/CodeBasse/internal/workspace"
)

type testDeps struct {
	ws   *mock.Workspaces
	exec *mock.Executor
	pub  *pubmock.MockPublisher
	uc   *usecase.ExecuteCodeUsecase
}

func newTestUsecase(t *testing.T, exec *mock.Executor) *testDeps {
	t.Helper()
	wp := pool.NewWorkerPool(2, zap.NewNop())
	wp.Start()
	t.Cleanup(wp.Stop)

	d := &testDeps{
		ws:   &mock.Workspaces{},
		exec: exec,
		pub:  pubmock.NewMockPublisher(),
	}
	d.uc = usecase.NewExecuteCodeUsecase(wp, d.ws, d.exec, d.pub, 1024, zap.NewNop())
	return d
}

const helloProgram = "#include <stdio.h>\nint main(void) {\n  int x = 5;\n  printf(\"%d\\n\", x);\n  return 0;\n}\n"

// ──────────────────────────────────────────────────────
// Validation
// ──────────────────────────────────────────────────────

func TestExecute_EmptyCode(t *testing.T) {
	d := newTestUsecase(t, &mock.Executor{})

	for _, code := range []string{"", "   \n\t"} {
		_, err := d.uc.Execute(context.Background(), &domain.RunRequest{Code: code}, nil)
		if !errors.Is(err, domain.ErrEmptySourceCode) {
			t.Errorf("expected ErrEmptySourceCode for %q, got %v", code, err)
		}
	}
	if len(d.ws.Acquired) != 0 || len(d.exec.CompileCalls) != 0 {
		t.Error("expected no workspace or compiler activity for invalid input")
	}
}

func TestExecute_PayloadTooLarge(t *testing.T) {
	d := newTestUsecase(t, &mock.Executor{})

	_, err := d.uc.Execute(context.Background(), &domain.RunRequest{Code: strings.Repeat("x", 1025)}, nil)

	if !errors.Is(err, domain.ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
	if len(d.ws.Acquired) != 0 {
		t.Error("expected no workspace to be acquired")
	}
}

// ──────────────────────────────────────────────────────
// Pipeline outcomes
// ──────────────────────────────────────────────────────

func TestExecute_SuccessWithTrace(t *testing.T) {
	d := newTestUsecase(t, &mock.Executor{
		RunFn: func(ctx context.Context, ws *workspace.Workspace, stdin string) (*domain.RunOutcome, error) {
			return &domain.RunOutcome{
				Status:    domain.StatusSuccess,
				Stdout:    "👉 memory: { x: 5 } at 0x1000\n5\n",
				ElapsedMs: 12,
			}, nil
		},
	})

	res, err := d.uc.Execute(context.Background(), &domain.RunRequest{Code: helloProgram, Input: "abc"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Status != domain.StatusSuccess || res.HasError {
		t.Errorf("expected SUCCESS without error, got %s / %v", res.Status, res.HasError)
	}
	if res.Output != "5\n" {
		t.Errorf("expected output %q, got %q", "5\n", res.Output)
	}
	if len(res.Trace) != 1 || res.Trace[0] != (domain.TraceEntry{Variable: "x", Value: "5", Address: "0x1000"}) {
		t.Errorf("unexpected trace %+v", res.Trace)
	}
	if res.ExecutionTime != 12 {
		t.Errorf("expected execution time 12, got %d", res.ExecutionTime)
	}
	if res.ExitCode == nil || *res.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %v", res.ExitCode)
	}

	// The workspace received instrumented source and was released once.
	src := d.ws.Sources[d.ws.Acquired[0].ID]
	if !strings.Contains(src, `__cb_trace_int("x", (long long)(x), 0x1000u);`) {
		t.Errorf("expected instrumented source, got:\n%s", src)
	}
	if d.ws.Released() != 1 {
		t.Errorf("expected 1 release, got %d", d.ws.Released())
	}
	if d.exec.RunCalls[0].Stdin != "abc" {
		t.Errorf("expected stdin %q, got %q", "abc", d.exec.RunCalls[0].Stdin)
	}
}

func TestExecute_StderrOnSuccessIsDiagnosticOnly(t *testing.T) {
	d := newTestUsecase(t, &mock.Executor{
		RunFn: func(context.Context, *workspace.Workspace, string) (*domain.RunOutcome, error) {
			return &domain.RunOutcome{Status: domain.StatusSuccess, Stdout: "ok\n", Stderr: "note\n"}, nil
		},
	})

	res, err := d.uc.Execute(context.Background(), &domain.RunRequest{Code: helloProgram}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.HasError {
		t.Error("expected stderr on exit 0 not to flag an error")
	}
	if res.Output != "ok\n" || res.Stderr != "note\n" {
		t.Errorf("expected output %q and stderr %q, got %q / %q", "ok\n", "note\n", res.Output, res.Stderr)
	}
}

func TestExecute_CompilationErrorShortCircuits(t *testing.T) {
	d := newTestUsecase(t, &mock.Executor{
		CompileFn: func(context.Context, *workspace.Workspace) (*domain.CompileOutcome, error) {
			return &domain.CompileOutcome{OK: false, Diagnostics: "main.c:3:3: error: expected ';'"}, nil
		},
	})

	res, err := d.uc.Execute(context.Background(), &domain.RunRequest{Code: helloProgram}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Status != domain.StatusCompilationError || !res.HasError {
		t.Errorf("expected COMPILATION_ERROR, got %s", res.Status)
	}
	if res.Output != "main.c:3:3: error: expected ';'" {
		t.Errorf("expected diagnostics as output, got %q", res.Output)
	}
	if res.ExecutionTime != 0 {
		t.Errorf("expected execution time 0, got %d", res.ExecutionTime)
	}
	if res.Trace == nil || len(res.Trace) != 0 {
		t.Errorf("expected empty non-nil trace, got %#v", res.Trace)
	}
	if d.exec.Runs() != 0 {
		t.Error("expected no run after a failed compile")
	}
	if d.ws.Released() != 1 {
		t.Errorf("expected workspace released, got %d", d.ws.Released())
	}
}

func TestExecute_HostIncludeIsCompilationError(t *testing.T) {
	d := newTestUsecase(t, &mock.Executor{})

	res, err := d.uc.Execute(context.Background(), &domain.RunRequest{Code: "#include \"/etc/passwd\"\nint main(void){return 0;}\n"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Status != domain.StatusCompilationError {
		t.Errorf("expected COMPILATION_ERROR, got %s", res.Status)
	}
	if !strings.HasPrefix(res.Output, "main.c:1:") {
		t.Errorf("expected diagnostic for line 1, got %q", res.Output)
	}
	if len(d.ws.Acquired) != 0 {
		t.Error("expected rejection before any workspace was created")
	}
}

func TestExecute_RuntimeErrorFoldsStderrAndNotice(t *testing.T) {
	d := newTestUsecase(t, &mock.Executor{
		RunFn: func(context.Context, *workspace.Workspace, string) (*domain.RunOutcome, error) {
			return &domain.RunOutcome{
				Status:    domain.StatusRuntimeError,
				Stdout:    "partial",
				Stderr:    "bad input\n",
				ExitCode:  3,
				ElapsedMs: 4,
			}, nil
		},
	})

	res, err := d.uc.Execute(context.Background(), &domain.RunRequest{Code: helloProgram}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "partial\nbad input\nProcess exited with code 3"
	if res.Output != want {
		t.Errorf("expected output %q, got %q", want, res.Output)
	}
	if !res.HasError || res.Status != domain.StatusRuntimeError {
		t.Errorf("expected RUNTIME_ERROR, got %s", res.Status)
	}
	if res.ExitCode == nil || *res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %v", res.ExitCode)
	}
}

func TestExecute_SignalNotice(t *testing.T) {
	d := newTestUsecase(t, &mock.Executor{
		RunFn: func(context.Context, *workspace.Workspace, string) (*domain.RunOutcome, error) {
			return &domain.RunOutcome{Status: domain.StatusRuntimeError, ExitCode: -1, Signal: "SIGSEGV"}, nil
		},
	})

	res, _ := d.uc.Execute(context.Background(), &domain.RunRequest{Code: helloProgram}, nil)

	if res.Output != "Process terminated by signal SIGSEGV" {
		t.Errorf("unexpected output %q", res.Output)
	}
	if res.ExitCode != nil {
		t.Errorf("expected no exit code for a signalled run, got %d", *res.ExitCode)
	}
}

func TestExecute_TimeoutNotice(t *testing.T) {
	d := newTestUsecase(t, &mock.Executor{
		Timeout: 5 * time.Second,
		RunFn: func(context.Context, *workspace.Workspace, string) (*domain.RunOutcome, error) {
			return &domain.RunOutcome{
				Status:    domain.StatusTimeout,
				Stdout:    "👉 memory: { i: 1 } at 0x1000\n",
				ElapsedMs: 5003,
			}, nil
		},
	})

	res, _ := d.uc.Execute(context.Background(), &domain.RunRequest{Code: helloProgram}, nil)

	if res.Status != domain.StatusTimeout || !res.HasError {
		t.Errorf("expected TIMEOUT, got %s", res.Status)
	}
	if res.Output != "Execution timed out after 5s" {
		t.Errorf("unexpected output %q", res.Output)
	}
	if len(res.Trace) != 1 {
		t.Errorf("expected trace up to the kill to be kept, got %d entries", len(res.Trace))
	}
}

func TestExecute_SandboxFailureIsSystemError(t *testing.T) {
	d := newTestUsecase(t, &mock.Executor{
		RunFn: func(context.Context, *workspace.Workspace, string) (*domain.RunOutcome, error) {
			return nil, errors.New("fork: resource temporarily unavailable")
		},
	})

	res, err := d.uc.Execute(context.Background(), &domain.RunRequest{Code: helloProgram}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Status != domain.StatusSystemError || !res.HasError {
		t.Errorf("expected SYSTEM_ERROR, got %s", res.Status)
	}
	if strings.Contains(res.Output, "fork") {
		t.Error("expected internal error details to stay out of the response")
	}
	if d.ws.Released() != 1 {
		t.Errorf("expected workspace released, got %d", d.ws.Released())
	}
}

func TestExecute_WorkspaceFailureIsSystemError(t *testing.T) {
	d := newTestUsecase(t, &mock.Executor{})
	d.ws.AcquireFn = func(context.Context) (*workspace.Workspace, error) {
		return nil, errors.New("disk full")
	}

	res, err := d.uc.Execute(context.Background(), &domain.RunRequest{Code: helloProgram}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusSystemError {
		t.Errorf("expected SYSTEM_ERROR, got %s", res.Status)
	}
	if len(d.exec.CompileCalls) != 0 {
		t.Error("expected no compile without a workspace")
	}
}

// ──────────────────────────────────────────────────────
// Isolation, progress and events
// ──────────────────────────────────────────────────────

func TestExecute_IdenticalSubmissionsGetDistinctWorkspaces(t *testing.T) {
	d := newTestUsecase(t, &mock.Executor{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.uc.Execute(context.Background(), &domain.RunRequest{Code: helloProgram}, nil); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, ws := range d.ws.Acquired {
		if seen[ws.ID] {
			t.Errorf("workspace %s reused", ws.ID)
		}
		seen[ws.ID] = true
	}
	if len(seen) != 4 || d.ws.Released() != 4 {
		t.Errorf("expected 4 acquired and released workspaces, got %d / %d", len(seen), d.ws.Released())
	}
}

func TestExecute_ObserverSeesStagesInOrder(t *testing.T) {
	d := newTestUsecase(t, &mock.Executor{})

	var stages []domain.ExecutionStatus
	res, err := d.uc.Execute(context.Background(), &domain.RunRequest{Code: helloProgram}, func(ev domain.ProgressEvent) {
		stages = append(stages, ev.Status)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.ExecutionStatus{domain.StatusQueued, domain.StatusCompiling, domain.StatusRunning, res.Status}
	if len(stages) != len(want) {
		t.Fatalf("expected stages %v, got %v", want, stages)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("stage %d: expected %s, got %s", i, want[i], stages[i])
		}
	}
}

func TestExecute_PublishesEventWithoutSource(t *testing.T) {
	d := newTestUsecase(t, &mock.Executor{})

	res, err := d.uc.Execute(context.Background(), &domain.RunRequest{Code: helloProgram}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d.uc.Wait()

	events := d.pub.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.ExecutionID != res.ExecutionID || ev.Status != res.Status {
		t.Errorf("event does not match result: %+v vs %+v", ev, res)
	}
	if ev.SourceBytes != len(helloProgram) {
		t.Errorf("expected source size %d, got %d", len(helloProgram), ev.SourceBytes)
	}
}

func TestExecute_PublishFailureDoesNotFailExecution(t *testing.T) {
	d := newTestUsecase(t, &mock.Executor{})
	d.pub.PublishFn = func(context.Context, *domain.ExecutionEvent) error {
		return errors.New("broker down")
	}

	res, err := d.uc.Execute(context.Background(), &domain.RunRequest{Code: helloProgram}, nil)
	d.uc.Wait()

	if err != nil || res.Status != domain.StatusSuccess {
		t.Errorf("expected success despite publish failure, got %v / %v", res, err)
	}
}

func TestExecute_PoolClosed(t *testing.T) {
	wp := pool.NewWorkerPool(1, zap.NewNop())
	wp.Start()
	wp.Stop()

	uc := usecase.NewExecuteCodeUsecase(wp, &mock.Workspaces{}, &mock.Executor{}, nil, 0, zap.NewNop())

	_, err := uc.Execute(context.Background(), &domain.RunRequest{Code: helloProgram}, nil)
	if !errors.Is(err, domain.ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}

// ──────────────────────────────────────────────────────
// Examples
// ──────────────────────────────────────────────────────

func TestExamples_ListFilterAndGet(t *testing.T) {
	repo := mock.NewExampleRepository(
		domain.Example{ID: "hello", Category: "Basics", Difficulty: domain.DifficultyBeginner},
		domain.Example{ID: "sort", Category: "Algorithms", Difficulty: domain.DifficultyIntermediate},
	)
	uc := usecase.NewExamplesUsecase(repo, zap.NewNop())

	all, err := uc.List(context.Background(), usecase.ExampleFilter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 examples, got %d (%v)", len(all), err)
	}

	basics, _ := uc.List(context.Background(), usecase.ExampleFilter{Category: "basics"})
	if len(basics) != 1 || basics[0].ID != "hello" {
		t.Errorf("expected only hello, got %+v", basics)
	}

	ex, err := uc.Get(context.Background(), "sort")
	if err != nil || ex.ID != "sort" {
		t.Errorf("expected sort example, got %+v (%v)", ex, err)
	}

	if _, err := uc.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrExampleNotFound) {
		t.Errorf("expected ErrExampleNotFound, got %v", err)
	}
}
