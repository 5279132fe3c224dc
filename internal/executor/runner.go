package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SachiinVishwakarma/CodeBasse/internal/domain"
	"github.com/SachiinVishwakarma/CodeBasse/internal/metrics"
	"github.com/SachiinVishwakarma/CodeBasse/internal/sandbox"
	"github.com/SachiinVishwakarma/CodeBasse/internal/workspace"
)

const (
	// DefaultMaxOutputBytes caps stdout/stderr to prevent memory exhaustion.
	DefaultMaxOutputBytes = 64 * 1024

	DefaultCompileTimeout = 10 * time.Second
	DefaultRunTimeout     = 5 * time.Second
)

// Config controls how programs are compiled and run.
type Config struct {
	CompilerPath   string
	CompilerFlags  []string
	LinkFlags      []string
	CompileTimeout time.Duration
	RunTimeout     time.Duration
	MaxOutputBytes int
}

// DefaultConfig returns gcc settings matching `gcc -std=gnu11 -O0 -o main main.c -lm`.
func DefaultConfig() Config {
	return Config{
		CompilerPath:   "gcc",
		CompilerFlags:  []string{"-std=gnu11", "-O0"},
		LinkFlags:      []string{"-lm"},
		CompileTimeout: DefaultCompileTimeout,
		RunTimeout:     DefaultRunTimeout,
		MaxOutputBytes: DefaultMaxOutputBytes,
	}
}

// Runner compiles a workspace on the host and runs the binary inside a
// sandbox context acquired for that run only.
type Runner struct {
	cfg     Config
	sandbox sandbox.Sandbox
	logger  *zap.Logger
}

// NewRunner creates a Runner. Zero fields in cfg fall back to DefaultConfig.
func NewRunner(cfg Config, sb sandbox.Sandbox, logger *zap.Logger) *Runner {
	def := DefaultConfig()
	if cfg.CompilerPath == "" {
		cfg.CompilerPath = def.CompilerPath
	}
	if cfg.CompilerFlags == nil {
		cfg.CompilerFlags = def.CompilerFlags
	}
	if cfg.LinkFlags == nil {
		cfg.LinkFlags = def.LinkFlags
	}
	if cfg.CompileTimeout <= 0 {
		cfg.CompileTimeout = def.CompileTimeout
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = def.RunTimeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = def.MaxOutputBytes
	}
	return &Runner{cfg: cfg, sandbox: sb, logger: logger}
}

// RunTimeout returns the wall-clock limit applied to each run.
func (r *Runner) RunTimeout() time.Duration {
	return r.cfg.RunTimeout
}

// Compile builds ws.SourcePath into ws.BinaryPath. A program that fails to
// compile is reported in the outcome; an error means the compiler itself
// could not be started.
func (r *Runner) Compile(ctx context.Context, ws *workspace.Workspace) (*domain.CompileOutcome, error) {
	args := make([]string, 0, len(r.cfg.CompilerFlags)+len(r.cfg.LinkFlags)+3)
	args = append(args, r.cfg.CompilerFlags...)
	args = append(args, "-o", workspace.BinaryName, workspace.SourceName)
	args = append(args, r.cfg.LinkFlags...)

	compileCtx, cancel := context.WithTimeout(ctx, r.cfg.CompileTimeout)
	defer cancel()

	cmd := exec.CommandContext(compileCtx, r.cfg.CompilerPath, args...)
	cmd.Dir = ws.Dir
	cmd.Env = []string{"PATH=" + os.Getenv("PATH"), "LC_ALL=C", "TMPDIR=" + ws.Dir}
	sandbox.ConfigureHostCommand(cmd)

	// gcc interleaves diagnostics across both streams; keep them in order.
	diag := sandbox.NewLimitedBuffer(r.cfg.MaxOutputBytes)
	cmd.Stdout = diag
	cmd.Stderr = diag

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start compiler: %w", err)
	}
	err := cmd.Wait()
	elapsed := time.Since(start)
	metrics.CompileDuration.Observe(elapsed.Seconds())

	outcome := &domain.CompileOutcome{
		Diagnostics: truncateOutput(diag.String(), diag.Truncated(), r.cfg.MaxOutputBytes),
		Duration:    elapsed,
	}

	if errors.Is(compileCtx.Err(), context.DeadlineExceeded) {
		outcome.Diagnostics = appendNotice(outcome.Diagnostics,
			fmt.Sprintf("Compilation timed out after %s", formatSeconds(r.cfg.CompileTimeout)))
		return outcome, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("wait compiler: %w", err)
		}
		if outcome.Diagnostics == "" {
			outcome.Diagnostics = fmt.Sprintf("Compiler exited with code %d", exitErr.ExitCode())
		}
		return outcome, nil
	}

	outcome.OK = true
	outcome.BinaryPath = ws.BinaryPath
	r.logger.Debug("Compilation succeeded",
		zap.String("workspace_id", ws.ID),
		zap.Duration("elapsed", elapsed),
	)
	return outcome, nil
}

// Run executes the compiled binary with stdin written in full and then
// closed. A program that crashes or times out is reported in the outcome; an
// error means the sandbox failed before the program could run.
func (r *Runner) Run(ctx context.Context, ws *workspace.Workspace, stdin string) (*domain.RunOutcome, error) {
	sctx, err := r.sandbox.Acquire(ctx, ws.Dir)
	if err != nil {
		metrics.SandboxFailures.WithLabelValues(r.sandbox.Name()).Inc()
		return nil, fmt.Errorf("acquire sandbox: %w", err)
	}
	defer func() {
		if err := sctx.Close(); err != nil {
			r.logger.Warn("Failed to close sandbox context",
				zap.String("workspace_id", ws.ID),
				zap.String("backend", r.sandbox.Name()),
				zap.Error(err),
			)
		}
	}()

	stdout := sandbox.NewLimitedBuffer(r.cfg.MaxOutputBytes)
	stderr := sandbox.NewLimitedBuffer(r.cfg.MaxOutputBytes)

	res, err := sctx.Run(ctx, sandbox.Spec{
		Binary:  workspace.BinaryName,
		Stdin:   strings.NewReader(stdin),
		Stdout:  stdout,
		Stderr:  stderr,
		Timeout: r.cfg.RunTimeout,
	})
	if err != nil {
		metrics.SandboxFailures.WithLabelValues(r.sandbox.Name()).Inc()
		return nil, fmt.Errorf("run in sandbox: %w", err)
	}

	outcome := &domain.RunOutcome{
		Status:          classify(res),
		Stdout:          truncateOutput(stdout.String(), stdout.Truncated(), r.cfg.MaxOutputBytes),
		Stderr:          truncateOutput(stderr.String(), stderr.Truncated(), r.cfg.MaxOutputBytes),
		ExitCode:        res.ExitCode,
		Signal:          res.Signal,
		ElapsedMs:       res.Elapsed.Milliseconds(),
		StdoutTruncated: stdout.Truncated(),
		StderrTruncated: stderr.Truncated(),
	}
	metrics.ExecutionDuration.Observe(res.Elapsed.Seconds())

	r.logger.Debug("Run completed",
		zap.String("workspace_id", ws.ID),
		zap.String("backend", r.sandbox.Name()),
		zap.String("status", string(outcome.Status)),
		zap.Int("exit_code", outcome.ExitCode),
		zap.String("signal", outcome.Signal),
		zap.Int64("elapsed_ms", outcome.ElapsedMs),
	)
	return outcome, nil
}

// classify maps how a run ended onto an execution status. The exit status is
// authoritative: stderr output alone never makes a run fail.
func classify(res *sandbox.Outcome) domain.ExecutionStatus {
	switch {
	case res.TimedOut:
		return domain.StatusTimeout
	case res.Signaled(), res.ExitCode != 0:
		return domain.StatusRuntimeError
	default:
		return domain.StatusSuccess
	}
}

// truncateOutput appends a truncation notice if the output was cut off.
func truncateOutput(s string, wasTruncated bool, limit int) string {
	if !wasTruncated {
		return s
	}
	return s + fmt.Sprintf("\n... output truncated (%d KB limit) ...", limit/1024)
}

func appendNotice(s, notice string) string {
	if s == "" {
		return notice
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s + notice
}

// formatSeconds renders whole-second durations as "5s" and anything else with
// Go's duration format.
func formatSeconds(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return d.String()
}
