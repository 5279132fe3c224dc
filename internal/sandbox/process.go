package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// waitDelay bounds how long Wait keeps draining pipes after the program was
// killed, in case a grandchild inherited stdout and never exits.
const waitDelay = 500 * time.Millisecond

// Process runs programs as direct child processes: own process group, empty
// environment, optional unprivileged credentials and rlimits.
type Process struct {
	limits Limits
	logger *zap.Logger
}

// NewProcess creates a process-group sandbox.
func NewProcess(limits Limits, logger *zap.Logger) *Process {
	return &Process{limits: limits, logger: logger}
}

// Name implements Sandbox.
func (p *Process) Name() string { return BackendProcess }

// Acquire implements Sandbox.
func (p *Process) Acquire(ctx context.Context, dir string) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.limits.UID >= 0 {
		// Workspaces are private to the server user; hand this one to the
		// user the program runs as.
		gid := p.limits.GID
		if gid < 0 {
			gid = p.limits.UID
		}
		if err := os.Chown(dir, p.limits.UID, gid); err != nil {
			return nil, fmt.Errorf("sandbox: chown workspace: %w", err)
		}
	}
	return &processContext{dir: dir, limits: p.limits, logger: p.logger}, nil
}

type processContext struct {
	dir    string
	limits Limits
	logger *zap.Logger

	mu     sync.Mutex
	procs  []*os.Process
	closed bool
}

func (c *processContext) Run(ctx context.Context, spec Spec) (*Outcome, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	runCtx, cancel := runDeadline(ctx, spec.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, filepath.Join(c.dir, spec.Binary))
	cmd.Dir = c.dir
	cmd.Env = []string{}
	cmd.Stdin = spec.Stdin
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	cmd.SysProcAttr = sysProcAttr(c.limits)
	cmd.WaitDelay = waitDelay
	cmd.Cancel = func() error {
		return killGroup(cmd.Process)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("sandbox: context closed")
	}
	start := time.Now()
	if err := cmd.Start(); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("sandbox: start: %w", err)
	}
	c.procs = append(c.procs, cmd.Process)
	c.mu.Unlock()

	if err := applyLimits(cmd.Process.Pid, c.limits); err != nil {
		_ = killGroup(cmd.Process)
		_ = cmd.Wait()
		return nil, fmt.Errorf("sandbox: apply limits: %w", err)
	}

	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	if cmd.ProcessState == nil {
		return nil, fmt.Errorf("sandbox: wait: %w", waitErr)
	}

	outcome := &Outcome{Elapsed: elapsed}
	outcome.ExitCode, outcome.Signal = exitInfo(cmd.ProcessState)
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		outcome.TimedOut = true
	}

	if waitErr != nil && !isExitError(waitErr) {
		c.logger.Debug("Process wait returned non-exit error", zap.Error(waitErr))
	}
	return outcome, nil
}

// Close kills whatever is left in the process groups this context started.
func (c *processContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, p := range c.procs {
		_ = killGroup(p)
	}
	c.procs = nil
	return nil
}

// ConfigureHostCommand puts cmd in its own process group and makes context
// cancellation kill the whole group, for trusted tools run outside a sandbox.
func ConfigureHostCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = sysProcAttr(Limits{UID: -1, GID: -1})
	cmd.WaitDelay = waitDelay
	cmd.Cancel = func() error {
		return killGroup(cmd.Process)
	}
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
