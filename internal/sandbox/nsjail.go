package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	nsjailMountPoint = "/sandbox"

	// nsjail writes its own log lines to stderr; room for them on top of
	// the program's own stderr.
	nsjailStderrLimit = 1 << 20
)

// Nsjail runs programs through the nsjail binary with the workspace
// bind-mounted read-only at /sandbox.
type Nsjail struct {
	binary string
	config string
	limits Limits
	logger *zap.Logger
}

// NewNsjail creates an nsjail-backed sandbox. config may be empty, in which
// case nsjail runs with its built-in defaults plus the flags set here.
func NewNsjail(binary, config string, limits Limits, logger *zap.Logger) *Nsjail {
	if binary == "" {
		binary = "nsjail"
	}
	return &Nsjail{binary: binary, config: config, limits: limits, logger: logger}
}

// Name implements Sandbox.
func (n *Nsjail) Name() string { return BackendNsjail }

// Acquire implements Sandbox.
func (n *Nsjail) Acquire(ctx context.Context, dir string) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &nsjailContext{jail: n, dir: dir}, nil
}

// args builds the nsjail command line for one run.
func (n *Nsjail) args(dir string, spec Spec) []string {
	var args []string
	if n.config != "" {
		args = append(args, "--config", n.config)
	} else {
		args = append(args, "--mode", "o")
	}
	args = append(args,
		"--bindmount_ro", dir+":"+nsjailMountPoint,
		"--cwd", nsjailMountPoint,
		"--disable_proc",
		"--iface_no_lo",
	)
	if spec.Timeout > 0 {
		// nsjail counts whole seconds; the host-side deadline stays authoritative.
		secs := int((spec.Timeout + time.Second - 1) / time.Second)
		args = append(args, "--time_limit", fmt.Sprintf("%d", secs+1))
	}
	if n.limits.CPUSeconds > 0 {
		args = append(args, "--rlimit_cpu", fmt.Sprintf("%d", n.limits.CPUSeconds))
	}
	if n.limits.MemoryBytes > 0 {
		args = append(args,
			"--cgroup_mem_max", fmt.Sprintf("%d", n.limits.MemoryBytes),
			"--rlimit_as", fmt.Sprintf("%d", n.limits.MemoryBytes/(1024*1024)),
		)
	}
	if n.limits.MaxProcs > 0 {
		args = append(args, "--cgroup_pids_max", fmt.Sprintf("%d", n.limits.MaxProcs))
	}
	if n.limits.MaxOpenFiles > 0 {
		args = append(args, "--rlimit_nofile", fmt.Sprintf("%d", n.limits.MaxOpenFiles))
	}
	if n.limits.MaxFileBytes > 0 {
		args = append(args, "--rlimit_fsize", fmt.Sprintf("%d", n.limits.MaxFileBytes/(1024*1024)))
	}
	if n.limits.UID >= 0 {
		args = append(args, "--user", fmt.Sprintf("%d", n.limits.UID))
		gid := n.limits.GID
		if gid < 0 {
			gid = n.limits.UID
		}
		args = append(args, "--group", fmt.Sprintf("%d", gid))
	}
	args = append(args, "--", path.Join(nsjailMountPoint, spec.Binary))
	return args
}

type nsjailContext struct {
	jail *Nsjail
	dir  string

	mu     sync.Mutex
	cmd    *exec.Cmd
	closed bool
}

func (c *nsjailContext) Run(ctx context.Context, spec Spec) (*Outcome, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	runCtx, cancel := runDeadline(ctx, spec.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.jail.binary, c.jail.args(c.dir, spec)...)
	ConfigureHostCommand(cmd)
	cmd.Stdin = spec.Stdin
	cmd.Stdout = spec.Stdout

	// Stderr is collected whole so nsjail's own log lines can be split off.
	stderr := NewLimitedBuffer(nsjailStderrLimit)
	cmd.Stderr = stderr

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("sandbox: context closed")
	}
	start := time.Now()
	if err := cmd.Start(); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("sandbox: start nsjail: %w", err)
	}
	c.cmd = cmd
	c.mu.Unlock()

	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	progStderr, nsjailLog := separateNsjailLogs(stderr.String())
	if _, err := spec.Stderr.Write([]byte(progStderr)); err != nil {
		return nil, fmt.Errorf("sandbox: copy stderr: %w", err)
	}

	c.jail.logger.Debug("nsjail run completed",
		zap.Duration("elapsed", elapsed),
		zap.String("nsjail_log", nsjailLog),
	)

	if cmd.ProcessState == nil {
		return nil, fmt.Errorf("sandbox: wait nsjail: %w", waitErr)
	}

	outcome := &Outcome{Elapsed: elapsed}
	outcome.ExitCode, outcome.Signal = exitInfo(cmd.ProcessState)
	if outcome.Signal == "" {
		// nsjail reports a signalled child as 128+signal.
		if sig := signalFromExitCode(outcome.ExitCode); sig != "" {
			outcome.Signal = sig
		}
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) || isNsjailTimeout(nsjailLog) {
		outcome.TimedOut = true
	}
	return outcome, nil
}

func (c *nsjailContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.cmd != nil {
		_ = killGroup(c.cmd.Process)
	}
	return nil
}

// separateNsjailLogs splits nsjail log lines from the user program's stderr.
// nsjail logs are prefixed with bracketed tags like [I], [W], [E], [F], [D].
func separateNsjailLogs(rawStderr string) (programStderr, nsjailLogs string) {
	if rawStderr == "" {
		return "", ""
	}

	var progLines, logLines []string
	for _, line := range strings.Split(rawStderr, "\n") {
		if isNsjailLogLine(strings.TrimSpace(line)) {
			logLines = append(logLines, line)
		} else {
			progLines = append(progLines, line)
		}
	}

	return strings.Join(progLines, "\n"), strings.Join(logLines, "\n")
}

func isNsjailLogLine(line string) bool {
	for _, prefix := range []string{"[I]", "[W]", "[E]", "[F]", "[D]"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func isNsjailTimeout(nsjailLog string) bool {
	return strings.Contains(strings.ToLower(nsjailLog), "run time >= time limit")
}
