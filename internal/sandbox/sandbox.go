// Package sandbox runs a compiled program under one of several isolation
// backends. Every run gets its own Context, acquired for a single workspace
// directory and closed when the run is over.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Backend names accepted by New.
const (
	BackendProcess = "process"
	BackendNsjail  = "nsjail"
	BackendDocker  = "docker"
)

// ErrUnknownBackend is returned by New for an unsupported backend name.
var ErrUnknownBackend = errors.New("sandbox: unknown backend")

// Limits bounds what a sandboxed program may consume. Zero means unlimited.
type Limits struct {
	CPUSeconds   uint64
	MemoryBytes  uint64
	MaxProcs     uint64
	MaxOpenFiles uint64
	MaxFileBytes uint64

	// UID and GID switch the program to an unprivileged user; -1 keeps the
	// server's own credentials.
	UID int
	GID int
}

// Spec describes one run inside an acquired Context.
type Spec struct {
	// Binary is the executable's file name inside the workspace directory.
	Binary  string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Timeout time.Duration
}

// Outcome is how a run ended. A run that could not be started at all is
// reported as an error from Context.Run instead.
type Outcome struct {
	ExitCode int
	Signal   string
	TimedOut bool
	Elapsed  time.Duration
}

// Signaled reports whether the program was terminated by a signal.
func (o *Outcome) Signaled() bool {
	return o.Signal != ""
}

// Sandbox hands out run contexts bound to a workspace directory.
type Sandbox interface {
	Name() string
	Acquire(ctx context.Context, dir string) (Context, error)
}

// Context is a single-use isolation context. Close kills anything the run
// left behind and releases backend resources; it is safe to call twice.
type Context interface {
	Run(ctx context.Context, spec Spec) (*Outcome, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend      string
	Limits       Limits
	NsjailPath   string
	NsjailConfig string
	DockerImage  string
}

// Closer is implemented by backends holding long-lived resources.
type Closer interface {
	Close() error
}

// runDeadline returns a context that expires after timeout, or ctx itself when
// timeout is zero.
func runDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func validateSpec(spec Spec) error {
	if spec.Binary == "" {
		return fmt.Errorf("sandbox: empty binary name")
	}
	if spec.Stdout == nil || spec.Stderr == nil {
		return fmt.Errorf("sandbox: stdout and stderr writers are required")
	}
	return nil
}
