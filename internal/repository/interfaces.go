package repository

import (
	"context"
	"time"

	"github.com/SachiinVishwakarma/CodeBasse/internal/domain"
	"github.com/SachiinVishwakarma/CodeBasse/internal/workspace"
)

// Workspaces hands out and reclaims per-execution directories.
type Workspaces interface {
	Acquire(ctx context.Context) (*workspace.Workspace, error)

	// Materialize writes the (instrumented) program source into ws.
	Materialize(ws *workspace.Workspace, source string) error

	// Release destroys ws. It must be idempotent and never fail the caller.
	Release(ws *workspace.Workspace)
}

// Executor compiles and runs the program in a workspace.
type Executor interface {
	// Compile reports a failed compilation in the outcome; an error means the
	// compiler could not be invoked.
	Compile(ctx context.Context, ws *workspace.Workspace) (*domain.CompileOutcome, error)

	// Run reports crashes and timeouts in the outcome; an error means the
	// program could not be started.
	Run(ctx context.Context, ws *workspace.Workspace, stdin string) (*domain.RunOutcome, error)

	// RunTimeout is the wall-clock limit applied to each run.
	RunTimeout() time.Duration
}

// ExampleRepository stores the read-only catalog of sample programs.
// Implementations must be safe for concurrent use.
type ExampleRepository interface {
	// List returns every example in catalog order.
	List(ctx context.Context) ([]domain.Example, error)

	// GetByID returns domain.ErrExampleNotFound for an unknown id.
	GetByID(ctx context.Context, id string) (*domain.Example, error)

	// Seed inserts or replaces the given examples.
	Seed(ctx context.Context, examples []domain.Example) error

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	// Allow records one request for key and reports whether it is within
	// limit requests per window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
